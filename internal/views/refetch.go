package views

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/peaknext/projectflow/internal/cache"
)

// Refetcher re-fetches mounted views whose cache entries have gone stale
// after a successful mutation, and periodically sweeps unmounted entries.
type Refetcher struct {
	store *cache.Store
	log   *slog.Logger

	mu       sync.RWMutex
	bindings map[string]Binding
}

func NewRefetcher(store *cache.Store, log *slog.Logger) *Refetcher {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Refetcher{
		store:    store,
		log:      log,
		bindings: make(map[string]Binding),
	}
}

// Register makes the binding eligible for stale refresh. Re-registering a key
// replaces the previous binding.
func (r *Refetcher) Register(b Binding) {
	r.mu.Lock()
	r.bindings[b.Key.String()] = b
	r.mu.Unlock()
}

func (r *Refetcher) Unregister(key cache.Key) {
	r.mu.Lock()
	delete(r.bindings, key.String())
	r.mu.Unlock()
}

// RefreshStale fetches every mounted, stale, registered view once. Fetch
// errors are logged and do not stop the pass; the entry stays stale so the
// next pass retries it.
func (r *Refetcher) RefreshStale(ctx context.Context) {
	for _, key := range r.store.StaleMountedKeys() {
		r.mu.RLock()
		b, ok := r.bindings[key.String()]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		if err := b.Fetch(ctx); err != nil {
			r.log.Warn("refetch failed", "key", key.String(), "error", err)
		}
	}
}

// Run refreshes stale views whenever the store reports a change and sweeps
// unmounted entries on the given interval. It blocks until ctx is done.
func (r *Refetcher) Run(ctx context.Context, sweepEvery time.Duration) {
	wake := make(chan struct{}, 1)
	unsub := r.store.Subscribe(func(cache.Key) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer unsub()

	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			r.RefreshStale(ctx)
		case <-ticker.C:
			if n := r.store.Sweep(); n > 0 {
				r.log.Debug("swept cache entries", "count", n)
			}
		}
	}
}
