// Package cache is the in-memory entity store behind every view. It keeps one
// canonical table per entity type plus a set of view entries. A view entry is
// a selector: it recomputes its shaped value from the canonical tables on
// read, so a mutation that touches the canonical tables once is instantly
// visible in every view that contains the entity.
//
// Writers are the mutation engine and the refetch path only; view bindings
// are read-only consumers.
package cache

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/peaknext/projectflow/internal/domain"
)

// DefaultGracePeriod is how long an unmounted entry survives before Sweep
// evicts it.
const DefaultGracePeriod = 5 * time.Minute

// Projection computes a view entry's shaped value from the canonical tables.
// Projections must be pure; reads are recorded so the store knows which
// entries contain which entities.
type Projection func(r *Reader) (any, error)

type entry struct {
	key         Key
	projection  Projection
	stale       bool
	mounts      int
	unmountedAt time.Time
	gen         uint64
	projected   bool
	deps        map[string]struct{}
}

func (e *entry) dependsOn(dirty map[string]struct{}) bool {
	if !e.projected {
		// Never read; assume it could contain anything.
		return true
	}
	for d := range dirty {
		if _, ok := e.deps[d]; ok {
			return true
		}
	}
	return false
}

type Store struct {
	mu    sync.RWMutex
	log   *slog.Logger
	now   func() time.Time
	grace time.Duration

	tasks      map[string]*domain.Task
	projects   map[string]*domain.Project
	statuses   map[string][]*domain.Status
	checklists map[string][]*domain.ChecklistItem
	comments   map[string][]*domain.Comment
	pinned     map[string]map[string]struct{}

	entries map[string]*entry

	subMu   sync.Mutex
	subs    map[int]func(Key)
	nextSub int
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithGracePeriod(d time.Duration) Option {
	return func(s *Store) { s.grace = d }
}

func New(opts ...Option) *Store {
	s := &Store{
		log:        slog.New(slog.NewTextHandler(noopWriter{}, nil)),
		now:        time.Now,
		grace:      DefaultGracePeriod,
		tasks:      make(map[string]*domain.Task),
		projects:   make(map[string]*domain.Project),
		statuses:   make(map[string][]*domain.Status),
		checklists: make(map[string][]*domain.ChecklistItem),
		comments:   make(map[string][]*domain.Comment),
		pinned:     make(map[string]map[string]struct{}),
		entries:    make(map[string]*entry),
		subs:       make(map[int]func(Key)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Subscribe registers a listener called with the key of every entry whose
// value may have changed. Returns an unsubscribe func.
func (s *Store) Subscribe(fn func(Key)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(keys []Key) {
	if len(keys) == 0 {
		return
	}
	s.subMu.Lock()
	fns := make([]func(Key), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, k := range keys {
		for _, fn := range fns {
			fn(k)
		}
	}
}

// affectedKeys resolves a dirty-dependency set to entry keys, under the lock.
func (s *Store) affectedKeys(dirty map[string]struct{}) []Key {
	if len(dirty) == 0 {
		return nil
	}
	var keys []Key
	for _, e := range s.entries {
		if e.dependsOn(dirty) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Apply runs fn atomically against the canonical tables. The whole synchronous
// phase of a mutation (snapshot, predict, cascade) happens inside one Apply,
// so no reader ever observes a half-patched state.
func (s *Store) Apply(fn func(tx *Tx)) {
	s.mu.Lock()
	tx := &Tx{s: s, dirty: make(map[string]struct{})}
	fn(tx)
	keys := s.affectedKeys(tx.dirty)
	s.mu.Unlock()
	s.notify(keys)
}

// View runs fn with read-only access to the canonical tables.
func (s *Store) View(fn func(tx *Tx)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&Tx{s: s})
}

// Convenience single-entity accessors.

func (s *Store) GetTask(id string) *domain.Task {
	var t *domain.Task
	s.View(func(tx *Tx) { t = tx.Task(id) })
	return t
}

func (s *Store) GetProject(id string) *domain.Project {
	var p *domain.Project
	s.View(func(tx *Tx) { p = tx.Project(id) })
	return p
}

func (s *Store) PutTask(t *domain.Task) {
	s.Apply(func(tx *Tx) { tx.PutTask(t) })
}

func (s *Store) PutProject(p *domain.Project) {
	s.Apply(func(tx *Tx) { tx.PutProject(p) })
}

// Bind registers a view entry under key. Re-binding an existing key replaces
// the projection but keeps entry state (staleness, mounts, generation).
func (s *Store) Bind(key Key, p Projection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key.String()]; ok {
		e.projection = p
		return
	}
	s.entries[key.String()] = &entry{key: key, projection: p, stale: true}
}

// Read computes the entry's current value from the canonical tables.
func (s *Store) Read(key Key) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	if !ok {
		return nil, fmt.Errorf("cache: no entry bound for key %s", key)
	}
	r := &Reader{tx: &Tx{s: s}, deps: make(map[string]struct{})}
	v, err := e.projection(r)
	if err != nil {
		return nil, err
	}
	e.deps = r.deps
	e.projected = true
	return v, nil
}

func (s *Store) Mount(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key.String()]; ok {
		e.mounts++
	}
}

func (s *Store) Unmount(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key.String()]; ok && e.mounts > 0 {
		e.mounts--
		if e.mounts == 0 {
			e.unmountedAt = s.now()
		}
	}
}

// MarkStale flags a single entry for background refetch.
func (s *Store) MarkStale(key Key) {
	s.mu.Lock()
	var keys []Key
	if e, ok := s.entries[key.String()]; ok {
		e.stale = true
		keys = append(keys, e.key)
	}
	s.mu.Unlock()
	s.notify(keys)
}

// Invalidate marks every entry under prefix stale. Stale mounted entries are
// picked up by the refetch path; staleness is therefore bounded by one round
// trip instead of accumulating patch drift.
func (s *Store) Invalidate(prefix Key) {
	s.mu.Lock()
	var keys []Key
	for _, e := range s.entries {
		if e.key.HasPrefix(prefix) {
			e.stale = true
			keys = append(keys, e.key)
		}
	}
	s.mu.Unlock()
	s.log.Debug("cache invalidated", "prefix", prefix.String(), "entries", len(keys))
	s.notify(keys)
}

func (s *Store) IsStale(key Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key.String()]
	return ok && e.stale
}

// StaleMountedKeys lists entries that are both stale and currently mounted,
// i.e. the ones worth refetching.
func (s *Store) StaleMountedKeys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []Key
	for _, e := range s.entries {
		if e.stale && e.mounts > 0 {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// BeginFetch marks the start of a fetch for key and returns a generation
// token. A fetch completes only if no newer fetch began in the meantime
// (last response wins).
func (s *Store) BeginFetch(key Key) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.String()]
	if !ok {
		return 0
	}
	e.gen++
	return e.gen
}

// CompleteFetch ingests a fetch result. The ingest func runs atomically
// against the canonical tables; the whole result replaces prior state, no
// merge logic. Returns false if a newer fetch superseded this one.
func (s *Store) CompleteFetch(key Key, gen uint64, ingest func(tx *Tx)) bool {
	s.mu.Lock()
	e, ok := s.entries[key.String()]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return false
	}
	tx := &Tx{s: s, dirty: make(map[string]struct{})}
	ingest(tx)
	e.stale = false
	keys := s.affectedKeys(tx.dirty)
	s.mu.Unlock()
	s.notify(keys)
	return true
}

// Sweep evicts entries that have been unmounted longer than the grace period.
// Returns the number of evicted entries.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.grace)
	evicted := 0
	for id, e := range s.entries {
		if e.mounts == 0 && !e.unmountedAt.IsZero() && e.unmountedAt.Before(cutoff) {
			delete(s.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.log.Debug("cache swept", "evicted", evicted)
	}
	return evicted
}

// sortTasks gives listings a deterministic base order; views re-sort for
// display.
func sortTasks(tasks []*domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

func sortProjects(projects []*domain.Project) {
	sort.Slice(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.Before(projects[j].CreatedAt)
		}
		return projects[i].ID < projects[j].ID
	})
}
