// Package mutation orchestrates optimistic state changes. Every intent runs
// the same shape: snapshot the affected cached entities, write a predicted
// result synchronously, cascade the project progress, dispatch the
// authoritative request, then reconcile on success or restore the snapshots
// on failure.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/peaknext/projectflow/internal/backend"
	"github.com/peaknext/projectflow/internal/cache"
	"github.com/peaknext/projectflow/internal/domain"
	"github.com/peaknext/projectflow/internal/progress"
)

type Engine struct {
	store   *cache.Store
	backend backend.Backend
	viewer  string
	log     *slog.Logger
	now     func() time.Time

	inflight atomic.Int64

	// Optional hooks for a sync indicator, mirrored around every dispatch.
	OnSyncStart func()
	OnSyncEnd   func()
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine acting as viewer (pins and dashboard shapes are
// viewer-scoped).
func New(store *cache.Store, be backend.Backend, viewer string, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		backend: be,
		viewer:  viewer,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InFlight reports the number of dispatched mutations still awaiting their
// server response.
func (e *Engine) InFlight() int64 {
	return e.inflight.Load()
}

func (e *Engine) beginDispatch() {
	if e.inflight.Add(1) == 1 && e.OnSyncStart != nil {
		e.OnSyncStart()
	}
}

func (e *Engine) endDispatch() {
	if e.inflight.Add(-1) == 0 && e.OnSyncEnd != nil {
		e.OnSyncEnd()
	}
}

// cascadeProgress recomputes the owning project's completion ratio from the
// cached tasks and writes it onto the cached project. The project must
// already be snapshotted.
func cascadeProgress(tx *cache.Tx, projectID string) {
	p := tx.Project(projectID)
	if p == nil {
		return
	}
	res := progress.Compute(tx.ProjectTasks(projectID), tx.Statuses(projectID))
	p.Progress = res.Progress
	tx.PutProject(p)
}

// invalidateTaskViews marks every listing that could contain the task stale.
// The detail entry is reconciled by hand; listings are refetched instead of
// patched further, which bounds staleness to one round trip.
func (e *Engine) invalidateTaskViews(projectID string) {
	e.store.Invalidate(cache.TaskListsPrefix)
	e.store.Invalidate(cache.ProjectBoardKey(projectID))
	e.store.Invalidate(cache.DepartmentsPrefix)
	e.store.Invalidate(cache.DashboardPrefix)
}

// evictTask removes a task that turned out to be deleted on the server, so
// views drop it instead of letting the user retry against a ghost.
func (e *Engine) evictTask(taskID, projectID string) {
	e.store.Apply(func(tx *cache.Tx) {
		tx.RemoveTask(taskID)
	})
	if projectID != "" {
		e.invalidateTaskViews(projectID)
	} else {
		e.store.Invalidate(cache.TaskListsPrefix)
	}
}

// CreateTask optimistically inserts the task under a temporary id, then
// swaps in the server's canonical entity.
func (e *Engine) CreateTask(ctx context.Context, in domain.CreateTaskInput) (*domain.Task, error) {
	in.CreatedBy = e.viewer

	tempID := domain.TempIDPrefix + uuid.New().String()
	var snap *snapshot
	e.store.Apply(func(tx *cache.Tx) {
		snap = newSnapshot(tx)
		snap.task(tempID)
		snap.project(in.ProjectID)

		t := domain.NewTask(in.ProjectID, in.StatusID, in.Name, e.viewer)
		t.ID = tempID
		t.Description = in.Description
		if in.Priority != nil {
			t.Priority = *in.Priority
		}
		t.Difficulty = in.Difficulty
		t.StartDate = in.StartDate
		t.DueDate = in.DueDate
		t.AssigneeUserIDs = append([]string(nil), in.AssigneeUserIDs...)
		t.ParentTaskID = in.ParentTaskID
		t.SyncAssigneeMirror()
		tx.PutTask(t)
		cascadeProgress(tx, in.ProjectID)
	})

	e.beginDispatch()
	defer e.endDispatch()
	canonical, err := e.backend.CreateTask(ctx, in)
	if err != nil {
		e.rollback(snap, "create task", err)
		return nil, err
	}

	e.store.Apply(func(tx *cache.Tx) {
		tx.RemoveTask(tempID)
		tx.PutTask(canonical)
	})
	e.invalidateTaskViews(canonical.ProjectID)
	return canonical, nil
}

// UpdateTask applies a partial update. Updates against a closed cached task
// are rejected locally before any request is dispatched.
func (e *Engine) UpdateTask(ctx context.Context, taskID string, in domain.UpdateTaskInput) (*domain.Task, error) {
	var (
		snap      *snapshot
		projectID string
		rejected  error
	)
	e.store.Apply(func(tx *cache.Tx) {
		cur := tx.Task(taskID)
		if cur != nil && cur.IsClosed {
			rejected = fmt.Errorf("%w: %s", domain.ErrTaskClosed, taskID)
			return
		}
		snap = newSnapshot(tx)
		snap.task(taskID)
		if cur == nil {
			return
		}
		projectID = cur.ProjectID
		predicted := cur.Clone()
		in.ApplyTo(predicted)
		tx.PutTask(predicted)
		if in.AffectsProgress() {
			snap.project(projectID)
			cascadeProgress(tx, projectID)
		}
	})
	if rejected != nil {
		return nil, rejected
	}

	e.beginDispatch()
	defer e.endDispatch()
	canonical, err := e.backend.UpdateTask(ctx, taskID, in)
	if err != nil {
		e.rollback(snap, "update task", err)
		if errors.Is(err, domain.ErrNotFound) {
			e.evictTask(taskID, projectID)
		}
		return nil, err
	}

	e.store.PutTask(canonical)
	e.invalidateTaskViews(canonical.ProjectID)
	return canonical, nil
}

// CloseTask closes the task as COMPLETED or ABORTED. A closed task's mutable
// fields never change again, so closing an already-closed task is rejected
// locally.
func (e *Engine) CloseTask(ctx context.Context, taskID string, in domain.CloseTaskInput) (*domain.Task, error) {
	in.ClosedBy = e.viewer
	var (
		snap      *snapshot
		projectID string
		rejected  error
	)
	e.store.Apply(func(tx *cache.Tx) {
		cur := tx.Task(taskID)
		if cur != nil && cur.IsClosed {
			rejected = fmt.Errorf("%w: %s", domain.ErrTaskClosed, taskID)
			return
		}
		snap = newSnapshot(tx)
		snap.task(taskID)
		if cur == nil {
			return
		}
		projectID = cur.ProjectID
		predicted := cur.Clone()
		now := e.now()
		ct := in.Type
		predicted.IsClosed = true
		predicted.CloseType = &ct
		predicted.ClosedAt = &now
		viewer := e.viewer
		predicted.ClosedBy = &viewer
		tx.PutTask(predicted)
		snap.project(projectID)
		cascadeProgress(tx, projectID)
	})
	if rejected != nil {
		return nil, rejected
	}

	e.beginDispatch()
	defer e.endDispatch()
	canonical, err := e.backend.CloseTask(ctx, taskID, in)
	if err != nil {
		e.rollback(snap, "close task", err)
		if errors.Is(err, domain.ErrNotFound) {
			e.evictTask(taskID, projectID)
		}
		return nil, err
	}

	e.store.PutTask(canonical)
	e.invalidateTaskViews(canonical.ProjectID)
	return canonical, nil
}

// DeleteTask soft-deletes the task: the prediction marks it deleted so every
// default listing drops it immediately.
func (e *Engine) DeleteTask(ctx context.Context, taskID string) error {
	var (
		snap      *snapshot
		projectID string
	)
	e.store.Apply(func(tx *cache.Tx) {
		snap = newSnapshot(tx)
		snap.task(taskID)
		cur := tx.Task(taskID)
		if cur == nil {
			return
		}
		projectID = cur.ProjectID
		predicted := cur.Clone()
		now := e.now()
		predicted.DeletedAt = &now
		tx.PutTask(predicted)
		snap.project(projectID)
		cascadeProgress(tx, projectID)
	})

	e.beginDispatch()
	defer e.endDispatch()
	if err := e.backend.DeleteTask(ctx, taskID); err != nil {
		e.rollback(snap, "delete task", err)
		if errors.Is(err, domain.ErrNotFound) {
			e.evictTask(taskID, projectID)
		}
		return err
	}

	e.store.Apply(func(tx *cache.Tx) {
		tx.RemoveTask(taskID)
	})
	if projectID != "" {
		e.invalidateTaskViews(projectID)
	}
	return nil
}

// TogglePin flips the viewer's pin on a task.
func (e *Engine) TogglePin(ctx context.Context, taskID string) error {
	var (
		snap   *snapshot
		pinned bool
	)
	e.store.Apply(func(tx *cache.Tx) {
		snap = newSnapshot(tx)
		snap.pin(e.viewer, taskID)
		pinned = tx.IsPinned(e.viewer, taskID)
		tx.SetPinned(e.viewer, taskID, !pinned)
	})

	e.beginDispatch()
	defer e.endDispatch()
	var err error
	if pinned {
		err = e.backend.UnpinTask(ctx, e.viewer, taskID)
	} else {
		err = e.backend.PinTask(ctx, e.viewer, taskID)
	}
	if err != nil {
		e.rollback(snap, "toggle pin", err)
		return err
	}
	return nil
}

// AddChecklistItem appends an item under a temporary id.
func (e *Engine) AddChecklistItem(ctx context.Context, taskID string, in domain.ChecklistItemInput) (*domain.ChecklistItem, error) {
	var snap *snapshot
	e.store.Apply(func(tx *cache.Tx) {
		snap = newSnapshot(tx)
		snap.checklist(taskID)
		item := domain.NewChecklistItem(taskID, in.Name, in.Order)
		item.ID = domain.TempIDPrefix + item.ID
		tx.SetChecklist(taskID, append(tx.Checklist(taskID), item))
	})

	e.beginDispatch()
	defer e.endDispatch()
	canonical, err := e.backend.CreateChecklistItem(ctx, taskID, in)
	if err != nil {
		e.rollback(snap, "add checklist item", err)
		return nil, err
	}

	e.store.Invalidate(cache.TaskChecklistKey(taskID))
	e.store.Invalidate(cache.TaskDetailKey(taskID))
	return canonical, nil
}

// UpdateChecklistItem patches one item in place (check/uncheck, rename).
func (e *Engine) UpdateChecklistItem(ctx context.Context, taskID, itemID string, in domain.ChecklistItemUpdate) (*domain.ChecklistItem, error) {
	var snap *snapshot
	e.store.Apply(func(tx *cache.Tx) {
		snap = newSnapshot(tx)
		snap.checklist(taskID)
		items := tx.Checklist(taskID)
		for _, item := range items {
			if item.ID == itemID {
				in.ApplyTo(item)
				break
			}
		}
		tx.SetChecklist(taskID, items)
	})

	e.beginDispatch()
	defer e.endDispatch()
	canonical, err := e.backend.UpdateChecklistItem(ctx, taskID, itemID, in)
	if err != nil {
		e.rollback(snap, "update checklist item", err)
		return nil, err
	}

	e.store.Invalidate(cache.TaskChecklistKey(taskID))
	return canonical, nil
}

// DeleteChecklistItem removes one item.
func (e *Engine) DeleteChecklistItem(ctx context.Context, taskID, itemID string) error {
	var snap *snapshot
	e.store.Apply(func(tx *cache.Tx) {
		snap = newSnapshot(tx)
		snap.checklist(taskID)
		items := tx.Checklist(taskID)
		kept := items[:0]
		for _, item := range items {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}
		tx.SetChecklist(taskID, kept)
	})

	e.beginDispatch()
	defer e.endDispatch()
	if err := e.backend.DeleteChecklistItem(ctx, taskID, itemID); err != nil {
		e.rollback(snap, "delete checklist item", err)
		return err
	}

	e.store.Invalidate(cache.TaskChecklistKey(taskID))
	return nil
}

// AddComment prepends a temp-id comment authored by the viewer.
func (e *Engine) AddComment(ctx context.Context, taskID string, in domain.CommentInput) (*domain.Comment, error) {
	in.AuthorUserID = e.viewer
	var snap *snapshot
	e.store.Apply(func(tx *cache.Tx) {
		snap = newSnapshot(tx)
		snap.commentsFor(taskID)
		c := domain.NewComment(taskID, e.viewer, in.Content, in.MentionedUserIDs)
		c.ID = domain.TempIDPrefix + c.ID
		tx.SetComments(taskID, append([]*domain.Comment{c}, tx.Comments(taskID)...))
	})

	e.beginDispatch()
	defer e.endDispatch()
	canonical, err := e.backend.CreateComment(ctx, taskID, in)
	if err != nil {
		e.rollback(snap, "add comment", err)
		return nil, err
	}

	e.store.Invalidate(cache.TaskCommentsKey(taskID))
	e.store.Invalidate(cache.TaskDetailKey(taskID))
	return canonical, nil
}

func (e *Engine) rollback(snap *snapshot, intent string, cause error) {
	e.store.Apply(snap.restore)
	e.log.Warn("mutation rolled back", "intent", intent, "error", cause)
}
