package mutation

import (
	"github.com/peaknext/projectflow/internal/cache"
	"github.com/peaknext/projectflow/internal/domain"
)

type pinKey struct {
	viewer string
	taskID string
}

// snapshot is one mutation's rollback unit: full structural copies of every
// cached value the prediction will touch, captured before the first write.
// Restoring a snapshot puts back exactly what was there, including absence.
type snapshot struct {
	tx *cache.Tx // valid during capture only

	tasks        map[string]*domain.Task    // nil value = absent at capture
	projects     map[string]*domain.Project // nil value = absent at capture
	checklists   map[string][]*domain.ChecklistItem
	hasChecklist map[string]bool
	comments     map[string][]*domain.Comment
	hasComments  map[string]bool
	pins         map[pinKey]bool
}

func newSnapshot(tx *cache.Tx) *snapshot {
	return &snapshot{
		tx:           tx,
		tasks:        make(map[string]*domain.Task),
		projects:     make(map[string]*domain.Project),
		checklists:   make(map[string][]*domain.ChecklistItem),
		hasChecklist: make(map[string]bool),
		comments:     make(map[string][]*domain.Comment),
		hasComments:  make(map[string]bool),
		pins:         make(map[pinKey]bool),
	}
}

func (s *snapshot) task(id string) {
	if _, ok := s.tasks[id]; ok {
		return
	}
	s.tasks[id] = s.tx.Task(id)
}

func (s *snapshot) project(id string) {
	if _, ok := s.projects[id]; ok {
		return
	}
	s.projects[id] = s.tx.Project(id)
}

func (s *snapshot) checklist(taskID string) {
	if _, ok := s.hasChecklist[taskID]; ok {
		return
	}
	s.hasChecklist[taskID] = s.tx.HasChecklist(taskID)
	s.checklists[taskID] = s.tx.Checklist(taskID)
}

func (s *snapshot) commentsFor(taskID string) {
	if _, ok := s.hasComments[taskID]; ok {
		return
	}
	s.hasComments[taskID] = s.tx.HasComments(taskID)
	s.comments[taskID] = s.tx.Comments(taskID)
}

func (s *snapshot) pin(viewer, taskID string) {
	k := pinKey{viewer, taskID}
	if _, ok := s.pins[k]; ok {
		return
	}
	s.pins[k] = s.tx.IsPinned(viewer, taskID)
}

// restore writes every captured value back verbatim. It runs inside a fresh
// store transaction; the capture-time tx is not touched.
func (s *snapshot) restore(tx *cache.Tx) {
	for id, t := range s.tasks {
		if t == nil {
			tx.RemoveTask(id)
		} else {
			tx.PutTask(t)
		}
	}
	for id, p := range s.projects {
		if p == nil {
			tx.RemoveProject(id)
		} else {
			tx.PutProject(p)
		}
	}
	for taskID, had := range s.hasChecklist {
		if had {
			tx.SetChecklist(taskID, s.checklists[taskID])
		} else {
			tx.DeleteChecklist(taskID)
		}
	}
	for taskID, had := range s.hasComments {
		if had {
			tx.SetComments(taskID, s.comments[taskID])
		} else {
			tx.DeleteComments(taskID)
		}
	}
	for k, pinned := range s.pins {
		tx.SetPinned(k.viewer, k.taskID, pinned)
	}
}
