// Package progress computes a project's completion ratio from its tasks and
// ordered status list. The same formula is used for optimistic client
// prediction and for the authoritative server-side recomputation, so the two
// never visibly disagree after reconciliation.
package progress

import "github.com/peaknext/projectflow/internal/domain"

const defaultDifficulty = 1

type Result struct {
	// Progress is the completion ratio clamped to [0,1].
	Progress float64 `json:"progress"`

	AchievedWeight int `json:"achievedWeight"`
	TotalWeight    int `json:"totalWeight"`
	MaxStatusOrder int `json:"maxStatusOrder"`
	TotalTasks     int `json:"totalTasks"`
	OpenTasks      int `json:"openTasks"`
	CompletedTasks int `json:"completedTasks"`
	AbortedTasks   int `json:"abortedTasks"`
}

// Compute derives the completion ratio for one project.
//
// Each task weighs difficulty × status order (1-based position of its status
// in the project's ordered list). A task closed COMPLETED contributes its
// maximum weight (difficulty × max order) as fully achieved. A task closed
// ABORTED contributes nothing to the numerator but keeps its maximum weight in
// the denominator: a cancelled task still used up completion capacity.
// Soft-deleted tasks are ignored entirely.
func Compute(tasks []*domain.Task, statuses []*domain.Status) Result {
	res := Result{MaxStatusOrder: domain.MaxStatusOrder(statuses)}

	for _, t := range tasks {
		if t.DeletedAt != nil {
			continue
		}
		res.TotalTasks++

		difficulty := defaultDifficulty
		if t.Difficulty != nil && *t.Difficulty >= domain.DifficultyMin && *t.Difficulty <= domain.DifficultyMax {
			difficulty = *t.Difficulty
		}
		maxWeight := difficulty * res.MaxStatusOrder
		res.TotalWeight += maxWeight

		switch {
		case t.IsClosed && t.CloseType != nil && *t.CloseType == domain.CloseCompleted:
			res.CompletedTasks++
			res.AchievedWeight += maxWeight
		case t.IsClosed:
			res.AbortedTasks++
		default:
			res.OpenTasks++
			order := 1
			if s := domain.StatusByID(statuses, t.StatusID); s != nil {
				order = s.Order
			}
			res.AchievedWeight += difficulty * order
		}
	}

	if res.TotalWeight > 0 {
		res.Progress = float64(res.AchievedWeight) / float64(res.TotalWeight)
		if res.Progress < 0 {
			res.Progress = 0
		}
		if res.Progress > 1 {
			res.Progress = 1
		}
	}
	return res
}
