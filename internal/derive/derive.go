// Package derive computes lifecycle status and progress for work items.
//
// Every consumer goes through this package; the rules live here once
// instead of being re-derived per view.
package derive

import (
	"math"
	"time"

	"github.com/nhle/project-planner/internal/due"
	"github.com/nhle/project-planner/internal/model"
)

// Item is the minimal shape the deriver operates on. Steps map onto it
// directly; projects are rolled up into it by ProjectMeta.
type Item struct {
	// Completed is the explicit override: when set, the item reads as
	// Completed at 100% regardless of its subtasks.
	Completed bool
	Subtasks  []model.Subtask
	DueDate   *string
}

// Derive computes the status summary for an item at the given moment.
//
// Precedence: the completed override wins over subtask counts; subtask
// counts decide the base status otherwise; the due evaluation can then
// demote any non-completed base status to Overdue. An item whose subtasks
// are all done is never demoted even past its deadline, while a partially
// done item past its deadline reads Overdue with its progress untouched.
func Derive(item Item, now time.Time) model.StatusMeta {
	total := len(item.Subtasks)
	done := 0
	for _, t := range item.Subtasks {
		if t.Done {
			done++
		}
	}

	meta := model.StatusMeta{Done: done, Total: total}
	switch {
	case item.Completed:
		meta.Progress = 100
		meta.Status = model.StatusCompleted
	case total > 0:
		meta.Progress = int(math.Round(100 * float64(done) / float64(total)))
		switch done {
		case 0:
			meta.Status = model.StatusNotStarted
		case total:
			meta.Status = model.StatusCompleted
		default:
			meta.Status = model.StatusInProgress
		}
	default:
		meta.Status = model.StatusNotStarted
	}

	info := due.Evaluate(item.DueDate, meta.Status == model.StatusCompleted, now)
	if info.Overdue && meta.Status != model.StatusCompleted {
		meta.Status = model.StatusOverdue
	}
	return meta
}

// DueInfo evaluates an item's deadline, with the completed override
// suppressing the evaluation.
func DueInfo(item Item, now time.Time) due.Info {
	return due.Evaluate(item.DueDate, item.Completed, now)
}

// StepMeta computes the status summary for a single step.
func StepMeta(s model.Step, now time.Time) model.StatusMeta {
	return Derive(Item{
		Completed: s.Completed,
		Subtasks:  s.Subtasks,
		DueDate:   s.DueDate,
	}, now)
}

// ProjectMeta rolls a project up into a status summary. Each step counts
// as one unit, done when its base completion holds: the override is set
// or every subtask is finished. The project's own due date feeds the
// overdue evaluation.
func ProjectMeta(p model.Project, now time.Time) model.StatusMeta {
	units := make([]model.Subtask, len(p.Steps))
	for i, s := range p.Steps {
		units[i] = model.Subtask{ID: s.ID, Title: s.Title, Done: stepDone(s)}
	}
	return Derive(Item{Subtasks: units, DueDate: p.DueDate}, now)
}

// stepDone reports a step's base completion, ignoring due dates.
func stepDone(s model.Step) bool {
	if s.Completed {
		return true
	}
	if len(s.Subtasks) == 0 {
		return false
	}
	for _, t := range s.Subtasks {
		if !t.Done {
			return false
		}
	}
	return true
}
