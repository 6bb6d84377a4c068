package objective

import (
	"fmt"
	"sort"
	"time"

	"github.com/hyperengineering/lifexp/internal/types"
)

// ActiveUniques returns unique objectives that are neither done nor deleted.
func ActiveUniques(objs []*types.Objective) []*types.Objective {
	var out []*types.Objective
	for _, o := range objs {
		if u, ok := o.Body.(*types.Unique); ok && !o.Deleted && !u.Done {
			out = append(out, o)
		}
	}
	return out
}

// ActiveMilestones returns milestones with at least one pending step.
func ActiveMilestones(objs []*types.Objective) []*types.Objective {
	var out []*types.Objective
	for _, o := range objs {
		if m, ok := o.Body.(*types.Milestone); ok && !o.Deleted && m.NextStep() >= 0 {
			out = append(out, o)
		}
	}
	return out
}

// Repeatables returns repeatable objectives that are not deleted.
func Repeatables(objs []*types.Objective) []*types.Objective {
	var out []*types.Objective
	for _, o := range objs {
		if _, ok := o.Body.(*types.Repeatable); ok && !o.Deleted {
			out = append(out, o)
		}
	}
	return out
}

// ArchivedItem is one completion row: a done unique, a done milestone step
// or a single repeatable event.
type ArchivedItem struct {
	ObjectiveID string              `json:"objective_id"`
	Kind        types.ObjectiveKind `json:"kind"`
	Title       string              `json:"title"`
	XP          int                 `json:"xp"`
	At          time.Time           `json:"at"`
	Step        int                 `json:"step"`
	Deleted     bool                `json:"deleted"`
	// Undoable is true only for the objective's most recent completion
	// while it is inside the undo window.
	Undoable bool `json:"undoable"`
}

// Archived lists completions of objs, newest first. Soft-deleted objectives
// are included.
func Archived(objs []*types.Objective, now time.Time) []ArchivedItem {
	var items []ArchivedItem
	for _, o := range objs {
		switch b := o.Body.(type) {
		case *types.Repeatable:
			for i, e := range b.Events {
				items = append(items, ArchivedItem{
					ObjectiveID: o.ID,
					Kind:        types.KindRepeatable,
					Title:       b.Name,
					XP:          e.XP,
					At:          e.At,
					Step:        -1,
					Deleted:     o.Deleted,
					Undoable:    i == len(b.Events)-1 && CanUndo(e.At, now),
				})
			}
		case *types.Unique:
			if !b.Done || b.DoneAt == nil {
				continue
			}
			items = append(items, ArchivedItem{
				ObjectiveID: o.ID,
				Kind:        types.KindUnique,
				Title:       b.Name,
				XP:          b.Awarded(),
				At:          *b.DoneAt,
				Step:        -1,
				Deleted:     o.Deleted,
				Undoable:    CanUndo(*b.DoneAt, now),
			})
		case *types.Milestone:
			latest := latestStep(b)
			for i, s := range b.Steps {
				if !s.Done || s.DoneAt == nil {
					continue
				}
				items = append(items, ArchivedItem{
					ObjectiveID: o.ID,
					Kind:        types.KindMilestone,
					Title:       fmt.Sprintf("%s %d %s", b.Prefix, s.Count, b.Suffix),
					XP:          s.Awarded(),
					At:          *s.DoneAt,
					Step:        i,
					Deleted:     o.Deleted,
					Undoable:    i == latest && CanUndo(*s.DoneAt, now),
				})
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].At.After(items[j].At)
	})
	return items
}
