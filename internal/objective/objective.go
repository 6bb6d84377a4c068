// Package objective implements the validate/undo state machine of the three
// objective variants.
package objective

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/lifexp/internal/types"
	"github.com/hyperengineering/lifexp/internal/validation"
)

// UndoWindow is how long after a completion it may still be undone.
const UndoWindow = 24 * time.Hour

var (
	ErrUndoExpired   = errors.New("undo window has expired")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrTypeChange    = errors.New("objective type cannot be changed")

	// ErrDoneStepChanged rejects milestone edits that would drop a completed
	// step or place a pending step before it.
	ErrDoneStepChanged = errors.New("completed milestone steps must be kept in order; undo them first")
)

// CanUndo reports whether an action at ts is still inside the undo window.
func CanUndo(ts, now time.Time) bool {
	return now.Sub(ts) <= UndoWindow
}

// StepSpec describes a milestone step at creation or edit time.
type StepSpec struct {
	Count int `json:"count"`
	XP    int `json:"xp"`
}

// NewRepeatable builds a repeatable objective after validating its fields.
func NewRepeatable(id string, now time.Time, name string, xp int) (*types.Objective, error) {
	name = strings.TrimSpace(name)
	var c validation.Collector
	c.Add(validation.ValidateName("name", name))
	c.Add(validation.ValidatePositive("xp", xp))
	if err := c.Err(); err != nil {
		return nil, err
	}
	return &types.Objective{ID: id, CreatedAt: now, Body: &types.Repeatable{Name: name, XP: xp}}, nil
}

// NewUnique builds a one-time objective after validating its fields.
func NewUnique(id string, now time.Time, name string, xp int) (*types.Objective, error) {
	name = strings.TrimSpace(name)
	var c validation.Collector
	c.Add(validation.ValidateName("name", name))
	c.Add(validation.ValidatePositive("xp", xp))
	if err := c.Err(); err != nil {
		return nil, err
	}
	return &types.Objective{ID: id, CreatedAt: now, Body: &types.Unique{Name: name, XP: xp}}, nil
}

// NewMilestone builds a milestone objective. Step counts must be strictly
// ascending.
func NewMilestone(id string, now time.Time, prefix, suffix string, steps []StepSpec) (*types.Objective, error) {
	prefix, suffix = strings.TrimSpace(prefix), strings.TrimSpace(suffix)
	var c validation.Collector
	c.Add(validation.ValidateName("prefix", prefix))
	c.Add(validation.ValidateName("suffix", suffix))
	validateSteps(&c, steps)
	if err := c.Err(); err != nil {
		return nil, err
	}

	m := &types.Milestone{Prefix: prefix, Suffix: suffix, Steps: make([]types.MilestoneStep, len(steps))}
	for i, s := range steps {
		m.Steps[i] = types.MilestoneStep{Count: s.Count, XP: s.XP}
	}
	return &types.Objective{ID: id, CreatedAt: now, Body: m}, nil
}

func validateSteps(c *validation.Collector, steps []StepSpec) {
	if len(steps) == 0 {
		c.Add(&validation.ValidationError{Field: "steps", Message: "is required"})
		return
	}
	counts := make([]int, len(steps))
	for i, s := range steps {
		c.Add(validation.ValidatePositive(fmt.Sprintf("steps[%d].count", i), s.Count))
		c.Add(validation.ValidatePositive(fmt.Sprintf("steps[%d].xp", i), s.XP))
		counts[i] = s.Count
	}
	c.Add(validation.ValidateAscending("steps", counts))
}

// Outcome reports the effect of Validate or Undo.
type Outcome struct {
	// XP awarded by Validate or to be reversed by Undo.
	XP int
	// Changed is false when Validate was a no-op.
	Changed bool
	// Progress is the milestone progress afterwards.
	Progress int
	// Step is the index of the milestone step completed or reset, or -1.
	Step int
}

// Validate records a completion of o at now and returns the XP earned. The
// caller applies the XP to the ledger with the objective-only policy.
func Validate(o *types.Objective, now time.Time) Outcome {
	out := Outcome{Step: -1}
	switch b := o.Body.(type) {
	case *types.Repeatable:
		b.Events = append(b.Events, types.RepeatEvent{At: now, XP: b.XP})
		out.XP = b.XP
		out.Changed = true
	case *types.Unique:
		if b.Done {
			return out
		}
		at := now
		b.Done = true
		b.DoneAt = &at
		b.AwardedXP = b.XP
		out.XP = b.XP
		out.Changed = true
	case *types.Milestone:
		b.Progress++
		b.ProgressEvents = append(b.ProgressEvents, now)
		out.Changed = true
		out.Progress = b.Progress
		if i := b.NextStep(); i >= 0 && b.Progress >= b.Steps[i].Count {
			at := now
			b.Steps[i].Done = true
			b.Steps[i].DoneAt = &at
			b.Steps[i].AwardedXP = b.Steps[i].XP
			out.XP = b.Steps[i].XP
			out.Step = i
		}
	}
	return out
}

// Undo reverses the most recent completion of o if it happened within the
// undo window. The caller removes Outcome.XP from the ledger.
func Undo(o *types.Objective, now time.Time) (Outcome, error) {
	out := Outcome{Step: -1}
	switch b := o.Body.(type) {
	case *types.Repeatable:
		if len(b.Events) == 0 {
			return out, ErrNothingToUndo
		}
		last := b.Events[len(b.Events)-1]
		if !CanUndo(last.At, now) {
			return out, ErrUndoExpired
		}
		b.Events = b.Events[:len(b.Events)-1]
		out.XP = last.XP
	case *types.Unique:
		if !b.Done || b.DoneAt == nil {
			return out, ErrNothingToUndo
		}
		if !CanUndo(*b.DoneAt, now) {
			return out, ErrUndoExpired
		}
		out.XP = b.Awarded()
		b.Done = false
		b.DoneAt = nil
		b.AwardedXP = 0
	case *types.Milestone:
		i := latestStep(b)
		if i < 0 {
			return out, ErrNothingToUndo
		}
		if !CanUndo(*b.Steps[i].DoneAt, now) {
			return out, ErrUndoExpired
		}
		if b.Progress > 0 {
			b.Progress--
		}
		if n := len(b.ProgressEvents); n > 0 {
			b.ProgressEvents = b.ProgressEvents[:n-1]
		}
		out.XP = b.Steps[i].Awarded()
		b.Steps[i].Done = false
		b.Steps[i].DoneAt = nil
		b.Steps[i].AwardedXP = 0
		out.Step = i
		out.Progress = b.Progress
	default:
		return out, ErrNothingToUndo
	}
	out.Changed = true
	return out, nil
}

// latestStep returns the index of the most recently completed step, or -1.
func latestStep(m *types.Milestone) int {
	idx := -1
	for i, s := range m.Steps {
		if !s.Done || s.DoneAt == nil {
			continue
		}
		if idx < 0 || !s.DoneAt.Before(*m.Steps[idx].DoneAt) {
			idx = i
		}
	}
	return idx
}

// TotalAwarded sums every XP amount o has ever awarded and still holds.
func TotalAwarded(o *types.Objective) int {
	total := 0
	switch b := o.Body.(type) {
	case *types.Repeatable:
		for _, e := range b.Events {
			total += e.XP
		}
	case *types.Unique:
		total = b.Awarded()
	case *types.Milestone:
		for _, s := range b.Steps {
			total += s.Awarded()
		}
	}
	return total
}

// Edit describes changes to an existing objective. Kind must match the
// objective's variant; nil fields are left unchanged.
type Edit struct {
	Kind   types.ObjectiveKind
	Name   *string
	XP     *int
	Prefix *string
	Suffix *string
	Steps  []StepSpec
}

// ApplyEdit validates e and applies it to o. XP edits only affect future
// completions. Milestone steps whose count is still present keep their
// completion state and awarded XP; completed steps cannot be removed and a
// new step cannot be placed before one.
func ApplyEdit(o *types.Objective, e Edit) error {
	if e.Kind != "" && e.Kind != o.Kind() {
		return fmt.Errorf("%w: %s to %s", ErrTypeChange, o.Kind(), e.Kind)
	}

	var c validation.Collector
	switch b := o.Body.(type) {
	case *types.Repeatable:
		if e.Prefix != nil || e.Suffix != nil || e.Steps != nil {
			return fmt.Errorf("%w: repeatable objectives have no steps", ErrTypeChange)
		}
		name, xp := editNameXP(&c, b.Name, b.XP, e)
		if err := c.Err(); err != nil {
			return err
		}
		b.Name, b.XP = name, xp
	case *types.Unique:
		if e.Prefix != nil || e.Suffix != nil || e.Steps != nil {
			return fmt.Errorf("%w: unique objectives have no steps", ErrTypeChange)
		}
		name, xp := editNameXP(&c, b.Name, b.XP, e)
		if err := c.Err(); err != nil {
			return err
		}
		b.Name, b.XP = name, xp
	case *types.Milestone:
		if e.Name != nil || e.XP != nil {
			return fmt.Errorf("%w: milestone objectives use prefix, suffix and steps", ErrTypeChange)
		}
		prefix, suffix := b.Prefix, b.Suffix
		if e.Prefix != nil {
			prefix = strings.TrimSpace(*e.Prefix)
			c.Add(validation.ValidateName("prefix", prefix))
		}
		if e.Suffix != nil {
			suffix = strings.TrimSpace(*e.Suffix)
			c.Add(validation.ValidateName("suffix", suffix))
		}
		if e.Steps != nil {
			validateSteps(&c, e.Steps)
		}
		if err := c.Err(); err != nil {
			return err
		}
		var steps []types.MilestoneStep
		if e.Steps != nil {
			var err error
			if steps, err = mergeSteps(b.Steps, e.Steps); err != nil {
				return err
			}
		}
		b.Prefix, b.Suffix = prefix, suffix
		if steps != nil {
			b.Steps = steps
		}
	}
	return nil
}

func editNameXP(c *validation.Collector, name string, xp int, e Edit) (string, int) {
	if e.Name != nil {
		name = strings.TrimSpace(*e.Name)
		c.Add(validation.ValidateName("name", name))
	}
	if e.XP != nil {
		xp = *e.XP
		c.Add(validation.ValidatePositive("xp", xp))
	}
	return name, xp
}

// mergeSteps builds the edited step list. Completed steps carry over by
// count and must still form the leading run of the list.
func mergeSteps(old []types.MilestoneStep, specs []StepSpec) ([]types.MilestoneStep, error) {
	kept := make(map[int]bool, len(specs))
	for _, s := range specs {
		kept[s.Count] = true
	}
	prev := make(map[int]types.MilestoneStep, len(old))
	for _, s := range old {
		if !s.Done {
			continue
		}
		if !kept[s.Count] {
			return nil, fmt.Errorf("%w: step %d is completed", ErrDoneStepChanged, s.Count)
		}
		prev[s.Count] = s
	}

	out := make([]types.MilestoneStep, len(specs))
	pending := -1
	for i, s := range specs {
		step := types.MilestoneStep{Count: s.Count, XP: s.XP}
		if p, ok := prev[s.Count]; ok {
			if pending >= 0 {
				return nil, fmt.Errorf("%w: step %d would come before completed step %d",
					ErrDoneStepChanged, pending, s.Count)
			}
			step.Done = true
			step.DoneAt = p.DoneAt
			step.AwardedXP = p.Awarded()
		} else if pending < 0 {
			pending = s.Count
		}
		out[i] = step
	}
	return out, nil
}
