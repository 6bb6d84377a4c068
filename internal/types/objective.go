package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ObjectiveKind is the variant tag of an objective.
type ObjectiveKind string

const (
	KindRepeatable ObjectiveKind = "repeatable"
	KindUnique     ObjectiveKind = "unique"
	KindMilestone  ObjectiveKind = "milestone"
)

// ObjectiveBody is the variant payload of an Objective. It is implemented
// only by *Repeatable, *Unique and *Milestone.
type ObjectiveBody interface {
	Kind() ObjectiveKind
	isObjectiveBody()
}

// Objective is a trackable goal inside a world. The variant is fixed at
// creation.
type Objective struct {
	ID        string
	CreatedAt time.Time
	Deleted   bool
	Body      ObjectiveBody
}

// Kind returns the variant tag of the objective's body.
func (o *Objective) Kind() ObjectiveKind {
	if o.Body == nil {
		return ""
	}
	return o.Body.Kind()
}

// RepeatEvent is one validation of a repeatable objective.
type RepeatEvent struct {
	At time.Time `json:"at"`
	XP int       `json:"xp"`
}

// Repeatable awards XP every time it is validated.
type Repeatable struct {
	Name   string        `json:"name"`
	XP     int           `json:"xp"`
	Events []RepeatEvent `json:"events"`
}

func (*Repeatable) Kind() ObjectiveKind { return KindRepeatable }
func (*Repeatable) isObjectiveBody()    {}

// DoneCount returns how many times the objective was validated.
func (r *Repeatable) DoneCount() int { return len(r.Events) }

// Unique awards XP once. AwardedXP is frozen at completion so later edits
// to XP never change what an undo or purge reverses.
type Unique struct {
	Name      string     `json:"name"`
	XP        int        `json:"xp"`
	Done      bool       `json:"done"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
	AwardedXP int        `json:"awarded_xp,omitempty"`
}

func (*Unique) Kind() ObjectiveKind { return KindUnique }
func (*Unique) isObjectiveBody()    {}

// Awarded returns the XP the completion actually earned, or 0 when pending.
func (u *Unique) Awarded() int {
	if !u.Done {
		return 0
	}
	return awarded(u.AwardedXP, u.XP)
}

// MilestoneStep is one threshold of a milestone objective.
type MilestoneStep struct {
	Count     int        `json:"count"`
	XP        int        `json:"xp"`
	Done      bool       `json:"done"`
	DoneAt    *time.Time `json:"done_at,omitempty"`
	AwardedXP int        `json:"awarded_xp,omitempty"`
}

// Awarded returns the XP the step earned when it completed, or 0 when pending.
func (s MilestoneStep) Awarded() int {
	if !s.Done {
		return 0
	}
	return awarded(s.AwardedXP, s.XP)
}

// awarded falls back to the current XP for completions saved before the
// awarded amount was recorded.
func awarded(frozen, current int) int {
	if frozen > 0 {
		return frozen
	}
	return current
}

// Milestone awards XP per step as progress crosses each step's count.
// Steps are kept sorted ascending by Count.
type Milestone struct {
	Prefix         string          `json:"prefix"`
	Suffix         string          `json:"suffix"`
	Steps          []MilestoneStep `json:"steps"`
	Progress       int             `json:"progress"`
	ProgressEvents []time.Time     `json:"progress_events"`
}

func (*Milestone) Kind() ObjectiveKind { return KindMilestone }
func (*Milestone) isObjectiveBody()    {}

// NextStep returns the index of the earliest pending step, or -1 when every
// step is done.
func (m *Milestone) NextStep() int {
	for i, s := range m.Steps {
		if !s.Done {
			return i
		}
	}
	return -1
}

// DoneSteps counts completed steps.
func (m *Milestone) DoneSteps() int {
	n := 0
	for _, s := range m.Steps {
		if s.Done {
			n++
		}
	}
	return n
}

// Title renders the milestone as "prefix N suffix" using the next pending
// step, or the last step once all are done.
func (m *Milestone) Title() string {
	if len(m.Steps) == 0 {
		return m.Prefix + " " + m.Suffix
	}
	i := m.NextStep()
	if i < 0 {
		i = len(m.Steps) - 1
	}
	return fmt.Sprintf("%s %d %s", m.Prefix, m.Steps[i].Count, m.Suffix)
}

// Title returns a display name for any objective variant.
func (o *Objective) Title() string {
	switch b := o.Body.(type) {
	case *Repeatable:
		return b.Name
	case *Unique:
		return b.Name
	case *Milestone:
		return b.Title()
	}
	return ""
}

type objectiveJSON struct {
	ID        string          `json:"id"`
	Type      ObjectiveKind   `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Deleted   bool            `json:"deleted"`
	Body      json.RawMessage `json:"body"`
}

// MarshalJSON encodes the objective with a "type" discriminator.
func (o Objective) MarshalJSON() ([]byte, error) {
	if o.Body == nil {
		return nil, fmt.Errorf("objective %s: missing body", o.ID)
	}
	var payload any = o.Body
	switch b := o.Body.(type) {
	case *Repeatable:
		c := *b
		if c.Events == nil {
			c.Events = []RepeatEvent{}
		}
		payload = &c
	case *Milestone:
		c := *b
		if c.Steps == nil {
			c.Steps = []MilestoneStep{}
		}
		if c.ProgressEvents == nil {
			c.ProgressEvents = []time.Time{}
		}
		payload = &c
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(objectiveJSON{
		ID:        o.ID,
		Type:      o.Body.Kind(),
		CreatedAt: o.CreatedAt,
		Deleted:   o.Deleted,
		Body:      body,
	})
}

// UnmarshalJSON decodes the body according to the "type" discriminator.
func (o *Objective) UnmarshalJSON(data []byte) error {
	var raw objectiveJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var body ObjectiveBody
	switch raw.Type {
	case KindRepeatable:
		body = &Repeatable{}
	case KindUnique:
		body = &Unique{}
	case KindMilestone:
		body = &Milestone{}
	default:
		return fmt.Errorf("objective %s: unknown type %q", raw.ID, raw.Type)
	}
	if len(raw.Body) > 0 {
		if err := json.Unmarshal(raw.Body, body); err != nil {
			return fmt.Errorf("objective %s: decode %s body: %w", raw.ID, raw.Type, err)
		}
	}

	o.ID = raw.ID
	o.CreatedAt = raw.CreatedAt
	o.Deleted = raw.Deleted
	o.Body = body
	return nil
}
