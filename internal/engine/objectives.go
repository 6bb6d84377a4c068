package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/lifexp/internal/ledger"
	"github.com/hyperengineering/lifexp/internal/objective"
	"github.com/hyperengineering/lifexp/internal/types"
)

// AddRepeatable creates a repeatable objective in worldID.
func (s *Service) AddRepeatable(ctx context.Context, worldID, name string, xp int) (*types.Objective, error) {
	return s.addObjective(ctx, worldID, func(id string, now time.Time) (*types.Objective, error) {
		return objective.NewRepeatable(id, now, name, xp)
	})
}

// AddUnique creates a one-time objective in worldID.
func (s *Service) AddUnique(ctx context.Context, worldID, name string, xp int) (*types.Objective, error) {
	return s.addObjective(ctx, worldID, func(id string, now time.Time) (*types.Objective, error) {
		return objective.NewUnique(id, now, name, xp)
	})
}

// AddMilestone creates a milestone objective in worldID.
func (s *Service) AddMilestone(ctx context.Context, worldID, prefix, suffix string, steps []objective.StepSpec) (*types.Objective, error) {
	return s.addObjective(ctx, worldID, func(id string, now time.Time) (*types.Objective, error) {
		return objective.NewMilestone(id, now, prefix, suffix, steps)
	})
}

func (s *Service) addObjective(ctx context.Context, worldID string, build func(id string, now time.Time) (*types.Objective, error)) (*types.Objective, error) {
	var created *types.Objective
	err := s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		w, err := findWorld(p, worldID)
		if err != nil {
			return nil, err
		}
		if !w.Active {
			return nil, fmt.Errorf("world %s: %w", worldID, ErrArchived)
		}
		o, err := build(s.newID(now), now)
		if err != nil {
			return nil, err
		}
		w.Objectives = append(w.Objectives, o)
		created = o
		return []types.Activity{{
			Action: "objective.create", WorldID: worldID, EntityID: o.ID,
			Detail: string(o.Kind()) + ": " + o.Title(), CreatedAt: now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	// created belongs to the swapped-in profile; hand out a copy
	return s.Objective(worldID, created.ID)
}

// Objective returns a deep copy of one objective.
func (s *Service) Objective(worldID, objectiveID string) (*types.Objective, error) {
	w, err := s.World(worldID)
	if err != nil {
		return nil, err
	}
	o := w.FindObjective(objectiveID)
	if o == nil {
		return nil, fmt.Errorf("objective %s: %w", objectiveID, ErrNotFound)
	}
	return o, nil
}

// EditObjective applies e to an existing objective. The variant cannot change.
func (s *Service) EditObjective(ctx context.Context, worldID, objectiveID string, e objective.Edit) error {
	return s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		_, o, err := findObjective(p, worldID, objectiveID)
		if err != nil {
			return nil, err
		}
		if err := objective.ApplyEdit(o, e); err != nil {
			return nil, err
		}
		return []types.Activity{{
			Action: "objective.edit", WorldID: worldID, EntityID: objectiveID,
			Detail: o.Title(), CreatedAt: now,
		}}, nil
	})
}

// ValidateResult is the outcome of a validation.
type ValidateResult struct {
	Outcome objective.Outcome
	Ledger  ledger.Result
}

// ValidateObjective records a completion after confirmation and awards its
// XP toward total only. Validating a done unique objective is a no-op that
// does not prompt.
func (s *Service) ValidateObjective(ctx context.Context, worldID, objectiveID string) (*ValidateResult, error) {
	var title string
	var noop bool
	err := s.view(func(p *types.Profile, _ time.Time) error {
		_, o, err := findObjective(p, worldID, objectiveID)
		if err != nil {
			return err
		}
		if o.Deleted {
			return fmt.Errorf("objective %s is deleted: %w", objectiveID, ErrNotFound)
		}
		if u, ok := o.Body.(*types.Unique); ok && u.Done {
			noop = true
		}
		title = o.Title()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if noop {
		return &ValidateResult{Outcome: objective.Outcome{Step: -1}}, nil
	}
	if err := s.gate(ctx, fmt.Sprintf("Validate %q?", title)); err != nil {
		return nil, err
	}

	var res ValidateResult
	err = s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		w, o, err := findObjective(p, worldID, objectiveID)
		if err != nil {
			return nil, err
		}
		if o.Deleted {
			return nil, fmt.Errorf("objective %s is deleted: %w", objectiveID, ErrNotFound)
		}
		res.Outcome = objective.Validate(o, now)
		res.Ledger = ledger.Apply(p, w, res.Outcome.XP, ledger.ObjectiveOnly)
		return []types.Activity{{
			Action: "objective.validate", WorldID: worldID, EntityID: objectiveID,
			XPDelta: res.Outcome.XP, Detail: o.Title(), CreatedAt: now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logLedger("validate_objective", worldID, objectiveID, res.Ledger)
	return &res, nil
}

// UndoObjective reverses the most recent completion of an objective within
// the undo window, after confirmation.
func (s *Service) UndoObjective(ctx context.Context, worldID, objectiveID string) (*ValidateResult, error) {
	var title string
	err := s.view(func(p *types.Profile, now time.Time) error {
		_, o, err := findObjective(p, worldID, objectiveID)
		if err != nil {
			return err
		}
		title = o.Title()
		return checkUndo(o, now)
	})
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, fmt.Sprintf("Undo the last completion of %q?", title)); err != nil {
		return nil, err
	}

	var res ValidateResult
	err = s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		w, o, err := findObjective(p, worldID, objectiveID)
		if err != nil {
			return nil, err
		}
		out, err := objective.Undo(o, now)
		if err != nil {
			return nil, err
		}
		res.Outcome = out
		res.Ledger = ledger.Remove(p, w, out.XP, ledger.ObjectiveOnly)
		return []types.Activity{{
			Action: "objective.undo", WorldID: worldID, EntityID: objectiveID,
			XPDelta: -out.XP, Detail: o.Title(), CreatedAt: now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logLedger("undo_objective", worldID, objectiveID, res.Ledger)
	return &res, nil
}

// checkUndo dry-runs an undo on a copy of o.
func checkUndo(o *types.Objective, now time.Time) error {
	probe := &types.Objective{Body: copyBody(o.Body)}
	_, err := objective.Undo(probe, now)
	return err
}

func copyBody(b types.ObjectiveBody) types.ObjectiveBody {
	switch v := b.(type) {
	case *types.Repeatable:
		c := *v
		c.Events = append([]types.RepeatEvent(nil), v.Events...)
		return &c
	case *types.Unique:
		c := *v
		return &c
	case *types.Milestone:
		c := *v
		c.Steps = append([]types.MilestoneStep(nil), v.Steps...)
		c.ProgressEvents = append([]time.Time(nil), v.ProgressEvents...)
		return &c
	}
	return b
}

// SoftDeleteObjective hides an objective from active lists. Its awarded XP
// and completion history stay in place.
func (s *Service) SoftDeleteObjective(ctx context.Context, worldID, objectiveID string) error {
	var title string
	var already bool
	err := s.view(func(p *types.Profile, _ time.Time) error {
		_, o, err := findObjective(p, worldID, objectiveID)
		if err != nil {
			return err
		}
		title, already = o.Title(), o.Deleted
		return nil
	})
	if err != nil {
		return err
	}
	if already {
		return nil
	}
	if err := s.gate(ctx, fmt.Sprintf("Delete %q? Its XP and history are kept.", title)); err != nil {
		return err
	}

	return s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		_, o, err := findObjective(p, worldID, objectiveID)
		if err != nil {
			return nil, err
		}
		o.Deleted = true
		return []types.Activity{{
			Action: "objective.delete", WorldID: worldID, EntityID: objectiveID,
			Detail: o.Title(), CreatedAt: now,
		}}, nil
	})
}

// HardDeleteObjective removes an objective entirely and reverses every XP it
// awarded. It returns the amount reversed.
func (s *Service) HardDeleteObjective(ctx context.Context, worldID, objectiveID string) (int, error) {
	var title string
	var total int
	err := s.view(func(p *types.Profile, _ time.Time) error {
		_, o, err := findObjective(p, worldID, objectiveID)
		if err != nil {
			return err
		}
		title, total = o.Title(), objective.TotalAwarded(o)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := s.gate(ctx, fmt.Sprintf("Permanently delete %q and remove %d XP? This cannot be undone.", title, total)); err != nil {
		return 0, err
	}

	var reversed int
	err = s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		w, o, err := findObjective(p, worldID, objectiveID)
		if err != nil {
			return nil, err
		}
		reversed = objective.TotalAwarded(o)
		ledger.Remove(p, w, reversed, ledger.ObjectiveOnly)
		kept := w.Objectives[:0:0]
		for _, other := range w.Objectives {
			if other.ID != objectiveID {
				kept = append(kept, other)
			}
		}
		w.Objectives = kept
		return []types.Activity{{
			Action: "objective.purge", WorldID: worldID, EntityID: objectiveID,
			XPDelta: -reversed, Detail: o.Title(), CreatedAt: now,
		}}, nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("objective purged",
		"action", "hard_delete_objective",
		"world_id", worldID,
		"objective_id", objectiveID,
		"xp_reversed", reversed,
	)
	return reversed, nil
}

// ObjectiveLists groups a world's objectives for display.
type ObjectiveLists struct {
	Repeatables []*types.Objective       `json:"repeatables"`
	Uniques     []*types.Objective       `json:"uniques"`
	Milestones  []*types.Objective       `json:"milestones"`
	Archived    []objective.ArchivedItem `json:"archived"`
}

// Objectives returns the active lists and the archive of worldID.
func (s *Service) Objectives(worldID string) (*ObjectiveLists, error) {
	w, err := s.World(worldID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	return &ObjectiveLists{
		Repeatables: objective.Repeatables(w.Objectives),
		Uniques:     objective.ActiveUniques(w.Objectives),
		Milestones:  objective.ActiveMilestones(w.Objectives),
		Archived:    objective.Archived(w.Objectives, now),
	}, nil
}

// ResolveObjective maps an id, unique id prefix, or case-insensitive title
// to an objective id inside worldID.
func (s *Service) ResolveObjective(worldID, ref string) (string, error) {
	w, err := s.World(worldID)
	if err != nil {
		return "", err
	}
	ref = strings.TrimSpace(ref)
	if o := w.FindObjective(ref); o != nil {
		return o.ID, nil
	}
	var matches []string
	for _, o := range w.Objectives {
		if strings.EqualFold(o.Title(), ref) || strings.HasPrefix(strings.ToUpper(o.ID), strings.ToUpper(ref)) {
			matches = append(matches, o.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("objective %q: %w", ref, ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("objective %q is ambiguous (%d matches)", ref, len(matches))
}

func (s *Service) logLedger(action, worldID, entityID string, res ledger.Result) {
	if res.Global.LeveledUp() {
		s.logger.Info("level up",
			"action", action,
			"scope", "global",
			"level", res.Global.Now,
		)
	}
	if res.World.LeveledUp() {
		s.logger.Info("level up",
			"action", action,
			"scope", "world",
			"world_id", worldID,
			"level", res.World.Now,
		)
	}
	for _, g := range res.Goals {
		s.logger.Info("goal reached",
			"action", action,
			"period", g.Period,
			"key", g.Key,
			"xp", g.XP,
			"goal", g.Goal,
		)
	}
	s.logger.Debug("ledger updated",
		"action", action,
		"world_id", worldID,
		"entity_id", entityID,
		"amount", res.Amount,
		"policy", res.Policy.String(),
	)
}
