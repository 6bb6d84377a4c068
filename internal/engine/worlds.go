package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperengineering/lifexp/internal/types"
	"github.com/hyperengineering/lifexp/internal/validation"
)

// WorldInput describes a new world.
type WorldInput struct {
	Name        string
	Icon        string
	MinutesBase int
	XPBase      int
}

// CreateWorld adds an active world. It becomes the current world when none
// is selected.
func (s *Service) CreateWorld(ctx context.Context, in WorldInput) (*types.World, error) {
	name, icon := strings.TrimSpace(in.Name), strings.TrimSpace(in.Icon)
	var c validation.Collector
	c.Add(validation.ValidateName("name", name))
	c.Add(validation.ValidateName("icon", icon))
	c.Add(validation.ValidatePositive("minutes_base", in.MinutesBase))
	c.Add(validation.ValidatePositive("xp_base", in.XPBase))
	if err := c.Err(); err != nil {
		return nil, err
	}

	var created types.World
	err := s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		w := &types.World{
			ID:        s.newID(now),
			Name:      name,
			Icon:      icon,
			Active:    true,
			Rules:     types.Rules{MinutesBase: in.MinutesBase, XPBase: in.XPBase},
			CreatedAt: now,
		}
		p.Worlds[w.ID] = w
		if p.ActiveWorldID == "" {
			p.ActiveWorldID = w.ID
		}
		created = *w
		return []types.Activity{{Action: "world.create", WorldID: w.ID, Detail: name, CreatedAt: now}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("world created", "action", "create_world", "world_id", created.ID)
	return &created, nil
}

// ArchiveWorld hides a world from listings. Its XP and history are kept.
func (s *Service) ArchiveWorld(ctx context.Context, id string) error {
	return s.setWorldActive(ctx, id, false)
}

// RestoreWorld brings an archived world back.
func (s *Service) RestoreWorld(ctx context.Context, id string) error {
	return s.setWorldActive(ctx, id, true)
}

func (s *Service) setWorldActive(ctx context.Context, id string, active bool) error {
	var name string
	var already bool
	err := s.view(func(p *types.Profile, _ time.Time) error {
		w, err := findWorld(p, id)
		if err != nil {
			return err
		}
		name, already = w.Name, w.Active == active
		return nil
	})
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	verb, action := "Archive", "world.archive"
	if active {
		verb, action = "Restore", "world.restore"
	}
	if err := s.gate(ctx, fmt.Sprintf("%s world %q?", verb, name)); err != nil {
		return err
	}

	return s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		w, err := findWorld(p, id)
		if err != nil {
			return nil, err
		}
		w.Active = active
		if !active && p.ActiveWorldID == id {
			p.ActiveWorldID = ""
		}
		return []types.Activity{{Action: action, WorldID: id, CreatedAt: now}}, nil
	})
}

// UpdateWorldRule changes a world's time to XP conversion. Existing entries
// keep the XP they were created with.
func (s *Service) UpdateWorldRule(ctx context.Context, id string, minutesBase, xpBase int) error {
	var c validation.Collector
	c.Add(validation.ValidatePositive("minutes_base", minutesBase))
	c.Add(validation.ValidatePositive("xp_base", xpBase))
	if err := c.Err(); err != nil {
		return err
	}
	return s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		w, err := findWorld(p, id)
		if err != nil {
			return nil, err
		}
		w.Rules = types.Rules{MinutesBase: minutesBase, XPBase: xpBase}
		return []types.Activity{{
			Action:    "world.rule",
			WorldID:   id,
			Detail:    fmt.Sprintf("%d xp / %d min", xpBase, minutesBase),
			CreatedAt: now,
		}}, nil
	})
}

// SetActiveWorld selects the current world.
func (s *Service) SetActiveWorld(ctx context.Context, id string) error {
	return s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		w, err := findWorld(p, id)
		if err != nil {
			return nil, err
		}
		if !w.Active {
			return nil, fmt.Errorf("world %s: %w", id, ErrArchived)
		}
		p.ActiveWorldID = id
		return []types.Activity{{Action: "world.select", WorldID: id, CreatedAt: now}}, nil
	})
}

// Worlds returns copies of the active (or archived) worlds sorted by name.
func (s *Service) Worlds(archived bool) []*types.World {
	p, err := s.Snapshot()
	if err != nil {
		s.logger.Error("snapshot failed", "action", "list_worlds", "error", err)
		return nil
	}
	return sortedWorlds(p, !archived)
}

// World returns a deep copy of one world.
func (s *Service) World(id string) (*types.World, error) {
	var out *types.World
	err := s.view(func(p *types.Profile, _ time.Time) error {
		if _, err := findWorld(p, id); err != nil {
			return err
		}
		c, err := p.Clone()
		if err != nil {
			return err
		}
		out = c.Worlds[id]
		return nil
	})
	return out, err
}

// CurrentWorldID returns the selected world id, or "".
func (s *Service) CurrentWorldID() string {
	var id string
	s.view(func(p *types.Profile, _ time.Time) error {
		id = p.ActiveWorldID
		return nil
	})
	return id
}

func sortedWorlds(p *types.Profile, active bool) []*types.World {
	var out []*types.World
	for _, w := range p.Worlds {
		if w.Active == active {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ResolveWorld maps a user reference (id, unique id prefix, or
// case-insensitive name) to a world id. An empty ref selects the current
// world.
func (s *Service) ResolveWorld(ref string) (string, error) {
	var id string
	err := s.view(func(p *types.Profile, _ time.Time) error {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			if p.ActiveWorldID == "" {
				return fmt.Errorf("no current world selected: %w", ErrNotFound)
			}
			id = p.ActiveWorldID
			return nil
		}
		if _, ok := p.Worlds[ref]; ok {
			id = ref
			return nil
		}
		var matches []string
		for wid, w := range p.Worlds {
			if strings.EqualFold(w.Name, ref) || strings.HasPrefix(strings.ToUpper(wid), strings.ToUpper(ref)) {
				matches = append(matches, wid)
			}
		}
		switch len(matches) {
		case 0:
			return fmt.Errorf("world %q: %w", ref, ErrNotFound)
		case 1:
			id = matches[0]
			return nil
		}
		return fmt.Errorf("world %q is ambiguous (%d matches)", ref, len(matches))
	})
	return id, err
}
