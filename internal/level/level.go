// Package level maps accumulated XP onto levels using a geometric cost curve.
package level

import (
	"errors"
	"math"
)

// MaxSteps bounds the level walk in FromXP. It is far above any level a
// validated curve reaches in practice.
const MaxSteps = 10000

// ErrInvalidCurve is returned by Validate for unusable constants.
var ErrInvalidCurve = errors.New("invalid level curve")

// Curve holds the cost of level 1 and the per-level growth factor.
type Curve struct {
	Base   float64
	Growth float64
}

// Validate rejects curves that are not strictly positive and non-shrinking.
func (c Curve) Validate() error {
	if c.Base <= 0 || math.IsNaN(c.Base) || math.IsInf(c.Base, 0) {
		return errors.Join(ErrInvalidCurve, errors.New("base must be greater than 0"))
	}
	if c.Growth < 1 || math.IsNaN(c.Growth) || math.IsInf(c.Growth, 0) {
		return errors.Join(ErrInvalidCurve, errors.New("growth must be at least 1"))
	}
	return nil
}

// XPForNextLevel returns the XP needed to go from level to level+1.
func (c Curve) XPForNextLevel(level int) int {
	exp := float64(max(0, level-1))
	return int(math.Round(c.Base * math.Pow(c.Growth, exp)))
}

// FromXP returns the level reached with totalXP, starting from level 1.
func (c Curve) FromXP(totalXP int) int {
	level := 1
	remaining := totalXP
	for i := 0; i < MaxSteps; i++ {
		need := c.XPForNextLevel(level)
		if need <= 0 || remaining < need {
			break
		}
		remaining -= need
		level++
	}
	return level
}

// Progress returns the XP earned inside the current level and the XP that
// level costs in total.
func (c Curve) Progress(totalXP int) (into, need int) {
	level := c.FromXP(totalXP)
	spent := 0
	for l := 1; l < level; l++ {
		spent += c.XPForNextLevel(l)
	}
	return totalXP - spent, c.XPForNextLevel(level)
}

// Change is a before/after level pair.
type Change struct {
	Prev int `json:"prev"`
	Now  int `json:"now"`
}

// LeveledUp reports whether the level increased.
func (ch Change) LeveledUp() bool { return ch.Now > ch.Prev }

// Gained returns the level pair for an XP transition.
func (c Curve) Gained(prevXP, newXP int) Change {
	return Change{Prev: c.FromXP(prevXP), Now: c.FromXP(newXP)}
}
