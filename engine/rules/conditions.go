// Package rules implements the condition evaluator: a pure predicate over
// the player state. Stat and ability predicates compare against the base
// value plus the active effect modifiers, never the raw base.
package rules

import (
	"log/slog"

	"github.com/nathoo/talecore/engine/effects"
	"github.com/nathoo/talecore/engine/reputation"
	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/logger"
	"github.com/nathoo/talecore/types"
)

// Evaluator checks requirements. It is stateless; construct once and share.
type Evaluator struct {
	rep *reputation.Tracker
	log *slog.Logger
}

// New creates an evaluator that reads faction levels through rep.
func New(rep *reputation.Tracker, log *slog.Logger) *Evaluator {
	if log == nil {
		log = logger.Discard()
	}
	if rep == nil {
		rep = reputation.New(nil)
	}
	return &Evaluator{rep: rep, log: log}
}

// Evaluate returns true if every predicate group of req holds.
// Absent groups hold vacuously.
func (ev *Evaluator) Evaluate(req types.Requirement, s *types.PlayerState) bool {
	return evalFlags(req.Flags, s) &&
		evalStats(req.Stats, s) &&
		evalAbilities(req.Abilities, s) &&
		evalInventory(req.Inventory, s) &&
		evalPerks(req.Perks, s) &&
		ev.evalReputation(req.Reputation, s)
}

// EvaluateOptional treats a nil requirement as satisfied.
func (ev *Evaluator) EvaluateOptional(req *types.Requirement, s *types.PlayerState) bool {
	if req == nil {
		return true
	}
	return ev.Evaluate(*req, s)
}

// evalFlags requires exact equality. A required nil matches only an
// absent (or nil) flag; a missing flag never matches anything else.
func evalFlags(flags map[string]any, s *types.PlayerState) bool {
	for name, want := range flags {
		got, ok := s.Flags[name]
		if want == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || !state.FlagEqual(got, want) {
			return false
		}
	}
	return true
}

func evalStats(stats map[string]types.NumberCheck, s *types.PlayerState) bool {
	for name, check := range stats {
		v, ok := effects.EffectiveStat(s, name)
		if !ok || !matchNumber(check, v) {
			return false
		}
	}
	return true
}

func evalAbilities(abilities map[string]types.NumberCheck, s *types.PlayerState) bool {
	for name, check := range abilities {
		v, ok := effects.EffectiveAbility(s, name)
		if !ok || !matchNumber(check, v) {
			return false
		}
	}
	return true
}

func evalInventory(items []string, s *types.PlayerState) bool {
	for _, id := range items {
		if !state.HasItem(s, id) {
			return false
		}
	}
	return true
}

func evalPerks(perks map[string]bool, s *types.PlayerState) bool {
	for id, want := range perks {
		if (state.PerkRank(s, id) > 0) != want {
			return false
		}
	}
	return true
}

// evalReputation compares level ordinals. Unknown and undiscovered
// factions always fail, as do unknown level names.
func (ev *Evaluator) evalReputation(checks map[string]types.ReputationCheck, s *types.PlayerState) bool {
	for id, check := range checks {
		f, ok := ev.rep.Faction(s, id)
		if !ok || !f.Discovered {
			return false
		}
		cur := ev.rep.Ordinal(f.Level)
		if check.Min != "" {
			lo := ev.rep.Ordinal(check.Min)
			if lo < 0 {
				ev.log.Warn("unknown reputation level in condition", "faction", id, "level", check.Min)
				return false
			}
			if cur < lo {
				return false
			}
		}
		if check.Max != "" {
			hi := ev.rep.Ordinal(check.Max)
			if hi < 0 {
				ev.log.Warn("unknown reputation level in condition", "faction", id, "level", check.Max)
				return false
			}
			if cur > hi {
				return false
			}
		}
	}
	return true
}

// matchNumber applies an exact or ranged numeric check.
func matchNumber(c types.NumberCheck, v int) bool {
	if c.Exact != nil && v != *c.Exact {
		return false
	}
	if c.Min != nil && v < *c.Min {
		return false
	}
	if c.Max != nil && v > *c.Max {
		return false
	}
	return true
}
