// Package perks gates acquisition of permanent upgrades and turns them
// into effect engine entries.
package perks

import (
	"log/slog"
	"slices"
	"sort"

	"github.com/nathoo/talecore/engine/effects"
	"github.com/nathoo/talecore/engine/skills"
	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/logger"
	"github.com/nathoo/talecore/types"
)

// UnequipFlag is the pulse flag that ends an equipped artifact's effect.
func UnequipFlag(perkID string) string {
	return "unequip:" + perkID
}

// Manager is the perk service.
type Manager struct {
	defs   *state.Defs
	fx     *effects.Engine
	skills *skills.Resolver
	log    *slog.Logger
}

// New creates a perk manager over the perk catalog in defs.
func New(defs *state.Defs, fx *effects.Engine, sk *skills.Resolver, log *slog.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	if defs == nil {
		defs = state.NewDefs()
	}
	return &Manager{defs: defs, fx: fx, skills: sk, log: log}
}

// Rank returns the unlocked rank of a perk.
func (m *Manager) Rank(perkID string, s *types.PlayerState) int {
	return state.PerkRank(s, perkID)
}

// Available returns the perks that can be unlocked now, ordered by id.
func (m *Manager) Available(s *types.PlayerState) []types.PerkDef {
	var out []types.PerkDef
	for _, p := range m.defs.Perks {
		if state.PerkRank(s, p.ID) >= maxRank(p) {
			continue
		}
		if m.meets(p, s) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// meets checks level, abilities, prerequisites, flags and exclusions.
func (m *Manager) meets(p types.PerkDef, s *types.PlayerState) bool {
	req := p.Requirements
	if s.Level < req.Level {
		return false
	}
	for name, lo := range req.Abilities {
		if m.skills.EffectiveAbility(name, s) < lo {
			return false
		}
	}
	for _, pre := range req.Perks {
		if state.PerkRank(s, pre) <= 0 {
			return false
		}
	}
	for name, want := range req.Flags {
		got, ok := s.Flags[name]
		if !ok || !state.FlagEqual(got, want) {
			return false
		}
	}
	for _, ex := range req.Exclusive {
		if state.PerkRank(s, ex) > 0 {
			return false
		}
	}
	return true
}

// Unlock spends a point to raise a perk one rank. Non-artifact perks
// register a permanent effect carrying the perk's modifiers; artifact
// modifiers apply only while equipped.
func (m *Manager) Unlock(perkID string, s *types.PlayerState) *types.PlayerState {
	p, ok := m.defs.Perks[perkID]
	if !ok {
		m.log.Warn("unlock of unknown perk", "perk", perkID)
		return s
	}
	rank := state.PerkRank(s, perkID)
	switch {
	case s.Perks.Points <= 0:
		m.log.Debug("no perk points", "perk", perkID)
		return s
	case rank >= maxRank(p):
		m.log.Debug("perk at max rank", "perk", perkID, "rank", rank)
		return s
	case !m.meets(p, s):
		m.log.Debug("perk requirements not met", "perk", perkID)
		return s
	}

	ns := state.Fork(s)
	state.ClonePerks(ns)
	ns.Perks.Points--
	ns.Perks.Ranks[perkID] = rank + 1
	m.log.Info("perk unlocked", "perk", perkID, "rank", rank+1)

	if p.Artifact {
		return ns
	}
	return m.fx.Add(types.EffectTemplate{
		TemplateID: "perk:" + perkID,
		Name:       p.Name,
		Source:     types.Source{Kind: types.SourcePerk, ID: perkID},
		Duration:   types.Duration{Kind: types.Permanent},
		Modifiers:  p.Modifiers,
	}, ns)
}

// AwardPoints adds spendable perk points.
func (m *Manager) AwardPoints(n int, s *types.PlayerState) *types.PlayerState {
	if n <= 0 {
		return s
	}
	ns := state.Fork(s)
	ns.Perks.Points += n
	return ns
}

// Equip activates an unlocked artifact perk in a free slot.
func (m *Manager) Equip(perkID string, s *types.PlayerState) *types.PlayerState {
	p, ok := m.defs.Perks[perkID]
	switch {
	case !ok:
		m.log.Warn("equip of unknown perk", "perk", perkID)
		return s
	case !p.Artifact:
		m.log.Warn("equip of non-artifact perk", "perk", perkID)
		return s
	case state.PerkRank(s, perkID) <= 0:
		m.log.Debug("artifact not unlocked", "perk", perkID)
		return s
	case state.IsEquipped(s, perkID):
		return s
	case len(s.Perks.Equipped) >= s.Perks.Slots:
		m.log.Debug("no free artifact slot", "perk", perkID, "slots", s.Perks.Slots)
		return s
	}

	ns := state.Fork(s)
	state.ClonePerks(ns)
	ns.Perks.Equipped = append(ns.Perks.Equipped, perkID)
	return m.fx.Add(types.EffectTemplate{
		TemplateID: artifactTemplate(perkID),
		Name:       p.Name,
		Source:     types.Source{Kind: types.SourcePerk, ID: perkID},
		Duration: types.Duration{
			Kind: types.Conditional,
			Condition: &types.ExpiryCondition{
				Requires: &types.Requirement{Flags: map[string]any{UnequipFlag(perkID): true}},
			},
		},
		Modifiers: p.Modifiers,
	}, ns)
}

// Unequip pulses the artifact's unequip flag so its conditional effect
// expires, then clears the pulse and frees the slot.
func (m *Manager) Unequip(perkID string, s *types.PlayerState) *types.PlayerState {
	if !state.IsEquipped(s, perkID) {
		return s
	}
	flag := UnequipFlag(perkID)

	ns := state.Fork(s)
	state.CloneFlags(ns)
	ns.Flags[flag] = true
	ns = m.fx.ExpireConditional(ns)
	ns = m.fx.RemoveWhere(ns, func(eff types.Effect) bool {
		return eff.TemplateID == artifactTemplate(perkID)
	})

	ns = state.Fork(ns)
	state.CloneFlags(ns)
	delete(ns.Flags, flag)
	state.ClonePerks(ns)
	ns.Perks.Equipped = slices.DeleteFunc(ns.Perks.Equipped, func(id string) bool { return id == perkID })
	return ns
}

func artifactTemplate(perkID string) string {
	return "artifact:" + perkID
}

func maxRank(p types.PerkDef) int {
	if p.MaxRank <= 0 {
		return 1
	}
	return p.MaxRank
}
