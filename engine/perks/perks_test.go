package perks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/talecore/engine/effects"
	"github.com/nathoo/talecore/engine/reputation"
	"github.com/nathoo/talecore/engine/rules"
	"github.com/nathoo/talecore/engine/skills"
	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/types"
)

func perkFixture() (*Manager, *effects.Engine, *types.PlayerState) {
	defs := state.NewDefs()
	defs.Factions["guild"] = types.FactionDef{ID: "guild", Name: "Guild"}
	defs.Perks["iron_grip"] = types.PerkDef{
		ID: "iron_grip", Name: "Iron Grip", MaxRank: 2,
		Requirements: types.PerkRequirements{Abilities: map[string]int{types.Strength: 6}},
		Modifiers:    types.Modifiers{Abilities: map[string]int{types.Strength: 1}},
	}
	defs.Perks["smooth_talker"] = types.PerkDef{
		ID: "smooth_talker", Name: "Smooth Talker", MaxRank: 1,
		Requirements: types.PerkRequirements{Exclusive: []string{"street_tough"}},
		Modifiers:    types.Modifiers{Reputation: map[string]int{"guild": 5}},
	}
	defs.Perks["street_tough"] = types.PerkDef{
		ID: "street_tough", Name: "Street Tough", MaxRank: 1,
		Requirements: types.PerkRequirements{Perks: []string{"iron_grip"}, Exclusive: []string{"smooth_talker"}},
	}
	defs.Perks["veteran"] = types.PerkDef{
		ID: "veteran", Name: "Veteran", MaxRank: 1,
		Requirements: types.PerkRequirements{Level: 5, Flags: map[string]any{"war": "won"}},
	}
	defs.Perks["tide_charm"] = types.PerkDef{
		ID: "tide_charm", Name: "Tide Charm", MaxRank: 1, Artifact: true,
		Modifiers: types.Modifiers{Abilities: map[string]int{types.Luck: 3}},
	}
	defs.Perks["sea_glass"] = types.PerkDef{
		ID: "sea_glass", Name: "Sea Glass", MaxRank: 1, Artifact: true,
		Modifiers: types.Modifiers{Stats: map[string]int{"health": 2}},
	}

	rep := reputation.New(defs)
	ev := rules.New(rep, nil)
	fx := effects.New(nil, rep, effects.WithChecker(ev.Evaluate))
	m := New(defs, fx, skills.New(nil), nil)

	s := state.New(defs)
	s.Abilities.Strength = 6
	s.Perks.Points = 3
	s.Perks.Slots = 1
	return m, fx, s
}

func ids(perks []types.PerkDef) []string {
	out := make([]string, len(perks))
	for i, p := range perks {
		out[i] = p.ID
	}
	return out
}

func TestAvailable(t *testing.T) {
	m, _, s := perkFixture()
	assert.Equal(t, []string{"iron_grip", "sea_glass", "smooth_talker", "tide_charm"}, ids(m.Available(s)))

	s.Abilities.Strength = 5
	assert.NotContains(t, ids(m.Available(s)), "iron_grip")
}

func TestUnlock_AppliesPermanentEffect(t *testing.T) {
	m, fx, s := perkFixture()

	ns := m.Unlock("iron_grip", s)
	assert.Equal(t, 1, m.Rank("iron_grip", ns))
	assert.Equal(t, 2, ns.Perks.Points)
	assert.Zero(t, m.Rank("iron_grip", s), "input untouched")

	active := fx.Active(ns)
	require.Len(t, active, 1)
	assert.Equal(t, "perk:iron_grip", active[0].TemplateID)
	assert.Equal(t, types.Source{Kind: types.SourcePerk, ID: "iron_grip"}, active[0].Source)
	assert.Equal(t, types.Permanent, active[0].Duration.Kind)
	v, _ := effects.EffectiveAbility(ns, types.Strength)
	assert.Equal(t, 7, v)
}

func TestUnlock_Ranks(t *testing.T) {
	m, _, s := perkFixture()
	ns := m.Unlock("iron_grip", s)
	ns = m.Unlock("iron_grip", ns)
	assert.Equal(t, 2, m.Rank("iron_grip", ns))

	capped := m.Unlock("iron_grip", ns)
	assert.Same(t, ns, capped, "max rank reached")
	assert.NotContains(t, ids(m.Available(ns)), "iron_grip")
}

func TestUnlock_Gates(t *testing.T) {
	m, _, s := perkFixture()

	assert.Same(t, s, m.Unlock("nobody", s), "unknown perk")
	assert.Same(t, s, m.Unlock("street_tough", s), "missing prerequisite")
	assert.Same(t, s, m.Unlock("veteran", s), "level and flag")

	broke := state.Fork(s)
	broke.Perks.Points = 0
	assert.Same(t, broke, m.Unlock("iron_grip", broke), "no points")
}

func TestUnlock_Exclusive(t *testing.T) {
	m, _, s := perkFixture()
	ns := m.Unlock("smooth_talker", s)
	ns = m.Unlock("iron_grip", ns)
	blocked := m.Unlock("street_tough", ns)
	assert.Same(t, ns, blocked)
	assert.Zero(t, m.Rank("street_tough", blocked))
}

func TestUnlock_ReputationModifier(t *testing.T) {
	m, _, s := perkFixture()
	ns := m.Unlock("smooth_talker", s)
	assert.Equal(t, 5, ns.Reputation.Factions["guild"].Modifier)
	assert.Equal(t, 0, ns.Reputation.Factions["guild"].Value)
}

func TestAwardPoints(t *testing.T) {
	m, _, s := perkFixture()
	ns := m.AwardPoints(2, s)
	assert.Equal(t, 5, ns.Perks.Points)
	assert.Equal(t, 3, s.Perks.Points)
	assert.Same(t, s, m.AwardPoints(0, s))
	assert.Same(t, s, m.AwardPoints(-1, s))
}

func TestArtifact_UnlockDoesNotApplyUntilEquipped(t *testing.T) {
	m, fx, s := perkFixture()
	ns := m.Unlock("tide_charm", s)
	assert.Equal(t, 1, m.Rank("tide_charm", ns))
	assert.Empty(t, fx.Active(ns))

	ns = m.Equip("tide_charm", ns)
	assert.Equal(t, []string{"tide_charm"}, ns.Perks.Equipped)
	v, _ := effects.EffectiveAbility(ns, types.Luck)
	assert.Equal(t, 8, v)

	ns = m.Unequip("tide_charm", ns)
	assert.Empty(t, ns.Perks.Equipped)
	assert.Empty(t, fx.Active(ns))
	v, _ = effects.EffectiveAbility(ns, types.Luck)
	assert.Equal(t, 5, v)
	_, pulse := ns.Flags[UnequipFlag("tide_charm")]
	assert.False(t, pulse, "unequip pulse cleared")
}

func TestEquip_Gates(t *testing.T) {
	m, _, s := perkFixture()
	assert.Same(t, s, m.Equip("tide_charm", s), "not unlocked")
	assert.Same(t, s, m.Equip("nobody", s), "unknown")

	ns := m.Unlock("iron_grip", s)
	assert.Same(t, ns, m.Equip("iron_grip", ns), "not an artifact")

	ns = m.Unlock("tide_charm", ns)
	ns = m.Unlock("sea_glass", ns)
	ns = m.Equip("tide_charm", ns)
	assert.Same(t, ns, m.Equip("tide_charm", ns), "already equipped")
	assert.Same(t, ns, m.Equip("sea_glass", ns), "no free slot")

	ns = m.Unequip("tide_charm", ns)
	ns = m.Equip("sea_glass", ns)
	assert.Equal(t, []string{"sea_glass"}, ns.Perks.Equipped)
}

func TestUnequip_NotEquippedIsNoop(t *testing.T) {
	m, _, s := perkFixture()
	assert.Same(t, s, m.Unequip("tide_charm", s))
}
