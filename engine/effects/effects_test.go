package effects

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/talecore/engine/handlers"
	"github.com/nathoo/talecore/engine/reputation"
	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/types"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// fixture wires an engine with a controllable clock and sequential ids.
type fixture struct {
	fx  *Engine
	reg *handlers.Registry
	now time.Time
	s   *types.PlayerState
}

func newFixture(t *testing.T, check Checker) *fixture {
	t.Helper()
	defs := state.NewDefs()
	defs.Factions["guard"] = types.FactionDef{ID: "guard", Name: "Guard"}

	f := &fixture{now: epoch}
	n := 0
	clock := func() time.Time { return f.now }
	f.reg = handlers.NewRegistry(nil)
	rep := reputation.New(defs, reputation.WithClock(clock))
	opts := []Option{
		WithClock(clock),
		WithIDs(func() string { n++; return fmt.Sprintf("fx-%d", n) }),
	}
	if check != nil {
		opts = append(opts, WithChecker(check))
	}
	f.fx = New(f.reg, rep, opts...)
	f.s = state.New(defs)
	return f
}

func TestAdd_AbilityModifierIsAggregated(t *testing.T) {
	f := newFixture(t, nil)
	f.s.Abilities.Strength = 4

	ns := f.fx.Add(types.EffectTemplate{
		TemplateID: "might",
		Modifiers:  types.Modifiers{Abilities: map[string]int{types.Strength: 2}},
	}, f.s)

	assert.Equal(t, 4, ns.Abilities.Strength, "base value untouched")
	v, ok := EffectiveAbility(ns, types.Strength)
	require.True(t, ok)
	assert.Equal(t, 6, v)
	assert.Equal(t, 2, f.fx.TotalAbilityModifier(types.Strength, ns))
	assert.Empty(t, f.s.Effects.Active, "input state untouched")

	eff := ns.Effects.Active[0]
	assert.Equal(t, "fx-1", eff.ID)
	assert.True(t, eff.Active)
	assert.Equal(t, epoch, eff.AppliedAt)
	assert.Equal(t, types.Permanent, eff.Duration.Kind)
	require.Len(t, ns.Effects.History, 1)
	assert.Equal(t, "might", ns.Effects.History[0].TemplateID)
}

func TestEffectiveAbility_Clamped(t *testing.T) {
	f := newFixture(t, nil)
	f.s.Abilities.Luck = 9
	ns := f.fx.Add(types.EffectTemplate{Modifiers: types.Modifiers{Abilities: map[string]int{types.Luck: 5}}}, f.s)
	v, _ := EffectiveAbility(ns, types.Luck)
	assert.Equal(t, types.AbilityMax, v)

	ns = f.fx.Add(types.EffectTemplate{Modifiers: types.Modifiers{Abilities: map[string]int{types.Luck: -20}}}, ns)
	v, _ = EffectiveAbility(ns, types.Luck)
	assert.Equal(t, types.AbilityMin, v)

	_, ok := EffectiveAbility(ns, "wisdom")
	assert.False(t, ok)
}

func TestEffectiveStats(t *testing.T) {
	f := newFixture(t, nil)
	f.s.Stats["health"] = 10
	ns := f.fx.Add(types.EffectTemplate{Modifiers: types.Modifiers{Stats: map[string]int{"health": 5, "armor": 2}}}, f.s)

	assert.Equal(t, map[string]int{"health": 15, "armor": 2}, EffectiveStats(ns))
	v, ok := EffectiveStat(ns, "armor")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = EffectiveStat(ns, "mana")
	assert.False(t, ok)
	assert.Equal(t, 5, f.fx.TotalStatModifier("health", ns))
}

func TestAdd_ApplyConditionNotMet(t *testing.T) {
	f := newFixture(t, func(types.Requirement, *types.PlayerState) bool { return false })
	ns, _, ok := f.fx.AddEffect(types.EffectTemplate{
		ApplyCondition: &types.Requirement{Inventory: []string{"lantern"}},
	}, f.s)
	assert.False(t, ok)
	assert.Same(t, f.s, ns)
}

func TestAdd_RunsOnApply(t *testing.T) {
	f := newFixture(t, nil)
	var seen *types.Effect
	f.reg.Register("glow", func(call handlers.Call, s *types.PlayerState) *types.PlayerState {
		seen = call.Effect
		return handlers.GiveItem(s, "light", 1)
	})
	ns := f.fx.Add(types.EffectTemplate{TemplateID: "lamp", OnApply: "glow"}, f.s)
	require.NotNil(t, seen)
	assert.Equal(t, "lamp", seen.TemplateID)
	assert.True(t, state.HasItem(ns, "light"))
}

func TestTemporary_ExpiresAfterSceneChanges(t *testing.T) {
	f := newFixture(t, nil)
	ns := f.fx.Add(types.EffectTemplate{
		Duration:  types.Duration{Kind: types.Temporary, Remaining: 1},
		Modifiers: types.Modifiers{Abilities: map[string]int{types.Agility: 2}},
	}, f.s)
	require.Len(t, ns.Effects.Active, 1)

	ns = f.fx.OnSceneChange("ep1", "docks", ns)
	assert.Empty(t, ns.Effects.Active)
	v, _ := EffectiveAbility(ns, types.Agility)
	assert.Equal(t, state.DefaultAbility, v)
	assert.Equal(t, epoch, ns.Effects.History[0].RemovedAt)
}

func TestTemporary_CountsDown(t *testing.T) {
	f := newFixture(t, nil)
	ns := f.fx.Add(types.EffectTemplate{Duration: types.Duration{Kind: types.Temporary, Remaining: 3}}, f.s)

	after := f.fx.OnSceneChange("ep1", "a", ns)
	require.Len(t, after.Effects.Active, 1)
	assert.Equal(t, 2, after.Effects.Active[0].Duration.Remaining)
	assert.Equal(t, 3, ns.Effects.Active[0].Duration.Remaining, "previous state untouched")

	after = f.fx.OnSceneChange("ep1", "b", after)
	after = f.fx.OnSceneChange("ep1", "c", after)
	assert.Empty(t, after.Effects.Active)
}

func TestTemporary_ZeroRemainingDefaultsToOne(t *testing.T) {
	f := newFixture(t, nil)
	eff := f.fx.Instantiate(types.EffectTemplate{Duration: types.Duration{Kind: types.Temporary}})
	assert.Equal(t, 1, eff.Duration.Remaining)
}

func TestTimed_ExpiresOnTimeCheck(t *testing.T) {
	f := newFixture(t, nil)
	ns := f.fx.Add(types.EffectTemplate{Duration: types.Duration{Kind: types.Timed, Seconds: 60}}, f.s)
	assert.Equal(t, epoch.Add(time.Minute), ns.Effects.Active[0].Duration.Until)

	f.now = epoch.Add(59 * time.Second)
	ns = f.fx.OnTimeCheck(ns)
	assert.Len(t, ns.Effects.Active, 1)

	f.now = epoch.Add(time.Minute)
	ns = f.fx.OnTimeCheck(ns)
	assert.Empty(t, ns.Effects.Active)
}

func TestConditional_SceneReference(t *testing.T) {
	f := newFixture(t, nil)
	ns := f.fx.Add(types.EffectTemplate{
		Duration: types.Duration{Kind: types.Conditional, Condition: &types.ExpiryCondition{EpisodeID: "ep1", SceneID: "night"}},
	}, f.s)

	ns = f.fx.OnSceneChange("ep1", "day", ns)
	assert.Len(t, ns.Effects.Active, 1)
	ns = f.fx.OnSceneChange("ep2", "night", ns)
	assert.Len(t, ns.Effects.Active, 1)
	ns = f.fx.OnSceneChange("ep1", "night", ns)
	assert.Empty(t, ns.Effects.Active)
}

func TestConditional_SceneWithRequirement(t *testing.T) {
	f := newFixture(t, func(req types.Requirement, s *types.PlayerState) bool {
		return state.FlagTruthy(s, "dawn")
	})
	ns := f.fx.Add(types.EffectTemplate{
		Duration: types.Duration{Kind: types.Conditional, Condition: &types.ExpiryCondition{
			SceneID:  "harbor",
			Requires: &types.Requirement{Flags: map[string]any{"dawn": true}},
		}},
	}, f.s)

	ns = f.fx.OnSceneChange("", "harbor", ns)
	assert.Len(t, ns.Effects.Active, 1)

	ns.Flags["dawn"] = true
	ns = f.fx.OnSceneChange("", "harbor", ns)
	assert.Empty(t, ns.Effects.Active)
}

func TestExpireConditional(t *testing.T) {
	f := newFixture(t, func(req types.Requirement, s *types.PlayerState) bool {
		return state.FlagTruthy(s, "cured")
	})
	ns := f.fx.Add(types.EffectTemplate{
		Duration: types.Duration{Kind: types.Conditional, Condition: &types.ExpiryCondition{
			Requires: &types.Requirement{Flags: map[string]any{"cured": true}},
		}},
	}, f.s)
	ns = f.fx.Add(types.EffectTemplate{
		Duration: types.Duration{Kind: types.Conditional, Condition: &types.ExpiryCondition{SceneID: "x"}},
	}, ns)

	ns = f.fx.ExpireConditional(ns)
	assert.Len(t, ns.Effects.Active, 2)

	ns = state.Fork(ns)
	state.CloneFlags(ns)
	ns.Flags["cured"] = true
	ns = f.fx.ExpireConditional(ns)
	require.Len(t, ns.Effects.Active, 1, "scene-bound effect is left alone")
	assert.Equal(t, "x", ns.Effects.Active[0].Duration.Condition.SceneID)
}

func TestRemove_RetractsFlagAndReputation(t *testing.T) {
	f := newFixture(t, nil)
	f.s.Flags["gate"] = "closed"

	ns := f.fx.Add(types.EffectTemplate{
		Modifiers: types.Modifiers{
			Flags:      map[string]any{"gate": "open", "pass": true},
			Reputation: map[string]int{"guard": 15},
		},
	}, f.s)
	assert.Equal(t, "open", ns.Flags["gate"])
	assert.Equal(t, true, ns.Flags["pass"])
	assert.Equal(t, types.LevelFriendly, ns.Reputation.Factions["guard"].Level)
	assert.Equal(t, 0, ns.Reputation.Factions["guard"].Value)

	ns = f.fx.Remove("fx-1", ns)
	assert.Equal(t, "closed", ns.Flags["gate"])
	_, ok := ns.Flags["pass"]
	assert.False(t, ok)
	assert.Equal(t, 0, ns.Reputation.Factions["guard"].Modifier)
	assert.Equal(t, types.LevelNeutral, ns.Reputation.Factions["guard"].Level)
	assert.Empty(t, ns.Effects.FlagBaseline)
}

func TestRemove_KeepsOverlappingEffect(t *testing.T) {
	f := newFixture(t, nil)
	ns := f.fx.Add(types.EffectTemplate{Modifiers: types.Modifiers{Flags: map[string]any{"lit": true}, Reputation: map[string]int{"guard": 5}}}, f.s)
	ns = f.fx.Add(types.EffectTemplate{Modifiers: types.Modifiers{Flags: map[string]any{"lit": "dim"}, Reputation: map[string]int{"guard": 7}}}, ns)
	assert.Equal(t, "dim", ns.Flags["lit"])
	assert.Equal(t, 12, ns.Reputation.Factions["guard"].Modifier)

	ns = f.fx.Remove("fx-2", ns)
	assert.Equal(t, true, ns.Flags["lit"], "remaining effect reapplied")
	assert.Equal(t, 5, ns.Reputation.Factions["guard"].Modifier)

	ns = f.fx.Remove("fx-1", ns)
	_, ok := ns.Flags["lit"]
	assert.False(t, ok)
}

func TestRemove_LeavesUnrelatedFlagWrites(t *testing.T) {
	f := newFixture(t, nil)
	ns := f.fx.Add(types.EffectTemplate{TemplateID: "disguise", Modifiers: types.Modifiers{Flags: map[string]any{"wanted": false}}}, f.s)
	ns = f.fx.Add(types.EffectTemplate{TemplateID: "might", Modifiers: types.Modifiers{Abilities: map[string]int{types.Strength: 1}}}, ns)
	ns.Flags["wanted"] = true

	ns = f.fx.Remove("fx-2", ns)
	assert.Equal(t, true, ns.Flags["wanted"], "removing a stat-only effect leaves flags alone")
	assert.Contains(t, ns.Effects.FlagBaseline, "wanted")

	ns = f.fx.Remove("fx-1", ns)
	_, ok := ns.Flags["wanted"]
	assert.False(t, ok, "baseline restored once the overriding effect is gone")
	assert.Empty(t, ns.Effects.FlagBaseline)
}

func TestRemove_RunsOnRemoveAfterRetraction(t *testing.T) {
	f := newFixture(t, nil)
	var flagDuringRemove any
	f.reg.Register("farewell", func(call handlers.Call, s *types.PlayerState) *types.PlayerState {
		flagDuringRemove = s.Flags["blessed"]
		return s
	})
	ns := f.fx.Add(types.EffectTemplate{OnRemove: "farewell", Modifiers: types.Modifiers{Flags: map[string]any{"blessed": true}}}, f.s)
	f.fx.Remove("fx-1", ns)
	assert.Nil(t, flagDuringRemove)
}

func TestRemove_UnknownIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	assert.Same(t, f.s, f.fx.Remove("missing", f.s))
}

func TestTrigger(t *testing.T) {
	f := newFixture(t, nil)
	var ctx map[string]any
	f.reg.Register("pulse", func(call handlers.Call, s *types.PlayerState) *types.PlayerState {
		ctx = call.Context
		return s
	})
	ns := f.fx.Add(types.EffectTemplate{OnTrigger: "pulse"}, f.s)
	f.now = epoch.Add(time.Second)
	ns = f.fx.Trigger("fx-1", map[string]any{"why": "test"}, ns)

	assert.Equal(t, map[string]any{"why": "test"}, ctx)
	eff, ok := f.fx.Find(ns, "fx-1")
	require.True(t, ok)
	assert.Equal(t, 1, eff.TriggerCount)
	assert.Equal(t, epoch.Add(time.Second), eff.LastTriggered)

	assert.Same(t, ns, f.fx.Trigger("missing", nil, ns))
}

func TestTrigger_WithoutBehaviourIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	ns := f.fx.Add(types.EffectTemplate{}, f.s)
	assert.Same(t, ns, f.fx.Trigger("fx-1", nil, ns))
}

func TestAfterCheck_TriggersMatchingAbility(t *testing.T) {
	f := newFixture(t, nil)
	calls := 0
	f.reg.Register("count", func(call handlers.Call, s *types.PlayerState) *types.PlayerState {
		calls++
		assert.Equal(t, types.Strength, call.Context["ability"])
		return s
	})
	ns := f.fx.Add(types.EffectTemplate{
		OnTrigger:      "count",
		ApplyCondition: &types.Requirement{Abilities: map[string]types.NumberCheck{types.Strength: types.AtLeast(1)}},
	}, f.s)
	ns = f.fx.Add(types.EffectTemplate{
		OnTrigger:      "count",
		ApplyCondition: &types.Requirement{Abilities: map[string]types.NumberCheck{types.Luck: types.AtLeast(1)}},
	}, ns)

	check := types.SkillCheck{Ability: types.Strength, Difficulty: 7}
	ns = f.fx.AfterCheck(check, types.CheckResult{Success: true}, ns)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, ns.Effects.Active[0].TriggerCount)
	assert.Equal(t, 0, ns.Effects.Active[1].TriggerCount)
}

func TestActive(t *testing.T) {
	f := newFixture(t, nil)
	ns := f.fx.Add(types.EffectTemplate{TemplateID: "a"}, f.s)
	ns = f.fx.Add(types.EffectTemplate{TemplateID: "b"}, ns)
	active := f.fx.Active(ns)
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].TemplateID)
	assert.Equal(t, "b", active[1].TemplateID)
}

func TestRemoveWhere(t *testing.T) {
	f := newFixture(t, nil)
	ns := f.fx.Add(types.EffectTemplate{Source: types.Source{Kind: types.SourceItem}}, f.s)
	ns = f.fx.Add(types.EffectTemplate{Source: types.Source{Kind: types.SourcePerk}}, ns)
	ns = f.fx.RemoveWhere(ns, func(e types.Effect) bool { return e.Source.Kind == types.SourceItem })
	require.Len(t, ns.Effects.Active, 1)
	assert.Equal(t, types.SourcePerk, ns.Effects.Active[0].Source.Kind)
}
