package reputation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/types"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func testTracker() (*Tracker, *types.PlayerState) {
	defs := state.NewDefs()
	defs.Factions["city_guard"] = types.FactionDef{ID: "city_guard", Name: "City Guard"}
	defs.Factions["merchants_guild"] = types.FactionDef{ID: "merchants_guild", Name: "Merchants", Initial: 20}
	defs.Factions["temple"] = types.FactionDef{ID: "temple", Name: "Temple"}
	defs.Factions["thieves_guild"] = types.FactionDef{ID: "thieves_guild", Name: "Thieves", Initial: -20, Hidden: true}
	defs.Factions["raiders"] = types.FactionDef{ID: "raiders", Name: "Raiders"}
	defs.Factions["cult"] = types.FactionDef{ID: "cult", Name: "Cult"}
	t := New(defs, WithClock(func() time.Time { return epoch }))
	return t, state.New(defs)
}

func TestLevelFor_Boundaries(t *testing.T) {
	tr := New(nil)
	cases := []struct {
		value int
		want  types.Level
	}{
		{-100, types.LevelHated},
		{-76, types.LevelHated},
		{-75, types.LevelHostile},
		{-26, types.LevelHostile},
		{-25, types.LevelUnfriendly},
		{-11, types.LevelUnfriendly},
		{-10, types.LevelNeutral},
		{0, types.LevelNeutral},
		{9, types.LevelNeutral},
		{10, types.LevelFriendly},
		{49, types.LevelFriendly},
		{50, types.LevelRespected},
		{75, types.LevelHonored},
		{89, types.LevelHonored},
		{90, types.LevelExalted},
		{100, types.LevelExalted},
		{-500, types.LevelHated},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tr.LevelFor(tc.value), "value %d", tc.value)
	}
}

func TestEffectsFor(t *testing.T) {
	tr := New(nil)
	hostile := tr.EffectsFor(types.LevelHostile)
	assert.False(t, hostile.DialogueAvailable)
	assert.InDelta(t, 0.3, hostile.TradePriceModifier, 1e-9)

	honored := tr.EffectsFor(types.LevelHonored)
	assert.True(t, honored.CompanionAvailable)
	assert.True(t, honored.SafePassage)
}

func TestOrdinalAndLevels(t *testing.T) {
	tr := New(nil)
	assert.Equal(t, 0, tr.Ordinal(types.LevelHated))
	assert.Equal(t, 7, tr.Ordinal(types.LevelExalted))
	assert.Equal(t, -1, tr.Ordinal("beloved"))
	assert.Len(t, tr.Levels(), 8)
	assert.Equal(t, types.LevelNeutral, tr.Levels()[3])
}

func TestFaction_LazyFromCatalog(t *testing.T) {
	tr, s := testTracker()

	f, ok := tr.Faction(s, "merchants_guild")
	require.True(t, ok)
	assert.Equal(t, 20, f.Value)
	assert.Equal(t, types.LevelFriendly, f.Level)
	assert.True(t, f.Discovered)

	hidden, ok := tr.Faction(s, "thieves_guild")
	require.True(t, ok)
	assert.False(t, hidden.Discovered)
	assert.Equal(t, types.LevelUnfriendly, hidden.Level)

	_, ok = tr.Faction(s, "nobody")
	assert.False(t, ok)
}

func TestChange(t *testing.T) {
	tr, s := testTracker()

	ns := tr.Change(s, "city_guard", 15, "rescued a guard")
	f := ns.Reputation.Factions["city_guard"]
	assert.Equal(t, 15, f.Value)
	assert.Equal(t, types.LevelFriendly, f.Level)
	assert.True(t, f.Effects.SafePassage)

	require.Len(t, ns.Reputation.History, 1)
	assert.Equal(t, types.ReputationEvent{FactionID: "city_guard", At: epoch, Delta: 15, Reason: "rescued a guard"}, ns.Reputation.History[0])

	assert.Empty(t, s.Reputation.Factions, "original untouched")
	assert.Empty(t, s.Reputation.History)
}

func TestChange_Clamps(t *testing.T) {
	tr, s := testTracker()
	ns := tr.Change(s, "city_guard", 250, "")
	assert.Equal(t, types.ReputationMax, ns.Reputation.Factions["city_guard"].Value)
	ns = tr.Change(ns, "city_guard", -500, "")
	assert.Equal(t, types.ReputationMin, ns.Reputation.Factions["city_guard"].Value)
	assert.Equal(t, types.LevelHated, ns.Reputation.Factions["city_guard"].Level)
}

func TestChange_UnknownFaction(t *testing.T) {
	tr, s := testTracker()
	ns := tr.Change(s, "nobody", 10, "")
	assert.Same(t, s, ns)
}

func TestDiscover(t *testing.T) {
	tr, s := testTracker()
	ns := tr.Discover(s, "thieves_guild")
	assert.True(t, ns.Reputation.Factions["thieves_guild"].Discovered)

	again := tr.Discover(ns, "thieves_guild")
	assert.Same(t, ns, again, "already discovered is a no-op")

	assert.Same(t, s, tr.Discover(s, "nobody"))
}

func TestModifiers(t *testing.T) {
	tr, s := testTracker()
	ns := state.Fork(s)
	state.CloneReputation(ns)

	require.True(t, tr.AddModifier(ns, "city_guard", 12))
	f := ns.Reputation.Factions["city_guard"]
	assert.Equal(t, 0, f.Value, "base unchanged")
	assert.Equal(t, 12, f.Modifier)
	assert.Equal(t, types.LevelFriendly, f.Level)
	assert.Equal(t, 12, Effective(f))

	assert.False(t, tr.AddModifier(ns, "nobody", 5))

	tr.ResetModifiers(ns)
	f = ns.Reputation.Factions["city_guard"]
	assert.Zero(t, f.Modifier)
	assert.Equal(t, types.LevelNeutral, f.Level)
}

func TestEffective_Clamped(t *testing.T) {
	assert.Equal(t, 100, Effective(types.FactionReputation{Value: 95, Modifier: 20}))
	assert.Equal(t, -100, Effective(types.FactionReputation{Value: -95, Modifier: -20}))
}

func TestAlignment(t *testing.T) {
	tr, s := testTracker()
	assert.Equal(t, types.Neutral, tr.Alignment(s))

	lawful := s
	for _, id := range DefaultCooperative {
		lawful = tr.Change(lawful, id, 40, "")
	}
	for _, id := range []string{"thieves_guild", "raiders", "cult"} {
		lawful = tr.Change(lawful, id, -40, "")
	}
	assert.Equal(t, types.Lawful, tr.Alignment(lawful))

	chaotic := s
	for _, id := range DefaultCooperative {
		chaotic = tr.Change(chaotic, id, -60, "")
	}
	for _, id := range DefaultHostile {
		chaotic = tr.Change(chaotic, id, 60, "")
	}
	assert.Equal(t, types.Chaotic, tr.Alignment(chaotic))
}

func TestAlignment_CustomGroups(t *testing.T) {
	tr, s := testTracker()
	tr = New(tr.defs, WithAlignmentGroups([]string{"temple"}, []string{"cult"}))
	s = tr.Change(s, "temple", 30, "")
	s = tr.Change(s, "cult", -30, "")
	assert.Equal(t, types.Lawful, tr.Alignment(s))
}
