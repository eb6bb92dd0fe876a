package engine

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/loader"
	"github.com/nathoo/talecore/types"
)

const testStory = `
Story { title = "Test Harbor" }

Player {
    abilities = { strength = 6, charisma = 7, luck = 5 },
    stats = { gold = 10 },
    inventory = { "coin" },
    perk_points = 1,
    artifact_slots = 1,
}

Faction "city_guard" { name = "City Guard" }
Faction "thieves_guild" { name = "Thieves' Guild", initial = -20, hidden = true }

Effect "sea_legs" {
    name = "Sea Legs",
    duration = Temporary(1),
    modifiers = { abilities = { agility = 2 } },
}
Effect "favor" {
    name = "Guard Favor",
    modifiers = { reputation = { city_guard = 12 } },
}
Effect "curse" {
    name = "Curse",
    duration = Until { requires = { flags = { cured = true } } },
    modifiers = { stats = { gold = -5 } },
}

Perk "iron_grip" {
    name = "Iron Grip",
    requires = { abilities = { strength = 6 } },
    modifiers = { abilities = { strength = 1 } },
}
Perk "tide_charm" {
    name = "Tide Charm",
    artifact = true,
    modifiers = { abilities = { luck = 3 } },
}

NPC "keeper" {
    name = "Keeper",
    start = "hello",
    nodes = {
        hello = Node {
            text = "Welcome.",
            responses = {
                Response "help" { text = "Can I help?", next = "thanks" },
                Response "bribe" {
                    text = "A coin for you.",
                    requires = { inventory = { "coin" } },
                    on_select = { TakeItem("coin") },
                    next = END,
                },
                Response "bye" { text = "Goodbye.", next = END },
            },
        },
        thanks = Node {
            text = "Bless you.",
            on_enter = { AddEffect("favor"), SetFlag("helped", true) },
            responses = { Response "bye" { text = "Farewell.", next = END } },
        },
    },
}
`

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fixedRoller int

func (r fixedRoller) Roll(int) int { return int(r) }

func testDefs(t *testing.T) *state.Defs {
	t.Helper()
	defs, err := loader.LoadString(testStory, nil)
	require.NoError(t, err)
	return defs
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	n := 0
	base := []Option{
		WithSeed(42),
		WithClock(func() time.Time { return epoch }),
		WithIDs(func() string { n++; return fmt.Sprintf("fx-%d", n) }),
		WithRoller(fixedRoller(3)),
	}
	return New(testDefs(t), append(base, opts...)...)
}

func TestNew_InitialState(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, 6, e.State.Abilities.Strength)
	assert.Equal(t, 5, e.State.Abilities.Agility, "unset abilities default")
	assert.Equal(t, 1, e.State.Perks.Points)
	assert.True(t, state.HasItem(e.State, "coin"))
	assert.Equal(t, int64(42), e.RNG.Seed())
}

func TestStep_EmptyAndUnknown(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, []string{"What do you want to do?"}, e.Step("   ").Output)
	assert.Equal(t, []string{`I don't know how to "dance".`}, e.Step("dance").Output)
}

func TestStep_Dialogue(t *testing.T) {
	e := newTestEngine(t)

	res := e.Step("talk to keeper")
	assert.Equal(t, []string{
		"Keeper: Welcome.",
		"  1. Can I help?",
		"  2. A coin for you.",
		"  3. Goodbye.",
	}, res.Output)

	res = e.Step("1")
	assert.Equal(t, []string{"Keeper: Bless you.", "  1. Farewell."}, res.Output)
	assert.True(t, state.FlagTruthy(e.State, "helped"))

	f, ok := e.Faction("city_guard")
	require.True(t, ok)
	assert.Equal(t, 0, f.Value)
	assert.Equal(t, 12, f.Modifier)
	assert.Equal(t, types.LevelFriendly, f.Level)

	res = e.Step("say bye")
	assert.Equal(t, []string{"The conversation ends."}, res.Output)
	assert.False(t, e.State.Dialogue.Session.Active)
	assert.Equal(t, []string{"You are not talking to anyone."}, e.Step("bye").Output)
}

func TestStep_ResolvesDisplayNames(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, "Keeper: Welcome.", e.Step("talk Keeper").Output[0])
	assert.Equal(t, "Keeper: Welcome.", e.Step("look").Output[0])
	e.Step("bye")
	assert.Equal(t, []string{"You are not talking to anyone."}, e.Step("look").Output)

	assert.Equal(t, []string{"Sea Legs takes hold."}, e.Step("effect sea legs").Output)
	assert.Equal(t, []string{"City Guard now regards you as neutral."}, e.Step("adjust guard 5").Output)
	assert.Equal(t, []string{"You learn of Thieves' Guild."}, e.Step("discover thieves' guild").Output)
	assert.Equal(t, []string{"Unlocked Iron Grip rank 1."}, e.Step("unlock iron grip").Output)
}

func TestStep_DialogueChoices(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, []string{"You are not talking to anyone."}, e.Step("2").Output)
	assert.Equal(t, []string{"There is no one called ghost."}, e.Step("talk ghost").Output)

	e.Step("talk keeper")
	assert.Equal(t, []string{"That is not one of the choices."}, e.Step("9").Output)

	e.Step("2")
	assert.False(t, state.HasItem(e.State, "coin"))
	assert.False(t, e.State.Dialogue.Session.Active)

	e.Step("talk keeper")
	assert.Len(t, e.AvailableResponses("keeper"), 2, "bribe needs a coin")
	assert.Equal(t, 2, e.State.Dialogue.Memory["keeper"].TimesTalked)
	assert.Equal(t, []string{"You end the conversation."}, e.Step("end conversation").Output)
}

func TestStep_Check(t *testing.T) {
	e := newTestEngine(t)
	res := e.Step("check strength 8")
	require.NotNil(t, res.Check)
	assert.True(t, res.Check.Success)
	assert.Equal(t, []string{"Success! strength 6 + roll 3 + luck 1 + bonus 0 = 10 vs 8."}, res.Output)

	res = e.Step("roll strength 11 coin 2")
	require.NotNil(t, res.Check)
	assert.Equal(t, 2, res.Check.BonusApplied)
	assert.Equal(t, 12, res.Check.Total)

	res = e.Step("check strength")
	assert.Nil(t, res.Check)
	assert.Contains(t, res.Output[0], "Usage")
}

func TestStep_Chance(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, []string{"strength against 8: 93% chance."}, e.Step("chance strength 8").Output)
	assert.Equal(t, []string{"strength against 20 cannot succeed."}, e.Step("odds strength 20").Output)
}

func TestStep_EffectLifecycle(t *testing.T) {
	e := newTestEngine(t)

	res := e.Step("effect sea_legs")
	assert.Equal(t, []string{"Sea Legs takes hold."}, res.Output)
	assert.Equal(t, []string{"effect fx-1"}, res.Trace)
	assert.Equal(t, 7, e.EffectiveAbility(types.Agility))

	status := e.Step("status").Output
	require.Len(t, status, 2)
	assert.Equal(t, "  fx-1 [Sea Legs] 1 scene(s) left", status[1])

	assert.Equal(t, []string{"Scene advanced to ep1/docks."}, e.Step("advance ep1 docks").Output)
	assert.Equal(t, 5, e.EffectiveAbility(types.Agility))
	assert.Equal(t, []string{"No active effects."}, e.Step("status").Output)

	assert.Equal(t, []string{"Nothing happens."}, e.Step("effect unknown").Output)
}

func TestStep_RemoveAndTrigger(t *testing.T) {
	e := newTestEngine(t)
	e.Step("effect favor")
	assert.Equal(t, []string{"Guard Favor stirs."}, e.Step("trigger favor").Output)
	assert.Equal(t, []string{"Guard Favor fades."}, e.Step("remove fx-1").Output)
	assert.Equal(t, []string{"No such effect is active."}, e.Step("remove favor").Output)

	f, _ := e.Faction("city_guard")
	assert.Equal(t, types.LevelNeutral, f.Level)
}

func TestStep_ConditionalExpiresOnFlag(t *testing.T) {
	e := newTestEngine(t)
	e.Step("effect curse")
	assert.Equal(t, 5, e.EffectiveStats()["gold"])

	res := e.Step("flag cured true")
	assert.Equal(t, []string{"cured = true"}, res.Output)
	assert.Equal(t, []string{"1 conditional effect(s) expired"}, res.Trace)
	assert.Equal(t, 10, e.EffectiveStats()["gold"])
}

func TestStep_Flags(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, []string{"No flags set."}, e.Step("flags").Output)
	assert.Equal(t, []string{"door is unset."}, e.Step("flag door").Output)
	e.Step("flag door open")
	e.Step("flag visits 2")
	assert.Equal(t, []string{"door = open"}, e.Step("flag door").Output)
	assert.Equal(t, float64(2), e.State.Flags["visits"])
	assert.Equal(t, []string{"  door = open", "  visits = 2"}, e.Step("flag").Output)
}

func TestStep_Reputation(t *testing.T) {
	e := newTestEngine(t)
	out := strings.Join(e.Step("reputation").Output, "\n")
	assert.Contains(t, out, "City Guard")
	assert.NotContains(t, out, "Thieves")

	assert.Equal(t, []string{"You learn of Thieves' Guild."}, e.Step("discover thieves_guild").Output)
	out = strings.Join(e.Step("rep").Output, "\n")
	assert.Contains(t, out, "Thieves' Guild")
	assert.Contains(t, out, "unfriendly")

	assert.Equal(t, []string{"City Guard now regards you as friendly."}, e.Step("adjust city_guard 15 bravery").Output)
	hist := e.State.Reputation.History
	require.Len(t, hist, 1)
	assert.Equal(t, "bravery", hist[0].Reason)
	assert.Equal(t, epoch, hist[0].At)

	assert.Equal(t, []string{"There is no faction called nobody."}, e.Step("adjust nobody 5").Output)
	assert.Equal(t, []string{"Alignment: neutral."}, e.Step("alignment").Output)
}

func TestStep_Perks(t *testing.T) {
	e := newTestEngine(t)
	out := e.Step("perks").Output
	assert.Equal(t, "Perk points: 1. Artifact slots: 0/1.", out[0])
	assert.Len(t, out, 3)

	assert.Equal(t, []string{"Unlocked Iron Grip rank 1."}, e.Step("unlock iron_grip").Output)
	assert.Equal(t, 7, e.EffectiveAbility(types.Strength))
	assert.Equal(t, []string{"You cannot unlock that."}, e.Step("learn tide_charm").Output)

	assert.Equal(t, []string{"You now have 1 perk point(s)."}, e.Step("award 1").Output)
	assert.Equal(t, []string{"Award how many points?"}, e.Step("award none").Output)
	e.Step("unlock tide_charm")

	assert.Equal(t, []string{"You equip Tide Charm."}, e.Step("put on tide_charm").Output)
	assert.Equal(t, 8, e.EffectiveAbility(types.Luck))
	assert.Equal(t, []string{"Nothing changes."}, e.Step("equip tide_charm").Output)
	assert.Equal(t, []string{"You set aside Tide Charm."}, e.Step("take off tide_charm").Output)
	assert.Equal(t, 5, e.EffectiveAbility(types.Luck))
}

func TestStep_InventoryAndStats(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, []string{"You are carrying: coin."}, e.Step("i").Output)
	assert.Equal(t, []string{"You receive rope."}, e.Step("give rope 2").Output)
	assert.Equal(t, []string{"You are carrying: coin, rope x2."}, e.Step("inventory").Output)

	e.Step("effect sea_legs")
	stats := e.Step("stats").Output
	assert.Equal(t, "Level 1", stats[0])
	assert.Contains(t, stats, "  agility       7 (base 5)")
	assert.Contains(t, stats, "  gold         10 (+0)")
}

func TestResolveCheck_SeededIsDeterministic(t *testing.T) {
	defs := testDefs(t)
	a := New(defs, WithSeed(99))
	b := New(defs, WithSeed(99))
	check := types.SkillCheck{Ability: types.Strength, Difficulty: 9}
	for range 20 {
		assert.Equal(t, a.ResolveCheck(check), b.ResolveCheck(check))
	}
}

func TestRestore_ResumesRollSequence(t *testing.T) {
	defs := testDefs(t)
	check := types.SkillCheck{Ability: types.Strength, Difficulty: 9}

	a := New(defs, WithSeed(7))
	for range 5 {
		a.ResolveCheck(check)
	}
	seed, pos := a.RNG.Seed(), a.RNG.Position()
	snapshot := a.State

	var want []int
	for range 10 {
		want = append(want, a.ResolveCheck(check).Roll)
	}

	b := New(defs, WithSeed(1234))
	b.Restore(snapshot, seed, pos)
	var got []int
	for range 10 {
		got = append(got, b.ResolveCheck(check).Roll)
	}
	assert.Equal(t, want, got)
}

func TestServices_ApplyTemplateFromScript(t *testing.T) {
	e := newTestEngine(t)
	ns := services{e}.ApplyTemplate("favor", e.State)
	require.Len(t, ns.Effects.Active, 1)
	assert.Equal(t, "favor", ns.Effects.Active[0].TemplateID)
	assert.Same(t, e.State, services{e}.ApplyTemplate("nothing", e.State))
}
