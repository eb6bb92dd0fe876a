// Package reputation tracks per-faction standing, the derived discrete
// levels and effect bundles, and the global alignment.
package reputation

import (
	"log/slog"
	"time"

	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/logger"
	"github.com/nathoo/talecore/types"
)

// Threshold is the inclusive lower bound of a level.
type Threshold struct {
	Level types.Level
	Min   int
}

// DefaultThresholds is the ordered level table, lowest first.
var DefaultThresholds = []Threshold{
	{types.LevelHated, -100},
	{types.LevelHostile, -75},
	{types.LevelUnfriendly, -25},
	{types.LevelNeutral, -10},
	{types.LevelFriendly, 10},
	{types.LevelRespected, 50},
	{types.LevelHonored, 75},
	{types.LevelExalted, 90},
}

// DefaultEffects maps each level to its effects bundle.
var DefaultEffects = map[types.Level]types.ReputationEffects{
	types.LevelHated:      {TradePriceModifier: 0.5},
	types.LevelHostile:    {TradePriceModifier: 0.3},
	types.LevelUnfriendly: {TradePriceModifier: 0.15, DialogueAvailable: true},
	types.LevelNeutral:    {DialogueAvailable: true, QuestsAvailable: true},
	types.LevelFriendly:   {TradePriceModifier: -0.05, DialogueAvailable: true, QuestsAvailable: true, SafePassage: true},
	types.LevelRespected:  {TradePriceModifier: -0.1, DialogueAvailable: true, QuestsAvailable: true, SafePassage: true},
	types.LevelHonored:    {TradePriceModifier: -0.15, DialogueAvailable: true, QuestsAvailable: true, SafePassage: true, CompanionAvailable: true},
	types.LevelExalted:    {TradePriceModifier: -0.25, DialogueAvailable: true, QuestsAvailable: true, SafePassage: true, CompanionAvailable: true},
}

// Default faction groups used for alignment.
var (
	DefaultCooperative = []string{"city_guard", "merchants_guild", "temple"}
	DefaultHostile     = []string{"thieves_guild", "raiders", "cult"}
)

// alignmentThreshold is the average a group must exceed for alignment to tip.
const alignmentThreshold = 25

// Tracker is the reputation service. It is stateless apart from its
// rule tables; construct once and share.
type Tracker struct {
	defs        *state.Defs
	thresholds  []Threshold
	effects     map[types.Level]types.ReputationEffects
	cooperative []string
	hostile     []string
	now         func() time.Time
	log         *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithThresholds replaces the level table. The table must be ordered lowest first.
func WithThresholds(th []Threshold) Option {
	return func(t *Tracker) { t.thresholds = th }
}

// WithEffects replaces the level effects table.
func WithEffects(e map[types.Level]types.ReputationEffects) Option {
	return func(t *Tracker) { t.effects = e }
}

// WithAlignmentGroups sets the cooperative and hostile faction sets.
func WithAlignmentGroups(cooperative, hostile []string) Option {
	return func(t *Tracker) {
		t.cooperative = cooperative
		t.hostile = hostile
	}
}

// WithClock sets the time source for history records.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.log = l
		}
	}
}

// New creates a tracker over the given faction catalog.
func New(defs *state.Defs, opts ...Option) *Tracker {
	t := &Tracker{
		defs:        defs,
		thresholds:  DefaultThresholds,
		effects:     DefaultEffects,
		cooperative: DefaultCooperative,
		hostile:     DefaultHostile,
		now:         time.Now,
		log:         logger.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LevelFor returns the last level whose threshold the value meets or exceeds.
// Values below the lowest threshold map to the lowest level.
func (t *Tracker) LevelFor(value int) types.Level {
	level := t.thresholds[0].Level
	for _, th := range t.thresholds {
		if value >= th.Min {
			level = th.Level
		}
	}
	return level
}

// EffectsFor returns the bundle for a level.
func (t *Tracker) EffectsFor(level types.Level) types.ReputationEffects {
	return t.effects[level]
}

// Ordinal returns the position of a level in the table, or -1 if unknown.
func (t *Tracker) Ordinal(level types.Level) int {
	for i, th := range t.thresholds {
		if th.Level == level {
			return i
		}
	}
	return -1
}

// Levels returns the level names in ordinal order.
func (t *Tracker) Levels() []types.Level {
	out := make([]types.Level, len(t.thresholds))
	for i, th := range t.thresholds {
		out[i] = th.Level
	}
	return out
}

// Effective returns the clamped standing including effect modifiers.
func Effective(f types.FactionReputation) int {
	return state.Clamp(f.Value+f.Modifier, types.ReputationMin, types.ReputationMax)
}

// Derive recomputes the level and effects of a faction record.
func (t *Tracker) Derive(f types.FactionReputation) types.FactionReputation {
	f.Value = state.Clamp(f.Value, types.ReputationMin, types.ReputationMax)
	f.Level = t.LevelFor(Effective(f))
	f.Effects = t.EffectsFor(f.Level)
	return f
}

// Faction returns the record for a faction, creating it from the catalog
// if the player has no record yet. ok is false for unknown factions.
func (t *Tracker) Faction(s *types.PlayerState, factionID string) (types.FactionReputation, bool) {
	if f, ok := s.Reputation.Factions[factionID]; ok {
		return f, true
	}
	if t.defs == nil {
		return types.FactionReputation{}, false
	}
	def, ok := t.defs.Factions[factionID]
	if !ok {
		return types.FactionReputation{}, false
	}
	return t.Derive(types.FactionReputation{
		ID:         def.ID,
		Name:       def.Name,
		Value:      def.Initial,
		Discovered: !def.Hidden,
	}), true
}

// Change adjusts a faction's base standing by delta, re-derives its level
// and appends a history record. Unknown factions are a no-op.
func (t *Tracker) Change(s *types.PlayerState, factionID string, delta int, reason string) *types.PlayerState {
	f, ok := t.Faction(s, factionID)
	if !ok {
		t.log.Warn("reputation change for unknown faction", "faction", factionID, "delta", delta)
		return s
	}
	before := f.Level
	f.Value = state.Clamp(f.Value+delta, types.ReputationMin, types.ReputationMax)
	f = t.Derive(f)

	ns := state.Fork(s)
	state.CloneReputation(ns)
	ns.Reputation.Factions[factionID] = f
	ns.Reputation.History = append(ns.Reputation.History, types.ReputationEvent{
		FactionID: factionID,
		At:        t.now(),
		Delta:     delta,
		Reason:    reason,
	})
	if f.Level != before {
		t.log.Debug("reputation level changed", "faction", factionID, "from", before, "to", f.Level)
	}
	return ns
}

// Discover reveals a hidden faction. Unknown factions are a no-op.
func (t *Tracker) Discover(s *types.PlayerState, factionID string) *types.PlayerState {
	f, ok := t.Faction(s, factionID)
	if !ok {
		t.log.Warn("discover for unknown faction", "faction", factionID)
		return s
	}
	if f.Discovered {
		if _, stored := s.Reputation.Factions[factionID]; stored {
			return s
		}
	}
	f.Discovered = true
	ns := state.Fork(s)
	state.CloneReputation(ns)
	ns.Reputation.Factions[factionID] = f
	return ns
}

// AddModifier adds an effect delta to a faction on an already-forked
// state whose reputation map has been cloned. It reports whether the
// faction is known.
func (t *Tracker) AddModifier(ns *types.PlayerState, factionID string, delta int) bool {
	f, ok := t.Faction(ns, factionID)
	if !ok {
		return false
	}
	f.Modifier += delta
	ns.Reputation.Factions[factionID] = t.Derive(f)
	return true
}

// ResetModifiers zeroes every effect delta on an already-forked state
// whose reputation map has been cloned.
func (t *Tracker) ResetModifiers(ns *types.PlayerState) {
	for id, f := range ns.Reputation.Factions {
		if f.Modifier == 0 {
			continue
		}
		f.Modifier = 0
		ns.Reputation.Factions[id] = t.Derive(f)
	}
}

// Alignment classifies the player from the average standing of the
// cooperative and hostile faction groups.
func (t *Tracker) Alignment(s *types.PlayerState) types.Alignment {
	coop := t.average(s, t.cooperative)
	host := t.average(s, t.hostile)
	switch {
	case coop > alignmentThreshold && host < -alignmentThreshold:
		return types.Lawful
	case coop < -alignmentThreshold && host > alignmentThreshold:
		return types.Chaotic
	default:
		return types.Neutral
	}
}

// average returns the mean effective standing over the known factions of
// a group. Unknown factions are skipped; an empty group averages 0.
func (t *Tracker) average(s *types.PlayerState, ids []string) float64 {
	sum, n := 0, 0
	for _, id := range ids {
		f, ok := t.Faction(s, id)
		if !ok {
			continue
		}
		sum += Effective(f)
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
