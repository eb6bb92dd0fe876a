// Package engine wires the rules services together once at startup and
// exposes them over a single authoritative PlayerState. Step drives the
// services from console commands.
package engine

import (
	"log/slog"
	"time"

	"github.com/nathoo/talecore/engine/dialogue"
	"github.com/nathoo/talecore/engine/effects"
	"github.com/nathoo/talecore/engine/handlers"
	"github.com/nathoo/talecore/engine/perks"
	"github.com/nathoo/talecore/engine/reputation"
	"github.com/nathoo/talecore/engine/rules"
	"github.com/nathoo/talecore/engine/skills"
	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/logger"
	"github.com/nathoo/talecore/types"
)

// Engine holds the content catalog, the current player state and the
// services that derive new states from it. It is not safe for concurrent
// use; callers serialize requests.
type Engine struct {
	Defs  *state.Defs
	State *types.PlayerState
	RNG   *RNG

	Handlers   *handlers.Registry
	Reputation *reputation.Tracker
	Rules      *rules.Evaluator
	Effects    *effects.Engine
	Skills     *skills.Resolver
	Perks      *perks.Manager
	Dialogue   *dialogue.Walker

	log *slog.Logger
}

type options struct {
	seed   int64
	now    func() time.Time
	newID  func() string
	roller skills.Roller
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*options)

// WithSeed seeds the skill-check RNG. Zero picks a seed from the clock.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithClock sets the time source shared by every service.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDs sets the effect id generator.
func WithIDs(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithRoller replaces the seeded RNG as the source of check rolls.
func WithRoller(r skills.Roller) Option {
	return func(o *options) { o.roller = r }
}

// WithLogger sets the diagnostics logger shared by every service.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates an engine from definitions with a fresh player state.
func New(defs *state.Defs, opts ...Option) *Engine {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Discard()
	}
	if o.seed == 0 {
		o.seed = o.now().UnixNano()
	}
	if defs == nil {
		defs = state.NewDefs()
	}

	e := &Engine{
		Defs:  defs,
		State: state.New(defs),
		RNG:   NewRNG(o.seed),
		log:   o.log,
	}

	e.Handlers = handlers.NewRegistry(o.log)
	for _, h := range defs.Handlers {
		e.Handlers.RegisterScript(h)
	}
	e.Reputation = reputation.New(defs,
		reputation.WithClock(o.now),
		reputation.WithLogger(o.log),
	)
	e.Rules = rules.New(e.Reputation, o.log)

	fxOpts := []effects.Option{
		effects.WithChecker(e.Rules.Evaluate),
		effects.WithClock(o.now),
		effects.WithLogger(o.log),
	}
	if o.newID != nil {
		fxOpts = append(fxOpts, effects.WithIDs(o.newID))
	}
	e.Effects = effects.New(e.Handlers, e.Reputation, fxOpts...)

	roller := o.roller
	if roller == nil {
		roller = rngRoller{e}
	}
	e.Skills = skills.New(roller,
		skills.WithHook(e.Effects),
		skills.WithLogger(o.log),
	)
	e.Perks = perks.New(defs, e.Effects, e.Skills, o.log)
	e.Dialogue = dialogue.New(defs, e.Rules, e.Handlers,
		dialogue.WithClock(o.now),
		dialogue.WithLogger(o.log),
	)

	e.Handlers.Bind(services{e})
	return e
}

// Restore replaces the current state and RNG, typically from a snapshot.
func (e *Engine) Restore(s *types.PlayerState, seed, position int64) {
	e.State = s
	e.RNG = RestoreRNG(seed, position)
}

// Check evaluates a requirement against the current state.
func (e *Engine) Check(req types.Requirement) bool {
	return e.Rules.Evaluate(req, e.State)
}

// EffectiveAbility returns an ability including active modifiers.
func (e *Engine) EffectiveAbility(name string) int {
	return e.Skills.EffectiveAbility(name, e.State)
}

// EffectiveStats returns every stat including active modifiers.
func (e *Engine) EffectiveStats() map[string]int {
	return effects.EffectiveStats(e.State)
}

// ResolveCheck rolls a skill check and runs the post-check hooks.
func (e *Engine) ResolveCheck(check types.SkillCheck) types.CheckResult {
	res, ns := e.Skills.Resolve(check, e.State)
	e.State = ns
	return res
}

// AddEffect applies the named effect template. ok is false when the
// template is unknown or its apply condition is not met.
func (e *Engine) AddEffect(templateID string) (types.Effect, bool) {
	tpl, found := e.Defs.Effects[templateID]
	if !found {
		e.log.Warn("unknown effect template", "template", templateID)
		return types.Effect{}, false
	}
	if tpl.TemplateID == "" {
		tpl.TemplateID = templateID
	}
	ns, eff, ok := e.Effects.AddEffect(tpl, e.State)
	e.State = ns
	return eff, ok
}

// RemoveEffect revokes an active effect.
func (e *Engine) RemoveEffect(effectID string) {
	e.State = e.Effects.Remove(effectID, e.State)
}

// TriggerEffect fires an active effect's trigger behaviour.
func (e *Engine) TriggerEffect(effectID string, ctx map[string]any) {
	e.State = e.Effects.Trigger(effectID, ctx, e.State)
}

// AdvanceScene counts down temporary effects and expires scene-bound
// conditional effects.
func (e *Engine) AdvanceScene(episodeID, sceneID string) {
	e.State = e.Effects.OnSceneChange(episodeID, sceneID, e.State)
}

// Tick expires timed effects whose deadline has passed and conditional
// effects whose condition now holds.
func (e *Engine) Tick() {
	e.State = e.Effects.OnTimeCheck(e.State)
	e.State = e.Effects.ExpireConditional(e.State)
}

// ChangeReputation adjusts a faction's standing.
func (e *Engine) ChangeReputation(factionID string, delta int, reason string) {
	e.State = e.Reputation.Change(e.State, factionID, delta, reason)
}

// Discover reveals a hidden faction.
func (e *Engine) Discover(factionID string) {
	e.State = e.Reputation.Discover(e.State, factionID)
}

// Faction returns the current standing with a faction.
func (e *Engine) Faction(factionID string) (types.FactionReputation, bool) {
	return e.Reputation.Faction(e.State, factionID)
}

// Alignment classifies the player from faction standings.
func (e *Engine) Alignment() types.Alignment {
	return e.Reputation.Alignment(e.State)
}

// AvailablePerks lists perks the player could unlock now.
func (e *Engine) AvailablePerks() []types.PerkDef {
	return e.Perks.Available(e.State)
}

// UnlockPerk unlocks the next rank of a perk.
func (e *Engine) UnlockPerk(perkID string) {
	e.State = e.Perks.Unlock(perkID, e.State)
}

// AwardPoints grants spendable perk points.
func (e *Engine) AwardPoints(n int) {
	e.State = e.Perks.AwardPoints(n, e.State)
}

// Equip puts an unlocked artifact perk into a slot.
func (e *Engine) Equip(perkID string) {
	e.State = e.Perks.Equip(perkID, e.State)
}

// Unequip frees an artifact slot and retracts the artifact's modifiers.
func (e *Engine) Unequip(perkID string) {
	e.State = e.Perks.Unequip(perkID, e.State)
}

// StartDialogue opens a conversation with an NPC.
func (e *Engine) StartDialogue(npcID string) {
	e.State = e.Dialogue.Start(npcID, e.State)
}

// SelectResponse picks a response in the open conversation.
func (e *Engine) SelectResponse(npcID, responseID string) {
	e.State = e.Dialogue.Select(npcID, responseID, e.State)
}

// AvailableResponses lists the responses the player may pick now.
func (e *Engine) AvailableResponses(npcID string) []types.DialogueResponse {
	return e.Dialogue.Available(npcID, e.State)
}

// EndDialogue closes the open conversation.
func (e *Engine) EndDialogue() {
	e.State = e.Dialogue.End(e.State)
}

// services exposes engine operations to scripted handlers without
// touching e.State: handlers thread the state they are given.
type services struct{ e *Engine }

func (sv services) Check(req types.Requirement, s *types.PlayerState) bool {
	return sv.e.Rules.Evaluate(req, s)
}

func (sv services) ApplyTemplate(templateID string, s *types.PlayerState) *types.PlayerState {
	tpl, ok := sv.e.Defs.Effects[templateID]
	if !ok {
		sv.e.log.Warn("unknown effect template", "template", templateID)
		return s
	}
	if tpl.TemplateID == "" {
		tpl.TemplateID = templateID
	}
	return sv.e.Effects.Add(tpl, s)
}

func (sv services) ChangeReputation(factionID string, delta int, reason string, s *types.PlayerState) *types.PlayerState {
	return sv.e.Reputation.Change(s, factionID, delta, reason)
}

// rngRoller reads the engine's current RNG so Restore takes effect
// without rewiring the resolver.
type rngRoller struct{ e *Engine }

func (r rngRoller) Roll(sides int) int {
	return r.e.RNG.Roll(sides)
}
