// Package effects owns the lifecycle of timed and conditional modifiers:
// instantiation, expiry, removal and the modifier aggregation the
// condition evaluator and skill resolver read from.
//
// Stat and ability modifiers are never written into the base values;
// they are summed over the active set on every read. Reputation
// modifiers accumulate in each faction's Modifier field and flag
// modifiers overwrite flags, remembering the pre-effect value in the
// flag baseline. Removing an effect restores the baseline and replays
// the modifiers of the remaining effects; apply behaviours are never
// replayed.
package effects

import (
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nathoo/talecore/engine/handlers"
	"github.com/nathoo/talecore/engine/reputation"
	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/logger"
	"github.com/nathoo/talecore/types"
)

// Checker evaluates a requirement against a state.
type Checker func(req types.Requirement, s *types.PlayerState) bool

// Engine is the effect lifecycle service.
type Engine struct {
	registry *handlers.Registry
	rep      *reputation.Tracker
	check    Checker
	now      func() time.Time
	newID    func() string
	log      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithChecker sets the condition evaluator used for apply and expiry conditions.
func WithChecker(c Checker) Option {
	return func(e *Engine) { e.check = c }
}

// WithClock sets the wall-clock source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs sets the effect id generator.
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an effect engine.
func New(registry *handlers.Registry, rep *reputation.Tracker, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		rep:      rep,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = handlers.NewRegistry(e.log)
	}
	if e.rep == nil {
		e.rep = reputation.New(nil)
	}
	return e
}

// Instantiate turns a template into a fresh active effect.
func (e *Engine) Instantiate(tpl types.EffectTemplate) types.Effect {
	now := e.now()
	eff := types.Effect{
		EffectTemplate: tpl,
		ID:             e.newID(),
		Active:         true,
		AppliedAt:      now,
	}
	switch eff.Duration.Kind {
	case "":
		eff.Duration.Kind = types.Permanent
	case types.Temporary:
		if eff.Duration.Remaining <= 0 {
			eff.Duration.Remaining = 1
		}
	case types.Timed:
		if eff.Duration.Until.IsZero() {
			eff.Duration.Until = now.Add(time.Duration(eff.Duration.Seconds) * time.Second)
		}
	}
	return eff
}

// Add instantiates a template and activates it. If the template declares
// an apply condition that is not met, Add is a no-op.
func (e *Engine) Add(tpl types.EffectTemplate, s *types.PlayerState) *types.PlayerState {
	ns, _, _ := e.AddEffect(tpl, s)
	return ns
}

// AddEffect is Add that also returns the instantiated effect. ok is
// false when the apply condition was not met.
func (e *Engine) AddEffect(tpl types.EffectTemplate, s *types.PlayerState) (*types.PlayerState, types.Effect, bool) {
	if tpl.ApplyCondition != nil && !e.holds(*tpl.ApplyCondition, s) {
		e.log.Debug("effect apply condition not met", "template", tpl.TemplateID, "source", tpl.Source.ID)
		return s, types.Effect{}, false
	}
	eff := e.Instantiate(tpl)

	ns := state.Fork(s)
	state.CloneEffects(ns)
	state.CloneFlags(ns)
	state.CloneReputation(ns)
	ns.Effects.Active = append(ns.Effects.Active, eff)
	ns.Effects.History = append(ns.Effects.History, types.EffectRecord{
		EffectID:   eff.ID,
		TemplateID: eff.TemplateID,
		Source:     eff.Source,
		AppliedAt:  eff.AppliedAt,
	})
	e.applyModifiers(ns, eff)
	e.log.Debug("effect added", "effect_id", eff.ID, "template", eff.TemplateID, "duration", eff.Duration.Kind)

	ns = e.registry.Invoke(eff.OnApply, handlers.Call{Effect: &eff}, ns)
	return ns, eff, true
}

// Remove deactivates an effect, retracts its influence and runs its
// remove behaviour. Removing an unknown id is a no-op.
func (e *Engine) Remove(effectID string, s *types.PlayerState) *types.PlayerState {
	idx := indexOf(s.Effects.Active, effectID)
	if idx < 0 {
		e.log.Debug("remove of inactive effect", "effect_id", effectID)
		return s
	}
	eff := s.Effects.Active[idx]
	eff.Active = false

	ns := state.Fork(s)
	state.CloneEffects(ns)
	now := e.now()
	for i := len(ns.Effects.History) - 1; i >= 0; i-- {
		if ns.Effects.History[i].EffectID == effectID {
			ns.Effects.History[i].RemovedAt = now
			break
		}
	}
	ns.Effects.Active = slices.Delete(ns.Effects.Active, idx, idx+1)
	ns = e.recompute(ns, eff)
	e.log.Debug("effect removed", "effect_id", effectID, "template", eff.TemplateID)

	return e.registry.Invoke(eff.OnRemove, handlers.Call{Effect: &eff}, ns)
}

// RemoveWhere removes every active effect matching pred.
func (e *Engine) RemoveWhere(s *types.PlayerState, pred func(types.Effect) bool) *types.PlayerState {
	var ids []string
	for _, eff := range s.Effects.Active {
		if pred(eff) {
			ids = append(ids, eff.ID)
		}
	}
	for _, id := range ids {
		s = e.Remove(id, s)
	}
	return s
}

// recompute retracts a removed effect from a forked state. Reputation
// modifiers are rebuilt from the remaining effects in activation order.
// Only the flags the removed effect overrode are re-derived: a flag still
// overridden by a remaining effect takes the latest such value, otherwise
// it returns to its pre-effect baseline. Other flags keep whatever was
// written since.
func (e *Engine) recompute(s *types.PlayerState, removed types.Effect) *types.PlayerState {
	ns := state.Fork(s)
	state.CloneEffects(ns)
	state.CloneFlags(ns)
	state.CloneReputation(ns)

	e.rep.ResetModifiers(ns)
	for _, eff := range ns.Effects.Active {
		if !eff.Active {
			continue
		}
		for faction, delta := range eff.Modifiers.Reputation {
			e.rep.AddModifier(ns, faction, delta)
		}
	}

	for k := range removed.Modifiers.Flags {
		if v, ok := overridingValue(ns.Effects.Active, k); ok {
			ns.Flags[k] = v
			continue
		}
		b, ok := ns.Effects.FlagBaseline[k]
		if !ok {
			continue
		}
		if b.Present {
			ns.Flags[k] = b.Value
		} else {
			delete(ns.Flags, k)
		}
		delete(ns.Effects.FlagBaseline, k)
	}
	return ns
}

// overridingValue returns the value of the most recently activated effect
// that still overrides flag k.
func overridingValue(active []types.Effect, k string) (any, bool) {
	for i := len(active) - 1; i >= 0; i-- {
		if !active[i].Active {
			continue
		}
		if v, ok := active[i].Modifiers.Flags[k]; ok {
			return state.NormalizeFlag(v), true
		}
	}
	return nil, false
}

// Trigger runs an active effect's trigger behaviour with the supplied
// context. It is a no-op unless the effect is active and has one.
func (e *Engine) Trigger(effectID string, ctx map[string]any, s *types.PlayerState) *types.PlayerState {
	idx := indexOf(s.Effects.Active, effectID)
	if idx < 0 {
		return s
	}
	if eff := s.Effects.Active[idx]; !eff.Active || eff.OnTrigger == "" {
		return s
	}
	ns := state.Fork(s)
	state.CloneEffects(ns)
	eff := &ns.Effects.Active[idx]
	eff.LastTriggered = e.now()
	eff.TriggerCount++
	snapshot := *eff
	return e.registry.Invoke(snapshot.OnTrigger, handlers.Call{Effect: &snapshot, Context: ctx}, ns)
}

// OnSceneChange counts down temporary effects and expires conditional
// effects whose condition names the new episode or scene.
func (e *Engine) OnSceneChange(episodeID, sceneID string, s *types.PlayerState) *types.PlayerState {
	var expired []string
	ns := s
	forked := false
	for i, eff := range s.Effects.Active {
		if !eff.Active {
			continue
		}
		switch eff.Duration.Kind {
		case types.Temporary:
			if !forked {
				ns = state.Fork(s)
				state.CloneEffects(ns)
				forked = true
			}
			ns.Effects.Active[i].Duration.Remaining--
			if ns.Effects.Active[i].Duration.Remaining <= 0 {
				expired = append(expired, eff.ID)
			}
		case types.Conditional:
			c := eff.Duration.Condition
			if c == nil || (c.EpisodeID == "" && c.SceneID == "") {
				continue
			}
			if c.EpisodeID != "" && c.EpisodeID != episodeID {
				continue
			}
			if c.SceneID != "" && c.SceneID != sceneID {
				continue
			}
			if c.Requires != nil && !e.holds(*c.Requires, s) {
				continue
			}
			expired = append(expired, eff.ID)
		}
	}
	for _, id := range expired {
		ns = e.Remove(id, ns)
	}
	return ns
}

// OnTimeCheck expires timed effects whose deadline has passed.
func (e *Engine) OnTimeCheck(s *types.PlayerState) *types.PlayerState {
	now := e.now()
	return e.RemoveWhere(s, func(eff types.Effect) bool {
		return eff.Active && eff.Duration.Kind == types.Timed &&
			!eff.Duration.Until.IsZero() && !now.Before(eff.Duration.Until)
	})
}

// ExpireConditional removes conditional effects with no scene reference
// whose condition currently holds.
func (e *Engine) ExpireConditional(s *types.PlayerState) *types.PlayerState {
	return e.RemoveWhere(s, func(eff types.Effect) bool {
		if !eff.Active || eff.Duration.Kind != types.Conditional {
			return false
		}
		c := eff.Duration.Condition
		if c == nil || c.Requires == nil || c.EpisodeID != "" || c.SceneID != "" {
			return false
		}
		return e.holds(*c.Requires, s)
	})
}

// AfterCheck fires the trigger behaviour of every active effect whose
// apply condition references the checked ability. It never alters the
// result.
func (e *Engine) AfterCheck(check types.SkillCheck, result types.CheckResult, s *types.PlayerState) *types.PlayerState {
	var ids []string
	for _, eff := range s.Effects.Active {
		if !eff.Active || eff.OnTrigger == "" || eff.ApplyCondition == nil {
			continue
		}
		if _, ok := eff.ApplyCondition.Abilities[check.Ability]; ok {
			ids = append(ids, eff.ID)
		}
	}
	ctx := map[string]any{
		"ability":    check.Ability,
		"difficulty": check.Difficulty,
		"success":    result.Success,
		"total":      result.Total,
		"roll":       result.Roll,
	}
	for _, id := range ids {
		s = e.Trigger(id, ctx, s)
	}
	return s
}

// Find returns an active effect by id.
func (e *Engine) Find(s *types.PlayerState, effectID string) (types.Effect, bool) {
	idx := indexOf(s.Effects.Active, effectID)
	if idx < 0 {
		return types.Effect{}, false
	}
	return s.Effects.Active[idx], true
}

// Active returns the active effects in activation order.
func (e *Engine) Active(s *types.PlayerState) []types.Effect {
	out := make([]types.Effect, 0, len(s.Effects.Active))
	for _, eff := range s.Effects.Active {
		if eff.Active {
			out = append(out, eff)
		}
	}
	return out
}

// TotalStatModifier sums the stat modifier of every active effect.
func (e *Engine) TotalStatModifier(name string, s *types.PlayerState) int {
	return TotalStatModifier(s, name)
}

// TotalAbilityModifier sums the ability modifier of every active effect.
func (e *Engine) TotalAbilityModifier(name string, s *types.PlayerState) int {
	return TotalAbilityModifier(s, name)
}

// applyModifiers writes the reputation and flag overlays of one effect
// onto a forked state whose effects, flags and reputation are cloned.
func (e *Engine) applyModifiers(ns *types.PlayerState, eff types.Effect) {
	for faction, delta := range eff.Modifiers.Reputation {
		if !e.rep.AddModifier(ns, faction, delta) {
			e.log.Warn("effect modifies unknown faction", "effect_id", eff.ID, "faction", faction)
		}
	}
	keys := make([]string, 0, len(eff.Modifiers.Flags))
	for k := range eff.Modifiers.Flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, seen := ns.Effects.FlagBaseline[k]; !seen {
			old, present := ns.Flags[k]
			ns.Effects.FlagBaseline[k] = types.FlagBaseline{Value: old, Present: present}
		}
		ns.Flags[k] = state.NormalizeFlag(eff.Modifiers.Flags[k])
	}
}

func (e *Engine) holds(req types.Requirement, s *types.PlayerState) bool {
	if e.check == nil {
		return true
	}
	return e.check(req, s)
}

func indexOf(active []types.Effect, id string) int {
	for i, eff := range active {
		if eff.ID == id {
			return i
		}
	}
	return -1
}
