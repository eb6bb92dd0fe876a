// Package skills computes effective ability scores and resolves
// randomized ability checks.
package skills

import (
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/nathoo/talecore/engine/effects"
	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/logger"
	"github.com/nathoo/talecore/types"
)

// Check arithmetic constants.
const (
	RollSides    = 5 // the roll is uniform in [1, RollSides]
	LuckDivisor  = 5 // luck bonus = effective luck / LuckDivisor
	MaxLuckBonus = types.AbilityMax / LuckDivisor
)

// Roller draws a uniform integer in [1, sides].
type Roller interface {
	Roll(sides int) int
}

// CheckHook runs after a check has been resolved. It may derive a new
// state but cannot change the result.
type CheckHook interface {
	AfterCheck(check types.SkillCheck, result types.CheckResult, s *types.PlayerState) *types.PlayerState
}

// Resolver is the skill-check service.
type Resolver struct {
	roller Roller
	hooks  []CheckHook
	log    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHook adds a post-check hook.
func WithHook(h CheckHook) Option {
	return func(r *Resolver) { r.hooks = append(r.hooks, h) }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a resolver drawing from roller. A nil roller uses math/rand.
func New(roller Roller, opts ...Option) *Resolver {
	if roller == nil {
		roller = randRoller{}
	}
	r := &Resolver{
		roller: roller,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EffectiveAbility is the base ability plus active modifiers, clamped to
// [1, 10]. Unknown ability names resolve to the minimum.
func (r *Resolver) EffectiveAbility(name string, s *types.PlayerState) int {
	v, ok := effects.EffectiveAbility(s, name)
	if !ok {
		r.log.Warn("unknown ability", "ability", name)
		return types.AbilityMin
	}
	return v
}

// LuckBonus is the effective luck divided by LuckDivisor.
func (r *Resolver) LuckBonus(s *types.PlayerState) int {
	return r.EffectiveAbility(types.Luck, s) / LuckDivisor
}

// Bonus returns the situational bonus that applies to check: the bonus
// value counts only if its item is carried or its flag is truthy.
func (r *Resolver) Bonus(check types.SkillCheck, s *types.PlayerState) int {
	b := check.Bonus
	if b == nil {
		return 0
	}
	switch {
	case b.ItemID != "" && state.HasItem(s, b.ItemID):
		return b.Value
	case b.Flag != "" && state.FlagTruthy(s, b.Flag):
		return b.Value
	}
	return 0
}

// Compute resolves check with a given roll. It draws nothing and runs no hooks.
func (r *Resolver) Compute(check types.SkillCheck, s *types.PlayerState, roll int) types.CheckResult {
	res := types.CheckResult{
		Ability:      check.Ability,
		AbilityValue: r.EffectiveAbility(check.Ability, s),
		Roll:         state.Clamp(roll, 1, RollSides),
		LuckBonus:    r.LuckBonus(s),
		BonusApplied: r.Bonus(check, s),
		Difficulty:   check.Difficulty,
	}
	res.Total = res.AbilityValue + res.BonusApplied + res.Roll + res.LuckBonus
	res.Success = res.Total >= check.Difficulty
	return res
}

// Resolve draws one roll, computes the result, then gives every hook the
// chance to react. The returned state carries any hook changes.
func (r *Resolver) Resolve(check types.SkillCheck, s *types.PlayerState) (types.CheckResult, *types.PlayerState) {
	res := r.Compute(check, s, r.roller.Roll(RollSides))
	r.log.Debug("skill check",
		"ability", res.Ability,
		"value", res.AbilityValue,
		"roll", res.Roll,
		"luck", res.LuckBonus,
		"bonus", res.BonusApplied,
		"total", res.Total,
		"difficulty", res.Difficulty,
		"success", res.Success)
	for _, h := range r.hooks {
		s = h.AfterCheck(check, res, s)
	}
	return res, s
}

// SuccessProbability enumerates every (roll, luck bonus) pair and returns
// the rounded percentage that reach difficulty.
func SuccessProbability(ability, difficulty int) int {
	hits, total := 0, 0
	for roll := 1; roll <= RollSides; roll++ {
		for luck := 0; luck <= MaxLuckBonus; luck++ {
			total++
			if ability+roll+luck >= difficulty {
				hits++
			}
		}
	}
	return int(math.Round(float64(hits) * 100 / float64(total)))
}

// CanEverSucceed reports whether the best roll and luck can reach difficulty.
func CanEverSucceed(ability, difficulty int) bool {
	return ability+RollSides+MaxLuckBonus >= difficulty
}

type randRoller struct{}

func (randRoller) Roll(sides int) int {
	return rand.IntN(sides) + 1
}
