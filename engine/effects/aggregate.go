package effects

import (
	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/types"
)

// TotalStatModifier sums the modifier every active effect contributes to a stat.
func TotalStatModifier(s *types.PlayerState, name string) int {
	total := 0
	for _, eff := range s.Effects.Active {
		if eff.Active {
			total += eff.Modifiers.Stats[name]
		}
	}
	return total
}

// TotalAbilityModifier sums the modifier every active effect contributes to an ability.
func TotalAbilityModifier(s *types.PlayerState, name string) int {
	total := 0
	for _, eff := range s.Effects.Active {
		if eff.Active {
			total += eff.Modifiers.Abilities[name]
		}
	}
	return total
}

// EffectiveStat returns the base stat plus active modifiers. ok is false
// when neither the base stat nor any modifier exists.
func EffectiveStat(s *types.PlayerState, name string) (int, bool) {
	base, ok := s.Stats[name]
	mod := 0
	for _, eff := range s.Effects.Active {
		if !eff.Active {
			continue
		}
		if v, has := eff.Modifiers.Stats[name]; has {
			mod += v
			ok = true
		}
	}
	return base + mod, ok
}

// EffectiveStats returns every stat with active modifiers applied.
func EffectiveStats(s *types.PlayerState) map[string]int {
	out := make(map[string]int, len(s.Stats))
	for k, v := range s.Stats {
		out[k] = v
	}
	for _, eff := range s.Effects.Active {
		if !eff.Active {
			continue
		}
		for k, v := range eff.Modifiers.Stats {
			out[k] += v
		}
	}
	return out
}

// EffectiveAbility returns the base ability plus active modifiers,
// clamped to the ability range. ok is false for unknown ability names.
func EffectiveAbility(s *types.PlayerState, name string) (int, bool) {
	base, ok := s.Abilities.Get(name)
	if !ok {
		return 0, false
	}
	return state.Clamp(base+TotalAbilityModifier(s, name), types.AbilityMin, types.AbilityMax), true
}
