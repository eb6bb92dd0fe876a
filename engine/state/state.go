// Package state holds the read-only content catalog and the copy-on-write
// helpers every rules component uses to derive a new PlayerState.
package state

import (
	"maps"
	"slices"

	"github.com/nathoo/talecore/types"
)

// Defs holds the immutable content definitions loaded from Lua.
type Defs struct {
	Story    types.StoryDef
	Player   types.PlayerStart
	Factions map[string]types.FactionDef
	Perks    map[string]types.PerkDef
	NPCs     map[string]types.NPCDef
	Effects  map[string]types.EffectTemplate
	Handlers map[string]types.HandlerDef
}

// Default starting values used when the content leaves them unset.
const (
	DefaultAbility       = 5
	DefaultLevel         = 1
	DefaultArtifactSlots = 3
)

// NewDefs returns an empty catalog with all maps allocated.
func NewDefs() *Defs {
	return &Defs{
		Factions: map[string]types.FactionDef{},
		Perks:    map[string]types.PerkDef{},
		NPCs:     map[string]types.NPCDef{},
		Effects:  map[string]types.EffectTemplate{},
		Handlers: map[string]types.HandlerDef{},
	}
}

// New creates a fresh player state from definitions. Faction, memory and
// perk records are created lazily by the components that own them.
func New(defs *Defs) *types.PlayerState {
	start := types.PlayerStart{}
	if defs != nil {
		start = defs.Player
	}
	s := &types.PlayerState{
		Level:     start.Level,
		Flags:     map[string]any{},
		Stats:     map[string]int{},
		Abilities: start.Abilities,
		Inventory: []types.Item{},
		Perks: types.PerkProgress{
			Ranks:  map[string]int{},
			Points: start.PerkPoints,
			Slots:  start.ArtifactSlots,
		},
		Reputation: types.ReputationState{Factions: map[string]types.FactionReputation{}},
		Effects:    types.EffectsState{Active: []types.Effect{}},
		Dialogue:   types.DialogueState{Memory: map[string]types.NPCMemory{}},
	}
	if s.Level == 0 {
		s.Level = DefaultLevel
	}
	if s.Perks.Slots == 0 {
		s.Perks.Slots = DefaultArtifactSlots
	}
	for _, name := range types.AbilityNames {
		v, _ := s.Abilities.Get(name)
		if v == 0 {
			v = DefaultAbility
		}
		s.Abilities = s.Abilities.With(name, Clamp(v, types.AbilityMin, types.AbilityMax))
	}
	maps.Copy(s.Stats, start.Stats)
	for k, v := range start.Flags {
		s.Flags[k] = NormalizeFlag(v)
	}
	s.Inventory = append(s.Inventory, start.Inventory...)
	return s
}

// Fork returns a shallow copy of s. Callers clone each substructure they
// are about to modify with the Clone helpers below; untouched
// substructures stay shared with s.
func Fork(s *types.PlayerState) *types.PlayerState {
	if s == nil {
		return New(nil)
	}
	ns := *s
	return &ns
}

// CloneFlags copies the flag map, allocating it if absent.
func CloneFlags(s *types.PlayerState) {
	s.Flags = cloneOrMake(s.Flags)
}

// CloneStats copies the stat map, allocating it if absent.
func CloneStats(s *types.PlayerState) {
	s.Stats = cloneOrMake(s.Stats)
}

// CloneInventory copies the inventory slice.
func CloneInventory(s *types.PlayerState) {
	s.Inventory = slices.Clone(s.Inventory)
}

// ClonePerks copies the perk progress record.
func ClonePerks(s *types.PlayerState) {
	s.Perks.Ranks = cloneOrMake(s.Perks.Ranks)
	s.Perks.Equipped = slices.Clone(s.Perks.Equipped)
}

// CloneReputation copies the faction map and history.
func CloneReputation(s *types.PlayerState) {
	s.Reputation.Factions = cloneOrMake(s.Reputation.Factions)
	s.Reputation.History = slices.Clone(s.Reputation.History)
}

// CloneEffects copies the active set, history and flag baseline.
func CloneEffects(s *types.PlayerState) {
	s.Effects.Active = slices.Clone(s.Effects.Active)
	if s.Effects.Active == nil {
		s.Effects.Active = []types.Effect{}
	}
	s.Effects.History = slices.Clone(s.Effects.History)
	s.Effects.FlagBaseline = cloneOrMake(s.Effects.FlagBaseline)
}

// CloneDialogue copies the NPC memory map. Individual memories are
// copied by CloneMemory when touched.
func CloneDialogue(s *types.PlayerState) {
	s.Dialogue.Memory = cloneOrMake(s.Dialogue.Memory)
}

// CloneMemory returns a copy of one NPC memory with its own flag map.
func CloneMemory(m types.NPCMemory) types.NPCMemory {
	m.Flags = cloneOrMake(m.Flags)
	return m
}

func cloneOrMake[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return map[K]V{}
	}
	return maps.Clone(m)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// GetFlag returns the value of a flag and whether it is set.
func GetFlag(s *types.PlayerState, name string) (any, bool) {
	v, ok := s.Flags[name]
	return v, ok
}

// FlagTruthy reports whether a flag is set to a truthy value.
// Unset flags are false.
func FlagTruthy(s *types.PlayerState, name string) bool {
	v, ok := s.Flags[name]
	return ok && Truthy(v)
}

// Truthy applies the usual truthiness rules to a flag value:
// false, 0, "" and nil are false; everything else is true.
func Truthy(v any) bool {
	switch x := NormalizeFlag(v).(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

// NormalizeFlag converts numeric flag values to float64 so values compare
// equal regardless of where they came from (Lua, JSON or Go literals).
func NormalizeFlag(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// FlagEqual compares two flag values after normalization.
func FlagEqual(a, b any) bool {
	a, b = NormalizeFlag(a), NormalizeFlag(b)
	switch a.(type) {
	case nil:
		return b == nil
	case bool, float64, string:
		return a == b
	default:
		return false
	}
}

// ItemQuantity returns how many of an item the player carries.
func ItemQuantity(s *types.PlayerState, itemID string) int {
	total := 0
	for _, it := range s.Inventory {
		if it.ID == itemID {
			total += it.Quantity
		}
	}
	return total
}

// HasItem returns true if the player has at least one of the given item.
func HasItem(s *types.PlayerState, itemID string) bool {
	return ItemQuantity(s, itemID) >= 1
}

// PerkRank returns the unlocked rank of a perk. Unknown perks return 0.
func PerkRank(s *types.PlayerState, perkID string) int {
	return s.Perks.Ranks[perkID]
}

// IsEquipped reports whether an artifact perk is equipped.
func IsEquipped(s *types.PlayerState, perkID string) bool {
	return slices.Contains(s.Perks.Equipped, perkID)
}
