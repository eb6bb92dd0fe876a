// Package types defines the shared data structures for the TaleCore engine.
// This package contains only type definitions and a few value accessors.
package types

import "time"

// The six fixed ability names.
const (
	Strength     = "strength"
	Intelligence = "intelligence"
	Charisma     = "charisma"
	Perception   = "perception"
	Agility      = "agility"
	Luck         = "luck"
)

// AbilityNames lists the abilities in display order.
var AbilityNames = []string{Strength, Intelligence, Charisma, Perception, Agility, Luck}

// Ability score bounds.
const (
	AbilityMin = 1
	AbilityMax = 10
)

// Abilities holds the six base ability scores.
type Abilities struct {
	Strength     int `json:"strength"`
	Intelligence int `json:"intelligence"`
	Charisma     int `json:"charisma"`
	Perception   int `json:"perception"`
	Agility      int `json:"agility"`
	Luck         int `json:"luck"`
}

// Get returns the named ability and whether the name is known.
func (a Abilities) Get(name string) (int, bool) {
	switch name {
	case Strength:
		return a.Strength, true
	case Intelligence:
		return a.Intelligence, true
	case Charisma:
		return a.Charisma, true
	case Perception:
		return a.Perception, true
	case Agility:
		return a.Agility, true
	case Luck:
		return a.Luck, true
	}
	return 0, false
}

// With returns a copy with the named ability replaced. Unknown names are ignored.
func (a Abilities) With(name string, value int) Abilities {
	switch name {
	case Strength:
		a.Strength = value
	case Intelligence:
		a.Intelligence = value
	case Charisma:
		a.Charisma = value
	case Perception:
		a.Perception = value
	case Agility:
		a.Agility = value
	case Luck:
		a.Luck = value
	}
	return a
}

// Item is one inventory record.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Quantity int    `json:"quantity"`
}

// PlayerState is the root value threaded through every operation.
// Operations never mutate a PlayerState they receive; they return a new one.
type PlayerState struct {
	Level      int             `json:"level"`
	Flags      map[string]any  `json:"flags"`
	Stats      map[string]int  `json:"stats"`
	Abilities  Abilities       `json:"abilities"`
	Inventory  []Item          `json:"inventory"`
	Perks      PerkProgress    `json:"perks"`
	Reputation ReputationState `json:"reputation"`
	Effects    EffectsState    `json:"effects"`
	Dialogue   DialogueState   `json:"dialogue"`
}

// Requirement is a conjunction of optional predicate groups.
// An absent group is satisfied vacuously.
type Requirement struct {
	Flags      map[string]any             `json:"flags,omitempty"`
	Stats      map[string]NumberCheck     `json:"stats,omitempty"`
	Abilities  map[string]NumberCheck     `json:"abilities,omitempty"`
	Inventory  []string                   `json:"inventory,omitempty"`
	Perks      map[string]bool            `json:"perks,omitempty"`
	Reputation map[string]ReputationCheck `json:"reputation,omitempty"`
}

// NumberCheck is either an exact value or an inclusive {min, max} range.
type NumberCheck struct {
	Exact *int `json:"exact,omitempty"`
	Min   *int `json:"min,omitempty"`
	Max   *int `json:"max,omitempty"`
}

// ReputationCheck compares a faction's level ordinal against Min and Max.
// A bare level name is an exact minimum.
type ReputationCheck struct {
	Min Level `json:"min,omitempty"`
	Max Level `json:"max,omitempty"`
}

// Level is a discrete reputation level name.
type Level string

const (
	LevelHated      Level = "hated"
	LevelHostile    Level = "hostile"
	LevelUnfriendly Level = "unfriendly"
	LevelNeutral    Level = "neutral"
	LevelFriendly   Level = "friendly"
	LevelRespected  Level = "respected"
	LevelHonored    Level = "honored"
	LevelExalted    Level = "exalted"
)

// Reputation value bounds.
const (
	ReputationMin = -100
	ReputationMax = 100
)

// ReputationEffects is the bundle derived from a reputation level.
type ReputationEffects struct {
	TradePriceModifier float64 `json:"trade_price_modifier"`
	DialogueAvailable  bool    `json:"dialogue_available"`
	QuestsAvailable    bool    `json:"quests_available"`
	SafePassage        bool    `json:"safe_passage"`
	CompanionAvailable bool    `json:"companion_available"`
}

// FactionReputation is the standing with one faction. Value is the base
// standing; Modifier is the sum of active effect deltas. Level and Effects
// are derived from the clamped sum.
type FactionReputation struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Value      int               `json:"value"`
	Modifier   int               `json:"modifier,omitempty"`
	Level      Level             `json:"level"`
	Effects    ReputationEffects `json:"effects"`
	Discovered bool              `json:"discovered"`
}

// ReputationEvent records one reputation change.
type ReputationEvent struct {
	FactionID string    `json:"faction_id"`
	At        time.Time `json:"at"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason,omitempty"`
}

// ReputationState holds all faction standings and their change history.
type ReputationState struct {
	Factions map[string]FactionReputation `json:"factions"`
	History  []ReputationEvent            `json:"history,omitempty"`
}

// Alignment is the global moral standing derived from reputation.
type Alignment string

const (
	Lawful  Alignment = "lawful"
	Neutral Alignment = "neutral"
	Chaotic Alignment = "chaotic"
)

// PerkProgress tracks unlocked perk ranks, spendable points, and equipped artifacts.
type PerkProgress struct {
	Ranks    map[string]int `json:"ranks"`
	Points   int            `json:"points"`
	Equipped []string       `json:"equipped,omitempty"`
	Slots    int            `json:"slots"`
}

// SourceKind is the originating category of an effect.
type SourceKind string

const (
	SourcePerk     SourceKind = "perk"
	SourceItem     SourceKind = "item"
	SourceQuest    SourceKind = "quest"
	SourceEvent    SourceKind = "event"
	SourceDialogue SourceKind = "dialogue"
	SourceSkill    SourceKind = "skill"
	SourceScene    SourceKind = "scene"
)

// Source identifies where an effect came from.
type Source struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

// DurationKind selects the expiry rule of an effect.
type DurationKind string

const (
	Permanent   DurationKind = "permanent"
	Temporary   DurationKind = "temporary"
	Timed       DurationKind = "timed"
	Conditional DurationKind = "conditional"
)

// Duration is exactly one expiry variant, selected by Kind.
type Duration struct {
	Kind      DurationKind     `json:"kind"`
	Remaining int              `json:"remaining,omitempty"`
	Until     time.Time        `json:"until,omitzero"`
	Seconds   int              `json:"seconds,omitempty"` // templates: Until = applied + Seconds
	Condition *ExpiryCondition `json:"condition,omitempty"`
}

// ExpiryCondition ends a conditional effect. When EpisodeID or SceneID is
// set, it is checked on scene changes; otherwise it is checked whenever
// conditional effects are swept.
type ExpiryCondition struct {
	EpisodeID string       `json:"episode_id,omitempty"`
	SceneID   string       `json:"scene_id,omitempty"`
	Requires  *Requirement `json:"requires,omitempty"`
}

// Modifiers are the deltas and overrides an effect contributes.
type Modifiers struct {
	Stats      map[string]int `json:"stats,omitempty"`
	Abilities  map[string]int `json:"abilities,omitempty"`
	Reputation map[string]int `json:"reputation,omitempty"`
	Flags      map[string]any `json:"flags,omitempty"`
}

// EffectTemplate is authored effect content. Behaviour fields hold handler ids.
type EffectTemplate struct {
	TemplateID     string       `json:"template_id,omitempty"`
	Name           string       `json:"name,omitempty"`
	Source         Source       `json:"source"`
	Duration       Duration     `json:"duration"`
	Modifiers      Modifiers    `json:"modifiers"`
	ApplyCondition *Requirement `json:"apply_condition,omitempty"`
	OnApply        string       `json:"on_apply,omitempty"`
	OnRemove       string       `json:"on_remove,omitempty"`
	OnTrigger      string       `json:"on_trigger,omitempty"`
}

// Effect is an instantiated template with bookkeeping.
type Effect struct {
	EffectTemplate
	ID            string    `json:"id"`
	Active        bool      `json:"active"`
	AppliedAt     time.Time `json:"applied_at"`
	LastTriggered time.Time `json:"last_triggered,omitzero"`
	TriggerCount  int       `json:"trigger_count"`
}

// EffectRecord is one entry of the effect history log.
type EffectRecord struct {
	EffectID   string    `json:"effect_id"`
	TemplateID string    `json:"template_id,omitempty"`
	Source     Source    `json:"source"`
	AppliedAt  time.Time `json:"applied_at"`
	RemovedAt  time.Time `json:"removed_at,omitzero"`
}

// FlagBaseline is the value a flag held before an effect overrode it.
type FlagBaseline struct {
	Value   any  `json:"value,omitempty"`
	Present bool `json:"present"`
}

// EffectsState holds the active effect set, the history log, and the
// pre-effect values of every flag an active effect overrides.
type EffectsState struct {
	Active       []Effect                `json:"active"`
	History      []EffectRecord          `json:"history,omitempty"`
	FlagBaseline map[string]FlagBaseline `json:"flag_baseline,omitempty"`
}

// DialogueSession is the open conversation, if any.
type DialogueSession struct {
	Active bool   `json:"active"`
	NPCID  string `json:"npc_id,omitempty"`
	NodeID string `json:"node_id,omitempty"`
}

// NPCMemory is what an NPC remembers across conversations.
type NPCMemory struct {
	Met         bool           `json:"met"`
	Flags       map[string]any `json:"flags,omitempty"`
	TimesTalked int            `json:"times_talked"`
	LastNode    string         `json:"last_node,omitempty"`
	LastTalked  time.Time      `json:"last_talked,omitzero"`
}

// DialogueState holds the session and per-NPC memory.
type DialogueState struct {
	Session DialogueSession      `json:"session"`
	Memory  map[string]NPCMemory `json:"memory,omitempty"`
}

// EndNode is the reserved next-node id that closes a conversation.
const EndNode = "END"

// DialogueResponse is one selectable reply on a node.
type DialogueResponse struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Requires *Requirement   `json:"requires,omitempty"`
	SetFlags map[string]any `json:"set_flags,omitempty"`
	OnSelect string         `json:"on_select,omitempty"`
	Next     string         `json:"next"`
}

// DialogueNode is one turn of an NPC conversation graph.
type DialogueNode struct {
	ID        string             `json:"id"`
	Text      string             `json:"text"`
	Speaker   string             `json:"speaker,omitempty"`
	Responses []DialogueResponse `json:"responses,omitempty"`
	OnEnter   string             `json:"on_enter,omitempty"`
}

// NPCDef is an NPC and its conversation graph.
type NPCDef struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	InitialNode string                  `json:"initial_node"`
	Nodes       map[string]DialogueNode `json:"nodes"`
	Remembers   []string                `json:"remembers,omitempty"`
}

// FactionDef is authored faction content.
type FactionDef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Initial int    `json:"initial"`
	Hidden  bool   `json:"hidden,omitempty"`
}

// PerkRequirements gate perk acquisition.
type PerkRequirements struct {
	Level     int            `json:"level,omitempty"`
	Abilities map[string]int `json:"abilities,omitempty"`
	Perks     []string       `json:"perks,omitempty"`
	Flags     map[string]any `json:"flags,omitempty"`
	Exclusive []string       `json:"exclusive,omitempty"`
}

// PerkDef is a permanently unlockable upgrade.
type PerkDef struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Category     string           `json:"category,omitempty"`
	MaxRank      int              `json:"max_rank"`
	Requirements PerkRequirements `json:"requirements"`
	Modifiers    Modifiers        `json:"modifiers"`
	Artifact     bool             `json:"artifact,omitempty"`
}

// CheckBonus is an optional situational bonus on a skill check. Exactly one
// of ItemID or Flag names the gate.
type CheckBonus struct {
	ItemID string `json:"item_id,omitempty"`
	Flag   string `json:"flag,omitempty"`
	Value  int    `json:"value"`
}

// SkillCheck is a randomized ability check request.
type SkillCheck struct {
	Ability    string      `json:"ability"`
	Difficulty int         `json:"difficulty"`
	Bonus      *CheckBonus `json:"bonus,omitempty"`
}

// CheckResult reports the outcome and every number used to reach it.
type CheckResult struct {
	Success      bool   `json:"success"`
	Ability      string `json:"ability"`
	AbilityValue int    `json:"ability_value"`
	Roll         int    `json:"roll"`
	LuckBonus    int    `json:"luck_bonus"`
	BonusApplied int    `json:"bonus_applied"`
	Total        int    `json:"total"`
	Difficulty   int    `json:"difficulty"`
}

// StoryDef holds story metadata.
type StoryDef struct {
	Title   string `json:"title"`
	Author  string `json:"author,omitempty"`
	Version string `json:"version,omitempty"`
	Intro   string `json:"intro,omitempty"`
}

// Action is one step of a scripted handler.
type Action struct {
	Op       string         `json:"op"`
	Key      string         `json:"key,omitempty"`
	Value    any            `json:"value,omitempty"`
	Amount   int            `json:"amount,omitempty"`
	Faction  string         `json:"faction,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Template string         `json:"template,omitempty"`
	Node     string         `json:"node,omitempty"`
	When     *Requirement   `json:"when,omitempty"`
	Memory   map[string]any `json:"memory,omitempty"`
	Then     []Action       `json:"then,omitempty"`
	Else     []Action       `json:"else,omitempty"`
}

// HandlerDef is a named behaviour authored as content.
type HandlerDef struct {
	ID      string   `json:"id"`
	Actions []Action `json:"actions"`
}

// PlayerStart describes a fresh player.
type PlayerStart struct {
	Level         int            `json:"level"`
	Abilities     Abilities      `json:"abilities"`
	Stats         map[string]int `json:"stats,omitempty"`
	Flags         map[string]any `json:"flags,omitempty"`
	Inventory     []Item         `json:"inventory,omitempty"`
	PerkPoints    int            `json:"perk_points"`
	ArtifactSlots int            `json:"artifact_slots"`
}
