package loader

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/nathoo/talecore/engine/reputation"
	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

var validDurations = map[types.DurationKind]bool{
	types.Permanent:   true,
	types.Temporary:   true,
	types.Timed:       true,
	types.Conditional: true,
}

var validSources = map[types.SourceKind]bool{
	types.SourcePerk:     true,
	types.SourceItem:     true,
	types.SourceQuest:    true,
	types.SourceEvent:    true,
	types.SourceDialogue: true,
	types.SourceSkill:    true,
	types.SourceScene:    true,
}

var validOps = map[string]bool{
	"set_flag":          true,
	"clear_flag":        true,
	"add_stat":          true,
	"give_item":         true,
	"take_item":         true,
	"remember":          true,
	"forget":            true,
	"goto":              true,
	"change_reputation": true,
	"add_effect":        true,
	"if":                true,
}

// validator walks the compiled defs.
type validator struct {
	defs   *state.Defs
	ve     *ValidationError
	levels map[types.Level]bool
	set    map[string]map[string]bool // npc -> memory keys some action sets
}

// validate checks the compiled defs for referential integrity and
// consistency. Warnings are logged; errors fail the load.
func validate(defs *state.Defs, log *slog.Logger) error {
	v := &validator{
		defs:   defs,
		ve:     &ValidationError{},
		levels: map[types.Level]bool{},
		set:    map[string]map[string]bool{},
	}
	for _, th := range reputation.DefaultThresholds {
		v.levels[th.Level] = true
	}

	if defs.Story.Title == "" {
		v.ve.errorf("Story.Title is required")
	}

	for _, id := range sortedKeys(defs.Handlers) {
		v.actions("handler "+id, defs.Handlers[id].Actions)
	}
	for _, id := range sortedKeys(defs.Effects) {
		v.effect(id, defs.Effects[id])
	}
	for _, id := range sortedKeys(defs.Perks) {
		v.perk(id, defs.Perks[id])
	}
	for _, id := range sortedKeys(defs.NPCs) {
		v.npc(id, defs.NPCs[id])
	}

	for _, w := range v.ve.Warnings {
		log.Warn("story validation", "warning", w)
	}
	if len(v.ve.Errors) > 0 {
		return v.ve
	}
	return nil
}

func (v *validator) effect(id string, tpl types.EffectTemplate) {
	where := "effect " + id
	if !validDurations[tpl.Duration.Kind] {
		v.ve.errorf("%s has unknown duration kind %q", where, tpl.Duration.Kind)
	}
	if tpl.Duration.Kind == types.Timed && tpl.Duration.Seconds <= 0 {
		v.ve.errorf("%s timed duration needs positive seconds", where)
	}
	if tpl.Duration.Kind == types.Conditional && tpl.Duration.Condition == nil {
		v.ve.errorf("%s conditional duration needs a condition", where)
	}
	if c := tpl.Duration.Condition; c != nil && c.Requires != nil {
		v.requirement(where+" expiry", *c.Requires)
	}
	if tpl.Source.Kind != "" && !validSources[tpl.Source.Kind] {
		v.ve.errorf("%s has unknown source kind %q", where, tpl.Source.Kind)
	}
	v.modifiers(where, tpl.Modifiers)
	if tpl.ApplyCondition != nil {
		v.requirement(where+" apply_if", *tpl.ApplyCondition)
	}
	v.handlerRef(where, tpl.OnApply)
	v.handlerRef(where, tpl.OnRemove)
	v.handlerRef(where, tpl.OnTrigger)
}

func (v *validator) perk(id string, p types.PerkDef) {
	where := "perk " + id
	if p.MaxRank < 1 {
		v.ve.errorf("%s max_rank must be at least 1", where)
	}
	v.abilityMap(where, sortedKeys(p.Requirements.Abilities))
	for _, dep := range p.Requirements.Perks {
		if _, ok := v.defs.Perks[dep]; !ok {
			v.ve.errorf("%s requires undefined perk %q", where, dep)
		}
	}
	for _, ex := range p.Requirements.Exclusive {
		if _, ok := v.defs.Perks[ex]; !ok {
			v.ve.errorf("%s is exclusive with undefined perk %q", where, ex)
		}
	}
	v.modifiers(where, p.Modifiers)
}

func (v *validator) npc(id string, npc types.NPCDef) {
	where := "npc " + id
	if npc.InitialNode == "" {
		v.ve.errorf("%s has no start node", where)
	} else if _, ok := npc.Nodes[npc.InitialNode]; !ok {
		v.ve.errorf("%s start node %q not found", where, npc.InitialNode)
	}

	reached := map[string]bool{}
	mark := func(node string) {
		if node != "" && node != types.EndNode {
			reached[node] = true
		}
	}
	mark(npc.InitialNode)

	for _, nodeID := range sortedKeys(npc.Nodes) {
		node := npc.Nodes[nodeID]
		nw := where + " node " + nodeID
		v.handlerRef(nw, node.OnEnter)
		v.gotos(id, node.OnEnter, mark)
		seen := map[string]bool{}
		for _, r := range node.Responses {
			rw := nw + " response " + r.ID
			if seen[r.ID] {
				v.ve.errorf("%s is duplicated", rw)
			}
			seen[r.ID] = true
			switch {
			case r.Next == "":
				v.ve.errorf("%s has no next node", rw)
			case r.Next == types.EndNode:
			default:
				if _, ok := npc.Nodes[r.Next]; !ok {
					v.ve.errorf("%s points to undefined node %q", rw, r.Next)
				}
			}
			mark(r.Next)
			if r.Requires != nil {
				v.requirement(rw, *r.Requires)
			}
			v.handlerRef(rw, r.OnSelect)
			v.gotos(id, r.OnSelect, mark)
			for k := range r.SetFlags {
				if slices.Contains(npc.Remembers, k) {
					v.remembered(id, k)
				}
			}
		}
	}

	for _, nodeID := range sortedKeys(npc.Nodes) {
		if !reached[nodeID] {
			v.ve.warnf("%s node %q is unreachable", where, nodeID)
		}
	}
	for _, key := range npc.Remembers {
		if !v.set[id][key] {
			v.ve.warnf("%s remembers %q but nothing sets it", where, key)
		}
	}
}

// gotos checks goto targets of a dialogue handler against the NPC graph
// and records which memory keys the handler sets.
func (v *validator) gotos(npcID, handlerID string, mark func(string)) {
	h, ok := v.defs.Handlers[handlerID]
	if !ok {
		return
	}
	npc := v.defs.NPCs[npcID]
	walkActions(h.Actions, func(a types.Action) {
		switch a.Op {
		case "goto":
			if _, ok := npc.Nodes[a.Node]; !ok && a.Node != types.EndNode {
				v.ve.errorf("handler %s goto undefined node %q of npc %s", handlerID, a.Node, npcID)
			}
			mark(a.Node)
		case "remember":
			v.remembered(npcID, a.Key)
		}
	})
}

func (v *validator) remembered(npcID, key string) {
	if v.set[npcID] == nil {
		v.set[npcID] = map[string]bool{}
	}
	v.set[npcID][key] = true
}

func (v *validator) handlerRef(where, id string) {
	if id == "" {
		return
	}
	if _, ok := v.defs.Handlers[id]; !ok {
		v.ve.errorf("%s references undefined handler %q", where, id)
	}
}

func (v *validator) actions(where string, actions []types.Action) {
	walkActions(actions, func(a types.Action) {
		if !validOps[a.Op] {
			v.ve.errorf("%s has unknown action %q", where, a.Op)
			return
		}
		switch a.Op {
		case "add_effect":
			if _, ok := v.defs.Effects[a.Template]; !ok {
				v.ve.errorf("%s adds undefined effect %q", where, a.Template)
			}
		case "change_reputation":
			v.faction(where, a.Faction)
		case "if":
			if a.When != nil {
				v.requirement(where, *a.When)
			}
		}
	})
}

func walkActions(actions []types.Action, fn func(types.Action)) {
	for _, a := range actions {
		fn(a)
		walkActions(a.Then, fn)
		walkActions(a.Else, fn)
	}
}

func (v *validator) requirement(where string, req types.Requirement) {
	v.abilityMap(where, sortedKeys(req.Abilities))
	for _, id := range sortedKeys(req.Perks) {
		if _, ok := v.defs.Perks[id]; !ok {
			v.ve.errorf("%s requires undefined perk %q", where, id)
		}
	}
	for _, id := range sortedKeys(req.Reputation) {
		v.faction(where, id)
		rc := req.Reputation[id]
		for _, l := range []types.Level{rc.Min, rc.Max} {
			if l != "" && !v.levels[l] {
				v.ve.errorf("%s uses unknown reputation level %q", where, l)
			}
		}
	}
}

func (v *validator) modifiers(where string, m types.Modifiers) {
	v.abilityMap(where, sortedKeys(m.Abilities))
	for _, id := range sortedKeys(m.Reputation) {
		v.faction(where, id)
	}
}

func (v *validator) faction(where, id string) {
	if _, ok := v.defs.Factions[id]; !ok {
		v.ve.errorf("%s references undefined faction %q", where, id)
	}
}

func (v *validator) abilityMap(where string, names []string) {
	for _, name := range names {
		if !slices.Contains(types.AbilityNames, name) {
			v.ve.errorf("%s uses unknown ability %q", where, name)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
