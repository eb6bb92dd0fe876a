// Package loader compiles Lua story content into Go definitions. The Lua
// VM only runs at load time; the engine never sees Lua values.
package loader

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/types"
)

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	if s, ok := tbl.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	if b, ok := tbl.RawGetString(key).(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getInt returns an integer field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	if n, ok := tbl.RawGetString(key).(lua.LNumber); ok {
		return int(n)
	}
	return 0
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	if t, ok := tbl.RawGetString(key).(*lua.LTable); ok {
		return t
	}
	return nil
}

// getStrings returns an array-of-strings field.
func getStrings(tbl *lua.LTable, key string) []string {
	arr := getTable(tbl, key)
	if arr == nil {
		return nil
	}
	var out []string
	for i := 1; i <= arr.MaxN(); i++ {
		if s, ok := arr.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// toGoValue converts a Lua value to a Go value recursively. Integral
// numbers become int; empty tables become nil.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if n := val.MaxN(); n > 0 {
			arr := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		if len(m) == 0 {
			return nil
		}
		return m
	default:
		return nil
	}
}

// tableToAnyMap converts a Lua table to a map[string]any.
func tableToAnyMap(tbl *lua.LTable) map[string]any {
	if tbl == nil {
		return nil
	}
	m, _ := toGoValue(tbl).(map[string]any)
	return m
}

// decodeTable converts a Lua table into a typed Go value through its JSON
// shape, so authored tables follow the same field names as snapshots.
func decodeTable(tbl *lua.LTable, out any) error {
	if tbl == nil {
		return nil
	}
	data, err := json.Marshal(toGoValue(tbl))
	if err != nil {
		return err
	}
	if string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, out)
}

// compiler threads the definitions being built and the first error.
type compiler struct {
	defs *state.Defs
	errs []string
}

func (c *compiler) fail(format string, args ...any) {
	c.errs = append(c.errs, fmt.Sprintf(format, args...))
}

// compile converts collected Lua tables into Defs.
func compile(coll *collector) (*state.Defs, error) {
	c := &compiler{defs: state.NewDefs()}

	if coll.story != nil {
		c.defs.Story = compileStory(coll.story)
	}
	if coll.player != nil {
		c.defs.Player = c.compilePlayer(coll.player)
	}

	for _, raw := range coll.factions {
		if _, dup := c.defs.Factions[raw.id]; dup {
			c.fail("duplicate faction %q", raw.id)
			continue
		}
		c.defs.Factions[raw.id] = compileFaction(raw)
	}
	for _, raw := range coll.handlers {
		if _, dup := c.defs.Handlers[raw.id]; dup {
			c.fail("duplicate handler %q", raw.id)
			continue
		}
		c.defs.Handlers[raw.id] = types.HandlerDef{ID: raw.id, Actions: c.compileActions(raw.table, "handler "+raw.id)}
	}
	for _, raw := range coll.perks {
		if _, dup := c.defs.Perks[raw.id]; dup {
			c.fail("duplicate perk %q", raw.id)
			continue
		}
		c.defs.Perks[raw.id] = c.compilePerk(raw)
	}
	for _, raw := range coll.effects {
		if _, dup := c.defs.Effects[raw.id]; dup {
			c.fail("duplicate effect %q", raw.id)
			continue
		}
		c.defs.Effects[raw.id] = c.compileEffect(raw)
	}
	for _, raw := range coll.npcs {
		if _, dup := c.defs.NPCs[raw.id]; dup {
			c.fail("duplicate npc %q", raw.id)
			continue
		}
		c.defs.NPCs[raw.id] = c.compileNPC(raw)
	}

	if len(c.errs) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(c.errs, "; "))
	}
	return c.defs, nil
}

func compileStory(tbl *lua.LTable) types.StoryDef {
	return types.StoryDef{
		Title:   getString(tbl, "title"),
		Author:  getString(tbl, "author"),
		Version: getString(tbl, "version"),
		Intro:   getString(tbl, "intro"),
	}
}

func (c *compiler) compilePlayer(tbl *lua.LTable) types.PlayerStart {
	p := types.PlayerStart{
		Level:         getInt(tbl, "level"),
		Flags:         tableToAnyMap(getTable(tbl, "flags")),
		PerkPoints:    getInt(tbl, "perk_points"),
		ArtifactSlots: getInt(tbl, "artifact_slots"),
	}
	if abilities := getTable(tbl, "abilities"); abilities != nil {
		abilities.ForEach(func(k, _ lua.LValue) {
			if _, ok := p.Abilities.Get(k.String()); !ok {
				c.fail("player has unknown ability %q", k.String())
			}
		})
	}
	if err := decodeTable(getTable(tbl, "abilities"), &p.Abilities); err != nil {
		c.fail("player abilities: %v", err)
	}
	if err := decodeTable(getTable(tbl, "stats"), &p.Stats); err != nil {
		c.fail("player stats: %v", err)
	}
	if inv := getTable(tbl, "inventory"); inv != nil {
		for i := 1; i <= inv.MaxN(); i++ {
			switch v := inv.RawGetInt(i).(type) {
			case lua.LString:
				p.Inventory = append(p.Inventory, types.Item{ID: string(v), Quantity: 1})
			case *lua.LTable:
				it := types.Item{ID: getString(v, "id"), Name: getString(v, "name"), Quantity: getInt(v, "quantity")}
				if it.Quantity <= 0 {
					it.Quantity = 1
				}
				p.Inventory = append(p.Inventory, it)
			}
		}
	}
	return p
}

func compileFaction(raw rawDef) types.FactionDef {
	name := getString(raw.table, "name")
	if name == "" {
		name = raw.id
	}
	return types.FactionDef{
		ID:      raw.id,
		Name:    name,
		Initial: getInt(raw.table, "initial"),
		Hidden:  getBool(raw.table, "hidden", false),
	}
}

func (c *compiler) compilePerk(raw rawDef) types.PerkDef {
	p := types.PerkDef{
		ID:          raw.id,
		Name:        getString(raw.table, "name"),
		Description: getString(raw.table, "description"),
		Category:    getString(raw.table, "category"),
		MaxRank:     getInt(raw.table, "max_rank"),
		Artifact:    getBool(raw.table, "artifact", false),
	}
	if p.MaxRank == 0 {
		p.MaxRank = 1
	}
	if err := decodeTable(getTable(raw.table, "requires"), &p.Requirements); err != nil {
		c.fail("perk %q requires: %v", raw.id, err)
	}
	if err := decodeTable(getTable(raw.table, "modifiers"), &p.Modifiers); err != nil {
		c.fail("perk %q modifiers: %v", raw.id, err)
	}
	return p
}

func (c *compiler) compileEffect(raw rawDef) types.EffectTemplate {
	tbl := raw.table
	tpl := types.EffectTemplate{
		TemplateID: raw.id,
		Name:       getString(tbl, "name"),
		Duration:   types.Duration{Kind: types.Permanent},
	}
	if src := getTable(tbl, "source"); src != nil {
		tpl.Source = types.Source{Kind: types.SourceKind(getString(src, "kind")), ID: getString(src, "id")}
	}
	if err := decodeTable(getTable(tbl, "duration"), &tpl.Duration); err != nil {
		c.fail("effect %q duration: %v", raw.id, err)
	}
	if err := decodeTable(getTable(tbl, "modifiers"), &tpl.Modifiers); err != nil {
		c.fail("effect %q modifiers: %v", raw.id, err)
	}
	if req := getTable(tbl, "apply_if"); req != nil {
		tpl.ApplyCondition = c.compileRequirement(req, "effect "+raw.id)
	}
	prefix := "effect:" + raw.id + ":"
	tpl.OnApply = c.handlerRef(tbl, "on_apply", prefix+"on_apply")
	tpl.OnRemove = c.handlerRef(tbl, "on_remove", prefix+"on_remove")
	tpl.OnTrigger = c.handlerRef(tbl, "on_trigger", prefix+"on_trigger")
	return tpl
}

func (c *compiler) compileNPC(raw rawDef) types.NPCDef {
	tbl := raw.table
	npc := types.NPCDef{
		ID:          raw.id,
		Name:        getString(tbl, "name"),
		InitialNode: getString(tbl, "start"),
		Nodes:       map[string]types.DialogueNode{},
		Remembers:   getStrings(tbl, "remembers"),
	}
	if npc.Name == "" {
		npc.Name = raw.id
	}
	nodes := getTable(tbl, "nodes")
	if nodes == nil {
		return npc
	}
	nodes.ForEach(func(k, v lua.LValue) {
		nodeID, ok := k.(lua.LString)
		nodeTbl, isTbl := v.(*lua.LTable)
		if !ok || !isTbl {
			return
		}
		npc.Nodes[string(nodeID)] = c.compileNode(raw.id, string(nodeID), nodeTbl)
	})
	return npc
}

func (c *compiler) compileNode(npcID, nodeID string, tbl *lua.LTable) types.DialogueNode {
	where := npcID + "." + nodeID
	node := types.DialogueNode{
		ID:      nodeID,
		Text:    getString(tbl, "text"),
		Speaker: getString(tbl, "speaker"),
		OnEnter: c.handlerRef(tbl, "on_enter", "npc:"+where+":on_enter"),
	}
	responses := getTable(tbl, "responses")
	if responses == nil {
		return node
	}
	for i := 1; i <= responses.MaxN(); i++ {
		rt, ok := responses.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		r := types.DialogueResponse{
			ID:       getString(rt, "id"),
			Text:     getString(rt, "text"),
			SetFlags: tableToAnyMap(getTable(rt, "set_flags")),
			Next:     getString(rt, "next"),
		}
		if r.ID == "" {
			r.ID = fmt.Sprintf("r%d", i)
		}
		if req := getTable(rt, "requires"); req != nil {
			r.Requires = c.compileRequirement(req, "response "+where+"."+r.ID)
		}
		r.OnSelect = c.handlerRef(rt, "on_select", "npc:"+where+"."+r.ID+":on_select")
		node.Responses = append(node.Responses, r)
	}
	return node
}

func (c *compiler) compileRequirement(tbl *lua.LTable, where string) *types.Requirement {
	var req types.Requirement
	if err := decodeTable(tbl, &req); err != nil {
		c.fail("%s requirement: %v", where, err)
		return nil
	}
	return &req
}

func (c *compiler) compileActions(tbl *lua.LTable, where string) []types.Action {
	var actions []types.Action
	if err := decodeTable(tbl, &actions); err != nil {
		c.fail("%s actions: %v", where, err)
	}
	return actions
}

// handlerRef reads a behaviour field. A string names a handler; a table
// of actions is registered as an inline handler under inlineID.
func (c *compiler) handlerRef(tbl *lua.LTable, key, inlineID string) string {
	switch v := tbl.RawGetString(key).(type) {
	case lua.LString:
		return string(v)
	case *lua.LTable:
		c.defs.Handlers[inlineID] = types.HandlerDef{ID: inlineID, Actions: c.compileActions(v, inlineID)}
		return inlineID
	default:
		return ""
	}
}

// sortedLuaFiles returns .lua files with story.lua first and the rest
// sorted alphabetically.
func sortedLuaFiles(files []string) []string {
	var storyFile string
	var others []string
	for _, f := range files {
		if f == "story.lua" {
			storyFile = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if storyFile != "" {
		return append([]string{storyFile}, others...)
	}
	return others
}
