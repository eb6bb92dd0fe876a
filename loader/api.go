package loader

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/talecore/types"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerContentHelpers(L)
	registerRequirementHelpers(L)
	registerActionHelpers(L)
}

// curried returns a constructor used as `Name "id" { ... }`.
func curried(L *lua.LState, add func(rawDef)) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			add(rawDef{id: id, table: L.CheckTable(1)})
			return 0
		}))
		return 1
	})
}

func registerConstructors(L *lua.LState, coll *collector) {
	// Story { title = "...", ... }
	L.SetGlobal("Story", L.NewFunction(func(L *lua.LState) int {
		coll.story = L.CheckTable(1)
		return 0
	}))

	// Player { abilities = {...}, stats = {...}, ... }
	L.SetGlobal("Player", L.NewFunction(func(L *lua.LState) int {
		coll.player = L.CheckTable(1)
		return 0
	}))

	L.SetGlobal("Faction", curried(L, func(d rawDef) { coll.factions = append(coll.factions, d) }))
	L.SetGlobal("Perk", curried(L, func(d rawDef) { coll.perks = append(coll.perks, d) }))
	L.SetGlobal("Effect", curried(L, func(d rawDef) { coll.effects = append(coll.effects, d) }))
	L.SetGlobal("NPC", curried(L, func(d rawDef) { coll.npcs = append(coll.npcs, d) }))
	L.SetGlobal("Handler", curried(L, func(d rawDef) { coll.handlers = append(coll.handlers, d) }))
}

func registerContentHelpers(L *lua.LState) {
	L.SetGlobal("END", lua.LString(types.EndNode))

	// Node { text = "...", responses = {...} } returns its table unchanged.
	L.SetGlobal("Node", L.NewFunction(func(L *lua.LState) int {
		L.Push(L.CheckTable(1))
		return 1
	}))

	// Response "id" { text = "...", next = "node" } stamps the id onto the table.
	L.SetGlobal("Response", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			tbl.RawSetString("id", lua.LString(id))
			L.Push(tbl)
			return 1
		}))
		return 1
	}))

	// Durations.
	L.SetGlobal("Permanent", L.NewFunction(func(L *lua.LState) int {
		L.Push(durationTable(L, types.Permanent))
		return 1
	}))
	L.SetGlobal("Temporary", L.NewFunction(func(L *lua.LState) int {
		tbl := durationTable(L, types.Temporary)
		tbl.RawSetString("remaining", lua.LNumber(L.OptInt(1, 1)))
		L.Push(tbl)
		return 1
	}))
	L.SetGlobal("Timed", L.NewFunction(func(L *lua.LState) int {
		tbl := durationTable(L, types.Timed)
		tbl.RawSetString("seconds", L.CheckNumber(1))
		L.Push(tbl)
		return 1
	}))
	// Until { episode = "...", scene = "...", requires = {...} }
	L.SetGlobal("Until", L.NewFunction(func(L *lua.LState) int {
		spec := L.CheckTable(1)
		cond := L.NewTable()
		if v := spec.RawGetString("episode"); v != lua.LNil {
			cond.RawSetString("episode_id", v)
		}
		if v := spec.RawGetString("scene"); v != lua.LNil {
			cond.RawSetString("scene_id", v)
		}
		if v := spec.RawGetString("requires"); v != lua.LNil {
			cond.RawSetString("requires", v)
		}
		tbl := durationTable(L, types.Conditional)
		tbl.RawSetString("condition", cond)
		L.Push(tbl)
		return 1
	}))
}

func durationTable(L *lua.LState, kind types.DurationKind) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("kind", lua.LString(kind))
	return tbl
}

func registerRequirementHelpers(L *lua.LState) {
	// AtLeast(n), AtMost(n), Between(lo, hi) build numeric range checks.
	L.SetGlobal("AtLeast", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("min", L.CheckNumber(1))
		L.Push(tbl)
		return 1
	}))
	L.SetGlobal("AtMost", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("max", L.CheckNumber(1))
		L.Push(tbl)
		return 1
	}))
	L.SetGlobal("Between", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("min", L.CheckNumber(1))
		tbl.RawSetString("max", L.CheckNumber(2))
		L.Push(tbl)
		return 1
	}))
	// Standing("friendly") or Standing("neutral", "honored") builds a
	// reputation level range.
	L.SetGlobal("Standing", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("min", lua.LString(L.CheckString(1)))
		if max := L.OptString(2, ""); max != "" {
			tbl.RawSetString("max", lua.LString(max))
		}
		L.Push(tbl)
		return 1
	}))
}

// action builds an action table with op and the given fields.
func action(L *lua.LState, op string, fields ...any) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("op", lua.LString(op))
	for i := 0; i+1 < len(fields); i += 2 {
		tbl.RawSetString(fields[i].(string), toLValue(fields[i+1]))
	}
	return tbl
}

func toLValue(v any) lua.LValue {
	switch x := v.(type) {
	case lua.LValue:
		return x
	case string:
		return lua.LString(x)
	case int:
		return lua.LNumber(x)
	default:
		return lua.LNil
	}
}

func registerActionHelpers(L *lua.LState) {
	// SetFlag("flag", value)
	L.SetGlobal("SetFlag", L.NewFunction(func(L *lua.LState) int {
		L.Push(action(L, "set_flag", "key", L.CheckString(1), "value", L.Get(2)))
		return 1
	}))
	// ClearFlag("flag")
	L.SetGlobal("ClearFlag", L.NewFunction(func(L *lua.LState) int {
		L.Push(action(L, "clear_flag", "key", L.CheckString(1)))
		return 1
	}))
	// AddStat("stat", amount)
	L.SetGlobal("AddStat", L.NewFunction(func(L *lua.LState) int {
		L.Push(action(L, "add_stat", "key", L.CheckString(1), "amount", L.CheckNumber(2)))
		return 1
	}))
	// GiveItem("item", qty?)
	L.SetGlobal("GiveItem", L.NewFunction(func(L *lua.LState) int {
		L.Push(action(L, "give_item", "key", L.CheckString(1), "amount", lua.LNumber(L.OptInt(2, 1))))
		return 1
	}))
	// TakeItem("item", qty?)
	L.SetGlobal("TakeItem", L.NewFunction(func(L *lua.LState) int {
		L.Push(action(L, "take_item", "key", L.CheckString(1), "amount", lua.LNumber(L.OptInt(2, 1))))
		return 1
	}))
	// Remember("key", value) stores a flag in the current NPC's memory.
	L.SetGlobal("Remember", L.NewFunction(func(L *lua.LState) int {
		value := L.Get(2)
		if value == lua.LNil {
			value = lua.LTrue
		}
		L.Push(action(L, "remember", "key", L.CheckString(1), "value", value))
		return 1
	}))
	// Forget("key")
	L.SetGlobal("Forget", L.NewFunction(func(L *lua.LState) int {
		L.Push(action(L, "forget", "key", L.CheckString(1)))
		return 1
	}))
	// Goto("node") redirects the open conversation.
	L.SetGlobal("Goto", L.NewFunction(func(L *lua.LState) int {
		L.Push(action(L, "goto", "node", L.CheckString(1)))
		return 1
	}))
	// ChangeReputation("faction", delta, "reason"?)
	L.SetGlobal("ChangeReputation", L.NewFunction(func(L *lua.LState) int {
		L.Push(action(L, "change_reputation",
			"faction", L.CheckString(1),
			"amount", L.CheckNumber(2),
			"reason", lua.LString(L.OptString(3, ""))))
		return 1
	}))
	// AddEffect("template")
	L.SetGlobal("AddEffect", L.NewFunction(func(L *lua.LState) int {
		L.Push(action(L, "add_effect", "template", L.CheckString(1)))
		return 1
	}))
	// If(requirement, { then... }, { else... }?)
	L.SetGlobal("If", L.NewFunction(func(L *lua.LState) int {
		tbl := action(L, "if", "when", L.CheckTable(1), "then", L.CheckTable(2))
		if els, ok := L.Get(3).(*lua.LTable); ok {
			tbl.RawSetString("else", els)
		}
		L.Push(tbl)
		return 1
	}))
	// IfRemembers({ key = value }, { then... }, { else... }?)
	L.SetGlobal("IfRemembers", L.NewFunction(func(L *lua.LState) int {
		tbl := action(L, "if", "memory", L.CheckTable(1), "then", L.CheckTable(2))
		if els, ok := L.Get(3).(*lua.LTable); ok {
			tbl.RawSetString("else", els)
		}
		L.Push(tbl)
		return 1
	}))
}
