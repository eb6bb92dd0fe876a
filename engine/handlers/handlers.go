// Package handlers is the registry of named behaviours that content
// attaches to effects and dialogue nodes by id. Behaviours are either Go
// functions registered at startup or scripted action lists compiled from
// content.
package handlers

import (
	"log/slog"

	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/logger"
	"github.com/nathoo/talecore/types"
)

// Call carries the context a behaviour runs in.
type Call struct {
	Handler string
	NPC     string        // set for dialogue behaviours
	Effect  *types.Effect // set for effect behaviours
	Context map[string]any
}

// Services are the engine operations scripted actions may call back into.
type Services interface {
	Check(req types.Requirement, s *types.PlayerState) bool
	ApplyTemplate(templateID string, s *types.PlayerState) *types.PlayerState
	ChangeReputation(factionID string, delta int, reason string, s *types.PlayerState) *types.PlayerState
}

// Func is a Go behaviour. It must not mutate s; it returns the new state.
type Func func(call Call, s *types.PlayerState) *types.PlayerState

// Registry resolves handler ids at call time.
type Registry struct {
	funcs   map[string]Func
	scripts map[string]types.HandlerDef
	svc     Services
	log     *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = logger.Discard()
	}
	return &Registry{
		funcs:   map[string]Func{},
		scripts: map[string]types.HandlerDef{},
		log:     log,
	}
}

// Register adds a Go behaviour under id, replacing any previous one.
func (r *Registry) Register(id string, fn Func) {
	r.funcs[id] = fn
}

// RegisterScript adds a scripted behaviour. Go behaviours take precedence
// when both exist under the same id.
func (r *Registry) RegisterScript(def types.HandlerDef) {
	r.scripts[def.ID] = def
}

// Bind sets the engine services scripted actions call into.
func (r *Registry) Bind(svc Services) {
	r.svc = svc
}

// Has reports whether id resolves to a behaviour.
func (r *Registry) Has(id string) bool {
	if _, ok := r.funcs[id]; ok {
		return true
	}
	_, ok := r.scripts[id]
	return ok
}

// Invoke runs the behaviour registered under id. An empty id is a no-op;
// an unknown id is a no-op with a warning.
func (r *Registry) Invoke(id string, call Call, s *types.PlayerState) *types.PlayerState {
	if id == "" {
		return s
	}
	call.Handler = id
	if fn, ok := r.funcs[id]; ok {
		if ns := fn(call, s); ns != nil {
			return ns
		}
		return s
	}
	if def, ok := r.scripts[id]; ok {
		return r.run(def.Actions, call, s)
	}
	r.log.Warn("unknown handler", "handler", id)
	return s
}

// run executes scripted actions in order.
func (r *Registry) run(actions []types.Action, call Call, s *types.PlayerState) *types.PlayerState {
	for _, a := range actions {
		s = r.exec(a, call, s)
	}
	return s
}

func (r *Registry) exec(a types.Action, call Call, s *types.PlayerState) *types.PlayerState {
	switch a.Op {
	case "set_flag":
		ns := state.Fork(s)
		state.CloneFlags(ns)
		ns.Flags[a.Key] = state.NormalizeFlag(a.Value)
		return ns

	case "clear_flag":
		if _, ok := s.Flags[a.Key]; !ok {
			return s
		}
		ns := state.Fork(s)
		state.CloneFlags(ns)
		delete(ns.Flags, a.Key)
		return ns

	case "add_stat":
		ns := state.Fork(s)
		state.CloneStats(ns)
		ns.Stats[a.Key] += a.Amount
		return ns

	case "give_item":
		return GiveItem(s, a.Key, max(a.Amount, 1))

	case "take_item":
		return TakeItem(s, a.Key, max(a.Amount, 1))

	case "remember", "forget":
		if call.NPC == "" {
			r.log.Warn("memory action outside dialogue", "handler", call.Handler, "op", a.Op)
			return s
		}
		ns := state.Fork(s)
		state.CloneDialogue(ns)
		mem := state.CloneMemory(ns.Dialogue.Memory[call.NPC])
		if a.Op == "remember" {
			mem.Flags[a.Key] = state.NormalizeFlag(a.Value)
		} else {
			delete(mem.Flags, a.Key)
		}
		ns.Dialogue.Memory[call.NPC] = mem
		return ns

	case "goto":
		sess := s.Dialogue.Session
		if !sess.Active || (call.NPC != "" && sess.NPCID != call.NPC) {
			return s
		}
		ns := state.Fork(s)
		ns.Dialogue.Session.NodeID = a.Node
		return ns

	case "change_reputation":
		if r.svc == nil {
			r.log.Warn("no services bound", "handler", call.Handler, "op", a.Op)
			return s
		}
		return r.svc.ChangeReputation(a.Faction, a.Amount, a.Reason, s)

	case "add_effect":
		if r.svc == nil {
			r.log.Warn("no services bound", "handler", call.Handler, "op", a.Op)
			return s
		}
		return r.svc.ApplyTemplate(a.Template, s)

	case "if":
		if r.holds(a, call, s) {
			return r.run(a.Then, call, s)
		}
		return r.run(a.Else, call, s)

	default:
		r.log.Warn("unknown handler action", "handler", call.Handler, "op", a.Op)
		return s
	}
}

// holds evaluates an "if" guard: the state requirement and the NPC
// memory flags must both match.
func (r *Registry) holds(a types.Action, call Call, s *types.PlayerState) bool {
	if a.When != nil {
		if r.svc == nil || !r.svc.Check(*a.When, s) {
			return false
		}
	}
	if len(a.Memory) > 0 {
		mem := s.Dialogue.Memory[call.NPC]
		for k, want := range a.Memory {
			got, ok := mem.Flags[k]
			if !ok || !state.FlagEqual(got, want) {
				return false
			}
		}
	}
	return true
}

// GiveItem adds qty of an item to the inventory.
func GiveItem(s *types.PlayerState, itemID string, qty int) *types.PlayerState {
	ns := state.Fork(s)
	state.CloneInventory(ns)
	for i := range ns.Inventory {
		if ns.Inventory[i].ID == itemID {
			ns.Inventory[i].Quantity += qty
			return ns
		}
	}
	ns.Inventory = append(ns.Inventory, types.Item{ID: itemID, Quantity: qty})
	return ns
}

// TakeItem removes up to qty of an item, dropping the record at zero.
func TakeItem(s *types.PlayerState, itemID string, qty int) *types.PlayerState {
	if !state.HasItem(s, itemID) {
		return s
	}
	ns := state.Fork(s)
	ns.Inventory = make([]types.Item, 0, len(s.Inventory))
	for _, it := range s.Inventory {
		if it.ID == itemID && qty > 0 {
			take := min(qty, it.Quantity)
			it.Quantity -= take
			qty -= take
			if it.Quantity <= 0 {
				continue
			}
		}
		ns.Inventory = append(ns.Inventory, it)
	}
	return ns
}
