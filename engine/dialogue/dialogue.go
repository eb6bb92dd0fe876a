// Package dialogue walks per-NPC conversation graphs. Responses are
// filtered through the condition evaluator and NPCs keep a memory of
// flags across conversations.
package dialogue

import (
	"log/slog"
	"slices"
	"time"

	"github.com/nathoo/talecore/engine/handlers"
	"github.com/nathoo/talecore/engine/rules"
	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/logger"
	"github.com/nathoo/talecore/types"
)

// maxRedirects bounds how many on-enter redirects one transition follows.
const maxRedirects = 8

// Walker is the dialogue service.
type Walker struct {
	defs     *state.Defs
	cond     *rules.Evaluator
	registry *handlers.Registry
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Walker.
type Option func(*Walker)

// WithClock sets the time source for memory timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Walker) { w.now = now }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Walker) {
		if l != nil {
			w.log = l
		}
	}
}

// New creates a walker over the NPC catalog in defs.
func New(defs *state.Defs, cond *rules.Evaluator, registry *handlers.Registry, opts ...Option) *Walker {
	w := &Walker{
		defs:     defs,
		cond:     cond,
		registry: registry,
		now:      time.Now,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.defs == nil {
		w.defs = state.NewDefs()
	}
	if w.registry == nil {
		w.registry = handlers.NewRegistry(w.log)
	}
	return w
}

// Start opens a conversation with npcID at its initial node, marking the
// NPC as met. Unknown NPCs are a no-op.
func (w *Walker) Start(npcID string, s *types.PlayerState) *types.PlayerState {
	npc, ok := w.defs.NPCs[npcID]
	if !ok {
		w.log.Warn("dialogue with unknown npc", "npc", npcID)
		return s
	}
	if npc.InitialNode == "" {
		w.log.Warn("npc has no initial node", "npc", npcID)
		return s
	}

	ns := state.Fork(s)
	state.CloneDialogue(ns)
	mem := state.CloneMemory(ns.Dialogue.Memory[npcID])
	mem.Met = true
	mem.TimesTalked++
	mem.LastTalked = w.now()
	ns.Dialogue.Memory[npcID] = mem

	return w.enter(npc, npc.InitialNode, ns)
}

// Available returns the responses on the current node whose requirements hold.
func (w *Walker) Available(npcID string, s *types.PlayerState) []types.DialogueResponse {
	_, node, ok := w.current(npcID, s)
	if !ok {
		return nil
	}
	var out []types.DialogueResponse
	for _, r := range node.Responses {
		if w.cond.EvaluateOptional(r.Requires, s) {
			out = append(out, r)
		}
	}
	return out
}

// Current returns the NPC and node the open session points at.
func (w *Walker) Current(s *types.PlayerState) (types.NPCDef, types.DialogueNode, bool) {
	return w.current(s.Dialogue.Session.NPCID, s)
}

// Select applies a response on the current node and moves the session to
// its next node. Missing or unavailable responses are a no-op.
func (w *Walker) Select(npcID, responseID string, s *types.PlayerState) *types.PlayerState {
	npc, node, ok := w.current(npcID, s)
	if !ok {
		w.log.Debug("select without open session", "npc", npcID, "response", responseID)
		return s
	}
	idx := slices.IndexFunc(node.Responses, func(r types.DialogueResponse) bool { return r.ID == responseID })
	if idx < 0 {
		w.log.Warn("unknown dialogue response", "npc", npcID, "node", node.ID, "response", responseID)
		return s
	}
	resp := node.Responses[idx]
	if !w.cond.EvaluateOptional(resp.Requires, s) {
		w.log.Debug("dialogue response unavailable", "npc", npcID, "response", responseID)
		return s
	}

	ns := s
	if len(resp.SetFlags) > 0 {
		ns = state.Fork(s)
		state.CloneFlags(ns)
		state.CloneDialogue(ns)
		mem := state.CloneMemory(ns.Dialogue.Memory[npcID])
		for k, v := range resp.SetFlags {
			v = state.NormalizeFlag(v)
			ns.Flags[k] = v
			if slices.Contains(npc.Remembers, k) {
				mem.Flags[k] = v
			}
		}
		ns.Dialogue.Memory[npcID] = mem
	}

	ns = w.registry.Invoke(resp.OnSelect, handlers.Call{
		NPC:     npcID,
		Context: map[string]any{"node": node.ID, "response": resp.ID},
	}, ns)
	if sess := ns.Dialogue.Session; !sess.Active || sess.NPCID != npcID {
		return ns
	}
	if resp.Next == types.EndNode {
		return w.End(ns)
	}
	return w.enter(npc, resp.Next, ns)
}

// End closes the open session, if any.
func (w *Walker) End(s *types.PlayerState) *types.PlayerState {
	if !s.Dialogue.Session.Active {
		return s
	}
	ns := state.Fork(s)
	ns.Dialogue.Session = types.DialogueSession{}
	return ns
}

// enter moves the session to nodeID and runs its on-enter behaviour,
// following redirects the behaviour makes. A missing node closes the
// session.
func (w *Walker) enter(npc types.NPCDef, nodeID string, s *types.PlayerState) *types.PlayerState {
	for hop := 0; ; hop++ {
		node, ok := npc.Nodes[nodeID]
		if !ok {
			w.log.Warn("dialogue node missing, closing session", "npc", npc.ID, "node", nodeID)
			return w.closeSession(s)
		}

		ns := state.Fork(s)
		ns.Dialogue.Session = types.DialogueSession{Active: true, NPCID: npc.ID, NodeID: nodeID}
		state.CloneDialogue(ns)
		mem := state.CloneMemory(ns.Dialogue.Memory[npc.ID])
		mem.LastNode = nodeID
		ns.Dialogue.Memory[npc.ID] = mem

		s = w.registry.Invoke(node.OnEnter, handlers.Call{
			NPC:     npc.ID,
			Context: map[string]any{"node": nodeID},
		}, ns)

		sess := s.Dialogue.Session
		if !sess.Active || sess.NPCID != npc.ID || sess.NodeID == nodeID {
			return s
		}
		if sess.NodeID == types.EndNode {
			return w.closeSession(s)
		}
		if hop >= maxRedirects {
			w.log.Warn("dialogue redirect limit reached", "npc", npc.ID, "node", sess.NodeID)
			if _, ok := npc.Nodes[sess.NodeID]; !ok {
				return w.closeSession(s)
			}
			return s
		}
		nodeID = sess.NodeID
	}
}

func (w *Walker) closeSession(s *types.PlayerState) *types.PlayerState {
	ns := state.Fork(s)
	ns.Dialogue.Session = types.DialogueSession{}
	return ns
}

// current resolves the open session for npcID.
func (w *Walker) current(npcID string, s *types.PlayerState) (types.NPCDef, types.DialogueNode, bool) {
	sess := s.Dialogue.Session
	if !sess.Active || sess.NPCID != npcID {
		return types.NPCDef{}, types.DialogueNode{}, false
	}
	npc, ok := w.defs.NPCs[npcID]
	if !ok {
		return types.NPCDef{}, types.DialogueNode{}, false
	}
	node, ok := npc.Nodes[sess.NodeID]
	if !ok {
		return types.NPCDef{}, types.DialogueNode{}, false
	}
	return npc, node, true
}
