package engine

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nathoo/talecore/engine/effects"
	"github.com/nathoo/talecore/engine/handlers"
	"github.com/nathoo/talecore/engine/parser"
	"github.com/nathoo/talecore/engine/reputation"
	"github.com/nathoo/talecore/engine/resolve"
	"github.com/nathoo/talecore/engine/skills"
	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/types"
)

// Step parses one console command, routes it to the matching service and
// returns the text to show.
func (e *Engine) Step(input string) types.Result {
	intent := parser.Parse(input)
	if intent.Verb == "" {
		return types.Result{Output: []string{"What do you want to do?"}}
	}

	result := e.dispatch(intent)

	// Flag changes made by the command may satisfy an expiry condition.
	before := len(e.State.Effects.Active)
	e.State = e.Effects.ExpireConditional(e.State)
	if n := before - len(e.State.Effects.Active); n > 0 {
		result.Trace = append(result.Trace, fmt.Sprintf("%d conditional effect(s) expired", n))
	}
	return result
}

func (e *Engine) dispatch(in types.Intent) types.Result {
	switch in.Verb {
	case "talk":
		return e.stepTalk(in)
	case "say":
		return e.stepSay(in)
	case "bye":
		return e.stepBye()
	case "look":
		if !e.State.Dialogue.Session.Active {
			return lines("You are not talking to anyone.")
		}
		return e.describeDialogue()
	case "check":
		return e.stepCheck(in)
	case "chance":
		return e.stepChance(in)
	case "effect":
		return e.stepEffect(in)
	case "remove":
		return e.stepRemove(in)
	case "trigger":
		return e.stepTrigger(in)
	case "advance":
		e.AdvanceScene(in.Arg(0), in.Arg(1))
		return lines(fmt.Sprintf("Scene advanced to %s/%s.", in.Arg(0), in.Arg(1)))
	case "tick":
		before := len(e.State.Effects.Active)
		e.Tick()
		return lines(fmt.Sprintf("Time passes. %d effect(s) expired.", before-len(e.State.Effects.Active)))
	case "status":
		return e.stepStatus()
	case "reputation":
		return e.stepReputation()
	case "adjust":
		return e.stepAdjust(in)
	case "discover":
		id, prompt := e.resolveArg(resolve.Faction, in.Args)
		if prompt != "" {
			return lines(prompt)
		}
		if _, ok := e.Defs.Factions[id]; !ok {
			return lines("There is no faction called " + id + ".")
		}
		e.Discover(id)
		return lines(fmt.Sprintf("You learn of %s.", e.factionName(id)))
	case "alignment":
		return lines(fmt.Sprintf("Alignment: %s.", e.Alignment()))
	case "perks":
		return e.stepPerks()
	case "unlock":
		return e.stepUnlock(in)
	case "equip":
		return e.stepEquip(in, true)
	case "unequip":
		return e.stepEquip(in, false)
	case "award":
		n, err := strconv.Atoi(in.Arg(0))
		if err != nil || n <= 0 {
			return lines("Award how many points?")
		}
		e.AwardPoints(n)
		return lines(fmt.Sprintf("You now have %d perk point(s).", e.State.Perks.Points))
	case "stats":
		return e.stepStats()
	case "inventory":
		return e.stepInventory()
	case "give":
		return e.stepGive(in)
	case "flag":
		return e.stepFlag(in)
	default:
		return lines(fmt.Sprintf("I don't know how to %q.", in.Verb))
	}
}

// resolveArg maps command arguments to a catalog id. Unknown names come
// back unchanged for the caller to report; an ambiguous name returns a
// prompt to show instead.
func (e *Engine) resolveArg(kind resolve.Kind, args []string) (id, prompt string) {
	query := strings.Join(args, " ")
	id, err := resolve.Resolve(e.Defs, kind, query)
	var amb *resolve.AmbiguityError
	if errors.As(err, &amb) {
		msg := amb.Error()
		return "", strings.ToUpper(msg[:1]) + msg[1:]
	}
	if err != nil {
		return query, ""
	}
	return id, ""
}

func (e *Engine) stepTalk(in types.Intent) types.Result {
	if len(in.Args) == 0 {
		return lines("Talk to whom?")
	}
	npcID, prompt := e.resolveArg(resolve.NPC, in.Args)
	if prompt != "" {
		return lines(prompt)
	}
	if _, ok := e.Defs.NPCs[npcID]; !ok {
		return lines("There is no one called " + npcID + ".")
	}
	e.StartDialogue(npcID)
	return e.describeDialogue()
}

func (e *Engine) stepSay(in types.Intent) types.Result {
	sess := e.State.Dialogue.Session
	if !sess.Active {
		return lines("You are not talking to anyone.")
	}
	choice := in.Arg(0)
	available := e.AvailableResponses(sess.NPCID)
	responseID := choice
	if n, err := strconv.Atoi(choice); err == nil {
		if n < 1 || n > len(available) {
			return lines("That is not one of the choices.")
		}
		responseID = available[n-1].ID
	}
	e.SelectResponse(sess.NPCID, responseID)
	return e.describeDialogue()
}

func (e *Engine) stepBye() types.Result {
	if !e.State.Dialogue.Session.Active {
		return lines("You are not talking to anyone.")
	}
	e.EndDialogue()
	return lines("You end the conversation.")
}

// describeDialogue renders the current node and its available responses.
func (e *Engine) describeDialogue() types.Result {
	npc, node, ok := e.Dialogue.Current(e.State)
	if !ok {
		return lines("The conversation ends.")
	}
	speaker := node.Speaker
	if speaker == "" {
		speaker = npc.Name
	}
	if speaker == "" {
		speaker = npc.ID
	}
	out := []string{fmt.Sprintf("%s: %s", speaker, node.Text)}
	for i, r := range e.AvailableResponses(npc.ID) {
		out = append(out, fmt.Sprintf("  %d. %s", i+1, r.Text))
	}
	return types.Result{Output: out}
}

func (e *Engine) stepCheck(in types.Intent) types.Result {
	check, ok := parseCheck(in)
	if !ok {
		return lines("Usage: check <ability> <difficulty> [item|flag bonus]")
	}
	res := e.ResolveCheck(check)
	verdict := "Failure"
	if res.Success {
		verdict = "Success"
	}
	return types.Result{
		Output: []string{fmt.Sprintf("%s! %s %d + roll %d + luck %d + bonus %d = %d vs %d.",
			verdict, res.Ability, res.AbilityValue, res.Roll, res.LuckBonus, res.BonusApplied, res.Total, res.Difficulty)},
		Check: &res,
	}
}

func (e *Engine) stepChance(in types.Intent) types.Result {
	check, ok := parseCheck(in)
	if !ok {
		return lines("Usage: chance <ability> <difficulty>")
	}
	ability := e.EffectiveAbility(check.Ability) + e.Skills.Bonus(check, e.State)
	if !skills.CanEverSucceed(ability, check.Difficulty) {
		return lines(fmt.Sprintf("%s against %d cannot succeed.", check.Ability, check.Difficulty))
	}
	return lines(fmt.Sprintf("%s against %d: %d%% chance.", check.Ability, check.Difficulty,
		skills.SuccessProbability(ability, check.Difficulty)))
}

// parseCheck reads "<ability> <difficulty> [bonus-source bonus-value]".
// A bonus source the player carries is an item; anything else is a flag.
func parseCheck(in types.Intent) (types.SkillCheck, bool) {
	diff, err := strconv.Atoi(in.Arg(1))
	if in.Arg(0) == "" || err != nil {
		return types.SkillCheck{}, false
	}
	check := types.SkillCheck{Ability: strings.ToLower(in.Arg(0)), Difficulty: diff}
	if src := in.Arg(2); src != "" {
		v, err := strconv.Atoi(in.Arg(3))
		if err != nil {
			v = 1
		}
		check.Bonus = &types.CheckBonus{ItemID: src, Flag: src, Value: v}
	}
	return check, true
}

func (e *Engine) stepEffect(in types.Intent) types.Result {
	if len(in.Args) == 0 {
		return lines("Apply which effect?")
	}
	id, prompt := e.resolveArg(resolve.Effect, in.Args)
	if prompt != "" {
		return lines(prompt)
	}
	eff, ok := e.AddEffect(id)
	if !ok {
		return lines("Nothing happens.")
	}
	return types.Result{
		Output: []string{fmt.Sprintf("%s takes hold.", displayName(eff.Name, eff.TemplateID))},
		Trace:  []string{"effect " + eff.ID},
	}
}

func (e *Engine) stepRemove(in types.Intent) types.Result {
	eff, ok := e.findEffect(in.Arg(0))
	if !ok {
		return lines("No such effect is active.")
	}
	e.RemoveEffect(eff.ID)
	return lines(fmt.Sprintf("%s fades.", displayName(eff.Name, eff.TemplateID)))
}

func (e *Engine) stepTrigger(in types.Intent) types.Result {
	eff, ok := e.findEffect(in.Arg(0))
	if !ok {
		return lines("No such effect is active.")
	}
	e.TriggerEffect(eff.ID, map[string]any{"source": "console"})
	return lines(fmt.Sprintf("%s stirs.", displayName(eff.Name, eff.TemplateID)))
}

// findEffect matches an active effect by id, id prefix or template id.
func (e *Engine) findEffect(ref string) (types.Effect, bool) {
	if ref == "" {
		return types.Effect{}, false
	}
	for _, eff := range e.Effects.Active(e.State) {
		if eff.ID == ref || eff.TemplateID == ref || strings.HasPrefix(eff.ID, ref) {
			return eff, true
		}
	}
	return types.Effect{}, false
}

func (e *Engine) stepStatus() types.Result {
	active := e.Effects.Active(e.State)
	if len(active) == 0 {
		return lines("No active effects.")
	}
	out := []string{"Active effects:"}
	for _, eff := range active {
		out = append(out, fmt.Sprintf("  %s [%s] %s", shortID(eff.ID), displayName(eff.Name, eff.TemplateID), describeDuration(eff.Duration)))
	}
	return types.Result{Output: out}
}

func describeDuration(d types.Duration) string {
	switch d.Kind {
	case types.Temporary:
		return fmt.Sprintf("%d scene(s) left", d.Remaining)
	case types.Timed:
		return "until " + d.Until.Format("15:04:05")
	case types.Conditional:
		return "conditional"
	default:
		return "permanent"
	}
}

func (e *Engine) stepReputation() types.Result {
	ids := make([]string, 0, len(e.Defs.Factions))
	for id := range e.Defs.Factions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []string
	for _, id := range ids {
		f, ok := e.Faction(id)
		if !ok || !f.Discovered {
			continue
		}
		out = append(out, fmt.Sprintf("  %-20s %4d  %s", e.factionName(id), reputation.Effective(f), f.Level))
	}
	if len(out) == 0 {
		return lines("You are unknown to every faction.")
	}
	return types.Result{Output: append([]string{"Standing:"}, out...)}
}

func (e *Engine) stepAdjust(in types.Intent) types.Result {
	delta, err := strconv.Atoi(in.Arg(1))
	if in.Arg(0) == "" || err != nil {
		return lines("Usage: adjust <faction> <delta> [reason]")
	}
	id, prompt := e.resolveArg(resolve.Faction, in.Args[:1])
	if prompt != "" {
		return lines(prompt)
	}
	if _, ok := e.Faction(id); !ok {
		return lines("There is no faction called " + id + ".")
	}
	e.ChangeReputation(id, delta, strings.Join(in.Args[2:], " "))
	f, _ := e.Faction(id)
	return lines(fmt.Sprintf("%s now regards you as %s.", e.factionName(id), f.Level))
}

func (e *Engine) factionName(id string) string {
	if def, ok := e.Defs.Factions[id]; ok {
		return displayName(def.Name, id)
	}
	return id
}

func (e *Engine) stepPerks() types.Result {
	out := []string{fmt.Sprintf("Perk points: %d. Artifact slots: %d/%d.",
		e.State.Perks.Points, len(e.State.Perks.Equipped), e.State.Perks.Slots)}
	for _, p := range e.AvailablePerks() {
		out = append(out, fmt.Sprintf("  %s (rank %d) %s", displayName(p.Name, p.ID), e.Perks.Rank(p.ID, e.State)+1, p.Description))
	}
	if len(out) == 1 {
		out = append(out, "  Nothing to unlock right now.")
	}
	return types.Result{Output: out}
}

func (e *Engine) stepUnlock(in types.Intent) types.Result {
	id, prompt := e.resolveArg(resolve.Perk, in.Args)
	if prompt != "" {
		return lines(prompt)
	}
	before := e.Perks.Rank(id, e.State)
	e.UnlockPerk(id)
	if e.Perks.Rank(id, e.State) == before {
		return lines("You cannot unlock that.")
	}
	return lines(fmt.Sprintf("Unlocked %s rank %d.", e.perkName(id), before+1))
}

func (e *Engine) stepEquip(in types.Intent, equip bool) types.Result {
	id, prompt := e.resolveArg(resolve.Perk, in.Args)
	if prompt != "" {
		return lines(prompt)
	}
	was := state.IsEquipped(e.State, id)
	if equip {
		e.Equip(id)
	} else {
		e.Unequip(id)
	}
	now := state.IsEquipped(e.State, id)
	switch {
	case equip && now && !was:
		return lines(fmt.Sprintf("You equip %s.", e.perkName(id)))
	case !equip && was && !now:
		return lines(fmt.Sprintf("You set aside %s.", e.perkName(id)))
	default:
		return lines("Nothing changes.")
	}
}

func (e *Engine) perkName(id string) string {
	if def, ok := e.Defs.Perks[id]; ok {
		return displayName(def.Name, id)
	}
	return id
}

func (e *Engine) stepStats() types.Result {
	out := []string{fmt.Sprintf("Level %d", e.State.Level)}
	for _, name := range types.AbilityNames {
		base, _ := e.State.Abilities.Get(name)
		eff := e.EffectiveAbility(name)
		line := fmt.Sprintf("  %-12s %2d", name, eff)
		if eff != base {
			line += fmt.Sprintf(" (base %d)", base)
		}
		out = append(out, line)
	}
	stats := e.EffectiveStats()
	names := make([]string, 0, len(stats))
	for k := range stats {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		out = append(out, fmt.Sprintf("  %-12s %d (%+d)", k, stats[k], effects.TotalStatModifier(e.State, k)))
	}
	return types.Result{Output: out}
}

func (e *Engine) stepInventory() types.Result {
	if len(e.State.Inventory) == 0 {
		return lines("You are carrying nothing.")
	}
	names := make([]string, 0, len(e.State.Inventory))
	for _, it := range e.State.Inventory {
		name := displayName(it.Name, it.ID)
		if it.Quantity > 1 {
			name = fmt.Sprintf("%s x%d", name, it.Quantity)
		}
		names = append(names, name)
	}
	return lines("You are carrying: " + strings.Join(names, ", ") + ".")
}

func (e *Engine) stepGive(in types.Intent) types.Result {
	id := in.Arg(0)
	if id == "" {
		return lines("Give what?")
	}
	qty, err := strconv.Atoi(in.Arg(1))
	if err != nil || qty < 1 {
		qty = 1
	}
	e.State = handlers.GiveItem(e.State, id, qty)
	return lines(fmt.Sprintf("You receive %s.", id))
}

func (e *Engine) stepFlag(in types.Intent) types.Result {
	name := in.Arg(0)
	if name == "" {
		keys := make([]string, 0, len(e.State.Flags))
		for k := range e.State.Flags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, fmt.Sprintf("  %s = %v", k, e.State.Flags[k]))
		}
		if len(out) == 0 {
			return lines("No flags set.")
		}
		return types.Result{Output: out}
	}
	if len(in.Args) < 2 {
		v, ok := state.GetFlag(e.State, name)
		if !ok {
			return lines(name + " is unset.")
		}
		return lines(fmt.Sprintf("%s = %v", name, v))
	}
	ns := state.Fork(e.State)
	state.CloneFlags(ns)
	ns.Flags[name] = parseFlagValue(in.Arg(1))
	e.State = ns
	return lines(fmt.Sprintf("%s = %v", name, ns.Flags[name]))
}

// parseFlagValue reads booleans and numbers; anything else is a string.
func parseFlagValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func lines(s ...string) types.Result {
	return types.Result{Output: s}
}
