// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for the TaleCore rules engine.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nathoo/talecore/engine"
	"github.com/nathoo/talecore/engine/save"
	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/types"
)

// CLI handles terminal interaction with the player.
type CLI struct {
	Engine    *engine.Engine
	Defs      *state.Defs
	Store     save.Store
	Compress  bool // zstd-compress snapshots
	In        io.Reader
	Out       io.Writer
	Trace     bool
	EchoInput bool // echo each input line after the prompt (for script playback)
	Width     int  // wrap output at this column; 0 disables wrapping
	lastCmd   string
}

// New creates a CLI wired to the given engine and snapshot store.
func New(eng *engine.Engine, store save.Store) *CLI {
	return &CLI{
		Engine: eng,
		Defs:   eng.Defs,
		Store:  store,
		In:     os.Stdin,
		Out:    os.Stdout,
	}
}

// Run shows the intro then loops: prompt, input, dispatch, output.
// It returns when input ends or the player quits.
func (c *CLI) Run(ctx context.Context) {
	if c.Defs.Story.Intro != "" {
		c.printLine(c.Defs.Story.Intro)
		c.printLine("")
	}
	c.printSystem("Type /help for commands.")

	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		if strings.HasPrefix(input, "/") {
			if c.handleMeta(ctx, input) {
				return
			}
			continue
		}

		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		result := c.Engine.Step(input)
		c.printResult(result)

		if c.Trace {
			c.printTrace(result)
		}
	}
}

// handleMeta dispatches meta-commands. Returns true if the session should end.
func (c *CLI) handleMeta(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/save":
		c.cmdSave(ctx, arg)

	case "/load":
		c.cmdLoad(ctx, arg)

	case "/saves":
		c.cmdSaves(ctx)

	case "/delete":
		c.cmdDelete(ctx, arg)

	case "/help":
		c.cmdHelp()

	case "/state":
		c.cmdState()

	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *CLI) cmdSave(ctx context.Context, slot string) {
	if slot == "" {
		slot = save.DefaultSlot
	}
	if c.Store == nil {
		c.printSystem("Save failed: no save store configured.")
		return
	}
	msg, err := SaveGame(ctx, c.Engine, c.Store, slot, c.Compress)
	if err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	c.printSystem(msg)
}

func (c *CLI) cmdLoad(ctx context.Context, slot string) {
	if slot == "" {
		slot = save.DefaultSlot
	}
	if c.Store == nil {
		c.printSystem("Load failed: no save store configured.")
		return
	}
	msg, err := LoadGame(ctx, c.Engine, c.Store, slot)
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	c.printSystem(msg)
	if c.Engine.State.Dialogue.Session.Active {
		c.printResult(c.Engine.Step("look"))
	}
}

func (c *CLI) cmdSaves(ctx context.Context) {
	if c.Store == nil {
		c.printSystem("No save store configured.")
		return
	}
	slots, err := c.Store.List(ctx)
	if err != nil {
		c.printSystem(fmt.Sprintf("Listing saves failed: %v", err))
		return
	}
	if len(slots) == 0 {
		c.printSystem("No saved games.")
		return
	}
	for _, s := range slots {
		c.printLine(fmt.Sprintf("  %-20s %s", s.Name, s.UpdatedAt.Local().Format(time.DateTime)))
	}
}

func (c *CLI) cmdDelete(ctx context.Context, slot string) {
	if slot == "" {
		c.printSystem("Delete which save?")
		return
	}
	if c.Store == nil {
		c.printSystem("No save store configured.")
		return
	}
	if err := c.Store.Delete(ctx, slot); err != nil {
		c.printSystem(fmt.Sprintf("Delete failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("Deleted %s.", slot))
}

// SaveGame captures the engine state into slot and returns a status line.
func SaveGame(ctx context.Context, eng *engine.Engine, store save.Store, slot string, compress bool) (string, error) {
	if err := save.ValidateSlot(slot); err != nil {
		return "", err
	}
	snap := save.Capture(eng.State, eng.Defs, eng.RNG.Seed(), eng.RNG.Position(), time.Now())
	data, err := save.Encode(snap, compress)
	if err != nil {
		return "", err
	}
	if err := store.Put(ctx, slot, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("Game saved to %s.", slot), nil
}

// LoadGame restores the engine from slot and returns a status line.
func LoadGame(ctx context.Context, eng *engine.Engine, store save.Store, slot string) (string, error) {
	if err := save.ValidateSlot(slot); err != nil {
		return "", err
	}
	data, err := store.Get(ctx, slot)
	if errors.Is(err, save.ErrNotFound) {
		return "", fmt.Errorf("no save named %s", slot)
	}
	if err != nil {
		return "", err
	}
	snap, err := save.Decode(data)
	if err != nil {
		return "", err
	}
	if eng.Defs != nil && snap.Story != "" && snap.Story != eng.Defs.Story.Title {
		return "", fmt.Errorf("save is for %q, not %q", snap.Story, eng.Defs.Story.Title)
	}
	st := snap.State
	eng.Restore(&st, snap.RNGSeed, snap.RNGPosition)
	return fmt.Sprintf("Game loaded from %s (saved %s).", slot, snap.SavedAt.Local().Format(time.DateTime)), nil
}

// HelpLines lists the meta-commands and console verbs.
var HelpLines = []string{
	"System:",
	"  /save [slot]     Save game (default: quicksave)",
	"  /load [slot]     Load game (default: quicksave)",
	"  /saves           List saved games",
	"  /delete <slot>   Delete a saved game",
	"  /quit            Exit",
	"  /help            Show this help",
	"  /state           Debug: dump the player state as JSON",
	"  /trace           Toggle debug trace output",
	"",
	"Conversation:",
	"  talk <npc>                 Start a conversation",
	"  say <n|response>  (r)      Pick a response; a bare number works too",
	"  look (l)                   Repeat the current line",
	"  bye                        End the conversation",
	"",
	"Checks:",
	"  check <ability> <dc> [source bonus]   Roll a skill check",
	"  chance <ability> <dc>                 Show the odds",
	"",
	"Effects:",
	"  effect <template>    Apply an effect",
	"  remove <effect>      Remove an active effect",
	"  trigger <effect>     Fire an effect's trigger behaviour",
	"  advance <ep> <scene> Move to another scene",
	"  tick  (z)            Let time pass",
	"  status               List active effects",
	"",
	"Factions:",
	"  reputation (rep)              Show standings",
	"  adjust <faction> <n> [why]    Change a standing",
	"  discover <faction>            Reveal a hidden faction",
	"  alignment                     Show alignment",
	"",
	"Perks:",
	"  perks                List perks you can unlock",
	"  unlock <perk>        Spend a point on a perk",
	"  equip / unequip <artifact>",
	"  award <n>            Grant perk points",
	"",
	"Player:",
	"  stats (st)           Abilities and stats",
	"  inventory (i)        What you carry",
	"  give <item> [n]      Add items",
	"  flag [name [value]]  Show or set flags",
	"  again (g)            Repeat your last command",
}

func (c *CLI) cmdHelp() {
	for _, line := range HelpLines {
		c.printLine(line)
	}
}

func (c *CLI) cmdState() {
	s := c.Engine.State
	title := cases.Title(language.English)
	parts := make([]string, 0, len(types.AbilityNames))
	for _, name := range types.AbilityNames {
		parts = append(parts, fmt.Sprintf("%s %d", title.String(name), c.Engine.EffectiveAbility(name)))
	}
	c.printSystem(fmt.Sprintf("Level %d | %s", s.Level, strings.Join(parts, ", ")))

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		c.printSystem(fmt.Sprintf("State dump failed: %v", err))
		return
	}
	fmt.Fprintln(c.Out, string(data))
}

func (c *CLI) printTrace(result types.Result) {
	if result.Check != nil {
		data, _ := json.Marshal(result.Check)
		c.printSystem("[trace] check " + string(data))
	}
	for _, t := range result.Trace {
		c.printSystem("[trace] " + t)
	}
}

func (c *CLI) printResult(result types.Result) {
	for _, line := range result.Output {
		c.printLine(line)
	}
}

func (c *CLI) printLine(text string) {
	if c.Width > 0 {
		text = wordwrap.String(text, c.Width)
	}
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
