// TaleCore runs a data-driven narrative rules engine over a Lua story.
// Usage: talecore [--version] [--plain] [--script <file>] [--trace] [--config <file>] [story_directory]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nathoo/talecore/cli"
	"github.com/nathoo/talecore/config"
	"github.com/nathoo/talecore/engine"
	"github.com/nathoo/talecore/engine/save"
	"github.com/nathoo/talecore/loader"
	"github.com/nathoo/talecore/logger"
	"github.com/nathoo/talecore/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = "Usage: talecore [--version] [--plain] [--script <file>] [--trace] [--config <file>] [story_directory]"

func main() {
	os.Exit(run())
}

func run() int {
	plain := false
	trace := false
	var storyDir, scriptFile string
	configFile := os.Getenv(config.EnvPrefix + "CONFIG")

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("talecore %s (commit %s, built %s)\n", version, commit, date)
			return 0
		case "--plain":
			plain = true
		case "--trace":
			trace = true
		case "--script", "--config":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a file path\n", args[i])
				return 1
			}
			if args[i] == "--script" {
				scriptFile = args[i+1]
			} else {
				configFile = args[i+1]
			}
			i++
		default:
			if storyDir == "" {
				storyDir = args[i]
			}
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	log := logger.Setup(cfg, os.Stderr)

	if storyDir == "" {
		storyDir = cfg.ContentDir
	}
	if storyDir == "" {
		fmt.Fprintln(os.Stderr, usage)
		return 1
	}

	defs, err := loader.Load(storyDir, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading story: %v\n", err)
		return 1
	}
	if cfg.ArtifactSlots > 0 {
		defs.Player.ArtifactSlots = cfg.ArtifactSlots
	}
	if cfg.PerkPoints > 0 {
		defs.Player.PerkPoints = cfg.PerkPoints
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := save.Open(ctx, cfg.StoreOptions(), log)
	if err != nil {
		logger.WithError(log, err).Warn("save store unavailable, saving disabled", "backend", cfg.Save.Backend)
		store = nil
	} else {
		defer store.Close()
	}

	eng := engine.New(defs, engine.WithSeed(cfg.Seed), engine.WithLogger(log))
	log.Debug("story loaded", "title", defs.Story.Title, "dir", storyDir, "seed", eng.RNG.Seed())

	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			return 1
		}
		defer f.Close()
		c := newCLI(eng, store, cfg)
		c.In = f
		c.EchoInput = true
		c.Trace = trace
		c.Run(ctx)
		return 0
	}

	if plain || !isTerminal() {
		c := newCLI(eng, store, cfg)
		c.Trace = trace
		c.Run(ctx)
		return 0
	}

	if err := tui.Run(ctx, eng, tui.Options{Store: store, Compress: cfg.Save.Compress}); err != nil {
		log.Error("tui exited", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func newCLI(eng *engine.Engine, store save.Store, cfg config.Config) *cli.CLI {
	s := eng.Defs.Story
	fmt.Printf("%s v%s by %s\n\n", s.Title, s.Version, s.Author)
	c := cli.New(eng, store)
	c.Compress = cfg.Save.Compress
	return c
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
