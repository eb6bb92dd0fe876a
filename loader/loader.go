package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/talecore/engine/state"
	"github.com/nathoo/talecore/logger"
)

// collector accumulates Lua definitions during file execution.
type collector struct {
	story    *lua.LTable
	player   *lua.LTable
	factions []rawDef
	perks    []rawDef
	effects  []rawDef
	npcs     []rawDef
	handlers []rawDef
}

// rawDef is a curried constructor call before compilation.
type rawDef struct {
	id    string
	table *lua.LTable
}

// Load reads all .lua files from dir, compiles them into content
// definitions, validates references, and returns the immutable Defs.
// Validation warnings go to log. The Lua VM is discarded after loading.
func Load(dir string, log *slog.Logger) (*state.Defs, error) {
	if log == nil {
		log = logger.Discard()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading story directory %s: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			luaFiles = append(luaFiles, e.Name())
		}
	}
	if len(luaFiles) == 0 {
		return nil, fmt.Errorf("no .lua files found in %s", dir)
	}
	luaFiles = sortedLuaFiles(luaFiles)

	L := newVM()
	defer L.Close()

	coll := &collector{}
	registerAPI(L, coll)

	for _, f := range luaFiles {
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return nil, fmt.Errorf("executing %s: %w", f, err)
		}
	}

	return finish(coll, log)
}

// LoadString compiles a single Lua chunk. It is the in-memory
// counterpart of Load.
func LoadString(src string, log *slog.Logger) (*state.Defs, error) {
	if log == nil {
		log = logger.Discard()
	}
	L := newVM()
	defer L.Close()

	coll := &collector{}
	registerAPI(L, coll)
	if err := L.DoString(src); err != nil {
		return nil, fmt.Errorf("executing story: %w", err)
	}
	return finish(coll, log)
}

func finish(coll *collector, log *slog.Logger) (*state.Defs, error) {
	defs, err := compile(coll)
	if err != nil {
		return nil, fmt.Errorf("compiling story data: %w", err)
	}
	if err := validate(defs, log); err != nil {
		return nil, err
	}
	return defs, nil
}

// newVM creates a sandboxed Lua state.
func newVM() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)
	return L
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes globals that reach the filesystem, bypass metatables
// or reseed the Lua RNG.
func sandbox(L *lua.LState) {
	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	} {
		L.SetGlobal(name, lua.LNil)
	}
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("randomseed", lua.LNil)
		tbl.RawSetString("random", lua.LNil)
	}
}
