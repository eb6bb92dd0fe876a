// Package resolve maps names typed at the console to catalog ids.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/talecore/engine/state"
)

// Kind selects the catalog a name is looked up in.
type Kind string

const (
	NPC     Kind = "npc"
	Faction Kind = "faction"
	Perk    Kind = "perk"
	Effect  Kind = "effect"
)

// Entry is one catalog id with its display name.
type Entry struct {
	ID   string
	Name string
}

// AmbiguityError indicates several catalog entries matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("which %s? (%s)", e.Name, strings.Join(e.Candidates, ", "))
}

// NotFoundError indicates no catalog entry matched a name.
type NotFoundError struct {
	Kind Kind
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s called %q", e.Kind, e.Name)
}

// Catalog lists the entries of one kind, sorted by id.
func Catalog(defs *state.Defs, kind Kind) []Entry {
	var out []Entry
	switch kind {
	case NPC:
		for id, d := range defs.NPCs {
			out = append(out, Entry{id, d.Name})
		}
	case Faction:
		for id, d := range defs.Factions {
			out = append(out, Entry{id, d.Name})
		}
	case Perk:
		for id, d := range defs.Perks {
			out = append(out, Entry{id, d.Name})
		}
	case Effect:
		for id, d := range defs.Effects {
			out = append(out, Entry{id, d.Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve maps a typed name to a catalog id. An exact id wins outright,
// then an exact display name; otherwise the query must match a single
// entry by a word of its name or by its id with spaces for underscores.
func Resolve(defs *state.Defs, kind Kind, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", &NotFoundError{Kind: kind}
	}
	entries := Catalog(defs, kind)
	for _, e := range entries {
		if e.ID == query {
			return e.ID, nil
		}
	}

	q := strings.ToLower(query)
	var exact, partial []string
	for _, e := range entries {
		switch {
		case strings.ToLower(e.Name) == q:
			exact = append(exact, e.ID)
		case matchesName(e, q):
			partial = append(partial, e.ID)
		}
	}

	matches := exact
	if len(matches) == 0 {
		matches = partial
	}
	switch len(matches) {
	case 0:
		return "", &NotFoundError{Kind: kind, Name: query}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguityError{Name: query, Candidates: matches}
	}
}

// matchesName checks the word-based and id-based forms of a lowercased
// query: "guard" matches "City Guard", "sea legs" matches "sea_legs".
func matchesName(e Entry, q string) bool {
	for _, word := range strings.Fields(strings.ToLower(e.Name)) {
		if word == q {
			return true
		}
	}
	id := strings.ToLower(e.ID)
	return id == q || strings.ReplaceAll(q, " ", "_") == id
}
