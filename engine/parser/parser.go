// Package parser converts console command strings into Intents.
// No NLP: aliases, multi-word verbs and whitespace splitting.
package parser

import (
	"strings"

	"github.com/nathoo/talecore/types"
)

var verbAliases = map[string]string{
	// Conversation
	"speak":    "talk",
	"chat":     "talk",
	"converse": "talk",
	"choose":   "say",
	"reply":    "say",
	"answer":   "say",
	"pick":     "say",
	"r":        "say",
	"leave":    "bye",
	"goodbye":  "bye",
	"l":        "look",

	// Checks
	"roll": "check",
	"test": "check",
	"odds": "chance",

	// Effects
	"apply":   "effect",
	"buff":    "effect",
	"dispel":  "remove",
	"revoke":  "remove",
	"fire":    "trigger",
	"scene":   "advance",
	"enter":   "advance",
	"wait":    "tick",
	"z":       "tick",
	"effects": "status",

	// Reputation
	"rep":      "reputation",
	"factions": "reputation",
	"standing": "reputation",
	"reveal":   "discover",

	// Perks
	"learn":  "unlock",
	"wear":   "equip",
	"don":    "equip",
	"doff":   "unequip",
	"points": "award",

	// Inspection
	"st":    "stats",
	"abi":   "stats",
	"inv":   "inventory",
	"i":     "inventory",
	"flags": "flag",
}

var fillers = map[string]bool{
	"to": true, "with": true, "the": true, "a": true, "an": true,
}

// Parse converts a raw command string into an Intent. The verb is
// lowercased; arguments keep their case except for filler words, which
// are dropped.
func Parse(input string) types.Intent {
	input = strings.TrimSpace(input)
	if input == "" {
		return types.Intent{}
	}

	words := strings.Fields(input)
	words[0] = strings.ToLower(words[0])

	// A bare number during conversation picks a response.
	if len(words) == 1 && isNumber(words[0]) {
		return types.Intent{Verb: "say", Args: words}
	}

	words = expandMultiWordVerbs(words)

	if alias, ok := verbAliases[words[0]]; ok {
		words[0] = alias
	}

	return types.Intent{
		Verb: words[0],
		Args: stripFillers(words[1:]),
	}
}

// expandMultiWordVerbs handles "talk to", "end dialogue", "take off" etc.
func expandMultiWordVerbs(words []string) []string {
	if len(words) < 2 {
		return words
	}
	second := strings.ToLower(words[1])

	switch words[0] {
	case "talk", "speak", "chat":
		if second == "to" || second == "with" {
			return append([]string{"talk"}, words[2:]...)
		}
	case "end":
		if second == "dialogue" || second == "conversation" || second == "talk" {
			return []string{"bye"}
		}
	case "take":
		if second == "off" {
			return append([]string{"unequip"}, words[2:]...)
		}
	case "put":
		if second == "on" {
			return append([]string{"equip"}, words[2:]...)
		}
	case "skill", "ability":
		if second == "check" {
			return append([]string{"check"}, words[2:]...)
		}
	case "next":
		if second == "scene" {
			return append([]string{"advance"}, words[2:]...)
		}
	}
	return words
}

func stripFillers(words []string) []string {
	var out []string
	for _, w := range words {
		if !fillers[strings.ToLower(w)] {
			out = append(out, w)
		}
	}
	return out
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
