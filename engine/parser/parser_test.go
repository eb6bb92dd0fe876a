package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nathoo/talecore/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  types.Intent
	}{
		{name: "empty string", input: "", want: types.Intent{}},
		{name: "whitespace only", input: "   ", want: types.Intent{}},

		{name: "bare verb", input: "stats", want: types.Intent{Verb: "stats"}},
		{name: "verb is lowercased", input: "TALK innkeeper", want: types.Intent{Verb: "talk", Args: []string{"innkeeper"}}},
		{name: "args keep case", input: "flag Met_Guard", want: types.Intent{Verb: "flag", Args: []string{"Met_Guard"}}},

		{name: "rep alias", input: "rep", want: types.Intent{Verb: "reputation"}},
		{name: "roll alias", input: "roll strength 7", want: types.Intent{Verb: "check", Args: []string{"strength", "7"}}},
		{name: "learn alias", input: "learn iron_will", want: types.Intent{Verb: "unlock", Args: []string{"iron_will"}}},
		{name: "z alias", input: "z", want: types.Intent{Verb: "tick"}},

		{name: "talk to", input: "talk to innkeeper", want: types.Intent{Verb: "talk", Args: []string{"innkeeper"}}},
		{name: "speak with", input: "speak with the guard", want: types.Intent{Verb: "talk", Args: []string{"guard"}}},
		{name: "end dialogue", input: "end dialogue", want: types.Intent{Verb: "bye"}},
		{name: "take off", input: "take off amulet", want: types.Intent{Verb: "unequip", Args: []string{"amulet"}}},
		{name: "put on", input: "put on amulet", want: types.Intent{Verb: "equip", Args: []string{"amulet"}}},
		{name: "skill check", input: "skill check luck 4", want: types.Intent{Verb: "check", Args: []string{"luck", "4"}}},
		{name: "next scene", input: "next scene ep1 market", want: types.Intent{Verb: "advance", Args: []string{"ep1", "market"}}},

		{name: "bare number picks response", input: "2", want: types.Intent{Verb: "say", Args: []string{"2"}}},
		{name: "choose alias", input: "choose 3", want: types.Intent{Verb: "say", Args: []string{"3"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestIntentArg(t *testing.T) {
	in := Parse("check strength 7")
	assert.Equal(t, "strength", in.Arg(0))
	assert.Equal(t, "7", in.Arg(1))
	assert.Equal(t, "", in.Arg(2))
	assert.Equal(t, "", in.Arg(-1))
}
