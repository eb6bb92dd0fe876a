package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarration = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleSpeaker = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			Bold(true)

	styleDialogue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleResponse = lipgloss.NewStyle().
			Foreground(lipgloss.Color("117"))

	styleSuccess = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	styleFailure = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarration lineKind = iota
	kindDialogue
	kindResponse
	kindSuccess
	kindFailure
	kindSystem
	kindError
	kindTrace
)

var errorPrefixes = []string{
	"I don't know how to",
	"There is no one called",
	"You are not talking",
	"That is not one of",
	"No such",
	"Nothing happens.",
	"Usage:",
	"You cannot",
}

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, "Success!"):
		return kindSuccess
	case strings.HasPrefix(line, "Failure!"):
		return kindFailure
	case isResponseLine(line):
		return kindResponse
	}
	for _, p := range errorPrefixes {
		if strings.HasPrefix(line, p) {
			return kindError
		}
	}
	if speakerEnd(line) > 0 {
		return kindDialogue
	}
	return kindNarration
}

// isResponseLine matches the numbered choices under a dialogue line.
func isResponseLine(line string) bool {
	rest, ok := strings.CutPrefix(line, "  ")
	if !ok {
		return false
	}
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	return digits > 0 && strings.HasPrefix(rest[digits:], ". ")
}

// speakerEnd returns the index of the colon after a leading speaker name,
// or -1. Speaker names are short and have no sentence punctuation.
func speakerEnd(line string) int {
	i := strings.Index(line, ": ")
	if i <= 0 || i > 32 || strings.ContainsAny(line[:i], ".!?[") {
		return -1
	}
	return i
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindDialogue:
		return styledDialogue(line)
	case kindResponse:
		return styleResponse.Render(line)
	case kindSuccess:
		return styleSuccess.Render(line)
	case kindFailure:
		return styleFailure.Render(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleNarration.Render(line)
	}
}

// styledDialogue renders "Speaker: text" with the speaker in bold.
func styledDialogue(line string) string {
	i := speakerEnd(line)
	if i < 0 {
		return styleDialogue.Render(line)
	}
	return styleSpeaker.Render(line[:i+1]) + styleDialogue.Render(line[i+1:])
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
