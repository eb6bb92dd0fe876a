package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nathoo/talecore/types"
)

var upper = cases.Upper(language.English)

// abilityTag shortens an ability name for the status bar: "charisma" -> "CHA".
func abilityTag(name string) string {
	if len(name) > 3 {
		name = name[:3]
	}
	return upper.String(name)
}

// renderStatusBar produces a full-width inverted status line showing the
// effective abilities on the left and the conversation, active effect
// count and perk points on the right.
func (m Model) renderStatusBar() string {
	s := m.engine.State

	abilities := make([]string, 0, len(types.AbilityNames))
	for _, name := range types.AbilityNames {
		abilities = append(abilities, fmt.Sprintf("%s %d", abilityTag(name), m.engine.EffectiveAbility(name)))
	}
	left := fmt.Sprintf(" Lv %d | %s", s.Level, strings.Join(abilities, " "))

	right := fmt.Sprintf("FX:%d Pts:%d ", len(s.Effects.Active), s.Perks.Points)
	if sess := s.Dialogue.Session; sess.Active {
		candidate := fmt.Sprintf("Talking: %s | %s", m.npcName(sess.NPCID), right)
		if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
			right = candidate
		}
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}

// npcName returns the display name of an NPC, title-casing the id when
// the content gives no name of its own: "old_keeper" -> "Old Keeper".
func (m Model) npcName(id string) string {
	if npc, ok := m.engine.Defs.NPCs[id]; ok && npc.Name != "" && npc.Name != id {
		return npc.Name
	}
	return cases.Title(language.English).String(strings.ReplaceAll(id, "_", " "))
}
