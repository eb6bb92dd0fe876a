// Package tui provides a Bubble Tea terminal UI for the TaleCore rules engine.
package tui

// History keeps submitted commands for Up/Down recall. While navigating it
// remembers the line being typed so stepping past the newest entry gives
// it back.
type History struct {
	entries []string
	limit   int
	cursor  int // len(entries) when not navigating
	draft   string
}

// NewHistory creates a history holding at most limit commands.
func NewHistory(limit int) *History {
	return &History{entries: make([]string, 0, limit), limit: limit}
}

// Push records a command and stops navigation. Repeating the newest
// entry is not recorded again.
func (h *History) Push(cmd string) {
	if n := len(h.entries); n == 0 || h.entries[n-1] != cmd {
		h.entries = append(h.entries, cmd)
		if len(h.entries) > h.limit {
			h.entries = h.entries[len(h.entries)-h.limit:]
		}
	}
	h.Reset()
}

// Prev steps to an older entry. current is the line being edited; it is
// kept as the draft on the first step. ok is false when history is empty.
func (h *History) Prev(current string) (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	if h.cursor == len(h.entries) {
		h.draft = current
	}
	if h.cursor > 0 {
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next steps to a newer entry, returning the draft once past the newest.
// ok is false when not navigating.
func (h *History) Next() (string, bool) {
	if h.cursor >= len(h.entries) {
		return "", false
	}
	h.cursor++
	if h.cursor == len(h.entries) {
		return h.draft, true
	}
	return h.entries[h.cursor], true
}

// Reset stops navigation and drops the draft.
func (h *History) Reset() {
	h.cursor = len(h.entries)
	h.draft = ""
}

// Len returns the number of stored commands.
func (h *History) Len() int { return len(h.entries) }
