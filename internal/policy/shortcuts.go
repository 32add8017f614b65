package policy

import (
	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

// ShortcutTable is the fixed table of banned key combinations.
type ShortcutTable struct {
	shortcuts []domain.BannedShortcut
}

// DefaultShortcuts returns the banned combinations. Not user configurable.
func DefaultShortcuts() *ShortcutTable {
	return NewShortcutTable(
		domain.BannedShortcut{Key: "w", Modifiers: domain.ModifierCommand, Action: "close the application"},
		domain.BannedShortcut{Key: "n", Modifiers: domain.ModifierCommand, Action: "create a new window"},
		domain.BannedShortcut{Key: "m", Modifiers: domain.ModifierCommand, Action: "minimise the application"},
		domain.BannedShortcut{Key: "q", Modifiers: domain.ModifierCommand, Action: "quit the application"},
	)
}

// NewShortcutTable creates a table with custom shortcuts (for testing).
func NewShortcutTable(shortcuts ...domain.BannedShortcut) *ShortcutTable {
	return &ShortcutTable{shortcuts: shortcuts}
}

// Match returns the banned shortcut for an event, if any.
// Modifiers must match exactly after masking with DeviceIndependentFlagsMask.
func (t *ShortcutTable) Match(ev domain.KeyEvent) (domain.BannedShortcut, bool) {
	mods := ev.Modifiers & domain.DeviceIndependentFlagsMask
	for _, s := range t.shortcuts {
		if mods == s.Modifiers && ev.Characters == s.Key {
			return s, true
		}
	}
	return domain.BannedShortcut{}, false
}

// All returns a copy of the table.
func (t *ShortcutTable) All() []domain.BannedShortcut {
	out := make([]domain.BannedShortcut, len(t.shortcuts))
	copy(out, t.shortcuts)
	return out
}
