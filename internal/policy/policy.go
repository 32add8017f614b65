// Package policy holds the fixed enforcement rules: which applications are
// denylisted once the device is past due, and which shortcuts are banned.
package policy

import (
	"sort"
	"strings"
)

// BlockedApplicationSet is an immutable set of bundle identifiers.
// It is configured at startup and only queried afterwards.
type BlockedApplicationSet struct {
	ids map[string]struct{}
}

// NewBlockedApplicationSet builds a set from bundle identifiers.
// Blank entries are ignored; surrounding whitespace is trimmed.
func NewBlockedApplicationSet(bundleIDs ...string) BlockedApplicationSet {
	ids := make(map[string]struct{}, len(bundleIDs))
	for _, id := range bundleIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		ids[id] = struct{}{}
	}
	return BlockedApplicationSet{ids: ids}
}

// Contains reports whether bundleID is denylisted. Matching is exact.
func (s BlockedApplicationSet) Contains(bundleID string) bool {
	if bundleID == "" {
		return false
	}
	_, ok := s.ids[bundleID]
	return ok
}

// Len returns the number of denylisted identifiers.
func (s BlockedApplicationSet) Len() int {
	return len(s.ids)
}

// List returns the identifiers in sorted order.
func (s BlockedApplicationSet) List() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
