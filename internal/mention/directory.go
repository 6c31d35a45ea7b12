package mention

import (
	"context"
	"strings"
)

// DirectoryEntry is a user record used as a lookup target during resolution.
type DirectoryEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
}

// matcher reports whether a mention username refers to a directory entry.
// Matchers run in priority order; the first one that hits any entry wins.
type matcher func(username, displayName string) bool

var matchers = []matcher{
	matchExact,
	matchFirstWord,
	matchPrefix,
	matchSubstring,
}

// Directory resolves mention usernames against a snapshot of user entries.
// The snapshot is fetched once per resolution batch and shared read-only by
// all concurrent lookups.
type Directory struct {
	entries []DirectoryEntry
}

func NewDirectory(entries []DirectoryEntry) *Directory {
	return &Directory{entries: entries}
}

// Resolve returns the ID of the best-matching entry, or "" when no strategy
// matches. It satisfies ResolverFunc.
func (d *Directory) Resolve(_ context.Context, username string) (string, error) {
	name := strings.TrimSpace(username)
	if name == "" {
		return "", nil
	}
	for _, match := range matchers {
		for _, entry := range d.entries {
			if match(name, entry.DisplayName) {
				return entry.ID, nil
			}
		}
	}
	return "", nil
}

// matchExact: full mention equals the display name, case-insensitively.
func matchExact(username, displayName string) bool {
	return strings.EqualFold(username, displayName)
}

// matchFirstWord: for multi-word mentions only, the mention's first word
// equals the display name's first word.
func matchFirstWord(username, displayName string) bool {
	mentionWords := strings.Fields(username)
	if len(mentionWords) < 2 {
		return false
	}
	nameWords := strings.Fields(displayName)
	if len(nameWords) == 0 {
		return false
	}
	return strings.EqualFold(mentionWords[0], nameWords[0])
}

// matchPrefix: display name starts with the mention text.
func matchPrefix(username, displayName string) bool {
	return strings.HasPrefix(strings.ToLower(displayName), strings.ToLower(username))
}

// matchSubstring: display name contains the mention text anywhere.
func matchSubstring(username, displayName string) bool {
	return strings.Contains(strings.ToLower(displayName), strings.ToLower(username))
}
