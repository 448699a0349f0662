package policy

import "strings"

// Matches reports whether announceURL contains matchKey, ignoring case.
// An empty key matches nothing.
func Matches(matchKey, announceURL string) bool {
	key := strings.ToLower(strings.TrimSpace(matchKey))
	if key == "" {
		return false
	}
	return strings.Contains(strings.ToLower(announceURL), key)
}
