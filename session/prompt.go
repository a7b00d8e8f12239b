package session

import "strings"

var promptMarkers = []string{"password", "sudo"}

// MatchesPrompt reports whether decoded output looks like a password
// prompt: it contains "password" or "sudo" in any case. This also matches
// ordinary output mentioning those words; the worker only acts on the
// first match.
func MatchesPrompt(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range promptMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
