// Package botguard filters comment events from automated senders before any
// command parsing or classification runs, so the service never reacts to its
// own output or to other bots.
package botguard

import "strings"

// DefaultSuffixes are login suffixes conventionally used by automated
// accounts on GitHub.
var DefaultSuffixes = []string{"[bot]", "-bot"}

// Guard decides whether a sender is an automated account.
type Guard struct {
	suffixes []string
}

// New creates a guard that flags the platform bot type plus any login ending
// in one of the given suffixes. Passing nil uses DefaultSuffixes.
func New(suffixes []string) *Guard {
	if suffixes == nil {
		suffixes = DefaultSuffixes
	}
	return &Guard{suffixes: suffixes}
}

// IsBot reports whether the event sender should be discarded unprocessed.
func (g *Guard) IsBot(login string, platformBot bool) bool {
	if platformBot {
		return true
	}
	login = strings.ToLower(strings.TrimSpace(login))
	for _, suffix := range g.suffixes {
		if suffix != "" && strings.HasSuffix(login, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}
