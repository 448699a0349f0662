// Package classifier decides whether a torrent should be retired and why.
//
// Classification is a pure function of a torrent snapshot and the policy that
// applies to it. Rules are checked in this order and the first match wins:
//
//  1. Unregistered by tracker: error code >= 2 and the lowercased error
//     message is one of the configured unregistered phrases.
//  2. Local data error: error code 3 and the lowercased error message
//     contains one of the configured local error phrases.
//  3. Ratio threshold: error-free, seeding, and ratio > policy max ratio.
//  4. Seed time threshold: error-free, seeding, and seconds seeding >
//     policy min seed time.
//
// Torrents in any error state are never judged against ratio or seed time.
package classifier

import (
	"strings"

	"github.com/blackwell-systems/seedprune/internal/policy"
	"github.com/blackwell-systems/seedprune/internal/torrent"
)

// Phrases reported by trackers and the daemon that the original tooling
// recognised out of the box.
var (
	DefaultUnregisteredMessages = []string{"unregistered torrent"} // BTN / Gazelle
	DefaultLocalErrors          = []string{"no data found"}
)

// Decision is a verdict to retire one torrent.
type Decision struct {
	TorrentID string
	Reason    Reason
	DryRun    bool
}

// Classifier holds the configured error phrase sets.
type Classifier struct {
	unregistered map[string]struct{}
	localErrors  []string
}

// New builds a Classifier. Phrases are trimmed and lowercased; empty phrases
// are ignored.
func New(unregistered, localErrors []string) *Classifier {
	c := &Classifier{
		unregistered: make(map[string]struct{}, len(unregistered)),
	}
	for _, msg := range unregistered {
		if msg = normalize(msg); msg != "" {
			c.unregistered[msg] = struct{}{}
		}
	}
	for _, msg := range localErrors {
		if msg = normalize(msg); msg != "" {
			c.localErrors = append(c.localErrors, msg)
		}
	}
	return c
}

// NewDefault builds a Classifier with the default phrase sets.
func NewDefault() *Classifier {
	return New(DefaultUnregisteredMessages, DefaultLocalErrors)
}

// Classify returns a decision for s under p, or false when the torrent should
// be left alone.
func (c *Classifier) Classify(s *torrent.Snapshot, p policy.Policy) (Decision, bool) {
	if reason, ok := c.reason(s, p); ok {
		return Decision{TorrentID: s.ID, Reason: reason}, true
	}
	return Decision{}, false
}

func (c *Classifier) reason(s *torrent.Snapshot, p policy.Policy) (Reason, bool) {
	msg := normalize(s.ErrorMessage)

	if s.ErrorCode >= torrent.ErrorTrackerError {
		if _, ok := c.unregistered[msg]; ok {
			return ReasonUnregistered, true
		}
	}

	if s.ErrorCode == torrent.ErrorLocal {
		for _, phrase := range c.localErrors {
			if strings.Contains(msg, phrase) {
				return ReasonLocalDataError, true
			}
		}
	}

	if s.HasError() || s.Status != torrent.StatusSeeding {
		return "", false
	}

	if s.Ratio > p.MaxRatio {
		return ReasonRatioExceeded, true
	}
	if s.SecondsSeeding > p.MinSeedTimeSeconds {
		return ReasonSeedTimeExceeded, true
	}
	return "", false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
