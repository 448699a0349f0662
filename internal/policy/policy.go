// Package policy selects the seeding policy that applies to a torrent based
// on the trackers it announces to.
package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultKey is the rule key that names the fallback policy in configuration.
const DefaultKey = "DEFAULT"

// SeedTimeBuffer pads required seed times to absorb clock and accounting
// differences between the daemon and the tracker.
const SeedTimeBuffer = 1.1

// Policy holds retirement thresholds for seeding torrents.
type Policy struct {
	MinSeedTimeSeconds int64
	MaxRatio           float64
}

// TrackerRule binds a policy to torrents whose announce URLs contain MatchKey.
type TrackerRule struct {
	MatchKey string
	Policy   Policy
}

// BufferedSeconds converts a tracker's required seed time into seconds with
// SeedTimeBuffer applied.
func BufferedSeconds(d time.Duration) int64 {
	return int64(d.Seconds() * SeedTimeBuffer)
}

// IsDefaultKey reports whether key names the default policy.
func IsDefaultKey(key string) bool {
	return strings.EqualFold(strings.TrimSpace(key), DefaultKey)
}

// Store holds the default policy and the tracker rules in precedence order.
// A Store is immutable after NewStore returns and safe for concurrent use.
type Store struct {
	def   Policy
	rules []TrackerRule
}

// NewStore validates the rules and orders them for matching: longer match
// keys win over shorter ones, and keys of equal length keep the order in
// which they were given. Match keys are lowercased.
func NewStore(def Policy, rules []TrackerRule) (*Store, error) {
	if err := def.validate(); err != nil {
		return nil, fmt.Errorf("invalid default policy: %w", err)
	}

	seen := make(map[string]bool, len(rules))
	ordered := make([]TrackerRule, 0, len(rules))
	for _, r := range rules {
		key := strings.ToLower(strings.TrimSpace(r.MatchKey))
		if key == "" {
			return nil, fmt.Errorf("tracker rule has an empty match key")
		}
		if IsDefaultKey(key) {
			return nil, fmt.Errorf("tracker rule %q: the default policy must be passed separately", r.MatchKey)
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate tracker rule %q", key)
		}
		if err := r.Policy.validate(); err != nil {
			return nil, fmt.Errorf("tracker rule %q: %w", key, err)
		}
		seen[key] = true
		ordered = append(ordered, TrackerRule{MatchKey: key, Policy: r.Policy})
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].MatchKey) > len(ordered[j].MatchKey)
	})

	return &Store{def: def, rules: ordered}, nil
}

// Default returns the fallback policy.
func (s *Store) Default() Policy {
	return s.def
}

// Rules returns a copy of the tracker rules in precedence order.
func (s *Store) Rules() []TrackerRule {
	out := make([]TrackerRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Match returns the first rule, in precedence order, whose key is contained
// in any of the announce URLs.
func (s *Store) Match(announceURLs []string) (TrackerRule, bool) {
	for _, r := range s.rules {
		for _, u := range announceURLs {
			if Matches(r.MatchKey, u) {
				return r, true
			}
		}
	}
	return TrackerRule{}, false
}

// Resolve returns the policy for a torrent announcing to the given URLs,
// falling back to the default policy. It never fails.
func (s *Store) Resolve(announceURLs []string) Policy {
	if r, ok := s.Match(announceURLs); ok {
		return r.Policy
	}
	return s.def
}

func (p Policy) validate() error {
	if p.MinSeedTimeSeconds < 0 {
		return fmt.Errorf("min seed time must not be negative (got %d)", p.MinSeedTimeSeconds)
	}
	if p.MaxRatio < 0 {
		return fmt.Errorf("max ratio must not be negative (got %g)", p.MaxRatio)
	}
	return nil
}
