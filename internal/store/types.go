package store

import "time"

// Sweep is the stored summary of one sweep.
type Sweep struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Examined   int
	Retired    int
	Failed     int
	Error      string // empty unless the sweep was aborted
}

// Duration returns how long the sweep ran.
func (s *Sweep) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
