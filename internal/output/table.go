// Package output provides terminal output utilities for seedprune.
//
// This package includes:
//   - Table rendering for retirement history, tracker rules, and sweep summaries
//   - A spinner for blocking daemon calls
//   - Human-readable formatting for durations, ratios, and dates
//
// Tables use box-drawing rules and ANSI colour codes when stdout is a TTY.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/seedprune/internal/classifier"
	"github.com/blackwell-systems/seedprune/internal/policy"
	"github.com/blackwell-systems/seedprune/internal/retire"
	"github.com/blackwell-systems/seedprune/internal/store"
)

// ANSI color codes for reason and status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderActionTable renders retirement history. Actions are shown in the
// order given (the store returns newest first).
func RenderActionTable(actions []*retire.ActionRecord) string {
	if len(actions) == 0 {
		return "No retirements recorded.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-17s %-30s %-12s %-28s %s\n",
		"When", "Name", "Hash", "Reason", "Mode"))
	sb.WriteString(strings.Repeat("─", 96))
	sb.WriteString("\n")

	for _, a := range actions {
		mode := "removed"
		switch {
		case a.DryRun:
			mode = "dry run"
		case a.AlreadyRemoved:
			mode = "already gone"
		}

		// Pad before colouring so escape codes do not break alignment.
		reason := fmt.Sprintf("%-28s", a.Reason.Description())
		sb.WriteString(fmt.Sprintf("%-17s %-30s %-12s %s %s\n",
			formatRelativeTime(a.Timestamp),
			truncate(a.Name, 30),
			truncate(a.TorrentID, 12),
			colorize(getReasonColor(a.Reason), reason),
			mode))
	}

	return sb.String()
}

// RenderRuleTable renders tracker rules in precedence order followed by the
// default policy.
func RenderRuleTable(rules []policy.TrackerRule, def policy.Policy) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-4s %-32s %-14s %s\n",
		"#", "Match Key", "Min Seed Time", "Max Ratio"))
	sb.WriteString(strings.Repeat("─", 64))
	sb.WriteString("\n")

	for i, r := range rules {
		sb.WriteString(fmt.Sprintf("%-4d %-32s %-14s %s\n",
			i+1,
			truncate(r.MatchKey, 32),
			FormatSeedTime(r.Policy.MinSeedTimeSeconds),
			FormatRatio(r.Policy.MaxRatio)))
	}
	sb.WriteString(fmt.Sprintf("%-4s %-32s %-14s %s\n",
		"-",
		colorize(colorGray, fmt.Sprintf("%-32s", policy.DefaultKey)),
		FormatSeedTime(def.MinSeedTimeSeconds),
		FormatRatio(def.MaxRatio)))

	return sb.String()
}

// PolicyMatch is the policy resolved for one announce URL.
type PolicyMatch struct {
	URL      string
	MatchKey string // empty when the default policy applies
	Policy   policy.Policy
}

// RenderPolicyMatches renders which policy applies to each announce URL.
func RenderPolicyMatches(matches []PolicyMatch) string {
	if len(matches) == 0 {
		return "No URLs given.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-44s %-20s %-14s %s\n",
		"Announce URL", "Rule", "Min Seed Time", "Max Ratio"))
	sb.WriteString(strings.Repeat("─", 90))
	sb.WriteString("\n")

	for _, m := range matches {
		key := m.MatchKey
		if key == "" {
			key = policy.DefaultKey
		}
		sb.WriteString(fmt.Sprintf("%-44s %-20s %-14s %s\n",
			truncate(m.URL, 44),
			truncate(key, 20),
			FormatSeedTime(m.Policy.MinSeedTimeSeconds),
			FormatRatio(m.Policy.MaxRatio)))
	}

	return sb.String()
}

// RenderSweepSummary renders the one-paragraph summary printed after a
// sweep. It goes to stderr so the audit stream on stdout stays parseable.
func RenderSweepSummary(res *retire.SweepResult) string {
	var sb strings.Builder

	verb := "Retired"
	if res.DryRun {
		verb = "Would retire"
	}

	sb.WriteString(fmt.Sprintf("%s %d of %d torrents in %s",
		verb, len(res.Records), res.Examined, formatDuration(res.FinishedAt.Sub(res.StartedAt))))
	if len(res.Failures) > 0 {
		sb.WriteString(colorize(colorRed, fmt.Sprintf(" (%d failed)", len(res.Failures))))
	}
	sb.WriteString("\n")

	if len(res.Records) > 0 {
		counts := make(map[classifier.Reason]int)
		for _, r := range res.Records {
			counts[r.Reason]++
		}
		sb.WriteString(RenderReasonCounts(counts))
	}

	for _, err := range res.Failures {
		sb.WriteString(colorize(colorRed, "  ✗ "))
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderReasonCounts renders per-reason totals in evaluation order. Reasons
// with a zero count are omitted; unknown reasons are listed last.
func RenderReasonCounts(counts map[classifier.Reason]int) string {
	var sb strings.Builder

	seen := make(map[classifier.Reason]bool, len(counts))
	for _, r := range classifier.Reasons {
		seen[r] = true
		if counts[r] == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %-28s %d\n", r.Description(), counts[r]))
	}

	var extra []string
	for r := range counts {
		if !seen[r] {
			extra = append(extra, string(r))
		}
	}
	sort.Strings(extra)
	for _, r := range extra {
		sb.WriteString(fmt.Sprintf("  %-28s %d\n", r, counts[classifier.Reason(r)]))
	}

	return sb.String()
}

// RenderLastSweep renders the status line for the most recent stored sweep.
func RenderLastSweep(sw *store.Sweep) string {
	if sw == nil {
		return "Last sweep:     never\n"
	}

	mode := ""
	if sw.DryRun {
		mode = " (dry run)"
	}
	line := fmt.Sprintf("Last sweep:     %s%s, %d examined, %d retired, %d failed\n",
		formatRelativeTime(sw.StartedAt), mode, sw.Examined, sw.Retired, sw.Failed)
	if sw.Error != "" {
		line += colorize(colorRed, fmt.Sprintf("                aborted: %s\n", sw.Error))
	}
	return line
}

// getReasonColor returns the ANSI color code for a retirement reason.
func getReasonColor(r classifier.Reason) string {
	switch r {
	case classifier.ReasonUnregistered:
		return colorRed
	case classifier.ReasonLocalDataError:
		return colorYellow
	case classifier.ReasonRatioExceeded, classifier.ReasonSeedTimeExceeded:
		return colorGreen
	default:
		return colorGray
	}
}

// FormatSeedTime renders a seed time in seconds as days and hours.
func FormatSeedTime(seconds int64) string {
	if seconds <= 0 {
		return "0h"
	}
	d := time.Duration(seconds) * time.Second
	days := int64(d / (24 * time.Hour))
	hours := int64((d % (24 * time.Hour)) / time.Hour)
	switch {
	case days == 0:
		return fmt.Sprintf("%dh", hours)
	case hours == 0:
		return fmt.Sprintf("%dd", days)
	default:
		return fmt.Sprintf("%dd %dh", days, hours)
	}
}

// FormatRatio renders a share ratio with two decimals.
func FormatRatio(r float64) string {
	return fmt.Sprintf("%.2f", r)
}

// formatDuration renders short elapsed times for summaries.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
