package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/seedprune/internal/output"
	"github.com/blackwell-systems/seedprune/internal/store"
	"github.com/blackwell-systems/seedprune/internal/watcher"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon state and the last sweep",
	Long: `Display whether the watch daemon is running and summarise the most recent
sweep recorded in the history database.

Shows:
  • Daemon running status and PID
  • Config file in use
  • Last sweep time and counts
  • Retirement totals per reason`,
	Example: `  # Check status
  seedprune status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

const statusLabel = "%-16s"

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return fmt.Errorf("failed to get PID file path: %w", err)
	}

	running, err := watcher.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	fmt.Fprintln(out)
	if running {
		pid, _ := watcher.ReadPID(pidFile)
		fmt.Fprintf(out, statusLabel+"running (since %s, PID %d)\n", "Daemon:", daemonSince(pidFile), pid)
	} else {
		fmt.Fprintf(out, statusLabel+"stopped  (run 'seedprune watch --daemon')\n", "Daemon:")
	}

	if cfg, err := loadConfig(); err != nil {
		fmt.Fprintf(out, statusLabel+"invalid (%v)\n", "Config:", err)
	} else {
		fmt.Fprintf(out, statusLabel+"%s\n", "Config:", configSourceName(cfg))
	}

	if err := printHistoryStatus(out); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}

func printHistoryStatus(out io.Writer) error {
	st, err := openExistingStore()
	if errors.Is(err, store.ErrNotInitialized) {
		fmt.Fprint(out, output.RenderLastSweep(nil))
		return nil
	}
	if err != nil {
		return err
	}
	defer st.Close()

	last, err := st.LastSweep()
	if errors.Is(err, store.ErrNotInitialized) {
		fmt.Fprint(out, output.RenderLastSweep(nil))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprint(out, output.RenderLastSweep(last))

	counts, err := st.CountActionsByReason(false)
	if err != nil {
		return err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	fmt.Fprintf(out, statusLabel+"%s\n", "Retired total:", formatNumber(total))
	if total > 0 {
		fmt.Fprint(out, output.RenderReasonCounts(counts))
	}
	return nil
}

// daemonSince returns a human-readable age of the PID file (proxy for daemon start time).
func daemonSince(pidFile string) string {
	fi, err := os.Stat(pidFile)
	if err != nil {
		return "unknown"
	}
	return formatAge(time.Since(fi.ModTime()))
}

// formatNumber formats a number with thousands separators
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", formatNumber(n/1000), n%1000)
}

// formatAge formats a duration in human-readable form
func formatAge(d time.Duration) string {
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
