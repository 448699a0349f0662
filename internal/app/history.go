package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/seedprune/internal/classifier"
	"github.com/blackwell-systems/seedprune/internal/output"
	"github.com/blackwell-systems/seedprune/internal/store"
)

var (
	historyLimit  int
	historyReason string
	historyTotals bool

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recorded retirements",
		Long: `Show retirements recorded by previous sweeps, newest first.

Dry-run retirements are recorded too and are marked as such. Torrents that
were already gone from the daemon when seedprune tried to remove them are
marked "already gone".`,
		Example: `  # Last 20 retirements
  seedprune history

  # Only torrents whose tracker dropped them
  seedprune history --reason unregistered_by_tracker

  # Totals per reason
  seedprune history --totals`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of retirements to show (0 for all)")
	historyCmd.Flags().StringVarP(&historyReason, "reason", "r", "", "filter by reason (e.g. unregistered_by_tracker, local_data_error)")
	historyCmd.Flags().BoolVar(&historyTotals, "totals", false, "show totals per reason instead of individual retirements")
}

func runHistory(cmd *cobra.Command, args []string) error {
	var reason classifier.Reason
	if historyReason != "" {
		r, ok := classifier.ParseReason(historyReason)
		if !ok {
			return fmt.Errorf("invalid reason %q: must be one of %s", historyReason, reasonNames())
		}
		reason = r
	}
	if historyLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	st, err := openExistingStore()
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if historyTotals {
		counts, err := st.CountActionsByReason(false)
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			fmt.Fprintln(out, "No retirements recorded.")
			return nil
		}
		fmt.Fprintln(out, "Retirements by reason:")
		fmt.Fprint(out, output.RenderReasonCounts(counts))
		return nil
	}

	actions, err := st.ListActions(historyLimit, reason)
	if err != nil {
		return err
	}
	fmt.Fprint(out, output.RenderActionTable(actions))
	return nil
}

// openExistingStore opens the history database without creating it.
func openExistingStore() (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, store.ErrNotInitialized
	}

	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

func reasonNames() string {
	names := make([]string, len(classifier.Reasons))
	for i, r := range classifier.Reasons {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
