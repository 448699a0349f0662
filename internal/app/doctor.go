package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/seedprune/internal/output"
	"github.com/blackwell-systems/seedprune/internal/store"
	"github.com/blackwell-systems/seedprune/internal/torrent"
	"github.com/blackwell-systems/seedprune/internal/transmission"
	"github.com/blackwell-systems/seedprune/internal/watcher"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose configuration and connectivity problems",
	Long: `Runs diagnostic checks on your seedprune setup.

Checks:
  • Config file loads and validates
  • Transmission is reachable with the configured credentials
  • History database is accessible
  • Watch daemon is running

Critical problems make the command fail. Warnings are reported only.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

// doctorPingTimeout bounds the connectivity check.
const doctorPingTimeout = 10 * time.Second

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Running seedprune diagnostics...")
	fmt.Fprintln(out)

	criticalIssues := 0
	warningIssues := 0

	// Check 1: config
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(out, "✗ Config invalid:", err)
		fmt.Fprintln(out, "  Action: Fix the file or run 'seedprune -g -f' to regenerate it")
		criticalIssues++
	} else {
		fmt.Fprintln(out, "✓ Config loaded:", configSourceName(cfg))
		policies, _ := cfg.PolicyStore()
		fmt.Fprintf(out, "✓ %d tracker rule(s) plus default\n", len(policies.Rules()))
	}

	// Check 2: Transmission reachable
	if cfg != nil {
		client := transmission.New(cfg.TransmissionConfig())
		ctx, cancel := context.WithTimeout(commandContext(cmd), doctorPingTimeout)
		spinner := output.NewSpinner("Contacting Transmission...")
		version, err := client.Ping(ctx)
		cancel()
		spinner.Stop()
		switch {
		case errors.Is(err, torrent.ErrAuthFailed):
			fmt.Fprintln(out, "✗ Transmission rejected the credentials at", client.Endpoint())
			fmt.Fprintln(out, "  Action: Check --user/--password or the CLIENT section")
			criticalIssues++
		case err != nil:
			fmt.Fprintln(out, "✗ Cannot reach Transmission:", err)
			criticalIssues++
		default:
			fmt.Fprintf(out, "✓ Transmission %s at %s\n", version, client.Endpoint())
		}
	}

	// Check 3: history database, warning only
	path, err := getDBPath()
	if err != nil {
		fmt.Fprintln(out, "⚠ Database path error:", err)
		warningIssues++
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "⚠ No history database yet at:", path)
		fmt.Fprintln(out, "  This is normal before the first sweep")
		warningIssues++
	} else if st, err := store.New(path); err != nil {
		fmt.Fprintln(out, "✗ Cannot open database:", err)
		criticalIssues++
	} else {
		if err := st.Ping(); err != nil {
			fmt.Fprintln(out, "✗ Database not accessible:", err)
			criticalIssues++
		} else {
			fmt.Fprintln(out, "✓ Database is accessible:", path)
		}
		st.Close()
	}

	// Check 4: daemon, warning only
	pidFile, err := getDefaultPIDFile()
	if err != nil {
		fmt.Fprintln(out, "⚠ Failed to get PID file path:", err)
		warningIssues++
	} else if running, err := watcher.IsDaemonRunning(pidFile); err != nil {
		fmt.Fprintln(out, "⚠ Failed to check daemon status:", err)
		warningIssues++
	} else if !running {
		fmt.Fprintln(out, "⚠ Daemon not running")
		fmt.Fprintln(out, "  Action: Run 'seedprune watch --daemon' for periodic sweeps")
		warningIssues++
	} else {
		pid, _ := watcher.ReadPID(pidFile)
		fmt.Fprintf(out, "✓ Daemon running (PID %d)\n", pid)
	}

	fmt.Fprintln(out)
	if criticalIssues == 0 && warningIssues == 0 {
		fmt.Fprintln(out, "✓ All checks passed!")
		return nil
	}
	if criticalIssues > 0 {
		fmt.Fprintf(out, "Found %d critical issue(s) and %d warning(s).\n", criticalIssues, warningIssues)
		return fmt.Errorf("diagnostics failed")
	}
	fmt.Fprintf(out, "Found %d warning(s). seedprune is functional but not fully set up.\n", warningIssues)
	return nil
}
