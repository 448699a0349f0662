package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/seedprune/internal/config"
	"github.com/blackwell-systems/seedprune/internal/output"
)

var (
	dbPath     string
	configPath string

	flagHost     string
	flagPort     int
	flagUser     string
	flagPassword string

	logLevel    string
	logFormat   string
	dryRun      bool
	concurrency int
	noHistory   bool

	generateConfig bool
	forceGenerate  bool

	// RootCmd is the root command for seedprune
	RootCmd = &cobra.Command{
		Use:   "seedprune",
		Short: "Retire finished and broken torrents from Transmission",
		Long: `seedprune connects to a Transmission daemon and retires torrents that no
longer need to be seeded. Every torrent is checked once per sweep:

  • Unregistered: the tracker no longer knows the torrent
  • Local error: the torrent's data is missing on disk
  • Ratio reached: upload ratio met the tracker's max_ratio
  • Seed time reached: seeding time met the tracker's min_time

Retired torrents are stopped, then removed. Downloaded data is never deleted.
Each retirement is printed to stdout and recorded in the history database.

Per-tracker rules live in the config file. Run 'seedprune -g' to write one
with the built-in rules, then edit it.`,
		Example: `  # Retire qualifying torrents once
  seedprune

  # Show what would be retired without touching anything
  seedprune --dry-run

  # Connect to a remote daemon
  seedprune -H seedbox.lan -p 9091 -u admin -P secret

  # Write the default config file
  seedprune -g

  # Sweep every hour in the background
  seedprune watch --daemon`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runSweep,
	}
)

func init() {
	// Global flags
	pf := RootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/seedprune/config.json)")
	pf.StringVar(&dbPath, "db", "", "history database path (default: ~/.seedprune/seedprune.db)")
	pf.StringVarP(&flagHost, "host", "H", "", "Transmission RPC host")
	pf.IntVarP(&flagPort, "port", "p", 0, "Transmission RPC port")
	pf.StringVarP(&flagUser, "user", "u", "", "Transmission RPC username")
	pf.StringVarP(&flagPassword, "password", "P", "", "Transmission RPC password")
	pf.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "log format: console or json")
	pf.BoolVarP(&dryRun, "dry-run", "n", false, "report retirements without stopping or removing anything")
	pf.IntVar(&concurrency, "concurrency", 0, "maximum retirements in flight (default from config)")
	pf.BoolVar(&noHistory, "no-history", false, "do not record retirements in the history database")

	RootCmd.Flags().BoolVarP(&generateConfig, "generate-config", "g", false, "write the default config file and exit")
	RootCmd.Flags().BoolVarP(&forceGenerate, "force", "f", false, "overwrite an existing config file")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(historyCmd)
	RootCmd.AddCommand(rulesCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(doctorCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

func runSweep(cmd *cobra.Command, args []string) error {
	if generateConfig {
		return runGenerateConfig(cmd)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg, cmd.ErrOrStderr(), "")
	defer log.Close()

	ctx := commandContext(cmd)
	env, err := newSweepEnv(ctx, cfg, log, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer env.Close()

	res, err := env.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	// Per-torrent failures are reported but do not fail the run.
	if len(res.Failures) > 0 || dryRun {
		fmt.Fprint(cmd.ErrOrStderr(), output.RenderSweepSummary(res))
	}
	return nil
}

func runGenerateConfig(cmd *cobra.Command) error {
	path := configPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
		path = p
	}

	if err := config.Generate(path, forceGenerate); err != nil {
		if errors.Is(err, config.ErrConfigExists) {
			fmt.Fprintln(cmd.OutOrStdout(), "Config file exists already! Use -f to overwrite it.")
			return nil
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote config file: %s\n", path)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// appDir returns ~/.seedprune, creating it if needed.
func appDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".seedprune")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create seedprune directory: %w", err)
	}
	return dir, nil
}

// getDBPath returns the database path, using the flag value or default
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "seedprune.db"), nil
}

// getDefaultPIDFile returns the default PID file path
func getDefaultPIDFile() (string, error) {
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.pid"), nil
}

// getDefaultLogFile returns the default log file path
func getDefaultLogFile() (string, error) {
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "watch.log"), nil
}
