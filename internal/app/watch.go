package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/blackwell-systems/seedprune/internal/config"
	"github.com/blackwell-systems/seedprune/internal/logger"
	"github.com/blackwell-systems/seedprune/internal/metrics"
	"github.com/blackwell-systems/seedprune/internal/output"
	"github.com/blackwell-systems/seedprune/internal/watcher"
)

var (
	watchDaemon      bool
	watchDaemonChild bool
	watchPIDFile     string
	watchLogFile     string
	watchStop        bool
	watchInterval    time.Duration
	watchMetricsAddr string

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Sweep periodically until stopped",
		Long: `Run a sweep immediately and then once every interval.

Watch modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process
  • Stop: Stop a running daemon

A sweep that runs longer than the interval delays the next one; sweeps never
overlap. On SIGINT or SIGTERM the sweep in progress finishes before exit.

The config file is only read at startup. When it changes the watcher exits so
a supervisor (or you) can restart it with the new settings.

With --metrics-addr, Prometheus metrics are served at /metrics.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  seedprune watch

  # Sweep every 15 minutes as a background daemon
  seedprune watch --daemon --interval 15m

  # Stop running daemon
  seedprune watch --stop

  # Expose metrics
  seedprune watch --metrics-addr 127.0.0.1:9310`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "run as background daemon")
	watchCmd.Flags().BoolVar(&watchDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: ~/.seedprune/watch.pid)")
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "log file path (default: ~/.seedprune/watch.log)")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "stop running daemon")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "time between sweeps (default from config)")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	// Hide the internal daemon-child flag from help
	watchCmd.Flags().MarkHidden("daemon-child")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchPIDFile == "" {
		defaultPID, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		watchPIDFile = defaultPID
	}

	if watchStop {
		return stopWatchDaemon(cmd.OutOrStdout())
	}

	if (watchDaemon || watchDaemonChild) && watchLogFile == "" {
		defaultLog, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		watchLogFile = defaultLog
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if watchInterval < 0 {
		return &config.ConfigError{Field: "schedule.interval", Msg: "must be greater than zero"}
	}
	if watchInterval > 0 {
		cfg.Schedule.Interval = watchInterval
	}

	if watchDaemon {
		return startWatchDaemon(cmd)
	}

	ctx := commandContext(cmd)
	if watchDaemonChild {
		// stdout and stderr are redirected by the parent; structured logs
		// go to the rotated log file only.
		log := newLogger(cfg, nil, watchLogFile)
		defer log.Close()
		w, cleanup, err := newWatcher(ctx, cfg, log, os.Stdout)
		if err != nil {
			log.Error().Err(err).Msg("Failed to start watcher")
			os.Remove(watchPIDFile)
			return err
		}
		defer cleanup()
		return w.RunDaemon(ctx, watchPIDFile)
	}

	return runWatchForeground(ctx, cmd, cfg)
}

// newWatcher wires a sweep environment, the optional metrics endpoint and
// the scheduler. cleanup releases the store and stops the metrics server.
func newWatcher(ctx context.Context, cfg *config.Config, log *logger.Logger, out io.Writer) (*watcher.Watcher, func(), error) {
	env, err := newSweepEnv(ctx, cfg, log, out)
	if err != nil {
		return nil, nil, err
	}

	var srv *http.Server
	if watchMetricsAddr != "" {
		srv, err = startMetricsServer(watchMetricsAddr, log)
		if err != nil {
			env.Close()
			return nil, nil, err
		}
	}

	w, err := watcher.New(watcher.Config{
		Sweep: func(ctx context.Context) error {
			_, err := env.sweeper.Sweep(ctx)
			return err
		},
		Interval:   cfg.Schedule.Interval,
		ConfigPath: cfg.Source,
		RunOnStart: true,
		Logger:     log.Logger,
	})
	if err != nil {
		env.Close()
		return nil, nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	cleanup := func() {
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}
		env.Close()
	}
	return w, cleanup, nil
}

// startMetricsServer serves the registry on addr until shut down.
func startMetricsServer(addr string, log *logger.Logger) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsLog := log.WithComponent("metrics")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsLog.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	metricsLog.Info().Str("addr", srv.Addr).Msg("Serving metrics")
	return srv, nil
}

func stopWatchDaemon(out io.Writer) error {
	running, err := watcher.IsDaemonRunning(watchPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	if !running {
		fmt.Fprintln(out, "Daemon is not running")
		return nil
	}

	spinner := output.NewSpinner("Stopping daemon...")
	if err := watcher.StopDaemon(watchPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")
	return nil
}

func startWatchDaemon(cmd *cobra.Command) error {
	outFile := daemonOutputFile(watchLogFile)

	spinner := output.NewSpinner("Starting daemon...")
	pid, err := watcher.StartDaemon(watchPIDFile, outFile, daemonChildEnv(cmd), daemonChildArgs(cmd)...)
	if err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon started")

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nSweep daemon started (PID %d)\n", pid)
	fmt.Fprintf(out, "  PID file: %s\n", watchPIDFile)
	fmt.Fprintf(out, "  Log file: %s\n", watchLogFile)
	fmt.Fprintf(out, "  Output:   %s\n", outFile)
	fmt.Fprintf(out, "\nTo stop: seedprune watch --stop\n")
	return nil
}

// daemonOutputFile names the file that receives the daemon's stdout and
// stderr: the audit lines and anything written before logging starts.
func daemonOutputFile(logFile string) string {
	return strings.TrimSuffix(logFile, ".log") + ".out"
}

// daemonChildArgs rebuilds the command line for the daemon child from the
// flags set on this invocation. Credentials are left out; see daemonChildEnv.
func daemonChildArgs(cmd *cobra.Command) []string {
	args := []string{"watch", "--daemon-child",
		"--pid-file=" + watchPIDFile,
		"--log-file=" + watchLogFile,
	}
	skip := map[string]bool{"daemon": true, "daemon-child": true, "pid-file": true, "log-file": true}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if skip[f.Name] {
			return
		}
		if _, secret := credentialEnv[f.Name]; secret {
			return
		}
		args = append(args, fmt.Sprintf("--%s=%s", f.Name, f.Value.String()))
	})
	return args
}

// credentialEnv maps credential flags to the environment variables the
// config loader reads, so they never show up in the child's argv.
var credentialEnv = map[string]string{
	"user":     "SEEDPRUNE_CLIENT_USER",
	"password": "SEEDPRUNE_CLIENT_PASSWORD",
}

// daemonChildEnv returns the extra environment for the daemon child.
func daemonChildEnv(cmd *cobra.Command) []string {
	var env []string
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if name, ok := credentialEnv[f.Name]; ok {
			env = append(env, name+"="+f.Value.String())
		}
	})
	return env
}

func runWatchForeground(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	log := newLogger(cfg, cmd.ErrOrStderr(), watchLogFile)
	defer log.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	w, cleanup, err := newWatcher(ctx, cfg, log, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Fprintf(cmd.ErrOrStderr(), "Sweeping every %s (press Ctrl+C to stop)\n", cfg.Schedule.Interval)

	if err := w.Run(ctx); err != nil {
		if errors.Is(err, watcher.ErrConfigChanged) {
			return fmt.Errorf("%w: %s", err, cfg.Source)
		}
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Watcher stopped")
	return nil
}
