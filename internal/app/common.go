package app

import (
	"context"
	"fmt"
	"io"

	"github.com/blackwell-systems/seedprune/internal/config"
	"github.com/blackwell-systems/seedprune/internal/logger"
	"github.com/blackwell-systems/seedprune/internal/retire"
	"github.com/blackwell-systems/seedprune/internal/store"
	"github.com/blackwell-systems/seedprune/internal/transmission"
)

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	cfg = cfg.WithOverrides(config.Overrides{
		Host:        flagHost,
		Port:        flagPort,
		User:        flagUser,
		Password:    flagPassword,
		LogLevel:    logLevel,
		LogFormat:   logFormat,
		Concurrency: concurrency,
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the logger for cfg. Console output goes to out unless it
// is nil; file, when set, receives rotated JSON logs.
func newLogger(cfg *config.Config, out io.Writer, file string) *logger.Logger {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Out:       out,
		NoConsole: out == nil,
		File:      file,
	})
}

// openStore opens the history database and creates its schema if needed.
func openStore() (*store.Store, error) {
	path, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}

	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}
	return st, nil
}

// sweepEnv holds everything a sweep needs.
type sweepEnv struct {
	client  *transmission.Client
	store   *store.Store // nil with --no-history
	sweeper *retire.Sweeper
}

// newSweepEnv connects to the daemon and wires a Sweeper. It fails when the
// daemon cannot be reached. Audit lines are written to out.
func newSweepEnv(ctx context.Context, cfg *config.Config, log *logger.Logger, out io.Writer) (*sweepEnv, error) {
	policies, err := cfg.PolicyStore()
	if err != nil {
		return nil, err
	}

	client := transmission.New(cfg.TransmissionConfig())
	version, err := client.Ping(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot reach Transmission at %s: %w", client.Endpoint(), err)
	}
	log.Debug().Str("endpoint", client.Endpoint()).Str("version", version).Msg("Connected to Transmission")

	env := &sweepEnv{client: client}

	var recorder retire.Recorder
	if !noHistory {
		st, err := openStore()
		if err != nil {
			return nil, err
		}
		env.store = st
		recorder = st
	}

	sweeper, err := retire.NewSweeper(retire.SweeperConfig{
		Client:      client,
		Policies:    policies,
		Classifier:  cfg.Classifier(),
		Executor:    retire.NewExecutor(client, out, log.Logger),
		Recorder:    recorder,
		Logger:      log.Logger,
		DryRun:      dryRun,
		Concurrency: cfg.Schedule.Concurrency,
	})
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to create sweeper: %w", err)
	}
	env.sweeper = sweeper
	return env, nil
}

func (e *sweepEnv) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}
