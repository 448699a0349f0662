package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// ErrConfigChanged is returned by Run when the watched config file changes.
// Configuration is only read at startup, so the process must be restarted.
var ErrConfigChanged = errors.New("config file changed, restart to reload")

const (
	defaultDebounce    = 250 * time.Millisecond
	defaultStopTimeout = 30 * time.Second
)

// SweepFunc runs one sweep.
type SweepFunc func(ctx context.Context) error

// Config configures a Watcher.
type Config struct {
	Sweep    SweepFunc
	Interval time.Duration

	// ConfigPath is watched for changes when set.
	ConfigPath string
	// RunOnStart sweeps immediately instead of waiting one interval.
	RunOnStart bool

	// Debounce coalesces bursts of file events (editors often write a file
	// in several steps). Defaults to 250ms.
	Debounce time.Duration
	// StopTimeout bounds how long shutdown waits for an in-flight sweep.
	// Defaults to 30s.
	StopTimeout time.Duration

	Logger zerolog.Logger
}

// Watcher runs sweeps on a fixed interval. A sweep never overlaps the
// previous one: if a sweep outlasts the interval the next run is skipped.
type Watcher struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a new Watcher instance.
func New(cfg Config) (*Watcher, error) {
	if cfg.Sweep == nil {
		return nil, fmt.Errorf("sweep func cannot be nil")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be greater than zero")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &Watcher{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "watcher").Logger(),
	}, nil
}

// Run schedules sweeps and blocks until ctx is cancelled, in which case it
// returns nil, or until the config file changes, in which case it returns
// ErrConfigChanged. An in-flight sweep is allowed to finish before Run
// returns.
func (w *Watcher) Run(ctx context.Context) error {
	changed := make(chan struct{})
	if w.cfg.ConfigPath != "" {
		fsw, err := w.watchConfig(ctx, changed)
		if err != nil {
			return err
		}
		defer fsw.Close()
	}

	sched, err := gocron.NewScheduler(gocron.WithStopTimeout(w.cfg.StopTimeout))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	// Sweeps get their own context so shutdown lets the current one finish.
	sweepCtx, cancelSweeps := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSweeps()

	opts := []gocron.JobOption{
		gocron.WithName("sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if w.cfg.RunOnStart {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	_, err = sched.NewJob(
		gocron.DurationJob(w.cfg.Interval),
		gocron.NewTask(func() { w.runSweep(sweepCtx) }),
		opts...,
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	sched.Start()
	w.logger.Info().
		Dur("interval", w.cfg.Interval).
		Bool("run_on_start", w.cfg.RunOnStart).
		Str("config", w.cfg.ConfigPath).
		Msg("Watcher started")

	var result error
	select {
	case <-ctx.Done():
		w.logger.Info().Msg("Shutting down")
	case <-changed:
		w.logger.Warn().Str("config", w.cfg.ConfigPath).Msg("Config file changed, stopping so it can be reloaded")
		result = ErrConfigChanged
	}

	if err := sched.Shutdown(); err != nil {
		w.logger.Warn().Err(err).Msg("Scheduler did not stop cleanly")
		cancelSweeps()
	}
	return result
}

func (w *Watcher) runSweep(ctx context.Context) {
	start := time.Now()
	if err := w.cfg.Sweep(ctx); err != nil {
		w.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Sweep failed")
		return
	}
	w.logger.Debug().Dur("duration", time.Since(start)).Msg("Sweep completed")
}

// watchConfig closes changed once the config file has been modified and the
// event burst has settled. The parent directory is watched because editors
// commonly replace files by renaming over them.
func (w *Watcher) watchConfig(ctx context.Context, changed chan<- struct{}) (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	target := filepath.Clean(w.cfg.ConfigPath)
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	go func() {
		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !isChange(event) {
					continue
				}
				w.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Config file event")
				if timer == nil {
					timer = time.NewTimer(w.cfg.Debounce)
				} else {
					timer.Reset(w.cfg.Debounce)
				}
				fire = timer.C
			case <-fire:
				close(changed)
				return
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error().Err(err).Msg("File watcher error")
			}
		}
	}()

	return fsw, nil
}

func isChange(e fsnotify.Event) bool {
	return e.Has(fsnotify.Write) || e.Has(fsnotify.Create) || e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename)
}
