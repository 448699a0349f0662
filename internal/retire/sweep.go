package retire

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/blackwell-systems/seedprune/internal/classifier"
	"github.com/blackwell-systems/seedprune/internal/metrics"
	"github.com/blackwell-systems/seedprune/internal/policy"
	"github.com/blackwell-systems/seedprune/internal/torrent"
)

// Recorder persists audit records. Recording failures are logged and never
// abort a sweep.
type Recorder interface {
	RecordAction(rec *ActionRecord) error
	RecordSweep(res *SweepResult) error
}

// SweepResult summarises one sweep.
type SweepResult struct {
	RunID      string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Examined   int
	Records    []ActionRecord // in daemon list order
	Failures   []error        // one *RetirementError per failed torrent
	Err        error          // set when the sweep was aborted
}

// SweeperConfig wires a Sweeper.
type SweeperConfig struct {
	Client     Client
	Policies   *policy.Store
	Classifier *classifier.Classifier
	Executor   *Executor
	Recorder   Recorder // optional
	Logger     zerolog.Logger

	DryRun bool
	// Concurrency bounds in-flight retirements. Values below 2 retire
	// torrents one at a time.
	Concurrency int
}

// Sweeper evaluates every torrent on the daemon once per Sweep call.
type Sweeper struct {
	cfg    SweeperConfig
	logger zerolog.Logger
}

// NewSweeper validates cfg and returns a Sweeper.
func NewSweeper(cfg SweeperConfig) (*Sweeper, error) {
	switch {
	case cfg.Client == nil:
		return nil, fmt.Errorf("client cannot be nil")
	case cfg.Policies == nil:
		return nil, fmt.Errorf("policy store cannot be nil")
	case cfg.Classifier == nil:
		return nil, fmt.Errorf("classifier cannot be nil")
	case cfg.Executor == nil:
		return nil, fmt.Errorf("executor cannot be nil")
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Sweeper{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "sweeper").Logger(),
	}, nil
}

type outcome struct {
	rec *ActionRecord
	err error
}

// Sweep lists the daemon's torrents and retires every one that qualifies.
// A listing failure aborts the sweep and is returned. Failures on individual
// torrents are collected in the result and do not stop the sweep. A torrent
// id is retired at most once per sweep.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	res := &SweepResult{
		RunID:     uuid.NewString(),
		DryRun:    s.cfg.DryRun,
		StartedAt: time.Now(),
	}
	logger := s.logger.With().Str("run_id", res.RunID).Logger()
	metrics.SweepsTotal.Inc()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(res.StartedAt).Seconds())
	}()

	snaps, err := s.cfg.Client.ListTorrents(ctx)
	if err != nil {
		var remoteErr *torrent.RemoteError
		if !errors.As(err, &remoteErr) {
			err = &torrent.RemoteError{Op: "list", Err: err}
		}
		metrics.SweepFailuresTotal.Inc()
		logger.Error().Err(err).Str("action", "list").Msg("Failed to list torrents, sweep aborted")
		res.Err = err
		s.finish(res, logger)
		return res, err
	}

	res.Examined = len(snaps)
	metrics.TorrentsExamined.Set(float64(len(snaps)))

	outcomes := make([]outcome, len(snaps))
	processed := make(map[string]bool, len(snaps))
	sem := semaphore.NewWeighted(int64(s.cfg.Concurrency))
	var wg sync.WaitGroup

	for i := range snaps {
		snap := &snaps[i]

		p := s.cfg.Policies.Resolve(snap.TrackerAnnounceURLs)
		d, ok := s.cfg.Classifier.Classify(snap, p)
		if !ok {
			continue
		}
		d.DryRun = s.cfg.DryRun

		if processed[snap.ID] {
			logger.Debug().Str("torrent_id", snap.ID).Msg("Torrent already handled this sweep")
			continue
		}
		processed[snap.ID] = true

		if s.cfg.Concurrency == 1 {
			if err := ctx.Err(); err != nil {
				res.Err = err
				break
			}
			rec, err := s.cfg.Executor.Retire(ctx, snap, d)
			outcomes[i] = outcome{rec: rec, err: err}
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			res.Err = err
			break
		}
		wg.Add(1)
		go func(i int, snap *torrent.Snapshot, d classifier.Decision) {
			defer wg.Done()
			defer sem.Release(1)
			rec, err := s.cfg.Executor.Retire(ctx, snap, d)
			outcomes[i] = outcome{rec: rec, err: err}
		}(i, snap, d)
	}
	wg.Wait()

	for _, o := range outcomes {
		switch {
		case o.err != nil:
			res.Failures = append(res.Failures, o.err)
		case o.rec != nil:
			o.rec.RunID = res.RunID
			res.Records = append(res.Records, *o.rec)
			if s.cfg.Recorder != nil {
				if err := s.cfg.Recorder.RecordAction(o.rec); err != nil {
					logger.Warn().Err(err).Str("torrent_id", o.rec.TorrentID).Msg("Failed to record action")
				}
			}
		}
	}

	s.finish(res, logger)
	return res, res.Err
}

func (s *Sweeper) finish(res *SweepResult, logger zerolog.Logger) {
	res.FinishedAt = time.Now()
	metrics.LastSweepTimestamp.Set(float64(res.FinishedAt.Unix()))

	if s.cfg.Recorder != nil {
		if err := s.cfg.Recorder.RecordSweep(res); err != nil {
			logger.Warn().Err(err).Msg("Failed to record sweep")
		}
	}

	logger.Info().
		Int("examined", res.Examined).
		Int("retired", len(res.Records)).
		Int("failed", len(res.Failures)).
		Bool("dry_run", res.DryRun).
		Dur("duration", res.FinishedAt.Sub(res.StartedAt)).
		Msg("Sweep finished")
}
