// Package retire stops and removes torrents that the classifier selected and
// drives whole sweeps over a torrent daemon.
package retire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/seedprune/internal/classifier"
	"github.com/blackwell-systems/seedprune/internal/metrics"
	"github.com/blackwell-systems/seedprune/internal/torrent"
)

// Client is the subset of a torrent daemon client that retirement needs.
// Implementations return torrent.ErrNotFound (possibly wrapped) when the
// torrent is already gone and a *torrent.RemoteError for transport failures.
type Client interface {
	ListTorrents(ctx context.Context) ([]torrent.Snapshot, error)
	StopTorrent(ctx context.Context, id string) error
	RemoveTorrent(ctx context.Context, id string, deleteData bool) error
}

// ActionRecord is the audit record for one retirement.
type ActionRecord struct {
	RunID          string
	TorrentID      string
	Name           string
	Reason         classifier.Reason
	DryRun         bool
	AlreadyRemoved bool // the daemon no longer knew the torrent
	Timestamp      time.Time
}

// String renders the audit line printed for every retirement. Dry runs are
// marked so they cannot be mistaken for real removals.
func (r *ActionRecord) String() string {
	verb := "Removed"
	if r.DryRun {
		verb = "Removed (dry run)"
	}
	return fmt.Sprintf("%s: %s %s\nReason: %s", verb, r.Name, r.TorrentID, r.Reason.Description())
}

// Executor performs the stop-then-remove sequence for single torrents.
// Torrent data on disk is never deleted.
type Executor struct {
	client Client
	logger zerolog.Logger
	now    func() time.Time

	outMu sync.Mutex
	out   io.Writer
}

// NewExecutor creates an Executor that prints audit lines to out.
func NewExecutor(client Client, out io.Writer, logger zerolog.Logger) *Executor {
	if out == nil {
		out = io.Discard
	}
	return &Executor{
		client: client,
		logger: logger.With().Str("component", "executor").Logger(),
		now:    time.Now,
		out:    out,
	}
}

// Retire stops (unless already stopped) and removes the torrent described by
// snap. In dry-run mode no call is made to the client. A torrent the client
// reports as not found counts as removed.
func (e *Executor) Retire(ctx context.Context, snap *torrent.Snapshot, d classifier.Decision) (*ActionRecord, error) {
	rec := &ActionRecord{
		TorrentID: snap.ID,
		Name:      snap.Name,
		Reason:    d.Reason,
		DryRun:    d.DryRun,
	}

	if !d.DryRun {
		gone, err := e.stop(ctx, snap)
		if err != nil {
			return nil, err
		}
		if !gone {
			gone, err = e.remove(ctx, snap)
			if err != nil {
				return nil, err
			}
		}
		rec.AlreadyRemoved = gone
	}

	rec.Timestamp = e.now()
	e.emit(rec)
	metrics.RetirementsTotal.WithLabelValues(string(rec.Reason), strconv.FormatBool(rec.DryRun)).Inc()

	return rec, nil
}

func (e *Executor) stop(ctx context.Context, snap *torrent.Snapshot) (bool, error) {
	if snap.Status == torrent.StatusStopped {
		return false, nil
	}
	err := e.client.StopTorrent(ctx, snap.ID)
	if errors.Is(err, torrent.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, e.fail(snap, ActionStop, err)
	}
	return false, nil
}

func (e *Executor) remove(ctx context.Context, snap *torrent.Snapshot) (bool, error) {
	err := e.client.RemoveTorrent(ctx, snap.ID, false)
	if errors.Is(err, torrent.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, e.fail(snap, ActionRemove, err)
	}
	return false, nil
}

func (e *Executor) fail(snap *torrent.Snapshot, action string, err error) error {
	metrics.RetirementFailuresTotal.WithLabelValues(action).Inc()
	e.logger.Error().
		Err(err).
		Str("torrent_id", snap.ID).
		Str("name", snap.Name).
		Str("action", action).
		Msg("Retirement failed")
	return &RetirementError{TorrentID: snap.ID, Name: snap.Name, Action: action, Err: err}
}

func (e *Executor) emit(rec *ActionRecord) {
	e.outMu.Lock()
	fmt.Fprintln(e.out, rec.String())
	e.outMu.Unlock()

	e.logger.Info().
		Str("torrent_id", rec.TorrentID).
		Str("name", rec.Name).
		Str("reason", string(rec.Reason)).
		Bool("dry_run", rec.DryRun).
		Bool("already_removed", rec.AlreadyRemoved).
		Msg("Torrent retired")
}
