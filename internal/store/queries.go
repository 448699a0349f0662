package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/blackwell-systems/seedprune/internal/classifier"
	"github.com/blackwell-systems/seedprune/internal/retire"
)

// Action operations

// RecordAction stores one retirement, dry runs included.
func (s *Store) RecordAction(rec *retire.ActionRecord) error {
	query := `
		INSERT INTO actions
		(run_id, torrent_id, name, reason, dry_run, already_removed, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		rec.RunID,
		rec.TorrentID,
		rec.Name,
		string(rec.Reason),
		rec.DryRun,
		rec.AlreadyRemoved,
		rec.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return wrapErr(err, "failed to record action for %s", rec.TorrentID)
	}

	return nil
}

// ListActions returns the most recent actions, newest first. A zero limit
// returns every action; an empty reason matches all reasons.
func (s *Store) ListActions(limit int, reason classifier.Reason) ([]*retire.ActionRecord, error) {
	query := `
		SELECT run_id, torrent_id, name, reason, dry_run, already_removed, timestamp
		FROM actions
		WHERE (? = '' OR reason = ?)
		ORDER BY id DESC
	`
	args := []interface{}{string(reason), string(reason)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr(err, "failed to list actions")
	}
	defer rows.Close()

	var actions []*retire.ActionRecord
	for rows.Next() {
		var rec retire.ActionRecord
		var reasonStr, timestamp string
		var name sql.NullString

		if err := rows.Scan(
			&rec.RunID,
			&rec.TorrentID,
			&name,
			&reasonStr,
			&rec.DryRun,
			&rec.AlreadyRemoved,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action row: %w", err)
		}

		rec.Name = name.String
		rec.Reason = classifier.Reason(reasonStr)
		rec.Timestamp, err = time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp for %s: %w", rec.TorrentID, err)
		}

		actions = append(actions, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating actions: %w", err)
	}

	return actions, nil
}

// CountActionsByReason returns how many actions were recorded per reason.
// Dry runs are excluded unless includeDryRun is set.
func (s *Store) CountActionsByReason(includeDryRun bool) (map[classifier.Reason]int, error) {
	query := `
		SELECT reason, COUNT(*)
		FROM actions
		WHERE (? OR dry_run = 0)
		GROUP BY reason
	`

	rows, err := s.db.Query(query, includeDryRun)
	if err != nil {
		return nil, wrapErr(err, "failed to count actions")
	}
	defer rows.Close()

	counts := make(map[classifier.Reason]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[classifier.Reason(reason)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counts: %w", err)
	}

	return counts, nil
}

// Sweep operations

// RecordSweep stores the summary of a finished sweep.
func (s *Store) RecordSweep(res *retire.SweepResult) error {
	query := `
		INSERT OR REPLACE INTO sweeps
		(run_id, started_at, finished_at, dry_run, examined, retired, failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var errMsg sql.NullString
	if res.Err != nil {
		errMsg = sql.NullString{String: res.Err.Error(), Valid: true}
	}

	_, err := s.db.Exec(query,
		res.RunID,
		res.StartedAt.UTC().Format(time.RFC3339),
		res.FinishedAt.UTC().Format(time.RFC3339),
		res.DryRun,
		res.Examined,
		len(res.Records),
		len(res.Failures),
		errMsg,
	)
	if err != nil {
		return wrapErr(err, "failed to record sweep %s", res.RunID)
	}

	return nil
}

// LastSweep returns the most recently recorded sweep, or nil if there is none.
func (s *Store) LastSweep() (*Sweep, error) {
	sweeps, err := s.ListSweeps(1)
	if err != nil {
		return nil, err
	}
	if len(sweeps) == 0 {
		return nil, nil
	}
	return sweeps[0], nil
}

// ListSweeps returns recorded sweeps, newest first. A zero limit returns all.
func (s *Store) ListSweeps(limit int) ([]*Sweep, error) {
	query := `
		SELECT run_id, started_at, finished_at, dry_run, examined, retired, failed, error
		FROM sweeps
		ORDER BY started_at DESC, rowid DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr(err, "failed to list sweeps")
	}
	defer rows.Close()

	var sweeps []*Sweep
	for rows.Next() {
		var sw Sweep
		var startedAt, finishedAt string
		var errMsg sql.NullString

		if err := rows.Scan(
			&sw.RunID,
			&startedAt,
			&finishedAt,
			&sw.DryRun,
			&sw.Examined,
			&sw.Retired,
			&sw.Failed,
			&errMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sweep row: %w", err)
		}

		if sw.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at for %s: %w", sw.RunID, err)
		}
		if sw.FinishedAt, err = time.Parse(time.RFC3339, finishedAt); err != nil {
			return nil, fmt.Errorf("failed to parse finished_at for %s: %w", sw.RunID, err)
		}
		sw.Error = errMsg.String

		sweeps = append(sweeps, &sw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sweeps: %w", err)
	}

	return sweeps, nil
}
