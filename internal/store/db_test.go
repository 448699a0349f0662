package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/seedprune/internal/classifier"
	"github.com/blackwell-systems/seedprune/internal/retire"
)

// Helper function to create an in-memory store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	if err := store.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store.db should not be nil")
	}
	if err := store.Ping(); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
}

func TestCreateSchema(t *testing.T) {
	store := newTestStore(t)

	for _, table := range []string{"sweeps", "actions"} {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	for _, index := range []string{"idx_actions_run", "idx_actions_reason", "idx_actions_torrent"} {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&name)
		if err != nil {
			t.Errorf("Index %s not found: %v", index, err)
		}
	}

	// Idempotent
	if err := store.CreateSchema(); err != nil {
		t.Errorf("second CreateSchema() failed: %v", err)
	}
}

func TestNoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	if _, err := s.ListActions(10, ""); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListActions() error = %v; want ErrNotInitialized", err)
	}
	if _, err := s.LastSweep(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("LastSweep() error = %v; want ErrNotInitialized", err)
	}
	if _, err := s.CountActionsByReason(true); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("CountActionsByReason() error = %v; want ErrNotInitialized", err)
	}
	if !strings.Contains(ErrNotInitialized.Error(), "seedprune") {
		t.Errorf("ErrNotInitialized message %q should mention seedprune", ErrNotInitialized.Error())
	}
}

func TestRecordAndListActions(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []retire.ActionRecord{
		{RunID: "run-1", TorrentID: "aaa", Name: "First", Reason: classifier.ReasonUnregistered, Timestamp: base},
		{RunID: "run-1", TorrentID: "bbb", Name: "Second", Reason: classifier.ReasonRatioExceeded, Timestamp: base.Add(time.Second), AlreadyRemoved: true},
		{RunID: "run-2", TorrentID: "ccc", Name: "Third", Reason: classifier.ReasonRatioExceeded, Timestamp: base.Add(time.Hour), DryRun: true},
	}
	for i := range records {
		if err := store.RecordAction(&records[i]); err != nil {
			t.Fatalf("RecordAction() failed: %v", err)
		}
	}

	all, err := store.ListActions(0, "")
	if err != nil {
		t.Fatalf("ListActions() failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListActions() returned %d actions, want 3", len(all))
	}
	if all[0].TorrentID != "ccc" || all[2].TorrentID != "aaa" {
		t.Errorf("ListActions() order = %s,%s,%s; want newest first", all[0].TorrentID, all[1].TorrentID, all[2].TorrentID)
	}

	got := all[1]
	if got.RunID != "run-1" || got.Name != "Second" || got.Reason != classifier.ReasonRatioExceeded {
		t.Errorf("unexpected record: %+v", got)
	}
	if !got.AlreadyRemoved || got.DryRun {
		t.Errorf("flags not round-tripped: %+v", got)
	}
	if !got.Timestamp.Equal(base.Add(time.Second)) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, base.Add(time.Second))
	}
	if !all[0].DryRun {
		t.Error("dry run flag lost")
	}

	limited, err := store.ListActions(1, "")
	if err != nil {
		t.Fatalf("ListActions(limit) failed: %v", err)
	}
	if len(limited) != 1 || limited[0].TorrentID != "ccc" {
		t.Errorf("ListActions(1) = %v, want only ccc", limited)
	}

	ratio, err := store.ListActions(0, classifier.ReasonRatioExceeded)
	if err != nil {
		t.Fatalf("ListActions(reason) failed: %v", err)
	}
	if len(ratio) != 2 {
		t.Errorf("ListActions(ratio) returned %d, want 2", len(ratio))
	}
}

func TestCountActionsByReason(t *testing.T) {
	store := newTestStore(t)

	now := time.Now()
	for _, rec := range []retire.ActionRecord{
		{RunID: "r", TorrentID: "1", Reason: classifier.ReasonUnregistered, Timestamp: now},
		{RunID: "r", TorrentID: "2", Reason: classifier.ReasonUnregistered, Timestamp: now},
		{RunID: "r", TorrentID: "3", Reason: classifier.ReasonSeedTimeExceeded, Timestamp: now},
		{RunID: "r", TorrentID: "4", Reason: classifier.ReasonSeedTimeExceeded, Timestamp: now, DryRun: true},
	} {
		rec := rec
		if err := store.RecordAction(&rec); err != nil {
			t.Fatalf("RecordAction() failed: %v", err)
		}
	}

	tests := []struct {
		name          string
		includeDryRun bool
		want          map[classifier.Reason]int
	}{
		{"live only", false, map[classifier.Reason]int{classifier.ReasonUnregistered: 2, classifier.ReasonSeedTimeExceeded: 1}},
		{"with dry runs", true, map[classifier.Reason]int{classifier.ReasonUnregistered: 2, classifier.ReasonSeedTimeExceeded: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.CountActionsByReason(tt.includeDryRun)
			if err != nil {
				t.Fatalf("CountActionsByReason() failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for reason, n := range tt.want {
				if got[reason] != n {
					t.Errorf("count[%s] = %d, want %d", reason, got[reason], n)
				}
			}
		})
	}
}

func TestRecordSweepAndLastSweep(t *testing.T) {
	store := newTestStore(t)

	last, err := store.LastSweep()
	if err != nil {
		t.Fatalf("LastSweep() on empty store failed: %v", err)
	}
	if last != nil {
		t.Errorf("LastSweep() = %+v, want nil", last)
	}

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := &retire.SweepResult{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Examined:   10,
		Records:    make([]retire.ActionRecord, 3),
		Failures:   []error{errors.New("boom")},
	}
	second := &retire.SweepResult{
		RunID:      "run-2",
		DryRun:     true,
		StartedAt:  start.Add(time.Hour),
		FinishedAt: start.Add(time.Hour + time.Second),
		Err:        errors.New("list: connection refused"),
	}
	for _, res := range []*retire.SweepResult{first, second} {
		if err := store.RecordSweep(res); err != nil {
			t.Fatalf("RecordSweep() failed: %v", err)
		}
	}

	last, err = store.LastSweep()
	if err != nil {
		t.Fatalf("LastSweep() failed: %v", err)
	}
	if last.RunID != "run-2" || !last.DryRun {
		t.Errorf("LastSweep() = %+v, want run-2 dry run", last)
	}
	if last.Error != "list: connection refused" {
		t.Errorf("Error = %q", last.Error)
	}
	if last.Duration() != time.Second {
		t.Errorf("Duration() = %v, want 1s", last.Duration())
	}

	sweeps, err := store.ListSweeps(0)
	if err != nil {
		t.Fatalf("ListSweeps() failed: %v", err)
	}
	if len(sweeps) != 2 {
		t.Fatalf("ListSweeps() returned %d, want 2", len(sweeps))
	}
	old := sweeps[1]
	if old.Examined != 10 || old.Retired != 3 || old.Failed != 1 || old.Error != "" {
		t.Errorf("unexpected first sweep: %+v", old)
	}
}

func TestStoreSatisfiesRecorder(t *testing.T) {
	var _ retire.Recorder = newTestStore(t)
}
