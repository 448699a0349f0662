package retire

import (
	"context"
	"sync"

	"github.com/blackwell-systems/seedprune/internal/torrent"
)

type call struct {
	Method     string
	ID         string
	DeleteData bool
}

// fakeClient records every call and returns canned errors per torrent id.
type fakeClient struct {
	mu        sync.Mutex
	torrents  []torrent.Snapshot
	listErr   error
	stopErr   map[string]error
	removeErr map[string]error
	calls     []call
}

func (f *fakeClient) ListTorrents(ctx context.Context) ([]torrent.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: "list"})
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]torrent.Snapshot, len(f.torrents))
	copy(out, f.torrents)
	return out, nil
}

func (f *fakeClient) StopTorrent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: "stop", ID: id})
	return f.stopErr[id]
}

func (f *fakeClient) RemoveTorrent(ctx context.Context, id string, deleteData bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{Method: "remove", ID: id, DeleteData: deleteData})
	return f.removeErr[id]
}

func (f *fakeClient) mutating() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Method != "list" {
			out = append(out, c)
		}
	}
	return out
}

type fakeRecorder struct {
	mu      sync.Mutex
	actions []ActionRecord
	sweeps  []SweepResult
	err     error
}

func (r *fakeRecorder) RecordAction(rec *ActionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, *rec)
	return r.err
}

func (r *fakeRecorder) RecordSweep(res *SweepResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps = append(r.sweeps, *res)
	return r.err
}
