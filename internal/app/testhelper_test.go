package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

const testSessionID = "test-session"

// fakeTransmission is a minimal Transmission RPC endpoint.
type fakeTransmission struct {
	mu       sync.Mutex
	torrents []map[string]interface{}
	methods  []string
	requests []map[string]interface{} // arguments of mutating calls

	host string
	port int
}

func newFakeTransmission(t *testing.T, torrents ...map[string]interface{}) *fakeTransmission {
	t.Helper()
	f := &fakeTransmission{torrents: torrents}

	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("failed to split host: %v", err)
	}
	f.host = host
	f.port, _ = strconv.Atoi(portStr)
	return f
}

func (f *fakeTransmission) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Transmission-Session-Id") != testSessionID {
		w.Header().Set("X-Transmission-Session-Id", testSessionID)
		w.WriteHeader(http.StatusConflict)
		return
	}

	var req struct {
		Method    string                 `json:"method"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.methods = append(f.methods, req.Method)
	args := map[string]interface{}{}
	switch req.Method {
	case "session-get":
		args["version"] = "4.0.5"
	case "torrent-get":
		args["torrents"] = f.torrents
	case "torrent-stop", "torrent-remove":
		f.requests = append(f.requests, req.Arguments)
	}
	f.mu.Unlock()

	json.NewEncoder(w).Encode(map[string]interface{}{"result": "success", "arguments": args})
}

func (f *fakeTransmission) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.methods {
		if m == method {
			n++
		}
	}
	return n
}

func seedingTorrent(hash, name string, ratio float64, seconds int64, announce string) map[string]interface{} {
	return map[string]interface{}{
		"hashString":     hash,
		"name":           name,
		"status":         6,
		"error":          0,
		"errorString":    "",
		"uploadRatio":    ratio,
		"secondsSeeding": seconds,
		"trackers":       []map[string]interface{}{{"announce": announce, "tier": 0}},
	}
}

// useTestEnv points HOME, the config directory and the database at a temp
// directory and restores every flag variable when the test ends.
func useTestEnv(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))

	saved := []func(){
		restore(&dbPath), restore(&configPath),
		restore(&flagHost), restore(&flagUser), restore(&flagPassword),
		restore(&logLevel), restore(&logFormat),
		restore(&watchPIDFile), restore(&watchLogFile), restore(&watchMetricsAddr),
		restore(&historyReason),
		restoreInt(&flagPort), restoreInt(&concurrency), restoreInt(&historyLimit),
		restoreBool(&dryRun), restoreBool(&noHistory),
		restoreBool(&generateConfig), restoreBool(&forceGenerate),
		restoreBool(&watchDaemon), restoreBool(&watchDaemonChild), restoreBool(&watchStop),
		restoreBool(&historyTotals),
		restoreDuration(&watchInterval),
	}
	t.Cleanup(func() {
		for _, fn := range saved {
			fn()
		}
	})

	dbPath = filepath.Join(tmpDir, "seedprune.db")
	logLevel = "error"
	historyLimit = 20
	return tmpDir
}

func restore(p *string) func()   { v := *p; return func() { *p = v } }
func restoreInt(p *int) func()   { v := *p; return func() { *p = v } }
func restoreBool(p *bool) func() { v := *p; return func() { *p = v } }

func restoreDuration(p *time.Duration) func() { v := *p; return func() { *p = v } }

// pointAt directs the client flags at f.
func pointAt(f *fakeTransmission) {
	flagHost = f.host
	flagPort = f.port
}

func newTestCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetContext(context.Background())
	return cmd, &stdout, &stderr
}
