package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackwell-systems/seedprune/internal/classifier"
	"github.com/blackwell-systems/seedprune/internal/store"
)

func TestRootCommand(t *testing.T) {
	if RootCmd.Use != "seedprune" {
		t.Errorf("expected Use to be 'seedprune', got '%s'", RootCmd.Use)
	}
	if RootCmd.Short == "" || RootCmd.Long == "" {
		t.Error("expected Short and Long descriptions to be set")
	}
	if !RootCmd.SilenceUsage || !RootCmd.SilenceErrors {
		t.Error("expected SilenceUsage and SilenceErrors to be true")
	}
	if RootCmd.SuggestionsMinimumDistance != 2 {
		t.Errorf("SuggestionsMinimumDistance = %d, want 2", RootCmd.SuggestionsMinimumDistance)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		found[cmd.Name()] = true
	}

	for _, expected := range []string{"watch", "history", "rules", "status", "doctor"} {
		if !found[expected] {
			t.Errorf("expected command '%s' to be registered", expected)
		}
	}
}

func TestRootCommandFlags(t *testing.T) {
	tests := []struct {
		name       string
		shorthand  string
		persistent bool
	}{
		{"host", "H", true},
		{"port", "p", true},
		{"user", "u", true},
		{"password", "P", true},
		{"dry-run", "n", true},
		{"config", "", true},
		{"db", "", true},
		{"concurrency", "", true},
		{"no-history", "", true},
		{"log-level", "", true},
		{"log-format", "", true},
		{"generate-config", "g", false},
		{"force", "f", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := RootCmd.Flags()
			if tt.persistent {
				fs = RootCmd.PersistentFlags()
			}
			flag := fs.Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected --%s flag to be registered", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("--%s shorthand = %q, want %q", tt.name, flag.Shorthand, tt.shorthand)
			}
			if flag.Usage == "" {
				t.Errorf("expected --%s to have usage text", tt.name)
			}
		})
	}
}

func TestGetDBPath(t *testing.T) {
	tmpDir := useTestEnv(t)

	dbPath = ""
	path, err := getDBPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(tmpDir, ".seedprune", "seedprune.db"); path != want {
		t.Errorf("expected default path to be '%s', got '%s'", want, path)
	}

	dbPath = "/tmp/custom.db"
	path, err = getDBPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/tmp/custom.db" {
		t.Errorf("expected custom path, got '%s'", path)
	}
}

func TestDefaultDaemonPaths(t *testing.T) {
	tmpDir := useTestEnv(t)

	pid, err := getDefaultPIDFile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pid != filepath.Join(tmpDir, ".seedprune", "watch.pid") {
		t.Errorf("unexpected PID file path %s", pid)
	}

	log, err := getDefaultLogFile()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log != filepath.Join(tmpDir, ".seedprune", "watch.log") {
		t.Errorf("unexpected log file path %s", log)
	}

	if _, err := os.Stat(filepath.Dir(pid)); err != nil {
		t.Errorf("expected directory to exist: %v", err)
	}
}

func TestRunSweep_RetiresQualifyingTorrents(t *testing.T) {
	useTestEnv(t)
	f := newFakeTransmission(t,
		seedingTorrent("aaa111", "Done.Show.S01", 3.5, 100, "https://tracker.example/announce"),
		seedingTorrent("bbb222", "Still.Young", 0.4, 100, "https://tracker.example/announce"),
		map[string]interface{}{
			"hashString":  "ccc333",
			"name":        "Gone.Movie",
			"status":      0,
			"error":       2,
			"errorString": "Unregistered torrent",
			"trackers":    []map[string]interface{}{},
		},
	)
	pointAt(f)

	cmd, stdout, _ := newTestCommand()
	if err := runSweep(cmd, nil); err != nil {
		t.Fatalf("runSweep() error = %v", err)
	}

	out := stdout.String()
	want := "Removed: Done.Show.S01 aaa111\nReason: max_ratio threshold passed\n" +
		"Removed: Gone.Movie ccc333\nReason: unregistered by tracker\n"
	if out != want {
		t.Errorf("stdout =\n%s\nwant\n%s", out, want)
	}

	// The stopped torrent is removed without a stop call.
	if got := f.count("torrent-stop"); got != 1 {
		t.Errorf("torrent-stop calls = %d, want 1", got)
	}
	if got := f.count("torrent-remove"); got != 2 {
		t.Errorf("torrent-remove calls = %d, want 2", got)
	}
	for _, req := range f.requests {
		if del, ok := req["delete-local-data"]; ok && del != false {
			t.Errorf("delete-local-data = %v, want false", del)
		}
	}

	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	actions, err := st.ListActions(0, "")
	if err != nil {
		t.Fatalf("ListActions() error = %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("recorded %d actions, want 2", len(actions))
	}
	if actions[0].RunID == "" || actions[0].RunID != actions[1].RunID {
		t.Errorf("actions should share a run id: %q, %q", actions[0].RunID, actions[1].RunID)
	}

	last, err := st.LastSweep()
	if err != nil || last == nil {
		t.Fatalf("LastSweep() = %v, %v", last, err)
	}
	if last.Examined != 3 || last.Retired != 2 || last.Failed != 0 {
		t.Errorf("last sweep = %+v", last)
	}
}

func TestRunSweep_DryRun(t *testing.T) {
	useTestEnv(t)
	f := newFakeTransmission(t,
		seedingTorrent("aaa111", "Done.Show.S01", 3.5, 100, "https://tracker.example/announce"),
	)
	pointAt(f)
	dryRun = true

	cmd, stdout, stderr := newTestCommand()
	if err := runSweep(cmd, nil); err != nil {
		t.Fatalf("runSweep() error = %v", err)
	}

	want := "Removed (dry run): Done.Show.S01 aaa111\nReason: max_ratio threshold passed\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
	if !strings.Contains(stderr.String(), "Would retire 1 of 1 torrents") {
		t.Errorf("expected dry-run summary on stderr, got %q", stderr.String())
	}
	if f.count("torrent-stop")+f.count("torrent-remove") != 0 {
		t.Error("dry run must not stop or remove torrents")
	}
}

func TestRunSweep_NoHistory(t *testing.T) {
	useTestEnv(t)
	f := newFakeTransmission(t,
		seedingTorrent("aaa111", "Done", 3.5, 100, "https://tracker.example/announce"),
	)
	pointAt(f)
	noHistory = true

	cmd, _, _ := newTestCommand()
	if err := runSweep(cmd, nil); err != nil {
		t.Fatalf("runSweep() error = %v", err)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Error("history database created despite --no-history")
	}
}

func TestRunSweep_UsesConfigRules(t *testing.T) {
	tmpDir := useTestEnv(t)
	f := newFakeTransmission(t,
		seedingTorrent("aaa111", "Fast.Tracker", 0.5, 7200, "https://fast.example/announce/key"),
		seedingTorrent("bbb222", "Other", 0.5, 7200, "https://other.example/announce"),
	)

	configPath = filepath.Join(tmpDir, "custom.json")
	body := `{"RULES": {"fast.example/": {"min_time": 3600, "max_ratio": 1.0}, "DEFAULT": {"min_time": 86400, "max_ratio": 2.0}}}`
	if err := os.WriteFile(configPath, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	pointAt(f)

	cmd, stdout, _ := newTestCommand()
	if err := runSweep(cmd, nil); err != nil {
		t.Fatalf("runSweep() error = %v", err)
	}

	want := "Removed: Fast.Tracker aaa111\nReason: min_time threshold passed\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestRunSweep_FlagsOverrideInvalidFileValues(t *testing.T) {
	tmpDir := useTestEnv(t)
	f := newFakeTransmission(t)

	configPath = filepath.Join(tmpDir, "partial.json")
	if err := os.WriteFile(configPath, []byte(`{"CLIENT": {"host": "", "port": 0}}`), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	pointAt(f)

	cmd, _, _ := newTestCommand()
	if err := runSweep(cmd, nil); err != nil {
		t.Fatalf("runSweep() error = %v", err)
	}
	if got := f.count("torrent-get"); got != 1 {
		t.Errorf("torrent-get calls = %d, want 1", got)
	}
}

func TestRunSweep_Unreachable(t *testing.T) {
	useTestEnv(t)
	flagHost = "127.0.0.1"
	flagPort = 1

	cmd, stdout, _ := newTestCommand()
	err := runSweep(cmd, nil)
	if err == nil {
		t.Fatal("expected error when Transmission is unreachable")
	}
	if !strings.Contains(err.Error(), "cannot reach Transmission") {
		t.Errorf("unexpected error: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected no audit output, got %q", stdout.String())
	}
}

func TestRunSweep_InvalidConfig(t *testing.T) {
	tmpDir := useTestEnv(t)
	configPath = filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(configPath, []byte(`{"RULES": {"x/": {"min_time": 1, "max_ratio": 1}}}`), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cmd, _, _ := newTestCommand()
	if err := runSweep(cmd, nil); err == nil {
		t.Fatal("expected config error for rules without DEFAULT")
	}
}

func TestGenerateConfig(t *testing.T) {
	tmpDir := useTestEnv(t)
	configPath = filepath.Join(tmpDir, "seedprune", "config.json")
	generateConfig = true

	cmd, stdout, _ := newTestCommand()
	if err := runSweep(cmd, nil); err != nil {
		t.Fatalf("runSweep(-g) error = %v", err)
	}
	if !strings.Contains(stdout.String(), "Wrote config file") {
		t.Errorf("unexpected output %q", stdout.String())
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("generated config is not JSON: %v", err)
	}

	// Second run refuses to overwrite.
	if err := os.WriteFile(configPath, []byte(`{"CLIENT": {"host": "mine"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	cmd, stdout, _ = newTestCommand()
	if err := runSweep(cmd, nil); err != nil {
		t.Fatalf("runSweep(-g) error = %v", err)
	}
	if got := stdout.String(); got != "Config file exists already! Use -f to overwrite it.\n" {
		t.Errorf("unexpected output %q", got)
	}
	data, _ = os.ReadFile(configPath)
	if !bytes.Contains(data, []byte("mine")) {
		t.Error("existing config was overwritten without --force")
	}

	forceGenerate = true
	cmd, _, _ = newTestCommand()
	if err := runSweep(cmd, nil); err != nil {
		t.Fatalf("runSweep(-g -f) error = %v", err)
	}
	data, _ = os.ReadFile(configPath)
	if bytes.Contains(data, []byte("mine")) {
		t.Error("--force did not overwrite the config")
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	RootCmd.SetOut(bytes.NewBuffer(nil))
	RootCmd.SetErr(bytes.NewBuffer(nil))
	defer RootCmd.SetOut(nil)
	defer RootCmd.SetErr(nil)

	RootCmd.SetArgs([]string{"blorp"})
	defer RootCmd.SetArgs(nil)

	err := Execute()
	if err == nil {
		t.Fatal("expected Execute() to return an error for unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected error to contain 'unknown command', got: %v", err)
	}
}

func TestExecute_Help(t *testing.T) {
	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	defer RootCmd.SetOut(nil)

	RootCmd.SetArgs([]string{"--help"})
	defer RootCmd.SetArgs(nil)

	if err := Execute(); err != nil {
		t.Errorf("expected --help to succeed, got error: %v", err)
	}
	if !strings.Contains(buf.String(), "Usage:") {
		t.Errorf("expected help output to contain 'Usage:', got: %s", buf.String())
	}
}

func TestReasonNames(t *testing.T) {
	names := reasonNames()
	for _, r := range classifier.Reasons {
		if !strings.Contains(names, string(r)) {
			t.Errorf("reasonNames() missing %s", r)
		}
	}
}
