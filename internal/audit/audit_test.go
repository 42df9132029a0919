package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDefaultLogPath(t *testing.T) {
	path, err := DefaultLogPath()
	if err != nil {
		t.Fatalf("DefaultLogPath() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".local", "share", "hookkit", "audit.log")
	if path != expected {
		t.Errorf("DefaultLogPath() = %q, want %q", path, expected)
	}
}

func TestInit(t *testing.T) {
	defer Reset()

	logPath := filepath.Join(t.TempDir(), "subdir", "audit.log")

	if err := Init(logPath, false); err != nil {
		t.Errorf("Init() error = %v", err)
	}

	if !IsEnabled() {
		t.Error("Expected audit logging to be enabled")
	}

	info, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		t.Fatal("Audit log file was not created")
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("audit log mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestInitDisabled(t *testing.T) {
	defer Reset()

	if err := Init("", true); err != nil {
		t.Errorf("Init(disable=true) error = %v", err)
	}

	if IsEnabled() {
		t.Error("Expected audit logging to be disabled")
	}
}

func TestLog(t *testing.T) {
	defer Reset()

	logPath := filepath.Join(t.TempDir(), "audit.log")

	if err := Init(logPath, false); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	entry1 := Entry{
		Event:    "PreToolUse",
		Tool:     "Bash",
		Command:  "git status",
		Decision: "allow",
	}
	if err := Log(entry1); err != nil {
		t.Errorf("Log() error = %v", err)
	}

	entry2 := Entry{
		Event:    "PreToolUse",
		Tool:     "Bash",
		Command:  "cd /tmp && rm -rf /",
		Decision: "deny",
		Category: "destructive-fs",
		Rule:     "rm-root-or-home",
		Reason:   "Blocked destructive filesystem operation: recursive delete of the root or home directory",
		Segments: []Segment{{Command: "cd /tmp"}, {Command: "rm -rf /", Triggered: true}},
	}
	if err := Log(entry2); err != nil {
		t.Errorf("Log() error = %v", err)
	}

	Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d", len(lines))
	}

	var parsed1 Entry
	if err := json.Unmarshal([]byte(lines[0]), &parsed1); err != nil {
		t.Errorf("Failed to parse first entry: %v", err)
	}
	if parsed1.Command != "git status" {
		t.Errorf("First entry command = %q, want %q", parsed1.Command, "git status")
	}
	if parsed1.Decision != "allow" {
		t.Errorf("First entry decision = %q, want allow", parsed1.Decision)
	}
	if parsed1.Version != Version {
		t.Errorf("First entry version = %d, want %d", parsed1.Version, Version)
	}
	if parsed1.Timestamp == "" {
		t.Error("First entry timestamp should be set")
	}

	var parsed2 Entry
	if err := json.Unmarshal([]byte(lines[1]), &parsed2); err != nil {
		t.Errorf("Failed to parse second entry: %v", err)
	}
	if parsed2.Decision != "deny" || parsed2.Rule != "rm-root-or-home" {
		t.Errorf("Second entry = %s/%s, want deny/rm-root-or-home", parsed2.Decision, parsed2.Rule)
	}
	if len(parsed2.Segments) != 2 || !parsed2.Segments[1].Triggered || parsed2.Segments[0].Triggered {
		t.Errorf("Second entry segments = %+v", parsed2.Segments)
	}
}

func TestLogRedactsSecrets(t *testing.T) {
	defer Reset()

	logPath := filepath.Join(t.TempDir(), "audit.log")
	if err := Init(logPath, false); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	secret := "hunter22hunter22"
	entry := Entry{
		Event:    "PreToolUse",
		Command:  "mysql --password=" + secret + " -e 'select 1'",
		Decision: "allow",
		Segments: []Segment{{Command: "mysql --password=" + secret}},
	}
	if err := Log(entry); err != nil {
		t.Fatal(err)
	}
	Close()

	content, _ := os.ReadFile(logPath)
	if strings.Contains(string(content), secret) {
		t.Errorf("secret leaked into audit log: %s", content)
	}
	if !strings.Contains(string(content), redactedPlaceholder) {
		t.Errorf("expected placeholder in audit log: %s", content)
	}
	// the caller's entry is not modified
	if !strings.Contains(entry.Segments[0].Command, secret) {
		t.Error("Log modified the caller's segments")
	}
}

func TestLogWhenDisabled(t *testing.T) {
	defer Reset()

	entry := Entry{
		Command:  "git status",
		Decision: "allow",
	}

	if err := Log(entry); err != nil {
		t.Errorf("Log() when disabled error = %v", err)
	}
}

func TestClose(t *testing.T) {
	defer Reset()

	logPath := filepath.Join(t.TempDir(), "audit.log")

	if err := Init(logPath, false); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if err := Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if IsEnabled() {
		t.Error("Expected audit logging to be disabled after Close")
	}

	// Double close should not error
	if err := Close(); err != nil {
		t.Errorf("Close() second call error = %v", err)
	}
}

// readEntries returns the decoded entries of the log at path.
func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("invalid JSONL line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestLogConcurrent(t *testing.T) {
	defer Reset()

	logPath := filepath.Join(t.TempDir(), "audit.log")
	if err := Init(logPath, false); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Log(Entry{Event: "PreToolUse", Tool: "Bash", Command: "git reset --hard", Decision: "warn", Rule: "reset-hard"})
		}()
	}
	wg.Wait()
	Close()

	entries := readEntries(t, logPath)
	if len(entries) != writers {
		t.Fatalf("got %d entries, want %d", len(entries), writers)
	}
	for _, e := range entries {
		if e.Rule != "reset-hard" {
			t.Errorf("interleaved entry: %+v", e)
		}
	}
}

func TestLogFileEntryAndConfigError(t *testing.T) {
	defer Reset()

	logPath := filepath.Join(t.TempDir(), "audit.log")
	if err := Init(logPath, false); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Log(Entry{
		Event:       "PreToolUse",
		Tool:        "Write",
		FilePath:    "/repo/.env",
		Decision:    "deny",
		Rule:        ".env",
		DryRun:      true,
		ConfigPath:  "/home/u/.config/hookkit/config.toml",
		ConfigError: "failed to parse TOML",
	})
	Close()

	e := readEntries(t, logPath)[0]
	if e.FilePath != "/repo/.env" || e.Command != "" {
		t.Errorf("file entry = %+v", e)
	}
	if !e.DryRun || e.ConfigError != "failed to parse TOML" {
		t.Errorf("dry run / config error not recorded: %+v", e)
	}
}

func TestInitAppends(t *testing.T) {
	defer Reset()

	logPath := filepath.Join(t.TempDir(), "audit.log")
	for _, cmd := range []string{"git status", "git log"} {
		if err := Init(logPath, false); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		Log(Entry{Event: "PreToolUse", Command: cmd, Decision: "allow"})
		Close()
	}

	entries := readEntries(t, logPath)
	if len(entries) != 2 || entries[0].Command != "git status" || entries[1].Command != "git log" {
		t.Errorf("entries = %+v", entries)
	}
}
