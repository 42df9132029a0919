// Package audit provides an append-only JSONL log of hook decisions.
//
// Every entry is redacted before it is written, so secrets that appear in a
// command line never reach the log file.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgerlanc/hookkit/internal/constants"
	"github.com/dgerlanc/hookkit/internal/logger"
)

// Version is the entry format version.
const Version = 1

// TimestampFormat is the format used for audit log timestamps.
const TimestampFormat = "2006-01-02T15:04:05.0Z07:00"

// Entry represents a single audit log entry.
type Entry struct {
	Version     int       `json:"version"`
	Event       string    `json:"event"`
	Tool        string    `json:"tool,omitempty"`
	ToolUseID   string    `json:"tool_use_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	Timestamp   string    `json:"timestamp"`
	DurationMs  float64   `json:"duration_ms"`
	Command     string    `json:"command,omitempty"`
	FilePath    string    `json:"file_path,omitempty"`
	Decision    string    `json:"decision"`
	Category    string    `json:"category,omitempty"`
	Rule        string    `json:"rule,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Suggestion  string    `json:"suggestion,omitempty"`
	Segments    []Segment `json:"segments,omitempty"`
	Cwd         string    `json:"cwd,omitempty"`
	DryRun      bool      `json:"dry_run,omitempty"`
	ConfigPath  string    `json:"config_path"`
	ConfigError string    `json:"config_error,omitempty"`
}

// Segment is one simple command of a chained command line.
type Segment struct {
	Command string `json:"command"`
	// Triggered marks the segment containing the text that matched the rule.
	Triggered bool `json:"triggered,omitempty"`
}

var (
	auditFile *os.File
	mu        sync.Mutex
	enabled   bool
)

// DefaultLogPath returns the default audit log path (~/.local/share/hookkit/audit.log)
func DefaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, constants.XDGDataSubdir, constants.AppName, constants.AuditFileName), nil
}

// Init initializes the audit log. If path is empty, uses the default path.
// Pass disable=true to turn audit logging off.
func Init(path string, disable bool) error {
	mu.Lock()
	defer mu.Unlock()

	if disable {
		enabled = false
		return nil
	}

	if path == "" {
		var err error
		path, err = DefaultLogPath()
		if err != nil {
			logger.Debug("failed to get default audit log path", "error", err)
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.DirMode); err != nil {
		logger.Debug("failed to create audit log directory", "error", err)
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, constants.PrivateMode)
	if err != nil {
		logger.Debug("failed to open audit log file", "error", err)
		return err
	}

	if auditFile != nil {
		auditFile.Close()
	}
	auditFile = f
	enabled = true
	logger.Debug("audit logging initialized", "path", path)
	return nil
}

// Close closes the audit log file.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if auditFile != nil {
		err := auditFile.Close()
		auditFile = nil
		enabled = false
		return err
	}
	return nil
}

// Log writes an entry to the audit log.
// If audit logging is not initialized or disabled, this is a no-op.
func Log(entry Entry) error {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || auditFile == nil {
		return nil
	}

	entry.Version = Version
	// tenths of a second precision
	entry.Timestamp = time.Now().UTC().Format(TimestampFormat)
	entry = redactEntry(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		logger.Debug("failed to marshal audit entry", "error", err)
		return err
	}

	if _, err := auditFile.Write(append(data, '\n')); err != nil {
		logger.Debug("failed to write audit entry", "error", err)
		return err
	}

	return nil
}

func redactEntry(e Entry) Entry {
	e.Command = Redact(e.Command)
	e.Reason = Redact(e.Reason)
	if len(e.Segments) > 0 {
		segs := make([]Segment, len(e.Segments))
		for i, s := range e.Segments {
			segs[i] = Segment{Command: Redact(s.Command), Triggered: s.Triggered}
		}
		e.Segments = segs
	}
	return e
}

// IsEnabled returns whether audit logging is enabled.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Reset resets the audit state. Used for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	if auditFile != nil {
		auditFile.Close()
	}
	auditFile = nil
	enabled = false
}
