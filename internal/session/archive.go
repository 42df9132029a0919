// Package session archives a summary of each finished session and builds the
// context block shown when the next session starts.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/dgerlanc/hookkit/internal/constants"
	"github.com/dgerlanc/hookkit/internal/logger"
)

// TimestampFormat is the layout of Record.Timestamp.
const TimestampFormat = "2006-01-02T15:04:05.000000"

const (
	maxSessionIDLen = 100
	maxSummaryRunes = 10000
	maxListItems    = 1000
	fileTimeFormat  = "20060102_150405"
)

// ErrInsufficientSpace is returned when the archive directory's filesystem
// has less free space than the configured minimum.
var ErrInsufficientSpace = errors.New("insufficient disk space for session archive")

var unsafeIDChars = regexp.MustCompile(`[^\w\-.]`)

// Record is one archived session.
type Record struct {
	Timestamp     string   `json:"timestamp"`
	SessionID     string   `json:"session_id"`
	Summary       string   `json:"summary"`
	ToolsUsed     []string `json:"tools_used"`
	FilesModified []string `json:"files_modified"`
	KeyDecisions  []string `json:"key_decisions"`
	// Transcript is the file name of the compressed transcript copy, if any.
	Transcript string `json:"transcript,omitempty"`
}

// Archiver writes session records into Dir.
type Archiver struct {
	Dir       string
	MinFreeMB int
	// TranscriptPath, when set, is stored next to the record as a
	// zstd-compressed copy.
	TranscriptPath string
	Now            func() time.Time
}

// Write stores rec and returns the archive path. The file appears
// atomically: readers never see a partial record.
func (a *Archiver) Write(rec Record) (string, error) {
	if err := os.MkdirAll(a.Dir, constants.DirMode); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if a.MinFreeMB > 0 {
		free, err := freeMB(a.Dir)
		if err != nil {
			logger.Debug("free space check skipped", "dir", a.Dir, "error", err)
		} else if free < uint64(a.MinFreeMB) {
			return "", fmt.Errorf("%w: %d MB free, %d MB required", ErrInsufficientSpace, free, a.MinFreeMB)
		}
	}

	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	base := fmt.Sprintf("session_%s_%s", now.Format(fileTimeFormat), uuid.NewString()[:8])

	rec = sanitize(rec)
	rec.Timestamp = now.Format(TimestampFormat)
	if a.TranscriptPath != "" {
		name := base + ".transcript.jsonl.zst"
		if err := compressFile(a.TranscriptPath, filepath.Join(a.Dir, name)); err != nil {
			logger.Warn("transcript copy skipped", "path", a.TranscriptPath, "error", err)
		} else {
			rec.Transcript = name
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return "", fmt.Errorf("failed to encode session record: %w", err)
	}

	path := filepath.Join(a.Dir, base+".json")
	if err := writeAtomic(a.Dir, path, buf.Bytes()); err != nil {
		return "", err
	}
	logger.Info("session archived", "path", path)
	return path, nil
}

// sanitize bounds every field of rec.
func sanitize(rec Record) Record {
	rec.SessionID = SanitizeID(rec.SessionID)
	if rec.Summary == "" {
		rec.Summary = DefaultSummary
	}
	if runes := []rune(rec.Summary); len(runes) > maxSummaryRunes {
		rec.Summary = string(runes[:maxSummaryRunes])
	}
	rec.ToolsUsed = capList(rec.ToolsUsed)
	rec.FilesModified = capList(rec.FilesModified)
	rec.KeyDecisions = capList(rec.KeyDecisions)
	return rec
}

// SanitizeID makes a session id safe to embed in a file name.
func SanitizeID(id string) string {
	if id == "" {
		id = "unknown"
	}
	safe := unsafeIDChars.ReplaceAllString(id, "_")
	safe = strings.ReplaceAll(safe, "..", "_")
	if len(safe) > maxSessionIDLen {
		safe = safe[:maxSessionIDLen]
	}
	return safe
}

func capList(items []string) []string {
	if items == nil {
		return []string{}
	}
	if len(items) > maxListItems {
		return items[:maxListItems]
	}
	return items
}

// writeAtomic writes data to a temp file in dir and renames it to path.
func writeAtomic(dir, path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, ".session_*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write session record: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync session record: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session record: %w", err)
	}
	if err = os.Chmod(tmp.Name(), constants.FileMode); err != nil {
		return fmt.Errorf("failed to set session record mode: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move session record into place: %w", err)
	}
	return nil
}

func compressFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.PrivateMode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err = io.Copy(enc, in); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadTranscript returns the decompressed transcript stored with rec in dir.
func ReadTranscript(dir string, rec *Record) ([]byte, error) {
	if rec.Transcript == "" {
		return nil, fmt.Errorf("session %s has no stored transcript", rec.SessionID)
	}
	f, err := os.Open(filepath.Join(dir, filepath.Base(rec.Transcript)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed transcript: %w", err)
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
