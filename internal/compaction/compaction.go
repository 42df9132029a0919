// Package compaction scans a context that is about to be compacted for
// lines worth keeping, archives them, and renders a warning.
package compaction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/dgerlanc/hookkit/internal/constants"
)

const archiveNote = "This context was archived before compression to preserve important decisions and context"

// maxFileRefLen drops long prose lines that merely contain a slash.
const maxFileRefLen = 200

var (
	decisionMarkers = []string{"decision:", "decided:", "approved:", "confirmed:", "agreed:"}
	criticalMarkers = []string{
		"critical:", "important:", "must:", "never:", "always:",
		"security:", "permission:", "error:", "bug:", "issue:",
	}
	fileMarkers    = []string{"/", `\`, ".py", ".js", ".ts", ".json", ".md"}
	commandMarkers = []string{"git ", "bash ", "npm ", "python ", "docker ", "commit"}
)

// Elements are the lines of a context that are at risk of being lost. A
// line may appear in more than one list.
type Elements struct {
	Decisions []string
	Critical  []string
	Files     []string
	Commands  []string
}

// Empty reports whether nothing worth keeping was found.
func (e Elements) Empty() bool {
	return len(e.Decisions) == 0 && len(e.Critical) == 0 && len(e.Files) == 0 && len(e.Commands) == 0
}

// Extract classifies every line of context.
func Extract(context string) Elements {
	var e Elements
	for _, line := range strings.Split(context, "\n") {
		lower := strings.ToLower(line)
		trimmed := strings.TrimSpace(line)
		if containsAny(lower, decisionMarkers) {
			e.Decisions = append(e.Decisions, trimmed)
		}
		if containsAny(lower, criticalMarkers) {
			e.Critical = append(e.Critical, trimmed)
		}
		if containsAny(line, fileMarkers) && len(trimmed) < maxFileRefLen {
			e.Files = append(e.Files, trimmed)
		}
		if containsAny(lower, commandMarkers) {
			e.Commands = append(e.Commands, trimmed)
		}
	}
	return e
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Impact describes the size change of a compaction.
type Impact struct {
	OriginalTokens int64
	TargetTokens   int64
}

// ReductionPercent is the reduction rounded to one decimal place, or 0 when
// the original size is unknown.
func (i Impact) ReductionPercent() float64 {
	if i.OriginalTokens <= 0 {
		return 0
	}
	r := (1 - float64(i.TargetTokens)/float64(i.OriginalTokens)) * 100
	return math.Round(r*10) / 10
}

// Archive is the on-disk record of a pre-compaction scan.
type Archive struct {
	Timestamp         string   `json:"timestamp"`
	ArchiveType       string   `json:"archive_type"`
	CriticalDecisions []string `json:"critical_decisions"`
	CriticalItems     []string `json:"critical_items"`
	ReferencedFiles   []string `json:"referenced_files"`
	CommandsUsed      []string `json:"commands_used"`
	Note              string   `json:"note"`
}

// Archiver writes pre-compaction archives into Dir.
type Archiver struct {
	Dir      string
	MaxItems int
	Now      func() time.Time
}

// Write stores up to MaxItems lines of each kind and returns the file path.
func (a *Archiver) Write(e Elements) (string, error) {
	if err := os.MkdirAll(a.Dir, constants.DirMode); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	rec := Archive{
		Timestamp:         now.Format("2006-01-02T15:04:05.000000"),
		ArchiveType:       "pre-compression",
		CriticalDecisions: a.limit(e.Decisions),
		CriticalItems:     a.limit(e.Critical),
		ReferencedFiles:   a.limit(e.Files),
		CommandsUsed:      a.limit(e.Commands),
		Note:              archiveNote,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return "", fmt.Errorf("failed to encode archive: %w", err)
	}

	path := filepath.Join(a.Dir, "context-archive_"+now.Format("20060102_150405")+".json")
	if err := os.WriteFile(path, buf.Bytes(), constants.FileMode); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}
	return path, nil
}

func (a *Archiver) limit(items []string) []string {
	if items == nil {
		return []string{}
	}
	if a.MaxItems > 0 && len(items) > a.MaxItems {
		return items[:a.MaxItems]
	}
	return items
}

// Warning renders the message shown before compaction.
func Warning(impact Impact, e Elements) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString("=== Context Compression Warning ===\n")
	p.Fprintf(&b, "Compression: %d -> %d tokens (%.1f%% reduction)\n",
		impact.OriginalTokens, impact.TargetTokens, impact.ReductionPercent())

	b.WriteString("Elements at risk of being compressed away:\n")
	counts := []struct {
		n     int
		label string
	}{
		{len(e.Decisions), "decisions/approvals"},
		{len(e.Critical), "critical items"},
		{len(e.Files), "file references"},
		{len(e.Commands), "executed commands"},
	}
	for _, c := range counts {
		if c.n > 0 {
			p.Fprintf(&b, "  - %d %s\n", c.n, c.label)
		}
	}

	b.WriteString("\nRecommendations:\n")
	b.WriteString("1. Review critical decisions above\n")
	b.WriteString("2. Archive context before compression if needed\n")
	b.WriteString("3. Consider documenting key findings in memory-bank\n")
	b.WriteString("4. This compression is informational only - no action required\n")
	return b.String()
}
