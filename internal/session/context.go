package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoArchive is returned by LoadLatest when no session has been archived.
var ErrNoArchive = errors.New("no archived session")

const (
	shownCommits       = 3
	shownTools         = 5
	shownProgressLines = 5
)

// LoadLatest returns the most recent record in dir. Archive names start
// with a timestamp, so the last name in lexical order is the newest.
func LoadLatest(dir string) (*Record, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "session_*.json"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNoArchive
	}
	sort.Strings(matches)
	latest := matches[len(matches)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", latest, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", latest, err)
	}
	return &rec, nil
}

// TailLines returns the last n lines of the file at path, with surrounding
// blank lines trimmed.
func TailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// StartContext is everything shown to the assistant at session start.
type StartContext struct {
	Branch   string
	Commits  []string
	Previous *Record
	Progress []string
}

// String renders the context block.
func (c StartContext) String() string {
	var b strings.Builder
	b.WriteString("=== Session Context Loaded ===")

	if c.Branch != "" || len(c.Commits) > 0 {
		branch := c.Branch
		if branch == "" {
			branch = "unknown"
		}
		fmt.Fprintf(&b, "\n\nGit: %s", branch)
		if len(c.Commits) > 0 {
			b.WriteString("\nRecent commits:")
			for _, commit := range first(c.Commits, shownCommits) {
				fmt.Fprintf(&b, "\n  %s", commit)
			}
		}
	}

	if p := c.Previous; p != nil {
		summary := p.Summary
		if summary == "" {
			summary = "N/A"
		}
		fmt.Fprintf(&b, "\n\nPrevious session: %s", p.SessionID)
		fmt.Fprintf(&b, "\n  Summary: %s", summary)
		fmt.Fprintf(&b, "\n  Files modified: %d", len(p.FilesModified))
		if len(p.ToolsUsed) > 0 {
			fmt.Fprintf(&b, "\n  Tools used: %s", strings.Join(first(p.ToolsUsed, shownTools), ", "))
		}
	}

	if len(c.Progress) > 0 {
		b.WriteString("\n\nRecent progress:")
		for _, line := range first(c.Progress, shownProgressLines) {
			fmt.Fprintf(&b, "\n  %s", line)
		}
	}
	return b.String()
}

func first(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
