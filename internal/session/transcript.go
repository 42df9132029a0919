package session

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/dgerlanc/hookkit/internal/logger"
)

// DefaultSummary is used when the transcript holds no user prompt.
const DefaultSummary = "Session ended"

const (
	summaryRunes  = 200
	maxLineBytes  = 16 << 20
	summaryPrefix = "Task: "
)

// Tools whose file_path input counts as a modified file.
var fileTools = map[string]bool{
	"Edit":         true,
	"Write":        true,
	"MultiEdit":    true,
	"NotebookEdit": true,
}

// Transcript is what a session transcript says about the session.
type Transcript struct {
	Summary       string
	ToolsUsed     []string
	FilesModified []string
}

// ParseTranscript reads a JSONL transcript. A missing file is not an error
// and yields the default summary; malformed lines are skipped.
func ParseTranscript(path string) (Transcript, error) {
	t := Transcript{Summary: DefaultSummary}
	if path == "" {
		return t, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("transcript not found", "path", path)
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	tools := make(map[string]bool)
	files := make(map[string]bool)
	var firstPrompt string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !gjson.ValidBytes(line) {
			continue
		}
		entry := gjson.ParseBytes(line)
		switch entry.Get("type").String() {
		case "user":
			if firstPrompt != "" {
				continue
			}
			content := entry.Get("message.content")
			if content.Type == gjson.String && content.String() != "" {
				firstPrompt = truncateRunes(content.String(), summaryRunes)
			}
		case "assistant":
			content := entry.Get("message.content")
			if !content.IsArray() {
				continue
			}
			content.ForEach(func(_, item gjson.Result) bool {
				if item.Get("type").String() != "tool_use" {
					return true
				}
				name := item.Get("name").String()
				if name != "" {
					tools[name] = true
				}
				if fp := item.Get("input.file_path"); fileTools[name] && fp.Type == gjson.String && fp.String() != "" {
					files[fp.String()] = true
				}
				return true
			})
		}
	}
	if err := scanner.Err(); err != nil {
		// Keep what was read so far.
		logger.Warn("transcript read stopped early", "path", path, "error", err)
	}

	if firstPrompt != "" {
		t.Summary = summaryPrefix + firstPrompt
	}
	t.ToolsUsed = sortedKeys(tools)
	t.FilesModified = sortedKeys(files)
	return t, nil
}

// truncateRunes cuts s to n runes, appending "..." when anything was cut.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + "..."
		}
		count++
	}
	return s
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
