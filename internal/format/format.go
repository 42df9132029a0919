// Package format decides what to do with a file after the assistant edits
// it. Shell scripts are reformatted in place; for other file types the
// configured formatter command is reported back, never executed.
package format

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/dgerlanc/hookkit/internal/logger"
)

// ErrNotExist is returned by Handle when the edited file is gone.
var ErrNotExist = errors.New("edited file does not exist")

var shellExtensions = map[string]bool{
	".sh":   true,
	".bash": true,
}

// Dispatcher maps edited files to formatting actions.
type Dispatcher struct {
	// Commands maps a lowercase extension, dot included, to a formatter argv.
	Commands    map[string][]string
	FormatShell bool
}

// Result describes the action taken for one file.
type Result struct {
	Path string
	// Formatter is the argv the assistant should run, path included.
	Formatter   []string
	Reformatted bool
}

// Message is the text reported back to the assistant, or "" when there is
// nothing to say.
func (r Result) Message() string {
	switch {
	case r.Reformatted:
		return fmt.Sprintf("Reformatted shell script %s.", r.Path)
	case len(r.Formatter) > 0:
		return fmt.Sprintf("%s was edited; format it with: %s", r.Path, strings.Join(r.Formatter, " "))
	}
	return ""
}

// Handle returns the action for path, reformatting shell scripts in place
// when enabled.
func (d Dispatcher) Handle(path string) (Result, error) {
	res := Result{Path: path}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return res, ErrNotExist
	}
	if err != nil {
		return res, err
	}
	if info.IsDir() {
		return res, fmt.Errorf("%s is a directory", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if shellExtensions[ext] && d.FormatShell {
		changed, err := formatShellFile(path, info.Mode().Perm())
		if err != nil {
			// Unparseable scripts are left alone.
			logger.Debug("shell format skipped", "path", path, "error", err)
			return res, nil
		}
		res.Reformatted = changed
		return res, nil
	}

	if argv := d.Commands[ext]; len(argv) > 0 {
		res.Formatter = append(append([]string{}, argv...), path)
	}
	return res, nil
}

func formatShellFile(path string, perm fs.FileMode) (bool, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	out, err := Shell(src, filepath.Base(path))
	if err != nil {
		return false, err
	}
	if bytes.Equal(src, out) {
		return false, nil
	}
	if err := os.WriteFile(path, out, perm); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// Shell returns src printed in canonical form. Comments are kept.
func Shell(src []byte, name string) ([]byte, error) {
	parser := syntax.NewParser(syntax.KeepComments(true), syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := syntax.NewPrinter().Print(&buf, file); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
