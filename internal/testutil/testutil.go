// Package testutil provides shared test utilities for hookkit tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgerlanc/hookkit/internal/config"
	"github.com/dgerlanc/hookkit/internal/constants"
)

// SetupTestConfig creates a temporary config directory with test configuration.
// Every path in the config points inside the temporary directory so tests
// never touch the real home directory. Returns a cleanup function that
// should be deferred.
func SetupTestConfig(t *testing.T, configContent string) func() {
	t.Helper()

	tmpDir := t.TempDir()
	os.Setenv(constants.EnvConfigDir, tmpDir)

	content := strings.ReplaceAll(TestPaths, "{{dir}}", filepath.ToSlash(tmpDir)) + configContent
	configPath := filepath.Join(tmpDir, constants.ConfigFileName)
	if err := os.WriteFile(configPath, []byte(content), constants.FileMode); err != nil {
		t.Fatal(err)
	}

	config.Reset()
	if err := config.Init(); err != nil {
		t.Fatalf("config.Init failed: %v", err)
	}

	return func() {
		os.Unsetenv(constants.EnvConfigDir)
		config.Reset()
	}
}

// TestPaths redirects every configured path into {{dir}}.
const TestPaths = `
[paths]
memory_bank = "{{dir}}/memory-bank"
progress_file = "{{dir}}/progress.txt"
log_dir = "{{dir}}/logs"
audit_log = "{{dir}}/audit.log"
`

// MinimalTestConfig adds one rule of each severity on top of the defaults.
const MinimalTestConfig = `
[safety]
protected_branches = ["main", "master"]

[[safety.deny]]
name = "terraform-destroy"
commands = ["terraform destroy"]
reason = "terraform destroy"

[[safety.warn]]
name = "npm-publish"
pattern = '\bnpm\s+publish\b'
suggestion = "Run npm publish --dry-run first."
`

// WriteFile writes content to name inside dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), constants.DirMode); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), constants.FileMode); err != nil {
		t.Fatal(err)
	}
	return path
}
