package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dgerlanc/hookkit/internal/config"
)

func runValidateCapture(t *testing.T) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	err := runValidate(cmd, []string{})
	return buf.String(), err
}

func TestRunValidateText(t *testing.T) {
	dir := setupTestConfig(t)

	output, err := runValidateCapture(t)
	if err != nil {
		t.Fatalf("runValidate() error = %v", err)
	}

	for _, want := range []string{
		"Configuration valid!",
		"Config file: " + filepath.Join(dir, "config.toml"),
		"Protected branches (exact match): [main master]",
		"[deny] terraform-destroy",
		"[warn] npm-publish",
		"[deny] rm-root-or-home",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRunValidateYAML(t *testing.T) {
	setupTestConfig(t)
	validateOutput = "yaml"

	output, err := runValidateCapture(t)
	if err != nil {
		t.Fatalf("runValidate() error = %v", err)
	}

	var report validateReport
	if err := yaml.Unmarshal([]byte(output), &report); err != nil {
		t.Fatalf("output is not yaml: %v\n%s", err, output)
	}
	if report.BranchMatch != "exact" {
		t.Errorf("branch_match = %q", report.BranchMatch)
	}
	if len(report.Rules) == 0 {
		t.Fatal("no rules in report")
	}
	if report.Rules[0].Severity != "deny" {
		t.Errorf("first rule severity = %q, want deny", report.Rules[0].Severity)
	}
	found := false
	for _, r := range report.Rules {
		if r.Name == "npm-publish" {
			found = true
		}
	}
	if !found {
		t.Error("custom warn rule missing from report")
	}
}

func TestRunValidateUnknownFormat(t *testing.T) {
	setupTestConfig(t)
	validateOutput = "xml"

	_, err := runValidateCapture(t)
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("runValidate() error = %v", err)
	}
}

func TestRunValidateInvalidConfig(t *testing.T) {
	resetGlobalState()
	tmpDir := t.TempDir()
	os.Setenv("HOOKKIT_CONFIG", tmpDir)
	t.Cleanup(func() {
		os.Unsetenv("HOOKKIT_CONFIG")
		resetGlobalState()
	})

	invalid := "[[safety.deny]]\nname = \"broken\"\npattern = \"([unclosed\"\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(invalid), 0644); err != nil {
		t.Fatal(err)
	}
	config.Init()

	_, err := runValidateCapture(t)
	if err == nil || !strings.Contains(err.Error(), "configuration invalid") {
		t.Errorf("runValidate() error = %v", err)
	}
}

func TestRunValidateSyntaxError(t *testing.T) {
	resetGlobalState()
	tmpDir := t.TempDir()
	os.Setenv("HOOKKIT_CONFIG", tmpDir)
	t.Cleanup(func() {
		os.Unsetenv("HOOKKIT_CONFIG")
		resetGlobalState()
	})

	if err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("[safety\n"), 0644); err != nil {
		t.Fatal(err)
	}
	config.Init()

	if _, err := runValidateCapture(t); err == nil {
		t.Error("runValidate() should fail on a toml syntax error")
	}
}
