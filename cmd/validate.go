package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dgerlanc/hookkit/internal/config"
	"github.com/dgerlanc/hookkit/internal/hook"
	"github.com/dgerlanc/hookkit/internal/risk"
)

var validateOutput string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and show the compiled rules",
	Long: `Validate loads the hookkit configuration and displays the compiled rule
table in evaluation order.

This is useful for:
- Checking that your config.toml syntax is correct
- Seeing which rules run and in what order
- Exporting the rule table with --output yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateOutput, "output", "o", "text", "Output format: text or yaml")
}

// validateReport is the yaml form of the validate output.
type validateReport struct {
	ConfigPath        string          `yaml:"config_path"`
	ProtectedBranches []string        `yaml:"protected_branches"`
	BranchMatch       string          `yaml:"branch_match"`
	ProtectedFiles    []string        `yaml:"protected_files"`
	Rules             []risk.RuleSpec `yaml:"rules"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	if validateOutput != "text" && validateOutput != "yaml" {
		return fmt.Errorf("unknown output format %q (want text or yaml)", validateOutput)
	}
	// A broken user file would otherwise be masked by the fallback.
	if err := config.InitError(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	cfg := config.Get()
	classifier, err := cfg.NewClassifier(hook.LogSink{})
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	report := validateReport{
		ConfigPath:        config.GetConfigPath(),
		ProtectedBranches: cfg.Safety.ProtectedBranches,
		BranchMatch:       cfg.Safety.BranchMatch,
		ProtectedFiles:    cfg.Safety.ProtectedFiles,
		Rules:             classifier.Rules(),
	}
	if report.ConfigPath == "" {
		report.ConfigPath = "(embedded defaults)"
	}

	out := cmd.OutOrStdout()
	if validateOutput == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	}
	printReport(out, report)
	return nil
}

func printReport(w io.Writer, r validateReport) {
	fmt.Fprintln(w, "Configuration valid!")
	fmt.Fprintf(w, "Config file: %s\n", r.ConfigPath)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Protected branches (%s match): %v\n", r.BranchMatch, r.ProtectedBranches)
	fmt.Fprintf(w, "Protected files: %v\n", r.ProtectedFiles)
	fmt.Fprintln(w)

	counts := make(map[risk.Decision]int)
	for _, rule := range r.Rules {
		counts[rule.Severity]++
	}
	fmt.Fprintf(w, "Rules: %d (%d deny, %d warn, %d allow)\n",
		len(r.Rules), counts[risk.Deny], counts[risk.Warn], counts[risk.Allow])
	for _, rule := range r.Rules {
		fmt.Fprintf(w, "  - [%s] %s (%s): %s\n", rule.Severity, rule.Name, rule.Category, rule.Pattern)
	}
}
