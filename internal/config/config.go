// Package config handles configuration loading and parsing for hookkit.
//
// The user file is decoded on top of the embedded defaults, so any key it
// omits keeps its default value. Loading never leaves the process without a
// configuration: on any error Init falls back to the embedded defaults and
// remembers the error for the audit log.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"

	"github.com/dgerlanc/hookkit/internal/constants"
	"github.com/dgerlanc/hookkit/internal/logger"
	"github.com/dgerlanc/hookkit/internal/patterns"
	"github.com/dgerlanc/hookkit/internal/risk"
)

//go:embed config.toml
var defaultConfig []byte

// ErrCircularInclude is returned when include files form a cycle.
var ErrCircularInclude = errors.New("circular include")

// Config is the decoded configuration file.
type Config struct {
	Include    []string   `toml:"include"`
	Safety     Safety     `toml:"safety"`
	Paths      Paths      `toml:"paths"`
	Session    Session    `toml:"session"`
	Compaction Compaction `toml:"compaction"`
	Quality    Quality    `toml:"quality"`
	Format     Format     `toml:"format"`

	rules       []risk.RuleSpec
	branchMatch risk.BranchMatch
}

// Safety configures the command classifier and the protected-file guard.
type Safety struct {
	ProtectedBranches []string     `toml:"protected_branches"`
	BranchMatch       string       `toml:"branch_match"`
	ProtectedFiles    []string     `toml:"protected_files"`
	Deny              []RuleConfig `toml:"deny"`
	Warn              []RuleConfig `toml:"warn"`
}

// RuleConfig is a user-defined classifier rule. Either Pattern or Commands
// must be set; Commands are plain command phrases matched at word
// boundaries.
type RuleConfig struct {
	Name       string   `toml:"name"`
	Pattern    string   `toml:"pattern"`
	Commands   []string `toml:"commands"`
	Exclude    string   `toml:"exclude"`
	Category   string   `toml:"category"`
	Reason     string   `toml:"reason"`
	Suggestion string   `toml:"suggestion"`
}

// Paths holds file locations. A leading ~ is expanded to the home directory.
type Paths struct {
	MemoryBank   string `toml:"memory_bank"`
	ProgressFile string `toml:"progress_file"`
	LogDir       string `toml:"log_dir"`
	AuditLog     string `toml:"audit_log"`
}

// Session configures the SessionStart and Stop handlers.
type Session struct {
	ArchiveTranscript bool          `toml:"archive_transcript"`
	MinFreeMB         int           `toml:"min_free_mb"`
	RecentCommits     int           `toml:"recent_commits"`
	ProgressLines     int           `toml:"progress_lines"`
	GitTimeout        time.Duration `toml:"git_timeout"`
}

// Compaction configures the PreCompact handler.
type Compaction struct {
	MinContextChars int `toml:"min_context_chars"`
	MaxItems        int `toml:"max_items"`
}

// Quality configures the SubagentStop handler.
type Quality struct {
	MinOutputChars int `toml:"min_output_chars"`
}

// Format configures the PostToolUse format dispatcher.
type Format struct {
	FormatShell bool                `toml:"format_shell"`
	Commands    map[string][]string `toml:"commands"`
}

var (
	// globalConfig is the loaded configuration
	globalConfig *Config
	// configInitialized tracks whether config has been loaded
	configInitialized bool
	// configPath is the file globalConfig was read from, empty for defaults
	configPath string
	// initErr is the error that forced a fallback to embedded defaults
	initErr error
)

// GetConfigDir returns the config directory path.
// Uses HOOKKIT_CONFIG env var if set, otherwise ~/.config/hookkit
func GetConfigDir() (string, error) {
	if dir := os.Getenv(constants.EnvConfigDir); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, constants.XDGConfigSubdir, constants.AppName), nil
}

// EnsureConfigFiles creates the config directory and writes default config file if it doesn't exist.
func EnsureConfigFiles(configDir string) error {
	if err := os.MkdirAll(configDir, constants.DirMode); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(configDir, constants.ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, defaultConfig, constants.FileMode); err != nil {
			return fmt.Errorf("failed to write %s: %w", constants.ConfigFileName, err)
		}
	}

	return nil
}

// LoadConfig loads the config from TOML data. Include paths are resolved
// against the working directory.
func LoadConfig(data []byte) (*Config, error) {
	return LoadConfigWithDir(data, "")
}

// LoadConfigWithDir loads the config from TOML data on top of the embedded
// defaults, resolving include paths against dir, and validates the result.
func LoadConfigWithDir(data []byte, dir string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.Decode(string(defaultConfig), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded defaults: %w", err)
	}
	cfg.Include = nil

	if err := decodeWithIncludes(data, dir, cfg, map[string]bool{}); err != nil {
		return nil, err
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeWithIncludes decodes data onto cfg and merges every included file.
// stack holds the include files currently being loaded.
func decodeWithIncludes(data []byte, dir string, cfg *Config, stack map[string]bool) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		logger.Warn("unknown config keys", "keys", strings.Join(keys, ","))
	}

	includes := cfg.Include
	cfg.Include = nil
	for _, inc := range includes {
		path := inc
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		path = filepath.Clean(path)
		if stack[path] {
			return fmt.Errorf("%w: %s", ErrCircularInclude, path)
		}

		incData, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read include %s: %w", inc, err)
		}

		stack[path] = true
		sub := &Config{}
		err = decodeWithIncludes(incData, filepath.Dir(path), sub, stack)
		delete(stack, path)
		if err != nil {
			return fmt.Errorf("in include %s: %w", inc, err)
		}
		cfg.merge(sub)
	}
	return nil
}

// merge appends the rules and lists of an included file. Scalar settings of
// included files are ignored; formatter entries only fill gaps.
func (c *Config) merge(inc *Config) {
	c.Safety.ProtectedBranches = append(c.Safety.ProtectedBranches, inc.Safety.ProtectedBranches...)
	c.Safety.ProtectedFiles = append(c.Safety.ProtectedFiles, inc.Safety.ProtectedFiles...)
	c.Safety.Deny = append(c.Safety.Deny, inc.Safety.Deny...)
	c.Safety.Warn = append(c.Safety.Warn, inc.Safety.Warn...)
	for ext, argv := range inc.Format.Commands {
		if c.Format.Commands == nil {
			c.Format.Commands = make(map[string][]string)
		}
		if _, ok := c.Format.Commands[ext]; !ok {
			c.Format.Commands[ext] = argv
		}
	}
}

func (c *Config) finalize() error {
	var err error
	if c.branchMatch, err = risk.ParseBranchMatch(c.Safety.BranchMatch); err != nil {
		return err
	}

	c.rules = nil
	for _, r := range c.Safety.Deny {
		spec, err := r.spec(risk.Deny)
		if err != nil {
			return fmt.Errorf("invalid deny rule: %w", err)
		}
		c.rules = append(c.rules, spec)
	}
	for _, r := range c.Safety.Warn {
		spec, err := r.spec(risk.Warn)
		if err != nil {
			return fmt.Errorf("invalid warn rule: %w", err)
		}
		c.rules = append(c.rules, spec)
	}
	if _, err := risk.New(c.RiskOptions(nil)); err != nil {
		return fmt.Errorf("invalid safety rules: %w", err)
	}

	for _, g := range c.Safety.ProtectedFiles {
		if _, err := glob.Compile(g); err != nil {
			return fmt.Errorf("invalid protected_files glob %q: %w", g, err)
		}
	}

	for _, p := range []*string{&c.Paths.MemoryBank, &c.Paths.ProgressFile, &c.Paths.LogDir, &c.Paths.AuditLog} {
		if *p, err = ExpandHome(*p); err != nil {
			return err
		}
	}

	if c.Session.MinFreeMB < 0 || c.Session.RecentCommits < 0 || c.Session.ProgressLines < 0 {
		return errors.New("session limits must not be negative")
	}
	if c.Session.GitTimeout <= 0 {
		c.Session.GitTimeout = 5 * time.Second
	}
	if c.Compaction.MaxItems <= 0 {
		c.Compaction.MaxItems = 10
	}
	return nil
}

func (r RuleConfig) spec(sev risk.Decision) (risk.RuleSpec, error) {
	pattern := r.Pattern
	if pattern == "" && len(r.Commands) > 0 {
		alts := make([]string, 0, len(r.Commands))
		for _, cmd := range r.Commands {
			if strings.TrimSpace(cmd) != "" {
				alts = append(alts, patterns.BuildSimplePattern(cmd))
			}
		}
		pattern = "(?:" + strings.Join(alts, "|") + ")"
		if len(alts) == 0 {
			pattern = ""
		}
	}

	cat := risk.Category(r.Category)
	if cat == "" {
		cat = risk.GitCaution
		if sev == risk.Deny {
			cat = risk.DestructiveFS
		}
	}

	desc := r.Reason
	if desc == "" {
		desc = r.Name
	}
	if r.Name == "" {
		return risk.RuleSpec{}, fmt.Errorf("rule with pattern %q has no name", pattern)
	}

	return risk.RuleSpec{
		Name:        r.Name,
		Pattern:     pattern,
		Exclude:     r.Exclude,
		Category:    cat,
		Severity:    sev,
		Description: desc,
		Suggestion:  r.Suggestion,
	}, nil
}

// RiskOptions returns the classifier options described by the config.
func (c *Config) RiskOptions(sink risk.Sink) risk.Options {
	return risk.Options{
		ProtectedBranches: c.Safety.ProtectedBranches,
		BranchMatch:       c.branchMatch,
		ExtraRules:        c.rules,
		Sink:              sink,
	}
}

// NewClassifier builds a classifier from the config.
func (c *Config) NewClassifier(sink risk.Sink) (*risk.Classifier, error) {
	return risk.New(c.RiskOptions(sink))
}

// FormatterFor returns the formatter argv configured for the extension of
// path, or nil.
func (c *Config) FormatterFor(path string) []string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return nil
	}
	return c.Format.Commands[ext]
}

// FormatExtensions returns the configured extensions in sorted order.
func (c *Config) FormatExtensions() []string {
	exts := make([]string, 0, len(c.Format.Commands))
	for ext := range c.Format.Commands {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// SessionsDir is where session archives are written.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.Paths.MemoryBank, "sessions")
}

// CompressionArchivesDir is where pre-compaction archives are written.
func (c *Config) CompressionArchivesDir() string {
	return filepath.Join(c.Paths.MemoryBank, "compression-archives")
}

// LogFile is the path of the hookkit log file.
func (c *Config) LogFile() string {
	if c.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, constants.LogFileName)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// loadEmbeddedDefaults loads the embedded default config file.
func loadEmbeddedDefaults() *Config {
	cfg, err := LoadConfig(nil)
	if err != nil {
		// The embedded file is covered by tests; this only guards against a
		// home directory that cannot be resolved.
		logger.Error("embedded defaults failed to load", "error", err)
		return &Config{}
	}
	return cfg
}

func fallback(err error) error {
	globalConfig = loadEmbeddedDefaults()
	configPath = ""
	initErr = err
	configInitialized = true
	return err
}

// Init loads configuration from files, creating defaults if necessary.
// If loading fails, it falls back to embedded defaults and returns the error.
func Init() error {
	if configInitialized {
		return initErr
	}

	configDir, err := GetConfigDir()
	if err != nil {
		logger.Debug("failed to get config dir, using embedded defaults", "error", err)
		return fallback(err)
	}

	if err := EnsureConfigFiles(configDir); err != nil {
		logger.Debug("failed to ensure config files, using embedded defaults", "error", err)
		return fallback(err)
	}

	path := filepath.Join(configDir, constants.ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debug("failed to read config file, using embedded defaults", "path", path, "error", err)
		return fallback(fmt.Errorf("failed to read %s: %w", constants.ConfigFileName, err))
	}

	cfg, err := LoadConfigWithDir(data, configDir)
	if err != nil {
		logger.Debug("failed to parse config, using embedded defaults", "error", err)
		return fallback(fmt.Errorf("failed to load config: %w", err))
	}

	logger.Debug("config loaded successfully",
		"path", path,
		"protected_branches", len(cfg.Safety.ProtectedBranches),
		"extra_rules", len(cfg.rules))
	globalConfig = cfg
	configPath = path
	initErr = nil
	configInitialized = true
	return nil
}

// Get returns the current configuration.
// If Init has not been called, it initializes with defaults.
func Get() *Config {
	if !configInitialized {
		Init()
	}
	return globalConfig
}

// GetConfigPath returns the file the configuration was loaded from, or the
// empty string when the embedded defaults are in use.
func GetConfigPath() string {
	return configPath
}

// InitError returns the error that caused a fallback to embedded defaults.
func InitError() error {
	return initErr
}

// Reset resets the configuration state. Used for testing.
func Reset() {
	configInitialized = false
	globalConfig = nil
	configPath = ""
	initErr = nil
}

// GetDefaultConfig returns the embedded default configuration.
func GetDefaultConfig() []byte {
	return defaultConfig
}
