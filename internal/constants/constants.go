// Package constants defines shared constants used across the hookkit codebase.
package constants

import "os"

// File permissions
const (
	DirMode     os.FileMode = 0755
	FileMode    os.FileMode = 0644
	PrivateMode os.FileMode = 0600
)

// Environment variables
const EnvConfigDir = "HOOKKIT_CONFIG"

// Application paths
const (
	AppName            = "hookkit"
	XDGConfigSubdir    = ".config"
	XDGDataSubdir      = ".local/share"
	ClaudeConfigDir    = ".claude"
	ClaudeSettingsFile = "settings.json"
	ConfigFileName     = "config.toml"
	LogFileName        = "hookkit.log"
	AuditFileName      = "audit.log"
)

// MaxInputBytes bounds a single hook payload read from stdin.
const MaxInputBytes = 1 << 20
