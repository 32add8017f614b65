package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents where the launch agent is installed.
type ExecMode string

const (
	// ExecModeUser installs a per-user LaunchAgent (no sudo required)
	ExecModeUser ExecMode = "user"
	// ExecModeSystem installs a LaunchAgent for every user (sudo required)
	ExecModeSystem ExecMode = "system"
)

// LaunchdLabel is the launchd label and plist file name of the agent.
const LaunchdLabel = "com.github.focusd.updateguard"

// ExecModeConfig holds paths and settings based on execution mode.
type ExecModeConfig struct {
	Mode       ExecMode
	BinaryPath string // Where the binary is expected to be installed
	PlistDir   string // Where the plist file goes
	PlistPath  string // Full path to plist file
	IsRoot     bool   // Whether running as root
}

// DetectExecMode determines the execution mode based on effective UID.
// Both modes install a LaunchAgent: enforcement needs the user's GUI session.
func DetectExecMode() *ExecModeConfig {
	if os.Geteuid() == 0 {
		return &ExecModeConfig{
			Mode:       ExecModeSystem,
			BinaryPath: "/usr/local/bin/updateguard",
			PlistDir:   "/Library/LaunchAgents",
			PlistPath:  filepath.Join("/Library/LaunchAgents", LaunchdLabel+".plist"),
			IsRoot:     true,
		}
	}
	return GetUserModeConfig()
}

// GetUserModeConfig returns user mode config regardless of current euid.
// When running under sudo, uses SUDO_USER to get the invoking user's home directory.
func GetUserModeConfig() *ExecModeConfig {
	home := GetRealUserHome()
	return &ExecModeConfig{
		Mode:       ExecModeUser,
		BinaryPath: filepath.Join(home, ".local", "bin", "updateguard"),
		PlistDir:   filepath.Join(home, "Library", "LaunchAgents"),
		PlistPath:  filepath.Join(home, "Library", "LaunchAgents", LaunchdLabel+".plist"),
		IsRoot:     os.Geteuid() == 0,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (LaunchAgent for all users, root)"
	case ExecModeUser:
		return "user (LaunchAgent, non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns /var/root, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
