package domain

import (
	"context"
	"time"
)

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// RunningApplications returns every running app bundle.
	RunningApplications() ([]Application, error)

	// Resolve returns application metadata for a PID.
	Resolve(pid int) (Application, error)

	// ForceTerminate kills a process by PID (SIGKILL).
	ForceTerminate(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// LaunchWatcher reports application launches.
type LaunchWatcher interface {
	// Launches streams launched applications until ctx is done.
	Launches(ctx context.Context) <-chan Application
}

// FileSystemManager handles filesystem operations.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}

// NotificationCenter is the OS local notification service.
type NotificationCenter interface {
	// RequestAuthorization asks the user for notification permission.
	RequestAuthorization(ctx context.Context, opts AuthorizationOptions) (granted bool, err error)

	// AuthorizationStatus returns the current permission state.
	AuthorizationStatus(ctx context.Context) (AuthorizationStatus, error)

	// Add schedules a notification for delivery.
	Add(ctx context.Context, req NotificationRequest) error
}

// SoftwareUpdater is the opaque OS update mechanism.
type SoftwareUpdater interface {
	// Download fetches available minor updates.
	Download(ctx context.Context) error

	// FetchMajorUpgrade fetches the full installer for a major upgrade.
	FetchMajorUpgrade(ctx context.Context) error
}

// WindowCenterer re-centers the enforcement window. Supplied by the presentation layer.
type WindowCenterer interface {
	Center() error
}

// ScreenLockFeed reports screen lock transitions.
type ScreenLockFeed interface {
	Events(ctx context.Context) <-chan ScreenLockEvent
}

// OSVersionProvider reports the installed OS version.
type OSVersionProvider interface {
	CurrentVersion() (string, error)
}

// Clock abstracts time operations for testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d.
	Sleep(d time.Duration)

	// NewTicker creates a ticker that sends every d.
	NewTicker(d time.Duration) *time.Ticker
}

// LaunchAgentManager installs the agent with launchd.
type LaunchAgentManager interface {
	// Install writes and loads the plist for execPath.
	Install(ctx context.Context, execPath string) error

	// Uninstall unloads and removes the plist.
	Uninstall(ctx context.Context) error

	// IsInstalled checks if the plist exists.
	IsInstalled() bool

	// GetPlistPath returns the plist file path.
	GetPlistPath() string
}
