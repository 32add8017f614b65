package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

// LaunchAgent plist template. The agent is relaunched every StartInterval
// seconds so a quit enforcement surface comes back on its own.
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Arguments}}
        <string>{{.}}</string>
{{- end}}
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>StartInterval</key>
    <integer>{{.StartInterval}}</integer>

    <key>LimitLoadToSessionType</key>
    <array>
        <string>Aqua</string>
    </array>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>
</dict>
</plist>`

const (
	logDir = "/var/tmp"

	// DefaultStartInterval relaunches the agent every 30 minutes.
	DefaultStartInterval = 30 * time.Minute
)

type plistConfig struct {
	Label          string
	ExecutablePath string
	Arguments      []string
	StartInterval  int
	LogPath        string
	ErrorLogPath   string
}

// LaunchdManagerImpl implements domain.LaunchAgentManager.
type LaunchdManagerImpl struct {
	mode          ExecMode
	plistDir      string
	plistPath     string
	startInterval time.Duration
	arguments     []string
	cmdRunner     CommandRunner
}

// NewLaunchdManager creates a launchd manager based on execution mode.
func NewLaunchdManager(config *ExecModeConfig, startInterval time.Duration, arguments []string) *LaunchdManagerImpl {
	return NewLaunchdManagerWithRunner(config, startInterval, arguments, &RealCommandRunner{})
}

// NewLaunchdManagerWithRunner creates a launchd manager with an injectable runner (for testing).
func NewLaunchdManagerWithRunner(config *ExecModeConfig, startInterval time.Duration, arguments []string, runner CommandRunner) *LaunchdManagerImpl {
	if startInterval <= 0 {
		startInterval = DefaultStartInterval
	}
	return &LaunchdManagerImpl{
		mode:          config.Mode,
		plistDir:      config.PlistDir,
		plistPath:     config.PlistPath,
		startInterval: startInterval,
		arguments:     arguments,
		cmdRunner:     runner,
	}
}

// generatePlistContent creates plist content for the given exec path.
func (m *LaunchdManagerImpl) generatePlistContent(execPath string) ([]byte, error) {
	config := plistConfig{
		Label:          LaunchdLabel,
		ExecutablePath: execPath,
		Arguments:      m.arguments,
		StartInterval:  int(m.startInterval / time.Second),
		LogPath:        filepath.Join(logDir, "updateguard.out.log"),
		ErrorLogPath:   filepath.Join(logDir, "updateguard.error.log"),
	}

	tmpl, err := template.New("plist").Parse(launchAgentTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plist template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("failed to execute plist template: %w", err)
	}

	return buf.Bytes(), nil
}

// Install writes and loads the plist. An existing plist with different
// content is replaced.
func (m *LaunchdManagerImpl) Install(ctx context.Context, execPath string) error {
	if err := os.MkdirAll(m.plistDir, 0755); err != nil {
		return err
	}

	content, err := m.generatePlistContent(execPath)
	if err != nil {
		return fmt.Errorf("failed to generate plist content: %w", err)
	}

	if m.IsInstalled() {
		current, err := os.ReadFile(m.plistPath)
		if err == nil && bytes.Equal(current, content) {
			return nil
		}
		// Ignore errors if not loaded
		_ = m.unload(ctx)
	}

	if err := os.WriteFile(m.plistPath, content, 0644); err != nil {
		return err
	}

	return m.load(ctx)
}

// Uninstall unloads and removes the plist.
func (m *LaunchdManagerImpl) Uninstall(ctx context.Context) error {
	_ = m.unload(ctx)
	return os.Remove(m.plistPath)
}

// IsInstalled checks if plist is installed.
func (m *LaunchdManagerImpl) IsInstalled() bool {
	_, err := os.Stat(m.plistPath)
	return err == nil
}

// GetPlistPath returns the plist file path.
func (m *LaunchdManagerImpl) GetPlistPath() string {
	return m.plistPath
}

// GetMode returns the current execution mode.
func (m *LaunchdManagerImpl) GetMode() ExecMode {
	return m.mode
}

// load loads the plist using launchctl.
// Note: `launchctl load` is deprecated but still works on macOS.
func (m *LaunchdManagerImpl) load(ctx context.Context) error {
	if err := m.cmdRunner.Run(ctx, "launchctl", "load", m.plistPath); err != nil {
		return fmt.Errorf("launchctl load %s: %w", m.plistPath, err)
	}
	return nil
}

func (m *LaunchdManagerImpl) unload(ctx context.Context) error {
	return m.cmdRunner.Run(ctx, "launchctl", "unload", m.plistPath)
}

// Ensure LaunchdManagerImpl implements domain.LaunchAgentManager.
var _ domain.LaunchAgentManager = (*LaunchdManagerImpl)(nil)
