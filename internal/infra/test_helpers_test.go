package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

// mockCommandRunner records commands and returns canned results
type mockCommandRunner struct {
	mu      sync.Mutex
	calls   []string
	runErr  map[string]error // keyed by command name
	outputs map[string][]byte
	outErr  error
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{
		runErr:  make(map[string]error),
		outputs: make(map[string][]byte),
	}
}

func (m *mockCommandRunner) record(name string, args []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
}

func (m *mockCommandRunner) Run(_ context.Context, name string, args ...string) error {
	m.record(name, args)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runErr[name]
}

func (m *mockCommandRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	m.record(name, args)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outErr != nil {
		return nil, m.outErr
	}
	return m.outputs[name], nil
}

func (m *mockCommandRunner) setOutput(name string, out []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputs[name] = out
}

func (m *mockCommandRunner) commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	mu   sync.Mutex
	apps []domain.Application
	err  error
}

func (m *mockProcessManager) setApps(apps ...domain.Application) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps = apps
}

func (m *mockProcessManager) RunningApplications() ([]domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.Application(nil), m.apps...), nil
}

func (m *mockProcessManager) Resolve(pid int) (domain.Application, error) {
	return domain.Application{PID: pid}, nil
}

func (m *mockProcessManager) ForceTerminate(pid int) error {
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return false
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

// writeBundle creates a minimal app bundle with an XML Info.plist.
func writeBundle(t *testing.T, dir, name, bundleID string) string {
	t.Helper()
	bundle := filepath.Join(dir, name+".app")
	require.NoError(t, os.MkdirAll(filepath.Join(bundle, "Contents", "MacOS"), 0755))

	info := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleIdentifier</key>
	<string>%s</string>
	<key>CFBundleName</key>
	<string>%s</string>
	<key>CFBundleExecutable</key>
	<string>%s</string>
</dict>
</plist>`, bundleID, name, name)
	require.NoError(t, os.WriteFile(filepath.Join(bundle, "Contents", "Info.plist"), []byte(info), 0644))
	return bundle
}

var (
	_ CommandRunner         = (*mockCommandRunner)(nil)
	_ domain.ProcessManager = (*mockProcessManager)(nil)
)
