package daemon

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
	"github.com/eliteGoblin/focusd/update_guard/internal/infra"
	"github.com/eliteGoblin/focusd/update_guard/internal/metrics"
	"github.com/eliteGoblin/focusd/update_guard/internal/policy"
	"github.com/eliteGoblin/focusd/update_guard/internal/state"
	"github.com/eliteGoblin/focusd/update_guard/internal/usecase"
)

var (
	requiredDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pastDue      = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
)

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	mu         sync.Mutex
	apps       []domain.Application
	terminated []int
}

func (m *mockProcessManager) RunningApplications() ([]domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Application(nil), m.apps...), nil
}

func (m *mockProcessManager) Resolve(pid int) (domain.Application, error) {
	return domain.Application{PID: pid}, nil
}

func (m *mockProcessManager) ForceTerminate(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminated = append(m.terminated, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool { return false }
func (m *mockProcessManager) GetCurrentPID() int     { return 1 }

func (m *mockProcessManager) terminatedPIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.terminated...)
}

// mockLaunchWatcher implements domain.LaunchWatcher with a channel fed by the test
type mockLaunchWatcher struct {
	ch chan domain.Application
}

func (m *mockLaunchWatcher) Launches(_ context.Context) <-chan domain.Application {
	return m.ch
}

// mockScreenLock implements domain.ScreenLockFeed
type mockScreenLock struct {
	ch chan domain.ScreenLockEvent
}

func (m *mockScreenLock) Events(_ context.Context) <-chan domain.ScreenLockEvent {
	return m.ch
}

// mockNotificationCenter implements domain.NotificationCenter
type mockNotificationCenter struct {
	mu    sync.Mutex
	added []domain.NotificationRequest
}

func (m *mockNotificationCenter) RequestAuthorization(context.Context, domain.AuthorizationOptions) (bool, error) {
	return true, nil
}

func (m *mockNotificationCenter) AuthorizationStatus(context.Context) (domain.AuthorizationStatus, error) {
	return domain.AuthorizationAuthorized, nil
}

func (m *mockNotificationCenter) Add(_ context.Context, req domain.NotificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added = append(m.added, req)
	return nil
}

func (m *mockNotificationCenter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.added)
}

// mockSoftwareUpdater implements domain.SoftwareUpdater
type mockSoftwareUpdater struct {
	mu        sync.Mutex
	downloads int
	fetches   int
	fetchErr  error
}

func (m *mockSoftwareUpdater) Download(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads++
	return nil
}

func (m *mockSoftwareUpdater) FetchMajorUpgrade(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	return m.fetchErr
}

// mockFileSystem implements domain.FileSystemManager
type mockFileSystem struct {
	mu       sync.Mutex
	existing map[string]bool
}

func (m *mockFileSystem) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existing[path]
}

func (m *mockFileSystem) ExpandHome(path string) string { return path }

func (m *mockFileSystem) remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.existing, path)
}

// mockOSVersion implements domain.OSVersionProvider
type mockOSVersion struct {
	version string
	err     error
}

func (m *mockOSVersion) CurrentVersion() (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.version == "" {
		return "", errors.New("unknown")
	}
	return m.version, nil
}

// fixture wires the real usecase layer to mocks
type fixture struct {
	state    *state.ComplianceState
	clock    *infra.MockClock
	pm       *mockProcessManager
	center   *mockNotificationCenter
	updater  *mockSoftwareUpdater
	eval     *usecase.Evaluator
	trigger  *usecase.UpdateTrigger
	monitor  *usecase.BypassMonitor
	effects  *usecase.EffectRunner
	launches *mockLaunchWatcher
	locks    *mockScreenLock
}

func newFixture(deadline domain.ComplianceDeadline, now time.Time, triggerCfg usecase.UpdateTriggerConfig, fs *mockFileSystem) *fixture {
	logger := zap.NewNop()
	m := metrics.NewUnregistered()
	f := &fixture{
		state:    state.New(),
		clock:    infra.NewMockClock(now),
		pm:       &mockProcessManager{},
		center:   &mockNotificationCenter{},
		updater:  &mockSoftwareUpdater{},
		launches: &mockLaunchWatcher{ch: make(chan domain.Application)},
		locks:    &mockScreenLock{ch: make(chan domain.ScreenLockEvent)},
	}
	if fs == nil {
		fs = &mockFileSystem{}
	}
	f.eval = usecase.NewEvaluator(deadline, f.state, f.clock, m, logger)
	f.trigger = usecase.NewUpdateTrigger(triggerCfg, f.updater, fs, m, logger)
	f.monitor = usecase.NewBypassMonitor(usecase.MonitorConfig{
		Blocked: policy.NewBlockedApplicationSet("com.example.bad"),
	}, f.state, f.eval.IsPastDue, f.clock, nil, m, logger)
	dispatcher := usecase.NewNotificationDispatcher(f.center, m, logger)
	f.effects = usecase.NewEffectRunner(f.pm, dispatcher, m, logger)
	return f
}

func (f *fixture) agent(config AgentConfig, signals <-chan os.Signal) *Agent {
	return NewAgent(config, AgentDeps{
		Monitor:        f.monitor,
		Effects:        f.effects,
		Evaluator:      f.eval,
		Trigger:        f.trigger,
		State:          f.state,
		ProcessManager: f.pm,
		LaunchWatcher:  f.launches,
		ScreenLock:     f.locks,
		Signals:        signals,
		Clock:          f.clock,
	}, zap.NewNop())
}
