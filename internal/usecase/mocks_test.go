package usecase

import (
	"context"
	"sync"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	mu            sync.Mutex
	apps          []domain.Application
	terminateErr  error
	terminatedPID []int
}

func (m *mockProcessManager) RunningApplications() ([]domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Application(nil), m.apps...), nil
}

func (m *mockProcessManager) Resolve(pid int) (domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.apps {
		if a.PID == pid {
			return a, nil
		}
	}
	return domain.Application{PID: pid}, nil
}

func (m *mockProcessManager) ForceTerminate(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.terminateErr != nil {
		return m.terminateErr
	}
	m.terminatedPID = append(m.terminatedPID, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return false
}

func (m *mockProcessManager) GetCurrentPID() int {
	return 1
}

func (m *mockProcessManager) setTerminateErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminateErr = err
}

func (m *mockProcessManager) terminated() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.terminatedPID...)
}

// mockFileSystemManager implements domain.FileSystemManager for testing
type mockFileSystemManager struct {
	existingPaths map[string]bool
}

func (m *mockFileSystemManager) Exists(path string) bool {
	if m.existingPaths != nil {
		return m.existingPaths[path]
	}
	return false
}

func (m *mockFileSystemManager) ExpandHome(path string) string {
	return path // No expansion in tests
}

// mockNotificationCenter implements domain.NotificationCenter for testing
type mockNotificationCenter struct {
	mu        sync.Mutex
	granted   bool
	status    domain.AuthorizationStatus
	statusErr error
	addErr    error
	authCalls int
	authOpts  domain.AuthorizationOptions
	added     []domain.NotificationRequest
}

func (m *mockNotificationCenter) RequestAuthorization(_ context.Context, opts domain.AuthorizationOptions) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authCalls++
	m.authOpts = opts
	return m.granted, nil
}

func (m *mockNotificationCenter) AuthorizationStatus(_ context.Context) (domain.AuthorizationStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.statusErr
}

func (m *mockNotificationCenter) Add(_ context.Context, req domain.NotificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, req)
	return nil
}

func (m *mockNotificationCenter) requests() []domain.NotificationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.NotificationRequest(nil), m.added...)
}

// mockSoftwareUpdater implements domain.SoftwareUpdater for testing
type mockSoftwareUpdater struct {
	mu            sync.Mutex
	downloadErr   error
	fetchErr      error
	downloadCalls int
	fetchCalls    int
	block         chan struct{} // when set, Download waits for it
}

func (m *mockSoftwareUpdater) Download(_ context.Context) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadCalls++
	return m.downloadErr
}

func (m *mockSoftwareUpdater) FetchMajorUpgrade(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	return m.fetchErr
}

func (m *mockSoftwareUpdater) calls() (download, fetch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloadCalls, m.fetchCalls
}

// mockCenterer implements domain.WindowCenterer for testing
type mockCenterer struct {
	err   error
	calls int
}

func (m *mockCenterer) Center() error {
	m.calls++
	return m.err
}
