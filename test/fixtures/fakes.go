package fixtures

import (
	"context"
	"sync"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

// FakeProcessManager records force terminations instead of killing anything.
type FakeProcessManager struct {
	mu         sync.Mutex
	Apps       []domain.Application
	terminated []int
}

func (f *FakeProcessManager) RunningApplications() ([]domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Application(nil), f.Apps...), nil
}

func (f *FakeProcessManager) Resolve(pid int) (domain.Application, error) {
	return domain.Application{PID: pid}, nil
}

func (f *FakeProcessManager) ForceTerminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	return nil
}

func (f *FakeProcessManager) IsRunning(int) bool { return false }

func (f *FakeProcessManager) GetCurrentPID() int { return 1 }

// Terminated returns the PIDs passed to ForceTerminate, in order.
func (f *FakeProcessManager) Terminated() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.terminated...)
}

// FakeLaunchWatcher delivers whatever is sent on Launched.
type FakeLaunchWatcher struct {
	Launched chan domain.Application
}

// NewFakeLaunchWatcher creates a watcher with an unbuffered feed.
func NewFakeLaunchWatcher() *FakeLaunchWatcher {
	return &FakeLaunchWatcher{Launched: make(chan domain.Application)}
}

func (f *FakeLaunchWatcher) Launches(context.Context) <-chan domain.Application {
	return f.Launched
}

// FakeNotificationCenter is an authorized notification center that records requests.
type FakeNotificationCenter struct {
	mu    sync.Mutex
	added []domain.NotificationRequest
}

func (f *FakeNotificationCenter) RequestAuthorization(context.Context, domain.AuthorizationOptions) (bool, error) {
	return true, nil
}

func (f *FakeNotificationCenter) AuthorizationStatus(context.Context) (domain.AuthorizationStatus, error) {
	return domain.AuthorizationAuthorized, nil
}

func (f *FakeNotificationCenter) Add(_ context.Context, req domain.NotificationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, req)
	return nil
}

// Requests returns every delivered request.
func (f *FakeNotificationCenter) Requests() []domain.NotificationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.NotificationRequest(nil), f.added...)
}

// FakeSoftwareUpdater counts update invocations.
type FakeSoftwareUpdater struct {
	mu    sync.Mutex
	calls int
}

func (f *FakeSoftwareUpdater) Download(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *FakeSoftwareUpdater) FetchMajorUpgrade(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

// Calls returns the number of update invocations.
func (f *FakeSoftwareUpdater) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var (
	_ domain.ProcessManager     = (*FakeProcessManager)(nil)
	_ domain.LaunchWatcher      = (*FakeLaunchWatcher)(nil)
	_ domain.NotificationCenter = (*FakeNotificationCenter)(nil)
	_ domain.SoftwareUpdater    = (*FakeSoftwareUpdater)(nil)
)
