package infra

import (
	"os"
	"sync"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
// Processes that do not live inside an .app bundle are not applications.
type ProcessManagerImpl struct {
	mu    sync.Mutex
	cache map[string]BundleInfo // bundle path -> info
}

// NewProcessManager creates a new process manager.
func NewProcessManager() *ProcessManagerImpl {
	return &ProcessManagerImpl{cache: make(map[string]BundleInfo)}
}

func (pm *ProcessManagerImpl) cachedBundle(exe string) (BundleInfo, bool) {
	bundlePath := BundlePathForExecutable(exe)
	if bundlePath == "" {
		return BundleInfo{}, false
	}

	pm.mu.Lock()
	info, ok := pm.cache[bundlePath]
	pm.mu.Unlock()
	if ok {
		return info, true
	}

	info, err := ReadBundleInfo(bundlePath)
	if err != nil {
		return BundleInfo{}, false
	}

	pm.mu.Lock()
	pm.cache[bundlePath] = info
	pm.mu.Unlock()
	return info, true
}

// RunningApplications returns every running process that belongs to an app bundle.
func (pm *ProcessManagerImpl) RunningApplications() ([]domain.Application, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var apps []domain.Application
	for _, p := range procs {
		app, ok := pm.toApplication(p)
		if !ok {
			continue // Not an app bundle, or exited
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// Resolve returns application metadata for a PID.
func (pm *ProcessManagerImpl) Resolve(pid int) (domain.Application, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return domain.Application{}, err
	}
	app, ok := pm.toApplication(p)
	if !ok {
		name, _ := p.Name()
		return domain.Application{PID: pid, Name: name}, nil
	}
	return app, nil
}

func (pm *ProcessManagerImpl) toApplication(p *process.Process) (domain.Application, bool) {
	exe, err := p.Exe()
	if err != nil {
		return domain.Application{}, false
	}
	info, ok := pm.cachedBundle(exe)
	if !ok || info.Identifier == "" {
		return domain.Application{}, false
	}
	createTime, _ := p.CreateTime() // 0 if unavailable
	return domain.Application{
		PID:        int(p.Pid),
		BundleID:   info.Identifier,
		Name:       info.LocalizedName(),
		Path:       BundlePathForExecutable(exe),
		CreateTime: createTime,
	}, true
}

// ForceTerminate terminates a process by PID using SIGKILL.
func (pm *ProcessManagerImpl) ForceTerminate(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Kill()
}

// IsRunning checks if a PID exists and is running.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	// On Unix, FindProcess always succeeds
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check if process exists
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
