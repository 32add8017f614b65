package infra

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

// DefaultLaunchPollInterval is how often the process table is diffed.
const DefaultLaunchPollInterval = 500 * time.Millisecond

// PollingLaunchWatcher implements domain.LaunchWatcher by diffing the process
// table. Applications already running when watching starts are not reported.
type PollingLaunchWatcher struct {
	pm       domain.ProcessManager
	clock    domain.Clock
	interval time.Duration
	logger   *zap.Logger
}

// NewPollingLaunchWatcher creates a launch watcher.
func NewPollingLaunchWatcher(pm domain.ProcessManager, clock domain.Clock, interval time.Duration, logger *zap.Logger) *PollingLaunchWatcher {
	if interval <= 0 {
		interval = DefaultLaunchPollInterval
	}
	return &PollingLaunchWatcher{pm: pm, clock: clock, interval: interval, logger: logger}
}

// Launches streams newly launched applications until ctx is done.
func (w *PollingLaunchWatcher) Launches(ctx context.Context) <-chan domain.Application {
	out := make(chan domain.Application, 16)

	go func() {
		defer close(out)

		seen := w.snapshot()
		ticker := w.clock.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				apps, err := w.pm.RunningApplications()
				if err != nil {
					w.logger.Warn("failed to enumerate applications", zap.Error(err))
					continue
				}
				current := make(map[domain.ProcessKey]struct{}, len(apps))
				for _, app := range apps {
					current[app.Key()] = struct{}{}
					if _, ok := seen[app.Key()]; ok {
						continue
					}
					select {
					case out <- app:
					case <-ctx.Done():
						return
					}
				}
				seen = current
			}
		}
	}()

	return out
}

func (w *PollingLaunchWatcher) snapshot() map[domain.ProcessKey]struct{} {
	seen := make(map[domain.ProcessKey]struct{})
	apps, err := w.pm.RunningApplications()
	if err != nil {
		w.logger.Warn("failed to enumerate applications", zap.Error(err))
		return seen
	}
	for _, app := range apps {
		seen[app.Key()] = struct{}{}
	}
	return seen
}

var _ domain.LaunchWatcher = (*PollingLaunchWatcher)(nil)
