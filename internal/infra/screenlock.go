package infra

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"howett.net/plist"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

const (
	ioregPath = "/usr/sbin/ioreg"

	// DefaultScreenLockPollInterval is how often the console session is inspected.
	DefaultScreenLockPollInterval = 2 * time.Second
)

type ioregRoot struct {
	ConsoleUsers []struct {
		ScreenIsLocked bool `plist:"CGSSessionScreenIsLocked"`
		OnConsole      bool `plist:"kCGSSessionOnConsoleKey"`
	} `plist:"IOConsoleUsers"`
}

// ParseScreenLocked reads the lock state from `ioreg -n Root -d1 -a` output.
func ParseScreenLocked(data []byte) (bool, error) {
	var root ioregRoot
	if _, err := plist.Unmarshal(data, &root); err != nil {
		return false, fmt.Errorf("failed to parse ioreg output: %w", err)
	}
	for _, u := range root.ConsoleUsers {
		if u.ScreenIsLocked {
			return true, nil
		}
	}
	return false, nil
}

// ScreenLockPoller implements domain.ScreenLockFeed by polling ioreg and
// reporting transitions.
type ScreenLockPoller struct {
	cmdRunner CommandRunner
	clock     domain.Clock
	interval  time.Duration
	logger    *zap.Logger
}

// NewScreenLockPoller creates a screen lock feed.
func NewScreenLockPoller(clock domain.Clock, logger *zap.Logger) *ScreenLockPoller {
	return NewScreenLockPollerWithDeps(&RealCommandRunner{}, clock, DefaultScreenLockPollInterval, logger)
}

// NewScreenLockPollerWithDeps creates a poller with injectable dependencies (for testing).
func NewScreenLockPollerWithDeps(runner CommandRunner, clock domain.Clock, interval time.Duration, logger *zap.Logger) *ScreenLockPoller {
	return &ScreenLockPoller{cmdRunner: runner, clock: clock, interval: interval, logger: logger}
}

// Events streams lock/unlock transitions until ctx is done. The state at
// start is the baseline and is not reported.
func (p *ScreenLockPoller) Events(ctx context.Context) <-chan domain.ScreenLockEvent {
	out := make(chan domain.ScreenLockEvent, 4)

	go func() {
		defer close(out)

		locked, known := p.poll(ctx)
		ticker := p.clock.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now, ok := p.poll(ctx)
				if !ok {
					continue
				}
				if !known {
					locked, known = now, true
					continue
				}
				if now == locked {
					continue
				}
				locked = now
				ev := domain.ScreenUnlocked
				if now {
					ev = domain.ScreenLocked
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (p *ScreenLockPoller) poll(ctx context.Context) (locked bool, ok bool) {
	data, err := p.cmdRunner.Output(ctx, ioregPath, "-n", "Root", "-d1", "-a")
	if err != nil {
		p.logger.Debug("failed to read console session", zap.Error(err))
		return false, false
	}
	locked, err = ParseScreenLocked(data)
	if err != nil {
		p.logger.Debug("failed to parse console session", zap.Error(err))
		return false, false
	}
	return locked, true
}

var _ domain.ScreenLockFeed = (*ScreenLockPoller)(nil)
