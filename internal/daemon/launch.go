package daemon

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
	"github.com/eliteGoblin/focusd/update_guard/internal/infra"
	"github.com/eliteGoblin/focusd/update_guard/internal/usecase"
)

// LaunchConfig holds launch sequence configuration.
type LaunchConfig struct {
	RandomDelay              bool
	MaxRandomDelay           time.Duration
	RequiredMinimumOSVersion string // Empty skips the installed-version check
}

// Launcher runs the pre-arming launch sequence.
type Launcher struct {
	config    LaunchConfig
	evaluator *usecase.Evaluator
	trigger   *usecase.UpdateTrigger
	osVersion domain.OSVersionProvider
	clock     domain.Clock
	logger    *zap.Logger
	// randN returns a uniform value in [0, n).
	randN func(n int64) int64
}

// NewLauncher creates a launcher.
func NewLauncher(
	config LaunchConfig,
	evaluator *usecase.Evaluator,
	trigger *usecase.UpdateTrigger,
	osVersion domain.OSVersionProvider,
	clock domain.Clock,
	logger *zap.Logger,
) *Launcher {
	return &Launcher{
		config:    config,
		evaluator: evaluator,
		trigger:   trigger,
		osVersion: osVersion,
		clock:     clock,
		logger:    logger,
		randN:     rand.Int63n,
	}
}

// Prepare runs everything that must happen before bypass prevention is
// armed: the installed-version check, the optional random delay, the update
// invocation, the major upgrade readiness check and the first evaluation.
//
// It returns domain.ErrAlreadySatisfied when the installed OS already meets
// the requirement, and domain.ErrUnrecoverable when there is no path to
// compliance. The returned task, if any, is never waited on.
func (l *Launcher) Prepare(ctx context.Context) (domain.Verdict, *usecase.UpdateTask, error) {
	if l.alreadySatisfied() {
		return "", nil, domain.ErrAlreadySatisfied
	}

	if l.config.RandomDelay {
		delay := l.randomDelay()
		l.logger.Info("Delaying initial run (in seconds) by", zap.Int64("seconds", int64(delay/time.Second)))
		l.clock.Sleep(delay)
	}

	task := l.trigger.RunUpdate(ctx)

	readiness := l.trigger.CheckMajorUpgradeReadiness()
	if readiness.Decision == usecase.ReadinessUnrecoverable {
		l.evaluator.Fail("major upgrade required but no installer is available")
		return domain.VerdictConfigurationError, task, fmt.Errorf("%w: major upgrade installer missing", domain.ErrUnrecoverable)
	}

	verdict := l.evaluator.Check(readiness)
	if verdict.IsTerminal() {
		return verdict, task, domain.ErrUnrecoverable
	}
	return verdict, task, nil
}

// randomDelay is uniform over [1, max] whole seconds.
func (l *Launcher) randomDelay() time.Duration {
	maxSeconds := int64(l.config.MaxRandomDelay / time.Second)
	if maxSeconds < 1 {
		maxSeconds = 1
	}
	return time.Duration(1+l.randN(maxSeconds)) * time.Second
}

func (l *Launcher) alreadySatisfied() bool {
	if l.config.RequiredMinimumOSVersion == "" || l.osVersion == nil {
		return false
	}

	current, err := l.osVersion.CurrentVersion()
	if err != nil {
		l.logger.Warn("failed to read OS version", zap.Error(err))
		return false
	}

	ok, err := infra.VersionSatisfies(current, l.config.RequiredMinimumOSVersion)
	if err != nil {
		l.logger.Warn("failed to compare OS versions", zap.Error(err))
		return false
	}
	if ok {
		l.evaluator.Satisfied(current, l.config.RequiredMinimumOSVersion)
	}
	return ok
}
