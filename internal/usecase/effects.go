package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
	"github.com/eliteGoblin/focusd/update_guard/internal/metrics"
)

// TerminationDelay defers force-termination so it does not race the OS's own
// launch bookkeeping. Tunable; no lower bound is guaranteed.
const TerminationDelay = time.Millisecond

// Effect is a side effect produced by a monitor transition.
type Effect interface {
	isEffect()
}

// TerminateApplication force-terminates a launched application.
type TerminateApplication struct {
	App domain.Application
}

// NotifyBlocked tells the user an application was terminated.
type NotifyBlocked struct {
	ApplicationName string
}

func (TerminateApplication) isEffect() {}
func (NotifyBlocked) isEffect()        {}

// EffectRunner executes effects after the transition that produced them.
type EffectRunner struct {
	processManager domain.ProcessManager
	dispatcher     *NotificationDispatcher
	delay          time.Duration
	metrics        *metrics.Metrics
	logger         *zap.Logger

	mu       sync.Mutex
	inflight map[domain.ProcessKey]struct{}
	onFailed func(domain.Application)
	pending  sync.WaitGroup
}

// NewEffectRunner creates a runner using TerminationDelay.
func NewEffectRunner(
	pm domain.ProcessManager,
	dispatcher *NotificationDispatcher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *EffectRunner {
	return NewEffectRunnerWithDelay(pm, dispatcher, TerminationDelay, m, logger)
}

// NewEffectRunnerWithDelay creates a runner with a custom termination delay.
func NewEffectRunnerWithDelay(
	pm domain.ProcessManager,
	dispatcher *NotificationDispatcher,
	delay time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *EffectRunner {
	return &EffectRunner{
		processManager: pm,
		dispatcher:     dispatcher,
		delay:          delay,
		metrics:        m,
		logger:         logger,
		inflight:       make(map[domain.ProcessKey]struct{}),
	}
}

// Run executes effects. Terminations are scheduled on a background timer with
// no ordering guarantee relative to other launches.
func (r *EffectRunner) Run(ctx context.Context, effects []Effect) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case TerminateApplication:
			r.scheduleTermination(e.App)
		case NotifyBlocked:
			r.dispatcher.NotifyBlocked(ctx, e.ApplicationName)
		}
	}
}

// OnTerminateFailed registers fn to be called after a failed termination.
// It must be set before Run is first called.
func (r *EffectRunner) OnTerminateFailed(fn func(domain.Application)) {
	r.onFailed = fn
}

// scheduleTermination coalesces requests for a process instance that already
// has a termination pending. The entry is released once the attempt has run.
func (r *EffectRunner) scheduleTermination(app domain.Application) {
	key := app.Key()
	r.mu.Lock()
	if _, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		return
	}
	r.inflight[key] = struct{}{}
	r.mu.Unlock()

	r.pending.Add(1)
	time.AfterFunc(r.delay, func() {
		defer r.pending.Done()
		r.terminate(app)

		r.mu.Lock()
		delete(r.inflight, key)
		r.mu.Unlock()
	})
}

func (r *EffectRunner) terminate(app domain.Application) {
	if err := r.processManager.ForceTerminate(app.PID); err != nil {
		r.logger.Warn("failed to terminate application",
			zap.String("bundle_id", app.BundleID),
			zap.Int("pid", app.PID),
			zap.Error(err))
		if r.onFailed != nil {
			r.onFailed(app)
		}
		return
	}
	r.metrics.ApplicationsTerminated.WithLabelValues(app.BundleID).Inc()
	r.logger.Info("terminated application",
		zap.String("bundle_id", app.BundleID),
		zap.Int("pid", app.PID))
}

// Wait blocks until scheduled terminations and notifications have run.
func (r *EffectRunner) Wait() {
	r.pending.Wait()
	r.dispatcher.Wait()
}
