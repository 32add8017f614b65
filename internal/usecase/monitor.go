package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
	"github.com/eliteGoblin/focusd/update_guard/internal/metrics"
	"github.com/eliteGoblin/focusd/update_guard/internal/policy"
	"github.com/eliteGoblin/focusd/update_guard/internal/state"
)

// DefaultSelfBundleID identifies the enforcement tool itself.
const DefaultSelfBundleID = "com.github.focusd.updateguard"

// PastDueFunc reports whether the device is past its deadline at now.
type PastDueFunc func(now time.Time) bool

// MonitorConfig configures a BypassMonitor.
type MonitorConfig struct {
	Shortcuts    *policy.ShortcutTable
	Blocked      policy.BlockedApplicationSet
	SelfBundleID string
	SelfPID      int
}

// BypassMonitor decides how to answer events that could let the user escape
// enforcement. Handlers are synchronous and return effects instead of
// performing process or notification side effects themselves.
type BypassMonitor struct {
	config   MonitorConfig
	state    *state.ComplianceState
	pastDue  PastDueFunc
	clock    domain.Clock
	centerer domain.WindowCenterer
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu      sync.Mutex
	handled map[domain.ProcessKey]struct{}
}

// NewBypassMonitor creates a monitor. centerer may be nil when no enforcement
// window is attached.
func NewBypassMonitor(
	config MonitorConfig,
	st *state.ComplianceState,
	pastDue PastDueFunc,
	clock domain.Clock,
	centerer domain.WindowCenterer,
	m *metrics.Metrics,
	logger *zap.Logger,
) *BypassMonitor {
	if config.Shortcuts == nil {
		config.Shortcuts = policy.DefaultShortcuts()
	}
	if config.SelfBundleID == "" {
		config.SelfBundleID = DefaultSelfBundleID
	}
	return &BypassMonitor{
		config:   config,
		state:    st,
		pastDue:  pastDue,
		clock:    clock,
		centerer: centerer,
		metrics:  m,
		logger:   logger,
		handled:  make(map[domain.ProcessKey]struct{}),
	}
}

// FilterKeyDown swallows banned shortcuts while the enforcement surface is active.
func (b *BypassMonitor) FilterKeyDown(ev domain.KeyEvent) domain.KeyDisposition {
	if !ev.SurfaceActive {
		return domain.KeyPassThrough
	}

	shortcut, ok := b.config.Shortcuts.Match(ev)
	if !ok {
		return domain.KeyPassThrough
	}

	b.logger.Warn("detected an attempt to "+shortcut.Action+" via shortcut key",
		zap.String("combination", ev.Combination()))
	b.metrics.ShortcutsSwallowed.WithLabelValues(shortcut.Key).Inc()
	return domain.KeySwallow
}

// ShouldTerminate is the single gate for every termination attempt.
func (b *BypassMonitor) ShouldTerminate(source domain.TerminationSource) domain.TerminateReply {
	if b.state.ShouldExit() {
		return domain.TerminateNow
	}

	b.logger.Warn("detected an attempt to exit the application",
		zap.String("source", string(source)))
	b.metrics.TerminationsVetoed.WithLabelValues(string(source)).Inc()
	return domain.TerminateCancel
}

// HandleLaunch returns the effects for a launched application. Nothing
// happens before the deadline, for the tool itself, or for applications that
// are not blocked. A process instance, identified by PID and start time, is
// acted on at most once until it is forgotten.
func (b *BypassMonitor) HandleLaunch(app domain.Application) []Effect {
	if !b.pastDue(b.clock.Now()) {
		return nil
	}
	if b.isSelf(app) {
		return nil
	}
	if !b.config.Blocked.Contains(app.BundleID) {
		return nil
	}

	b.mu.Lock()
	_, seen := b.handled[app.Key()]
	if !seen {
		b.handled[app.Key()] = struct{}{}
	}
	b.mu.Unlock()
	if seen {
		return nil
	}

	b.logger.Info("found blocked application, terminating",
		zap.String("name", app.DisplayName()),
		zap.String("bundle_id", app.BundleID),
		zap.Int("pid", app.PID))

	return []Effect{
		NotifyBlocked{ApplicationName: app.DisplayName()},
		TerminateApplication{App: app},
	}
}

// HandleRunning applies HandleLaunch to every running application, so blocked
// applications started before the deadline passed are also caught. apps is
// the full process table: handled entries for processes no longer in it are
// dropped.
func (b *BypassMonitor) HandleRunning(apps []domain.Application) []Effect {
	live := make(map[domain.ProcessKey]struct{}, len(apps))
	for _, app := range apps {
		live[app.Key()] = struct{}{}
	}
	b.mu.Lock()
	for key := range b.handled {
		if _, ok := live[key]; !ok {
			delete(b.handled, key)
		}
	}
	b.mu.Unlock()

	var effects []Effect
	for _, app := range apps {
		effects = append(effects, b.HandleLaunch(app)...)
	}
	return effects
}

// Forget drops app from the handled set so the next launch or sweep acts on
// it again. Used when a termination did not take.
func (b *BypassMonitor) Forget(app domain.Application) {
	b.mu.Lock()
	delete(b.handled, app.Key())
	b.mu.Unlock()
}

// HandleWindowEvent re-centers the enforcement window. Failures are logged only.
func (b *BypassMonitor) HandleWindowEvent(ev domain.WindowEvent) {
	if b.centerer == nil {
		return
	}
	if err := b.centerer.Center(); err != nil {
		b.logger.Warn("failed to center window",
			zap.String("event", string(ev)),
			zap.Error(err))
	}
}

// HandleScreenLock logs screen lock transitions.
func (b *BypassMonitor) HandleScreenLock(ev domain.ScreenLockEvent) {
	switch ev {
	case domain.ScreenLocked:
		b.logger.Info("Screen was locked")
	case domain.ScreenUnlocked:
		b.logger.Info("Screen was unlocked")
	}
}

// HandleHidden logs that an application was hidden.
func (b *BypassMonitor) HandleHidden(app domain.Application) {
	b.logger.Info("Application hidden", zap.String("bundle_id", app.BundleID))
}

func (b *BypassMonitor) isSelf(app domain.Application) bool {
	if app.BundleID != "" && app.BundleID == b.config.SelfBundleID {
		return true
	}
	return b.config.SelfPID != 0 && app.PID == b.config.SelfPID
}
