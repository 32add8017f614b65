// Package daemon implements the launch sequence and the enforcement agent loop.
package daemon

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
	"github.com/eliteGoblin/focusd/update_guard/internal/state"
	"github.com/eliteGoblin/focusd/update_guard/internal/usecase"
)

// AgentConfig holds agent configuration.
type AgentConfig struct {
	RefreshInterval  time.Duration // How often the verdict is re-evaluated
	BlockLaunches    bool          // Terminate blocked applications once past due
	BypassPrevention bool          // Swallow banned shortcuts
}

// DefaultAgentConfig returns default agent configuration.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		RefreshInterval: 60 * time.Second,
	}
}

// AgentDeps are the collaborators of an Agent. LaunchWatcher, ScreenLock and
// Signals may be nil.
type AgentDeps struct {
	Monitor        *usecase.BypassMonitor
	Effects        *usecase.EffectRunner
	Evaluator      *usecase.Evaluator
	Trigger        *usecase.UpdateTrigger
	State          *state.ComplianceState
	ProcessManager domain.ProcessManager
	LaunchWatcher  domain.LaunchWatcher
	ScreenLock     domain.ScreenLockFeed
	Signals        <-chan os.Signal
	Clock          domain.Clock
}

type keyRequest struct {
	event domain.KeyEvent
	reply chan domain.KeyDisposition
}

type terminationRequest struct {
	source domain.TerminationSource
	reply  chan domain.TerminateReply
}

// Agent is the single consumer of every enforcement event. Handlers run one
// at a time on the Run goroutine; their effects run afterwards.
//
// FilterKeyDown, RequestTermination, NotifyWindowEvent, NotifyHidden and
// PrimaryQuit are the entry points for a presentation layer, such as an event
// tap or the enforcement window, which also supplies the monitor's
// WindowCenterer. The CLI feeds only signals, launches and screen lock events.
type Agent struct {
	config AgentConfig
	deps   AgentDeps
	logger *zap.Logger

	keys         chan keyRequest
	terminations chan terminationRequest
	windowEvents chan domain.WindowEvent
	hidden       chan domain.Application
	quit         chan struct{}
	done         chan struct{}
}

// NewAgent creates a new agent.
func NewAgent(config AgentConfig, deps AgentDeps, logger *zap.Logger) *Agent {
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultAgentConfig().RefreshInterval
	}
	if deps.Effects != nil && deps.Monitor != nil {
		// A failed kill is retried by the next sweep.
		deps.Effects.OnTerminateFailed(deps.Monitor.Forget)
	}
	return &Agent{
		config:       config,
		deps:         deps,
		logger:       logger,
		keys:         make(chan keyRequest),
		terminations: make(chan terminationRequest),
		windowEvents: make(chan domain.WindowEvent, 8),
		hidden:       make(chan domain.Application, 8),
		quit:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// Run arms bypass prevention and serves events until a sanctioned exit.
// It returns nil on a sanctioned exit, domain.ErrUnrecoverable when the
// verdict becomes a configuration error, or the context error.
func (a *Agent) Run(ctx context.Context) error {
	defer close(a.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := a.deps.State
	st.SetEnforcementActive(true)
	defer st.SetEnforcementActive(false)

	var launches <-chan domain.Application
	if a.config.BlockLaunches && a.deps.LaunchWatcher != nil {
		launches = a.deps.LaunchWatcher.Launches(ctx)
		a.sweepRunning(ctx)
	}

	var screenLock <-chan domain.ScreenLockEvent
	if a.deps.ScreenLock != nil {
		screenLock = a.deps.ScreenLock.Events(ctx)
	}

	refresh := a.deps.Clock.NewTicker(a.config.RefreshInterval)
	defer refresh.Stop()

	a.logger.Info("enforcement agent started",
		zap.Bool("block_launches", a.config.BlockLaunches),
		zap.Bool("bypass_prevention", a.config.BypassPrevention),
		zap.Duration("refresh_interval", a.config.RefreshInterval))

	defer a.deps.Effects.Wait()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("enforcement agent stopping")
			return ctx.Err()

		case req := <-a.keys:
			req.reply <- a.filterKeyDown(req.event)

		case req := <-a.terminations:
			reply := a.deps.Monitor.ShouldTerminate(req.source)
			req.reply <- reply
			if reply == domain.TerminateNow {
				return a.exit()
			}

		case sig := <-a.deps.Signals:
			a.logger.Debug("received signal", zap.String("signal", sig.String()))
			if a.deps.Monitor.ShouldTerminate(domain.TerminationSignal) == domain.TerminateNow {
				return a.exit()
			}

		case app, ok := <-launches:
			if !ok {
				launches = nil
				continue
			}
			a.deps.Effects.Run(ctx, a.deps.Monitor.HandleLaunch(app))

		case ev, ok := <-screenLock:
			if !ok {
				screenLock = nil
				continue
			}
			a.deps.Monitor.HandleScreenLock(ev)

		case ev := <-a.windowEvents:
			a.deps.Monitor.HandleWindowEvent(ev)

		case app := <-a.hidden:
			a.deps.Monitor.HandleHidden(app)

		case <-refresh.C:
			verdict := a.reevaluate()
			if verdict.IsTerminal() {
				return domain.ErrUnrecoverable
			}
			if verdict.IsPastDue() && a.config.BlockLaunches {
				a.sweepRunning(ctx)
			}

		case <-a.quit:
			st.RequestExit(state.ExitPrimaryQuit)
			return a.exit()
		}
	}
}

func (a *Agent) exit() error {
	a.logger.Info("sanctioned exit", zap.String("reason", a.deps.State.Snapshot().ExitReason))
	if a.deps.State.Verdict().IsTerminal() {
		return domain.ErrUnrecoverable
	}
	return nil
}

func (a *Agent) filterKeyDown(ev domain.KeyEvent) domain.KeyDisposition {
	if !a.config.BypassPrevention {
		return domain.KeyPassThrough
	}
	return a.deps.Monitor.FilterKeyDown(ev)
}

// sweepRunning catches blocked applications that were already running when
// launch monitoring was armed or when the deadline passed.
func (a *Agent) sweepRunning(ctx context.Context) {
	if a.deps.ProcessManager == nil {
		return
	}
	apps, err := a.deps.ProcessManager.RunningApplications()
	if err != nil {
		a.logger.Warn("failed to enumerate running applications", zap.Error(err))
		return
	}
	a.deps.Effects.Run(ctx, a.deps.Monitor.HandleRunning(apps))
}

func (a *Agent) reevaluate() domain.Verdict {
	readiness := a.deps.Trigger.CheckMajorUpgradeReadiness()
	if readiness.Decision == usecase.ReadinessUnrecoverable {
		return a.deps.Evaluator.Fail("major upgrade installer no longer available")
	}
	return a.deps.Evaluator.Check(readiness)
}

// FilterKeyDown asks the agent whether a key-down event must be swallowed.
// Events pass through once the agent has stopped.
func (a *Agent) FilterKeyDown(ev domain.KeyEvent) domain.KeyDisposition {
	req := keyRequest{event: ev, reply: make(chan domain.KeyDisposition, 1)}
	select {
	case a.keys <- req:
		return <-req.reply
	case <-a.done:
		return domain.KeyPassThrough
	}
}

// RequestTermination funnels a termination attempt through the agent.
// Once the agent has stopped, termination is allowed.
func (a *Agent) RequestTermination(source domain.TerminationSource) domain.TerminateReply {
	req := terminationRequest{source: source, reply: make(chan domain.TerminateReply, 1)}
	select {
	case a.terminations <- req:
		return <-req.reply
	case <-a.done:
		return domain.TerminateNow
	}
}

// NotifyWindowEvent reports that the enforcement window moved or changed screen.
func (a *Agent) NotifyWindowEvent(ev domain.WindowEvent) {
	select {
	case a.windowEvents <- ev:
	case <-a.done:
	}
}

// NotifyHidden reports that an application was hidden.
func (a *Agent) NotifyHidden(app domain.Application) {
	select {
	case a.hidden <- app:
	case <-a.done:
	}
}

// PrimaryQuit is the sanctioned quit action.
func (a *Agent) PrimaryQuit() {
	select {
	case a.quit <- struct{}{}:
	default:
	}
}

// Done is closed when Run returns.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}
