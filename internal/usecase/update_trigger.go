package usecase

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
	"github.com/eliteGoblin/focusd/update_guard/internal/metrics"
)

// ReadinessDecision is the outcome of the major upgrade readiness check.
type ReadinessDecision string

const (
	ReadinessNotRequired           ReadinessDecision = "not_required"
	ReadinessDeferToOverride       ReadinessDecision = "defer_to_override"
	ReadinessOverrideMisconfigured ReadinessDecision = "override_misconfigured"
	ReadinessArtifactReady         ReadinessDecision = "artifact_ready"
	ReadinessUnrecoverable         ReadinessDecision = "unrecoverable"
)

// UpgradeReadiness is what the evaluator needs to know about the upgrade path.
type UpgradeReadiness struct {
	Decision           ReadinessDecision
	ArtifactPresent    bool
	OverrideConfigured bool
}

// UpdateTriggerConfig holds the update-related configuration.
type UpdateTriggerConfig struct {
	DemoMode                   bool
	UnitTesting                bool
	Asynchronous               bool
	RequireMajorUpgrade        bool
	AttemptToFetchMajorUpgrade bool
	ActionButtonPath           *string // nil = no override configured
	MajorUpgradeAppPath        string
	MajorUpgradeBackupAppPath  string
}

// UpdateTask is the handle of a fire-and-forget update. It is never joined by
// the launch sequence; its failure is only logged.
type UpdateTask struct {
	done chan struct{}
	err  error
}

// Done is closed when the update returns.
func (t *UpdateTask) Done() <-chan struct{} {
	return t.done
}

// Err returns the update error once Done is closed.
func (t *UpdateTask) Err() error {
	<-t.done
	return t.err
}

// UpdateTrigger decides when to call the OS update mechanism.
type UpdateTrigger struct {
	config         UpdateTriggerConfig
	updater        domain.SoftwareUpdater
	fs             domain.FileSystemManager
	metrics        *metrics.Metrics
	logger         *zap.Logger
	fetchSucceeded atomic.Bool
}

// NewUpdateTrigger creates an update trigger.
func NewUpdateTrigger(
	config UpdateTriggerConfig,
	updater domain.SoftwareUpdater,
	fs domain.FileSystemManager,
	m *metrics.Metrics,
	logger *zap.Logger,
) *UpdateTrigger {
	return &UpdateTrigger{
		config:  config,
		updater: updater,
		fs:      fs,
		metrics: m,
		logger:  logger,
	}
}

// RunUpdate invokes the OS update. It is inert in demo and unit-testing modes.
// The async path returns a task handle that callers do not wait on; every
// other path blocks and returns nil.
func (u *UpdateTrigger) RunUpdate(ctx context.Context) *UpdateTask {
	if u.config.DemoMode || u.config.UnitTesting {
		return nil
	}

	if u.config.Asynchronous && !u.config.RequireMajorUpgrade {
		u.metrics.UpdateRuns.WithLabelValues("async").Inc()
		task := &UpdateTask{done: make(chan struct{})}
		// Not joined: completion and failure are unobservable to the launch sequence.
		go func() {
			defer close(task.done)
			if task.err = u.download(context.WithoutCancel(ctx)); task.err != nil {
				u.logger.Error("async software update download failed", zap.Error(task.err))
			}
		}()
		return task
	}

	u.metrics.UpdateRuns.WithLabelValues("sync").Inc()
	if u.config.RequireMajorUpgrade {
		u.fetchMajorUpgrade(ctx)
		return nil
	}
	// A failed download does not stop enforcement; the next launch retries.
	if err := u.download(ctx); err != nil {
		u.logger.Error("software update download failed", zap.Error(err))
	}
	return nil
}

// download runs the updater. Callers log the failure.
func (u *UpdateTrigger) download(ctx context.Context) error {
	u.logger.Info("starting software update download")
	if err := u.updater.Download(ctx); err != nil {
		return err
	}
	u.logger.Info("software update download finished")
	return nil
}

func (u *UpdateTrigger) fetchMajorUpgrade(ctx context.Context) {
	if !u.config.AttemptToFetchMajorUpgrade {
		u.logger.Info("major upgrade required, fetching disabled; relying on installer on disk")
		return
	}

	u.logger.Info("fetching major upgrade installer")
	if err := u.updater.FetchMajorUpgrade(ctx); err != nil {
		u.logger.Error("failed to fetch major upgrade", zap.Error(err))
		return
	}
	u.fetchSucceeded.Store(true)
	u.logger.Info("major upgrade installer fetched")
}

// CheckMajorUpgradeReadiness decides whether a required major upgrade has a usable path.
func (u *UpdateTrigger) CheckMajorUpgradeReadiness() UpgradeReadiness {
	if !u.config.RequireMajorUpgrade {
		return UpgradeReadiness{Decision: ReadinessNotRequired, ArtifactPresent: true}
	}

	if u.config.ActionButtonPath != nil {
		if *u.config.ActionButtonPath != "" {
			return UpgradeReadiness{Decision: ReadinessDeferToOverride, OverrideConfigured: true}
		}
		u.logger.Warn("actionButtonPath contains empty string - actionButton will be unable to trigger any action required for major upgrades")
		return UpgradeReadiness{Decision: ReadinessOverrideMisconfigured, OverrideConfigured: true}
	}

	primary := u.config.MajorUpgradeAppPath != "" && u.fs.Exists(u.config.MajorUpgradeAppPath)
	backup := u.config.MajorUpgradeBackupAppPath != "" && u.fs.Exists(u.config.MajorUpgradeBackupAppPath)
	fetched := u.fetchSucceeded.Load()

	if primary || backup || fetched {
		return UpgradeReadiness{Decision: ReadinessArtifactReady, ArtifactPresent: true}
	}

	if u.config.AttemptToFetchMajorUpgrade {
		u.logger.Error("unable to fetch major upgrade and application missing")
	} else {
		u.logger.Error("unable to find major upgrade application")
	}
	return UpgradeReadiness{Decision: ReadinessUnrecoverable}
}
