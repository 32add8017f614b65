// Package usecase contains application business logic.
package usecase

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
	"github.com/eliteGoblin/focusd/update_guard/internal/metrics"
	"github.com/eliteGoblin/focusd/update_guard/internal/state"
)

// Evaluate classifies the device against its deadline. It is pure: the same
// inputs always give the same verdict.
//
// A required major upgrade that is past due and has neither an installer
// artifact nor an override action has no path to compliance and yields
// VerdictConfigurationError.
func Evaluate(d domain.ComplianceDeadline, now time.Time, artifactPresent, overrideConfigured bool) domain.Verdict {
	if now.Before(d.RequiredDate) {
		return domain.VerdictCompliant
	}
	if d.GracePeriodEnd != nil && now.Before(*d.GracePeriodEnd) {
		return domain.VerdictWarningWindow
	}
	if !d.MajorUpgrade {
		return domain.VerdictPastDue
	}
	if !artifactPresent && !overrideConfigured {
		return domain.VerdictConfigurationError
	}
	return domain.VerdictPastDueMajorUpgrade
}

// Evaluator applies Evaluate to the wall clock and records the verdict in the
// compliance state. It is the only writer of verdicts.
type Evaluator struct {
	deadline domain.ComplianceDeadline
	state    *state.ComplianceState
	clock    domain.Clock
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewEvaluator creates an evaluator for a deadline.
func NewEvaluator(
	deadline domain.ComplianceDeadline,
	st *state.ComplianceState,
	clock domain.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Evaluator {
	return &Evaluator{
		deadline: deadline,
		state:    st,
		clock:    clock,
		metrics:  m,
		logger:   logger,
	}
}

// Deadline returns the configured deadline.
func (e *Evaluator) Deadline() domain.ComplianceDeadline {
	return e.deadline
}

// Check evaluates the current time and records the verdict. Once a terminal
// verdict has been recorded Check keeps returning it.
func (e *Evaluator) Check(r UpgradeReadiness) domain.Verdict {
	now := e.clock.Now()
	v := Evaluate(e.deadline, now, r.ArtifactPresent, r.OverrideConfigured)

	previous := e.state.Verdict()
	held := e.state.RecordVerdict(v, now)
	e.metrics.SetVerdict(held)

	if held != previous {
		e.logger.Info("compliance verdict changed",
			zap.String("from", string(previous)),
			zap.String("to", string(held)),
			zap.Time("required_date", e.deadline.RequiredDate),
			zap.Time("effective_deadline", e.deadline.EffectiveDeadline()))
	}
	if held.IsTerminal() && held != previous {
		e.logger.Error("no path to compliance, exit sanctioned")
	}
	return held
}

// Fail records a terminal configuration error found outside the date policy
// (e.g. a major upgrade with no installer and no override).
func (e *Evaluator) Fail(reason string) domain.Verdict {
	e.logger.Error("configuration error", zap.String("reason", reason))
	held := e.state.RecordVerdict(domain.VerdictConfigurationError, e.clock.Now())
	e.metrics.SetVerdict(held)
	return held
}

// Satisfied sanctions exit because the installed OS already meets the
// required version. No verdict is recorded.
func (e *Evaluator) Satisfied(current, required string) {
	e.logger.Info("device already meets the required OS version, exit sanctioned",
		zap.String("current", current),
		zap.String("required", required))
	e.state.RequestExit(state.ExitAlreadySatisfied)
}

// IsPastDue recomputes past-due status for now without consulting any cached verdict.
func (e *Evaluator) IsPastDue(now time.Time) bool {
	return !now.Before(e.deadline.EffectiveDeadline())
}
