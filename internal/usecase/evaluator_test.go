package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
	"github.com/eliteGoblin/focusd/update_guard/internal/infra"
	"github.com/eliteGoblin/focusd/update_guard/internal/metrics"
	"github.com/eliteGoblin/focusd/update_guard/internal/state"
)

var (
	required = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	grace    = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		deadline domain.ComplianceDeadline
		now      time.Time
		artifact bool
		override bool
		want     domain.Verdict
	}{
		{
			name:     "before required date",
			deadline: domain.ComplianceDeadline{RequiredDate: required},
			now:      required.Add(-time.Second),
			want:     domain.VerdictCompliant,
		},
		{
			name:     "at required date without grace is past due",
			deadline: domain.ComplianceDeadline{RequiredDate: required},
			now:      required,
			want:     domain.VerdictPastDue,
		},
		{
			name:     "inside grace period",
			deadline: domain.ComplianceDeadline{RequiredDate: required, GracePeriodEnd: &grace},
			now:      required.Add(24 * time.Hour),
			want:     domain.VerdictWarningWindow,
		},
		{
			name:     "grace period elapsed",
			deadline: domain.ComplianceDeadline{RequiredDate: required, GracePeriodEnd: &grace},
			now:      grace,
			want:     domain.VerdictPastDue,
		},
		{
			name:     "major upgrade with artifact",
			deadline: domain.ComplianceDeadline{RequiredDate: required, MajorUpgrade: true},
			now:      required.Add(time.Hour),
			artifact: true,
			want:     domain.VerdictPastDueMajorUpgrade,
		},
		{
			name:     "major upgrade with override only",
			deadline: domain.ComplianceDeadline{RequiredDate: required, MajorUpgrade: true},
			now:      required.Add(time.Hour),
			override: true,
			want:     domain.VerdictPastDueMajorUpgrade,
		},
		{
			name:     "major upgrade with no path",
			deadline: domain.ComplianceDeadline{RequiredDate: required, MajorUpgrade: true},
			now:      required.Add(time.Hour),
			want:     domain.VerdictConfigurationError,
		},
		{
			name:     "major upgrade before deadline ignores artifact",
			deadline: domain.ComplianceDeadline{RequiredDate: required, MajorUpgrade: true},
			now:      required.Add(-time.Hour),
			want:     domain.VerdictCompliant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.deadline, tt.now, tt.artifact, tt.override)
			assert.Equal(t, tt.want, got)
			// Idempotent.
			assert.Equal(t, got, Evaluate(tt.deadline, tt.now, tt.artifact, tt.override))
		})
	}
}

func newTestEvaluator(deadline domain.ComplianceDeadline, now time.Time) (*Evaluator, *state.ComplianceState, *infra.MockClock) {
	st := state.New()
	clock := infra.NewMockClock(now)
	return NewEvaluator(deadline, st, clock, metrics.NewUnregistered(), zap.NewNop()), st, clock
}

func TestEvaluator_CheckRecordsVerdict(t *testing.T) {
	e, st, clock := newTestEvaluator(domain.ComplianceDeadline{RequiredDate: required}, required.Add(-time.Hour))

	assert.Equal(t, domain.VerdictCompliant, e.Check(UpgradeReadiness{ArtifactPresent: true}))
	assert.Equal(t, domain.VerdictCompliant, st.Verdict())
	assert.False(t, st.ShouldExit())

	clock.Advance(2 * time.Hour)
	assert.Equal(t, domain.VerdictPastDue, e.Check(UpgradeReadiness{ArtifactPresent: true}))
	assert.Equal(t, domain.VerdictPastDue, st.Verdict())
	assert.False(t, st.ShouldExit())
}

func TestEvaluator_ConfigurationErrorIsSticky(t *testing.T) {
	deadline := domain.ComplianceDeadline{RequiredDate: required, MajorUpgrade: true}
	e, st, _ := newTestEvaluator(deadline, required.Add(time.Hour))

	assert.Equal(t, domain.VerdictConfigurationError, e.Check(UpgradeReadiness{}))
	assert.True(t, st.ShouldExit())

	// A later check that would otherwise succeed keeps the terminal verdict.
	assert.Equal(t, domain.VerdictConfigurationError, e.Check(UpgradeReadiness{ArtifactPresent: true}))
	assert.True(t, st.ShouldExit())
}

func TestEvaluator_Fail(t *testing.T) {
	e, st, _ := newTestEvaluator(domain.ComplianceDeadline{RequiredDate: required}, required.Add(-time.Hour))

	assert.Equal(t, domain.VerdictConfigurationError, e.Fail("unable to find major upgrade application"))
	assert.True(t, st.ShouldExit())
	assert.Equal(t, domain.VerdictConfigurationError, e.Check(UpgradeReadiness{ArtifactPresent: true}))
}

func TestEvaluator_SatisfiedSanctionsExit(t *testing.T) {
	e, st, _ := newTestEvaluator(domain.ComplianceDeadline{RequiredDate: required}, required.Add(time.Hour))

	e.Satisfied("14.4", "14.2")

	snap := st.Snapshot()
	assert.True(t, snap.ShouldExit)
	assert.Equal(t, state.ExitAlreadySatisfied, snap.ExitReason)
	assert.Empty(t, snap.Verdict)
}

func TestEvaluator_IsPastDueUsesEffectiveDeadline(t *testing.T) {
	e, _, _ := newTestEvaluator(domain.ComplianceDeadline{RequiredDate: required, GracePeriodEnd: &grace}, required)

	assert.False(t, e.IsPastDue(required.Add(-time.Hour)))
	assert.False(t, e.IsPastDue(required.Add(time.Hour)))
	assert.True(t, e.IsPastDue(grace))
	assert.True(t, e.IsPastDue(grace.Add(time.Hour)))
}
