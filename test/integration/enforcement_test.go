//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/config"
	"github.com/eliteGoblin/focusd/update_guard/internal/daemon"
	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
	"github.com/eliteGoblin/focusd/update_guard/internal/infra"
	"github.com/eliteGoblin/focusd/update_guard/internal/metrics"
	"github.com/eliteGoblin/focusd/update_guard/internal/policy"
	"github.com/eliteGoblin/focusd/update_guard/internal/state"
	"github.com/eliteGoblin/focusd/update_guard/internal/usecase"
	"github.com/eliteGoblin/focusd/update_guard/test/fixtures"
)

const pastDueProfile = `optionalFeatures:
  attemptToBlockApplicationLaunches: true
  blockedApplicationBundleIDs:
    - com.example.bad
  enforceBypassPrevention: true
osVersionRequirements:
  requiredInstallationDate: 2024-01-01T00:00:00Z
  requireMajorUpgrade: false
`

const missingInstallerProfile = `optionalFeatures:
  attemptToFetchMajorUpgrade: false
osVersionRequirements:
  requiredInstallationDate: 2024-01-01T00:00:00Z
  requireMajorUpgrade: true
  majorUpgradeAppPath: %s
`

// harness wires the real config, usecase and daemon layers to fakes.
type harness struct {
	cfg      *config.Config
	state    *state.ComplianceState
	clock    *infra.MockClock
	pm       *fixtures.FakeProcessManager
	launches *fixtures.FakeLaunchWatcher
	center   *fixtures.FakeNotificationCenter
	updater  *fixtures.FakeSoftwareUpdater
	launcher *daemon.Launcher
	agent    *daemon.Agent
}

func newHarness(profilePath string, now time.Time) (*harness, error) {
	logger := zap.NewNop()
	cfg, _, err := config.Load(config.Paths{Profile: profilePath}, logger)
	if err != nil {
		return nil, err
	}

	h := &harness{
		cfg:      cfg,
		state:    state.New(),
		clock:    infra.NewMockClock(now),
		pm:       &fixtures.FakeProcessManager{},
		launches: fixtures.NewFakeLaunchWatcher(),
		center:   &fixtures.FakeNotificationCenter{},
		updater:  &fixtures.FakeSoftwareUpdater{},
	}

	m := metrics.NewUnregistered()
	req := cfg.OSVersionRequirements
	features := cfg.OptionalFeatures

	evaluator := usecase.NewEvaluator(cfg.Deadline(), h.state, h.clock, m, logger)
	trigger := usecase.NewUpdateTrigger(usecase.UpdateTriggerConfig{
		UnitTesting:                true,
		RequireMajorUpgrade:        req.RequireMajorUpgrade,
		AttemptToFetchMajorUpgrade: features.AttemptToFetchMajorUpgrade,
		ActionButtonPath:           req.ActionButtonPath,
		MajorUpgradeAppPath:        req.MajorUpgradeAppPath,
		MajorUpgradeBackupAppPath:  req.MajorUpgradeBackupAppPath,
	}, h.updater, infra.NewFileSystemManager(), m, logger)

	h.launcher = daemon.NewLauncher(daemon.LaunchConfig{}, evaluator, trigger, nil, h.clock, logger)

	monitor := usecase.NewBypassMonitor(usecase.MonitorConfig{
		Blocked: policy.NewBlockedApplicationSet(features.BlockedApplicationBundleIDs...),
	}, h.state, evaluator.IsPastDue, h.clock, nil, m, logger)
	dispatcher := usecase.NewNotificationDispatcher(h.center, m, logger)

	h.agent = daemon.NewAgent(daemon.AgentConfig{
		RefreshInterval:  cfg.RefreshCycle(),
		BlockLaunches:    features.AttemptToBlockApplicationLaunches,
		BypassPrevention: features.EnforceBypassPrevention,
	}, daemon.AgentDeps{
		Monitor:        monitor,
		Effects:        usecase.NewEffectRunner(h.pm, dispatcher, m, logger),
		Evaluator:      evaluator,
		Trigger:        trigger,
		State:          h.state,
		ProcessManager: h.pm,
		LaunchWatcher:  h.launches,
		Clock:          h.clock,
	}, logger)

	return h, nil
}

var _ = Describe("Enforcement", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "updateguard-integration-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeProfile := func(content string) string {
		path := filepath.Join(tmpDir, "profile.yaml")
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	Describe("past due minor update", func() {
		var (
			h      *harness
			cancel context.CancelFunc
			errCh  chan error
		)

		BeforeEach(func() {
			var err error
			h, err = newHarness(writeProfile(pastDueProfile), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
			Expect(err).NotTo(HaveOccurred())

			verdict, task, err := h.launcher.Prepare(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(verdict).To(Equal(domain.VerdictPastDue))
			Expect(task).To(BeNil())

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			errCh = make(chan error, 1)
			go func() { errCh <- h.agent.Run(ctx) }()
		})

		AfterEach(func() {
			cancel()
			Eventually(h.agent.Done()).Should(BeClosed())
		})

		It("should arm bypass prevention", func() {
			key := domain.KeyEvent{Characters: "w", Modifiers: domain.ModifierCommand, SurfaceActive: true}
			Expect(h.agent.FilterKeyDown(key)).To(Equal(domain.KeySwallow))
			Expect(h.agent.RequestTermination(domain.TerminationMenu)).To(Equal(domain.TerminateCancel))
			Expect(h.state.Snapshot().EnforcementActive).To(BeTrue())
		})

		It("should terminate a blocked launch once and notify once", func() {
			bundle := fixtures.NewFakeAppBundle(tmpDir, "Bad", "com.example.bad")
			Expect(bundle.Create()).To(Succeed())

			info, err := infra.ReadBundleInfo(infra.BundlePathForExecutable(bundle.ExecutablePath()))
			Expect(err).NotTo(HaveOccurred())

			app := domain.Application{PID: 4242, BundleID: info.Identifier, Name: info.LocalizedName(), Path: bundle.Path()}
			h.launches.Launched <- app
			h.launches.Launched <- app

			Eventually(h.pm.Terminated, time.Second).Should(Equal([]int{4242}))
			Eventually(func() int { return len(h.center.Requests()) }, time.Second).Should(Equal(1))
			Consistently(h.pm.Terminated, 50*time.Millisecond).Should(HaveLen(1))

			req := h.center.Requests()[0]
			Expect(req.Subtitle).To(Equal("(Bad)"))
			Expect(h.updater.Calls()).To(BeZero())
		})

		It("should leave other applications alone", func() {
			h.launches.Launched <- domain.Application{PID: 5151, BundleID: "com.apple.Safari"}

			Consistently(h.pm.Terminated, 50*time.Millisecond).Should(BeEmpty())
			Expect(h.center.Requests()).To(BeEmpty())
		})

		It("should exit cleanly on primary quit", func() {
			h.agent.PrimaryQuit()

			var err error
			Eventually(errCh).Should(Receive(&err))
			Expect(err).NotTo(HaveOccurred())
			Expect(h.state.ShouldExit()).To(BeTrue())
		})
	})

	Describe("major upgrade with no installer", func() {
		It("should end in a configuration error with exit sanctioned", func() {
			profile := writeProfile(fmt.Sprintf(missingInstallerProfile, filepath.Join(tmpDir, "Install macOS.app")))
			h, err := newHarness(profile, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
			Expect(err).NotTo(HaveOccurred())

			verdict, _, err := h.launcher.Prepare(context.Background())
			Expect(err).To(MatchError(domain.ErrUnrecoverable))
			Expect(verdict).To(Equal(domain.VerdictConfigurationError))
			Expect(h.state.ShouldExit()).To(BeTrue())
			Expect(h.state.Verdict()).To(Equal(domain.VerdictConfigurationError))
			Expect(h.updater.Calls()).To(BeZero())
		})

		It("should be satisfied by an installer on disk", func() {
			installer := fixtures.NewFakeAppBundle(tmpDir, "Install macOS", "com.apple.InstallAssistant")
			Expect(installer.Create()).To(Succeed())

			profile := writeProfile(fmt.Sprintf(missingInstallerProfile, installer.Path()))
			h, err := newHarness(profile, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
			Expect(err).NotTo(HaveOccurred())

			verdict, _, err := h.launcher.Prepare(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(verdict).To(Equal(domain.VerdictPastDueMajorUpgrade))
			Expect(h.state.ShouldExit()).To(BeFalse())
		})
	})
})
