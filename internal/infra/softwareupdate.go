package infra

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

const softwareUpdatePath = "/usr/sbin/softwareupdate"

// SoftwareUpdateRunner implements domain.SoftwareUpdater with /usr/sbin/softwareupdate.
type SoftwareUpdateRunner struct {
	cmdRunner CommandRunner
	// targetVersion is passed to --full-installer-version; empty fetches the latest.
	targetVersion string
	logger        *zap.Logger
}

// NewSoftwareUpdateRunner creates an updater.
func NewSoftwareUpdateRunner(targetVersion string, logger *zap.Logger) *SoftwareUpdateRunner {
	return NewSoftwareUpdateRunnerWithRunner(&RealCommandRunner{}, targetVersion, logger)
}

// NewSoftwareUpdateRunnerWithRunner creates an updater with an injectable runner (for testing).
func NewSoftwareUpdateRunnerWithRunner(runner CommandRunner, targetVersion string, logger *zap.Logger) *SoftwareUpdateRunner {
	return &SoftwareUpdateRunner{cmdRunner: runner, targetVersion: targetVersion, logger: logger}
}

// Download downloads every available update without installing it.
func (s *SoftwareUpdateRunner) Download(ctx context.Context) error {
	s.logger.Debug("running softwareupdate download")
	if err := s.cmdRunner.Run(ctx, softwareUpdatePath, "--download", "--all"); err != nil {
		return fmt.Errorf("softwareupdate download failed: %w", err)
	}
	return nil
}

// FetchMajorUpgrade downloads the full OS installer into /Applications.
func (s *SoftwareUpdateRunner) FetchMajorUpgrade(ctx context.Context) error {
	args := []string{"--fetch-full-installer"}
	if s.targetVersion != "" {
		args = append(args, "--full-installer-version", s.targetVersion)
	}

	s.logger.Debug("running softwareupdate fetch", zap.Strings("args", args))
	if err := s.cmdRunner.Run(ctx, softwareUpdatePath, args...); err != nil {
		return fmt.Errorf("softwareupdate fetch-full-installer failed: %w", err)
	}
	return nil
}

var _ domain.SoftwareUpdater = (*SoftwareUpdateRunner)(nil)
