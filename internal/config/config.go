// Package config holds the enforcement configuration read from the managed
// profile (YAML) or a JSON file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Defaults applied by Normalize.
const (
	DefaultMaxRandomDelaySeconds    = 1200
	DefaultRefreshCycleSeconds      = 60
	DefaultLaunchPollIntervalMillis = 500
)

// Config is the full configuration surface.
type Config struct {
	OptionalFeatures      OptionalFeatures      `yaml:"optionalFeatures" json:"optionalFeatures"`
	OSVersionRequirements OSVersionRequirements `yaml:"osVersionRequirements" json:"osVersionRequirements"`
	UserExperience        UserExperience        `yaml:"userExperience" json:"userExperience"`
}

// OptionalFeatures toggles enforcement features.
type OptionalFeatures struct {
	AttemptToBlockApplicationLaunches bool     `yaml:"attemptToBlockApplicationLaunches" json:"attemptToBlockApplicationLaunches"`
	BlockedApplicationBundleIDs       []string `yaml:"blockedApplicationBundleIDs" json:"blockedApplicationBundleIDs"`
	AsynchronousSoftwareUpdate        bool     `yaml:"asynchronousSoftwareUpdate" json:"asynchronousSoftwareUpdate"`
	AttemptToFetchMajorUpgrade        bool     `yaml:"attemptToFetchMajorUpgrade" json:"attemptToFetchMajorUpgrade"`
	EnforceBypassPrevention           bool     `yaml:"enforceBypassPrevention" json:"enforceBypassPrevention"`
}

// OSVersionRequirements describes the deadline and the upgrade path.
type OSVersionRequirements struct {
	RequiredInstallationDate  time.Time  `yaml:"requiredInstallationDate" json:"requiredInstallationDate"`
	GracePeriodEnd            *time.Time `yaml:"gracePeriodEnd,omitempty" json:"gracePeriodEnd,omitempty"`
	RequiredMinimumOSVersion  string     `yaml:"requiredMinimumOSVersion" json:"requiredMinimumOSVersion"`
	RequireMajorUpgrade       bool       `yaml:"requireMajorUpgrade" json:"requireMajorUpgrade"`
	MajorUpgradeAppPath       string     `yaml:"majorUpgradeAppPath" json:"majorUpgradeAppPath"`
	MajorUpgradeBackupAppPath string     `yaml:"majorUpgradeBackupAppPath" json:"majorUpgradeBackupAppPath"`
	// ActionButtonPath is nil when no override is configured. An empty string
	// is a configured but unusable override.
	ActionButtonPath *string `yaml:"actionButtonPath,omitempty" json:"actionButtonPath,omitempty"`
}

// UserExperience holds timing settings.
type UserExperience struct {
	RandomDelay              bool `yaml:"randomDelay" json:"randomDelay"`
	MaxRandomDelayInSeconds  int  `yaml:"maxRandomDelayInSeconds" json:"maxRandomDelayInSeconds"`
	RefreshCycleSeconds      int  `yaml:"refreshCycleSeconds" json:"refreshCycleSeconds"`
	LaunchPollIntervalMillis int  `yaml:"launchPollIntervalMillis" json:"launchPollIntervalMillis"`
}

// Normalize fills unset timing values with defaults.
func (c *Config) Normalize() {
	ux := &c.UserExperience
	if ux.MaxRandomDelayInSeconds == 0 {
		ux.MaxRandomDelayInSeconds = DefaultMaxRandomDelaySeconds
	}
	if ux.RefreshCycleSeconds <= 0 {
		ux.RefreshCycleSeconds = DefaultRefreshCycleSeconds
	}
	if ux.LaunchPollIntervalMillis <= 0 {
		ux.LaunchPollIntervalMillis = DefaultLaunchPollIntervalMillis
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	req := c.OSVersionRequirements
	if req.RequiredInstallationDate.IsZero() {
		return fmt.Errorf("%w: requiredInstallationDate is required", ErrInvalidConfig)
	}
	if req.GracePeriodEnd != nil && req.GracePeriodEnd.Before(req.RequiredInstallationDate) {
		return fmt.Errorf("%w: gracePeriodEnd is before requiredInstallationDate", ErrInvalidConfig)
	}
	if c.UserExperience.RandomDelay && c.UserExperience.MaxRandomDelayInSeconds < 1 {
		return fmt.Errorf("%w: maxRandomDelayInSeconds must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// Deadline returns the compliance deadline described by the configuration.
func (c *Config) Deadline() domain.ComplianceDeadline {
	req := c.OSVersionRequirements
	return domain.ComplianceDeadline{
		RequiredDate:   req.RequiredInstallationDate,
		GracePeriodEnd: req.GracePeriodEnd,
		MajorUpgrade:   req.RequireMajorUpgrade,
	}
}

// RefreshCycle is how often the verdict is re-evaluated.
func (c *Config) RefreshCycle() time.Duration {
	return time.Duration(c.UserExperience.RefreshCycleSeconds) * time.Second
}

// LaunchPollInterval is how often the process table is polled for launches.
func (c *Config) LaunchPollInterval() time.Duration {
	return time.Duration(c.UserExperience.LaunchPollIntervalMillis) * time.Millisecond
}

// MaxRandomDelay is the ceiling of the startup delay.
func (c *Config) MaxRandomDelay() time.Duration {
	return time.Duration(c.UserExperience.MaxRandomDelayInSeconds) * time.Second
}
