package infra

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

// HostOSVersionProvider implements domain.OSVersionProvider using gopsutil.
type HostOSVersionProvider struct{}

// NewHostOSVersionProvider creates an OS version provider.
func NewHostOSVersionProvider() *HostOSVersionProvider {
	return &HostOSVersionProvider{}
}

// CurrentVersion returns the platform version, e.g. "14.2.1".
func (HostOSVersionProvider) CurrentVersion() (string, error) {
	_, _, version, err := host.PlatformInformation()
	if err != nil {
		return "", fmt.Errorf("failed to read platform version: %w", err)
	}
	return version, nil
}

// VersionSatisfies reports whether current >= required. Short versions such
// as "14" or "14.2" are accepted.
func VersionSatisfies(current, required string) (bool, error) {
	cur, err := semver.NewVersion(current)
	if err != nil {
		return false, fmt.Errorf("invalid current version %q: %w", current, err)
	}
	req, err := semver.NewVersion(required)
	if err != nil {
		return false, fmt.Errorf("invalid required version %q: %w", required, err)
	}
	return !cur.LessThan(req), nil
}

var _ domain.OSVersionProvider = HostOSVersionProvider{}
