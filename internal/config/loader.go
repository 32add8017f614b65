package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

// Default configuration locations.
const (
	DefaultProfilePath    = "/Library/Managed Preferences/com.github.focusd.updateguard.yaml"
	DefaultJSONConfigPath = "/Library/Preferences/com.github.focusd.updateguard.json"
	LegacyProfilePath     = "/Library/Managed Preferences/com.github.focusd.updateguard.json.plist"
)

// Source identifies where the effective configuration came from.
type Source string

const (
	SourceProfile Source = "profile"
	SourceJSON    Source = "json"
)

// Paths are the configuration locations to consult.
type Paths struct {
	Profile string
	JSON    string
	Legacy  string
}

// DefaultPaths returns the standard locations.
func DefaultPaths() Paths {
	return Paths{Profile: DefaultProfilePath, JSON: DefaultJSONConfigPath, Legacy: LegacyProfilePath}
}

// CheckLegacyPath fails when a malformed profile sits at the disallowed legacy location.
func CheckLegacyPath(path string, logger *zap.Logger) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	logger.Warn("Found bad profile path", zap.String("path", path))
	return fmt.Errorf("%w at %s", domain.ErrLegacyProfilePath, path)
}

// LoadProfile reads the managed profile (YAML).
func LoadProfile(path string) (*Config, error) {
	data, err := readSource(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return &config, nil
}

// LoadJSON reads the JSON configuration file.
func LoadJSON(path string) (*Config, error) {
	data, err := readSource(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config %s: %w", path, err)
	}
	return &config, nil
}

func readSource(path string) ([]byte, error) {
	if path == "" {
		return nil, domain.ErrConfigNotFound
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// Load returns the effective configuration. The profile takes precedence
// over the JSON file. The result is normalized and validated.
func Load(paths Paths, logger *zap.Logger) (*Config, Source, error) {
	if err := CheckLegacyPath(paths.Legacy, logger); err != nil {
		return nil, "", err
	}

	config, err := LoadProfile(paths.Profile)
	source := SourceProfile
	if err != nil {
		if !isNotFound(err) {
			return nil, "", err
		}
		logger.Debug("no profile configuration", zap.String("path", paths.Profile))

		config, err = LoadJSON(paths.JSON)
		source = SourceJSON
		if err != nil {
			return nil, "", err
		}
	}

	config.Normalize()
	if err := config.Validate(); err != nil {
		return nil, "", err
	}

	logger.Info("loaded configuration",
		zap.String("source", string(source)),
		zap.Time("required_installation_date", config.OSVersionRequirements.RequiredInstallationDate),
		zap.Bool("require_major_upgrade", config.OSVersionRequirements.RequireMajorUpgrade),
		zap.Int("blocked_applications", len(config.OptionalFeatures.BlockedApplicationBundleIDs)))
	return config, source, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrConfigNotFound)
}
