package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

// BundleInfo is the subset of an app bundle's Info.plist we care about.
type BundleInfo struct {
	Identifier  string `plist:"CFBundleIdentifier"`
	Name        string `plist:"CFBundleName"`
	DisplayName string `plist:"CFBundleDisplayName"`
	Executable  string `plist:"CFBundleExecutable"`
}

// LocalizedName returns the display name, falling back to the bundle name.
func (b BundleInfo) LocalizedName() string {
	if b.DisplayName != "" {
		return b.DisplayName
	}
	return b.Name
}

// BundlePathForExecutable returns the outermost .app directory containing exe,
// or "" when exe is not inside an app bundle.
func BundlePathForExecutable(exe string) string {
	if exe == "" {
		return ""
	}
	parts := strings.Split(filepath.Clean(exe), string(filepath.Separator))
	for i, p := range parts {
		if strings.HasSuffix(p, ".app") {
			joined := filepath.Join(parts[:i+1]...)
			if filepath.IsAbs(exe) {
				joined = string(filepath.Separator) + joined
			}
			return joined
		}
	}
	return ""
}

// ReadBundleInfo parses <bundle>/Contents/Info.plist. XML, binary and
// OpenStep formats are accepted.
func ReadBundleInfo(bundlePath string) (BundleInfo, error) {
	data, err := os.ReadFile(filepath.Join(bundlePath, "Contents", "Info.plist"))
	if err != nil {
		return BundleInfo{}, err
	}

	var info BundleInfo
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return BundleInfo{}, fmt.Errorf("failed to parse Info.plist in %s: %w", bundlePath, err)
	}
	return info, nil
}
