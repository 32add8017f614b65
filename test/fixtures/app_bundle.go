// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"

	"howett.net/plist"

	"github.com/eliteGoblin/focusd/update_guard/internal/infra"
)

// FakeAppBundle creates a directory structure mimicking a macOS app bundle.
type FakeAppBundle struct {
	Dir      string
	Name     string
	BundleID string
}

// NewFakeAppBundle creates a new fake bundle generator rooted at dir.
func NewFakeAppBundle(dir, name, bundleID string) *FakeAppBundle {
	return &FakeAppBundle{Dir: dir, Name: name, BundleID: bundleID}
}

// Path returns the .app directory.
func (f *FakeAppBundle) Path() string {
	return filepath.Join(f.Dir, f.Name+".app")
}

// ExecutablePath returns Contents/MacOS/<name>.
func (f *FakeAppBundle) ExecutablePath() string {
	return filepath.Join(f.Path(), "Contents", "MacOS", f.Name)
}

// Create writes a binary Info.plist and a placeholder executable.
func (f *FakeAppBundle) Create() error {
	if err := os.MkdirAll(filepath.Dir(f.ExecutablePath()), 0755); err != nil {
		return err
	}

	info := infra.BundleInfo{
		Identifier:  f.BundleID,
		Name:        f.Name,
		DisplayName: f.Name,
		Executable:  f.Name,
	}
	data, err := plist.Marshal(info, plist.BinaryFormat)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(f.Path(), "Contents", "Info.plist"), data, 0644); err != nil {
		return err
	}

	return os.WriteFile(f.ExecutablePath(), []byte("#!/bin/sh\nsleep 60\n"), 0755)
}

// Exists checks if the bundle exists.
func (f *FakeAppBundle) Exists() bool {
	_, err := os.Stat(f.Path())
	return err == nil
}
