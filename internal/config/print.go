package config

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// PrintProfile writes the profile-sourced configuration as YAML.
func PrintProfile(w io.Writer, path string) error {
	config, err := LoadProfile(path)
	if err != nil {
		return fmt.Errorf("could not find profile preferences: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(config); err != nil {
		return fmt.Errorf("issue with profile data: %w", err)
	}
	return enc.Close()
}

// PrintJSON writes the JSON-sourced configuration as indented JSON.
func PrintJSON(w io.Writer, path string) error {
	config, err := LoadJSON(path)
	if err != nil {
		return fmt.Errorf("could not find JSON preferences: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("issue with JSON data: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
