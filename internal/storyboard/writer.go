package storyboard

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Write writes a storyboard to a YAML file
func Write(sb *Storyboard, path string) error {
	data, err := yaml.Marshal(sb)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storyboard dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Read reads a storyboard from a YAML file
func Read(path string) (*Storyboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sb Storyboard
	if err := yaml.Unmarshal(data, &sb); err != nil {
		return nil, fmt.Errorf("parse storyboard %s: %w", path, err)
	}

	return &sb, nil
}

// Load reads path, or returns Default when path is empty.
func Load(path string) (*Storyboard, error) {
	if path == "" {
		return Default(), nil
	}
	return Read(path)
}
