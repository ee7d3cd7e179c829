package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPlanFilename is the default plan filename.
const DefaultPlanFilename = "engine.yaml"

// LoadPlan loads and validates a plan from a file.
func LoadPlan(path string) (*Plan, error) {
	plan, err := LoadPlanWithoutValidation(path)
	if err != nil {
		return nil, err
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("plan validation failed: %w", err)
	}

	return plan, nil
}

// LoadPlanWithoutValidation loads a plan from a file without validation.
// This is useful for tooling that needs to read partially valid plans.
func LoadPlanWithoutValidation(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	return parsePlan(data)
}

// LoadPlanFromBytes loads and validates a plan from bytes.
func LoadPlanFromBytes(data []byte) (*Plan, error) {
	plan, err := parsePlan(data)
	if err != nil {
		return nil, err
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("plan validation failed: %w", err)
	}

	return plan, nil
}

// parsePlan parses YAML data into a Plan struct.
func parsePlan(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &plan, nil
}

// FindPlanFile searches for a plan file in common locations.
// It checks the current directory, then walks up to find engine.yaml.
func FindPlanFile() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	path := filepath.Join(cwd, DefaultPlanFilename)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	// Walk up the directory tree
	dir := cwd
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent

		path := filepath.Join(dir, DefaultPlanFilename)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("plan file %s not found", DefaultPlanFilename)
}

// SavePlan writes a plan to a file. Credentials may be embedded, so the
// file is not group or world readable.
func SavePlan(plan *Plan, path string) error {
	data, err := yaml.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}

	return nil
}
