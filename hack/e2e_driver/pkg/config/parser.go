package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadScenario loads and parses a schedsim scenario file (the scheduling
// counterpart of the original LoadScenario's config.yml+steps.yml pair,
// collapsed to a single file).
func LoadScenario(path string) (*ScenarioFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario ScenarioFile
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}

	if scenario.RunID == "" {
		return nil, fmt.Errorf("scenario file missing required run_id")
	}
	if len(scenario.Units) == 0 {
		return nil, fmt.Errorf("scenario file declares no units")
	}

	return &scenario, nil
}
