package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/triage/internal/workflow/steps"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Workflow.ScoreThreshold == 0 {
		cfg.Workflow.ScoreThreshold = steps.DefaultScoreThreshold
	}
	if cfg.Workflow.PruneSchedule == "" {
		cfg.Workflow.PruneSchedule = "@every 1h"
	}
	if cfg.Notify.Channel == "" {
		cfg.Notify.Channel = "webhook"
	}

	return &cfg, nil
}
