package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PromptsConfig contains prompt configuration loaded from YAML
type PromptsConfig struct {
	Persona PersonaPrompts `yaml:"persona"`
	History HistoryConfig  `yaml:"history"`
}

// PersonaPrompts contains the coach persona prompts
type PersonaPrompts struct {
	SystemPrompt  string `yaml:"system_prompt"`
	HistoryMarker string `yaml:"history_marker"`
	CurrentMarker string `yaml:"current_marker"`
}

// HistoryConfig contains history truncation settings
type HistoryConfig struct {
	MaxCount   int `yaml:"max_count"`
	MaxMinutes int `yaml:"max_minutes"`
}

// LoadPromptsConfig loads prompt configuration from a YAML file. When
// no file is found a config with zero values is returned and the
// builder's defaults apply.
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/prompts.yaml",
			"./configs/prompts.yaml",
			"/etc/shanbot/prompts.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
		}
	}

	cfg := &PromptsConfig{History: HistoryConfig{MaxCount: 15}}
	for _, path := range paths {
		if path == "" {
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return cfg, fmt.Errorf("parse prompts config %s: %w", path, err)
		}
		return cfg, nil
	}

	return cfg, nil
}
