package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompts overrides the built-in model prompts. Empty fields keep the defaults.
type Prompts struct {
	Signal struct {
		System string `yaml:"system"`
		User   string `yaml:"user"`
	} `yaml:"signal"`
	OCR struct {
		Instruction string `yaml:"instruction"`
	} `yaml:"ocr"`
}

// LoadPrompts reads a YAML prompt file. An empty path yields zero Prompts.
func LoadPrompts(path string) (Prompts, error) {
	var p Prompts
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read prompts file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parse prompts file %s: %w", path, err)
	}
	return p, nil
}
