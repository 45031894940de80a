package mazespec

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MissionFile is the top-level structure of a mission YAML file.
type MissionFile struct {
	Maze Mission `yaml:"maze"`
}

// LoadFromYAML loads and validates a mission from a YAML file.
func LoadFromYAML(filename string) (*Mission, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read mission file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a mission YAML document.
func Parse(data []byte) (*Mission, error) {
	var file MissionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse mission YAML: %w", err)
	}

	mission := &file.Maze
	mission.ApplyDefaults()
	if err := mission.Validate(); err != nil {
		return nil, err
	}
	return mission, nil
}
