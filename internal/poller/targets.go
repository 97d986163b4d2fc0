package poller

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultCommunity = "public"
	defaultPort      = 161
)

// Target is one device to poll, read from the targets file.
type Target struct {
	Host      string `yaml:"host"`
	Community string `yaml:"community"`
	Port      uint16 `yaml:"port"`
	Enabled   *bool  `yaml:"enabled"`
}

// ShouldPoll reports whether the target is enabled. Targets default to
// enabled unless otherwise stated.
func (t Target) ShouldPoll() bool {
	return t.Enabled == nil || *t.Enabled
}

type targetsFile struct {
	Targets []Target `yaml:"targets"`
}

// LoadTargets reads the YAML target inventory and applies per-target
// defaults.
func LoadTargets(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file %q: %w", path, err)
	}

	var file targetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse targets file %q: %w", path, err)
	}

	for i := range file.Targets {
		if file.Targets[i].Host == "" {
			return nil, fmt.Errorf("targets file %q: target %d has no host", path, i)
		}
		if file.Targets[i].Community == "" {
			file.Targets[i].Community = defaultCommunity
		}
		if file.Targets[i].Port == 0 {
			file.Targets[i].Port = defaultPort
		}
	}
	return file.Targets, nil
}
