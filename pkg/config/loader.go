package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/site-harvester/pkg/utils"
)

// Load reads and parses a YAML config file. Defaults are not applied; call Validate.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %w", utils.ErrFilesystem, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config '%s': %w", utils.ErrConfigValidation, path, err)
	}
	return &cfg, nil
}

// TargetKeys returns the configured target keys, sorted
func (c *AppConfig) TargetKeys() []string {
	keys := make([]string, 0, len(c.Targets))
	for k := range c.Targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateTargetKeys checks that every key names a configured target
func (c *AppConfig) ValidateTargetKeys(keys []string) error {
	for _, key := range keys {
		if _, exists := c.Targets[key]; !exists {
			return fmt.Errorf("%w: target '%s' not found. Available targets: %v", utils.ErrConfigValidation, key, c.TargetKeys())
		}
	}
	return nil
}
