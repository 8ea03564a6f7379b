package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tesfaldet/haven/pkg/model"
)

// TokenEnvVar overrides the configured orchestrator token when set, keeping
// credentials out of checked-in config files.
const TokenEnvVar = "HAVEN_ORC_TOKEN"

// File is the on-disk haven configuration.
type File struct {
	Backend BackendConfig `yaml:"backend"`
	Launch  LaunchConfig  `yaml:"launch"`
	Server  ServerConfig  `yaml:"server"`
}

// DefaultFile returns a File with all defaults applied.
func DefaultFile() File {
	return File{
		Backend: DefaultBackendConfig(),
		Launch:  DefaultLaunchConfig(),
		Server:  DefaultServerConfig(),
	}
}

// Load reads a YAML config file, applying defaults for absent fields and the
// token override from the environment. Unknown keys are an error.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultFile()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return File{}, model.NewValidationError("config %s: %v", path, err)
	}

	if token := os.Getenv(TokenEnvVar); token != "" {
		cfg.Backend = cfg.Backend.WithToken(token)
	}
	return cfg, nil
}

// LoadExperimentList reads a YAML file holding a list of experiment specs,
// one hyperparameter map per entry.
func LoadExperimentList(path string) ([]model.ExperimentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiment list: %w", err)
	}

	var specs []model.ExperimentSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, model.NewValidationError("experiment list %s: %v", path, err)
	}
	if len(specs) == 0 {
		return nil, model.NewValidationError("experiment list %s is empty", path)
	}
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, model.NewValidationError("experiment list %s entry %d: %v", path, i, err)
		}
	}
	return specs, nil
}
