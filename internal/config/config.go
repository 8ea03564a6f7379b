// Package config holds the validated configuration surfaces for haven: how to
// reach the orchestrator, what resources a job asks for, and how a batch
// launch behaves.
package config

import (
	"bytes"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tesfaldet/haven/pkg/model"
)

// Default backend client settings.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
)

// DefaultMaxParallel bounds concurrent submissions when the caller does not
// set a limit.
const DefaultMaxParallel = 8

// BackendConfig holds the connection settings for the orchestrator client.
type BackendConfig struct {
	// BaseURL is the orchestrator API root, e.g. "https://orc.example.com".
	BaseURL string `yaml:"base_url"`

	// Token is the bearer token used to authenticate API calls.
	Token string `yaml:"token"`

	// Timeout bounds each submit/status/logs/kill call. Exceeding it is a
	// transient error, never a terminal job failure.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retry attempts for transient failures.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the initial delay between retries; exponential backoff
	// is applied on top.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// DefaultBackendConfig returns a BackendConfig with default client settings.
// BaseURL and Token must still be supplied by the caller.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

// WithToken returns a copy of the config with the specified token.
func (c BackendConfig) WithToken(token string) BackendConfig {
	c.Token = token
	return c
}

// WithTimeout returns a copy of the config with the specified per-call timeout.
func (c BackendConfig) WithTimeout(timeout time.Duration) BackendConfig {
	c.Timeout = timeout
	return c
}

// WithRetries returns a copy of the config with the specified retry settings.
func (c BackendConfig) WithRetries(maxRetries int, retryDelay time.Duration) BackendConfig {
	c.MaxRetries = maxRetries
	c.RetryDelay = retryDelay
	return c
}

// Validate checks the config is complete enough to build a client.
func (c BackendConfig) Validate() error {
	if c.BaseURL == "" {
		return model.NewValidationError("backend base_url is required")
	}
	if c.Timeout <= 0 {
		return model.NewValidationError("backend timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return model.NewValidationError("backend max_retries must be >= 0, got %d", c.MaxRetries)
	}
	return nil
}

// JobConfig enumerates the recognized job options for submitted experiments.
// Unknown keys are a validation error, not silently ignored.
type JobConfig struct {
	// Image is the container image jobs run in.
	Image string `yaml:"image"`

	// Volume names the data volume mounted into the job.
	Volume string `yaml:"volume"`

	// ResourceBid is the preemptible-capacity bid forwarded to the
	// orchestrator, zero for on-demand.
	ResourceBid float64 `yaml:"resource-bid"`

	// Restartable marks the job safe for the orchestrator to restart.
	Restartable bool `yaml:"restartable"`

	GPUCount int `yaml:"gpu-count"`
	CPUCount int `yaml:"cpu-count"`

	// MemoryGB is the job memory request in gigabytes.
	MemoryGB int `yaml:"memory"`
}

// recognizedJobKeys mirrors the yaml tags above; keep in sync.
var recognizedJobKeys = []string{
	"image", "volume", "resource-bid", "restartable", "gpu-count", "cpu-count", "memory",
}

// ParseJobConfig decodes YAML (or JSON, which yaml.v3 accepts) into a
// JobConfig, rejecting unknown keys.
func ParseJobConfig(data []byte) (JobConfig, error) {
	var cfg JobConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return JobConfig{}, model.NewValidationError(
			"job config: %v (recognized options: %s)", err, strings.Join(recognizedJobKeys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return JobConfig{}, err
	}
	return cfg, nil
}

// Validate checks option values for basic sanity.
func (c JobConfig) Validate() error {
	if c.Image == "" {
		return model.NewValidationError("job config: image is required")
	}
	if c.GPUCount < 0 || c.CPUCount < 0 || c.MemoryGB < 0 {
		return model.NewValidationError("job config: resource counts must be >= 0")
	}
	if c.ResourceBid < 0 {
		return model.NewValidationError("job config: resource-bid must be >= 0")
	}
	return nil
}

// ServerConfig holds configuration for the haven status server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`       // listen address
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LaunchConfig controls a batch launch.
type LaunchConfig struct {
	// SavedirBase is the shared-filesystem root; each experiment gets a
	// directory named by its id underneath.
	SavedirBase string `yaml:"savedir_base"`

	// RunCommand is the command template; occurrences of <exp_id> and
	// <savedir> are substituted per experiment.
	RunCommand string `yaml:"run_command"`

	// MaxParallel bounds concurrent submissions to the backend.
	MaxParallel int `yaml:"max_parallel"`

	Job JobConfig `yaml:"job"`
}

// DefaultLaunchConfig returns a LaunchConfig with the default submission
// concurrency. SavedirBase and RunCommand must still be supplied.
func DefaultLaunchConfig() LaunchConfig {
	return LaunchConfig{MaxParallel: DefaultMaxParallel}
}

// Validate checks the launch config before any submission is attempted.
func (c LaunchConfig) Validate() error {
	if c.SavedirBase == "" {
		return model.NewValidationError("savedir_base is required")
	}
	if c.RunCommand == "" {
		return model.NewValidationError("run_command is required")
	}
	if !strings.Contains(c.RunCommand, ExpIDPlaceholder) {
		return model.NewValidationError("run_command must contain the %s placeholder", ExpIDPlaceholder)
	}
	if c.MaxParallel <= 0 {
		return model.NewValidationError("max_parallel must be positive, got %d", c.MaxParallel)
	}
	return c.Job.Validate()
}

// Placeholders recognized in RunCommand templates.
const (
	ExpIDPlaceholder   = "<exp_id>"
	SavedirPlaceholder = "<savedir>"
)

// RenderCommand substitutes the experiment id and save directory into the
// run-command template.
func (c LaunchConfig) RenderCommand(expID, saveDir string) string {
	out := strings.ReplaceAll(c.RunCommand, ExpIDPlaceholder, expID)
	out = strings.ReplaceAll(out, SavedirPlaceholder, saveDir)
	return out
}
