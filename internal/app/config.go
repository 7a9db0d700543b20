package app

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vk/assetgraph/internal/engine"
)

// State modes.
const (
	// StateModeShared merges every node into one run state with a fixed,
	// strict schema.
	StateModeShared = "shared"
	// StateModeIsolated accepts any field as an overwrite.
	StateModeIsolated = "isolated"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
	stateModes = []string{StateModeShared, StateModeIsolated}
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	SpecPaths []string // json, yaml and hcl files or directories
	Example   string   // name of an embedded example graph

	LogFormat string
	LogLevel  string

	Workers     int
	NodeTimeout time.Duration
	ResultMode  engine.ResultMode
	StateMode   string

	Addr            string // serve only
	HealthcheckPort int    // run only; 0 disables it

	FMPAPIKey     string
	FMPBaseURL    string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
}

// NewConfig validates cfg, normalizes case-insensitive values and fills in
// defaults.
func NewConfig(cfg Config) (*Config, error) {
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if !slices.Contains(logLevels, cfg.LogLevel) {
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if !slices.Contains(logFormats, cfg.LogFormat) {
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	}

	if cfg.Workers < 1 {
		return nil, fmt.Errorf("invalid workers: must be at least 1, got %d", cfg.Workers)
	}
	if cfg.NodeTimeout < 0 {
		return nil, fmt.Errorf("invalid node-timeout: must not be negative, got %s", cfg.NodeTimeout)
	}

	mode, err := engine.ParseResultMode(strings.ToLower(string(cfg.ResultMode)))
	if err != nil {
		return nil, err
	}
	cfg.ResultMode = mode

	cfg.StateMode = strings.ToLower(cfg.StateMode)
	if cfg.StateMode == "" {
		cfg.StateMode = StateModeShared
	}
	if !slices.Contains(stateModes, cfg.StateMode) {
		return nil, errors.New("invalid state-mode: must be 'shared' or 'isolated'")
	}

	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck-port: %d", cfg.HealthcheckPort)
	}

	if cfg.Example != "" && len(cfg.SpecPaths) > 0 {
		return nil, errors.New("an example and specification paths cannot be combined")
	}
	if cfg.Example != "" {
		if _, err := exampleFile(cfg.Example); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// HasGraph reports whether a graph source was configured.
func (c *Config) HasGraph() bool {
	return c.Example != "" || len(c.SpecPaths) > 0
}
