// Package config provides configuration loading and management for qimap.
// It handles loading configuration from YAML or TOML files, chosen by file
// extension, and provides default values.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"qimap/pkg/fitting"
	"qimap/pkg/sequence"
	"qimap/pkg/signal"
	"qimap/pkg/tissue"
)

// Config represents the application configuration
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel fitting
		NumCores int `yaml:"numCores" toml:"numCores"`

		// LogLevel is the zerolog level name (debug, info, warn, error)
		LogLevel string `yaml:"logLevel" toml:"logLevel"`
	} `yaml:"processing" toml:"processing"`

	// Fitting parameters
	Fitting struct {
		// Algorithm is l (LLS), w (WLLS) or n (NLLS)
		Algorithm string `yaml:"algorithm" toml:"algorithm"`

		// MaxIterations is the number of WLLS passes and scales the NLLS budget
		MaxIterations int `yaml:"maxIterations" toml:"maxIterations"`

		// Method is the NLLS minimiser: lm, nelder-mead or bfgs
		Method string `yaml:"method" toml:"method"`

		// Seed is the NLLS starting point policy: closed-form or mayfly
		Seed string `yaml:"seed" toml:"seed"`

		Tolerance      float64 `yaml:"tolerance" toml:"tolerance"`
		SeedIterations int     `yaml:"seedIterations" toml:"seedIterations"`
		SeedPopulation int     `yaml:"seedPopulation" toml:"seedPopulation"`
		RandSeed       int64   `yaml:"randSeed" toml:"randSeed"`

		// DefaultConstants replaces the per-algorithm defaults (B1 = 1)
		DefaultConstants []float64 `yaml:"defaultConstants,omitempty" toml:"defaultConstants,omitempty"`
	} `yaml:"fitting" toml:"fitting"`

	// Synthesis parameters for the signal command
	Synthesis struct {
		// Model is the tissue model: 1, 2 or 3 compartments
		Model string `yaml:"model" toml:"model"`

		// Noise is the standard deviation of the added complex noise
		Noise float64 `yaml:"noise" toml:"noise"`

		// Seed makes the noise reproducible
		Seed int64 `yaml:"seed" toml:"seed"`

		// Complex writes real and imaginary parts instead of magnitudes
		Complex bool `yaml:"complex" toml:"complex"`
	} `yaml:"synthesis" toml:"synthesis"`

	// Sequences describes the acquisitions, in the order their data appear
	Sequences []sequence.Spec `yaml:"sequences,omitempty" toml:"sequences,omitempty"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	opts := fitting.DefaultOptions()

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.LogLevel = "info"

	// Set default fitting parameters
	cfg.Fitting.Algorithm = "l"
	cfg.Fitting.MaxIterations = opts.MaxIterations
	cfg.Fitting.Method = opts.Method
	cfg.Fitting.Seed = opts.Seed
	cfg.Fitting.Tolerance = opts.Tolerance
	cfg.Fitting.SeedIterations = opts.SeedIterations
	cfg.Fitting.SeedPopulation = opts.SeedPopulation
	cfg.Fitting.RandSeed = opts.RandSeed

	// Set default synthesis parameters
	cfg.Synthesis.Model = "1"
	cfg.Synthesis.Noise = 0
	cfg.Synthesis.Seed = 1

	return cfg
}

// isTOML reports whether path should be read and written as TOML
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// decode parses data into v as YAML or TOML depending on path
func decode(path string, data []byte, v interface{}) error {
	if isTOML(path) {
		_, err := toml.Decode(string(data), v)
		return err
	}
	return yaml.Unmarshal(data, v)
}

// encode serializes v as YAML or TOML depending on path
func encode(path string, v interface{}) ([]byte, error) {
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return yaml.Marshal(v)
}

// LoadConfig loads configuration from a YAML or TOML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML or TOML
	if err := decode(configPath, data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := encode(configPath, cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the fitting, synthesis and sequence sections
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	if _, err := c.FittingOptions(); err != nil {
		return err
	}
	if _, err := c.Model(); err != nil {
		return err
	}
	if c.Synthesis.Noise < 0 {
		return fmt.Errorf("synthesis noise must not be negative, got %g", c.Synthesis.Noise)
	}
	if _, err := c.BuildSequences(); err != nil {
		return err
	}
	return nil
}

// FittingOptions converts the fitting section into estimator options
func (c *Config) FittingOptions() (fitting.Options, error) {
	strategy, err := fitting.ParseStrategy(c.Fitting.Algorithm)
	if err != nil {
		return fitting.Options{}, err
	}
	opts := fitting.Options{
		Strategy:       strategy,
		MaxIterations:  c.Fitting.MaxIterations,
		Method:         c.Fitting.Method,
		Seed:           c.Fitting.Seed,
		Tolerance:      c.Fitting.Tolerance,
		SeedIterations: c.Fitting.SeedIterations,
		SeedPopulation: c.Fitting.SeedPopulation,
		RandSeed:       c.Fitting.RandSeed,
	}
	if err := opts.Validate(); err != nil {
		return fitting.Options{}, err
	}
	return opts, nil
}

// Model parses the synthesis tissue model
func (c *Config) Model() (tissue.Model, error) {
	return tissue.Parse(c.Synthesis.Model)
}

// BuildSequences constructs every configured sequence descriptor
func (c *Config) BuildSequences() ([]signal.Sequence, error) {
	return buildAll(c.Sequences)
}

func buildAll(specs []sequence.Spec) ([]signal.Sequence, error) {
	seqs := make([]signal.Sequence, 0, len(specs))
	for i, s := range specs {
		seq, err := s.Build()
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}

// sequenceFile is the layout of a standalone sequence descriptor file
type sequenceFile struct {
	Sequences []sequence.Spec `yaml:"sequences" toml:"sequences"`
}

// LoadSequences reads a standalone sequence descriptor file, YAML or TOML
// by extension, and builds its descriptors
func LoadSequences(path string) ([]sequence.Spec, []signal.Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading sequence file: %w", err)
	}
	var f sequenceFile
	if err := decode(path, data, &f); err != nil {
		return nil, nil, fmt.Errorf("error parsing sequence file: %w", err)
	}
	if len(f.Sequences) == 0 {
		return nil, nil, fmt.Errorf("sequence file %s lists no sequences", path)
	}
	seqs, err := buildAll(f.Sequences)
	if err != nil {
		return nil, nil, err
	}
	return f.Sequences, seqs, nil
}
