// Package config holds the pipeline configuration: where the toolchain
// binaries and fixed input files live, which layouts to process, and how
// external processes are constrained. Configuration is YAML with environment
// variable overrides; every field has a working default so the tool runs
// with no config file at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all integrity pipeline configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Paths to fixed input files and directories
	Paths PathsConfig `yaml:"paths"`

	// Toolchain binaries and timeouts
	Tools ToolsConfig `yaml:"tools"`

	// Layouts to process; empty means the default set
	Layouts []string `yaml:"layouts"`

	// Execution settings for external processes
	Execution ExecutionConfig `yaml:"execution"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig locates the fixed inputs and the output tree.
type PathsConfig struct {
	ParameterFile    string `yaml:"parameter_file"`
	ProverConfigFile string `yaml:"prover_config_file"`
	ProgramInputFile string `yaml:"program_input_file"`
	SourceDir        string `yaml:"source_dir"`
	OutputDir        string `yaml:"output_dir"`
}

// ToolsConfig names the toolchain binaries and their timeouts.
type ToolsConfig struct {
	CompilerBin    string `yaml:"compiler_bin"`
	RunnerBin      string `yaml:"runner_bin"`
	ProverBin      string `yaml:"prover_bin"`
	CompileTimeout string `yaml:"compile_timeout"`
	RunTimeout     string `yaml:"run_timeout"`
	ProveTimeout   string `yaml:"prove_timeout"`
}

// ExecutionConfig constrains external process execution.
type ExecutionConfig struct {
	DefaultTimeout string   `yaml:"default_timeout"`
	MaxTimeout     string   `yaml:"max_timeout"`
	MaxOutputBytes int64    `yaml:"max_output_bytes"`
	AllowedEnvVars []string `yaml:"allowed_env_vars"`
}

// LoggingConfig configures the categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "integrity",
		Version: "1.0.0",

		Paths: PathsConfig{
			ParameterFile:    "cpu_air_params.json",
			ProverConfigFile: "cpu_air_prover_config.json",
			ProgramInputFile: "fibonacci_input.json",
			SourceDir:        ".",
			OutputDir:        ".",
		},

		Tools: ToolsConfig{
			CompilerBin:    "cairo-compile",
			RunnerBin:      "cairo-run",
			ProverBin:      "cpu_air_prover",
			CompileTimeout: "5m",
			RunTimeout:     "15m",
			ProveTimeout:   "30m",
		},

		Execution: ExecutionConfig{
			DefaultTimeout: "10m",
			MaxTimeout:     "1h",
			MaxOutputBytes: 10 * 1024 * 1024,
			AllowedEnvVars: []string{"PATH", "HOME", "USER", "LANG", "LC_ALL", "TMPDIR", "PYTHONPATH"},
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("INTEGRITY_PARAMETER_FILE"); v != "" {
		c.Paths.ParameterFile = v
	}
	if v := os.Getenv("INTEGRITY_PROVER_CONFIG_FILE"); v != "" {
		c.Paths.ProverConfigFile = v
	}
	if v := os.Getenv("INTEGRITY_PROGRAM_INPUT_FILE"); v != "" {
		c.Paths.ProgramInputFile = v
	}
	if v := os.Getenv("INTEGRITY_SOURCE_DIR"); v != "" {
		c.Paths.SourceDir = v
	}
	if v := os.Getenv("INTEGRITY_OUTPUT_DIR"); v != "" {
		c.Paths.OutputDir = v
	}
	if v := os.Getenv("INTEGRITY_COMPILER_BIN"); v != "" {
		c.Tools.CompilerBin = v
	}
	if v := os.Getenv("INTEGRITY_RUNNER_BIN"); v != "" {
		c.Tools.RunnerBin = v
	}
	if v := os.Getenv("INTEGRITY_PROVER_BIN"); v != "" {
		c.Tools.ProverBin = v
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Paths.ParameterFile == "" {
		return fmt.Errorf("paths.parameter_file must not be empty")
	}
	if c.Paths.ProverConfigFile == "" {
		return fmt.Errorf("paths.prover_config_file must not be empty")
	}
	if c.Tools.CompilerBin == "" || c.Tools.RunnerBin == "" || c.Tools.ProverBin == "" {
		return fmt.Errorf("tools.compiler_bin, tools.runner_bin and tools.prover_bin must all be set")
	}
	for _, name := range c.Layouts {
		switch name {
		case "dex", "recursive", "recursive_with_poseidon", "small",
			"starknet", "starknet_with_keccak", "dynamic":
		default:
			return fmt.Errorf("unknown layout %q in layouts", name)
		}
	}
	return nil
}

// GetCompileTimeout returns the compiler timeout as a duration.
func (c *Config) GetCompileTimeout() time.Duration {
	return parseDuration(c.Tools.CompileTimeout, 5*time.Minute)
}

// GetRunTimeout returns the runner timeout as a duration.
func (c *Config) GetRunTimeout() time.Duration {
	return parseDuration(c.Tools.RunTimeout, 15*time.Minute)
}

// GetProveTimeout returns the prover timeout as a duration.
func (c *Config) GetProveTimeout() time.Duration {
	return parseDuration(c.Tools.ProveTimeout, 30*time.Minute)
}

// GetDefaultTimeout returns the executor default timeout as a duration.
func (c *Config) GetDefaultTimeout() time.Duration {
	return parseDuration(c.Execution.DefaultTimeout, 10*time.Minute)
}

// GetMaxTimeout returns the executor timeout cap as a duration.
func (c *Config) GetMaxTimeout() time.Duration {
	return parseDuration(c.Execution.MaxTimeout, time.Hour)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
