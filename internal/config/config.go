package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const FileName = "stageline.yml"

// Config models stageline.yml.
type Config struct {
	Project struct {
		ID string `yaml:"id" json:"id"`
	} `yaml:"project" json:"project"`
	Validators struct {
		Disabled []string `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	} `yaml:"validators" json:"validators"`
	TCR    TCR    `yaml:"tcr" json:"tcr"`
	Remote Remote `yaml:"remote" json:"remote"`
	Server Server `yaml:"server" json:"server"`
}

type TCR struct {
	FailureThreshold int               `yaml:"failure_threshold" json:"failure_threshold"`
	CommitPrefix     string            `yaml:"commit_prefix" json:"commit_prefix"`
	Targets          map[string]Target `yaml:"targets" json:"targets"`
}

// Target describes one independently tested sub-project.
type Target struct {
	Paths           []string   `yaml:"paths" json:"paths"`
	Extensions      []string   `yaml:"extensions,omitempty" json:"extensions,omitempty"`
	Dir             string     `yaml:"dir,omitempty" json:"dir,omitempty"`
	TestCommand     string     `yaml:"test_command" json:"test_command"`
	CoverageCommand string     `yaml:"coverage_command,omitempty" json:"coverage_command,omitempty"`
	Coverage        Coverage   `yaml:"coverage" json:"coverage"`
	Thresholds      Thresholds `yaml:"thresholds" json:"thresholds"`
}

type Coverage struct {
	Format string `yaml:"format" json:"format"`
	Path   string `yaml:"path" json:"path"`
}

// Thresholds are minimum coverage percentages per metric.
type Thresholds struct {
	Lines     *float64 `yaml:"lines,omitempty" json:"lines,omitempty"`
	Functions *float64 `yaml:"functions,omitempty" json:"functions,omitempty"`
}

// Metrics returns the effective thresholds keyed by metric name; unset metrics default to 100.
func (t Thresholds) Metrics() map[string]float64 {
	out := map[string]float64{"lines": 100, "functions": 100}
	if t.Lines != nil {
		out["lines"] = *t.Lines
	}
	if t.Functions != nil {
		out["functions"] = *t.Functions
	}
	return out
}

type Remote struct {
	Linear struct {
		Endpoint  string `yaml:"endpoint" json:"endpoint"`
		APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`
	} `yaml:"linear" json:"linear"`
}

type Server struct {
	Addr         string `yaml:"addr" json:"addr"`
	BasePath     string `yaml:"base_path" json:"base_path"`
	JWTSecretEnv string `yaml:"jwt_secret_env" json:"jwt_secret_env"`
}

const (
	CoverageIstanbul = "istanbul"
	CoverageLCOV     = "lcov"
)

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with stl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := Load(workspace)
	if err == nil {
		return cfg, nil
	}
	if _, statErr := os.Stat(Path(workspace)); os.IsNotExist(statErr) {
		return Default(filepath.Base(absOrSelf(workspace))), nil
	}
	return nil, err
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if c.TCR.FailureThreshold < 1 {
		return fmt.Errorf("config.tcr.failure_threshold must be >= 1")
	}
	if len(c.TCR.Targets) == 0 {
		return fmt.Errorf("config.tcr.targets must define at least one target")
	}
	for _, name := range c.TargetNames() {
		t := c.TCR.Targets[name]
		if len(t.Paths) == 0 {
			return fmt.Errorf("target %s has no paths", name)
		}
		if strings.TrimSpace(t.TestCommand) == "" {
			return fmt.Errorf("target %s has no test_command", name)
		}
		switch t.Coverage.Format {
		case CoverageIstanbul, CoverageLCOV:
		default:
			return fmt.Errorf("target %s has unknown coverage format %q (valid: istanbul, lcov)", name, t.Coverage.Format)
		}
		if t.Coverage.Path == "" {
			return fmt.Errorf("target %s has no coverage.path", name)
		}
		for metric, v := range t.Thresholds.Metrics() {
			if v < 0 || v > 100 {
				return fmt.Errorf("target %s threshold %s must be within 0..100", name, metric)
			}
		}
	}
	for _, name := range c.Validators.Disabled {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("config.validators.disabled contains an empty name")
		}
	}
	return nil
}

// TargetNames returns target names in deterministic order.
func (c *Config) TargetNames() []string {
	names := make([]string, 0, len(c.TCR.Targets))
	for name := range c.TCR.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidatorDisabled reports whether the named rule is switched off.
func (c *Config) ValidatorDisabled(name string) bool {
	for _, d := range c.Validators.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID)
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(GenerateDefault(projectID)), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills sections omitted from a partial file.
func (c *Config) applyDefaults() {
	def := Default(c.Project.ID)
	if c.TCR.FailureThreshold == 0 {
		c.TCR.FailureThreshold = def.TCR.FailureThreshold
	}
	if c.TCR.CommitPrefix == "" {
		c.TCR.CommitPrefix = def.TCR.CommitPrefix
	}
	if len(c.TCR.Targets) == 0 {
		c.TCR.Targets = def.TCR.Targets
	}
	if c.Remote.Linear.Endpoint == "" {
		c.Remote.Linear.Endpoint = def.Remote.Linear.Endpoint
	}
	if c.Remote.Linear.APIKeyEnv == "" {
		c.Remote.Linear.APIKeyEnv = def.Remote.Linear.APIKeyEnv
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = def.Server.BasePath
	}
	if c.Server.JWTSecretEnv == "" {
		c.Server.JWTSecretEnv = def.Server.JWTSecretEnv
	}
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

func absOrSelf(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

const defaultTemplate = `project:
  id: %s

validators:
  disabled: []

tcr:
  failure_threshold: 5
  commit_prefix: tcr
  targets:
    frontend:
      paths: [src/]
      extensions: [.ts, .tsx, .js, .jsx, .svelte, .css]
      dir: .
      test_command: bun run test
      coverage_command: bun run test --coverage --coverage.reporter=json-summary
      coverage:
        format: istanbul
        path: coverage/coverage-summary.json
      thresholds:
        lines: 100
        functions: 100
    backend:
      paths: [src-tauri/]
      extensions: [.rs]
      dir: src-tauri
      test_command: cargo test
      coverage_command: cargo llvm-cov --lcov --output-path target/lcov.info
      coverage:
        format: lcov
        path: target/lcov.info
      thresholds:
        lines: 100
        functions: 100

remote:
  linear:
    endpoint: https://api.linear.app/graphql
    api_key_env: LINEAR_API_KEY

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  jwt_secret_env: STAGELINE_JWT_SECRET
`
