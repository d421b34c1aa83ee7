package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/greg-hellings/servicedash/pkg/model"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultAPIBaseURL      = "http://localhost:8080/api"
	DefaultAPITimeout      = 30
	DefaultAnalysisModel   = "gemini-2.5-flash"
	DefaultAnalysisTimeout = 120
	DefaultNoticeDuration  = 4
	DefaultMetricSamples   = 24
)

// Analysis providers accepted in analysis.provider.
const (
	AnalysisProviderGemini = "gemini"
	AnalysisProviderNone   = "none"
)

// Config represents the top-level configuration file structure
type Config struct {
	API       APIConfig                 `yaml:"api" toml:"api"`
	Analysis  AnalysisConfig            `yaml:"analysis" toml:"analysis"`
	Notices   NoticeConfig              `yaml:"notices" toml:"notices"`
	Metrics   MetricsConfig             `yaml:"metrics" toml:"metrics"`
	Logging   LoggingConfig             `yaml:"logging" toml:"logging"`
	Providers map[string]ProviderConfig `yaml:"providers" toml:"providers"`
	Services  []ServiceConfig           `yaml:"services" toml:"services"`
}

// APIConfig points at the dashboard REST API.
type APIConfig struct {
	BaseURL        string `yaml:"base_url" toml:"base_url"`
	Token          string `yaml:"token" toml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// Timeout returns the per-request timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// AnalysisConfig selects and configures the analysis provider.
type AnalysisConfig struct {
	Provider       string `yaml:"provider" toml:"provider"`
	APIKey         string `yaml:"api_key" toml:"api_key"`
	Model          string `yaml:"model" toml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// Timeout returns the maximum duration of a single analysis call.
func (a AnalysisConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// NoticeConfig controls transient operator notices.
type NoticeConfig struct {
	DurationSeconds int `yaml:"duration_seconds" toml:"duration_seconds"`
}

// Duration returns how long a notice stays visible.
func (n NoticeConfig) Duration() time.Duration {
	return time.Duration(n.DurationSeconds) * time.Second
}

// MetricsConfig controls the synthetic resource history.
type MetricsConfig struct {
	Samples int `yaml:"samples" toml:"samples"`
}

// LoggingConfig sets the log level used when no CLI flag overrides it.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"` // debug | info | warn | error
}

// ProviderConfig holds defaults for git-hosted configuration files.
type ProviderConfig struct {
	Token   string `yaml:"token" toml:"token"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
	Owner   string `yaml:"owner" toml:"owner"`
	Ref     string `yaml:"ref" toml:"ref"`
}

// ServiceConfig is a statically declared service.
type ServiceConfig struct {
	Name        string         `yaml:"name" toml:"name"`
	URL         string         `yaml:"url" toml:"url"`
	Port        int            `yaml:"port" toml:"port"`
	Host        string         `yaml:"host" toml:"host"`
	Status      string         `yaml:"status" toml:"status"`
	Uptime      string         `yaml:"uptime" toml:"uptime"`
	CPUUsage    float64        `yaml:"cpu_usage" toml:"cpu_usage"`
	MemoryUsage float64        `yaml:"memory_usage" toml:"memory_usage"`
	Configs     []ConfigSource `yaml:"configs" toml:"configs"`
}

// ConfigSource locates one configuration file. Without a provider the path
// is read from the local filesystem; with one it is fetched from the named
// repository.
type ConfigSource struct {
	Path       string `yaml:"path" toml:"path"`
	Type       string `yaml:"type" toml:"type"`
	Content    string `yaml:"content" toml:"content"`
	Provider   string `yaml:"provider" toml:"provider"`
	Owner      string `yaml:"owner" toml:"owner"`
	Repository string `yaml:"repository" toml:"repository"`
	Ref        string `yaml:"ref" toml:"ref"`
}

// Remote reports whether the file lives in a git hosting provider.
func (c ConfigSource) Remote() bool {
	return c.Provider != ""
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// LoadFromFile reads a YAML or TOML configuration file (chosen by extension)
// and returns the parsed, defaulted and validated Config.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".toml":
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// ApplyDefaults fills unset values and lets config sources inherit their
// provider defaults.
func (c *Config) ApplyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = DefaultAPITimeout
	}
	if c.Analysis.Provider == "" {
		c.Analysis.Provider = AnalysisProviderGemini
	}
	c.Analysis.Provider = strings.ToLower(c.Analysis.Provider)
	if c.Analysis.Model == "" {
		c.Analysis.Model = DefaultAnalysisModel
	}
	if c.Analysis.TimeoutSeconds <= 0 {
		c.Analysis.TimeoutSeconds = DefaultAnalysisTimeout
	}
	if c.Notices.DurationSeconds <= 0 {
		c.Notices.DurationSeconds = DefaultNoticeDuration
	}
	if c.Metrics.Samples <= 0 {
		c.Metrics.Samples = DefaultMetricSamples
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}

	for i := range c.Services {
		svc := &c.Services[i]
		if svc.Status == "" {
			svc.Status = string(model.StatusStopped)
		}
		svc.Status = strings.ToUpper(svc.Status)
		for j := range svc.Configs {
			src := &svc.Configs[j]
			if src.Type == "" {
				src.Type = string(model.DetectConfigType(src.Path))
			}
			src.Type = strings.ToUpper(src.Type)
			if !src.Remote() {
				continue
			}
			src.Provider = strings.ToLower(src.Provider)
			defaults := c.Providers[src.Provider]
			if src.Owner == "" {
				src.Owner = defaults.Owner
			}
			if src.Ref == "" {
				src.Ref = defaults.Ref
			}
		}
	}
}

// Validate checks required fields and closed value sets.
func (c *Config) Validate() error {
	switch c.Analysis.Provider {
	case AnalysisProviderGemini, AnalysisProviderNone:
	default:
		return fmt.Errorf("analysis.provider must be '%s' or '%s', got '%s'",
			AnalysisProviderGemini, AnalysisProviderNone, c.Analysis.Provider)
	}

	seen := make(map[string]int, len(c.Services))
	for i, svc := range c.Services {
		if svc.Name == "" {
			return fmt.Errorf("services[%d].name is required", i)
		}
		if prev, dup := seen[svc.Name]; dup {
			return fmt.Errorf("services[%d].name duplicates services[%d]: %s", i, prev, svc.Name)
		}
		seen[svc.Name] = i
		if !model.Status(svc.Status).Valid() {
			return fmt.Errorf("services[%d].status is invalid: %s", i, svc.Status)
		}
		for j, src := range svc.Configs {
			if src.Path == "" {
				return fmt.Errorf("services[%d].configs[%d].path is required", i, j)
			}
			if !model.ConfigType(src.Type).Valid() {
				return fmt.Errorf("services[%d].configs[%d].type is invalid: %s", i, j, src.Type)
			}
			if !src.Remote() {
				continue
			}
			if src.Provider != "github" && src.Provider != "gitlab" {
				return fmt.Errorf("services[%d].configs[%d].provider must be 'github' or 'gitlab', got '%s'", i, j, src.Provider)
			}
			if src.Owner == "" {
				return fmt.Errorf("services[%d].configs[%d] missing required field 'owner'", i, j)
			}
			if src.Repository == "" {
				return fmt.Errorf("services[%d].configs[%d] missing required field 'repository'", i, j)
			}
		}
	}

	if c.Logging.Level != "" {
		if _, err := ParseLevel(c.Logging.Level); err != nil {
			return err
		}
	}
	return nil
}

// APIToken resolves the dashboard API bearer token.
func (c *Config) APIToken() string {
	return ResolveSecret("API_TOKEN", c.API.Token)
}

// AnalysisKey resolves the analysis provider credential. The bare
// GEMINI_API_KEY and API_KEY variables are honoured as fallbacks.
func (c *Config) AnalysisKey() string {
	if v := ResolveSecret("ANALYSIS_API_KEY", c.Analysis.APIKey); v != "" {
		return v
	}
	for _, name := range []string{"GEMINI_API_KEY", "API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

// ProviderToken resolves the token for a git hosting provider.
func (c *Config) ProviderToken(provider string) string {
	return ResolveSecret(strings.ToUpper(provider)+"_TOKEN", c.Providers[provider].Token)
}

// ResolveSecret returns the value of SERVICEDASH_<name> when set, otherwise
// the configured value.
func ResolveSecret(name, configured string) string {
	if v := strings.TrimSpace(os.Getenv("SERVICEDASH_" + name)); v != "" {
		return v
	}
	return strings.TrimSpace(configured)
}

// RedactToken safely redacts a token for logging purposes.
func RedactToken(tok string) string {
	if tok == "" {
		return ""
	}
	if len(tok) <= 4 {
		return "***"
	}
	return tok[:4] + "***"
}

// ErrUnknownLevel is returned by ParseLevel for unrecognised names.
var ErrUnknownLevel = errors.New("unknown log level")
