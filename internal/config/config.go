// Package config handles configuration loading and management for ppt.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// Provider names accepted in backend.provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderManual    = "manual"
)

// Store drivers accepted in store.driver.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// Config holds all configuration for ppt.
type Config struct {
	Backend BackendConfig         `mapstructure:"backend"`
	Tiers   map[string]TierConfig `mapstructure:"tiers"`
	Tasks   map[string]TaskConfig `mapstructure:"tasks"`
	Store   StoreConfig           `mapstructure:"store"`
	Resolve ResolveConfig         `mapstructure:"resolve"`
	Logging LoggingConfig         `mapstructure:"logging"`
}

// BackendConfig holds generation backend settings.
type BackendConfig struct {
	// Provider is anthropic, gemini or manual.
	Provider  string          `mapstructure:"provider"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	// MaxTokens caps the response length of a single call.
	MaxTokens int `mapstructure:"max_tokens"`
	// RequestsPerMinute paces backend calls. Zero disables pacing.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	// MaxRetries is the number of retries for rate-limited or overloaded calls.
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	// InboxDir is where manual responses are dropped and prompts are written.
	InboxDir string `mapstructure:"inbox_dir"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// TierConfig maps a model tier to concrete models per provider.
type TierConfig struct {
	Anthropic string `mapstructure:"anthropic"`
	Gemini    string `mapstructure:"gemini"`
	// Fallback is the tier to escalate to when this tier stays rate limited.
	Fallback string `mapstructure:"fallback"`
}

// TaskConfig holds per-task overrides. Nil fields keep the catalog default.
type TaskConfig struct {
	AutoChunkSize   *int   `mapstructure:"auto_chunk_size"`
	ManualChunkSize *int   `mapstructure:"manual_chunk_size"`
	ModelTier       string `mapstructure:"model_tier"`
}

// StoreConfig holds entity store persistence settings.
type StoreConfig struct {
	// Path is the SQLite database file. Empty keeps the store in memory.
	Path string `mapstructure:"path"`
	// Driver is sqlite (pure Go) or sqlite3 (cgo).
	Driver string `mapstructure:"driver"`
}

// ResolveConfig holds identity-resolution settings.
type ResolveConfig struct {
	// MinMatchLength is the shortest normalized name allowed to substring-match.
	MinMatchLength int `mapstructure:"min_match_length"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	JSON  bool   `mapstructure:"json"`
}

// ModelFor returns the model configured for a tier and provider.
func (c *Config) ModelFor(tier models.Tier, provider string) string {
	tc, ok := c.Tiers[string(tier)]
	if !ok {
		return ""
	}
	switch provider {
	case ProviderGemini:
		return tc.Gemini
	default:
		return tc.Anthropic
	}
}

// FallbackTier returns the tier to escalate to, or "" if none.
func (c *Config) FallbackTier(tier models.Tier) models.Tier {
	tc, ok := c.Tiers[string(tier)]
	if !ok || tc.Fallback == "" || tc.Fallback == string(tier) {
		return ""
	}
	return models.Tier(tc.Fallback)
}

// TaskOverride returns the overrides for a task id. Viper lowercases map keys,
// so the lookup is case-insensitive.
func (c *Config) TaskOverride(taskID string) (TaskConfig, bool) {
	if tc, ok := c.Tasks[taskID]; ok {
		return tc, true
	}
	tc, ok := c.Tasks[strings.ToLower(taskID)]
	return tc, ok
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Backend.Provider {
	case ProviderAnthropic, ProviderGemini, ProviderManual:
	default:
		return fmt.Errorf("backend.provider: unknown provider %q", c.Backend.Provider)
	}
	switch c.Store.Driver {
	case DriverModernc, DriverCgo:
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	for name, tc := range c.Tiers {
		if !models.Tier(name).Valid() {
			return fmt.Errorf("tiers: unknown tier %q", name)
		}
		if tc.Fallback != "" && !models.Tier(tc.Fallback).Valid() {
			return fmt.Errorf("tiers.%s.fallback: unknown tier %q", name, tc.Fallback)
		}
	}
	for id, tc := range c.Tasks {
		if tc.ModelTier != "" && !models.Tier(tc.ModelTier).Valid() {
			return fmt.Errorf("tasks.%s.model_tier: unknown tier %q", id, tc.ModelTier)
		}
	}
	return nil
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, GEMINI_API_KEY, PPT_*)
// 2. Project config (.ppt.yaml in current directory or parent)
// 3. User config (~/.config/ppt/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("PPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("backend.anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("backend.gemini.api_key", "GEMINI_API_KEY", "GOOGLE_API_KEY")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Backend.Anthropic.APIKey = expandEnv(cfg.Backend.Anthropic.APIKey)
	cfg.Backend.Gemini.APIKey = expandEnv(cfg.Backend.Gemini.APIKey)
	cfg.Store.Path = expandEnv(cfg.Store.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the current configuration to the user config file.
// API keys are not written; they belong in the environment.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveTo(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveTo writes the configuration to path.
func SaveTo(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend.provider", cfg.Backend.Provider)
	v.Set("backend.anthropic.use_bedrock", cfg.Backend.Anthropic.UseBedrock)
	v.Set("backend.anthropic.aws_region", cfg.Backend.Anthropic.AWSRegion)
	v.Set("backend.anthropic.aws_profile", cfg.Backend.Anthropic.AWSProfile)
	v.Set("backend.max_tokens", cfg.Backend.MaxTokens)
	v.Set("backend.requests_per_minute", cfg.Backend.RequestsPerMinute)
	v.Set("backend.max_retries", cfg.Backend.MaxRetries)
	v.Set("backend.initial_backoff", cfg.Backend.InitialBackoff.String())
	v.Set("backend.max_backoff", cfg.Backend.MaxBackoff.String())
	v.Set("backend.inbox_dir", cfg.Backend.InboxDir)
	for name, tc := range cfg.Tiers {
		v.Set("tiers."+name+".anthropic", tc.Anthropic)
		v.Set("tiers."+name+".gemini", tc.Gemini)
		v.Set("tiers."+name+".fallback", tc.Fallback)
	}
	v.Set("store.path", cfg.Store.Path)
	v.Set("store.driver", cfg.Store.Driver)
	v.Set("resolve.min_match_length", cfg.Resolve.MinMatchLength)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.json", cfg.Logging.JSON)

	return v.WriteConfigAs(path)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("backend.provider", d.Backend.Provider)
	v.SetDefault("backend.anthropic.api_key", "")
	v.SetDefault("backend.anthropic.use_bedrock", false)
	v.SetDefault("backend.anthropic.aws_region", "")
	v.SetDefault("backend.anthropic.aws_profile", "")
	v.SetDefault("backend.gemini.api_key", "")
	v.SetDefault("backend.max_tokens", d.Backend.MaxTokens)
	v.SetDefault("backend.requests_per_minute", d.Backend.RequestsPerMinute)
	v.SetDefault("backend.max_retries", d.Backend.MaxRetries)
	v.SetDefault("backend.initial_backoff", d.Backend.InitialBackoff.String())
	v.SetDefault("backend.max_backoff", d.Backend.MaxBackoff.String())
	v.SetDefault("backend.inbox_dir", d.Backend.InboxDir)

	for name, tc := range d.Tiers {
		v.SetDefault("tiers."+name+".anthropic", tc.Anthropic)
		v.SetDefault("tiers."+name+".gemini", tc.Gemini)
		v.SetDefault("tiers."+name+".fallback", tc.Fallback)
	}

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("resolve.min_match_length", d.Resolve.MinMatchLength)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.json", d.Logging.JSON)
}

// getUserConfigDir returns the XDG config directory for ppt.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ppt")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "ppt")
	}
	return filepath.Join(home, ".config", "ppt")
}

// findProjectConfig searches for .ppt.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".ppt.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Provider:          ProviderAnthropic,
			MaxTokens:         8192,
			RequestsPerMinute: 30,
			MaxRetries:        4,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        time.Minute,
			InboxDir:          filepath.Join(".ppt", "inbox"),
		},
		Tiers: map[string]TierConfig{
			string(models.TierFast): {
				Anthropic: "claude-haiku-4-5-20251001",
				Gemini:    "gemini-2.5-flash",
			},
			string(models.TierBalanced): {
				Anthropic: "claude-sonnet-4-20250514",
				Gemini:    "gemini-2.5-flash",
				Fallback:  string(models.TierFast),
			},
			string(models.TierDeep): {
				Anthropic: "claude-sonnet-4-5-20250929",
				Gemini:    "gemini-2.5-pro",
				Fallback:  string(models.TierBalanced),
			},
		},
		Tasks: map[string]TaskConfig{},
		Store: StoreConfig{
			Path:   filepath.Join(".ppt", "entities.db"),
			Driver: DriverModernc,
		},
		Resolve: ResolveConfig{
			MinMatchLength: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(".ppt", "logs", "ppt.log"),
		},
	}
}
