// Package config provides API key management utilities.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured for the selected provider.
var ErrNoAPIKey = errors.New("no API key configured")

// providerEnv lists the environment variables consulted per provider, in order.
var providerEnv = map[string][]string{
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// GetAPIKey returns the API key for a provider.
// It checks in order: environment variables, config file.
func GetAPIKey(cfg *Config, provider string) (string, error) {
	for _, name := range providerEnv[provider] {
		if key := os.Getenv(name); key != "" {
			return key, nil
		}
	}

	if key := configuredKey(cfg, provider); key != "" {
		return key, nil
	}

	return "", fmt.Errorf("%w for %s", ErrNoAPIKey, provider)
}

func configuredKey(cfg *Config, provider string) string {
	if cfg == nil {
		return ""
	}
	var raw string
	switch provider {
	case ProviderAnthropic:
		raw = cfg.Backend.Anthropic.APIKey
	case ProviderGemini:
		raw = cfg.Backend.Gemini.APIKey
	}
	key := os.ExpandEnv(raw)
	if key == "" || strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// ValidateAPIKey performs basic format validation on an API key.
// It does not verify the key with the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	switch provider {
	case ProviderAnthropic:
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid API key format: expected 'sk-ant-' prefix")
		}
	case ProviderGemini:
		if strings.ContainsAny(key, " \t\n") {
			return errors.New("invalid API key format: contains whitespace")
		}
	}

	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the provider's API key was sourced from.
func GetAPIKeySource(cfg *Config, provider string) KeySource {
	for _, name := range providerEnv[provider] {
		if os.Getenv(name) != "" {
			return KeySourceEnv
		}
	}
	if configuredKey(cfg, provider) != "" {
		return KeySourceConfig
	}
	return KeySourceNone
}
