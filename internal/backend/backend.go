// Package backend talks to the generation models. Every backend takes a
// system/user prompt pair and returns the raw response text; errors are
// classified into failure kinds so the workflow can decide what to retry.
package backend

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"go.uber.org/zap"

	"github.com/gumaertl2/PPT-sub001/internal/config"
	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// Request is one generation call.
type Request struct {
	Task   string
	Chunk  int
	System string
	User   string
	// Schema is the response contract; backends that support structured
	// output pass it through.
	Schema *jsonschema.Schema
	Tier   models.Tier
}

// Response is the raw model output of one call.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Invoker performs generation calls.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function to the Invoker interface.
type Func func(ctx context.Context, req Request) (Response, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// ModelResolver maps a tier to a concrete model name.
type ModelResolver func(tier models.Tier) string

// New builds the invoker configured in cfg, wrapped with pacing, retries
// and tier fallback. The manual provider has no invoker; it returns nil.
func New(ctx context.Context, cfg *config.Config, tracker *TokenTracker, log *zap.Logger) (Invoker, error) {
	if log == nil {
		log = zap.NewNop()
	}
	provider := cfg.Backend.Provider
	resolve := func(tier models.Tier) string { return cfg.ModelFor(tier, provider) }

	var inner Invoker
	switch provider {
	case config.ProviderManual:
		return nil, nil
	case config.ProviderAnthropic:
		key, err := config.GetAPIKey(cfg, provider)
		if err != nil && !cfg.Backend.Anthropic.UseBedrock {
			return nil, failure.Wrap(failure.AuthError, err, "anthropic credentials")
		}
		a, err := NewAnthropic(ctx, AnthropicConfig{
			APIKey:     key,
			UseBedrock: cfg.Backend.Anthropic.UseBedrock,
			AWSRegion:  cfg.Backend.Anthropic.AWSRegion,
			AWSProfile: cfg.Backend.Anthropic.AWSProfile,
			MaxTokens:  int64(cfg.Backend.MaxTokens),
			Models:     resolve,
		}, tracker)
		if err != nil {
			return nil, err
		}
		inner = a
	case config.ProviderGemini:
		key, err := config.GetAPIKey(cfg, provider)
		if err != nil {
			return nil, failure.Wrap(failure.AuthError, err, "gemini credentials")
		}
		g, err := NewGemini(ctx, GeminiConfig{
			APIKey:    key,
			MaxTokens: int32(cfg.Backend.MaxTokens),
			Models:    resolve,
		}, tracker)
		if err != nil {
			return nil, err
		}
		inner = g
	default:
		return nil, fmt.Errorf("unknown backend provider %q", provider)
	}

	return NewRetrying(inner, RetryConfig{
		MaxRetries:        cfg.Backend.MaxRetries,
		InitialBackoff:    cfg.Backend.InitialBackoff,
		MaxBackoff:        cfg.Backend.MaxBackoff,
		RequestsPerMinute: cfg.Backend.RequestsPerMinute,
		Fallback:          cfg.FallbackTier,
	}, log), nil
}
