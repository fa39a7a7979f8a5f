package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	APIKey string
	// UseBedrock routes calls through AWS Bedrock with the default AWS
	// credential chain instead of an API key.
	UseBedrock bool
	AWSRegion  string
	AWSProfile string
	MaxTokens  int64
	Models     ModelResolver
}

// Anthropic invokes Claude models through the Messages API.
type Anthropic struct {
	client    anthropic.Client
	bedrock   bool
	maxTokens int64
	models    ModelResolver
	tracker   *TokenTracker
}

// NewAnthropic creates an Anthropic backend.
func NewAnthropic(ctx context.Context, cfg AnthropicConfig, tracker *TokenTracker) (*Anthropic, error) {
	// Retries are handled by Retrying.
	opts := []option.RequestOption{option.WithMaxRetries(0)}

	if cfg.UseBedrock {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		if cfg.APIKey == "" {
			return nil, failure.New(failure.AuthError, "anthropic api key is not set")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if tracker == nil {
		tracker = NewTokenTracker()
	}

	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		bedrock:   cfg.UseBedrock,
		maxTokens: cfg.MaxTokens,
		models:    cfg.Models,
		tracker:   tracker,
	}, nil
}

// Model returns the model name used for a tier.
func (a *Anthropic) Model(tier models.Tier) anthropic.Model {
	model := anthropic.ModelClaudeSonnet4_20250514
	if a.models != nil {
		if m := a.models(tier); m != "" {
			model = anthropic.Model(m)
		}
	}
	if a.bedrock {
		model = translateModelForBedrock(model)
	}
	return model
}

// Invoke sends one system/user prompt pair and returns the text response.
func (a *Anthropic) Invoke(ctx context.Context, req Request) (Response, error) {
	model := a.Model(req.Tier)
	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, Classify(err)
	}
	a.tracker.Add(string(model), resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	if text.Len() == 0 {
		return Response{}, failure.Wrap(failure.ValidationFailed, errors.New("empty response"), "anthropic")
	}
	return Response{
		Text:         text.String(),
		Model:        string(model),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// translateModelForBedrock converts Anthropic model names to Bedrock
// cross-region inference profiles: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	s := string(model)
	if strings.HasPrefix(s, "us.anthropic.") || strings.HasPrefix(s, "anthropic.") {
		return model
	}
	if strings.HasPrefix(s, "claude-") {
		return anthropic.Model("us.anthropic." + s + "-v1:0")
	}
	return model
}
