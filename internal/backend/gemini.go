package backend

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey    string
	MaxTokens int32
	Models    ModelResolver
}

// Gemini invokes Gemini models with JSON output enforced by the API.
type Gemini struct {
	client    *genai.Client
	maxTokens int32
	models    ModelResolver
	tracker   *TokenTracker
}

const defaultGeminiModel = "gemini-2.5-flash"

// NewGemini creates a Gemini backend using the Gemini Developer API.
func NewGemini(ctx context.Context, cfg GeminiConfig, tracker *TokenTracker) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, failure.New(failure.AuthError, "gemini api key is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, failure.Wrap(failure.General, err, "create gemini client")
	}
	if tracker == nil {
		tracker = NewTokenTracker()
	}
	return &Gemini{
		client:    client,
		maxTokens: cfg.MaxTokens,
		models:    cfg.Models,
		tracker:   tracker,
	}, nil
}

// Model returns the model name used for a tier.
func (g *Gemini) Model(tier models.Tier) string {
	if g.models != nil {
		if m := g.models(tier); m != "" {
			return m
		}
	}
	return defaultGeminiModel
}

// Invoke sends one system/user prompt pair and returns the text response.
func (g *Gemini) Invoke(ctx context.Context, req Request) (Response, error) {
	model := g.Model(req.Tier)
	gc := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if g.maxTokens > 0 {
		gc.MaxOutputTokens = g.maxTokens
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema != nil {
		gc.ResponseJsonSchema = req.Schema
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(req.User), gc)
	if err != nil {
		return Response{}, Classify(err)
	}

	out := Response{Model: model, Text: strings.TrimSpace(resp.Text())}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int64(u.PromptTokenCount)
		out.OutputTokens = int64(u.CandidatesTokenCount)
	}
	g.tracker.Add(model, out.InputTokens, out.OutputTokens)

	if out.Text == "" {
		return Response{}, failure.Wrap(failure.ValidationFailed, errors.New("empty response"), "gemini")
	}
	return out, nil
}
