package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/genai"

	"github.com/gumaertl2/PPT-sub001/internal/failure"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		errType string
		message string
		want    failure.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, "", "", failure.AuthError},
		{"anthropic auth type", 400, "authentication_error", "invalid x-api-key", failure.AuthError},
		{"gemini bad key", 400, "INVALID_ARGUMENT", "API key not valid. Please pass a valid API key.", failure.AuthError},
		{"rate limit", http.StatusTooManyRequests, "rate_limit_error", "", failure.RateLimited},
		{"gemini exhausted", http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", "Quota exceeded for requests per minute", failure.RateLimited},
		{"gemini daily quota", http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", "Quota exceeded for requests per day", failure.QuotaExceeded},
		{"credit balance", 400, "invalid_request_error", "Your credit balance is too low", failure.QuotaExceeded},
		{"overloaded", 529, "overloaded_error", "Overloaded", failure.BackendOverloaded},
		{"unavailable", http.StatusServiceUnavailable, "UNAVAILABLE", "", failure.BackendOverloaded},
		{"bad request", 400, "invalid_request_error", "max_tokens too large", failure.General},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyStatus(tt.status, tt.errType, tt.message); got != tt.want {
				t.Errorf("ClassifyStatus = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}

	classified := failure.New(failure.AuthError, "bad key")
	if got := Classify(classified); got != error(classified) {
		t.Errorf("classified error should pass through, got %v", got)
	}

	if got := Classify(context.Canceled); !errors.Is(got, context.Canceled) || failure.KindOf(got) != failure.General {
		t.Errorf("context errors should pass through, got %v", got)
	}

	gerr := genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "Resource has been exhausted"}
	got := Classify(fmt.Errorf("generate: %w", gerr))
	if failure.KindOf(got) != failure.RateLimited {
		t.Errorf("gemini 429 kind = %v, want rate_limited", failure.KindOf(got))
	}

	got = Classify(errors.New("boom"))
	if failure.KindOf(got) != failure.General {
		t.Errorf("plain error kind = %v, want general", failure.KindOf(got))
	}
}
