package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"

	"github.com/gumaertl2/PPT-sub001/internal/failure"
)

// ClassifyStatus maps an HTTP status and provider error text to a failure kind.
func ClassifyStatus(status int, errType, message string) failure.Kind {
	text := strings.ToLower(errType + " " + message)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		strings.Contains(text, "authentication_error") || strings.Contains(text, "permission_error") ||
		strings.Contains(text, "api key not valid") || strings.Contains(text, "unauthenticated"):
		return failure.AuthError
	case strings.Contains(text, "credit balance") || strings.Contains(text, "billing") ||
		strings.Contains(text, "per day") || strings.Contains(text, "insufficient_quota"):
		return failure.QuotaExceeded
	case status == http.StatusTooManyRequests || strings.Contains(text, "rate_limit") ||
		strings.Contains(text, "resource_exhausted"):
		return failure.RateLimited
	case status == 529 || status == http.StatusServiceUnavailable || status == http.StatusBadGateway ||
		status == http.StatusGatewayTimeout || status == http.StatusInternalServerError ||
		strings.Contains(text, "overloaded"):
		return failure.BackendOverloaded
	default:
		return failure.General
	}
}

// Classify wraps a provider error with its failure kind. Errors that are
// already classified pass through; nil stays nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var aerr *anthropic.Error
	if errors.As(err, &aerr) {
		raw := aerr.RawJSON()
		kind := ClassifyStatus(aerr.StatusCode,
			gjson.Get(raw, "error.type").String(),
			gjson.Get(raw, "error.message").String())
		return failure.Wrap(kind, err, "anthropic")
	}

	var gerr genai.APIError
	if errors.As(err, &gerr) {
		return failure.Wrap(ClassifyStatus(gerr.Code, gerr.Status, gerr.Message), err, "gemini")
	}
	var gerrp *genai.APIError
	if errors.As(err, &gerrp) {
		return failure.Wrap(ClassifyStatus(gerrp.Code, gerrp.Status, gerrp.Message), err, "gemini")
	}

	return failure.Wrap(failure.General, err, "backend call")
}
