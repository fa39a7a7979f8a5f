package failure

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := New(RateLimited, "slow down")
	wrapped := fmt.Errorf("invoke: %w", base)

	if got := KindOf(wrapped); got != RateLimited {
		t.Errorf("KindOf = %v, want %v", got, RateLimited)
	}
	if got := KindOf(errors.New("plain")); got != General {
		t.Errorf("KindOf(plain) = %v, want general", got)
	}
	if KindOf(nil) != General {
		t.Error("KindOf(nil) should be general")
	}
}

func TestPropagationFlags(t *testing.T) {
	tests := []struct {
		kind        Kind
		recoverable bool
		fatal       bool
	}{
		{RateLimited, true, false},
		{BackendOverloaded, true, false},
		{AuthError, false, true},
		{QuotaExceeded, false, true},
		{ValidationFailed, false, false},
		{ResolutionAmbiguous, false, false},
		{MissingDependency, false, false},
		{General, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := New(tt.kind, "x")
			if IsRecoverable(err) != tt.recoverable {
				t.Errorf("IsRecoverable = %v, want %v", !tt.recoverable, tt.recoverable)
			}
			if IsFatalForRun(err) != tt.fatal {
				t.Errorf("IsFatalForRun = %v, want %v", !tt.fatal, tt.fatal)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	err := Wrap(ValidationFailed, errors.New("unexpected EOF"), "parse response").At("sightsEnricher", 2)
	want := "validation_failed [sightsEnricher chunk 3]: parse response: unexpected EOF"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, err.Err) {
		t.Error("Unwrap should expose the cause")
	}
	if Wrap(General, nil, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}
