package models

// StepState represents the state of one AgentTask execution.
type StepState string

const (
	// StepPending indicates the execution has not started.
	StepPending StepState = "pending"
	// StepRunning indicates chunks are being prepared and sent to the backend.
	StepRunning StepState = "running"
	// StepAwaitingValidation indicates a raw response is being validated and merged.
	StepAwaitingValidation StepState = "awaiting-validation"
	// StepCommitted indicates every chunk was merged into the entity store.
	StepCommitted StepState = "committed"
	// StepFailed indicates the execution stopped before all chunks were merged.
	StepFailed StepState = "failed"
)

// Valid returns true if the state is a known value.
func (s StepState) Valid() bool {
	switch s {
	case StepPending, StepRunning, StepAwaitingValidation, StepCommitted, StepFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true for committed and failed.
func (s StepState) Terminal() bool {
	return s == StepCommitted || s == StepFailed
}

// CanTransition reports whether an execution may move from s to next.
// Chunked executions bounce between running and awaiting-validation once per chunk.
func (s StepState) CanTransition(next StepState) bool {
	switch s {
	case StepPending:
		return next == StepRunning
	case StepRunning:
		return next == StepAwaitingValidation || next == StepFailed
	case StepAwaitingValidation:
		return next == StepRunning || next == StepCommitted || next == StepFailed
	default:
		return false
	}
}
