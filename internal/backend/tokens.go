package backend

import (
	"sort"
	"sync"
)

// Usage is the token count of one model.
type Usage struct {
	Model        string
	Calls        int
	InputTokens  int64
	OutputTokens int64
}

// TokenTracker tracks token usage across API calls, per model.
type TokenTracker struct {
	mu      sync.Mutex
	byModel map[string]*Usage
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{byModel: make(map[string]*Usage)}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(model string, input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.byModel[model]
	if !ok {
		u = &Usage{Model: model}
		t.byModel[model] = u
	}
	u.Calls++
	u.InputTokens += input
	u.OutputTokens += output
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, u := range t.byModel {
		input += u.InputTokens
		output += u.OutputTokens
	}
	return input, output
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, u := range t.byModel {
		n += u.Calls
	}
	return n
}

// ByModel returns per-model usage sorted by model name.
func (t *TokenTracker) ByModel() []Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Usage, 0, len(t.byModel))
	for _, u := range t.byModel {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Reset clears all tracked token usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byModel = make(map[string]*Usage)
}
