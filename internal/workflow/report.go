package workflow

import (
	"github.com/gumaertl2/PPT-sub001/internal/resolve"
	"github.com/gumaertl2/PPT-sub001/internal/state"
	"github.com/gumaertl2/PPT-sub001/internal/store"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// Report is the outcome of one task execution.
type Report struct {
	Task   string     `json:"task"`
	StepID string     `json:"step_id,omitempty"`
	Mode   state.Mode `json:"mode"`
	// State is the final state; pending when the task never started.
	State       models.StepState    `json:"state"`
	ChunksDone  int                 `json:"chunks_done"`
	ChunksTotal int                 `json:"chunks_total"`
	Merges      []store.MergeRecord `json:"merges,omitempty"`
	Warnings    []resolve.Warning   `json:"warnings,omitempty"`
	// Discarded lists ids retired by a correction run.
	Discarded    []string `json:"discarded,omitempty"`
	Canceled     bool     `json:"canceled,omitempty"`
	InputTokens  int64    `json:"input_tokens,omitempty"`
	OutputTokens int64    `json:"output_tokens,omitempty"`
	Err          error    `json:"-"`
}

// Partial reports whether some but not all chunks were committed.
func (r *Report) Partial() bool {
	return r.ChunksDone > 0 && r.ChunksDone < r.ChunksTotal
}

// Count returns the number of merges with the given action.
func (r *Report) Count(a store.Action) int {
	n := 0
	for _, m := range r.Merges {
		if m.Action == a {
			n++
		}
	}
	return n
}

func (r *Report) add(res resolve.Result) {
	r.Merges = append(r.Merges, res.Merges...)
	r.Warnings = append(r.Warnings, res.Warnings...)
}
