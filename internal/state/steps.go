package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// Mode is how a step execution talks to the generation backend.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// Step is one execution of a task.
type Step struct {
	ID          string           `json:"id"`
	TaskID      string           `json:"task_id"`
	State       models.StepState `json:"state"`
	Mode        Mode             `json:"mode"`
	ChunksDone  int              `json:"chunks_done"`
	ChunksTotal int              `json:"chunks_total"`
	Error       string           `json:"error,omitempty"`
	ErrorKind   string           `json:"error_kind,omitempty"`
	Recoverable bool             `json:"recoverable"`
	StartedAt   time.Time        `json:"started_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ManualProgress tracks which chunk a manual step expects next.
type ManualProgress struct {
	TaskID      string    `json:"task_id"`
	StepID      string    `json:"step_id"`
	NextChunk   int       `json:"next_chunk"`
	TotalChunks int       `json:"total_chunks"`
	Correction  string    `json:"correction,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateStep records a new step execution.
func (db *DB) CreateStep(s *Step) error {
	_, err := db.Exec(`
		INSERT INTO steps (id, task_id, state, mode, chunks_done, chunks_total, error, error_kind, recoverable, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.TaskID, string(s.State), string(s.Mode), s.ChunksDone, s.ChunksTotal,
		nullString(s.Error), nullString(s.ErrorKind), boolToInt(s.Recoverable),
		formatTime(s.StartedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create step: %w", err)
	}
	return nil
}

// UpdateStep updates a step execution.
func (db *DB) UpdateStep(s *Step) error {
	_, err := db.Exec(`
		UPDATE steps SET state = ?, mode = ?, chunks_done = ?, chunks_total = ?, error = ?, error_kind = ?, recoverable = ?, updated_at = ?
		WHERE id = ?
	`, string(s.State), string(s.Mode), s.ChunksDone, s.ChunksTotal,
		nullString(s.Error), nullString(s.ErrorKind), boolToInt(s.Recoverable),
		formatTime(s.UpdatedAt), s.ID)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	return nil
}

// GetStep retrieves a step by id. It returns nil when no row exists.
func (db *DB) GetStep(id string) (*Step, error) {
	row := db.QueryRow(`
		SELECT id, task_id, state, mode, chunks_done, chunks_total, error, error_kind, recoverable, started_at, updated_at
		FROM steps WHERE id = ?
	`, id)
	s, err := scanStep(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get step: %w", err)
	}
	return s, nil
}

// LatestSteps returns the most recent execution of every task that has one.
func (db *DB) LatestSteps() (map[string]*Step, error) {
	return db.reduceSteps(func(_, _ *Step) bool { return true })
}

// EffectiveSteps returns the execution that determines each task's
// standing. See Supersedes.
func (db *DB) EffectiveSteps() (map[string]*Step, error) {
	return db.reduceSteps(Supersedes)
}

// Supersedes reports whether next replaces prev as the execution that
// determines a task's standing. A failed execution that committed no chunk
// left the store as it was, so the one before it still holds.
func Supersedes(prev, next *Step) bool {
	return prev == nil || next.State != models.StepFailed || next.ChunksDone > 0
}

func (db *DB) reduceSteps(replace func(prev, next *Step) bool) (map[string]*Step, error) {
	rows, err := db.Query(`
		SELECT id, task_id, state, mode, chunks_done, chunks_total, error, error_kind, recoverable, started_at, updated_at
		FROM steps ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]*Step)
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if replace(latest[s.TaskID], s) {
			latest[s.TaskID] = s
		}
	}
	return latest, rows.Err()
}

// ListStepsByState returns steps currently in any of the given states.
func (db *DB) ListStepsByState(states ...models.StepState) ([]Step, error) {
	all, err := db.LatestSteps()
	if err != nil {
		return nil, err
	}
	want := make(map[models.StepState]bool, len(states))
	for _, st := range states {
		want[st] = true
	}
	var out []Step
	for _, s := range all {
		if want[s.State] {
			out = append(out, *s)
		}
	}
	return out, nil
}

// PutManualProgress inserts or replaces the manual progress of a task.
func (db *DB) PutManualProgress(p *ManualProgress) error {
	_, err := db.Exec(`
		INSERT INTO manual_progress (task_id, step_id, next_chunk, total_chunks, correction, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			step_id = excluded.step_id,
			next_chunk = excluded.next_chunk,
			total_chunks = excluded.total_chunks,
			correction = excluded.correction,
			updated_at = excluded.updated_at
	`, p.TaskID, p.StepID, p.NextChunk, p.TotalChunks, nullString(p.Correction), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put manual progress: %w", err)
	}
	return nil
}

// GetManualProgress returns the manual progress of a task, or nil.
func (db *DB) GetManualProgress(taskID string) (*ManualProgress, error) {
	row := db.QueryRow(`
		SELECT task_id, step_id, next_chunk, total_chunks, correction, updated_at
		FROM manual_progress WHERE task_id = ?
	`, taskID)

	var p ManualProgress
	var correction sql.NullString
	var updatedAt string
	err := row.Scan(&p.TaskID, &p.StepID, &p.NextChunk, &p.TotalChunks, &correction, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get manual progress: %w", err)
	}
	p.Correction = correction.String
	p.UpdatedAt, _ = parseTime(updatedAt)
	return &p, nil
}

// DeleteManualProgress removes the manual progress of a task.
func (db *DB) DeleteManualProgress(taskID string) error {
	if _, err := db.Exec(`DELETE FROM manual_progress WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete manual progress: %w", err)
	}
	return nil
}

func scanStep(r rowScanner) (*Step, error) {
	var s Step
	var state, mode, startedAt, updatedAt string
	var errMsg, errKind sql.NullString
	var recoverable int
	if err := r.Scan(&s.ID, &s.TaskID, &state, &mode, &s.ChunksDone, &s.ChunksTotal,
		&errMsg, &errKind, &recoverable, &startedAt, &updatedAt); err != nil {
		return nil, err
	}
	s.State = models.StepState(state)
	s.Mode = Mode(mode)
	s.Error = errMsg.String
	s.ErrorKind = errKind.String
	s.Recoverable = recoverable != 0
	s.StartedAt, _ = parseTime(startedAt)
	s.UpdatedAt, _ = parseTime(updatedAt)
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
