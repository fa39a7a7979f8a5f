package state

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// InterruptedStep describes an automated step that was still in flight
// when its process exited.
type InterruptedStep struct {
	StepID    string
	TaskID    string
	State     models.StepState
	StartedAt time.Time
}

// RecoveryManager detects and closes out interrupted step executions.
type RecoveryManager struct {
	db  *DB
	log *zap.Logger
}

// NewRecoveryManager creates a new RecoveryManager with the given database.
func NewRecoveryManager(db *DB, log *zap.Logger) *RecoveryManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecoveryManager{db: db, log: log}
}

// CheckForInterrupted lists automated steps left running or awaiting
// validation. Manual steps awaiting a pasted response are not interrupted.
func (rm *RecoveryManager) CheckForInterrupted() ([]InterruptedStep, error) {
	steps, err := rm.db.ListStepsByState(models.StepRunning, models.StepAwaitingValidation)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}

	var out []InterruptedStep
	for _, s := range steps {
		if s.Mode == ModeManual && s.State == models.StepAwaitingValidation {
			continue
		}
		out = append(out, InterruptedStep{
			StepID:    s.ID,
			TaskID:    s.TaskID,
			State:     s.State,
			StartedAt: s.StartedAt,
		})
	}
	return out, nil
}

// Recover marks every interrupted step failed and recoverable. Chunks that
// committed before the interruption stay in the store.
func (rm *RecoveryManager) Recover() (int, error) {
	interrupted, err := rm.CheckForInterrupted()
	if err != nil {
		return 0, err
	}

	for _, in := range interrupted {
		s, err := rm.db.GetStep(in.StepID)
		if err != nil {
			return 0, err
		}
		if s == nil {
			continue
		}
		s.State = models.StepFailed
		s.Error = "interrupted before completion"
		s.ErrorKind = "general"
		s.Recoverable = true
		s.UpdatedAt = time.Now()
		if err := rm.db.UpdateStep(s); err != nil {
			return 0, fmt.Errorf("close step %s: %w", s.ID, err)
		}
		rm.log.Info("closed interrupted step",
			zap.String("task", s.TaskID),
			zap.String("step", s.ID),
			zap.Int("chunks_done", s.ChunksDone),
			zap.Int("chunks_total", s.ChunksTotal))
	}
	return len(interrupted), nil
}
