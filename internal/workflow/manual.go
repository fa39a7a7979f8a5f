package workflow

import (
	"errors"

	"go.uber.org/zap"

	"github.com/gumaertl2/PPT-sub001/internal/chunk"
	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/internal/prepare"
	"github.com/gumaertl2/PPT-sub001/internal/prompt"
	"github.com/gumaertl2/PPT-sub001/internal/state"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// ErrManualDone is returned by a manual run that has no chunks left.
var ErrManualDone = errors.New("manual run finished")

// ManualRun is a task execution where a human carries each prompt to a
// model and pastes the JSON answer back. Progress is persisted, so the
// prompt and the answer may be handled by different processes.
type ManualRun struct {
	o        *Orchestrator
	task     tasks.AgentTask
	step     *state.Step
	progress *state.ManualProgress
	corr     *Correction
}

// BeginManual starts or resumes the manual execution of taskID. A pending
// manual execution is resumed at its next chunk, including one whose last
// answer failed validation. A non-nil correction always starts afresh.
func (o *Orchestrator) BeginManual(taskID string, corr *Correction) (*ManualRun, error) {
	task, err := o.task(taskID)
	if err != nil {
		return nil, err
	}
	o.runMu.Lock()
	defer o.runMu.Unlock()

	if err := o.checkDeps(task); err != nil {
		_, err = o.blocked(&Report{Task: task.ID}, err)
		return nil, err
	}
	if corr != nil {
		if err := o.checkCorrectable(task, *corr); err != nil {
			return nil, err
		}
	}

	payload, err := o.manualPayload(task, corr)
	if err != nil {
		_, err = o.blocked(&Report{Task: task.ID}, err)
		return nil, err
	}
	total := chunk.Count(payload, task, chunk.Manual)
	if total == 0 {
		_, err = o.blocked(&Report{Task: task.ID}, failure.New(failure.MissingDependency, "nothing to process"))
		return nil, err
	}

	if corr == nil {
		if m, err := o.resumeManual(task, total); m != nil || err != nil {
			return m, err
		}
	}

	if err := o.steps.DeleteManualProgress(task.ID); err != nil {
		return nil, err
	}
	step, err := o.startStep(task, state.ModeManual, total, 0)
	if err != nil {
		return nil, err
	}
	m := &ManualRun{o: o, task: task, step: step, corr: corr, progress: &state.ManualProgress{
		TaskID:      task.ID,
		StepID:      step.ID,
		TotalChunks: total,
	}}
	if corr != nil {
		m.progress.Correction = corr.encode()
	}
	if err := o.transition(step, models.StepAwaitingValidation); err != nil {
		return nil, err
	}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// resumeManual picks up saved progress. It returns nil when there is none
// worth resuming.
func (o *Orchestrator) resumeManual(task tasks.AgentTask, total int) (*ManualRun, error) {
	mp, err := o.steps.GetManualProgress(task.ID)
	if err != nil || mp == nil {
		return nil, err
	}
	if mp.NextChunk >= total {
		return nil, nil
	}
	corr, err := decodeCorrection(mp.Correction)
	if err != nil {
		return nil, err
	}
	step, err := o.steps.GetStep(mp.StepID)
	if err != nil {
		return nil, err
	}

	switch {
	case step != nil && step.State == models.StepAwaitingValidation:
	case step != nil && step.State == models.StepFailed:
		// Earlier chunks stand; continue in a new execution.
		step, err = o.startStep(task, state.ModeManual, total, mp.NextChunk)
		if err != nil {
			return nil, err
		}
		if err := o.transition(step, models.StepAwaitingValidation); err != nil {
			return nil, err
		}
		mp.StepID = step.ID
	default:
		return nil, nil
	}

	mp.TotalChunks = total
	m := &ManualRun{o: o, task: task, step: step, progress: mp, corr: corr}
	if err := m.save(); err != nil {
		return nil, err
	}
	o.log.Info("manual run resumed",
		zap.String("task", task.ID),
		zap.String("step", step.ID),
		zap.Int("next_chunk", mp.NextChunk),
		zap.Int("chunks", total))
	return m, nil
}

func (o *Orchestrator) manualPayload(task tasks.AgentTask, corr *Correction) (prepare.Payload, error) {
	payload, err := prepare.Prepare(task, o.req, o.store)
	if err != nil {
		return nil, err
	}
	if corr != nil {
		payload = payload.WithCorrection(o.correctionContext(corr))
	}
	return payload, nil
}

// Task returns the task id.
func (m *ManualRun) Task() string { return m.task.ID }

// StepID returns the id of the current execution.
func (m *ManualRun) StepID() string { return m.step.ID }

// Chunk returns the zero-based index of the chunk awaiting an answer and the chunk count.
func (m *ManualRun) Chunk() (index, total int) {
	return m.progress.NextChunk, m.progress.TotalChunks
}

// Done reports whether every chunk was committed.
func (m *ManualRun) Done() bool {
	return m.step.State == models.StepCommitted
}

// NextPrompt renders the prompt of the chunk awaiting an answer as one text.
func (m *ManualRun) NextPrompt() (string, error) {
	if m.Done() {
		return "", ErrManualDone
	}
	payload, err := m.o.manualPayload(m.task, m.corr)
	if err != nil {
		return "", scoped(err, m.task.ID, m.progress.NextChunk)
	}
	chunks := chunk.Split(payload, m.task, chunk.Manual)
	if m.progress.NextChunk >= len(chunks) {
		return "", ErrManualDone
	}
	doc, err := prompt.Build(chunks[m.progress.NextChunk].Payload, m.task)
	if err != nil {
		return "", err
	}
	m.o.emit(Event{
		Type:   EventPromptReady,
		TaskID: m.task.ID,
		StepID: m.step.ID,
		State:  m.step.State,
		Chunk:  m.progress.NextChunk,
		Total:  m.progress.TotalChunks,
	})
	return doc.Render(), nil
}

// Submit validates a pasted answer for the pending chunk and commits it.
// A rejected answer fails the execution; BeginManual resumes at the same chunk.
func (m *ManualRun) Submit(raw string) (*Report, error) {
	if m.Done() {
		return nil, ErrManualDone
	}
	if m.step.State != models.StepAwaitingValidation {
		return nil, failure.New(failure.General, "manual run is %s; begin again", m.step.State).At(m.task.ID, -1)
	}
	o := m.o
	o.runMu.Lock()
	defer o.runMu.Unlock()

	index := m.progress.NextChunk
	rep := &Report{
		Task:        m.task.ID,
		StepID:      m.step.ID,
		Mode:        state.ModeManual,
		State:       m.step.State,
		ChunksDone:  m.step.ChunksDone,
		ChunksTotal: m.progress.TotalChunks,
	}

	// The prior output goes with the first accepted answer of a correction.
	cr := newCorrectionRun(m.corr, index > 0)
	if err := o.commitChunk(m.step, rep, m.task, index, raw, cr, nil); err != nil {
		return o.fail(m.step, rep, index, err)
	}
	m.progress.NextChunk++

	if m.progress.NextChunk >= m.progress.TotalChunks {
		if err := o.transition(m.step, models.StepCommitted); err != nil {
			return o.fail(m.step, rep, index, err)
		}
		if err := o.steps.DeleteManualProgress(m.task.ID); err != nil {
			o.log.Warn("clear manual progress", zap.String("task", m.task.ID), zap.Error(err))
		}
		rep.State = models.StepCommitted
		return rep, nil
	}

	if err := o.transition(m.step, models.StepRunning); err != nil {
		return o.fail(m.step, rep, index, err)
	}
	if err := o.transition(m.step, models.StepAwaitingValidation); err != nil {
		return o.fail(m.step, rep, index, err)
	}
	if err := m.save(); err != nil {
		return rep, err
	}
	rep.State = m.step.State
	return rep, nil
}

func (m *ManualRun) save() error {
	m.progress.UpdatedAt = m.o.now()
	return m.o.steps.PutManualProgress(m.progress)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
