// Package workflow runs agent tasks: it enforces task dependencies, drives
// each execution through its state machine, threads chunks through the
// backend, validator and result processor, and supports correction runs,
// cancellation and the manual copy-paste path.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gumaertl2/PPT-sub001/internal/backend"
	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/internal/resolve"
	"github.com/gumaertl2/PPT-sub001/internal/state"
	"github.com/gumaertl2/PPT-sub001/internal/store"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// ErrBusy is returned when another task is already running.
var ErrBusy = errors.New("another task is running")

// Orchestrator runs agent tasks one at a time against one entity store.
type Orchestrator struct {
	registry *tasks.Registry
	store    *store.Store
	req      *models.TripRequest

	proc        *resolve.Processor
	invoker     backend.Invoker
	steps       StepStore
	events      *EventEmitter
	cancels     *cancelFlags
	cancelCheck func(taskID string) bool
	log         *zap.Logger
	now         func() time.Time

	runMu sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithInvoker sets the generation backend used by Run, RunAll and Correct.
func WithInvoker(inv backend.Invoker) Option {
	return func(o *Orchestrator) { o.invoker = inv }
}

// WithSteps persists step executions, normally in the project database.
func WithSteps(s StepStore) Option {
	return func(o *Orchestrator) { o.steps = s }
}

// WithEvents sets the event emitter.
func WithEvents(e *EventEmitter) Option {
	return func(o *Orchestrator) { o.events = e }
}

// WithProcessor replaces the default result processor.
func WithProcessor(p *resolve.Processor) Option {
	return func(o *Orchestrator) { o.proc = p }
}

// WithCancelCheck adds an external cancel source, polled between chunks.
func WithCancelCheck(fn func(taskID string) bool) Option {
	return func(o *Orchestrator) { o.cancelCheck = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator over st for one trip request.
func New(reg *tasks.Registry, st *store.Store, req *models.TripRequest, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: reg,
		store:    st,
		req:      req,
		cancels:  newCancelFlags(),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.proc == nil {
		o.proc = resolve.New(st, resolve.WithLogger(o.log))
	}
	if o.steps == nil {
		o.steps = newMemorySteps()
	}
	return o
}

// Cancel asks the running execution of taskID to stop before its next
// chunk. An empty taskID cancels whatever runs. Committed chunks stay.
func (o *Orchestrator) Cancel(taskID string) {
	o.cancels.set(taskID)
	o.log.Info("cancel requested", zap.String("task", taskID))
}

// TaskStatus is the state snapshot of one task.
type TaskStatus struct {
	Task tasks.AgentTask
	// State is the state of the latest execution, pending if none.
	State models.StepState
	Step  *state.Step
	// Unmet lists dependencies without a committed effective execution.
	Unmet  []string
	Manual *state.ManualProgress
}

// Status returns the state of every task in dependency order.
func (o *Orchestrator) Status() ([]TaskStatus, error) {
	latest, err := o.steps.LatestSteps()
	if err != nil {
		return nil, err
	}
	effective, err := o.steps.EffectiveSteps()
	if err != nil {
		return nil, err
	}
	done := committedSet(effective)

	var out []TaskStatus
	for _, id := range o.registry.Order() {
		t, _ := o.registry.Get(id)
		ts := TaskStatus{Task: t, State: models.StepPending, Unmet: o.registry.Graph().Unmet(id, done)}
		if s, ok := latest[id]; ok {
			ts.Step = s
			ts.State = s.State
		}
		mp, err := o.steps.GetManualProgress(id)
		if err != nil {
			return nil, err
		}
		ts.Manual = mp
		out = append(out, ts)
	}
	return out, nil
}

func committedSet(latest map[string]*state.Step) map[string]bool {
	done := make(map[string]bool, len(latest))
	for id, s := range latest {
		if s.State == models.StepCommitted {
			done[id] = true
		}
	}
	return done
}

func (o *Orchestrator) task(taskID string) (tasks.AgentTask, error) {
	t, ok := o.registry.Get(taskID)
	if !ok {
		return tasks.AgentTask{}, failure.New(failure.General, "unknown task %q", taskID)
	}
	return t, nil
}

// checkDeps fails with MissingDependency unless every dependency of task
// has a committed effective execution.
func (o *Orchestrator) checkDeps(task tasks.AgentTask) error {
	effective, err := o.steps.EffectiveSteps()
	if err != nil {
		return err
	}
	unmet := o.registry.Graph().Unmet(task.ID, committedSet(effective))
	if len(unmet) > 0 {
		return failure.New(failure.MissingDependency, "waiting for %s", strings.Join(unmet, ", ")).At(task.ID, -1)
	}
	return nil
}

// startStep records a new execution and moves it to running.
func (o *Orchestrator) startStep(task tasks.AgentTask, mode state.Mode, total, done int) (*state.Step, error) {
	now := o.now()
	step := &state.Step{
		ID:          uuid.New().String(),
		TaskID:      task.ID,
		State:       models.StepPending,
		Mode:        mode,
		ChunksDone:  done,
		ChunksTotal: total,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.steps.CreateStep(step); err != nil {
		return nil, err
	}
	o.log.Info("step started",
		zap.String("task", task.ID),
		zap.String("step", step.ID),
		zap.String("mode", string(mode)),
		zap.Int("chunks", total))
	if err := o.transition(step, models.StepRunning); err != nil {
		return nil, err
	}
	return step, nil
}

// transition moves step to next, persists it and emits the change.
func (o *Orchestrator) transition(step *state.Step, next models.StepState) error {
	return o.transitionErr(step, next, nil)
}

func (o *Orchestrator) transitionErr(step *state.Step, next models.StepState, cause error) error {
	if !step.State.CanTransition(next) {
		return failure.New(failure.General, "invalid transition %s -> %s", step.State, next).At(step.TaskID, -1)
	}
	step.State = next
	step.UpdatedAt = o.now()
	if err := o.steps.UpdateStep(step); err != nil {
		return err
	}
	o.emit(Event{
		Type:   EventStateChanged,
		TaskID: step.TaskID,
		StepID: step.ID,
		State:  next,
		Chunk:  step.ChunksDone,
		Total:  step.ChunksTotal,
		Error:  cause,
	})
	return nil
}

// fail ends step as failed and records err on it and on the report.
func (o *Orchestrator) fail(step *state.Step, rep *Report, chunk int, err error) (*Report, error) {
	err = scoped(err, step.TaskID, chunk)
	step.Error = err.Error()
	step.ErrorKind = failure.KindOf(err).String()
	step.Recoverable = failure.IsRecoverable(err) || rep.Canceled
	if terr := o.transitionErr(step, models.StepFailed, err); terr != nil {
		o.log.Error("record failed step", zap.String("task", step.TaskID), zap.Error(terr))
	}
	o.log.Warn("step failed",
		zap.String("task", step.TaskID),
		zap.Int("chunk", chunk),
		zap.Int("chunks_done", step.ChunksDone),
		zap.String("kind", step.ErrorKind),
		zap.Error(err))

	rep.State = models.StepFailed
	rep.ChunksDone = step.ChunksDone
	rep.Err = err
	return rep, err
}

// blocked reports a task that never started.
func (o *Orchestrator) blocked(rep *Report, err error) (*Report, error) {
	err = scoped(err, rep.Task, -1)
	o.log.Info("task blocked", zap.String("task", rep.Task), zap.Error(err))
	o.emit(Event{Type: EventStepBlocked, TaskID: rep.Task, State: models.StepPending, Error: err, Message: err.Error()})
	rep.State = models.StepPending
	rep.Err = err
	return rep, err
}

func (o *Orchestrator) emitWarnings(step *state.Step, warnings []resolve.Warning) {
	for _, w := range warnings {
		o.emit(Event{Type: EventWarning, TaskID: step.TaskID, StepID: step.ID, State: step.State, Chunk: w.Chunk, Total: step.ChunksTotal, Message: w.String()})
	}
}

func (o *Orchestrator) emit(e Event) {
	if o.events == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = o.now()
	}
	o.events.Emit(e)
}

// scoped attaches task and chunk to err when it carries none.
func scoped(err error, taskID string, chunk int) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		if fe.Task == "" {
			return fe.At(taskID, chunk)
		}
		return err
	}
	return failure.Wrap(failure.General, err, fmt.Sprintf("%s failed", taskID)).At(taskID, chunk)
}
