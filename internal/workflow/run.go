package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gumaertl2/PPT-sub001/internal/backend"
	"github.com/gumaertl2/PPT-sub001/internal/chunk"
	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/internal/prepare"
	"github.com/gumaertl2/PPT-sub001/internal/prompt"
	"github.com/gumaertl2/PPT-sub001/internal/resolve"
	"github.com/gumaertl2/PPT-sub001/internal/state"
	"github.com/gumaertl2/PPT-sub001/internal/store"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
	"github.com/gumaertl2/PPT-sub001/internal/validate"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// RunOptions tunes one execution.
type RunOptions struct {
	// Tier overrides the task's model tier.
	Tier models.Tier
}

// Run executes one task in automated mode. The report is returned even
// when the execution fails; its error is returned as well.
func (o *Orchestrator) Run(ctx context.Context, taskID string, opts RunOptions) (*Report, error) {
	task, err := o.task(taskID)
	if err != nil {
		return nil, err
	}
	if !o.runMu.TryLock() {
		return nil, ErrBusy
	}
	defer o.runMu.Unlock()
	return o.execute(ctx, task, opts, nil)
}

// RunAll runs every task that has no committed execution yet, in
// dependency order, and stops at the first failure.
func (o *Orchestrator) RunAll(ctx context.Context) ([]*Report, error) {
	effective, err := o.steps.EffectiveSteps()
	if err != nil {
		return nil, err
	}
	var reports []*Report
	for _, id := range o.registry.Order() {
		if s, ok := effective[id]; ok && s.State == models.StepCommitted {
			continue
		}
		rep, err := o.Run(ctx, id, RunOptions{})
		if rep != nil {
			reports = append(reports, rep)
		}
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// Correct re-runs a committed, correctable task. Kept entities stay
// verbatim, the task's other prior output is discarded and at most
// AdditionalVariants new entities are committed.
func (o *Orchestrator) Correct(ctx context.Context, taskID string, corr Correction) (*Report, error) {
	task, err := o.task(taskID)
	if err != nil {
		return nil, err
	}
	if err := o.checkCorrectable(task, corr); err != nil {
		return &Report{Task: task.ID, Mode: state.ModeAuto, State: models.StepPending, Err: err}, err
	}
	if !o.runMu.TryLock() {
		return nil, ErrBusy
	}
	defer o.runMu.Unlock()
	return o.execute(ctx, task, RunOptions{}, &corr)
}

func (o *Orchestrator) execute(ctx context.Context, task tasks.AgentTask, opts RunOptions, corr *Correction) (*Report, error) {
	rep := &Report{Task: task.ID, Mode: state.ModeAuto, State: models.StepPending}
	if o.invoker == nil {
		return o.blocked(rep, failure.New(failure.General, "no generation backend configured; use the manual path"))
	}
	if err := o.checkDeps(task); err != nil {
		return o.blocked(rep, err)
	}
	payload, err := prepare.Prepare(task, o.req, o.store)
	if err != nil {
		return o.blocked(rep, err)
	}
	if corr != nil {
		payload = payload.WithCorrection(o.correctionContext(corr))
	}
	chunks := chunk.Split(payload, task, chunk.Auto)
	if len(chunks) == 0 {
		return o.blocked(rep, failure.New(failure.MissingDependency, "nothing to process"))
	}

	step, err := o.startStep(task, state.ModeAuto, len(chunks), 0)
	if err != nil {
		return rep, err
	}
	rep.StepID = step.ID
	rep.State = step.State
	rep.ChunksTotal = len(chunks)
	defer o.cancels.clear(task.ID)

	cr := newCorrectionRun(corr, false)

	tier := task.ModelTier
	if opts.Tier != "" {
		tier = opts.Tier
	}

	seen := chunk.NewSeen(payload.Common().Seen)
	for _, c := range chunks {
		if c.Index > 0 {
			if err := o.transition(step, models.StepRunning); err != nil {
				return o.fail(step, rep, c.Index, err)
			}
		}
		if err := o.checkCancel(ctx, task.ID); err != nil {
			rep.Canceled = true
			return o.fail(step, rep, c.Index, err)
		}

		doc, err := prompt.Build(seen.Apply(c), task)
		if err != nil {
			return o.fail(step, rep, c.Index, err)
		}
		o.log.Debug("invoking backend",
			zap.String("task", task.ID),
			zap.Int("chunk", c.Index),
			zap.Int("chunks", c.Total),
			zap.String("tier", string(tier)))
		resp, err := o.invoker.Invoke(ctx, backend.Request{
			Task:   task.ID,
			Chunk:  c.Index,
			System: doc.System(),
			User:   doc.User(),
			Schema: prompt.Schema(task),
			Tier:   tier,
		})
		if err != nil {
			rep.Canceled = ctx.Err() != nil
			return o.fail(step, rep, c.Index, err)
		}
		rep.InputTokens += resp.InputTokens
		rep.OutputTokens += resp.OutputTokens

		if err := o.transition(step, models.StepAwaitingValidation); err != nil {
			return o.fail(step, rep, c.Index, err)
		}
		if err := o.commitChunk(step, rep, task, c.Index, resp.Text, cr, seen); err != nil {
			return o.fail(step, rep, c.Index, err)
		}
	}

	o.finishCorrection(step, rep, cr)
	if err := o.transition(step, models.StepCommitted); err != nil {
		return o.fail(step, rep, -1, err)
	}
	rep.State = models.StepCommitted
	o.log.Info("step committed",
		zap.String("task", task.ID),
		zap.Int("chunks", rep.ChunksDone),
		zap.Int("created", rep.Count(store.ActionCreate)),
		zap.Int("updated", rep.Count(store.ActionUpdate)),
		zap.Int("warnings", len(rep.Warnings)))
	return rep, nil
}

// commitChunk validates raw and applies it to the store. Nothing is
// applied, and no prior output is discarded, when validation fails.
func (o *Orchestrator) commitChunk(step *state.Step, rep *Report, task tasks.AgentTask, index int, raw string, cr *correctionRun, seen *chunk.Seen) error {
	resp, err := validate.Validate(raw, task, index)
	if err != nil {
		return err
	}
	scope, err := o.beginCorrection(task, cr, rep)
	if err != nil {
		return err
	}
	res, err := o.proc.Apply(task, resp, scope)
	rep.add(res)
	o.emitWarnings(step, res.Warnings)
	if err != nil {
		return err
	}
	if seen != nil && task.Phase != tasks.PhaseEnrichment {
		for _, r := range resp.Records {
			seen.Add(r.Name)
		}
	}

	step.ChunksDone++
	step.UpdatedAt = o.now()
	if err := o.steps.UpdateStep(step); err != nil {
		return err
	}
	rep.ChunksDone = step.ChunksDone
	o.emit(Event{
		Type:    EventChunkCommitted,
		TaskID:  task.ID,
		StepID:  step.ID,
		State:   step.State,
		Chunk:   index,
		Total:   step.ChunksTotal,
		Message: fmt.Sprintf("%d records, %d warnings", len(resp.Records), len(res.Warnings)),
	})
	return nil
}

// checkCancel reports a pending cancel request or a done context.
func (o *Orchestrator) checkCancel(ctx context.Context, taskID string) error {
	if err := ctx.Err(); err != nil {
		return failure.Wrap(failure.General, err, "canceled")
	}
	if o.cancels.isSet(taskID) || (o.cancelCheck != nil && o.cancelCheck(taskID)) {
		return failure.New(failure.General, "canceled")
	}
	return nil
}

// finishCorrection reports a correction that produced fewer variants than asked.
func (o *Orchestrator) finishCorrection(step *state.Step, rep *Report, cr *correctionRun) {
	if cr == nil || cr.scope == nil || cr.scope.Remaining <= 0 {
		return
	}
	corr, scope := cr.corr, cr.scope
	w := resolve.Warning{
		Kind: failure.General,
		Task: step.TaskID,
		Msg:  fmt.Sprintf("only %d of %d new variants returned", corr.AdditionalVariants-scope.Remaining, corr.AdditionalVariants),
	}
	rep.Warnings = append(rep.Warnings, w)
	o.emitWarnings(step, []resolve.Warning{w})
}
