package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/internal/prepare"
	"github.com/gumaertl2/PPT-sub001/internal/resolve"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// Correction is a structured re-run request for a committed task.
type Correction struct {
	Feedback string `json:"feedback,omitempty"`
	// Keep lists entity ids of the task's output that stay verbatim.
	Keep []string `json:"keep,omitempty"`
	// AdditionalVariants is the exact number of new entities wanted.
	AdditionalVariants int `json:"additional_variants"`
}

// Validate checks the correction on its own.
func (c Correction) Validate() error {
	if c.AdditionalVariants < 0 {
		return fmt.Errorf("additional variants must not be negative, got %d", c.AdditionalVariants)
	}
	seen := make(map[string]bool, len(c.Keep))
	for _, id := range c.Keep {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("empty id in keep list")
		}
		if seen[id] {
			return fmt.Errorf("id %s listed twice in keep list", id)
		}
		seen[id] = true
	}
	return nil
}

func (c Correction) encode() string {
	data, _ := json.Marshal(c)
	return string(data)
}

func decodeCorrection(s string) (*Correction, error) {
	if s == "" {
		return nil, nil
	}
	var c Correction
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, fmt.Errorf("decode stored correction: %w", err)
	}
	return &c, nil
}

// checkCorrectable verifies a correction may run against task: the task is
// correctable, its effective execution is committed and every kept id is its
// live output.
func (o *Orchestrator) checkCorrectable(task tasks.AgentTask, corr Correction) error {
	if !task.Correctable {
		return failure.New(failure.General, "task %s does not accept corrections", task.ID).At(task.ID, -1)
	}
	if err := corr.Validate(); err != nil {
		return failure.Wrap(failure.General, err, "invalid correction").At(task.ID, -1)
	}
	effective, err := o.steps.EffectiveSteps()
	if err != nil {
		return err
	}
	if s, ok := effective[task.ID]; !ok || s.State != models.StepCommitted {
		return failure.New(failure.MissingDependency, "task %s has no committed output to correct", task.ID).At(task.ID, -1)
	}
	for _, id := range corr.Keep {
		e, ok := o.store.Get(id)
		if !ok || e.ProducedBy != task.ID {
			return failure.New(failure.General, "%s is not an output of %s", id, task.ID).At(task.ID, -1)
		}
	}
	return nil
}

// correctionContext renders the kept entities for the prompt.
func (o *Orchestrator) correctionContext(corr *Correction) *prepare.Correction {
	pc := &prepare.Correction{Feedback: corr.Feedback, AdditionalVariants: corr.AdditionalVariants}
	for _, id := range corr.Keep {
		if e, ok := o.store.Get(id); ok {
			pc.Keep = append(pc.Keep, prepare.EntityRef{ID: e.ID, Name: e.Name, Fields: e.Fields})
		}
	}
	return pc
}

// correctionRun carries a correction through the chunks of one execution.
// The task's non-kept prior output is retired right before the first
// validated answer is applied, so a failure before that changes nothing.
type correctionRun struct {
	corr      *Correction
	discarded bool
	scope     *resolve.Scope
}

func newCorrectionRun(corr *Correction, discarded bool) *correctionRun {
	if corr == nil {
		return nil
	}
	return &correctionRun{corr: corr, discarded: discarded}
}

// beginCorrection retires the prior output once and builds the scope. The
// scope's budget counts variants this correction already created.
func (o *Orchestrator) beginCorrection(task tasks.AgentTask, cr *correctionRun, rep *Report) (*resolve.Scope, error) {
	if cr == nil {
		return nil, nil
	}
	if !cr.discarded {
		ids, err := o.proc.DiscardPrior(task, cr.corr.Keep)
		if err != nil {
			return nil, err
		}
		cr.discarded = true
		cr.scope = nil
		rep.Discarded = append(rep.Discarded, ids...)
	}
	if cr.scope == nil {
		created := 0
		for _, e := range o.store.ListProducedBy(task.ID) {
			if !contains(cr.corr.Keep, e.ID) {
				created++
			}
		}
		cr.scope = resolve.NewScope(cr.corr.Keep, cr.corr.AdditionalVariants-created)
	}
	return cr.scope, nil
}
