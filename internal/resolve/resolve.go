// Package resolve reconciles validated response records with the entity
// store: identity resolution, routing to a partition and the preservation
// merge. It is the only writer of the store during a run.
package resolve

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/internal/store"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
	"github.com/gumaertl2/PPT-sub001/internal/validate"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// DefaultMinMatchLength is the shortest normalized name that may
// substring-match another.
const DefaultMinMatchLength = 3

// Warning is a record that was skipped or trimmed without failing the chunk.
type Warning struct {
	Kind   failure.Kind `json:"kind"`
	Task   string       `json:"task"`
	Chunk  int          `json:"chunk"`
	Record string       `json:"record"`
	Msg    string       `json:"message"`
}

// String renders the warning as "kind: record: message".
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Record, w.Msg)
}

// Result is the outcome of applying one response.
type Result struct {
	Merges   []store.MergeRecord
	Warnings []Warning
}

// Count returns the number of merges with the given action.
func (r Result) Count(a store.Action) int {
	n := 0
	for _, m := range r.Merges {
		if m.Action == a {
			n++
		}
	}
	return n
}

// Scope restricts a correction run: kept entities stay verbatim and only
// Remaining new entities may still be created.
type Scope struct {
	Keep      map[string]bool
	Remaining int
}

// NewScope builds the scope of a correction keeping ids and allowing
// additional new entities.
func NewScope(keep []string, additional int) *Scope {
	s := &Scope{Keep: make(map[string]bool, len(keep)), Remaining: additional}
	for _, id := range keep {
		s.Keep[id] = true
	}
	return s
}

// Processor applies validated responses to the store.
type Processor struct {
	st     *store.Store
	minLen int
	log    *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithMinMatchLength sets the shortest name allowed to substring-match.
func WithMinMatchLength(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.minLen = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// New creates a processor writing to st.
func New(st *store.Store, opts ...Option) *Processor {
	p := &Processor{st: st, minLen: DefaultMinMatchLength, log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply commits every record of resp. Records that cannot be resolved are
// skipped with a warning; a store failure stops the response and returns
// what was committed so far. A nil scope means a regular run.
func (p *Processor) Apply(task tasks.AgentTask, resp *validate.Response, scope *Scope) (Result, error) {
	var res Result
	if resp == nil {
		return res, nil
	}
	for _, rec := range resp.Records {
		mr, warn, err := p.applyRecord(task, resp.Chunk, rec, scope)
		if err != nil {
			return res, failure.Wrap(failure.General, err, "commit "+rec.Name).At(task.ID, resp.Chunk)
		}
		if warn != nil {
			res.Warnings = append(res.Warnings, *warn)
			p.log.Warn("record skipped",
				zap.String("task", task.ID),
				zap.Int("chunk", resp.Chunk),
				zap.String("record", rec.Name),
				zap.String("kind", warn.Kind.String()),
				zap.String("reason", warn.Msg))
		}
		if mr != nil {
			res.Merges = append(res.Merges, *mr)
		}
	}
	return res, nil
}

func (p *Processor) applyRecord(task tasks.AgentTask, chunk int, rec validate.Record, scope *Scope) (*store.MergeRecord, *Warning, error) {
	warn := func(kind failure.Kind, format string, args ...any) *Warning {
		return &Warning{Kind: kind, Task: task.ID, Chunk: chunk, Record: rec.Name, Msg: fmt.Sprintf(format, args...)}
	}

	kind, category, err := route(task, rec)
	if err != nil {
		return nil, warn(failure.General, "%v", err), nil
	}

	// An echoed id is authoritative. Ids are never minted by the model.
	if rec.ID != "" {
		cur, ok := p.st.Get(rec.ID)
		if !ok {
			return nil, warn(failure.General, "unknown id %s", rec.ID), nil
		}
		if cur.Category != category {
			return nil, warn(failure.General, "id %s is a %s, not a %s", rec.ID, cur.Category, category), nil
		}
		return p.update(task, chunk, cur, rec, scope)
	}

	target, ambiguous := p.match(category, rec.Name)
	if len(ambiguous) > 0 {
		return nil, warn(failure.ResolutionAmbiguous, "matches %d entities: %v", len(ambiguous), ambiguous), nil
	}
	if target != nil {
		return p.update(task, chunk, target, rec, scope)
	}

	if scope != nil {
		if scope.Remaining <= 0 {
			return nil, warn(failure.General, "surplus variant not created"), nil
		}
	}
	mr, err := p.st.Upsert(store.Record{
		Kind:     kind,
		Category: category,
		Name:     rec.Name,
		Fields:   rec.Fields,
		Task:     task.ID,
	}, store.Preserve)
	if err != nil {
		return nil, nil, err
	}
	if scope != nil {
		scope.Remaining--
	}
	return &mr, nil, nil
}

func (p *Processor) update(task tasks.AgentTask, chunk int, cur *models.Entity, rec validate.Record, scope *Scope) (*store.MergeRecord, *Warning, error) {
	if scope != nil && scope.Keep[cur.ID] {
		return &store.MergeRecord{Action: store.ActionSkip, EntityID: cur.ID, Name: cur.Name}, nil, nil
	}

	mr, err := p.st.Upsert(store.Record{
		ID:       cur.ID,
		Kind:     cur.Kind,
		Category: cur.Category,
		Name:     rec.Name,
		Fields:   rec.Fields,
		Task:     task.ID,
	}, store.Preserve)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrRetired) {
		w := &Warning{Kind: failure.General, Task: task.ID, Chunk: chunk, Record: rec.Name, Msg: err.Error()}
		return nil, w, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &mr, nil, nil
}

// match finds the entity of category that name denotes. An exact
// normalized match wins over substring matches; several substring matches
// are returned as ambiguous.
func (p *Processor) match(category models.Category, name string) (*models.Entity, []string) {
	n := Normalize(name)
	var exact, partial []*models.Entity
	for _, e := range p.st.ListByCategory(category) {
		ok, isExact := nameMatch(n, Normalize(e.Name), p.minLen)
		switch {
		case isExact:
			exact = append(exact, e)
		case ok:
			partial = append(partial, e)
		}
	}

	candidates := partial
	if len(exact) > 0 {
		candidates = exact
	}
	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return candidates[0], nil
	default:
		ids := make([]string, len(candidates))
		for i, e := range candidates {
			ids[i] = e.ID
		}
		sort.Strings(ids)
		return nil, ids
	}
}

// route picks the partition for a record. A task writes only to its own
// output category; a declared category or kind must agree with it.
func route(task tasks.AgentTask, rec validate.Record) (models.Kind, models.Category, error) {
	category := task.OutputCategory
	if rec.Category != "" && rec.Category != category {
		return "", "", fmt.Errorf("category %s is outside %s output (%s)", rec.Category, task.ID, category)
	}
	kind := category.Kind()
	if rec.Kind != "" && rec.Kind != kind {
		return "", "", fmt.Errorf("kind %s does not hold category %s", rec.Kind, category)
	}
	return kind, category, nil
}

// DiscardPrior retires every entity task produced except the kept ones,
// ahead of a correction run. It returns the discarded ids.
func (p *Processor) DiscardPrior(task tasks.AgentTask, keep []string) ([]string, error) {
	kept := make(map[string]bool, len(keep))
	for _, id := range keep {
		kept[id] = true
	}
	var ids []string
	for _, e := range p.st.ListProducedBy(task.ID) {
		if !kept[e.ID] {
			ids = append(ids, e.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := p.st.Discard(task.ID, ids); err != nil {
		return nil, fmt.Errorf("discard prior %s output: %w", task.ID, err)
	}
	p.log.Info("prior output discarded", zap.String("task", task.ID), zap.Strings("ids", ids))
	return ids, nil
}
