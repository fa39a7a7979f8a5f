package workflow

import (
	"sync"

	"github.com/gumaertl2/PPT-sub001/internal/state"
)

// StepStore persists step executions and manual progress.
type StepStore interface {
	state.StepStore
	state.ManualStore
}

var (
	_ StepStore = (*state.DB)(nil)
	_ StepStore = (*memorySteps)(nil)
)

// memorySteps keeps steps for the lifetime of the process.
type memorySteps struct {
	mu     sync.Mutex
	steps  map[string]*state.Step
	order  []string
	manual map[string]*state.ManualProgress
}

func newMemorySteps() *memorySteps {
	return &memorySteps{
		steps:  make(map[string]*state.Step),
		manual: make(map[string]*state.ManualProgress),
	}
}

func (m *memorySteps) CreateStep(s *state.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.steps[s.ID] = &c
	m.order = append(m.order, s.ID)
	return nil
}

func (m *memorySteps) UpdateStep(s *state.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	m.steps[s.ID] = &c
	return nil
}

func (m *memorySteps) GetStep(id string) (*state.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (m *memorySteps) LatestSteps() (map[string]*state.Step, error) {
	return m.reduce(func(_, _ *state.Step) bool { return true }), nil
}

func (m *memorySteps) EffectiveSteps() (map[string]*state.Step, error) {
	return m.reduce(state.Supersedes), nil
}

func (m *memorySteps) reduce(replace func(prev, next *state.Step) bool) map[string]*state.Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*state.Step)
	for _, id := range m.order {
		c := *m.steps[id]
		if replace(out[c.TaskID], &c) {
			out[c.TaskID] = &c
		}
	}
	return out
}

func (m *memorySteps) PutManualProgress(p *state.ManualProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	m.manual[p.TaskID] = &c
	return nil
}

func (m *memorySteps) GetManualProgress(taskID string) (*state.ManualProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.manual[taskID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (m *memorySteps) DeleteManualProgress(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.manual, taskID)
	return nil
}
