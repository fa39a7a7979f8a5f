package tasks

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// Graph is a directed acyclic graph of task dependencies.
// Edges point from a task to the tasks it depends on.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]AgentTask
	edges map[string][]string
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]AgentTask),
		edges: make(map[string][]string),
	}
}

// Build constructs the graph from a slice of tasks.
// Returns an error if a cycle is detected or dependencies reference unknown tasks.
func (g *Graph) Build(defs []AgentTask) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, t := range defs {
		g.nodes[t.ID] = t
		g.edges[t.ID] = nil
	}

	for _, t := range defs {
		for _, depID := range t.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("task %s depends on unknown task %s", t.ID, depID)
			}
			g.edges[t.ID] = append(g.edges[t.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *Graph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

func (g *Graph) sortedIDsLocked() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// hasCycleLocked uses DFS coloring: 0 unvisited, 1 in progress, 2 done.
func (g *Graph) hasCycleLocked() bool {
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.sortedIDsLocked() {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalSort returns task ids so that every dependency precedes its
// dependents. Ties are broken by id, so the order is stable across runs.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.nodes))
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		deps := append([]string(nil), g.edges[id]...)
		sort.Strings(deps)
		for _, depID := range deps {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.sortedIDsLocked() {
		visit(id)
	}
	return result, nil
}

// Ready returns ids of tasks whose dependencies are all in done and which
// are not themselves done.
func (g *Graph) Ready(done map[string]bool) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []string
	for _, id := range g.sortedIDsLocked() {
		if done[id] {
			continue
		}
		if len(g.unmetLocked(id, done)) == 0 {
			ready = append(ready, id)
		}
	}
	return ready
}

// Unmet returns the dependencies of taskID that are not in done.
func (g *Graph) Unmet(taskID string, done map[string]bool) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.unmetLocked(taskID, done)
}

func (g *Graph) unmetLocked(taskID string, done map[string]bool) []string {
	var unmet []string
	for _, depID := range g.edges[taskID] {
		if !done[depID] {
			unmet = append(unmet, depID)
		}
	}
	return unmet
}

// Dependencies returns the ids of tasks that taskID depends on.
func (g *Graph) Dependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[taskID]...)
}

// Dependents returns the ids of tasks that depend on taskID.
func (g *Graph) Dependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, id := range g.sortedIDsLocked() {
		for _, depID := range g.edges[id] {
			if depID == taskID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// Size returns the number of tasks in the graph.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
