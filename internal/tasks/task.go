// Package tasks defines the fixed catalog of generation tasks and their dependency graph.
package tasks

import (
	"fmt"
	"sort"

	"github.com/gumaertl2/PPT-sub001/internal/config"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// Task ids.
const (
	SightsScout    = "sightsScout"
	FoodScout      = "foodScout"
	HotelScout     = "hotelScout"
	SightsEnricher = "sightsEnricher"
	FoodEnricher   = "foodEnricher"
	RouteArchitect = "routeArchitect"
	DayPlanner     = "dayPlanner"
	InfoAuthor     = "infoAuthor"
)

// Phase describes what a task does to the entity store.
type Phase string

const (
	// PhaseSourcing discovers new entities; records carry names, not ids.
	PhaseSourcing Phase = "sourcing"
	// PhaseEnrichment refines existing entities; records must echo ids.
	PhaseEnrichment Phase = "enrichment"
	// PhaseAuthoring produces routes and narrative content.
	PhaseAuthoring Phase = "authoring"
)

// AgentTask is the static definition of one generation step.
// Values are immutable; WithOverrides returns a modified copy.
type AgentTask struct {
	ID              string
	Title           string
	DependsOn       []string
	Phase           Phase
	OutputKind      models.Kind
	OutputCategory  models.Category
	Chunkable       bool
	AutoChunkSize   int
	ManualChunkSize int
	// RequiresID means every response record must echo a candidate id.
	RequiresID bool
	// Correctable tasks accept a correction loop after commit.
	Correctable bool
	ModelTier   models.Tier
}

// ChunkSize returns the split threshold for a mode. Zero means never split.
func (t AgentTask) ChunkSize(manual bool) int {
	if !t.Chunkable {
		return 0
	}
	if manual {
		return t.ManualChunkSize
	}
	return t.AutoChunkSize
}

// WithOverrides applies configuration overrides and returns the result.
func (t AgentTask) WithOverrides(o config.TaskConfig) AgentTask {
	c := t
	c.DependsOn = append([]string(nil), t.DependsOn...)
	if o.AutoChunkSize != nil {
		c.AutoChunkSize = *o.AutoChunkSize
	}
	if o.ManualChunkSize != nil {
		c.ManualChunkSize = *o.ManualChunkSize
	}
	if o.ModelTier != "" {
		c.ModelTier = models.Tier(o.ModelTier)
	}
	return c
}

var catalog = []AgentTask{
	{
		ID: SightsScout, Title: "Sights scout",
		Phase: PhaseSourcing, OutputKind: models.KindPOI, OutputCategory: models.CategorySight,
		Chunkable: true, AutoChunkSize: 4, ManualChunkSize: 2, ModelTier: models.TierFast,
	},
	{
		ID: FoodScout, Title: "Dining search",
		Phase: PhaseSourcing, OutputKind: models.KindPOI, OutputCategory: models.CategoryRestaurant,
		Chunkable: true, AutoChunkSize: 3, ManualChunkSize: 1, ModelTier: models.TierFast,
	},
	{
		ID: HotelScout, Title: "Lodging search",
		Phase: PhaseSourcing, OutputKind: models.KindPOI, OutputCategory: models.CategoryHotel,
		Chunkable: true, AutoChunkSize: 3, ManualChunkSize: 1, ModelTier: models.TierFast,
	},
	{
		ID: SightsEnricher, Title: "Sights enrichment", DependsOn: []string{SightsScout},
		Phase: PhaseEnrichment, OutputKind: models.KindPOI, OutputCategory: models.CategorySight,
		Chunkable: true, AutoChunkSize: 10, ManualChunkSize: 5, RequiresID: true, ModelTier: models.TierBalanced,
	},
	{
		ID: FoodEnricher, Title: "Dining enrichment", DependsOn: []string{FoodScout},
		Phase: PhaseEnrichment, OutputKind: models.KindPOI, OutputCategory: models.CategoryRestaurant,
		Chunkable: true, AutoChunkSize: 10, ManualChunkSize: 5, RequiresID: true, ModelTier: models.TierBalanced,
	},
	{
		ID: RouteArchitect, Title: "Route options", DependsOn: []string{SightsEnricher},
		Phase: PhaseAuthoring, OutputKind: models.KindRoute, OutputCategory: models.CategoryRoute,
		Correctable: true, ModelTier: models.TierDeep,
	},
	{
		ID: DayPlanner, Title: "Day-by-day itinerary", DependsOn: []string{RouteArchitect, HotelScout},
		Phase: PhaseAuthoring, OutputKind: models.KindContent, OutputCategory: models.CategoryDay,
		Chunkable: true, AutoChunkSize: 5, ManualChunkSize: 3, ModelTier: models.TierDeep,
	},
	{
		ID: InfoAuthor, Title: "Info chapters",
		Phase: PhaseAuthoring, OutputKind: models.KindContent, OutputCategory: models.CategoryInfo,
		Chunkable: true, AutoChunkSize: 4, ManualChunkSize: 2, ModelTier: models.TierBalanced,
	},
}

// Catalog returns the built-in task definitions.
func Catalog() []AgentTask {
	out := make([]AgentTask, len(catalog))
	for i, t := range catalog {
		out[i] = t.WithOverrides(config.TaskConfig{})
	}
	return out
}

// Lookup returns the catalog definition of id, without configuration overrides.
func Lookup(id string) (AgentTask, bool) {
	for _, t := range catalog {
		if t.ID == id {
			return t.WithOverrides(config.TaskConfig{}), true
		}
	}
	return AgentTask{}, false
}

// Registry resolves task definitions after configuration overrides.
type Registry struct {
	tasks map[string]AgentTask
	order []string
	graph *Graph
}

// NewRegistry builds a registry from the catalog with overrides from cfg.
// A nil cfg uses catalog defaults.
func NewRegistry(cfg *config.Config) (*Registry, error) {
	return NewRegistryFrom(Catalog(), cfg)
}

// NewRegistryFrom builds a registry from an explicit task list.
func NewRegistryFrom(defs []AgentTask, cfg *config.Config) (*Registry, error) {
	r := &Registry{tasks: make(map[string]AgentTask, len(defs))}
	for _, t := range defs {
		if _, dup := r.tasks[t.ID]; dup {
			return nil, fmt.Errorf("duplicate task %q", t.ID)
		}
		if cfg != nil {
			if o, ok := cfg.TaskOverride(t.ID); ok {
				t = t.WithOverrides(o)
			}
		}
		r.tasks[t.ID] = t
	}

	g := NewGraph()
	if err := g.Build(r.List()); err != nil {
		return nil, err
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	r.order = order
	r.graph = g
	return r, nil
}

// Graph returns the dependency graph of the registered tasks.
func (r *Registry) Graph() *Graph {
	return r.graph
}

// Get returns the task with the given id.
func (r *Registry) Get(id string) (AgentTask, bool) {
	t, ok := r.tasks[id]
	return t, ok
}

// List returns all tasks sorted by id.
func (r *Registry) List() []AgentTask {
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]AgentTask, len(ids))
	for i, id := range ids {
		out[i] = r.tasks[id]
	}
	return out
}

// Order returns task ids in dependency order.
func (r *Registry) Order() []string {
	return append([]string(nil), r.order...)
}
