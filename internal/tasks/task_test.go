package tasks

import (
	"testing"

	"github.com/gumaertl2/PPT-sub001/internal/config"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

func intPtr(v int) *int { return &v }

func TestCatalog_Defaults(t *testing.T) {
	r, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	tests := []struct {
		id         string
		auto       int
		manual     int
		kind       models.Kind
		category   models.Category
		requiresID bool
	}{
		{SightsScout, 4, 2, models.KindPOI, models.CategorySight, false},
		{FoodScout, 3, 1, models.KindPOI, models.CategoryRestaurant, false},
		{HotelScout, 3, 1, models.KindPOI, models.CategoryHotel, false},
		{SightsEnricher, 10, 5, models.KindPOI, models.CategorySight, true},
		{FoodEnricher, 10, 5, models.KindPOI, models.CategoryRestaurant, true},
		{RouteArchitect, 0, 0, models.KindRoute, models.CategoryRoute, false},
		{DayPlanner, 5, 3, models.KindContent, models.CategoryDay, false},
		{InfoAuthor, 4, 2, models.KindContent, models.CategoryInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			task, ok := r.Get(tt.id)
			if !ok {
				t.Fatalf("task %s not registered", tt.id)
			}
			if got := task.ChunkSize(false); got != tt.auto {
				t.Errorf("ChunkSize(auto) = %d, want %d", got, tt.auto)
			}
			if got := task.ChunkSize(true); got != tt.manual {
				t.Errorf("ChunkSize(manual) = %d, want %d", got, tt.manual)
			}
			if task.OutputKind != tt.kind || task.OutputCategory != tt.category {
				t.Errorf("output = %s/%s, want %s/%s", task.OutputKind, task.OutputCategory, tt.kind, tt.category)
			}
			if task.RequiresID != tt.requiresID {
				t.Errorf("RequiresID = %v, want %v", task.RequiresID, tt.requiresID)
			}
			if !task.ModelTier.Valid() {
				t.Errorf("invalid model tier %q", task.ModelTier)
			}
		})
	}
}

func TestCatalog_OnlyRouteArchitectCorrectable(t *testing.T) {
	for _, task := range Catalog() {
		if task.Correctable != (task.ID == RouteArchitect) {
			t.Errorf("%s: Correctable = %v", task.ID, task.Correctable)
		}
	}
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	a := Catalog()
	for i := range a {
		if a[i].ID == DayPlanner {
			a[i].DependsOn[0] = "mutated"
		}
	}
	for _, task := range Catalog() {
		if task.ID == DayPlanner && task.DependsOn[0] == "mutated" {
			t.Fatal("Catalog() leaked shared DependsOn slice")
		}
	}
}

func TestRegistry_Overrides(t *testing.T) {
	cfg := config.Default()
	cfg.Tasks = map[string]config.TaskConfig{
		// viper lowercases map keys
		"foodscout": {AutoChunkSize: intPtr(7), ModelTier: "deep"},
		"dayPlanner": {ManualChunkSize: intPtr(0)},
	}

	r, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	food, _ := r.Get(FoodScout)
	if food.AutoChunkSize != 7 {
		t.Errorf("AutoChunkSize = %d, want 7", food.AutoChunkSize)
	}
	if food.ManualChunkSize != 1 {
		t.Errorf("ManualChunkSize = %d, want unchanged 1", food.ManualChunkSize)
	}
	if food.ModelTier != models.TierDeep {
		t.Errorf("ModelTier = %s, want deep", food.ModelTier)
	}

	day, _ := r.Get(DayPlanner)
	if day.ManualChunkSize != 0 {
		t.Errorf("ManualChunkSize = %d, want 0", day.ManualChunkSize)
	}

	// Catalog itself is never modified.
	for _, task := range Catalog() {
		if task.ID == FoodScout && task.AutoChunkSize != 3 {
			t.Errorf("catalog mutated: AutoChunkSize = %d", task.AutoChunkSize)
		}
	}
}

func TestRegistry_OrderRespectsDependencies(t *testing.T) {
	r, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	order := r.Order()
	if len(order) != len(Catalog()) {
		t.Fatalf("Order() has %d entries, want %d", len(order), len(Catalog()))
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, task := range r.List() {
		for _, dep := range task.DependsOn {
			if pos[dep] >= pos[task.ID] {
				t.Errorf("%s (pos %d) ordered before dependency %s (pos %d)", task.ID, pos[task.ID], dep, pos[dep])
			}
		}
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	defs := []AgentTask{{ID: "a"}, {ID: "a"}}
	if _, err := NewRegistryFrom(defs, nil); err == nil {
		t.Error("expected error for duplicate task ids")
	}
}

func TestChunkSize_NotChunkable(t *testing.T) {
	task := AgentTask{ID: "x", AutoChunkSize: 5, ManualChunkSize: 2}
	if task.ChunkSize(false) != 0 || task.ChunkSize(true) != 0 {
		t.Error("non-chunkable task should never split")
	}
}
