package tasks

import (
	"errors"
	"reflect"
	"testing"
)

func TestGraph_BuildUnknownDependency(t *testing.T) {
	g := NewGraph()
	err := g.Build([]AgentTask{{ID: "a", DependsOn: []string{"missing"}}})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestGraph_CycleDetected(t *testing.T) {
	g := NewGraph()
	err := g.Build([]AgentTask{
		{ID: "a", DependsOn: []string{"c"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
	})
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("Build error = %v, want ErrCycleDetected", err)
	}
	if _, err := g.TopologicalSort(); !errors.Is(err, ErrCycleDetected) {
		t.Errorf("TopologicalSort error = %v, want ErrCycleDetected", err)
	}
}

func TestGraph_TopologicalSortDeterministic(t *testing.T) {
	defs := []AgentTask{
		{ID: "d", DependsOn: []string{"b", "c"}},
		{ID: "c", DependsOn: []string{"a"}},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "a"},
	}
	g := NewGraph()
	if err := g.Build(defs); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := []string{"a", "b", "c", "d"}
	for i := 0; i < 5; i++ {
		got, err := g.TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort failed: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("TopologicalSort() = %v, want %v", got, want)
		}
	}
}

func TestGraph_ReadyAndUnmet(t *testing.T) {
	g := NewGraph()
	if err := g.Build(Catalog()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ready := g.Ready(nil)
	want := []string{FoodScout, HotelScout, InfoAuthor, SightsScout}
	if !reflect.DeepEqual(ready, want) {
		t.Errorf("Ready(nil) = %v, want %v", ready, want)
	}

	done := map[string]bool{SightsScout: true, SightsEnricher: true, RouteArchitect: true}
	unmet := g.Unmet(DayPlanner, done)
	if !reflect.DeepEqual(unmet, []string{HotelScout}) {
		t.Errorf("Unmet(dayPlanner) = %v, want [hotelScout]", unmet)
	}

	done[HotelScout] = true
	if len(g.Unmet(DayPlanner, done)) != 0 {
		t.Error("dayPlanner should have no unmet dependencies")
	}
}

func TestGraph_Dependents(t *testing.T) {
	g := NewGraph()
	if err := g.Build(Catalog()); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got := g.Dependents(HotelScout)
	if !reflect.DeepEqual(got, []string{DayPlanner}) {
		t.Errorf("Dependents(hotelScout) = %v, want [dayPlanner]", got)
	}
	if g.Size() != 8 {
		t.Errorf("Size() = %d, want 8", g.Size())
	}
}
