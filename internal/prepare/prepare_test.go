package prepare

import (
	"reflect"
	"testing"

	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/internal/store"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

func mustTask(t *testing.T, id string) tasks.AgentTask {
	t.Helper()
	r, err := tasks.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	task, ok := r.Get(id)
	if !ok {
		t.Fatalf("unknown task %s", id)
	}
	return task
}

func sampleRequest() *models.TripRequest {
	return &models.TripRequest{
		Title:             "Coast trip",
		Destination:       "Porto",
		StartDate:         "2026-05-01",
		EndDate:           "2026-05-04",
		Travelers:         2,
		SelectedInterests: []string{"museum", "restaurant", "hotel"},
		Stops: []models.Stop{
			{Location: "Porto", Nights: 2},
			{Location: "Braga", Nights: 1},
		},
	}
}

func seed(t *testing.T, s *store.Store, kind models.Kind, cat models.Category, names ...string) []string {
	t.Helper()
	var ids []string
	for _, n := range names {
		mr, err := s.Upsert(store.Record{Kind: kind, Category: cat, Name: n, Fields: map[string]any{"address": n + " St", "secret": "x"}}, store.Preserve)
		if err != nil {
			t.Fatalf("seed %s: %v", n, err)
		}
		ids = append(ids, mr.EntityID)
	}
	return ids
}

func TestFilterInterests(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"museum", "restaurant", "hotel"}, []string{"museum"}},
		{[]string{" Hiking ", "hiking", "Dining", ""}, []string{"Hiking"}},
		{[]string{"Accommodation", "Lodging"}, []string{}},
	}
	for _, tt := range tests {
		got := FilterInterests(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("FilterInterests(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPrepare_FoodScoutStripsServiceInterests(t *testing.T) {
	p, err := Prepare(mustTask(t, tasks.FoodScout), sampleRequest(), store.New())
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	food, ok := p.(FoodScoutPayload)
	if !ok {
		t.Fatalf("payload type = %T, want FoodScoutPayload", p)
	}
	if !reflect.DeepEqual(food.Trip.Interests, []string{"museum"}) {
		t.Errorf("interests = %v, want [museum]", food.Trip.Interests)
	}
	if !reflect.DeepEqual(food.Locations, []string{"Porto", "Braga"}) {
		t.Errorf("locations = %v", food.Locations)
	}
	if food.Len() != 2 {
		t.Errorf("Len() = %d, want 2", food.Len())
	}
}

func TestPrepare_SightsScoutSeenFromStore(t *testing.T) {
	s := store.New()
	seed(t, s, models.KindPOI, models.CategorySight, "Clerigos Tower")
	seed(t, s, models.KindPOI, models.CategoryRestaurant, "Cafe Majestic")

	p, err := Prepare(mustTask(t, tasks.SightsScout), sampleRequest(), s)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	base := p.Common()
	if !reflect.DeepEqual(base.Seen, []string{"Clerigos Tower"}) {
		t.Errorf("Seen = %v, want only sight names", base.Seen)
	}
}

func TestPrepare_SightsScoutNoInterests(t *testing.T) {
	req := sampleRequest()
	req.SelectedInterests = []string{"restaurant"}
	_, err := Prepare(mustTask(t, tasks.SightsScout), req, store.New())
	if !failure.Is(err, failure.MissingDependency) {
		t.Errorf("error = %v, want MissingDependency", err)
	}
}

func TestPrepare_EnricherCandidates(t *testing.T) {
	s := store.New()
	ids := seed(t, s, models.KindPOI, models.CategorySight, "Ribeira", "Livraria Lello")

	p, err := Prepare(mustTask(t, tasks.SightsEnricher), sampleRequest(), s)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	enrich := p.(EnrichPayload)
	if len(enrich.Candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(enrich.Candidates))
	}
	for i, c := range enrich.Candidates {
		if c.ID != ids[i] {
			t.Errorf("candidate %d id = %s, want %s", i, c.ID, ids[i])
		}
		if _, leaked := c.Fields["secret"]; leaked {
			t.Errorf("candidate %d leaked non-whitelisted field", i)
		}
		if c.Fields["address"] == nil {
			t.Errorf("candidate %d missing whitelisted address", i)
		}
	}
	if len(enrich.Seen) != 0 {
		t.Errorf("enrichment payload should carry no seen set, got %v", enrich.Seen)
	}
}

func TestPrepare_MissingUpstreamData(t *testing.T) {
	for _, id := range []string{tasks.SightsEnricher, tasks.FoodEnricher, tasks.RouteArchitect, tasks.DayPlanner} {
		t.Run(id, func(t *testing.T) {
			_, err := Prepare(mustTask(t, id), sampleRequest(), store.New())
			if !failure.Is(err, failure.MissingDependency) {
				t.Errorf("error = %v, want MissingDependency", err)
			}
		})
	}
}

func TestPrepare_DayPlanSlots(t *testing.T) {
	s := store.New()
	seed(t, s, models.KindRoute, models.CategoryRoute, "Douro loop")
	seed(t, s, models.KindPOI, models.CategoryHotel, "Harbor View Inn")

	p, err := Prepare(mustTask(t, tasks.DayPlanner), sampleRequest(), s)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	day := p.(DayPlanPayload)
	want := []DaySlot{
		{Day: 1, Label: "2026-05-01", Location: "Porto"},
		{Day: 2, Label: "2026-05-02", Location: "Porto"},
		{Day: 3, Label: "2026-05-03", Location: "Braga"},
		{Day: 4, Label: "2026-05-04", Location: "Braga"},
	}
	if !reflect.DeepEqual(day.Days, want) {
		t.Errorf("Days = %+v, want %+v", day.Days, want)
	}
	if len(day.Routes) != 1 || len(day.Hotels) != 1 {
		t.Errorf("routes=%d hotels=%d", len(day.Routes), len(day.Hotels))
	}
}

func TestPrepare_HotelScoutFallsBackToDestination(t *testing.T) {
	req := sampleRequest()
	req.Stops = nil
	p, err := Prepare(mustTask(t, tasks.HotelScout), req, store.New())
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	hotel := p.(HotelScoutPayload)
	if len(hotel.Stops) != 1 || hotel.Stops[0].Location != "Porto" || hotel.Stops[0].Nights != 3 {
		t.Errorf("Stops = %+v", hotel.Stops)
	}
}

func TestPrepare_InfoDefaultTopics(t *testing.T) {
	p, err := Prepare(mustTask(t, tasks.InfoAuthor), sampleRequest(), store.New())
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if p.Len() != len(DefaultInfoTopics) {
		t.Errorf("Len() = %d, want %d", p.Len(), len(DefaultInfoTopics))
	}
}

func TestPayload_SliceAndWith(t *testing.T) {
	p := InfoPayload{Base: Base{Task: tasks.InfoAuthor}, Topics: []string{"a", "b", "c"}}

	sub := p.Slice(1, 3)
	if !reflect.DeepEqual(sub.(InfoPayload).Topics, []string{"b", "c"}) {
		t.Errorf("Slice(1,3) = %v", sub.(InfoPayload).Topics)
	}
	if p.Len() != 3 {
		t.Error("Slice mutated the original payload")
	}

	seen := sub.WithSeen([]string{"x"})
	if !reflect.DeepEqual(seen.Common().Seen, []string{"x"}) {
		t.Errorf("WithSeen = %v", seen.Common().Seen)
	}
	if sub.Common().Seen != nil {
		t.Error("WithSeen mutated its receiver")
	}

	c := &Correction{AdditionalVariants: 2}
	if got := p.WithCorrection(c).Common().Correction; got != c {
		t.Errorf("WithCorrection = %v", got)
	}
}

func TestPrepare_UnknownTask(t *testing.T) {
	_, err := Prepare(tasks.AgentTask{ID: "nope"}, sampleRequest(), store.New())
	if err == nil {
		t.Error("expected error for unknown task")
	}
}
