package prepare

import (
	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/internal/store"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// Preparer builds the payload for one task. It never writes to the store.
type Preparer func(task tasks.AgentTask, req *models.TripRequest, st store.Reader) (Payload, error)

// Field whitelists passed to models per candidate.
var (
	sightEnrichFields = []string{"address", "district", "interest"}
	foodEnrichFields  = []string{"address", "location", "cuisine"}
	routeSightFields  = []string{"address", "district", "duration_minutes", "opening_hours"}
	dayRouteFields    = []string{"summary", "stops", "distance_km"}
	dayHotelFields    = []string{"address", "location"}
)

// DefaultInfoTopics are used when the request names none.
var DefaultInfoTopics = []string{
	"arrival and local transport",
	"money and payments",
	"health and safety",
	"local customs",
}

var preparers = map[string]Preparer{
	tasks.SightsScout:    prepareSightsScout,
	tasks.FoodScout:      prepareFoodScout,
	tasks.HotelScout:     prepareHotelScout,
	tasks.SightsEnricher: prepareEnricher(sightEnrichFields),
	tasks.FoodEnricher:   prepareEnricher(foodEnrichFields),
	tasks.RouteArchitect: prepareRoute,
	tasks.DayPlanner:     prepareDayPlan,
	tasks.InfoAuthor:     prepareInfo,
}

// Prepare builds the payload for task from the request and the store.
// Missing upstream data fails with a MissingDependency error.
func Prepare(task tasks.AgentTask, req *models.TripRequest, st store.Reader) (Payload, error) {
	fn, ok := preparers[task.ID]
	if !ok {
		return nil, failure.New(failure.General, "no preparer for task %s", task.ID).At(task.ID, -1)
	}
	if req == nil {
		return nil, failure.New(failure.MissingDependency, "no trip request loaded").At(task.ID, -1)
	}
	return fn(task, req, st)
}

func baseFor(task tasks.AgentTask, req *models.TripRequest, st store.Reader) Base {
	b := Base{
		Task: task.ID,
		Trip: TripContext{
			Title:       req.Title,
			Destination: req.Destination,
			Regions:     req.Regions,
			StartDate:   req.StartDate,
			EndDate:     req.EndDate,
			Travelers:   req.Travelers,
			Pace:        req.Pace,
			Budget:      req.Budget,
			Language:    req.Language,
			Interests:   FilterInterests(req.SelectedInterests),
			Notes:       req.Notes,
		},
	}
	if task.Phase != tasks.PhaseEnrichment {
		b.Seen = st.Names(task.OutputCategory)
	}
	return b
}

func missing(task tasks.AgentTask, format string, args ...any) error {
	return failure.New(failure.MissingDependency, format, args...).At(task.ID, -1)
}

func prepareSightsScout(task tasks.AgentTask, req *models.TripRequest, st store.Reader) (Payload, error) {
	b := baseFor(task, req, st)
	if len(b.Trip.Interests) == 0 {
		return nil, missing(task, "request has no sightseeing interests")
	}
	return SightsScoutPayload{Base: b, Interests: b.Trip.Interests}, nil
}

func prepareFoodScout(task tasks.AgentTask, req *models.TripRequest, st store.Reader) (Payload, error) {
	locs := req.Locations()
	if len(locs) == 0 {
		return nil, missing(task, "request has no destination")
	}
	return FoodScoutPayload{Base: baseFor(task, req, st), Locations: locs}, nil
}

func prepareHotelScout(task tasks.AgentTask, req *models.TripRequest, st store.Reader) (Payload, error) {
	stops := append([]models.Stop(nil), req.Stops...)
	if len(stops) == 0 {
		if req.Destination == "" {
			return nil, missing(task, "request has no destination")
		}
		nights := len(req.Days()) - 1
		if nights < 1 {
			nights = 1
		}
		stops = []models.Stop{{Location: req.Destination, Nights: nights}}
	}
	return HotelScoutPayload{Base: baseFor(task, req, st), Stops: stops}, nil
}

func prepareEnricher(fields []string) Preparer {
	return func(task tasks.AgentTask, req *models.TripRequest, st store.Reader) (Payload, error) {
		cands := refs(st.ListByCategory(task.OutputCategory), fields)
		if len(cands) == 0 {
			return nil, missing(task, "no %s entities to enrich", task.OutputCategory)
		}
		return EnrichPayload{Base: baseFor(task, req, st), Category: task.OutputCategory, Candidates: cands}, nil
	}
}

func prepareRoute(task tasks.AgentTask, req *models.TripRequest, st store.Reader) (Payload, error) {
	sights := refs(st.ListByCategory(models.CategorySight), routeSightFields)
	if len(sights) == 0 {
		return nil, missing(task, "no sights to route through")
	}
	return RoutePayload{Base: baseFor(task, req, st), Sights: sights, Stops: req.Stops}, nil
}

func prepareDayPlan(task tasks.AgentTask, req *models.TripRequest, st store.Reader) (Payload, error) {
	routes := refs(st.ListByCategory(models.CategoryRoute), dayRouteFields)
	if len(routes) == 0 {
		return nil, missing(task, "no route options committed")
	}
	return DayPlanPayload{
		Base:   baseFor(task, req, st),
		Days:   daySlots(req),
		Routes: routes,
		Hotels: refs(st.ListByCategory(models.CategoryHotel), dayHotelFields),
		Sights: refs(st.ListByCategory(models.CategorySight), nil),
	}, nil
}

func prepareInfo(task tasks.AgentTask, req *models.TripRequest, st store.Reader) (Payload, error) {
	topics := FilterInterests(req.InfoTopics)
	if len(topics) == 0 {
		topics = append([]string(nil), DefaultInfoTopics...)
	}
	return InfoPayload{Base: baseFor(task, req, st), Topics: topics}, nil
}

func refs(entities []*models.Entity, fields []string) []EntityRef {
	out := make([]EntityRef, 0, len(entities))
	for _, e := range entities {
		out = append(out, EntityRef{ID: e.ID, Name: e.Name, Fields: whitelist(e.Fields, fields)})
	}
	return out
}

// daySlots assigns each trip day the stop the travelers sleep at.
func daySlots(req *models.TripRequest) []DaySlot {
	days := req.Days()
	slots := make([]DaySlot, len(days))

	var byNight []string
	for _, s := range req.Stops {
		for i := 0; i < s.Nights; i++ {
			byNight = append(byNight, s.Location)
		}
	}

	for i, label := range days {
		loc := req.Destination
		switch {
		case i < len(byNight):
			loc = byNight[i]
		case len(byNight) > 0:
			loc = byNight[len(byNight)-1]
		}
		slots[i] = DaySlot{Day: i + 1, Label: label, Location: loc}
	}
	return slots
}
