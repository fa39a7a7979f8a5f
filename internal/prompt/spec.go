package prompt

import (
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
)

// TaskSpec is the static prompt text of one task.
type TaskSpec struct {
	Role         string
	Instructions []string
}

var taskSpecs = map[string]TaskSpec{
	tasks.SightsScout: {
		Role: "You are a travel researcher who finds sights worth visiting for a specific trip.",
		Instructions: []string{
			"For every interest in the interests table, find the sights at the destination that match it.",
			"Return real, currently operating places only.",
			"Set fields.interest to the interest the sight was found for.",
		},
	},
	tasks.FoodScout: {
		Role: "You are a dining scout who finds restaurants for travelers.",
		Instructions: []string{
			"For every location in the locations table, find three to five recommended restaurants.",
			"Prefer places locals would recommend over chains.",
			"Set fields.location to the location the restaurant was found for.",
		},
	},
	tasks.HotelScout: {
		Role: "You are a lodging scout who finds places to stay for each overnight stop.",
		Instructions: []string{
			"For every stop in the stops table, suggest two or three hotels that fit the budget and party size.",
			"Set fields.location to the stop the hotel is for.",
		},
	},
	tasks.SightsEnricher: {
		Role: "You are a travel editor who adds verified details to a list of sights.",
		Instructions: []string{
			"Return exactly one record per candidate in the candidates table.",
			"Only fill fields you are confident about; use null for anything unknown.",
		},
	},
	tasks.FoodEnricher: {
		Role: "You are a food editor who adds verified details to a list of restaurants.",
		Instructions: []string{
			"Return exactly one record per candidate in the candidates table.",
			"Only fill fields you are confident about; use null for anything unknown.",
		},
	},
	tasks.RouteArchitect: {
		Role: "You are a route planner who designs driving or walking routes through selected sights.",
		Instructions: []string{
			"Design two or three distinct route options that cover the sights in the sights table.",
			"List the stops of each route in visiting order in fields.stops, using sight ids where a sight is visited.",
			"Give every route a short distinctive name.",
		},
	},
	tasks.DayPlanner: {
		Role: "You are a travel writer who turns route options into a day-by-day itinerary.",
		Instructions: []string{
			"Write one record per day in the days table; name each record after the day title.",
			"Use the route options and hotels tables; reference sights by id in fields.sight_ids.",
		},
	},
	tasks.InfoAuthor: {
		Role: "You are a guidebook author who writes short practical chapters for travelers.",
		Instructions: []string{
			"Write one chapter per topic in the topics table; name each record after its topic.",
			"Keep every chapter specific to the destination.",
		},
	},
}

// SpecFor returns the prompt text of a task.
func SpecFor(taskID string) (TaskSpec, bool) {
	s, ok := taskSpecs[taskID]
	return s, ok
}
