package prompt

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/gumaertl2/PPT-sub001/internal/tasks"
)

func nullable(typ, desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Types: []string{typ, "null"}, Description: desc}
}

func stringList(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Types:       []string{"array", "null"},
		Items:       &jsonschema.Schema{Type: "string"},
		Description: desc,
	}
}

// fieldSchemas describes the "fields" object each task returns per record.
var fieldSchemas = map[string]map[string]*jsonschema.Schema{
	tasks.SightsScout: {
		"interest":          nullable("string", "the searched interest this sight matches"),
		"address":           nullable("string", "street address"),
		"district":          nullable("string", "district or neighbourhood"),
		"short_description": nullable("string", "one sentence"),
		"duration_minutes":  nullable("integer", "typical visit length"),
	},
	tasks.FoodScout: {
		"location":          nullable("string", "the searched location"),
		"address":           nullable("string", "street address"),
		"cuisine":           nullable("string", "cuisine style"),
		"price_level":       nullable("string", "one of $, $$, $$$"),
		"short_description": nullable("string", "one sentence"),
	},
	tasks.HotelScout: {
		"location":          nullable("string", "the overnight stop"),
		"address":           nullable("string", "street address"),
		"stars":             nullable("number", "official rating"),
		"price_level":       nullable("string", "one of $, $$, $$$"),
		"short_description": nullable("string", "one sentence"),
	},
	tasks.SightsEnricher: {
		"description":   nullable("string", "two to four sentences"),
		"opening_hours": nullable("string", "regular opening hours"),
		"admission":     nullable("string", "ticket price or free"),
		"website":       nullable("string", "official website"),
		"tips":          stringList("practical visitor tips"),
	},
	tasks.FoodEnricher: {
		"description":      nullable("string", "two to four sentences"),
		"opening_hours":    nullable("string", "regular opening hours"),
		"signature_dishes": stringList("dishes worth ordering"),
		"reservation":      nullable("string", "reservation advice"),
		"website":          nullable("string", "official website"),
	},
	tasks.RouteArchitect: {
		"summary":       nullable("string", "what makes this route distinct"),
		"stops":         stringList("ordered sight ids or place names"),
		"distance_km":   nullable("number", "total driving or walking distance"),
		"duration_days": nullable("integer", "days the route takes"),
		"highlights":    stringList("three to five highlights"),
	},
	tasks.DayPlanner: {
		"day":       nullable("integer", "day number from the days table"),
		"date":      nullable("string", "date label from the days table"),
		"location":  nullable("string", "where the travelers sleep"),
		"title":     nullable("string", "short day title"),
		"text":      nullable("string", "the itinerary text for the day"),
		"sight_ids": stringList("ids of sights visited that day"),
	},
	tasks.InfoAuthor: {
		"topic": nullable("string", "the topic from the topics table"),
		"text":  nullable("string", "the chapter text"),
	},
}

// Schema returns the JSON Schema of a task's response envelope:
// {"records": [{"id", "name", "category", "kind", "fields": {...}}]}.
// A record's category and kind may only name the task's own output.
func Schema(task tasks.AgentTask) *jsonschema.Schema {
	required := []string{"name"}
	if task.RequiresID {
		required = []string{"id", "name"}
	}

	fields := &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}}
	for name, s := range fieldSchemas[task.ID] {
		fields.Properties[name] = s.CloneSchemas()
	}

	record := &jsonschema.Schema{
		Type:     "object",
		Required: required,
		Properties: map[string]*jsonschema.Schema{
			"id":       {Type: "string", Description: "the candidate id, copied exactly"},
			"name":     {Type: "string", MinLength: jsonschema.Ptr(1)},
			"category": {Type: "string", Enum: []any{string(task.OutputCategory)}},
			"kind":     {Type: "string", Enum: []any{string(task.OutputCategory.Kind())}},
			"fields":   fields,
		},
	}

	return &jsonschema.Schema{
		Title:    task.ID + " response",
		Type:     "object",
		Required: []string{"records"},
		Properties: map[string]*jsonschema.Schema{
			"records": {Type: "array", Items: record},
		},
	}
}

// SchemaJSON renders a task's schema as indented JSON.
func SchemaJSON(task tasks.AgentTask) (string, error) {
	data, err := json.MarshalIndent(Schema(task), "", "  ")
	if err != nil {
		return "", fmt.Errorf("render schema for %s: %w", task.ID, err)
	}
	return string(data), nil
}

var (
	resolvedMu sync.Mutex
	resolved   = map[string]*jsonschema.Resolved{}
)

// Resolved returns the resolved schema for a task, ready for validation.
// Results are cached by task id and required-id flag.
func Resolved(task tasks.AgentTask) (*jsonschema.Resolved, error) {
	key := fmt.Sprintf("%s/%t", task.ID, task.RequiresID)

	resolvedMu.Lock()
	defer resolvedMu.Unlock()
	if rs, ok := resolved[key]; ok {
		return rs, nil
	}
	rs, err := Schema(task).Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema for %s: %w", task.ID, err)
	}
	resolved[key] = rs
	return rs, nil
}
