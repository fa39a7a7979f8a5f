package prompt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/internal/prepare"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

const contractText = `Respond with a single JSON object and nothing else.
Do not use markdown, code fences or commentary before or after the object.
The response must start with { and end with }.
It must validate against this JSON Schema:`

// Build renders a payload into the prompt document for task.
// Equal inputs always produce equal documents.
func Build(p prepare.Payload, task tasks.AgentTask) (Document, error) {
	spec, ok := SpecFor(task.ID)
	if !ok {
		return Document{}, failure.New(failure.General, "no prompt spec for task %s", task.ID).At(task.ID, -1)
	}
	schema, err := SchemaJSON(task)
	if err != nil {
		return Document{}, err
	}

	base := p.Common()
	doc := Document{
		Task:         task.ID,
		Role:         spec.Role,
		Context:      append([]Block{tripBlock(base.Trip)}, payloadBlocks(p)...),
		Instructions: append([]string(nil), spec.Instructions...),
		Contract:     contractText + "\n\n" + schema,
	}

	if hasIDs(p) {
		doc.Constraints = append(doc.Constraints,
			"Whenever a record refers to a listed item that has an id, copy that id into the record's id field exactly as given. Never invent, shorten or alter ids.")
	}
	if task.RequiresID {
		doc.Constraints = append(doc.Constraints, "Every record must carry the id of the candidate it describes.")
	} else if task.Phase == tasks.PhaseSourcing {
		doc.Constraints = append(doc.Constraints, "New places carry no id; give each a precise, official name.")
	}
	if len(base.Seen) > 0 {
		doc.Constraints = append(doc.Constraints,
			"These are already covered; do not return them again: "+strings.Join(base.Seen, "; ")+".")
	}
	if c := base.Correction; c != nil {
		doc.Context = append(doc.Context, correctionBlock(c))
		if len(c.Keep) > 0 {
			doc.Constraints = append(doc.Constraints,
				"The entries in the keep table stay exactly as they are; do not return them.")
		}
		doc.Constraints = append(doc.Constraints,
			fmt.Sprintf("Return exactly %d new %s.", c.AdditionalVariants, plural(c.AdditionalVariants, "variant", "variants")))
		if fb := strings.TrimSpace(c.Feedback); fb != "" {
			doc.Constraints = append(doc.Constraints, "Address this feedback from the traveler: "+fb)
		}
	}
	if lang := strings.TrimSpace(base.Trip.Language); lang != "" {
		doc.Constraints = append(doc.Constraints, "Write all text values in "+lang+".")
	}
	return doc, nil
}

func tripBlock(t prepare.TripContext) Block {
	var pairs []Pair
	add := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			pairs = append(pairs, Pair{Key: k, Value: v})
		}
	}
	add("title", t.Title)
	add("destination", t.Destination)
	add("regions", strings.Join(t.Regions, ", "))
	add("start_date", t.StartDate)
	add("end_date", t.EndDate)
	if t.Travelers > 0 {
		add("travelers", strconv.Itoa(t.Travelers))
	}
	add("pace", t.Pace)
	add("budget", t.Budget)
	add("interests", strings.Join(t.Interests, ", "))
	add("notes", t.Notes)
	return Block{Title: "Trip", Pairs: pairs}
}

func payloadBlocks(p prepare.Payload) []Block {
	switch v := p.(type) {
	case prepare.SightsScoutPayload:
		return []Block{listBlock("Interests", "interest", v.Interests)}
	case prepare.FoodScoutPayload:
		return []Block{listBlock("Locations", "location", v.Locations)}
	case prepare.HotelScoutPayload:
		return []Block{stopsBlock("Stops", v.Stops)}
	case prepare.EnrichPayload:
		return []Block{refBlock("Candidates", v.Candidates)}
	case prepare.RoutePayload:
		return []Block{refBlock("Sights", v.Sights), stopsBlock("Overnight stops", v.Stops)}
	case prepare.DayPlanPayload:
		rows := make([][]string, len(v.Days))
		for i, d := range v.Days {
			rows[i] = []string{strconv.Itoa(d.Day), d.Label, d.Location}
		}
		return []Block{
			{Title: "Days", Table: &Table{Columns: []string{"day", "date", "location"}, Rows: rows}},
			refBlock("Route options", v.Routes),
			refBlock("Hotels", v.Hotels),
			refBlock("Sights", v.Sights),
		}
	case prepare.InfoPayload:
		return []Block{listBlock("Topics", "topic", v.Topics)}
	default:
		return nil
	}
}

func listBlock(title, column string, items []string) Block {
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{it}
	}
	return Block{Title: title, Table: &Table{Columns: []string{column}, Rows: rows}}
}

func stopsBlock(title string, stops []models.Stop) Block {
	rows := make([][]string, len(stops))
	for i, s := range stops {
		rows[i] = []string{s.Location, strconv.Itoa(s.Nights)}
	}
	return Block{Title: title, Table: &Table{Columns: []string{"location", "nights"}, Rows: rows}}
}

func refBlock(title string, refs []prepare.EntityRef) Block {
	rows := make([][]string, len(refs))
	for i, r := range refs {
		rows[i] = []string{r.ID, r.Name, formatFields(r.Fields)}
	}
	return Block{Title: title, Table: &Table{Columns: []string{"id", "name", "details"}, Rows: rows}}
}

func correctionBlock(c *prepare.Correction) Block {
	rows := make([][]string, len(c.Keep))
	for i, r := range c.Keep {
		rows[i] = []string{r.ID, r.Name}
	}
	return Block{Title: "Keep", Table: &Table{Columns: []string{"id", "name"}, Rows: rows}}
}

// formatFields renders whitelisted fields as sorted key=value pairs.
func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if models.IsEmptyValue(fields[k]) {
			continue
		}
		parts = append(parts, k+"="+formatValue(fields[k]))
	}
	return strings.Join(parts, "; ")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		items := make([]string, len(t))
		for i, it := range t {
			items[i] = formatValue(it)
		}
		return strings.Join(items, ", ")
	case []string:
		return strings.Join(t, ", ")
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func hasIDs(p prepare.Payload) bool {
	switch v := p.(type) {
	case prepare.EnrichPayload:
		return len(v.Candidates) > 0
	case prepare.RoutePayload:
		return len(v.Sights) > 0
	case prepare.DayPlanPayload:
		return len(v.Routes)+len(v.Sights) > 0
	}
	return p.Common().Correction != nil && len(p.Common().Correction.Keep) > 0
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
