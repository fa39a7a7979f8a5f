package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gumaertl2/PPT-sub001/internal/backend"
	"github.com/gumaertl2/PPT-sub001/internal/config"
	"github.com/gumaertl2/PPT-sub001/internal/store"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

func sampleRequest() *models.TripRequest {
	return &models.TripRequest{
		Title:             "Northern Portugal",
		Destination:       "Porto",
		StartDate:         "2026-05-01",
		EndDate:           "2026-05-04",
		Travelers:         2,
		SelectedInterests: []string{"history", "wine", "restaurant", "hiking", "beaches", "castles", "hotel", "markets"},
		Stops: []models.Stop{
			{Location: "Porto", Nights: 2},
			{Location: "Braga", Nights: 1},
		},
	}
}

func testClock() func() time.Time {
	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
}

func newRegistry(t *testing.T, cfg *config.Config) *tasks.Registry {
	t.Helper()
	reg, err := tasks.NewRegistry(cfg)
	require.NoError(t, err)
	return reg
}

// tableRows returns the rows of the markdown table under "### title".
func tableRows(text, title string) [][]string {
	var rows [][]string
	in := false
	line := 0
	for _, l := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(l, "### "):
			in = l == "### "+title
			line = 0
			continue
		case strings.HasPrefix(l, "#") || strings.TrimSpace(l) == "":
			in = false
			continue
		case !in || !strings.HasPrefix(l, "|"):
			continue
		}
		line++
		if line <= 2 {
			continue
		}
		cells := strings.Split(strings.Trim(l, "|"), "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		rows = append(rows, cells)
	}
	return rows
}

// answer is a deterministic model: its records depend only on the
// candidates listed in the prompt.
func answer(task, prompt string) string {
	type obj = map[string]any
	var records []obj
	each := func(title string, fn func(row []string) obj) {
		for _, r := range tableRows(prompt, title) {
			records = append(records, fn(r))
		}
	}

	switch task {
	case tasks.SightsScout:
		each("Interests", func(r []string) obj {
			return obj{"name": "Best of " + r[0], "fields": obj{"interest": r[0]}}
		})
	case tasks.FoodScout:
		each("Locations", func(r []string) obj {
			return obj{"name": "Dinner in " + r[0], "fields": obj{"location": r[0]}}
		})
	case tasks.HotelScout:
		each("Stops", func(r []string) obj {
			return obj{"name": "Hotel in " + r[0], "fields": obj{"location": r[0]}}
		})
	case tasks.SightsEnricher, tasks.FoodEnricher:
		each("Candidates", func(r []string) obj {
			return obj{"id": r[0], "name": r[1], "fields": obj{"description": "About " + r[1]}}
		})
	case tasks.RouteArchitect:
		names := []string{"Coastal loop", "Mountain pass", "City circuit"}
		if keep := tableRows(prompt, "Keep"); len(keep) > 0 {
			names = []string{keep[0][1], "Wine valley", "River cruise", "Island hop"}
		}
		for _, n := range names {
			records = append(records, obj{"name": n, "fields": obj{"summary": "via " + n}})
		}
	case tasks.DayPlanner:
		each("Days", func(r []string) obj {
			return obj{"name": fmt.Sprintf("Day %s: %s", r[0], r[2])}
		})
	case tasks.InfoAuthor:
		each("Topics", func(r []string) obj {
			return obj{"name": "Guide: " + r[0]}
		})
	}
	data, _ := json.Marshal(obj{"records": records})
	return string(data)
}

// stub answers every call with answer and records the calls it saw.
type stub struct {
	calls  []backend.Request
	before func(req backend.Request) (string, error)
}

func (s *stub) Invoke(ctx context.Context, req backend.Request) (backend.Response, error) {
	s.calls = append(s.calls, req)
	if s.before != nil {
		text, err := s.before(req)
		if err != nil || text != "" {
			return backend.Response{Text: text, InputTokens: 10, OutputTokens: 5}, err
		}
	}
	return backend.Response{Text: answer(req.Task, req.User), InputTokens: 10, OutputTokens: 5}, nil
}

func (s *stub) callsFor(task string) int {
	n := 0
	for _, c := range s.calls {
		if c.Task == task {
			n++
		}
	}
	return n
}

type entityView struct {
	Category models.Category
	Name     string
	Fields   map[string]any
}

// snapshot projects the store onto what a reader cares about, without
// ids and timestamps.
func snapshot(st *store.Store) []entityView {
	var out []entityView
	for _, e := range st.All() {
		out = append(out, entityView{Category: e.Category, Name: e.Name, Fields: e.Fields})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}
