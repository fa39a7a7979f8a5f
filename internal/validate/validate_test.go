package validate

import (
	"errors"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
)

func mustTask(t *testing.T, id string) tasks.AgentTask {
	t.Helper()
	tk, ok := tasks.Lookup(id)
	if !ok {
		t.Fatalf("unknown task %s", id)
	}
	return tk
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"plain", `{"records":[]}`, `{"records":[]}`, true},
		{"surrounding space", "\n  {\"records\":[]}\n", `{"records":[]}`, true},
		{"json fence", "```json\n{\"records\":[]}\n```", `{"records":[]}`, true},
		{"bare fence", "```\n{\"records\":[]}\n```", `{"records":[]}`, true},
		{"prose around", "Here you go:\n{\"records\":[]}\nHope this helps!", `{"records":[]}`, true},
		{"bare array", `[{"name":"A"}]`, `{"records":[{"name":"A"}]}`, true},
		{"array in prose", "Result: [{\"name\":\"A\"}] done", `{"records":[{"name":"A"}]}`, true},
		{"empty", "   ", "", false},
		{"no json", "Sorry, I cannot help with that.", "", false},
		{"truncated", `{"records":[{"name":"A"}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Strip(tt.raw)
			if tt.ok {
				if err != nil {
					t.Fatalf("Strip failed: %v", err)
				}
				if got != tt.want {
					t.Errorf("Strip = %q, want %q", got, tt.want)
				}
				return
			}
			if err == nil {
				t.Errorf("Strip(%q) should fail, got %q", tt.raw, got)
			}
		})
	}
}

func TestValidate_Sourcing(t *testing.T) {
	task := mustTask(t, tasks.SightsScout)
	raw := "```json\n" + `{"records":[
		{"id":null,"name":"  Torre de Belém ","category":"sight","fields":{"interest":"history","duration_minutes":60}},
		{"name":"MAAT","fields":{"address":null}}
	]}` + "\n```"

	resp, err := Validate(raw, task, 2)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if resp.Task != tasks.SightsScout || resp.Chunk != 2 {
		t.Errorf("Task/Chunk = %s/%d", resp.Task, resp.Chunk)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(resp.Records))
	}
	if resp.Records[0].Name != "Torre de Belém" {
		t.Errorf("name not trimmed: %q", resp.Records[0].Name)
	}
	if resp.Records[0].ID != "" {
		t.Errorf("null id should decode as empty, got %q", resp.Records[0].ID)
	}
	if got := resp.Records[0].Fields["duration_minutes"]; got != float64(60) {
		t.Errorf("duration_minutes = %v", got)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		task string
		raw  string
	}{
		{"not json", tasks.SightsScout, "no idea"},
		{"schema mismatch", tasks.SightsScout, `{"records":[{"name":"A","fields":{"duration_minutes":"long"}}]}`},
		{"missing records", tasks.FoodScout, `{"items":[]}`},
		{"missing name", tasks.FoodScout, `{"records":[{"fields":{}}]}`},
		{"blank name", tasks.FoodScout, `{"records":[{"name":"   "}]}`},
		{"missing id for enrichment", tasks.SightsEnricher, `{"records":[{"name":"Ribeira"}]}`},
		{"blank id for enrichment", tasks.FoodEnricher, `{"records":[{"id":" ","name":"Cervejaria"}]}`},
		{"null id for enrichment", tasks.FoodEnricher, `{"records":[{"id":null,"name":"Cervejaria"}]}`},
		{"foreign category", tasks.SightsScout, `{"records":[{"name":"Grand Palace Hotel","category":"hotel"}]}`},
		{"foreign kind", tasks.HotelScout, `{"records":[{"name":"Coastal loop","kind":"route"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.raw, mustTask(t, tt.task), 1)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !failure.Is(err, failure.ValidationFailed) {
				t.Errorf("kind = %v, want validation_failed", failure.KindOf(err))
			}
			var fe *failure.Error
			if !errors.As(err, &fe) || fe.Task != tt.task || fe.Chunk != 1 {
				t.Errorf("error should carry task and chunk, got %+v", fe)
			}
		})
	}
}

func TestValidate_SchemaUnavailable(t *testing.T) {
	orig := resolveSchema
	t.Cleanup(func() { resolveSchema = orig })
	resolveSchema = func(tasks.AgentTask) (*jsonschema.Resolved, error) {
		return nil, errors.New("broken schema")
	}

	_, err := Validate(`{"records":[]}`, mustTask(t, tasks.InfoAuthor), 3)
	if !failure.Is(err, failure.ValidationFailed) {
		t.Fatalf("kind = %v, want validation_failed", failure.KindOf(err))
	}
	var fe *failure.Error
	if !errors.As(err, &fe) || fe.Task != tasks.InfoAuthor || fe.Chunk != 3 {
		t.Errorf("error should carry task and chunk, got %+v", fe)
	}
}

func TestValidate_EnrichmentKeepsIDs(t *testing.T) {
	resp, err := Validate(`{"records":[{"id":"poi-42","name":"Ribeira","fields":{"tips":["go early"]}}]}`,
		mustTask(t, tasks.SightsEnricher), 0)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if resp.Records[0].ID != "poi-42" {
		t.Errorf("ID = %q, want poi-42", resp.Records[0].ID)
	}
}
