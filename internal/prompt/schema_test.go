package prompt

import (
	"encoding/json"
	"testing"

	"github.com/gumaertl2/PPT-sub001/internal/tasks"
)

func TestSchema_EveryTaskResolves(t *testing.T) {
	for _, tk := range tasks.Catalog() {
		t.Run(tk.ID, func(t *testing.T) {
			if _, ok := SpecFor(tk.ID); !ok {
				t.Errorf("no prompt spec for %s", tk.ID)
			}
			if _, err := Resolved(tk); err != nil {
				t.Fatalf("Resolved failed: %v", err)
			}
		})
	}
}

func TestSchema_Validate(t *testing.T) {
	var enricher tasks.AgentTask
	for _, tk := range tasks.Catalog() {
		if tk.ID == tasks.SightsEnricher {
			enricher = tk
		}
	}
	rs, err := Resolved(enricher)
	if err != nil {
		t.Fatalf("Resolved failed: %v", err)
	}

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"valid", `{"records":[{"id":"poi-1","name":"Ribeira","fields":{"description":"x","tips":["a"],"website":null}}]}`, true},
		{"missing id", `{"records":[{"name":"Ribeira"}]}`, false},
		{"empty name", `{"records":[{"id":"poi-1","name":""}]}`, false},
		{"wrong field type", `{"records":[{"id":"poi-1","name":"R","fields":{"tips":"a"}}]}`, false},
		{"missing records", `{}`, false},
		{"unknown kind", `{"records":[{"id":"poi-1","name":"R","kind":"planet"}]}`, false},
		{"own category", `{"records":[{"id":"poi-1","name":"R","category":"sight","kind":"poi"}]}`, true},
		{"foreign category", `{"records":[{"id":"poi-1","name":"R","category":"hotel"}]}`, false},
		{"foreign kind", `{"records":[{"id":"poi-1","name":"R","kind":"route"}]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v any
			if err := json.Unmarshal([]byte(tt.input), &v); err != nil {
				t.Fatalf("bad test input: %v", err)
			}
			err := rs.Validate(v)
			if (err == nil) != tt.ok {
				t.Errorf("Validate() error = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
