package models

import "testing"

func TestIsEmptyValue(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"whitespace", "   ", true},
		{"text", "x", false},
		{"zero number", 0.0, false},
		{"false", false, false},
		{"empty list", []any{}, true},
		{"list", []any{"a"}, false},
		{"empty map", map[string]any{}, true},
		{"map", map[string]any{"a": 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEmptyValue(tt.v); got != tt.want {
				t.Errorf("IsEmptyValue(%#v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestEntity_CloneIsDeep(t *testing.T) {
	e := &Entity{
		ID:      "poi-1",
		Name:    "Old Town",
		Fields:  map[string]any{"tags": []any{"a"}, "geo": map[string]any{"lat": 1.0}},
		Sources: []string{"sightsScout"},
	}
	c := e.Clone()
	c.Fields["tags"].([]any)[0] = "b"
	c.Fields["geo"].(map[string]any)["lat"] = 2.0
	c.Sources[0] = "other"

	if e.Fields["tags"].([]any)[0] != "a" {
		t.Error("clone shares list with original")
	}
	if e.Fields["geo"].(map[string]any)["lat"] != 1.0 {
		t.Error("clone shares nested map with original")
	}
	if e.Sources[0] != "sightsScout" {
		t.Error("clone shares sources with original")
	}
}

func TestKind_IDPrefix(t *testing.T) {
	if KindPOI.IDPrefix() != "poi" || KindRoute.IDPrefix() != "route" || KindContent.IDPrefix() != "chap" {
		t.Error("unexpected id prefixes")
	}
}

func TestCategory_Kind(t *testing.T) {
	tests := map[Category]Kind{
		CategorySight:      KindPOI,
		CategoryRestaurant: KindPOI,
		CategoryHotel:      KindPOI,
		CategoryRoute:      KindRoute,
		CategoryDay:        KindContent,
		CategoryInfo:       KindContent,
		"volcano":          "",
	}
	for c, want := range tests {
		if got := c.Kind(); got != want {
			t.Errorf("%s.Kind() = %q, want %q", c, got, want)
		}
	}
}
