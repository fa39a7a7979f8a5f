package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind is the store partition an entity lives in.
type Kind string

const (
	// KindPOI holds points of interest: sights, restaurants, hotels.
	KindPOI Kind = "poi"
	// KindRoute holds route options.
	KindRoute Kind = "route"
	// KindContent holds narrative content: day plans and info chapters.
	KindContent Kind = "content"
)

// Valid returns true if the kind is a known value.
func (k Kind) Valid() bool {
	switch k {
	case KindPOI, KindRoute, KindContent:
		return true
	default:
		return false
	}
}

// IDPrefix returns the prefix used for ids minted in this partition.
func (k Kind) IDPrefix() string {
	switch k {
	case KindRoute:
		return "route"
	case KindContent:
		return "chap"
	default:
		return "poi"
	}
}

// Category discriminates entities inside a partition.
type Category string

const (
	CategorySight      Category = "sight"
	CategoryRestaurant Category = "restaurant"
	CategoryHotel      Category = "hotel"
	CategoryRoute      Category = "route"
	CategoryDay        Category = "day"
	CategoryInfo       Category = "info"
)

// Kind returns the partition a category belongs to, or "" for an unknown category.
func (c Category) Kind() Kind {
	switch c {
	case CategorySight, CategoryRestaurant, CategoryHotel:
		return KindPOI
	case CategoryRoute:
		return KindRoute
	case CategoryDay, CategoryInfo:
		return KindContent
	default:
		return ""
	}
}

// Entity is a record owned by the entity store.
type Entity struct {
	// ID is assigned once by the store and never reused.
	ID string `json:"id"`
	// Kind is the partition this entity is routed to.
	Kind Kind `json:"kind"`
	// Category discriminates entities of the same kind.
	Category Category `json:"category"`
	// Name is the display name used for identity resolution.
	Name string `json:"name"`
	// Fields holds the generated attributes.
	Fields map[string]any `json:"fields,omitempty"`
	// ProducedBy is the task that created the entity.
	ProducedBy string `json:"produced_by"`
	// Sources lists every task that has merged data into the entity.
	Sources []string `json:"sources,omitempty"`
	// CreatedAt is when the entity was first committed.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the entity was last committed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers never share maps with the store.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Fields = cloneMap(e.Fields)
	if e.Sources != nil {
		c.Sources = append([]string(nil), e.Sources...)
	}
	return &c
}

// Field returns a field value as a string, or "" if it is absent or not a string.
func (e *Entity) Field(name string) string {
	if e == nil {
		return ""
	}
	if s, ok := e.Fields[name].(string); ok {
		return s
	}
	return ""
}

// IsEmptyValue reports whether a field value counts as empty for merge purposes.
// Numbers and booleans are never empty.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case json.RawMessage:
		s := strings.TrimSpace(string(t))
		return s == "" || s == "null" || s == `""` || s == "[]" || s == "{}"
	default:
		return false
	}
}

// CloneFields returns a deep copy of a field map.
func CloneFields(m map[string]any) map[string]any {
	return cloneMap(m)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
