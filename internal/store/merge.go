package store

import (
	"reflect"
	"sort"

	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// Action is what an upsert did to the store.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// FieldDecision records which side won for one field.
type FieldDecision string

const (
	KeepExisting FieldDecision = "keep-existing"
	TakeIncoming FieldDecision = "take-incoming"
)

// Policy selects how incoming fields are merged into an existing entity.
type Policy int

const (
	// Preserve takes every non-empty incoming value and keeps existing
	// values where the incoming one is empty or absent.
	Preserve Policy = iota
	// FillOnly takes incoming values only for fields that are empty in
	// the existing entity.
	FillOnly
)

// String returns the policy name.
func (p Policy) String() string {
	if p == FillOnly {
		return "fill-only"
	}
	return "preserve"
}

// MergeRecord describes the outcome of one upsert.
type MergeRecord struct {
	Action    Action                   `json:"action"`
	EntityID  string                   `json:"entity_id"`
	Name      string                   `json:"name,omitempty"`
	Decisions map[string]FieldDecision `json:"decisions,omitempty"`
}

// Changed reports whether any field took the incoming value.
func (m MergeRecord) Changed() bool {
	if m.Action == ActionCreate {
		return true
	}
	for _, d := range m.Decisions {
		if d == TakeIncoming {
			return true
		}
	}
	return false
}

// Fields returns the decided field names in sorted order.
func (m MergeRecord) Fields() []string {
	names := make([]string, 0, len(m.Decisions))
	for k := range m.Decisions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// mergeFields applies incoming onto existing in place and returns the
// per-field decisions. Fields absent from incoming are untouched and get
// no decision. A non-empty existing value is never replaced by an empty one,
// and an equal incoming value counts as keeping the existing one.
func mergeFields(existing, incoming map[string]any, policy Policy) map[string]FieldDecision {
	decisions := make(map[string]FieldDecision, len(incoming))
	for k, in := range incoming {
		cur, has := existing[k]
		curEmpty := !has || models.IsEmptyValue(cur)

		switch {
		case models.IsEmptyValue(in):
			decisions[k] = KeepExisting
		case curEmpty:
			existing[k] = in
			decisions[k] = TakeIncoming
		case policy == FillOnly || reflect.DeepEqual(cur, in):
			decisions[k] = KeepExisting
		default:
			existing[k] = in
			decisions[k] = TakeIncoming
		}
	}
	return decisions
}
