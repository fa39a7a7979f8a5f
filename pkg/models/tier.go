package models

// Tier is a model-tier hint attached to each agent task.
type Tier string

const (
	// TierFast is for cheap, high-volume sourcing calls.
	TierFast Tier = "fast"
	// TierBalanced is the default tier for enrichment and authoring.
	TierBalanced Tier = "balanced"
	// TierDeep is for long-form or planning-heavy output.
	TierDeep Tier = "deep"
)

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierFast, TierBalanced, TierDeep:
		return true
	default:
		return false
	}
}
