// Package prepare builds the minimal input each task needs from the trip
// request and the entity store.
package prepare

import (
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

// Payload is the task-specific input handed to the prompt builder.
// Every variant embeds Base; Len and Slice expose the chunkable candidate list.
type Payload interface {
	Common() Base
	// Len returns the number of chunkable candidates.
	Len() int
	// Slice returns a copy restricted to candidates [lo, hi).
	Slice(lo, hi int) Payload
	// WithSeen returns a copy carrying the names already produced.
	WithSeen(seen []string) Payload
	// WithCorrection returns a copy in correction mode.
	WithCorrection(c *Correction) Payload
	isPayload()
}

// TripContext is the subset of the request every task sees.
type TripContext struct {
	Title       string   `json:"title,omitempty"`
	Destination string   `json:"destination"`
	Regions     []string `json:"regions,omitempty"`
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	Travelers   int      `json:"travelers,omitempty"`
	Pace        string   `json:"pace,omitempty"`
	Budget      string   `json:"budget,omitempty"`
	Language    string   `json:"language,omitempty"`
	Interests   []string `json:"interests,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// EntityRef is a store entity as passed to a model: id, name and a
// whitelisted set of fields.
type EntityRef struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Correction is the correction-mode context for a re-run.
type Correction struct {
	Feedback           string      `json:"feedback,omitempty"`
	Keep               []EntityRef `json:"keep,omitempty"`
	AdditionalVariants int         `json:"additional_variants"`
}

// Base carries the fields shared by every payload variant.
type Base struct {
	Task       string      `json:"task"`
	Trip       TripContext `json:"trip"`
	Seen       []string    `json:"seen,omitempty"`
	Correction *Correction `json:"correction,omitempty"`
}

// Common returns the shared fields.
func (b Base) Common() Base { return b }

func (Base) isPayload() {}

// SightsScoutPayload asks for sights matching a slice of interests.
type SightsScoutPayload struct {
	Base
	Interests []string `json:"interests_to_search"`
}

func (p SightsScoutPayload) Len() int { return len(p.Interests) }

func (p SightsScoutPayload) Slice(lo, hi int) Payload {
	p.Interests = p.Interests[lo:hi:hi]
	return p
}

func (p SightsScoutPayload) WithSeen(seen []string) Payload { p.Seen = seen; return p }

func (p SightsScoutPayload) WithCorrection(c *Correction) Payload { p.Correction = c; return p }

// FoodScoutPayload asks for restaurants in a slice of locations.
type FoodScoutPayload struct {
	Base
	Locations []string `json:"locations"`
}

func (p FoodScoutPayload) Len() int { return len(p.Locations) }

func (p FoodScoutPayload) Slice(lo, hi int) Payload {
	p.Locations = p.Locations[lo:hi:hi]
	return p
}

func (p FoodScoutPayload) WithSeen(seen []string) Payload { p.Seen = seen; return p }

func (p FoodScoutPayload) WithCorrection(c *Correction) Payload { p.Correction = c; return p }

// HotelScoutPayload asks for lodging at a slice of overnight stops.
type HotelScoutPayload struct {
	Base
	Stops []models.Stop `json:"stops"`
}

func (p HotelScoutPayload) Len() int { return len(p.Stops) }

func (p HotelScoutPayload) Slice(lo, hi int) Payload {
	p.Stops = p.Stops[lo:hi:hi]
	return p
}

func (p HotelScoutPayload) WithSeen(seen []string) Payload { p.Seen = seen; return p }

func (p HotelScoutPayload) WithCorrection(c *Correction) Payload { p.Correction = c; return p }

// EnrichPayload asks for details on existing entities of one category.
// Every candidate carries its id, which the response must echo.
type EnrichPayload struct {
	Base
	Category   models.Category `json:"category"`
	Candidates []EntityRef     `json:"candidates"`
}

func (p EnrichPayload) Len() int { return len(p.Candidates) }

func (p EnrichPayload) Slice(lo, hi int) Payload {
	p.Candidates = p.Candidates[lo:hi:hi]
	return p
}

func (p EnrichPayload) WithSeen(seen []string) Payload { p.Seen = seen; return p }

func (p EnrichPayload) WithCorrection(c *Correction) Payload { p.Correction = c; return p }

// RoutePayload asks for route options through the enriched sights.
// It is never split.
type RoutePayload struct {
	Base
	Sights []EntityRef   `json:"sights"`
	Stops  []models.Stop `json:"stops,omitempty"`
}

func (p RoutePayload) Len() int { return len(p.Sights) }

func (p RoutePayload) Slice(lo, hi int) Payload {
	p.Sights = p.Sights[lo:hi:hi]
	return p
}

func (p RoutePayload) WithSeen(seen []string) Payload { p.Seen = seen; return p }

func (p RoutePayload) WithCorrection(c *Correction) Payload { p.Correction = c; return p }

// DaySlot is one day of the trip with the stop the travelers sleep at.
type DaySlot struct {
	Day      int    `json:"day"`
	Label    string `json:"label"`
	Location string `json:"location,omitempty"`
}

// DayPlanPayload asks for day-by-day itinerary text for a slice of days.
type DayPlanPayload struct {
	Base
	Days   []DaySlot   `json:"days"`
	Routes []EntityRef `json:"routes"`
	Hotels []EntityRef `json:"hotels,omitempty"`
	Sights []EntityRef `json:"sights,omitempty"`
}

func (p DayPlanPayload) Len() int { return len(p.Days) }

func (p DayPlanPayload) Slice(lo, hi int) Payload {
	p.Days = p.Days[lo:hi:hi]
	return p
}

func (p DayPlanPayload) WithSeen(seen []string) Payload { p.Seen = seen; return p }

func (p DayPlanPayload) WithCorrection(c *Correction) Payload { p.Correction = c; return p }

// InfoPayload asks for informational chapters on a slice of topics.
type InfoPayload struct {
	Base
	Topics []string `json:"topics"`
}

func (p InfoPayload) Len() int { return len(p.Topics) }

func (p InfoPayload) Slice(lo, hi int) Payload {
	p.Topics = p.Topics[lo:hi:hi]
	return p
}

func (p InfoPayload) WithSeen(seen []string) Payload { p.Seen = seen; return p }

func (p InfoPayload) WithCorrection(c *Correction) Payload { p.Correction = c; return p }
