package models

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TripRequest is the structured travel-request document collected by the wizard.
type TripRequest struct {
	Title             string   `yaml:"title" json:"title"`
	Destination       string   `yaml:"destination" json:"destination"`
	Regions           []string `yaml:"regions" json:"regions,omitempty"`
	StartDate         string   `yaml:"start_date" json:"start_date"`
	EndDate           string   `yaml:"end_date" json:"end_date"`
	Travelers         int      `yaml:"travelers" json:"travelers"`
	Pace              string   `yaml:"pace" json:"pace,omitempty"`
	Budget            string   `yaml:"budget" json:"budget,omitempty"`
	Language          string   `yaml:"language" json:"language,omitempty"`
	SelectedInterests []string `yaml:"selected_interests" json:"selected_interests"`
	Stops             []Stop   `yaml:"stops" json:"stops,omitempty"`
	InfoTopics        []string `yaml:"info_topics" json:"info_topics,omitempty"`
	Notes             string   `yaml:"notes" json:"notes,omitempty"`
}

// Stop is an overnight location of the trip.
type Stop struct {
	Location string `yaml:"location" json:"location"`
	Nights   int    `yaml:"nights" json:"nights"`
}

const requestDateLayout = "2006-01-02"

// LoadRequest reads a request document from a YAML or JSON file.
func LoadRequest(path string) (*TripRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return ParseRequest(data)
}

// ParseRequest decodes a request document. JSON input is accepted since it is valid YAML.
func ParseRequest(data []byte) (*TripRequest, error) {
	var req TripRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks the fields every preparer relies on.
func (r *TripRequest) Validate() error {
	if strings.TrimSpace(r.Destination) == "" {
		return fmt.Errorf("request: destination is required")
	}
	if r.StartDate != "" || r.EndDate != "" {
		start, end, err := r.dates()
		if err != nil {
			return err
		}
		if end.Before(start) {
			return fmt.Errorf("request: end_date %s is before start_date %s", r.EndDate, r.StartDate)
		}
	}
	return nil
}

// Days returns the trip dates in order. It falls back to the sum of stop nights
// plus one when no dates are given.
func (r *TripRequest) Days() []string {
	start, end, err := r.dates()
	if err == nil && !start.IsZero() && !end.IsZero() {
		var days []string
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			days = append(days, d.Format(requestDateLayout))
		}
		return days
	}
	n := 1
	for _, s := range r.Stops {
		n += s.Nights
	}
	days := make([]string, n)
	for i := range days {
		days[i] = fmt.Sprintf("day %d", i+1)
	}
	return days
}

// Locations returns the destination followed by distinct stop locations.
func (r *TripRequest) Locations() []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}
	add(r.Destination)
	for _, s := range r.Stops {
		add(s.Location)
	}
	return out
}

func (r *TripRequest) dates() (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if r.StartDate != "" {
		if start, err = time.Parse(requestDateLayout, r.StartDate); err != nil {
			return start, end, fmt.Errorf("request: start_date: %w", err)
		}
	}
	if r.EndDate != "" {
		if end, err = time.Parse(requestDateLayout, r.EndDate); err != nil {
			return start, end, fmt.Errorf("request: end_date: %w", err)
		}
	}
	return start, end, nil
}
