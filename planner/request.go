package planner

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TripRequest is the structured input of one planning call.
type TripRequest struct {
	Location     string   `json:"location"`
	Interests    []string `json:"interests"`
	DurationDays float64  `json:"duration_days"`
	Avoid        []string `json:"avoid,omitempty"`
}

// Validate checks DurationDays; Location is passed through as given.
// maxDays bounds DurationDays when positive. Errors wrap ErrInvalidRequest.
func (r TripRequest) Validate(maxDays float64) error {
	if math.IsNaN(r.DurationDays) || math.IsInf(r.DurationDays, 0) || r.DurationDays <= 0 {
		return fmt.Errorf("%w: duration_days must be a positive number", ErrInvalidRequest)
	}

	if maxDays > 0 && r.DurationDays > maxDays {
		return fmt.Errorf("%w: duration_days must not exceed %s", ErrInvalidRequest, formatDays(maxDays))
	}

	return nil
}

// BuildPrompt renders the request as the coordinator's user message. User
// text is interpolated verbatim and an empty avoid list still renders the
// trailing clause.
func BuildPrompt(r TripRequest) string {
	return fmt.Sprintf(
		"I will be in %s for %s days. I'm interested in %s. Please avoid: %s.",
		r.Location,
		formatDays(r.DurationDays),
		strings.Join(r.Interests, ", "),
		strings.Join(r.Avoid, ", "),
	)
}

// formatDays renders the shortest decimal form (2 -> "2", 2.5 -> "2.5").
func formatDays(d float64) string { return strconv.FormatFloat(d, 'f', -1, 64) }
