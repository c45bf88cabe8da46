package availability

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// MaxSuggestions caps the alternatives returned by Analyze.
const MaxSuggestions = 5

type AdvancedQuery struct {
	Query
	GracePeriod         time.Duration
	SuggestAlternatives bool
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

func (c Confidence) Valid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium
}

// Direction tags a grace-period violation. A reservation ending shortly before the
// request is tagged DirectionAfter, one starting shortly after it DirectionBefore.
// The naming follows the request's perspective of where the violation sits relative
// to the reservation and is kept as existing clients depend on it.
type Direction string

const (
	DirectionBefore Direction = "before"
	DirectionAfter  Direction = "after"
)

func (d Direction) Valid() bool {
	return d == DirectionBefore || d == DirectionAfter
}

type AnnotatedConflict struct {
	ConflictSummary
	ConflictType ConflictType `json:"conflict_type"`
	Severity     Severity     `json:"severity"`
}

type GracePeriodViolation struct {
	ReservationID string    `json:"reservation_id"`
	GapHours      float64   `json:"gap_hours"`
	Direction     Direction `json:"direction"`
}

type Suggestion struct {
	Range      DateRange  `json:"range"`
	Reason     string     `json:"reason"`
	Confidence Confidence `json:"confidence"`
}

type AdvancedResult struct {
	Available             bool                   `json:"available"`
	Window                DateRange              `json:"window"`
	Conflicts             []AnnotatedConflict    `json:"conflicts,omitempty"`
	GracePeriodViolations []GracePeriodViolation `json:"grace_period_violations,omitempty"`
	Suggestions           []Suggestion           `json:"suggestions,omitempty"`
}

// Analyze classifies every candidate inside window against requested, reports
// grace-period violations and, when asked and there is at least one conflict,
// proposes up to MaxSuggestions alternative ranges of the requested duration.
func Analyze(requested, window DateRange, candidates []Reservation, grace time.Duration, suggest bool, excludeID string) AdvancedResult {
	sorted := make([]Reservation, 0, len(candidates))
	for _, c := range candidates {
		if c.blocks(excludeID) && c.Range.Overlaps(window) {
			sorted = append(sorted, c)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Range.Start.Before(sorted[j].Range.Start)
	})

	res := AdvancedResult{Available: true, Window: window}
	for _, c := range sorted {
		a := AnalyzeConflict(requested, c.Range)
		if a.HasConflict {
			res.Conflicts = append(res.Conflicts, AnnotatedConflict{
				ConflictSummary: summarize(c),
				ConflictType:    a.Type,
				Severity:        a.Severity,
			})
			if a.Severity == SeverityBlocking {
				res.Available = false
			}
		}
		if v, ok := graceViolation(requested, c, grace); ok {
			res.GracePeriodViolations = append(res.GracePeriodViolations, v)
		}
	}

	if suggest && len(res.Conflicts) > 0 {
		res.Suggestions = suggestAlternatives(requested.Duration(), window, sorted, grace)
	}
	return res
}

func graceViolation(requested DateRange, c Reservation, grace time.Duration) (GracePeriodViolation, bool) {
	if grace <= 0 {
		return GracePeriodViolation{}, false
	}
	beforeGap := requested.Start.Sub(c.Range.End)
	if beforeGap > 0 && beforeGap < grace {
		return GracePeriodViolation{ReservationID: c.ID, GapHours: roundHours(beforeGap), Direction: DirectionAfter}, true
	}
	afterGap := c.Range.Start.Sub(requested.End)
	if afterGap > 0 && afterGap < grace {
		return GracePeriodViolation{ReservationID: c.ID, GapHours: roundHours(afterGap), Direction: DirectionBefore}, true
	}
	return GracePeriodViolation{}, false
}

func roundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*10) / 10
}

// suggestAlternatives expects sorted to be ordered by start. Gaps are measured from
// the latest end seen so far, so a short reservation nested inside a long one never
// opens a false gap.
func suggestAlternatives(duration time.Duration, window DateRange, sorted []Reservation, grace time.Duration) []Suggestion {
	if len(sorted) == 0 || duration <= 0 {
		return nil
	}

	var out []Suggestion
	latest := sorted[0]
	for _, next := range sorted[1:] {
		gapStart := latest.Range.End.Add(grace)
		gapEnd := next.Range.Start.Add(-grace)
		if gapEnd.Sub(gapStart) >= duration {
			out = append(out, Suggestion{
				Range:      DateRange{Start: gapStart, End: gapStart.Add(duration)},
				Reason:     fmt.Sprintf("Available between %s and %s", latest.Label(), next.Label()),
				Confidence: ConfidenceHigh,
			})
		}
		if next.Range.End.After(latest.Range.End) {
			latest = next
		}
	}

	first := sorted[0]
	beforeEnd := first.Range.Start.Add(-grace)
	beforeStart := beforeEnd.Add(-duration)
	if !beforeStart.Before(window.Start) {
		out = append(out, Suggestion{
			Range:      DateRange{Start: beforeStart, End: beforeEnd},
			Reason:     fmt.Sprintf("Available before %s", first.Label()),
			Confidence: ConfidenceMedium,
		})
	}

	afterStart := latest.Range.End.Add(grace)
	afterEnd := afterStart.Add(duration)
	if !afterEnd.After(window.End) {
		out = append(out, Suggestion{
			Range:      DateRange{Start: afterStart, End: afterEnd},
			Reason:     fmt.Sprintf("Available after %s", latest.Label()),
			Confidence: ConfidenceMedium,
		})
	}

	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}
