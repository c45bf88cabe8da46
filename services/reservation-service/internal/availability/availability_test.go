package availability

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

func june(day int) time.Time {
	return time.Date(2026, time.June, day, 0, 0, 0, 0, time.UTC)
}

func rng(start, end time.Time) DateRange {
	return DateRange{Start: start, End: end}
}

func confirmed(id string, start, end time.Time) Reservation {
	return Reservation{ID: id, PropertyID: "prop-1", Range: rng(start, end), Status: StatusConfirmed, GuestName: "guest " + id}
}

type fakeStore struct {
	reservations []Reservation
	err          error
	calls        int
	lastFilter   Filter
}

func (s *fakeStore) ListReservations(_ context.Context, f Filter) ([]Reservation, error) {
	s.calls++
	s.lastFilter = f
	if s.err != nil {
		return nil, s.err
	}
	var out []Reservation
	for _, r := range s.reservations {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range.Start.Before(out[j].Range.Start) })
	return out, nil
}

func TestNewDateRangeRejectsEmptyAndNegative(t *testing.T) {
	if _, err := NewDateRange(june(10), june(10)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for zero length, got %v", err)
	}
	if _, err := NewDateRange(june(11), june(10)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for negative length, got %v", err)
	}
	if _, err := NewDateRange(time.Time{}, june(10)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for missing start, got %v", err)
	}
	r, err := NewDateRange(june(10), june(12))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Duration() != 48*time.Hour {
		t.Fatalf("expected 48h, got %s", r.Duration())
	}
}

func TestOverlapSymmetry(t *testing.T) {
	ranges := []DateRange{
		rng(june(1), june(5)),
		rng(june(5), june(10)),
		rng(june(3), june(7)),
		rng(june(1), june(20)),
		rng(june(6), june(8)),
		rng(june(20), june(25)),
	}
	for i, a := range ranges {
		for j, b := range ranges {
			if a.Overlaps(b) != b.Overlaps(a) {
				t.Fatalf("overlap not symmetric for %d,%d", i, j)
			}
		}
	}
	if ranges[0].Overlaps(ranges[1]) {
		t.Fatal("touching ranges must not overlap")
	}
}

func TestOverlapMatchesThreeWayUnion(t *testing.T) {
	req := rng(june(10), june(15))
	for startDay := 5; startDay <= 20; startDay++ {
		for endDay := startDay + 1; endDay <= 21; endDay++ {
			ex := rng(june(startDay), june(endDay))
			startsInside := !ex.Start.Before(req.Start) && ex.Start.Before(req.End)
			endsInside := ex.End.After(req.Start) && !ex.End.After(req.End)
			encompasses := !ex.Start.After(req.Start) && !ex.End.Before(req.End)
			union := startsInside || endsInside || encompasses
			if union != ex.Overlaps(req) {
				t.Fatalf("[%d,%d): union=%v overlaps=%v", startDay, endDay, union, ex.Overlaps(req))
			}
		}
	}
}

func TestAnalyzeConflictClassification(t *testing.T) {
	req := rng(june(10), june(20))
	cases := []struct {
		name     string
		existing DateRange
		want     ConflictType
	}{
		{"ends at request start", rng(june(1), june(10)), ConflictAdjacent},
		{"starts at request end", rng(june(20), june(25)), ConflictAdjacent},
		{"far away", rng(june(25), june(28)), ConflictAdjacent},
		{"inside request", rng(june(12), june(18)), ConflictEncompassing},
		{"identical", rng(june(10), june(20)), ConflictEncompassing},
		{"contains request", rng(june(5), june(25)), ConflictEncompassed},
		{"same start, longer", rng(june(10), june(25)), ConflictEncompassed},
		{"overlaps start", rng(june(5), june(15)), ConflictOverlap},
		{"overlaps end", rng(june(15), june(25)), ConflictOverlap},
	}
	for _, tc := range cases {
		got := AnalyzeConflict(req, tc.existing)
		if got.Type != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got.Type)
		}
		if !got.Type.Valid() || !got.Severity.Valid() {
			t.Fatalf("%s: invalid enum values %+v", tc.name, got)
		}
		if got.Type == ConflictAdjacent {
			if got.HasConflict || got.Severity != SeverityInfo {
				t.Fatalf("%s: adjacent must be info without conflict, got %+v", tc.name, got)
			}
		} else if !got.HasConflict || got.Severity != SeverityBlocking {
			t.Fatalf("%s: expected blocking conflict, got %+v", tc.name, got)
		}
	}
}

func TestEvaluateSkipsCancelledAndExcluded(t *testing.T) {
	req := rng(june(10), june(15))
	cancelled := confirmed("c", june(10), june(15))
	cancelled.Status = StatusCancelled
	self := confirmed("self", june(9), june(16))

	res := Evaluate(req, []Reservation{cancelled, self}, "self")
	if !res.Available || len(res.Conflicts) != 0 {
		t.Fatalf("expected available, got %+v", res)
	}

	res = Evaluate(req, []Reservation{cancelled, self}, "")
	if res.Available || len(res.Conflicts) != 1 || res.Conflicts[0].ID != "self" {
		t.Fatalf("expected single conflict with self, got %+v", res)
	}
	if res.Conflicts[0].GuestName != "guest self" || !res.Conflicts[0].Start.Equal(june(9)) {
		t.Fatalf("unexpected projection %+v", res.Conflicts[0])
	}
}

func TestCheckEncompassedExample(t *testing.T) {
	store := &fakeStore{reservations: []Reservation{confirmed("r1", june(10), june(17))}}
	checker := NewChecker(store)

	res, err := checker.Check(context.Background(), Query{PropertyID: "prop-1", Range: rng(june(12), june(15))})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Available || len(res.Conflicts) != 1 {
		t.Fatalf("expected one conflict, got %+v", res)
	}

	adv, err := checker.CheckAdvanced(context.Background(), AdvancedQuery{Query: Query{PropertyID: "prop-1", Range: rng(june(12), june(15))}})
	if err != nil {
		t.Fatalf("advanced: %v", err)
	}
	if adv.Available || len(adv.Conflicts) != 1 {
		t.Fatalf("expected one conflict, got %+v", adv)
	}
	if adv.Conflicts[0].ConflictType != ConflictEncompassed || adv.Conflicts[0].Severity != SeverityBlocking {
		t.Fatalf("expected blocking encompassed, got %+v", adv.Conflicts[0])
	}

	res, err = checker.Check(context.Background(), Query{PropertyID: "prop-1", Range: rng(june(17), june(20))})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Available {
		t.Fatalf("adjacent request should be available, got %+v", res)
	}
}

func TestCheckSelfExclusion(t *testing.T) {
	store := &fakeStore{reservations: []Reservation{confirmed("r1", june(10), june(17))}}
	res, err := NewChecker(store).Check(context.Background(), Query{
		PropertyID:           "prop-1",
		Range:                rng(june(8), june(19)),
		ExcludeReservationID: "r1",
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Available {
		t.Fatalf("reservation must not conflict with itself, got %+v", res)
	}
	if store.lastFilter.ExcludeReservationID != "r1" {
		t.Fatalf("exclusion not passed to store: %+v", store.lastFilter)
	}
}

func TestCheckCancelledNeverBlocks(t *testing.T) {
	r := confirmed("r1", june(10), june(15))
	r.Status = StatusCancelled
	store := &fakeStore{reservations: []Reservation{r}}

	res, err := NewChecker(store).Check(context.Background(), Query{PropertyID: "prop-1", Range: rng(june(10), june(15))})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Available || len(res.Conflicts) != 0 {
		t.Fatalf("cancelled reservation must not block, got %+v", res)
	}

	adv := Analyze(rng(june(10), june(15)), rng(june(3), june(22)), []Reservation{r}, 0, true, "")
	if !adv.Available || len(adv.Conflicts) != 0 || len(adv.Suggestions) != 0 {
		t.Fatalf("cancelled reservation must be ignored by analysis, got %+v", adv)
	}
}

func TestCheckRejectsInvalidRangeBeforeFetch(t *testing.T) {
	store := &fakeStore{}
	checker := NewChecker(store)

	_, err := checker.Check(context.Background(), Query{PropertyID: "prop-1", Range: rng(june(15), june(10))})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	_, err = checker.CheckAdvanced(context.Background(), AdvancedQuery{Query: Query{PropertyID: "prop-1", Range: rng(june(10), june(10))}})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	_, err = checker.Check(context.Background(), Query{Range: rng(june(10), june(15))})
	if !errors.Is(err, ErrMissingProperty) {
		t.Fatalf("expected ErrMissingProperty, got %v", err)
	}
	_, err = checker.CheckAdvanced(context.Background(), AdvancedQuery{
		Query:       Query{PropertyID: "prop-1", Range: rng(june(10), june(15))},
		GracePeriod: -time.Hour,
	})
	if !errors.Is(err, ErrInvalidGracePeriod) {
		t.Fatalf("expected ErrInvalidGracePeriod, got %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("store must not be called for invalid queries, got %d calls", store.calls)
	}
}

func TestCheckPropagatesStoreError(t *testing.T) {
	boom := errors.New("connection reset")
	store := &fakeStore{err: boom}
	_, err := NewChecker(store).Check(context.Background(), Query{PropertyID: "prop-1", Range: rng(june(10), june(15))})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected exactly one fetch, got %d", store.calls)
	}
}

func TestCheckEmptyPropertyIsAvailable(t *testing.T) {
	res, err := NewChecker(&fakeStore{}).Check(context.Background(), Query{PropertyID: "unknown", Range: rng(june(10), june(15))})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.Available {
		t.Fatalf("empty candidate set must be available, got %+v", res)
	}
}

func TestCheckAdvancedWidensWindow(t *testing.T) {
	store := &fakeStore{}
	req := rng(june(10), june(15))
	adv, err := NewChecker(store).CheckAdvanced(context.Background(), AdvancedQuery{Query: Query{PropertyID: "prop-1", Range: req}})
	if err != nil {
		t.Fatalf("advanced: %v", err)
	}
	if !store.lastFilter.Window.Start.Equal(june(3)) || !store.lastFilter.Window.End.Equal(june(22)) {
		t.Fatalf("unexpected window %+v", store.lastFilter.Window)
	}
	if len(store.lastFilter.ExcludeStatuses) != 1 || store.lastFilter.ExcludeStatuses[0] != StatusCancelled {
		t.Fatalf("cancelled reservations must be filtered, got %+v", store.lastFilter.ExcludeStatuses)
	}
	if !adv.Available || !adv.Window.Start.Equal(june(3)) {
		t.Fatalf("unexpected result %+v", adv)
	}
}

func TestGracePeriodViolations(t *testing.T) {
	existing := confirmed("r1", june(10), june(17))
	window := rng(june(1), june(30))

	// A zero gap is not a violation: the boundary is strictly positive.
	adv := Analyze(rng(june(17), june(20)), window, []Reservation{existing}, 48*time.Hour, false, "")
	if !adv.Available || len(adv.GracePeriodViolations) != 0 {
		t.Fatalf("expected no violation for zero gap, got %+v", adv)
	}

	adv = Analyze(rng(june(18), june(20)), window, []Reservation{existing}, 48*time.Hour, false, "")
	if !adv.Available {
		t.Fatal("grace violations must not affect availability")
	}
	if len(adv.GracePeriodViolations) != 1 {
		t.Fatalf("expected one violation, got %+v", adv.GracePeriodViolations)
	}
	v := adv.GracePeriodViolations[0]
	if v.ReservationID != "r1" || v.GapHours != 24 || v.Direction != DirectionAfter {
		t.Fatalf("unexpected violation %+v", v)
	}

	adv = Analyze(rng(june(5), june(9).Add(14*time.Hour)), window, []Reservation{existing}, 24*time.Hour, false, "")
	if len(adv.GracePeriodViolations) != 1 {
		t.Fatalf("expected one violation, got %+v", adv.GracePeriodViolations)
	}
	v = adv.GracePeriodViolations[0]
	if v.GapHours != 10 || v.Direction != DirectionBefore {
		t.Fatalf("unexpected violation %+v", v)
	}
}

func TestGracePeriodBoundaryIsExclusive(t *testing.T) {
	grace := 48 * time.Hour
	req := rng(june(20), june(22))
	window := req.Widen(SearchPadding)

	exact := confirmed("exact", june(15), req.Start.Add(-grace))
	adv := Analyze(req, window, []Reservation{exact}, grace, false, "")
	if len(adv.GracePeriodViolations) != 0 {
		t.Fatalf("gap equal to grace must not violate, got %+v", adv.GracePeriodViolations)
	}

	inside := confirmed("inside", june(15), req.Start.Add(-grace+time.Millisecond))
	adv = Analyze(req, window, []Reservation{inside}, grace, false, "")
	if len(adv.GracePeriodViolations) != 1 {
		t.Fatalf("gap just under grace must violate, got %+v", adv.GracePeriodViolations)
	}
	if adv.GracePeriodViolations[0].GapHours != 48 {
		t.Fatalf("expected gap rounded to 48.0, got %v", adv.GracePeriodViolations[0].GapHours)
	}
}

func TestGapHoursRoundedToOneDecimal(t *testing.T) {
	existing := confirmed("r1", june(10), june(12))
	req := rng(june(12).Add(5*time.Hour+17*time.Minute), june(14))
	adv := Analyze(req, req.Widen(SearchPadding), []Reservation{existing}, 24*time.Hour, false, "")
	if len(adv.GracePeriodViolations) != 1 || adv.GracePeriodViolations[0].GapHours != 5.3 {
		t.Fatalf("expected 5.3h, got %+v", adv.GracePeriodViolations)
	}
}

func TestSuggestionsRequireConflict(t *testing.T) {
	candidates := []Reservation{
		confirmed("a", june(1), june(5)),
		confirmed("b", june(20), june(25)),
	}
	req := rng(june(10), june(15))
	adv := Analyze(req, req.Widen(SearchPadding), candidates, 24*time.Hour, true, "")
	if !adv.Available || len(adv.Suggestions) != 0 {
		t.Fatalf("no suggestions expected without conflicts, got %+v", adv)
	}
}

func TestGapSuggestionsOffsetByGrace(t *testing.T) {
	candidates := []Reservation{
		confirmed("b", june(20), june(25)),
		confirmed("a", june(1), june(5)),
		confirmed("c", june(12), june(13)),
	}
	req := rng(june(10), june(15))
	adv := Analyze(req, req.Widen(SearchPadding), candidates, 24*time.Hour, true, "")
	if adv.Available {
		t.Fatal("expected unavailable")
	}
	if len(adv.Conflicts) != 1 || adv.Conflicts[0].ID != "c" || adv.Conflicts[0].ConflictType != ConflictEncompassing {
		t.Fatalf("unexpected conflicts %+v", adv.Conflicts)
	}

	want := []DateRange{
		rng(june(6), june(11)),
		rng(june(14), june(19)),
	}
	if len(adv.Suggestions) != len(want) {
		t.Fatalf("expected %d suggestions, got %+v", len(want), adv.Suggestions)
	}
	for i, s := range adv.Suggestions {
		if !s.Range.Start.Equal(want[i].Start) || !s.Range.End.Equal(want[i].End) {
			t.Fatalf("suggestion %d: expected %+v, got %+v", i, want[i], s.Range)
		}
		if s.Confidence != ConfidenceHigh {
			t.Fatalf("gap suggestions must be high confidence, got %s", s.Confidence)
		}
		if s.Range.Start.Before(june(5)) || s.Range.End.After(june(20)) {
			t.Fatalf("suggestion %d escapes the Jun 5-20 gap: %+v", i, s.Range)
		}
	}
	if adv.Suggestions[0].Reason != "Available between guest a and guest c" {
		t.Fatalf("unexpected reason %q", adv.Suggestions[0].Reason)
	}
}

func TestSuggestionsOrderingAndCap(t *testing.T) {
	base := june(10)
	req := rng(base, base.Add(time.Hour))
	window := req.Widen(SearchPadding)

	build := func(n int) []Reservation {
		var out []Reservation
		for k := 0; k < n; k++ {
			start := base.Add(time.Duration(3*k) * time.Hour)
			r := confirmed("r", start, start.Add(time.Hour))
			r.ID = string(rune('a' + k))
			r.GuestName = ""
			r.Type = "owner-stay"
			out = append(out, r)
		}
		return out
	}

	// 3 candidates: 2 gaps + before + after.
	adv := Analyze(req, window, build(3), 0, true, "")
	wantConf := []Confidence{ConfidenceHigh, ConfidenceHigh, ConfidenceMedium, ConfidenceMedium}
	if len(adv.Suggestions) != len(wantConf) {
		t.Fatalf("expected %d suggestions, got %+v", len(wantConf), adv.Suggestions)
	}
	for i, s := range adv.Suggestions {
		if s.Confidence != wantConf[i] {
			t.Fatalf("suggestion %d: expected %s, got %s", i, wantConf[i], s.Confidence)
		}
	}
	if adv.Suggestions[2].Reason != "Available before owner-stay" {
		t.Fatalf("unexpected reason %q", adv.Suggestions[2].Reason)
	}

	// 5 candidates: 4 gaps + before + after, capped to 4 gaps + before.
	adv = Analyze(req, window, build(5), 0, true, "")
	if len(adv.Suggestions) != MaxSuggestions {
		t.Fatalf("expected %d suggestions, got %d", MaxSuggestions, len(adv.Suggestions))
	}
	for i := 0; i < 4; i++ {
		if adv.Suggestions[i].Confidence != ConfidenceHigh {
			t.Fatalf("suggestion %d should be high, got %s", i, adv.Suggestions[i].Confidence)
		}
	}
	if adv.Suggestions[4].Confidence != ConfidenceMedium || !adv.Suggestions[4].Range.End.Equal(base) {
		t.Fatalf("expected before-first suggestion last, got %+v", adv.Suggestions[4])
	}

	// 8 candidates: 7 gaps, only the first 5 survive.
	adv = Analyze(req, window, build(8), 0, true, "")
	if len(adv.Suggestions) != MaxSuggestions {
		t.Fatalf("expected %d suggestions, got %d", MaxSuggestions, len(adv.Suggestions))
	}
	for _, s := range adv.Suggestions {
		if s.Confidence != ConfidenceHigh {
			t.Fatalf("expected only gap suggestions, got %+v", adv.Suggestions)
		}
	}
}

func TestSuggestionDurationInvariantAndWindow(t *testing.T) {
	req := rng(june(10).Add(15*time.Hour), june(13).Add(11*time.Hour))
	window := req.Widen(SearchPadding)
	candidates := []Reservation{
		confirmed("a", june(4), june(6)),
		confirmed("b", june(11), june(12)),
		confirmed("c", june(16), june(17)),
	}
	for _, grace := range []time.Duration{0, 6 * time.Hour, 12 * time.Hour} {
		adv := Analyze(req, window, candidates, grace, true, "")
		if len(adv.Suggestions) == 0 {
			t.Fatalf("grace %s: expected suggestions", grace)
		}
		for _, s := range adv.Suggestions {
			if s.Range.Duration() != req.Duration() {
				t.Fatalf("grace %s: suggestion %+v has duration %s, want %s", grace, s.Range, s.Range.Duration(), req.Duration())
			}
			if s.Range.Start.Before(window.Start) || s.Range.End.After(window.End) {
				t.Fatalf("grace %s: suggestion %+v outside window %+v", grace, s.Range, window)
			}
			for _, c := range candidates {
				if s.Range.Overlaps(c.Range) {
					t.Fatalf("grace %s: suggestion %+v overlaps %s", grace, s.Range, c.ID)
				}
			}
		}
	}
}

func TestNestedReservationDoesNotOpenFalseGap(t *testing.T) {
	long := confirmed("long", june(5), june(20))
	nested := confirmed("nested", june(6), june(7))
	later := confirmed("later", june(10), june(11))
	req := rng(june(8), june(9))
	adv := Analyze(req, rng(june(1), june(30)), []Reservation{long, nested, later}, 0, true, "")
	for _, s := range adv.Suggestions {
		if s.Range.Overlaps(long.Range) {
			t.Fatalf("suggestion %+v overlaps the long reservation", s)
		}
	}
	last := adv.Suggestions[len(adv.Suggestions)-1]
	if !last.Range.Start.Equal(june(20)) || last.Reason != "Available after guest long" {
		t.Fatalf("expected after suggestion at Jun 20, got %+v", last)
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("Pending"); err != nil || s != StatusTentative {
		t.Fatalf("expected pending alias, got %q %v", s, err)
	}
	if s, err := ParseStatus("confirmed"); err != nil || s != StatusConfirmed {
		t.Fatalf("expected confirmed, got %q %v", s, err)
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestLabelFallback(t *testing.T) {
	r := Reservation{ID: "r1", Type: "maintenance"}
	if r.Label() != "maintenance" {
		t.Fatalf("expected type fallback, got %q", r.Label())
	}
	r.GuestName = "Ada"
	if r.Label() != "Ada" {
		t.Fatalf("expected guest name, got %q", r.Label())
	}
}
