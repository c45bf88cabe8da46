package availability

type ConflictType string

const (
	ConflictOverlap      ConflictType = "overlap"
	ConflictAdjacent     ConflictType = "adjacent"
	ConflictEncompassing ConflictType = "encompassing"
	ConflictEncompassed  ConflictType = "encompassed"
)

func (t ConflictType) Valid() bool {
	switch t {
	case ConflictOverlap, ConflictAdjacent, ConflictEncompassing, ConflictEncompassed:
		return true
	}
	return false
}

type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityBlocking, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

type ConflictAnalysis struct {
	HasConflict bool
	Severity    Severity
	Type        ConflictType
}

// AnalyzeConflict classifies how the requested range relates to an existing one.
// "encompassing" means the request contains the existing range; "encompassed" the reverse.
// Identical ranges classify as encompassing.
func AnalyzeConflict(requested, existing DateRange) ConflictAnalysis {
	rs, re := requested.Start, requested.End
	bs, be := existing.Start, existing.End

	switch {
	case !re.After(bs) || !rs.Before(be):
		return ConflictAnalysis{HasConflict: false, Severity: SeverityInfo, Type: ConflictAdjacent}
	case !rs.After(bs) && !re.Before(be):
		return ConflictAnalysis{HasConflict: true, Severity: SeverityBlocking, Type: ConflictEncompassing}
	case !bs.After(rs) && !be.Before(re):
		return ConflictAnalysis{HasConflict: true, Severity: SeverityBlocking, Type: ConflictEncompassed}
	default:
		return ConflictAnalysis{HasConflict: true, Severity: SeverityBlocking, Type: ConflictOverlap}
	}
}
