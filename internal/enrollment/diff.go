package enrollment

type ChangeKind string

const (
	StatusChanged  ChangeKind = "STATUS_CHANGED"
	SeatsIncreased ChangeKind = "SEATS_INCREASED"
	SeatsDecreased ChangeKind = "SEATS_DECREASED"
)

// Change is one discrete difference between two snapshots of a course.
// SectionIndex refers to the section's position in the newer snapshot.
type Change struct {
	Kind         ChangeKind `json:"kind"`
	CourseID     string     `json:"courseId,omitempty"`
	SectionIndex int        `json:"sectionIndex"`
	SectionKey   string     `json:"sectionKey,omitempty"`
	OldStatus    Status     `json:"oldStatus"`
	NewStatus    Status     `json:"newStatus"`
	OldSeats     int        `json:"oldSeats"`
	NewSeats     int        `json:"newSeats"`
}

// Matching records how sections were paired between the two snapshots.
type Matching string

const (
	MatchByKey      Matching = "key"
	MatchByPosition Matching = "position"
)

type Result struct {
	Changes  []Change
	Matching Matching
	// Mismatch is set when some sections had no counterpart, either because
	// the lengths differ or because keys appeared or disappeared.
	Mismatch bool
}

// Diff compares previous against current and reports at most one change per
// section. A status change wins over any seat movement in the same section.
//
// Sections are paired by Key when every section on both sides has a unique,
// non-empty key. Otherwise they are paired by position and only the common
// prefix is compared.
func Diff(previous, current Snapshot) Result {
	if keyed(previous) && keyed(current) {
		return diffByKey(previous, current)
	}
	return diffByPosition(previous, current)
}

func diffByPosition(previous, current Snapshot) Result {
	res := Result{Matching: MatchByPosition, Mismatch: len(previous) != len(current)}
	n := min(len(previous), len(current))
	for i := 0; i < n; i++ {
		if c, ok := compare(i, previous[i], current[i]); ok {
			res.Changes = append(res.Changes, c)
		}
	}
	return res
}

func diffByKey(previous, current Snapshot) Result {
	res := Result{Matching: MatchByKey}
	byKey := make(map[string]Section, len(previous))
	for _, s := range previous {
		byKey[s.Key] = s
	}
	seen := 0
	for i, cur := range current {
		prev, ok := byKey[cur.Key]
		if !ok {
			res.Mismatch = true
			continue
		}
		seen++
		if c, ok := compare(i, prev, cur); ok {
			res.Changes = append(res.Changes, c)
		}
	}
	if seen != len(previous) {
		res.Mismatch = true
	}
	return res
}

func compare(index int, prev, cur Section) (Change, bool) {
	c := Change{
		SectionIndex: index,
		SectionKey:   cur.Key,
		OldStatus:    prev.Status,
		NewStatus:    cur.Status,
		OldSeats:     prev.AvailableSeats,
		NewSeats:     cur.AvailableSeats,
	}
	switch {
	case cur.Status != prev.Status:
		c.Kind = StatusChanged
	case cur.Status == StatusOpen && cur.AvailableSeats > prev.AvailableSeats:
		c.Kind = SeatsIncreased
	case cur.Status == StatusOpen && cur.AvailableSeats < prev.AvailableSeats:
		c.Kind = SeatsDecreased
	default:
		return Change{}, false
	}
	return c, true
}

func keyed(s Snapshot) bool {
	if len(s) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(s))
	for _, sec := range s {
		if sec.Key == "" {
			return false
		}
		if _, dup := seen[sec.Key]; dup {
			return false
		}
		seen[sec.Key] = struct{}{}
	}
	return true
}
