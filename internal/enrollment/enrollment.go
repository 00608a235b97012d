// Package enrollment holds the snapshot model of a watched course and the
// diff that turns two snapshots into change events.
package enrollment

import (
	"strings"
	"time"
)

type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusWaitlisted Status = "WAITLISTED"
	StatusClosed     Status = "CLOSED"
	StatusUnknown    Status = "UNKNOWN"
)

// ParseStatus maps a catalog status string onto a Status. Anything
// unrecognised becomes StatusUnknown.
func ParseStatus(s string) Status {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusOpen:
		return StatusOpen
	case StatusWaitlisted:
		return StatusWaitlisted
	case StatusClosed:
		return StatusClosed
	default:
		return StatusUnknown
	}
}

// Section is the observed enrollment state of one package within a course.
type Section struct {
	Key              string `json:"key,omitempty"`
	ClassNumber      int    `json:"classNumber,omitempty"`
	Status           Status `json:"status"`
	AvailableSeats   int    `json:"availableSeats"`
	Capacity         int    `json:"capacity,omitempty"`
	Enrolled         int    `json:"enrolled,omitempty"`
	WaitlistSize     int    `json:"waitlistSize,omitempty"`
	WaitlistCapacity int    `json:"waitlistCapacity,omitempty"`
}

// Snapshot is the full ordered set of sections seen in one fetch.
type Snapshot []Section

// OpenSeats sums available seats over the sections that are OPEN.
func (s Snapshot) OpenSeats() int {
	total := 0
	for _, sec := range s {
		if sec.Status == StatusOpen {
			total += sec.AvailableSeats
		}
	}
	return total
}

// Statuses lists the per-section statuses in snapshot order.
func (s Snapshot) Statuses() []Status {
	out := make([]Status, len(s))
	for i, sec := range s {
		out[i] = sec.Status
	}
	return out
}

// Clone returns a copy that shares nothing with s.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}

// WatchedCourse is the persisted record of one course under watch.
type WatchedCourse struct {
	CourseID     string    `json:"courseId"`
	TermCode     string    `json:"termCode"`
	SubjectCode  string    `json:"subjectCode"`
	Designation  string    `json:"courseDesignation"`
	Title        string    `json:"title"`
	Snapshot     Snapshot  `json:"data"`
	AddedAt      time.Time `json:"addedAt"`
	LastPolledAt time.Time `json:"lastPolledAt"`
}

// Clone returns a deep copy of the course record.
func (c WatchedCourse) Clone() WatchedCourse {
	c.Snapshot = c.Snapshot.Clone()
	return c
}
