package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/badgerwatch/internal/enrollment"
	"golang.org/x/sync/errgroup"
)

// ErrNoCatalogNumber means a designation carries no course number to derive
// a course level from.
var ErrNoCatalogNumber = errors.New("designation has no catalog number")

const (
	similarPageSize = 8
	detailFetches   = 4
)

// Syllabus is the instructor-provided description of a course.
type Syllabus struct {
	Description      string `json:"description"`
	Format           string `json:"format"`
	Topics           string `json:"topics"`
	LearningOutcomes string `json:"learningOutcomes"`
}

// FetchSyllabus returns the first instructor-provided description found in
// the course's packages. ok is false when no package has one.
func (c *Client) FetchSyllabus(ctx context.Context, termCode, subjectCode, courseID string) (s Syllabus, ok bool, err error) {
	pkgs, err := c.packages(ctx, termCode, subjectCode, courseID)
	if err != nil {
		return Syllabus{}, false, err
	}
	for _, p := range pkgs {
		d := p.InstructorProvidedClassDetails
		if d == nil {
			continue
		}
		return Syllabus{
			Description:      d.InstructorDescription,
			Format:           d.Format,
			Topics:           d.TypicalTopicsAndOrSchedule,
			LearningOutcomes: d.LearningOutcome,
		}, true, nil
	}
	return Syllabus{}, false, nil
}

// SimilarCourse is a same-level course in the same subject with the state
// of its first package.
type SimilarCourse struct {
	CourseID         string            `json:"id"`
	Title            string            `json:"title"`
	Subject          string            `json:"subject"`
	CatalogNumber    string            `json:"courseNumber"`
	TermCode         string            `json:"termCode"`
	SubjectCode      string            `json:"subjectCode"`
	Status           enrollment.Status `json:"status"`
	Capacity         int               `json:"enrollmentCapacity"`
	Enrolled         int               `json:"enrolled"`
	Waitlist         int               `json:"waitlist"`
	WaitlistCapacity int               `json:"waitlistCapacity"`
	OpenSeats        int               `json:"openSeats"`
	Section          string            `json:"section"`
	MeetingTimes     string            `json:"meetingTimes"`
	Location         string            `json:"location"`
	Instructor       string            `json:"instructor"`
	InstructionMode  string            `json:"instructionMode"`
	SessionCode      string            `json:"sessionCode"`
}

func similarPayload(termCode, subjectCode, level string) map[string]any {
	return map[string]any{
		"selectedTerm": termCode,
		"queryString":  subjectCode + " " + level + "*",
		"filters": []any{
			match{"has_child": match{
				"type": "enrollmentPackage",
				"query": match{"bool": match{"must": []any{
					match{"match": match{"published": true}},
				}}},
			}},
		},
		"page":      1,
		"pageSize":  similarPageSize,
		"sortOrder": "SUBJECT_COURSE",
	}
}

// courseLevel is the first digit of the designation's catalog number,
// "5" for "COMP SCI 564".
func courseLevel(designation string) (string, error) {
	fields := strings.Fields(designation)
	if len(fields) == 0 {
		return "", ErrNoCatalogNumber
	}
	num := fields[len(fields)-1]
	if num[0] < '0' || num[0] > '9' {
		return "", fmt.Errorf("%w: %q", ErrNoCatalogNumber, designation)
	}
	return num[:1], nil
}

// SimilarCourses searches the same subject at the same course level and
// loads each hit's first package. The course itself and hits whose details
// cannot be loaded are left out. Open courses come first, the roomiest
// ahead, then waitlisted ones by shortest waitlist, then by catalog number.
func (c *Client) SimilarCourses(ctx context.Context, termCode, subjectCode, designation, excludeID string) ([]SimilarCourse, error) {
	level, err := courseLevel(designation)
	if err != nil {
		return nil, err
	}
	hits, err := c.search(ctx, similarPayload(termCode, subjectCode, level))
	if err != nil {
		return nil, err
	}

	candidates := make([]searchHit, 0, len(hits))
	for _, h := range hits {
		if h.CourseID != excludeID {
			candidates = append(candidates, h)
		}
	}

	found := make([]*SimilarCourse, len(candidates))
	var g errgroup.Group
	g.SetLimit(detailFetches)
	for i, h := range candidates {
		g.Go(func() error {
			pkgs, err := c.packages(ctx, termCode, h.Subject.SubjectCode, h.CourseID)
			if err != nil || len(pkgs) == 0 {
				return nil
			}
			sc := similarFrom(h, pkgs[0])
			sc.TermCode = termCode
			found[i] = &sc
			return nil
		})
	}
	_ = g.Wait()

	out := make([]SimilarCourse, 0, len(found))
	for _, sc := range found {
		if sc != nil {
			out = append(out, *sc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return similarLess(out[i], out[j]) })
	return out, nil
}

func similarFrom(h searchHit, p enrollmentPackage) SimilarCourse {
	es := p.EnrollmentStatus
	sc := SimilarCourse{
		CourseID:         h.CourseID,
		Title:            h.Title,
		Subject:          h.Subject.ShortDescription,
		CatalogNumber:    h.CatalogNumber,
		SubjectCode:      h.Subject.SubjectCode,
		Capacity:         es.Capacity,
		Enrolled:         es.CurrentlyEnrolled,
		Waitlist:         es.WaitlistCurrentSize,
		WaitlistCapacity: es.WaitlistCapacity,
		OpenSeats:        max(0, es.Capacity-es.CurrentlyEnrolled),
		Section:          "N/A",
		MeetingTimes:     "N/A",
		Location:         "N/A",
		Instructor:       "N/A",
		InstructionMode:  "N/A",
		SessionCode:      "N/A",
	}

	// the package's own status lags behind its counters
	switch {
	case sc.OpenSeats > 0:
		sc.Status = enrollment.StatusOpen
	case sc.Waitlist > 0 || sc.WaitlistCapacity > sc.Waitlist:
		sc.Status = enrollment.StatusWaitlisted
	default:
		sc.Status = enrollment.StatusClosed
	}

	if len(p.Sections) > 0 {
		s := p.Sections[0]
		sc.Section = strings.TrimSpace(s.Type + " " + s.SectionNumber)
		if s.Instructor != nil {
			if name := strings.TrimSpace(s.Instructor.Name.First + " " + s.Instructor.Name.Last); name != "" {
				sc.Instructor = name
			}
		}
		if s.InstructionMode != "" {
			sc.InstructionMode = s.InstructionMode
		}
	}
	if len(p.ClassMeetings) > 0 {
		m := p.ClassMeetings[0]
		sc.MeetingTimes = meetingDays(m) + " " + clockTime(m.Start) + "-" + clockTime(m.End)
		if m.Building != nil {
			if loc := strings.TrimSpace(m.Building.BuildingName + " " + m.Room); loc != "" {
				sc.Location = loc
			}
		}
	}
	if p.SessionCode != "" {
		sc.SessionCode = p.SessionCode
	}
	return sc
}

func similarLess(a, b SimilarCourse) bool {
	aOpen, bOpen := a.Status == enrollment.StatusOpen, b.Status == enrollment.StatusOpen
	if aOpen != bOpen {
		return aOpen
	}
	if aOpen && a.OpenSeats != b.OpenSeats {
		return a.OpenSeats > b.OpenSeats
	}
	if a.Status == enrollment.StatusWaitlisted && b.Status == enrollment.StatusWaitlisted && a.Waitlist != b.Waitlist {
		return a.Waitlist < b.Waitlist
	}
	return a.CatalogNumber < b.CatalogNumber
}

func meetingDays(m classMeeting) string {
	var b strings.Builder
	for _, d := range []struct {
		on     bool
		letter byte
	}{{m.Monday, 'M'}, {m.Tuesday, 'T'}, {m.Wednesday, 'W'}, {m.Thursday, 'R'}, {m.Friday, 'F'}} {
		if d.on {
			b.WriteByte(d.letter)
		}
	}
	return b.String()
}

// clockTime renders milliseconds since midnight as "9:30AM".
func clockTime(ms int64) string {
	if ms <= 0 {
		return "N/A"
	}
	hours := ms / 3_600_000
	minutes := (ms % 3_600_000) / 60_000
	suffix := "AM"
	if hours >= 12 {
		suffix = "PM"
	}
	h := hours % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d%s", h, minutes, suffix)
}
