package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/badgerwatch/internal/enrollment"
)

type enrollmentPackage struct {
	EnrollmentClassNumber int `json:"enrollmentClassNumber"`

	PackageEnrollmentStatus *struct {
		Status         string `json:"status"`
		AvailableSeats *int   `json:"availableSeats"`
	} `json:"packageEnrollmentStatus"`

	EnrollmentStatus struct {
		Capacity            int `json:"capacity"`
		CurrentlyEnrolled   int `json:"currentlyEnrolled"`
		WaitlistCurrentSize int `json:"waitlistCurrentSize"`
		WaitlistCapacity    int `json:"waitlistCapacity"`
	} `json:"enrollmentStatus"`

	Sections []struct {
		Type            string `json:"type"`
		SectionNumber   string `json:"sectionNumber"`
		InstructionMode string `json:"instructionMode"`
		Instructor      *struct {
			Name struct {
				First string `json:"first"`
				Last  string `json:"last"`
			} `json:"name"`
		} `json:"instructor"`
	} `json:"sections"`

	ClassMeetings []classMeeting `json:"classMeetings"`
	SessionCode   string         `json:"sessionCode"`

	InstructorProvidedClassDetails *struct {
		InstructorDescription      string `json:"instructorDescription"`
		Format                     string `json:"format"`
		TypicalTopicsAndOrSchedule string `json:"typicalTopicsAndOrSchedule"`
		LearningOutcome            string `json:"learningOutcome"`
	} `json:"instructorProvidedClassDetails"`
}

type classMeeting struct {
	Monday    bool   `json:"monday"`
	Tuesday   bool   `json:"tuesday"`
	Wednesday bool   `json:"wednesday"`
	Thursday  bool   `json:"thursday"`
	Friday    bool   `json:"friday"`
	Start     int64  `json:"meetingTimeStart"`
	End       int64  `json:"meetingTimeEnd"`
	Room      string `json:"room"`
	Building  *struct {
		BuildingName string `json:"buildingName"`
	} `json:"building"`
}

// FetchDetails returns the current enrollment snapshot for one course.
// The liveness reporter hears about every call exactly once.
func (c *Client) FetchDetails(ctx context.Context, termCode, subjectCode, courseID string) (enrollment.Snapshot, error) {
	body, err := c.rawPackages(ctx, termCode, subjectCode, courseID)
	if err != nil {
		c.report(false)
		return nil, err
	}
	c.report(true)

	return decodeSnapshot(body)
}

// rawPackages fetches the raw enrollment packages of one course.
// It does not report liveness.
func (c *Client) rawPackages(ctx context.Context, termCode, subjectCode, courseID string) ([]byte, error) {
	u := fmt.Sprintf("%s/enrollmentPackages/%s/%s/%s", c.baseURL,
		url.PathEscape(termCode), url.PathEscape(subjectCode), url.PathEscape(courseID))

	status, body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Op: "details", Status: httpStatusIfAny(status), Err: err}
	}
	if status < 200 || status > 299 {
		return nil, &FetchError{Op: "details", Status: status}
	}
	return body, nil
}

func (c *Client) packages(ctx context.Context, termCode, subjectCode, courseID string) ([]enrollmentPackage, error) {
	body, err := c.rawPackages(ctx, termCode, subjectCode, courseID)
	if err != nil {
		return nil, err
	}
	var pkgs []enrollmentPackage
	if err := json.Unmarshal(body, &pkgs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataShape, err)
	}
	return pkgs, nil
}

func httpStatusIfAny(status int) int {
	if status >= 200 && status <= 299 {
		return 0
	}
	return status
}

func decodeSnapshot(body []byte) (enrollment.Snapshot, error) {
	var pkgs []enrollmentPackage
	if err := json.Unmarshal(body, &pkgs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataShape, err)
	}

	snap := make(enrollment.Snapshot, 0, len(pkgs))
	for i, p := range pkgs {
		if p.PackageEnrollmentStatus == nil {
			return nil, fmt.Errorf("%w: package %d has no packageEnrollmentStatus", ErrDataShape, i)
		}
		seats := 0
		if p.PackageEnrollmentStatus.AvailableSeats != nil {
			seats = max(*p.PackageEnrollmentStatus.AvailableSeats, 0)
		}
		snap = append(snap, enrollment.Section{
			Key:              sectionKey(p),
			ClassNumber:      p.EnrollmentClassNumber,
			Status:           enrollment.ParseStatus(p.PackageEnrollmentStatus.Status),
			AvailableSeats:   seats,
			Capacity:         p.EnrollmentStatus.Capacity,
			Enrolled:         p.EnrollmentStatus.CurrentlyEnrolled,
			WaitlistSize:     p.EnrollmentStatus.WaitlistCurrentSize,
			WaitlistCapacity: p.EnrollmentStatus.WaitlistCapacity,
		})
	}
	return snap, nil
}

// sectionKey builds "LEC 001 / DIS 301" from the package's sections, or
// falls back to the class number.
func sectionKey(p enrollmentPackage) string {
	parts := make([]string, 0, len(p.Sections))
	for _, s := range p.Sections {
		t, n := strings.TrimSpace(s.Type), strings.TrimSpace(s.SectionNumber)
		if t == "" && n == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(t+" "+n))
	}
	if len(parts) > 0 {
		return strings.Join(parts, " / ")
	}
	if p.EnrollmentClassNumber != 0 {
		return fmt.Sprintf("#%d", p.EnrollmentClassNumber)
	}
	return ""
}
