package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/badgerwatch/internal/enrollment"
)

func TestFetchSyllabus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/000001") {
			w.Write([]byte(packagesBody))
			return
		}
		w.Write([]byte(`[
		  {"packageEnrollmentStatus": {"status": "OPEN"}},
		  {"packageEnrollmentStatus": {"status": "OPEN"}, "instructorProvidedClassDetails": {
		    "instructorDescription": "Layered network protocols.", "format": "Lecture",
		    "typicalTopicsAndOrSchedule": "TCP, routing", "learningOutcome": "Build a router"}}
		]`))
	}))
	defer srv.Close()

	rep := &countingReporter{}
	c := New(srv.URL, rep)
	syl, ok, err := c.FetchSyllabus(context.Background(), "1262", "266", "024798")
	if err != nil || !ok {
		t.Fatalf("syllabus: ok=%v err=%v", ok, err)
	}
	want := Syllabus{Description: "Layered network protocols.", Format: "Lecture", Topics: "TCP, routing", LearningOutcomes: "Build a router"}
	if syl != want {
		t.Fatalf("syllabus = %+v", syl)
	}

	if _, ok, err := c.FetchSyllabus(context.Background(), "1262", "266", "000001"); err != nil || ok {
		t.Fatalf("course without details: ok=%v err=%v", ok, err)
	}
	if rep.ok+rep.fail != 0 {
		t.Fatalf("syllabus lookups should not report liveness")
	}
}

const similarHits = `{"hits": [
  {"courseId": "024798", "catalogNumber": "640", "title": "Networks", "subject": {"subjectCode": "266", "shortDescription": "COMP SCI"}},
  {"courseId": "000610", "catalogNumber": "610", "title": "Waitlisted Big", "subject": {"subjectCode": "266", "shortDescription": "COMP SCI"}},
  {"courseId": "000620", "catalogNumber": "620", "title": "Waitlisted Small", "subject": {"subjectCode": "266", "shortDescription": "COMP SCI"}},
  {"courseId": "000630", "catalogNumber": "630", "title": "Open Few", "subject": {"subjectCode": "266", "shortDescription": "COMP SCI"}},
  {"courseId": "000640", "catalogNumber": "642", "title": "Open Many", "subject": {"subjectCode": "266", "shortDescription": "COMP SCI"}},
  {"courseId": "000650", "catalogNumber": "650", "title": "Broken", "subject": {"subjectCode": "266", "shortDescription": "COMP SCI"}},
  {"courseId": "000660", "catalogNumber": "660", "title": "Closed", "subject": {"subjectCode": "266", "shortDescription": "COMP SCI"}}
]}`

var similarDetails = map[string]string{
	"000610": `[{"enrollmentStatus": {"capacity": 10, "currentlyEnrolled": 10, "waitlistCurrentSize": 7, "waitlistCapacity": 10}}]`,
	"000620": `[{"enrollmentStatus": {"capacity": 10, "currentlyEnrolled": 10, "waitlistCurrentSize": 2, "waitlistCapacity": 10}}]`,
	"000630": `[{"enrollmentStatus": {"capacity": 10, "currentlyEnrolled": 9},
		"sessionCode": "A1",
		"sections": [{"type": "LEC", "sectionNumber": "001", "instructionMode": "Classroom Instruction",
			"instructor": {"name": {"first": "Bucky", "last": "Badger"}}}],
		"classMeetings": [{"monday": true, "wednesday": true, "friday": true,
			"meetingTimeStart": 34200000, "meetingTimeEnd": 49500000,
			"building": {"buildingName": "Computer Sciences"}, "room": "1240"}]}]`,
	"000640": `[{"enrollmentStatus": {"capacity": 100, "currentlyEnrolled": 50}}]`,
	"000660": `[{"enrollmentStatus": {"capacity": 10, "currentlyEnrolled": 10, "waitlistCurrentSize": 0, "waitlistCapacity": 0}}]`,
}

func TestSimilarCourses(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, &payload)
			w.Write([]byte(similarHits))
			return
		}
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		body, ok := similarDetails[id]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	got, err := New(srv.URL, nil).SimilarCourses(context.Background(), "1262", "266", "COMP SCI 640", "024798")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if payload["queryString"] != "266 6*" || payload["sortOrder"] != "SUBJECT_COURSE" || payload["pageSize"] != float64(8) {
		t.Fatalf("payload = %v", payload)
	}

	var order []string
	for _, sc := range got {
		order = append(order, sc.CourseID)
	}
	if strings.Join(order, ",") != "000640,000630,000620,000610,000660" {
		t.Fatalf("order = %v", order)
	}

	few := got[1]
	want := SimilarCourse{
		CourseID:        "000630",
		Title:           "Open Few",
		Subject:         "COMP SCI",
		CatalogNumber:   "630",
		TermCode:        "1262",
		SubjectCode:     "266",
		Status:          enrollment.StatusOpen,
		Capacity:        10,
		Enrolled:        9,
		OpenSeats:       1,
		Section:         "LEC 001",
		MeetingTimes:    "MWF 9:30AM-1:45PM",
		Location:        "Computer Sciences 1240",
		Instructor:      "Bucky Badger",
		InstructionMode: "Classroom Instruction",
		SessionCode:     "A1",
	}
	if few != want {
		t.Fatalf("course = %+v\nwant   %+v", few, want)
	}
	if got[2].Status != enrollment.StatusWaitlisted || got[4].Status != enrollment.StatusClosed {
		t.Fatalf("statuses = %s, %s", got[2].Status, got[4].Status)
	}
	if got[4].MeetingTimes != "N/A" || got[4].Instructor != "N/A" {
		t.Fatalf("missing details should read N/A: %+v", got[4])
	}
}

func TestCourseLevel(t *testing.T) {
	cases := map[string]string{"COMP SCI 564": "5", "MATH 221": "2", "  L I S 301 ": "3"}
	for in, want := range cases {
		got, err := courseLevel(in)
		if err != nil || got != want {
			t.Fatalf("courseLevel(%q) = %q, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "COMP SCI", "   "} {
		if _, err := courseLevel(in); err == nil {
			t.Fatalf("courseLevel(%q) should fail", in)
		}
	}
}

func TestClockTime(t *testing.T) {
	cases := map[int64]string{0: "N/A", 34_200_000: "9:30AM", 43_200_000: "12:00PM", 49_500_000: "1:45PM", 1_800_000: "12:30AM"}
	for ms, want := range cases {
		if got := clockTime(ms); got != want {
			t.Fatalf("clockTime(%d) = %q, want %q", ms, got, want)
		}
	}
}
