package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// CourseSummary is one search hit, enough to start a watch.
type CourseSummary struct {
	CourseID    string `json:"courseId"`
	TermCode    string `json:"termCode"`
	SubjectCode string `json:"subjectCode"`
	Designation string `json:"courseDesignation"`
	Title       string `json:"title"`
}

type searchHit struct {
	CourseID string `json:"courseId"`
	TermCode string `json:"termCode"`
	Subject  struct {
		SubjectCode      string `json:"subjectCode"`
		ShortDescription string `json:"shortDescription"`
	} `json:"subject"`
	CatalogNumber     string `json:"catalogNumber"`
	CourseDesignation string `json:"courseDesignation"`
	Title             string `json:"title"`
}

type match map[string]any

func searchPayload(termCode, query string) map[string]any {
	return map[string]any{
		"selectedTerm": termCode,
		"queryString":  query,
		"filters": []any{
			match{"has_child": match{
				"type": "enrollmentPackage",
				"query": match{"bool": match{"must": []any{
					match{"match": match{"packageEnrollmentStatus.status": "OPEN WAITLISTED CLOSED"}},
					match{"match": match{"published": true}},
				}}},
			}},
		},
		"page":      1,
		"pageSize":  10,
		"sortOrder": "SCORE",
	}
}

// Search runs a free-text catalog search within one term. Search does not
// feed the liveness tracker; only detail fetches do.
func (c *Client) Search(ctx context.Context, termCode, query string) ([]CourseSummary, error) {
	found, err := c.search(ctx, searchPayload(termCode, query))
	if err != nil {
		return nil, err
	}

	hits := make([]CourseSummary, 0, len(found))
	for _, h := range found {
		hits = append(hits, CourseSummary{
			CourseID:    h.CourseID,
			TermCode:    h.TermCode,
			SubjectCode: h.Subject.SubjectCode,
			Designation: h.CourseDesignation,
			Title:       h.Title,
		})
	}
	return hits, nil
}

func (c *Client) search(ctx context.Context, payload map[string]any) ([]searchHit, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	status, res, err := c.do(ctx, http.MethodPost, c.baseURL, body)
	if err != nil {
		return nil, &FetchError{Op: "search", Status: httpStatusIfAny(status), Err: err}
	}
	if status < 200 || status > 299 {
		return nil, &FetchError{Op: "search", Status: status}
	}

	var out struct {
		Hits []searchHit `json:"hits"`
	}
	if err := json.Unmarshal(res, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataShape, err)
	}
	return out.Hits, nil
}
