package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/badgerwatch/internal/catalog"
	"github.com/example/badgerwatch/internal/grades"
	"github.com/example/badgerwatch/internal/liveness"
	"github.com/example/badgerwatch/internal/scheduler"
	"github.com/example/badgerwatch/internal/store"
)

// APIError is a non-2xx answer from the control API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("badgerwatch api: status %d", e.Status)
	}
	return fmt.Sprintf("badgerwatch api: %s (status=%d)", e.Message, e.Status)
}

// Client talks to a running `badgerwatch serve`.
type Client struct {
	hc      *http.Client
	baseURL string
}

func NewClient(baseURL string) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 60 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("is `badgerwatch serve` running? %w", err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode >= 400 {
		var eb errorBody
		_ = json.Unmarshal(b, &eb)
		return &APIError{Status: res.StatusCode, Message: eb.Error}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}

func (c *Client) Status(ctx context.Context) (liveness.State, error) {
	var st liveness.State
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

func (c *Client) Courses(ctx context.Context) ([]scheduler.View, error) {
	var vs []scheduler.View
	err := c.do(ctx, http.MethodGet, "/api/courses", nil, &vs)
	return vs, err
}

func (c *Client) Course(ctx context.Context, courseID string) (scheduler.View, error) {
	var v scheduler.View
	err := c.do(ctx, http.MethodGet, "/api/courses/"+url.PathEscape(courseID), nil, &v)
	return v, err
}

func (c *Client) AddCourse(ctx context.Context, req AddCourseRequest) (scheduler.AddResult, error) {
	var res scheduler.AddResult
	err := c.do(ctx, http.MethodPost, "/api/courses", req, &res)
	return res, err
}

func (c *Client) Syllabus(ctx context.Context, courseID string) (catalog.Syllabus, error) {
	var out catalog.Syllabus
	err := c.do(ctx, http.MethodGet, "/api/courses/"+url.PathEscape(courseID)+"/syllabus", nil, &out)
	return out, err
}

func (c *Client) SimilarCourses(ctx context.Context, courseID string) ([]catalog.SimilarCourse, error) {
	var out []catalog.SimilarCourse
	err := c.do(ctx, http.MethodGet, "/api/courses/"+url.PathEscape(courseID)+"/similar", nil, &out)
	return out, err
}

func (c *Client) RemoveCourse(ctx context.Context, courseID string) error {
	return c.do(ctx, http.MethodDelete, "/api/courses/"+url.PathEscape(courseID), nil, nil)
}

func (c *Client) Settings(ctx context.Context) (store.Config, error) {
	var cfg store.Config
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, &cfg)
	return cfg, err
}

func (c *Client) SaveSettings(ctx context.Context, cfg store.Config) (store.Config, error) {
	var out store.Config
	err := c.do(ctx, http.MethodPut, "/api/settings", cfg, &out)
	return out, err
}

func (c *Client) Terms(ctx context.Context) ([]store.Term, error) {
	var ts []store.Term
	err := c.do(ctx, http.MethodGet, "/api/terms", nil, &ts)
	return ts, err
}

func (c *Client) Search(ctx context.Context, query string) ([]catalog.CourseSummary, error) {
	var hits []catalog.CourseSummary
	err := c.do(ctx, http.MethodGet, "/api/search?q="+url.QueryEscape(query), nil, &hits)
	return hits, err
}

func (c *Client) TestMessage(ctx context.Context, destination string) error {
	return c.do(ctx, http.MethodPost, "/api/test-message", TestMessageRequest{Destination: destination}, nil)
}

func (c *Client) Grades(ctx context.Context, designation string) (grades.Report, error) {
	var rep grades.Report
	err := c.do(ctx, http.MethodGet, "/api/grades?course="+url.QueryEscape(designation), nil, &rep)
	return rep, err
}
