// Package grades looks up historical grade distributions for a course.
package grades

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/badgerwatch/internal/store"
)

var (
	ErrInvalidDesignation = errors.New("course designation must look like \"COMP SCI 640\"")
	ErrNotFound           = errors.New("course not found in grades database")
)

// KeySource supplies the API key at call time so settings changes apply
// without a restart.
type KeySource interface {
	Load(ctx context.Context) (store.Config, error)
}

type Designation struct {
	Subject string
	Number  string
}

func (d Designation) String() string { return d.Subject + " " + d.Number }

// ParseDesignation splits "COMP SCI 640" into subject "COMP SCI" and
// number "640". The last token is always the number.
func ParseDesignation(s string) (Designation, error) {
	parts := strings.Fields(s)
	if len(parts) < 2 {
		return Designation{}, fmt.Errorf("%w: %q", ErrInvalidDesignation, s)
	}
	return Designation{
		Subject: strings.Join(parts[:len(parts)-1], " "),
		Number:  parts[len(parts)-1],
	}, nil
}

type Client struct {
	hc      *http.Client
	baseURL string
	keys    KeySource
}

func New(baseURL string, keys KeySource) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		keys:    keys,
	}
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	key := store.DefaultAPIKey
	if c.keys != nil {
		if cfg, err := c.keys.Load(ctx); err == nil && cfg.APIKey != "" {
			key = cfg.APIKey
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token token="+key)
	req.Header.Set("Accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("grades request: %w", err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("grades read: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("grades request failed (status=%d)", res.StatusCode)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("grades decode: %w", err)
	}
	return nil
}

type courseResult struct {
	UUID     string      `json:"uuid"`
	Name     string      `json:"name"`
	Number   json.Number `json:"number"`
	Subjects []struct {
		Abbreviation string `json:"abbreviation"`
	} `json:"subjects"`
}

// FindUUID resolves a designation to the grades database's course id.
// An exact subject and number match wins; otherwise the first hit is used.
func (c *Client) FindUUID(ctx context.Context, d Designation) (string, error) {
	q := url.Values{}
	q.Set("query", d.String())
	q.Set("limit", "10")

	var out struct {
		Results []courseResult `json:"results"`
	}
	if err := c.get(ctx, c.baseURL+"/courses?"+q.Encode(), &out); err != nil {
		return "", err
	}
	if len(out.Results) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, d)
	}

	subject := strings.ToUpper(d.Subject)
	for _, r := range out.Results {
		if r.Number.String() != d.Number {
			continue
		}
		for _, s := range r.Subjects {
			if strings.ToUpper(s.Abbreviation) == subject {
				return r.UUID, nil
			}
		}
	}
	return out.Results[0].UUID, nil
}

// Totals are cumulative grade counts across every offering on record.
type Totals struct {
	Total int `json:"total"`
	A     int `json:"aCount"`
	AB    int `json:"abCount"`
	B     int `json:"bCount"`
	BC    int `json:"bcCount"`
	C     int `json:"cCount"`
	D     int `json:"dCount"`
	F     int `json:"fCount"`
	S     int `json:"sCount"`
	U     int `json:"uCount"`
	CR    int `json:"crCount"`
	N     int `json:"nCount"`
	P     int `json:"pCount"`
	I     int `json:"iCount"`
	NW    int `json:"nwCount"`
	NR    int `json:"nrCount"`
	Other int `json:"otherCount"`
}

// GPA is the average over letter grades only, or 0 when there are none.
func (t Totals) GPA() float64 {
	n := t.A + t.AB + t.B + t.BC + t.C + t.D + t.F
	if n == 0 {
		return 0
	}
	pts := 4*float64(t.A) + 3.5*float64(t.AB) + 3*float64(t.B) + 2.5*float64(t.BC) + 2*float64(t.C) + float64(t.D)
	return pts / float64(n)
}

type Report struct {
	CourseUUID string `json:"courseUuid"`
	Cumulative Totals `json:"cumulative"`
	Offerings  int    `json:"offerings"`
}

func (c *Client) Grades(ctx context.Context, uuid string) (Report, error) {
	var out struct {
		CourseUUID      string            `json:"courseUuid"`
		Cumulative      Totals            `json:"cumulative"`
		CourseOfferings []json.RawMessage `json:"courseOfferings"`
	}
	if err := c.get(ctx, c.baseURL+"/courses/"+url.PathEscape(uuid)+"/grades", &out); err != nil {
		return Report{}, err
	}
	if out.CourseUUID == "" {
		out.CourseUUID = uuid
	}
	return Report{CourseUUID: out.CourseUUID, Cumulative: out.Cumulative, Offerings: len(out.CourseOfferings)}, nil
}

// Lookup parses a designation and fetches its grade report.
func (c *Client) Lookup(ctx context.Context, designation string) (Report, error) {
	d, err := ParseDesignation(designation)
	if err != nil {
		return Report{}, err
	}
	id, err := c.FindUUID(ctx, d)
	if err != nil {
		return Report{}, err
	}
	return c.Grades(ctx, id)
}
