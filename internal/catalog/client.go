// Package catalog talks to the public course enrollment API.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Reporter receives the outcome of every detail fetch.
type Reporter interface {
	ReportSuccess()
	ReportFailure()
}

// FetchError covers both transport failures and non-2xx answers.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("catalog %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrDataShape marks a response that arrived fine but did not look like
// enrollment data.
var ErrDataShape = errors.New("unexpected catalog data")

type Client struct {
	hc      *http.Client
	baseURL string
	live    Reporter
}

func New(baseURL string, live Reporter) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		live:    live,
	}
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Add("accept", "application/json, text/plain, */*")
	req.Header.Add("accept-language", "en-US,en;q=0.9")
	req.Header.Add("content-type", "application/json")
	req.Header.Add("user-agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15")

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}

func (c *Client) report(ok bool) {
	if c.live == nil {
		return
	}
	if ok {
		c.live.ReportSuccess()
	} else {
		c.live.ReportFailure()
	}
}
