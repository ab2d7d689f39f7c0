// Package client talks to the ServerEye event API.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/gjson"

	"github.com/SmitUplenchwar2687/ServerEye/internal/event"
)

// Upstream API paths.
const (
	PathEvents  = "/api/events"
	PathCleanup = "/api/cleanup"
)

// maxBody caps how much of a response body is read.
const maxBody = 32 << 20

var (
	errInvalidJSON = errors.New("invalid JSON")
	errNotObject   = errors.New("expected a JSON object")
)

// HTTPClient is the part of *http.Client the API client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	// Address is the base URL of the ServerEye backend, e.g.
	// http://localhost:8080.
	Address string

	// Client is used for requests. Don't set a timeout on it; use Timeout.
	Client HTTPClient

	// Timeout bounds each call. Zero means no bound beyond ctx.
	Timeout time.Duration

	// Location is used for event timestamps without a zone.
	Location *time.Location
}

// Client is a typed client for the ServerEye API. It is safe for
// concurrent use.
type Client struct {
	base    *url.URL
	client  HTTPClient
	timeout time.Duration
	loc     *time.Location
}

// New returns a Client for cfg.Address.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(cfg.Address, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid upstream address %q: scheme must be http or https", cfg.Address)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid upstream address %q: missing host", cfg.Address)
	}

	c := &Client{
		base:    u,
		client:  cfg.Client,
		timeout: cfg.Timeout,
		loc:     cfg.Location,
	}
	if c.client == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.MaxIdleConns = 10
		tr.IdleConnTimeout = 30 * time.Second
		// Compression is negotiated explicitly so zstd is offered too.
		tr.DisableCompression = true
		c.client = &http.Client{Transport: tr}
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	return c, nil
}

// Address returns the upstream base URL.
func (c *Client) Address() string {
	return c.base.String()
}

// Events fetches the raw event list. Individual malformed records are
// kept; only a body that is not a JSON array fails.
func (c *Client) Events(ctx context.Context) ([]event.Record, error) {
	const op = "fetch events"
	body, err := c.call(ctx, op, http.MethodGet, PathEvents)
	if err != nil {
		return nil, err
	}
	records, err := event.DecodeRecords(body, event.DecodeOptions{Location: c.loc})
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return records, nil
}

// CleanupStatus fetches the cache status.
func (c *Client) CleanupStatus(ctx context.Context) (CleanupStatus, error) {
	const op = "fetch cleanup status"
	body, err := c.call(ctx, op, http.MethodGet, PathCleanup)
	if err != nil {
		return CleanupStatus{}, err
	}
	var s CleanupStatus
	if err := s.UnmarshalJSON(body); err != nil {
		return CleanupStatus{}, &DecodeError{Op: op, Err: err}
	}
	return s, nil
}

// TriggerCleanup asks the backend to evict old events. A refusal is
// returned as *CleanupFailure together with the decoded result.
func (c *Client) TriggerCleanup(ctx context.Context) (CleanupResult, error) {
	const op = "trigger cleanup"
	body, err := c.call(ctx, op, http.MethodPost, PathCleanup)
	if err != nil {
		var se *HTTPStatusError
		if errors.As(err, &se) {
			if res, ok := refusal(se.raw); ok {
				return res, &CleanupFailure{Result: res}
			}
		}
		return CleanupResult{}, err
	}
	var res CleanupResult
	if err := json.Unmarshal(body, &res); err != nil {
		return CleanupResult{}, &DecodeError{Op: op, Err: err}
	}
	if !res.Success {
		return res, &CleanupFailure{Result: res}
	}
	return res, nil
}

// refusal reads a non-2xx cleanup answer that still carries a result
// with success:false.
func refusal(body []byte) (CleanupResult, bool) {
	if !gjson.ValidBytes(body) {
		return CleanupResult{}, false
	}
	r := gjson.ParseBytes(body)
	success := r.Get("success")
	if !r.IsObject() || !success.Exists() || success.Bool() {
		return CleanupResult{}, false
	}
	var res CleanupResult
	if err := json.Unmarshal(body, &res); err != nil {
		return CleanupResult{}, false
	}
	return res, true
}

// Ping sends HEAD /api/events and returns the round trip time.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.call(ctx, "ping", http.MethodHead, PathEvents); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func (c *Client) call(ctx context.Context, op, method, path string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.base.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, &TransportError{Op: op, URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "zstd, gzip")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()

	reader, err := decodeBody(resp)
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxBody))
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Op: op, URL: u, Err: ctx.Err()}
		}
		return nil, &TransportError{Op: op, URL: u, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{
			Op:         op,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       snippet(data),
			raw:        data,
		}
	}
	return data, nil
}

// decodeBody unwraps gzip or zstd content encoding.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return io.NopCloser(resp.Body), nil
	}
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "zstd":
		dec, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}

func snippet(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}
