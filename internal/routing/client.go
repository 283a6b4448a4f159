// Package routing issues route requests to the external routing service.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NaviWasm/service-mapview/internal/domain/geo"
)

const (
	// DefaultPath is the route endpoint of the routing service.
	DefaultPath = "/api/v1/navigation/route"

	maxResponseBytes = 8 << 20
	errorSnippetSize = 256
)

// TimingSource tells where CalculationTimeMs came from.
type TimingSource string

const (
	TimingServer TimingSource = "server"
	TimingClient TimingSource = "client"
)

// Result is a successful route response. An empty Path means no route was
// found.
type Result struct {
	Path              geo.Path
	CalculationTimeMs float64
	TimingSource      TimingSource
	RoundTripMs       float64
}

// Found reports whether the routing service returned a drawable route.
func (r *Result) Found() bool {
	return r != nil && !r.Path.IsEmpty()
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Path    string
	Timeout time.Duration
}

// Client sends one POST per RequestRoute call and never retries.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
	now      func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// withClock overrides time.Now for round-trip measurement in tests.
func withClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("routing: invalid base URL %q", cfg.BaseURL)
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		endpoint: base.String() + path,
		http:     &http.Client{Timeout: timeout},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Endpoint returns the full URL requests are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// RequestRoute asks the routing service for a path from start to end.
// Failures are returned as *Error. A well-formed empty path is a Result
// with Found() == false.
func (c *Client) RequestRoute(ctx context.Context, start, end geo.Coordinate) (*Result, error) {
	if err := start.Validate(); err != nil {
		return nil, newError(KindInvalidInput, 0, fmt.Errorf("start: %w", err))
	}
	if err := end.Validate(); err != nil {
		return nil, newError(KindInvalidInput, 0, fmt.Errorf("end: %w", err))
	}

	body, err := json.Marshal(RouteRequest{Start: FromCoordinate(start), End: FromCoordinate(end)})
	if err != nil {
		return nil, newError(KindInvalidInput, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindNetworkFailure, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	began := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, newError(KindNetworkFailure, 0, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, newError(KindNetworkFailure, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	roundTrip := float64(c.now().Sub(began)) / float64(time.Millisecond)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("routing service returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", snippet(payload)),
		)
		return nil, newError(KindRemoteError, resp.StatusCode, errors.New(snippet(payload)))
	}

	path, serverMs, err := decodeResponse(payload)
	if err != nil {
		return nil, newError(KindMalformedResponse, resp.StatusCode, err)
	}

	result := &Result{Path: path, RoundTripMs: roundTrip}
	if serverMs != nil && !math.IsNaN(*serverMs) && !math.IsInf(*serverMs, 0) && *serverMs >= 0 {
		result.CalculationTimeMs = *serverMs
		result.TimingSource = TimingServer
	} else {
		result.CalculationTimeMs = roundTrip
		result.TimingSource = TimingClient
	}

	c.logger.Debug("route received",
		zap.Int("vertices", path.Len()),
		zap.Float64("calculation_time_ms", result.CalculationTimeMs),
		zap.String("timing_source", string(result.TimingSource)),
	)
	return result, nil
}

func decodeResponse(payload []byte) (geo.Path, *float64, error) {
	var raw rawResponse
	if err := json.Unmarshal(payload, &raw); err != nil {
		return geo.Path{}, nil, fmt.Errorf("decode response: %w", err)
	}

	trimmed := bytes.TrimSpace(raw.Path)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return geo.Path{}, nil, errors.New("missing path field")
	}
	if trimmed[0] != '[' {
		return geo.Path{}, nil, errors.New("path field is not an array")
	}

	var points []rawLatLng
	if err := json.Unmarshal(trimmed, &points); err != nil {
		return geo.Path{}, nil, fmt.Errorf("decode path: %w", err)
	}

	coords := make([]geo.Coordinate, len(points))
	for i, p := range points {
		if p.Lat == nil || p.Lng == nil {
			return geo.Path{}, nil, fmt.Errorf("path[%d]: missing lat or lng", i)
		}
		c, err := geo.NewCoordinate(*p.Lat, *p.Lng)
		if err != nil {
			return geo.Path{}, nil, fmt.Errorf("path[%d]: %w", i, err)
		}
		coords[i] = c
	}
	return geo.NewPath(coords), raw.CalculationTimeMs, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > errorSnippetSize {
		s = s[:errorSnippetSize]
	}
	return s
}
