// Package source fetches group state from the Wise Old Man API.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/groupwatch/internal/domain/model"
	"github.com/okian/groupwatch/pkg/logger"
	"github.com/okian/groupwatch/pkg/metrics"
)

// Defaults for the public API.
const (
	DefaultBaseURL      = "https://api.wiseoldman.net/v2"
	defaultTimeout      = 30 * time.Second
	defaultRequestDelay = 150 * time.Millisecond
	defaultUserAgent    = "groupwatch"
	maxBodyBytes        = 8 << 20
)

// Endpoint labels used in logs and metrics.
const (
	endpointRoster      = "roster"
	endpointPlayer      = "player"
	endpointLeaderboard = "leaderboard"
	endpointRefresh     = "refresh"
)

// Client talks to the upstream API. It is not safe for concurrent use by
// multiple runs; per-entity requests are expected to be sequential.
type Client struct {
	baseURL   string
	timeout   time.Duration
	delay     time.Duration
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    logger.Logger
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		timeout:   defaultTimeout,
		delay:     defaultRequestDelay,
		userAgent: defaultUserAgent,
		http:      &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	c.http.Timeout = c.timeout
	if c.delay > 0 {
		c.limiter = rate.NewLimiter(rate.Every(c.delay), 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	return c
}

// Throttle blocks until the next per-entity request may be sent, or ctx ends.
func (c *Client) Throttle(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// FetchRoster returns the current members of group. Any failure is fatal for
// the run: a partial roster is never returned.
func (c *Client) FetchRoster(ctx context.Context, groupID string) (model.Roster, error) {
	body, err := c.get(ctx, endpointRoster, "/groups/"+url.PathEscape(groupID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: group %s: %w", ErrFatalFetch, groupID, err)
	}
	r, shape, err := parseRoster(body)
	if err != nil {
		return nil, fmt.Errorf("%w: group %s", err, groupID)
	}
	c.logger.Debug(ctx, "roster fetched",
		logger.String("group", groupID),
		logger.String("shape", shape),
		logger.Int("members", r.Len()),
	)
	return r, nil
}

// FetchPlayerMetrics returns the skill levels of one player. Failures are
// transient: the caller is expected to skip the player.
func (c *Client) FetchPlayerMetrics(ctx context.Context, username string) (model.Levels, error) {
	body, err := c.get(ctx, endpointPlayer, "/players/"+url.PathEscape(username), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: player %s: %w", ErrTransientFetch, username, err)
	}
	levels, err := parseLevels(body)
	if err != nil {
		return nil, fmt.Errorf("%w: player %s: %w", ErrTransientFetch, username, err)
	}
	return levels, nil
}

// FetchLeaderboard returns up to limit gains rows for metric over period, in
// the order the API ranked them.
func (c *Client) FetchLeaderboard(ctx context.Context, groupID, metric, period string, limit int) ([]model.LeaderboardRow, error) {
	q := url.Values{}
	q.Set("metric", metric)
	q.Set("period", period)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.get(ctx, endpointLeaderboard, "/groups/"+url.PathEscape(groupID)+"/gained", q)
	if err != nil {
		return nil, fmt.Errorf("%w: group %s gains: %w", ErrFatalFetch, groupID, err)
	}
	rows, err := parseLeaderboard(body, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: group %s gains", err, groupID)
	}
	return rows, nil
}

// RequestRefresh asks the API to re-fetch every member of group. The
// verification code is the group's management credential.
func (c *Client) RequestRefresh(ctx context.Context, groupID, verificationCode string) error {
	payload, err := json.Marshal(map[string]string{"verificationCode": verificationCode})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefresh, err)
	}
	start := time.Now()
	req, err := c.newRequest(ctx, http.MethodPost, "/groups/"+url.PathEscape(groupID)+"/update-all", nil, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefresh, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if _, err := c.do(req, endpointRefresh, start); err != nil {
		return fmt.Errorf("%w: group %s: %w", ErrRefresh, groupID, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values) ([]byte, error) {
	start := time.Now()
	req, err := c.newRequest(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, endpoint, start)
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func (c *Client) do(req *http.Request, endpoint string, start time.Time) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		outcome := "error"
		var ne interface{ Timeout() bool }
		if errors.As(err, &ne) && ne.Timeout() {
			outcome = "timeout"
		}
		metrics.RecordUpstreamRequest(endpoint, outcome, time.Since(start))
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordUpstreamRequest(endpoint, "error", time.Since(start))
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordUpstreamRequest(endpoint, "http_"+strconv.Itoa(resp.StatusCode), time.Since(start))
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet(body)}
	}
	metrics.RecordUpstreamRequest(endpoint, "ok", time.Since(start))
	return body, nil
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %d", e.Code)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.Code, e.Body)
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
