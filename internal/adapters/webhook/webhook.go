// Package webhook delivers rendered messages to a Discord-compatible webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/groupwatch/pkg/logger"
	"github.com/okian/groupwatch/pkg/metrics"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "groupwatch"
)

// Sink posts one message per call. The URL is a credential and is never logged.
type Sink struct {
	url       string
	timeout   time.Duration
	userAgent string
	job       string
	http      *http.Client
	logger    logger.Logger
}

type payload struct {
	Content string `json:"content"`
}

// New creates a Sink for url.
func New(url string, opts ...Option) (*Sink, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrNoURL
	}
	s := &Sink{
		url:       url,
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
		http:      &http.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.http.Timeout = s.timeout
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s, nil
}

// Send delivers content. Any transport error or non-2xx response is
// returned wrapped in ErrDelivery; nothing is retried.
func (s *Sink) Send(ctx context.Context, content string) error {
	body, err := json.Marshal(payload{Content: content})
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrDelivery, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, redact(err, s.url))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		metrics.RecordNotificationFailure(s.job)
		return fmt.Errorf("%w: %v", ErrDelivery, redact(err, s.url))
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordNotificationFailure(s.job)
		return fmt.Errorf("%w: status %d", ErrDelivery, resp.StatusCode)
	}
	metrics.RecordNotificationSent(s.job)
	s.logger.Debug(ctx, "message delivered", logger.Int("chars", len(content)))
	return nil
}

// redact strips the webhook URL out of transport errors.
func redact(err error, url string) string {
	return strings.ReplaceAll(err.Error(), url, "<webhook>")
}
