package webhook

import (
	"net/http"
	"time"

	"github.com/okian/groupwatch/pkg/logger"
)

// Option applies a configuration option to the Sink.
type Option func(*Sink)

// WithTimeout bounds every POST.
func WithTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(s *Sink) {
		if h != nil {
			s.http = h
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Sink) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithJob labels delivery metrics with the job name.
func WithJob(job string) Option {
	return func(s *Sink) {
		s.job = job
	}
}

// WithLogger sets the sink logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}
