package repository

import "github.com/okian/groupwatch/pkg/logger"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets the logger used for absence and corruption notices.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}
