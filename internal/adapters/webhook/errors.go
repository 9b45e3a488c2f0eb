package webhook

import "errors"

var (
	// ErrDelivery marks a message the webhook did not accept.
	ErrDelivery = errors.New("webhook delivery failed")
	// ErrNoURL is returned by New when no webhook URL is configured.
	ErrNoURL = errors.New("webhook url is empty")
)
