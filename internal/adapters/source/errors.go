package source

import "errors"

// Sentinel kinds for upstream fetch errors.
var (
	// ErrTransientFetch marks a failed per-entity fetch; the caller skips
	// the entity and continues the batch.
	ErrTransientFetch = errors.New("transient fetch failed")
	// ErrFatalFetch marks a failed aggregate fetch; the run must abort.
	ErrFatalFetch = errors.New("fatal fetch failed")
	// ErrUpstreamShape marks a response that matched no known shape.
	ErrUpstreamShape = errors.New("unrecognised upstream response shape")
	// ErrRefresh marks a failed refresh request.
	ErrRefresh = errors.New("refresh request failed")
)
