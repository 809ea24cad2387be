package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.

var (
	// Advertisement parsing errors. Callers distinguish them so the UI
	// can say "bad code" vs "expired code".
	ErrMalformedAdvertisement = errors.New("advertisement does not match any known format")
	ErrStaleAdvertisement     = errors.New("advertisement is older than one hour")

	// Coordinator lifecycle errors
	ErrNotInitialized     = errors.New("network coordinator is not initialized")
	ErrAlreadyInitialized = errors.New("network coordinator is already initialized")

	// Registry errors
	ErrPeerLimit      = errors.New("peer limit reached")
	ErrPeerNotFound   = errors.New("peer not found in registry")
	ErrSelfAdvertised = errors.New("advertisement describes this node")

	// Post errors
	ErrEmptyContent = errors.New("post content is empty")

	// Transport errors
	ErrConnectFailed  = errors.New("peer connection refused")
	ErrTorUnavailable = errors.New("tor backend unavailable")
)
