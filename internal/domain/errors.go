package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCandidates is returned when candidate retrieval finds nothing to score
	ErrNoCandidates = errors.New("no catalog candidates found")

	// ErrLowConfidence is returned when the best match scored at or below the acceptance threshold
	ErrLowConfidence = errors.New("match score below acceptance threshold")

	// ErrInvalidTransition is returned when a status change violates the lifecycle table
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrRecordNotFound is returned when an enrichment record does not exist
	ErrRecordNotFound = errors.New("enrichment record not found")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrPlatformUnavailable is returned when a platform API request fails
	ErrPlatformUnavailable = errors.New("platform API request failed")

	// ErrPlatformNotConfigured is returned when platform credentials are missing;
	// operations that need the platform fail fast before any row processing
	ErrPlatformNotConfigured = errors.New("platform credentials not configured")
)

// PlatformStatusError is a platform API failure that carries the HTTP status
// of the response, so bulk workflows can embed it in row-level statuses.
type PlatformStatusError struct {
	StatusCode int
	Op         string
	Body       string
}

func (e *PlatformStatusError) Error() string {
	return fmt.Sprintf("platform %s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}
