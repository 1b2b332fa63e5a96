package crossref

import (
	"errors"
	"fmt"
)

// Common errors returned by the Crossref client.
var (
	// ErrUnavailable indicates no resolved references could be obtained this
	// cycle (network failure, timeout or a non-200 response). Callers treat it
	// as "try again on the next sweep", not as a fault.
	ErrUnavailable = errors.New("crossref resolved references unavailable")

	// ErrInvalidResponse indicates a 200 response that does not match the
	// expected contract (malformed JSON, missing matched-references).
	ErrInvalidResponse = errors.New("invalid response from Crossref")
)

// APIError represents a non-200 response from the Crossref API.
type APIError struct {
	StatusCode int
	DOI        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Crossref API error (status %d) for DOI %s", e.StatusCode, e.DOI)
}

// Unwrap lets errors.Is match ErrUnavailable.
func (e *APIError) Unwrap() error {
	return ErrUnavailable
}

// IsUnavailable returns true if the error only means no data was available.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsInvalidResponse returns true if the error indicates an API contract mismatch.
func IsInvalidResponse(err error) bool {
	return errors.Is(err, ErrInvalidResponse)
}
