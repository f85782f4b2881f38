package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the ingestion and query pipelines and their
// collaborators. Callers classify failures with errors.Is.
var (
	// ErrNotFound indicates a collection or document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmptyContent indicates text extraction yielded nothing but whitespace.
	ErrEmptyContent = errors.New("document has no extractable text")

	// ErrNoChunksProduced indicates chunking yielded zero chunks.
	ErrNoChunksProduced = errors.New("no chunks produced")

	// ErrServiceUnavailable indicates a backend could not be reached.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrUpstream indicates a backend answered with a non-success status or
	// a malformed body. Concrete failures are *UpstreamError values.
	ErrUpstream = errors.New("upstream error")

	// ErrGeneration indicates the chat backend failed or returned no text.
	ErrGeneration = errors.New("generation failed")

	// ErrValidation indicates a malformed request.
	ErrValidation = errors.New("validation failed")

	// ErrDimensionMismatch indicates a vector does not match the index dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// UpstreamError carries the status and body returned by a failing backend.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Service, e.StatusCode, e.Body)
}

// Is reports whether target is ErrUpstream.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}
