package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownModel signals a model id with no configured provider.
	ErrUnknownModel = errors.New("unknown embedding model")
	// ErrModelLoad signals that a configured model cannot be reached at all.
	ErrModelLoad = errors.New("embedding model unavailable")
	// ErrEmbedding signals a per-item embedding failure (recoverable, skip and continue).
	ErrEmbedding = errors.New("embedding failed")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrIndexNotFound signals a search against an index that was never provisioned.
	ErrIndexNotFound = errors.New("index not provisioned")
	// ErrIngestSource signals an unavailable delta source (retryable on the next run).
	ErrIngestSource = errors.New("ingest source unavailable")
	// ErrVectorDimMismatch signals a vector that does not match the index dimensionality.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
)

// DimMismatchError wraps ErrVectorDimMismatch with the offending document and sizes.
type DimMismatchError struct {
	IssueKey string
	Want     int
	Got      int
}

func (e *DimMismatchError) Error() string {
	return fmt.Sprintf("%s: issue %s has %d dimensions, index expects %d",
		ErrVectorDimMismatch.Error(), e.IssueKey, e.Got, e.Want)
}

func (e *DimMismatchError) Unwrap() error { return ErrVectorDimMismatch }
