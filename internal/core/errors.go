package core

import (
	"errors"
	"fmt"
	"time"
)

// Validation failures. Handlers map these to 4xx and clients must not retry
// them unchanged.
var (
	// ErrUnsupportedMedia is returned when an upload declares anything other
	// than application/pdf.
	ErrUnsupportedMedia = errors.New("unsupported media type, only application/pdf is accepted")

	// ErrInvalidChunkCount is returned when an upload session is initiated
	// with fewer than one expected chunk.
	ErrInvalidChunkCount = errors.New("total chunks must be at least 1")

	// ErrInvalidChunkIndex is returned when a chunk index falls outside the
	// range declared at initiation.
	ErrInvalidChunkIndex = errors.New("chunk index out of range")

	// ErrAlreadyFinalized is returned when parts arrive for a session whose
	// assembly already completed.
	ErrAlreadyFinalized = errors.New("upload session already finalized")

	// ErrUploadIncomplete is returned when finalize is called before every
	// declared chunk has been received.
	ErrUploadIncomplete = errors.New("upload incomplete, missing chunks")

	// ErrFileTooLarge is returned by the direct upload path when the payload
	// exceeds the configured ceiling.
	ErrFileTooLarge = errors.New("file exceeds the direct upload limit")

	// ErrInvalidConfig is returned when component settings are contradictory,
	// such as a chunk overlap not smaller than the chunk size.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownMode is returned for a chat mode outside the known persona set.
	ErrUnknownMode = errors.New("unknown chat mode")
)

// Not-found failures, mapped to 404.
var (
	// ErrSessionNotFound covers both unknown and expired upload sessions;
	// callers cannot tell the two apart.
	ErrSessionNotFound = errors.New("upload session not found or expired")

	// ErrNotFound is the generic missing-resource error.
	ErrNotFound = errors.New("not found")
)

// Processing failures, mapped to 5xx.
var (
	// ErrExtractionFailed is returned when a document cannot be opened for
	// text extraction at all. Readable documents with no text are not errors.
	ErrExtractionFailed = errors.New("could not extract text from document")

	// ErrChunkCountMismatch flags a persisted chunk count that differs from
	// the produced one. The ingest is aborted rather than committed partially.
	ErrChunkCountMismatch = errors.New("persisted chunk count does not match produced count")
)

// StageError wraps a failure inside a named ingestion stage so callers can log
// which stage broke and how long it ran before breaking.
type StageError struct {
	Stage   string
	Elapsed time.Duration
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q failed after %s: %v", e.Stage, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
