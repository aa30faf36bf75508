package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")

	// Ingestion-path errors. UnsupportedFormat and Extraction are terminal
	// for the document; EmbeddingProvider is retryable up to the caller's
	// bound; IndexProvider is fatal unless the cause is "already exists".
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtraction        = errors.New("text extraction failed")
	ErrEmbeddingProvider = errors.New("embedding provider error")
	ErrIndexProvider     = errors.New("index provider error")

	// Chat-path errors. Retrieval degrades to empty context; Generation is
	// terminal for the turn and is translated to a fallback message at the
	// edge, never shown raw to an end user.
	ErrRetrieval  = errors.New("retrieval failed")
	ErrGeneration = errors.New("generation failed")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsTerminalIngest reports whether err must fail the whole document with no
// further retries.
func IsTerminalIngest(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrExtraction) ||
		errors.Is(err, ErrIndexProvider)
}
