package domain

import "errors"

var (
	// ErrInvalidRequest indicates a malformed or incomplete request
	ErrInvalidRequest = errors.New("invalid request")
	// ErrMissingCredential indicates no usable API key was resolved
	ErrMissingCredential = errors.New("OPENAI_API_KEY missing. Provide via .env or form.")
	// ErrUnknownSession indicates the session id was never issued or has expired
	ErrUnknownSession = errors.New("invalid session ID")
	// ErrUnsupportedFormat indicates an unrecognized file extension or content
	ErrUnsupportedFormat = errors.New("unsupported file type")
	// ErrInvalidDocument indicates the document could not be decoded
	ErrInvalidDocument = errors.New("invalid document")
	// ErrEmptyDocument indicates no text could be extracted
	ErrEmptyDocument = errors.New("no text could be extracted from document")
	// ErrProviderUnavailable indicates a transient embedding or chat provider failure
	ErrProviderUnavailable = errors.New("provider unavailable")
)
