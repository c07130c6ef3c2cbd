package domain

import "errors"

var (
	// ErrNotFound signals that a document has no ingestible source. Not retried.
	ErrNotFound = errors.New("document not found")
	// ErrEmptyContext signals that retrieval produced zero passages.
	ErrEmptyContext = errors.New("no relevant passages")
	// ErrBackendTimeout signals that a collaborator call exceeded its bound. Recoverable.
	ErrBackendTimeout = errors.New("backend timeout")
	// ErrBackendFailure signals a generic collaborator failure. Recoverable.
	ErrBackendFailure = errors.New("backend failure")
	// ErrIndexCorrupt signals that a loaded index failed its integrity probe.
	ErrIndexCorrupt = errors.New("index corrupt")
	// ErrSessionClosed signals use of a torn-down session registry.
	ErrSessionClosed = errors.New("session registry closed")
)
