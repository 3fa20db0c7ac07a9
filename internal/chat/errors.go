package chat

import "errors"

// Sentinel errors for the sync engine.
var (
	// ErrAmbiguousAttribution marks a message that cannot be assigned a
	// counterpart. Such messages are dropped from grouping rather than
	// guessed into the wrong thread.
	ErrAmbiguousAttribution = errors.New("message attribution ambiguous")

	// ErrStopped is returned for operations attempted after the sync
	// loop has been stopped.
	ErrStopped = errors.New("sync loop stopped")

	// ErrNoIdentity is returned when an operation needs the local
	// identity before the first identity fetch has completed.
	ErrNoIdentity = errors.New("local identity not resolved")
)
