package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChunking reports chunking parameters that cannot produce a
	// valid window sequence.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrRemoteUnavailable reports a transient remote failure.
	ErrRemoteUnavailable = errors.New("remote service unavailable")

	// ErrAuthentication reports credentials rejected by a remote service.
	// Fatal at startup, logged mid-session.
	ErrAuthentication = errors.New("authentication rejected")

	// ErrNoSelection reports that the index selector could not produce a
	// known index name.
	ErrNoSelection = errors.New("no index selected")
)

// ParseError reports a malformed remote hit. The offending record is
// skipped and processing continues.
type ParseError struct {
	HitID  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed hit %q: %s", e.HitID, e.Reason)
}
