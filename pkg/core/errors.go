package core

import "errors"

// Structural/load-time errors. Any of these aborts loading the timeline
// entirely; the wrapped context names the offending segment or reference.
var (
	ErrUnknownVariation   = errors.New("unknown variation")
	ErrDuplicateVariation = errors.New("duplicate variation")
	ErrAmbiguousPlacement = errors.New("ambiguous placement")
	ErrCyclicPlacement    = errors.New("cyclic placement")
	ErrUnknownSegment     = errors.New("unknown segment")
	ErrUnknownEntity      = errors.New("unknown entity")
	ErrMalformedTimeline  = errors.New("malformed timeline")
)

// Query-time errors. Recoverable: callers warn and skip or clamp.
var (
	ErrOutsideLifetime = errors.New("outside entity lifetime")
	ErrOutOfRange      = errors.New("timestamp out of range")
)

// Authoring guard errors.
var (
	ErrPlaybackActive = errors.New("playback must be paused")
	ErrUnknownValue   = errors.New("value not in variation domain")
)
