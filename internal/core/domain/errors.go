package domain

import "errors"

var (
	// ErrUnknownLayer is returned for layer names other than buildings, roads or junctions.
	ErrUnknownLayer = errors.New("unknown layer")
	// ErrInvalidBBox is returned when a bbox cannot be parsed or is inverted.
	ErrInvalidBBox = errors.New("invalid bbox")
	// ErrInvalidArgument covers other rejected query parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUpstream wraps failures talking to the feature source.
	ErrUpstream = errors.New("upstream error")
	// ErrNotFound is returned when the feature source has nothing for an id.
	ErrNotFound = errors.New("not found")
)
