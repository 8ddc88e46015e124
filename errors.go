package sipl

import "github.com/pkg/errors"

// Failure kinds. Every error returned by this package wraps exactly one of
// these; test with errors.Is.
var (
	// ErrConstruction means a buffer does not match shape × element width
	ErrConstruction = errors.New("construction error")
	// ErrIndex means a slice selector addressed a missing axis or produced a
	// negative range
	ErrIndex = errors.New("index error")
	// ErrSerialization means a transport record was missing a field, carried
	// an unknown dtype or an undecodable payload
	ErrSerialization = errors.New("serialization error")
	// ErrTypeMismatch means arrays could not be combined because their dtype
	// or off-axis shapes differ
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnsupportedChannel means a pixel buffer had a channel count outside
	// {1, 3, 4}
	ErrUnsupportedChannel = errors.New("unsupported channel count")
	// ErrInvalidSplit means a partition request could not be satisfied
	ErrInvalidSplit = errors.New("invalid split")
	// ErrNoChunks means an empty chunk collection was handed to reassembly
	ErrNoChunks = errors.New("no chunks")
	// ErrNotFound means a store key does not exist
	ErrNotFound = errors.New("not found")
)
