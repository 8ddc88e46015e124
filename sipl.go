// Package sipl distributes large pixel arrays as self-describing chunks.
//
// A ChunkedArray carries its buffer together with metadata and one
// DimensionDescriptor per axis recording where the chunk sits inside the
// logical whole. Chunkify splits an array into ranked chunks, Codec turns
// chunks into transport records that can travel through an execution
// engine with no ordering guarantees, and Reassemble puts them back
// together by rank.
package sipl

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	// Version is the current version of this library.
	Version = "0.1.0"
)

// Path is a normalized, slash separated store key.
type Path []string

// NewPath normalizes a store key so that every Store sees the same layout:
// backslashes become slashes, leading and trailing slashes are stripped and
// runs of slashes collapse. Empty keys and ".." elements are rejected.
func NewPath(posix string) (Path, error) {
	posix = strings.ReplaceAll(posix, "\\", "/")
	var p Path
	for _, el := range strings.Split(posix, "/") {
		switch el {
		case "", ".":
			continue
		case "..":
			return nil, errors.Errorf("invalid key %q: parent references are not allowed", posix)
		}
		p = append(p, el)
	}
	if len(p) == 0 {
		return nil, errors.Errorf("invalid key %q: empty", posix)
	}
	return p, nil
}

func (p Path) String() string {
	return strings.Join(p, "/")
}
