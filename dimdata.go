package sipl

import "fmt"

// DistType tags how an axis is distributed across chunks, following the
// distributed array protocol.
type DistType string

const (
	// DistBlock is contiguous near-equal blocks, the only kind the splitter
	// produces
	DistBlock DistType = "b"
	// DistCyclic deals elements round robin
	DistCyclic DistType = "c"
	// DistNone marks an axis that is not distributed
	DistNone DistType = "n"
)

var distTypes = map[DistType]struct{}{
	DistBlock:  {},
	DistCyclic: {},
	DistNone:   {},
}

// Valid reports whether t is one of the known distribution types.
func (t DistType) Valid() bool {
	_, ok := distTypes[t]
	return ok
}

// DimensionDescriptor records where one axis of a chunk sits within the
// logical whole array.
type DimensionDescriptor struct {
	DistType DistType `json:"distType"`
	// Size is the global length of this axis across the whole array.
	Size int `json:"size"`
	// ProcGridSize is the number of chunks the axis is split into.
	ProcGridSize int `json:"procGridSize"`
	// ProcGridRank is this chunk's index among ProcGridSize chunks.
	ProcGridRank int `json:"procGridRank"`
	// Start and Stop are the half-open global range held by this chunk.
	Start int `json:"start"`
	Stop  int `json:"stop"`
	// Padding is the (before, after) halo element count.
	Padding [2]int `json:"padding"`
}

// DefaultDescriptor is the descriptor for an inserted unit axis.
func DefaultDescriptor() DimensionDescriptor {
	return FullRange(1)
}

// FullRange describes an undivided axis of the given length.
func FullRange(length int) DimensionDescriptor {
	return DimensionDescriptor{
		DistType:     DistBlock,
		Size:         length,
		ProcGridSize: 1,
		ProcGridRank: 0,
		Start:        0,
		Stop:         length,
	}
}

// DefaultDimData returns one full range descriptor per axis of shape.
func DefaultDimData(shape []int) []DimensionDescriptor {
	dd := make([]DimensionDescriptor, len(shape))
	for i, n := range shape {
		dd[i] = FullRange(n)
	}
	return dd
}

// Len is the number of global elements covered, Stop - Start.
func (d DimensionDescriptor) Len() int { return d.Stop - d.Start }

func (d DimensionDescriptor) String() string {
	return fmt.Sprintf("%s[%d:%d] of %d rank %d/%d", d.DistType, d.Start, d.Stop, d.Size, d.ProcGridRank, d.ProcGridSize)
}

func cloneDimData(dd []DimensionDescriptor) []DimensionDescriptor {
	if dd == nil {
		return nil
	}
	// descriptors hold no references, a value copy is deep
	out := make([]DimensionDescriptor, len(dd))
	copy(out, dd)
	return out
}
