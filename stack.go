package sipl

import (
	"sort"

	"github.com/pkg/errors"
)

// Reassemble is the inverse of Chunkify. Chunks are ordered by their axis 0
// rank, whatever order they arrived in, and concatenated along axis 0.
//
// The result takes the metadata of the lowest ranked chunk; sibling
// metadata is dropped. Its descriptors describe the whole result rather
// than any chunk.
func Reassemble(chunks []*ChunkedArray) (*ChunkedArray, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	sorted := append([]*ChunkedArray(nil), chunks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, _ := sorted[i].GridPosition()
		rj, _ := sorted[j].GridPosition()
		return ri < rj
	})

	return Concatenate(sorted, 0)
}

// Concatenate joins arrays along axis. All arrays must share dtype, rank and
// every axis length other than axis, else ErrTypeMismatch. The result takes
// the first array's metadata and default descriptors.
func Concatenate(arrays []*ChunkedArray, axis int) (*ChunkedArray, error) {
	if len(arrays) == 0 {
		return nil, ErrNoChunks
	}
	first := arrays[0]
	if axis < 0 || axis >= first.Rank() {
		return nil, errors.Wrapf(ErrIndex, "axis %d out of range for rank %d", axis, first.Rank())
	}

	shape := first.Shape()
	shape[axis] = 0
	for i, a := range arrays {
		if !a.dtype.Equal(first.dtype) {
			return nil, errors.Wrapf(ErrTypeMismatch, "array %d has dtype %s, want %s", i, a.dtype, first.dtype)
		}
		if a.Rank() != first.Rank() {
			return nil, errors.Wrapf(ErrTypeMismatch, "array %d has rank %d, want %d", i, a.Rank(), first.Rank())
		}
		for d := range a.shape {
			if d != axis && a.shape[d] != first.shape[d] {
				return nil, errors.Wrapf(ErrTypeMismatch, "array %d has shape %v, incompatible with %v on axis %d", i, a.shape, first.shape, d)
			}
		}
		shape[axis] += a.shape[axis]
	}

	// outer is the number of blocks before axis; each array contributes one
	// contiguous run per block
	outer := 1
	for d := 0; d < axis; d++ {
		outer *= shape[d]
	}
	n, _ := elementCount(shape)
	buf := make([]byte, 0, n*first.dtype.Width())
	runs := make([]int, len(arrays))
	for i, a := range arrays {
		if outer > 0 {
			runs[i] = len(a.buffer) / outer
		}
	}
	for o := 0; o < outer; o++ {
		for i, a := range arrays {
			buf = append(buf, a.buffer[o*runs[i]:(o+1)*runs[i]]...)
		}
	}

	return newOwned(buf, shape, first.dtype, first.metadata.Clone(), DefaultDimData(shape)), nil
}
