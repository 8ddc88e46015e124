package sipl

import (
	"fmt"

	"github.com/pkg/errors"
)

// Selector picks elements along one axis. Build one with Index, Range,
// RangeFrom, RangeTo, All or NewAxis.
type Selector struct {
	kind   selectorKind
	index  int
	lo, hi *int
}

type selectorKind int

const (
	selInteger selectorKind = iota
	selRange
	selNewAxis
)

// Index selects the single position i. The axis is kept with length 1.
func Index(i int) Selector { return Selector{kind: selInteger, index: i} }

// Range selects [lo, hi).
func Range(lo, hi int) Selector { return Selector{kind: selRange, lo: &lo, hi: &hi} }

// RangeFrom selects [lo, end).
func RangeFrom(lo int) Selector { return Selector{kind: selRange, lo: &lo} }

// RangeTo selects [0, hi).
func RangeTo(hi int) Selector { return Selector{kind: selRange, hi: &hi} }

// All selects the whole axis.
func All() Selector { return Selector{kind: selRange} }

// NewAxis inserts a unit axis.
func NewAxis() Selector { return Selector{kind: selNewAxis} }

func (s Selector) String() string {
	switch s.kind {
	case selInteger:
		return fmt.Sprintf("%d", s.index)
	case selNewAxis:
		return "newaxis"
	}
	lo, hi := "", ""
	if s.lo != nil {
		lo = fmt.Sprintf("%d", *s.lo)
	}
	if s.hi != nil {
		hi = fmt.Sprintf("%d", *s.hi)
	}
	return lo + ":" + hi
}

// Slice selects a sub-array and derives its provenance from a's.
//
// Integer selectors keep their axis with length 1 so that the result has one
// descriptor per axis: start = parent start + i, stop = start + 1. A range's
// lower bound is offset by the parent's global start while an explicit upper
// bound is recorded as given, not offset. Parent axes past the last selector
// are kept whole along with their descriptors.
//
// Slice fails with ErrIndex when a selector addresses an axis beyond a's
// rank, falls outside the axis, or yields a negative range.
func (a *ChunkedArray) Slice(sel ...Selector) (*ChunkedArray, error) {
	// parent axis bounds for the raw copy
	lo := make([]int, len(a.shape))
	hi := append([]int(nil), a.shape...)

	shape := make([]int, 0, len(a.shape)+len(sel))
	dimData := make([]DimensionDescriptor, 0, len(a.shape)+len(sel))

	addedDims := 0
	for i, s := range sel {
		if s.kind == selNewAxis {
			shape = append(shape, 1)
			dimData = append(dimData, DefaultDescriptor())
			addedDims++
			continue
		}

		p := i - addedDims
		if p >= len(a.shape) {
			return nil, errors.Wrapf(ErrIndex, "selector %d (%s) addresses axis %d of a rank %d array", i, s, p, len(a.shape))
		}
		parent := a.dimData[p]
		d := parent

		switch s.kind {
		case selInteger:
			if s.index < 0 || s.index >= a.shape[p] {
				return nil, errors.Wrapf(ErrIndex, "index %d out of range for axis %d of length %d", s.index, p, a.shape[p])
			}
			lo[p], hi[p] = s.index, s.index+1
			d.Start = parent.Start + s.index
			d.Stop = d.Start + 1

		case selRange:
			if s.lo != nil {
				if *s.lo < 0 {
					return nil, errors.Wrapf(ErrIndex, "negative range start %d on axis %d", *s.lo, p)
				}
				lo[p] = min(*s.lo, a.shape[p])
				d.Start = parent.Start + *s.lo
			}
			if s.hi != nil {
				if *s.hi < 0 {
					return nil, errors.Wrapf(ErrIndex, "negative range stop %d on axis %d", *s.hi, p)
				}
				hi[p] = min(*s.hi, a.shape[p])
				d.Stop = *s.hi
			}
			if hi[p] < lo[p] {
				return nil, errors.Wrapf(ErrIndex, "range %s on axis %d is negative", s, p)
			}
		}

		if d.Stop < d.Start {
			return nil, errors.Wrapf(ErrIndex, "range %s on axis %d yields descriptor [%d, %d)", s, p, d.Start, d.Stop)
		}
		shape = append(shape, hi[p]-lo[p])
		dimData = append(dimData, d)
	}

	for p := len(sel) - addedDims; p < len(a.shape); p++ {
		shape = append(shape, a.shape[p])
		dimData = append(dimData, a.dimData[p])
	}

	buf := extractBlock(a.buffer, a.shape, lo, hi, a.dtype.Width())
	return newOwned(buf, shape, a.dtype, a.metadata.Clone(), dimData), nil
}

// extractBlock copies the row-major sub-block [lo, hi) of src into a new
// buffer, one contiguous run of the innermost axis at a time.
func extractBlock(src []byte, shape, lo, hi []int, width int) []byte {
	n := len(shape)
	if n == 0 {
		return append(make([]byte, 0, len(src)), src...)
	}

	count := 1
	for d := 0; d < n; d++ {
		count *= hi[d] - lo[d]
	}
	out := make([]byte, 0, count*width)
	if count == 0 {
		return out
	}

	strides := make([]int, n)
	stride := width
	for d := n - 1; d >= 0; d-- {
		strides[d] = stride
		stride *= shape[d]
	}

	run := (hi[n-1] - lo[n-1]) * width
	idx := append([]int(nil), lo...)
	for {
		off := 0
		for d := 0; d < n; d++ {
			off += idx[d] * strides[d]
		}
		out = append(out, src[off:off+run]...)

		d := n - 2
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < hi[d] {
				break
			}
			idx[d] = lo[d]
		}
		if d < 0 {
			return out
		}
	}
}
