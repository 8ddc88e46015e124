package sipl

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// ChunkedArray is a contiguous row-major element buffer plus the metadata
// and per-axis provenance needed to place it within a larger logical array.
//
// Every transformation returns a new ChunkedArray. Two instances never share
// a buffer, a metadata map or a descriptor slice.
type ChunkedArray struct {
	buffer   []byte
	dtype    Dtype
	shape    []int
	metadata Metadata
	dimData  []DimensionDescriptor
}

// Option configures NewChunkedArray.
type Option func(*arrayOptions)

type arrayOptions struct {
	metadata Metadata
	dimData  []DimensionDescriptor
}

// WithMetadata sets the initial metadata. The map is deep-copied.
func WithMetadata(m Metadata) Option {
	return func(o *arrayOptions) {
		o.metadata = m
	}
}

// WithDimData sets explicit per-axis descriptors instead of the full range
// defaults. The slice is copied.
func WithDimData(dd []DimensionDescriptor) Option {
	return func(o *arrayOptions) {
		o.dimData = dd
	}
}

// NewChunkedArray builds an array over a copy of buf. It fails with
// ErrConstruction when len(buf) != product(shape) * dtype width, or when
// supplied dimData does not have one descriptor per axis.
func NewChunkedArray(buf []byte, shape []int, dtype Dtype, opts ...Option) (*ChunkedArray, error) {
	o := &arrayOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if err := dtype.validate(); err != nil {
		return nil, errors.Wrap(ErrConstruction, err.Error())
	}
	n, err := elementCount(shape)
	if err != nil {
		return nil, errors.Wrap(ErrConstruction, err.Error())
	}
	if want := n * dtype.Width(); len(buf) != want {
		return nil, errors.Wrapf(ErrConstruction, "buffer holds %d bytes, shape %v of %s needs %d", len(buf), shape, dtype, want)
	}

	a := &ChunkedArray{
		buffer: append(make([]byte, 0, len(buf)), buf...),
		dtype:  dtype,
		shape:  append([]int(nil), shape...),
	}

	if o.metadata != nil {
		a.metadata = o.metadata.Clone()
	} else {
		a.metadata = Metadata{}
	}

	if o.dimData != nil {
		if len(o.dimData) != len(shape) {
			return nil, errors.Wrapf(ErrConstruction, "%d dimension descriptors for rank %d", len(o.dimData), len(shape))
		}
		if err := checkRanges(o.dimData); err != nil {
			return nil, errors.Wrap(ErrConstruction, err.Error())
		}
		a.dimData = cloneDimData(o.dimData)
	} else {
		a.dimData = DefaultDimData(shape)
	}

	return a, nil
}

// FromValues builds an array from a typed Go slice such as []uint8 or
// []complex64, encoded little-endian.
func FromValues(values interface{}, shape []int, opts ...Option) (*ChunkedArray, error) {
	dt, _, err := DtypeOf(values)
	if err != nil {
		return nil, errors.Wrap(ErrConstruction, err.Error())
	}
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, dt.order(), values); err != nil {
		return nil, errors.Wrap(ErrConstruction, err.Error())
	}
	return NewChunkedArray(buf.Bytes(), shape, dt, opts...)
}

// newOwned wraps already-owned parts without copying them.
func newOwned(buf []byte, shape []int, dt Dtype, md Metadata, dd []DimensionDescriptor) *ChunkedArray {
	return &ChunkedArray{buffer: buf, dtype: dt, shape: shape, metadata: md, dimData: dd}
}

func elementCount(shape []int) (int, error) {
	n := 1
	for i, s := range shape {
		if s < 0 {
			return 0, fmt.Errorf("axis %d has negative length %d", i, s)
		}
		n *= s
	}
	return n, nil
}

func checkRanges(dd []DimensionDescriptor) error {
	for i, d := range dd {
		if !d.DistType.Valid() {
			return fmt.Errorf("axis %d has unknown distribution type %q", i, d.DistType)
		}
		if d.Stop < d.Start {
			return fmt.Errorf("axis %d descriptor range [%d, %d) is negative", i, d.Start, d.Stop)
		}
	}
	return nil
}

// Buffer returns the raw element bytes. The slice belongs to the array and
// must not be modified; use Copy first to get a private one.
func (a *ChunkedArray) Buffer() []byte { return a.buffer }

// Dtype returns the element type.
func (a *ChunkedArray) Dtype() Dtype { return a.dtype }

// Shape returns a copy of the axis lengths.
func (a *ChunkedArray) Shape() []int { return append([]int(nil), a.shape...) }

// Rank is the number of axes.
func (a *ChunkedArray) Rank() int { return len(a.shape) }

// Len is the length of axis 0, or 0 for a rank-0 array.
func (a *ChunkedArray) Len() int {
	if len(a.shape) == 0 {
		return 0
	}
	return a.shape[0]
}

// Size is the number of elements.
func (a *ChunkedArray) Size() int {
	n, _ := elementCount(a.shape)
	return n
}

// Metadata returns the metadata map owned by this array. Mutating it
// affects only this array.
func (a *ChunkedArray) Metadata() Metadata { return a.metadata }

// DimData returns a copy of the per-axis descriptors.
func (a *ChunkedArray) DimData() []DimensionDescriptor { return cloneDimData(a.dimData) }

// GridPosition returns axis 0's chunk rank and chunk count.
func (a *ChunkedArray) GridPosition() (rank, size int) {
	if len(a.dimData) == 0 {
		return 0, 1
	}
	return a.dimData[0].ProcGridRank, a.dimData[0].ProcGridSize
}

// Copy returns a deep copy.
func (a *ChunkedArray) Copy() *ChunkedArray {
	return newOwned(
		append(make([]byte, 0, len(a.buffer)), a.buffer...),
		append([]int(nil), a.shape...),
		a.dtype,
		a.metadata.Clone(),
		cloneDimData(a.dimData),
	)
}

// Reshape returns a copy viewed with a new shape of the same element count.
// Provenance does not survive a reshape, so the result carries default
// descriptors.
func (a *ChunkedArray) Reshape(shape []int) (*ChunkedArray, error) {
	n, err := elementCount(shape)
	if err != nil {
		return nil, errors.Wrap(ErrConstruction, err.Error())
	}
	if n != a.Size() {
		return nil, errors.Wrapf(ErrConstruction, "cannot reshape %v into %v", a.shape, shape)
	}
	return NewChunkedArray(a.buffer, shape, a.dtype, WithMetadata(a.metadata))
}

// WithBuffer returns an array of the same shape, metadata and provenance
// holding buf, which may use a different dtype. Workers use it to publish
// transformed chunk contents without losing the chunk's place.
func (a *ChunkedArray) WithBuffer(buf []byte, dtype Dtype) (*ChunkedArray, error) {
	return NewChunkedArray(buf, a.shape, dtype, WithMetadata(a.metadata), WithDimData(a.dimData))
}

// Values decodes the buffer into a typed slice ([]uint8, []float32,
// []complex64, ...) honouring the dtype's byte order.
func (a *ChunkedArray) Values() (interface{}, error) {
	v, err := a.dtype.newSlice(a.Size())
	if err != nil {
		return nil, err
	}
	if err := binary.Read(bytes.NewReader(a.buffer), a.dtype.order(), v); err != nil {
		return nil, errors.Wrap(err, "decoding values")
	}
	return v, nil
}

func (a *ChunkedArray) String() string {
	return fmt.Sprintf("<sipl.ChunkedArray %s %v %d metadata keys>", a.dtype, a.shape, len(a.metadata))
}
