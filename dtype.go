package sipl

import (
	"encoding"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Dtype is the element type of a ChunkedArray buffer. It is written as a
// NumPy array protocol type string (typestr) of 3 parts:
//  * One character describing the byteorder of the data:
//    "<": little-endian; ">": big-endian; "|": not-relevant
//  * One character code giving the basic type of the array:
//    * "b": Boolean (integer type where all values are only True or False)
//    * "i": integer
//    * "u": unsigned integer
//    * "f": floating point
//    * "c": complex floating point
//  * An integer specifying the number of bytes the type uses.
//
// Only numeric kinds are supported. Single byte types carry the "|" byte
// order.
type Dtype struct {
	ByteOrder ByteOrder
	BasicType BasicType
	ByteSize  int
}

var (
	_ encoding.TextUnmarshaler = (*Dtype)(nil)
	_ encoding.TextMarshaler   = (*Dtype)(nil)
)

// Common element types
var (
	Bool       = Dtype{BONotRelevant, BTBoolean, 1}
	Int8       = Dtype{BONotRelevant, BTInteger, 1}
	Int16      = Dtype{BOLittleEndian, BTInteger, 2}
	Int32      = Dtype{BOLittleEndian, BTInteger, 4}
	Int64      = Dtype{BOLittleEndian, BTInteger, 8}
	Uint8      = Dtype{BONotRelevant, BTUnsigned, 1}
	Uint16     = Dtype{BOLittleEndian, BTUnsigned, 2}
	Uint32     = Dtype{BOLittleEndian, BTUnsigned, 4}
	Uint64     = Dtype{BOLittleEndian, BTUnsigned, 8}
	Float32    = Dtype{BOLittleEndian, BTFloatingPoint, 4}
	Float64    = Dtype{BOLittleEndian, BTFloatingPoint, 8}
	Complex64  = Dtype{BOLittleEndian, BTComplex, 8}
	Complex128 = Dtype{BOLittleEndian, BTComplex, 16}
)

// numpyNames maps NumPy dtype names, as str(dtype) prints them, to the
// native little-endian typestr.
var numpyNames = map[string]Dtype{
	"bool":       Bool,
	"int8":       Int8,
	"int16":      Int16,
	"int32":      Int32,
	"int64":      Int64,
	"uint8":      Uint8,
	"uint16":     Uint16,
	"uint32":     Uint32,
	"uint64":     Uint64,
	"float32":    Float32,
	"float64":    Float64,
	"complex64":  Complex64,
	"complex128": Complex128,
}

// validSizes lists the byte widths each basic type may have
var validSizes = map[BasicType]map[int]struct{}{
	BTBoolean:       {1: {}},
	BTInteger:       {1: {}, 2: {}, 4: {}, 8: {}},
	BTUnsigned:      {1: {}, 2: {}, 4: {}, 8: {}},
	BTFloatingPoint: {4: {}, 8: {}},
	BTComplex:       {8: {}, 16: {}},
}

// ParseDtype reads either a typestr ("<f8", "|u1") or a NumPy dtype name
// ("float64", "uint8").
func ParseDtype(s string) (dt Dtype, err error) {
	if named, ok := numpyNames[s]; ok {
		return named, nil
	}

	if len(s) < 3 {
		return dt, fmt.Errorf("invalid dtype string. %q is too short", s)
	}

	boByte, rest := s[0], s[1:]
	dt.ByteOrder, err = ParseByteOrder(rune(boByte))
	if err != nil {
		return dt, err
	}

	typeByte, rest := rest[0], rest[1:]
	dt.BasicType, err = ParseBasicType(rune(typeByte))
	if err != nil {
		return dt, err
	}

	size, err := strconv.ParseInt(rest, 10, 0)
	if err != nil {
		return dt, errors.Wrapf(err, "dtype %q size", s)
	}
	dt.ByteSize = int(size)

	if _, ok := validSizes[dt.BasicType][dt.ByteSize]; !ok {
		return dt, fmt.Errorf("unsupported %s width %d in dtype %q", dt.BasicType.Human(), dt.ByteSize, s)
	}
	return dt, nil
}

// MustParseDtype is ParseDtype for literals known to be valid.
func MustParseDtype(s string) Dtype {
	dt, err := ParseDtype(s)
	if err != nil {
		panic(err)
	}
	return dt
}

func (dt Dtype) String() string {
	return fmt.Sprintf("%s%s%d", string(dt.ByteOrder), string(dt.BasicType), dt.ByteSize)
}

// Width is the number of bytes one element occupies.
func (dt Dtype) Width() int { return dt.ByteSize }

// Equal compares element types, treating "|" and either explicit byte
// order as the same for single byte types.
func (dt Dtype) Equal(o Dtype) bool {
	if dt.BasicType != o.BasicType || dt.ByteSize != o.ByteSize {
		return false
	}
	if dt.ByteSize == 1 {
		return true
	}
	return dt.ByteOrder == o.ByteOrder
}

func (dt Dtype) order() binary.ByteOrder {
	if dt.ByteOrder == BOBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (dt Dtype) validate() error {
	if _, ok := byteOrders[dt.ByteOrder]; !ok {
		return fmt.Errorf("unsupported byte order %q", rune(dt.ByteOrder))
	}
	if _, ok := validSizes[dt.BasicType][dt.ByteSize]; !ok {
		return fmt.Errorf("unsupported dtype %q", dt.String())
	}
	return nil
}

func (dt Dtype) MarshalJSON() ([]byte, error) {
	return []byte(`"` + dt.String() + `"`), nil
}

func (dt *Dtype) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return err
	}
	return dt.UnmarshalText([]byte(s))
}

func (dt Dtype) MarshalText() ([]byte, error) {
	return []byte(dt.String()), nil
}

func (dt *Dtype) UnmarshalText(d []byte) error {
	t, err := ParseDtype(strings.TrimSpace(string(d)))
	if err != nil {
		return err
	}
	*dt = t
	return nil
}

type ByteOrder rune

func ParseByteOrder(r rune) (ByteOrder, error) {
	o := ByteOrder(r)
	if _, ok := byteOrders[o]; !ok {
		return o, fmt.Errorf("unsupported byte order format: %q", r)
	}
	return o, nil
}

const (
	BONotRelevant  ByteOrder = '|'
	BOLittleEndian ByteOrder = '<'
	BOBigEndian    ByteOrder = '>'
)

var byteOrders = map[ByteOrder]struct{}{
	BONotRelevant:  {},
	BOLittleEndian: {},
	BOBigEndian:    {},
}

type BasicType rune

func ParseBasicType(r rune) (BasicType, error) {
	t := BasicType(r)
	if _, ok := supportedBasicTypes[t]; !ok {
		return t, fmt.Errorf("unsupported basic type: %q", r)
	}
	return t, nil
}

func (bt BasicType) Human() string {
	return supportedBasicTypes[bt]
}

const (
	BTBoolean       BasicType = 'b'
	BTInteger       BasicType = 'i'
	BTUnsigned      BasicType = 'u'
	BTFloatingPoint BasicType = 'f'
	BTComplex       BasicType = 'c'
)

var supportedBasicTypes = map[BasicType]string{
	BTBoolean:       "bool",
	BTInteger:       "int",
	BTUnsigned:      "uint",
	BTFloatingPoint: "float",
	BTComplex:       "complex",
}

// newSlice returns an empty typed slice of n elements matching dt, suitable
// as a target for binary.Read.
func (dt Dtype) newSlice(n int) (interface{}, error) {
	switch dt.BasicType {
	case BTBoolean:
		return make([]bool, n), nil
	case BTInteger:
		switch dt.ByteSize {
		case 1:
			return make([]int8, n), nil
		case 2:
			return make([]int16, n), nil
		case 4:
			return make([]int32, n), nil
		case 8:
			return make([]int64, n), nil
		}
	case BTUnsigned:
		switch dt.ByteSize {
		case 1:
			return make([]uint8, n), nil
		case 2:
			return make([]uint16, n), nil
		case 4:
			return make([]uint32, n), nil
		case 8:
			return make([]uint64, n), nil
		}
	case BTFloatingPoint:
		switch dt.ByteSize {
		case 4:
			return make([]float32, n), nil
		case 8:
			return make([]float64, n), nil
		}
	case BTComplex:
		switch dt.ByteSize {
		case 8:
			return make([]complex64, n), nil
		case 16:
			return make([]complex128, n), nil
		}
	}
	return nil, fmt.Errorf("unsupported decoding type %q", dt.String())
}

// DtypeOf reports the little-endian Dtype of a typed Go slice along with
// its length.
func DtypeOf(values interface{}) (Dtype, int, error) {
	switch v := values.(type) {
	case []bool:
		return Bool, len(v), nil
	case []int8:
		return Int8, len(v), nil
	case []int16:
		return Int16, len(v), nil
	case []int32:
		return Int32, len(v), nil
	case []int64:
		return Int64, len(v), nil
	case []uint8:
		return Uint8, len(v), nil
	case []uint16:
		return Uint16, len(v), nil
	case []uint32:
		return Uint32, len(v), nil
	case []uint64:
		return Uint64, len(v), nil
	case []float32:
		return Float32, len(v), nil
	case []float64:
		return Float64, len(v), nil
	case []complex64:
		return Complex64, len(v), nil
	case []complex128:
		return Complex128, len(v), nil
	default:
		return Dtype{}, 0, fmt.Errorf("unexpected value type %T", values)
	}
}
