package sipl

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"io"

	"github.com/fxamacker/cbor/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
)

// json keeps metadata numbers exact and rejects record fields it does not
// know.
var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
	DisallowUnknownFields:  true,
}.Froze()

// Profile selects how a record is laid out on the wire.
type Profile int

const (
	// ProfileText is one JSON document per line with a base64 payload. It
	// has no embedded line breaks, so it survives line oriented transports.
	ProfileText Profile = iota
	// ProfileBinary is a CBOR map whose payload is a length-prefixed byte
	// string.
	ProfileBinary
)

func (p Profile) String() string {
	switch p {
	case ProfileText:
		return "text"
	case ProfileBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParseProfile reads "text" or "binary".
func ParseProfile(s string) (Profile, error) {
	switch s {
	case "text", "":
		return ProfileText, nil
	case "binary":
		return ProfileBinary, nil
	default:
		return 0, errors.Errorf("unknown record profile %q", s)
	}
}

// Record is the transport form of one ChunkedArray. Payload holds the
// buffer bytes, compressed when Compressor names a codec.
type Record struct {
	Dtype      string
	Shape      []int
	Metadata   string
	DimData    []DimensionDescriptor
	Payload    []byte
	Compressor CompressionMeta
	// Checksum is the hex blake3-256 of the uncompressed buffer, or empty.
	Checksum string
}

type textRecord struct {
	Dtype      *string                `json:"dtype"`
	Shape      *[]int                 `json:"shape"`
	Metadata   *string                `json:"metadata"`
	DimData    *[]DimensionDescriptor `json:"dimData"`
	Payload    *string                `json:"payload"`
	Compressor *CompressionMeta       `json:"compressor,omitempty"`
	Checksum   string                 `json:"checksum,omitempty"`
}

type binaryRecord struct {
	Dtype      *string                `cbor:"dtype"`
	Shape      *[]int                 `cbor:"shape"`
	Metadata   *string                `cbor:"metadata"`
	DimData    *[]DimensionDescriptor `cbor:"dimData"`
	Payload    *[]byte                `cbor:"payload"`
	Compressor *CompressionMeta       `cbor:"compressor,omitempty"`
	Checksum   string                 `cbor:"checksum,omitempty"`
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	// deterministic encoding: the same chunk always yields the same bytes
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("sipl: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("sipl: CBOR decoder initialization failed: " + err.Error())
	}
}

// Codec turns ChunkedArrays into records and records into bytes. The zero
// value is not usable; call NewCodec.
type Codec struct {
	profile     Profile
	compression CompressionMeta
	checksum    bool
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithProfile sets the wire profile. The default is ProfileText.
func WithProfile(p Profile) CodecOption {
	return func(c *Codec) { c.profile = p }
}

// WithCompression compresses payloads with the given codec.
func WithCompression(m CompressionMeta) CodecOption {
	return func(c *Codec) { c.compression = m }
}

// WithChecksum adds a blake3 digest of the buffer to every record.
func WithChecksum(on bool) CodecOption {
	return func(c *Codec) { c.checksum = on }
}

// NewCodec builds a Codec. Each Codec owns its configuration.
func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{profile: ProfileText}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Profile reports the wire profile c writes.
func (c *Codec) Profile() Profile { return c.profile }

// Encode converts a into a transport record.
func Encode(a *ChunkedArray) (*Record, error) {
	return NewCodec().Encode(a)
}

// Decode rebuilds a ChunkedArray from a record.
func Decode(r *Record) (*ChunkedArray, error) {
	return NewCodec().Decode(r)
}

// Encode converts a into a transport record, compressing the payload if c
// is configured to.
func (c *Codec) Encode(a *ChunkedArray) (*Record, error) {
	md, err := json.Marshal(a.metadata)
	if err != nil {
		return nil, errors.Wrapf(ErrSerialization, "metadata: %s", err)
	}
	payload, err := c.compression.compress(a.buffer)
	if err != nil {
		return nil, errors.Wrap(ErrSerialization, err.Error())
	}
	if c.compression.IsNone() {
		payload = append(make([]byte, 0, len(payload)), payload...)
	}

	r := &Record{
		Dtype:      a.dtype.String(),
		Shape:      append(make([]int, 0, len(a.shape)), a.shape...),
		Metadata:   string(md),
		DimData:    cloneDimData(a.dimData),
		Payload:    payload,
		Compressor: c.compression,
	}
	if c.checksum {
		r.Checksum = digest(a.buffer)
	}
	return r, nil
}

// Decode rebuilds a ChunkedArray from r. It fails with ErrSerialization,
// returning no array, when the dtype is unknown, the payload does not decode
// to shape × dtype width bytes, the metadata is not a JSON object, or the
// descriptors do not match the shape. Integer metadata values come back as
// int64 (uint64 above that range) and other numbers as float64.
func (c *Codec) Decode(r *Record) (*ChunkedArray, error) {
	dt, err := ParseDtype(r.Dtype)
	if err != nil {
		return nil, errors.Wrapf(ErrSerialization, "dtype: %s", err)
	}
	n, err := elementCount(r.Shape)
	if err != nil {
		return nil, errors.Wrapf(ErrSerialization, "shape: %s", err)
	}

	buf, err := r.Compressor.decompress(r.Payload)
	if err != nil {
		return nil, errors.Wrapf(ErrSerialization, "payload: %s", err)
	}
	if want := n * dt.Width(); len(buf) != want {
		return nil, errors.Wrapf(ErrSerialization, "payload holds %d bytes, shape %v of %s needs %d", len(buf), r.Shape, dt, want)
	}
	if r.Checksum != "" && digest(buf) != r.Checksum {
		return nil, errors.Wrap(ErrSerialization, "payload checksum mismatch")
	}

	var md Metadata
	if err := json.Unmarshal([]byte(r.Metadata), &md); err != nil {
		return nil, errors.Wrapf(ErrSerialization, "metadata: %s", err)
	}
	if md == nil {
		return nil, errors.Wrap(ErrSerialization, "metadata is not a JSON object")
	}
	normalizeNumbers(md)

	if len(r.DimData) != len(r.Shape) {
		return nil, errors.Wrapf(ErrSerialization, "%d dimension descriptors for shape %v", len(r.DimData), r.Shape)
	}
	if err := checkRanges(r.DimData); err != nil {
		return nil, errors.Wrap(ErrSerialization, err.Error())
	}

	if r.Compressor.IsNone() {
		buf = append(make([]byte, 0, len(buf)), buf...)
	}
	return newOwned(buf, append([]int(nil), r.Shape...), dt, md, cloneDimData(r.DimData)), nil
}

func digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// MarshalRecord lays r out per profile p.
func MarshalRecord(r *Record, p Profile) ([]byte, error) {
	switch p {
	case ProfileText:
		payload := base64.StdEncoding.EncodeToString(r.Payload)
		tr := textRecord{
			Dtype:    &r.Dtype,
			Shape:    &r.Shape,
			Metadata: &r.Metadata,
			DimData:  &r.DimData,
			Payload:  &payload,
			Checksum: r.Checksum,
		}
		if !r.Compressor.IsNone() {
			tr.Compressor = &r.Compressor
		}
		return json.Marshal(tr)
	case ProfileBinary:
		br := binaryRecord{
			Dtype:    &r.Dtype,
			Shape:    &r.Shape,
			Metadata: &r.Metadata,
			DimData:  &r.DimData,
			Payload:  &r.Payload,
			Checksum: r.Checksum,
		}
		if !r.Compressor.IsNone() {
			br.Compressor = &r.Compressor
		}
		return cborEnc.Marshal(br)
	default:
		return nil, errors.Errorf("unknown record profile %d", p)
	}
}

// UnmarshalRecord parses one record laid out per profile p. Every field but
// compressor and checksum is required and unknown fields are rejected.
func UnmarshalRecord(data []byte, p Profile) (*Record, error) {
	switch p {
	case ProfileText:
		tr := textRecord{}
		if err := json.Unmarshal(data, &tr); err != nil {
			return nil, errors.Wrapf(ErrSerialization, "text record: %s", err)
		}
		if err := requireFields(tr.Dtype == nil, tr.Shape == nil, tr.Metadata == nil, tr.DimData == nil, tr.Payload == nil); err != nil {
			return nil, err
		}
		payload, err := base64.StdEncoding.DecodeString(*tr.Payload)
		if err != nil {
			return nil, errors.Wrapf(ErrSerialization, "payload: %s", err)
		}
		r := &Record{Dtype: *tr.Dtype, Shape: *tr.Shape, Metadata: *tr.Metadata, DimData: *tr.DimData, Payload: payload, Checksum: tr.Checksum}
		if tr.Compressor != nil {
			r.Compressor = *tr.Compressor
		}
		return r, validateCompression(r)
	case ProfileBinary:
		br := binaryRecord{}
		if err := cborDec.Unmarshal(data, &br); err != nil {
			return nil, errors.Wrapf(ErrSerialization, "binary record: %s", err)
		}
		if err := requireFields(br.Dtype == nil, br.Shape == nil, br.Metadata == nil, br.DimData == nil, br.Payload == nil); err != nil {
			return nil, err
		}
		r := &Record{Dtype: *br.Dtype, Shape: *br.Shape, Metadata: *br.Metadata, DimData: *br.DimData, Payload: *br.Payload, Checksum: br.Checksum}
		if br.Compressor != nil {
			r.Compressor = *br.Compressor
		}
		return r, validateCompression(r)
	default:
		return nil, errors.Errorf("unknown record profile %d", p)
	}
}

var recordFields = []string{"dtype", "shape", "metadata", "dimData", "payload"}

func requireFields(missing ...bool) error {
	for i, m := range missing {
		if m {
			return errors.Wrapf(ErrSerialization, "record is missing %q", recordFields[i])
		}
	}
	return nil
}

func validateCompression(r *Record) error {
	if _, err := ParseCompression(r.Compressor.ID); err != nil {
		return errors.Wrap(ErrSerialization, err.Error())
	}
	return nil
}

// Marshal encodes a and lays it out in c's profile.
func (c *Codec) Marshal(a *ChunkedArray) ([]byte, error) {
	r, err := c.Encode(a)
	if err != nil {
		return nil, err
	}
	return MarshalRecord(r, c.profile)
}

// Unmarshal parses bytes written by Marshal.
func (c *Codec) Unmarshal(data []byte) (*ChunkedArray, error) {
	r, err := UnmarshalRecord(data, c.profile)
	if err != nil {
		return nil, err
	}
	return c.Decode(r)
}

// Dumps returns a as a single text profile line, without the newline.
func Dumps(a *ChunkedArray) (string, error) {
	b, err := NewCodec().Marshal(a)
	return string(b), err
}

// Loads parses a text profile line.
func Loads(s string) (*ChunkedArray, error) {
	return NewCodec().Unmarshal([]byte(s))
}

// RecordWriter streams arrays: newline-delimited JSON for the text profile,
// a CBOR sequence for the binary profile.
type RecordWriter struct {
	codec *Codec
	w     io.Writer
}

// NewRecordWriter writes records to w using c.
func NewRecordWriter(w io.Writer, c *Codec) *RecordWriter {
	return &RecordWriter{codec: c, w: w}
}

// Write appends one array to the stream.
func (rw *RecordWriter) Write(a *ChunkedArray) error {
	b, err := rw.codec.Marshal(a)
	if err != nil {
		return err
	}
	if rw.codec.profile == ProfileText {
		b = append(b, '\n')
	}
	_, err = rw.w.Write(b)
	return err
}

// RecordReader reads a stream written by RecordWriter.
type RecordReader struct {
	codec *Codec
	br    *bufio.Reader
	dec   *cbor.Decoder
}

// NewRecordReader reads records from r using c.
func NewRecordReader(r io.Reader, c *Codec) *RecordReader {
	rr := &RecordReader{codec: c}
	if c.profile == ProfileBinary {
		rr.dec = cborDec.NewDecoder(r)
	} else {
		rr.br = bufio.NewReader(r)
	}
	return rr
}

// Read returns the next array, or io.EOF at the end of the stream. Blank
// lines in the text profile are skipped.
func (rr *RecordReader) Read() (*ChunkedArray, error) {
	if rr.dec != nil {
		var raw cbor.RawMessage
		if err := rr.dec.Decode(&raw); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, errors.Wrapf(ErrSerialization, "binary stream: %s", err)
		}
		return rr.codec.Unmarshal(raw)
	}

	for {
		line, err := rr.br.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			return rr.codec.Unmarshal(line)
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
	}
}

// ReadAll drains the stream.
func (rr *RecordReader) ReadAll() ([]*ChunkedArray, error) {
	var out []*ChunkedArray
	for {
		a, err := rr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "record %d", len(out))
		}
		out = append(out, a)
	}
}
