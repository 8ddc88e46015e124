package sipl

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/klauspost/compress/s2"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/qri-io/dataset/compression"
)

// Compression identifiers understood in transport records
const (
	CompressionNone = ""
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
	CompressionS2   = "s2"
)

var compressionIDs = map[string]struct{}{
	CompressionNone: {},
	CompressionGzip: {},
	CompressionZstd: {},
	CompressionLZ4:  {},
	CompressionS2:   {},
}

// datasetFormats maps record identifiers to the stream formats implemented
// by the dataset compression package
var datasetFormats = map[string]string{
	CompressionGzip: string(compression.FmtGZip),
	CompressionZstd: string(compression.FmtZStandard),
}

// CompressionMeta names the codec a record payload was compressed with.
// The zero value means the payload is stored raw.
type CompressionMeta struct {
	ID string `json:"id"`
}

// ParseCompression validates a compression identifier.
func ParseCompression(id string) (CompressionMeta, error) {
	if _, ok := compressionIDs[id]; !ok {
		return CompressionMeta{}, errors.Errorf("unsupported compression %q", id)
	}
	return CompressionMeta{ID: id}, nil
}

// IsNone reports whether the payload is uncompressed.
func (m CompressionMeta) IsNone() bool { return m.ID == CompressionNone }

// Compressor wraps w so that writes are compressed. Callers must Close the
// returned writer to flush it; closing does not close w.
func (m CompressionMeta) Compressor(w io.Writer) (io.WriteCloser, error) {
	switch m.ID {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip, CompressionZstd:
		return compression.Compressor(datasetFormats[m.ID], w)
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionS2:
		return s2.NewWriter(w), nil
	default:
		return nil, errors.Errorf("unsupported compression %q", m.ID)
	}
}

// Decompressor wraps r so that reads yield decompressed bytes.
func (m CompressionMeta) Decompressor(r io.Reader) (io.ReadCloser, error) {
	switch m.ID {
	case CompressionNone:
		return ioutil.NopCloser(r), nil
	case CompressionGzip, CompressionZstd:
		return compression.Decompressor(datasetFormats[m.ID], r)
	case CompressionLZ4:
		return ioutil.NopCloser(lz4.NewReader(r)), nil
	case CompressionS2:
		return ioutil.NopCloser(s2.NewReader(r)), nil
	default:
		return nil, errors.Errorf("unsupported compression %q", m.ID)
	}
}

// compress runs data through m in memory.
func (m CompressionMeta) compress(data []byte) ([]byte, error) {
	if m.IsNone() {
		return data, nil
	}
	buf := &bytes.Buffer{}
	w, err := m.Compressor(buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrapf(err, "%s compress", m.ID)
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrapf(err, "%s compress", m.ID)
	}
	return buf.Bytes(), nil
}

// decompress inverts compress.
func (m CompressionMeta) decompress(data []byte) ([]byte, error) {
	if m.IsNone() {
		return data, nil
	}
	r, err := m.Decompressor(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "%s decompress", m.ID)
	}
	return out, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
