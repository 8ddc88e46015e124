package sipl

import (
	"bytes"
	"testing"
)

func TestCompressionRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("sipl chunk payload "), 200)
	for _, id := range []string{CompressionNone, CompressionGzip, CompressionZstd, CompressionLZ4, CompressionS2} {
		t.Run("id="+id, func(t *testing.T) {
			m, err := ParseCompression(id)
			if err != nil {
				t.Fatal(err)
			}
			packed, err := m.compress(data)
			if err != nil {
				t.Fatal(err)
			}
			if !m.IsNone() && len(packed) >= len(data) {
				t.Errorf("%s did not shrink repetitive data: %d >= %d", id, len(packed), len(data))
			}
			unpacked, err := m.decompress(packed)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(data, unpacked) {
				t.Errorf("%s round trip changed the data", id)
			}
		})
	}
}

func TestParseCompressionUnknown(t *testing.T) {
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("expected error for unknown compression")
	}
}
