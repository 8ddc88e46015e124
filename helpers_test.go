package sipl

import "testing"

// seqArray builds a uint8 array whose element i holds i % 256.
func seqArray(t *testing.T, shape []int, md Metadata) *ChunkedArray {
	t.Helper()
	n := 1
	for _, s := range shape {
		n *= s
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i % 256)
	}
	a, err := NewChunkedArray(buf, shape, Uint8, WithMetadata(md))
	if err != nil {
		t.Fatal(err)
	}
	return a
}
