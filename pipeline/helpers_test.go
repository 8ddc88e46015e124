package pipeline

import (
	"testing"

	"github.com/dnlglsn/sipl"
)

// testImage builds a rows x cols x channels uint8 array whose element i holds
// i % 251.
func testImage(t *testing.T, rows, cols, channels int) *sipl.ChunkedArray {
	t.Helper()
	buf := make([]byte, rows*cols*channels)
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	a, err := sipl.NewChunkedArray(buf, []int{rows, cols, channels}, sipl.Uint8, sipl.WithMetadata(sipl.Metadata{
		sipl.MetaFilename: "/data/cheetah.jpg",
	}))
	if err != nil {
		t.Fatal(err)
	}
	return a
}
