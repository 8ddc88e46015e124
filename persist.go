package sipl

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
)

// WriteChunks persists a chunk collection as a single blob under key. With
// the text profile the blob has one record per line.
func WriteChunks(ctx context.Context, s Store, key string, c *Codec, chunks []*ChunkedArray) error {
	buf := &bytes.Buffer{}
	w := NewRecordWriter(buf, c)
	for i, ch := range chunks {
		if err := w.Write(ch); err != nil {
			return errors.WithMessagef(err, "chunk %d", i)
		}
	}
	return s.Put(ctx, key, buf)
}

// ReadChunks loads a collection written by WriteChunks, in stored order.
func ReadChunks(ctx context.Context, s Store, key string, c *Codec) ([]*ChunkedArray, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	chunks, err := NewRecordReader(rc, c).ReadAll()
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %s", key)
	}
	return chunks, nil
}

// RemoveChunks deletes key if it exists.
func RemoveChunks(ctx context.Context, s Store, key string) error {
	ok, err := s.Exists(ctx, key)
	if err != nil || !ok {
		return err
	}
	return s.Delete(ctx, key)
}
