package sipl

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	// drivers for OpenBlobStore URLs
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

const (
	MemoryStoreType = "MemoryStore"
	LocalStoreType  = "LocalStore"
	BlobStoreType   = "BlobStore"
	dirPermBits     = 0755
)

// Store holds named blobs, typically serialized chunk collections.
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, val io.Reader) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Type() string
}

type MemoryStore struct {
	lk   sync.Mutex
	data map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: map[string][]byte{},
	}
}

func (s *MemoryStore) Type() string { return MemoryStoreType }

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	d, ok := s.data[key]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, key)
	}
	return ioutil.NopCloser(bytes.NewReader(d)), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, val io.Reader) error {
	d, err := ioutil.ReadAll(val)
	if err != nil {
		return err
	}

	s.lk.Lock()
	defer s.lk.Unlock()
	s.data[key] = d

	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	_, ok := s.data[key]
	return ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	if _, ok := s.data[key]; !ok {
		return errors.Wrap(ErrNotFound, key)
	}
	delete(s.data, key)
	return nil
}

// LocalStore keeps each key as a file under a base directory.
type LocalStore struct {
	base string
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(base string) (*LocalStore, error) {
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(base, dirPermBits); err != nil {
		return nil, err
	}

	return &LocalStore{
		base: base,
	}, nil
}

func (s *LocalStore) Type() string { return LocalStoreType }

func (s *LocalStore) path(key string) (string, error) {
	p, err := NewPath(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.base, filepath.FromSlash(p.String())), nil
}

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrNotFound, key)
	}
	return f, err
}

func (s *LocalStore) Put(_ context.Context, key string, val io.Reader) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPermBits); err != nil {
		return err
	}
	// write beside the target and rename so a failed copy never replaces
	// or leaves behind a partial value
	f, err := ioutil.TempFile(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, val); err != nil {
		f.Close()
		os.Remove(f.Name())
		return errors.Wrapf(err, "writing %s", key)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return errors.Wrapf(err, "writing %s", key)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return errors.Wrapf(err, "writing %s", key)
	}
	return nil
}

func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(ErrNotFound, key)
		}
		return err
	}
	return nil
}

// BlobStore adapts a Go CDK bucket (file, memory, S3, GCS, Azure) to Store.
type BlobStore struct {
	bucket *blob.Bucket
}

var _ Store = (*BlobStore)(nil)

// OpenBlobStore opens a bucket URL such as "mem://" or
// "file:///var/lib/sipl". Callers must Close the store.
func OpenBlobStore(ctx context.Context, url string) (*BlobStore, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "opening bucket %s", url)
	}
	return &BlobStore{bucket: b}, nil
}

// NewBlobStore wraps an already open bucket.
func NewBlobStore(b *blob.Bucket) *BlobStore {
	return &BlobStore{bucket: b}
}

func (s *BlobStore) Type() string { return BlobStoreType }

func (s *BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, errors.Wrap(ErrNotFound, key)
		}
		return nil, errors.Wrapf(err, "reading %s", key)
	}
	return r, nil
}

func (s *BlobStore) Put(ctx context.Context, key string, val io.Reader) error {
	// Close commits the blob; cancelling the writer's context first makes it
	// discard a partial write instead
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return errors.Wrapf(err, "writing %s", key)
	}
	if _, err := io.Copy(w, val); err != nil {
		cancel()
		w.Close()
		return errors.Wrapf(err, "writing %s", key)
	}
	return errors.Wrapf(w.Close(), "writing %s", key)
}

func (s *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	return ok, errors.Wrapf(err, "checking %s", key)
}

func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, key); err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return errors.Wrap(ErrNotFound, key)
		}
		return errors.Wrapf(err, "deleting %s", key)
	}
	return nil
}

// Close releases the bucket.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
