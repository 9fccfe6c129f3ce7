package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/fileblob" // file:// URLs
	_ "gocloud.dev/blob/memblob"  // mem:// URLs
	_ "gocloud.dev/blob/s3blob"   // s3:// URLs
)

// ErrNotExist is returned when a key is absent from the bucket, regardless of
// backend.
var ErrNotExist = errors.New("blob: key does not exist")

// Store wraps a Go CDK bucket behind the handful of operations the upload
// pipeline needs. Backends are interchangeable by URL:
//   - "mem://" (tests)
//   - "file:///var/lib/teamspace/blobs"
//   - "s3://my-bucket?region=us-east-1"
type Store struct {
	bucket *blob.Bucket
}

type Metadata struct {
	Size        int64
	ModTime     time.Time
	ContentType string
}

func Open(ctx context.Context, bucketURL string) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open blob bucket %q failed: %w", bucketURL, err)
	}
	return &Store{bucket: bucket}, nil
}

func (s *Store) Close() error {
	return s.bucket.Close()
}

// Write stores the reader's bytes under key, replacing any existing object.
// A partially written object is deleted rather than left behind.
func (s *Store) Write(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	w, err := s.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return 0, fmt.Errorf("open blob writer for %q failed: %w", key, err)
	}

	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		_ = s.bucket.Delete(ctx, key)
		return 0, fmt.Errorf("write blob %q failed: %w", key, err)
	}
	if err := w.Close(); err != nil {
		_ = s.bucket.Delete(ctx, key)
		return 0, fmt.Errorf("close blob writer for %q failed: %w", key, err)
	}
	return n, nil
}

// NewWriter returns a streaming writer for key. Close commits the object;
// the caller owns cleanup of partially written keys on failure.
func (s *Store) NewWriter(ctx context.Context, key, contentType string) (io.WriteCloser, error) {
	w, err := s.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("open blob writer for %q failed: %w", key, err)
	}
	return w, nil
}

func (s *Store) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, wrapErr(err, key)
	}
	return r, nil
}

func (s *Store) ReadAll(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, wrapErr(err, key)
	}
	return data, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, key); err != nil {
		return wrapErr(err, key)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check blob %q failed: %w", key, err)
	}
	return exists, nil
}

func (s *Store) Metadata(ctx context.Context, key string) (*Metadata, error) {
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		return nil, wrapErr(err, key)
	}
	return &Metadata{
		Size:        attrs.Size,
		ModTime:     attrs.ModTime,
		ContentType: attrs.ContentType,
	}, nil
}

// List returns all keys under prefix in lexical order.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list blobs under %q failed: %w", prefix, err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func wrapErr(err error, key string) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	return fmt.Errorf("blob operation on %q failed: %w", key, err)
}
