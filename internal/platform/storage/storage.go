package storage

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"time"
)

// ErrNotFound is returned by a Backend when the requested key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ErrNoBucket is returned when an operation needs a bucket but the location
// is the store root.
var ErrNoBucket = errors.New("storage: location has no bucket")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	IsDir        bool
}

// Backend is an object store addressed by keys of the form
// "bucket/object/path". Directory keys end with "/".
type Backend interface {
	// Stat returns ErrNotFound when the key does not exist.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// List yields the keys under prefix. When recursive is false only the
	// immediate children are yielded, directories with a trailing "/".
	List(ctx context.Context, prefix string, recursive bool) iter.Seq2[string, error]
}

// SplitKey splits a backend key into its bucket and object parts.
func SplitKey(key string) (bucket, object string) {
	key = strings.TrimPrefix(key, "/")
	bucket, object, _ = strings.Cut(key, "/")
	return bucket, object
}
