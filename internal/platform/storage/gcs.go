package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBackend stores objects in Google Cloud Storage.
type GCSBackend struct {
	client *gcs.Client
}

// NewGCSBackend connects with application default credentials. A non-empty
// endpoint targets an emulator without authentication.
func NewGCSBackend(ctx context.Context, endpoint string) (*GCSBackend, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSBackend{client: client}, nil
}

func (b *GCSBackend) Close() error { return b.client.Close() }

func (b *GCSBackend) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	bucket, object := SplitKey(key)
	if bucket == "" {
		return ObjectInfo{}, ErrNoBucket
	}
	if object == "" {
		if _, err := b.client.Bucket(bucket).Attrs(ctx); err != nil {
			if errors.Is(err, gcs.ErrBucketNotExist) {
				return ObjectInfo{}, ErrNotFound
			}
			return ObjectInfo{}, err
		}
		return ObjectInfo{Key: key, IsDir: true}, nil
	}
	attrs, err := b.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, Size: attrs.Size, LastModified: attrs.Updated}, nil
}

func (b *GCSBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket, object := SplitKey(key)
	if bucket == "" {
		return nil, ErrNoBucket
	}
	r, err := b.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (b *GCSBackend) Put(ctx context.Context, key string, r io.Reader, _ int64) error {
	bucket, object := SplitKey(key)
	if bucket == "" || object == "" {
		return ErrNoBucket
	}
	w := b.client.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (b *GCSBackend) List(ctx context.Context, prefix string, recursive bool) iter.Seq2[string, error] {
	bucket, objectPrefix := SplitKey(prefix)
	return func(yield func(string, error) bool) {
		if bucket == "" {
			yield("", ErrNoBucket)
			return
		}
		q := &gcs.Query{Prefix: objectPrefix}
		if !recursive {
			q.Delimiter = "/"
		}
		it := b.client.Bucket(bucket).Objects(ctx, q)
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			name := attrs.Name
			if name == "" {
				// Synthetic directory entry when a delimiter is set.
				name = attrs.Prefix
			}
			if !yield(bucket+"/"+name, nil) {
				return
			}
		}
	}
}
