package storage

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the connection settings for an S3-compatible store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
}

// MinioBackend stores objects in an S3-compatible object store.
type MinioBackend struct {
	client *minio.Client
}

func NewMinioBackend(cfg MinioConfig) (*MinioBackend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioBackend{client: client}, nil
}

func isMinioNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}

func (b *MinioBackend) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	bucket, object := SplitKey(key)
	if bucket == "" {
		return ObjectInfo{}, ErrNoBucket
	}
	if object == "" {
		ok, err := b.client.BucketExists(ctx, bucket)
		if err != nil {
			return ObjectInfo{}, err
		}
		if !ok {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{Key: key, IsDir: true}, nil
	}
	info, err := b.client.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, Size: info.Size, LastModified: info.LastModified}, nil
}

func (b *MinioBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket, object := SplitKey(key)
	if bucket == "" {
		return nil, ErrNoBucket
	}
	// GetObject is lazy; stat first so a missing key surfaces here.
	if _, err := b.Stat(ctx, key); err != nil {
		return nil, err
	}
	obj, err := b.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (b *MinioBackend) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	bucket, object := SplitKey(key)
	if bucket == "" || object == "" {
		return ErrNoBucket
	}
	_, err := b.client.PutObject(ctx, bucket, object, r, size, minio.PutObjectOptions{})
	return err
}

func (b *MinioBackend) List(ctx context.Context, prefix string, recursive bool) iter.Seq2[string, error] {
	bucket, objectPrefix := SplitKey(prefix)
	return func(yield func(string, error) bool) {
		if bucket == "" {
			yield("", ErrNoBucket)
			return
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		for obj := range b.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
			Prefix:    objectPrefix,
			Recursive: recursive,
		}) {
			if obj.Err != nil {
				if isMinioNotFound(obj.Err) {
					return
				}
				yield("", obj.Err)
				return
			}
			if !yield(bucket+"/"+obj.Key, nil) {
				return
			}
		}
	}
}
