package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// LocalBackend stores objects as files of an afero filesystem. The bucket
// is the top-level directory. Read-only filesystems (zip archives) are
// supported for every operation except Put.
type LocalBackend struct {
	fs afero.Fs
}

func NewLocalBackend(fsys afero.Fs) *LocalBackend {
	return &LocalBackend{fs: fsys}
}

// NewOSBackend serves the directory root of the host filesystem.
func NewOSBackend(root string) *LocalBackend {
	return NewLocalBackend(afero.NewBasePathFs(afero.NewOsFs(), root))
}

func (b *LocalBackend) path(key string) string {
	return "/" + strings.Trim(key, "/")
}

func notFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err)
}

func (b *LocalBackend) Stat(_ context.Context, key string) (ObjectInfo, error) {
	fi, err := b.fs.Stat(b.path(key))
	if notFound(err) {
		return ObjectInfo{}, ErrNotFound
	}
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, Size: fi.Size(), LastModified: fi.ModTime(), IsDir: fi.IsDir()}, nil
}

func (b *LocalBackend) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := b.fs.Open(b.path(key))
	if notFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", key)
	}
	return f, nil
}

func (b *LocalBackend) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	return afero.WriteReader(b.fs, b.path(key), r)
}

var errStopWalk = errors.New("stop walk")

func (b *LocalBackend) List(_ context.Context, prefix string, recursive bool) iter.Seq2[string, error] {
	dir := b.path(prefix)
	keyOf := func(p string, isDir bool) string {
		k := strings.TrimPrefix(filepath.ToSlash(p), "/")
		if isDir {
			k += "/"
		}
		return k
	}

	return func(yield func(string, error) bool) {
		if recursive {
			err := afero.Walk(b.fs, dir, func(p string, fi os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if p == dir {
					return nil
				}
				if !yield(keyOf(p, fi.IsDir()), nil) {
					return errStopWalk
				}
				return nil
			})
			if err != nil && !errors.Is(err, errStopWalk) && !notFound(err) {
				yield("", err)
			}
			return
		}

		entries, err := afero.ReadDir(b.fs, dir)
		if notFound(err) {
			return
		}
		if err != nil {
			yield("", err)
			return
		}
		for _, fi := range entries {
			if !yield(keyOf(filepath.Join(dir, fi.Name()), fi.IsDir()), nil) {
				return
			}
		}
	}
}
