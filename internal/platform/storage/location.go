package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

// Location is an immutable path into a Backend. Its key always starts with
// "/"; the first segment is the bucket and the rest the object path. A key
// ending in "/" denotes a directory.
type Location struct {
	backend Backend
	key     string
}

// Root returns the location of the store root.
func Root(b Backend) Location {
	return Location{backend: b, key: "/"}
}

// At returns the location of key on b. A missing leading "/" is added.
func At(b Backend, key string) Location {
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	return Location{backend: b, key: key}
}

func (l Location) Backend() Backend { return l.backend }

// String returns the key including its leading "/".
func (l Location) String() string { return l.key }

// Key returns the backend key, without the leading "/".
func (l Location) Key() string { return strings.TrimPrefix(l.key, "/") }

func (l Location) Bucket() string {
	b, _ := SplitKey(l.key)
	return b
}

func (l Location) Object() string {
	_, o := SplitKey(l.key)
	return o
}

// Child appends one path segment. Exactly one separator is kept between
// the parent key and the segment; a trailing "/" on the segment is kept.
func (l Location) Child(segment string) Location {
	segment = strings.TrimLeft(segment, "/")
	if segment == "" {
		return l
	}
	return Location{backend: l.backend, key: strings.TrimSuffix(l.key, "/") + "/" + segment}
}

// Join is Child applied left to right. Empty segments are skipped.
func (l Location) Join(segments ...string) Location {
	out := l
	for _, s := range segments {
		out = out.Child(s)
	}
	return out
}

func (l Location) IsDir() bool { return strings.HasSuffix(l.key, "/") }

// AsDir returns l with a trailing "/".
func (l Location) AsDir() Location {
	if l.IsDir() {
		return l
	}
	return Location{backend: l.backend, key: l.key + "/"}
}

// Name returns the last non-empty segment, or "" for the root.
func (l Location) Name() string {
	trimmed := strings.TrimSuffix(l.key, "/")
	return trimmed[strings.LastIndex(trimmed, "/")+1:]
}

// Parent returns the directory containing l. The root is its own parent.
func (l Location) Parent() Location {
	trimmed := strings.TrimSuffix(l.key, "/")
	if trimmed == "" {
		return l
	}
	return Location{backend: l.backend, key: trimmed[:strings.LastIndex(trimmed, "/")+1]}
}

// Equal reports whether both locations address the same key.
func (l Location) Equal(o Location) bool { return l.key == o.key }

// Rel returns the path of l relative to the directory base.
func (l Location) Rel(base Location) (string, bool) {
	prefix := base.AsDir().key
	if !strings.HasPrefix(l.key, prefix) || l.key == prefix {
		return "", false
	}
	return strings.TrimPrefix(l.key, prefix), true
}

// Exists reports whether the backend has an object at l. A missing object is
// not an error.
func (l Location) Exists(ctx context.Context) (bool, error) {
	_, err := l.backend.Stat(ctx, l.Key())
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", l.key, err)
	}
	return true, nil
}

func (l Location) Stat(ctx context.Context) (ObjectInfo, error) {
	return l.backend.Stat(ctx, l.Key())
}

func (l Location) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := l.backend.Open(ctx, l.Key())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.key, err)
	}
	return rc, nil
}

// ReadAll returns the full contents of the object at l.
func (l Location) ReadAll(ctx context.Context) ([]byte, error) {
	rc, err := l.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.key, err)
	}
	return b, nil
}

// Write stores size bytes from r at l. It overwrites unconditionally.
func (l Location) Write(ctx context.Context, r io.Reader, size int64) error {
	if err := l.backend.Put(ctx, l.Key(), r, size); err != nil {
		return fmt.Errorf("write %s: %w", l.key, err)
	}
	return nil
}

// WriteBytes is Write for an in-memory payload.
func (l Location) WriteBytes(ctx context.Context, b []byte) error {
	return l.Write(ctx, bytes.NewReader(b), int64(len(b)))
}

// Children lazily yields the immediate children of l. Directories are
// yielded with a trailing "/".
func (l Location) Children(ctx context.Context) iter.Seq2[Location, error] {
	return l.list(ctx, false)
}

// Walk lazily yields every object below l, at any depth. Directory
// placeholders are skipped.
func (l Location) Walk(ctx context.Context) iter.Seq2[Location, error] {
	return func(yield func(Location, error) bool) {
		for loc, err := range l.list(ctx, true) {
			if err == nil && loc.IsDir() {
				continue
			}
			if !yield(loc, err) {
				return
			}
		}
	}
}

func (l Location) list(ctx context.Context, recursive bool) iter.Seq2[Location, error] {
	prefix := l.AsDir().Key()
	return func(yield func(Location, error) bool) {
		for key, err := range l.backend.List(ctx, prefix, recursive) {
			if err != nil {
				yield(Location{}, fmt.Errorf("list %s: %w", l.key, err))
				return
			}
			if key == prefix {
				continue
			}
			if !yield(At(l.backend, key), nil) {
				return
			}
		}
	}
}

// ListChildren collects Children into a slice.
func (l Location) ListChildren(ctx context.Context) ([]Location, error) {
	var out []Location
	for loc, err := range l.Children(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}
