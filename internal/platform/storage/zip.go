package storage

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero/zipfs"
)

// NewZipBackend serves the zip archive in r as a read-only LocalBackend.
// Parent directories without an entry of their own are added, since many
// writers only store file entries.
func NewZipBackend(r io.ReaderAt, size int64) (*LocalBackend, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	addDirEntries(zr)
	return NewLocalBackend(zipfs.New(zr)), nil
}

func addDirEntries(zr *zip.Reader) {
	known := make(map[string]bool)
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			known[path.Clean(strings.TrimPrefix(f.Name, "/"))] = true
		}
	}
	var missing []string
	for _, f := range zr.File {
		dir := path.Dir(path.Clean(strings.TrimPrefix(f.Name, "/")))
		for dir != "." && dir != "/" && !known[dir] {
			known[dir] = true
			missing = append(missing, dir)
			dir = path.Dir(dir)
		}
	}
	for _, dir := range missing {
		h := zip.FileHeader{Name: dir + "/"}
		h.SetMode(os.ModeDir | 0o755)
		zr.File = append(zr.File, &zip.File{FileHeader: h})
	}
}
