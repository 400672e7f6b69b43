package dicomdirtest

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/storage"
)

// Zip renders the archive as a zip file with the index at prefix/DICOMDIR.
// Directory entries are included, as produced by common zip tools.
func Zip(ctx context.Context, prefix string, a Archive) ([]byte, error) {
	return render(ctx, prefix, a, true)
}

// ZipFiles is like Zip but writes file entries only, the way some
// scanners and streaming tools export studies.
func ZipFiles(ctx context.Context, prefix string, a Archive) ([]byte, error) {
	return render(ctx, prefix, a, false)
}

func render(ctx context.Context, prefix string, a Archive, dirs bool) ([]byte, error) {
	fs := afero.NewMemMapFs()
	root := storage.Root(storage.NewLocalBackend(fs))
	if err := Write(ctx, root.Child(prefix+"/"), a); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	err := afero.Walk(fs, "/", func(p string, fi os.FileInfo, err error) error {
		if err != nil || p == "/" {
			return err
		}
		name := strings.TrimPrefix(p, "/")
		if fi.IsDir() {
			if !dirs {
				return nil
			}
			_, err := zw.Create(name + "/")
			return err
		}
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		data, err := afero.ReadFile(fs, p)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
