package ingest

import (
	"context"
	"fmt"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/dicomdir"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/storage"
)

// Upload copies an archive to dest/<cube hash>/. The index is stored as
// DICOMDIR and every file below the slice root keeps its path relative to
// the archive root, so the uploaded tree opens like the source archive. Objects
// already present at their target are not rewritten. The returned location
// is the uploaded index.
func Upload(ctx context.Context, cube *dicomdir.Cube, dest storage.Location) (storage.Location, error) {
	base := dest.Child(cube.Hash().String())
	index := base.Child(dicomdir.IndexName)

	exists, err := index.Exists(ctx)
	if err != nil {
		return index, err
	}
	if !exists {
		if err := index.WriteBytes(ctx, cube.IndexBytes()); err != nil {
			return index, err
		}
	}

	root := cube.Root()
	for file, err := range cube.SliceRoot.Walk(ctx) {
		if err != nil {
			return index, err
		}
		rel, ok := file.Rel(root)
		if !ok {
			return index, fmt.Errorf("slice file %s is outside archive root %s", file, root)
		}
		if err := copyOnce(ctx, file, base.Child(rel)); err != nil {
			return index, err
		}
	}
	return index, nil
}

func copyOnce(ctx context.Context, src, dst storage.Location) error {
	exists, err := dst.Exists(ctx)
	if err != nil || exists {
		return err
	}
	info, err := src.Stat(ctx)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()
	return dst.Write(ctx, rc, info.Size)
}

// VolumeLocation is where DumpVolumes stores the volume of one series.
func VolumeLocation(dest storage.Location, cube *dicomdir.Cube, s *dicomdir.Series) storage.Location {
	return dest.Join(cube.Hash().String(), "volumes", s.Hash().String()+".gob")
}

// DumpVolumes materializes every series of the archive and stores the
// non-empty volumes next to the uploaded archive. It returns how many
// volumes were written; volumes already stored are skipped.
func DumpVolumes(ctx context.Context, cube *dicomdir.Cube, dest storage.Location) (int, error) {
	written := 0
	for _, s := range cube.Series() {
		vol, err := s.Materialize(ctx)
		if err != nil {
			return written, fmt.Errorf("materialize series %s: %w", s.Hash(), err)
		}
		if vol.Empty() {
			continue
		}
		ok, err := storage.DumpGob(ctx, VolumeLocation(dest, cube, s), vol)
		if err != nil {
			return written, err
		}
		if ok {
			written++
		}
	}
	return written, nil
}
