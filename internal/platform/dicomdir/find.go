package dicomdir

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/storage"
)

// Find opens every archive index found below root. Archives that fail to
// open are logged and skipped.
func Find(ctx context.Context, root storage.Location, logger zerolog.Logger) ([]*Cube, error) {
	var cubes []*Cube
	for loc, err := range root.Walk(ctx) {
		if err != nil {
			return cubes, err
		}
		if loc.Name() != IndexName {
			continue
		}
		cube, err := Open(ctx, loc)
		if err != nil {
			logger.Warn().Err(err).Str("index", loc.String()).Msg("skipping archive")
			continue
		}
		cubes = append(cubes, cube)
	}
	return cubes, nil
}

// Locate returns the shallowest file below root whose name contains
// IndexName.
func Locate(ctx context.Context, root storage.Location) (storage.Location, error) {
	var (
		best  storage.Location
		depth int
		found bool
	)
	for loc, err := range root.Walk(ctx) {
		if err != nil {
			return best, err
		}
		if !strings.Contains(loc.Name(), IndexName) {
			continue
		}
		d := strings.Count(loc.Key(), "/")
		if !found || d < depth {
			best, depth, found = loc, d, true
		}
	}
	if !found {
		return best, fmt.Errorf("%w: no %s below %s", ErrMalformedArchive, IndexName, root)
	}
	return best, nil
}
