package dicomdir

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
)

// SpacingOf derives a single voxel spacing from per-slice samples, where
// each sample's Z is the slice location. X and Y must agree across all
// samples and the gaps between consecutive locations, rounded to three
// decimals, must all be equal.
func SpacingOf(samples []Spacing) (Spacing, error) {
	if len(samples) < 2 {
		return Spacing{}, fmt.Errorf("%w: %d located slices", ErrAmbiguousSpacing, len(samples))
	}
	sorted := make([]Spacing, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Z < sorted[j].Z })

	xs := map[float64]struct{}{}
	ys := map[float64]struct{}{}
	zs := map[float64]struct{}{}
	for i, s := range sorted {
		xs[s.X] = struct{}{}
		ys[s.Y] = struct{}{}
		if i > 0 {
			zs[round3(s.Z-sorted[i-1].Z)] = struct{}{}
		}
	}
	if len(xs) != 1 || len(ys) != 1 || len(zs) != 1 {
		return Spacing{}, fmt.Errorf("%w: %d x, %d y, %d z values", ErrAmbiguousSpacing, len(xs), len(ys), len(zs))
	}

	out := Spacing{X: sorted[0].X, Y: sorted[0].Y}
	for z := range zs {
		out.Z = z
	}
	return out, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Spacing reads the headers of every slice and derives the series spacing.
func (s *Series) Spacing(ctx context.Context) (Spacing, error) {
	var samples []Spacing
	for _, sl := range s.Slices {
		sp, ok, err := sl.Header(ctx)
		if err != nil {
			return Spacing{}, err
		}
		if ok {
			samples = append(samples, sp)
		}
	}
	sp, err := SpacingOf(samples)
	if err != nil {
		return Spacing{}, fmt.Errorf("series %s: %w", s.Hash(), err)
	}
	return sp, nil
}

type SpacingResult struct {
	Spacing Spacing
	Err     error
}

// ComputeAllSpacing derives the spacing of every series of the cube. A
// failing series does not prevent the others from being computed.
func ComputeAllSpacing(ctx context.Context, c *Cube) map[hashid.ID]SpacingResult {
	out := make(map[hashid.ID]SpacingResult)
	for _, s := range c.Series() {
		sp, err := s.Spacing(ctx)
		out[s.Hash()] = SpacingResult{Spacing: sp, Err: err}
	}
	return out
}
