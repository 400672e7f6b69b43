package dicomdir

import (
	"context"
	"fmt"
	"sort"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
)

// Volume is a series stacked along the scan axis, ordered by ascending
// slice location. Data is indexed [z][y][x] in row-major order.
type Volume struct {
	Name      hashid.ID
	Depth     int
	Rows      int
	Cols      int
	Locations []float64
	Data      []int32
}

func (v *Volume) Empty() bool { return v.Depth == 0 }

func (v *Volume) At(z, y, x int) int32 {
	return v.Data[(z*v.Rows+y)*v.Cols+x]
}

// Materialize loads every slice of s that has a location and stacks them by
// ascending location. A series without located slices yields an empty
// volume.
func (s *Series) Materialize(ctx context.Context) (*Volume, error) {
	var loaded []SliceData
	for _, sl := range s.Slices {
		data, ok, err := sl.Load(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			loaded = append(loaded, data)
		}
	}
	return stack(s.Hash(), loaded)
}

func stack(name hashid.ID, slices []SliceData) (*Volume, error) {
	sort.SliceStable(slices, func(i, j int) bool {
		return slices[i].Spacing.Z < slices[j].Spacing.Z
	})

	v := &Volume{Name: name}
	if len(slices) == 0 {
		return v, nil
	}
	v.Depth = len(slices)
	v.Rows, v.Cols = slices[0].Frame.Rows, slices[0].Frame.Cols
	v.Data = make([]int32, 0, v.Depth*v.Rows*v.Cols)
	v.Locations = make([]float64, 0, v.Depth)
	for i, sl := range slices {
		if sl.Frame.Rows != v.Rows || sl.Frame.Cols != v.Cols {
			return nil, fmt.Errorf("%w: slice %d is %dx%d, expected %dx%d",
				ErrFrameShape, i, sl.Frame.Rows, sl.Frame.Cols, v.Rows, v.Cols)
		}
		v.Data = append(v.Data, sl.Frame.Pixels...)
		v.Locations = append(v.Locations, sl.Spacing.Z)
	}
	return v, nil
}

// ValidSeries returns the series with at least one located slice. Only
// slice headers are read.
func (c *Cube) ValidSeries(ctx context.Context) ([]*Series, error) {
	var out []*Series
	for _, s := range c.Series() {
		for _, sl := range s.Slices {
			ok, err := sl.HasLocation(ctx)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}
