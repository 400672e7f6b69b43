package dicomdir

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Spacing is the in-plane pixel spacing of a slice and its location along
// the scan axis.
type Spacing struct {
	X float64
	Y float64
	Z float64
}

// Frame is a single 2D image in row-major order.
type Frame struct {
	Rows   int
	Cols   int
	Pixels []int32
}

type SliceData struct {
	Frame   Frame
	Spacing Spacing
}

func (s *Slice) parse(ctx context.Context, opts ...dicom.ParseOption) (dicom.Dataset, error) {
	raw, err := s.File.ReadAll(ctx)
	if err != nil {
		return dicom.Dataset{}, err
	}
	ds, err := dicom.Parse(bytes.NewReader(raw), int64(len(raw)), nil, opts...)
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("parse slice %s: %w", s.File, err)
	}
	return ds, nil
}

// Header reads the slice spacing without decoding pixel data. ok is false
// when the slice has no SliceLocation.
func (s *Slice) Header(ctx context.Context) (sp Spacing, ok bool, err error) {
	ds, err := s.parse(ctx, dicom.SkipPixelData())
	if err != nil {
		return sp, false, err
	}
	return spacingOf(ds, s)
}

// HasLocation reports whether the slice header carries a SliceLocation.
func (s *Slice) HasLocation(ctx context.Context) (bool, error) {
	_, ok, err := s.Header(ctx)
	return ok, err
}

// Load reads the slice pixels and spacing. ok is false when the slice has
// no SliceLocation; such slices are not part of any volume.
func (s *Slice) Load(ctx context.Context) (SliceData, bool, error) {
	ds, err := s.parse(ctx)
	if err != nil {
		return SliceData{}, false, err
	}
	sp, ok, err := spacingOf(ds, s)
	if err != nil || !ok {
		return SliceData{}, false, err
	}
	fr, err := firstFrame(ds)
	if err != nil {
		return SliceData{}, false, fmt.Errorf("slice %s: %w", s.File, err)
	}
	return SliceData{Frame: fr, Spacing: sp}, true, nil
}

func spacingOf(ds dicom.Dataset, s *Slice) (Spacing, bool, error) {
	locEl, err := ds.FindElementByTag(tag.SliceLocation)
	if err != nil {
		return Spacing{}, false, nil
	}
	loc, err := floatsOf(locEl)
	if err != nil || len(loc) == 0 {
		return Spacing{}, false, fmt.Errorf("slice %s: slice location: %v", s.File, err)
	}

	psEl, err := ds.FindElementByTag(tag.PixelSpacing)
	if err != nil {
		return Spacing{}, false, fmt.Errorf("slice %s: missing pixel spacing", s.File)
	}
	ps, err := floatsOf(psEl)
	if err != nil || len(ps) < 2 {
		return Spacing{}, false, fmt.Errorf("slice %s: pixel spacing %v: %v", s.File, ps, err)
	}
	return Spacing{X: ps[0], Y: ps[1], Z: loc[0]}, true, nil
}

func firstFrame(ds dicom.Dataset) (Frame, error) {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return Frame{}, ErrNoPixelData
	}
	info, ok := el.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return Frame{}, ErrNoPixelData
	}
	f := info.Frames[0]
	if f.Encapsulated {
		img, err := f.GetImage()
		if err != nil {
			return Frame{}, fmt.Errorf("decode encapsulated frame: %w", err)
		}
		return grayFrame(img), nil
	}
	return nativeFrame(f.NativeData)
}

// nativeFrame keeps the first sample of each pixel.
func nativeFrame(nf frame.INativeFrame) (Frame, error) {
	if nf == nil {
		return Frame{}, ErrNoPixelData
	}
	rows, cols := nf.Rows(), nf.Cols()
	out := Frame{Rows: rows, Cols: cols, Pixels: make([]int32, rows*cols)}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			px, err := nf.GetPixel(x, y)
			if err != nil {
				return Frame{}, fmt.Errorf("pixel (%d,%d): %w", x, y, err)
			}
			if len(px) > 0 {
				out.Pixels[y*cols+x] = int32(px[0])
			}
		}
	}
	return out, nil
}

func grayFrame(img image.Image) Frame {
	b := img.Bounds()
	out := Frame{Rows: b.Dy(), Cols: b.Dx(), Pixels: make([]int32, b.Dx()*b.Dy())}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			out.Pixels[(y-b.Min.Y)*out.Cols+(x-b.Min.X)] = int32(g.Y)
		}
	}
	return out
}
