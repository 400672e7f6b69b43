// Package dicomdirtest writes small synthetic DICOMDIR archives for tests.
package dicomdirtest

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/storage"
)

const (
	explicitVRLittleEndian = "1.2.840.10008.1.2.1"
	mediaStorageDirectory  = "1.2.840.10008.1.3.10"
	ctImageStorage         = "1.2.840.10008.5.1.4.1.1.2"
)

type Archive struct {
	// SliceDir is the subdirectory holding slice files. Defaults to "DICOM".
	SliceDir string
	Patients []Patient
}

type Patient struct {
	Name    string
	Studies []Study
}

type Study struct {
	Description string
	Date        string
	Time        string
	Series      []Series
}

type Series struct {
	// Description is omitted from the record when empty.
	Description string
	Number      string
	Slices      []Slice
}

type Slice struct {
	// Unlocated slices carry no SliceLocation.
	Unlocated bool
	Location  float64
	SpacingX  float64
	SpacingY  float64
	Rows      int
	Cols      int
	// Pixels defaults to every pixel set to Fill.
	Pixels []uint16
	Fill   uint16
}

// Located returns n slices of rows x cols at locations start, start+step...
// with 0.5mm in-plane spacing. Slice i is filled with value i+1.
func Located(n, rows, cols int, start, step float64) []Slice {
	out := make([]Slice, n)
	for i := range out {
		out[i] = Slice{
			Location: start + float64(i)*step,
			SpacingX: 0.5,
			SpacingY: 0.5,
			Rows:     rows,
			Cols:     cols,
			Fill:     uint16(i + 1),
		}
	}
	return out
}

// Write stores the archive under dir: the index at dir/DICOMDIR and every
// slice at dir/<SliceDir>/S<series>/I<slice>.
func Write(ctx context.Context, dir storage.Location, a Archive) error {
	sliceDir := a.SliceDir
	if sliceDir == "" {
		sliceDir = "DICOM"
	}

	var records [][]*dicom.Element
	seriesN := 0
	for _, p := range a.Patients {
		records = append(records, record("PATIENT",
			mustElement(tag.PatientName, []string{p.Name}),
		))
		for _, st := range p.Studies {
			records = append(records, record("STUDY",
				mustElement(tag.StudyDescription, []string{st.Description}),
				mustElement(tag.StudyDate, []string{st.Date}),
				mustElement(tag.StudyTime, []string{st.Time}),
			))
			for _, se := range st.Series {
				seriesN++
				seriesDir := fmt.Sprintf("S%04d", seriesN)
				elems := []*dicom.Element{mustElement(tag.SeriesNumber, []string{se.Number})}
				if se.Description != "" {
					elems = append(elems, mustElement(tag.SeriesDescription, []string{se.Description}))
				}
				records = append(records, record("SERIES", elems...))

				for i, sl := range se.Slices {
					name := fmt.Sprintf("I%04d", i+1)
					records = append(records, record("IMAGE",
						mustElement(tag.ReferencedFileID, []string{sliceDir, seriesDir, name}),
					))
					data, err := encode(sliceElements(sl))
					if err != nil {
						return fmt.Errorf("encode slice %s/%s: %w", seriesDir, name, err)
					}
					if err := dir.Join(sliceDir, seriesDir, name).WriteBytes(ctx, data); err != nil {
						return err
					}
				}
			}
		}
	}

	index, err := encode([]*dicom.Element{
		mustElement(tag.MediaStorageSOPClassUID, []string{mediaStorageDirectory}),
		mustElement(tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		mustElement(tag.DirectoryRecordSequence, records),
	})
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	return dir.Child("DICOMDIR").WriteBytes(ctx, index)
}

func record(kind string, elems ...*dicom.Element) []*dicom.Element {
	return sorted(append(elems, mustElement(tag.DirectoryRecordType, []string{kind})))
}

func sliceElements(sl Slice) []*dicom.Element {
	elems := []*dicom.Element{
		mustElement(tag.MediaStorageSOPClassUID, []string{ctImageStorage}),
		mustElement(tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		mustElement(tag.PixelSpacing, []string{ds(sl.SpacingX), ds(sl.SpacingY)}),
	}
	if !sl.Unlocated {
		elems = append(elems, mustElement(tag.SliceLocation, []string{ds(sl.Location)}))
	}
	if sl.Rows == 0 || sl.Cols == 0 {
		return sorted(elems)
	}

	nf := frame.NewNativeFrame[uint16](16, sl.Rows, sl.Cols, sl.Rows*sl.Cols, 1)
	for i := range nf.RawData {
		if i < len(sl.Pixels) {
			nf.RawData[i] = sl.Pixels[i]
		} else {
			nf.RawData[i] = sl.Fill
		}
	}
	elems = append(elems,
		mustElement(tag.Rows, []int{sl.Rows}),
		mustElement(tag.Columns, []int{sl.Cols}),
		mustElement(tag.BitsAllocated, []int{16}),
		mustElement(tag.BitsStored, []int{16}),
		mustElement(tag.HighBit, []int{15}),
		mustElement(tag.PixelRepresentation, []int{0}),
		mustElement(tag.SamplesPerPixel, []int{1}),
		mustElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustElement(tag.PixelData, dicom.PixelDataInfo{
			Frames: []*frame.Frame{{Encapsulated: false, NativeData: nf}},
		}),
	)
	return sorted(elems)
}

func ds(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func sorted(elems []*dicom.Element) []*dicom.Element {
	sort.SliceStable(elems, func(i, j int) bool {
		a, b := elems[i].Tag, elems[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})
	return elems
}

func encode(elems []*dicom.Element) ([]byte, error) {
	var buf bytes.Buffer
	if err := dicom.Write(&buf, dicom.Dataset{Elements: sorted(elems)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mustElement(t tag.Tag, data any) *dicom.Element {
	el, err := dicom.NewElement(t, data)
	if err != nil {
		panic(fmt.Sprintf("dicomdirtest: element %s: %v", t, err))
	}
	return el
}
