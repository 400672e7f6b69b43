// Package dicomdir reads DICOMDIR archives into a patient, study, series
// and slice hierarchy and turns their series into pixel volumes.
package dicomdir

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/storage"
)

// IndexName is the file name of an archive index.
const IndexName = "DICOMDIR"

const noDescription = "No description"

var (
	ErrMalformedArchive = errors.New("malformed archive")
	ErrAmbiguousSpacing = errors.New("ambiguous spacing")
	ErrFrameShape       = errors.New("frame shape mismatch")
	ErrNoPixelData      = errors.New("no pixel data")
)

// Cube is a parsed archive: its index, the directory holding the slice
// files, and the patient tree declared by the index.
type Cube struct {
	Index     storage.Location
	SliceRoot storage.Location
	Patients  []*Patient

	raw  []byte
	hash hashid.ID
}

type Patient struct {
	Name    string
	Studies []*Study
}

func (p *Patient) String() string { return p.Name }
func (p *Patient) Hash() hashid.ID { return hashid.Of(p) }

type Study struct {
	Description string
	Date        string
	Time        string
	Series      []*Series
}

func (s *Study) String() string { return s.Description + "_" + s.Date + "_" + s.Time }
func (s *Study) Hash() hashid.ID { return hashid.Of(s) }

type Series struct {
	// Description is "No description" when the record has none.
	Description string
	Number      string
	Slices      []*Slice

	fullName string
}

func (s *Series) String() string { return s.Description + "_" + s.Number }

// FullName is the patient, study and series descriptors joined by "_".
// It is fixed when the index is parsed.
func (s *Series) FullName() string { return s.fullName }

// Hash identifies the series across the system; it is the hash of FullName.
func (s *Series) Hash() hashid.ID { return hashid.FromString(s.FullName()) }

// Slice is one image record. Its pixel file is read on demand.
type Slice struct {
	File storage.Location
}

// Root is the directory holding the index.
func (c *Cube) Root() storage.Location { return c.Index.Parent() }

// Hash is derived from the parsed index content.
func (c *Cube) Hash() hashid.ID { return c.hash }

// IndexBytes returns the raw index file.
func (c *Cube) IndexBytes() []byte { return c.raw }

func (c *Cube) String() string { return c.Index.String() }

// Series flattens the tree in declaration order.
func (c *Cube) Series() []*Series {
	var out []*Series
	for _, p := range c.Patients {
		for _, st := range p.Studies {
			out = append(out, st.Series...)
		}
	}
	return out
}

// NameMapping maps the legacy human-readable series name to the series hash.
func (c *Cube) NameMapping() map[string]hashid.ID {
	out := make(map[string]hashid.ID)
	for _, p := range c.Patients {
		for _, st := range p.Studies {
			for _, s := range st.Series {
				old := strings.TrimLeft(st.Description+" "+s.Description, " ")
				out[old] = s.Hash()
			}
		}
	}
	return out
}

// HashMapping maps the hash of the legacy colon-joined series name to the
// series hash.
func (c *Cube) HashMapping() map[hashid.ID]hashid.ID {
	out := make(map[hashid.ID]hashid.ID)
	for _, p := range c.Patients {
		for _, st := range p.Studies {
			for _, s := range st.Series {
				old := p.Name + ":" + st.Description + ":" + s.Description
				out[hashid.FromString(old)] = s.Hash()
			}
		}
	}
	return out
}

// Open parses the archive at loc. loc is either the index file or the
// directory containing it.
func Open(ctx context.Context, loc storage.Location) (*Cube, error) {
	index, dir, err := resolveIndex(ctx, loc)
	if err != nil {
		return nil, err
	}

	sliceRoot, err := shortestSubdir(ctx, dir)
	if err != nil {
		return nil, err
	}

	raw, err := index.ReadAll(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: no index at %s", ErrMalformedArchive, index)
	}
	if err != nil {
		return nil, err
	}

	ds, err := dicom.Parse(bytes.NewReader(raw), int64(len(raw)), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrMalformedArchive, index, err)
	}

	cube := &Cube{
		Index:     index,
		SliceRoot: sliceRoot,
		raw:       raw,
		hash:      hashid.FromString(canonical(ds.Elements)),
	}
	if err := cube.build(ds); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedArchive, index, err)
	}
	return cube, nil
}

func resolveIndex(ctx context.Context, loc storage.Location) (index, dir storage.Location, err error) {
	if !loc.IsDir() {
		info, err := loc.Stat(ctx)
		switch {
		case err == nil && !info.IsDir:
			return loc, loc.Parent(), nil
		case err == nil, errors.Is(err, storage.ErrNotFound):
			loc = loc.AsDir()
		default:
			return index, dir, fmt.Errorf("stat %s: %w", loc, err)
		}
	}

	for child, err := range loc.Children(ctx) {
		if err != nil {
			return index, dir, err
		}
		if !child.IsDir() && strings.Contains(child.Name(), IndexName) {
			return child, loc, nil
		}
	}
	return index, dir, fmt.Errorf("%w: no %s in %s", ErrMalformedArchive, IndexName, loc)
}

// shortestSubdir picks the subdirectory of dir with the shortest name.
// Ties go to the first one listed.
func shortestSubdir(ctx context.Context, dir storage.Location) (storage.Location, error) {
	var best storage.Location
	found := false
	for child, err := range dir.Children(ctx) {
		if err != nil {
			return best, err
		}
		if !child.IsDir() || child.Equal(dir.AsDir()) {
			continue
		}
		if !found || len(child.Name()) < len(best.Name()) {
			best, found = child, true
		}
	}
	if !found {
		return best, fmt.Errorf("%w: no slice directory in %s", ErrMalformedArchive, dir)
	}
	return best, nil
}

// build nests the flat directory record sequence by record type, in the
// order the records appear.
func (c *Cube) build(ds dicom.Dataset) error {
	seq, err := ds.FindElementByTag(tag.DirectoryRecordSequence)
	if err != nil {
		return fmt.Errorf("directory record sequence: %w", err)
	}

	var (
		patient *Patient
		study   *Study
		series  *Series
	)
	for i, rec := range sequenceItems(seq) {
		kind, _ := firstString(rec, tag.DirectoryRecordType)
		switch strings.ToUpper(kind) {
		case "PATIENT":
			name, _ := firstString(rec, tag.PatientName)
			patient = &Patient{Name: name}
			study, series = nil, nil
			c.Patients = append(c.Patients, patient)
		case "STUDY":
			if patient == nil {
				return fmt.Errorf("record %d: study outside a patient", i)
			}
			study = &Study{}
			study.Description, _ = firstString(rec, tag.StudyDescription)
			study.Date, _ = firstString(rec, tag.StudyDate)
			study.Time, _ = firstString(rec, tag.StudyTime)
			series = nil
			patient.Studies = append(patient.Studies, study)
		case "SERIES":
			if study == nil {
				return fmt.Errorf("record %d: series outside a study", i)
			}
			series = &Series{Description: noDescription}
			if desc, ok := firstString(rec, tag.SeriesDescription); ok {
				series.Description = desc
			}
			series.Number, _ = firstString(rec, tag.SeriesNumber)
			series.fullName = patient.String() + "_" + study.String() + "_" + series.String()
			study.Series = append(study.Series, series)
		default:
			ref := stringsOf(findIn(rec, tag.ReferencedFileID))
			if series == nil || len(ref) == 0 {
				continue
			}
			series.Slices = append(series.Slices, &Slice{File: c.SliceRoot.Join(ref[1:]...)})
		}
	}
	return nil
}
