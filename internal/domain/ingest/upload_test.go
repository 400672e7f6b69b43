package ingest

import (
	"context"
	"testing"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/dicomdir"
)

func TestUpload_SkipsExistingObjects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cube, err := dicomdir.Open(ctx, f.write(t, twoSeries()))
	if err != nil {
		t.Fatal(err)
	}

	sentinel := f.dest.Join(cube.Hash().String(), "DICOM", "S0001", "I0001")
	if err := sentinel.WriteBytes(ctx, []byte("already here")); err != nil {
		t.Fatal(err)
	}

	index, err := Upload(ctx, cube, f.dest)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if index.Name() != dicomdir.IndexName {
		t.Errorf("index uploaded as %q", index.Name())
	}

	got, err := sentinel.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "already here" {
		t.Error("existing object was overwritten")
	}

	raw, err := index.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != string(cube.IndexBytes()) {
		t.Error("uploaded index differs from the source")
	}
}
