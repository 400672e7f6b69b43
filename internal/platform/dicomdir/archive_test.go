package dicomdir

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/dicomdir/dicomdirtest"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/storage"
)

func memRoot() storage.Location {
	return storage.Root(storage.NewLocalBackend(afero.NewMemMapFs()))
}

func chestArchive() dicomdirtest.Archive {
	return dicomdirtest.Archive{
		Patients: []dicomdirtest.Patient{{
			Name: "DOE^JOHN",
			Studies: []dicomdirtest.Study{{
				Description: "CT CHEST",
				Date:        "20240101",
				Time:        "101500",
				Series: []dicomdirtest.Series{
					{Description: "AORTA", Number: "1", Slices: dicomdirtest.Located(3, 2, 2, 10, 2.5)},
					{Number: "2", Slices: []dicomdirtest.Slice{{Unlocated: true}, {Unlocated: true}}},
				},
			}},
		}},
	}
}

func writeArchive(t *testing.T, dir storage.Location, a dicomdirtest.Archive) {
	t.Helper()
	if err := dicomdirtest.Write(context.Background(), dir, a); err != nil {
		t.Fatalf("write archive: %v", err)
	}
}

func TestOpen_BuildsHierarchy(t *testing.T) {
	ctx := context.Background()
	dir := memRoot().Child("archive/")
	writeArchive(t, dir, chestArchive())

	cube, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if len(cube.Patients) != 1 || cube.Patients[0].Name != "DOE^JOHN" {
		t.Fatalf("unexpected patients: %+v", cube.Patients)
	}
	study := cube.Patients[0].Studies[0]
	if study.String() != "CT CHEST_20240101_101500" {
		t.Errorf("study descriptor = %q", study.String())
	}
	if len(study.Series) != 2 {
		t.Fatalf("expected 2 series, got %d", len(study.Series))
	}

	aorta, unnamed := study.Series[0], study.Series[1]
	if aorta.String() != "AORTA_1" {
		t.Errorf("series descriptor = %q", aorta.String())
	}
	if unnamed.Description != "No description" {
		t.Errorf("missing description should default, got %q", unnamed.Description)
	}
	if len(aorta.Slices) != 3 || len(unnamed.Slices) != 2 {
		t.Errorf("slice counts = %d, %d", len(aorta.Slices), len(unnamed.Slices))
	}
	if got := aorta.Slices[0].File.String(); got != "/archive/DICOM/S0001/I0001" {
		t.Errorf("slice file = %s", got)
	}
	if cube.SliceRoot.Name() != "DICOM" {
		t.Errorf("slice root = %s", cube.SliceRoot)
	}

	want := "DOE^JOHN_CT CHEST_20240101_101500_AORTA_1"
	if aorta.FullName() != want {
		t.Errorf("FullName = %q", aorta.FullName())
	}
	if aorta.Hash() != hashid.FromString(want) {
		t.Error("series hash should be the hash of its full name")
	}
}

func TestOpen_SeriesNamesCarryTheirAncestors(t *testing.T) {
	ctx := context.Background()
	a := chestArchive()
	twin := a.Patients[0]
	twin.Name = "ROE^JANE"
	a.Patients = append(a.Patients, twin)
	dir := memRoot().Child("archive/")
	writeArchive(t, dir, a)

	cube, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	series := cube.Series()
	if len(series) != 4 {
		t.Fatalf("expected 4 series, got %d", len(series))
	}
	john, jane := series[0], series[2]
	if jane.FullName() != "ROE^JANE_CT CHEST_20240101_101500_AORTA_1" {
		t.Errorf("FullName = %q", jane.FullName())
	}
	if john.Hash() == jane.Hash() {
		t.Error("identical series of different patients must hash differently")
	}

	// Names are fixed at parse time; editing the tree afterwards does not move hashes.
	before := jane.Hash()
	cube.Patients[1].Name = "SOMEONE^ELSE"
	if jane.Hash() != before {
		t.Error("series hash changed after the patient record was edited")
	}
}

func TestOpen_IndexFileOrDirectory(t *testing.T) {
	ctx := context.Background()
	dir := memRoot().Child("archive/")
	writeArchive(t, dir, chestArchive())

	fromDir, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open(dir): %v", err)
	}
	fromIndex, err := Open(ctx, dir.Child("DICOMDIR"))
	if err != nil {
		t.Fatalf("Open(index): %v", err)
	}
	if fromDir.Hash() != fromIndex.Hash() {
		t.Error("hash should not depend on how the archive is addressed")
	}
	if !fromDir.Index.Equal(fromIndex.Index) {
		t.Errorf("index %s != %s", fromDir.Index, fromIndex.Index)
	}
}

func TestOpen_HashFollowsContent(t *testing.T) {
	ctx := context.Background()
	root := memRoot()
	writeArchive(t, root.Child("a/"), chestArchive())
	writeArchive(t, root.Child("b/"), chestArchive())

	other := chestArchive()
	other.Patients[0].Name = "DOE^JANE"
	writeArchive(t, root.Child("c/"), other)

	a, err := Open(ctx, root.Child("a/"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Open(ctx, root.Child("b/"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := Open(ctx, root.Child("c/"))
	if err != nil {
		t.Fatal(err)
	}

	if a.Hash() != b.Hash() {
		t.Error("identical archives should hash equally")
	}
	if a.Hash() == c.Hash() {
		t.Error("different archives should hash differently")
	}
	if !hashid.Valid(string(a.Hash())) {
		t.Errorf("invalid hash %q", a.Hash())
	}
}

func TestOpen_MalformedIndex(t *testing.T) {
	ctx := context.Background()
	dir := memRoot().Child("archive/")
	if err := dir.Child("DICOMDIR").WriteBytes(ctx, []byte("not a dicom file")); err != nil {
		t.Fatal(err)
	}
	if err := dir.Join("DICOM", "I1").WriteBytes(ctx, []byte("x")); err != nil {
		t.Fatal(err)
	}

	_, err := Open(ctx, dir)
	if !errors.Is(err, ErrMalformedArchive) {
		t.Fatalf("expected ErrMalformedArchive, got %v", err)
	}
}

func TestOpen_MissingIndex(t *testing.T) {
	ctx := context.Background()
	dir := memRoot().Child("archive/")
	if err := dir.Join("DICOM", "I1").WriteBytes(ctx, []byte("x")); err != nil {
		t.Fatal(err)
	}

	_, err := Open(ctx, dir)
	if !errors.Is(err, ErrMalformedArchive) {
		t.Fatalf("expected ErrMalformedArchive, got %v", err)
	}
}

func TestOpen_PicksShortestSubdirectory(t *testing.T) {
	ctx := context.Background()
	dir := memRoot().Child("archive/")
	a := chestArchive()
	a.SliceDir = "IMG"
	writeArchive(t, dir, a)
	if err := dir.Join("REPORTS", "summary.txt").WriteBytes(ctx, []byte("x")); err != nil {
		t.Fatal(err)
	}

	cube, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if cube.SliceRoot.Name() != "IMG" {
		t.Errorf("slice root = %s, want IMG", cube.SliceRoot)
	}
}

func TestCube_Mappings(t *testing.T) {
	ctx := context.Background()
	dir := memRoot().Child("archive/")
	writeArchive(t, dir, chestArchive())
	cube, err := Open(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	aorta := cube.Series()[0]

	names := cube.NameMapping()
	if names["CT CHEST AORTA"] != aorta.Hash() {
		t.Errorf("name mapping = %v", names)
	}

	hashes := cube.HashMapping()
	if hashes[hashid.FromString("DOE^JOHN:CT CHEST:AORTA")] != aorta.Hash() {
		t.Errorf("hash mapping = %v", hashes)
	}
	if len(names) != 2 || len(hashes) != 2 {
		t.Errorf("expected one entry per series, got %d and %d", len(names), len(hashes))
	}
}

func TestFind_SkipsBrokenArchives(t *testing.T) {
	ctx := context.Background()
	root := memRoot().Child("bucket/")
	writeArchive(t, root.Child("a/"), chestArchive())
	writeArchive(t, root.Child("b/"), chestArchive())
	if err := root.Join("c", "DICOMDIR").WriteBytes(ctx, []byte("garbage")); err != nil {
		t.Fatal(err)
	}
	if err := root.Join("c", "DICOM", "I1").WriteBytes(ctx, []byte("x")); err != nil {
		t.Fatal(err)
	}

	cubes, err := Find(ctx, root, testLogger())
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(cubes) != 2 {
		t.Fatalf("expected 2 archives, got %d", len(cubes))
	}
}

func TestLocate_PrefersShallowestIndex(t *testing.T) {
	ctx := context.Background()
	root := memRoot().Child("upload/")
	writeArchive(t, root.Join("export", "nested/"), chestArchive())
	writeArchive(t, root.Child("export/"), chestArchive())

	index, err := Locate(ctx, root)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if index.String() != "/upload/export/DICOMDIR" {
		t.Errorf("expected shallowest index, got %s", index)
	}

	if _, err := Locate(ctx, memRoot().Child("empty/")); !errors.Is(err, ErrMalformedArchive) {
		t.Errorf("expected ErrMalformedArchive, got %v", err)
	}
}
