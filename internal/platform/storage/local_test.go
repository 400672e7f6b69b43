package storage

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/spf13/afero"
)

func newMemRoot(t *testing.T) Location {
	t.Helper()
	return Root(NewLocalBackend(afero.NewMemMapFs()))
}

func TestLocalBackend_WriteReadExists(t *testing.T) {
	ctx := context.Background()
	loc := newMemRoot(t).Join("processed", "abc", "DICOMDIR")

	exists, err := loc.Exists(ctx)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("expected missing object")
	}

	if err := loc.WriteBytes(ctx, []byte("index")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}

	exists, err = loc.Exists(ctx)
	if err != nil || !exists {
		t.Fatalf("Exists after write = %v, %v", exists, err)
	}

	got, err := loc.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "index" {
		t.Errorf("ReadAll = %q", got)
	}
}

func TestLocalBackend_OpenMissing(t *testing.T) {
	_, err := newMemRoot(t).Join("processed", "nope").Open(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalBackend_Children(t *testing.T) {
	ctx := context.Background()
	root := newMemRoot(t)
	bucket := root.Child("archive")
	for _, p := range []string{"DICOMDIR", "DICOM/S1/I1", "DICOM/S1/I2", "X/readme"} {
		if err := bucket.Child(p).WriteBytes(ctx, []byte(p)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	children, err := bucket.ListChildren(ctx)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	var keys []string
	for _, c := range children {
		keys = append(keys, c.String())
	}
	sort.Strings(keys)
	want := []string{"/archive/DICOM/", "/archive/DICOMDIR", "/archive/X/"}
	if len(keys) != len(want) {
		t.Fatalf("children = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("children[%d] = %s, want %s", i, keys[i], want[i])
		}
	}

	missing, err := bucket.Child("absent").ListChildren(ctx)
	if err != nil || len(missing) != 0 {
		t.Errorf("listing a missing directory = %v, %v", missing, err)
	}
}

func TestLocalBackend_Walk(t *testing.T) {
	ctx := context.Background()
	bucket := newMemRoot(t).Child("archive")
	for _, p := range []string{"DICOM/S1/I1", "DICOM/S1/I2", "DICOM/S2/I1"} {
		if err := bucket.Child(p).WriteBytes(ctx, []byte(p)); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	var files []string
	for loc, err := range bucket.Child("DICOM").Walk(ctx) {
		if err != nil {
			t.Fatalf("Walk: %v", err)
		}
		files = append(files, loc.String())
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %v", files)
	}
	for _, f := range files {
		if At(nil, f).IsDir() {
			t.Errorf("Walk yielded directory %s", f)
		}
	}

	count := 0
	for range bucket.Walk(ctx) {
		count++
		break
	}
	if count != 1 {
		t.Errorf("early break yielded %d items", count)
	}
}

func TestDumpGob_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	loc := newMemRoot(t).Join("processed", "v.gob")

	wrote, err := DumpGob(ctx, loc, []int32{1, 2, 3})
	if err != nil || !wrote {
		t.Fatalf("first dump = %v, %v", wrote, err)
	}
	wrote, err = DumpGob(ctx, loc, []int32{9})
	if err != nil {
		t.Fatalf("second dump: %v", err)
	}
	if wrote {
		t.Error("second dump should be skipped")
	}

	var got []int32
	if err := LoadGob(ctx, loc, &got); err != nil {
		t.Fatalf("LoadGob: %v", err)
	}
	if len(got) != 3 || got[2] != 3 {
		t.Errorf("LoadGob = %v", got)
	}
}
