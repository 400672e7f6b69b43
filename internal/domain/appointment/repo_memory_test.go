package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
)

func TestInMemory_UpsertFile(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository(7)

	f, err := repo.UpsertFile(ctx, 7, hashid.FromString("a"))
	if err != nil {
		t.Fatalf("UpsertFile: %v", err)
	}
	if f.AppointmentID != 7 || f.FileHash != hashid.FromString("a") {
		t.Errorf("unexpected file %+v", f)
	}

	if _, err := repo.UpsertFile(ctx, 8, hashid.FromString("a")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown appointment, got %v", err)
	}

	f2, _ := repo.UpsertFile(ctx, 7, hashid.FromString("b"))
	if !f2.CreatedAt.Equal(f.CreatedAt) {
		t.Error("upsert should keep created_at")
	}
	got, err := repo.GetFile(ctx, 7)
	if err != nil || got.FileHash != hashid.FromString("b") {
		t.Errorf("expected updated hash, got %+v, %v", got, err)
	}
}

func TestInMemory_MarkReadyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository(1, 2, 3)
	h := hashid.FromString("file")
	repo.UpsertFile(ctx, 1, h)
	repo.UpsertFile(ctx, 2, h)
	repo.UpsertFile(ctx, 3, hashid.FromString("other"))

	flipped, err := repo.MarkReady(ctx, h)
	if err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	if len(flipped) != 2 || flipped[0] != 1 || flipped[1] != 2 {
		t.Errorf("expected [1 2] flipped, got %v", flipped)
	}

	again, _ := repo.MarkReady(ctx, h)
	if len(again) != 0 {
		t.Errorf("second MarkReady should flip nothing, got %v", again)
	}
	if ready, _ := repo.IsReady(ctx, 3); ready {
		t.Error("appointment 3 holds another file and must stay unready")
	}
}

func TestInMemory_HashChangeResetsReady(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository(1)
	repo.UpsertFile(ctx, 1, hashid.FromString("a"))
	repo.MarkReady(ctx, hashid.FromString("a"))

	repo.UpsertFile(ctx, 1, hashid.FromString("a"))
	if ready, _ := repo.IsReady(ctx, 1); !ready {
		t.Error("same hash must not reset readiness")
	}

	repo.UpsertFile(ctx, 1, hashid.FromString("b"))
	if ready, _ := repo.IsReady(ctx, 1); ready {
		t.Error("new hash must reset readiness")
	}
}

func TestInMemory_EnsureAndExists(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	if ok, _ := repo.Exists(ctx, 5); ok {
		t.Fatal("appointment 5 should not exist yet")
	}
	repo.Ensure(ctx, 5)
	if ok, _ := repo.Exists(ctx, 5); !ok {
		t.Fatal("appointment 5 should exist after Ensure")
	}
	if _, err := repo.GetFile(ctx, 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.IsReady(ctx, 6); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemory_ListByFileHash(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository(3, 1, 2)
	h := hashid.FromString("x")
	repo.UpsertFile(ctx, 3, h)
	repo.UpsertFile(ctx, 1, h)
	repo.UpsertFile(ctx, 2, hashid.FromString("y"))

	files, _ := repo.ListByFileHash(ctx, h)
	if len(files) != 2 || files[0].AppointmentID != 1 || files[1].AppointmentID != 3 {
		t.Errorf("unexpected files %+v", files)
	}
}
