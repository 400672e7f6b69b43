package appointment

import (
	"context"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
)

type Repository interface {
	// Ensure creates the appointment record when it does not exist yet.
	Ensure(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) (bool, error)
	// UpsertFile sets the file hash of an appointment. When the hash differs
	// from the stored one the appointment is no longer ready.
	UpsertFile(ctx context.Context, id int64, fileHash hashid.ID) (*File, error)
	GetFile(ctx context.Context, id int64) (*File, error)
	ListByFileHash(ctx context.Context, fileHash hashid.ID) ([]*File, error)
	// MarkReady flips the readiness flag of every appointment holding
	// fileHash that is not ready yet and returns the ids it flipped.
	MarkReady(ctx context.Context, fileHash hashid.ID) ([]int64, error)
	IsReady(ctx context.Context, id int64) (bool, error)
}
