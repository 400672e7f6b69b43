package pipeline

import (
	"context"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
)

type Repository interface {
	// Create stores s unless a row for the same file and series exists,
	// in which case the existing row is kept.
	Create(ctx context.Context, s *SeriesStatus) error
	Get(ctx context.Context, fileHash, seriesHash hashid.ID) (*SeriesStatus, error)
	// ListByFile returns every series status of a file ordered by series hash.
	ListByFile(ctx context.Context, fileHash hashid.ID) ([]*SeriesStatus, error)
	// Transition moves the row to next under a row lock when CanTransition
	// allows it. The returned record is the persisted one; applied is false
	// for stale reports.
	Transition(ctx context.Context, fileHash, seriesHash hashid.ID, next Status) (rec *SeriesStatus, applied bool, err error)
}
