package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
)

// CollectionName is the Firestore collection holding series statuses.
// Documents are keyed "<file_hash>_<series_hash>".
const CollectionName = "series_status"

type fsStatus struct {
	FileHash      string    `firestore:"file_hash"`
	SeriesHash    string    `firestore:"series_hash"`
	AppointmentID int64     `firestore:"appointment_id"`
	Status        string    `firestore:"status"`
	CreatedAt     time.Time `firestore:"created_at"`
	UpdatedAt     time.Time `firestore:"updated_at"`
}

func (d fsStatus) model() *SeriesStatus {
	return &SeriesStatus{
		FileHash:      hashid.ID(d.FileHash),
		SeriesHash:    hashid.ID(d.SeriesHash),
		AppointmentID: d.AppointmentID,
		Status:        Status(d.Status),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type repoFirestore struct {
	client *firestore.Client
	now    func() time.Time
}

func NewRepoFirestore(client *firestore.Client) Repository {
	return &repoFirestore{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func (r *repoFirestore) doc(fileHash, seriesHash hashid.ID) *firestore.DocumentRef {
	return r.client.Collection(CollectionName).Doc(statusKey(fileHash, seriesHash))
}

func isCode(err error, code codes.Code) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == code
}

func (r *repoFirestore) Create(ctx context.Context, s *SeriesStatus) error {
	now := r.now()
	_, err := r.doc(s.FileHash, s.SeriesHash).Create(ctx, fsStatus{
		FileHash:      string(s.FileHash),
		SeriesHash:    string(s.SeriesHash),
		AppointmentID: s.AppointmentID,
		Status:        string(s.Status),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil && !isCode(err, codes.AlreadyExists) {
		return fmt.Errorf("create series status (%s): %w", s.key(), err)
	}
	return nil
}

func (r *repoFirestore) Get(ctx context.Context, fileHash, seriesHash hashid.ID) (*SeriesStatus, error) {
	snap, err := r.doc(fileHash, seriesHash).Get(ctx)
	if err != nil {
		if isCode(err, codes.NotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get series status (%s): %w", statusKey(fileHash, seriesHash), err)
	}
	var d fsStatus
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode series status (%s): %w", snap.Ref.ID, err)
	}
	return d.model(), nil
}

func (r *repoFirestore) ListByFile(ctx context.Context, fileHash hashid.ID) ([]*SeriesStatus, error) {
	iter := r.client.Collection(CollectionName).Where("file_hash", "==", string(fileHash)).Documents(ctx)
	defer iter.Stop()

	var items []*SeriesStatus
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list series statuses for file %s: %w", fileHash, err)
		}
		var d fsStatus
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode series status (%s): %w", snap.Ref.ID, err)
		}
		items = append(items, d.model())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SeriesHash < items[j].SeriesHash })
	return items, nil
}

func (r *repoFirestore) Transition(ctx context.Context, fileHash, seriesHash hashid.ID, next Status) (*SeriesStatus, bool, error) {
	ref := r.doc(fileHash, seriesHash)
	var (
		out     *SeriesStatus
		applied bool
	)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		applied = false
		snap, err := tx.Get(ref)
		if err != nil {
			if isCode(err, codes.NotFound) {
				return ErrNotFound
			}
			return err
		}
		var d fsStatus
		if err := snap.DataTo(&d); err != nil {
			return fmt.Errorf("decode series status (%s): %w", ref.ID, err)
		}
		if !CanTransition(Status(d.Status), next) {
			out = d.model()
			return nil
		}
		d.Status = string(next)
		d.UpdatedAt = r.now()
		if err := tx.Set(ref, d); err != nil {
			return err
		}
		out = d.model()
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("transition series status (%s): %w", ref.ID, err)
	}
	return out, applied, nil
}
