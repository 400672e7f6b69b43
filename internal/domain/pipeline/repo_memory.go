package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
)

type InMemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*SeriesStatus
	now  func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{rows: make(map[string]*SeriesStatus), now: time.Now}
}

func (r *InMemoryRepository) Create(_ context.Context, s *SeriesStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[s.key()]; ok {
		return nil
	}
	cp := *s
	cp.CreatedAt = r.now()
	cp.UpdatedAt = cp.CreatedAt
	r.rows[s.key()] = &cp
	return nil
}

func (r *InMemoryRepository) Get(_ context.Context, fileHash, seriesHash hashid.ID) (*SeriesStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[statusKey(fileHash, seriesHash)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *InMemoryRepository) ListByFile(_ context.Context, fileHash hashid.ID) ([]*SeriesStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*SeriesStatus
	for _, row := range r.rows {
		if row.FileHash == fileHash {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeriesHash < out[j].SeriesHash })
	return out, nil
}

func (r *InMemoryRepository) Transition(_ context.Context, fileHash, seriesHash hashid.ID, next Status) (*SeriesStatus, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[statusKey(fileHash, seriesHash)]
	if !ok {
		return nil, false, ErrNotFound
	}
	applied := CanTransition(row.Status, next)
	if applied {
		row.Status = next
		row.UpdatedAt = r.now()
	}
	cp := *row
	return &cp, applied, nil
}
