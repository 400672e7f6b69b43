package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
)

// InMemoryRepository keeps appointments in process memory. It backs the
// CLI and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	ready map[int64]bool
	files map[int64]*File
	now   func() time.Time
}

func NewInMemoryRepository(ids ...int64) *InMemoryRepository {
	r := &InMemoryRepository{
		ready: make(map[int64]bool),
		files: make(map[int64]*File),
		now:   time.Now,
	}
	for _, id := range ids {
		r.ready[id] = false
	}
	return r
}

func (r *InMemoryRepository) Ensure(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ready[id]; !ok {
		r.ready[id] = false
	}
	return nil
}

func (r *InMemoryRepository) Exists(_ context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ready[id]
	return ok, nil
}

func (r *InMemoryRepository) UpsertFile(_ context.Context, id int64, fileHash hashid.ID) (*File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ready[id]; !ok {
		return nil, ErrNotFound
	}

	now := r.now()
	f, ok := r.files[id]
	if !ok {
		f = &File{AppointmentID: id, CreatedAt: now}
		r.files[id] = f
	}
	if f.FileHash != fileHash {
		r.ready[id] = false
	}
	f.FileHash = fileHash
	f.UpdatedAt = now

	cp := *f
	return &cp, nil
}

func (r *InMemoryRepository) GetFile(_ context.Context, id int64) (*File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *InMemoryRepository) ListByFileHash(_ context.Context, fileHash hashid.ID) ([]*File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*File
	for _, f := range r.files {
		if f.FileHash == fileHash {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppointmentID < out[j].AppointmentID })
	return out, nil
}

func (r *InMemoryRepository) MarkReady(_ context.Context, fileHash hashid.ID) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var flipped []int64
	for id, f := range r.files {
		if f.FileHash == fileHash && !r.ready[id] {
			r.ready[id] = true
			flipped = append(flipped, id)
		}
	}
	sort.Slice(flipped, func(i, j int) bool { return flipped[i] < flipped[j] })
	return flipped, nil
}

func (r *InMemoryRepository) IsReady(_ context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ready, ok := r.ready[id]
	if !ok {
		return false, ErrNotFound
	}
	return ready, nil
}
