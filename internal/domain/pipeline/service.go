package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/domain/appointment"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
)

type Service struct {
	repo         Repository
	appointments appointment.Repository
	locks        *keyLocks
	logger       zerolog.Logger
}

func NewService(repo Repository, appointments appointment.Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		appointments: appointments,
		locks:        newKeyLocks(),
		logger:       logger.With().Str("component", "pipeline").Logger(),
	}
}

// Initialize registers the series of a freshly uploaded file at the first
// step. Series that already have a row keep it. When the file was already
// analysed to completion, the appointments now holding it are marked ready.
func (s *Service) Initialize(ctx context.Context, appointmentID int64, fileHash hashid.ID, seriesHashes []hashid.ID) ([]*SeriesStatus, error) {
	for _, sh := range seriesHashes {
		err := s.repo.Create(ctx, &SeriesStatus{
			FileHash:      fileHash,
			SeriesHash:    sh,
			AppointmentID: appointmentID,
			Status:        Steps[0],
		})
		if err != nil {
			return nil, fmt.Errorf("initialize series %s: %w", sh, err)
		}
	}
	rows, err := s.repo.ListByFile(ctx, fileHash)
	if err != nil {
		return nil, err
	}
	if allDone(rows) {
		if err := s.markReady(ctx, fileHash); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// Advance applies a status report from the analysis worker. Stale reports
// leave the record unchanged and return it as is. Once every series of the
// file is Done, the appointments holding the file are marked ready.
func (s *Service) Advance(ctx context.Context, fileHash, seriesHash hashid.ID, raw string) (*SeriesStatus, error) {
	next, err := ParseStatus(raw)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(statusKey(fileHash, seriesHash))
	defer unlock()

	rec, applied, err := s.repo.Transition(ctx, fileHash, seriesHash, next)
	if err != nil {
		return nil, fmt.Errorf("transition %s/%s: %w", fileHash, seriesHash, err)
	}
	if !applied {
		s.logger.Info().
			Str("file_hash", fileHash.String()).
			Str("series_hash", seriesHash.String()).
			Str("current", rec.Status.String()).
			Str("reported", next.String()).
			Msg("stale status report ignored")
		return rec, nil
	}

	if next == Done {
		if err := s.rollup(ctx, fileHash); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (s *Service) rollup(ctx context.Context, fileHash hashid.ID) error {
	rows, err := s.repo.ListByFile(ctx, fileHash)
	if err != nil {
		return fmt.Errorf("read statuses of %s: %w", fileHash, err)
	}
	if !allDone(rows) {
		return nil
	}
	return s.markReady(ctx, fileHash)
}

func allDone(rows []*SeriesStatus) bool {
	if len(rows) == 0 {
		return false
	}
	for _, row := range rows {
		if row.Status != Done {
			return false
		}
	}
	return true
}

func (s *Service) markReady(ctx context.Context, fileHash hashid.ID) error {
	flipped, err := s.appointments.MarkReady(ctx, fileHash)
	if err != nil {
		return fmt.Errorf("mark appointments ready for %s: %w", fileHash, err)
	}
	for _, id := range flipped {
		s.logger.Info().
			Int64("appointment_id", id).
			Str("file_hash", fileHash.String()).
			Msg("appointment ready")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, fileHash, seriesHash hashid.ID) (*SeriesStatus, error) {
	return s.repo.Get(ctx, fileHash, seriesHash)
}

func (s *Service) ListByFile(ctx context.Context, fileHash hashid.ID) ([]*SeriesStatus, error) {
	return s.repo.ListByFile(ctx, fileHash)
}

// Appointments lists the appointments whose upload resolved to fileHash.
func (s *Service) Appointments(ctx context.Context, fileHash hashid.ID) ([]*appointment.File, error) {
	return s.appointments.ListByFileHash(ctx, fileHash)
}
