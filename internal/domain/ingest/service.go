package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/domain/appointment"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/domain/pipeline"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/analysis"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/dicomdir"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/storage"
)

// Result describes an ingested archive.
type Result struct {
	AppointmentID int64                    `json:"appointment_id"`
	FileHash      hashid.ID                `json:"file_hash"`
	Index         string                   `json:"index"`
	Statuses      []*pipeline.SeriesStatus `json:"statuses"`
}

type Service struct {
	appointments appointment.Repository
	statuses     *pipeline.Service
	trigger      analysis.Trigger
	dest         storage.Location
	dumpVolumes  bool
	logger       zerolog.Logger
}

type Option func(*Service)

// WithVolumeDump also stores the materialized series volumes on upload.
func WithVolumeDump() Option {
	return func(s *Service) { s.dumpVolumes = true }
}

func NewService(appointments appointment.Repository, statuses *pipeline.Service, trigger analysis.Trigger,
	dest storage.Location, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		appointments: appointments,
		statuses:     statuses,
		trigger:      trigger,
		dest:         dest,
		logger:       logger.With().Str("component", "ingest").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddFile ingests the archive at loc for an appointment: the archive is
// uploaded, linked to the appointment, its located series registered with
// the pipeline, and the analysis triggered. A malformed archive leaves no
// trace. When the trigger fails the result is returned together with an
// error wrapping analysis.ErrTriggerFailed; uploaded objects and status rows
// are kept and a retry is a no-op up to the trigger.
func (s *Service) AddFile(ctx context.Context, appointmentID int64, loc storage.Location) (*Result, error) {
	ok, err := s.appointments.Exists(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("lookup appointment %d: %w", appointmentID, err)
	}
	if !ok {
		return nil, fmt.Errorf("appointment %d: %w", appointmentID, appointment.ErrNotFound)
	}

	cube, err := dicomdir.Open(ctx, loc)
	if err != nil {
		return nil, err
	}
	valid, err := cube.ValidSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read slice headers: %v", dicomdir.ErrMalformedArchive, err)
	}

	log := s.logger.With().
		Int64("appointment_id", appointmentID).
		Str("file_hash", cube.Hash().String()).
		Logger()

	index, err := Upload(ctx, cube, s.dest)
	if err != nil {
		return nil, fmt.Errorf("upload archive: %w", err)
	}
	log.Info().Str("index", index.String()).Int("series", len(valid)).Msg("archive uploaded")

	if s.dumpVolumes {
		n, err := DumpVolumes(ctx, cube, s.dest)
		if err != nil {
			return nil, fmt.Errorf("dump volumes: %w", err)
		}
		log.Debug().Int("volumes", n).Msg("volumes stored")
	}

	if _, err := s.appointments.UpsertFile(ctx, appointmentID, cube.Hash()); err != nil {
		return nil, fmt.Errorf("link file to appointment %d: %w", appointmentID, err)
	}

	hashes := make([]hashid.ID, len(valid))
	series := make([]string, len(valid))
	for i, sr := range valid {
		hashes[i] = sr.Hash()
		series[i] = sr.Hash().String()
	}
	statuses, err := s.statuses.Initialize(ctx, appointmentID, cube.Hash(), hashes)
	if err != nil {
		return nil, err
	}

	res := &Result{
		AppointmentID: appointmentID,
		FileHash:      cube.Hash(),
		Index:         index.Key(),
		Statuses:      statuses,
	}

	err = s.trigger.Trigger(ctx, analysis.Request{
		StoragePath: cube.Hash().String(),
		Index:       index.Key(),
		Bucket:      index.Bucket(),
		FileHash:    cube.Hash().String(),
		Series:      series,
	})
	if err != nil {
		log.Error().Err(err).Msg("analysis trigger failed")
		return res, err
	}
	return res, nil
}

// Statuses lists the pipeline progress of the file currently attached to
// an appointment.
func (s *Service) Statuses(ctx context.Context, appointmentID int64) ([]*pipeline.SeriesStatus, error) {
	f, err := s.appointments.GetFile(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return s.statuses.ListByFile(ctx, f.FileHash)
}
