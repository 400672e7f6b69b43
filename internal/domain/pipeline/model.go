package pipeline

import (
	"time"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
)

// SeriesStatus is the progress of one series of one uploaded file.
type SeriesStatus struct {
	FileHash      hashid.ID `json:"file_hash"`
	SeriesHash    hashid.ID `json:"series_hash"`
	AppointmentID int64     `json:"appointment_id"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *SeriesStatus) key() string {
	return string(s.FileHash) + "_" + string(s.SeriesHash)
}

func statusKey(fileHash, seriesHash hashid.ID) string {
	return string(fileHash) + "_" + string(seriesHash)
}
