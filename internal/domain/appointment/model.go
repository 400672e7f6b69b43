package appointment

import (
	"errors"
	"time"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/hashid"
)

var ErrNotFound = errors.New("appointment not found")

// File links an appointment to the content hash of its uploaded archive.
type File struct {
	AppointmentID int64     `json:"appointment_id"`
	FileHash      hashid.ID `json:"file_hash"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
