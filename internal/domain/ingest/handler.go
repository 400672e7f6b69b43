package ingest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Aorta-Detectors/Aorta-Detection/internal/domain/appointment"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/analysis"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/dicomdir"
	"github.com/Aorta-Detectors/Aorta-Detection/internal/platform/storage"
	"github.com/Aorta-Detectors/Aorta-Detection/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.PUT("/appointments/:id/file", h.AddFile)
	api.GET("/appointments/:id/statuses", h.ListStatuses)
}

func appointmentID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	return id, nil
}

// AddFile accepts a zipped archive in the "file" form field.
func (h *Handler) AddFile(c echo.Context) error {
	id, err := appointmentID(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()

	archive, err := storage.NewZipBackend(f, fh.Size)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "file is not a zip archive")
	}
	root := storage.Root(archive)

	ctx := c.Request().Context()
	index, err := dicomdir.Locate(ctx, root)
	if err != nil {
		return ingestError(err)
	}
	res, err := h.svc.AddFile(ctx, id, index)
	if err != nil {
		return ingestError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func ingestError(err error) error {
	switch {
	case errors.Is(err, appointment.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, dicomdir.ErrMalformedArchive):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, analysis.ErrTriggerFailed):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) ListStatuses(c echo.Context) error {
	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Statuses(c.Request().Context(), id)
	if errors.Is(err, appointment.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "appointment has no file")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.Page(items, pagination.FromContext(c)))
}
