package v1

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/panelsim/internal/domain"
)

// CreateRun queues a run for a research brief.
// POST /api/runs
func (h *Handler) CreateRun(c echo.Context) error {
	var body domain.CreateRunRequest
	if err := (&echo.DefaultBinder{}).BindBody(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_json",
			Details: []string{bindMessage(err)},
		})
	}

	resp, err := h.service.SubmitRun(c.Request().Context(), body)
	if err != nil {
		return h.writeError(c, "", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetRun returns the status of a run.
// GET /api/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	runID := c.Param("run_id")
	resp, err := h.service.GetRunStatus(c.Request().Context(), runID)
	if err != nil {
		return h.writeError(c, runID, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DownloadRun serves the workbook of a succeeded run, streamed or by
// redirect.
// GET /api/runs/:run_id/download
func (h *Handler) DownloadRun(c echo.Context) error {
	runID := c.Param("run_id")
	dl, err := h.service.OpenDownload(c.Request().Context(), runID)
	if err != nil {
		return h.writeError(c, runID, err)
	}
	if dl.Body == nil {
		return c.Redirect(http.StatusTemporaryRedirect, dl.RedirectURL)
	}
	defer dl.Body.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", dl.Filename))
	return c.Stream(http.StatusOK, dl.ContentType, dl.Body)
}

// PreviewRun summarizes a succeeded run.
// GET /api/runs/:run_id/preview
func (h *Handler) PreviewRun(c echo.Context) error {
	runID := c.Param("run_id")
	preview, err := h.service.GetPreview(c.Request().Context(), runID)
	if err != nil {
		return h.writeError(c, runID, err)
	}
	return c.JSON(http.StatusOK, preview)
}

func bindMessage(err error) string {
	if he, ok := err.(*echo.HTTPError); ok {
		if he.Internal != nil {
			return he.Internal.Error()
		}
		return fmt.Sprint(he.Message)
	}
	return err.Error()
}
