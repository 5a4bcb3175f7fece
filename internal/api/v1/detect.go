package v1

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fallwatch/internal/batch"
	"github.com/tphakala/fallwatch/internal/logger"
)

// DetectVideo runs fall detection over an uploaded video in the multipart
// field "file" and returns the batch summary.
func (c *Controller) DetectVideo(ctx echo.Context) error {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return c.HandleError(ctx, err, "Missing upload field 'file'", http.StatusBadRequest)
	}
	if _, err := batch.ValidateFilename(fh.Filename); err != nil {
		return c.HandleError(ctx, err, batch.ErrUnsupportedFormat.Error(), http.StatusBadRequest)
	}

	src, err := fh.Open()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read upload", http.StatusBadRequest)
	}
	defer func() {
		if err := src.Close(); err != nil {
			GetLogger().Warn("failed to close upload", logger.Error(err))
		}
	}()

	result, err := c.videos.Process(ctx.Request().Context(), batch.Request{
		Filename: fh.Filename,
		Reader:   src,
	})
	if err != nil {
		code := StatusFor(err)
		message := fmt.Sprintf("Processing failed: %v", err)
		if code == http.StatusBadRequest {
			message = batch.ErrUnsupportedFormat.Error()
		}
		return c.HandleError(ctx, err, message, code)
	}
	return ctx.JSON(http.StatusOK, result)
}

// DownloadVideo serves an annotated output video as an attachment.
func (c *Controller) DownloadVideo(ctx echo.Context) error {
	fileID := ctx.Param("file_id")
	filename := ctx.Param("filename")

	if _, err := c.videos.OutputPath(fileID, filename); err != nil {
		return c.HandleError(ctx, err, batch.ErrOutputNotFound.Error(), 0)
	}

	ctx.Response().Header().Set(echo.HeaderContentType, batch.MediaType(filename))
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", "detected_"+filename))
	return c.videos.Outputs().ServeRelativeFile(ctx, filepath.Join(fileID, filename))
}
