package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/findrapp/findr/internal/classifier"
	"github.com/findrapp/findr/internal/logger"
)

// ClassifyResponse is the body of POST /classify.
type ClassifyResponse struct {
	Result  classifier.Result `json:"result"`
	AutoLog bool              `json:"autoLog"`
}

func (s *Server) classify(c echo.Context) error {
	if s.deps.Classifier == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "classifier is not configured")
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return badRequest("multipart field 'image' is required")
	}
	if fh.Size > maxImageUpload {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("image exceeds %d bytes", maxImageUpload))
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest("unreadable image")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.log.Debug("failed to close upload", logger.Error(cerr))
		}
	}()

	data, err := io.ReadAll(io.LimitReader(f, maxImageUpload+1))
	if err != nil {
		return badRequest("unreadable image")
	}
	if len(data) == 0 {
		return badRequest("image is empty")
	}
	if len(data) > maxImageUpload {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("image exceeds %d bytes", maxImageUpload))
	}

	result, err := s.deps.Classifier.ClassifyBytes(c.Request().Context(), data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ClassifyResponse{
		Result:  result,
		AutoLog: classifier.ShouldAutoLog(result),
	})
}
