package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/findrapp/findr/internal/classifier"
	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/identity"
	"github.com/findrapp/findr/internal/logger"
	"github.com/findrapp/findr/internal/sightings"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

var errServiceUnavailable = errors.NewStd("service unavailable")

// statusFor maps service errors to a status code and a client safe message.
// Messages of unexpected failures never reach the client.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	}

	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized, identity.ErrInvalidCredentials.Error()
	case errors.Is(err, identity.ErrDuplicateEmail):
		return http.StatusConflict, identity.ErrDuplicateEmail.Error()
	case errors.Is(err, identity.ErrDuplicateUsername):
		return http.StatusConflict, identity.ErrDuplicateUsername.Error()
	case errors.Is(err, sightings.ErrSightingNotFound):
		return http.StatusNotFound, sightings.ErrSightingNotFound.Error()
	case errors.Is(err, sightings.ErrNotConfigured), errors.Is(err, errServiceUnavailable):
		return http.StatusServiceUnavailable, "hosted store is not configured"
	case errors.Is(err, classifier.ErrClassificationFailed):
		return http.StatusBadGateway, classifier.ErrClassificationFailed.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	}

	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		switch ee.Category {
		case errors.CategoryValidation:
			return http.StatusBadRequest, ee.Err.Error()
		case errors.CategoryNotFound:
			return http.StatusNotFound, http.StatusText(http.StatusNotFound)
		case errors.CategoryAuthentication:
			return http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized)
		case errors.CategoryConflict:
			return http.StatusConflict, http.StatusText(http.StatusConflict)
		case errors.CategoryNotConfigured:
			return http.StatusServiceUnavailable, "hosted store is not configured"
		case errors.CategoryTimeout:
			return http.StatusGatewayTimeout, "request timed out"
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

// errorHandler writes ErrorResponse bodies and logs server side failures.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, msg := statusFor(err)
	id := requestIDOf(c)
	if code >= http.StatusInternalServerError {
		s.log.WithContext(c.Request().Context()).Error("request failed",
			logger.String("path", c.Path()),
			logger.Int("status", code),
			logger.String("correlation_id", id),
			logger.Error(err))
	}

	resp := ErrorResponse{Error: msg, CorrelationID: id}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, resp)
	}
	if err != nil {
		s.log.Warn("failed to write error response", logger.Error(err))
	}
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
