package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/identity"
	"github.com/findrapp/findr/internal/sightings"
)

// ReconcileResponse is the body of POST /reconcile.
type ReconcileResponse struct {
	Sightings sightings.Report      `json:"sightings"`
	Users     identity.MirrorReport `json:"users"`
}

// reconcile runs one pass of both reconcilers. A reconciler that lacks a
// hosted store reports zeros; the request is 503 only when none could run.
func (s *Server) reconcile(c echo.Context) error {
	ctx := c.Request().Context()
	var resp ReconcileResponse
	ran := false

	if s.deps.Reconciler != nil {
		report, err := s.deps.Reconciler.Run(ctx)
		switch {
		case err == nil:
			ran = true
		case !notConfigured(err):
			return err
		}
		resp.Sightings = report
	}
	if s.deps.Mirror != nil {
		report, err := s.deps.Mirror.Reconcile(ctx)
		switch {
		case err == nil:
			ran = true
		case !notConfigured(err):
			return err
		}
		resp.Users = report
	}

	if !ran {
		return errServiceUnavailable
	}
	return c.JSON(http.StatusOK, resp)
}

func notConfigured(err error) bool {
	return errors.Is(err, sightings.ErrNotConfigured) || errors.IsCategory(err, errors.CategoryNotConfigured)
}
