package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/findrapp/findr/internal/classifier"
	"github.com/findrapp/findr/internal/sightings"
)

// CreateSightingRequest is the body of POST /sightings. Result and PhotoRef
// are optional.
type CreateSightingRequest struct {
	sightings.Draft
	Result   *classifier.Result `json:"result,omitempty"`
	PhotoRef string             `json:"photoRef,omitempty"`
}

func (s *Server) sightingService() (SightingService, error) {
	if s.deps.Sightings == nil {
		return nil, errServiceUnavailable
	}
	return s.deps.Sightings, nil
}

func (s *Server) createSighting(c echo.Context) error {
	svc, err := s.sightingService()
	if err != nil {
		return err
	}
	var req CreateSightingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	created, err := svc.Create(c.Request().Context(), req.Draft, req.Result, req.PhotoRef)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) listSightings(c echo.Context) error {
	svc, err := s.sightingService()
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	var list []sightings.Sighting
	if owner := c.QueryParam("owner"); owner != "" {
		list, err = svc.ListByOwner(ctx, owner)
	} else {
		list, err = svc.ListAll(ctx)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) nearbySightings(c echo.Context) error {
	svc, err := s.sightingService()
	if err != nil {
		return err
	}

	lat, err := floatParam(c, "lat", true)
	if err != nil {
		return err
	}
	lng, err := floatParam(c, "lng", true)
	if err != nil {
		return err
	}
	radius, err := floatParam(c, "radius", false)
	if err != nil {
		return err
	}

	list, err := svc.InRadius(c.Request().Context(), lat, lng, radius)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) getSighting(c echo.Context) error {
	svc, err := s.sightingService()
	if err != nil {
		return err
	}
	found, ok, err := svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if !ok {
		return sightings.ErrSightingNotFound
	}
	return c.JSON(http.StatusOK, found)
}

func (s *Server) updateSighting(c echo.Context) error {
	svc, err := s.sightingService()
	if err != nil {
		return err
	}
	var patch sightings.Patch
	if err := c.Bind(&patch); err != nil {
		return badRequest("invalid request body")
	}

	updated, err := svc.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteSighting(c echo.Context) error {
	svc, err := s.sightingService()
	if err != nil {
		return err
	}
	if err := svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// floatParam parses a float query parameter. Missing optional values are 0.
func floatParam(c echo.Context, name string, required bool) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		if required {
			return 0, badRequest("query parameter '" + name + "' is required")
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badRequest("query parameter '" + name + "' must be a number")
	}
	return v, nil
}
