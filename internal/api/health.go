package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/findrapp/findr/internal/buildinfo"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	Uptime    string `json:"uptime"`
	Classify  bool   `json:"classify"`
}

func (s *Server) health(c echo.Context) error {
	info := buildinfo.Current()
	if s.cfg.Version != "" {
		info.Version = s.cfg.Version
	}
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.BuildDate,
		Uptime:    s.now().Sub(s.startTime).Truncate(time.Second).String(),
		Classify:  s.deps.Classifier != nil,
	})
}
