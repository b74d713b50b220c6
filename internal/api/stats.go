package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/findrapp/findr/internal/stats"
)

// StatsResponse is the body of GET /stats/:owner.
type StatsResponse struct {
	stats.OwnerStats
	Rank   int           `json:"rank"`
	Badges []stats.Badge `json:"badges"`
}

// LeaderboardEntry is one row of GET /leaderboard. Username is null when the
// user cannot be resolved.
type LeaderboardEntry struct {
	stats.Entry
	Username *string `json:"username"`
}

func (s *Server) ownerStats(c echo.Context) error {
	svc, err := s.sightingService()
	if err != nil {
		return err
	}
	all, err := svc.Snapshot(c.Request().Context())
	if err != nil {
		return err
	}

	owner := c.Param("owner")
	st := stats.ForOwner(all, owner, s.now())
	rank := stats.RankOf(stats.Leaderboard(all, stats.MetricOverall), owner)
	return c.JSON(http.StatusOK, StatsResponse{
		OwnerStats: st,
		Rank:       rank,
		Badges:     stats.Badges(st, rank),
	})
}

func (s *Server) leaderboard(c echo.Context) error {
	metric, err := stats.ParseMetric(c.QueryParam("metric"))
	if err != nil {
		return badRequest(err.Error())
	}
	svc, err := s.sightingService()
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	all, err := svc.Snapshot(ctx)
	if err != nil {
		return err
	}

	entries := stats.Leaderboard(all, metric)
	out := make([]LeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i].Entry = e
	}

	if s.deps.Identity != nil {
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.UserID
		}
		names := s.deps.Identity.Usernames(ctx, ids)
		for i := range out {
			if name, ok := names[out[i].UserID]; ok {
				out[i].Username = &name
			}
		}
	}
	return c.JSON(http.StatusOK, out)
}
