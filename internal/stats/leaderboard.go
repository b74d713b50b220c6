package stats

import (
	"fmt"
	"slices"

	"github.com/findrapp/findr/internal/sightings"
)

// Metric selects the leaderboard ordering.
type Metric string

const (
	MetricOverall Metric = "overall"
	MetricTotal   Metric = "total"
	MetricRare    Metric = "rare"
)

// ParseMetric accepts a metric name; empty means overall.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case "":
		return MetricOverall, nil
	case MetricOverall, MetricTotal, MetricRare:
		return m, nil
	default:
		return "", fmt.Errorf("unknown leaderboard metric %q", s)
	}
}

// Entry is one leaderboard row.
type Entry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"userId"`
	Total  int    `json:"total"`
	Rare   int    `json:"rare"`
	Score  int    `json:"score"`
}

func (e Entry) value(m Metric) int {
	switch m {
	case MetricTotal:
		return e.Total
	case MetricRare:
		return e.Rare
	default:
		return e.Score
	}
}

// Leaderboard ranks users by metric, highest first. Users appear in order of
// their first sighting before sorting, and ties keep that order.
func Leaderboard(all []sightings.Sighting, metric Metric) []Entry {
	index := make(map[string]int)
	var entries []Entry
	for _, s := range all {
		i, ok := index[s.UserID]
		if !ok {
			i = len(entries)
			index[s.UserID] = i
			entries = append(entries, Entry{UserID: s.UserID})
		}
		entries[i].Total++
		if sightings.IsRare(s.Rarity) {
			entries[i].Rare++
		}
	}

	for i := range entries {
		entries[i].Score = Score(entries[i].Total, entries[i].Rare)
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return b.value(metric) - a.value(metric)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// RankOf returns the 1-based rank of userID, or 0 when absent.
func RankOf(entries []Entry, userID string) int {
	for _, e := range entries {
		if e.UserID == userID {
			return e.Rank
		}
	}
	return 0
}
