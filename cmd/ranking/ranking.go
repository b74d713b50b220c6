// Package ranking prints per-user statistics and the leaderboard.
package ranking

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/findrapp/findr/internal/app"
	"github.com/findrapp/findr/internal/conf"
	"github.com/findrapp/findr/internal/sightings"
	"github.com/findrapp/findr/internal/stats"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(20)
	earnedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80"))
	lockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Report is the --json form of the stats command.
type Report struct {
	stats.OwnerStats
	Rank   int           `json:"rank"`
	Badges []stats.Badge `json:"badges"`
}

// Row is one printed leaderboard line.
type Row struct {
	stats.Entry
	Username *string `json:"username"`
}

// StatsCommand creates the stats command.
func StatsCommand(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats <owner>",
		Short: "Print a user's statistics and badges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.Sightings.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			r := BuildReport(all, args[0], time.Now())
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), r)
			}
			PrintReport(cmd.OutOrStdout(), r)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

// LeaderboardCommand creates the leaderboard command.
func LeaderboardCommand(settings *conf.Settings) *cobra.Command {
	var (
		metric string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print user rankings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := stats.ParseMetric(metric)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), settings)
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.Sightings.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			entries := stats.Leaderboard(all, m)
			ids := make([]string, len(entries))
			for i, e := range entries {
				ids[i] = e.UserID
			}
			rows := BuildRows(entries, a.Identity.Usernames(cmd.Context(), ids))

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			PrintLeaderboard(cmd.OutOrStdout(), rows, m)
			return nil
		},
	}
	cmd.Flags().StringVar(&metric, "metric", string(stats.MetricOverall), "Ranking metric: overall, total or rare")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

// BuildReport computes owner's stats, overall rank and badges.
func BuildReport(all []sightings.Sighting, owner string, now time.Time) Report {
	st := stats.ForOwner(all, owner, now)
	rank := stats.RankOf(stats.Leaderboard(all, stats.MetricOverall), owner)
	return Report{OwnerStats: st, Rank: rank, Badges: stats.Badges(st, rank)}
}

// BuildRows attaches resolved usernames to leaderboard entries.
func BuildRows(entries []stats.Entry, names map[string]string) []Row {
	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i].Entry = e
		if name, ok := names[e.UserID]; ok {
			rows[i].Username = &name
		}
	}
	return rows
}

// PrintReport renders a stats report for a terminal.
func PrintReport(w io.Writer, r Report) {
	fmt.Fprintln(w, headerStyle.Render("Stats for "+r.OwnerID))
	row := func(label, value string) {
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value))
	}
	rank := "unranked"
	if r.Rank > 0 {
		rank = "#" + strconv.Itoa(r.Rank)
	}
	row("Sightings", strconv.Itoa(r.Total))
	row("Birds / Mammals", fmt.Sprintf("%d / %d", r.Birds, r.Mammals))
	row("Favorite type", r.FavoriteType)
	row("Unique species", strconv.Itoa(r.UniqueSpecies))
	row("Rare finds", strconv.Itoa(r.Rare))
	row("AI detected", strconv.Itoa(r.AIDetected))
	row("Avg. confidence", strconv.Itoa(r.AverageConfidence)+"%")
	row("Streak", fmt.Sprintf("%d days", r.Streak))
	row("Score", strconv.Itoa(r.Score))
	row("Rank", rank)

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Badges (%d/%d)", len(stats.Earned(r.Badges)), len(r.Badges))))
	for _, b := range r.Badges {
		if b.Earned {
			fmt.Fprintln(w, earnedStyle.Render("[x] "+b.Name)+"  "+b.Description)
		} else {
			fmt.Fprintln(w, lockedStyle.Render("[ ] "+b.Name+"  "+b.Description))
		}
	}
}

// PrintLeaderboard renders leaderboard rows for a terminal. Unresolved
// users are shown by id.
func PrintLeaderboard(w io.Writer, rows []Row, m stats.Metric) {
	col := func(width int) lipgloss.Style { return lipgloss.NewStyle().Width(width) }
	fmt.Fprintln(w, headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		col(6).Render("Rank"), col(28).Render("User"),
		col(8).Render("Total"), col(8).Render("Rare"), col(8).Render("Score"))))

	if len(rows) == 0 {
		fmt.Fprintln(w, lockedStyle.Render("no sightings yet"))
		return
	}
	for _, r := range rows {
		name := r.UserID
		if r.Username != nil {
			name = *r.Username
		}
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			col(6).Render(strconv.Itoa(r.Rank)), col(28).Render(name),
			col(8).Render(strconv.Itoa(r.Total)), col(8).Render(strconv.Itoa(r.Rare)), col(8).Render(strconv.Itoa(r.Score)))
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, lockedStyle.Render("ranked by "+string(m)))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
