package stats

// Badge is an achievement and whether it is earned.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Earned      bool   `json:"earned"`
}

type badgeRule struct {
	id, name, description string
	earned                func(st OwnerStats, rank int) bool
}

var catalog = []badgeRule{
	{"first_spot", "First Spot", "Log your first animal",
		func(st OwnerStats, _ int) bool { return st.Total >= 1 }},
	{"bird_watcher", "Bird Watcher", "Spot 3 different birds",
		func(st OwnerStats, _ int) bool { return st.Birds >= 3 }},
	{"mammal_tracker", "Mammal Tracker", "Spot 3 different mammals",
		func(st OwnerStats, _ int) bool { return st.Mammals >= 3 }},
	{"explorer", "Explorer", "Log 10 total animals",
		func(st OwnerStats, _ int) bool { return st.Total >= 10 }},
	{"streak_master", "Streak Master", "Maintain a 7-day streak",
		func(st OwnerStats, _ int) bool { return st.Streak >= 7 }},
	{"ai_explorer", "AI Explorer", "Use AI to detect 5 creatures",
		func(st OwnerStats, _ int) bool { return st.AIDetected >= 5 }},
	{"rare_hunter", "Rare Hunter", "Find 3 rare creatures",
		func(st OwnerStats, _ int) bool { return st.Rare >= 3 }},
	{"top_ten", "Top Ten", "Reach the top 10 of the leaderboard",
		func(_ OwnerStats, rank int) bool { return rank >= 1 && rank <= 10 }},
}

// Badges evaluates the whole catalog. rank is the overall leaderboard rank,
// 0 when unranked.
func Badges(st OwnerStats, rank int) []Badge {
	out := make([]Badge, 0, len(catalog))
	for _, r := range catalog {
		out = append(out, Badge{
			ID:          r.id,
			Name:        r.name,
			Description: r.description,
			Earned:      r.earned(st, rank),
		})
	}
	return out
}

// Earned filters the earned badges.
func Earned(badges []Badge) []Badge {
	var out []Badge
	for _, b := range badges {
		if b.Earned {
			out = append(out, b)
		}
	}
	return out
}
