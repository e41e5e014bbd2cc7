package ranking

import (
	"sort"
	"strconv"
	"time"

	"quizhub-service/internal/domain"
)

// entryBefore orders entries by score, then average percentage, both
// descending. Equal pairs fall back to the owner (users first, lower id first)
// so the ranking does not depend on fetch order.
func entryBefore(a, b domain.LeaderboardEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.AveragePercentage != b.AveragePercentage {
		return a.AveragePercentage > b.AveragePercentage
	}
	return a.Owner.Less(b.Owner)
}

// AssignRanks returns a sorted copy of entries with ranks 1..N assigned.
func AssignRanks(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	ranked := make([]domain.LeaderboardEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return entryBefore(ranked[i], ranked[j])
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// RankAttempts orders completed attempts of one quiz by score and percentage,
// earlier completion first on ties, and numbers them from 1.
func RankAttempts(attempts []domain.Attempt) []domain.QuizRanking {
	sorted := make([]domain.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.Status == domain.AttemptCompleted {
			sorted = append(sorted, a)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Percentage != b.Percentage {
			return a.Percentage > b.Percentage
		}
		ta, tb := completedAt(a), completedAt(b)
		if !ta.Equal(tb) {
			return ta.Before(tb)
		}
		return a.ID.String() < b.ID.String()
	})

	out := make([]domain.QuizRanking, len(sorted))
	for i, a := range sorted {
		out[i] = domain.QuizRanking{
			Rank:        i + 1,
			AttemptID:   a.ID,
			Owner:       a.Owner,
			Score:       a.Score,
			Percentage:  a.Percentage,
			TimeTaken:   a.TimeTaken,
			CompletedAt: completedAt(a),
		}
	}
	return out
}

func completedAt(a domain.Attempt) time.Time {
	if a.CompletedAt == nil {
		return time.Time{}
	}
	return *a.CompletedAt
}

// sortUsers orders users for the batch rebuild: points, then streak, both
// descending, then ascending id.
func sortUsers(users []domain.User) {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.StreakDays != b.StreakDays {
			return a.StreakDays > b.StreakDays
		}
		return a.ID < b.ID
	})
}

// WindowStart returns the UTC start of the calendar window a periodic board
// covers at now: the day, the ISO week (Monday) or the month.
func WindowStart(t domain.LeaderboardType, now time.Time) (time.Time, bool) {
	y, m, d := now.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch t {
	case domain.LeaderboardDaily:
		return day, true
	case domain.LeaderboardWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset), true
	case domain.LeaderboardMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// CurrentEntries drops entries of a periodic board last updated before the
// window that contains now and renumbers the rest from 1. Other boards are
// returned unchanged.
func CurrentEntries(t domain.LeaderboardType, entries []domain.LeaderboardEntry, now time.Time) []domain.LeaderboardEntry {
	start, ok := WindowStart(t, now)
	if !ok {
		return entries
	}
	fresh := make([]domain.LeaderboardEntry, 0, len(entries))
	for _, en := range entries {
		if !en.UpdatedAt.Before(start) {
			fresh = append(fresh, en)
		}
	}
	if len(fresh) == len(entries) {
		return entries
	}
	return AssignRanks(fresh)
}

// BoardName is the display name a board gets when it is first created.
func BoardName(scope domain.Scope, label string) string {
	switch scope.Type {
	case domain.LeaderboardGlobal:
		return "Global Leaderboard"
	case domain.LeaderboardDaily:
		return "Daily Leaderboard"
	case domain.LeaderboardWeekly:
		return "Weekly Leaderboard"
	case domain.LeaderboardMonthly:
		return "Monthly Leaderboard"
	}
	if label == "" {
		label = scope.String()
	}
	return label + " Leaderboard"
}

// Badge is the display decoration for a top rank.
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

func BadgeFor(rank int) Badge {
	switch {
	case rank == 1:
		return Badge{Text: "1st", Color: "gold"}
	case rank == 2:
		return Badge{Text: "2nd", Color: "silver"}
	case rank == 3:
		return Badge{Text: "3rd", Color: "bronze"}
	case rank <= 5:
		return Badge{Text: "Top 5", Color: "success"}
	case rank <= 10:
		return Badge{Text: "Top 10", Color: "info"}
	default:
		return Badge{Text: "#" + strconv.Itoa(rank), Color: "secondary"}
	}
}
