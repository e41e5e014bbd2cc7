// Package streak maintains a user's consecutive-day activity streak.
package streak

import (
	"time"

	"quizhub-service/internal/domain"
)

// Date truncates t to its UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Touch records activity for u on the calendar day of now. Activity on the day
// after the last streak date extends the streak, any other gap restarts it at 1,
// and a second touch on the same day changes nothing. It reports whether u changed.
func Touch(u *domain.User, now time.Time) bool {
	today := Date(now)
	if u.LastStreakDate != nil {
		last := Date(*u.LastStreakDate)
		if last.Equal(today) {
			return false
		}
		if last.Equal(today.AddDate(0, 0, -1)) {
			u.StreakDays++
		} else {
			u.StreakDays = 1
		}
	} else {
		u.StreakDays = 1
	}
	u.LastStreakDate = &today
	return true
}
