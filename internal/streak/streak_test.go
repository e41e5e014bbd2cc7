package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizhub-service/internal/domain"
)

var day = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func dateOf(t time.Time) *time.Time {
	d := Date(t)
	return &d
}

func TestFirstTouchStartsStreak(t *testing.T) {
	u := domain.User{ID: 1}
	require.True(t, Touch(&u, day))
	assert.Equal(t, 1, u.StreakDays)
	assert.Equal(t, Date(day), *u.LastStreakDate)
}

func TestSameDayTouchIsNoop(t *testing.T) {
	u := domain.User{ID: 1}
	Touch(&u, day)
	changed := Touch(&u, day.Add(10*time.Hour))
	assert.False(t, changed)
	assert.Equal(t, 1, u.StreakDays)
}

func TestConsecutiveDayExtends(t *testing.T) {
	u := domain.User{ID: 1, StreakDays: 4, LastStreakDate: dateOf(day.AddDate(0, 0, -1))}
	Touch(&u, day)
	assert.Equal(t, 5, u.StreakDays)
	assert.Equal(t, Date(day), *u.LastStreakDate)
}

func TestGapResets(t *testing.T) {
	u := domain.User{ID: 1, StreakDays: 9, LastStreakDate: dateOf(day.AddDate(0, 0, -3))}
	Touch(&u, day)
	assert.Equal(t, 1, u.StreakDays)
}

func TestFutureDateResets(t *testing.T) {
	u := domain.User{ID: 1, StreakDays: 3, LastStreakDate: dateOf(day.AddDate(0, 0, 2))}
	Touch(&u, day)
	assert.Equal(t, 1, u.StreakDays)
}

func TestMidnightBoundary(t *testing.T) {
	lateNight := time.Date(2026, 3, 13, 23, 59, 0, 0, time.UTC)
	u := domain.User{ID: 1}
	Touch(&u, lateNight)
	Touch(&u, lateNight.Add(2*time.Minute))
	assert.Equal(t, 2, u.StreakDays)
}

func TestDateUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	local := time.Date(2026, 3, 15, 5, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), Date(local))
}
