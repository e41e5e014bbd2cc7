package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizhub-service/internal/domain"
	"quizhub-service/internal/store"
)

func TestStoreRollsBackFailedTx(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	st.AddUser(domain.User{ID: 1, Username: "ann", Points: 10})

	boom := errors.New("boom")
	err := st.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		u, err := repo.GetUser(ctx, 1)
		require.NoError(t, err)
		u.Points = 999
		require.NoError(t, repo.SaveUserProgress(ctx, u))
		_, err = repo.GetOrCreateLeaderboard(ctx, domain.GlobalScope(), "Global Leaderboard")
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, u.Points)
	_, err = st.FindLeaderboard(ctx, domain.GlobalScope())
	assert.ErrorIs(t, err, domain.ErrLeaderboardNotFound)
}

func TestStoreCommitsTx(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	st.AddUser(domain.User{ID: 1, Username: "ann"})

	require.NoError(t, st.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		u, err := repo.GetUser(ctx, 1)
		if err != nil {
			return err
		}
		u.Points = 70
		u.Username = "ignored"
		return repo.SaveUserProgress(ctx, u)
	}))

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 70, u.Points)
	assert.Equal(t, "ann", u.Username)
	assert.Equal(t, domain.UserActive, u.Status)
}

func TestStoreLeaderboardSingleton(t *testing.T) {
	ctx := context.Background()
	st := NewStore()

	a, err := st.GetOrCreateLeaderboard(ctx, domain.CategoryScope(3), "Science Leaderboard")
	require.NoError(t, err)
	b, err := st.GetOrCreateLeaderboard(ctx, domain.CategoryScope(3), "Other name")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := st.GetOrCreateLeaderboard(ctx, domain.CategoryScope(4), "History Leaderboard")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestStoreEntryUniquePerOwner(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	lb, err := st.GetOrCreateLeaderboard(ctx, domain.GlobalScope(), "Global Leaderboard")
	require.NoError(t, err)

	first := domain.LeaderboardEntry{LeaderboardID: lb.ID, Owner: domain.UserOwner(1), Score: 10}
	require.NoError(t, st.SaveEntry(ctx, &first))
	assert.NotZero(t, first.ID)

	dup := domain.LeaderboardEntry{LeaderboardID: lb.ID, Owner: domain.UserOwner(1), Score: 20}
	assert.ErrorIs(t, st.SaveEntry(ctx, &dup), domain.ErrContractViolation)

	first.Score = 30
	require.NoError(t, st.SaveEntry(ctx, &first))
	got, err := st.FindEntry(ctx, lb.ID, domain.UserOwner(1))
	require.NoError(t, err)
	assert.Equal(t, 30, got.Score)

	_, err = st.FindEntry(ctx, lb.ID, domain.GuestOwner(1))
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestStoreTopEntriesResolvesNames(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	st.AddUser(domain.User{ID: 1, Username: "ann"})
	st.AddGuest(domain.Guest{ID: 1, DisplayName: "Guest 1"})
	lb, err := st.GetOrCreateLeaderboard(ctx, domain.GlobalScope(), "Global Leaderboard")
	require.NoError(t, err)

	require.NoError(t, st.ReplaceEntries(ctx, lb.ID, []domain.LeaderboardEntry{
		{Owner: domain.GuestOwner(1), Rank: 2},
		{Owner: domain.UserOwner(1), Rank: 1},
	}))

	top, err := st.TopEntries(ctx, lb.ID, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "ann", top[0].DisplayName)

	all, err := st.TopEntries(ctx, lb.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Guest 1", all[1].DisplayName)
}

func TestStoreAttemptQueries(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	cat := int64(2)
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	add := func(owner domain.Owner, status domain.AttemptStatus, pct float64, score int, at time.Time, category *int64) domain.Attempt {
		a := domain.Attempt{ID: uuid.New(), QuizID: 7, Owner: owner, Status: status, Percentage: pct, Score: score, CategoryID: category, StartedAt: at}
		if status == domain.AttemptCompleted {
			done := at
			a.CompletedAt = &done
		}
		require.NoError(t, st.CreateAttempt(ctx, a))
		return a
	}
	add(domain.UserOwner(1), domain.AttemptCompleted, 50, 50, base, nil)
	newest := add(domain.UserOwner(1), domain.AttemptCompleted, 100, 175, base.Add(time.Hour), &cat)
	add(domain.UserOwner(1), domain.AttemptInProgress, 0, 0, base, nil)
	add(domain.GuestOwner(1), domain.AttemptCompleted, 100, 160, base, nil)

	stats, err := st.AttemptStats(ctx, 1, domain.AttemptFilter{})
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptStats{Count: 2, AveragePercentage: 75, BestPercentage: 100, TotalScore: 225}, stats)

	stats, err = st.AttemptStats(ctx, 1, domain.AttemptFilter{CategoryID: &cat})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)

	since := base.Add(30 * time.Minute)
	stats, err = st.AttemptStats(ctx, 1, domain.AttemptFilter{Since: &since})
	require.NoError(t, err)
	assert.Equal(t, 175, stats.TotalScore)

	completed, err := st.ListCompletedAttempts(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, completed, 3)

	recent, err := st.RecentAttempts(ctx, domain.UserOwner(1), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, newest.ID, recent[0].ID)

	_, err = st.GetAttempt(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
}

func TestStoreFinishAttemptRejectsDuplicateAnswers(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	a := domain.Attempt{ID: uuid.New(), Owner: domain.UserOwner(1), Status: domain.AttemptInProgress}
	require.NoError(t, st.CreateAttempt(ctx, a))

	a.Status = domain.AttemptCompleted
	err := st.FinishAttempt(ctx, a, []domain.Answer{
		{AttemptID: a.ID, QuestionID: 1},
		{AttemptID: a.ID, QuestionID: 1},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateAnswer)

	got, err := st.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptInProgress, got.Status)
}
