// Package store defines the persistence contract shared by the scoring and
// ranking services. Implementations live under internal/infra.
package store

import (
	"context"

	"github.com/google/uuid"

	"quizhub-service/internal/domain"
)

// Repository reads and writes the core's records. Lookups of missing records
// return errors wrapping domain.ErrNotFound.
type Repository interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetGuest(ctx context.Context, id int64) (domain.Guest, error)
	// SaveUserProgress persists points, streak days and last streak date.
	SaveUserProgress(ctx context.Context, u domain.User) error
	ListActiveUsers(ctx context.Context) ([]domain.User, error)
	SaveUserRanks(ctx context.Context, ranks []domain.UserRank) error

	CreateAttempt(ctx context.Context, a domain.Attempt) error
	GetAttempt(ctx context.Context, id uuid.UUID) (domain.Attempt, error)
	// LockAttempt reads an attempt and holds it against concurrent writers until the transaction ends.
	LockAttempt(ctx context.Context, id uuid.UUID) (domain.Attempt, error)
	// FinishAttempt stores the final state of an attempt together with its answers.
	FinishAttempt(ctx context.Context, a domain.Attempt, answers []domain.Answer) error
	ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]domain.Answer, error)
	AttemptStats(ctx context.Context, userID int64, f domain.AttemptFilter) (domain.AttemptStats, error)
	ListCompletedAttempts(ctx context.Context, quizID int64) ([]domain.Attempt, error)
	// RecentAttempts returns completed attempts of owner, newest first.
	RecentAttempts(ctx context.Context, owner domain.Owner, limit int) ([]domain.Attempt, error)

	// GetOrCreateLeaderboard returns the singleton board of scope, creating it with name on first use.
	GetOrCreateLeaderboard(ctx context.Context, scope domain.Scope, name string) (domain.Leaderboard, error)
	FindLeaderboard(ctx context.Context, scope domain.Scope) (domain.Leaderboard, error)
	FindEntry(ctx context.Context, leaderboardID int64, owner domain.Owner) (domain.LeaderboardEntry, error)
	// SaveEntry inserts e when e.ID is zero and updates it otherwise. It sets e.ID on insert.
	SaveEntry(ctx context.Context, e *domain.LeaderboardEntry) error
	// ListEntries returns every entry of a board in insertion order.
	ListEntries(ctx context.Context, leaderboardID int64) ([]domain.LeaderboardEntry, error)
	// TopEntries returns up to limit entries ordered by rank, with display names resolved.
	TopEntries(ctx context.Context, leaderboardID int64, limit int) ([]domain.LeaderboardEntry, error)
	// SetRanks writes rank by entry id.
	SetRanks(ctx context.Context, leaderboardID int64, ranks map[int64]int) error
	DeleteEntries(ctx context.Context, leaderboardID int64, ids []int64) error
	// ReplaceEntries deletes every entry of a board and inserts entries in its place.
	ReplaceEntries(ctx context.Context, leaderboardID int64, entries []domain.LeaderboardEntry) error
}

// Transactor runs fn against a Repository bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// Store is a Repository that can also open transactions.
type Store interface {
	Repository
	Transactor
}
