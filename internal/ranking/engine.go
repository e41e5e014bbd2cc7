// Package ranking maintains leaderboard entries and their rank order.
//
// Entries are projections of the user aggregate (points, streak) and of the
// user's completed attempts; the aggregate stays the system of record. Every
// score write is followed by a full reorder of the affected board, which keeps
// ranks dense (1..N, no gaps, no duplicates) and makes recompute idempotent.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"quizhub-service/internal/domain"
	"quizhub-service/internal/metrics"
	"quizhub-service/internal/store"
)

const (
	DefaultGlobalTop  = 100
	DefaultCountryTop = 50
)

// Target is a scope together with the name its board is created with.
type Target struct {
	Scope domain.Scope
	Name  string
}

type Engine struct {
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
	now        func() time.Time
	globalTop  int
	countryTop int
}

type Option func(*Engine)

// WithClock is used by tests for deterministic windows and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLimits sets how many users the batch rebuild keeps on the global and per-country boards.
func WithLimits(globalTop, countryTop int) Option {
	return func(e *Engine) {
		if globalTop > 0 {
			e.globalTop = globalTop
		}
		if countryTop > 0 {
			e.countryTop = countryTop
		}
	}
}

func NewEngine(log logrus.FieldLogger, opts ...Option) *Engine {
	e := &Engine{
		log:        log,
		now:        time.Now,
		globalTop:  DefaultGlobalTop,
		countryTop: DefaultCountryTop,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Targets lists the persisted boards a completed attempt affects: global
// always, the quiz's category when it has one, and the period boards.
// Quiz boards are never persisted; they are computed from attempts on read.
func Targets(a domain.Attempt, categoryName string) []Target {
	targets := []Target{{Scope: domain.GlobalScope(), Name: BoardName(domain.GlobalScope(), "")}}
	if a.CategoryID != nil {
		scope := domain.CategoryScope(*a.CategoryID)
		targets = append(targets, Target{Scope: scope, Name: BoardName(scope, categoryName)})
	}
	for _, t := range []domain.LeaderboardType{domain.LeaderboardDaily, domain.LeaderboardWeekly, domain.LeaderboardMonthly} {
		scope := domain.PeriodScope(t)
		targets = append(targets, Target{Scope: scope, Name: BoardName(scope, "")})
	}
	return targets
}

// UpdateEntryForUser upserts the entry of user on the target board from the
// user's post-update aggregate and the attempt just completed, then re-ranks
// the whole board. It returns the board's entries in rank order.
func (e *Engine) UpdateEntryForUser(ctx context.Context, repo store.Repository, target Target, user domain.User, attempt domain.Attempt) ([]domain.LeaderboardEntry, error) {
	scope := target.Scope
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if scope.Type == domain.LeaderboardQuiz {
		return nil, fmt.Errorf("quiz rankings are computed on demand: %w", domain.ErrInvalidScope)
	}
	if uid, ok := attempt.Owner.UserID(); !ok || uid != user.ID {
		return nil, fmt.Errorf("attempt %s is not owned by user %d: %w", attempt.ID, user.ID, domain.ErrContractViolation)
	}
	if attempt.Status != domain.AttemptCompleted {
		return nil, fmt.Errorf("attempt %s: %w", attempt.ID, domain.ErrAttemptNotInProgress)
	}

	board, err := repo.GetOrCreateLeaderboard(ctx, scope, target.Name)
	if err != nil {
		return nil, fmt.Errorf("leaderboard %s: %w", scope, err)
	}

	owner := domain.UserOwner(user.ID)
	entry, err := repo.FindEntry(ctx, board.ID, owner)
	switch {
	case errors.Is(err, domain.ErrEntryNotFound):
		entry = domain.LeaderboardEntry{
			LeaderboardID:     board.ID,
			Owner:             owner,
			Score:             user.Points,
			Rank:              1,
			TotalQuizzes:      1,
			AveragePercentage: attempt.Percentage,
			BestStreak:        user.StreakDays,
		}
		if scope.Type.Periodic() {
			entry.Score = attempt.Score
		}
	case err != nil:
		return nil, fmt.Errorf("find entry on %s: %w", scope, err)
	default:
		stats, err := repo.AttemptStats(ctx, user.ID, e.filterFor(scope))
		if err != nil {
			return nil, fmt.Errorf("attempt stats for %s: %w", scope, err)
		}
		entry.TotalQuizzes = stats.Count
		entry.AveragePercentage = stats.AveragePercentage
		entry.Score = user.Points
		if scope.Type.Periodic() {
			entry.Score = stats.TotalScore
		}
		entry.BestStreak = user.StreakDays
	}
	entry.UpdatedAt = e.now()

	if err := repo.SaveEntry(ctx, &entry); err != nil {
		return nil, fmt.Errorf("save entry on %s: %w", scope, err)
	}
	return e.recompute(ctx, repo, board)
}

// Recompute re-ranks every entry of the board for scope.
func (e *Engine) Recompute(ctx context.Context, repo store.Repository, scope domain.Scope) ([]domain.LeaderboardEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	board, err := repo.FindLeaderboard(ctx, scope)
	if err != nil {
		return nil, err
	}
	return e.recompute(ctx, repo, board)
}

func (e *Engine) recompute(ctx context.Context, repo store.Repository, board domain.Leaderboard) ([]domain.LeaderboardEntry, error) {
	defer e.metrics.ObserveRecompute(board.Scope.Type, time.Now())

	entries, err := repo.ListEntries(ctx, board.ID)
	if err != nil {
		return nil, fmt.Errorf("list entries of %s: %w", board.Scope, err)
	}

	if start, ok := WindowStart(board.Scope.Type, e.now()); ok {
		fresh := entries[:0:0]
		var stale []int64
		for _, en := range entries {
			if en.UpdatedAt.Before(start) {
				stale = append(stale, en.ID)
				continue
			}
			fresh = append(fresh, en)
		}
		if len(stale) > 0 {
			if err := repo.DeleteEntries(ctx, board.ID, stale); err != nil {
				return nil, fmt.Errorf("expire entries of %s: %w", board.Scope, err)
			}
		}
		entries = fresh
	}

	previous := make(map[int64]int, len(entries))
	for _, en := range entries {
		previous[en.ID] = en.Rank
	}
	ranked := AssignRanks(entries)
	changed := make(map[int64]int)
	for _, en := range ranked {
		if previous[en.ID] != en.Rank {
			changed[en.ID] = en.Rank
		}
	}
	if len(changed) > 0 {
		if err := repo.SetRanks(ctx, board.ID, changed); err != nil {
			return nil, fmt.Errorf("write ranks of %s: %w", board.Scope, err)
		}
	}
	return ranked, nil
}

func (e *Engine) filterFor(scope domain.Scope) domain.AttemptFilter {
	var f domain.AttemptFilter
	if scope.Type == domain.LeaderboardCategory {
		if id, ok := scope.KeyID(); ok {
			f.CategoryID = &id
		}
	}
	if start, ok := WindowStart(scope.Type, e.now()); ok {
		f.Since = &start
	}
	return f
}
