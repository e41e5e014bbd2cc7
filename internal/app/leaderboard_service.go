package app

import (
	"context"
	"fmt"
	"time"

	"quizhub-service/internal/domain"
	"quizhub-service/internal/ranking"
	"quizhub-service/internal/store"
)

// UserStats is the profile summary of a registered user.
type UserStats struct {
	UserID            int64          `json:"userId"`
	Username          string         `json:"username"`
	TotalAttempts     int            `json:"totalAttempts"`
	AveragePercentage float64        `json:"averagePercentage"`
	BestPercentage    float64        `json:"bestPercentage"`
	TotalPoints       int            `json:"totalPoints"`
	CurrentStreak     int            `json:"currentStreak"`
	GlobalRank        *int           `json:"globalRank,omitempty"`
	CountryRank       *int           `json:"countryRank,omitempty"`
	GlobalBadge       *ranking.Badge `json:"globalBadge,omitempty"`
	CountryBadge      *ranking.Badge `json:"countryBadge,omitempty"`
}

// LeaderboardService answers read queries over leaderboards and attempts.
type LeaderboardService struct {
	deps Deps
}

func NewLeaderboardService(deps Deps) *LeaderboardService {
	return &LeaderboardService{deps: deps.withDefaults()}
}

// TopN returns the first n entries of the board for scope. A board nobody has
// scored on yet is empty rather than missing. Quiz scopes are computed from
// completed attempts.
func (s *LeaderboardService) TopN(ctx context.Context, scope domain.Scope, n int) (domain.Standings, error) {
	if err := scope.Validate(); err != nil {
		return domain.Standings{}, err
	}
	if n <= 0 {
		n = s.deps.FeedSize
	}
	if scope.Type == domain.LeaderboardQuiz {
		quizID, _ := scope.KeyID()
		rankings, err := s.QuizRankings(ctx, quizID, n)
		if err != nil {
			return domain.Standings{}, err
		}
		return quizStandings(scope, rankings, s.deps.Clock()), nil
	}
	return topStandings(ctx, s.deps.Store, scope, n, s.deps.Clock())
}

// Snapshot returns the standings a new subscriber starts from: the latest
// published snapshot when one is available, otherwise the first page of the board.
func (s *LeaderboardService) Snapshot(ctx context.Context, scope domain.Scope) (domain.Standings, error) {
	if err := scope.Validate(); err != nil {
		return domain.Standings{}, err
	}
	if s.deps.Snapshots != nil && scope.Type != domain.LeaderboardQuiz {
		st, ok, err := s.deps.Snapshots.Latest(ctx, scope)
		if err != nil {
			s.deps.logger(ctx).WithError(err).WithField("scope", scope.String()).Warn("read latest standings")
		}
		s.deps.Metrics.CacheLookup("standings", ok)
		if ok {
			st.Entries = ranking.CurrentEntries(scope.Type, st.Entries, s.deps.Clock())
			return st, nil
		}
	}
	return s.TopN(ctx, scope, 0)
}

// Announce publishes the current standings of each scope to the notifier,
// for boards changed outside a submission such as the batch rebuild.
func (s *LeaderboardService) Announce(ctx context.Context, scopes []domain.Scope) {
	if s.deps.Notifier == nil {
		return
	}
	for _, scope := range scopes {
		st, err := topStandings(ctx, s.deps.Store, scope, s.deps.FeedSize, s.deps.Clock())
		if err != nil {
			s.deps.logger(ctx).WithError(err).WithField("scope", scope.String()).Warn("load standings for publish")
			continue
		}
		s.deps.Notifier.Publish(st)
	}
}

// QuizRankings ranks the completed attempts of a quiz and returns the first n
// (DefaultQuizTop when n <= 0). Results are cached until the next submission
// for that quiz.
func (s *LeaderboardService) QuizRankings(ctx context.Context, quizID int64, n int) ([]domain.QuizRanking, error) {
	if _, err := s.deps.Catalog.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultQuizTop
	}

	var version int64
	cacheable := s.deps.Rankings != nil
	if cacheable {
		cached, v, ok, err := s.deps.Rankings.Get(ctx, quizID)
		if err != nil {
			s.deps.logger(ctx).WithError(err).WithField("quiz_id", quizID).Warn("read quiz rankings cache")
			cacheable = false
		}
		s.deps.Metrics.CacheLookup("quiz_rankings", ok)
		if ok {
			return head(cached, n), nil
		}
		version = v
	}

	attempts, err := s.deps.Store.ListCompletedAttempts(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("list attempts of quiz %d: %w", quizID, err)
	}
	rankings := ranking.RankAttempts(attempts)
	names := newNameResolver(s.deps.Store)
	for i := range rankings {
		rankings[i].DisplayName = names.lookup(ctx, rankings[i].Owner)
	}

	if cacheable {
		if err := s.deps.Rankings.Set(ctx, quizID, version, rankings); err != nil {
			s.deps.logger(ctx).WithError(err).WithField("quiz_id", quizID).Warn("write quiz rankings cache")
		}
	}
	return head(rankings, n), nil
}

// UserStats summarizes a user's completed attempts, aggregate and batch ranks.
func (s *LeaderboardService) UserStats(ctx context.Context, userID int64) (UserStats, error) {
	user, err := s.deps.Store.GetUser(ctx, userID)
	if err != nil {
		return UserStats{}, err
	}
	stats, err := s.deps.Store.AttemptStats(ctx, userID, domain.AttemptFilter{})
	if err != nil {
		return UserStats{}, fmt.Errorf("attempt stats of user %d: %w", userID, err)
	}
	return UserStats{
		UserID:            user.ID,
		Username:          user.Username,
		TotalAttempts:     stats.Count,
		AveragePercentage: stats.AveragePercentage,
		BestPercentage:    stats.BestPercentage,
		TotalPoints:       user.Points,
		CurrentStreak:     user.StreakDays,
		GlobalRank:        user.GlobalRank,
		CountryRank:       user.CountryRank,
		GlobalBadge:       badge(user.GlobalRank),
		CountryBadge:      badge(user.CountryRank),
	}, nil
}

// RecentAttempts lists the owner's completed attempts, newest first.
func (s *LeaderboardService) RecentAttempts(ctx context.Context, owner domain.Owner, limit int) ([]domain.Attempt, error) {
	if !owner.Valid() {
		return nil, domain.ErrInvalidOwner
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return s.deps.Store.RecentAttempts(ctx, owner, limit)
}

func topStandings(ctx context.Context, repo store.Repository, scope domain.Scope, n int, now time.Time) (domain.Standings, error) {
	standings := domain.Standings{Scope: scope, Entries: []domain.LeaderboardEntry{}, UpdatedAt: now}
	board, err := repo.FindLeaderboard(ctx, scope)
	if isNotFound(err) {
		return standings, nil
	}
	if err != nil {
		return domain.Standings{}, err
	}
	// Periodic boards only expire entries on the next write, so filter on read.
	limit := n
	if _, periodic := ranking.WindowStart(scope.Type, now); periodic {
		limit = 0
	}
	entries, err := repo.TopEntries(ctx, board.ID, limit)
	if err != nil {
		return domain.Standings{}, fmt.Errorf("top entries of %s: %w", scope, err)
	}
	standings.Entries = head(ranking.CurrentEntries(scope.Type, entries, now), n)
	return standings, nil
}

func quizStandings(scope domain.Scope, rankings []domain.QuizRanking, now time.Time) domain.Standings {
	entries := make([]domain.LeaderboardEntry, len(rankings))
	for i, r := range rankings {
		entries[i] = domain.LeaderboardEntry{
			Owner:             r.Owner,
			DisplayName:       r.DisplayName,
			Score:             r.Score,
			Rank:              r.Rank,
			TotalQuizzes:      1,
			AveragePercentage: r.Percentage,
			UpdatedAt:         r.CompletedAt,
		}
	}
	return domain.Standings{Scope: scope, Entries: entries, UpdatedAt: now}
}

// badge decorates ranks in the top ten.
func badge(rank *int) *ranking.Badge {
	if rank == nil || *rank < 1 || *rank > 10 {
		return nil
	}
	b := ranking.BadgeFor(*rank)
	return &b
}

func head[T any](items []T, n int) []T {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}

type nameResolver struct {
	repo  store.Repository
	names map[domain.Owner]string
}

func newNameResolver(repo store.Repository) *nameResolver {
	return &nameResolver{repo: repo, names: make(map[domain.Owner]string)}
}

func (r *nameResolver) lookup(ctx context.Context, owner domain.Owner) string {
	if name, ok := r.names[owner]; ok {
		return name
	}
	var name string
	if id, ok := owner.UserID(); ok {
		if u, err := r.repo.GetUser(ctx, id); err == nil {
			name = u.Username
		}
	} else if id, ok := owner.GuestID(); ok {
		if g, err := r.repo.GetGuest(ctx, id); err == nil {
			name = g.DisplayName
		}
	}
	r.names[owner] = name
	return name
}
