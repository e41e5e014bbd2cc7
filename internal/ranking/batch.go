package ranking

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"quizhub-service/internal/domain"
	"quizhub-service/internal/store"
)

// Report summarizes one batch rank rebuild.
type Report struct {
	UsersRanked  int `json:"usersRanked"`
	UsersSkipped int `json:"usersSkipped"`
	Countries    int `json:"countries"`
	// Boards lists the boards that were rebuilt, global first.
	Boards []domain.Scope `json:"boards,omitempty"`
}

// RecomputeAllUserRanks re-ranks global_rank and country_rank on every active
// user by (points, streak) and rebuilds the global and per-country boards from
// scratch. Malformed users are logged and skipped. Each board is replaced in
// its own transaction, so rerunning the job is safe and it does not block
// per-attempt updates to other boards.
func (e *Engine) RecomputeAllUserRanks(ctx context.Context, st store.Store) (Report, error) {
	var report Report

	users, err := st.ListActiveUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("list active users: %w", err)
	}

	valid := make([]domain.User, 0, len(users))
	for _, u := range users {
		if err := checkUser(u); err != nil {
			e.log.WithError(err).WithField("user_id", u.ID).Warn("skipping malformed user in rank rebuild")
			report.UsersSkipped++
			continue
		}
		u.Country = strings.ToUpper(u.Country)
		valid = append(valid, u)
	}
	sortUsers(valid)

	ranks := make([]domain.UserRank, len(valid))
	byCountry := make(map[string][]domain.User)
	for i, u := range valid {
		ranks[i] = domain.UserRank{UserID: u.ID, GlobalRank: i + 1}
		if u.Country != "" {
			byCountry[u.Country] = append(byCountry[u.Country], u)
			r := len(byCountry[u.Country])
			ranks[i].CountryRank = &r
		}
	}

	if err := st.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		return repo.SaveUserRanks(ctx, ranks)
	}); err != nil {
		return report, fmt.Errorf("save user ranks: %w", err)
	}

	global := Target{Scope: domain.GlobalScope(), Name: BoardName(domain.GlobalScope(), "")}
	if err := e.rebuildBoard(ctx, st, global, valid, e.globalTop); err != nil {
		return report, err
	}
	report.Boards = append(report.Boards, global.Scope)

	codes := make([]string, 0, len(byCountry))
	for code := range byCountry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		members := byCountry[code]
		scope := domain.CountryScope(code)
		label := members[0].CountryName
		if label == "" {
			label = code
		}
		if err := e.rebuildBoard(ctx, st, Target{Scope: scope, Name: BoardName(scope, label)}, members, e.countryTop); err != nil {
			return report, err
		}
		report.Boards = append(report.Boards, scope)
	}

	report.UsersRanked = len(valid)
	report.Countries = len(codes)
	e.metrics.BatchFinished(report.UsersRanked, report.UsersSkipped)
	e.log.WithFields(logrus.Fields{
		"users_ranked":  report.UsersRanked,
		"users_skipped": report.UsersSkipped,
		"countries":     report.Countries,
	}).Info("user rankings rebuilt")
	return report, nil
}

// rebuildBoard replaces the board's entries with the first limit users, which
// must already be in rank order.
func (e *Engine) rebuildBoard(ctx context.Context, tx store.Transactor, target Target, users []domain.User, limit int) error {
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	err := tx.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		board, err := repo.GetOrCreateLeaderboard(ctx, target.Scope, target.Name)
		if err != nil {
			return err
		}
		now := e.now()
		entries := make([]domain.LeaderboardEntry, 0, len(users))
		for i, u := range users {
			stats, err := repo.AttemptStats(ctx, u.ID, domain.AttemptFilter{})
			if err != nil {
				return err
			}
			entries = append(entries, domain.LeaderboardEntry{
				LeaderboardID:     board.ID,
				Owner:             domain.UserOwner(u.ID),
				Score:             u.Points,
				Rank:              i + 1,
				TotalQuizzes:      stats.Count,
				AveragePercentage: stats.AveragePercentage,
				BestStreak:        u.StreakDays,
				UpdatedAt:         now,
			})
		}
		return repo.ReplaceEntries(ctx, board.ID, entries)
	})
	if err != nil {
		return fmt.Errorf("rebuild %s: %w", target.Scope, err)
	}
	return nil
}

func checkUser(u domain.User) error {
	if u.ID <= 0 {
		return fmt.Errorf("user id %d: %w", u.ID, domain.ErrContractViolation)
	}
	if u.Points < 0 {
		return fmt.Errorf("negative points %d: %w", u.Points, domain.ErrContractViolation)
	}
	if u.StreakDays < 0 {
		return fmt.Errorf("negative streak %d: %w", u.StreakDays, domain.ErrContractViolation)
	}
	if u.Country != "" && len(u.Country) != 2 {
		return fmt.Errorf("country code %q: %w", u.Country, domain.ErrContractViolation)
	}
	return nil
}
