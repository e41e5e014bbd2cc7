package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quizhub-service/internal/domain"
	"quizhub-service/internal/store"
)

// Open connects bun to Postgres through pgdriver.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// Store implements store.Store on Postgres. Outside WithinTx every call runs
// in its own implicit transaction.
type Store struct {
	*repo
	db *bun.DB
}

var _ store.Store = (*Store)(nil)

func NewStore(db *bun.DB) *Store {
	return &Store{repo: &repo{db: db, now: time.Now}, db: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo store.Repository) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &repo{db: tx, now: s.repo.now})
	})
}

type repo struct {
	db  bun.IDB
	now func() time.Time
}

func (r *repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	m := new(userModel)
	if err := r.db.NewSelect().Model(m).Where("u.id = ?", id).Scan(ctx); err != nil {
		return domain.User{}, notFound(err, domain.ErrUserNotFound)
	}
	return m.toDomain(), nil
}

func (r *repo) GetGuest(ctx context.Context, id int64) (domain.Guest, error) {
	m := new(guestModel)
	if err := r.db.NewSelect().Model(m).Where("g.id = ?", id).Scan(ctx); err != nil {
		return domain.Guest{}, notFound(err, domain.ErrGuestNotFound)
	}
	return domain.Guest{ID: m.ID, SessionID: m.SessionID, DisplayName: m.DisplayName}, nil
}

func (r *repo) SaveUserProgress(ctx context.Context, u domain.User) error {
	m := &userModel{ID: u.ID, Points: u.Points, StreakDays: u.StreakDays, LastStreakDate: u.LastStreakDate}
	res, err := r.db.NewUpdate().Model(m).
		Column("points", "streak_days", "last_streak_date").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	return requireRow(res, domain.ErrUserNotFound)
}

func (r *repo) ListActiveUsers(ctx context.Context) ([]domain.User, error) {
	var models []userModel
	err := r.db.NewSelect().Model(&models).
		Where("u.status = ?", string(domain.UserActive)).
		Order("u.id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, len(models))
	for i, m := range models {
		users[i] = m.toDomain()
	}
	return users, nil
}

func (r *repo) SaveUserRanks(ctx context.Context, ranks []domain.UserRank) error {
	for _, rk := range ranks {
		_, err := r.db.NewUpdate().Model((*userModel)(nil)).
			Set("global_rank = ?", rk.GlobalRank).
			Set("country_rank = ?", rk.CountryRank).
			Where("id = ?", rk.UserID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("rank user %d: %w", rk.UserID, err)
		}
	}
	return nil
}

func (r *repo) CreateAttempt(ctx context.Context, a domain.Attempt) error {
	_, err := r.db.NewInsert().Model(newAttemptModel(a)).Exec(ctx)
	return constraint(err, domain.ErrContractViolation)
}

func (r *repo) GetAttempt(ctx context.Context, id uuid.UUID) (domain.Attempt, error) {
	return r.selectAttempt(ctx, id, false)
}

func (r *repo) LockAttempt(ctx context.Context, id uuid.UUID) (domain.Attempt, error) {
	return r.selectAttempt(ctx, id, true)
}

func (r *repo) selectAttempt(ctx context.Context, id uuid.UUID, lock bool) (domain.Attempt, error) {
	m := new(attemptModel)
	q := r.db.NewSelect().Model(m).Where("a.id = ?", id)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.Attempt{}, notFound(err, domain.ErrAttemptNotFound)
	}
	return m.toDomain()
}

func (r *repo) FinishAttempt(ctx context.Context, a domain.Attempt, answers []domain.Answer) error {
	res, err := r.db.NewUpdate().Model(newAttemptModel(a)).
		Column("correct_answers", "time_taken", "percentage", "score", "status", "completed_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update attempt %s: %w", a.ID, err)
	}
	if err := requireRow(res, domain.ErrAttemptNotFound); err != nil {
		return err
	}
	if len(answers) == 0 {
		return nil
	}

	models := make([]answerModel, len(answers))
	for i, ans := range answers {
		models[i] = answerModel{AttemptID: a.ID, QuestionID: ans.QuestionID, OptionID: ans.OptionID, IsCorrect: ans.IsCorrect}
	}
	_, err = r.db.NewInsert().Model(&models).Exec(ctx)
	return constraint(err, domain.ErrDuplicateAnswer)
}

func (r *repo) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]domain.Answer, error) {
	var models []answerModel
	if err := r.db.NewSelect().Model(&models).Where("aa.attempt_id = ?", attemptID).Order("aa.question_id").Scan(ctx); err != nil {
		return nil, err
	}
	answers := make([]domain.Answer, len(models))
	for i, m := range models {
		answers[i] = domain.Answer{AttemptID: m.AttemptID, QuestionID: m.QuestionID, OptionID: m.OptionID, IsCorrect: m.IsCorrect}
	}
	return answers, nil
}

func (r *repo) AttemptStats(ctx context.Context, userID int64, f domain.AttemptFilter) (domain.AttemptStats, error) {
	var stats domain.AttemptStats
	q := r.db.NewSelect().
		TableExpr("quiz_attempts AS a").
		ColumnExpr("count(*)").
		ColumnExpr("coalesce(avg(a.percentage), 0)").
		ColumnExpr("coalesce(max(a.percentage), 0)").
		ColumnExpr("coalesce(sum(a.score), 0)").
		Where("a.owner_kind = ?", domain.OwnerUser.String()).
		Where("a.owner_id = ?", userID).
		Where("a.status = ?", string(domain.AttemptCompleted))
	if f.CategoryID != nil {
		q = q.Where("a.category_id = ?", *f.CategoryID)
	}
	if f.Since != nil {
		q = q.Where("a.completed_at >= ?", *f.Since)
	}
	err := q.Scan(ctx, &stats.Count, &stats.AveragePercentage, &stats.BestPercentage, &stats.TotalScore)
	return stats, err
}

func (r *repo) ListCompletedAttempts(ctx context.Context, quizID int64) ([]domain.Attempt, error) {
	var models []attemptModel
	err := r.db.NewSelect().Model(&models).
		Where("a.quiz_id = ?", quizID).
		Where("a.status = ?", string(domain.AttemptCompleted)).
		Order("a.started_at", "a.id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return attemptsToDomain(models)
}

func (r *repo) RecentAttempts(ctx context.Context, owner domain.Owner, limit int) ([]domain.Attempt, error) {
	var models []attemptModel
	q := r.db.NewSelect().Model(&models).
		Where("a.owner_kind = ?", owner.Kind().String()).
		Where("a.owner_id = ?", owner.ID()).
		Where("a.status = ?", string(domain.AttemptCompleted)).
		OrderExpr("a.completed_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return attemptsToDomain(models)
}

// GetOrCreateLeaderboard also locks the board row, so writers re-ranking the
// same board queue behind each other until commit.
func (r *repo) GetOrCreateLeaderboard(ctx context.Context, scope domain.Scope, name string) (domain.Leaderboard, error) {
	m := &leaderboardModel{Name: name, Type: string(scope.Type), ScopeKey: scope.Key, CreatedAt: r.now()}
	_, err := r.db.NewInsert().Model(m).
		On("CONFLICT (type, scope_key) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return r.selectLeaderboard(ctx, scope, true)
}

func (r *repo) FindLeaderboard(ctx context.Context, scope domain.Scope) (domain.Leaderboard, error) {
	return r.selectLeaderboard(ctx, scope, false)
}

func (r *repo) selectLeaderboard(ctx context.Context, scope domain.Scope, lock bool) (domain.Leaderboard, error) {
	m := new(leaderboardModel)
	q := r.db.NewSelect().Model(m).
		Where("l.type = ?", string(scope.Type)).
		Where("l.scope_key = ?", scope.Key)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return domain.Leaderboard{}, notFound(err, domain.ErrLeaderboardNotFound)
	}
	return m.toDomain(), nil
}

func (r *repo) FindEntry(ctx context.Context, leaderboardID int64, owner domain.Owner) (domain.LeaderboardEntry, error) {
	m := new(entryModel)
	err := r.db.NewSelect().Model(m).
		Where("e.leaderboard_id = ?", leaderboardID).
		Where("e.owner_kind = ?", owner.Kind().String()).
		Where("e.owner_id = ?", owner.ID()).
		Scan(ctx)
	if err != nil {
		return domain.LeaderboardEntry{}, notFound(err, domain.ErrEntryNotFound)
	}
	return m.toDomain()
}

func (r *repo) SaveEntry(ctx context.Context, e *domain.LeaderboardEntry) error {
	m := newEntryModel(*e)
	if e.ID == 0 {
		if _, err := r.db.NewInsert().Model(m).Returning("id").Exec(ctx); err != nil {
			return constraint(err, domain.ErrContractViolation)
		}
		e.ID = m.ID
		return nil
	}
	res, err := r.db.NewUpdate().Model(m).
		Column("score", "rank", "total_quizzes", "average_percentage", "best_streak", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, domain.ErrEntryNotFound)
}

func (r *repo) ListEntries(ctx context.Context, leaderboardID int64) ([]domain.LeaderboardEntry, error) {
	var models []entryModel
	if err := r.db.NewSelect().Model(&models).Where("e.leaderboard_id = ?", leaderboardID).Order("e.id").Scan(ctx); err != nil {
		return nil, err
	}
	return entriesToDomain(models)
}

func (r *repo) TopEntries(ctx context.Context, leaderboardID int64, limit int) ([]domain.LeaderboardEntry, error) {
	var models []entryModel
	q := r.db.NewSelect().Model(&models).
		ColumnExpr("e.*").
		ColumnExpr("coalesce(u.username, g.display_name, '') AS display_name").
		Join("LEFT JOIN users AS u ON e.owner_kind = 'user' AND u.id = e.owner_id").
		Join("LEFT JOIN guests AS g ON e.owner_kind = 'guest' AND g.id = e.owner_id").
		Where("e.leaderboard_id = ?", leaderboardID).
		OrderExpr("e.rank ASC, e.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return entriesToDomain(models)
}

func (r *repo) SetRanks(ctx context.Context, leaderboardID int64, ranks map[int64]int) error {
	for id, rank := range ranks {
		_, err := r.db.NewUpdate().Model((*entryModel)(nil)).
			Set("rank = ?", rank).
			Where("id = ?", id).
			Where("leaderboard_id = ?", leaderboardID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("rank entry %d: %w", id, err)
		}
	}
	return nil
}

func (r *repo) DeleteEntries(ctx context.Context, leaderboardID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.NewDelete().Model((*entryModel)(nil)).
		Where("leaderboard_id = ?", leaderboardID).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

func (r *repo) ReplaceEntries(ctx context.Context, leaderboardID int64, entries []domain.LeaderboardEntry) error {
	if _, err := r.db.NewDelete().Model((*entryModel)(nil)).Where("leaderboard_id = ?", leaderboardID).Exec(ctx); err != nil {
		return fmt.Errorf("clear leaderboard %d: %w", leaderboardID, err)
	}
	if len(entries) == 0 {
		return nil
	}
	models := make([]*entryModel, len(entries))
	for i, e := range entries {
		e.ID = 0
		e.LeaderboardID = leaderboardID
		models[i] = newEntryModel(e)
	}
	_, err := r.db.NewInsert().Model(&models).Exec(ctx)
	return constraint(err, domain.ErrContractViolation)
}

func notFound(err, target error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return target
	}
	return err
}

func requireRow(res sql.Result, target error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return target
	}
	return nil
}

// constraint maps unique and check violations to a domain kind.
func constraint(err, kind error) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
		return fmt.Errorf("%s: %w", pgErr.Field('M'), kind)
	}
	return err
}
