package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"quizhub-service/internal/domain"
)

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             int64      `bun:"id,pk,autoincrement"`
	Username       string     `bun:"username,notnull"`
	Status         string     `bun:"status,notnull"`
	Points         int        `bun:"points,notnull"`
	StreakDays     int        `bun:"streak_days,notnull"`
	LastStreakDate *time.Time `bun:"last_streak_date,type:date"`
	Country        string     `bun:"country,nullzero"`
	CountryName    string     `bun:"country_name,notnull"`
	GlobalRank     *int       `bun:"global_rank"`
	CountryRank    *int       `bun:"country_rank"`
}

func (m userModel) toDomain() domain.User {
	return domain.User{
		ID:             m.ID,
		Username:       m.Username,
		Status:         domain.UserStatus(m.Status),
		Points:         m.Points,
		StreakDays:     m.StreakDays,
		LastStreakDate: m.LastStreakDate,
		Country:        m.Country,
		CountryName:    m.CountryName,
		GlobalRank:     m.GlobalRank,
		CountryRank:    m.CountryRank,
	}
}

type guestModel struct {
	bun.BaseModel `bun:"table:guests,alias:g"`

	ID          int64  `bun:"id,pk,autoincrement"`
	SessionID   string `bun:"session_id,notnull"`
	DisplayName string `bun:"display_name,notnull"`
}

type attemptModel struct {
	bun.BaseModel `bun:"table:quiz_attempts,alias:a"`

	ID             uuid.UUID  `bun:"id,pk,type:uuid"`
	QuizID         int64      `bun:"quiz_id,notnull"`
	CategoryID     *int64     `bun:"category_id"`
	TimeLimit      *int       `bun:"time_limit"`
	OwnerKind      string     `bun:"owner_kind,notnull"`
	OwnerID        int64      `bun:"owner_id,notnull"`
	TotalQuestions int        `bun:"total_questions,notnull"`
	CorrectAnswers int        `bun:"correct_answers,notnull"`
	TimeTaken      *int       `bun:"time_taken"`
	Percentage     float64    `bun:"percentage,notnull"`
	Score          int        `bun:"score,notnull"`
	Status         string     `bun:"status,notnull"`
	StartedAt      time.Time  `bun:"started_at,notnull"`
	CompletedAt    *time.Time `bun:"completed_at"`
}

func newAttemptModel(a domain.Attempt) *attemptModel {
	return &attemptModel{
		ID:             a.ID,
		QuizID:         a.QuizID,
		CategoryID:     a.CategoryID,
		TimeLimit:      a.TimeLimit,
		OwnerKind:      a.Owner.Kind().String(),
		OwnerID:        a.Owner.ID(),
		TotalQuestions: a.TotalQuestions,
		CorrectAnswers: a.CorrectAnswers,
		TimeTaken:      a.TimeTaken,
		Percentage:     a.Percentage,
		Score:          a.Score,
		Status:         string(a.Status),
		StartedAt:      a.StartedAt,
		CompletedAt:    a.CompletedAt,
	}
}

func (m attemptModel) toDomain() (domain.Attempt, error) {
	owner, err := domain.OwnerOf(m.OwnerKind, m.OwnerID)
	if err != nil {
		return domain.Attempt{}, err
	}
	return domain.Attempt{
		ID:             m.ID,
		QuizID:         m.QuizID,
		CategoryID:     m.CategoryID,
		TimeLimit:      m.TimeLimit,
		Owner:          owner,
		TotalQuestions: m.TotalQuestions,
		CorrectAnswers: m.CorrectAnswers,
		TimeTaken:      m.TimeTaken,
		Percentage:     m.Percentage,
		Score:          m.Score,
		Status:         domain.AttemptStatus(m.Status),
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
	}, nil
}

type answerModel struct {
	bun.BaseModel `bun:"table:attempt_answers,alias:aa"`

	AttemptID  uuid.UUID `bun:"attempt_id,pk,type:uuid"`
	QuestionID int64     `bun:"question_id,pk"`
	OptionID   *int64    `bun:"option_id"`
	IsCorrect  bool      `bun:"is_correct,notnull"`
}

type leaderboardModel struct {
	bun.BaseModel `bun:"table:leaderboards,alias:l"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Name      string    `bun:"name,notnull"`
	Type      string    `bun:"type,notnull"`
	ScopeKey  string    `bun:"scope_key,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (m leaderboardModel) toDomain() domain.Leaderboard {
	return domain.Leaderboard{
		ID:        m.ID,
		Name:      m.Name,
		Scope:     domain.Scope{Type: domain.LeaderboardType(m.Type), Key: m.ScopeKey},
		CreatedAt: m.CreatedAt,
	}
}

type entryModel struct {
	bun.BaseModel `bun:"table:leaderboard_entries,alias:e"`

	ID                int64     `bun:"id,pk,autoincrement"`
	LeaderboardID     int64     `bun:"leaderboard_id,notnull"`
	OwnerKind         string    `bun:"owner_kind,notnull"`
	OwnerID           int64     `bun:"owner_id,notnull"`
	Score             int       `bun:"score,notnull"`
	Rank              int       `bun:"rank,notnull"`
	TotalQuizzes      int       `bun:"total_quizzes,notnull"`
	AveragePercentage float64   `bun:"average_percentage,notnull"`
	BestStreak        int       `bun:"best_streak,notnull"`
	UpdatedAt         time.Time `bun:"updated_at,notnull"`
	DisplayName       string    `bun:"display_name,scanonly"`
}

func newEntryModel(e domain.LeaderboardEntry) *entryModel {
	return &entryModel{
		ID:                e.ID,
		LeaderboardID:     e.LeaderboardID,
		OwnerKind:         e.Owner.Kind().String(),
		OwnerID:           e.Owner.ID(),
		Score:             e.Score,
		Rank:              e.Rank,
		TotalQuizzes:      e.TotalQuizzes,
		AveragePercentage: e.AveragePercentage,
		BestStreak:        e.BestStreak,
		UpdatedAt:         e.UpdatedAt,
	}
}

func (m entryModel) toDomain() (domain.LeaderboardEntry, error) {
	owner, err := domain.OwnerOf(m.OwnerKind, m.OwnerID)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	return domain.LeaderboardEntry{
		ID:                m.ID,
		LeaderboardID:     m.LeaderboardID,
		Owner:             owner,
		DisplayName:       m.DisplayName,
		Score:             m.Score,
		Rank:              m.Rank,
		TotalQuizzes:      m.TotalQuizzes,
		AveragePercentage: m.AveragePercentage,
		BestStreak:        m.BestStreak,
		UpdatedAt:         m.UpdatedAt,
	}, nil
}

func entriesToDomain(models []entryModel) ([]domain.LeaderboardEntry, error) {
	out := make([]domain.LeaderboardEntry, 0, len(models))
	for _, m := range models {
		e, err := m.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func attemptsToDomain(models []attemptModel) ([]domain.Attempt, error) {
	out := make([]domain.Attempt, 0, len(models))
	for _, m := range models {
		a, err := m.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
