package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LeaderboardType string

const (
	LeaderboardGlobal   LeaderboardType = "global"
	LeaderboardCategory LeaderboardType = "category"
	LeaderboardQuiz     LeaderboardType = "quiz"
	LeaderboardDaily    LeaderboardType = "daily"
	LeaderboardWeekly   LeaderboardType = "weekly"
	LeaderboardMonthly  LeaderboardType = "monthly"
	LeaderboardCountry  LeaderboardType = "country"
)

// RequiresKey reports whether boards of this type are keyed by a category, quiz or country.
func (t LeaderboardType) RequiresKey() bool {
	switch t {
	case LeaderboardCategory, LeaderboardQuiz, LeaderboardCountry:
		return true
	}
	return false
}

// Periodic reports whether the type covers a calendar window.
func (t LeaderboardType) Periodic() bool {
	switch t {
	case LeaderboardDaily, LeaderboardWeekly, LeaderboardMonthly:
		return true
	}
	return false
}

func (t LeaderboardType) valid() bool {
	switch t {
	case LeaderboardGlobal, LeaderboardCategory, LeaderboardQuiz, LeaderboardDaily,
		LeaderboardWeekly, LeaderboardMonthly, LeaderboardCountry:
		return true
	}
	return false
}

// Scope identifies one leaderboard: a type plus the key it requires, if any.
type Scope struct {
	Type LeaderboardType `json:"type"`
	Key  string          `json:"key,omitempty"`
}

func GlobalScope() Scope { return Scope{Type: LeaderboardGlobal} }
func PeriodScope(t LeaderboardType) Scope { return Scope{Type: t} }
func CategoryScope(categoryID int64) Scope { return Scope{Type: LeaderboardCategory, Key: strconv.FormatInt(categoryID, 10)} }
func QuizScope(quizID int64) Scope { return Scope{Type: LeaderboardQuiz, Key: strconv.FormatInt(quizID, 10)} }
func CountryScope(code string) Scope { return Scope{Type: LeaderboardCountry, Key: strings.ToUpper(code)} }

// NewScope builds and validates a scope from request input.
func NewScope(t LeaderboardType, key string) (Scope, error) {
	s := Scope{Type: t, Key: strings.TrimSpace(key)}
	if t == LeaderboardCountry {
		s.Key = strings.ToUpper(s.Key)
	}
	return s, s.Validate()
}

// Validate enforces that the key is present iff the type requires one.
func (s Scope) Validate() error {
	if !s.Type.valid() {
		return fmt.Errorf("unknown type %q: %w", s.Type, ErrInvalidScope)
	}
	if s.Type.RequiresKey() && s.Key == "" {
		return fmt.Errorf("%s board requires a key: %w", s.Type, ErrInvalidScope)
	}
	if !s.Type.RequiresKey() && s.Key != "" {
		return fmt.Errorf("%s board takes no key: %w", s.Type, ErrInvalidScope)
	}
	switch s.Type {
	case LeaderboardCategory, LeaderboardQuiz:
		if _, err := strconv.ParseInt(s.Key, 10, 64); err != nil {
			return fmt.Errorf("%s key %q is not an id: %w", s.Type, s.Key, ErrInvalidScope)
		}
	case LeaderboardCountry:
		if len(s.Key) != 2 {
			return fmt.Errorf("country key %q is not a two letter code: %w", s.Key, ErrInvalidScope)
		}
	}
	return nil
}

// KeyID returns the numeric key of category and quiz scopes.
func (s Scope) KeyID() (int64, bool) {
	if s.Type != LeaderboardCategory && s.Type != LeaderboardQuiz {
		return 0, false
	}
	id, err := strconv.ParseInt(s.Key, 10, 64)
	return id, err == nil
}

func (s Scope) String() string {
	if s.Key == "" {
		return string(s.Type)
	}
	return string(s.Type) + ":" + s.Key
}

// Leaderboard is the long-lived singleton for one scope.
type Leaderboard struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Scope     Scope     `json:"scope"`
	CreatedAt time.Time `json:"createdAt"`
}

// LeaderboardEntry is a derived, recomputable projection of an owner's aggregate
// onto one leaderboard. It is never the system of record for score.
type LeaderboardEntry struct {
	ID                int64     `json:"id"`
	LeaderboardID     int64     `json:"leaderboardId"`
	Owner             Owner     `json:"owner"`
	DisplayName       string    `json:"displayName,omitempty"`
	Score             int       `json:"score"`
	Rank              int       `json:"rank"`
	TotalQuizzes      int       `json:"totalQuizzes"`
	AveragePercentage float64   `json:"averagePercentage"`
	BestStreak        int       `json:"bestStreak"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Standings is a ranked snapshot of a leaderboard published to subscribers.
type Standings struct {
	Scope     Scope              `json:"scope"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
