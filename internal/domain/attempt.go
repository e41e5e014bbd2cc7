package domain

import (
	"time"

	"github.com/google/uuid"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// Attempt is one playthrough of a quiz by one owner. Percentage and Score are
// only meaningful once Status is AttemptCompleted and never change afterwards.
type Attempt struct {
	ID             uuid.UUID     `json:"id"`
	QuizID         int64         `json:"quizId"`
	CategoryID     *int64        `json:"categoryId,omitempty"`
	TimeLimit      *int          `json:"timeLimit,omitempty"`
	Owner          Owner         `json:"owner"`
	TotalQuestions int           `json:"totalQuestions"`
	CorrectAnswers int           `json:"correctAnswers"`
	TimeTaken      *int          `json:"timeTaken,omitempty"`
	Percentage     float64       `json:"percentage"`
	Score          int           `json:"score"`
	Status         AttemptStatus `json:"status"`
	StartedAt      time.Time     `json:"startedAt"`
	CompletedAt    *time.Time    `json:"completedAt,omitempty"`
}

// Answer is the graded answer to one question of an attempt.
type Answer struct {
	AttemptID  uuid.UUID `json:"attemptId"`
	QuestionID int64     `json:"questionId"`
	OptionID   *int64    `json:"optionId,omitempty"`
	IsCorrect  bool      `json:"isCorrect"`
}

// AnswerSubmission is what a player sends for one question; a nil OptionID is a skipped question.
type AnswerSubmission struct {
	QuestionID int64  `json:"questionId"`
	OptionID   *int64 `json:"optionId,omitempty"`
}

// AttemptFilter narrows attempt statistics to a leaderboard's selection.
type AttemptFilter struct {
	CategoryID *int64
	Since      *time.Time
}

// AttemptStats aggregates the completed attempts of one user.
type AttemptStats struct {
	Count             int
	AveragePercentage float64
	BestPercentage    float64
	TotalScore        int
}

// QuizRanking is an ephemeral, on-the-fly rank of a completed attempt within a quiz.
type QuizRanking struct {
	Rank        int       `json:"rank"`
	AttemptID   uuid.UUID `json:"attemptId"`
	Owner       Owner     `json:"owner"`
	DisplayName string    `json:"displayName,omitempty"`
	Score       int       `json:"score"`
	Percentage  float64   `json:"percentage"`
	TimeTaken   *int      `json:"timeTaken,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}
