package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizhub-service/internal/domain"
)

// QuizLoader reads the graded catalog (quiz, approved questions, options) from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

const (
	selectQuizSQL = `
SELECT q.id, q.title, q.category_id, coalesce(c.name, ''), q.time_limit, q.max_questions
FROM quizzes q
LEFT JOIN categories c ON c.id = q.category_id
WHERE q.id = $1 AND q.is_active`

	selectOptionsSQL = `
SELECT qs.id, qs.text, o.id, o.text, o.is_correct
FROM questions qs
JOIN answer_options o ON o.question_id = qs.id
WHERE qs.quiz_id = $1 AND qs.is_approved
ORDER BY qs.position, qs.id, o.position, o.id`
)

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := l.pool.QueryRow(ctx, selectQuizSQL, quizID).Scan(
		&quiz.ID, &quiz.Title, &quiz.CategoryID, &quiz.CategoryName, &quiz.TimeLimit, &quiz.MaxQuestions,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := l.pool.Query(ctx, selectOptionsSQL, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			questionID int64
			text       string
			opt        domain.Option
		)
		if err := rows.Scan(&questionID, &text, &opt.ID, &opt.Text, &opt.Correct); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		n := len(quiz.Questions)
		if n == 0 || quiz.Questions[n-1].ID != questionID {
			quiz.Questions = append(quiz.Questions, domain.Question{ID: questionID, Text: text})
			n++
		}
		quiz.Questions[n-1].Options = append(quiz.Questions[n-1].Options, opt)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	return quiz, nil
}
