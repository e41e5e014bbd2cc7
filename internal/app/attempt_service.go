package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quizhub-service/internal/domain"
	"quizhub-service/internal/ranking"
	"quizhub-service/internal/scoring"
	"quizhub-service/internal/store"
	"quizhub-service/internal/streak"
)

// Submission is the complete answer set of an attempt, sent once.
type Submission struct {
	Answers   []domain.AnswerSubmission `json:"answers"`
	TimeTaken *int                      `json:"timeTaken,omitempty"` // seconds
}

// AttemptDetail is an attempt with its graded answers.
type AttemptDetail struct {
	domain.Attempt
	Answers []domain.Answer `json:"answers"`
}

// AttemptService owns the attempt lifecycle: start, one submission, abandon.
type AttemptService struct {
	deps Deps
}

func NewAttemptService(deps Deps) *AttemptService {
	return &AttemptService{deps: deps.withDefaults()}
}

// Start opens an in-progress attempt for owner. The question count, category
// and time limit are fixed from the quiz as it is now.
func (s *AttemptService) Start(ctx context.Context, quizID int64, owner domain.Owner) (domain.Attempt, error) {
	if !owner.Valid() {
		return domain.Attempt{}, domain.ErrInvalidOwner
	}
	quiz, err := s.deps.Catalog.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}
	total := quiz.QuestionCount()
	if total == 0 {
		return domain.Attempt{}, fmt.Errorf("quiz %d: %w", quizID, domain.ErrNoQuestions)
	}
	if err := s.ownerExists(ctx, s.deps.Store, owner); err != nil {
		return domain.Attempt{}, err
	}

	attempt := domain.Attempt{
		ID:             uuid.New(),
		QuizID:         quiz.ID,
		CategoryID:     quiz.CategoryID,
		TimeLimit:      quiz.TimeLimit,
		Owner:          owner,
		TotalQuestions: total,
		Status:         domain.AttemptInProgress,
		StartedAt:      s.deps.Clock(),
	}
	if err := s.deps.Store.CreateAttempt(ctx, attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("create attempt: %w", err)
	}
	s.deps.logger(ctx).WithFields(logrus.Fields{
		"attempt_id": attempt.ID,
		"quiz_id":    quizID,
		"owner":      owner.String(),
	}).Debug("attempt started")
	return attempt, nil
}

// Submit grades sub against the quiz, completes the attempt and, for a
// registered owner, credits points, touches the streak and updates every
// leaderboard the attempt affects. Nothing is written unless all of it succeeds.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, sub Submission) (domain.Attempt, error) {
	var (
		completed domain.Attempt
		targets   []ranking.Target
	)
	err := s.deps.Store.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		attempt, err := repo.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != domain.AttemptInProgress {
			return fmt.Errorf("attempt %s is %s: %w", attempt.ID, attempt.Status, domain.ErrAttemptNotInProgress)
		}
		quiz, err := s.deps.Catalog.GetQuiz(ctx, attempt.QuizID)
		if err != nil {
			return err
		}

		answers, correct, err := grade(attempt, quiz, sub.Answers)
		if err != nil {
			return err
		}
		result, err := s.deps.Rules.Calculate(scoring.Input{
			CorrectAnswers: correct,
			TotalQuestions: attempt.TotalQuestions,
			TimeTaken:      sub.TimeTaken,
			TimeLimit:      attempt.TimeLimit,
		})
		if err != nil {
			return err
		}

		now := s.deps.Clock()
		attempt.CorrectAnswers = correct
		attempt.TimeTaken = sub.TimeTaken
		attempt.Percentage = result.Percentage
		attempt.Score = result.Score
		attempt.Status = domain.AttemptCompleted
		attempt.CompletedAt = &now
		if err := repo.FinishAttempt(ctx, attempt, answers); err != nil {
			return fmt.Errorf("finish attempt: %w", err)
		}
		completed = attempt

		userID, registered := attempt.Owner.UserID()
		if !registered {
			return nil
		}
		user, err := repo.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		user.Points += result.Score
		streak.Touch(&user, now)
		if err := repo.SaveUserProgress(ctx, user); err != nil {
			return fmt.Errorf("save user progress: %w", err)
		}

		targets = ranking.Targets(attempt, quiz.CategoryName)
		for _, target := range targets {
			if _, err := s.deps.Engine.UpdateEntryForUser(ctx, repo, target, user, attempt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.deps.Metrics.SubmitRejected(err)
		s.deps.logger(ctx).WithError(err).WithField("attempt_id", attemptID).Warn("attempt submission rejected")
		return domain.Attempt{}, err
	}

	s.afterSubmit(ctx, completed, targets)
	return completed, nil
}

// Abandon moves an in-progress attempt to abandoned.
func (s *AttemptService) Abandon(ctx context.Context, attemptID uuid.UUID) (domain.Attempt, error) {
	var abandoned domain.Attempt
	err := s.deps.Store.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		attempt, err := repo.LockAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != domain.AttemptInProgress {
			return fmt.Errorf("attempt %s is %s: %w", attempt.ID, attempt.Status, domain.ErrAttemptNotInProgress)
		}
		attempt.Status = domain.AttemptAbandoned
		if err := repo.FinishAttempt(ctx, attempt, nil); err != nil {
			return err
		}
		abandoned = attempt
		return nil
	})
	if err != nil {
		return domain.Attempt{}, err
	}
	return abandoned, nil
}

// Get returns the attempt with the answers graded at submission; an attempt
// still in progress or abandoned has none.
func (s *AttemptService) Get(ctx context.Context, attemptID uuid.UUID) (AttemptDetail, error) {
	attempt, err := s.deps.Store.GetAttempt(ctx, attemptID)
	if err != nil {
		return AttemptDetail{}, err
	}
	answers, err := s.deps.Store.ListAnswers(ctx, attemptID)
	if err != nil {
		return AttemptDetail{}, fmt.Errorf("list answers of attempt %s: %w", attemptID, err)
	}
	if answers == nil {
		answers = []domain.Answer{}
	}
	return AttemptDetail{Attempt: attempt, Answers: answers}, nil
}

func (s *AttemptService) afterSubmit(ctx context.Context, attempt domain.Attempt, targets []ranking.Target) {
	log := s.deps.logger(ctx).WithFields(logrus.Fields{
		"attempt_id": attempt.ID,
		"quiz_id":    attempt.QuizID,
		"owner":      attempt.Owner.String(),
	})
	s.deps.Metrics.AttemptSubmitted(attempt)

	if s.deps.Rankings != nil {
		if err := s.deps.Rankings.Invalidate(ctx, attempt.QuizID); err != nil {
			log.WithError(err).Warn("invalidate quiz rankings")
		}
	}
	if s.deps.Notifier != nil {
		for _, target := range targets {
			st, err := topStandings(ctx, s.deps.Store, target.Scope, s.deps.FeedSize, s.deps.Clock())
			if err != nil {
				log.WithError(err).WithField("scope", target.Scope.String()).Warn("load standings for publish")
				continue
			}
			s.deps.Notifier.Publish(st)
		}
	}
	log.WithFields(logrus.Fields{
		"score":      attempt.Score,
		"percentage": attempt.Percentage,
		"boards":     len(targets),
	}).Info("attempt submitted")
}

func (s *AttemptService) ownerExists(ctx context.Context, repo store.Repository, owner domain.Owner) error {
	if id, ok := owner.UserID(); ok {
		_, err := repo.GetUser(ctx, id)
		return err
	}
	if id, ok := owner.GuestID(); ok {
		_, err := repo.GetGuest(ctx, id)
		return err
	}
	return domain.ErrInvalidOwner
}

// grade checks each submitted answer against the quiz and returns the answers
// to store together with the number answered correctly. Questions left out or
// submitted without an option count as wrong.
func grade(attempt domain.Attempt, quiz domain.Quiz, subs []domain.AnswerSubmission) ([]domain.Answer, int, error) {
	if len(subs) > attempt.TotalQuestions {
		return nil, 0, fmt.Errorf("%d answers for %d questions: %w", len(subs), attempt.TotalQuestions, domain.ErrTooManyAnswers)
	}
	seen := make(map[int64]struct{}, len(subs))
	answers := make([]domain.Answer, 0, len(subs))
	correct := 0
	for _, sub := range subs {
		if _, dup := seen[sub.QuestionID]; dup {
			return nil, 0, fmt.Errorf("question %d: %w", sub.QuestionID, domain.ErrDuplicateAnswer)
		}
		seen[sub.QuestionID] = struct{}{}

		question, ok := quiz.Question(sub.QuestionID)
		if !ok {
			return nil, 0, fmt.Errorf("question %d: %w", sub.QuestionID, domain.ErrQuestionNotFound)
		}
		answer := domain.Answer{AttemptID: attempt.ID, QuestionID: question.ID, OptionID: sub.OptionID}
		if sub.OptionID != nil {
			option, ok := question.Option(*sub.OptionID)
			if !ok {
				return nil, 0, fmt.Errorf("option %d of question %d: %w", *sub.OptionID, question.ID, domain.ErrOptionNotFound)
			}
			answer.IsCorrect = option.Correct
		}
		if answer.IsCorrect {
			correct++
		}
		answers = append(answers, answer)
	}
	return answers, correct, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
