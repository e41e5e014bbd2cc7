package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the scoring and ranking core wraps one of these.
var (
	// ErrInvalidState is returned when an operation is not allowed in the current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrContractViolation is returned when the caller breaks an input contract.
	ErrContractViolation = errors.New("contract violation")
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
)

var (
	ErrQuizNotFound        = fmt.Errorf("quiz %w", ErrNotFound)
	ErrQuestionNotFound    = fmt.Errorf("question %w", ErrNotFound)
	ErrOptionNotFound      = fmt.Errorf("answer option %w", ErrNotFound)
	ErrAttemptNotFound     = fmt.Errorf("attempt %w", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrGuestNotFound       = fmt.Errorf("guest %w", ErrNotFound)
	ErrLeaderboardNotFound = fmt.Errorf("leaderboard %w", ErrNotFound)
	ErrEntryNotFound       = fmt.Errorf("leaderboard entry %w", ErrNotFound)

	// ErrAttemptNotInProgress guards against double submission and late abandons.
	ErrAttemptNotInProgress = fmt.Errorf("attempt is not in progress: %w", ErrInvalidState)

	ErrInvalidOwner    = fmt.Errorf("attempt owner must be exactly one of user or guest: %w", ErrContractViolation)
	ErrInvalidScope    = fmt.Errorf("leaderboard scope: %w", ErrContractViolation)
	ErrNoQuestions     = fmt.Errorf("quiz has no questions: %w", ErrContractViolation)
	ErrDuplicateAnswer = fmt.Errorf("question answered twice: %w", ErrContractViolation)
	ErrTooManyAnswers  = fmt.Errorf("more answers than questions: %w", ErrContractViolation)
)
