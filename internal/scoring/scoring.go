// Package scoring computes the points and correctness percentage of a finished attempt.
package scoring

import (
	"fmt"

	"quizhub-service/internal/domain"
)

// Rules are the reward rates applied to an attempt.
type Rules struct {
	PointsPerCorrect int
	PerfectBonus     int
	SpeedBonus       int
}

// DefaultRules award 10 points per correct answer, +50 for a perfect run and
// +25 for finishing in under 60% of the time limit.
var DefaultRules = Rules{
	PointsPerCorrect: 10,
	PerfectBonus:     50,
	SpeedBonus:       25,
}

// Input describes a graded attempt. TimeTaken and TimeLimit are in seconds.
type Input struct {
	CorrectAnswers int
	TotalQuestions int
	TimeTaken      *int
	TimeLimit      *int
}

type Result struct {
	Percentage float64
	Score      int
}

// Calculate scores an attempt with DefaultRules.
func Calculate(in Input) (Result, error) {
	return DefaultRules.Calculate(in)
}

// Calculate is pure: the same input always yields the same result.
func (r Rules) Calculate(in Input) (Result, error) {
	if in.TotalQuestions <= 0 {
		return Result{}, fmt.Errorf("total questions %d: %w", in.TotalQuestions, domain.ErrContractViolation)
	}
	if in.CorrectAnswers < 0 || in.CorrectAnswers > in.TotalQuestions {
		return Result{}, fmt.Errorf("correct answers %d of %d: %w", in.CorrectAnswers, in.TotalQuestions, domain.ErrContractViolation)
	}
	if in.TimeTaken != nil && *in.TimeTaken < 0 {
		return Result{}, fmt.Errorf("time taken %d: %w", *in.TimeTaken, domain.ErrContractViolation)
	}
	if in.TimeLimit != nil && *in.TimeLimit < 0 {
		return Result{}, fmt.Errorf("time limit %d: %w", *in.TimeLimit, domain.ErrContractViolation)
	}

	res := Result{
		Percentage: Percentage(in.CorrectAnswers, in.TotalQuestions),
		Score:      in.CorrectAnswers * r.PointsPerCorrect,
	}
	if in.CorrectAnswers == in.TotalQuestions {
		res.Score += r.PerfectBonus
	}
	if fastFinish(in.TimeTaken, in.TimeLimit) {
		res.Score += r.SpeedBonus
	}
	return res, nil
}

// Percentage returns (correct/total)*100, a value in [0, 100].
func Percentage(correct, total int) float64 {
	return float64(correct) / float64(total) * 100
}

// fastFinish reports taken < 0.6*limit, compared in integers so the boundary is exact.
func fastFinish(taken, limit *int) bool {
	if taken == nil || limit == nil {
		return false
	}
	return *taken*10 < *limit*6
}
