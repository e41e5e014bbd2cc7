package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizhub-service/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestPerfectFastRun(t *testing.T) {
	res, err := Calculate(Input{CorrectAnswers: 10, TotalQuestions: 10, TimeTaken: intPtr(50), TimeLimit: intPtr(100)})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Percentage)
	assert.Equal(t, 175, res.Score)
}

func TestNoBonusesWithoutTimeLimit(t *testing.T) {
	res, err := Calculate(Input{CorrectAnswers: 7, TotalQuestions: 10, TimeTaken: intPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, 70.0, res.Percentage)
	assert.Equal(t, 70, res.Score)
}

func TestPercentageMatchesRatio(t *testing.T) {
	for total := 1; total <= 40; total++ {
		for correct := 0; correct <= total; correct++ {
			res, err := Calculate(Input{CorrectAnswers: correct, TotalQuestions: total})
			require.NoError(t, err)
			assert.Equal(t, (float64(correct)/float64(total))*100, res.Percentage, "%d/%d", correct, total)
			assert.GreaterOrEqual(t, res.Percentage, 0.0)
			assert.LessOrEqual(t, res.Percentage, 100.0)

			base := correct * 10
			if correct == total {
				assert.Equal(t, base+50, res.Score, "perfect run %d/%d", correct, total)
			} else {
				assert.Equal(t, base, res.Score, "partial run %d/%d", correct, total)
			}
		}
	}
}

func TestPercentageOfThirds(t *testing.T) {
	res, err := Calculate(Input{CorrectAnswers: 1, TotalQuestions: 3})
	require.NoError(t, err)
	third := float64(1) / float64(3)
	assert.Equal(t, third*100, res.Percentage)
	assert.Equal(t, 33.33333333333333, res.Percentage)
}

func TestSpeedBonusBoundary(t *testing.T) {
	cases := []struct {
		name  string
		taken *int
		limit *int
		bonus bool
	}{
		{name: "under threshold", taken: intPtr(59), limit: intPtr(100), bonus: true},
		{name: "exactly threshold", taken: intPtr(60), limit: intPtr(100), bonus: false},
		{name: "over threshold", taken: intPtr(61), limit: intPtr(100), bonus: false},
		{name: "fractional threshold", taken: intPtr(5), limit: intPtr(9), bonus: true},
		{name: "fractional boundary", taken: intPtr(6), limit: intPtr(10), bonus: false},
		{name: "no time taken", taken: nil, limit: intPtr(100), bonus: false},
		{name: "no limit", taken: intPtr(1), limit: nil, bonus: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Calculate(Input{CorrectAnswers: 3, TotalQuestions: 5, TimeTaken: tc.taken, TimeLimit: tc.limit})
			require.NoError(t, err)
			want := 30
			if tc.bonus {
				want += 25
			}
			assert.Equal(t, want, res.Score)
		})
	}
}

func TestCalculateRejectsBadInput(t *testing.T) {
	bad := []Input{
		{CorrectAnswers: 0, TotalQuestions: 0},
		{CorrectAnswers: 1, TotalQuestions: -3},
		{CorrectAnswers: 6, TotalQuestions: 5},
		{CorrectAnswers: -1, TotalQuestions: 5},
		{CorrectAnswers: 1, TotalQuestions: 5, TimeTaken: intPtr(-1)},
	}
	for _, in := range bad {
		_, err := Calculate(in)
		assert.True(t, errors.Is(err, domain.ErrContractViolation), "input %+v: %v", in, err)
	}
}

func TestCustomRules(t *testing.T) {
	rules := Rules{PointsPerCorrect: 5, PerfectBonus: 0, SpeedBonus: 100}
	res, err := rules.Calculate(Input{CorrectAnswers: 4, TotalQuestions: 4, TimeTaken: intPtr(10), TimeLimit: intPtr(60)})
	require.NoError(t, err)
	assert.Equal(t, 120, res.Score)
}
