package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizhub-service/internal/app"
	"quizhub-service/internal/config"
	"quizhub-service/internal/domain"
	"quizhub-service/internal/logging"
	"quizhub-service/internal/ranking"
)

func TestRankingsCommandOnSampleData(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"rankings", "--config", filepath.Join(t.TempDir(), "absent.yaml")})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var report ranking.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 3, report.UsersRanked)
	assert.Equal(t, 0, report.UsersSkipped)
	assert.Equal(t, 3, report.Countries)
	require.Len(t, report.Boards, 4)
	assert.Equal(t, domain.GlobalScope(), report.Boards[0])
}

func TestMigrateRequiresPostgres(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"migrate", "--config", filepath.Join(t.TempDir(), "absent.yaml")})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestSampleDataIsPlayable(t *testing.T) {
	ctx := context.Background()
	svc, err := buildServices(ctx, config.Config{}, logging.Discard())
	require.NoError(t, err)
	defer svc.close()

	attempts := app.NewAttemptService(svc.deps)
	boards := app.NewLeaderboardService(svc.deps)

	for _, quiz := range sampleQuizzes() {
		attempt, err := attempts.Start(ctx, quiz.ID, domain.UserOwner(1))
		require.NoError(t, err)
		assert.Equal(t, quiz.QuestionCount(), attempt.TotalQuestions)

		var subs []domain.AnswerSubmission
		for _, q := range quiz.Questions[:quiz.QuestionCount()] {
			for _, opt := range q.Options {
				if opt.Correct {
					id := opt.ID
					subs = append(subs, domain.AnswerSubmission{QuestionID: q.ID, OptionID: &id})
				}
			}
		}
		done, err := attempts.Submit(ctx, attempt.ID, app.Submission{Answers: subs})
		require.NoError(t, err)
		assert.Equal(t, 100.0, done.Percentage)
	}

	st, err := boards.TopN(ctx, domain.CategoryScope(1), 0)
	require.NoError(t, err)
	require.Len(t, st.Entries, 1)
	assert.Equal(t, "ada", st.Entries[0].DisplayName)
}
