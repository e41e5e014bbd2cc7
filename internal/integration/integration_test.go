package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
	"quizhub-service/internal/infra/postgres"
	pgmigrations "quizhub-service/internal/infra/postgres/migrations"
	infraredis "quizhub-service/internal/infra/redis"
	"quizhub-service/internal/logging"
	"quizhub-service/internal/ranking"
)

type env struct {
	store    *postgres.Store
	redis    *goredis.Client
	attempts *app.AttemptService
	boards   *app.LeaderboardService
	engine   *ranking.Engine
}

func TestScoringAndRankingEndToEnd(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	alice := play(t, ctx, e, domain.UserOwner(1), 2)
	if alice.Score != 70 || alice.Percentage != 100 {
		t.Fatalf("unexpected alice attempt %+v", alice)
	}
	play(t, ctx, e, domain.UserOwner(2), 1)
	play(t, ctx, e, domain.GuestOwner(1), 1)

	if _, err := e.attempts.Submit(ctx, alice.ID, app.Submission{}); !errors.Is(err, domain.ErrAttemptNotInProgress) {
		t.Fatalf("expected double submit to be rejected, got %v", err)
	}

	global, err := e.boards.TopN(ctx, domain.GlobalScope(), 10)
	if err != nil {
		t.Fatalf("global standings: %v", err)
	}
	if len(global.Entries) != 2 {
		t.Fatalf("expected two registered users on the global board, got %+v", global.Entries)
	}
	if global.Entries[0].DisplayName != "alice" || global.Entries[0].Rank != 1 || global.Entries[0].Score != 70 {
		t.Fatalf("expected alice to lead, got %+v", global.Entries[0])
	}
	if global.Entries[1].DisplayName != "bob" || global.Entries[1].Rank != 2 {
		t.Fatalf("expected bob second, got %+v", global.Entries[1])
	}

	category, err := e.boards.TopN(ctx, domain.CategoryScope(1), 10)
	if err != nil {
		t.Fatalf("category standings: %v", err)
	}
	if len(category.Entries) != 2 || category.Entries[0].TotalQuizzes != 1 {
		t.Fatalf("unexpected category standings %+v", category.Entries)
	}

	rankings, err := e.boards.QuizRankings(ctx, 1, 10)
	if err != nil {
		t.Fatalf("quiz rankings: %v", err)
	}
	if len(rankings) != 3 || rankings[0].AttemptID != alice.ID || rankings[2].DisplayName != "visitor" {
		t.Fatalf("unexpected quiz rankings %+v", rankings)
	}
	version, err := e.redis.Get(ctx, "quiz:1:rankings:ver").Result()
	if err != nil || version != "3" {
		t.Fatalf("expected one rankings version per submission, got %q err=%v", version, err)
	}
	if n, err := e.redis.Exists(ctx, "quiz:1:rankings:"+version, "quiz:1:meta").Result(); err != nil || n != 2 {
		t.Fatalf("expected catalog and rankings cached in redis, got n=%d err=%v", n, err)
	}

	report, err := e.engine.RecomputeAllUserRanks(ctx, e.store)
	if err != nil {
		t.Fatalf("recompute ranks: %v", err)
	}
	if report.UsersRanked != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	user, err := e.store.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.GlobalRank == nil || *user.GlobalRank != 1 || user.CountryRank == nil || *user.CountryRank != 1 {
		t.Fatalf("unexpected ranks for alice: global=%v country=%v", user.GlobalRank, user.CountryRank)
	}
	gb, err := e.boards.TopN(ctx, domain.CountryScope("GB"), 10)
	if err != nil {
		t.Fatalf("country standings: %v", err)
	}
	if len(gb.Entries) != 1 || gb.Entries[0].Owner != domain.UserOwner(1) {
		t.Fatalf("unexpected GB standings %+v", gb.Entries)
	}
}

func TestConcurrentSubmitCompletesOnce(t *testing.T) {
	ctx := context.Background()
	e := setup(t, ctx)

	attempt, err := e.attempts.Start(ctx, 1, domain.UserOwner(3))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	sub := app.Submission{Answers: answers(2)}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.attempts.Submit(ctx, attempt.ID, sub); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrAttemptNotInProgress) {
				t.Errorf("unexpected submit error: %v", err)
			}
		}()
	}
	wg.Wait()
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful submit, got %d", succeeded)
	}

	user, err := e.store.GetUser(ctx, 3)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Points != 70 {
		t.Fatalf("expected points credited once, got %d", user.Points)
	}
}

func setup(t *testing.T, ctx context.Context) *env {
	t.Helper()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	t.Cleanup(pgCleanup)
	redisURL, redisCleanup := startRedis(t, ctx)
	t.Cleanup(redisCleanup)

	db := postgres.Open(pgURL)
	t.Cleanup(func() { _ = db.Close() })
	migrateAndSeed(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	t.Cleanup(pool.Close)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = redisClient.Close() })

	log := logging.Discard()
	st := postgres.NewStore(db)
	engine := ranking.NewEngine(log)
	deps := app.Deps{
		Store:    st,
		Catalog:  infraredis.NewQuizRepository(redisClient, postgres.NewQuizLoader(pool), 5*time.Minute, log, nil),
		Engine:   engine,
		Rankings: infraredis.NewRankingsCache(redisClient, time.Minute),
		Notifier: app.NewHub(),
		Log:      log,
	}
	return &env{
		store:    st,
		redis:    redisClient,
		attempts: app.NewAttemptService(deps),
		boards:   app.NewLeaderboardService(deps),
		engine:   engine,
	}
}

func play(t *testing.T, ctx context.Context, e *env, owner domain.Owner, correct int) domain.Attempt {
	t.Helper()
	attempt, err := e.attempts.Start(ctx, 1, owner)
	if err != nil {
		t.Fatalf("start for %s: %v", owner, err)
	}
	done, err := e.attempts.Submit(ctx, attempt.ID, app.Submission{Answers: answers(correct)})
	if err != nil {
		t.Fatalf("submit for %s: %v", owner, err)
	}
	return done
}

// answers covers both seeded questions, the first correct of them right.
func answers(correct int) []domain.AnswerSubmission {
	right := []int64{11, 21}
	wrong := []int64{12, 22}
	out := make([]domain.AnswerSubmission, 0, 2)
	for i, q := range []int64{1, 2} {
		opt := wrong[i]
		if i < correct {
			opt = right[i]
		}
		out = append(out, domain.AnswerSubmission{QuestionID: q, OptionID: &opt})
	}
	return out
}

const seedSQL = `
INSERT INTO users (id, username, country, country_name) VALUES
    (1, 'alice', 'GB', 'United Kingdom'),
    (2, 'bob', NULL, ''),
    (3, 'carol', 'FR', 'France');
INSERT INTO guests (id, session_id, display_name) VALUES (1, 'sess-1', 'visitor');
INSERT INTO categories (id, name) VALUES (1, 'Maths');
INSERT INTO quizzes (id, title, category_id) VALUES (1, 'Arithmetic', 1);
INSERT INTO questions (id, quiz_id, text, position) VALUES
    (1, 1, 'Two plus two', 1),
    (2, 1, 'Three plus three', 2),
    (3, 1, 'Pending review', 3);
UPDATE questions SET is_approved = FALSE WHERE id = 3;
INSERT INTO answer_options (id, question_id, text, is_correct, position) VALUES
    (11, 1, '4', TRUE, 1),
    (12, 1, '5', FALSE, 2),
    (21, 2, '6', TRUE, 1),
    (22, 2, '7', FALSE, 2),
    (31, 3, 'x', TRUE, 1);
`

func migrateAndSeed(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, stmt := range strings.Split(seedSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed %q: %v", strings.TrimSpace(stmt), err)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
