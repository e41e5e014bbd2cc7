package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"quizhub-service/internal/app"
	"quizhub-service/internal/config"
	"quizhub-service/internal/infra/memory"
	"quizhub-service/internal/infra/postgres"
	infraredis "quizhub-service/internal/infra/redis"
	"quizhub-service/internal/logging"
	"quizhub-service/internal/metrics"
	"quizhub-service/internal/ranking"
	"quizhub-service/internal/store"
)

// services holds everything the commands need, built once from config.
type services struct {
	log      *logrus.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    store.Store
	engine   *ranking.Engine
	hub      *app.Hub
	feed     *infraredis.StandingsFeed
	deps     app.Deps
	closers  []func()
}

func newLogger(cfg config.Config) *logrus.Logger {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}

// buildServices picks Postgres or the seeded in-memory store, and Redis or
// in-process caches, depending on which addresses are configured.
func buildServices(ctx context.Context, cfg config.Config, log *logrus.Logger) (*services, error) {
	s := &services{
		log:      log,
		registry: prometheus.NewRegistry(),
		hub:      app.NewHub(),
	}
	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = metrics.New(s.registry)

	var loader memory.QuizLoader
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, err
		}
		db := postgres.Open(cfg.Postgres.URL)
		s.closers = append(s.closers, func() { _ = db.Close() })
		s.store = postgres.NewStore(db)

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		loader = postgres.NewQuizLoader(pool)
	} else {
		log.Warn("postgres url not configured, using in-memory store with sample data")
		mem := memory.NewStore()
		seedSampleData(mem)
		s.store = mem
		loader = memory.NewStaticQuizLoader(sampleQuizzes()...)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { _ = redisClient.Close() })
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var catalog app.CatalogRepository
	var rankings app.RankingsCache
	var notifier app.Notifier = s.hub
	if redisClient != nil {
		catalog = infraredis.NewQuizRepository(redisClient, loader, quizTTL, log, s.metrics)
		rankings = infraredis.NewRankingsCache(redisClient, config.TTLDuration(cfg.Rankings.RankingsTTL, 5*time.Minute))
		s.feed = infraredis.NewStandingsFeed(redisClient, s.hub, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute), log)
		notifier = s.feed
	} else {
		catalog = memory.NewQuizRepository(loader, quizTTL, s.metrics)
	}

	s.engine = ranking.NewEngine(log,
		ranking.WithMetrics(s.metrics),
		ranking.WithLimits(cfg.Rankings.GlobalTop, cfg.Rankings.CountryTop),
	)
	s.deps = app.Deps{
		Store:    s.store,
		Catalog:  catalog,
		Engine:   s.engine,
		Rules:    cfg.ScoringRules(),
		Rankings: rankings,
		Notifier: notifier,
		Metrics:  s.metrics,
		Log:      log,
		FeedSize: cfg.Rankings.FeedSize,
	}
	if s.feed != nil {
		s.deps.Snapshots = s.feed
	}
	return s, nil
}

func (s *services) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// recomputeRanks runs one batch rank rebuild and publishes the rebuilt boards;
// the engine logs its summary.
func (s *services) recomputeRanks(ctx context.Context) (ranking.Report, error) {
	report, err := s.engine.RecomputeAllUserRanks(ctx, s.store)
	if err != nil {
		s.log.WithError(err).Error("rank rebuild failed")
		return report, err
	}
	app.NewLeaderboardService(s.deps).Announce(ctx, report.Boards)
	return report, nil
}
