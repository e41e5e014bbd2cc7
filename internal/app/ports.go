package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"quizhub-service/internal/domain"
	"quizhub-service/internal/logging"
	"quizhub-service/internal/metrics"
	"quizhub-service/internal/ranking"
	"quizhub-service/internal/scoring"
	"quizhub-service/internal/store"
)

// CatalogRepository loads quiz content (from cache/backing store).
type CatalogRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// RankingsCache holds computed quiz rankings between submissions. Entries are
// versioned per quiz: Get reports the current version, Set stores under the
// version the rankings were computed at, and Invalidate moves to a new one.
type RankingsCache interface {
	Get(ctx context.Context, quizID int64) (rankings []domain.QuizRanking, version int64, ok bool, err error)
	Set(ctx context.Context, quizID, version int64, rankings []domain.QuizRanking) error
	Invalidate(ctx context.Context, quizID int64) error
}

// Notifier receives standings after a committed score change.
type Notifier interface {
	Publish(st domain.Standings)
}

// SnapshotSource serves the last standings published for a scope, possibly by
// another instance.
type SnapshotSource interface {
	Latest(ctx context.Context, scope domain.Scope) (domain.Standings, bool, error)
}

const (
	DefaultFeedSize    = 10
	DefaultQuizTop     = 50
	DefaultRecentLimit = 10
)

// Deps wires the services. Store and Catalog are required; the rest is optional.
type Deps struct {
	Store    store.Store
	Catalog  CatalogRepository
	Engine   *ranking.Engine
	Rules    scoring.Rules
	Rankings RankingsCache
	Notifier Notifier
	// Snapshots, when set, serves connect-time standings instead of reading the store.
	Snapshots SnapshotSource
	Metrics  *metrics.Metrics
	Log      logrus.FieldLogger
	Clock    func() time.Time
	// FeedSize is how many entries a published standings snapshot carries.
	FeedSize int
}

func (d Deps) withDefaults() Deps {
	if d.Rules == (scoring.Rules{}) {
		d.Rules = scoring.DefaultRules
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Engine == nil {
		d.Engine = ranking.NewEngine(d.Log, ranking.WithClock(d.Clock), ranking.WithMetrics(d.Metrics))
	}
	if d.FeedSize <= 0 {
		d.FeedSize = DefaultFeedSize
	}
	return d
}

// logger prefers the request-scoped logger carried by ctx.
func (d Deps) logger(ctx context.Context) logrus.FieldLogger {
	return logging.FromContext(ctx, d.Log)
}
