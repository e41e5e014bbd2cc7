package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"quizhub-service/internal/domain"
)

// RankingsCache stores computed quiz rankings under a per-quiz version:
//
//	GET  quiz:{quizID}:rankings:ver                      current version (missing = 0)
//	SET  quiz:{quizID}:rankings:{version} {rankings JSON} EX ttl
//
// Invalidate increments the version, so rankings computed before a submission
// land under a version nobody reads any more and simply expire.
type RankingsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRankingsCache(client *redis.Client, ttl time.Duration) *RankingsCache {
	return &RankingsCache{client: client, ttl: ttl}
}

// Get returns the rankings cached for the current version of quizID together
// with that version. A miss still reports the version to pass to Set.
func (c *RankingsCache) Get(ctx context.Context, quizID int64) ([]domain.QuizRanking, int64, bool, error) {
	version, err := c.client.Get(ctx, versionKey(quizID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}
	raw, err := c.client.Get(ctx, rankingsKey(quizID, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, version, false, err
	}
	var rankings []domain.QuizRanking
	if err := json.Unmarshal(raw, &rankings); err != nil {
		return nil, version, false, err
	}
	return rankings, version, true, nil
}

// Set stores rankings computed while version was current.
func (c *RankingsCache) Set(ctx context.Context, quizID, version int64, rankings []domain.QuizRanking) error {
	if rankings == nil {
		rankings = []domain.QuizRanking{}
	}
	raw, err := json.Marshal(rankings)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, rankingsKey(quizID, version), raw, c.ttl).Err()
}

func (c *RankingsCache) Invalidate(ctx context.Context, quizID int64) error {
	return c.client.Incr(ctx, versionKey(quizID)).Err()
}

func versionKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":rankings:ver"
}

func rankingsKey(quizID, version int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":rankings:" + strconv.FormatInt(version, 10)
}
