package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"quizhub-service/internal/domain"
	"quizhub-service/internal/metrics"
)

// QuizLoader fetches quiz content from the catalog's system of record.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
}

// QuizRepository caches graded quiz content in Redis and falls back to a loader on a miss.
// Questions are stored as: HSET quiz:{quizID}:questions {questionID} {question JSON}
// Quiz fields as:          SET  quiz:{quizID}:meta {quiz JSON without questions}
type QuizRepository struct {
	client  *redis.Client
	loader  QuizLoader
	ttl     time.Duration
	sf      singleflight.Group
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration, log logrus.FieldLogger, m *metrics.Metrics) *QuizRepository {
	return &QuizRepository{
		client:  client,
		loader:  loader,
		ttl:     ttl,
		log:     log,
		metrics: m,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		r.metrics.CacheLookup("quiz_redis", true)
		return quiz, nil
	}
	r.metrics.CacheLookup("quiz_redis", false)

	result, err, _ := r.sf.Do(strconv.FormatInt(quizID, 10), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if err := r.store(ctx, quiz); err != nil {
			r.log.WithError(err).WithField("quiz_id", quizID).Warn("cache quiz in redis")
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate removes a cached quiz after a catalog edit.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID int64) error {
	return r.client.Del(ctx, metaKey(quizID), questionsKey(quizID)).Err()
}

func (r *QuizRepository) cached(ctx context.Context, quizID int64) (domain.Quiz, bool) {
	meta, err := r.client.Get(ctx, metaKey(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.WithError(err).WithField("quiz_id", quizID).Warn("read quiz meta from redis")
		}
		return domain.Quiz{}, false
	}
	fields, err := r.client.HGetAll(ctx, questionsKey(quizID)).Result()
	if err != nil {
		return domain.Quiz{}, false
	}

	var quiz domain.Quiz
	if err := json.Unmarshal(meta, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	quiz.Questions = make([]domain.Question, 0, len(fields))
	for _, raw := range fields {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return domain.Quiz{}, false
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	sort.Slice(quiz.Questions, func(i, j int) bool { return quiz.Questions[i].ID < quiz.Questions[j].ID })
	return quiz, true
}

func (r *QuizRepository) store(ctx context.Context, quiz domain.Quiz) error {
	questions := quiz.Questions
	quiz.Questions = nil
	meta, err := json.Marshal(quiz)
	if err != nil {
		return err
	}

	ttl := r.ttlWithJitter()
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, questionsKey(quiz.ID))
	for _, q := range questions {
		raw, err := json.Marshal(q)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, questionsKey(quiz.ID), strconv.FormatInt(q.ID, 10), raw)
	}
	pipe.Set(ctx, metaKey(quiz.ID), meta, ttl)
	if ttl > 0 && len(questions) > 0 {
		pipe.Expire(ctx, questionsKey(quiz.ID), ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func metaKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":meta"
}

func questionsKey(quizID int64) string {
	return "quiz:" + strconv.FormatInt(quizID, 10) + ":questions"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
