package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
)

const standingsChannel = "quizhub:standings"

// StandingsFeed fans standings out across service instances.
// Every published snapshot is kept as the scope's latest and broadcast:
//
//	SET standings:{scope} {standings JSON} EX ttl
//	PUBLISH quizhub:standings {standings JSON}
//
// Run relays broadcasts from all instances into the local notifier, which is
// usually the in-process hub that websocket clients subscribe to.
type StandingsFeed struct {
	client *redis.Client
	local  app.Notifier
	ttl    time.Duration
	log    logrus.FieldLogger
}

var _ app.Notifier = (*StandingsFeed)(nil)

func NewStandingsFeed(client *redis.Client, local app.Notifier, ttl time.Duration, log logrus.FieldLogger) *StandingsFeed {
	return &StandingsFeed{client: client, local: local, ttl: ttl, log: log}
}

// Publish is best effort: failures are logged and the local notifier is not
// bypassed, since Run delivers the broadcast back to this instance too.
func (f *StandingsFeed) Publish(st domain.Standings) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := json.Marshal(st)
	if err != nil {
		f.log.WithError(err).Warn("encode standings")
		return
	}
	pipe := f.client.Pipeline()
	pipe.Set(ctx, standingsKey(st.Scope), raw, f.ttl)
	pipe.Publish(ctx, standingsChannel, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		f.log.WithError(err).WithField("scope", st.Scope.String()).Warn("publish standings to redis")
	}
}

// Latest returns the last snapshot published for scope by any instance.
func (f *StandingsFeed) Latest(ctx context.Context, scope domain.Scope) (domain.Standings, bool, error) {
	raw, err := f.client.Get(ctx, standingsKey(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Standings{}, false, nil
	}
	if err != nil {
		return domain.Standings{}, false, err
	}
	var st domain.Standings
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.Standings{}, false, err
	}
	return st, true, nil
}

// Run relays broadcasts until ctx is cancelled.
func (f *StandingsFeed) Run(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, standingsChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var st domain.Standings
			if err := json.Unmarshal([]byte(msg.Payload), &st); err != nil {
				f.log.WithError(err).Warn("decode standings broadcast")
				continue
			}
			f.local.Publish(st)
		}
	}
}

func standingsKey(scope domain.Scope) string {
	return "standings:" + scope.String()
}
