package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRelay shares change events between service instances over a Redis channel.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	origin  string
	broker  *Broker
	logger  *zap.Logger
	pubsub  *redis.PubSub
	stopped chan struct{}
}

// NewRedisRelay creates a relay for broker. Call Start before publishing.
func NewRedisRelay(rdb *redis.Client, channel string, broker *Broker, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		broker:  broker,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Start subscribes to the channel, waits for confirmation and begins relaying remote events
// into the local broker. It also installs itself as the broker's relay.
func (r *RedisRelay) Start(ctx context.Context) error {
	r.pubsub = r.rdb.Subscribe(ctx, r.channel)

	if _, err := r.pubsub.Receive(ctx); err != nil {
		_ = r.pubsub.Close()
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}

	r.broker.SetRelay(r, func(err error) {
		r.logger.Warn("Failed to forward change event", zap.Error(err))
	})
	r.logger.Info("Live feed relay subscribed", zap.String("channel", r.channel), zap.String("origin", r.origin))

	go r.listen(ctx)
	return nil
}

// Forward implements Relay.
func (r *RedisRelay) Forward(ctx context.Context, ev Event) error {
	ev.Origin = r.origin
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close stops relaying and waits for the listener to exit.
func (r *RedisRelay) Close() error {
	if r.pubsub == nil {
		return nil
	}
	err := r.pubsub.Close()
	<-r.stopped
	return err
}

func (r *RedisRelay) listen(ctx context.Context) {
	defer close(r.stopped)
	ch := r.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		r.logger.Warn("Dropping malformed change event", zap.Error(err))
		return
	}
	if ev.Origin == r.origin {
		// already delivered locally by Publish
		return
	}
	r.broker.Deliver(ev)
}
