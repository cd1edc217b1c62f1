package authbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mind-engage/engineering-lms/internal/backend"
	"github.com/mind-engage/engineering-lms/internal/platform/logger"
)

// Redis publishes auth pushes on a pub/sub channel so every portal instance
// delivers them to its own local subscribers.
type Redis struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
	d       *dispatcher
	cancel  context.CancelFunc
}

// NewRedis connects to addr and starts the forwarder.
func NewRedis(ctx context.Context, log *logger.Logger, addr, channel string) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("authbus: missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("authbus: redis ping: %w", err)
	}
	b, err := NewRedisWithClient(ctx, log, rdb, channel)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return b, nil
}

// NewRedisWithClient wires an existing client; the bus takes ownership of it.
func NewRedisWithClient(ctx context.Context, log *logger.Logger, rdb goredis.UniversalClient, channel string) (*Redis, error) {
	if log == nil {
		log = logger.Nop()
	}
	if channel == "" {
		channel = "lms:auth"
	}
	b := &Redis{
		log:     log.With("component", "RedisAuthBus"),
		rdb:     rdb,
		channel: channel,
		d:       newDispatcher(log),
	}
	fwdCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	if err := b.startForwarder(ctx, fwdCtx); err != nil {
		cancel()
		return nil, err
	}
	return b, nil
}

func (b *Redis) Publish(ctx context.Context, m Message) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *Redis) Subscribe(key Key, fn Handler) backend.Subscription {
	return b.d.add(key, fn)
}

func (b *Redis) startForwarder(startCtx, runCtx context.Context) error {
	sub := b.rdb.Subscribe(runCtx, b.channel)
	// make sure the subscription is live before Publish can race it
	if _, err := sub.Receive(startCtx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("authbus: redis subscribe: %w", err)
	}
	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-runCtx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok || msg == nil {
					_ = sub.Close()
					return
				}
				var m Message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					b.log.Warn("bad auth bus payload", "error", err)
					continue
				}
				b.d.dispatch(m)
			}
		}
	}()
	return nil
}

func (b *Redis) Close() error {
	b.cancel()
	b.d.close()
	return b.rdb.Close()
}
