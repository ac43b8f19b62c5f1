package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradesignals/internal/model"
)

// Config configures a Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

func connect(cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Publisher writes symbol updates and signal history for the dashboard side
// to consume. All writes go through a circuit breaker: Redis being down must
// not stall candle processing, so rejected writes are dropped and counted.
type Publisher struct {
	client  *goredis.Client
	breaker *Breaker

	// OnDrop, when set, is called for every write dropped by the breaker.
	OnDrop func()
}

// NewPublisher connects and pings the server.
func NewPublisher(cfg Config) (*Publisher, error) {
	client, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[redis] connected to %s", cfg.Addr)

	p := &Publisher{
		client:  client,
		breaker: NewBreaker(5, 10*time.Second),
	}
	p.breaker.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}
	return p, nil
}

// PublishUpdate stores the update as the symbol's latest value and fans it
// out over pub/sub, in one pipeline.
func (p *Publisher) PublishUpdate(ctx context.Context, u *model.Update) error {
	return p.execute(func() error {
		payload := string(u.JSON())
		pipe := p.client.Pipeline()
		pipe.Set(ctx, latestKey(u.Symbol), payload, latestTTL)
		pipe.Publish(ctx, UpdateChannel(u.Symbol), payload)
		_, err := pipe.Exec(ctx)
		if err != nil {
			return fmt.Errorf("redis publish update %s: %w", u.Symbol, err)
		}
		return nil
	})
}

// PushSignal prepends a signal event to the symbol's history list, trimmed to
// the most recent entries.
func (p *Publisher) PushSignal(ctx context.Context, ev model.SignalEvent) error {
	return p.execute(func() error {
		pipe := p.client.Pipeline()
		pipe.LPush(ctx, signalsKey(ev.Symbol), string(ev.JSON()))
		pipe.LTrim(ctx, signalsKey(ev.Symbol), 0, signalHistoryMax-1)
		_, err := pipe.Exec(ctx)
		if err != nil {
			return fmt.Errorf("redis push signal %s: %w", ev.Symbol, err)
		}
		return nil
	})
}

func (p *Publisher) execute(fn func() error) error {
	err := p.breaker.Execute(fn)
	if err == ErrCircuitOpen {
		if p.OnDrop != nil {
			p.OnDrop()
		}
		return nil // dropped, next write after recovery repopulates latest
	}
	if err != nil {
		log.Printf("[redis] %v", err)
	}
	return err
}

// BreakerState exposes the circuit state for health reporting.
func (p *Publisher) BreakerState() State { return p.breaker.CurrentState() }

// Close closes the connection.
func (p *Publisher) Close() error { return p.client.Close() }
