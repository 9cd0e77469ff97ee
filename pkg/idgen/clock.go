package idgen

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Clock abstracts the time source for the ID generator.
type Clock interface {
	// NowMillis returns the current unix time in milliseconds.
	NowMillis(ctx context.Context) (int64, error)
}

// SystemClock uses the local system time.
type SystemClock struct{}

func (SystemClock) NowMillis(context.Context) (int64, error) {
	return time.Now().UnixMilli(), nil
}

// RedisClock reads the shared Redis server time so that several gateways agree
// on one clock for ID ordering.
type RedisClock struct {
	client  redis.UniversalClient
	timeout time.Duration
}

func NewRedisClock(client redis.UniversalClient, timeout time.Duration) *RedisClock {
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}
	return &RedisClock{client: client, timeout: timeout}
}

func (r *RedisClock) NowMillis(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	now, err := r.client.Time(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("redis time: %w", err)
	}
	return now.UnixMilli(), nil
}

// FallbackClock asks Primary first and Secondary when Primary fails.
// OnFallback, if set, observes every Primary failure.
type FallbackClock struct {
	Primary    Clock
	Secondary  Clock
	OnFallback func(error)
}

func (f *FallbackClock) NowMillis(ctx context.Context) (int64, error) {
	now, err := f.Primary.NowMillis(ctx)
	if err == nil {
		return now, nil
	}
	if f.OnFallback != nil {
		f.OnFallback(err)
	}
	return f.Secondary.NowMillis(ctx)
}
