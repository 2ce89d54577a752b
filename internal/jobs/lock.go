package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Locker lets one process run a job per tick when several share a broker.
type Locker interface {
	// Claim returns ok=false when another process already claimed key. A
	// claim is never released; it lapses after ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (ok bool, err error)
}

// NopLocker grants every claim.
type NopLocker struct{}

func (NopLocker) Claim(context.Context, string, time.Duration) (bool, error) { return true, nil }

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	client *redis.Client
	prefix string
	owner  string
}

// NewRedisLocker connects to the broker at url, e.g. redis://localhost:6379/0.
func NewRedisLocker(ctx context.Context, url string) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "parse broker url")
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, pkgerrors.Wrap(err, "ping broker")
	}
	return &RedisLocker{client: c, prefix: "issue-tracker:job-lock:", owner: uuid.NewString()}, nil
}

func (l *RedisLocker) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, l.owner, ttl).Result()
	if err != nil {
		return false, pkgerrors.Wrapf(err, "claim %s", key)
	}
	return ok, nil
}

func (l *RedisLocker) Close() error { return l.client.Close() }
