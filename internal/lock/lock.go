package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"echo.app/relay/common/id"
)

var (
	// ErrNotAcquired means another holder owns the key.
	ErrNotAcquired = errors.New("lock held by another owner")
	// ErrLockLost means the lease expired and the key was taken over or removed
	// before Release.
	ErrLockLost = errors.New("lock lost before release")
)

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Client is the subset of *redis.Client the locker needs.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Locker hands out expiring, token-owned locks on Redis keys.
type Locker struct {
	client Client
	logger *slog.Logger
}

func New(client Client, logger *slog.Logger) *Locker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{client: client, logger: logger}
}

// Lease is a held lock. It expires on its own after the TTL it was taken with.
type Lease struct {
	key    string
	token  string
	client Client
}

func (l *Lease) Key() string {
	return l.key
}

// TryAcquire takes key for ttl without waiting. It returns ErrNotAcquired when
// someone else holds it.
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock %s: ttl must be positive", key)
	}

	token := id.Token()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	if !ok {
		l.logger.DebugContext(ctx, "lock busy", "key", key)
		return nil, ErrNotAcquired
	}
	return &Lease{key: key, token: token, client: l.client}, nil
}

// Release frees the lock if this lease still owns it.
func (l *Lease) Release(ctx context.Context) error {
	n, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// WithLock runs fn while holding key. It returns ErrNotAcquired without
// calling fn when the key is taken. A lost lease is logged, not returned,
// since fn has already run.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lease, err := l.TryAcquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			l.logger.WarnContext(ctx, "releasing lock failed", "key", key, "error", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()
	return fn(runCtx)
}
