package redislock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/resilience"
)

// ErrLockHeld is returned by a single acquisition attempt when another
// holder owns the key
var ErrLockHeld = errors.New("lock held by another owner")

// releaseScript deletes the key only while it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key's expiry only while it still carries our token
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Config holds lock timings
type Config struct {
	Prefix string
	// TTL bounds how long a crashed holder blocks others
	TTL time.Duration
	// RenewInterval is how often a live holder extends its lease; zero means TTL/3
	RenewInterval time.Duration
	// WaitTimeout applies when the caller's context has no deadline
	WaitTimeout  time.Duration
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultConfig returns default lock timings
func DefaultConfig() *Config {
	return &Config{
		Prefix:       "lock:",
		TTL:          30 * time.Second,
		WaitTimeout:  10 * time.Second,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     250 * time.Millisecond,
	}
}

// Locker is a Redis mutex shared by every service replica
type Locker struct {
	client redis.UniversalClient
	config *Config
	logger *logging.Logger
}

// NewLocker creates a Locker. A nil config uses DefaultConfig.
func NewLocker(client redis.UniversalClient, config *Config, logger *logging.Logger) *Locker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Locker{
		client: client,
		config: config,
		logger: logger.WithComponent("redis-lock"),
	}
}

// Lock blocks until key is acquired or ctx ends. The returned function
// releases the lock and is safe to call more than once.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if _, ok := ctx.Deadline(); !ok && l.config.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.WaitTimeout)
		defer cancel()
	}

	fullKey := l.config.Prefix + key
	token := uuid.NewString()

	retry := &resilience.RetryConfig{
		InitialDelay:  l.config.InitialDelay,
		MaxDelay:      l.config.MaxDelay,
		BackoffFactor: 2,
		RetryableErrors: func(err error) bool {
			return errors.Is(err, ErrLockHeld)
		},
	}

	err := resilience.Retry(ctx, retry, func() error {
		return l.tryAcquire(ctx, fullKey, token)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
	}

	return l.hold(fullKey, token), nil
}

// TryLock makes a single acquisition attempt
func (l *Locker) TryLock(ctx context.Context, key string) (func(), error) {
	fullKey := l.config.Prefix + key
	token := uuid.NewString()
	if err := l.tryAcquire(ctx, fullKey, token); err != nil {
		return nil, err
	}
	return l.hold(fullKey, token), nil
}

// hold keeps the lease alive until the returned unlock is called
func (l *Locker) hold(key, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			l.release(key, token)
		})
	}
}

func (l *Locker) renewInterval() time.Duration {
	if l.config.RenewInterval > 0 {
		return l.config.RenewInterval
	}
	return l.config.TTL / 3
}

func (l *Locker) renew(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.renewInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			extended, err := renewScript.Run(ctx, l.client, []string{key}, token, l.config.TTL.Milliseconds()).Int()
			cancel()
			if err != nil {
				l.logger.WithError(err).Warn("Failed to renew lock", "key", key)
				continue
			}
			if extended == 0 {
				l.logger.Warn("Lock lost before renewal", "key", key)
				return
			}
		}
	}
}

func (l *Locker) tryAcquire(ctx context.Context, key, token string) error {
	ok, err := l.client.SetNX(ctx, key, token, l.config.TTL).Result()
	if err != nil {
		return fmt.Errorf("redis SETNX: %w", err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil {
		l.logger.WithError(err).Error("Failed to release lock", "key", key)
		return
	}
	if deleted == 0 {
		l.logger.Warn("Lock expired before release", "key", key, "ttl", l.config.TTL.String())
	}
}
