package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeadershipTTL   = 45 * time.Second
	leadershipRetryDelay   = time.Second
	renewalTimeout         = 5 * time.Second
	minRenewalInterval     = time.Second
	defaultRenewalFraction = 3
)

var (
	leaderCounter atomic.Uint64

	errLockLost = errors.New("lock lost")

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// RunWithLeader blocks until it holds the lock at key, then calls run with a
// context that is cancelled when the lock is lost or ctx is done. The lock is
// renewed while run executes. When run returns the lock is released and the
// loop competes for it again, until ctx is cancelled.
func RunWithLeader(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration, run func(context.Context)) error {
	if run == nil {
		return errors.New("support: leader run function cannot be nil")
	}
	if client == nil {
		return errors.New("support: leader lock requires a redis client")
	}
	if ttl <= 0 {
		ttl = DefaultLeadershipTTL
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		session, err := acquireLeaderSession(ctx, client, key, ttl, true)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("leader lock: failed to acquire", "key", key, "error", err)
			if !sleepCtx(ctx, leadershipRetryDelay) {
				return ctx.Err()
			}
			continue
		}

		log.Debug("leader lock: acquired", "key", key)
		run(session.ctx)
		session.Close()
		log.Debug("leader lock: released", "key", key)

		if !sleepCtx(ctx, leadershipRetryDelay) {
			return ctx.Err()
		}
	}
}

// TryWithLeader makes a single attempt at the lock. It reports false without
// calling run when another holder owns it.
func TryWithLeader(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration, run func(context.Context) error) (bool, error) {
	if run == nil {
		return false, errors.New("support: leader run function cannot be nil")
	}
	if client == nil {
		return false, errors.New("support: leader lock requires a redis client")
	}
	if ttl <= 0 {
		ttl = DefaultLeadershipTTL
	}

	session, err := acquireLeaderSession(ctx, client, key, ttl, false)
	if err != nil {
		return false, fmt.Errorf("acquire leader lock %s: %w", key, err)
	}
	if session == nil {
		return false, nil
	}
	defer session.Close()

	return true, run(session.ctx)
}

type leaderSession struct {
	client    redis.UniversalClient
	key       string
	value     string
	ttl       time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	stopRenew chan struct{}
	closeOnce sync.Once
}

// acquireLeaderSession returns nil, nil when wait is false and the lock is taken.
func acquireLeaderSession(ctx context.Context, client redis.UniversalClient, key string, ttl time.Duration, wait bool) (*leaderSession, error) {
	value := generateLeaderID()

	for {
		ok, err := client.SetNX(ctx, key, value, ttl).Result()
		if err != nil {
			if ctx.Err() != nil || !wait {
				return nil, err
			}
			log.Warn("leader lock: setnx failed", "key", key, "error", err)
			if !sleepCtx(ctx, leadershipRetryDelay) {
				return nil, ctx.Err()
			}
			continue
		}

		if ok {
			sessionCtx, cancel := context.WithCancel(ctx)
			session := &leaderSession{
				client:    client,
				key:       key,
				value:     value,
				ttl:       ttl,
				ctx:       sessionCtx,
				cancel:    cancel,
				stopRenew: make(chan struct{}),
			}
			go session.renewLoop()
			return session, nil
		}

		if !wait {
			return nil, nil
		}
		if !sleepCtx(ctx, leadershipRetryDelay) {
			return nil, ctx.Err()
		}
	}
}

func (ls *leaderSession) Close() {
	ls.closeOnce.Do(func() {
		close(ls.stopRenew)
		ls.cancel()
		if err := ls.releaseLock(); err != nil {
			log.Warn("leader lock: release failed", "key", ls.key, "error", err)
		}
	})
}

func (ls *leaderSession) renewLoop() {
	interval := ls.ttl / defaultRenewalFraction
	if interval < minRenewalInterval {
		interval = minRenewalInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ls.stopRenew:
			return
		case <-ls.ctx.Done():
			return
		case <-ticker.C:
			if err := ls.renewLock(); err != nil {
				log.Warn("leader lock: renewal failed", "key", ls.key, "error", err)
				ls.cancel()
				return
			}
		}
	}
}

func (ls *leaderSession) renewLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, ls.client, []string{ls.key}, ls.value, ls.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if updated, ok := res.(int64); ok && updated == 0 {
		return errLockLost
	}
	return nil
}

func (ls *leaderSession) releaseLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	_, err := releaseScript.Run(ctx, ls.client, []string{ls.key}, ls.value).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func generateLeaderID() string {
	host, _ := os.Hostname()
	counter := leaderCounter.Add(1)
	return fmt.Sprintf("%s-%d-%d-%d", host, os.Getpid(), time.Now().UnixNano(), counter)
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
