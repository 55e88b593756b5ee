package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"blockwatch/internal/ingest"
	"blockwatch/internal/support"
)

const ingestFallbackInterval = time.Hour

// RedisRunLock is an ingest.RunLock backed by a Redis leader key.
type RedisRunLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewRedisRunLock(client redis.UniversalClient, key string) *RedisRunLock {
	return &RedisRunLock{client: client, key: key, ttl: support.DefaultLeadershipTTL}
}

func (l *RedisRunLock) TryRun(ctx context.Context, run func(context.Context) error) (bool, error) {
	return support.TryWithLeader(ctx, l.client, l.key, l.ttl, run)
}

type IngestSchedule struct {
	Interval time.Duration
	// LeaderClient, when set, limits scheduling to the instance holding LeaderKey.
	LeaderClient redis.UniversalClient
	LeaderKey    string
}

// StartIngestRoutine triggers an ingest run at startup and then every
// Interval until ctx is cancelled.
func StartIngestRoutine(ctx context.Context, service *ingest.Service, schedule IngestSchedule) {
	if schedule.Interval <= 0 {
		schedule.Interval = ingestFallbackInterval
	}

	if schedule.LeaderClient == nil {
		runIngestLoop(ctx, service, schedule.Interval)
		return
	}

	err := support.RunWithLeader(ctx, schedule.LeaderClient, schedule.LeaderKey, support.DefaultLeadershipTTL, func(leaderCtx context.Context) {
		log.Info("Ingest scheduler elected", "key", schedule.LeaderKey, "interval", schedule.Interval)
		runIngestLoop(leaderCtx, service, schedule.Interval)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Ingest routine stopped", "error", err)
	}
}

func runIngestLoop(ctx context.Context, service *ingest.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	triggerIngest(ctx, service, "startup")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			triggerIngest(ctx, service, "scheduled")
			drainTicker(ticker)
		}
	}
}

func triggerIngest(ctx context.Context, service *ingest.Service, reason string) {
	outcome, err := service.Trigger(ctx, reason)
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		log.Debug("Ingest skipped: run in progress elsewhere", "reason", reason)
	case errors.Is(err, context.Canceled):
		log.Debug("Ingest cancelled", "reason", reason)
	case err != nil:
		log.Error("Ingest run failed", "reason", reason, "error", err)
	default:
		log.Info("Ingest run finished", "reason", reason, "processed", outcome.Processed, "duration", outcome.Duration)
	}
}

// drainTicker discards a tick that fired while a run was in progress.
func drainTicker(ticker *time.Ticker) {
	select {
	case <-ticker.C:
	default:
	}
}
