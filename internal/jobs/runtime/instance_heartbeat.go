package runtime

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultHeartbeatTTL      = 30 * time.Second
)

var instanceID = generateInstanceID()

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d", hostname, os.Getpid(), time.Now().UnixNano())
}

func InstanceID() string { return instanceID }

// HeartbeatKeyPrefix scopes instance keys to an application and environment.
func HeartbeatKeyPrefix(app, env string) string {
	return fmt.Sprintf("%s:%s:instance:", app, env)
}

func StartInstanceHeartbeat(ctx context.Context, client redis.UniversalClient, keyPrefix string, interval, ttl time.Duration) {
	heartbeatKey := keyPrefix + instanceID

	sendHeartbeat := func() {
		if err := client.SetEx(ctx, heartbeatKey, "alive", ttl).Err(); err != nil && ctx.Err() == nil {
			log.Error("Failed to update instance heartbeat", "key", heartbeatKey, "error", err)
		}
	}

	sendHeartbeat()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sendHeartbeat()
		}
	}
}

func LaunchInstanceHeartbeat(parent context.Context, client redis.UniversalClient, keyPrefix string) context.CancelFunc {
	ctx, cancel := context.WithCancel(parent)
	go StartInstanceHeartbeat(ctx, client, keyPrefix, DefaultHeartbeatInterval, DefaultHeartbeatTTL)
	return cancel
}

// CountActiveInstances counts live heartbeats under keyPrefix.
func CountActiveInstances(ctx context.Context, client redis.UniversalClient, keyPrefix string) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}
