package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"blockwatch/internal/domain"
)

const defaultStreamMaxLen = 100_000

// RedisStreamPublisher appends events to a Redis stream named after the queue.
type RedisStreamPublisher struct {
	client    redis.UniversalClient
	stream    string
	dedupeTTL time.Duration
	maxLen    int64
}

func NewRedisStreamPublisher(client redis.UniversalClient, stream string, dedupeTTL time.Duration) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client:    client,
		stream:    stream,
		dedupeTTL: dedupeTTL,
		maxLen:    defaultStreamMaxLen,
	}
}

func (p *RedisStreamPublisher) dedupeKey(id string) string {
	return fmt.Sprintf("%s:dedupe:%s", p.stream, id)
}

// Publish appends msg to the stream. With deduplicate set, an address_id seen
// within the dedupe TTL is dropped silently.
func (p *RedisStreamPublisher) Publish(ctx context.Context, msg domain.EventMessage, deduplicate bool) error {
	payload, err := domain.EncodeEventMessage(msg)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	id := msg.Record.AddressID.String()

	if deduplicate {
		fresh, err := p.client.SetNX(ctx, p.dedupeKey(id), 1, p.dedupeTTL).Result()
		if err != nil {
			return fmt.Errorf("dedupe check for %s: %w", id, err)
		}
		if !fresh {
			log.Debug("Duplicate event dropped", "stream", p.stream, "address_id", id)
			return nil
		}
	}

	entryID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"address_id": id,
			"payload":    string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	log.Debug("Event published", "stream", p.stream, "address_id", id, "entry", entryID)
	return nil
}
