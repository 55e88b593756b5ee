package ingest

import (
	"context"

	"github.com/google/uuid"

	"blockwatch/internal/domain"
)

// SnapshotStore keeps raw feed snapshots by key. Get reports false when the key is absent.
type SnapshotStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, content string) error
}

// RecordStore persists blocklist records keyed by address_id.
// Put returns domain.ErrRecordExists when the id is already stored.
// Get returns nil, nil for a missing record.
type RecordStore interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.BlocklistRecord, error)
	Put(ctx context.Context, record domain.BlocklistRecord) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// EventQueue publishes alert events downstream.
type EventQueue interface {
	Publish(ctx context.Context, msg domain.EventMessage, deduplicate bool) error
}

// FeedSource downloads the current text of a feed.
type FeedSource interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Enricher fills optional record fields such as the ASN.
type Enricher interface {
	Enrich(record *domain.BlocklistRecord) error
}
