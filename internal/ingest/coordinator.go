package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"blockwatch/internal/blacklist"
	"blockwatch/internal/config"
	"blockwatch/internal/domain"
	"blockwatch/internal/metrics"
)

// Skip reasons reported in FeedOutcome and the feed skip metric.
const (
	SkipDisabled    = "disabled"
	SkipFetchFailed = "fetch_failed"
	SkipEmpty       = "empty"
)

type Dependencies struct {
	Snapshots SnapshotStore
	Records   RecordStore
	Events    EventQueue
	Source    FeedSource
}

// Coordinator runs the ingest pipeline over every feed of a catalog, one feed
// and one address at a time.
type Coordinator struct {
	catalog   config.Catalog
	deps      Dependencies
	enricher  Enricher
	env       string
	namespace uuid.UUID
	now       func() time.Time
}

type Option func(*Coordinator)

func WithEnricher(enricher Enricher) Option {
	return func(c *Coordinator) { c.enricher = enricher }
}

func WithEnvironment(env string) Option {
	return func(c *Coordinator) { c.env = env }
}

func WithNamespace(namespace uuid.UUID) Option {
	return func(c *Coordinator) { c.namespace = namespace }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(catalog config.Catalog, deps Dependencies, opts ...Option) (*Coordinator, error) {
	if deps.Snapshots == nil || deps.Records == nil || deps.Events == nil || deps.Source == nil {
		return nil, errors.New("coordinator requires snapshot, record, event and source collaborators")
	}

	c := &Coordinator{
		catalog:   catalog,
		deps:      deps,
		env:       "dev",
		namespace: domain.DefaultAddressNamespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Coordinator) Catalog() config.Catalog { return c.catalog }

// Namespace is the UUID namespace used to derive address identifiers.
func (c *Coordinator) Namespace() uuid.UUID { return c.namespace }

// Run processes every feed in catalog order. Feed-level failures are logged and
// recorded in the outcome; only context cancellation aborts the run.
func (c *Coordinator) Run(ctx context.Context) (outcome RunOutcome, err error) {
	clockStart := c.now()
	started := clockStart.UTC()
	outcome.StartedAt = started

	defer func() {
		outcome.Duration = c.now().Sub(clockStart)
		metrics.RunDuration.Observe(outcome.Duration.Seconds())
	}()

	for _, feed := range c.catalog {
		if err = ctx.Err(); err != nil {
			return outcome, err
		}

		result := c.processFeed(ctx, feed, started)
		outcome.Feeds = append(outcome.Feeds, result)
		outcome.Processed += result.Queued
	}

	if err = ctx.Err(); err != nil {
		return outcome, err
	}

	log.Info("Ingest run completed", "feeds", len(outcome.Feeds), "processed", outcome.Processed)
	return outcome, nil
}

func (c *Coordinator) processFeed(ctx context.Context, feed config.FeedConfig, runStarted time.Time) FeedOutcome {
	result := FeedOutcome{Source: feed.Source, Name: feed.Name}
	feedLabel := string(feed.Name)

	if feed.Disabled {
		log.Info("Feed disabled, skipping", "feed", feed.Name, "source", feed.Source)
		return result.skip(SkipDisabled)
	}

	latestKey := LatestKey(c.env, feed)
	previous, found, err := c.deps.Snapshots.Get(ctx, latestKey)
	if err != nil {
		metrics.CollaboratorFailures.WithLabelValues("snapshot_get").Inc()
		log.Warn("Failed to read previous snapshot, treating as cold start", "feed", feed.Name, "key", latestKey, "error", err)
		previous, found = "", false
	}

	content, err := c.deps.Source.Fetch(ctx, feed.URL)
	if err != nil {
		metrics.CollaboratorFailures.WithLabelValues("fetch").Inc()
		log.Warn("Failed to retrieve feed", "feed", feed.Name, "url", feed.URL, "error", err)
		return result.skip(SkipFetchFailed)
	}
	if content == "" {
		log.Warn("Feed returned no data", "feed", feed.Name, "url", feed.URL)
		return result.skip(SkipEmpty)
	}

	archiveKey := ArchiveKey(c.env, feed, runStarted)
	if err := c.deps.Snapshots.Put(ctx, archiveKey, content); err != nil {
		metrics.CollaboratorFailures.WithLabelValues("snapshot_put").Inc()
		log.Warn("Failed to archive raw feed", "feed", feed.Name, "key", archiveKey, "error", err)
	}

	current := content
	if !found || previous == "" {
		previous = ""
		current = BootstrapContent(content)
		result.Bootstrapped = true
		log.Info("No previous snapshot, bootstrapping with first half of feed",
			"feed", feed.Name,
			"lines", len(blacklist.SplitLines(current)),
		)
	}

	for address := range blacklist.Diff(previous, current) {
		if ctx.Err() != nil {
			break
		}
		result.Candidates++

		switch c.ingestAddress(ctx, feed, current, address) {
		case addressQueued:
			result.Queued++
			metrics.RecordsQueued.WithLabelValues(feedLabel).Inc()
			metrics.RecordsProcessed.Inc()
		case addressExisting:
			result.Existing++
			metrics.RecordsExisting.WithLabelValues(feedLabel).Inc()
		case addressFailed:
			result.Failed++
		}
	}

	if ctx.Err() != nil {
		return result
	}

	if err := c.deps.Snapshots.Put(ctx, latestKey, content); err != nil {
		metrics.CollaboratorFailures.WithLabelValues("snapshot_put").Inc()
		log.Error("Failed to store latest snapshot", "feed", feed.Name, "key", latestKey, "error", err)
	}

	log.Info("Feed ingested",
		"feed", feed.Name,
		"source", feed.Source,
		"candidates", result.Candidates,
		"existing", result.Existing,
		"queued", result.Queued,
		"failed", result.Failed,
	)
	return result
}

type addressResult int

const (
	addressQueued addressResult = iota
	addressExisting
	addressFailed
)

func (c *Coordinator) ingestAddress(ctx context.Context, feed config.FeedConfig, content string, address domain.Address) addressResult {
	now := c.now().UTC().Truncate(time.Second)
	firstSeen := now
	if seen, ok := blacklist.FirstSeen(content, address); ok {
		firstSeen = seen
	}

	record := domain.NewBlocklistRecord(c.namespace, address, feed.Name, feed.URL, &firstSeen, now)
	if c.enricher != nil {
		if err := c.enricher.Enrich(&record); err != nil {
			log.Debug("Record enrichment failed", "address", address, "error", err)
		}
	}

	exists, err := c.deps.Records.Exists(ctx, record.AddressID)
	if err != nil {
		metrics.CollaboratorFailures.WithLabelValues("record_exists").Inc()
		log.Error("Failed to check record", "address", address, "address_id", record.AddressID, "error", err)
		return addressFailed
	}
	if exists {
		return addressExisting
	}

	if err := c.deps.Records.Put(ctx, record); err != nil {
		if errors.Is(err, domain.ErrRecordExists) {
			return addressExisting
		}
		metrics.CollaboratorFailures.WithLabelValues("record_put").Inc()
		log.Error("Failed to store record", "address", address, "address_id", record.AddressID, "error", err)
		return addressFailed
	}

	msg := domain.EventMessage{Record: record, Source: feed.Source}
	if err := c.deps.Events.Publish(ctx, msg, false); err != nil {
		metrics.CollaboratorFailures.WithLabelValues("publish").Inc()
		log.Error("Failed to publish record", "address", address, "address_id", record.AddressID, "error", err)
		return addressFailed
	}

	log.Debug("Record queued", "feed", feed.Name, "address", address, "address_id", record.AddressID)
	return addressQueued
}

// RunOutcome summarises one ingest run.
type RunOutcome struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Processed int           `json:"processed"`
	Feeds     []FeedOutcome `json:"feeds"`
}

// Feed returns the outcome for a feed name, if it was part of the run.
func (o RunOutcome) Feed(name domain.FeedName) (FeedOutcome, bool) {
	for _, feed := range o.Feeds {
		if feed.Name == name {
			return feed, true
		}
	}
	return FeedOutcome{}, false
}

type FeedOutcome struct {
	Source       string          `json:"source"`
	Name         domain.FeedName `json:"name"`
	Skipped      bool            `json:"skipped"`
	SkipReason   string          `json:"skip_reason,omitempty"`
	Bootstrapped bool            `json:"bootstrapped"`
	Candidates   int             `json:"candidates"`
	Existing     int             `json:"existing"`
	Queued       int             `json:"queued"`
	Failed       int             `json:"failed"`
}

func (f FeedOutcome) skip(reason string) FeedOutcome {
	f.Skipped = true
	f.SkipReason = reason
	metrics.FeedSkips.WithLabelValues(string(f.Name), reason).Inc()
	return f
}

func (f FeedOutcome) String() string {
	if f.Skipped {
		return fmt.Sprintf("%s/%s skipped (%s)", f.Source, f.Name, f.SkipReason)
	}
	return fmt.Sprintf("%s/%s queued=%d existing=%d failed=%d", f.Source, f.Name, f.Queued, f.Existing, f.Failed)
}
