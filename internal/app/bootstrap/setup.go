package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"blockwatch/internal/config"
	"blockwatch/internal/database"
	"blockwatch/internal/feedsource"
	"blockwatch/internal/geolite"
	"blockwatch/internal/ingest"
	jobruntime "blockwatch/internal/jobs/runtime"
	"blockwatch/internal/queue"
	"blockwatch/internal/security"
	"blockwatch/internal/snapshot"
	"blockwatch/internal/support"
)

const (
	secretJWT            = "jwt-secret"
	secretDBPassword     = "db-password"
	secretGeoLiteLicense = "geolite-license-key"
)

// Components holds everything wired from Settings. Close releases them in
// reverse order of creation.
type Components struct {
	Settings config.Settings
	Catalog  config.Catalog

	Secrets     security.SecretProvider
	Redis       *redis.Client
	Records     ingest.RecordStore
	Coordinator *ingest.Coordinator
	Service     *ingest.Service

	// Optional parts; nil when not configured.
	Enricher *geolite.ASNEnricher
	Updater  *geolite.Updater
	Auth     *security.Authenticator

	closers []func() error
}

func (c *Components) onClose(fn func() error) { c.closers = append(c.closers, fn) }

func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// SchedulerKey and RunLockKey name the Redis keys used for cross-instance coordination.
func SchedulerKey(s config.Settings) string {
	return fmt.Sprintf("%s:%s:leader:ingest-scheduler", s.AppName, s.Env)
}

func RunLockKey(s config.Settings) string {
	return fmt.Sprintf("%s:%s:lock:ingest-run", s.AppName, s.Env)
}

// NewSecrets reads from SecretsDir first when set, then the environment.
func NewSecrets(s config.Settings) security.SecretProvider {
	if s.SecretsDir == "" {
		return security.EnvSecrets{}
	}
	return security.ChainSecrets{security.FileSecrets{Root: s.SecretsDir}, security.EnvSecrets{}}
}

// LoadCatalog reads FeedsFile, or the embedded default catalog when unset.
func LoadCatalog(s config.Settings) (config.Catalog, error) {
	return config.LoadCatalog(s.FeedsFile)
}

func Setup(ctx context.Context, settings config.Settings) (*Components, error) {
	c := &Components{Settings: settings, Secrets: NewSecrets(settings)}
	if err := c.setup(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) setup(ctx context.Context) error {
	s := c.Settings

	catalog, err := LoadCatalog(s)
	if err != nil {
		return fmt.Errorf("load feed catalog: %w", err)
	}
	c.Catalog = catalog

	if s.RedisURL != "" {
		client, err := support.GetRedisClient(ctx, s.RedisURL)
		if err != nil {
			return err
		}
		c.Redis = client
		c.onClose(support.CloseRedisClient)
	}

	snapshots, err := c.snapshotStore()
	if err != nil {
		return err
	}
	records, err := c.recordStore(ctx)
	if err != nil {
		return err
	}
	c.Records = records
	events, err := c.eventQueue()
	if err != nil {
		return err
	}
	source, err := feedsource.NewHTTPSource(s.Fetch)
	if err != nil {
		return err
	}

	opts := []ingest.Option{
		ingest.WithEnvironment(s.Env),
		ingest.WithNamespace(s.AddressNamespace),
	}
	if err := c.setupGeoLite(ctx); err != nil {
		return err
	}
	if c.Enricher != nil {
		opts = append(opts, ingest.WithEnricher(c.Enricher))
	}

	coordinator, err := ingest.NewCoordinator(catalog, ingest.Dependencies{
		Snapshots: snapshots,
		Records:   records,
		Events:    events,
		Source:    source,
	}, opts...)
	if err != nil {
		return err
	}
	c.Coordinator = coordinator

	serviceOpts := []ingest.ServiceOption{ingest.WithLifetime(ctx)}
	if s.LeaderLock && c.Redis != nil {
		serviceOpts = append(serviceOpts, ingest.WithRunLock(jobruntime.NewRedisRunLock(c.Redis, RunLockKey(s))))
	}
	c.Service = ingest.NewService(coordinator, serviceOpts...)

	c.setupAuth(ctx)

	log.Info("Components ready",
		"env", s.Env,
		"feeds", len(catalog),
		"snapshots", s.SnapshotBackend,
		"records", s.Records.Backend,
		"events", s.Events.Backend,
		"asn_enrichment", c.Enricher != nil && c.Enricher.Available(),
	)
	return nil
}

func (c *Components) snapshotStore() (ingest.SnapshotStore, error) {
	switch c.Settings.SnapshotBackend {
	case config.BackendRedis:
		return snapshot.NewRedisStore(c.Redis,
			snapshot.WithKeyPrefix(fmt.Sprintf("%s:snapshots:", c.Settings.AppName)),
			snapshot.WithArchiveTTL(c.Settings.SnapshotTTL),
		), nil
	default:
		return snapshot.NewFileStore(c.Settings.SnapshotDir)
	}
}

func (c *Components) recordStore(ctx context.Context) (ingest.RecordStore, error) {
	s := c.Settings

	var dialector gorm.Dialector
	switch s.Records.Backend {
	case config.BackendMySQL:
		store, err := database.OpenMySQLRecordStore(ctx, s.Records.MySQLDSN)
		if err != nil {
			return nil, err
		}
		c.onClose(store.Close)
		return store, nil
	case config.BackendPostgres:
		pg := s.Records.Postgres
		if pg.Password == "" {
			if password, err := c.Secrets.GetSecret(ctx, s.SecretPath(secretDBPassword)); err == nil {
				pg.Password = password
			}
		}
		dialector = database.PostgresDialector(pg)
	default:
		d, err := database.SQLiteDialector(s.Records.SQLitePath)
		if err != nil {
			return nil, err
		}
		dialector = d
	}

	dbOpts := []database.Option{database.WithDialector(dialector)}
	if strings.EqualFold(s.Log.Level, "debug") {
		dbOpts = append(dbOpts, database.WithLogger(database.DebugLogger()))
	}
	db, err := database.SetupDB(dbOpts...)
	if err != nil {
		return nil, err
	}
	c.onClose(func() error { return closeGorm(db) })
	return database.NewRecordStore(db), nil
}

func closeGorm(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (c *Components) eventQueue() (ingest.EventQueue, error) {
	s := c.Settings
	switch s.Events.Backend {
	case config.BackendKafka:
		publisher, err := queue.NewKafkaPublisher(s.Events.KafkaBrokers, s.Events.Queue, s.AppName)
		if err != nil {
			return nil, err
		}
		c.onClose(publisher.Close)
		return publisher, nil
	case config.BackendRedis:
		return queue.NewRedisStreamPublisher(c.Redis, s.Events.Queue, s.Events.DedupeTTL), nil
	default:
		return queue.NewLogPublisher(nil), nil
	}
}

func (c *Components) setupGeoLite(ctx context.Context) error {
	path := c.Settings.GeoLiteASNPath
	if path == "" {
		return nil
	}
	enricher, err := geolite.OpenASNEnricher(path)
	if err != nil {
		return err
	}
	c.Enricher = enricher
	c.onClose(enricher.Close)

	licenseKey, err := c.Secrets.GetSecret(ctx, c.Settings.SecretPath(secretGeoLiteLicense))
	if err != nil && !errors.Is(err, security.ErrSecretNotFound) {
		return err
	}
	c.Updater = geolite.NewUpdater(licenseKey, enricher)
	return nil
}

func (c *Components) setupAuth(ctx context.Context) {
	secret, err := c.Secrets.GetSecret(ctx, c.Settings.SecretPath(secretJWT))
	if err != nil {
		log.Warn("JWT secret not configured, admin endpoints disabled", "error", err)
		return
	}
	auth, err := security.NewAuthenticator(secret, c.Settings.AppName)
	if err != nil {
		log.Warn("JWT secret rejected, admin endpoints disabled", "error", err)
		return
	}
	c.Auth = auth
}

// Authenticator builds the token issuer on its own, for CLI use without the full component set.
func Authenticator(ctx context.Context, settings config.Settings) (*security.Authenticator, error) {
	secret, err := NewSecrets(settings).GetSecret(ctx, settings.SecretPath(secretJWT))
	if err != nil {
		return nil, err
	}
	return security.NewAuthenticator(secret, settings.AppName)
}

// SetupRecords wires only the record store, for commands that inspect or edit records.
func SetupRecords(ctx context.Context, settings config.Settings) (*Components, error) {
	c := &Components{Settings: settings, Secrets: NewSecrets(settings)}
	records, err := c.recordStore(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Records = records
	return c, nil
}

// SetupGeoLite wires only the ASN enricher and its updater.
func SetupGeoLite(ctx context.Context, settings config.Settings) (*Components, error) {
	if settings.GeoLiteASNPath == "" {
		return nil, errors.New("GEOLITE_ASN_PATH is not set")
	}
	c := &Components{Settings: settings, Secrets: NewSecrets(settings)}
	if err := c.setupGeoLite(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}
