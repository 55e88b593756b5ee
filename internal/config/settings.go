package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"blockwatch/internal/domain"
	"blockwatch/internal/support"
)

const (
	defaultAppName        = "blockwatch"
	defaultEnv            = "dev"
	defaultSnapshotDir    = "data/snapshots"
	defaultSQLitePath     = "data/blockwatch.db"
	defaultFetchTimeout   = 60 * time.Second
	defaultFetchMaxBytes  = 32 << 20
	defaultIngestInterval = time.Hour
	DefaultBackendPort    = 8082
	defaultDedupeTTL      = 24 * time.Hour
)

// Backend names accepted in the environment.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendSQLite   = "sqlite"
	BackendKafka    = "kafka"
	BackendLog      = "log"
)

var ErrInvalidSettings = errors.New("invalid settings")

type PostgresSettings struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

type RecordSettings struct {
	Backend    string
	Postgres   PostgresSettings
	MySQLDSN   string
	SQLitePath string
}

type EventSettings struct {
	Backend      string
	Queue        string
	KafkaBrokers []string
	DedupeTTL    time.Duration
}

type FetchSettings struct {
	Timeout      time.Duration
	MaxBytes     int64
	SOCKS5Proxy  string
	UserAgent    string
	BlockedHosts []string
}

// Settings is the process configuration, read once from the environment.
type Settings struct {
	Env     string
	AppName string

	FeedsFile        string
	AddressNamespace uuid.UUID

	SnapshotBackend string
	SnapshotDir     string
	SnapshotTTL     time.Duration
	RedisURL        string

	Records RecordSettings
	Events  EventSettings
	Fetch   FetchSettings

	GeoLiteASNPath string
	IngestInterval time.Duration
	LeaderLock     bool
	BackendPort    int
	SecretsDir     string

	Log support.LogOptions
}

// QueueName is the default event queue for an environment.
func QueueName(env string) string {
	return fmt.Sprintf("%s-early-warning-service", env)
}

// SecretPath scopes a secret name to the environment and application.
func (s Settings) SecretPath(name string) string {
	return fmt.Sprintf("/%s/%s/%s", s.Env, s.AppName, strings.TrimPrefix(name, "/"))
}

func LoadSettings() (Settings, error) {
	env := strings.ToLower(strings.TrimSpace(support.GetEnv("APP_ENV", defaultEnv)))
	if env == "" {
		env = defaultEnv
	}

	s := Settings{
		Env:             env,
		AppName:         support.GetEnv("APP_NAME", defaultAppName),
		FeedsFile:       support.GetEnv("FEEDS_FILE", ""),
		SnapshotBackend: strings.ToLower(support.GetEnv("SNAPSHOT_BACKEND", BackendFile)),
		SnapshotDir:     support.GetEnv("SNAPSHOT_DIR", defaultSnapshotDir),
		SnapshotTTL:     support.GetEnvDuration("SNAPSHOT_ARCHIVE_TTL", 0),
		RedisURL:        support.GetEnv("REDIS_URL", ""),
		Records: RecordSettings{
			Backend: strings.ToLower(support.GetEnv("RECORD_BACKEND", BackendSQLite)),
			Postgres: PostgresSettings{
				Host:     support.GetEnv("DB_HOST", "localhost"),
				Port:     support.GetEnvInt("DB_PORT", 5432),
				Name:     support.GetEnv("DB_NAME", "blockwatch"),
				User:     support.GetEnv("DB_USERNAME", "postgres"),
				Password: support.GetEnv("DB_PASSWORD", ""),
			},
			MySQLDSN:   support.GetEnv("MYSQL_DSN", ""),
			SQLitePath: support.GetEnv("SQLITE_PATH", defaultSQLitePath),
		},
		Events: EventSettings{
			Backend:      strings.ToLower(support.GetEnv("EVENT_BACKEND", BackendLog)),
			Queue:        support.GetEnv("EVENT_QUEUE", QueueName(env)),
			KafkaBrokers: support.GetEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			DedupeTTL:    support.GetEnvDuration("EVENT_DEDUPE_TTL", defaultDedupeTTL),
		},
		Fetch: FetchSettings{
			Timeout:      support.GetEnvDuration("FETCH_TIMEOUT", defaultFetchTimeout),
			MaxBytes:     support.GetEnvInt64("FETCH_MAX_BYTES", defaultFetchMaxBytes),
			SOCKS5Proxy:  support.GetEnv("FETCH_SOCKS5_PROXY", ""),
			UserAgent:    support.GetEnv("FETCH_USER_AGENT", defaultAppName),
			BlockedHosts: support.GetEnvList("FETCH_BLOCKED_HOSTS", nil),
		},
		GeoLiteASNPath: support.GetEnv("GEOLITE_ASN_PATH", ""),
		IngestInterval: support.GetEnvDuration("INGEST_INTERVAL", defaultIngestInterval),
		BackendPort:    support.GetEnvInt("BACKEND_PORT", DefaultBackendPort),
		SecretsDir:     support.GetEnv("SECRETS_DIR", ""),
		Log: support.LogOptions{
			Level:  support.GetEnv("LOG_LEVEL", "info"),
			Format: support.GetEnv("LOG_FORMAT", "text"),
			File:   support.GetEnv("LOG_FILE", ""),
		},
	}
	s.LeaderLock = support.GetEnvBool("LEADER_LOCK", s.RedisURL != "")

	namespace := domain.DefaultAddressNamespace
	if raw := strings.TrimSpace(support.GetEnv("ADDRESS_NAMESPACE", "")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("%w: ADDRESS_NAMESPACE: %v", ErrInvalidSettings, err)
		}
		namespace = parsed
	}
	s.AddressNamespace = namespace

	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	switch s.SnapshotBackend {
	case BackendFile, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown SNAPSHOT_BACKEND %q", ErrInvalidSettings, s.SnapshotBackend)
	}
	switch s.Records.Backend {
	case BackendPostgres, BackendSQLite:
	case BackendMySQL:
		if s.Records.MySQLDSN == "" {
			return fmt.Errorf("%w: RECORD_BACKEND=mysql requires MYSQL_DSN", ErrInvalidSettings)
		}
	default:
		return fmt.Errorf("%w: unknown RECORD_BACKEND %q", ErrInvalidSettings, s.Records.Backend)
	}
	switch s.Events.Backend {
	case BackendKafka, BackendRedis, BackendLog:
	default:
		return fmt.Errorf("%w: unknown EVENT_BACKEND %q", ErrInvalidSettings, s.Events.Backend)
	}
	if (s.SnapshotBackend == BackendRedis || s.Events.Backend == BackendRedis || s.LeaderLock) && s.RedisURL == "" {
		return fmt.Errorf("%w: REDIS_URL is required for the selected backends", ErrInvalidSettings)
	}
	if s.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("%w: FETCH_MAX_BYTES must be positive", ErrInvalidSettings)
	}
	return nil
}
