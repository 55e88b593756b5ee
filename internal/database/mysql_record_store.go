package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"blockwatch/internal/domain"
)

const mysqlDuplicateEntry = 1062

const mysqlRecordSchema = `CREATE TABLE IF NOT EXISTS blocklist_records (
	address_id CHAR(36) NOT NULL PRIMARY KEY,
	ip_address VARCHAR(64) NOT NULL,
	feed_name VARCHAR(32) NOT NULL,
	feed_url VARCHAR(512) NOT NULL DEFAULT '',
	first_seen DATETIME NULL,
	last_seen DATETIME NOT NULL,
	asn INT NULL,
	asn_text VARCHAR(255) NULL,
	KEY idx_blocklist_records_ip_address (ip_address),
	KEY idx_blocklist_records_feed_name (feed_name)
)`

// MySQLRecordStore is the database/sql adapter for MySQL and MariaDB.
type MySQLRecordStore struct {
	db *sql.DB
}

// OpenMySQLRecordStore connects with dsn and ensures the records table exists.
func OpenMySQLRecordStore(ctx context.Context, dsn string) (*MySQLRecordStore, error) {
	normalized, err := normalizeMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", normalized)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	store := NewMySQLRecordStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func NewMySQLRecordStore(db *sql.DB) *MySQLRecordStore {
	return &MySQLRecordStore{db: db}
}

// normalizeMySQLDSN forces DATETIME parsing into UTC time.Time values.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func (s *MySQLRecordStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, mysqlRecordSchema); err != nil {
		return fmt.Errorf("create blocklist_records: %w", err)
	}
	return nil
}

func (s *MySQLRecordStore) Close() error {
	return s.db.Close()
}

func (s *MySQLRecordStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM blocklist_records WHERE address_id = ? LIMIT 1", id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check record %s: %w", id, err)
	}
	return true, nil
}

func (s *MySQLRecordStore) Get(ctx context.Context, id uuid.UUID) (*domain.BlocklistRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT address_id, ip_address, feed_name, feed_url, first_seen, last_seen, asn, asn_text
		FROM blocklist_records WHERE address_id = ?`, id.String())

	var (
		record    domain.BlocklistRecord
		feedName  string
		firstSeen sql.NullTime
		asn       sql.NullInt64
		asnText   sql.NullString
	)
	err := row.Scan(&record.AddressID, &record.IPAddress, &feedName, &record.FeedURL, &firstSeen, &record.LastSeen, &asn, &asnText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", id, err)
	}

	name, err := domain.ParseFeedName(feedName)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", id, err)
	}
	record.FeedName = name
	if firstSeen.Valid {
		fs := firstSeen.Time
		record.FirstSeen = &fs
	}
	record.NormalizeTimes()
	if asn.Valid {
		v := int(asn.Int64)
		record.ASN = &v
	}
	if asnText.Valid {
		v := asnText.String
		record.ASNText = &v
	}
	return &record, nil
}

func (s *MySQLRecordStore) Put(ctx context.Context, record domain.BlocklistRecord) error {
	var firstSeen any
	if record.FirstSeen != nil {
		firstSeen = record.FirstSeen.UTC()
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO blocklist_records
		(address_id, ip_address, feed_name, feed_url, first_seen, last_seen, asn, asn_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.AddressID.String(),
		record.IPAddress.String(),
		string(record.FeedName),
		record.FeedURL,
		firstSeen,
		record.LastSeen.UTC(),
		record.ASN,
		record.ASNText,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return domain.ErrRecordExists
		}
		return fmt.Errorf("insert record %s: %w", record.AddressID, err)
	}
	return nil
}

func (s *MySQLRecordStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM blocklist_records WHERE address_id = ?", id.String())
	if err != nil {
		return false, fmt.Errorf("delete record %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete record %s: %w", id, err)
	}
	return affected > 0, nil
}
