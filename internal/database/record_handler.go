package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"blockwatch/internal/domain"
)

// RecordStore keeps blocklist records in a gorm database (Postgres in
// production, SQLite for local runs and tests).
type RecordStore struct {
	db *gorm.DB
}

func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db}
}

func (s *RecordStore) conn(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("database not initialised")
	}
	return s.db.WithContext(ctx), nil
}

func (s *RecordStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&domain.BlocklistRecord{}).Where("address_id = ?", id).Limit(1).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check record %s: %w", id, err)
	}
	return count > 0, nil
}

func (s *RecordStore) Get(ctx context.Context, id uuid.UUID) (*domain.BlocklistRecord, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var record domain.BlocklistRecord
	if err := db.Where("address_id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load record %s: %w", id, err)
	}
	record.NormalizeTimes()
	return &record, nil
}

// Put inserts the record unless its address_id is already stored, in which
// case domain.ErrRecordExists is returned.
func (s *RecordStore) Put(ctx context.Context, record domain.BlocklistRecord) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address_id"}},
		DoNothing: true,
	}).Create(&record)
	if result.Error != nil {
		return fmt.Errorf("insert record %s: %w", record.AddressID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrRecordExists
	}
	return nil
}

func (s *RecordStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}

	result := db.Where("address_id = ?", id).Delete(&domain.BlocklistRecord{})
	if result.Error != nil {
		return false, fmt.Errorf("delete record %s: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}
