package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRecordExists is returned by record stores when a conditional insert finds
// the address_id already present.
var ErrRecordExists = errors.New("record already exists")

// DefaultAddressNamespace seeds address identifiers when no namespace is configured.
// Changing it re-keys every stored record.
var DefaultAddressNamespace = uuid.MustParse("3b2f6a0e-8c1d-4e57-9a64-0d5c7f1e2b93")

// BlocklistRecord is one address observed on a feed.
type BlocklistRecord struct {
	// AddressID is a UUIDv5 over the canonical address string.
	AddressID uuid.UUID `gorm:"column:address_id;type:varchar(36);primaryKey" json:"address_id"`

	IPAddress Address  `gorm:"column:ip_address;type:varchar(64);not null;index" json:"ip_address"`
	FeedName  FeedName `gorm:"column:feed_name;size:32;not null;index" json:"feed_name"`
	FeedURL   string   `gorm:"column:feed_url;size:512;not null;default:''" json:"feed_url"`

	FirstSeen *time.Time `gorm:"column:first_seen" json:"first_seen"`
	LastSeen  time.Time  `gorm:"column:last_seen;not null" json:"last_seen"`

	ASN     *int    `gorm:"column:asn" json:"asn"`
	ASNText *string `gorm:"column:asn_text;size:255" json:"asn_text"`
}

func (BlocklistRecord) TableName() string { return "blocklist_records" }

// AddressID derives the record identifier for an address.
func AddressID(namespace uuid.UUID, address Address) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(address.String()))
}

// NewBlocklistRecord builds a record with UTC timestamps. lastSeen is truncated to the second.
func NewBlocklistRecord(namespace uuid.UUID, address Address, feed FeedName, feedURL string, firstSeen *time.Time, lastSeen time.Time) BlocklistRecord {
	record := BlocklistRecord{
		AddressID: AddressID(namespace, address),
		IPAddress: address,
		FeedName:  feed,
		FeedURL:   feedURL,
		LastSeen:  lastSeen.UTC().Truncate(time.Second),
	}
	if firstSeen != nil {
		fs := firstSeen.UTC()
		record.FirstSeen = &fs
	}
	return record
}

// NormalizeTimes converts loaded timestamps to UTC. Drivers may hand back
// values in the server or local zone.
func (r *BlocklistRecord) NormalizeTimes() {
	r.LastSeen = r.LastSeen.UTC()
	if r.FirstSeen != nil {
		fs := r.FirstSeen.UTC()
		r.FirstSeen = &fs
	}
}
