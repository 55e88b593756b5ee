package geolite

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"

	"blockwatch/internal/domain"
)

// ASNEnricher fills BlocklistRecord.ASN and ASNText from a GeoLite2-ASN database.
// Without a loaded database Enrich is a no-op.
type ASNEnricher struct {
	path   string
	mu     sync.Mutex
	reader atomic.Pointer[geoip2.Reader]
}

// OpenASNEnricher loads the database at path. A missing file is not an error;
// the enricher stays empty until Reload finds one.
func OpenASNEnricher(path string) (*ASNEnricher, error) {
	e := &ASNEnricher{path: path}
	if err := e.Reload(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return e, nil
}

func (e *ASNEnricher) Path() string { return e.path }

func (e *ASNEnricher) Available() bool { return e.reader.Load() != nil }

// Reload reopens the database from disk and swaps it in.
func (e *ASNEnricher) Reload() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := os.ReadFile(e.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("GeoLite ASN database not found, enrichment disabled", "path", e.path)
		}
		return fmt.Errorf("read geolite asn database: %w", err)
	}
	reader, err := geoip2.FromBytes(data)
	if err != nil {
		return fmt.Errorf("open geolite asn database: %w", err)
	}

	if old := e.reader.Swap(reader); old != nil {
		_ = old.Close()
	}
	log.Info("GeoLite ASN database loaded", "path", e.path)
	return nil
}

func (e *ASNEnricher) Enrich(record *domain.BlocklistRecord) error {
	reader := e.reader.Load()
	if reader == nil || record == nil || !record.IPAddress.IsValid() {
		return nil
	}

	ip := net.IP(record.IPAddress.Addr().AsSlice())
	asn, err := reader.ASN(ip)
	if err != nil {
		return fmt.Errorf("asn lookup for %s: %w", record.IPAddress, err)
	}
	if asn.AutonomousSystemNumber == 0 {
		return nil
	}

	number := int(asn.AutonomousSystemNumber)
	record.ASN = &number
	if asn.AutonomousSystemOrganization != "" {
		org := asn.AutonomousSystemOrganization
		record.ASNText = &org
	}
	return nil
}

func (e *ASNEnricher) Close() error {
	if old := e.reader.Swap(nil); old != nil {
		return old.Close()
	}
	return nil
}
