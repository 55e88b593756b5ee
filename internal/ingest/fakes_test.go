package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"blockwatch/internal/domain"
)

type memorySnapshots struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	puts   []string
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{data: make(map[string]string)}
}

func (m *memorySnapshots) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memorySnapshots) Put(_ context.Context, key, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = content
	m.puts = append(m.puts, key)
	return nil
}

type memoryRecords struct {
	mu      sync.Mutex
	records map[uuid.UUID]domain.BlocklistRecord
	putErr  error
	// raceOnPut makes Put report a conflict as if another writer won.
	raceOnPut bool
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{records: make(map[uuid.UUID]domain.BlocklistRecord)}
}

func (m *memoryRecords) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	return ok, nil
}

func (m *memoryRecords) Get(_ context.Context, id uuid.UUID) (*domain.BlocklistRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memoryRecords) Put(_ context.Context, record domain.BlocklistRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	if m.raceOnPut {
		return domain.ErrRecordExists
	}
	if _, ok := m.records[record.AddressID]; ok {
		return domain.ErrRecordExists
	}
	m.records[record.AddressID] = record
	return nil
}

func (m *memoryRecords) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[id]
	delete(m.records, id)
	return ok, nil
}

type publishedEvent struct {
	msg         domain.EventMessage
	deduplicate bool
}

type recordingQueue struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (q *recordingQueue) Publish(_ context.Context, msg domain.EventMessage, deduplicate bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, publishedEvent{msg: msg, deduplicate: deduplicate})
	return nil
}

type staticSource struct {
	content map[string]string
	err     error
	calls   int
}

func (s *staticSource) Fetch(_ context.Context, url string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	content, ok := s.content[url]
	if !ok {
		return "", errors.New("404 not found")
	}
	return content, nil
}

type stubEnricher struct{ asn int }

func (e stubEnricher) Enrich(record *domain.BlocklistRecord) error {
	asn := e.asn
	record.ASN = &asn
	return nil
}
