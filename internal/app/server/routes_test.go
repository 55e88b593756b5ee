package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"blockwatch/internal/config"
	"blockwatch/internal/domain"
	"blockwatch/internal/ingest"
	"blockwatch/internal/security"
)

type memoryRecords struct {
	mu   sync.Mutex
	rows map[uuid.UUID]domain.BlocklistRecord
}

func (m *memoryRecords) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok, nil
}

func (m *memoryRecords) Get(_ context.Context, id uuid.UUID) (*domain.BlocklistRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *memoryRecords) Put(_ context.Context, r domain.BlocklistRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[r.AddressID]; ok {
		return domain.ErrRecordExists
	}
	m.rows[r.AddressID] = r
	return nil
}

func (m *memoryRecords) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	delete(m.rows, id)
	return ok, nil
}

type stubRunner struct{ calls int }

func (s *stubRunner) Run(context.Context) (ingest.RunOutcome, error) {
	s.calls++
	return ingest.RunOutcome{Processed: 7}, nil
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAPI(t *testing.T, withAuth bool) (*API, *memoryRecords, *stubRunner) {
	t.Helper()
	records := &memoryRecords{rows: map[uuid.UUID]domain.BlocklistRecord{}}
	runner := &stubRunner{}
	api := &API{
		Service:   ingest.NewService(runner),
		Records:   records,
		Catalog:   config.Catalog{{Source: "dataplane", Name: domain.SSHClient, URL: "https://example.test/ssh.txt"}},
		Namespace: domain.DefaultAddressNamespace,
		Instances: func(context.Context) (int, error) { return 2, nil },
	}
	if withAuth {
		auth, err := security.NewAuthenticator(testSecret, "blockwatch")
		if err != nil {
			t.Fatalf("NewAuthenticator returned error: %v", err)
		}
		api.Auth = auth
	}
	return api, records, runner
}

func adminHeader(t *testing.T, api *API) string {
	t.Helper()
	token, err := api.Auth.GenerateToken("ops", security.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	return "Bearer " + token
}

func serve(h http.Handler, method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndFeeds(t *testing.T) {
	api, _, _ := newTestAPI(t, false)
	h := api.Handler()

	rec := serve(h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("/health status = %d", rec.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "ok" || health["instances"] != float64(2) {
		t.Fatalf("health = %v", health)
	}

	rec = serve(h, http.MethodGet, "/api/feeds", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"name":"sshclient"`) {
		t.Fatalf("/api/feeds = %d %s", rec.Code, rec.Body.String())
	}

	if rec = serve(h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
}

func TestGetRecord(t *testing.T) {
	api, records, _ := newTestAPI(t, false)
	h := api.Handler()

	address := domain.MustParseAddress("10.0.0.0/8")
	record := domain.NewBlocklistRecord(api.Namespace, address, domain.SSHClient, "https://example.test/ssh.txt", nil, time.Now())
	_ = records.Put(context.Background(), record)

	rec := serve(h, http.MethodGet, "/api/records/10.0.0.0/8", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), record.AddressID.String()) {
		t.Fatalf("body %s lacks address_id", rec.Body.String())
	}

	if rec = serve(h, http.MethodGet, "/api/records/192.0.2.1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing record status = %d", rec.Code)
	}
	if rec = serve(h, http.MethodGet, "/api/records/not-an-ip", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid address status = %d", rec.Code)
	}
}

func TestAdminEndpointsDisabledWithoutAuth(t *testing.T) {
	api, _, runner := newTestAPI(t, false)
	rec := serve(api.Handler(), http.MethodPost, "/api/runs", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if runner.calls != 0 {
		t.Fatal("run triggered without auth")
	}
}

func TestTriggerRunAndLastRun(t *testing.T) {
	api, _, runner := newTestAPI(t, true)
	h := api.Handler()

	if rec := serve(h, http.MethodGet, "/api/runs/last", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("last run before any run = %d", rec.Code)
	}
	if rec := serve(h, http.MethodPost, "/api/runs", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated trigger = %d", rec.Code)
	}

	rec := serve(h, http.MethodPost, "/api/runs", adminHeader(t, api))
	if rec.Code != http.StatusOK {
		t.Fatalf("trigger status = %d, body %s", rec.Code, rec.Body.String())
	}
	if runner.calls != 1 || !strings.Contains(rec.Body.String(), `"processed":7`) {
		t.Fatalf("calls = %d, body %s", runner.calls, rec.Body.String())
	}

	if rec = serve(h, http.MethodGet, "/api/runs/last", ""); rec.Code != http.StatusOK {
		t.Fatalf("last run status = %d", rec.Code)
	}
}

func TestDeleteRecord(t *testing.T) {
	api, records, _ := newTestAPI(t, true)
	h := api.Handler()

	address := domain.MustParseAddress("192.0.2.7")
	record := domain.NewBlocklistRecord(api.Namespace, address, domain.SSHClient, "https://example.test/ssh.txt", nil, time.Now())
	_ = records.Put(context.Background(), record)

	if rec := serve(h, http.MethodDelete, "/api/records/192.0.2.7", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated delete = %d", rec.Code)
	}
	if rec := serve(h, http.MethodDelete, "/api/records/192.0.2.7", adminHeader(t, api)); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if exists, _ := records.Exists(context.Background(), record.AddressID); exists {
		t.Fatal("record still present after delete")
	}
	if rec := serve(h, http.MethodDelete, "/api/records/192.0.2.7", adminHeader(t, api)); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", rec.Code)
	}
}
