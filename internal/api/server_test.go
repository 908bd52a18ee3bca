package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tickd-io/tickd/internal/logbuf"
	"github.com/tickd-io/tickd/internal/ticket"
)

// mockTicketService implements TicketService for testing.
type mockTicketService struct {
	records    []*ticket.Record
	lastFilter ticket.Filter
}

func (m *mockTicketService) List(filter ticket.Filter) ([]*ticket.Record, error) {
	m.lastFilter = filter
	var out []*ticket.Record
	for _, r := range m.records {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockTicketService) Count(filter ticket.Filter) (int, error) {
	recs, _ := m.List(filter)
	return len(recs), nil
}

func (m *mockTicketService) GetByChannel(channelID string) (*ticket.Record, error) {
	for _, r := range m.records {
		if r.ChannelID == channelID {
			return r, nil
		}
	}
	return nil, ticket.ErrRecordNotFound
}

func newTestServer(svc TicketService, key string, logs LogQuerier) *Server {
	return NewServer(svc, Config{Host: "127.0.0.1", Port: 0, Key: key}, nil, logs)
}

func TestHealth(t *testing.T) {
	svc := &mockTicketService{records: []*ticket.Record{
		{ChannelID: "ch-1", Number: 1, Status: ticket.StatusOpen},
		{ChannelID: "ch-2", Number: 2, Status: ticket.StatusArchived},
	}}
	srv := newTestServer(svc, "", nil)
	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
	if body["open_tickets"] != float64(1) {
		t.Errorf("open_tickets = %v", body["open_tickets"])
	}
}

func TestListTickets(t *testing.T) {
	svc := &mockTicketService{records: []*ticket.Record{
		{ChannelID: "ch-1", Number: 1, OwnerID: "u1", Status: ticket.StatusOpen},
		{ChannelID: "ch-2", Number: 2, OwnerID: "u2", Status: ticket.StatusArchived},
	}}
	srv := newTestServer(svc, "", nil)
	req := httptest.NewRequest("GET", "/api/tickets?status=open&limit=10", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var records []*ticket.Record
	json.NewDecoder(w.Body).Decode(&records)
	if len(records) != 1 || records[0].ChannelID != "ch-1" {
		t.Errorf("got %d records: %v", len(records), records)
	}
	if svc.lastFilter.Status == nil || *svc.lastFilter.Status != ticket.StatusOpen {
		t.Errorf("status filter not passed through: %+v", svc.lastFilter)
	}
	if svc.lastFilter.Limit != 10 {
		t.Errorf("limit filter = %d", svc.lastFilter.Limit)
	}
}

func TestListTickets_Empty(t *testing.T) {
	srv := newTestServer(&mockTicketService{}, "", nil)
	req := httptest.NewRequest("GET", "/api/tickets", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	// Empty list renders as [], not null.
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q", got)
	}
}

func TestGetTicket(t *testing.T) {
	svc := &mockTicketService{records: []*ticket.Record{
		{ChannelID: "ch-1", Number: 7, OwnerName: "jane", Status: ticket.StatusOpen},
	}}
	srv := newTestServer(svc, "", nil)
	req := httptest.NewRequest("GET", "/api/tickets/ch-1", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var rec ticket.Record
	json.NewDecoder(w.Body).Decode(&rec)
	if rec.Number != 7 || rec.OwnerName != "jane" {
		t.Errorf("record = %+v", rec)
	}
}

func TestGetTicket_NotFound(t *testing.T) {
	srv := newTestServer(&mockTicketService{}, "", nil)
	req := httptest.NewRequest("GET", "/api/tickets/nope", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetLogs(t *testing.T) {
	buf := logbuf.New(10)
	buf.Write(logbuf.Entry{Time: time.Now(), Level: slog.LevelInfo, Message: "ticket created"})
	buf.Write(logbuf.Entry{Time: time.Now(), Level: slog.LevelWarn, Message: "staff role not found"})

	srv := newTestServer(&mockTicketService{}, "", buf)
	req := httptest.NewRequest("GET", "/api/logs?level=warn", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var entries []logbuf.Entry
	json.NewDecoder(w.Body).Decode(&entries)
	if len(entries) != 1 || entries[0].Message != "staff role not found" {
		t.Errorf("entries = %v", entries)
	}
}

func TestGetLogs_NoBuffer(t *testing.T) {
	srv := newTestServer(&mockTicketService{}, "", nil)
	req := httptest.NewRequest("GET", "/api/logs", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q", got)
	}
}

func TestAuth_Required(t *testing.T) {
	srv := newTestServer(&mockTicketService{}, "secret-key", nil)

	// No auth header
	req := httptest.NewRequest("GET", "/api/tickets", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("no auth: status = %d, want 401", w.Code)
	}

	// Wrong key
	req = httptest.NewRequest("GET", "/api/tickets", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", w.Code)
	}

	// Correct key
	req = httptest.NewRequest("GET", "/api/tickets", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("correct key: status = %d, want 200", w.Code)
	}
}

func TestHealth_NoAuth(t *testing.T) {
	srv := newTestServer(&mockTicketService{}, "secret-key", nil)
	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	// Health should NOT require auth
	if w.Code != http.StatusOK {
		t.Errorf("health should not require auth, status = %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(&mockTicketService{}, "", nil)
	req := httptest.NewRequest("OPTIONS", "/api/tickets", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin = %q", got)
	}
}
