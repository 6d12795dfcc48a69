package web

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"licensedesk/internal/adapters/email"
	"licensedesk/internal/adapters/federation"
	"licensedesk/internal/adapters/http/middleware"
	"licensedesk/internal/adapters/storage"
	auditStore "licensedesk/internal/adapters/storage/audit"
	outboxStore "licensedesk/internal/adapters/storage/outbox"
	"licensedesk/internal/adapters/storage/selectioncache"
	"licensedesk/internal/adapters/storage/transfer"
	"licensedesk/internal/application/orchestrators"
	"licensedesk/internal/domain/licensing"
	domainOutbox "licensedesk/internal/domain/outbox"
)

const testOwner = "desk-owner-1"

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// fakeFederation serves the backend endpoints the desk calls.
type fakeFederation struct {
	mu          sync.Mutex
	queries     []string
	batches     []licensing.BatchOrderRequest
	rejectBatch string
}

func (f *fakeFederation) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/members/":
		io.WriteString(w, `[
			{"id":1,"club":10,"first_name":"Ada","last_name":"Lovelace","is_active":true},
			{"id":2,"club":10,"first_name":"Grace","last_name":"Hopper","is_active":true},
			{"id":3,"club":10,"first_name":"Alan","last_name":"Turing","is_active":false},
			{"id":4,"club":11,"first_name":"Edsger","last_name":"Dijkstra","is_active":true}
		]`)
	case r.URL.Path == "/api/clubs/10/":
		io.WriteString(w, `{"id":10,"name":"Harbour Rowing","contact_email":"secretary@harbour.test"}`)
	case r.URL.Path == "/api/license-orders/eligibility/":
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.Query().Get("member_ids"))
		f.mu.Unlock()
		io.WriteString(w, `{
			"eligible_license_types":[{"id":1,"name":"Senior","active_price":{"amount":"45.00","currency":"NZD"}}],
			"ineligible_license_types":[{"id":2,"name":"Junior",
				"reason_counts":[{"message":"Over age limit","count":1}],
				"ineligible_members":[{"member_id":3,"reason_code":"AGE_LIMIT","message":"Over age limit"}]}]
		}`)
	case r.URL.Path == "/api/license-orders/batch/" && r.Method == http.MethodPost:
		var req licensing.BatchOrderRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.batches = append(f.batches, req)
		reject := f.rejectBatch
		f.mu.Unlock()
		if reject != "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"detail": reject})
			return
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":77,"batch_id":"b-77","order_count":2}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeFederation) lastBatch() (licensing.BatchOrderRequest, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return licensing.BatchOrderRequest{}, 0
	}
	return f.batches[len(f.batches)-1], len(f.batches)
}

func (f *fakeFederation) queryLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// testApp is a fully wired desk backed by in-memory SQLite and a fake backend.
type testApp struct {
	handler  http.Handler
	backend  *fakeFederation
	slots    *transfer.SQLiteStore
	cache    *selectioncache.SQLiteStore
	outbox   *outboxStore.SQLiteStore
	audit    *auditStore.SQLiteStore
	sender   *email.NoopSender
	registry *orchestrators.WorkflowRegistry
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("InitDB: %v", err)
	}

	backend := &fakeFederation{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	client := federation.NewClient(srv.URL, federation.StaticToken("test-token"), srv.Client(), 0)

	ta := &testApp{
		backend:  backend,
		slots:    transfer.NewSQLiteStore(db),
		cache:    selectioncache.NewSQLiteStore(db),
		outbox:   outboxStore.NewSQLiteStore(db),
		audit:    auditStore.NewSQLiteStore(db),
		sender:   email.NewNoopSender(),
		registry: orchestrators.NewWorkflowRegistry(time.Hour),
	}
	seq := 0
	nextID := func() string {
		seq++
		return "id-" + strconv.Itoa(seq)
	}
	auditSeq := 0
	trail := &orchestrators.AuditTrail{
		Store: ta.audit,
		GenerateID: func() string {
			auditSeq++
			return "au-" + strconv.Itoa(auditSeq)
		},
		Now: func() time.Time { return testNow.Add(time.Duration(auditSeq) * time.Second) },
	}
	selDeps := orchestrators.SelectionPayloadDeps{Slots: ta.slots, Cache: ta.cache}
	processor := orchestrators.NewOutboxProcessor(ta.outbox, map[string]orchestrators.ActionExecutor{
		domainOutbox.ActionOrderConfirmationEmail: &orchestrators.OrderConfirmationExecutor{Sender: ta.sender},
	})

	app = &Deps{
		Selection: selDeps,
		Clubs:     client,
		Workflows: ta.registry,
		Workflow: orchestrators.WorkflowDeps{
			Eligibility: client,
			Orders:      client,
			Selection:   selDeps,
			Confirmations: &orchestrators.ConfirmationQueue{
				Store:      ta.outbox,
				GenerateID: nextID,
				Now:        func() time.Time { return testNow },
			},
			Audit: trail,
			Now:   func() time.Time { return testNow },
		},
		Outbox:      processor,
		OutboxStore: ta.outbox,
		Audit:       trail,
		Ping:        db.PingContext,
	}
	timeNow = func() time.Time { return testNow }
	t.Cleanup(func() { timeNow = time.Now })

	router := newRouter()
	ta.handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r.WithContext(middleware.ContextWithOwner(r.Context(), testOwner)))
	})
	return ta
}

func (ta *testApp) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	return rr
}

func (ta *testApp) postForm(t *testing.T, path, form string) *httptest.ResponseRecorder {
	t.Helper()
	return ta.do(t, http.MethodPost, path, "application/x-www-form-urlencoded", form)
}

func (ta *testApp) postJSON(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return ta.do(t, http.MethodPost, path, "application/json", body)
}

// openWorkflow hands over a selection and opens the page, returning its path.
func (ta *testApp) openWorkflow(t *testing.T, selectionJSON string) string {
	t.Helper()
	if rr := ta.postJSON(t, "/api/license-orders/selection", selectionJSON); rr.Code != http.StatusCreated {
		t.Fatalf("selection hand-over status = %d, body %s", rr.Code, rr.Body.String())
	}
	rr := ta.do(t, http.MethodGet, "/license-orders/new", "", "")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("GET /license-orders/new status = %d, body %s", rr.Code, rr.Body.String())
	}
	loc := rr.Header().Get("Location")
	if !strings.HasPrefix(loc, "/license-orders/") {
		t.Fatalf("redirect Location = %q", loc)
	}
	return loc
}

func (ta *testApp) page(t *testing.T, path string) string {
	t.Helper()
	rr := ta.do(t, http.MethodGet, path, "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d, body %s", path, rr.Code, rr.Body.String())
	}
	return rr.Body.String()
}
