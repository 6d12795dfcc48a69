package browser_test

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	"licensedesk/internal/adapters/email"
	"licensedesk/internal/adapters/federation"
	web "licensedesk/internal/adapters/http"
	"licensedesk/internal/adapters/storage"
	auditStore "licensedesk/internal/adapters/storage/audit"
	outboxStore "licensedesk/internal/adapters/storage/outbox"
	"licensedesk/internal/adapters/storage/selectioncache"
	"licensedesk/internal/adapters/storage/transfer"
	"licensedesk/internal/application/orchestrators"
	domainOutbox "licensedesk/internal/domain/outbox"
)

// testApp holds the running desk, its fake backend and Playwright handles.
type testApp struct {
	BaseURL string
	DB      *sql.DB
	Server  *http.Server
	PW      *playwright.Playwright
	Browser playwright.Browser
	Outbox  *outboxStore.SQLiteStore
	Batches chan string
}

// requireBrowser skips unless browser tests were asked for explicitly.
func requireBrowser(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if os.Getenv("LICENSEDESK_BROWSER_TESTS") != "1" {
		t.Skip("set LICENSEDESK_BROWSER_TESTS=1 to run browser tests")
	}
}

// newBackend fakes the federation API for club 10 with one blocked junior.
func newBackend(t *testing.T, batches chan<- string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/members/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":[
			{"id":1,"club":10,"first_name":"Ada","last_name":"Lovelace","is_active":true},
			{"id":2,"club":10,"first_name":"Grace","last_name":"Hopper","is_active":true},
			{"id":3,"club":10,"first_name":"Alan","last_name":"Turing","is_active":true}
		],"next":null}`)
	})
	mux.HandleFunc("GET /api/clubs/10/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":10,"name":"Harbour Rowing","contact_email":"secretary@harbour.test"}`)
	})
	mux.HandleFunc("GET /api/license-orders/eligibility/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"eligible_license_types":[{"id":1,"name":"Senior","active_price":{"amount":"45.00","currency":"NZD"}}],
			"ineligible_license_types":[{"id":2,"name":"Junior",
				"reason_counts":[{"message":"Over age limit","count":1}],
				"ineligible_members":[{"member_id":3,"reason_code":"AGE_LIMIT","message":"Over age limit"}]}]
		}`)
	})
	mux.HandleFunc("POST /api/license-orders/batch/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		batches <- string(body)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":501,"batch_id":"b-501","order_count":2}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestApp wires the desk against a temp SQLite file and starts an HTTP server.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", storage.DSN(dbPath))
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("failed to init test DB: %v", err)
	}

	batches := make(chan string, 4)
	backend := newBackend(t, batches)
	client := federation.NewClient(backend.URL, federation.StaticToken("browser-test"), nil, 5*time.Second)

	slots := transfer.NewSQLiteStore(db)
	cache := selectioncache.NewSQLiteStore(db)
	outbox := outboxStore.NewSQLiteStore(db)
	selDeps := orchestrators.SelectionPayloadDeps{Slots: slots, Cache: cache}
	processor := orchestrators.NewOutboxProcessor(outbox, map[string]orchestrators.ActionExecutor{
		domainOutbox.ActionOrderConfirmationEmail: &orchestrators.OrderConfirmationExecutor{Sender: email.NewNoopSender()},
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	mux := web.NewMux(web.Deps{
		Selection: selDeps,
		Clubs:     client,
		Workflows: orchestrators.NewWorkflowRegistry(time.Hour),
		Workflow: orchestrators.WorkflowDeps{
			Eligibility: client,
			Orders:      client,
			Selection:   selDeps,
			Confirmations: &orchestrators.ConfirmationQueue{
				Store:      outbox,
				GenerateID: func() string { return fmt.Sprintf("confirm-%d", time.Now().UnixNano()) },
				Now:        time.Now,
			},
			Now: time.Now,
		},
		Outbox:      processor,
		OutboxStore: outbox,
		Audit: &orchestrators.AuditTrail{
			Store:      auditStore.NewSQLiteStore(db),
			GenerateID: func() string { return fmt.Sprintf("audit-%d", time.Now().UnixNano()) },
			Now:        time.Now,
		},
		Ping:    db.PingContext,
		CSRFKey: []byte("browser-test-csrf-key-32-bytes!!"),
		TrustedOrigins: []string{
			fmt.Sprintf("127.0.0.1:%d", port),
			fmt.Sprintf("localhost:%d", port),
		},
	})
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(baseURL + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}

	app := &testApp{
		BaseURL: baseURL,
		DB:      db,
		Server:  srv,
		PW:      pw,
		Browser: browser,
		Outbox:  outbox,
		Batches: batches,
	}
	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		db.Close()
	})
	return app
}

// newPage creates a new browser page (tab).
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// handOver posts a selection with the page's cookies, as an originating screen would.
func (a *testApp) handOver(t *testing.T, page playwright.Page, body string) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/healthz"); err != nil {
		t.Fatalf("failed to load healthz: %v", err)
	}
	resp, err := page.Request().Post(a.BaseURL+"/api/license-orders/selection", playwright.APIRequestContextPostOptions{
		Headers: map[string]string{"Content-Type": "application/json"},
		Data:    body,
	})
	if err != nil {
		t.Fatalf("hand-over request failed: %v", err)
	}
	if resp.Status() != http.StatusCreated {
		text, _ := resp.Text()
		t.Fatalf("hand-over status = %d, body %s", resp.Status(), text)
	}
}
