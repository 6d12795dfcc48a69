package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
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
	"licensedesk/internal/config"
	domainOutbox "licensedesk/internal/domain/outbox"
	"licensedesk/internal/platform/otel"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server_failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownTracing, err := otel.Setup(ctx, "licensedesk", version, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("otel_shutdown_failed", "error", err)
		}
	}()

	db, err := sql.Open("sqlite", storage.DSN(cfg.DBPath))
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if err := storage.InitDB(db); err != nil {
		return err
	}
	timedDB := storage.NewTimedDB(db, 0)

	slots := transfer.NewSQLiteStore(timedDB)
	cache := selectioncache.NewSQLiteStore(timedDB)
	outbox := outboxStore.NewSQLiteStore(timedDB)
	selDeps := orchestrators.SelectionPayloadDeps{Slots: slots, Cache: cache}
	trail := &orchestrators.AuditTrail{
		Store:      auditStore.NewSQLiteStore(timedDB),
		GenerateID: uuid.NewString,
		Now:        time.Now,
	}

	client := federation.NewClient(cfg.BackendURL, backendTokens(cfg), nil, cfg.BackendTimeout)

	var sender email.Sender
	if cfg.ResendKey != "" {
		sender = email.NewResendSender(cfg.ResendKey, cfg.EmailFrom, cfg.EmailReply)
		slog.Info("email_sender_configured", "provider", "resend")
	} else {
		sender = email.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_sender_configured", "provider", "noop", "detail", "LICENSEDESK_RESEND_KEY is not set; confirmations are not delivered")
		} else {
			slog.Info("email_sender_configured", "provider", "noop")
		}
	}

	processor := orchestrators.NewOutboxProcessor(outbox, map[string]orchestrators.ActionExecutor{
		domainOutbox.ActionOrderConfirmationEmail: &orchestrators.OrderConfirmationExecutor{Sender: sender},
	}).WithRetention(cfg.OutboxRetention)
	orchestrators.StartBackgroundWorker(ctx, processor, cfg.OutboxInterval)

	registry := orchestrators.NewWorkflowRegistry(cfg.WorkflowTTL)
	registry.StartSweeper(ctx, max(cfg.WorkflowTTL/4, time.Minute))

	csrfKey, err := cfg.CSRFKeyBytes()
	if err != nil {
		return err
	}
	if csrfKey == nil {
		csrfKey = make([]byte, 32)
		if _, err := rand.Read(csrfKey); err != nil {
			return err
		}
		slog.Warn("csrf_key_generated", "detail", "set LICENSEDESK_CSRF_KEY to keep forms valid across restarts")
	}

	handler := web.NewMux(web.Deps{
		Selection: selDeps,
		Clubs:     client,
		Workflows: registry,
		Workflow: orchestrators.WorkflowDeps{
			Eligibility: client,
			Orders:      client,
			Selection:   selDeps,
			Confirmations: &orchestrators.ConfirmationQueue{
				Store:      outbox,
				GenerateID: uuid.NewString,
				Now:        time.Now,
			},
			Audit: trail,
			Now:   time.Now,
		},
		Outbox:         processor,
		OutboxStore:    outbox,
		Audit:          trail,
		Ping:           timedDB.Ping,
		CSRFKey:        csrfKey,
		TrustedOrigins: cfg.TrustedOrigins,
		SecureCookies:  cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting", "version", version, "addr", cfg.Addr, "env", cfg.Env, "backend", cfg.BackendURL)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// backendTokens prefers short-lived signed tokens over a static one.
func backendTokens(cfg config.Config) federation.TokenSource {
	if cfg.BackendSecret != "" {
		return federation.SignedTokenSource{Secret: []byte(cfg.BackendSecret), Subject: "licensedesk"}
	}
	if cfg.BackendToken != "" {
		return federation.StaticToken(cfg.BackendToken)
	}
	return nil
}
