package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"

	enginesync "staysync/internal/engine/sync"
	"staysync/internal/platform/audit"
	"staysync/internal/platform/config"
	"staysync/internal/platform/repositories"
)

const testSecret = "whsec_test_secret"

func setupWebhookTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE webhook_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL DEFAULT '',
		entity_type TEXT NOT NULL DEFAULT '',
		entity_id TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT '',
		signature TEXT,
		source_addr TEXT,
		received_at INTEGER NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		processed_at INTEGER,
		processing_error TEXT
	);
	CREATE TABLE external_properties (
		id TEXT PRIMARY KEY,
		upstream_id TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		bedrooms INTEGER NOT NULL DEFAULT 0,
		bathrooms REAL NOT NULL DEFAULT 0,
		amenities TEXT NOT NULL DEFAULT '[]',
		listing_url TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE external_reservations (
		id TEXT PRIMARY KEY,
		upstream_id TEXT UNIQUE NOT NULL,
		property_upstream_id TEXT NOT NULL DEFAULT '',
		guest_name TEXT NOT NULL DEFAULT '',
		guest_email TEXT,
		check_in INTEGER NOT NULL DEFAULT 0,
		check_out INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'confirmed',
		channel TEXT,
		total_price REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE sync_logs (
		id TEXT PRIMARY KEY,
		sync_type TEXT NOT NULL,
		status TEXT NOT NULL,
		action TEXT,
		entity_id TEXT,
		items_synced INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		notes TEXT,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	return db
}

func newWebhookHandler(db *sql.DB, cfg config.WebhooksConfig) *WebhookHandler {
	recorder := audit.NewRecorder(repositories.NewSyncLogRepository(db))
	reconciler := enginesync.NewReconciler(
		repositories.NewExternalPropertyRepository(db),
		repositories.NewExternalReservationRepository(db),
		recorder,
	)
	return NewWebhookHandler(
		enginesync.NewVerifier(cfg),
		repositories.NewWebhookEventRepository(db),
		reconciler,
		cfg,
	)
}

func signedRequest(body []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/inbound", bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", signature)
	return req
}

func TestWebhookHandler_ValidDelivery(t *testing.T) {
	db := setupWebhookTestDB(t)
	cfg := config.WebhooksConfig{Secret: testSecret, SignatureHeader: "X-Webhook-Signature", EventHeader: "X-Webhook-Event"}
	h := newWebhookHandler(db, cfg)

	body := []byte(`{"event":"property.updated","data":{"id":"P1","title":"Unit A","bedrooms":2}}`)
	w := httptest.NewRecorder()
	h.Receive(w, signedRequest(body, enginesync.Sign(testSecret, body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		EventID string `json:"event_id"`
		Success bool   `json:"success"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success, body: %s", w.Body.String())
	}
	if resp.EventID == "" {
		t.Error("response must carry the intake event id")
	}

	// Mirror row written
	var name string
	if err := db.QueryRow(`SELECT name FROM external_properties WHERE upstream_id = 'P1'`).Scan(&name); err != nil {
		t.Fatalf("mirror row missing: %v", err)
	}
	if name != "Unit A" {
		t.Errorf("name = %q, want Unit A", name)
	}

	// Intake row recorded and marked processed
	event, err := repositories.NewWebhookEventRepository(db).GetByID(resp.EventID)
	if err != nil {
		t.Fatalf("intake row missing: %v", err)
	}
	if !event.Processed || event.ProcessedAt == nil {
		t.Errorf("event not marked processed: %+v", event)
	}
	if event.EntityType != "property" || event.EventType != "updated" {
		t.Errorf("envelope not recorded: %s/%s", event.EntityType, event.EventType)
	}
}

func TestWebhookHandler_RejectsTamperedBody(t *testing.T) {
	db := setupWebhookTestDB(t)
	cfg := config.WebhooksConfig{Secret: testSecret, SignatureHeader: "X-Webhook-Signature", EventHeader: "X-Webhook-Event"}
	h := newWebhookHandler(db, cfg)

	body := []byte(`{"event":"property.updated","data":{"id":"P1"}}`)
	tampered := []byte(`{"event":"property.deleted","data":{"id":"P1"}}`)

	w := httptest.NewRecorder()
	h.Receive(w, signedRequest(tampered, enginesync.Sign(testSecret, body)))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	var resp struct {
		Code string `json:"code"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != "AUTHENTICATION_FAILED" {
		t.Errorf("code = %q, want AUTHENTICATION_FAILED", resp.Code)
	}

	// A rejected delivery is never recorded
	var n int
	db.QueryRow(`SELECT COUNT(1) FROM webhook_events`).Scan(&n)
	if n != 0 {
		t.Errorf("rejected delivery must not reach the intake log, found %d rows", n)
	}
}

func TestWebhookHandler_RejectsWithoutSecret(t *testing.T) {
	db := setupWebhookTestDB(t)
	cfg := config.WebhooksConfig{SignatureHeader: "X-Webhook-Signature", EventHeader: "X-Webhook-Event"}
	h := newWebhookHandler(db, cfg)

	body := []byte(`{"event":"property.updated","data":{"id":"P1"}}`)
	w := httptest.NewRecorder()
	h.Receive(w, signedRequest(body, enginesync.Sign("guessed-secret", body)))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("unconfigured secret must fail closed, got %d", w.Code)
	}
}

func TestWebhookHandler_AcksValidationFailure(t *testing.T) {
	db := setupWebhookTestDB(t)
	cfg := config.WebhooksConfig{Secret: testSecret, SignatureHeader: "X-Webhook-Signature", EventHeader: "X-Webhook-Event"}
	h := newWebhookHandler(db, cfg)

	// Authentic but unprocessable: no entity id anywhere
	body := []byte(`{"event":"property.updated","data":{"title":"No ID"}}`)
	w := httptest.NewRecorder()
	h.Receive(w, signedRequest(body, enginesync.Sign(testSecret, body)))

	// Redelivery would not help, so the delivery is acknowledged
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		EventID string `json:"event_id"`
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Success {
		t.Error("expected success=false for unprocessable payload")
	}
	if resp.Message == "" {
		t.Error("failure ack must carry a message")
	}

	// Recorded for forensics with the failure attached
	event, err := repositories.NewWebhookEventRepository(db).GetByID(resp.EventID)
	if err != nil {
		t.Fatalf("intake row missing: %v", err)
	}
	if !event.Processed || event.ProcessingError == "" {
		t.Errorf("expected processed with error recorded, got %+v", event)
	}
}

func TestWebhookHandler_IntakeFailureIsRetryable(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer mockDB.Close()

	mock.ExpectExec("INSERT INTO webhook_events").WillReturnError(fmt.Errorf("disk I/O error"))

	cfg := config.WebhooksConfig{Secret: testSecret, SignatureHeader: "X-Webhook-Signature", EventHeader: "X-Webhook-Event"}
	h := NewWebhookHandler(
		enginesync.NewVerifier(cfg),
		repositories.NewWebhookEventRepository(mockDB),
		nil, // never reached
		cfg,
	)

	body := []byte(`{"event":"property.updated","data":{"id":"P1"}}`)
	w := httptest.NewRecorder()
	h.Receive(w, signedRequest(body, enginesync.Sign(testSecret, body)))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	var resp struct {
		Code string `json:"code"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != "STORAGE_UNAVAILABLE" {
		t.Errorf("code = %q, want STORAGE_UNAVAILABLE", resp.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
