package webhook_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paybridge/internal/payment/domain"
	"github.com/smallbiznis/paybridge/internal/payment/processor/stripe"
	"github.com/smallbiznis/paybridge/internal/payment/repository"
	"github.com/smallbiznis/paybridge/internal/payment/webhook"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	schema := []string{
		`CREATE TABLE payments (
			id INTEGER PRIMARY KEY,
			uuid TEXT NOT NULL UNIQUE,
			account_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			order_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			processor_transaction_id TEXT,
			processor_status TEXT,
			processor_currency TEXT,
			paid_amount NUMERIC,
			response_payload TEXT,
			payment_token_id INTEGER,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE payment_accounts (
			id INTEGER PRIMARY KEY,
			provider TEXT NOT NULL,
			secret_key TEXT NOT NULL,
			webhook_secret TEXT NOT NULL,
			descriptor TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE payment_tokens (
			id INTEGER PRIMARY KEY,
			token TEXT NOT NULL,
			account_id INTEGER NOT NULL,
			card_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (account_id, card_id, user_id)
		)`,
		`CREATE TABLE payment_events (
			id INTEGER PRIMARY KEY,
			account_id INTEGER NOT NULL,
			provider TEXT NOT NULL,
			provider_event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP,
			UNIQUE (provider, provider_event_id)
		)`,
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			currency TEXT NOT NULL,
			due_amount NUMERIC NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

type fixture struct {
	svc         domain.WebhookService
	conn        *gorm.DB
	node        *snowflake.Node
	accountID   snowflake.ID
	orderID     snowflake.ID
	paymentUUID uuid.UUID
	paymentID   snowflake.ID
}

func newFixture(t *testing.T, paymentStatus domain.Status) *fixture {
	t.Helper()

	conn := setupDB(t)
	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	svc := webhook.NewService(webhook.Params{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Adapters: webhook.NewRegistry(stripe.NewAdapter()),
	})

	f := &fixture{
		svc:         svc,
		conn:        conn,
		node:        node,
		accountID:   node.Generate(),
		orderID:     node.Generate(),
		paymentUUID: uuid.New(),
		paymentID:   node.Generate(),
	}

	now := time.Now().UTC()
	if err := conn.Exec(
		`INSERT INTO payment_accounts (id, provider, secret_key, webhook_secret, active, created_at)
		 VALUES (?, 'stripe', 'sk_test', ?, TRUE, ?)`,
		f.accountID, webhookSecret, now,
	).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if err := conn.Exec(
		`INSERT INTO orders (id, currency, due_amount) VALUES (?, 'USD', ?)`,
		f.orderID, decimal.RequireFromString("100.00"),
	).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	if err := conn.Exec(
		`INSERT INTO payments (
			id, uuid, account_id, user_id, order_id, status,
			processor_transaction_id, processor_currency, paid_amount, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 'pi_1', 'USD', 0, ?, ?)`,
		f.paymentID, f.paymentUUID.String(), f.accountID, node.Generate(), f.orderID,
		paymentStatus, now, now,
	).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return f
}

func sign(payload []byte) http.Header {
	timestamp := time.Now().Unix()
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil))))
	return headers
}

func (f *fixture) ingest(t *testing.T, payload []byte) error {
	t.Helper()
	return f.svc.IngestWebhook(context.Background(), "stripe", payload, sign(payload))
}

func (f *fixture) payment(t *testing.T) *domain.Payment {
	t.Helper()
	payment, err := repository.Provide().FindPaymentByUUID(context.Background(), f.conn, f.paymentUUID)
	if err != nil {
		t.Fatalf("find payment: %v", err)
	}
	if payment == nil {
		t.Fatalf("payment disappeared")
	}
	return payment
}

func TestIngestIntentSucceeded(t *testing.T) {
	f := newFixture(t, domain.StatusInitiated)
	payload := []byte(fmt.Sprintf(
		`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","status":"succeeded","amount":10000,"amount_received":10000,"currency":"usd","metadata":{"payment_uuid":%q}}}}`,
		f.paymentUUID.String(),
	))

	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	payment := f.payment(t)
	if payment.Status != domain.StatusPaid {
		t.Fatalf("unexpected status %s", payment.Status)
	}
	if !payment.PaidAmount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("unexpected paid amount %s", payment.PaidAmount)
	}
}

func TestIngestIntentSucceededAlreadyPaid(t *testing.T) {
	f := newFixture(t, domain.StatusPaid)
	if err := f.conn.Exec(`UPDATE payments SET paid_amount = ? WHERE id = ?`,
		decimal.RequireFromString("100.00"), f.paymentID).Error; err != nil {
		t.Fatalf("seed paid amount: %v", err)
	}

	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","status":"succeeded","amount_received":10000,"currency":"usd"}}}`)
	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	payment := f.payment(t)
	if payment.Status != domain.StatusPaid {
		t.Fatalf("unexpected status %s", payment.Status)
	}
	if !payment.PaidAmount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("paid amount changed on re-delivery: %s", payment.PaidAmount)
	}
}

func TestIngestIntentFailed(t *testing.T) {
	f := newFixture(t, domain.StatusInitiated)
	payload := []byte(`{"id":"evt_1","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_1","status":"requires_payment_method","currency":"usd"}}}`)

	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if payment := f.payment(t); payment.Status != domain.StatusError {
		t.Fatalf("unexpected status %s", payment.Status)
	}
}

func TestIngestChargeRefundedFull(t *testing.T) {
	f := newFixture(t, domain.StatusPaid)
	payload := []byte(`{"id":"evt_1","type":"charge.refunded","data":{"object":{"id":"ch_1","status":"succeeded","payment_intent":"pi_1","amount":10000,"amount_refunded":10000,"currency":"usd"}}}`)

	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	payment := f.payment(t)
	if payment.Status != domain.StatusRefunded {
		t.Fatalf("unexpected status %s", payment.Status)
	}
	if !payment.PaidAmount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("refunded amount not applied: paid_amount = %s", payment.PaidAmount)
	}
}

func TestIngestChargeRefundedPartial(t *testing.T) {
	f := newFixture(t, domain.StatusPaid)
	payload := []byte(`{"id":"evt_1","type":"charge.refunded","data":{"object":{"id":"ch_1","status":"succeeded","payment_intent":"pi_1","amount":10000,"amount_refunded":4000,"currency":"usd"}}}`)

	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	payment := f.payment(t)
	if payment.Status != domain.StatusPartialRefunded {
		t.Fatalf("unexpected status %s", payment.Status)
	}
	if !payment.PaidAmount.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("refunded amount not applied: paid_amount = %s", payment.PaidAmount)
	}
}

func TestIngestChargeRefundedOverDue(t *testing.T) {
	f := newFixture(t, domain.StatusPaid)
	payload := []byte(`{"id":"evt_1","type":"charge.refunded","data":{"object":{"id":"ch_1","status":"succeeded","payment_intent":"pi_1","amount":10000,"amount_refunded":12000,"currency":"usd"}}}`)

	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	payment := f.payment(t)
	if payment.Status != domain.StatusPartialRefunded {
		t.Fatalf("refund above due must stay partial, got %s", payment.Status)
	}
	if !payment.PaidAmount.Equal(decimal.RequireFromString("120.00")) {
		t.Fatalf("refunded amount not applied: paid_amount = %s", payment.PaidAmount)
	}
}

func TestIngestDisputeClosedWon(t *testing.T) {
	f := newFixture(t, domain.StatusPaid)
	payload := []byte(`{"id":"evt_1","type":"charge.dispute.closed","data":{"object":{"id":"dp_1","status":"won","payment_intent":"pi_1","currency":"usd"}}}`)

	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if payment := f.payment(t); payment.Status != domain.StatusPaid {
		t.Fatalf("won dispute must not change status, got %s", payment.Status)
	}
}

func TestIngestDisputeClosedLost(t *testing.T) {
	f := newFixture(t, domain.StatusPaid)
	payload := []byte(`{"id":"evt_1","type":"charge.dispute.closed","data":{"object":{"id":"dp_1","status":"lost","payment_intent":"pi_1","amount":10000,"currency":"usd"}}}`)

	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	payment := f.payment(t)
	if payment.Status != domain.StatusChargeback {
		t.Fatalf("unexpected status %s", payment.Status)
	}
	if !payment.PaidAmount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("disputed amount not applied: paid_amount = %s", payment.PaidAmount)
	}
}

func TestIngestUnknownEventType(t *testing.T) {
	f := newFixture(t, domain.StatusInitiated)
	payload := []byte(`{"id":"evt_1","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)

	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if payment := f.payment(t); payment.Status != domain.StatusInitiated {
		t.Fatalf("unknown event must not change status, got %s", payment.Status)
	}
}

func TestIngestReplay(t *testing.T) {
	f := newFixture(t, domain.StatusInitiated)
	payload := []byte(`{"id":"evt_1","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_1","currency":"usd"}}}`)

	if err := f.ingest(t, payload); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if err := f.ingest(t, payload); !errors.Is(err, domain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}
}

func TestIngestBadSignature(t *testing.T) {
	f := newFixture(t, domain.StatusInitiated)
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=123,v1=deadbeef")
	err := f.svc.IngestWebhook(context.Background(), "stripe", payload, headers)
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestIngestUnknownProvider(t *testing.T) {
	f := newFixture(t, domain.StatusInitiated)
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	err := f.svc.IngestWebhook(context.Background(), "adyen", payload, sign(payload))
	if !errors.Is(err, domain.ErrProviderNotFound) {
		t.Fatalf("expected provider not found, got %v", err)
	}
}

func TestIngestPaymentNotFound(t *testing.T) {
	f := newFixture(t, domain.StatusInitiated)
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_unknown","currency":"usd"}}}`)

	err := f.ingest(t, payload)
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected payment not found, got %v", err)
	}
}
