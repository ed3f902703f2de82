package domain

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// CheckoutRequest is one synchronous payment attempt.
type CheckoutRequest struct {
	AccountID   snowflake.ID
	PaymentUUID uuid.UUID
	User        User
	Card        Card
	Order       Order
	ReturnURL   string
	Metadata    map[string]any
}

// CheckoutService drives the synchronous confirm path. ProcessPayment
// returns the reconciled payment record, or a *RedirectionError when the
// intent requires external authentication, or a *ProcessorError on failure.
type CheckoutService interface {
	ProcessPayment(ctx context.Context, req CheckoutRequest) (*Payment, error)
	DetachPaymentMethod(ctx context.Context, accountID snowflake.ID, methodID string) error
}

// WebhookService drives the asynchronous reconciliation path.
type WebhookService interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}
