package webhook

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paybridge/internal/currency"
	"github.com/smallbiznis/paybridge/internal/payment/domain"
)

// ReconcileContext is what a derivation rule may read: the stored payment,
// the parsed event and the order's due amount, loaded lazily since only
// refunds need it.
type ReconcileContext struct {
	Payment   *domain.Payment
	Event     *domain.WebhookEvent
	DueAmount func(ctx context.Context) (decimal.Decimal, error)
}

// StatusUpdate is the outcome a rule derives from one event. A nil update
// means the event carries no state change for the payment.
type StatusUpdate struct {
	Status     domain.Status
	PaidAmount *decimal.Decimal
}

// DeriveFunc derives the status update for one event type.
type DeriveFunc func(ctx context.Context, rc *ReconcileContext) (*StatusUpdate, error)

// rules maps event types to their derivation rule. Event types outside this
// table are stored and acknowledged without touching the payment.
var rules = map[string]DeriveFunc{
	"payment_intent.succeeded":      deriveIntentSucceeded,
	"payment_intent.payment_failed": deriveIntentFailed,
	"charge.refunded":               deriveChargeRefunded,
	"charge.dispute.closed":         deriveDisputeClosed,
}

func deriveIntentSucceeded(ctx context.Context, rc *ReconcileContext) (*StatusUpdate, error) {
	// Re-delivery after the synchronous confirm already settled the payment.
	if rc.Payment.Status == domain.StatusPaid {
		return nil, nil
	}
	amount := currency.FromMinorUnits(rc.Event.AmountReceived, rc.Event.Currency)
	return &StatusUpdate{Status: domain.StatusPaid, PaidAmount: &amount}, nil
}

func deriveIntentFailed(ctx context.Context, rc *ReconcileContext) (*StatusUpdate, error) {
	return &StatusUpdate{Status: domain.StatusError}, nil
}

// deriveChargeRefunded compares the cumulative refunded amount against the
// order's due amount to distinguish full from partial refunds. The refunded
// amount is written back so the payment record reflects it.
func deriveChargeRefunded(ctx context.Context, rc *ReconcileContext) (*StatusUpdate, error) {
	due, err := rc.DueAmount(ctx)
	if err != nil {
		return nil, err
	}
	refunded := currency.FromMinorUnits(rc.Event.AmountRefunded, rc.Event.Currency)
	status := domain.StatusPartialRefunded
	if refunded.Equal(due) {
		status = domain.StatusRefunded
	}
	return &StatusUpdate{Status: status, PaidAmount: &refunded}, nil
}

func deriveDisputeClosed(ctx context.Context, rc *ReconcileContext) (*StatusUpdate, error) {
	if rc.Event.ObjectStatus != "lost" {
		return nil, nil
	}
	disputed := currency.FromMinorUnits(rc.Event.Amount, rc.Event.Currency)
	return &StatusUpdate{Status: domain.StatusChargeback, PaidAmount: &disputed}, nil
}
