package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	obsmetrics "github.com/smallbiznis/paybridge/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/paybridge/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       paymentdomain.Repository
	Adapters   *Registry
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service ingests provider webhook deliveries and reconciles payment state
// from them. Every delivery is stored exactly once; replays surface as
// ErrEventAlreadyProcessed.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	adapters   *Registry
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.WebhookService {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		genID:      p.GenID,
		repo:       p.Repo,
		adapters:   p.Adapters,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return paymentdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	adapter, err := s.adapters.Adapter(provider)
	if err != nil {
		return err
	}

	account, err := s.matchAccount(ctx, adapter, payload, headers)
	if err != nil {
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	record := &paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		AccountID:       account.ID,
		Provider:        provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return err
	}
	stored := record
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	if err := s.reconcile(ctx, event); err != nil {
		return err
	}

	if err := s.repo.MarkEventProcessed(ctx, s.db, stored.ID, now); err != nil {
		return err
	}

	if inserted && s.obsMetrics != nil {
		s.obsMetrics.RecordPaymentEvent(ctx, provider, event.Type)
	}
	return nil
}

// matchAccount verifies the delivery against each active account's webhook
// secret; the signing account identifies the merchant the event belongs to.
func (s *Service) matchAccount(ctx context.Context, adapter paymentdomain.EventAdapter, payload []byte, headers http.Header) (*paymentdomain.Account, error) {
	accounts, err := s.repo.ListActiveAccounts(ctx, s.db, adapter.Provider())
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, paymentdomain.ErrProviderNotFound
	}

	signature := headers.Get(adapter.SignatureHeader())
	for i := range accounts {
		if err := adapter.Verify(ctx, payload, signature, accounts[i].WebhookSecret); err == nil {
			return &accounts[i], nil
		}
	}
	return nil, paymentdomain.ErrInvalidSignature
}

func (s *Service) reconcile(ctx context.Context, event *paymentdomain.WebhookEvent) error {
	rule, ok := rules[event.Type]
	if !ok {
		s.log.Debug("ignoring webhook event type", zap.String("event_type", event.Type))
		return nil
	}

	payment, err := s.resolvePayment(ctx, event)
	if err != nil {
		return err
	}

	update, err := rule(ctx, &ReconcileContext{
		Payment: payment,
		Event:   event,
		DueAmount: func(ctx context.Context) (decimal.Decimal, error) {
			return s.repo.OrderDueAmount(ctx, s.db, payment.OrderID)
		},
	})
	if err != nil {
		return err
	}
	if update == nil {
		return nil
	}

	result := &paymentdomain.Result{
		Status:                 update.Status,
		PaidAmount:             update.PaidAmount,
		ProcessorStatus:        event.ObjectStatus,
		ProcessorTransactionID: s.transactionID(payment, event),
		ProcessorCurrency:      eventCurrency(payment, event),
		PaymentTokenID:         s.lookupTokenID(ctx, event.PaymentMethod),
		ResponsePayload:        event.RawPayload,
	}

	applied, err := s.repo.ApplyResult(ctx, s.db, payment.ID, result)
	if err != nil {
		return err
	}
	if !applied {
		s.log.Info("suppressed regressing webhook update",
			zap.String("payment_uuid", payment.UUID.String()),
			zap.String("event_type", event.Type),
			zap.String("next_status", string(update.Status)),
		)
	}
	return nil
}

// resolvePayment locates the payment record for an event: the embedded
// payment uuid first, then the payment intent reference, then the object id.
func (s *Service) resolvePayment(ctx context.Context, event *paymentdomain.WebhookEvent) (*paymentdomain.Payment, error) {
	if event.PaymentUUID != "" {
		if id, err := uuid.Parse(event.PaymentUUID); err == nil {
			payment, err := s.repo.FindPaymentByUUID(ctx, s.db, id)
			if err != nil {
				return nil, err
			}
			if payment != nil {
				return payment, nil
			}
		}
	}

	if event.PaymentIntentID != "" {
		payment, err := s.repo.FindPaymentByTransactionID(ctx, s.db, event.PaymentIntentID)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			return payment, nil
		}
	}

	if event.ObjectID != "" {
		payment, err := s.repo.FindPaymentByTransactionID(ctx, s.db, event.ObjectID)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			return payment, nil
		}
	}

	return nil, paymentdomain.ErrPaymentNotFound
}

func (s *Service) transactionID(payment *paymentdomain.Payment, event *paymentdomain.WebhookEvent) string {
	if event.PaymentIntentID != "" {
		return event.PaymentIntentID
	}
	if strings.HasPrefix(event.Type, "payment_intent.") && event.ObjectID != "" {
		return event.ObjectID
	}
	return payment.ProcessorTransactionID
}

func eventCurrency(payment *paymentdomain.Payment, event *paymentdomain.WebhookEvent) string {
	if event.Currency != "" {
		return event.Currency
	}
	return payment.ProcessorCurrency
}

// lookupTokenID is best-effort: the event's payment method may belong to a
// card this driver never tokenized.
func (s *Service) lookupTokenID(ctx context.Context, paymentMethod string) *snowflake.ID {
	if strings.TrimSpace(paymentMethod) == "" {
		return nil
	}
	token, err := s.repo.FindTokenByValue(ctx, s.db, paymentMethod)
	if err != nil || token == nil {
		return nil
	}
	return &token.ID
}
