package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/smallbiznis/paybridge/internal/currency"
	"github.com/smallbiznis/paybridge/internal/metadata"
	obsmetrics "github.com/smallbiznis/paybridge/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/paybridge/internal/payment/domain"
	"github.com/smallbiznis/paybridge/internal/payment/resolver"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	GenID      *snowflake.Node
	Repo       paymentdomain.Repository
	Factory    paymentdomain.ClientFactory
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service drives the synchronous confirm path: invoice assembly, intent
// preparation and the single reconciled write that follows confirmation.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        config.Config
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	factory    paymentdomain.ClientFactory
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.CheckoutService {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.checkout"),
		cfg:        p.Cfg,
		genID:      p.GenID,
		repo:       p.Repo,
		factory:    p.Factory,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) ProcessPayment(ctx context.Context, req paymentdomain.CheckoutRequest) (*paymentdomain.Payment, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	account, err := s.loadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	client := s.factory(account.SecretKey)
	session := resolver.NewSession(client, s.repo, s.db, s.genID.Generate, account, req.User, s.cfg.EmailPrefix)

	payment, err := s.createPayment(ctx, account, &req)
	if err != nil {
		return nil, err
	}

	flattened := metadata.Flatten(req.Metadata)
	flattened["payment_uuid"] = req.PaymentUUID.String()
	stringMeta := metadata.Stringify(flattened)

	intent, err := s.prepareIntent(ctx, client, session, account, &req, stringMeta)
	if err != nil {
		s.recordAttempt(ctx, account.Provider, "error")
		return nil, err
	}

	confirmed, err := client.ConfirmIntent(ctx, intent.ID, req.ReturnURL)
	if err != nil {
		s.recordAttempt(ctx, account.Provider, "error")
		return nil, paymentdomain.WrapProcessorError("confirm_intent", err)
	}

	if confirmed.Status == paymentdomain.IntentStatusRequiresAction && confirmed.NextActionURL != "" {
		if err := s.applyIntent(ctx, payment, confirmed, paymentdomain.StatusRequiresAction, nil); err != nil {
			return nil, err
		}
		if s.obsMetrics != nil {
			s.obsMetrics.RecordCheckoutRedirect(ctx, account.Provider)
		}
		s.log.Info("checkout requires external authentication",
			zap.String("payment_uuid", req.PaymentUUID.String()),
			zap.String("intent_id", confirmed.ID),
		)
		return nil, &paymentdomain.RedirectionError{
			URL:           confirmed.NextActionURL,
			IntentPayload: confirmed.Raw,
			PaymentCardID: req.Card.ID,
		}
	}

	status := paymentdomain.MapIntentStatus(confirmed.Status)
	var paidAmount *decimal.Decimal
	if status == paymentdomain.StatusPaid {
		amount := currency.FromMinorUnits(confirmed.AmountReceived, confirmed.Currency)
		paidAmount = &amount
	}

	if err := s.applyIntent(ctx, payment, confirmed, status, paidAmount); err != nil {
		return nil, err
	}
	s.recordAttempt(ctx, account.Provider, string(status))

	stored, err := s.repo.FindPaymentByUUID(ctx, s.db, req.PaymentUUID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return stored, nil
}

func (s *Service) DetachPaymentMethod(ctx context.Context, accountID snowflake.ID, methodID string) error {
	methodID = strings.TrimSpace(methodID)
	if methodID == "" {
		return paymentdomain.ErrInvalidRequest
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}

	client := s.factory(account.SecretKey)
	if err := client.DetachPaymentMethod(ctx, methodID); err != nil {
		return paymentdomain.WrapProcessorError("detach_payment_method", err)
	}
	return nil
}

func (s *Service) loadAccount(ctx context.Context, id snowflake.ID) (*paymentdomain.Account, error) {
	if id == 0 {
		return nil, paymentdomain.ErrAccountNotFound
	}
	account, err := s.repo.FindAccount(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if account == nil || !account.Active {
		return nil, paymentdomain.ErrAccountNotFound
	}
	return account, nil
}

func (s *Service) createPayment(ctx context.Context, account *paymentdomain.Account, req *paymentdomain.CheckoutRequest) (*paymentdomain.Payment, error) {
	now := time.Now().UTC()
	payment := &paymentdomain.Payment{
		ID:        s.genID.Generate(),
		UUID:      req.PaymentUUID,
		AccountID: account.ID,
		UserID:    req.User.ID,
		OrderID:   req.Order.ID,
		Status:    paymentdomain.StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreatePayment(ctx, s.db, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// prepareIntent assembles the processor invoice for the order, finalizes it
// into a payment intent and attaches shipping, metadata and the card token.
// Each order line produces exactly one invoice item.
func (s *Service) prepareIntent(
	ctx context.Context,
	client paymentdomain.ProcessorClient,
	session *resolver.Session,
	account *paymentdomain.Account,
	req *paymentdomain.CheckoutRequest,
	stringMeta map[string]string,
) (*paymentdomain.Intent, error) {

	customerID, err := session.Customer(ctx)
	if err != nil {
		return nil, paymentdomain.WrapProcessorError("resolve_customer", err)
	}

	code := strings.ToUpper(strings.TrimSpace(req.Order.Currency))
	for _, item := range req.Order.Items {
		unitAmount := currency.ToMinorUnits(item.Price, code)
		if err := client.CreateInvoiceItem(ctx, paymentdomain.InvoiceItemParams{
			CustomerID:  customerID,
			Currency:    code,
			Description: item.Name,
			UnitAmount:  &unitAmount,
			Quantity:    item.Quantity,
		}); err != nil {
			return nil, paymentdomain.WrapProcessorError("create_invoice_item", err)
		}
	}

	if req.Order.ShippingCost.IsPositive() {
		shippingAmount := currency.ToMinorUnits(req.Order.ShippingCost, code)
		if err := client.CreateInvoiceItem(ctx, paymentdomain.InvoiceItemParams{
			CustomerID:  customerID,
			Currency:    code,
			Description: "Shipping",
			Amount:      &shippingAmount,
		}); err != nil {
			return nil, paymentdomain.WrapProcessorError("create_shipping_item", err)
		}
	}

	invoice, err := client.CreateInvoice(ctx, paymentdomain.InvoiceParams{
		CustomerID:          customerID,
		Description:         "Order " + req.Order.ID.String(),
		StatementDescriptor: account.Descriptor,
		DaysUntilDue:        0,
		Metadata:            stringMeta,
	})
	if err != nil {
		return nil, paymentdomain.WrapProcessorError("create_invoice", err)
	}

	finalized, err := client.FinalizeInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, paymentdomain.WrapProcessorError("finalize_invoice", err)
	}
	if finalized.PaymentIntentID == "" {
		return nil, paymentdomain.WrapProcessorError("finalize_invoice", paymentdomain.ErrInvalidEvent)
	}

	token, err := session.Token(ctx, req.Card, stringMeta)
	if err != nil {
		return nil, paymentdomain.WrapProcessorError("resolve_card_token", err)
	}

	updated, err := client.UpdateIntent(ctx, finalized.PaymentIntentID, paymentdomain.IntentUpdateParams{
		Shipping: &paymentdomain.ShippingParams{
			Name:    req.Order.ShippingName,
			Phone:   req.User.Phone,
			Address: req.Order.Address,
		},
		Metadata:      stringMeta,
		ReceiptEmail:  req.User.Email,
		PaymentMethod: token,
		CardOnly:      true,
	})
	if err != nil {
		return nil, paymentdomain.WrapProcessorError("update_intent", err)
	}
	return updated, nil
}

func (s *Service) applyIntent(ctx context.Context, payment *paymentdomain.Payment, intent *paymentdomain.Intent, status paymentdomain.Status, paid *decimal.Decimal) error {
	result := &paymentdomain.Result{
		Status:                 status,
		PaidAmount:             paid,
		ProcessorStatus:        intent.Status,
		ProcessorTransactionID: intent.ID,
		ProcessorCurrency:      intent.Currency,
		ResponsePayload:        intent.Raw,
	}
	_, err := s.repo.ApplyResult(ctx, s.db, payment.ID, result)
	return err
}

func (s *Service) recordAttempt(ctx context.Context, provider, outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordCheckoutAttempt(ctx, provider, outcome)
	}
}

func validateRequest(req *paymentdomain.CheckoutRequest) error {
	if req.PaymentUUID == uuid.Nil {
		return paymentdomain.ErrInvalidRequest
	}
	if req.User.ID == 0 || req.Order.ID == 0 {
		return paymentdomain.ErrInvalidRequest
	}
	if len(req.Order.Items) == 0 {
		return paymentdomain.ErrInvalidRequest
	}
	if strings.TrimSpace(req.Order.Currency) == "" {
		return paymentdomain.ErrInvalidRequest
	}
	return nil
}
