package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paybridge/internal/payment/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreatePayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, uuid, account_id, user_id, order_id, status,
			processor_transaction_id, processor_status, processor_currency,
			paid_amount, response_payload, payment_token_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.UUID.String(),
		payment.AccountID,
		payment.UserID,
		payment.OrderID,
		payment.Status,
		payment.ProcessorTransactionID,
		payment.ProcessorStatus,
		payment.ProcessorCurrency,
		payment.PaidAmount,
		payment.ResponsePayload,
		payment.PaymentTokenID,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) FindPaymentByUUID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*domain.Payment, error) {
	return r.findPayment(ctx, db, `uuid = ?`, id.String())
}

func (r *repo) FindPaymentByTransactionID(ctx context.Context, db *gorm.DB, transactionID string) (*domain.Payment, error) {
	return r.findPayment(ctx, db, `processor_transaction_id = ?`, transactionID)
}

func (r *repo) findPayment(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, uuid, account_id, user_id, order_id, status,
			processor_transaction_id, processor_status, processor_currency,
			paid_amount, response_payload, payment_token_id, created_at, updated_at
		 FROM payments
		 WHERE `+where+`
		 LIMIT 1`,
		arg,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// ApplyResult is the single write path for reconciled state. The WHERE clause
// carries the regression guard so racing confirm/webhook writers cannot move
// a paid payment back to a pre-settlement state.
func (r *repo) ApplyResult(ctx context.Context, db *gorm.DB, paymentID snowflake.ID, result *domain.Result) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?,
			 processor_status = ?,
			 processor_transaction_id = ?,
			 processor_currency = ?,
			 paid_amount = COALESCE(?, paid_amount),
			 response_payload = ?,
			 payment_token_id = COALESCE(?, payment_token_id),
			 updated_at = ?
		 WHERE id = ?
		   AND NOT (status = ? AND ? IN (?, ?, ?, ?, ?, ?))`,
		result.Status,
		result.ProcessorStatus,
		result.ProcessorTransactionID,
		result.ProcessorCurrency,
		result.PaidAmount,
		datatypes.JSON(result.ResponsePayload),
		result.PaymentTokenID,
		time.Now().UTC(),
		paymentID,
		domain.StatusPaid,
		result.Status,
		domain.StatusCreated,
		domain.StatusInitiated,
		domain.StatusProcessing,
		domain.StatusRequiresAction,
		domain.StatusDeclined,
		domain.StatusError,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindToken(ctx context.Context, db *gorm.DB, accountID, cardID, userID snowflake.ID) (*domain.PaymentToken, error) {
	var item domain.PaymentToken
	err := db.WithContext(ctx).Raw(
		`SELECT id, token, account_id, card_id, user_id, created_at
		 FROM payment_tokens
		 WHERE account_id = ? AND card_id = ? AND user_id = ?
		 LIMIT 1`,
		accountID,
		cardID,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindTokenByValue(ctx context.Context, db *gorm.DB, token string) (*domain.PaymentToken, error) {
	var item domain.PaymentToken
	err := db.WithContext(ctx).Raw(
		`SELECT id, token, account_id, card_id, user_id, created_at
		 FROM payment_tokens
		 WHERE token = ?
		 LIMIT 1`,
		token,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertToken(ctx context.Context, db *gorm.DB, token *domain.PaymentToken) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_tokens (id, token, account_id, card_id, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		token.ID,
		token.Token,
		token.AccountID,
		token.CardID,
		token.UserID,
		token.CreatedAt,
	).Error
}

func (r *repo) FindCustomerLink(ctx context.Context, db *gorm.DB, accountID, userID snowflake.ID) (*domain.CustomerLink, error) {
	var item domain.CustomerLink
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, user_id, processor_customer_id, created_at
		 FROM payment_customers
		 WHERE account_id = ? AND user_id = ?
		 LIMIT 1`,
		accountID,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertCustomerLink(ctx context.Context, db *gorm.DB, link *domain.CustomerLink) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_customers (id, account_id, user_id, processor_customer_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		link.ID,
		link.AccountID,
		link.UserID,
		link.ProcessorCustomerID,
		link.CreatedAt,
	).Error
}

func (r *repo) FindAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var item domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, secret_key, webhook_secret, descriptor, active, created_at
		 FROM payment_accounts
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListActiveAccounts(ctx context.Context, db *gorm.DB, provider string) ([]domain.Account, error) {
	var items []domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, secret_key, webhook_secret, descriptor, active, created_at
		 FROM payment_accounts
		 WHERE provider = ? AND active = TRUE`,
		provider,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) OrderDueAmount(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (decimal.Decimal, error) {
	var row struct {
		ID        snowflake.ID    `gorm:"column:id"`
		DueAmount decimal.Decimal `gorm:"column:due_amount"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT id, due_amount
		 FROM orders
		 WHERE id = ?
		 LIMIT 1`,
		orderID,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	if row.ID == 0 {
		return decimal.Zero, domain.ErrOrderNotFound
	}
	return row.DueAmount, nil
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_events (
			id, account_id, provider, provider_event_id, event_type,
			payload, received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		event.ID,
		event.AccountID,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		event.Payload,
		event.ReceivedAt,
		event.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*domain.EventRecord, error) {
	var item domain.EventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, provider, provider_event_id, event_type,
			payload, received_at, processed_at
		 FROM payment_events
		 WHERE provider = ? AND provider_event_id = ?
		 LIMIT 1`,
		provider,
		providerEventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events
		 SET processed_at = ?
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
}
