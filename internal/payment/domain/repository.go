package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository is the persistence surface of the reconciliation core. Lookups
// return (nil, nil) when no record matches; callers translate that into the
// appropriate not-found error.
type Repository interface {
	CreatePayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindPaymentByUUID(ctx context.Context, db *gorm.DB, id uuid.UUID) (*Payment, error)
	FindPaymentByTransactionID(ctx context.Context, db *gorm.DB, transactionID string) (*Payment, error)

	// ApplyResult writes one reconciled outcome to the payment record. The
	// update is conditional: it reports false without writing when the stored
	// status is paid and the result would regress it.
	ApplyResult(ctx context.Context, db *gorm.DB, paymentID snowflake.ID, result *Result) (bool, error)

	FindToken(ctx context.Context, db *gorm.DB, accountID, cardID, userID snowflake.ID) (*PaymentToken, error)
	FindTokenByValue(ctx context.Context, db *gorm.DB, token string) (*PaymentToken, error)
	InsertToken(ctx context.Context, db *gorm.DB, token *PaymentToken) error

	FindCustomerLink(ctx context.Context, db *gorm.DB, accountID, userID snowflake.ID) (*CustomerLink, error)
	InsertCustomerLink(ctx context.Context, db *gorm.DB, link *CustomerLink) error

	FindAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	ListActiveAccounts(ctx context.Context, db *gorm.DB, provider string) ([]Account, error)

	OrderDueAmount(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (decimal.Decimal, error)

	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*EventRecord, error)
	MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}
