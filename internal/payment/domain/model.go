package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment is the domain payment record. It is mutated exclusively through the
// reconciliation core: the synchronous confirm path and the webhook path both
// funnel into Repository.ApplyResult.
type Payment struct {
	ID                     snowflake.ID    `json:"id" gorm:"primaryKey"`
	UUID                   uuid.UUID       `json:"uuid" gorm:"type:uuid;uniqueIndex"`
	AccountID              snowflake.ID    `json:"account_id" gorm:"not null;index"`
	UserID                 snowflake.ID    `json:"user_id" gorm:"not null;index"`
	OrderID                snowflake.ID    `json:"order_id" gorm:"not null;index"`
	Status                 Status          `json:"status" gorm:"type:text;not null"`
	ProcessorTransactionID string          `json:"processor_transaction_id" gorm:"type:text;index"`
	ProcessorStatus        string          `json:"processor_status" gorm:"type:text"`
	ProcessorCurrency      string          `json:"processor_currency" gorm:"type:text"`
	PaidAmount             decimal.Decimal `json:"paid_amount" gorm:"type:numeric(18,6)"`
	ResponsePayload        datatypes.JSON  `json:"response_payload" gorm:"type:jsonb"`
	PaymentTokenID         *snowflake.ID   `json:"payment_token_id"`
	CreatedAt              time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt              time.Time       `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// PaymentToken maps a domain card to a processor payment-method reference.
// Unique per (account, card, user); created once, reused thereafter.
type PaymentToken struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Token     string       `json:"token" gorm:"type:text;not null"`
	AccountID snowflake.ID `json:"account_id" gorm:"not null"`
	CardID    snowflake.ID `json:"card_id" gorm:"not null"`
	UserID    snowflake.ID `json:"user_id" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (PaymentToken) TableName() string { return "payment_tokens" }

// CustomerLink persists the processor customer identity created for a
// (user, account) pair. At most one link per pair.
type CustomerLink struct {
	ID                  snowflake.ID `json:"id" gorm:"primaryKey"`
	AccountID           snowflake.ID `json:"account_id" gorm:"not null"`
	UserID              snowflake.ID `json:"user_id" gorm:"not null"`
	ProcessorCustomerID string       `json:"processor_customer_id" gorm:"type:text;not null"`
	CreatedAt           time.Time    `json:"created_at" gorm:"not null"`
}

func (CustomerLink) TableName() string { return "payment_customers" }

// Account is a merchant-level processor configuration. Immutable per
// transaction; owned externally.
type Account struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	Provider      string       `json:"provider" gorm:"type:text;not null"`
	SecretKey     string       `json:"-" gorm:"type:text;not null"`
	WebhookSecret string       `json:"-" gorm:"type:text;not null"`
	Descriptor    string       `json:"descriptor" gorm:"type:text"`
	Active        bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
}

func (Account) TableName() string { return "payment_accounts" }

// EventRecord stores one webhook delivery. The unique provider_event_id
// index makes replayed deliveries detectable.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	AccountID       snowflake.ID   `json:"account_id" gorm:"not null;index"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

// Result is one reconciled outcome, produced by the confirm path or by a
// webhook derivation rule and applied to the Payment record in one write.
type Result struct {
	Status                 Status
	PaidAmount             *decimal.Decimal
	ProcessorStatus        string
	ProcessorTransactionID string
	ProcessorCurrency      string
	PaymentTokenID         *snowflake.ID
	ResponsePayload        []byte
}
