package domain

import "context"

// Transient processor-side objects. Only the fields the reconciliation core
// extracts are modeled; Raw keeps the full response for the audit payload.

type ProcessorCustomer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

type CardToken struct {
	ID string
}

type ProcessorCard struct {
	ID string
}

type Invoice struct {
	ID              string
	Status          string
	PaymentIntentID string
}

type Intent struct {
	ID             string
	Status         string
	Amount         int64
	AmountReceived int64
	Currency       string
	PaymentMethod  string
	NextActionURL  string
	Raw            []byte
}

type CustomerParams struct {
	Name  string
	Email string
	Phone string
}

// InvoiceItemParams covers both line items (UnitAmount+Quantity) and flat
// amounts such as shipping (Amount).
type InvoiceItemParams struct {
	CustomerID  string
	Currency    string
	Description string
	UnitAmount  *int64
	Amount      *int64
	Quantity    int64
}

type InvoiceParams struct {
	CustomerID          string
	Description         string
	StatementDescriptor string
	DaysUntilDue        int
	Metadata            map[string]string
}

type ShippingParams struct {
	Name    string
	Phone   string
	Carrier string
	Address Address
}

type IntentUpdateParams struct {
	Shipping      *ShippingParams
	Metadata      map[string]string
	ReceiptEmail  string
	PaymentMethod string
	CardOnly      bool
}

// ProcessorClient is the outbound processor API surface consumed by the
// driver. Every call may fail with an *APIError.
type ProcessorClient interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (*ProcessorCustomer, error)
	RetrieveCustomer(ctx context.Context, id string) (*ProcessorCustomer, error)
	CreateCardToken(ctx context.Context, card Card) (*CardToken, error)
	AttachCard(ctx context.Context, customerID string, tokenID string, metadata map[string]string) (*ProcessorCard, error)
	DetachPaymentMethod(ctx context.Context, id string) error
	CreateInvoiceItem(ctx context.Context, params InvoiceItemParams) error
	CreateInvoice(ctx context.Context, params InvoiceParams) (*Invoice, error)
	FinalizeInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	UpdateIntent(ctx context.Context, id string, params IntentUpdateParams) (*Intent, error)
	ConfirmIntent(ctx context.Context, id string, returnURL string) (*Intent, error)
}

// ClientFactory builds a ProcessorClient bound to one account's secret key.
type ClientFactory func(secretKey string) ProcessorClient

// WebhookEvent is the canonical asynchronous event parsed from a provider
// delivery. Object fields are populated best-effort from data.object; rules
// read only what their event type guarantees.
type WebhookEvent struct {
	Provider        string
	ProviderEventID string
	Type            string
	ObjectID        string
	ObjectStatus    string
	PaymentIntentID string
	PaymentMethod   string
	Currency        string
	Amount          int64
	AmountReceived  int64
	AmountRefunded  int64
	PaymentUUID     string
	RawPayload      []byte
}

// EventAdapter verifies and parses one provider's webhook wire format.
type EventAdapter interface {
	Provider() string
	SignatureHeader() string
	Verify(ctx context.Context, payload []byte, signatureHeader string, secret string) error
	Parse(ctx context.Context, payload []byte) (*WebhookEvent, error)
}
