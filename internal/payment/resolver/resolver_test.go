package resolver_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paybridge/internal/payment/domain"
	"github.com/smallbiznis/paybridge/internal/payment/repository"
	"github.com/smallbiznis/paybridge/internal/payment/resolver"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeClient struct {
	createCustomerCalls   int
	retrieveCustomerCalls int
	createTokenCalls      int
	attachCalls           int
	lastCustomerEmail     string
}

func (f *fakeClient) CreateCustomer(ctx context.Context, params domain.CustomerParams) (*domain.ProcessorCustomer, error) {
	f.createCustomerCalls++
	f.lastCustomerEmail = params.Email
	return &domain.ProcessorCustomer{ID: "cus_new", Name: params.Name, Email: params.Email}, nil
}

func (f *fakeClient) RetrieveCustomer(ctx context.Context, id string) (*domain.ProcessorCustomer, error) {
	f.retrieveCustomerCalls++
	return &domain.ProcessorCustomer{ID: id}, nil
}

func (f *fakeClient) CreateCardToken(ctx context.Context, card domain.Card) (*domain.CardToken, error) {
	f.createTokenCalls++
	return &domain.CardToken{ID: "tok_1"}, nil
}

func (f *fakeClient) AttachCard(ctx context.Context, customerID string, tokenID string, metadata map[string]string) (*domain.ProcessorCard, error) {
	f.attachCalls++
	return &domain.ProcessorCard{ID: "card_attached"}, nil
}

func (f *fakeClient) DetachPaymentMethod(ctx context.Context, id string) error { return nil }

func (f *fakeClient) CreateInvoiceItem(ctx context.Context, params domain.InvoiceItemParams) error {
	return nil
}

func (f *fakeClient) CreateInvoice(ctx context.Context, params domain.InvoiceParams) (*domain.Invoice, error) {
	return &domain.Invoice{ID: "in_1", Status: "draft"}, nil
}

func (f *fakeClient) FinalizeInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	return &domain.Invoice{ID: invoiceID, Status: "open", PaymentIntentID: "pi_1"}, nil
}

func (f *fakeClient) RetrieveIntent(ctx context.Context, id string) (*domain.Intent, error) {
	return &domain.Intent{ID: id, Status: domain.IntentStatusRequiresPaymentMethod}, nil
}

func (f *fakeClient) UpdateIntent(ctx context.Context, id string, params domain.IntentUpdateParams) (*domain.Intent, error) {
	return &domain.Intent{ID: id}, nil
}

func (f *fakeClient) ConfirmIntent(ctx context.Context, id string, returnURL string) (*domain.Intent, error) {
	return &domain.Intent{ID: id, Status: domain.IntentStatusSucceeded}, nil
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	schema := []string{
		`CREATE TABLE payment_tokens (
			id INTEGER PRIMARY KEY,
			token TEXT NOT NULL,
			account_id INTEGER NOT NULL,
			card_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (account_id, card_id, user_id)
		)`,
		`CREATE TABLE payment_customers (
			id INTEGER PRIMARY KEY,
			account_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			processor_customer_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (account_id, user_id)
		)`,
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

func TestSessionTokenMemoized(t *testing.T) {
	conn := setupDB(t)
	node := newNode(t)
	client := &fakeClient{}
	repo := repository.Provide()

	account := &domain.Account{ID: node.Generate(), Provider: "stripe"}
	user := domain.User{ID: node.Generate(), Name: "Jess", Email: "jess@example.com"}
	card := domain.Card{ID: node.Generate(), Number: "4242424242424242"}

	session := resolver.NewSession(client, repo, conn, node.Generate, account, user, "")

	first, err := session.Token(context.Background(), card, nil)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	second, err := session.Token(context.Background(), card, nil)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	if first != "card_attached" || second != first {
		t.Fatalf("unexpected tokens %q %q", first, second)
	}
	if client.createTokenCalls != 1 || client.attachCalls != 1 {
		t.Fatalf("expected one tokenization, got create=%d attach=%d", client.createTokenCalls, client.attachCalls)
	}
	if client.createCustomerCalls != 1 {
		t.Fatalf("expected one customer create, got %d", client.createCustomerCalls)
	}
}

func TestSessionTokenPersistedReuse(t *testing.T) {
	conn := setupDB(t)
	node := newNode(t)
	client := &fakeClient{}
	repo := repository.Provide()

	account := &domain.Account{ID: node.Generate(), Provider: "stripe"}
	user := domain.User{ID: node.Generate(), Name: "Jess", Email: "jess@example.com"}
	card := domain.Card{ID: node.Generate(), Number: "4242424242424242"}

	first := resolver.NewSession(client, repo, conn, node.Generate, account, user, "")
	if _, err := first.Token(context.Background(), card, nil); err != nil {
		t.Fatalf("token: %v", err)
	}

	// A fresh session resolves the same card from storage without touching
	// the processor again.
	second := resolver.NewSession(client, repo, conn, node.Generate, account, user, "")
	token, err := second.Token(context.Background(), card, nil)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token != "card_attached" {
		t.Fatalf("unexpected token %q", token)
	}
	if client.createTokenCalls != 1 || client.attachCalls != 1 || client.createCustomerCalls != 1 {
		t.Fatalf("expected no extra processor calls, got %+v", client)
	}
}

func TestSessionCustomerLinkReuse(t *testing.T) {
	conn := setupDB(t)
	node := newNode(t)
	client := &fakeClient{}
	repo := repository.Provide()

	account := &domain.Account{ID: node.Generate(), Provider: "stripe"}
	user := domain.User{ID: node.Generate(), Name: "Jess", Email: "jess@example.com"}

	session := resolver.NewSession(client, repo, conn, node.Generate, account, user, "")
	customerID, err := session.Customer(context.Background())
	if err != nil {
		t.Fatalf("customer: %v", err)
	}
	if customerID != "cus_new" {
		t.Fatalf("unexpected customer %q", customerID)
	}

	reuse := resolver.NewSession(client, repo, conn, node.Generate, account, user, "")
	customerID, err = reuse.Customer(context.Background())
	if err != nil {
		t.Fatalf("customer: %v", err)
	}
	if customerID != "cus_new" {
		t.Fatalf("unexpected customer %q", customerID)
	}
	if client.createCustomerCalls != 1 {
		t.Fatalf("expected one customer create, got %d", client.createCustomerCalls)
	}
	if client.retrieveCustomerCalls != 1 {
		t.Fatalf("expected one customer retrieve, got %d", client.retrieveCustomerCalls)
	}
}

func TestSessionCustomerEmailPrefix(t *testing.T) {
	conn := setupDB(t)
	node := newNode(t)
	client := &fakeClient{}
	repo := repository.Provide()

	account := &domain.Account{ID: node.Generate(), Provider: "stripe"}
	user := domain.User{ID: node.Generate(), Name: "Jess", Email: "jess@example.com"}

	session := resolver.NewSession(client, repo, conn, node.Generate, account, user, "sandbox.")
	if _, err := session.Customer(context.Background()); err != nil {
		t.Fatalf("customer: %v", err)
	}
	if client.lastCustomerEmail != "sandbox.jess@example.com" {
		t.Fatalf("unexpected email %q", client.lastCustomerEmail)
	}
}
