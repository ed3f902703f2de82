package resolver

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paybridge/internal/payment/domain"
	"github.com/smallbiznis/paybridge/pkg/db"
	"gorm.io/gorm"
)

// Session resolves processor-side identities for one checkout. Resolved
// customer and card tokens are memoized on the session, so repeated lookups
// within a single payment attempt never hit the processor twice.
type Session struct {
	client      domain.ProcessorClient
	repo        domain.Repository
	db          *gorm.DB
	genID       func() snowflake.ID
	account     *domain.Account
	user        domain.User
	emailPrefix string

	customerID string
	tokens     map[snowflake.ID]string
}

func NewSession(
	client domain.ProcessorClient,
	repo domain.Repository,
	database *gorm.DB,
	genID func() snowflake.ID,
	account *domain.Account,
	user domain.User,
	emailPrefix string,
) *Session {
	return &Session{
		client:      client,
		repo:        repo,
		db:          database,
		genID:       genID,
		account:     account,
		user:        user,
		emailPrefix: emailPrefix,
		tokens:      map[snowflake.ID]string{},
	}
}

// Customer returns the processor customer id for the session's user, creating
// the processor customer and the persistent link on first use.
func (s *Session) Customer(ctx context.Context) (string, error) {
	if s.customerID != "" {
		return s.customerID, nil
	}

	link, err := s.repo.FindCustomerLink(ctx, s.db, s.account.ID, s.user.ID)
	if err != nil {
		return "", err
	}
	if link != nil {
		customer, err := s.client.RetrieveCustomer(ctx, link.ProcessorCustomerID)
		if err != nil {
			return "", err
		}
		s.customerID = customer.ID
		return s.customerID, nil
	}

	customer, err := s.client.CreateCustomer(ctx, domain.CustomerParams{
		Name:  s.user.Name,
		Email: s.namespacedEmail(),
		Phone: s.user.Phone,
	})
	if err != nil {
		return "", err
	}

	insertErr := s.repo.InsertCustomerLink(ctx, s.db, &domain.CustomerLink{
		ID:                  s.genID(),
		AccountID:           s.account.ID,
		UserID:              s.user.ID,
		ProcessorCustomerID: customer.ID,
		CreatedAt:           time.Now().UTC(),
	})
	if insertErr != nil {
		// Lost the race against a concurrent checkout: the winner's link is
		// authoritative, the customer created here goes unused.
		if db.IsDuplicateKeyErr(insertErr) {
			existing, err := s.repo.FindCustomerLink(ctx, s.db, s.account.ID, s.user.ID)
			if err != nil {
				return "", err
			}
			if existing != nil {
				s.customerID = existing.ProcessorCustomerID
				return s.customerID, nil
			}
		}
		return "", insertErr
	}

	s.customerID = customer.ID
	return s.customerID, nil
}

// Token returns the processor payment-method reference for a card, creating
// and attaching it under the session customer on first use.
func (s *Session) Token(ctx context.Context, card domain.Card, metadata map[string]string) (string, error) {
	if token, ok := s.tokens[card.ID]; ok {
		return token, nil
	}

	stored, err := s.repo.FindToken(ctx, s.db, s.account.ID, card.ID, s.user.ID)
	if err != nil {
		return "", err
	}
	if stored != nil {
		s.tokens[card.ID] = stored.Token
		return stored.Token, nil
	}

	customerID, err := s.Customer(ctx)
	if err != nil {
		return "", err
	}

	cardToken, err := s.client.CreateCardToken(ctx, card)
	if err != nil {
		return "", err
	}
	attached, err := s.client.AttachCard(ctx, customerID, cardToken.ID, metadata)
	if err != nil {
		return "", err
	}

	insertErr := s.repo.InsertToken(ctx, s.db, &domain.PaymentToken{
		ID:        s.genID(),
		Token:     attached.ID,
		AccountID: s.account.ID,
		CardID:    card.ID,
		UserID:    s.user.ID,
		CreatedAt: time.Now().UTC(),
	})
	if insertErr != nil {
		if db.IsDuplicateKeyErr(insertErr) {
			existing, err := s.repo.FindToken(ctx, s.db, s.account.ID, card.ID, s.user.ID)
			if err != nil {
				return "", err
			}
			if existing != nil {
				s.tokens[card.ID] = existing.Token
				return existing.Token, nil
			}
		}
		return "", insertErr
	}

	s.tokens[card.ID] = attached.ID
	return attached.ID, nil
}

func (s *Session) namespacedEmail() string {
	if s.emailPrefix == "" {
		return s.user.Email
	}
	return s.emailPrefix + s.user.Email
}
