package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/paybridge/internal/payment/domain"
)

// Adapter verifies and parses Stripe webhook deliveries.
type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Provider() string { return "stripe" }

func (a *Adapter) SignatureHeader() string { return "Stripe-Signature" }

// Verify checks the Stripe-Signature header: an HMAC-SHA256 of
// "<timestamp>.<payload>" under the account's webhook secret.
func (a *Adapter) Verify(ctx context.Context, payload []byte, signatureHeader string, secret string) error {
	sigHeader := strings.TrimSpace(signatureHeader)
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return domain.ErrInvalidSignature
}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type eventObject struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	PaymentIntent  string         `json:"payment_intent"`
	PaymentMethod  string         `json:"payment_method"`
	Currency       string         `json:"currency"`
	Amount         int64          `json:"amount"`
	AmountReceived int64          `json:"amount_received"`
	AmountRefunded int64          `json:"amount_refunded"`
	Metadata       map[string]any `json:"metadata"`
}

// Parse extracts the canonical event from a delivery. The object fields are
// a superset across intent/charge/dispute payloads; unknown event types
// still parse so the reconciler's registry can decide to ignore them.
func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.WebhookEvent, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(envelope.ID) == "" || strings.TrimSpace(envelope.Type) == "" {
		return nil, domain.ErrInvalidEvent
	}

	var object eventObject
	if len(envelope.Data.Object) > 0 {
		if err := json.Unmarshal(envelope.Data.Object, &object); err != nil {
			return nil, domain.ErrInvalidPayload
		}
	}

	return &domain.WebhookEvent{
		Provider:        "stripe",
		ProviderEventID: envelope.ID,
		Type:            strings.TrimSpace(envelope.Type),
		ObjectID:        object.ID,
		ObjectStatus:    object.Status,
		PaymentIntentID: object.PaymentIntent,
		PaymentMethod:   object.PaymentMethod,
		Currency:        strings.ToUpper(strings.TrimSpace(object.Currency)),
		Amount:          object.Amount,
		AmountReceived:  object.AmountReceived,
		AmountRefunded:  object.AmountRefunded,
		PaymentUUID:     metadataString(object.Metadata, "payment_uuid"),
		RawPayload:      payload,
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func metadataString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	if cast, ok := value.(string); ok {
		return strings.TrimSpace(cast)
	}
	return ""
}
