package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrPaymentNotFound       = errors.New("payment_not_found")
	ErrAccountNotFound       = errors.New("payment_account_not_found")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrInvalidRequest        = errors.New("invalid_payment_request")
)

// APIError is a failed call to the external processor, carrying the
// machine-readable code and message from its error envelope.
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("processor api error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("processor api error: %s", e.Message)
}

// ProcessorError wraps any processor failure raised during orchestration into
// a single driver error that preserves the original code and message.
type ProcessorError struct {
	Op  string
	Err error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("payment driver: %s: %v", e.Op, e.Err)
}

func (e *ProcessorError) Unwrap() error { return e.Err }

// WrapProcessorError attaches the failing operation; nil passes through.
func WrapProcessorError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProcessorError{Op: op, Err: err}
}

// RedirectionError is not a failure: the intent requires external user
// authentication and the caller must redirect the end user to URL before the
// payment can complete.
type RedirectionError struct {
	URL           string
	IntentPayload []byte
	PaymentCardID snowflake.ID
}

func (e *RedirectionError) Error() string {
	return "payment_redirection_required:payment_intent.requires_action"
}
