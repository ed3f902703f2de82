package domain

// Status is the domain payment status enumeration.
type Status string

const (
	StatusCreated         Status = "created"
	StatusInitiated       Status = "initiated"
	StatusProcessing      Status = "processing"
	StatusRequiresAction  Status = "requires_action"
	StatusDeclined        Status = "declined"
	StatusPaid            Status = "paid"
	StatusRefunded        Status = "refunded"
	StatusPartialRefunded Status = "partial_refunded"
	StatusChargeback      Status = "chargeback"
	StatusError           Status = "error"
)

// Processor payment-intent status vocabulary.
const (
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
	IntentStatusRequiresConfirmation  = "requires_confirmation"
	IntentStatusRequiresAction        = "requires_action"
	IntentStatusProcessing            = "processing"
	IntentStatusRequiresCapture       = "requires_capture"
	IntentStatusCanceled              = "canceled"
	IntentStatusSucceeded             = "succeeded"
)

// MapIntentStatus translates a processor intent status into the domain
// status. Total over all inputs; anything unrecognized is an error.
//
// requires_action normally never reaches this table: the confirm path raises
// a redirection before consulting it, so the declined mapping only applies
// when that branch was bypassed.
func MapIntentStatus(status string) Status {
	switch status {
	case IntentStatusRequiresPaymentMethod:
		return StatusCreated
	case IntentStatusSucceeded:
		return StatusPaid
	case IntentStatusCanceled:
		return StatusRefunded
	case IntentStatusProcessing:
		return StatusInitiated
	case IntentStatusRequiresAction:
		return StatusDeclined
	default:
		return StatusError
	}
}

// Regresses reports whether writing next over current would move a settled
// payment back to a pre-settlement state. Refunds and chargebacks are later
// states and are allowed to follow paid; webhook re-deliveries of anything
// lesser are not.
func Regresses(current Status, next Status) bool {
	if current != StatusPaid {
		return false
	}
	switch next {
	case StatusPaid, StatusRefunded, StatusPartialRefunded, StatusChargeback:
		return false
	default:
		return true
	}
}
