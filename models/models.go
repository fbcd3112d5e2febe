package models

import "fmt"

// Field identifies one of the payment form inputs
type Field string

const (
	FieldCardholder Field = "cardholder"
	FieldCardNumber Field = "card_number"
	FieldExpiry     Field = "expiry"
	FieldCVV        Field = "cvv"
)

// Fields lists the form inputs in display order
var Fields = []Field{FieldCardholder, FieldCardNumber, FieldExpiry, FieldCVV}

// ParseField converts a wire name into a Field
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", name)
}

// FormState is the submission state of a form
type FormState string

const (
	StateIdle       FormState = "idle"
	StateSubmitting FormState = "submitting"
)

// FieldStatus is the presentational status of a field message
type FieldStatus string

const (
	StatusNone    FieldStatus = ""
	StatusValid   FieldStatus = "valid"
	StatusInvalid FieldStatus = "invalid"
)

// FieldView is what a single input currently shows
type FieldView struct {
	Value   string      `json:"value"`
	Message string      `json:"message"`
	Status  FieldStatus `json:"status"`
	Error   bool        `json:"error"`
	Scale   float64     `json:"scale"`
}

// Preview mirrors the card face
type Preview struct {
	Cardholder string `json:"cardholder"`
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
}

// ButtonView is the submit control
type ButtonView struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// NotificationKind distinguishes transient notifications
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationFailure NotificationKind = "failure"
)

// Notification is a transient message shown after a submission
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
}

// FormSnapshot is the serialisable view of a whole form
type FormSnapshot struct {
	SessionID    string              `json:"session_id,omitempty"`
	State        FormState           `json:"state"`
	Fields       map[Field]FieldView `json:"fields"`
	Preview      Preview             `json:"preview"`
	Button       ButtonView          `json:"button"`
	Notification *Notification       `json:"notification,omitempty"`
}

// InputEvent carries a keystroke-level update of one field
type InputEvent struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
	// Seq numbers changes per field; older changes arriving late are dropped.
	Seq uint64 `json:"seq,omitempty"`
}

// FocusEvent carries a focus or blur of one field
type FocusEvent struct {
	Field string `json:"field" binding:"required"`
}

// SubmitErrors lists the failing fields of a rejected submission
type SubmitErrors struct {
	Error  string           `json:"error"`
	Fields map[Field]string `json:"fields,omitempty"`
	Form   *FormSnapshot    `json:"form,omitempty"`
}

// PaymentRequest represents the card details handed to the payment task
type PaymentRequest struct {
	Cardholder string `json:"cardholder"`
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
}

// PaymentResponse represents a payment response
type PaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	ProcessedAt   string `json:"processed_at"`
}
