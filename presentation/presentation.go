// Package presentation maps validation outcomes to the text and style a form
// displays, and cleans values mirrored onto the card preview.
package presentation

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"cardform-service/models"
	"cardform-service/validation"
)

// Catalog keys accepted by Apply.
const (
	KeyValid            = "valid"
	KeyButtonIdle       = "button.idle"
	KeyButtonProcessing = "button.processing"
	KeySubmitSuccess    = "submit.success"
	KeySubmitFailure    = "submit.failure"
)

// Catalog holds every user-facing string of the form
type Catalog struct {
	Valid            string
	ButtonIdle       string
	ButtonProcessing string
	SubmitSuccess    string
	SubmitFailure    string
	Reasons          map[string]string
}

// DefaultCatalog returns the built-in English strings.
func DefaultCatalog() Catalog {
	return Catalog{
		Valid:            "✓ Valid",
		ButtonIdle:       "Confirm Payment",
		ButtonProcessing: "Processing...",
		SubmitSuccess:    "✓ Payment processed successfully!",
		SubmitFailure:    "✗ Payment could not be processed",
		Reasons: map[string]string{
			reasonKey(models.FieldCardholder, validation.ReasonTooShort):          "✗ Name too short",
			reasonKey(models.FieldCardholder, validation.ReasonInvalidCharacters): "✗ Only letters and spaces allowed",
			reasonKey(models.FieldCardNumber, validation.ReasonDigitCount):        "✗ Invalid card number (16 digits required)",
			reasonKey(models.FieldExpiry, validation.ReasonBadFormat):             "✗ Invalid format (MM/YY)",
			reasonKey(models.FieldExpiry, validation.ReasonExpired):               "✗ Card expired",
			reasonKey(models.FieldCVV, validation.ReasonDigitCount):               "✗ Invalid CVV (3 digits required)",
		},
	}
}

func reasonKey(field models.Field, reason validation.Reason) string {
	return string(field) + "." + string(reason)
}

// Apply returns a copy of c with overrides applied. Keys are either one of the
// Key constants or "<field>.<reason>"; blank values are ignored.
func (c Catalog) Apply(overrides map[string]string) Catalog {
	out := c
	out.Reasons = make(map[string]string, len(c.Reasons)+len(overrides))
	for k, v := range c.Reasons {
		out.Reasons[k] = v
	}
	for key, value := range overrides {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch key {
		case KeyValid:
			out.Valid = value
		case KeyButtonIdle:
			out.ButtonIdle = value
		case KeyButtonProcessing:
			out.ButtonProcessing = value
		case KeySubmitSuccess:
			out.SubmitSuccess = value
		case KeySubmitFailure:
			out.SubmitFailure = value
		default:
			out.Reasons[key] = value
		}
	}
	return out
}

// Message returns the status text for a field result.
func (c Catalog) Message(field models.Field, r validation.Result) string {
	if r.Valid {
		return c.Valid
	}
	if msg, ok := c.Reasons[reasonKey(field, r.Reason)]; ok {
		return msg
	}
	return "✗ Invalid"
}

// Status returns the message style for a field result.
func Status(r validation.Result) models.FieldStatus {
	if r.Valid {
		return models.StatusValid
	}
	return models.StatusInvalid
}

// FieldErrors flattens failing results into field → message pairs.
func (c Catalog) FieldErrors(failed map[models.Field]validation.Result) map[models.Field]string {
	if len(failed) == 0 {
		return nil
	}
	out := make(map[models.Field]string, len(failed))
	for f, r := range failed {
		out[f] = c.Message(f, r)
	}
	return out
}

var (
	previewPolicyOnce sync.Once
	previewPolicy     *bluemonday.Policy
)

// PreviewText strips any markup from a value mirrored onto the card face.
// The result is plain text; escaping is left to whoever renders it.
func PreviewText(raw string) string {
	previewPolicyOnce.Do(func() {
		previewPolicy = bluemonday.StrictPolicy()
	})
	return html.UnescapeString(previewPolicy.Sanitize(raw))
}
