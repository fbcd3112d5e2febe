package controller

import (
	"errors"
	"fmt"
	"reflect"

	"cardform-service/models"
)

// Input is an editable form field
type Input interface {
	Value() string
	SetValue(value string)
	SetErrorStyle(on bool)
	SetScale(scale float64)
}

// Text is a read-only surface such as a card preview
type Text interface {
	SetText(text string)
}

// Message is the status line under a field
type Message interface {
	SetMessage(text string, status models.FieldStatus)
}

// Button is the submit control
type Button interface {
	SetLabel(label string)
	SetDisabled(disabled bool)
}

// Notifier shows and removes transient notifications
type Notifier interface {
	Show(n models.Notification)
	Dismiss()
}

// Elements references every UI element the controller drives. All fields are
// required.
type Elements struct {
	Cardholder Input
	CardNumber Input
	Expiry     Input
	CVV        Input

	CardholderPreview Text
	CardNumberPreview Text
	ExpiryPreview     Text

	CardholderMessage Message
	CardNumberMessage Message
	ExpiryMessage     Message
	CVVMessage        Message

	Submit   Button
	Notifier Notifier
}

func (e Elements) validate() error {
	var errs []error
	check := func(name string, v any) {
		if isNil(v) {
			errs = append(errs, fmt.Errorf("missing element %s", name))
		}
	}
	check("cardholder", e.Cardholder)
	check("card number", e.CardNumber)
	check("expiry", e.Expiry)
	check("cvv", e.CVV)
	check("cardholder preview", e.CardholderPreview)
	check("card number preview", e.CardNumberPreview)
	check("expiry preview", e.ExpiryPreview)
	check("cardholder message", e.CardholderMessage)
	check("card number message", e.CardNumberMessage)
	check("expiry message", e.ExpiryMessage)
	check("cvv message", e.CVVMessage)
	check("submit", e.Submit)
	check("notifier", e.Notifier)
	return errors.Join(errs...)
}

// isNil also catches typed nils such as a (*MemoryInput)(nil) stored in an
// interface field.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func (e Elements) input(f models.Field) Input {
	switch f {
	case models.FieldCardholder:
		return e.Cardholder
	case models.FieldCardNumber:
		return e.CardNumber
	case models.FieldExpiry:
		return e.Expiry
	case models.FieldCVV:
		return e.CVV
	}
	return nil
}

func (e Elements) message(f models.Field) Message {
	switch f {
	case models.FieldCardholder:
		return e.CardholderMessage
	case models.FieldCardNumber:
		return e.CardNumberMessage
	case models.FieldExpiry:
		return e.ExpiryMessage
	case models.FieldCVV:
		return e.CVVMessage
	}
	return nil
}
