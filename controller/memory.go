package controller

import (
	"cardform-service/models"
)

// MemoryInput is an in-memory Input
type MemoryInput struct {
	value      string
	errorStyle bool
	scale      float64
}

func (i *MemoryInput) Value() string          { return i.value }
func (i *MemoryInput) SetValue(value string)  { i.value = value }
func (i *MemoryInput) SetErrorStyle(on bool)  { i.errorStyle = on }
func (i *MemoryInput) SetScale(scale float64) { i.scale = scale }

// MemoryText is an in-memory Text
type MemoryText struct {
	text string
}

func (t *MemoryText) SetText(text string) { t.text = text }
func (t *MemoryText) Text() string        { return t.text }

// MemoryMessage is an in-memory Message
type MemoryMessage struct {
	text   string
	status models.FieldStatus
}

func (m *MemoryMessage) SetMessage(text string, status models.FieldStatus) {
	m.text = text
	m.status = status
}

// MemoryButton is an in-memory Button
type MemoryButton struct {
	label    string
	disabled bool
}

func (b *MemoryButton) SetLabel(label string)     { b.label = label }
func (b *MemoryButton) SetDisabled(disabled bool) { b.disabled = disabled }

// MemoryNotifier holds at most one visible notification
type MemoryNotifier struct {
	current *models.Notification
}

func (n *MemoryNotifier) Show(note models.Notification) { n.current = &note }
func (n *MemoryNotifier) Dismiss()                     { n.current = nil }

// MemoryForm bundles in-memory elements for one form. It is not safe for
// concurrent use on its own; read it through Controller.Inspect.
type MemoryForm struct {
	Inputs   map[models.Field]*MemoryInput
	Messages map[models.Field]*MemoryMessage
	Previews map[models.Field]*MemoryText
	Button   *MemoryButton
	Notifier *MemoryNotifier
}

// NewMemoryForm creates a blank in-memory form.
func NewMemoryForm() *MemoryForm {
	m := &MemoryForm{
		Inputs:   make(map[models.Field]*MemoryInput, len(models.Fields)),
		Messages: make(map[models.Field]*MemoryMessage, len(models.Fields)),
		Previews: map[models.Field]*MemoryText{
			models.FieldCardholder: {},
			models.FieldCardNumber: {},
			models.FieldExpiry:     {},
		},
		Button:   &MemoryButton{},
		Notifier: &MemoryNotifier{},
	}
	for _, f := range models.Fields {
		m.Inputs[f] = &MemoryInput{scale: 1}
		m.Messages[f] = &MemoryMessage{}
	}
	return m
}

// Elements exposes the form as controller elements.
func (m *MemoryForm) Elements() Elements {
	return Elements{
		Cardholder:        m.Inputs[models.FieldCardholder],
		CardNumber:        m.Inputs[models.FieldCardNumber],
		Expiry:            m.Inputs[models.FieldExpiry],
		CVV:               m.Inputs[models.FieldCVV],
		CardholderPreview: m.Previews[models.FieldCardholder],
		CardNumberPreview: m.Previews[models.FieldCardNumber],
		ExpiryPreview:     m.Previews[models.FieldExpiry],
		CardholderMessage: m.Messages[models.FieldCardholder],
		CardNumberMessage: m.Messages[models.FieldCardNumber],
		ExpiryMessage:     m.Messages[models.FieldExpiry],
		CVVMessage:        m.Messages[models.FieldCVV],
		Submit:            m.Button,
		Notifier:          m.Notifier,
	}
}

// Snapshot copies the current element state.
func (m *MemoryForm) Snapshot(state models.FormState) models.FormSnapshot {
	snap := models.FormSnapshot{
		State:  state,
		Fields: make(map[models.Field]models.FieldView, len(models.Fields)),
		Preview: models.Preview{
			Cardholder: m.Previews[models.FieldCardholder].text,
			CardNumber: m.Previews[models.FieldCardNumber].text,
			Expiry:     m.Previews[models.FieldExpiry].text,
		},
		Button: models.ButtonView{
			Label:    m.Button.label,
			Disabled: m.Button.disabled,
		},
	}
	for _, f := range models.Fields {
		in, msg := m.Inputs[f], m.Messages[f]
		snap.Fields[f] = models.FieldView{
			Value:   in.value,
			Message: msg.text,
			Status:  msg.status,
			Error:   in.errorStyle,
			Scale:   in.scale,
		}
	}
	if n := m.Notifier.current; n != nil {
		note := *n
		snap.Notification = &note
	}
	return snap
}
