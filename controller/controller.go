// Package controller drives a payment form: it formats and validates fields as
// they change, mirrors them onto the card preview and runs the submission
// state machine (idle -> submitting -> idle).
//
// All element mutations happen under one mutex, so elements need not be safe
// for concurrent use.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"cardform-service/format"
	"cardform-service/logging"
	"cardform-service/models"
	"cardform-service/monitoring"
	"cardform-service/presentation"
	"cardform-service/validation"
)

const (
	focusScale = 1.02
	restScale  = 1.0

	// DefaultDismissAfter is how long a notification stays visible.
	DefaultDismissAfter = 3 * time.Second
)

var (
	ErrSubmitInProgress = errors.New("submission already in progress")
	ErrClosed           = errors.New("form controller closed")
)

// Submitter performs the (simulated) payment behind a submission
type Submitter interface {
	Submit(ctx context.Context, req models.PaymentRequest) (*models.PaymentResponse, error)
}

// SubmitterFunc adapts a function to Submitter
type SubmitterFunc func(ctx context.Context, req models.PaymentRequest) (*models.PaymentResponse, error)

func (f SubmitterFunc) Submit(ctx context.Context, req models.PaymentRequest) (*models.PaymentResponse, error) {
	return f(ctx, req)
}

// Options configures a Controller
type Options struct {
	// Name identifies the form in logs.
	Name         string
	Catalog      presentation.Catalog
	Submitter    Submitter
	Scheduler    Scheduler
	Now          func() time.Time
	DismissAfter time.Duration
}

// Submission reports the outcome of a submit request. When Accepted is false
// Failed lists the invalid fields and Done is nil.
type Submission struct {
	Accepted bool
	Failed   map[models.Field]validation.Result
	Done     <-chan struct{}

	resp *models.PaymentResponse
	err  error
}

// Response returns the payment task result. It is only meaningful once Done
// is closed.
func (s *Submission) Response() (*models.PaymentResponse, error) {
	return s.resp, s.err
}

// Controller owns one payment form
type Controller struct {
	mu      sync.Mutex
	el      Elements
	opts    Options
	state   models.FormState
	dismiss Timer
	cancel  context.CancelFunc
	closed  bool

	// last applied change number per field
	seqs map[models.Field]uint64
}

// New binds a controller to its elements and puts the form in its default
// state.
func New(el Elements, opts Options) (*Controller, error) {
	if err := el.validate(); err != nil {
		return nil, fmt.Errorf("invalid form elements: %w", err)
	}
	if opts.Submitter == nil {
		return nil, errors.New("form controller requires a submitter")
	}
	if opts.Catalog.ButtonIdle == "" {
		opts.Catalog = presentation.DefaultCatalog()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DismissAfter <= 0 {
		opts.DismissAfter = DefaultDismissAfter
	}

	c := &Controller{
		el:    el,
		opts:  opts,
		state: models.StateIdle,
		seqs:  make(map[models.Field]uint64, len(models.Fields)),
	}
	c.el.Submit.SetLabel(opts.Catalog.ButtonIdle)
	c.el.Submit.SetDisabled(false)
	for _, f := range models.Fields {
		c.el.input(f).SetScale(restScale)
	}
	c.resetLocked()
	return c, nil
}

// Format returns the display form of a raw value for field.
func (c *Controller) Format(field models.Field, raw string) string {
	switch field {
	case models.FieldCardNumber:
		return format.CardNumber(raw)
	case models.FieldExpiry:
		return format.Expiry(raw)
	case models.FieldCVV:
		return format.CVV(raw)
	}
	return raw
}

// Validate checks a field value against its rule at the controller's clock.
func (c *Controller) Validate(field models.Field, value string) validation.Result {
	return validation.For(field)(value, c.opts.Now())
}

// Input applies a keystroke-level change to field: the value is formatted,
// mirrored onto the preview and, unless empty, validated.
func (c *Controller) Input(ctx context.Context, field models.Field, raw string) error {
	_, err := c.InputSeq(ctx, field, raw, 0)
	return err
}

// InputSeq is Input for clients that number their changes per field. A change
// whose seq is not newer than the last one applied to field is dropped and
// reported as not applied. A zero seq is always applied.
func (c *Controller) InputSeq(ctx context.Context, field models.Field, raw string, seq uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	in := c.el.input(field)
	if in == nil {
		return false, fmt.Errorf("input %q: %w", field, errUnknownField)
	}
	if seq != 0 {
		if seq <= c.seqs[field] {
			return false, nil
		}
		c.seqs[field] = seq
	}
	c.inputLocked(ctx, in, field, raw)
	return true, nil
}

func (c *Controller) inputLocked(ctx context.Context, in Input, field models.Field, raw string) {
	value := c.Format(field, raw)
	in.SetValue(value)

	switch field {
	case models.FieldCardholder:
		c.el.CardholderPreview.SetText(format.PreviewOr(presentation.PreviewText(value), format.PlaceholderCardholder))
	case models.FieldCardNumber:
		c.el.CardNumberPreview.SetText(format.PreviewOr(value, format.PlaceholderCardNumber))
	case models.FieldExpiry:
		c.el.ExpiryPreview.SetText(format.PreviewOr(value, format.PlaceholderExpiry))
	}

	if value == "" {
		c.clearFieldLocked(field)
		return
	}
	c.showLocked(ctx, field, c.Validate(field, value))
}

// Focus enlarges field slightly.
func (c *Controller) Focus(field models.Field) error {
	return c.scale(field, focusScale)
}

// Blur restores field to its normal size.
func (c *Controller) Blur(field models.Field) error {
	return c.scale(field, restScale)
}

func (c *Controller) scale(field models.Field, s float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	in := c.el.input(field)
	if in == nil {
		return fmt.Errorf("scale %q: %w", field, errUnknownField)
	}
	in.SetScale(s)
	return nil
}

var errUnknownField = errors.New("unknown field")

// IsUnknownField reports whether err was caused by an unknown field name.
func IsUnknownField(err error) bool {
	return errors.Is(err, errUnknownField)
}

// Submit validates every field and, when all pass, starts the payment task.
// The task ignores ctx's cancellation; only Close stops it.
func (c *Controller) Submit(ctx context.Context) (*Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.state == models.StateSubmitting {
		return nil, ErrSubmitInProgress
	}

	c.clearErrorsLocked()

	values := c.valuesLocked()
	results := validation.All(values, c.opts.Now())
	for _, f := range models.Fields {
		c.showLocked(ctx, f, results[f])
	}
	failed := validation.Failed(results)

	if len(failed) > 0 {
		monitoring.SubmissionCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", "rejected")),
		)
		logging.Info("Submission rejected",
			zap.String("form", c.opts.Name),
			zap.Int("invalid_fields", len(failed)),
		)
		return &Submission{Failed: failed}, nil
	}

	c.state = models.StateSubmitting
	c.el.Submit.SetLabel(c.opts.Catalog.ButtonProcessing)
	c.el.Submit.SetDisabled(true)

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	done := make(chan struct{})
	sub := &Submission{Accepted: true, Done: done}
	req := models.PaymentRequest{
		Cardholder: values[models.FieldCardholder],
		CardNumber: format.Digits(values[models.FieldCardNumber]),
		Expiry:     values[models.FieldExpiry],
		CVV:        values[models.FieldCVV],
	}

	logging.Info("Submission accepted", zap.String("form", c.opts.Name))

	go func() {
		defer close(done)
		defer cancel()
		sub.resp, sub.err = c.opts.Submitter.Submit(taskCtx, req)
		c.finish(taskCtx, sub.err)
	}()

	return sub, nil
}

func (c *Controller) finish(ctx context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = models.StateIdle
	c.cancel = nil
	if c.closed {
		return
	}
	c.el.Submit.SetLabel(c.opts.Catalog.ButtonIdle)
	c.el.Submit.SetDisabled(false)

	status := "success"
	if err != nil {
		status = "failed"
		logging.Warn("Payment task failed", zap.String("form", c.opts.Name), zap.Error(err))
		c.notifyLocked(models.Notification{Kind: models.NotificationFailure, Message: c.opts.Catalog.SubmitFailure})
	} else {
		logging.Info("Payment task completed", zap.String("form", c.opts.Name))
		c.notifyLocked(models.Notification{Kind: models.NotificationSuccess, Message: c.opts.Catalog.SubmitSuccess})
		c.resetLocked()
	}
	monitoring.SubmissionCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// Reset clears every field, restores the preview placeholders and removes all
// status messages. It is refused while a submission is running.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state == models.StateSubmitting {
		return ErrSubmitInProgress
	}
	c.resetLocked()
	return nil
}

// State returns the current submission state.
func (c *Controller) State() models.FormState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Inspect runs fn while holding the controller lock so element state can be
// read consistently.
func (c *Controller) Inspect(fn func(state models.FormState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.state)
}

// Close cancels a running payment task and any pending notification timer.
// Further submissions fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.dismiss != nil {
		c.dismiss.Stop()
		c.dismiss = nil
	}
}

func (c *Controller) notifyLocked(n models.Notification) {
	if c.dismiss != nil {
		c.dismiss.Stop()
	}
	c.el.Notifier.Show(n)

	var t Timer
	t = c.opts.Scheduler.AfterFunc(c.opts.DismissAfter, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.dismiss != t {
			return
		}
		c.el.Notifier.Dismiss()
		c.dismiss = nil
	})
	c.dismiss = t
}

func (c *Controller) showLocked(ctx context.Context, field models.Field, r validation.Result) {
	c.el.message(field).SetMessage(c.opts.Catalog.Message(field, r), presentation.Status(r))
	c.el.input(field).SetErrorStyle(!r.Valid)

	outcome := "valid"
	if !r.Valid {
		outcome = string(r.Reason)
	}
	monitoring.ValidationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("field", string(field)),
			attribute.String("outcome", outcome),
		),
	)
}

func (c *Controller) clearFieldLocked(field models.Field) {
	c.el.message(field).SetMessage("", models.StatusNone)
	c.el.input(field).SetErrorStyle(false)
}

func (c *Controller) clearErrorsLocked() {
	for _, f := range models.Fields {
		c.clearFieldLocked(f)
	}
}

func (c *Controller) valuesLocked() map[models.Field]string {
	values := make(map[models.Field]string, len(models.Fields))
	for _, f := range models.Fields {
		values[f] = c.el.input(f).Value()
	}
	return values
}

func (c *Controller) resetLocked() {
	for _, f := range models.Fields {
		c.el.input(f).SetValue("")
	}
	c.el.CardholderPreview.SetText(format.PlaceholderCardholder)
	c.el.CardNumberPreview.SetText(format.PlaceholderCardNumber)
	c.el.ExpiryPreview.SetText(format.PlaceholderExpiry)
	c.clearErrorsLocked()
}
