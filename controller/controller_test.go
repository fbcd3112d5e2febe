package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"cardform-service/format"
	"cardform-service/logging"
	"cardform-service/models"
	"cardform-service/validation"
)

type manualTimer struct {
	s       *manualScheduler
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

// manualScheduler fires callbacks only when told to.
type manualScheduler struct {
	mu      sync.Mutex
	pending []*manualTimer
	delays  []time.Duration
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, f: f}
	s.pending = append(s.pending, t)
	s.delays = append(s.delays, d)
	return t
}

func (s *manualScheduler) fireAll() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, t := range pending {
		s.mu.Lock()
		stopped := t.stopped
		t.stopped = true
		s.mu.Unlock()
		if !stopped {
			t.f()
		}
	}
}

// gatedSubmitter blocks until release is closed.
type gatedSubmitter struct {
	release chan struct{}
	err     error
	got     chan models.PaymentRequest
}

func newGatedSubmitter(err error) *gatedSubmitter {
	return &gatedSubmitter{
		release: make(chan struct{}),
		err:     err,
		got:     make(chan models.PaymentRequest, 1),
	}
}

func (g *gatedSubmitter) Submit(ctx context.Context, req models.PaymentRequest) (*models.PaymentResponse, error) {
	g.got <- req
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	return &models.PaymentResponse{TransactionID: "tx-1", Status: "success"}, nil
}

type fixture struct {
	form  *MemoryForm
	ctrl  *Controller
	sched *manualScheduler
	sub   *gatedSubmitter
}

func newFixture(t *testing.T, submitErr error) *fixture {
	t.Helper()
	f := &fixture{
		form:  NewMemoryForm(),
		sched: &manualScheduler{},
		sub:   newGatedSubmitter(submitErr),
	}
	ctrl, err := New(f.form.Elements(), Options{
		Name:      "test",
		Submitter: f.sub,
		Scheduler: f.sched,
		Now: func() time.Time {
			return time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
		},
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	f.ctrl = ctrl
	return f
}

func (f *fixture) snapshot() models.FormSnapshot {
	var snap models.FormSnapshot
	f.ctrl.Inspect(func(state models.FormState) {
		snap = f.form.Snapshot(state)
	})
	return snap
}

func (f *fixture) fillValid(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.ctrl.Input(ctx, models.FieldCardholder, "Kate Smith"))
	require.NoError(t, f.ctrl.Input(ctx, models.FieldCardNumber, "1234567890123456"))
	require.NoError(t, f.ctrl.Input(ctx, models.FieldExpiry, "0726"))
	require.NoError(t, f.ctrl.Input(ctx, models.FieldCVV, "123"))
}

func TestNew_DefaultState(t *testing.T) {
	f := newFixture(t, nil)
	snap := f.snapshot()

	require.Equal(t, models.StateIdle, snap.State)
	require.Equal(t, models.Preview{
		Cardholder: format.PlaceholderCardholder,
		CardNumber: format.PlaceholderCardNumber,
		Expiry:     format.PlaceholderExpiry,
	}, snap.Preview)
	require.Equal(t, models.ButtonView{Label: "Confirm Payment"}, snap.Button)
	for _, field := range models.Fields {
		require.Equal(t, models.FieldView{Scale: 1}, snap.Fields[field], "field %s", field)
	}
}

func TestNew_MissingElements(t *testing.T) {
	_, err := New(Elements{}, Options{Submitter: newGatedSubmitter(nil)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing element cardholder")

	_, err = New(NewMemoryForm().Elements(), Options{})
	require.Error(t, err)
}

func TestNew_TypedNilElement(t *testing.T) {
	el := NewMemoryForm().Elements()
	var cvv *MemoryInput
	el.CVV = cvv
	var notifier *MemoryNotifier
	el.Notifier = notifier

	_, err := New(el, Options{Submitter: newGatedSubmitter(nil)})
	require.ErrorContains(t, err, "missing element cvv")
	require.ErrorContains(t, err, "missing element notifier")
}

func TestInput_FormatsAndMirrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Input(ctx, models.FieldCardNumber, "1234-5678 9012"))
	require.NoError(t, f.ctrl.Input(ctx, models.FieldExpiry, "1/2/2/6"))
	require.NoError(t, f.ctrl.Input(ctx, models.FieldCVV, "1x2"))
	require.NoError(t, f.ctrl.Input(ctx, models.FieldCardholder, "<i>Kate</i>"))

	snap := f.snapshot()
	require.Equal(t, "1234 5678 9012", snap.Fields[models.FieldCardNumber].Value)
	require.Equal(t, "12/26", snap.Fields[models.FieldExpiry].Value)
	require.Equal(t, "12", snap.Fields[models.FieldCVV].Value)
	require.Equal(t, models.Preview{
		Cardholder: "Kate",
		CardNumber: "1234 5678 9012",
		Expiry:     "12/26",
	}, snap.Preview)
}

func TestInput_ReactiveValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Input(ctx, models.FieldCVV, "12"))
	cvv := f.snapshot().Fields[models.FieldCVV]
	require.Equal(t, "✗ Invalid CVV (3 digits required)", cvv.Message)
	require.Equal(t, models.StatusInvalid, cvv.Status)
	require.True(t, cvv.Error)

	require.NoError(t, f.ctrl.Input(ctx, models.FieldCVV, "123"))
	cvv = f.snapshot().Fields[models.FieldCVV]
	require.Equal(t, "✓ Valid", cvv.Message)
	require.Equal(t, models.StatusValid, cvv.Status)
	require.False(t, cvv.Error)

	// clearing the field removes the status and falls back to the placeholder
	require.NoError(t, f.ctrl.Input(ctx, models.FieldCVV, "abc"))
	require.Equal(t, models.FieldView{Scale: 1}, f.snapshot().Fields[models.FieldCVV])

	require.NoError(t, f.ctrl.Input(ctx, models.FieldCardNumber, ""))
	snap := f.snapshot()
	require.Equal(t, format.PlaceholderCardNumber, snap.Preview.CardNumber)
	require.Empty(t, snap.Fields[models.FieldCardNumber].Message)
}

func TestInput_UnknownField(t *testing.T) {
	f := newFixture(t, nil)
	err := f.ctrl.Input(context.Background(), models.Field("pin"), "1")
	require.True(t, IsUnknownField(err))
	require.True(t, IsUnknownField(f.ctrl.Focus(models.Field("pin"))))
}

func TestInputSeq_DropsStaleChanges(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	applied, err := f.ctrl.InputSeq(ctx, models.FieldCardNumber, "12", 2)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = f.ctrl.InputSeq(ctx, models.FieldCardNumber, "1", 1)
	require.NoError(t, err)
	require.False(t, applied)

	applied, err = f.ctrl.InputSeq(ctx, models.FieldCardNumber, "99", 2)
	require.NoError(t, err)
	require.False(t, applied)

	snap := f.snapshot()
	require.Equal(t, "12", snap.Fields[models.FieldCardNumber].Value)
	require.Equal(t, "12", snap.Preview.CardNumber)

	// unnumbered changes always apply
	require.NoError(t, f.ctrl.Input(ctx, models.FieldCardNumber, "7"))
	require.Equal(t, "7", f.snapshot().Fields[models.FieldCardNumber].Value)

	applied, err = f.ctrl.InputSeq(ctx, models.FieldCVV, "1", 1)
	require.NoError(t, err)
	require.True(t, applied)

	_, err = f.ctrl.InputSeq(ctx, models.Field("pin"), "1", 5)
	require.True(t, IsUnknownField(err))
}

func TestReset(t *testing.T) {
	f := newFixture(t, nil)
	f.fillValid(t)

	require.NoError(t, f.ctrl.Reset())
	snap := f.snapshot()
	require.Equal(t, format.PlaceholderCardholder, snap.Preview.Cardholder)
	for _, field := range models.Fields {
		require.Equal(t, models.FieldView{Scale: 1}, snap.Fields[field], "field %s", field)
	}

	f.fillValid(t)
	sub, err := f.ctrl.Submit(context.Background())
	require.NoError(t, err)
	<-f.sub.got
	require.ErrorIs(t, f.ctrl.Reset(), ErrSubmitInProgress)
	require.Equal(t, "1234 5678 9012 3456", f.snapshot().Fields[models.FieldCardNumber].Value)

	close(f.sub.release)
	<-sub.Done
	f.ctrl.Close()
	require.ErrorIs(t, f.ctrl.Reset(), ErrClosed)
}

func TestSubmit_LogsWithoutCardData(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logging.GetLogger()
	logging.SetLogger(zap.New(core))
	t.Cleanup(func() { logging.SetLogger(prev) })

	f := newFixture(t, nil)
	f.fillValid(t)
	close(f.sub.release)

	sub, err := f.ctrl.Submit(context.Background())
	require.NoError(t, err)
	<-f.sub.got
	<-sub.Done

	require.Equal(t, 1, logs.FilterMessage("Submission accepted").Len())
	require.Equal(t, 1, logs.FilterMessage("Payment task completed").Len())
	for _, entry := range logs.All() {
		for _, v := range entry.ContextMap() {
			s, _ := v.(string)
			require.NotContains(t, s, "1234567890123456", "entry %q", entry.Message)
			require.NotContains(t, s, "Kate Smith", "entry %q", entry.Message)
		}
	}
}

func TestFocusBlur(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.ctrl.Focus(models.FieldExpiry))
	require.Equal(t, 1.02, f.snapshot().Fields[models.FieldExpiry].Scale)
	require.Equal(t, 1.0, f.snapshot().Fields[models.FieldCVV].Scale)

	require.NoError(t, f.ctrl.Blur(models.FieldExpiry))
	require.Equal(t, 1.0, f.snapshot().Fields[models.FieldExpiry].Scale)
}

func TestSubmit_Invalid(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.ctrl.Input(ctx, models.FieldCardholder, "Kate Smith"))
	require.NoError(t, f.ctrl.Input(ctx, models.FieldCardNumber, "123"))
	require.NoError(t, f.ctrl.Input(ctx, models.FieldExpiry, "0524"))
	require.NoError(t, f.ctrl.Input(ctx, models.FieldCVV, "123"))

	sub, err := f.ctrl.Submit(ctx)
	require.NoError(t, err)
	require.False(t, sub.Accepted)
	require.Nil(t, sub.Done)

	want := map[models.Field]validation.Result{
		models.FieldCardNumber: {Reason: validation.ReasonDigitCount},
		models.FieldExpiry:     {Reason: validation.ReasonExpired},
	}
	if diff := cmp.Diff(want, sub.Failed); diff != "" {
		t.Fatalf("failed fields mismatch (-want +got):\n%s", diff)
	}

	snap := f.snapshot()
	require.Equal(t, models.StateIdle, snap.State)
	require.False(t, snap.Button.Disabled)
	require.True(t, snap.Fields[models.FieldCardNumber].Error)
	require.True(t, snap.Fields[models.FieldExpiry].Error)
	require.Equal(t, "✗ Card expired", snap.Fields[models.FieldExpiry].Message)
	require.False(t, snap.Fields[models.FieldCardholder].Error)
	require.False(t, snap.Fields[models.FieldCVV].Error)
	require.Len(t, f.sub.got, 0)
}

func TestSubmit_EmptyFormRejected(t *testing.T) {
	f := newFixture(t, nil)
	sub, err := f.ctrl.Submit(context.Background())
	require.NoError(t, err)
	require.False(t, sub.Accepted)
	require.Len(t, sub.Failed, 4)
}

func TestSubmit_SuccessLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.fillValid(t)
	require.NoError(t, f.ctrl.Focus(models.FieldCVV))

	sub, err := f.ctrl.Submit(context.Background())
	require.NoError(t, err)
	require.True(t, sub.Accepted)

	// submitting: button disabled immediately
	snap := f.snapshot()
	require.Equal(t, models.StateSubmitting, snap.State)
	require.Equal(t, models.ButtonView{Label: "Processing...", Disabled: true}, snap.Button)

	req := <-f.sub.got
	require.Equal(t, models.PaymentRequest{
		Cardholder: "Kate Smith",
		CardNumber: "1234567890123456",
		Expiry:     "07/26",
		CVV:        "123",
	}, req)

	_, err = f.ctrl.Submit(context.Background())
	require.ErrorIs(t, err, ErrSubmitInProgress)

	close(f.sub.release)
	<-sub.Done

	resp, err := sub.Response()
	require.NoError(t, err)
	require.Equal(t, "tx-1", resp.TransactionID)

	snap = f.snapshot()
	require.Equal(t, models.StateIdle, snap.State)
	require.Equal(t, models.ButtonView{Label: "Confirm Payment"}, snap.Button)
	require.Equal(t, &models.Notification{
		Kind:    models.NotificationSuccess,
		Message: "✓ Payment processed successfully!",
	}, snap.Notification)
	require.Equal(t, models.Preview{
		Cardholder: format.PlaceholderCardholder,
		CardNumber: format.PlaceholderCardNumber,
		Expiry:     format.PlaceholderExpiry,
	}, snap.Preview)
	for _, field := range models.Fields {
		view := snap.Fields[field]
		require.Empty(t, view.Value, "field %s", field)
		require.Empty(t, view.Message, "field %s", field)
		require.False(t, view.Error, "field %s", field)
	}
	require.Equal(t, 1.02, snap.Fields[models.FieldCVV].Scale)

	require.Equal(t, []time.Duration{DefaultDismissAfter}, f.sched.delays)
	f.sched.fireAll()
	require.Nil(t, f.snapshot().Notification)
}

func TestSubmit_FailureKeepsValues(t *testing.T) {
	f := newFixture(t, errors.New("gateway down"))
	f.fillValid(t)

	sub, err := f.ctrl.Submit(context.Background())
	require.NoError(t, err)
	<-f.sub.got
	close(f.sub.release)
	<-sub.Done

	_, err = sub.Response()
	require.EqualError(t, err, "gateway down")

	snap := f.snapshot()
	require.Equal(t, models.StateIdle, snap.State)
	require.False(t, snap.Button.Disabled)
	require.Equal(t, models.NotificationFailure, snap.Notification.Kind)
	require.Equal(t, "1234 5678 9012 3456", snap.Fields[models.FieldCardNumber].Value)
}

func TestSubmit_StaleDismissIgnored(t *testing.T) {
	f := newFixture(t, nil)
	close(f.sub.release)

	f.fillValid(t)
	sub, err := f.ctrl.Submit(context.Background())
	require.NoError(t, err)
	<-f.sub.got
	<-sub.Done

	f.fillValid(t)
	sub, err = f.ctrl.Submit(context.Background())
	require.NoError(t, err)
	<-f.sub.got
	<-sub.Done

	// the first timer was stopped, the second dismisses
	require.Len(t, f.sched.pending, 2)
	require.True(t, f.sched.pending[0].stopped)
	f.sched.fireAll()
	require.Nil(t, f.snapshot().Notification)
}

func TestSubmit_OutlivesRequestContext(t *testing.T) {
	f := newFixture(t, nil)
	f.fillValid(t)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := f.ctrl.Submit(ctx)
	require.NoError(t, err)
	cancel()

	<-f.sub.got
	close(f.sub.release)
	<-sub.Done

	_, err = sub.Response()
	require.NoError(t, err)
}

func TestClose_CancelsTask(t *testing.T) {
	f := newFixture(t, nil)
	f.fillValid(t)

	sub, err := f.ctrl.Submit(context.Background())
	require.NoError(t, err)
	<-f.sub.got

	f.ctrl.Close()
	<-sub.Done

	_, err = sub.Response()
	require.ErrorIs(t, err, context.Canceled)

	_, err = f.ctrl.Submit(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestFormatAndValidate(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, "1234 5", f.ctrl.Format(models.FieldCardNumber, "12345"))
	require.Equal(t, "Kate", f.ctrl.Format(models.FieldCardholder, "Kate"))
	require.Equal(t, validation.OK, f.ctrl.Validate(models.FieldExpiry, "06/24"))
	require.False(t, f.ctrl.Validate(models.FieldExpiry, "05/24").Valid)
}
