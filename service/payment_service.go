package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"cardform-service/logging"
	"cardform-service/models"
	"cardform-service/monitoring"
)

// DefaultSubmitDelay simulates payment provider latency.
const DefaultSubmitDelay = 2 * time.Second

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PaymentService simulates payment processing behind the form
type PaymentService struct {
	tracer trace.Tracer
	delay  time.Duration
	sleep  SleepFunc
	now    func() time.Time
}

// NewPaymentService creates a new payment service. A nil tracer uses the
// global provider and a nil sleep uses Sleep.
func NewPaymentService(tracer trace.Tracer, delay time.Duration, sleep SleepFunc) *PaymentService {
	if tracer == nil {
		tracer = otel.Tracer("cardform-service")
	}
	if sleep == nil {
		sleep = Sleep
	}
	if delay < 0 {
		delay = 0
	}
	return &PaymentService{
		tracer: tracer,
		delay:  delay,
		sleep:  sleep,
		now:    time.Now,
	}
}

// Submit processes a payment request. It always succeeds once the simulated
// delay elapses; it fails only if ctx ends first.
func (s *PaymentService) Submit(ctx context.Context, req models.PaymentRequest) (*models.PaymentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "process_payment")
	defer span.End()

	// card data stays out of spans and logs
	span.SetAttributes(
		attribute.Int64("payment.simulated_delay_ms", s.delay.Milliseconds()),
	)

	logger := logging.WithTraceContext(span)
	logger.Info("Processing payment", zap.Duration("delay", s.delay))

	start := s.now()
	err := s.sleep(ctx, s.delay)
	duration := s.now().Sub(start).Seconds()

	if err != nil {
		logger.Warn("Payment processing interrupted", zap.Error(err))
		monitoring.SubmissionDuration.Record(ctx, duration,
			metric.WithAttributes(attribute.String("status", "failed")),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment interrupted")
		span.SetAttributes(attribute.String("payment.status", "failed"))
		return nil, err
	}

	transactionID := uuid.NewString()

	monitoring.SubmissionDuration.Record(ctx, duration,
		metric.WithAttributes(attribute.String("status", "success")),
	)
	span.SetAttributes(
		attribute.String("payment.transaction_id", transactionID),
		attribute.String("payment.status", "success"),
	)

	return &models.PaymentResponse{
		TransactionID: transactionID,
		Status:        "success",
		ProcessedAt:   s.now().UTC().Format(time.RFC3339),
	}, nil
}
