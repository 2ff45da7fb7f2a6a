package billing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/logger"
)

// Outcome is what the webhook endpoint reports back to the processor.
type Outcome struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Duplicate bool   `json:"idempotent,omitempty"`
	Handled   bool   `json:"handled"`
}

// transition applies one event variant. Errors are logged by the caller
// and never turned into a non-2xx response.
type transition func(ctx context.Context, ev billing.Event) error

// transitions is the event table. Anything not listed is acknowledged
// without side effects.
func (s *Service) transitions() map[string]transition {
	return map[string]transition{
		billing.EventInvoicePaid:             s.onInvoicePaid,
		billing.EventInvoicePaymentSucceeded: s.onInvoicePaid,
		billing.EventCheckoutCompleted:       s.onCheckoutCompleted,
		billing.EventSubscriptionCreated:     s.onSubscriptionCreated,
		billing.EventSubscriptionUpdated:     s.onSubscriptionUpdated,
		billing.EventSubscriptionDeleted:     s.onSubscriptionDeleted,
	}
}

// HandleWebhook verifies, deduplicates and applies one delivery.
// Only signature failures and a broken idempotency store are returned as
// errors. A signed event that cannot be decoded is logged and
// acknowledged, as is everything after admission.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	ev, err := s.processor.ParseWebhook(payload, signature)
	var malformed *billing.MalformedEventError
	switch {
	case err == nil:
		return s.Apply(ctx, ev)
	case errors.As(err, &malformed):
		s.metrics.WebhookEvent(malformed.Type, "malformed")
		logger.WithContext(ctx, s.log.Named("webhook")).Error("signed event could not be decoded",
			zap.String("event_id", malformed.ID),
			zap.String("event_type", malformed.Type),
			zap.Error(malformed.Err),
		)
		return Outcome{EventID: malformed.ID, Type: malformed.Type}, nil
	case errors.Is(err, billing.ErrInvalidSignature):
		s.metrics.WebhookEvent("unknown", "rejected")
		return Outcome{}, err
	default:
		s.metrics.WebhookEvent("unknown", "error")
		return Outcome{}, fmt.Errorf("parse webhook: %w", err)
	}
}

// Apply runs an already verified event through the guard and the table.
func (s *Service) Apply(ctx context.Context, ev billing.Event) (Outcome, error) {
	meta := ev.Meta()
	out := Outcome{EventID: meta.ID, Type: meta.Type}
	log := logger.WithContext(ctx, s.log.Named("webhook")).With(
		zap.String("event_id", meta.ID),
		zap.String("event_type", meta.Type),
	)

	adm, err := s.guard.Admit(ctx, meta.ID, meta.Type, billing.Snapshot(ev))
	if err != nil {
		s.metrics.WebhookEvent(meta.Type, "error")
		log.Error("idempotency guard failed", zap.Error(err))
		return out, err
	}
	if adm == Duplicate {
		s.metrics.WebhookEvent(meta.Type, "duplicate")
		log.Info("duplicate event skipped")
		out.Duplicate = true
		return out, nil
	}

	apply, ok := s.transitions()[meta.Type]
	if !ok {
		s.metrics.WebhookEvent(meta.Type, "ignored")
		log.Debug("event type not handled")
		return out, nil
	}

	if err := apply(ctx, ev); err != nil {
		s.metrics.WebhookEvent(meta.Type, "failed")
		log.Error("event processing failed", zap.Error(err))
		return out, nil
	}
	s.metrics.WebhookEvent(meta.Type, "processed")
	out.Handled = true
	return out, nil
}
