package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
)

// AccountSummary is the billing read model served to the dashboard.
type AccountSummary struct {
	billing.Summary
	SubscriptionStartDate *time.Time `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time `json:"subscription_end_date,omitempty"`
	ScrapingFrozen        bool       `json:"scraping_frozen"`
	DowngradeScheduled    bool       `json:"downgrade_scheduled"`
	PendingPlan           string     `json:"pending_plan,omitempty"`
}

func (s *Service) Summary(ctx context.Context, userID uint) (*AccountSummary, error) {
	user, err := s.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	intent, err := s.Intent(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	out := &AccountSummary{
		Summary:               billing.ComputeSummary(user.PlanType, user.Credits, user.SubscriptionEndDate, now),
		SubscriptionStartDate: user.SubscriptionStartDate,
		SubscriptionEndDate:   user.SubscriptionEndDate,
		ScrapingFrozen:        user.ScrapingFrozen,
		DowngradeScheduled:    billing.StateOf(intent) == billing.StateDowngradeScheduled,
	}
	if intent.HasHint(now) || out.DowngradeScheduled {
		out.PendingPlan = intent.TargetPlan.Label()
	}
	return out, nil
}

// Portal opens a self-service billing portal session for the user's
// customer.
func (s *Service) Portal(ctx context.Context, userID uint) (string, error) {
	user, err := s.LoadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.CustomerRef() == "" {
		return "", ErrNoSubscription
	}
	url, err := s.processor.CreatePortalSession(ctx, user.CustomerRef(), s.cfg.PortalReturnURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	return url, nil
}

// SessionStatus reports what the return page needs to know about a
// checkout session. It never changes plan or credits.
type SessionStatus struct {
	SessionID     string `json:"session_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Paid          bool   `json:"paid"`
	Applied       bool   `json:"applied"`
}

func (s *Service) VerifySession(ctx context.Context, userID uint, sessionID string) (*SessionStatus, error) {
	user, err := s.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess, err := s.processor.RetrieveCheckoutSession(ctx, sessionID)
	if errors.Is(err, billing.ErrNotFound) {
		return nil, ErrSessionMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}

	owner := sess.CustomerID == user.CustomerRef() && sess.CustomerID != ""
	if !owner && userIDFromMetadata(sess.Metadata) != user.ID {
		s.log.Warn("session verification for foreign session",
			zap.Uint("user_id", userID), zap.String("session_id", sessionID))
		return nil, ErrSessionMismatch
	}

	intent, err := s.Intent(ctx, userID)
	if err != nil {
		return nil, err
	}
	pending := intent != nil && intent.CheckoutSessionID != nil && *intent.CheckoutSessionID == sessionID &&
		intent.HintConsumedAt == nil
	return &SessionStatus{
		SessionID:     sess.ID,
		Status:        sess.Status,
		PaymentStatus: sess.PaymentStatus,
		Paid:          sess.Paid(),
		Applied:       sess.Paid() && !pending,
	}, nil
}
