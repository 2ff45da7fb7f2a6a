package billing

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

type DowngradeResult struct {
	TargetPlan  plans.PlanType `json:"target_plan"`
	EffectiveAt *time.Time     `json:"effective_at"`
}

// ScheduleDowngrade asks the processor to end the PRO subscription at the
// period boundary. Plan and credits stay untouched until then.
func (s *Service) ScheduleDowngrade(ctx context.Context, userID uint) (*DowngradeResult, error) {
	user, err := s.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	subID := user.SubscriptionRef()
	if user.PlanType != plans.Pro || subID == "" {
		return nil, ErrDowngradeIneligible
	}
	basic, _ := s.catalog.Lookup(plans.Basic)

	sub, err := s.processor.SetCancelAtPeriodEnd(ctx, subID, true, map[string]string{
		"downgrade_to": plans.Basic.Label(),
	})
	if err != nil {
		s.log.Error("schedule downgrade failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}

	intent := &billing.PendingBillingIntent{
		UserID:        userID,
		Kind:          billing.IntentDowngradeScheduled,
		TargetPlan:    plans.Basic,
		TargetCredits: basic.Credits,
		CreatedAt:     s.clock.Now(),
	}
	if err := saveIntent(s.db.WithContext(ctx), intent); err != nil {
		return nil, err
	}

	effective := user.SubscriptionEndDate
	if sub != nil && sub.PeriodEnd != nil {
		effective = sub.PeriodEnd
	}
	s.log.Info("downgrade scheduled", zap.Uint("user_id", userID), zap.String("subscription_id", subID))
	return &DowngradeResult{TargetPlan: plans.Basic, EffectiveAt: effective}, nil
}

// CancelScheduledDowngrade keeps the PRO subscription renewing.
func (s *Service) CancelScheduledDowngrade(ctx context.Context, userID uint) error {
	user, err := s.LoadUser(ctx, userID)
	if err != nil {
		return err
	}
	intent, err := s.Intent(ctx, userID)
	if err != nil {
		return err
	}
	if billing.StateOf(intent) != billing.StateDowngradeScheduled || user.SubscriptionRef() == "" {
		return ErrNoScheduledDowngrade
	}

	if _, err := s.processor.SetCancelAtPeriodEnd(ctx, user.SubscriptionRef(), false, map[string]string{
		"downgrade_to": "",
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	return clearIntent(s.db.WithContext(ctx), userID)
}

// CancelSubscription ends billing immediately. The processor is called
// first; local state only changes once it has accepted the cancel.
func (s *Service) CancelSubscription(ctx context.Context, userID uint, reason string) error {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < 4 {
		return ErrInvalidReason
	}
	user, err := s.LoadUser(ctx, userID)
	if err != nil {
		return err
	}
	subID := user.SubscriptionRef()
	if user.PlanType == plans.Free || subID == "" {
		return ErrNoSubscription
	}

	if err := s.processor.CancelSubscription(ctx, subID); err != nil {
		s.log.Error("cancel subscription failed", zap.Uint("user_id", userID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrProcessor, err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&billing.SubscriptionCancellation{
			UserID:   userID,
			PlanType: string(user.PlanType),
			Reason:   reason,
		}).Error; err != nil {
			return err
		}
		forfeited, err := s.ledger.ForfeitTx(tx, userID, map[string]any{
			"subscriptionId": subID,
			"planType":       string(user.PlanType),
		})
		if err != nil {
			return err
		}
		if err := tx.Model(&users.User{}).Where("id = ?", userID).Updates(map[string]any{
			"plan_type":               plans.Free,
			"scraping_frozen":         true,
			"stripe_subscription_id":  nil,
			"subscription_start_date": nil,
			"subscription_end_date":   nil,
		}).Error; err != nil {
			return err
		}
		if err := clearIntent(tx, userID); err != nil {
			return err
		}
		s.log.Info("subscription cancelled",
			zap.Uint("user_id", userID),
			zap.String("subscription_id", subID),
			zap.Int64("forfeited_credits", forfeited),
		)
		return nil
	})
}
