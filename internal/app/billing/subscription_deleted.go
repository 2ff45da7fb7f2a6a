package billing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

type deletionHandler func(ctx context.Context, user *users.User, intent *billing.PendingBillingIntent, sub billing.Subscription) error

// deletionTable maps each verdict to its effect.
func (s *Service) deletionTable() map[billing.DeletionVerdict]deletionHandler {
	return map[billing.DeletionVerdict]deletionHandler{
		billing.VerdictUpgradeNoise:       s.absorbUpgradeNoise,
		billing.VerdictStale:              s.ignoreStaleDeletion,
		billing.VerdictScheduledDowngrade: s.resubscribeBasic,
		billing.VerdictCancellation:       s.hardDowngrade,
	}
}

func (s *Service) onSubscriptionDeleted(ctx context.Context, ev billing.Event) error {
	e, ok := ev.(billing.SubscriptionDeleted)
	if !ok {
		return unexpected(ev)
	}
	sub := e.Subscription
	user, err := s.userForCustomer(ctx, sub.CustomerID, sub.Metadata)
	if errors.Is(err, ErrUserNotFound) {
		user, err = s.userForSubscription(ctx, sub.ID)
	}
	if err != nil {
		return fmt.Errorf("resolve deleted subscription owner: %w", err)
	}
	intent, err := loadIntent(s.db.WithContext(ctx), user.ID)
	if err != nil {
		return err
	}

	verdict := billing.ClassifyDeletion(*user, intent, sub.ID, s.clock.Now(), s.catalog.RecentCheckoutWindow)
	s.metrics.Deletion(string(verdict))
	s.log.Info("subscription deleted",
		zap.String("event_id", e.ID),
		zap.Uint("user_id", user.ID),
		zap.String("subscription_id", sub.ID),
		zap.String("state", string(billing.StateOf(intent))),
		zap.String("verdict", string(verdict)),
	)
	return s.deletionTable()[verdict](ctx, user, intent, sub)
}

func (s *Service) userForSubscription(ctx context.Context, subID string) (*users.User, error) {
	var u users.User
	err := s.db.WithContext(ctx).Where("stripe_subscription_id = ?", subID).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// absorbUpgradeNoise forgets the replaced subscription and leaves plan and
// credits alone.
func (s *Service) absorbUpgradeNoise(ctx context.Context, user *users.User, intent *billing.PendingBillingIntent, sub billing.Subscription) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if user.SubscriptionRef() == sub.ID {
			if err := tx.Model(&users.User{}).Where("id = ?", user.ID).
				Update("stripe_subscription_id", nil).Error; err != nil {
				return err
			}
		}
		if !intent.Replaces(sub.ID) {
			return nil
		}
		if intent.HintConsumedAt != nil {
			return clearIntent(tx, user.ID)
		}
		// Payment still pending: keep the hint, drop the upgrade guard.
		return tx.Model(&billing.PendingBillingIntent{}).Where("id = ?", intent.ID).Updates(map[string]any{
			"kind":                     billing.IntentCheckout,
			"replaced_subscription_id": nil,
		}).Error
	})
}

func (s *Service) ignoreStaleDeletion(context.Context, *users.User, *billing.PendingBillingIntent, billing.Subscription) error {
	return nil
}

// resubscribeBasic starts the BASIC subscription a scheduled downgrade
// asked for. The user stays unfrozen; the plan flips when its first
// invoice is paid.
func (s *Service) resubscribeBasic(ctx context.Context, user *users.User, intent *billing.PendingBillingIntent, sub billing.Subscription) error {
	spec, _ := s.catalog.Lookup(plans.Basic)
	customerID := user.CustomerRef()
	if customerID == "" {
		customerID = sub.CustomerID
	}

	priceID, err := s.priceFor(ctx, spec)
	if err != nil {
		return fmt.Errorf("basic price for scheduled downgrade: %w", err)
	}
	created, err := s.processor.CreateSubscription(ctx, customerID, priceID, planMetadata(user.ID, spec))
	if err != nil {
		// Plan is left as is; an operator has to retry the resubscribe.
		return fmt.Errorf("%w: create basic subscription: %v", ErrProcessor, err)
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"stripe_subscription_id": created.ID,
			"scraping_frozen":        false,
		}
		addWindow(updates, created.PeriodStart, created.PeriodEnd)
		if err := tx.Model(&users.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return err
		}
		return saveIntent(tx, &billing.PendingBillingIntent{
			UserID:        user.ID,
			Kind:          billing.IntentCheckout,
			TargetPlan:    plans.Basic,
			TargetCredits: spec.Credits,
			CreatedAt:     now,
			ExpiresAt:     s.expiry(now),
		})
	})
}

// hardDowngrade is a genuine cancellation: FREE, frozen, no window.
// Credits are kept; only an explicit cancel forfeits them.
func (s *Service) hardDowngrade(ctx context.Context, user *users.User, _ *billing.PendingBillingIntent, _ billing.Subscription) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&users.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"plan_type":               plans.Free,
			"scraping_frozen":         true,
			"stripe_subscription_id":  nil,
			"subscription_start_date": nil,
			"subscription_end_date":   nil,
		}).Error; err != nil {
			return err
		}
		return clearIntent(tx, user.ID)
	})
}
