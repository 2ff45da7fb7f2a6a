package billing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

// upgradeInPlace swaps the price on the user's current subscription.
// It reports true when the swap succeeded and no checkout is needed.
// When the swap fails it cancels the old subscription, having first
// recorded an upgrade-in-flight intent so the deletion webhook is not
// mistaken for a cancellation, and reports false so the caller falls
// through to a fresh checkout.
func (s *Service) upgradeInPlace(ctx context.Context, user *users.User, spec plans.Spec) (bool, error) {
	oldSub := user.SubscriptionRef()
	log := s.log.With(zap.Uint("user_id", user.ID), zap.String("subscription_id", oldSub))
	now := s.clock.Now()

	err := s.swapPrice(ctx, user, spec, oldSub)
	if err == nil {
		hint := &billing.PendingBillingIntent{
			UserID:        user.ID,
			Kind:          billing.IntentCheckout,
			TargetPlan:    spec.Plan,
			TargetCredits: spec.Credits,
			CreatedAt:     now,
			ExpiresAt:     s.expiry(now),
		}
		if err := saveIntent(s.db.WithContext(ctx), hint); err != nil {
			return false, err
		}
		log.Info("upgraded subscription in place")
		return true, nil
	}
	log.Warn("in-place upgrade failed, replacing subscription", zap.Error(err))

	intent := &billing.PendingBillingIntent{
		UserID:                 user.ID,
		Kind:                   billing.IntentUpgradeInFlight,
		TargetPlan:             spec.Plan,
		TargetCredits:          spec.Credits,
		ReplacedSubscriptionID: strPtr(oldSub),
		CreatedAt:              now,
		ExpiresAt:              s.expiry(now),
	}
	if err := saveIntent(s.db.WithContext(ctx), intent); err != nil {
		return false, err
	}

	if err := s.processor.CancelSubscription(ctx, oldSub); err != nil {
		if cerr := clearIntent(s.db.WithContext(ctx), user.ID); cerr != nil {
			log.Error("clear upgrade intent after failed cancel", zap.Error(cerr))
		}
		log.Error("cancel old subscription failed", zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	return false, nil
}

func (s *Service) swapPrice(ctx context.Context, user *users.User, spec plans.Spec, subID string) error {
	sub, err := s.processor.RetrieveSubscription(ctx, subID)
	if err != nil {
		return err
	}
	if sub.ItemID == "" {
		return fmt.Errorf("subscription %s has no billable item", subID)
	}
	priceID, err := s.priceFor(ctx, spec)
	if err != nil {
		return err
	}
	_, err = s.processor.UpdateSubscriptionItem(ctx, sub.ID, sub.ItemID, priceID, planMetadata(user.ID, spec))
	return err
}
