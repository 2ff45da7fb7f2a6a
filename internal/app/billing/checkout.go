package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

const checkoutLockTTL = 30 * time.Second

type CheckoutResult struct {
	Plan            plans.PlanType `json:"plan"`
	Credits         int64          `json:"credits"`
	URL             string         `json:"url,omitempty"`
	SessionID       string         `json:"session_id,omitempty"`
	UpgradedInPlace bool           `json:"upgraded_in_place"`
}

// Checkout prepares a purchase of requested. It never grants credits or
// changes the plan; the webhook does that once payment is confirmed.
func (s *Service) Checkout(ctx context.Context, id Identity, requested string) (*CheckoutResult, error) {
	plan, ok := plans.ParsePlan(requested)
	if !ok || !plan.Paid() {
		s.metrics.Checkout("invalid", "rejected")
		return nil, plans.ErrUnsupportedPlan
	}
	spec, ok := s.catalog.Lookup(plan)
	if !ok {
		return nil, plans.ErrUnsupportedPlan
	}

	user, err := s.ResolveUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		key := "checkout:user:" + strconv.FormatUint(uint64(user.ID), 10)
		token, acquired, err := s.locker.TryLock(ctx, key, checkoutLockTTL)
		if err != nil {
			s.log.Warn("checkout lock unavailable", zap.Error(err))
		} else if !acquired {
			return nil, ErrCheckoutInProgress
		} else {
			defer func() { _ = s.locker.Release(context.WithoutCancel(ctx), key, token) }()
		}
	}

	res, err := s.checkout(ctx, user, spec)
	s.metrics.Checkout(plan.Label(), checkoutOutcome(res, err))
	return res, err
}

func (s *Service) checkout(ctx context.Context, user *users.User, spec plans.Spec) (*CheckoutResult, error) {
	log := s.log.With(zap.Uint("user_id", user.ID), zap.String("plan", string(spec.Plan)))

	if err := plans.CheckCheckout(user.PlanType, user.Credits, spec.Plan); err != nil {
		log.Info("checkout rejected", zap.Error(err), zap.String("current_plan", string(user.PlanType)))
		return nil, err
	}

	if plans.IsUpgrade(user.PlanType, spec.Plan) && user.SubscriptionRef() != "" {
		done, err := s.upgradeInPlace(ctx, user, spec)
		if err != nil {
			return nil, err
		}
		if done {
			return &CheckoutResult{Plan: spec.Plan, Credits: spec.Credits, UpgradedInPlace: true}, nil
		}
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}
	priceID, err := s.priceFor(ctx, spec)
	if err != nil {
		return nil, err
	}

	session, err := s.processor.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		CustomerID:        customerID,
		PriceID:           priceID,
		SuccessURL:        s.cfg.SuccessURL,
		CancelURL:         s.cfg.CancelURL,
		ClientReferenceID: strconv.FormatUint(uint64(user.ID), 10),
		Metadata:          planMetadata(user.ID, spec),
	})
	if err != nil {
		log.Error("create checkout session failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}

	if err := s.recordCheckoutHint(ctx, user.ID, spec, session.ID); err != nil {
		return nil, err
	}

	log.Info("checkout session created", zap.String("session_id", session.ID))
	return &CheckoutResult{
		Plan:      spec.Plan,
		Credits:   spec.Credits,
		URL:       session.URL,
		SessionID: session.ID,
	}, nil
}

// recordCheckoutHint stores the plan and credits the webhook should apply.
// An upgrade already in flight keeps its kind and replaced subscription.
func (s *Service) recordCheckoutHint(ctx context.Context, userID uint, spec plans.Spec, sessionID string) error {
	db := s.db.WithContext(ctx)
	now := s.clock.Now()

	existing, err := loadIntent(db, userID)
	if err != nil {
		return err
	}
	intent := &billing.PendingBillingIntent{
		UserID:            userID,
		Kind:              billing.IntentCheckout,
		TargetPlan:        spec.Plan,
		TargetCredits:     spec.Credits,
		CheckoutSessionID: strPtr(sessionID),
		CreatedAt:         now,
		ExpiresAt:         s.expiry(now),
	}
	if existing != nil && existing.Kind == billing.IntentUpgradeInFlight {
		intent.Kind = billing.IntentUpgradeInFlight
		intent.ReplacedSubscriptionID = existing.ReplacedSubscriptionID
	}
	return saveIntent(db, intent)
}

// ensureCustomer returns a live processor customer for user, creating one
// when none is recorded or the recorded one was deleted out of band.
func (s *Service) ensureCustomer(ctx context.Context, user *users.User) (string, error) {
	if ref := user.CustomerRef(); ref != "" {
		cus, err := s.processor.RetrieveCustomer(ctx, ref)
		switch {
		case err == nil && !cus.Deleted:
			return ref, nil
		case err == nil || errors.Is(err, billing.ErrNotFound):
			s.log.Warn("recorded customer is gone, creating a new one",
				zap.Uint("user_id", user.ID), zap.String("customer_id", ref))
		default:
			return "", fmt.Errorf("%w: %v", ErrProcessor, err)
		}
	}

	cus, err := s.processor.CreateCustomer(ctx, user.Email, user.Name, map[string]string{
		"user_id": strconv.FormatUint(uint64(user.ID), 10),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	if err := s.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ?", user.ID).
		Update("stripe_customer_id", cus.ID).Error; err != nil {
		return "", fmt.Errorf("store customer: %w", err)
	}
	user.StripeCustomerID = &cus.ID
	return cus.ID, nil
}

func checkoutOutcome(res *CheckoutResult, err error) string {
	switch {
	case err == nil && res != nil && res.UpgradedInPlace:
		return "upgraded_in_place"
	case err == nil:
		return "session_created"
	case plans.IsRejection(err):
		return "rejected"
	default:
		return "failed"
	}
}
