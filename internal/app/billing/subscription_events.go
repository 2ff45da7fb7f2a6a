package billing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shahzaibimran219/pdf-scrapper/internal/app/credits"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
	"github.com/shahzaibimran219/pdf-scrapper/internal/infra/stripe"
)

// onCheckoutCompleted records the new subscription. Plan and credits wait
// for the invoice.
func (s *Service) onCheckoutCompleted(ctx context.Context, ev billing.Event) error {
	e, ok := ev.(billing.CheckoutCompleted)
	if !ok {
		return unexpected(ev)
	}
	if e.Session.Mode != "subscription" {
		return nil
	}
	user, err := s.userForCustomer(ctx, e.Session.CustomerID, e.Session.Metadata)
	if err != nil {
		return fmt.Errorf("resolve checkout customer %q: %w", e.Session.CustomerID, err)
	}

	updates := map[string]any{}
	if user.CustomerRef() == "" && e.Session.CustomerID != "" {
		updates["stripe_customer_id"] = e.Session.CustomerID
	}
	if subID := e.Session.SubscriptionID; subID != "" {
		updates["stripe_subscription_id"] = subID
		sub, err := s.processor.RetrieveSubscription(ctx, subID)
		if err != nil {
			s.log.Warn("retrieve subscription for checkout failed",
				zap.String("subscription_id", subID), zap.Error(err))
		} else {
			addWindow(updates, sub.PeriodStart, sub.PeriodEnd)
		}
	}
	return s.updateUser(ctx, user.ID, updates)
}

func (s *Service) onSubscriptionCreated(ctx context.Context, ev billing.Event) error {
	e, ok := ev.(billing.SubscriptionCreated)
	if !ok {
		return unexpected(ev)
	}
	sub := e.Subscription
	user, err := s.userForCustomer(ctx, sub.CustomerID, sub.Metadata)
	if err != nil {
		return fmt.Errorf("resolve subscription customer %q: %w", sub.CustomerID, err)
	}
	updates := map[string]any{"stripe_subscription_id": sub.ID}
	addWindow(updates, sub.PeriodStart, sub.PeriodEnd)
	return s.updateUser(ctx, user.ID, updates)
}

// onSubscriptionUpdated re-derives the plan from the live subscription.
// Moving onto PRO grants the PRO allotment once per paid period.
func (s *Service) onSubscriptionUpdated(ctx context.Context, ev billing.Event) error {
	e, ok := ev.(billing.SubscriptionUpdated)
	if !ok {
		return unexpected(ev)
	}
	sub := e.Subscription
	user, err := s.userForCustomer(ctx, sub.CustomerID, sub.Metadata)
	if err != nil {
		return fmt.Errorf("resolve subscription customer %q: %w", sub.CustomerID, err)
	}
	log := s.log.With(zap.String("event_id", e.ID), zap.Uint("user_id", user.ID), zap.String("subscription_id", sub.ID))

	if ref := user.SubscriptionRef(); ref != "" && ref != sub.ID {
		log.Info("update for a replaced subscription ignored", zap.String("current_subscription_id", ref))
		return nil
	}

	updates := map[string]any{"stripe_subscription_id": sub.ID}
	addWindow(updates, sub.PeriodStart, sub.PeriodEnd)

	if !stripe.Entitled(sub.Status) {
		log.Info("subscription not entitled, window only", zap.String("status", stripe.NormalizeStatus(sub.Status)))
		return s.updateUser(ctx, user.ID, updates)
	}

	paid, ok := s.planFromMetadata(sub.Metadata)
	if !ok {
		p, inferred := s.catalog.Infer(sub.UnitAmount, sub.ProductName)
		if !inferred {
			log.Warn("cannot derive plan from subscription")
			return s.updateUser(ctx, user.ID, updates)
		}
		paid = paidPlan{Plan: p, Credits: s.catalog.Credits(p)}
	}
	updates["plan_type"] = paid.Plan

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadUser(tx, user.ID)
		if err != nil {
			return err
		}
		if current.PlanType != plans.Pro && paid.Plan == plans.Pro {
			res, err := s.ledger.GrantTx(tx, credits.GrantInput{
				UserID:         user.ID,
				Amount:         paid.Credits,
				IdempotencyKey: grantKey(sub.ID, sub.PeriodStart, plans.Pro, e.ID),
				Meta: map[string]any{
					"planType":         string(plans.Pro),
					"newCredits":       paid.Credits,
					"remainingCredits": max(current.Credits, 0),
					"eventId":          e.ID,
					"subscriptionId":   sub.ID,
					"source":           "subscription_updated",
				},
			})
			if err != nil {
				return err
			}
			updates["scraping_frozen"] = false
			log.Info("upgraded to PRO", zap.Bool("grant_applied", res.Applied), zap.Int64("balance", res.Balance))

			// An in-place upgrade may never see an invoice.
			intent, err := loadIntent(tx, user.ID)
			if err != nil {
				return err
			}
			if intent != nil && intent.TargetPlan == plans.Pro {
				if err := consumeHint(tx, intent, s.clock.Now()); err != nil {
					return err
				}
			}
		}
		return tx.Model(&users.User{}).Where("id = ?", user.ID).Updates(updates).Error
	})
}

func (s *Service) updateUser(ctx context.Context, userID uint, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&users.User{}).Where("id = ?", userID).Updates(updates).Error
}

func addWindow(updates map[string]any, start, end *time.Time) {
	if start != nil {
		updates["subscription_start_date"] = *start
	}
	if end != nil {
		updates["subscription_end_date"] = *end
	}
}
