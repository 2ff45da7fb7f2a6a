package billing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/shahzaibimran219/pdf-scrapper/internal/app/credits"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

// paidPlan is the plan and allotment a payment buys, plus where that
// answer came from.
type paidPlan struct {
	Plan    plans.PlanType
	Credits int64
	Source  string
}

// onInvoicePaid is the only transition that moves a user onto a paid plan
// with a fresh allotment. Remaining credits carry over.
func (s *Service) onInvoicePaid(ctx context.Context, ev billing.Event) error {
	e, ok := ev.(billing.InvoicePaid)
	if !ok {
		return unexpected(ev)
	}
	user, err := s.userForCustomer(ctx, e.CustomerID, nil)
	if err != nil {
		return fmt.Errorf("resolve customer %q: %w", e.CustomerID, err)
	}
	log := s.log.With(zap.String("event_id", e.ID), zap.Uint("user_id", user.ID))

	subID := e.SubscriptionID
	if subID == "" && e.CustomerID != "" {
		subs, err := s.processor.ListSubscriptions(ctx, e.CustomerID, 1)
		if err != nil {
			log.Warn("list subscriptions failed", zap.Error(err))
		} else if len(subs) > 0 {
			subID = subs[0].ID
		}
	}

	var sub *billing.Subscription
	if subID != "" {
		sub, err = s.processor.RetrieveSubscription(ctx, subID)
		if err != nil {
			log.Warn("retrieve paid subscription failed", zap.String("subscription_id", subID), zap.Error(err))
			sub = nil
		}
	}

	now := s.clock.Now()
	intent, err := loadIntent(s.db.WithContext(ctx), user.ID)
	if err != nil {
		return err
	}
	paid := s.resolvePaidPlan(ctx, e.CustomerID, intent, sub, now, log)
	start, end := paidWindow(sub, e)
	key := grantKey(subID, start, paid.Plan, e.ID)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := loadUser(tx, user.ID)
		if err != nil {
			return err
		}
		remaining := max(current.Credits, 0)

		res, err := s.ledger.GrantTx(tx, credits.GrantInput{
			UserID:         user.ID,
			Amount:         paid.Credits,
			IdempotencyKey: key,
			Meta: map[string]any{
				"planType":         string(paid.Plan),
				"newCredits":       paid.Credits,
				"remainingCredits": remaining,
				"totalCredits":     remaining + paid.Credits,
				"eventId":          e.ID,
				"subscriptionId":   subID,
				"source":           paid.Source,
			},
		})
		if err != nil {
			return err
		}

		updates := map[string]any{
			"plan_type":       paid.Plan,
			"scraping_frozen": false,
		}
		if subID != "" {
			updates["stripe_subscription_id"] = subID
		}
		addWindow(updates, start, end)
		if err := tx.Model(&users.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("apply paid plan: %w", err)
		}
		if err := consumeHint(tx, intent, now); err != nil {
			return err
		}

		log.Info("payment applied",
			zap.String("plan", string(paid.Plan)),
			zap.String("source", paid.Source),
			zap.Int64("granted", paid.Credits),
			zap.Bool("grant_applied", res.Applied),
			zap.Int64("balance", res.Balance),
		)
		return nil
	})
}

// resolvePaidPlan walks the fallbacks: pending hint, the paid
// subscription's metadata, the latest checkout session, the price itself,
// then BASIC.
func (s *Service) resolvePaidPlan(ctx context.Context, customerID string, intent *billing.PendingBillingIntent, sub *billing.Subscription, now time.Time, log *zap.Logger) paidPlan {
	fromSub, subOK := s.planFromMetadata(subMetadata(sub))

	if intent.HasHint(now) {
		if subOK && fromSub.Plan != intent.TargetPlan {
			log.Warn("pending hint disagrees with paid subscription, using subscription",
				zap.String("hint", string(intent.TargetPlan)),
				zap.String("subscription_plan", string(fromSub.Plan)),
			)
		} else {
			return paidPlan{Plan: intent.TargetPlan, Credits: intent.TargetCredits, Source: "intent"}
		}
	}
	if subOK {
		fromSub.Source = "subscription"
		return fromSub
	}

	if customerID != "" {
		sessions, err := s.processor.ListCheckoutSessions(ctx, customerID, 1)
		if err != nil {
			log.Warn("list checkout sessions failed", zap.Error(err))
		} else if len(sessions) > 0 {
			if p, ok := s.planFromMetadata(sessions[0].Metadata); ok {
				p.Source = "checkout_session"
				return p
			}
		}
	}

	if sub != nil {
		if p, ok := s.catalog.Infer(sub.UnitAmount, sub.ProductName); ok {
			return paidPlan{Plan: p, Credits: s.catalog.Credits(p), Source: "price"}
		}
	}
	return paidPlan{Plan: plans.Basic, Credits: s.catalog.Credits(plans.Basic), Source: "default"}
}

// planFromMetadata reads the plan/credits pair we stamp on sessions and
// subscriptions. Credits default to the catalog allotment.
func (s *Service) planFromMetadata(md map[string]string) (paidPlan, bool) {
	if md == nil {
		return paidPlan{}, false
	}
	p, ok := plans.ParsePlan(md["plan"])
	if !ok || !p.Paid() {
		return paidPlan{}, false
	}
	amount := s.catalog.Credits(p)
	if n, err := strconv.ParseInt(md["credits"], 10, 64); err == nil && n > 0 {
		amount = n
	}
	return paidPlan{Plan: p, Credits: amount}, true
}

func subMetadata(sub *billing.Subscription) map[string]string {
	if sub == nil {
		return nil
	}
	return sub.Metadata
}

// paidWindow prefers the subscription's period, then the invoice period,
// then the first line item. Subscription-creation invoices report an
// empty invoice period (start == end).
func paidWindow(sub *billing.Subscription, inv billing.InvoicePaid) (*time.Time, *time.Time) {
	if sub != nil && sub.PeriodStart != nil && sub.PeriodEnd != nil {
		return sub.PeriodStart, sub.PeriodEnd
	}
	if inv.PeriodStart != nil && inv.PeriodEnd != nil && !inv.PeriodStart.Equal(*inv.PeriodEnd) {
		return inv.PeriodStart, inv.PeriodEnd
	}
	if inv.LinePeriodStart != nil || inv.LinePeriodEnd != nil {
		return inv.LinePeriodStart, inv.LinePeriodEnd
	}
	return nil, nil
}

// grantKey scopes a grant to one paid period of one subscription so the
// invoice and subscription-update paths cannot both grant it.
func grantKey(subID string, periodStart *time.Time, plan plans.PlanType, eventID string) string {
	if subID != "" && periodStart != nil {
		return fmt.Sprintf("grant:%s:%d:%s", subID, periodStart.Unix(), plan)
	}
	return "grant:" + eventID
}

// consumeHint clears the checkout hint after payment. An upgrade still
// waiting for the old subscription's deletion keeps its guard.
func consumeHint(tx *gorm.DB, intent *billing.PendingBillingIntent, now time.Time) error {
	if intent == nil {
		return nil
	}
	switch intent.Kind {
	case billing.IntentCheckout:
		return clearIntent(tx, intent.UserID)
	case billing.IntentUpgradeInFlight:
		return tx.Model(&billing.PendingBillingIntent{}).
			Where("id = ?", intent.ID).
			Update("hint_consumed_at", now).Error
	}
	return nil
}

func unexpected(ev billing.Event) error {
	return fmt.Errorf("unexpected event variant %T for %s", ev, ev.Meta().Type)
}
