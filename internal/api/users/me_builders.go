package users

import (
	"time"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

func BuildSubscriptionDTO(now time.Time, u users.User) *SubscriptionDTO {
	if u.SubscriptionRef() == "" {
		return nil
	}

	var daysLeft *int
	if end := u.SubscriptionEndDate; end != nil {
		d := 0
		if now.Before(*end) {
			d = int(end.Sub(now).Hours() / 24)
		}
		daysLeft = &d
	}

	return &SubscriptionDTO{
		StartsAt:             u.SubscriptionStartDate,
		CurrentPeriodEnd:     u.SubscriptionEndDate,
		StripeSubscriptionID: u.StripeSubscriptionID,
		DaysLeft:             daysLeft,
	}
}

func BuildPendingChangeDTO(u users.User, intent *billing.PendingBillingIntent) *PendingChangeDTO {
	if intent == nil {
		return nil
	}
	dto := &PendingChangeDTO{
		Kind:     string(intent.Kind),
		PlanType: string(intent.TargetPlan),
	}
	if intent.Kind == billing.IntentDowngradeScheduled {
		dto.EffectiveAt = u.SubscriptionEndDate
	}
	return dto
}
