package billing

import (
	"time"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
)

// LowCreditThreshold is one extraction's worth of credits.
const LowCreditThreshold int64 = 100

// Summary holds the user-facing billing flags.
type Summary struct {
	PlanType           plans.PlanType `json:"plan_type"`
	Credits            int64          `json:"credits"`
	IsLowCredits       bool           `json:"is_low_credits"`
	SubscriptionActive bool           `json:"subscription_active"`
	NeedsRenewal       bool           `json:"needs_renewal"`
	NeedsUpgrade       bool           `json:"needs_upgrade"`
}

// ComputeSummary is pure; it reads no state besides its arguments.
func ComputeSummary(plan plans.PlanType, credits int64, subscriptionEnd *time.Time, now time.Time) Summary {
	low := credits < LowCreditThreshold
	active := subscriptionEnd != nil && subscriptionEnd.After(now)
	paid := plan != plans.Free

	return Summary{
		PlanType:           plan,
		Credits:            credits,
		IsLowCredits:       low,
		SubscriptionActive: active,
		NeedsRenewal:       low && paid && !active,
		NeedsUpgrade:       low && paid && active && plan != plans.Pro,
	}
}
