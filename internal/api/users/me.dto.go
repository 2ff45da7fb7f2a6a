package users

import "time"

type MeResponse struct {
	User    UserDTO    `json:"user"`
	Billing BillingDTO `json:"billing"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

/* ---------- BILLING ---------- */

type BillingDTO struct {
	PlanType       string            `json:"plan_type"`
	Credits        int64             `json:"credits"`
	ScrapingFrozen bool              `json:"scraping_frozen"`
	Subscription   *SubscriptionDTO  `json:"subscription"`
	PendingChange  *PendingChangeDTO `json:"pending_change"`
}

type SubscriptionDTO struct {
	StartsAt             *time.Time `json:"starts_at"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id"`
	DaysLeft             *int       `json:"days_left"`
}

type PendingChangeDTO struct {
	Kind        string     `json:"kind"` // checkout|upgrade_in_flight|downgrade_scheduled
	PlanType    string     `json:"plan_type"`
	EffectiveAt *time.Time `json:"effective_at"`
}
