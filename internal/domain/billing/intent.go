package billing

import (
	"time"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
)

type IntentKind string

const (
	// IntentCheckout waits for the first payment of TargetPlan.
	IntentCheckout IntentKind = "checkout"
	// IntentUpgradeInFlight replaces ReplacedSubscriptionID with a new one.
	IntentUpgradeInFlight IntentKind = "upgrade_in_flight"
	// IntentDowngradeScheduled moves PRO to TargetPlan at period end.
	IntentDowngradeScheduled IntentKind = "downgrade_scheduled"
)

// PendingBillingIntent correlates an outbound billing action with the
// webhook that eventually confirms it. At most one exists per user.
type PendingBillingIntent struct {
	ID                     uint           `gorm:"primaryKey"`
	UserID                 uint           `gorm:"not null;uniqueIndex:idx_pending_billing_intents_user"`
	Kind                   IntentKind     `gorm:"type:varchar(32);not null"`
	TargetPlan             plans.PlanType `gorm:"type:varchar(10);not null"`
	TargetCredits          int64          `gorm:"not null"`
	CheckoutSessionID      *string        `gorm:"column:checkout_session_id"`
	ReplacedSubscriptionID *string        `gorm:"column:replaced_subscription_id"`
	HintConsumedAt         *time.Time
	CreatedAt              time.Time
	ExpiresAt              *time.Time
}

// HasHint reports whether the intent still carries an unconsumed plan and
// credit hint for the next payment.
func (i *PendingBillingIntent) HasHint(now time.Time) bool {
	if i == nil || i.HintConsumedAt != nil {
		return false
	}
	if i.Kind != IntentCheckout && i.Kind != IntentUpgradeInFlight {
		return false
	}
	if i.ExpiresAt != nil && !now.Before(*i.ExpiresAt) {
		return false
	}
	return i.TargetPlan.Paid() && i.TargetCredits > 0
}

// Replaces reports whether subID is the subscription this upgrade cancels.
func (i *PendingBillingIntent) Replaces(subID string) bool {
	return i != nil && i.Kind == IntentUpgradeInFlight &&
		i.ReplacedSubscriptionID != nil && *i.ReplacedSubscriptionID == subID
}

func (i *PendingBillingIntent) DowngradeTo(p plans.PlanType) bool {
	return i != nil && i.Kind == IntentDowngradeScheduled && i.TargetPlan == p
}

// State is the tagged view of the intent used by the deletion handler.
type State string

const (
	StateIdle               State = "idle"
	StateAwaitingPayment    State = "awaiting_payment"
	StateUpgradeInFlight    State = "upgrade_in_flight"
	StateDowngradeScheduled State = "downgrade_scheduled"
)

func StateOf(i *PendingBillingIntent) State {
	if i == nil {
		return StateIdle
	}
	switch i.Kind {
	case IntentUpgradeInFlight:
		return StateUpgradeInFlight
	case IntentDowngradeScheduled:
		return StateDowngradeScheduled
	case IntentCheckout:
		return StateAwaitingPayment
	}
	return StateIdle
}
