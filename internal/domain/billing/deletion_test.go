package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

func strp(s string) *string { return &s }

func TestClassifyDeletion(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute
	later := now.Add(24 * time.Hour)

	onSub := func(plan plans.PlanType, sub string) users.User {
		u := users.User{ID: 1, PlanType: plan}
		if sub != "" {
			u.StripeSubscriptionID = strp(sub)
		}
		return u
	}

	cases := []struct {
		name    string
		user    users.User
		intent  *PendingBillingIntent
		deleted string
		want    DeletionVerdict
	}{
		{
			name: "replaced subscription of an upgrade",
			user: onSub(plans.Basic, "sub_old"),
			intent: &PendingBillingIntent{
				Kind: IntentUpgradeInFlight, TargetPlan: plans.Pro, TargetCredits: 20000,
				ReplacedSubscriptionID: strp("sub_old"), CreatedAt: now.Add(-time.Hour), ExpiresAt: &later,
			},
			deleted: "sub_old",
			want:    VerdictUpgradeNoise,
		},
		{
			name: "replaced subscription after payment consumed the hint",
			user: onSub(plans.Pro, "sub_new"),
			intent: &PendingBillingIntent{
				Kind: IntentUpgradeInFlight, TargetPlan: plans.Pro, TargetCredits: 20000,
				ReplacedSubscriptionID: strp("sub_old"), CreatedAt: now.Add(-time.Hour),
				HintConsumedAt: &now,
			},
			deleted: "sub_old",
			want:    VerdictUpgradeNoise,
		},
		{
			name: "fresh checkout hint inside the window",
			user: onSub(plans.Basic, "sub_old"),
			intent: &PendingBillingIntent{
				Kind: IntentCheckout, TargetPlan: plans.Pro, TargetCredits: 20000,
				CreatedAt: now.Add(-time.Minute), ExpiresAt: &later,
			},
			deleted: "sub_old",
			want:    VerdictUpgradeNoise,
		},
		{
			name:    "user already on another subscription",
			user:    onSub(plans.Pro, "sub_new"),
			deleted: "sub_old",
			want:    VerdictStale,
		},
		{
			name: "other subscription plus an old hint",
			user: onSub(plans.Pro, "sub_new"),
			intent: &PendingBillingIntent{
				Kind: IntentCheckout, TargetPlan: plans.Pro, TargetCredits: 20000,
				CreatedAt: now.Add(-time.Hour), ExpiresAt: &later,
			},
			deleted: "sub_old",
			want:    VerdictUpgradeNoise,
		},
		{
			name: "scheduled downgrade reached period end",
			user: onSub(plans.Pro, "sub_pro"),
			intent: &PendingBillingIntent{
				Kind: IntentDowngradeScheduled, TargetPlan: plans.Basic, TargetCredits: 10000,
				CreatedAt: now.Add(-72 * time.Hour),
			},
			deleted: "sub_pro",
			want:    VerdictScheduledDowngrade,
		},
		{
			name:    "plain cancellation",
			user:    onSub(plans.Basic, "sub_basic"),
			deleted: "sub_basic",
			want:    VerdictCancellation,
		},
		{
			name: "expired hint does not protect",
			user: onSub(plans.Basic, "sub_basic"),
			intent: &PendingBillingIntent{
				Kind: IntentCheckout, TargetPlan: plans.Pro, TargetCredits: 20000,
				CreatedAt: now.Add(-time.Minute), ExpiresAt: ptrTime(now.Add(-time.Second)),
			},
			deleted: "sub_basic",
			want:    VerdictCancellation,
		},
		{
			name:    "no subscription on record",
			user:    onSub(plans.Basic, ""),
			deleted: "sub_basic",
			want:    VerdictCancellation,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyDeletion(tc.user, tc.intent, tc.deleted, now, window)
			assert.Equal(t, tc.want, got)
		})
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestIntentState(t *testing.T) {
	now := time.Now()
	assert.Equal(t, StateIdle, StateOf(nil))
	assert.Equal(t, StateAwaitingPayment, StateOf(&PendingBillingIntent{Kind: IntentCheckout}))
	assert.Equal(t, StateUpgradeInFlight, StateOf(&PendingBillingIntent{Kind: IntentUpgradeInFlight}))
	assert.Equal(t, StateDowngradeScheduled, StateOf(&PendingBillingIntent{Kind: IntentDowngradeScheduled}))

	var none *PendingBillingIntent
	assert.False(t, none.HasHint(now))
	assert.False(t, none.Replaces("sub"))

	downgrade := &PendingBillingIntent{Kind: IntentDowngradeScheduled, TargetPlan: plans.Basic, TargetCredits: 10000}
	assert.False(t, downgrade.HasHint(now), "a scheduled downgrade is not a payment hint")
	assert.True(t, downgrade.DowngradeTo(plans.Basic))

	free := &PendingBillingIntent{Kind: IntentCheckout, TargetPlan: plans.Free, TargetCredits: 1}
	assert.False(t, free.HasHint(now))
}
