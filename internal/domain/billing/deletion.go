package billing

import (
	"time"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/users"
)

// DeletionVerdict classifies a subscription-deleted event.
type DeletionVerdict string

const (
	// VerdictUpgradeNoise: the deletion is the old half of an upgrade.
	VerdictUpgradeNoise DeletionVerdict = "upgrade_noise"
	// VerdictStale: the user already moved to another subscription.
	VerdictStale DeletionVerdict = "stale"
	// VerdictScheduledDowngrade: a PRO period ended with BASIC scheduled.
	VerdictScheduledDowngrade DeletionVerdict = "scheduled_downgrade"
	// VerdictCancellation: a genuine cancellation.
	VerdictCancellation DeletionVerdict = "cancellation"
)

// ClassifyDeletion decides what a deletion of deletedSubID means for u.
// Ambiguous cases resolve toward not downgrading the user.
func ClassifyDeletion(u users.User, intent *PendingBillingIntent, deletedSubID string, now time.Time, recentWindow time.Duration) DeletionVerdict {
	current := u.SubscriptionRef()
	hint := intent.HasHint(now)

	if intent.Replaces(deletedSubID) {
		return VerdictUpgradeNoise
	}
	if hint && recentWindow > 0 && now.Sub(intent.CreatedAt) < recentWindow {
		return VerdictUpgradeNoise
	}
	if current != "" && current != deletedSubID {
		if hint {
			return VerdictUpgradeNoise
		}
		return VerdictStale
	}
	if intent.DowngradeTo(plans.Basic) {
		return VerdictScheduledDowngrade
	}
	return VerdictCancellation
}
