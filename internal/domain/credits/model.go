package credits

import (
	"time"

	"gorm.io/datatypes"
)

type Reason string

const (
	ReasonSubscriptionGrant   Reason = "SUBSCRIPTION_GRANT"
	ReasonExtractionDebit     Reason = "EXTRACTION_DEBIT"
	ReasonCancellationForfeit Reason = "CANCELLATION_FORFEIT"
)

// LedgerEntry is an immutable balance change. Entries are only ever
// appended; corrections are new entries.
type LedgerEntry struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index:idx_credit_ledger_user" json:"user_id"`
	Delta          int64          `gorm:"not null" json:"delta"`
	Reason         Reason         `gorm:"type:varchar(32);not null" json:"reason"`
	ResumeID       *string        `gorm:"column:resume_id" json:"resume_id,omitempty"`
	IdempotencyKey *string        `gorm:"column:idempotency_key;uniqueIndex:idx_credit_ledger_idempotency_key" json:"-"`
	Meta           datatypes.JSON `json:"meta,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (LedgerEntry) TableName() string { return "credit_ledger" }
