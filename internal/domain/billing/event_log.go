package billing

import (
	"time"

	"gorm.io/datatypes"
)

// EventLog is the idempotency token for one processor event. The unique
// index on EventID is what makes webhook delivery at-most-once.
type EventLog struct {
	ID        uint           `gorm:"primaryKey"`
	EventID   string         `gorm:"column:event_id;not null;uniqueIndex:idx_billing_event_log_event_id"`
	Type      string         `gorm:"type:varchar(64);not null"`
	Payload   datatypes.JSON `gorm:"column:payload"`
	CreatedAt time.Time
}

func (EventLog) TableName() string { return "billing_event_log" }

// SubscriptionCancellation is a write-once audit row.
type SubscriptionCancellation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	PlanType  string    `gorm:"type:varchar(10);not null" json:"plan_type"`
	Reason    string    `gorm:"type:text;not null" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
