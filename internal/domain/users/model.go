package users

import (
	"time"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/plans"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID        uint `gorm:"primaryKey"`
	Name      string
	Email     string  `gorm:"not null;uniqueIndex:idx_users_email"`
	GoogleSub *string `gorm:"uniqueIndex:idx_users_google_sub"`
	Role      string  `gorm:"type:varchar(20);not null"`

	PlanType       plans.PlanType `gorm:"column:plan_type;type:varchar(10);not null"`
	Credits        int64          `gorm:"not null;check:chk_users_credits,credits >= 0"`
	ScrapingFrozen bool           `gorm:"column:scraping_frozen;not null"`

	StripeCustomerID      *string    `gorm:"column:stripe_customer_id;uniqueIndex:idx_users_stripe_customer_id"`
	StripeSubscriptionID  *string    `gorm:"column:stripe_subscription_id;index:idx_users_stripe_subscription_id"`
	SubscriptionStartDate *time.Time `gorm:"column:subscription_start_date"`
	SubscriptionEndDate   *time.Time `gorm:"column:subscription_end_date"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewFreeUser is the shape of every account at first sign-in.
func NewFreeUser(email, name string) User {
	return User{
		Email:          email,
		Name:           name,
		Role:           RoleUser,
		PlanType:       plans.Free,
		Credits:        0,
		ScrapingFrozen: true,
	}
}

func (u User) SubscriptionRef() string {
	if u.StripeSubscriptionID == nil {
		return ""
	}
	return *u.StripeSubscriptionID
}

func (u User) CustomerRef() string {
	if u.StripeCustomerID == nil {
		return ""
	}
	return *u.StripeCustomerID
}
