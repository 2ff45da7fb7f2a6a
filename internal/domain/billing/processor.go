package billing

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrNotFound         = errors.New("processor object not found")
)

// MalformedEventError is a correctly signed event whose object could not
// be decoded.
type MalformedEventError struct {
	EventMeta
	Err error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("decode %s event %s: %v", e.Type, e.ID, e.Err)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

type Customer struct {
	ID      string
	Email   string
	Deleted bool
}

type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	ItemID            string
	PriceID           string
	UnitAmount        int64
	ProductName       string
	Metadata          map[string]string
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
}

type CheckoutSession struct {
	ID             string
	URL            string
	Mode           string
	Status         string
	PaymentStatus  string
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
	CreatedAt      time.Time
}

// Paid reports whether the session completed with a settled payment.
func (s CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid" || s.Status == "complete"
}

type CheckoutRequest struct {
	CustomerID        string
	PriceID           string
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	// Metadata is attached to both the session and the subscription it creates.
	Metadata map[string]string
}

type PriceRequest struct {
	Currency    string
	UnitAmount  int64
	Interval    string
	ProductName string
}

// Processor is the payment processor capability set the billing core uses.
type Processor interface {
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (*Customer, error)
	RetrieveCustomer(ctx context.Context, id string) (*Customer, error)

	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	ListCheckoutSessions(ctx context.Context, customerID string, limit int) ([]CheckoutSession, error)

	CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (*Subscription, error)
	RetrieveSubscription(ctx context.Context, id string) (*Subscription, error)
	UpdateSubscriptionItem(ctx context.Context, subID, itemID, priceID string, metadata map[string]string) (*Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subID string, cancel bool, metadata map[string]string) (*Subscription, error)
	CancelSubscription(ctx context.Context, id string) error
	ListSubscriptions(ctx context.Context, customerID string, limit int) ([]Subscription, error)

	CreatePrice(ctx context.Context, req PriceRequest) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// ParseWebhook verifies the signature and decodes the payload once.
	ParseWebhook(payload []byte, signature string) (Event, error)
}
