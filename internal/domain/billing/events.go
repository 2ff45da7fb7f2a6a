package billing

import "time"

const (
	EventInvoicePaid             = "invoice.paid"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventCheckoutCompleted       = "checkout.session.completed"
	EventSubscriptionCreated     = "customer.subscription.created"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
)

// Event is a verified processor event decoded into one of the variants
// below. The set is closed; unknown types decode to Unhandled.
type Event interface {
	Meta() EventMeta
	event()
}

type EventMeta struct {
	ID        string
	Type      string
	CreatedAt time.Time
}

func (m EventMeta) Meta() EventMeta { return m }

type InvoicePaid struct {
	EventMeta
	InvoiceID       string
	CustomerID      string
	SubscriptionID  string
	AmountPaid      int64
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	LinePeriodStart *time.Time
	LinePeriodEnd   *time.Time
}

type CheckoutCompleted struct {
	EventMeta
	Session CheckoutSession
}

type SubscriptionCreated struct {
	EventMeta
	Subscription Subscription
}

type SubscriptionUpdated struct {
	EventMeta
	Subscription Subscription
}

type SubscriptionDeleted struct {
	EventMeta
	Subscription Subscription
}

type Unhandled struct {
	EventMeta
}

func (InvoicePaid) event()         {}
func (CheckoutCompleted) event()   {}
func (SubscriptionCreated) event() {}
func (SubscriptionUpdated) event() {}
func (SubscriptionDeleted) event() {}
func (Unhandled) event()           {}

// Snapshot is the minimal payload stored alongside the idempotency token.
func Snapshot(e Event) map[string]any {
	out := map[string]any{"type": e.Meta().Type}
	switch v := e.(type) {
	case InvoicePaid:
		out["invoice"] = v.InvoiceID
		out["customer"] = v.CustomerID
		out["subscription"] = v.SubscriptionID
		out["amount_paid"] = v.AmountPaid
	case CheckoutCompleted:
		out["session"] = v.Session.ID
		out["customer"] = v.Session.CustomerID
		out["subscription"] = v.Session.SubscriptionID
	case SubscriptionCreated:
		out["customer"] = v.Subscription.CustomerID
		out["subscription"] = v.Subscription.ID
	case SubscriptionUpdated:
		out["customer"] = v.Subscription.CustomerID
		out["subscription"] = v.Subscription.ID
		out["status"] = v.Subscription.Status
	case SubscriptionDeleted:
		out["customer"] = v.Subscription.CustomerID
		out["subscription"] = v.Subscription.ID
	}
	return out
}
