package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v75"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
)

// DecodeEvent turns a verified Stripe event into its billing variant.
// Payload shapes are read here and nowhere else.
func DecodeEvent(ev stripe.Event) (billing.Event, error) {
	meta := billing.EventMeta{
		ID:        ev.ID,
		Type:      string(ev.Type),
		CreatedAt: time.Unix(ev.Created, 0).UTC(),
	}
	if ev.Data == nil {
		return billing.Unhandled{EventMeta: meta}, nil
	}

	switch meta.Type {
	case billing.EventInvoicePaid, billing.EventInvoicePaymentSucceeded:
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		return toInvoicePaid(meta, &inv), nil

	case billing.EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		return billing.CheckoutCompleted{EventMeta: meta, Session: *toCheckoutSession(&s)}, nil

	case billing.EventSubscriptionCreated, billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		s := *toSubscription(&sub)
		switch meta.Type {
		case billing.EventSubscriptionCreated:
			return billing.SubscriptionCreated{EventMeta: meta, Subscription: s}, nil
		case billing.EventSubscriptionUpdated:
			return billing.SubscriptionUpdated{EventMeta: meta, Subscription: s}, nil
		default:
			return billing.SubscriptionDeleted{EventMeta: meta, Subscription: s}, nil
		}
	}
	return billing.Unhandled{EventMeta: meta}, nil
}

func toInvoicePaid(meta billing.EventMeta, inv *stripe.Invoice) billing.InvoicePaid {
	out := billing.InvoicePaid{
		EventMeta:   meta,
		InvoiceID:   inv.ID,
		AmountPaid:  inv.AmountPaid,
		PeriodStart: unixPtr(inv.PeriodStart),
		PeriodEnd:   unixPtr(inv.PeriodEnd),
	}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line == nil || line.Period == nil {
				continue
			}
			out.LinePeriodStart = unixPtr(line.Period.Start)
			out.LinePeriodEnd = unixPtr(line.Period.End)
			break
		}
	}
	return out
}

func toSubscription(s *stripe.Subscription) *billing.Subscription {
	out := &billing.Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		Metadata:          s.Metadata,
		PeriodStart:       unixPtr(s.CurrentPeriodStart),
		PeriodEnd:         unixPtr(s.CurrentPeriodEnd),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil && len(s.Items.Data) > 0 && s.Items.Data[0] != nil {
		item := s.Items.Data[0]
		out.ItemID = item.ID
		if item.Price != nil {
			out.PriceID = item.Price.ID
			out.UnitAmount = item.Price.UnitAmount
			if item.Price.Product != nil {
				out.ProductName = item.Price.Product.Name
			}
			if out.ProductName == "" {
				out.ProductName = item.Price.Nickname
			}
		}
	}
	return out
}

func toCheckoutSession(s *stripe.CheckoutSession) *billing.CheckoutSession {
	out := &billing.CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Mode:          string(s.Mode),
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
		CreatedAt:     time.Unix(s.Created, 0).UTC(),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	return out
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
