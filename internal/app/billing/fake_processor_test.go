package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
)

type fakePrice struct {
	amount  int64
	product string
}

// fakeProcessor is an in-memory payment processor. Subscriptions created
// through completeCheckout inherit the session metadata, as the real one
// does with subscription_data.metadata.
type fakeProcessor struct {
	mu sync.Mutex
	n  int

	customers map[string]*billing.Customer
	sessions  map[string]*billing.CheckoutSession
	subs      map[string]*billing.Subscription
	prices    map[string]fakePrice

	failUpdate   error
	failCancel   error
	failCreate   error
	failRetrieve error

	cancelled   []string
	cancelFlags map[string]bool
	checkouts   []billing.CheckoutRequest

	next    billing.Event
	nextErr error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		customers:   map[string]*billing.Customer{},
		sessions:    map[string]*billing.CheckoutSession{},
		subs:        map[string]*billing.Subscription{},
		prices:      map[string]fakePrice{},
		cancelFlags: map[string]bool{},
	}
}

func (f *fakeProcessor) id(prefix string) string {
	f.n++
	return fmt.Sprintf("%s_%d", prefix, f.n)
}

func copyMD(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

func (f *fakeProcessor) CreateCustomer(_ context.Context, email, _ string, _ map[string]string) (*billing.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &billing.Customer{ID: f.id("cus"), Email: email}
	f.customers[c.ID] = c
	return c, nil
}

func (f *fakeProcessor) RetrieveCustomer(_ context.Context, id string) (*billing.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, req)
	s := &billing.CheckoutSession{
		ID:         f.id("cs"),
		Mode:       "subscription",
		Status:     "open",
		CustomerID: req.CustomerID,
		Metadata:   copyMD(req.Metadata),
		CreatedAt:  time.Unix(int64(f.n), 0),
	}
	s.URL = "https://checkout.test/" + s.ID
	f.sessions[s.ID] = s
	if p, ok := f.prices[req.PriceID]; ok {
		s.Metadata["_price_amount"] = fmt.Sprint(p.amount)
	}
	s.Metadata["_price_id"] = req.PriceID
	return s, nil
}

func (f *fakeProcessor) RetrieveCheckoutSession(_ context.Context, id string) (*billing.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeProcessor) ListCheckoutSessions(_ context.Context, customerID string, limit int) ([]billing.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []billing.CheckoutSession
	for _, s := range f.sessions {
		if s.CustomerID == customerID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeProcessor) newSub(customerID, priceID string, md map[string]string, start, end time.Time) *billing.Subscription {
	p := f.prices[priceID]
	sub := &billing.Subscription{
		ID:          f.id("sub"),
		CustomerID:  customerID,
		Status:      "active",
		ItemID:      f.id("si"),
		PriceID:     priceID,
		UnitAmount:  p.amount,
		ProductName: p.product,
		Metadata:    copyMD(md),
		PeriodStart: &start,
		PeriodEnd:   &end,
	}
	f.subs[sub.ID] = sub
	return sub
}

func (f *fakeProcessor) CreateSubscription(_ context.Context, customerID, priceID string, md map[string]string) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cp := *f.newSub(customerID, priceID, md, start, start.AddDate(0, 1, 0))
	return &cp, nil
}

func (f *fakeProcessor) RetrieveSubscription(_ context.Context, id string) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRetrieve != nil {
		return nil, f.failRetrieve
	}
	s, ok := f.subs[id]
	if !ok {
		return nil, billing.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeProcessor) UpdateSubscriptionItem(_ context.Context, subID, _, priceID string, md map[string]string) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return nil, f.failUpdate
	}
	s, ok := f.subs[subID]
	if !ok {
		return nil, billing.ErrNotFound
	}
	p := f.prices[priceID]
	s.PriceID, s.UnitAmount, s.ProductName = priceID, p.amount, p.product
	for k, v := range md {
		s.Metadata[k] = v
	}
	cp := *s
	return &cp, nil
}

func (f *fakeProcessor) SetCancelAtPeriodEnd(_ context.Context, subID string, cancel bool, md map[string]string) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[subID]
	if !ok {
		return nil, billing.ErrNotFound
	}
	s.CancelAtPeriodEnd = cancel
	f.cancelFlags[subID] = cancel
	for k, v := range md {
		s.Metadata[k] = v
	}
	cp := *s
	return &cp, nil
}

func (f *fakeProcessor) CancelSubscription(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCancel != nil {
		return f.failCancel
	}
	s, ok := f.subs[id]
	if !ok {
		return billing.ErrNotFound
	}
	s.Status = "canceled"
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeProcessor) ListSubscriptions(_ context.Context, customerID string, limit int) ([]billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []billing.Subscription
	for _, s := range f.subs {
		if s.CustomerID == customerID && s.Status == "active" {
			out = append(out, *s)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeProcessor) CreatePrice(_ context.Context, req billing.PriceRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("price")
	f.prices[id] = fakePrice{amount: req.UnitAmount, product: req.ProductName}
	return id, nil
}

func (f *fakeProcessor) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	return "https://portal.test/" + customerID + "?return=" + returnURL, nil
}

func (f *fakeProcessor) ParseWebhook(_ []byte, signature string) (billing.Event, error) {
	if signature != "valid" {
		return nil, fmt.Errorf("%w: bad header", billing.ErrInvalidSignature)
	}
	if f.nextErr != nil {
		return nil, f.nextErr
	}
	if f.next == nil {
		return nil, errors.New("no event queued")
	}
	return f.next, nil
}

// completeCheckout plays the processor's side of a paid checkout: it
// creates the subscription from the session and marks the session paid.
func (f *fakeProcessor) completeCheckout(sessionID string, start time.Time) (*billing.CheckoutSession, *billing.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[sessionID]
	md := copyMD(s.Metadata)
	priceID := md["_price_id"]
	delete(md, "_price_id")
	delete(md, "_price_amount")
	sub := f.newSub(s.CustomerID, priceID, md, start, start.AddDate(0, 1, 0))
	s.Status, s.PaymentStatus, s.SubscriptionID = "complete", "paid", sub.ID
	sc, subc := *s, *sub
	return &sc, &subc
}

func (f *fakeProcessor) sub(id string) billing.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.subs[id]
}

// seedSubscription registers an existing subscription outside any checkout.
func (f *fakeProcessor) seedSubscription(customerID string, amount int64, product string, md map[string]string, start time.Time) *billing.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	priceID := f.id("price")
	f.prices[priceID] = fakePrice{amount: amount, product: product}
	if _, ok := f.customers[customerID]; !ok {
		f.customers[customerID] = &billing.Customer{ID: customerID}
	}
	cp := *f.newSub(customerID, priceID, md, start, start.AddDate(0, 1, 0))
	return &cp
}

var _ billing.Processor = (*fakeProcessor)(nil)
