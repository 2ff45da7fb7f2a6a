package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/stripe/stripe-go/v75/webhook"
	"go.uber.org/zap"

	"github.com/shahzaibimran219/pdf-scrapper/internal/domain/billing"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
}

// Client implements billing.Processor on top of the Stripe API.
type Client struct {
	api           *client.API
	webhookSecret string
	log           *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key not configured")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret not configured")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		api:           client.New(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookSecret,
		log:           log.Named("stripe"),
	}, nil
}

var _ billing.Processor = (*Client)(nil)

func (c *Client) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (*billing.Customer, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.Context = ctx
	addMetadata(params, metadata)

	cus, err := c.api.Customers.New(params)
	if err != nil {
		return nil, wrap("create customer", err)
	}
	return &billing.Customer{ID: cus.ID, Email: cus.Email, Deleted: cus.Deleted}, nil
}

func (c *Client) RetrieveCustomer(ctx context.Context, id string) (*billing.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cus, err := c.api.Customers.Get(id, params)
	if err != nil {
		return nil, wrap("retrieve customer", err)
	}
	return &billing.Customer{ID: cus.ID, Email: cus.Email, Deleted: cus.Deleted}, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(req.CustomerID),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		},
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	params.Context = ctx
	addMetadata(params, req.Metadata)

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrap("create checkout session", err)
	}
	return toCheckoutSession(s), nil
}

func (c *Client) RetrieveCheckoutSession(ctx context.Context, id string) (*billing.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, wrap("retrieve checkout session", err)
	}
	return toCheckoutSession(s), nil
}

func (c *Client) ListCheckoutSessions(ctx context.Context, customerID string, limit int) ([]billing.CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))

	var out []billing.CheckoutSession
	it := c.api.CheckoutSessions.List(params)
	for it.Next() && len(out) < limit {
		out = append(out, *toCheckoutSession(it.CheckoutSession()))
	}
	if err := it.Err(); err != nil {
		return nil, wrap("list checkout sessions", err)
	}
	return out, nil
}

func (c *Client) CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (*billing.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		ProrationBehavior: stripe.String("none"),
	}
	params.Context = ctx
	addMetadata(params, metadata)

	sub, err := c.api.Subscriptions.New(params)
	if err != nil {
		return nil, wrap("create subscription", err)
	}
	return toSubscription(sub), nil
}

func (c *Client) RetrieveSubscription(ctx context.Context, id string) (*billing.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price.product")
	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, wrap("retrieve subscription", err)
	}
	return toSubscription(sub), nil
}

func (c *Client) UpdateSubscriptionItem(ctx context.Context, subID, itemID, priceID string, metadata map[string]string) (*billing.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{ID: stripe.String(itemID), Price: stripe.String(priceID)},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx
	addMetadata(params, metadata)

	sub, err := c.api.Subscriptions.Update(subID, params)
	if err != nil {
		return nil, wrap("update subscription item", err)
	}
	return toSubscription(sub), nil
}

func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, subID string, cancel bool, metadata map[string]string) (*billing.Subscription, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
		ProrationBehavior: stripe.String("none"),
	}
	params.Context = ctx
	addMetadata(params, metadata)

	sub, err := c.api.Subscriptions.Update(subID, params)
	if err != nil {
		return nil, wrap("set cancel at period end", err)
	}
	return toSubscription(sub), nil
}

func (c *Client) CancelSubscription(ctx context.Context, id string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := c.api.Subscriptions.Cancel(id, params); err != nil {
		return wrap("cancel subscription", err)
	}
	return nil
}

func (c *Client) ListSubscriptions(ctx context.Context, customerID string, limit int) ([]billing.Subscription, error) {
	params := &stripe.SubscriptionListParams{Customer: stripe.String(customerID)}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))

	var out []billing.Subscription
	it := c.api.Subscriptions.List(params)
	for it.Next() && len(out) < limit {
		out = append(out, *toSubscription(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, wrap("list subscriptions", err)
	}
	return out, nil
}

func (c *Client) CreatePrice(ctx context.Context, req billing.PriceRequest) (string, error) {
	params := &stripe.PriceParams{
		Currency:   stripe.String(req.Currency),
		UnitAmount: stripe.Int64(req.UnitAmount),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(req.Interval),
		},
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(req.ProductName),
		},
	}
	params.Context = ctx
	p, err := c.api.Prices.New(params)
	if err != nil {
		return "", wrap("create price", err)
	}
	return p.ID, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	s, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", wrap("create portal session", err)
	}
	return s.URL, nil
}

func (c *Client) ParseWebhook(payload []byte, signature string) (billing.Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", billing.ErrInvalidSignature, err)
	}
	ev, err := DecodeEvent(event)
	if err != nil {
		return nil, &billing.MalformedEventError{
			EventMeta: billing.EventMeta{ID: event.ID, Type: string(event.Type)},
			Err:       err,
		}
	}
	return ev, nil
}

type metadataSetter interface {
	AddMetadata(key, value string)
}

func addMetadata(p metadataSetter, md map[string]string) {
	for k, v := range md {
		p.AddMetadata(k, v)
	}
}

func wrap(op string, err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.Code == stripe.ErrorCodeResourceMissing {
		return fmt.Errorf("stripe %s: %w: %v", op, billing.ErrNotFound, err)
	}
	return fmt.Errorf("stripe %s: %w", op, err)
}
