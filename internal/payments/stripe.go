package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/account"
	"github.com/stripe/stripe-go/v79/accountlink"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/loginlink"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/transfer"
	"github.com/stripe/stripe-go/v79/webhook"
)

type StripeGateway struct {
	secretKey     string
	webhookSecret string
	currency      string
}

var _ Gateway = (*StripeGateway)(nil)

// NewStripeGateway sets the package-level stripe key; an empty key leaves the gateway unconfigured.
func NewStripeGateway(secretKey, webhookSecret, currency string) *StripeGateway {
	if secretKey != "" {
		stripe.Key = secretKey
	}
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeGateway{secretKey: secretKey, webhookSecret: webhookSecret, currency: currency}
}

func (g *StripeGateway) Configured() bool { return g.secretKey != "" }

func (g *StripeGateway) CreateCustomer(ctx context.Context, email string, userID int64) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	params.AddMetadata("userId", fmt.Sprint(userID))

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe customer: %w", err)
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(req.Mode),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}

	switch req.Mode {
	case ModeSubscription:
		if req.PriceID == "" {
			return nil, errors.New("stripe checkout: subscription price is required")
		}
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		}
	default:
		if req.Item == nil {
			return nil, errors.New("stripe checkout: line item is required")
		}
		cur := req.Item.Currency
		if cur == "" {
			cur = g.currency
		}
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(cur),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.Item.Name),
						Description: stripe.String(req.Item.Description),
					},
					UnitAmount: stripe.Int64(req.Item.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		}
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout: %w", err)
	}
	return toSession(s), nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := session.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe session %s: %w", id, err)
	}
	return toSession(s), nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := subscription.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe subscription %s: %w", id, err)
	}
	return toSubscription(sub), nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	ps, err := portal.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe portal: %w", err)
	}
	return ps.URL, nil
}

func (g *StripeGateway) CreateConnectAccount(ctx context.Context, email, username string, userID int64) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
	}
	params.Context = ctx
	params.AddMetadata("userId", fmt.Sprint(userID))
	params.AddMetadata("username", username)

	acct, err := account.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe connect account: %w", err)
	}
	return acct.ID, nil
}

func (g *StripeGateway) GetConnectAccount(ctx context.Context, id string) (*ConnectAccount, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := account.GetByID(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe connect account %s: %w", id, err)
	}
	return &ConnectAccount{
		ID:               acct.ID,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}, nil
}

func (g *StripeGateway) CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := accountlink.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe account link: %w", err)
	}
	return link.URL, nil
}

func (g *StripeGateway) CreateDashboardLink(ctx context.Context, accountID string) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	params := &stripe.LoginLinkParams{Account: stripe.String(accountID)}
	params.Context = ctx

	link, err := loginlink.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe login link: %w", err)
	}
	return link.URL, nil
}

func (g *StripeGateway) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	cur := req.Currency
	if cur == "" {
		cur = g.currency
	}
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(cur),
		Destination: stripe.String(req.Destination),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	tr, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe transfer: %w", err)
	}
	return tr.ID, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the handled payloads.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, ErrNotConfigured
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(ev)
}

func decodeEvent(ev stripe.Event) (*Event, error) {
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("stripe webhook session: %w", err)
		}
		out.Session = toSession(&s)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("stripe webhook subscription: %w", err)
		}
		out.Subscription = toSubscription(&sub)
	}
	return out, nil
}

func toSession(s *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:       s.ID,
		URL:      s.URL,
		Mode:     string(s.Mode),
		Paid:     s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Metadata: s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}

func toSubscription(sub *stripe.Subscription) *Subscription {
	out := &Subscription{ID: sub.ID, Status: string(sub.Status)}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	return out
}
