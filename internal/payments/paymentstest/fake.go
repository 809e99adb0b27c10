// Package paymentstest provides an in-memory payments.Gateway for tests.
package paymentstest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/artverse/nova/internal/payments"
)

type Fake struct {
	mu sync.Mutex

	Unconfigured bool
	Sessions     map[string]*payments.CheckoutSession
	Accounts     map[string]*payments.ConnectAccount
	Subs         map[string]*payments.Subscription
	Requests     []payments.CheckoutRequest
	Transfers    []payments.TransferRequest
	Customers    int
	// TransferErr makes every Transfer call fail.
	TransferErr error
	// WebhookEvent is returned by ParseWebhook when the signature is "valid".
	WebhookEvent *payments.Event
	// WebhookPayload is the last body handed to ParseWebhook.
	WebhookPayload []byte

	seq int
}

var _ payments.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Sessions: map[string]*payments.CheckoutSession{},
		Accounts: map[string]*payments.ConnectAccount{},
		Subs:     map[string]*payments.Subscription{},
	}
}

func (f *Fake) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *Fake) Configured() bool { return !f.Unconfigured }

func (f *Fake) CreateCustomer(_ context.Context, _ string, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Customers++
	return f.next("cus"), nil
}

func (f *Fake) CreateCheckoutSession(_ context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	id := f.next("cs")
	md := map[string]string{}
	for k, v := range req.Metadata {
		md[k] = v
	}
	s := &payments.CheckoutSession{
		ID:         id,
		URL:        "https://checkout.stripe.test/" + id,
		Mode:       req.Mode,
		CustomerID: req.CustomerID,
		Metadata:   md,
	}
	f.Sessions[id] = s
	cp := *s
	return &cp, nil
}

// Pay marks a session paid, optionally attaching a subscription.
func (f *Fake) Pay(sessionID, subscriptionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.Sessions[sessionID]
	s.Paid = true
	s.SubscriptionID = subscriptionID
}

func (f *Fake) GetCheckoutSession(_ context.Context, id string) (*payments.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Sessions[id]
	if !ok {
		return nil, errors.New("no such checkout session")
	}
	cp := *s
	return &cp, nil
}

func (f *Fake) GetSubscription(_ context.Context, id string) (*payments.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Subs[id]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	cp := *s
	return &cp, nil
}

func (f *Fake) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	return "https://billing.stripe.test/" + customerID, nil
}

func (f *Fake) CreateConnectAccount(_ context.Context, _, _ string, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next("acct")
	f.Accounts[id] = &payments.ConnectAccount{ID: id}
	return id, nil
}

func (f *Fake) GetConnectAccount(_ context.Context, id string) (*payments.ConnectAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.Accounts[id]
	if !ok {
		return nil, errors.New("no such account")
	}
	cp := *a
	return &cp, nil
}

// EnableAccount flips charges and payouts on for a connect account.
func (f *Fake) EnableAccount(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Accounts[id] = &payments.ConnectAccount{ID: id, ChargesEnabled: true, PayoutsEnabled: true, DetailsSubmitted: true}
}

func (f *Fake) CreateOnboardingLink(_ context.Context, accountID, _, _ string) (string, error) {
	return "https://connect.stripe.test/onboard/" + accountID, nil
}

func (f *Fake) CreateDashboardLink(_ context.Context, accountID string) (string, error) {
	return "https://connect.stripe.test/express/" + accountID, nil
}

func (f *Fake) Transfer(_ context.Context, req payments.TransferRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TransferErr != nil {
		return "", f.TransferErr
	}
	f.Transfers = append(f.Transfers, req)
	return f.next("tr"), nil
}

func (f *Fake) ParseWebhook(payload []byte, signature string) (*payments.Event, error) {
	f.mu.Lock()
	f.WebhookPayload = append([]byte(nil), payload...)
	f.mu.Unlock()
	if signature != "valid" || f.WebhookEvent == nil {
		return nil, payments.ErrInvalidSignature
	}
	return f.WebhookEvent, nil
}
