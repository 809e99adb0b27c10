package payments

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by every call when no Stripe secret key is set.
var ErrNotConfigured = errors.New("payments: stripe not configured")

// ErrInvalidSignature wraps webhook payloads whose signature does not verify.
var ErrInvalidSignature = errors.New("payments: invalid webhook signature")

// Checkout modes.
const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"
)

// Webhook event types handled by billing.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// LineItem is a one-off price built inline for a payment-mode session.
type LineItem struct {
	Name        string
	Description string
	AmountCents int64
	Currency    string
}

type CheckoutRequest struct {
	Mode       string
	CustomerID string
	Item       *LineItem // payment mode
	PriceID    string    // subscription mode
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
	// IdempotencyKey guards the create call against client retries.
	IdempotencyKey string
}

type CheckoutSession struct {
	ID             string
	URL            string
	Mode           string
	Paid           bool
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
}

type Subscription struct {
	ID               string
	CustomerID       string
	Status           string
	CurrentPeriodEnd time.Time
}

type ConnectAccount struct {
	ID               string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

type TransferRequest struct {
	AmountCents    int64
	Currency       string
	Destination    string
	Metadata       map[string]string
	IdempotencyKey string
}

// Event is a verified webhook event; exactly one payload field is set for handled types.
type Event struct {
	ID           string
	Type         string
	Session      *CheckoutSession
	Subscription *Subscription
}

// Gateway is the slice of Stripe used by billing.
type Gateway interface {
	Configured() bool
	CreateCustomer(ctx context.Context, email string, userID int64) (string, error)
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	CreateConnectAccount(ctx context.Context, email, username string, userID int64) (string, error)
	GetConnectAccount(ctx context.Context, id string) (*ConnectAccount, error)
	CreateOnboardingLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	CreateDashboardLink(ctx context.Context, accountID string) (string, error)
	Transfer(ctx context.Context, req TransferRequest) (string, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
