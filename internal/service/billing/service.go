// Package billing sells credit packs, routes tips to artists and pays creators out through Stripe Connect.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/artverse/nova/internal/events"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/payments"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/service/credits"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured        = payments.ErrNotConfigured
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidPack          = errors.New("invalid pack")
	ErrArtistNotFound       = errors.New("artist not found")
	ErrSelfTip              = errors.New("cannot tip yourself")
	ErrTipOutOfRange        = errors.New("tip must be between $1 and $500")
	ErrInvalidTip           = errors.New("invalid tip amount")
	ErrNoCustomer           = errors.New("no billing account")
	ErrNoSubscriptionPrice  = errors.New("subscriptions not configured")
	ErrPayoutsNotReady      = errors.New("payouts not set up")
	ErrNoConnectAccount     = errors.New("no connected account")
	ErrBelowMinimum         = errors.New("below minimum withdrawal")
	ErrUnknownSessionTarget = errors.New("checkout session metadata does not match a purchase")
)

// BelowMinimumError reports the available balance alongside ErrBelowMinimum.
type BelowMinimumError struct {
	AvailableCents int64
	// Requested is true when the caller's requested amount, not the balance, was too small.
	Requested bool
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("minimum withdrawal is %d cents (available %d)", model.MinWithdrawalCents, e.AvailableCents)
}

func (e *BelowMinimumError) Is(target error) bool { return target == ErrBelowMinimum }

type Options struct {
	ClientURL          string
	Currency           string
	PlatformFeePercent int64
	SubscriptionPrice  string
}

type Service struct {
	db          *sqlx.DB
	users       repository.UsersRepository
	tips        repository.TipsRepository
	withdrawals repository.WithdrawalsRepository
	credits     *credits.Service
	gateway     payments.Gateway
	events      *events.Emitter
	opts        Options
	log         *zap.Logger
}

func New(
	db *sqlx.DB,
	users repository.UsersRepository,
	tips repository.TipsRepository,
	withdrawals repository.WithdrawalsRepository,
	creditsSvc *credits.Service,
	gateway payments.Gateway,
	emitter *events.Emitter,
	opts Options,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.PlatformFeePercent < 0 || opts.PlatformFeePercent > 100 {
		opts.PlatformFeePercent = 10
	}
	opts.ClientURL = strings.TrimRight(opts.ClientURL, "/")
	return &Service{
		db:          db,
		users:       users,
		tips:        tips,
		withdrawals: withdrawals,
		credits:     creditsSvc,
		gateway:     gateway,
		events:      emitter,
		opts:        opts,
		log:         log,
	}
}

func (s *Service) PlatformFeePercent() int64 { return s.opts.PlatformFeePercent }

func (s *Service) user(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// ensureCustomer returns the user's Stripe customer, creating it on first purchase.
func (s *Service) ensureCustomer(ctx context.Context, u *model.User) (string, error) {
	if id := u.CustomerID(); id != "" {
		return id, nil
	}
	id, err := s.gateway.CreateCustomer(ctx, u.Email, u.ID)
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(ctx, u.ID, id); err != nil {
		return "", fmt.Errorf("store stripe customer: %w", err)
	}
	u.StripeCustomerID = &id
	return id, nil
}

func (s *Service) History(ctx context.Context, userID int64) ([]model.CreditTransaction, error) {
	return s.credits.History(ctx, userID, 50)
}

func (s *Service) Credits(ctx context.Context, userID int64) (int64, error) {
	return s.credits.Balance(ctx, userID)
}
