package billing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/artverse/nova/internal/metrics"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/payments"
	"github.com/artverse/nova/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type ConnectStatus struct {
	ConnectID *string `json:"connectId"`
	Onboarded bool    `json:"onboarded"`
}

func (s *Service) ConnectStatus(ctx context.Context, userID int64) (ConnectStatus, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return ConnectStatus{}, err
	}
	return ConnectStatus{ConnectID: u.StripeConnectID, Onboarded: u.StripeConnectOnboarded}, nil
}

// ConnectOnboard creates the Express account on first use and returns a fresh onboarding link.
func (s *Service) ConnectOnboard(ctx context.Context, userID int64) (string, error) {
	if !s.gateway.Configured() {
		return "", ErrNotConfigured
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return "", err
	}
	acct := u.ConnectID()
	if acct == "" {
		acct, err = s.gateway.CreateConnectAccount(ctx, u.Email, u.Username, u.ID)
		if err != nil {
			return "", err
		}
		if err := s.users.SetConnectID(ctx, u.ID, acct); err != nil {
			return "", fmt.Errorf("store connect account: %w", err)
		}
	}
	return s.gateway.CreateOnboardingLink(ctx, acct,
		fmt.Sprintf("%s/profile/%s?connect=refresh", s.opts.ClientURL, u.Username),
		fmt.Sprintf("%s/profile/%s?connect=complete", s.opts.ClientURL, u.Username),
	)
}

type ConnectVerification struct {
	Onboarded        bool `json:"onboarded"`
	DetailsSubmitted bool `json:"details_submitted"`
}

// ConnectVerify refreshes the onboarding flag from Stripe.
func (s *Service) ConnectVerify(ctx context.Context, userID int64) (ConnectVerification, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return ConnectVerification{}, err
	}
	if u.ConnectID() == "" {
		return ConnectVerification{}, nil
	}
	if !s.gateway.Configured() {
		return ConnectVerification{}, ErrNotConfigured
	}
	a, err := s.gateway.GetConnectAccount(ctx, u.ConnectID())
	if err != nil {
		return ConnectVerification{}, err
	}
	v := ConnectVerification{
		Onboarded:        a.ChargesEnabled && a.PayoutsEnabled,
		DetailsSubmitted: a.DetailsSubmitted,
	}
	if v.Onboarded && !u.StripeConnectOnboarded {
		if err := s.users.SetConnectOnboarded(ctx, u.ID); err != nil {
			return ConnectVerification{}, err
		}
	}
	return v, nil
}

func (s *Service) ConnectDashboard(ctx context.Context, userID int64) (string, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.ConnectID() == "" {
		return "", ErrNoConnectAccount
	}
	if !s.gateway.Configured() {
		return "", ErrNotConfigured
	}
	return s.gateway.CreateDashboardLink(ctx, u.ConnectID())
}

type Earnings struct {
	TotalEarnedCents   int64               `json:"totalEarnedCents"`
	WithdrawnCents     int64               `json:"withdrawnCents"`
	PendingCents       int64               `json:"pendingCents"`
	AvailableCents     int64               `json:"availableCents"`
	TipCount           int64               `json:"tipCount"`
	PlatformFeePercent int64               `json:"platformFeePercent"`
	RecentTips         []model.ReceivedTip `json:"recentTips"`
	Withdrawals        []model.Withdrawal  `json:"withdrawals"`
}

func (s *Service) Earnings(ctx context.Context, userID int64) (Earnings, error) {
	var (
		total, count int64
		sums         repository.WithdrawalSums
	)
	err := repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if total, count, err = s.tips.ReceivedTotals(ctx, tx, userID); err != nil {
			return err
		}
		sums, err = s.withdrawals.Sums(ctx, tx, userID)
		return err
	})
	if err != nil {
		return Earnings{}, err
	}
	recent, err := s.tips.RecentReceived(ctx, userID, 20)
	if err != nil {
		return Earnings{}, err
	}
	ws, err := s.withdrawals.ListByUser(ctx, userID, 20)
	if err != nil {
		return Earnings{}, err
	}
	if recent == nil {
		recent = []model.ReceivedTip{}
	}
	if ws == nil {
		ws = []model.Withdrawal{}
	}
	return Earnings{
		TotalEarnedCents:   total,
		WithdrawnCents:     sums.Processing + sums.Completed,
		PendingCents:       sums.Pending,
		AvailableCents:     total - sums.Reserved(),
		TipCount:           count,
		PlatformFeePercent: s.opts.PlatformFeePercent,
		RecentTips:         recent,
		Withdrawals:        ws,
	}, nil
}

type WithdrawResult struct {
	Success      bool   `json:"success"`
	WithdrawalID int64  `json:"withdrawalId"`
	GrossCents   int64  `json:"grossCents"`
	FeeCents     int64  `json:"feeCents"`
	NetCents     int64  `json:"netCents"`
	TransferID   string `json:"transferId"`
}

// Fee is the platform's cut of amount, rounded to the nearest cent.
func Fee(amount, percent int64) int64 {
	return int64(math.Round(float64(amount) * float64(percent) / 100))
}

// Withdraw reserves amountCents (0 means everything available) as a processing
// withdrawal and transfers the net amount to the user's connected account.
func (s *Service) Withdraw(ctx context.Context, userID, amountCents int64) (WithdrawResult, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return WithdrawResult{}, err
	}
	if u.ConnectID() == "" || !u.StripeConnectOnboarded {
		return WithdrawResult{}, ErrPayoutsNotReady
	}
	if !s.gateway.Configured() {
		return WithdrawResult{}, ErrNotConfigured
	}

	w := &model.Withdrawal{UserID: userID, Status: model.WithdrawalProcessing}
	err = repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		// concurrent withdrawals for one user queue here
		if err := s.users.LockForUpdate(ctx, tx, userID); err != nil {
			return err
		}
		total, _, err := s.tips.ReceivedTotals(ctx, tx, userID)
		if err != nil {
			return err
		}
		sums, err := s.withdrawals.Sums(ctx, tx, userID)
		if err != nil {
			return err
		}
		available := total - sums.Reserved()
		amount := amountCents
		if amount == 0 {
			amount = available
		}
		if available < model.MinWithdrawalCents {
			return &BelowMinimumError{AvailableCents: available}
		}
		if amount < model.MinWithdrawalCents {
			return &BelowMinimumError{AvailableCents: available, Requested: true}
		}
		if amount > available {
			amount = available
		}
		w.AmountCents = amount
		w.PlatformFeeCents = Fee(amount, s.opts.PlatformFeePercent)
		w.NetAmountCents = amount - w.PlatformFeeCents
		_, err = s.withdrawals.Insert(ctx, tx, w)
		return err
	})
	if err != nil {
		return WithdrawResult{}, err
	}

	transferID, err := s.gateway.Transfer(ctx, payments.TransferRequest{
		AmountCents: w.NetAmountCents,
		Currency:    s.opts.Currency,
		Destination: u.ConnectID(),
		Metadata: map[string]string{
			"userId":       strconv.FormatInt(userID, 10),
			"withdrawalId": strconv.FormatInt(w.ID, 10),
		},
		IdempotencyKey: "withdrawal-" + strconv.FormatInt(w.ID, 10),
	})
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues("withdrawal", "failed").Inc()
		s.log.Error("transfer failed", zap.Int64("withdrawal_id", w.ID), zap.Error(err))
		if ferr := s.withdrawals.MarkFailed(context.WithoutCancel(ctx), w.ID); ferr != nil {
			return WithdrawResult{}, errors.Join(err, ferr)
		}
		return WithdrawResult{}, err
	}

	if err := s.withdrawals.MarkCompleted(context.WithoutCancel(ctx), w.ID, transferID); err != nil {
		return WithdrawResult{}, fmt.Errorf("mark withdrawal %d completed: %w", w.ID, err)
	}
	if err := s.events.Emit(ctx, nil, "withdrawal", w.ID, model.Event{
		Type:    model.EventWithdrawalCompleted,
		ActorID: userID,
		OwnerID: userID,
		Attrs: map[string]string{
			"amount_cents": strconv.FormatInt(w.AmountCents, 10),
			"net_cents":    strconv.FormatInt(w.NetAmountCents, 10),
		},
	}); err != nil {
		s.log.Warn("emit withdrawal event", zap.Error(err))
	}
	metrics.PaymentsTotal.WithLabelValues("withdrawal", "completed").Inc()
	return WithdrawResult{
		Success:      true,
		WithdrawalID: w.ID,
		GrossCents:   w.AmountCents,
		FeeCents:     w.PlatformFeeCents,
		NetCents:     w.NetAmountCents,
		TransferID:   transferID,
	}, nil
}
