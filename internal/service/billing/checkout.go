package billing

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/artverse/nova/internal/metrics"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/payments"
	"github.com/artverse/nova/internal/util"
)

// Checkout metadata keys and purchase types.
const (
	metaUserID   = "userId"
	metaType     = "type"
	metaPackID   = "packId"
	metaCredits  = "credits"
	metaTipID    = "tipId"
	metaArtistID = "artistId"

	TypeCredits      = "credits"
	TypeTip          = "tip"
	TypeSubscription = "subscription"
)

func (s *Service) CheckoutCredits(ctx context.Context, userID int64, packID string) (*payments.CheckoutSession, error) {
	pack, ok := model.FindPack(packID)
	if !ok {
		return nil, ErrInvalidPack
	}
	if !s.gateway.Configured() {
		return nil, ErrNotConfigured
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, u)
	if err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		Mode:       payments.ModePayment,
		CustomerID: customerID,
		Item: &payments.LineItem{
			Name:        "Nova " + pack.Description,
			Description: fmt.Sprintf("%d generation credits", pack.Credits),
			AmountCents: pack.PriceCents,
			Currency:    s.opts.Currency,
		},
		Metadata: map[string]string{
			metaUserID:  strconv.FormatInt(userID, 10),
			metaType:    TypeCredits,
			metaPackID:  pack.ID,
			metaCredits: strconv.FormatInt(pack.Credits, 10),
		},
		SuccessURL:     fmt.Sprintf("%s/profile/%s?purchase=success", s.opts.ClientURL, u.Username),
		CancelURL:      s.opts.ClientURL + "?purchase=cancelled",
		IdempotencyKey: util.New(),
	})
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues(TypeCredits, "failed").Inc()
		return nil, err
	}
	metrics.PaymentsTotal.WithLabelValues(TypeCredits, "created").Inc()
	return sess, nil
}

type TipInput struct {
	ArtistUsername string
	AmountID       string
	// CustomDollars takes precedence over AmountID when positive.
	CustomDollars float64
	Message       string
}

// TipCents resolves the tip amount from a custom dollar value or a preset id.
func TipCents(customDollars float64, amountID string) (int64, error) {
	if customDollars != 0 {
		cents := int64(math.Round(customDollars * 100))
		if cents < model.MinCustomTipCents || cents > model.MaxCustomTipCents {
			return 0, ErrTipOutOfRange
		}
		return cents, nil
	}
	t, ok := model.FindTipAmount(amountID)
	if !ok {
		return 0, ErrInvalidTip
	}
	return t.AmountCents, nil
}

func (s *Service) CheckoutTip(ctx context.Context, userID int64, in TipInput) (*payments.CheckoutSession, error) {
	artist, err := s.users.GetByUsername(ctx, in.ArtistUsername)
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, ErrArtistNotFound
	}
	if artist.ID == userID {
		return nil, ErrSelfTip
	}
	cents, err := TipCents(in.CustomDollars, in.AmountID)
	if err != nil {
		return nil, err
	}
	if !s.gateway.Configured() {
		return nil, ErrNotConfigured
	}

	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, u)
	if err != nil {
		return nil, err
	}

	tip := &model.Tip{
		TipperID:    userID,
		ArtistID:    artist.ID,
		AmountCents: cents,
		Currency:    s.opts.Currency,
		Message:     strings.TrimSpace(in.Message),
	}
	if _, err := s.tips.InsertPending(ctx, tip); err != nil {
		return nil, fmt.Errorf("insert tip: %w", err)
	}

	desc := "Support " + artist.Username
	if artist.DisplayName != "" {
		desc = "Support " + artist.DisplayName
	}
	if tip.Message != "" {
		msg := tip.Message
		if r := []rune(msg); len(r) > 100 {
			msg = string(r[:100])
		}
		desc = `"` + msg + `"`
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		Mode:       payments.ModePayment,
		CustomerID: customerID,
		Item: &payments.LineItem{
			Name:        "Tip for @" + artist.Username,
			Description: desc,
			AmountCents: cents,
			Currency:    s.opts.Currency,
		},
		Metadata: map[string]string{
			metaUserID:   strconv.FormatInt(userID, 10),
			metaType:     TypeTip,
			metaArtistID: strconv.FormatInt(artist.ID, 10),
			metaTipID:    strconv.FormatInt(tip.ID, 10),
		},
		SuccessURL:     fmt.Sprintf("%s/profile/%s?tip=success", s.opts.ClientURL, artist.Username),
		CancelURL:      fmt.Sprintf("%s/profile/%s?tip=cancelled", s.opts.ClientURL, artist.Username),
		IdempotencyKey: "tip-" + strconv.FormatInt(tip.ID, 10),
	})
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues(TypeTip, "failed").Inc()
		return nil, err
	}
	if err := s.tips.SetSession(ctx, tip.ID, sess.ID); err != nil {
		return nil, fmt.Errorf("store tip session: %w", err)
	}
	metrics.PaymentsTotal.WithLabelValues(TypeTip, "created").Inc()
	return sess, nil
}

// TipsReceived sums completed tips for username.
func (s *Service) TipsReceived(ctx context.Context, username string) (totalCents, count int64, err error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return 0, 0, err
	}
	if u == nil {
		return 0, 0, ErrUserNotFound
	}
	return s.tips.ReceivedTotals(ctx, nil, u.ID)
}

func (s *Service) CheckoutSubscription(ctx context.Context, userID int64) (*payments.CheckoutSession, error) {
	if s.opts.SubscriptionPrice == "" {
		return nil, ErrNoSubscriptionPrice
	}
	if !s.gateway.Configured() {
		return nil, ErrNotConfigured
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, u)
	if err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		Mode:       payments.ModeSubscription,
		CustomerID: customerID,
		PriceID:    s.opts.SubscriptionPrice,
		Metadata: map[string]string{
			metaUserID: strconv.FormatInt(userID, 10),
			metaType:   TypeSubscription,
		},
		SuccessURL:     fmt.Sprintf("%s/profile/%s?subscription=success", s.opts.ClientURL, u.Username),
		CancelURL:      s.opts.ClientURL + "?subscription=cancelled",
		IdempotencyKey: util.New(),
	})
	if err != nil {
		metrics.PaymentsTotal.WithLabelValues(TypeSubscription, "failed").Inc()
		return nil, err
	}
	metrics.PaymentsTotal.WithLabelValues(TypeSubscription, "created").Inc()
	return sess, nil
}

func (s *Service) Portal(ctx context.Context, userID int64) (string, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.CustomerID() == "" {
		return "", ErrNoCustomer
	}
	return s.gateway.CreatePortalSession(ctx, u.CustomerID(), s.opts.ClientURL+"/profile/"+u.Username)
}
