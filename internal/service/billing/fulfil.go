package billing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/artverse/nova/internal/metrics"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/payments"
	"github.com/artverse/nova/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// VerifyResult is what the client sees after returning from Stripe checkout.
type VerifyResult struct {
	Status  string `json:"status"`
	Type    string `json:"type,omitempty"`
	Credits *int64 `json:"credits,omitempty"`
}

// VerifySession fulfils a paid session on the redirect path. The webhook may have
// already done so; fulfilment is idempotent.
func (s *Service) VerifySession(ctx context.Context, userID int64, sessionID string) (VerifyResult, error) {
	if !s.gateway.Configured() {
		return VerifyResult{}, ErrNotConfigured
	}
	sess, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return VerifyResult{}, err
	}
	if !sess.Paid {
		return VerifyResult{Status: "unpaid"}, nil
	}
	kind, err := s.fulfil(ctx, sess)
	if err != nil {
		return VerifyResult{}, err
	}
	res := VerifyResult{Status: "paid", Type: kind}
	if kind == TypeCredits {
		bal, err := s.credits.Balance(ctx, userID)
		if err != nil {
			return VerifyResult{}, err
		}
		res.Credits = &bal
	}
	return res, nil
}

// HandleWebhook verifies and applies a Stripe event. Unknown event types are ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	s.log.Info("stripe webhook", zap.String("event_id", ev.ID), zap.String("type", ev.Type))

	switch ev.Type {
	case payments.EventCheckoutCompleted:
		if ev.Session == nil || !ev.Session.Paid {
			return nil
		}
		_, err = s.fulfil(ctx, ev.Session)
		return err
	case payments.EventSubscriptionUpdated, payments.EventSubscriptionDeleted:
		if ev.Subscription == nil {
			return nil
		}
		return s.syncSubscription(ctx, ev.Subscription)
	}
	return nil
}

func metaInt(md map[string]string, key string) (int64, error) {
	v, err := strconv.ParseInt(md[key], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrUnknownSessionTarget, key, md[key])
	}
	return v, nil
}

func (s *Service) fulfil(ctx context.Context, sess *payments.CheckoutSession) (string, error) {
	kind := sess.Metadata[metaType]
	if kind == "" && sess.Mode == payments.ModeSubscription {
		kind = TypeSubscription
	}
	userID, err := metaInt(sess.Metadata, metaUserID)
	if err != nil {
		return "", err
	}

	switch kind {
	case TypeCredits:
		n, err := metaInt(sess.Metadata, metaCredits)
		if err != nil {
			return "", err
		}
		applied, err := s.credits.Purchase(ctx, userID, n, sess.ID)
		if err != nil {
			return "", err
		}
		if applied {
			metrics.PaymentsTotal.WithLabelValues(TypeCredits, "completed").Inc()
			s.log.Info("credits purchased", zap.Int64("user_id", userID), zap.Int64("credits", n), zap.String("session_id", sess.ID))
		}
	case TypeTip:
		if err := s.completeTip(ctx, sess, userID); err != nil {
			return "", err
		}
	case TypeSubscription:
		if sess.SubscriptionID == "" {
			return "", fmt.Errorf("%w: subscription session %s has no subscription", ErrUnknownSessionTarget, sess.ID)
		}
		sub, err := s.gateway.GetSubscription(ctx, sess.SubscriptionID)
		if err != nil {
			return "", err
		}
		if err := s.applySubscription(ctx, userID, sub); err != nil {
			return "", err
		}
		metrics.PaymentsTotal.WithLabelValues(TypeSubscription, "completed").Inc()
	default:
		return "", fmt.Errorf("%w: type=%q", ErrUnknownSessionTarget, kind)
	}
	return kind, nil
}

func (s *Service) completeTip(ctx context.Context, sess *payments.CheckoutSession, tipperID int64) error {
	tipID, err := metaInt(sess.Metadata, metaTipID)
	if err != nil {
		return err
	}
	done := false
	err = repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		tip, err := s.tips.Get(ctx, tx, tipID)
		if err != nil {
			return err
		}
		if tip == nil {
			return fmt.Errorf("%w: tip %d", ErrUnknownSessionTarget, tipID)
		}
		ok, err := s.tips.MarkCompleted(ctx, tx, tipID, sess.ID)
		if err != nil || !ok {
			return err
		}
		done = true
		return s.events.Emit(ctx, tx, "tip", tipID, model.Event{
			Type:    model.EventTipCompleted,
			ActorID: tipperID,
			OwnerID: tip.ArtistID,
			Attrs:   map[string]string{"amount_cents": strconv.FormatInt(tip.AmountCents, 10)},
		})
	})
	if err != nil {
		return err
	}
	if done {
		metrics.PaymentsTotal.WithLabelValues(TypeTip, "completed").Inc()
		s.log.Info("tip completed", zap.Int64("tip_id", tipID), zap.String("session_id", sess.ID))
	}
	return nil
}

func (s *Service) applySubscription(ctx context.Context, userID int64, sub *payments.Subscription) error {
	var end *time.Time
	if !sub.CurrentPeriodEnd.IsZero() {
		t := sub.CurrentPeriodEnd.UTC()
		end = &t
	}
	return s.users.UpdateSubscription(ctx, nil, userID, repository.SubscriptionUpdate{
		SubscriptionID: sub.ID,
		Status:         sub.Status,
		PeriodEnd:      end,
	})
}

func (s *Service) syncSubscription(ctx context.Context, sub *payments.Subscription) error {
	u, err := s.users.GetByStripeCustomerID(ctx, sub.CustomerID)
	if err != nil {
		return err
	}
	if u == nil {
		s.log.Warn("subscription for unknown customer", zap.String("customer_id", sub.CustomerID), zap.String("subscription_id", sub.ID))
		return nil
	}
	return s.applySubscription(ctx, u.ID, sub)
}

// SubscriptionStatus is the caller's current plan.
type SubscriptionStatus struct {
	Active    bool       `json:"active"`
	Status    string     `json:"status"`
	PeriodEnd *time.Time `json:"periodEnd"`
}

func (s *Service) Subscription(ctx context.Context, userID int64) (SubscriptionStatus, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return SubscriptionStatus{}, err
	}
	status := u.SubscriptionStatus
	if status == "" {
		status = "none"
	}
	return SubscriptionStatus{Active: u.SubscriptionActive(), Status: status, PeriodEnd: u.SubscriptionPeriodEnd}, nil
}
