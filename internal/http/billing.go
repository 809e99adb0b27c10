package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/payments"
	"github.com/artverse/nova/internal/service/billing"
	"github.com/labstack/echo/v4"
)

// Stripe events with expanded objects run past 64KB.
const maxWebhookBytes = 512 << 10

// billingErr covers the failures shared by every billing route.
func billingErr(c echo.Context, msg string, err error) error {
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		return errJSON(c, http.StatusServiceUnavailable, "Payments are not configured")
	case errors.Is(err, billing.ErrUserNotFound):
		return errJSON(c, http.StatusNotFound, "User not found")
	default:
		return internalErr(c, msg, err)
	}
}

func sessionJSON(c echo.Context, sess *payments.CheckoutSession) error {
	return c.JSON(http.StatusOK, map[string]string{"url": sess.URL, "sessionId": sess.ID})
}

func creditsHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		bal, err := svc.Credits(c.Request().Context(), userID(c))
		if err != nil {
			return billingErr(c, "Failed to load credits", err)
		}
		return c.JSON(http.StatusOK, map[string]any{"credits": bal, "costs": model.GenerationCosts})
	}
}

func packsHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"packs": model.CreditPacks, "tips": model.TipAmounts})
	}
}

func checkoutCreditsHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			PackID string `json:"packId"`
		}
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}
		sess, err := svc.CheckoutCredits(c.Request().Context(), userID(c), req.PackID)
		if errors.Is(err, billing.ErrInvalidPack) {
			return errJSON(c, http.StatusBadRequest, "Invalid pack")
		}
		if err != nil {
			return billingErr(c, "Failed to create checkout session", err)
		}
		return sessionJSON(c, sess)
	}
}

func checkoutTipHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			ArtistUsername string     `json:"artistUsername"`
			AmountID       string     `json:"amountId"`
			CustomAmount   flexNumber `json:"customAmount"`
			Message        string     `json:"message"`
		}
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "Invalid tip amount")
		}
		sess, err := svc.CheckoutTip(c.Request().Context(), userID(c), billing.TipInput{
			ArtistUsername: req.ArtistUsername,
			AmountID:       req.AmountID,
			CustomDollars:  float64(req.CustomAmount),
			Message:        req.Message,
		})
		switch {
		case errors.Is(err, billing.ErrArtistNotFound):
			return errJSON(c, http.StatusNotFound, "Artist not found")
		case errors.Is(err, billing.ErrSelfTip):
			return errJSON(c, http.StatusBadRequest, "Cannot tip yourself")
		case errors.Is(err, billing.ErrTipOutOfRange):
			return errJSON(c, http.StatusBadRequest, "Tip must be between $1 and $500")
		case errors.Is(err, billing.ErrInvalidTip):
			return errJSON(c, http.StatusBadRequest, "Invalid tip amount")
		case err != nil:
			return billingErr(c, "Failed to create tip session", err)
		}
		return sessionJSON(c, sess)
	}
}

func tipsReceivedHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		total, count, err := svc.TipsReceived(c.Request().Context(), c.Param("username"))
		if errors.Is(err, billing.ErrArtistNotFound) {
			return errJSON(c, http.StatusNotFound, "User not found")
		}
		if err != nil {
			return internalErr(c, "Failed to load tips", err)
		}
		return c.JSON(http.StatusOK, map[string]int64{"totalCents": total, "count": count})
	}
}

func verifySessionHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			SessionID string `json:"sessionId"`
		}
		if err := c.Bind(&req); err != nil || req.SessionID == "" {
			return errJSON(c, http.StatusBadRequest, "sessionId required")
		}
		res, err := svc.VerifySession(c.Request().Context(), userID(c), req.SessionID)
		if err != nil {
			return billingErr(c, "Failed to verify session", err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

// webhookHandler reads the raw body; the signature covers the exact bytes Stripe sent.
func webhookHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBytes))
		if err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}
		err = svc.HandleWebhook(c.Request().Context(), payload, c.Request().Header.Get("Stripe-Signature"))
		switch {
		case errors.Is(err, billing.ErrNotConfigured):
			return errJSON(c, http.StatusServiceUnavailable, "Payments are not configured")
		case errors.Is(err, payments.ErrInvalidSignature):
			return errJSON(c, http.StatusBadRequest, "Invalid signature")
		case err != nil:
			return internalErr(c, "Webhook handling failed", err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	}
}

func checkoutSubscriptionHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := svc.CheckoutSubscription(c.Request().Context(), userID(c))
		if errors.Is(err, billing.ErrNoSubscriptionPrice) {
			return errJSON(c, http.StatusServiceUnavailable, "Subscriptions are not configured")
		}
		if err != nil {
			return billingErr(c, "Failed to create checkout session", err)
		}
		return sessionJSON(c, sess)
	}
}

func subscriptionHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		st, err := svc.Subscription(c.Request().Context(), userID(c))
		if err != nil {
			return billingErr(c, "Failed to load subscription", err)
		}
		return c.JSON(http.StatusOK, st)
	}
}

func portalHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		url, err := svc.Portal(c.Request().Context(), userID(c))
		if errors.Is(err, billing.ErrNoCustomer) {
			return errJSON(c, http.StatusBadRequest, "No billing account")
		}
		if err != nil {
			return billingErr(c, "Failed to open billing portal", err)
		}
		return c.JSON(http.StatusOK, map[string]string{"url": url})
	}
}

func historyHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		rows, err := svc.History(c.Request().Context(), userID(c))
		if err != nil {
			return internalErr(c, "Failed to load history", err)
		}
		if rows == nil {
			rows = []model.CreditTransaction{}
		}
		return c.JSON(http.StatusOK, rows)
	}
}

func connectStatusHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		st, err := svc.ConnectStatus(c.Request().Context(), userID(c))
		if err != nil {
			return billingErr(c, "Failed to load payout status", err)
		}
		return c.JSON(http.StatusOK, st)
	}
}

func connectOnboardHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		url, err := svc.ConnectOnboard(c.Request().Context(), userID(c))
		if err != nil {
			return billingErr(c, "Failed to start onboarding", err)
		}
		return c.JSON(http.StatusOK, map[string]string{"url": url})
	}
}

func connectVerifyHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		v, err := svc.ConnectVerify(c.Request().Context(), userID(c))
		if err != nil {
			return billingErr(c, "Failed to verify account", err)
		}
		return c.JSON(http.StatusOK, v)
	}
}

func connectDashboardHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		url, err := svc.ConnectDashboard(c.Request().Context(), userID(c))
		if errors.Is(err, billing.ErrNoConnectAccount) {
			return errJSON(c, http.StatusBadRequest, "No connected account")
		}
		if err != nil {
			return billingErr(c, "Failed to generate dashboard link", err)
		}
		return c.JSON(http.StatusOK, map[string]string{"url": url})
	}
}

func earningsHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		e, err := svc.Earnings(c.Request().Context(), userID(c))
		if err != nil {
			return internalErr(c, "Failed to load earnings", err)
		}
		return c.JSON(http.StatusOK, e)
	}
}

func withdrawHandler(svc *billing.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			AmountCents int64 `json:"amountCents"`
		}
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}
		res, err := svc.Withdraw(c.Request().Context(), userID(c), req.AmountCents)

		var below *billing.BelowMinimumError
		switch {
		case errors.Is(err, billing.ErrPayoutsNotReady):
			return errJSON(c, http.StatusBadRequest, "Set up payouts first by connecting your Stripe account")
		case errors.As(err, &below):
			if below.Requested {
				return errJSON(c, http.StatusBadRequest, "Minimum withdrawal is $1.00")
			}
			return c.JSON(http.StatusBadRequest, map[string]any{
				"error":          "Minimum withdrawal is $1.00",
				"availableCents": below.AvailableCents,
			})
		case err != nil:
			return billingErr(c, "Withdrawal failed", err)
		}
		return c.JSON(http.StatusOK, res)
	}
}
