package billing_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/artverse/nova/internal/db/dbtest"
	"github.com/artverse/nova/internal/events"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/payments"
	"github.com/artverse/nova/internal/payments/paymentstest"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/service/billing"
	"github.com/artverse/nova/internal/service/credits"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	svc    *billing.Service
	db     *sqlx.DB
	fake   *paymentstest.Fake
	users  *repository.UsersRepositoryImpl
	outbox *repository.OutboxRepositoryImpl
	buyer  int64
	artist int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	dbx := dbtest.New(t)
	users := repository.NewUsersRepository(dbx)
	outbox := repository.NewOutboxRepository(dbx)
	emitter := events.NewEmitter(outbox, "")

	mk := func(name string) int64 {
		u := &model.User{Username: name, Email: name + "@example.com", PasswordHash: "x", DisplayName: name + " display"}
		_, err := users.Create(ctx, nil, u)
		require.NoError(t, err)
		return u.ID
	}

	fake := paymentstest.New()
	creditsSvc := credits.New(dbx, repository.NewWalletRepository(), repository.NewLedgerRepository(), emitter, nil)
	svc := billing.New(dbx, users,
		repository.NewTipsRepository(dbx),
		repository.NewWithdrawalsRepository(dbx),
		creditsSvc, fake, emitter,
		billing.Options{ClientURL: "http://app.test/", PlatformFeePercent: 10, SubscriptionPrice: "price_monthly"},
		nil,
	)
	return &env{svc: svc, db: dbx, fake: fake, users: users, outbox: outbox, buyer: mk("buyer"), artist: mk("artist")}
}

func TestCheckoutCreditsAndVerify(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.svc.CheckoutCredits(ctx, e.buyer, "mega")
	assert.ErrorIs(t, err, billing.ErrInvalidPack)

	sess, err := e.svc.CheckoutCredits(ctx, e.buyer, "popular")
	require.NoError(t, err)
	require.Len(t, e.fake.Requests, 1)
	req := e.fake.Requests[0]
	assert.Equal(t, payments.ModePayment, req.Mode)
	assert.Equal(t, "Nova Popular Pack", req.Item.Name)
	assert.Equal(t, "200 generation credits", req.Item.Description)
	assert.Equal(t, int64(1499), req.Item.AmountCents)
	assert.Equal(t, "http://app.test/profile/buyer?purchase=success", req.SuccessURL)
	assert.Equal(t, "http://app.test?purchase=cancelled", req.CancelURL)
	assert.Equal(t, map[string]string{"userId": strconv.FormatInt(e.buyer, 10), "type": "credits", "packId": "popular", "credits": "200"}, req.Metadata)
	assert.NotEmpty(t, req.IdempotencyKey)

	u, err := e.users.GetByID(ctx, nil, e.buyer)
	require.NoError(t, err)
	assert.Equal(t, req.CustomerID, u.CustomerID())

	res, err := e.svc.VerifySession(ctx, e.buyer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "unpaid", res.Status)

	e.fake.Pay(sess.ID, "")
	res, err = e.svc.VerifySession(ctx, e.buyer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", res.Status)
	assert.Equal(t, billing.TypeCredits, res.Type)
	require.NotNil(t, res.Credits)
	assert.Equal(t, int64(200), *res.Credits)

	// redirect and webhook racing must not double credit
	e.fake.WebhookEvent = &payments.Event{ID: "evt_1", Type: payments.EventCheckoutCompleted, Session: e.fake.Sessions[sess.ID]}
	require.NoError(t, e.svc.HandleWebhook(ctx, []byte("{}"), "valid"))
	bal, err := e.svc.Credits(ctx, e.buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(200), bal)

	// second checkout reuses the customer
	_, err = e.svc.CheckoutCredits(ctx, e.buyer, "starter")
	require.NoError(t, err)
	assert.Equal(t, 1, e.fake.Customers)

	hist, err := e.svc.History(ctx, e.buyer)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, model.TxPurchase, hist[0].Type)
}

func TestCheckoutNotConfigured(t *testing.T) {
	e := newEnv(t)
	e.fake.Unconfigured = true
	_, err := e.svc.CheckoutCredits(context.Background(), e.buyer, "starter")
	assert.ErrorIs(t, err, billing.ErrNotConfigured)
}

func TestTipCents(t *testing.T) {
	c, err := billing.TipCents(0, "tip_5")
	require.NoError(t, err)
	assert.Equal(t, int64(500), c)

	c, err = billing.TipCents(12.345, "tip_5")
	require.NoError(t, err)
	assert.Equal(t, int64(1235), c)

	_, err = billing.TipCents(0.5, "")
	assert.ErrorIs(t, err, billing.ErrTipOutOfRange)
	_, err = billing.TipCents(500.01, "")
	assert.ErrorIs(t, err, billing.ErrTipOutOfRange)
	_, err = billing.TipCents(0, "tip_3")
	assert.ErrorIs(t, err, billing.ErrInvalidTip)
}

func tipAndPay(t *testing.T, e *env, in billing.TipInput) *payments.CheckoutSession {
	t.Helper()
	sess, err := e.svc.CheckoutTip(context.Background(), e.buyer, in)
	require.NoError(t, err)
	e.fake.Pay(sess.ID, "")
	res, err := e.svc.VerifySession(context.Background(), e.buyer, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.TypeTip, res.Type)
	return sess
}

func TestTipFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.svc.CheckoutTip(ctx, e.buyer, billing.TipInput{ArtistUsername: "nobody", AmountID: "tip_2"})
	assert.ErrorIs(t, err, billing.ErrArtistNotFound)
	_, err = e.svc.CheckoutTip(ctx, e.artist, billing.TipInput{ArtistUsername: "artist", AmountID: "tip_2"})
	assert.ErrorIs(t, err, billing.ErrSelfTip)

	sess := tipAndPay(t, e, billing.TipInput{ArtistUsername: "artist", AmountID: "tip_10", Message: "  love it  "})
	req := e.fake.Requests[len(e.fake.Requests)-1]
	assert.Equal(t, "Tip for @artist", req.Item.Name)
	assert.Equal(t, `"love it"`, req.Item.Description)
	assert.Equal(t, "tip", req.Metadata["type"])
	assert.Equal(t, "http://app.test/profile/artist?tip=success", req.SuccessURL)
	assert.Equal(t, "http://app.test/profile/artist?tip=cancelled", req.CancelURL)

	tipAndPay(t, e, billing.TipInput{ArtistUsername: "artist", CustomDollars: 3})
	req = e.fake.Requests[len(e.fake.Requests)-1]
	assert.Equal(t, "Support artist display", req.Item.Description)

	// verifying again is a no-op
	_, err = e.svc.VerifySession(ctx, e.buyer, sess.ID)
	require.NoError(t, err)

	total, count, err := e.svc.TipsReceived(ctx, "artist")
	require.NoError(t, err)
	assert.Equal(t, int64(1300), total)
	assert.Equal(t, int64(2), count)

	_, _, err = e.svc.TipsReceived(ctx, "ghost")
	assert.ErrorIs(t, err, billing.ErrUserNotFound)

	rows, err := e.outbox.FetchUnpublished(ctx, 50, 10)
	require.NoError(t, err)
	tips := 0
	for _, r := range rows {
		if r.Aggregate == "tip" {
			tips++
		}
	}
	assert.Equal(t, 2, tips)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.svc.Withdraw(ctx, e.artist, 0)
	assert.ErrorIs(t, err, billing.ErrPayoutsNotReady)

	st, err := e.svc.ConnectStatus(ctx, e.artist)
	require.NoError(t, err)
	assert.Nil(t, st.ConnectID)

	v, err := e.svc.ConnectVerify(ctx, e.artist)
	require.NoError(t, err)
	assert.False(t, v.Onboarded)

	_, err = e.svc.ConnectDashboard(ctx, e.artist)
	assert.ErrorIs(t, err, billing.ErrNoConnectAccount)

	link, err := e.svc.ConnectOnboard(ctx, e.artist)
	require.NoError(t, err)
	u, _ := e.users.GetByID(ctx, nil, e.artist)
	acct := u.ConnectID()
	require.NotEmpty(t, acct)
	assert.Contains(t, link, acct)

	v, err = e.svc.ConnectVerify(ctx, e.artist)
	require.NoError(t, err)
	assert.False(t, v.Onboarded)

	e.fake.EnableAccount(acct)
	v, err = e.svc.ConnectVerify(ctx, e.artist)
	require.NoError(t, err)
	assert.True(t, v.Onboarded)

	_, err = e.svc.Withdraw(ctx, e.artist, 0)
	var below *billing.BelowMinimumError
	require.ErrorAs(t, err, &below)
	assert.Equal(t, int64(0), below.AvailableCents)

	tipAndPay(t, e, billing.TipInput{ArtistUsername: "artist", AmountID: "tip_25"})

	_, err = e.svc.Withdraw(ctx, e.artist, 50)
	assert.ErrorIs(t, err, billing.ErrBelowMinimum)
	_, err = e.svc.Withdraw(ctx, e.artist, -5)
	require.ErrorAs(t, err, &below)
	assert.True(t, below.Requested)

	res, err := e.svc.Withdraw(ctx, e.artist, 1005)
	require.NoError(t, err)
	assert.Equal(t, int64(1005), res.GrossCents)
	assert.Equal(t, int64(101), res.FeeCents)
	assert.Equal(t, res.GrossCents, res.FeeCents+res.NetCents)
	require.Len(t, e.fake.Transfers, 1)
	assert.Equal(t, int64(904), e.fake.Transfers[0].AmountCents)
	assert.Equal(t, acct, e.fake.Transfers[0].Destination)

	e.fake.TransferErr = errors.New("stripe down")
	_, err = e.svc.Withdraw(ctx, e.artist, 0)
	require.Error(t, err)

	earn, err := e.svc.Earnings(ctx, e.artist)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), earn.TotalEarnedCents)
	assert.Equal(t, int64(1005), earn.WithdrawnCents)
	assert.Equal(t, int64(1495), earn.AvailableCents)
	assert.Equal(t, int64(10), earn.PlatformFeePercent)
	require.Len(t, earn.Withdrawals, 2)
	statuses := map[model.WithdrawalStatus]int{}
	for _, w := range earn.Withdrawals {
		statuses[w.Status]++
	}
	assert.Equal(t, 1, statuses[model.WithdrawalCompleted])
	assert.Equal(t, 1, statuses[model.WithdrawalFailed])
	require.Len(t, earn.RecentTips, 1)
	assert.Equal(t, "buyer", earn.RecentTips[0].TipperUsername)

	// a capped request takes everything left
	e.fake.TransferErr = nil
	res, err = e.svc.Withdraw(ctx, e.artist, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1495), res.GrossCents)

	dash, err := e.svc.ConnectDashboard(ctx, e.artist)
	require.NoError(t, err)
	assert.Contains(t, dash, acct)
}

func TestWithdrawConcurrentNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.svc.ConnectOnboard(ctx, e.artist)
	require.NoError(t, err)
	u, _ := e.users.GetByID(ctx, nil, e.artist)
	e.fake.EnableAccount(u.ConnectID())
	_, err = e.svc.ConnectVerify(ctx, e.artist)
	require.NoError(t, err)
	tipAndPay(t, e, billing.TipInput{ArtistUsername: "artist", AmountID: "tip_10"})

	const callers = 4
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		gross  int64
		okRuns int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.svc.Withdraw(ctx, e.artist, 0)
			if err != nil {
				assert.ErrorIs(t, err, billing.ErrBelowMinimum)
				return
			}
			mu.Lock()
			gross += res.GrossCents
			okRuns++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, okRuns)
	assert.Equal(t, int64(1000), gross)
	earn, err := e.svc.Earnings(ctx, e.artist)
	require.NoError(t, err)
	assert.Equal(t, int64(0), earn.AvailableCents)
	assert.Len(t, e.fake.Transfers, 1)
}

func TestFee(t *testing.T) {
	assert.Equal(t, int64(10), billing.Fee(100, 10))
	assert.Equal(t, int64(101), billing.Fee(1005, 10))
	assert.Equal(t, int64(0), billing.Fee(4, 10))
}

func TestSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	st, err := e.svc.Subscription(ctx, e.buyer)
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.Equal(t, "none", st.Status)

	_, err = e.svc.Portal(ctx, e.buyer)
	assert.ErrorIs(t, err, billing.ErrNoCustomer)

	sess, err := e.svc.CheckoutSubscription(ctx, e.buyer)
	require.NoError(t, err)
	req := e.fake.Requests[0]
	assert.Equal(t, payments.ModeSubscription, req.Mode)
	assert.Equal(t, "price_monthly", req.PriceID)

	end := time.Date(2026, 11, 17, 0, 0, 0, 0, time.UTC)
	e.fake.Subs["sub_1"] = &payments.Subscription{ID: "sub_1", CustomerID: req.CustomerID, Status: "active", CurrentPeriodEnd: end}
	e.fake.Pay(sess.ID, "sub_1")
	e.fake.WebhookEvent = &payments.Event{ID: "evt_2", Type: payments.EventCheckoutCompleted, Session: e.fake.Sessions[sess.ID]}
	require.NoError(t, e.svc.HandleWebhook(ctx, nil, "valid"))

	st, err = e.svc.Subscription(ctx, e.buyer)
	require.NoError(t, err)
	assert.True(t, st.Active)
	require.NotNil(t, st.PeriodEnd)
	assert.True(t, end.Equal(*st.PeriodEnd))

	e.fake.WebhookEvent = &payments.Event{ID: "evt_3", Type: payments.EventSubscriptionDeleted,
		Subscription: &payments.Subscription{ID: "sub_1", CustomerID: req.CustomerID, Status: "canceled"}}
	require.NoError(t, e.svc.HandleWebhook(ctx, nil, "valid"))
	st, err = e.svc.Subscription(ctx, e.buyer)
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.Equal(t, "canceled", st.Status)

	portal, err := e.svc.Portal(ctx, e.buyer)
	require.NoError(t, err)
	assert.Contains(t, portal, req.CustomerID)

	assert.Error(t, e.svc.HandleWebhook(ctx, nil, "forged"))
}
