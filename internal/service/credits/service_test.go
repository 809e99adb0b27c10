package credits_test

import (
	"context"
	"testing"

	"github.com/artverse/nova/internal/db/dbtest"
	"github.com/artverse/nova/internal/events"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/service/credits"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*credits.Service, *sqlx.DB, int64) {
	t.Helper()
	dbx := dbtest.New(t)
	u := &model.User{Username: "maker", Email: "maker@example.com", PasswordHash: "x"}
	_, err := repository.NewUsersRepository(dbx).Create(context.Background(), nil, u)
	require.NoError(t, err)

	svc := credits.New(dbx,
		repository.NewWalletRepository(),
		repository.NewLedgerRepository(),
		events.NewEmitter(repository.NewOutboxRepository(dbx), ""),
		nil,
	)
	return svc, dbx, u.ID
}

func TestChargeAndRefund(t *testing.T) {
	ctx := context.Background()
	svc, _, userID := setup(t)
	require.NoError(t, svc.Grant(ctx, userID, 6, "welcome"))

	bal, cost, err := svc.Charge(ctx, userID, model.KindVideo)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cost)
	assert.Equal(t, int64(1), bal)

	bal, cost, err = svc.Charge(ctx, userID, model.KindVideo)
	assert.ErrorIs(t, err, credits.ErrInsufficientCredits)
	assert.Equal(t, int64(5), cost)
	assert.Equal(t, int64(1), bal)

	require.NoError(t, svc.Refund(ctx, userID, model.KindVideo, 5))
	bal, err = svc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), bal)

	hist, err := svc.History(ctx, userID, 50)
	require.NoError(t, err)
	require.Len(t, hist, 3)

	var sum int64
	types := map[model.TxType]int{}
	for _, h := range hist {
		sum += h.Amount
		types[h.Type]++
	}
	// the ledger always sums to the balance
	assert.Equal(t, bal, sum)
	assert.Equal(t, map[model.TxType]int{model.TxBonus: 1, model.TxUsage: 1, model.TxRefund: 1}, types)
}

func TestPurchaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, dbx, userID := setup(t)

	applied, err := svc.Purchase(ctx, userID, 200, "cs_test_1")
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = svc.Purchase(ctx, userID, 200, "cs_test_1")
	require.NoError(t, err)
	assert.False(t, applied)

	bal, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), bal)

	rows, err := repository.NewOutboxRepository(dbx).FetchUnpublished(ctx, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, string(rows[0].Payload), string(model.EventCreditsPurchased))

	_, err = svc.Purchase(ctx, userID, 0, "cs_x")
	assert.Error(t, err)
}
