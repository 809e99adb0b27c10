package captions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artverse/nova/internal/caption"
	"github.com/artverse/nova/internal/db/dbtest"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaptioner struct {
	urls []string
	err  error
}

func (f *fakeCaptioner) Configured() bool { return true }

func (f *fakeCaptioner) Describe(_ context.Context, url string) (caption.Caption, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return caption.Caption{}, f.err
	}
	return caption.Caption{Title: "Quiet Harbor", Description: "Boats asleep under fog."}, nil
}

func setup(t *testing.T, opts Options) (*Service, *fakeCaptioner, int64) {
	t.Helper()
	dbx := dbtest.New(t)
	users := repository.NewUsersRepository(dbx)
	u := &model.User{Username: "ana", Email: "ana@example.com", PasswordHash: "x"}
	_, err := users.Create(context.Background(), nil, u)
	require.NoError(t, err)

	fc := &fakeCaptioner{}
	return New(repository.NewCaptionUsageRepository(dbx), users, fc, opts, nil), fc, u.ID
}

func TestMonthStart(t *testing.T) {
	got := monthStart(time.Date(2026, 3, 17, 22, 5, 0, 0, time.FixedZone("x", -5*3600)))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestGenerateCountsUsage(t *testing.T) {
	ctx := context.Background()
	svc, fc, userID := setup(t, Options{MonthlyLimit: 2, BaseURL: "https://artverse.test/"})

	out, usage, err := svc.Generate(ctx, userID, "/uploads/a.png")
	require.NoError(t, err)
	assert.Equal(t, "Quiet Harbor", out.Title)
	assert.Equal(t, Usage{Used: 1, Limit: 2, Remaining: 1}, usage)
	assert.Equal(t, []string{"https://artverse.test/uploads/a.png"}, fc.urls)

	_, usage, err = svc.Generate(ctx, userID, "https://cdn.test/b.png")
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Remaining)
	assert.Equal(t, "https://cdn.test/b.png", fc.urls[1])

	_, usage, err = svc.Generate(ctx, userID, "https://cdn.test/c.png")
	assert.ErrorIs(t, err, ErrMonthlyLimit)
	assert.Equal(t, 2, usage.Used)

	st, err := svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.True(t, st.Subscribed)
	assert.Equal(t, Usage{Used: 2, Limit: 2, Remaining: 0}, st.Usage)
}

func TestGenerateFailureDoesNotCount(t *testing.T) {
	ctx := context.Background()
	svc, fc, userID := setup(t, Options{})
	fc.err = errors.New("upstream 500")

	_, _, err := svc.Generate(ctx, userID, "https://cdn.test/a.png")
	assert.Error(t, err)

	st, err := svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Usage.Used)
	assert.Equal(t, 100, st.Usage.Limit)
}

func TestGenerateRequiresImage(t *testing.T) {
	svc, _, userID := setup(t, Options{})
	_, _, err := svc.Generate(context.Background(), userID, " ")
	assert.ErrorIs(t, err, ErrImageRequired)
}

func TestSubscriptionGate(t *testing.T) {
	svc, _, userID := setup(t, Options{RequireSubscription: true})
	_, _, err := svc.Generate(context.Background(), userID, "https://cdn.test/a.png")
	assert.ErrorIs(t, err, ErrSubscriptionNeed)

	st, err := svc.Status(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, st.Subscribed)
}

func TestUsageClampsRemaining(t *testing.T) {
	assert.Equal(t, Usage{Used: 120, Limit: 100, Remaining: 0}, newUsage(120, 100))
}

func TestUsageResetsNextMonth(t *testing.T) {
	ctx := context.Background()
	svc, _, userID := setup(t, Options{MonthlyLimit: 1})

	_, _, err := svc.Generate(ctx, userID, "https://cdn.test/a.png")
	require.NoError(t, err)
	_, _, err = svc.Generate(ctx, userID, "https://cdn.test/a.png")
	assert.ErrorIs(t, err, ErrMonthlyLimit)

	next := monthStart(time.Now()).AddDate(0, 1, 1)
	svc.now = func() time.Time { return next }
	_, _, err = svc.Generate(ctx, userID, "https://cdn.test/a.png")
	assert.NoError(t, err)
}
