package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/artverse/nova/internal/db/dbtest"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeysReplaceByName(t *testing.T) {
	ctx := context.Background()
	dbx := dbtest.New(t)
	keys := repository.NewAPIKeysRepository(dbx)
	u := createUser(t, dbx, "agent")

	require.NoError(t, keys.Replace(ctx, &model.APIKey{UserID: u.ID, KeyHash: "h1", KeyPrefix: "av_1...", Name: "bot"}))
	require.NoError(t, keys.Replace(ctx, &model.APIKey{UserID: u.ID, KeyHash: "h2", KeyPrefix: "av_2...", Name: "bot"}))
	require.NoError(t, keys.Replace(ctx, &model.APIKey{UserID: u.ID, KeyHash: "h3", KeyPrefix: "av_3...", Name: "other"}))

	list, err := keys.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	uid, err := keys.UserIDByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Zero(t, uid)

	uid, err = keys.UserIDByHash(ctx, "h2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, uid)

	require.NoError(t, keys.Touch(ctx, "h2"))
	list, err = keys.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, list[0].LastUsed)

	ok, err := keys.DeleteOwned(ctx, list[0].ID, u.ID+1)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = keys.DeleteOwned(ctx, list[0].ID, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerificationCodes(t *testing.T) {
	ctx := context.Background()
	dbx := dbtest.New(t)
	codes := repository.NewVerificationRepository(dbx)
	u := createUser(t, dbx, "newbie")
	now := time.Now().UTC()

	require.NoError(t, codes.Issue(ctx, u.ID, "111111", now.Add(15*time.Minute)))
	require.NoError(t, codes.Issue(ctx, u.ID, "222222", now.Add(15*time.Minute)))

	// issuing a new code invalidates the previous one
	ok, err := codes.Consume(ctx, nil, u.ID, "111111", now)
	require.NoError(t, err)
	assert.False(t, ok)

	pending, err := codes.HasPending(ctx, u.ID, now)
	require.NoError(t, err)
	assert.True(t, pending)

	recent, err := codes.IssuedSince(ctx, u.ID, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, recent)

	// expired
	ok, err = codes.Consume(ctx, nil, u.ID, "222222", now.Add(16*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = codes.Consume(ctx, nil, u.ID, "222222", now)
	require.NoError(t, err)
	assert.True(t, ok)

	pending, err = codes.HasPending(ctx, u.ID, now)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestCaptionUsage(t *testing.T) {
	ctx := context.Background()
	dbx := dbtest.New(t)
	usage := repository.NewCaptionUsageRepository(dbx)
	u := createUser(t, dbx, "captioner")

	require.NoError(t, usage.Record(ctx, u.ID))
	require.NoError(t, usage.Record(ctx, u.ID))

	n, err := usage.CountSince(ctx, u.ID, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = usage.CountSince(ctx, u.ID, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxFetchAndMark(t *testing.T) {
	ctx := context.Background()
	dbx := dbtest.New(t)
	outbox := repository.NewOutboxRepository(dbx)

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, outbox.Insert(ctx, nil, "post", id, "artverse.events", []byte(`{"id":"`+id+`"}`)))
	}

	rows, err := outbox.FetchUnpublished(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	require.NoError(t, outbox.MarkPublished(ctx, []int64{rows[0].ID, rows[1].ID}))

	rows, err = outbox.FetchUnpublished(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "3", rows[0].AggregateID)

	require.NoError(t, outbox.IncrementAttempts(ctx, []int64{rows[0].ID}))
	require.NoError(t, outbox.IncrementAttempts(ctx, []int64{rows[0].ID}))

	// exhausted after max attempts
	rows, err = outbox.FetchUnpublished(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
