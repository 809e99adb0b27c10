package social_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/artverse/nova/internal/db/dbtest"
	"github.com/artverse/nova/internal/events"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/service/social"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc    *social.Service
	db     *sqlx.DB
	outbox *repository.OutboxRepositoryImpl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dbx := dbtest.New(t)
	outbox := repository.NewOutboxRepository(dbx)
	svc := social.New(dbx,
		repository.NewUsersRepository(dbx),
		repository.NewPostsRepository(dbx),
		repository.NewLikesRepository(),
		repository.NewCommentsRepository(dbx),
		repository.NewFollowsRepository(dbx),
		events.NewEmitter(outbox, ""),
		nil,
	)
	return &fixture{svc: svc, db: dbx, outbox: outbox}
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com", PasswordHash: "x", DisplayName: name}
	_, err := repository.NewUsersRepository(f.db).Create(context.Background(), nil, u)
	require.NoError(t, err)
	return u
}

func (f *fixture) eventTypes(t *testing.T) []model.EventType {
	t.Helper()
	rows, err := f.outbox.FetchUnpublished(context.Background(), 100, 10)
	require.NoError(t, err)
	out := make([]model.EventType, 0, len(rows))
	for _, r := range rows {
		var ev model.Event
		require.NoError(t, json.Unmarshal(r.Payload, &ev))
		out = append(out, ev.Type)
	}
	return out
}

func TestPostLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.user(t, "ana")
	bo := f.user(t, "bo")

	p, err := f.svc.CreatePost(ctx, &model.Post{UserID: ana.ID, MediaURL: "/uploads/a.png", Caption: "dawn"})
	require.NoError(t, err)
	assert.Equal(t, model.MediaImage, p.MediaType)
	assert.Equal(t, "ana", p.Username)

	liked, count, err := f.svc.ToggleLike(ctx, bo.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, int64(1), count)

	view, err := f.svc.Post(ctx, p.ID, bo.ID)
	require.NoError(t, err)
	assert.True(t, view.IsLiked)

	liked, count, err = f.svc.ToggleLike(ctx, bo.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Zero(t, count)

	_, _, err = f.svc.ToggleLike(ctx, bo.ID, 9999)
	assert.ErrorIs(t, err, social.ErrNotFound)

	c, err := f.svc.AddComment(ctx, bo.ID, p.ID, "  lovely  ")
	require.NoError(t, err)
	assert.Equal(t, "lovely", c.Text)
	assert.Equal(t, "bo", c.Username)

	_, err = f.svc.AddComment(ctx, bo.ID, 9999, "x")
	assert.ErrorIs(t, err, social.ErrNotFound)

	list, err := f.svc.Comments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, f.svc.DeleteComment(ctx, ana.ID, c.ID), social.ErrNotFound)
	require.NoError(t, f.svc.DeleteComment(ctx, bo.ID, c.ID))

	assert.ErrorIs(t, f.svc.DeletePost(ctx, bo.ID, p.ID), social.ErrNotFound)
	require.NoError(t, f.svc.DeletePost(ctx, ana.ID, p.ID))
	_, err = f.svc.Post(ctx, p.ID, 0)
	assert.ErrorIs(t, err, social.ErrNotFound)

	assert.Equal(t, []model.EventType{
		model.EventPostCreated,
		model.EventPostLiked,
		model.EventCommentCreated,
	}, f.eventTypes(t))
}

func TestFollowAndProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.user(t, "ana")
	bo := f.user(t, "bo")

	_, _, err := f.svc.ToggleFollow(ctx, ana.ID, "ana")
	assert.ErrorIs(t, err, social.ErrSelfFollow)
	_, _, err = f.svc.ToggleFollow(ctx, ana.ID, "ghost")
	assert.ErrorIs(t, err, social.ErrNotFound)

	following, followers, err := f.svc.ToggleFollow(ctx, ana.ID, "BO")
	require.NoError(t, err)
	assert.True(t, following)
	assert.Equal(t, int64(1), followers)

	u, stats, isFollowing, err := f.svc.Profile(ctx, "bo", ana.ID)
	require.NoError(t, err)
	assert.Equal(t, bo.ID, u.ID)
	assert.Equal(t, int64(1), stats.Followers)
	assert.True(t, isFollowing)

	_, _, isFollowing, err = f.svc.Profile(ctx, "bo", 0)
	require.NoError(t, err)
	assert.False(t, isFollowing)

	_, err = f.svc.CreatePost(ctx, &model.Post{UserID: bo.ID, MediaURL: "https://cdn/x.mp4", MediaType: model.MediaVideo, AIModel: "wan"})
	require.NoError(t, err)

	feed, err := f.svc.Feed(ctx, ana.ID, 1, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, model.MediaVideo, feed[0].MediaType)

	following, followers, err = f.svc.ToggleFollow(ctx, ana.ID, "bo")
	require.NoError(t, err)
	assert.False(t, following)
	assert.Zero(t, followers)

	feed, err = f.svc.Feed(ctx, ana.ID, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, feed)

	_, agent, err := f.svc.AgentProfile(ctx, bo.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), agent.AICreations)
	assert.Equal(t, int64(1), agent.PostCount)
}

func TestSearchAndUpdateProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ana := f.user(t, "ana")
	f.user(t, "anatole")
	f.user(t, "bo")

	got, err := f.svc.SearchUsers(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.svc.SearchUsers(ctx, "ana")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = f.svc.UpdateProfile(ctx, ana.ID, repository.ProfileUpdate{})
	assert.ErrorIs(t, err, social.ErrNothingToSet)

	bio := "painter of light"
	u, err := f.svc.UpdateProfile(ctx, ana.ID, repository.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, bio, u.Bio)
	assert.Equal(t, "ana", u.DisplayName)
}

func TestPage(t *testing.T) {
	l, off := social.Page(0, 0, 20, 100)
	assert.Equal(t, 20, l)
	assert.Equal(t, 0, off)

	l, off = social.Page(3, 10, 20, 100)
	assert.Equal(t, 10, l)
	assert.Equal(t, 20, off)

	l, _ = social.Page(1, 500, 20, 100)
	assert.Equal(t, 100, l)
}
