package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/artverse/nova/internal/db/dbtest"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertPost(t *testing.T, dbx *sqlx.DB, userID int64, at time.Time) int64 {
	t.Helper()
	id, err := repository.NewPostsRepository(dbx).Insert(context.Background(), nil, &model.Post{
		UserID: userID, MediaURL: "/uploads/p.png", MediaType: model.MediaImage, CreatedAt: at,
	})
	require.NoError(t, err)
	return id
}

func TestPostsFeedAndExplore(t *testing.T) {
	ctx := context.Background()
	dbx := dbtest.New(t)
	posts := repository.NewPostsRepository(dbx)

	me := createUser(t, dbx, "me")
	friend := createUser(t, dbx, "friend")
	stranger := createUser(t, dbx, "stranger")

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	mine := insertPost(t, dbx, me.ID, base)
	theirs := insertPost(t, dbx, friend.ID, base.Add(time.Minute))
	other := insertPost(t, dbx, stranger.ID, base.Add(2*time.Minute))

	_, err := repository.NewFollowsRepository(dbx).Toggle(ctx, nil, me.ID, friend.ID)
	require.NoError(t, err)

	feed, err := posts.Feed(ctx, me.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, theirs, feed[0].ID)
	assert.Equal(t, mine, feed[1].ID)
	assert.Equal(t, "friend", feed[0].Username)

	explore, err := posts.Explore(ctx, 0, 30, 0)
	require.NoError(t, err)
	require.Len(t, explore, 3)
	assert.Equal(t, other, explore[0].ID)

	page, err := posts.Explore(ctx, 0, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, theirs, page[0].ID)
}

func TestPostsLikesCountsAndOwnership(t *testing.T) {
	ctx := context.Background()
	dbx := dbtest.New(t)
	posts := repository.NewPostsRepository(dbx)
	likes := repository.NewLikesRepository()

	author := createUser(t, dbx, "author")
	fan := createUser(t, dbx, "fan")
	id := insertPost(t, dbx, author.ID, time.Time{})

	var liked bool
	require.NoError(t, repository.InTx(ctx, dbx, func(tx *sqlx.Tx) error {
		var err error
		liked, err = likes.Toggle(ctx, tx, fan.ID, id)
		return err
	}))
	assert.True(t, liked)

	_, err := repository.NewCommentsRepository(dbx).Insert(ctx, nil, &model.Comment{UserID: fan.ID, PostID: id, Text: "wow"})
	require.NoError(t, err)

	view, err := posts.Get(ctx, id, fan.ID)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, int64(1), view.LikeCount)
	assert.Equal(t, int64(1), view.CommentCount)
	assert.True(t, view.IsLiked)

	anon, err := posts.Get(ctx, id, 0)
	require.NoError(t, err)
	assert.False(t, anon.IsLiked)

	f := view.Format()
	assert.Equal(t, "author", f.User.Username)
	assert.Equal(t, model.MediaImage, f.MediaType)

	require.NoError(t, repository.InTx(ctx, dbx, func(tx *sqlx.Tx) error {
		var err error
		liked, err = likes.Toggle(ctx, tx, fan.ID, id)
		return err
	}))
	assert.False(t, liked)

	ok, err := posts.DeleteOwned(ctx, nil, id, fan.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = posts.DeleteOwned(ctx, nil, id, author.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	gone, err := posts.Get(ctx, id, 0)
	require.NoError(t, err)
	assert.Nil(t, gone)

	_, err = posts.OwnerOf(ctx, nil, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCommentsOrderAndDelete(t *testing.T) {
	ctx := context.Background()
	dbx := dbtest.New(t)
	comments := repository.NewCommentsRepository(dbx)

	u := createUser(t, dbx, "writer")
	other := createUser(t, dbx, "reader")
	postID := insertPost(t, dbx, u.ID, time.Time{})

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	first := &model.Comment{UserID: u.ID, PostID: postID, Text: "first", CreatedAt: base}
	second := &model.Comment{UserID: other.ID, PostID: postID, Text: "second", CreatedAt: base.Add(time.Second)}
	_, err := comments.Insert(ctx, nil, second)
	require.NoError(t, err)
	_, err = comments.Insert(ctx, nil, first)
	require.NoError(t, err)

	list, err := comments.ListByPost(ctx, postID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Text)
	assert.Equal(t, "reader", list[1].Username)

	ok, err := comments.DeleteOwned(ctx, first.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = comments.DeleteOwned(ctx, first.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPostsMediaReferenced(t *testing.T) {
	ctx := context.Background()
	dbx := dbtest.New(t)
	posts := repository.NewPostsRepository(dbx)
	users := repository.NewUsersRepository(dbx)

	u := createUser(t, dbx, "framed")
	id := insertPost(t, dbx, u.ID, time.Now())

	used, err := posts.MediaReferenced(ctx, "/uploads/p.png")
	require.NoError(t, err)
	assert.True(t, used)

	ok, err := posts.DeleteOwned(ctx, nil, id, u.ID)
	require.NoError(t, err)
	require.True(t, ok)
	used, err = posts.MediaReferenced(ctx, "/uploads/p.png")
	require.NoError(t, err)
	assert.False(t, used)

	avatar := "/uploads/avatar-me.png"
	require.NoError(t, users.UpdateProfile(ctx, u.ID, repository.ProfileUpdate{Avatar: &avatar}))
	used, err = posts.MediaReferenced(ctx, avatar)
	require.NoError(t, err)
	assert.True(t, used)
}
