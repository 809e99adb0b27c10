package repository

import (
	"context"

	"github.com/artverse/nova/internal/model"
	"github.com/jmoiron/sqlx"
)

// postSelect takes the viewer id as its first argument; 0 means anonymous.
const postSelect = `
	SELECT p.id, p.user_id, p.caption, p.media_url, p.media_type, p.ai_model, p.ai_prompt, p.created_at,
	       u.username, u.display_name, u.avatar,
	       (SELECT COUNT(*) FROM likes    l WHERE l.post_id = p.id) AS like_count,
	       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
	       (SELECT COUNT(*) FROM likes   lv WHERE lv.post_id = p.id AND lv.user_id = ?) > 0 AS is_liked
	  FROM posts p
	  JOIN users u ON u.id = p.user_id
`

// PostsRepository defines persistence for the posts table.
type PostsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, p *model.Post) (int64, error)
	Get(ctx context.Context, id, viewerID int64) (*model.PostView, error)
	Exists(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error)
	OwnerOf(ctx context.Context, tx *sqlx.Tx, id int64) (int64, error)
	Feed(ctx context.Context, userID int64, limit, offset int) ([]model.PostView, error)
	Explore(ctx context.Context, viewerID int64, limit, offset int) ([]model.PostView, error)
	ListByUser(ctx context.Context, userID, viewerID int64, limit, offset int) ([]model.PostView, error)
	DeleteOwned(ctx context.Context, tx *sqlx.Tx, id, ownerID int64) (bool, error)
	CountAIByUser(ctx context.Context, userID int64) (int64, error)
	MediaReferenced(ctx context.Context, url string) (bool, error)
}

type PostsRepositoryImpl struct {
	db *sqlx.DB
}

func NewPostsRepository(db *sqlx.DB) *PostsRepositoryImpl {
	return &PostsRepositoryImpl{db: db}
}

var _ PostsRepository = (*PostsRepositoryImpl)(nil)

func (r *PostsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, p *model.Post) (int64, error) {
	const q = `
		INSERT INTO posts
		    (user_id, caption, media_url, media_type, ai_model, ai_prompt, created_at)
		VALUES
		    (?,       ?,       ?,         ?,          ?,        ?,         ?)
	`
	if p.CreatedAt.IsZero() {
		p.CreatedAt = Now()
	}
	var id int64
	err := withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q,
			p.UserID, p.Caption, p.MediaURL, p.MediaType.String(), p.AIModel, p.AIPrompt, p.CreatedAt,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

func (r *PostsRepositoryImpl) Get(ctx context.Context, id, viewerID int64) (*model.PostView, error) {
	var v model.PostView
	err := r.db.GetContext(ctx, &v, postSelect+` WHERE p.id = ?`, viewerID, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *PostsRepositoryImpl) Exists(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error) {
	var n int
	err := pick(r.db, tx).GetContext(ctx, &n, `SELECT COUNT(*) FROM posts WHERE id = ?`, id)
	return n > 0, err
}

// OwnerOf returns the author id, or ErrNotFound.
func (r *PostsRepositoryImpl) OwnerOf(ctx context.Context, tx *sqlx.Tx, id int64) (int64, error) {
	var owner int64
	err := pick(r.db, tx).GetContext(ctx, &owner, `SELECT user_id FROM posts WHERE id = ?`, id)
	if noRows(err) {
		return 0, ErrNotFound
	}
	return owner, err
}

// Feed lists the user's own posts and those of accounts they follow, newest first.
func (r *PostsRepositoryImpl) Feed(ctx context.Context, userID int64, limit, offset int) ([]model.PostView, error) {
	out := []model.PostView{}
	err := r.db.SelectContext(ctx, &out, postSelect+`
		WHERE p.user_id = ?
		   OR p.user_id IN (SELECT following_id FROM follows WHERE follower_id = ?)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ? OFFSET ?
	`, userID, userID, userID, limit, offset)
	return out, err
}

func (r *PostsRepositoryImpl) Explore(ctx context.Context, viewerID int64, limit, offset int) ([]model.PostView, error) {
	out := []model.PostView{}
	err := r.db.SelectContext(ctx, &out, postSelect+`
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ? OFFSET ?
	`, viewerID, limit, offset)
	return out, err
}

func (r *PostsRepositoryImpl) ListByUser(ctx context.Context, userID, viewerID int64, limit, offset int) ([]model.PostView, error) {
	out := []model.PostView{}
	err := r.db.SelectContext(ctx, &out, postSelect+`
		WHERE p.user_id = ?
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ? OFFSET ?
	`, viewerID, userID, limit, offset)
	return out, err
}

// DeleteOwned removes the post only when ownerID wrote it.
func (r *PostsRepositoryImpl) DeleteOwned(ctx context.Context, tx *sqlx.Tx, id, ownerID int64) (bool, error) {
	res, err := pick(r.db, tx).ExecContext(ctx, `DELETE FROM posts WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostsRepositoryImpl) CountAIByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts WHERE user_id = ? AND ai_model != ''`, userID)
	return n, err
}

// MediaReferenced reports whether any post or avatar still points at url.
func (r *PostsRepositoryImpl) MediaReferenced(ctx context.Context, url string) (bool, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `
		SELECT (SELECT COUNT(*) FROM posts WHERE media_url = ?)
		     + (SELECT COUNT(*) FROM users WHERE avatar = ?)
	`, url, url)
	return n > 0, err
}
