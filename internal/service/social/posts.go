package social

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CreatePost stores p and its post.created event atomically.
func (s *Service) CreatePost(ctx context.Context, p *model.Post) (*model.PostView, error) {
	if !p.MediaType.Valid() {
		p.MediaType = model.MediaImage
	}
	err := repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := s.posts.Insert(ctx, tx, p); err != nil {
			return fmt.Errorf("insert post: %w", err)
		}
		attrs := map[string]string{"media_type": p.MediaType.String()}
		if p.AIModel != "" {
			attrs["ai_model"] = p.AIModel
		}
		return s.events.Emit(ctx, tx, "post", p.ID, model.Event{
			Type:    model.EventPostCreated,
			ActorID: p.UserID,
			OwnerID: p.UserID,
			Attrs:   attrs,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Post(ctx, p.ID, p.UserID)
}

func (s *Service) Post(ctx context.Context, id, viewerID int64) (*model.PostView, error) {
	v, err := s.posts.Get(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *Service) Feed(ctx context.Context, userID int64, page, limit int) ([]model.PostView, error) {
	l, off := Page(page, limit, 20, 100)
	return s.posts.Feed(ctx, userID, l, off)
}

func (s *Service) Explore(ctx context.Context, viewerID int64, page, limit int) ([]model.PostView, error) {
	l, off := Page(page, limit, 30, 100)
	return s.posts.Explore(ctx, viewerID, l, off)
}

// ToggleLike flips the viewer's like and returns the new state with the post's like count.
func (s *Service) ToggleLike(ctx context.Context, userID, postID int64) (liked bool, count int64, err error) {
	err = repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		owner, err := s.posts.OwnerOf(ctx, tx, postID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if liked, err = s.likes.Toggle(ctx, tx, userID, postID); err != nil {
			return err
		}
		if count, err = s.likes.Count(ctx, tx, postID); err != nil {
			return err
		}
		if !liked {
			return nil
		}
		return s.events.Emit(ctx, tx, "post", postID, model.Event{
			Type:    model.EventPostLiked,
			ActorID: userID,
			OwnerID: owner,
		})
	})
	return liked, count, err
}

// DeletePost removes a post owned by userID; anything else is ErrNotFound.
func (s *Service) DeletePost(ctx context.Context, userID, postID int64) error {
	ok, err := s.posts.DeleteOwned(ctx, nil, postID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Creations lists the user's own posts for the agent surface.
func (s *Service) Creations(ctx context.Context, userID int64, limit, offset int) ([]model.PostView, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.posts.ListByUser(ctx, userID, userID, limit, offset)
}

// MediaReleased reports whether nothing references url any more, so its file can go.
// Lookup errors keep the file.
func (s *Service) MediaReleased(ctx context.Context, url string) bool {
	used, err := s.posts.MediaReferenced(ctx, url)
	if err != nil {
		s.log.Warn("media reference check failed", zap.String("url", url), zap.Error(err))
		return false
	}
	return !used
}

func postIDAttr(id int64) map[string]string {
	return map[string]string{"post_id": strconv.FormatInt(id, 10)}
}
