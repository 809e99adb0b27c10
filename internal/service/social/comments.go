package social

import (
	"context"
	"errors"
	"strings"

	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/jmoiron/sqlx"
)

func (s *Service) Comments(ctx context.Context, postID int64) ([]model.CommentView, error) {
	return s.comments.ListByPost(ctx, postID)
}

// AddComment returns ErrNotFound when the post does not exist.
func (s *Service) AddComment(ctx context.Context, userID, postID int64, text string) (*model.CommentView, error) {
	text = strings.TrimSpace(text)
	var view *model.CommentView
	err := repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		owner, err := s.posts.OwnerOf(ctx, tx, postID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		c := &model.Comment{UserID: userID, PostID: postID, Text: text}
		id, err := s.comments.Insert(ctx, tx, c)
		if err != nil {
			return err
		}
		if view, err = s.comments.Get(ctx, tx, id); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, "comment", id, model.Event{
			Type:    model.EventCommentCreated,
			ActorID: userID,
			OwnerID: owner,
			Attrs:   postIDAttr(postID),
		})
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) DeleteComment(ctx context.Context, userID, commentID int64) error {
	ok, err := s.comments.DeleteOwned(ctx, commentID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
