// Package social implements posts, likes, comments and follows.
package social

import (
	"errors"

	"github.com/artverse/nova/internal/events"
	"github.com/artverse/nova/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrSelfFollow   = errors.New("cannot follow yourself")
	ErrNothingToSet = errors.New("nothing to update")
)

type Service struct {
	db       *sqlx.DB
	users    repository.UsersRepository
	posts    repository.PostsRepository
	likes    repository.LikesRepository
	comments repository.CommentsRepository
	follows  repository.FollowsRepository
	events   *events.Emitter
	log      *zap.Logger
}

func New(
	db *sqlx.DB,
	users repository.UsersRepository,
	posts repository.PostsRepository,
	likes repository.LikesRepository,
	comments repository.CommentsRepository,
	follows repository.FollowsRepository,
	emitter *events.Emitter,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:       db,
		users:    users,
		posts:    posts,
		likes:    likes,
		comments: comments,
		follows:  follows,
		events:   emitter,
		log:      log,
	}
}

// Page turns a 1-based page number into limit/offset, applying def when limit is unset.
func Page(page, limit, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}
