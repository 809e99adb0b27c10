package social

import (
	"context"
	"strings"

	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/jmoiron/sqlx"
)

// SearchUsers returns no results for a blank query.
func (s *Service) SearchUsers(ctx context.Context, q string) ([]model.UserSummary, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []model.UserSummary{}, nil
	}
	return s.users.Search(ctx, q, 20)
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, p repository.ProfileUpdate) (*model.User, error) {
	if p.Empty() {
		return nil, ErrNothingToSet
	}
	if err := s.users.UpdateProfile(ctx, userID, p); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *Service) userByName(ctx context.Context, username string) (*model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// Profile returns the user, their counters and whether viewerID follows them.
func (s *Service) Profile(ctx context.Context, username string, viewerID int64) (*model.User, model.UserStats, bool, error) {
	u, err := s.userByName(ctx, username)
	if err != nil {
		return nil, model.UserStats{}, false, err
	}
	stats, err := s.users.Stats(ctx, u.ID)
	if err != nil {
		return nil, model.UserStats{}, false, err
	}
	following := false
	if viewerID != 0 && viewerID != u.ID {
		if following, err = s.follows.IsFollowing(ctx, viewerID, u.ID); err != nil {
			return nil, model.UserStats{}, false, err
		}
	}
	return u, stats, following, nil
}

func (s *Service) UserPosts(ctx context.Context, username string, viewerID int64, page, limit int) ([]model.PostView, error) {
	u, err := s.userByName(ctx, username)
	if err != nil {
		return nil, err
	}
	l, off := Page(page, limit, 100, 100)
	return s.posts.ListByUser(ctx, u.ID, viewerID, l, off)
}

// ToggleFollow flips followerID's follow of username and returns the target's follower count.
func (s *Service) ToggleFollow(ctx context.Context, followerID int64, username string) (following bool, followers int64, err error) {
	target, err := s.userByName(ctx, username)
	if err != nil {
		return false, 0, err
	}
	if target.ID == followerID {
		return false, 0, ErrSelfFollow
	}

	err = repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if following, err = s.follows.Toggle(ctx, tx, followerID, target.ID); err != nil {
			return err
		}
		if followers, err = s.follows.CountFollowers(ctx, tx, target.ID); err != nil {
			return err
		}
		if !following {
			return nil
		}
		return s.events.Emit(ctx, tx, "user", target.ID, model.Event{
			Type:    model.EventUserFollowed,
			ActorID: followerID,
			OwnerID: target.ID,
		})
	})
	return following, followers, err
}

// AgentStats are the counters shown on the agent dashboard.
type AgentStats struct {
	model.UserStats
	AICreations int64
}

func (s *Service) AgentProfile(ctx context.Context, userID int64) (*model.User, AgentStats, error) {
	u, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, AgentStats{}, err
	}
	if u == nil {
		return nil, AgentStats{}, ErrNotFound
	}
	stats, err := s.users.Stats(ctx, userID)
	if err != nil {
		return nil, AgentStats{}, err
	}
	ai, err := s.posts.CountAIByUser(ctx, userID)
	if err != nil {
		return nil, AgentStats{}, err
	}
	return u, AgentStats{UserStats: stats, AICreations: ai}, nil
}
