package captions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artverse/nova/internal/caption"
	"github.com/artverse/nova/internal/metrics"
	"github.com/artverse/nova/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrMonthlyLimit     = errors.New("monthly caption limit reached")
	ErrImageRequired    = errors.New("image url is required")
	ErrSubscriptionNeed = errors.New("an active subscription is required")
)

type Usage struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

func newUsage(used, limit int) Usage {
	rem := limit - used
	if rem < 0 {
		rem = 0
	}
	return Usage{Used: used, Limit: limit, Remaining: rem}
}

type Status struct {
	Subscribed bool  `json:"subscribed"`
	Usage      Usage `json:"usage"`
}

type Options struct {
	MonthlyLimit int
	// RequireSubscription gates captions behind an active Stripe subscription.
	RequireSubscription bool
	// BaseURL prefixes relative /uploads/ paths so the model can fetch them.
	BaseURL string
}

type Service struct {
	usage     repository.CaptionUsageRepository
	users     repository.UsersRepository
	captioner caption.Captioner
	opts      Options
	log       *zap.Logger
	now       func() time.Time
}

func New(usage repository.CaptionUsageRepository, users repository.UsersRepository, c caption.Captioner, opts Options, log *zap.Logger) *Service {
	if opts.MonthlyLimit <= 0 {
		opts.MonthlyLimit = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{usage: usage, users: users, captioner: c, opts: opts, log: log, now: repository.Now}
}

func (s *Service) Limit() int { return s.opts.MonthlyLimit }

// monthStart is the first instant of the current calendar month in UTC.
func monthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (s *Service) used(ctx context.Context, userID int64) (int, error) {
	return s.usage.CountSince(ctx, userID, monthStart(s.now()))
}

func (s *Service) subscribed(ctx context.Context, userID int64) (bool, error) {
	if !s.opts.RequireSubscription {
		return true, nil
	}
	u, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return false, err
	}
	return u != nil && u.SubscriptionActive(), nil
}

func (s *Service) Status(ctx context.Context, userID int64) (Status, error) {
	sub, err := s.subscribed(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	used, err := s.used(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return Status{Subscribed: sub, Usage: newUsage(used, s.opts.MonthlyLimit)}, nil
}

// Generate captions imageURL and records one unit of usage on success.
// With ErrMonthlyLimit the returned usage reflects the exhausted quota.
func (s *Service) Generate(ctx context.Context, userID int64, imageURL string) (caption.Caption, Usage, error) {
	used, err := s.used(ctx, userID)
	if err != nil {
		return caption.Caption{}, Usage{}, err
	}
	if used >= s.opts.MonthlyLimit {
		metrics.CaptionsTotal.WithLabelValues("limited").Inc()
		return caption.Caption{}, newUsage(used, s.opts.MonthlyLimit), ErrMonthlyLimit
	}

	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return caption.Caption{}, Usage{}, ErrImageRequired
	}

	sub, err := s.subscribed(ctx, userID)
	if err != nil {
		return caption.Caption{}, Usage{}, err
	}
	if !sub {
		return caption.Caption{}, Usage{}, ErrSubscriptionNeed
	}

	out, err := s.captioner.Describe(ctx, s.absolute(imageURL))
	if err != nil {
		metrics.CaptionsTotal.WithLabelValues("failed").Inc()
		s.log.Warn("caption generation failed", zap.Int64("user_id", userID), zap.Error(err))
		return caption.Caption{}, Usage{}, fmt.Errorf("describe image: %w", err)
	}

	if err := s.usage.Record(ctx, userID); err != nil {
		return caption.Caption{}, Usage{}, err
	}
	metrics.CaptionsTotal.WithLabelValues("ok").Inc()
	return out, newUsage(used+1, s.opts.MonthlyLimit), nil
}

func (s *Service) absolute(u string) string {
	if strings.HasPrefix(u, "/uploads/") && s.opts.BaseURL != "" {
		return strings.TrimRight(s.opts.BaseURL, "/") + u
	}
	return u
}
