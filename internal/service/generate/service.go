package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/artverse/nova/internal/dispatcher"
	"github.com/artverse/nova/internal/events"
	"github.com/artverse/nova/internal/metrics"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/service/credits"
	"github.com/artverse/nova/internal/service/social"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("generation provider not configured")
	ErrEmptyPrompt   = errors.New("prompt is required")
)

// InsufficientCreditsError carries the balance and price for the 402 response.
type InsufficientCreditsError struct {
	Balance int64
	Cost    int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("not enough credits: have %d, need %d", e.Balance, e.Cost)
}

func (e *InsufficientCreditsError) Is(target error) bool {
	return target == credits.ErrInsufficientCredits
}

// Generator is satisfied by *dispatcher.Dispatcher.
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, req dispatcher.Request) (dispatcher.Result, error)
}

type Result struct {
	URL              string
	Kind             model.GenerationKind
	Model            string
	Prompt           string
	CreditsRemaining int64
}

type Service struct {
	credits  *credits.Service
	gen      Generator
	social   *social.Service
	events   *events.Emitter
	defaults map[model.GenerationKind]string
	log      *zap.Logger
}

func New(
	creditsSvc *credits.Service,
	gen Generator,
	socialSvc *social.Service,
	emitter *events.Emitter,
	imageModel, videoModel string,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if imageModel == "" {
		imageModel = DefaultImageModel
	}
	if videoModel == "" {
		videoModel = DefaultVideoModel
	}
	return &Service{
		credits:  creditsSvc,
		gen:      gen,
		social:   socialSvc,
		events:   emitter,
		defaults: map[model.GenerationKind]string{model.KindImage: imageModel, model.KindVideo: videoModel},
		log:      log,
	}
}

func (s *Service) Configured() bool { return s.gen != nil && s.gen.Configured() }

// Generate charges the user, runs the model and refunds when the provider fails.
// An unconfigured provider is reported before any credits move.
func (s *Service) Generate(ctx context.Context, userID int64, kind model.GenerationKind, prompt, modelID string) (Result, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Result{}, ErrEmptyPrompt
	}
	if !s.Configured() {
		return Result{}, ErrNotConfigured
	}
	if modelID = strings.TrimSpace(modelID); modelID == "" {
		modelID = s.defaults[kind]
	}

	balance, cost, err := s.credits.Charge(ctx, userID, kind)
	if errors.Is(err, credits.ErrInsufficientCredits) {
		metrics.GenerationsTotal.WithLabelValues(kind.String(), "insufficient").Inc()
		return Result{}, &InsufficientCreditsError{Balance: balance, Cost: cost}
	}
	if err != nil {
		return Result{}, err
	}

	res, err := s.gen.Generate(ctx, dispatcher.Request{Kind: kind, Model: modelID, Prompt: prompt})
	if err != nil {
		s.fail(ctx, userID, kind, modelID, cost, err)
		return Result{}, err
	}

	metrics.GenerationsTotal.WithLabelValues(kind.String(), "ok").Inc()
	if err := s.events.Emit(ctx, nil, "user", userID, model.Event{
		Type:    model.EventGenerationCompleted,
		ActorID: userID,
		OwnerID: userID,
		Attrs:   map[string]string{"kind": kind.String(), "model": modelID, "provider": res.Provider},
	}); err != nil {
		s.log.Warn("generation event not recorded", zap.Int64("user_id", userID), zap.Error(err))
	}

	return Result{
		URL:              res.URL,
		Kind:             kind,
		Model:            modelID,
		Prompt:           prompt,
		CreditsRemaining: balance,
	}, nil
}

// GenerateAndPost generates media and publishes it as a post; a failed post insert is refunded too.
func (s *Service) GenerateAndPost(ctx context.Context, userID int64, kind model.GenerationKind, prompt, modelID, caption string) (Result, *model.PostView, error) {
	res, err := s.Generate(ctx, userID, kind, prompt, modelID)
	if err != nil {
		return Result{}, nil, err
	}

	post, err := s.social.CreatePost(ctx, &model.Post{
		UserID:    userID,
		Caption:   caption,
		MediaURL:  res.URL,
		MediaType: model.MediaType(kind),
		AIModel:   res.Model,
		AIPrompt:  res.Prompt,
	})
	if err != nil {
		cost := model.CostOf(kind)
		if rerr := s.credits.Refund(ctx, userID, kind, cost); rerr != nil {
			s.log.Error("refund after post failure", zap.Int64("user_id", userID), zap.Error(rerr))
		}
		return Result{}, nil, fmt.Errorf("create post: %w", err)
	}
	return res, post, nil
}

func (s *Service) fail(ctx context.Context, userID int64, kind model.GenerationKind, modelID string, cost int64, cause error) {
	metrics.GenerationsTotal.WithLabelValues(kind.String(), "failed").Inc()
	s.log.Warn("generation failed",
		zap.Int64("user_id", userID),
		zap.String("kind", kind.String()),
		zap.String("model", modelID),
		zap.Error(cause),
	)

	// the request may already be cancelled; refunds must still land
	bg := context.WithoutCancel(ctx)
	if err := s.credits.Refund(bg, userID, kind, cost); err != nil {
		s.log.Error("generation refund failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	if err := s.events.Emit(bg, nil, "user", userID, model.Event{
		Type:    model.EventGenerationFailed,
		ActorID: userID,
		OwnerID: userID,
		Attrs:   map[string]string{"kind": kind.String(), "model": modelID},
	}); err != nil {
		s.log.Warn("generation event not recorded", zap.Int64("user_id", userID), zap.Error(err))
	}
}
