package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artverse/nova/internal/model"
	"github.com/replicate/replicate-go"
)

// Request describes one media generation.
type Request struct {
	Kind   model.GenerationKind
	Model  string
	Prompt string
}

type Provider interface {
	Name() string
	Ready() bool
	Acquire() bool
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrEmptyOutput is returned when a prediction succeeds without a media URL.
var ErrEmptyOutput = errors.New("generation returned no output")

type runFunc func(ctx context.Context, identifier string, input replicate.PredictionInput) (replicate.PredictionOutput, error)

// ReplicateProvider runs predictions through the Replicate API behind a MicroBreaker.
type ReplicateProvider struct {
	run     runFunc
	timeout time.Duration
	br      *MicroBreaker
}

var _ Provider = (*ReplicateProvider)(nil)

func NewReplicateProvider(token string, timeout time.Duration, failThreshold, openForMs int) (*ReplicateProvider, error) {
	client, err := replicate.NewClient(replicate.WithToken(token))
	if err != nil {
		return nil, fmt.Errorf("replicate client: %w", err)
	}
	run := func(ctx context.Context, identifier string, input replicate.PredictionInput) (replicate.PredictionOutput, error) {
		return client.Run(ctx, identifier, input, nil)
	}
	return newReplicateProvider(run, timeout, failThreshold, openForMs), nil
}

func newReplicateProvider(run runFunc, timeout time.Duration, failThreshold, openForMs int) *ReplicateProvider {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ReplicateProvider{
		run:     run,
		timeout: timeout,
		br:      NewMicroBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

func (p *ReplicateProvider) Name() string  { return "replicate" }
func (p *ReplicateProvider) Ready() bool   { return p.br.Ready() }
func (p *ReplicateProvider) Acquire() bool { return p.br.TryAcquire() }

func (p *ReplicateProvider) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.run(ctx, req.Model, inputFor(req))
	if err != nil {
		p.br.OnFailure()
		return "", fmt.Errorf("replicate %s: %w", req.Model, err)
	}

	url := firstURL(out)
	if url == "" {
		p.br.OnFailure()
		return "", ErrEmptyOutput
	}

	p.br.OnSuccess()
	return url, nil
}

// inputFor builds the model input; image models get a single output.
func inputFor(req Request) replicate.PredictionInput {
	in := replicate.PredictionInput{"prompt": req.Prompt}
	if req.Kind == model.KindImage {
		in["num_outputs"] = 1
	}
	return in
}

// firstURL accepts either a single URL or a list of URLs.
func firstURL(out replicate.PredictionOutput) string {
	switch v := out.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				return s
			}
		}
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
