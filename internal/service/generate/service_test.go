package generate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/artverse/nova/internal/db/dbtest"
	"github.com/artverse/nova/internal/dispatcher"
	"github.com/artverse/nova/internal/events"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/service/credits"
	"github.com/artverse/nova/internal/service/generate"
	"github.com/artverse/nova/internal/service/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGen struct {
	configured bool
	err        error
	reqs       []dispatcher.Request
}

func (f *fakeGen) Configured() bool { return f.configured }

func (f *fakeGen) Generate(_ context.Context, req dispatcher.Request) (dispatcher.Result, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return dispatcher.Result{}, f.err
	}
	return dispatcher.Result{URL: "https://replicate.delivery/" + string(req.Kind), Provider: "fake"}, nil
}

type fixture struct {
	svc     *generate.Service
	credits *credits.Service
	gen     *fakeGen
	userID  int64
}

func newFixture(t *testing.T, gen *fakeGen, startCredits int64) *fixture {
	t.Helper()
	dbx := dbtest.New(t)
	ctx := context.Background()
	emitter := events.NewEmitter(repository.NewOutboxRepository(dbx), "")

	users := repository.NewUsersRepository(dbx)
	u := &model.User{Username: "maker", Email: "maker@example.com", PasswordHash: "x"}
	_, err := users.Create(ctx, nil, u)
	require.NoError(t, err)

	creditSvc := credits.New(dbx, repository.NewWalletRepository(), repository.NewLedgerRepository(), emitter, nil)
	if startCredits > 0 {
		require.NoError(t, creditSvc.Grant(ctx, u.ID, startCredits, "welcome"))
	}
	socialSvc := social.New(dbx, users,
		repository.NewPostsRepository(dbx),
		repository.NewLikesRepository(),
		repository.NewCommentsRepository(dbx),
		repository.NewFollowsRepository(dbx),
		emitter, nil,
	)
	svc := generate.New(creditSvc, gen, socialSvc, emitter, "", "", nil)
	return &fixture{svc: svc, credits: creditSvc, gen: gen, userID: u.ID}
}

func TestGenerateImage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGen{configured: true}, 3)

	res, err := f.svc.Generate(ctx, f.userID, model.KindImage, " a red fox ", "")
	require.NoError(t, err)
	assert.Equal(t, "https://replicate.delivery/image", res.URL)
	assert.Equal(t, generate.DefaultImageModel, res.Model)
	assert.Equal(t, "a red fox", res.Prompt)
	assert.Equal(t, int64(2), res.CreditsRemaining)
	require.Len(t, f.gen.reqs, 1)
	assert.Equal(t, model.KindImage, f.gen.reqs[0].Kind)
}

func TestGenerateNotConfiguredChargesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGen{configured: false}, 3)

	_, err := f.svc.Generate(ctx, f.userID, model.KindImage, "fox", "")
	assert.ErrorIs(t, err, generate.ErrNotConfigured)

	bal, err := f.credits.Balance(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), bal)
}

func TestGenerateInsufficient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGen{configured: true}, 2)

	_, err := f.svc.Generate(ctx, f.userID, model.KindVideo, "waves", "")
	require.ErrorIs(t, err, credits.ErrInsufficientCredits)

	var ice *generate.InsufficientCreditsError
	require.True(t, errors.As(err, &ice))
	assert.Equal(t, int64(2), ice.Balance)
	assert.Equal(t, int64(5), ice.Cost)
	assert.Empty(t, f.gen.reqs)
}

func TestGenerateFailureRefunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGen{configured: true, err: errors.New("model crashed")}, 5)

	_, err := f.svc.Generate(ctx, f.userID, model.KindVideo, "waves", "minimax/video-01")
	assert.ErrorContains(t, err, "model crashed")

	bal, err := f.credits.Balance(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bal)

	hist, err := f.credits.History(ctx, f.userID, 10)
	require.NoError(t, err)
	var refunds int
	for _, h := range hist {
		if h.Type == model.TxRefund {
			refunds++
			assert.Equal(t, int64(5), h.Amount)
			assert.Equal(t, "Video generation failed - refund", h.Description)
		}
	}
	assert.Equal(t, 1, refunds)
}

func TestGenerateAndPost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeGen{configured: true}, 5)

	res, post, err := f.svc.GenerateAndPost(ctx, f.userID, model.KindVideo, "waves", "", "sea")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.CreditsRemaining)
	assert.Equal(t, model.MediaVideo, post.MediaType)
	assert.Equal(t, generate.DefaultVideoModel, post.AIModel)
	assert.Equal(t, "waves", post.AIPrompt)
	assert.Equal(t, "sea", post.Caption)
}

func TestGenerateEmptyPrompt(t *testing.T) {
	f := newFixture(t, &fakeGen{configured: true}, 1)
	_, err := f.svc.Generate(context.Background(), f.userID, model.KindImage, "  ", "")
	assert.ErrorIs(t, err, generate.ErrEmptyPrompt)
}
