package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/artverse/nova/internal/caption"
	"github.com/artverse/nova/internal/config"
	"github.com/artverse/nova/internal/email"
	"github.com/artverse/nova/internal/events"
	"github.com/artverse/nova/internal/http/middleware"
	"github.com/artverse/nova/internal/metrics"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/payments"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/service/auth"
	"github.com/artverse/nova/internal/service/billing"
	"github.com/artverse/nova/internal/service/captions"
	"github.com/artverse/nova/internal/service/credits"
	"github.com/artverse/nova/internal/service/generate"
	"github.com/artverse/nova/internal/service/social"
	"github.com/artverse/nova/internal/storage"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const mb = 1 << 20

// Externals are the third-party clients the server talks to. Nil or unconfigured
// clients make the routes that need them answer 503.
type Externals struct {
	Payments  payments.Gateway
	Generator generate.Generator
	Captioner caption.Captioner
	Mailer    email.Sender
}

type Server struct {
	e    *echo.Echo
	auth *auth.Service
}

// NewServer wires repositories, services and routes. ch and rds may be nil.
func NewServer(cfg config.Config, db, ch *sqlx.DB, rds *redis.Client, ext Externals, zl *zap.Logger) (*Server, error) {
	if zl == nil {
		zl = zap.NewNop()
	}
	if ext.Payments == nil {
		ext.Payments = payments.NewStripeGateway("", "", cfg.Stripe.Currency)
	}
	if ext.Captioner == nil {
		ext.Captioner = caption.NewOpenAICaptioner("", cfg.OpenAI.Model, "")
	}

	// repos (sqlite/mysql)
	usersRepo := repository.NewUsersRepository(db)
	keysRepo := repository.NewAPIKeysRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)
	postsRepo := repository.NewPostsRepository(db)
	commentsRepo := repository.NewCommentsRepository(db)
	followsRepo := repository.NewFollowsRepository(db)
	tipsRepo := repository.NewTipsRepository(db)
	withdrawalsRepo := repository.NewWithdrawalsRepository(db)
	captionUsageRepo := repository.NewCaptionUsageRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	// repos (ClickHouse)
	var chEvents repository.CHEventsRepository
	if ch != nil {
		chEvents = repository.NewCHEventsRepository(ch)
	}

	uploads, err := storage.NewUploads(cfg.HTTP.UploadsDir)
	if err != nil {
		return nil, fmt.Errorf("uploads: %w", err)
	}

	// services
	emitter := events.NewEmitter(outboxRepo, cfg.Kafka.Topic)
	authSvc := auth.New(db, usersRepo, keysRepo, verificationRepo, ext.Mailer, cfg.Auth, zl.Named("auth"))
	socialSvc := social.New(db, usersRepo, postsRepo, repository.NewLikesRepository(), commentsRepo, followsRepo, emitter, zl.Named("social"))
	creditsSvc := credits.New(db, repository.NewWalletRepository(), repository.NewLedgerRepository(), emitter, zl.Named("credits"))
	generateSvc := generate.New(creditsSvc, ext.Generator, socialSvc, emitter,
		cfg.Replicate.ImageModel, cfg.Replicate.VideoModel, zl.Named("generate"))
	billingSvc := billing.New(db, usersRepo, tipsRepo, withdrawalsRepo, creditsSvc, ext.Payments, emitter,
		billing.Options{
			ClientURL:          cfg.App.ClientURL,
			Currency:           cfg.Stripe.Currency,
			PlatformFeePercent: cfg.Stripe.PlatformFeePercent,
			SubscriptionPrice:  cfg.Stripe.SubscriptionPriceID,
		}, zl.Named("billing"))
	captionSvc := captions.New(captionUsageRepo, usersRepo, ext.Captioner, captions.Options{
		MonthlyLimit:        cfg.OpenAI.MonthlyCaptionLimit,
		RequireSubscription: cfg.OpenAI.RequireSubscription,
		BaseURL:             cfg.App.BaseURL,
	}, zl.Named("captions"))

	// echo
	e := echo.New()
	e.HideBanner = true
	if cfg.App.Production() {
		e.Logger.SetLevel(log.WARN)
		log.SetLevel(log.WARN)
	} else {
		e.Logger.SetLevel(log.INFO)
		log.SetLevel(log.INFO)
	}
	origins := cfg.HTTP.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(
		echoMid.Recover(),
		echoMid.Logger(),
		echoMid.CORSWithConfig(echoMid.CORSConfig{
			AllowOrigins: origins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-API-Key"},
		}),
		spaMiddleware(cfg.HTTP.ClientDist),
	)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	// API-key callers are limited on every route that identifies them; sessions skip the limiter
	tokens := authSvc.Tokens()
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:agent:",
		Window:         cfg.RateLimit.Window,
		RetryAfterHint: true,
	})
	authMW := chain(middleware.Authenticate(tokens, authSvc), rlMW)
	optMW := chain(middleware.OptionalAuth(tokens, authSvc), rlMW)
	loginLimit := middleware.NewIPLimiter(cfg.Auth.LoginRPS, cfg.Auth.LoginBurst).Middleware()

	maxUpload := cfg.HTTP.MaxUploadMB * mb
	maxAvatar := cfg.HTTP.MaxAvatarMB * mb
	// the body cap leaves room for multipart framing; storage enforces the exact file size
	uploadBody := echoMid.BodyLimit(fmt.Sprintf("%dM", cfg.HTTP.MaxUploadMB+1))
	avatarBody := echoMid.BodyLimit(fmt.Sprintf("%dM", cfg.HTTP.MaxAvatarMB+1))

	// routes
	e.Static(strings.TrimSuffix(storage.URLPrefix, "/"), cfg.HTTP.UploadsDir)
	api := e.Group("/api")
	api.GET("/docs", docsHandler(cfg.HTTP.DocsPath))

	a := api.Group("/auth")
	a.POST("/register", registerHandler(authSvc), loginLimit)
	a.POST("/login", loginHandler(authSvc), loginLimit)
	a.POST("/verify-email", verifyEmailHandler(authSvc), authMW)
	a.POST("/resend-code", resendCodeHandler(authSvc), authMW)
	a.GET("/me", meHandler(authSvc), authMW)
	a.POST("/api-key", createAPIKeyHandler(authSvc), authMW)
	a.GET("/api-keys", listAPIKeysHandler(authSvc), authMW)
	a.DELETE("/api-key/:id", deleteAPIKeyHandler(authSvc), authMW)

	p := api.Group("/posts")
	p.POST("", createPostHandler(socialSvc, uploads, maxUpload), authMW, uploadBody)
	p.GET("/feed", feedHandler(socialSvc), authMW)
	p.GET("/explore", exploreHandler(socialSvc), optMW)
	p.GET("/:id", getPostHandler(socialSvc), optMW)
	p.POST("/:id/like", likeHandler(socialSvc, "id"), authMW)
	p.DELETE("/:id", deletePostHandler(socialSvc, uploads, false), authMW)

	u := api.Group("/users")
	u.GET("/search", searchUsersHandler(socialSvc))
	u.PUT("/profile/update", updateProfileHandler(socialSvc, uploads, maxAvatar), authMW, avatarBody)
	u.GET("/:username", profileHandler(socialSvc), optMW)
	u.GET("/:username/posts", userPostsHandler(socialSvc), optMW)
	u.POST("/:username/follow", followHandler(socialSvc, false), authMW)

	cm := api.Group("/comments")
	cm.GET("/:postId", listCommentsHandler(socialSvc))
	cm.POST("/:postId", addCommentHandler(socialSvc, false), authMW)
	cm.DELETE("/:id", deleteCommentHandler(socialSvc), authMW)

	g := api.Group("/generate")
	g.GET("/models", modelsHandler())
	g.POST("/image", generateHandler(generateSvc, model.KindImage), authMW)
	g.POST("/video", generateHandler(generateSvc, model.KindVideo), authMW)

	ag := api.Group("/agent", authMW)
	ag.POST("/create", agentCreateHandler(socialSvc))
	ag.POST("/generate-and-post", agentGenerateAndPostHandler(generateSvc))
	ag.GET("/me", agentMeHandler(socialSvc))
	ag.GET("/creations", agentCreationsHandler(socialSvc))
	ag.DELETE("/creations/:id", deletePostHandler(socialSvc, uploads, true))
	ag.POST("/like/:postId", likeHandler(socialSvc, "postId"))
	ag.POST("/comment/:postId", addCommentHandler(socialSvc, true))
	ag.POST("/follow/:username", followHandler(socialSvc, true))
	ag.GET("/analytics", agentAnalyticsHandler(chEvents))

	b := api.Group("/billing")
	b.GET("/packs", packsHandler())
	b.GET("/tips-received/:username", tipsReceivedHandler(billingSvc))
	b.POST("/webhook", webhookHandler(billingSvc))
	b.GET("/credits", creditsHandler(billingSvc), authMW)
	b.POST("/checkout/credits", checkoutCreditsHandler(billingSvc), authMW)
	b.POST("/checkout/tip", checkoutTipHandler(billingSvc), authMW)
	b.POST("/checkout/subscription", checkoutSubscriptionHandler(billingSvc), authMW)
	b.POST("/verify-session", verifySessionHandler(billingSvc), authMW)
	b.GET("/subscription", subscriptionHandler(billingSvc), authMW)
	b.POST("/portal", portalHandler(billingSvc), authMW)
	b.GET("/history", historyHandler(billingSvc), authMW)
	b.GET("/connect/status", connectStatusHandler(billingSvc), authMW)
	b.POST("/connect/onboard", connectOnboardHandler(billingSvc), authMW)
	b.POST("/connect/verify", connectVerifyHandler(billingSvc), authMW)
	b.GET("/connect/dashboard", connectDashboardHandler(billingSvc), authMW)
	b.GET("/earnings", earningsHandler(billingSvc), authMW)
	b.POST("/withdraw", withdrawHandler(billingSvc), authMW)

	cp := api.Group("/caption", authMW)
	cp.GET("/status", captionStatusHandler(captionSvc))
	cp.POST("/generate", captionGenerateHandler(captionSvc))

	return &Server{e: e, auth: authSvc}, nil
}

// chain runs outer first, then inner, then the handler.
func chain(outer, inner echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc { return outer(inner(next)) }
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	log.Infof("http: listening on %s", addr)
	return s.e.Start(addr)
}

// Shutdown drains HTTP traffic, then waits for background verification emails.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.e.Shutdown(ctx)
	s.auth.Wait()
	return err
}
