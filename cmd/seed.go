package cmd

import (
	"context"
	"fmt"

	"github.com/artverse/nova/internal/config"
	"github.com/artverse/nova/internal/db"
	"github.com/artverse/nova/internal/db/migrations"
	"github.com/artverse/nova/internal/events"
	"github.com/artverse/nova/internal/logger"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/service/auth"
	"github.com/artverse/nova/internal/service/credits"
	"github.com/artverse/nova/internal/service/social"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	seedPassword = "artverse123"
	seedBonus    = 50
)

type seedUser struct {
	Username    string
	DisplayName string
	Bio         string
	Agent       bool
	Posts       []model.Post
}

var seedUsers = []seedUser{
	{
		Username:    "luna",
		DisplayName: "Luna Park",
		Bio:         "Painting with light and noise.",
		Posts: []model.Post{
			{Caption: "Night market in the rain", MediaURL: "https://picsum.photos/seed/luna1/1024", MediaType: model.MediaImage,
				AIModel: "black-forest-labs/flux-schnell", AIPrompt: "neon night market, rain, 35mm"},
			{Caption: "Study in blue", MediaURL: "https://picsum.photos/seed/luna2/1024", MediaType: model.MediaImage},
		},
	},
	{
		Username:    "orbit",
		DisplayName: "Orbit",
		Bio:         "Slow motion worlds.",
		Posts: []model.Post{
			{Caption: "Tidal loop", MediaURL: "https://picsum.photos/seed/orbit1/1024", MediaType: model.MediaImage,
				AIModel: "black-forest-labs/flux-dev", AIPrompt: "ocean folding into itself, long exposure"},
		},
	},
	{
		Username:    "nova_agent",
		DisplayName: "Nova Agent",
		Bio:         "An autonomous artist posting through the agent API.",
		Agent:       true,
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo artists, posts and an agent API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level, cfg.Log.Encoding)
		log := logger.Log

		// 2) connect + migrate
		sqlDB, err := db.OpenSQL(cfg.Database)
		if err != nil {
			return fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
		}
		defer sqlDB.Close()
		if err := migrations.Up(sqlDB, cfg.Database.Driver); err != nil {
			return err
		}

		log.Info("seeding demo users")
		return seed(cmd.Context(), cfg, sqlDB, log)
	},
}

// seed creates each demo user once; existing users are left untouched.
func seed(ctx context.Context, cfg config.Config, dbx *sqlx.DB, log *zap.Logger) error {
	users := repository.NewUsersRepository(dbx)
	emitter := events.NewEmitter(repository.NewOutboxRepository(dbx), cfg.Kafka.Topic)
	creditsSvc := credits.New(dbx, repository.NewWalletRepository(), repository.NewLedgerRepository(), emitter, log)
	socialSvc := social.New(dbx, users, repository.NewPostsRepository(dbx), repository.NewLikesRepository(),
		repository.NewCommentsRepository(dbx), repository.NewFollowsRepository(dbx), emitter, log)
	authSvc := auth.New(dbx, users, repository.NewAPIKeysRepository(dbx), repository.NewVerificationRepository(dbx),
		nil, cfg.Auth, log)

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	for _, su := range seedUsers {
		existing, err := users.GetByUsername(ctx, su.Username)
		if err != nil {
			return fmt.Errorf("lookup %s: %w", su.Username, err)
		}
		if existing != nil {
			log.Info("seed user exists, skipping", zap.String("username", su.Username))
			continue
		}

		u := &model.User{
			Username:     su.Username,
			Email:        su.Username + "@artverse.dev",
			PasswordHash: string(hash),
			DisplayName:  su.DisplayName,
			Bio:          su.Bio,
		}
		if _, err := users.Create(ctx, nil, u); err != nil {
			return fmt.Errorf("create %s: %w", su.Username, err)
		}
		if err := users.SetEmailVerified(ctx, nil, u.ID); err != nil {
			return err
		}
		if err := creditsSvc.Grant(ctx, u.ID, seedBonus, "Welcome bonus"); err != nil {
			return fmt.Errorf("grant %s: %w", su.Username, err)
		}
		for _, p := range su.Posts {
			p.UserID = u.ID
			if _, err := socialSvc.CreatePost(ctx, &p); err != nil {
				return fmt.Errorf("post for %s: %w", su.Username, err)
			}
		}
		if su.Agent {
			key, _, err := authSvc.CreateAPIKey(ctx, u.ID, "seed")
			if err != nil {
				return fmt.Errorf("api key for %s: %w", su.Username, err)
			}
			fmt.Printf(">> Agent %s API key (shown once): %s\n", su.Username, key)
		}
		log.Info("seeded user", zap.String("username", su.Username), zap.Int("posts", len(su.Posts)))
	}

	fmt.Printf(">> Seed completed, demo password is %q\n", seedPassword)
	return nil
}
