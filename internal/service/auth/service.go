package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artverse/nova/internal/config"
	"github.com/artverse/nova/internal/email"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/util"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrTaken              = errors.New("username or email already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrCooldown           = errors.New("verification code requested too recently")
)

const defaultKeyName = "default"

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// Service owns accounts, sessions, verification codes and API keys.
type Service struct {
	db           *sqlx.DB
	users        repository.UsersRepository
	keys         repository.APIKeysRepository
	verification repository.VerificationRepository
	mailer       email.Sender
	tokens       *Tokens
	cfg          config.AuthConfig
	log          *zap.Logger

	now func() time.Time
	wg  sync.WaitGroup
}

func New(
	db *sqlx.DB,
	users repository.UsersRepository,
	keys repository.APIKeysRepository,
	verification repository.VerificationRepository,
	mailer email.Sender,
	cfg config.AuthConfig,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 15 * time.Minute
	}
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = time.Minute
	}
	return &Service{
		db:           db,
		users:        users,
		keys:         keys,
		verification: verification,
		mailer:       mailer,
		tokens:       NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		cfg:          cfg,
		log:          log,
		now:          repository.Now,
	}
}

func (s *Service) Tokens() *Tokens { return s.tokens }

// Register creates the account, signs a session token and mails a verification code in the background.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, string, error) {
	taken, err := s.users.UsernameOrEmailTaken(ctx, in.Username, in.Email)
	if err != nil {
		return nil, "", err
	}
	if taken {
		return nil, "", ErrTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = in.Username
	}
	u := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		DisplayName:  display,
	}
	if _, err := s.users.Create(ctx, nil, u); err != nil {
		// lost a race against a concurrent signup
		if taken, terr := s.users.UsernameOrEmailTaken(ctx, in.Username, in.Email); terr == nil && taken {
			return nil, "", ErrTaken
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, "", err
	}

	s.sendCodeAsync(u.ID, u.Email)
	return u, token, nil
}

// Login accepts a username or an email. Unverified users without a live code get a fresh one.
func (s *Service) Login(ctx context.Context, login, password string) (*model.User, string, error) {
	u, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, "", err
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, "", err
	}

	if !u.EmailVerified {
		pending, err := s.verification.HasPending(ctx, u.ID, s.now())
		if err != nil {
			s.log.Warn("pending code lookup failed", zap.Int64("user_id", u.ID), zap.Error(err))
		} else if !pending {
			s.sendCodeAsync(u.ID, u.Email)
		}
	}
	return u, token, nil
}

// VerifyEmail consumes code; already reports that the account was verified before this call.
func (s *Service) VerifyEmail(ctx context.Context, userID int64, code string) (already bool, err error) {
	u, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, ErrUserNotFound
	}
	if u.EmailVerified {
		return true, nil
	}

	err = repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		ok, err := s.verification.Consume(ctx, tx, userID, strings.TrimSpace(code), s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidCode
		}
		return s.users.SetEmailVerified(ctx, tx, userID)
	})
	return false, err
}

// ResendCode mails a new code unless one was issued within the cooldown.
func (s *Service) ResendCode(ctx context.Context, userID int64) (u *model.User, already bool, err error) {
	u, err = s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, false, err
	}
	if u == nil {
		return nil, false, ErrUserNotFound
	}
	if u.EmailVerified {
		return u, true, nil
	}

	recent, err := s.verification.IssuedSince(ctx, userID, s.now().Add(-s.cfg.ResendCooldown))
	if err != nil {
		return nil, false, err
	}
	if recent {
		return nil, false, ErrCooldown
	}

	if err := s.issueAndSend(ctx, userID, u.Email); err != nil {
		return nil, false, err
	}
	return u, false, nil
}

func (s *Service) Me(ctx context.Context, userID int64) (*model.User, model.UserStats, error) {
	u, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, model.UserStats{}, err
	}
	if u == nil {
		return nil, model.UserStats{}, ErrUserNotFound
	}
	stats, err := s.users.Stats(ctx, userID)
	if err != nil {
		return nil, model.UserStats{}, err
	}
	return u, stats, nil
}

// CreateAPIKey returns the plaintext key once; only its hash is stored.
func (s *Service) CreateAPIKey(ctx context.Context, userID int64, name string) (string, *model.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultKeyName
	}
	key, err := util.NewAPIKey()
	if err != nil {
		return "", nil, fmt.Errorf("generate api key: %w", err)
	}
	k := &model.APIKey{
		UserID:    userID,
		KeyHash:   util.HashAPIKey(key),
		KeyPrefix: util.DisplayPrefix(key),
		Name:      name,
	}
	if err := s.keys.Replace(ctx, k); err != nil {
		return "", nil, err
	}
	return key, k, nil
}

func (s *Service) ListAPIKeys(ctx context.Context, userID int64) ([]model.APIKey, error) {
	return s.keys.ListByUser(ctx, userID)
}

func (s *Service) DeleteAPIKey(ctx context.Context, userID, id int64) (bool, error) {
	return s.keys.DeleteOwned(ctx, id, userID)
}

// ResolveAPIKey returns the owner of key (0 when unknown) and stamps last_used.
func (s *Service) ResolveAPIKey(ctx context.Context, key string) (int64, error) {
	if !util.LooksLikeAPIKey(key) {
		return 0, nil
	}
	hash := util.HashAPIKey(key)
	userID, err := s.keys.UserIDByHash(ctx, hash)
	if err != nil || userID == 0 {
		return 0, err
	}
	if err := s.keys.Touch(ctx, hash); err != nil {
		s.log.Warn("api key touch failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	return userID, nil
}

func (s *Service) issueAndSend(ctx context.Context, userID int64, to string) error {
	code, err := util.NewVerificationCode()
	if err != nil {
		return fmt.Errorf("verification code: %w", err)
	}
	if err := s.verification.Issue(ctx, userID, code, s.now().Add(s.cfg.VerificationTTL)); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendVerification(ctx, to, code); err != nil {
		s.log.Error("verification email failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	return nil
}

// sendCodeAsync detaches from the request so a slow mail server never blocks signup.
func (s *Service) sendCodeAsync(userID int64, to string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.issueAndSend(ctx, userID, to); err != nil {
			s.log.Error("verification code not issued", zap.Int64("user_id", userID), zap.Error(err))
		}
	}()
}

// Wait blocks until background verification emails are done.
func (s *Service) Wait() { s.wg.Wait() }
