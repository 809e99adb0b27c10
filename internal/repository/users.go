package repository

import (
	"context"
	"strings"
	"time"

	"github.com/artverse/nova/internal/model"
	"github.com/jmoiron/sqlx"
)

const userColumns = `
	id, username, email, password_hash, display_name, bio, avatar, credits,
	email_verified, stripe_customer_id, stripe_connect_id, stripe_connect_onboarded,
	subscription_id, subscription_status, subscription_period_end, created_at`

// ProfileUpdate carries the optional fields of a profile edit; nil means unchanged.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	Avatar      *string
}

func (p ProfileUpdate) Empty() bool {
	return p.DisplayName == nil && p.Bio == nil && p.Avatar == nil
}

type SubscriptionUpdate struct {
	SubscriptionID string
	Status         string
	PeriodEnd      *time.Time
}

type UsersRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, u *model.User) (int64, error)
	GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error)
	Search(ctx context.Context, q string, limit int) ([]model.UserSummary, error)
	UpdateProfile(ctx context.Context, id int64, p ProfileUpdate) error
	Stats(ctx context.Context, id int64) (model.UserStats, error)
	SetEmailVerified(ctx context.Context, tx *sqlx.Tx, id int64) error
	SetStripeCustomerID(ctx context.Context, id int64, customerID string) error
	SetConnectID(ctx context.Context, id int64, connectID string) error
	SetConnectOnboarded(ctx context.Context, id int64) error
	UpdateSubscription(ctx context.Context, tx *sqlx.Tx, id int64, s SubscriptionUpdate) error
	LockForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) error
}

type UsersRepositoryImpl struct {
	db *sqlx.DB
}

func NewUsersRepository(db *sqlx.DB) *UsersRepositoryImpl {
	return &UsersRepositoryImpl{db: db}
}

var _ UsersRepository = (*UsersRepositoryImpl)(nil)

// Create inserts a user; username and email are stored lowercase.
func (r *UsersRepositoryImpl) Create(ctx context.Context, tx *sqlx.Tx, u *model.User) (int64, error) {
	const q = `
		INSERT INTO users
		    (username, email, password_hash, display_name, bio, avatar, credits, email_verified, subscription_status, created_at)
		VALUES
		    (?,        ?,     ?,             ?,            ?,   ?,      ?,       ?,              '',                  ?)
	`
	if u.CreatedAt.IsZero() {
		u.CreatedAt = Now()
	}
	u.Username = strings.ToLower(u.Username)
	u.Email = strings.ToLower(u.Email)

	res, err := pick(r.db, tx).ExecContext(ctx, q,
		u.Username, u.Email, u.PasswordHash, u.DisplayName, u.Bio, u.Avatar, u.Credits, u.EmailVerified, u.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

func (r *UsersRepositoryImpl) getOne(ctx context.Context, ex Execer, where string, args ...any) (*model.User, error) {
	var u model.User
	err := ex.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE `+where+` LIMIT 1`, args...)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UsersRepositoryImpl) GetByID(ctx context.Context, tx *sqlx.Tx, id int64) (*model.User, error) {
	return r.getOne(ctx, pick(r.db, tx), `id = ?`, id)
}

func (r *UsersRepositoryImpl) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, r.db, `username = ?`, strings.ToLower(strings.TrimSpace(username)))
}

// GetByLogin matches either the username or the email, case-insensitively.
func (r *UsersRepositoryImpl) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	l := strings.ToLower(strings.TrimSpace(login))
	return r.getOne(ctx, r.db, `username = ? OR email = ?`, l, l)
}

func (r *UsersRepositoryImpl) GetByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	return r.getOne(ctx, r.db, `stripe_customer_id = ?`, customerID)
}

func (r *UsersRepositoryImpl) UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`,
		strings.ToLower(username), strings.ToLower(email),
	)
	return n > 0, err
}

// Search matches username or display name by substring.
func (r *UsersRepositoryImpl) Search(ctx context.Context, q string, limit int) ([]model.UserSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	pattern := "%" + q + "%"
	out := []model.UserSummary{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, username, display_name, avatar
		  FROM users
		 WHERE username LIKE ? OR display_name LIKE ?
		 ORDER BY username
		 LIMIT ?
	`, pattern, pattern, limit)
	return out, err
}

func (r *UsersRepositoryImpl) UpdateProfile(ctx context.Context, id int64, p ProfileUpdate) error {
	if p.Empty() {
		return nil
	}
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if p.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *p.DisplayName)
	}
	if p.Bio != nil {
		sets = append(sets, "bio = ?")
		args = append(args, *p.Bio)
	}
	if p.Avatar != nil {
		sets = append(sets, "avatar = ?")
		args = append(args, *p.Avatar)
	}
	args = append(args, id)

	_, err := r.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

func (r *UsersRepositoryImpl) Stats(ctx context.Context, id int64) (model.UserStats, error) {
	var s model.UserStats
	err := r.db.GetContext(ctx, &s, `
		SELECT
		    (SELECT COUNT(*) FROM posts   WHERE user_id      = ?) AS post_count,
		    (SELECT COUNT(*) FROM follows WHERE following_id = ?) AS followers,
		    (SELECT COUNT(*) FROM follows WHERE follower_id  = ?) AS following
	`, id, id, id)
	return s, err
}

func (r *UsersRepositoryImpl) SetEmailVerified(ctx context.Context, tx *sqlx.Tx, id int64) error {
	_, err := pick(r.db, tx).ExecContext(ctx, `UPDATE users SET email_verified = 1 WHERE id = ?`, id)
	return err
}

func (r *UsersRepositoryImpl) SetStripeCustomerID(ctx context.Context, id int64, customerID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET stripe_customer_id = ? WHERE id = ?`, customerID, id)
	return err
}

func (r *UsersRepositoryImpl) SetConnectID(ctx context.Context, id int64, connectID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET stripe_connect_id = ? WHERE id = ?`, connectID, id)
	return err
}

func (r *UsersRepositoryImpl) SetConnectOnboarded(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET stripe_connect_onboarded = 1 WHERE id = ?`, id)
	return err
}

func (r *UsersRepositoryImpl) UpdateSubscription(ctx context.Context, tx *sqlx.Tx, id int64, s SubscriptionUpdate) error {
	var subID *string
	if s.SubscriptionID != "" {
		subID = &s.SubscriptionID
	}
	_, err := pick(r.db, tx).ExecContext(ctx, `
		UPDATE users
		   SET subscription_id = ?, subscription_status = ?, subscription_period_end = ?
		 WHERE id = ?
	`, subID, s.Status, s.PeriodEnd, id)
	return err
}

// LockForUpdate holds the user's row until tx ends so balance checks that follow
// see every earlier writer. SQLite has no row locks; the no-op update takes the
// database write lock instead.
func (r *UsersRepositoryImpl) LockForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) error {
	if r.db.DriverName() == "mysql" {
		var got int64
		err := tx.GetContext(ctx, &got, `SELECT id FROM users WHERE id = ? FOR UPDATE`, id)
		if noRows(err) {
			return ErrNotFound
		}
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE users SET credits = credits WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
