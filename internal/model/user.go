package model

import "time"

// User is the DB entity persisted in the users table.
type User struct {
	ID                     int64      `db:"id"`
	Username               string     `db:"username"`
	Email                  string     `db:"email"`
	PasswordHash           string     `db:"password_hash"`
	DisplayName            string     `db:"display_name"`
	Bio                    string     `db:"bio"`
	Avatar                 string     `db:"avatar"`
	Credits                int64      `db:"credits"`
	EmailVerified          bool       `db:"email_verified"`
	StripeCustomerID       *string    `db:"stripe_customer_id"` // nullable
	StripeConnectID        *string    `db:"stripe_connect_id"`  // nullable
	StripeConnectOnboarded bool       `db:"stripe_connect_onboarded"`
	SubscriptionID         *string    `db:"subscription_id"` // nullable
	SubscriptionStatus     string     `db:"subscription_status"`
	SubscriptionPeriodEnd  *time.Time `db:"subscription_period_end"`
	CreatedAt              time.Time  `db:"created_at"`
}

// UserStats are the follow/post counters shown on profiles.
type UserStats struct {
	PostCount int64 `db:"post_count" json:"postCount"`
	Followers int64 `db:"followers" json:"followers"`
	Following int64 `db:"following" json:"following"`
}

// UserSummary is the author block embedded in posts and comments.
type UserSummary struct {
	ID          int64  `db:"id" json:"id"`
	Username    string `db:"username" json:"username"`
	DisplayName string `db:"display_name" json:"displayName"`
	Avatar      string `db:"avatar" json:"avatar"`
}

// SubscriptionActive reports whether the user holds a live subscription.
func (u *User) SubscriptionActive() bool {
	return u.SubscriptionStatus == "active" || u.SubscriptionStatus == "trialing"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (u *User) CustomerID() string { return deref(u.StripeCustomerID) }
func (u *User) ConnectID() string  { return deref(u.StripeConnectID) }

// PublicUser is the account block returned by register and login.
type PublicUser struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	Bio           string `json:"bio"`
	Avatar        string `json:"avatar"`
	EmailVerified bool   `json:"emailVerified"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		Bio:           u.Bio,
		Avatar:        u.Avatar,
		EmailVerified: u.EmailVerified,
	}
}

// Me is the signed-in user's own profile.
type Me struct {
	PublicUser
	DisplayNameSnake string    `json:"display_name"`
	Credits          int64     `json:"credits"`
	CreatedAt        time.Time `json:"created_at"`
	UserStats
}

func (u *User) Me(stats UserStats) Me {
	return Me{
		PublicUser:       u.Public(),
		DisplayNameSnake: u.DisplayName,
		Credits:          u.Credits,
		CreatedAt:        u.CreatedAt,
		UserStats:        stats,
	}
}

// Profile is another user's public page.
type Profile struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Bio         string    `json:"bio"`
	Avatar      string    `json:"avatar"`
	CreatedAt   time.Time `json:"created_at"`
	IsFollowing bool      `json:"isFollowing"`
	UserStats
}

func (u *User) Profile(stats UserStats, following bool) Profile {
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Bio:         u.Bio,
		Avatar:      u.Avatar,
		CreatedAt:   u.CreatedAt,
		IsFollowing: following,
		UserStats:   stats,
	}
}
