package model

import "time"

// APIKey is a hashed agent credential; the plaintext is never stored.
type APIKey struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"-"`
	KeyHash   string     `db:"key_hash" json:"-"`
	KeyPrefix string     `db:"key_prefix" json:"key_prefix"`
	Name      string     `db:"name" json:"name"`
	LastUsed  *time.Time `db:"last_used" json:"last_used"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
