package model

import "time"

type TipStatus string

const (
	TipPending   TipStatus = "pending"
	TipCompleted TipStatus = "completed"
	TipFailed    TipStatus = "failed"
)

type Tip struct {
	ID              int64     `db:"id" json:"id"`
	TipperID        int64     `db:"tipper_id" json:"tipper_id"`
	ArtistID        int64     `db:"artist_id" json:"artist_id"`
	AmountCents     int64     `db:"amount_cents" json:"amount_cents"`
	Currency        string    `db:"currency" json:"currency"`
	Message         string    `db:"message" json:"message"`
	StripeSessionID *string   `db:"stripe_session_id" json:"stripe_session_id"`
	Status          TipStatus `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ReceivedTip is a completed tip joined with the tipper's name.
type ReceivedTip struct {
	AmountCents    int64     `db:"amount_cents" json:"amount_cents"`
	Message        string    `db:"message" json:"message"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	TipperUsername string    `db:"tipper_username" json:"tipper_username"`
	TipperName     string    `db:"tipper_name" json:"tipper_name"`
}

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
)

type Withdrawal struct {
	ID               int64            `db:"id" json:"id"`
	UserID           int64            `db:"user_id" json:"user_id"`
	AmountCents      int64            `db:"amount_cents" json:"amount_cents"`
	PlatformFeeCents int64            `db:"platform_fee_cents" json:"platform_fee_cents"`
	NetAmountCents   int64            `db:"net_amount_cents" json:"net_amount_cents"`
	StripeTransferID *string          `db:"stripe_transfer_id" json:"stripe_transfer_id"`
	Status           WithdrawalStatus `db:"status" json:"status"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	CompletedAt      *time.Time       `db:"completed_at" json:"completed_at"`
}
