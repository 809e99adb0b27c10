package model

import "time"

type TxType string

const (
	TxPurchase TxType = "purchase"
	TxUsage    TxType = "usage"
	TxBonus    TxType = "bonus"
	TxRefund   TxType = "refund"
)

func (t TxType) String() string { return string(t) }

// CreditTransaction is one row of the credit ledger; amount is signed.
type CreditTransaction struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Amount          int64     `db:"amount" json:"amount"`
	Type            TxType    `db:"type" json:"type"`
	Description     string    `db:"description" json:"description"`
	StripeSessionID *string   `db:"stripe_session_id" json:"stripe_session_id"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type GenerationKind string

const (
	KindImage GenerationKind = "image"
	KindVideo GenerationKind = "video"
)

func (k GenerationKind) String() string { return string(k) }

// GenerationCosts is the credit price of one generation per kind.
var GenerationCosts = map[GenerationKind]int64{
	KindImage: 1,
	KindVideo: 5,
}

// CostOf falls back to 1 credit for unknown kinds.
func CostOf(k GenerationKind) int64 {
	if c, ok := GenerationCosts[k]; ok {
		return c
	}
	return 1
}

type CreditPack struct {
	ID          string `json:"id"`
	Credits     int64  `json:"credits"`
	PriceCents  int64  `json:"price_cents"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var CreditPacks = []CreditPack{
	{ID: "starter", Credits: 50, PriceCents: 499, Label: "50 credits", Description: "Starter Pack"},
	{ID: "popular", Credits: 200, PriceCents: 1499, Label: "200 credits", Description: "Popular Pack"},
	{ID: "pro", Credits: 500, PriceCents: 2999, Label: "500 credits", Description: "Pro Pack"},
}

func FindPack(id string) (CreditPack, bool) {
	for _, p := range CreditPacks {
		if p.ID == id {
			return p, true
		}
	}
	return CreditPack{}, false
}

type TipAmount struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount_cents"`
	Label       string `json:"label"`
}

var TipAmounts = []TipAmount{
	{ID: "tip_2", AmountCents: 200, Label: "$2"},
	{ID: "tip_5", AmountCents: 500, Label: "$5"},
	{ID: "tip_10", AmountCents: 1000, Label: "$10"},
	{ID: "tip_25", AmountCents: 2500, Label: "$25"},
}

func FindTipAmount(id string) (TipAmount, bool) {
	for _, t := range TipAmounts {
		if t.ID == id {
			return t, true
		}
	}
	return TipAmount{}, false
}

const (
	MinCustomTipCents  = 100
	MaxCustomTipCents  = 50000
	MinWithdrawalCents = 100
)
