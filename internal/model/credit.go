package model

import "time"

type IssueCreditRequest struct {
	UserID string `json:"user_id"`

	// Amount is a positive decimal string.
	Amount string `json:"amount"`

	Source string `json:"source"`
	Kind   string `json:"kind"`

	// ItemID is required when kind is item_scoped.
	ItemID    string     `json:"item_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Reason    string     `json:"reason"`
}

type IssueCreditResponse struct {
	LotID string `json:"lot_id"`
}

type RedeemCreditRequest struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`

	// ItemID narrows the redemption scope to one item. Empty means any scope;
	// item-scoped lots then do not participate.
	ItemID string `json:"item_id,omitempty"`
	Reason string `json:"reason"`
}

type RedeemCreditResponse struct {
	LotsTouched   []string `json:"lots_touched"`
	TotalRedeemed string   `json:"total_redeemed"`
}

type CreditBalanceRequest struct {
	UserID string `json:"user_id"`
	ItemID string `json:"item_id,omitempty"`
}

type CreditBalanceResponse struct {
	Available string `json:"available"`
}

// DepositEvent is published by the payments service once a deposit is final.
// DepositID keys the idempotent issuance.
type DepositEvent struct {
	DepositID string `json:"deposit_id"`
	UserID    string `json:"user_id"`
	Amount    string `json:"amount"`
}
