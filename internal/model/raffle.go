package model

import "time"

type CreateRaffleRequest struct {
	SellerID        string `json:"seller_id"`
	ItemID          string `json:"item_id"`
	TotalBoxes      int    `json:"total_boxes"`
	BoxPrice        string `json:"box_price"`
	TotalWinners    int    `json:"total_winners"`
	GridRows        int    `json:"grid_rows"`
	GridCols        int    `json:"grid_cols"`
	MaxBoxesPerUser int    `json:"max_boxes_per_user"`
}

type CreateRaffleResponse struct {
	RaffleID  string `json:"raffle_id"`
	LocalTxID string `json:"local_tx_id"`
}

type PurchaseBoxesRequest struct {
	UserID     string `json:"user_id"`
	RaffleID   string `json:"raffle_id"`
	BoxNumbers []int  `json:"box_numbers"`
}

type PurchaseBoxesResponse struct {
	LocalTxID  string `json:"local_tx_id"`
	TotalPrice string `json:"total_price"`
}

type CancelRaffleRequest struct {
	ActorID  string `json:"actor_id"`
	RaffleID string `json:"raffle_id"`
	Reason   string `json:"reason"`
}

type CancelRaffleResponse struct {
	LocalTxID string `json:"local_tx_id"`
}

type ClaimRefundRequest struct {
	UserID   string `json:"user_id"`
	RaffleID string `json:"raffle_id"`
}

type ClaimRefundResponse struct {
	LocalTxID string `json:"local_tx_id"`
}

type RequestDrawRequest struct {
	ActorID  string `json:"actor_id"`
	RaffleID string `json:"raffle_id"`
}

type RequestDrawResponse struct {
	LocalTxID string `json:"local_tx_id"`
}

type RaffleWinnerView struct {
	UserID   string `json:"user_id"`
	Position int    `json:"position"`
}

type RaffleView struct {
	ID              string             `json:"id"`
	ChainID         int64              `json:"chain_id,omitempty"`
	SellerID        string             `json:"seller_id"`
	ItemID          string             `json:"item_id"`
	TotalBoxes      int                `json:"total_boxes"`
	BoxPrice        string             `json:"box_price"`
	TotalWinners    int                `json:"total_winners"`
	BoxesSold       int                `json:"boxes_sold"`
	GridRows        int                `json:"grid_rows"`
	GridCols        int                `json:"grid_cols"`
	MaxBoxesPerUser int                `json:"max_boxes_per_user"`
	Status          string             `json:"status"`
	CancelReason    string             `json:"cancel_reason,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	Winners         []RaffleWinnerView `json:"winners,omitempty"`
}

type GetRaffleRequest struct {
	RaffleID string `json:"raffle_id"`
}

type GetRaffleResponse struct {
	Raffle RaffleView `json:"raffle"`
}

type TxStatusRequest struct {
	LocalTxID string `json:"local_tx_id"`
}

type TxStatusResponse struct {
	LocalTxID     string `json:"local_tx_id"`
	Hash          string `json:"hash,omitempty"`
	State         string `json:"state"`
	Attempts      int    `json:"attempts"`
	Confirmations uint64 `json:"confirmations"`
}
