package entity

import (
	"database/sql"
	"time"

	"github.com/rafflehub/backend/pkg/enum"
	"github.com/shopspring/decimal"
)

type RaffleStatusType string

var (
	RaffleStatusDraft      = enum.New(RaffleStatusType("draft"))
	RaffleStatusSubmitting = enum.New(RaffleStatusType("submitting"))
	RaffleStatusOpen       = enum.New(RaffleStatusType("open"))
	RaffleStatusFull       = enum.New(RaffleStatusType("full"))
	RaffleStatusDrawing    = enum.New(RaffleStatusType("drawing"))
	RaffleStatusCompleted  = enum.New(RaffleStatusType("completed"))
	RaffleStatusCancelled  = enum.New(RaffleStatusType("cancelled"))
)

// IsTerminal reports whether no further status change is permitted.
func (s RaffleStatusType) IsTerminal() bool {
	return s == RaffleStatusCompleted || s == RaffleStatusCancelled
}

type Raffle struct {
	Base

	// ChainID is the raffle id assigned by the contract. It stays null until
	// the RaffleCreated event is observed and is assigned exactly once.
	ChainID sql.NullInt64 `gorm:"unique"`

	SellerID string
	Seller   User `gorm:"foreignKey:SellerID"`

	ItemID string
	Item   Item `gorm:"foreignKey:ItemID"`

	TotalBoxes      int
	BoxPrice        decimal.Decimal `gorm:"type:decimal(32,18)"`
	TotalWinners    int
	BoxesSold       int
	GridRows        int
	GridCols        int
	MaxBoxesPerUser int

	Status RaffleStatusType

	// CreateTxID references the local chain transaction that carries the
	// createRaffle call. RaffleCreated events are matched back to the raffle
	// through this transaction's hash.
	CreateTxID   sql.NullString
	CancelReason string
	CompletedAt  sql.NullTime
}

type BoxPurchase struct {
	Base

	RaffleID string `gorm:"index:idx_box_purchases_raffle_box,unique"`
	Raffle   Raffle `gorm:"foreignKey:RaffleID"`

	BoxNumber int `gorm:"index:idx_box_purchases_raffle_box,unique"`

	BuyerID string
	Buyer   User `gorm:"foreignKey:BuyerID"`

	PricePaid   decimal.Decimal `gorm:"type:decimal(32,18)"`
	LocalTxID   string
	ChainTxHash string

	// RefundedFor holds the id of the credit entry issued when this purchase
	// was refunded. The unique index makes the refund at-most-once.
	RefundedFor sql.NullString `gorm:"unique"`
}

type RaffleWinner struct {
	Base

	RaffleID string `gorm:"index:idx_raffle_winners_raffle_position,unique"`
	Raffle   Raffle `gorm:"foreignKey:RaffleID"`

	UserID string
	User   User `gorm:"foreignKey:UserID"`

	// Position is the order the winner appeared in the WinnerSelected event.
	Position   int `gorm:"index:idx_raffle_winners_raffle_position,unique"`
	RandomSeed string
	WonAt      time.Time
}
