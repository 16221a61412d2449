package entity

import (
	"database/sql"
	"time"

	"github.com/rafflehub/backend/pkg/enum"
	"github.com/shopspring/decimal"
)

type CreditSourceType string

var (
	CreditSourceDeposit    = enum.New(CreditSourceType("deposit"))
	CreditSourceRefund     = enum.New(CreditSourceType("refund"))
	CreditSourceBonus      = enum.New(CreditSourceType("bonus"))
	CreditSourceRaffleLoss = enum.New(CreditSourceType("raffle_loss"))
)

type CreditKindType string

var (
	CreditKindGeneral    = enum.New(CreditKindType("general"))
	CreditKindItemScoped = enum.New(CreditKindType("item_scoped"))
)

type CreditEntryType string

var (
	CreditEntryIssue  = enum.New(CreditEntryType("issue"))
	CreditEntryRedeem = enum.New(CreditEntryType("redeem"))
	CreditEntryExpire = enum.New(CreditEntryType("expire"))
)

// CreditLot is an indivisible unit of issued credit. Amount never changes
// after issuance; Remaining is decreased by redemptions and zeroed by expiry.
type CreditLot struct {
	Base

	UserID string `gorm:"index"`
	User   User   `gorm:"foreignKey:UserID"`

	Amount    decimal.Decimal `gorm:"type:decimal(32,18)"`
	Remaining decimal.Decimal `gorm:"type:decimal(32,18)"`

	Source CreditSourceType
	Kind   CreditKindType

	// ItemID is set only for item_scoped lots.
	ItemID    sql.NullString
	ExpiresAt sql.NullTime
}

// Live reports whether the lot can still be redeemed at the given time.
func (l *CreditLot) Live(now time.Time) bool {
	if !l.Remaining.IsPositive() {
		return false
	}

	return !l.ExpiresAt.Valid || l.ExpiresAt.Time.After(now)
}

// CreditEntry is the append-only ledger row written for every credit
// movement. IdempotencyKey is set on compensating issuances; its unique index
// prevents a refund from being issued twice for the same cause.
type CreditEntry struct {
	Base

	LotID string
	Lot   CreditLot `gorm:"foreignKey:LotID"`

	UserID string `gorm:"index"`

	Delta          decimal.Decimal `gorm:"type:decimal(32,18)"`
	Type           CreditEntryType
	Reason         string
	IdempotencyKey sql.NullString `gorm:"unique"`
}
