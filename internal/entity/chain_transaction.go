package entity

import (
	"database/sql"
	"time"

	"github.com/rafflehub/backend/pkg/enum"
)

type ChainTransactionStateType string

var (
	ChainTransactionStatePending   = enum.New(ChainTransactionStateType("pending"))
	ChainTransactionStateSubmitted = enum.New(ChainTransactionStateType("submitted"))
	ChainTransactionStateConfirmed = enum.New(ChainTransactionStateType("confirmed"))
	ChainTransactionStateFailed    = enum.New(ChainTransactionStateType("failed"))
	ChainTransactionStateDropped   = enum.New(ChainTransactionStateType("dropped"))
	ChainTransactionStateReplaced  = enum.New(ChainTransactionStateType("replaced"))
)

func (s ChainTransactionStateType) IsTerminal() bool {
	switch s {
	case ChainTransactionStateConfirmed, ChainTransactionStateFailed,
		ChainTransactionStateDropped, ChainTransactionStateReplaced:
		return true
	}

	return false
}

// ChainTransaction is the local record of one on-chain submission. Its id is
// the stable local identifier returned to callers; Hash stays null until the
// transaction was actually sent.
type ChainTransaction struct {
	Base

	Hash  sql.NullString `gorm:"unique"`
	Nonce sql.NullInt64

	State    ChainTransactionStateType `gorm:"index"`
	Raw      Map
	Attempts int
	GasPrice string

	// ReplacesID points at the transaction this one speeds up. The replaced
	// record keeps the nonce; it transitions to replaced when the replacement
	// is mined.
	ReplacesID sql.NullString

	LastAttemptAt sql.NullTime
}

func (t *ChainTransaction) TouchAttempt(now time.Time) {
	t.Attempts++
	t.LastAttemptAt = sql.NullTime{Valid: true, Time: now}
}
