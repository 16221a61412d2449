package entity

import (
	"context"
	"time"

	"github.com/rafflehub/backend/pkg/xcontext"
)

type Migration struct {
	Version   string `gorm:"primaryKey"`
	AppliedAt time.Time
}

// MigrateTable creates or updates every table of the core schema.
func MigrateTable(ctx context.Context) error {
	return xcontext.DB(ctx).AutoMigrate(
		&User{},
		&Item{},
		&Raffle{},
		&BoxPurchase{},
		&RaffleWinner{},
		&CreditLot{},
		&CreditEntry{},
		&ChainTransaction{},
		&ChainEvent{},
		&EventCursor{},
		&Migration{},
	)
}
