package migration

import (
	"context"

	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/pkg/xcontext"
)

// migrate0000 will create the database with the latest version.
func migrate0000(ctx context.Context) error {
	return xcontext.DB(ctx).AutoMigrate(
		&entity.User{},
		&entity.Item{},
		&entity.Raffle{},
		&entity.BoxPurchase{},
		&entity.RaffleWinner{},
		&entity.CreditLot{},
		&entity.CreditEntry{},
		&entity.ChainTransaction{},
		&entity.ChainEvent{},
		&entity.EventCursor{},
		&entity.Migration{},
	)
}
