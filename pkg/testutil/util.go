package testutil

import (
	"context"
	"time"

	"github.com/rafflehub/backend/config"
	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/pkg/logger"
	"github.com/rafflehub/backend/pkg/xcontext"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func MockContext() context.Context {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	cfg := config.Configs{
		Env: "test",
		Chain: config.ChainConfigs{
			Name:              "testchain",
			ChainID:           31337,
			ContractAddress:   "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			SignerKey:         "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
			BlockTime:         10 * time.Millisecond,
			ConfirmationDepth: 3,
			BackfillChunkSize: 100,
			SubmitRetryCount:  1,
			NonceStaleAfter:   time.Minute,
			RPCName:           "raffle",
			EventTopic:        "raffle-events",
		},
		Credit: config.CreditConfigs{
			RefundExpiry: 90 * 24 * time.Hour,
		},
	}

	ctx := context.Background()
	ctx = xcontext.WithConfigs(ctx, cfg)
	ctx = xcontext.WithLogger(ctx, logger.NewLogger(logger.ERROR))
	ctx = xcontext.WithDB(ctx, db)

	if err := entity.MigrateTable(ctx); err != nil {
		panic(err)
	}

	return ctx
}

func MockContextWithUserID(userID string) context.Context {
	return xcontext.WithRequestUserID(MockContext(), userID)
}
