package migration

import (
	"context"

	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/pkg/xcontext"
)

func migrate0001(ctx context.Context) error {
	migrator := xcontext.DB(ctx).Migrator()
	if migrator.HasColumn(&entity.ChainTransaction{}, "gas_price") {
		return nil
	}

	return migrator.AddColumn(&entity.ChainTransaction{}, "gas_price")
}
