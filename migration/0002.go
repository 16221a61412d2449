package migration

import (
	"context"

	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/pkg/xcontext"
)

func migrate0002(ctx context.Context) error {
	migrator := xcontext.DB(ctx).Migrator()
	if migrator.HasColumn(&entity.User{}, "role") {
		return nil
	}

	return migrator.AddColumn(&entity.User{}, "role")
}
