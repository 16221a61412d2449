package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/pkg/xcontext"
)

// migrations run in order. Append only; never change an applied version.
var migrations = []func(context.Context) error{
	migrate0000,
	migrate0001,
	migrate0002,
}

// Migrate applies every version not yet recorded in the migrations table.
func Migrate(ctx context.Context) error {
	if err := xcontext.DB(ctx).AutoMigrate(&entity.Migration{}); err != nil {
		return err
	}

	var applied []entity.Migration
	if err := xcontext.DB(ctx).Find(&applied).Error; err != nil {
		return err
	}

	appliedSet := map[string]bool{}
	for i := range applied {
		appliedSet[applied[i].Version] = true
	}

	for i, m := range migrations {
		version := fmt.Sprintf("%04d", i)
		if appliedSet[version] {
			continue
		}

		xcontext.Logger(ctx).Infof("Applying migration %s", version)
		if err := m(ctx); err != nil {
			return fmt.Errorf("migration %s: %w", version, err)
		}

		record := entity.Migration{Version: version, AppliedAt: time.Now()}
		if err := xcontext.DB(ctx).Create(&record).Error; err != nil {
			return err
		}
	}

	return nil
}
