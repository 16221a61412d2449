package main

import (
	"github.com/rafflehub/backend/migration"
	"github.com/rafflehub/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startMigrate(*cli.Context) error {
	s.ctx = xcontext.WithDB(s.ctx, s.newDatabase())
	return migration.Migrate(s.ctx)
}
