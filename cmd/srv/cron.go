package main

import (
	"time"

	"github.com/rafflehub/backend/internal/domain"
	"github.com/rafflehub/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startCron(*cli.Context) error {
	s.ctx = xcontext.WithDB(s.ctx, s.newDatabase())
	s.migrateDB()
	s.loadRepos()

	s.creditDomain = domain.NewCreditDomain(s.creditRepo)

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		now := time.Now()
		expired, err := s.creditDomain.ExpireDue(s.ctx, now)
		if err != nil {
			xcontext.Logger(s.ctx).Errorf("Credit expiry sweep failed: %v", err)
		} else if expired > 0 {
			xcontext.Logger(s.ctx).Infof("Expired %d credit lots", expired)
		}

		select {
		case <-s.ctx.Done():
			return s.ctx.Err()
		case <-ticker.C:
		}
	}
}
