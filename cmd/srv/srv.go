package main

import (
	"context"

	"github.com/rafflehub/backend/config"
	"github.com/rafflehub/backend/internal/domain"
	"github.com/rafflehub/backend/internal/domain/blockchain"
	"github.com/rafflehub/backend/internal/repository"
	"github.com/rafflehub/backend/migration"
	"github.com/rafflehub/backend/pkg/kafka"
	"github.com/rafflehub/backend/pkg/logger"
	"github.com/rafflehub/backend/pkg/pubsub"
	"github.com/rafflehub/backend/pkg/xcontext"
	"github.com/rafflehub/backend/pkg/xredis"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type srv struct {
	ctx context.Context
	app *cli.App

	configs config.Configs

	userRepo        repository.UserRepository
	itemRepo        repository.ItemRepository
	raffleRepo      repository.RaffleRepository
	boxPurchaseRepo repository.BoxPurchaseRepository
	winnerRepo      repository.RaffleWinnerRepository
	creditRepo      repository.CreditRepository
	chainTxRepo     repository.ChainTransactionRepository
	chainEventRepo  repository.ChainEventRepository
	cursorRepo      repository.EventCursorRepository

	creditDomain domain.CreditDomain
	raffleDomain domain.RaffleDomain

	chainManager *blockchain.ChainManager

	redisClient xredis.Client
	publisher   pubsub.Publisher
}

func (s *srv) loadLogger() {
	s.ctx = xcontext.WithLogger(context.Background(), logger.NewLoggerByName(getEnv("LOG_LEVEL", "INFO")))
	s.ctx = xcontext.WithConfigs(s.ctx, s.configs)
}

func (s *srv) newDatabase() *gorm.DB {
	logLevel := gormlogger.Error
	if s.configs.Database.LogLevel == "info" {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(s.configs.Database.ConnectionString()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		panic(err)
	}

	return db
}

func (s *srv) migrateDB() {
	if err := migration.Migrate(s.ctx); err != nil {
		panic(err)
	}
}

func (s *srv) loadRedisClient() {
	var err error
	s.redisClient, err = xredis.NewClient(s.ctx)
	if err != nil {
		panic(err)
	}
}

func (s *srv) loadPublisher() {
	s.publisher = kafka.NewPublisher("chain-coordinator", []string{s.configs.Kafka.Addr})
}

func (s *srv) loadRepos() {
	s.userRepo = repository.NewUserRepository()
	s.itemRepo = repository.NewItemRepository()
	s.raffleRepo = repository.NewRaffleRepository()
	s.boxPurchaseRepo = repository.NewBoxPurchaseRepository()
	s.winnerRepo = repository.NewRaffleWinnerRepository()
	s.creditRepo = repository.NewCreditRepository()
	s.chainTxRepo = repository.NewChainTransactionRepository()
	s.chainEventRepo = repository.NewChainEventRepository()
	s.cursorRepo = repository.NewEventCursorRepository()
}
