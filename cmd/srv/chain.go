package main

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rafflehub/backend/internal/domain"
	"github.com/rafflehub/backend/internal/domain/blockchain"
	"github.com/rafflehub/backend/pkg/kafka"
	"github.com/rafflehub/backend/pkg/pubsub"
	"github.com/rafflehub/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startChain(*cli.Context) error {
	s.ctx = xcontext.WithDB(s.ctx, s.newDatabase())
	s.migrateDB()
	s.loadRedisClient()
	s.loadPublisher()
	s.loadRepos()

	chainManager, err := blockchain.NewChainManager(
		s.ctx,
		s.chainTxRepo,
		s.chainEventRepo,
		s.cursorRepo,
		s.raffleRepo,
		s.boxPurchaseRepo,
		s.winnerRepo,
		s.creditRepo,
		s.userRepo,
		s.redisClient,
		s.publisher,
	)
	if err != nil {
		return err
	}
	s.chainManager = chainManager

	creditDomain := domain.NewCreditDomain(s.creditRepo)
	s.creditDomain = creditDomain

	raffleDomain := domain.NewRaffleDomain(
		s.raffleRepo,
		s.boxPurchaseRepo,
		s.winnerRepo,
		s.itemRepo,
		s.userRepo,
		creditDomain,
		chainManager.TxManager(),
		chainManager.Pool(),
	)
	s.raffleDomain = raffleDomain

	// The raffle domain compensates dead purchase transactions and refunds
	// cancelled raffles; it hears about both through these registrations.
	chainManager.TxManager().Register(raffleDomain)
	chainManager.Projector().SetCancelHandler(raffleDomain)

	go func() {
		if err := chainManager.Run(s.ctx); err != nil {
			xcontext.Logger(s.ctx).Errorf("Chain manager stopped: %v", err)
		}
	}()

	cfg := xcontext.Configs(s.ctx)

	// The consumer session context carries none of our request-scoped values,
	// so the handler runs on the server context instead.
	depositSubscriber := kafka.NewSubscriber(
		"chain-coordinator",
		[]string{cfg.Kafka.Addr},
		[]string{cfg.Kafka.DepositTopic},
		func(_ context.Context, topic string, pack *pubsub.Pack, tt time.Time) {
			creditDomain.HandleDepositEvent(s.ctx, topic, pack, tt)
		},
	)
	go depositSubscriber.Subscribe(s.ctx)

	rpcHandler := rpc.NewServer()
	defer rpcHandler.Stop()
	if err := rpcHandler.RegisterName(cfg.Chain.RPCName, raffleDomain); err != nil {
		xcontext.Logger(s.ctx).Errorf("Cannot register raffle domain: %v", err)
		return err
	}

	if err := rpcHandler.RegisterName("credit", creditDomain); err != nil {
		xcontext.Logger(s.ctx).Errorf("Cannot register credit domain: %v", err)
		return err
	}

	if err := rpcHandler.RegisterName("admin", chainManager); err != nil {
		xcontext.Logger(s.ctx).Errorf("Cannot register chain manager: %v", err)
		return err
	}

	xcontext.Logger(s.ctx).Infof("Started rpc server of chain coordinator")
	httpSrv := &http.Server{
		Handler: rpcHandler,
		Addr:    cfg.ApiServer.Address(),
	}

	if err := httpSrv.ListenAndServe(); err != nil {
		xcontext.Logger(s.ctx).Errorf("An error occurs when running rpc server: %v", err)
		return err
	}

	return nil
}
