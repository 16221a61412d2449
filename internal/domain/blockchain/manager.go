package blockchain

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rafflehub/backend/contract/rafflepool"
	"github.com/rafflehub/backend/internal/domain/blockchain/eth"
	"github.com/rafflehub/backend/internal/domain/blockchain/types"
	"github.com/rafflehub/backend/internal/repository"
	"github.com/rafflehub/backend/pkg/ethutil"
	"github.com/rafflehub/backend/pkg/pubsub"
	"github.com/rafflehub/backend/pkg/xcontext"
	"github.com/rafflehub/backend/pkg/xredis"
	"golang.org/x/sync/errgroup"
)

// ChainManager wires the transaction manager, monitor, and event processor
// for the configured network and runs them as one unit.
type ChainManager struct {
	pool      *rafflepool.RafflePool
	client    eth.EthClient
	monitor   *eth.TxMonitor
	txManager *TxManager
	projector *Projector
	processor *EventProcessor
}

func NewChainManager(
	ctx context.Context,
	chainTxRepo repository.ChainTransactionRepository,
	chainEventRepo repository.ChainEventRepository,
	cursorRepo repository.EventCursorRepository,
	raffleRepo repository.RaffleRepository,
	boxPurchaseRepo repository.BoxPurchaseRepository,
	winnerRepo repository.RaffleWinnerRepository,
	creditRepo repository.CreditRepository,
	userRepo repository.UserRepository,
	redisClient xredis.Client,
	publisher pubsub.Publisher,
) (*ChainManager, error) {
	cfg := xcontext.Configs(ctx).Chain

	privateKey, err := ethutil.ParsePrivateKey(cfg.SignerKey)
	if err != nil {
		return nil, err
	}

	pool, err := rafflepool.NewRafflePool(ethcommon.HexToAddress(cfg.ContractAddress))
	if err != nil {
		return nil, err
	}

	client := eth.NewEthClient(ctx)
	txUpdateCh := make(chan *types.TrackUpdate)
	monitor := eth.NewTxMonitor(client, redisClient, txUpdateCh)
	nonces := eth.NewNonceManager(client, ethutil.PrivateKeyAddress(privateKey), cfg.NonceStaleAfter)
	dispatcher := eth.NewEthDispatcher(client)

	txManager := NewTxManager(ctx, chainTxRepo, client, dispatcher, monitor, nonces,
		privateKey, txUpdateCh)

	projector := NewProjector(chainEventRepo, chainTxRepo, raffleRepo, boxPurchaseRepo,
		winnerRepo, creditRepo, userRepo, publisher)

	processor := NewEventProcessor(client, pool, projector, cursorRepo)

	return &ChainManager{
		pool:      pool,
		client:    client,
		monitor:   monitor,
		txManager: txManager,
		projector: projector,
		processor: processor,
	}, nil
}

func (m *ChainManager) Pool() *rafflepool.RafflePool {
	return m.pool
}

func (m *ChainManager) TxManager() *TxManager {
	return m.txManager
}

func (m *ChainManager) Projector() *Projector {
	return m.projector
}

// Run starts all long-lived tasks and blocks until one of them fails or the
// context is cancelled.
func (m *ChainManager) Run(ctx context.Context) error {
	if err := m.txManager.Recover(ctx); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot recover submitted transactions: %v", err)
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		m.monitor.Start(groupCtx)
		return groupCtx.Err()
	})
	group.Go(func() error {
		m.txManager.HandleTrackUpdates(groupCtx)
		return groupCtx.Err()
	})
	group.Go(func() error {
		m.processor.StartLive(groupCtx)
		return groupCtx.Err()
	})
	group.Go(func() error {
		m.processor.StartBackfill(groupCtx)
		return groupCtx.Err()
	})

	return group.Wait()
}

// Pause submits the admin pause call to the contract.
func (m *ChainManager) Pause(ctx context.Context) (string, error) {
	data, err := m.pool.PackPause()
	if err != nil {
		return "", err
	}

	return m.txManager.Submit(ctx, SubmitRequest{To: m.pool.Address(), Data: data})
}

// Unpause submits the admin unpause call to the contract.
func (m *ChainManager) Unpause(ctx context.Context) (string, error) {
	data, err := m.pool.PackUnpause()
	if err != nil {
		return "", err
	}

	return m.txManager.Submit(ctx, SubmitRequest{To: m.pool.Address(), Data: data})
}

// GrantRole submits a role grant to the contract's access control.
func (m *ChainManager) GrantRole(ctx context.Context, role [32]byte, account string) (string, error) {
	data, err := m.pool.PackGrantRole(role, ethcommon.HexToAddress(account))
	if err != nil {
		return "", err
	}

	return m.txManager.Submit(ctx, SubmitRequest{To: m.pool.Address(), Data: data})
}

// RevokeRole submits a role revocation to the contract's access control.
func (m *ChainManager) RevokeRole(ctx context.Context, role [32]byte, account string) (string, error) {
	data, err := m.pool.PackRevokeRole(role, ethcommon.HexToAddress(account))
	if err != nil {
		return "", err
	}

	return m.txManager.Submit(ctx, SubmitRequest{To: m.pool.Address(), Data: data})
}
