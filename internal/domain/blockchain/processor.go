package blockchain

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	ethereum "github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflehub/backend/contract/rafflepool"
	"github.com/rafflehub/backend/internal/domain/blockchain/eth"
	"github.com/rafflehub/backend/internal/repository"
	"github.com/rafflehub/backend/pkg/xcontext"
)

const maxReconnectInterval = 60 * time.Second

// EventProcessor ingests contract logs over two concurrent paths: a live head
// subscription and a cursor-driven backfill. Both feed the same projector, so
// an event seen twice is applied once.
type EventProcessor struct {
	client     eth.EthClient
	pool       *rafflepool.RafflePool
	projector  *Projector
	cursorRepo repository.EventCursorRepository
}

func NewEventProcessor(
	client eth.EthClient,
	pool *rafflepool.RafflePool,
	projector *Projector,
	cursorRepo repository.EventCursorRepository,
) *EventProcessor {
	return &EventProcessor{
		client:     client,
		pool:       pool,
		projector:  projector,
		cursorRepo: cursorRepo,
	}
}

// StartLive keeps a head subscription alive, reconnecting with capped
// exponential backoff. Missed blocks are recovered by the backfill path.
func (p *EventProcessor) StartLive(ctx context.Context) {
	xcontext.Logger(ctx).Infof("Starting live event subscription...")

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = maxReconnectInterval
	bo.MaxElapsedTime = 0

	for {
		err := p.subscribeOnce(ctx, bo)
		if ctx.Err() != nil {
			return
		}

		wait := bo.NextBackOff()
		xcontext.Logger(ctx).Errorf("Head subscription broke, reconnecting in %s: %v", wait, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (p *EventProcessor) subscribeOnce(ctx context.Context, bo *backoff.ExponentialBackOff) error {
	headCh := make(chan *ethtypes.Header)
	sub, err := p.client.SubscribeNewHead(ctx, headCh)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	bo.Reset()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case head := <-headCh:
			p.processBlock(ctx, head.Number.Uint64())
		}
	}
}

func (p *EventProcessor) processBlock(ctx context.Context, number uint64) {
	logs, err := p.filterRange(ctx, number, number)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot fetch logs of block %d: %v", number, err)
		return
	}

	for i := range logs {
		if err := p.projectLog(ctx, logs[i]); err != nil {
			// The backfill pass will pick this event up again.
			xcontext.Logger(ctx).Errorf("Cannot project live log %s/%d: %v",
				logs[i].TxHash.Hex(), logs[i].Index, err)
		}
	}
}

// StartBackfill advances the cursor toward the chain head in bounded chunks.
func (p *EventProcessor) StartBackfill(ctx context.Context) {
	xcontext.Logger(ctx).Infof("Starting event backfill...")

	blockTime := xcontext.Configs(ctx).Chain.BlockTime
	for {
		if err := p.backfillOnce(ctx); err != nil {
			xcontext.Logger(ctx).Errorf("Backfill pass failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(blockTime):
		}
	}
}

func (p *EventProcessor) backfillOnce(ctx context.Context) error {
	cursor, err := p.cursorRepo.Get(ctx)
	if err != nil {
		return err
	}

	latest, err := p.client.BlockNumber(ctx)
	if err != nil {
		return err
	}

	from := cursor.LastProcessedBlock + 1
	if from > latest {
		return nil
	}

	chunk := xcontext.Configs(ctx).Chain.BackfillChunkSize
	if chunk == 0 {
		chunk = 1000
	}

	to := from + chunk - 1
	if to > latest {
		to = latest
	}

	logs, err := p.filterRange(ctx, from, to)
	if err != nil {
		return err
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	// A failed projection holds the cursor below its block so the next pass
	// re-fetches it. Later events of the chunk are still applied; idempotency
	// makes the re-scan cheap.
	advanceTo := to
	for i := range logs {
		if err := p.projectLog(ctx, logs[i]); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot project log %s/%d: %v",
				logs[i].TxHash.Hex(), logs[i].Index, err)
			if logs[i].BlockNumber-1 < advanceTo {
				advanceTo = logs[i].BlockNumber - 1
			}
		}
	}

	if advanceTo <= cursor.LastProcessedBlock {
		return nil
	}

	return p.cursorRepo.Advance(ctx, advanceTo)
}

func (p *EventProcessor) filterRange(ctx context.Context, from, to uint64) ([]ethtypes.Log, error) {
	return p.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []ethcommon.Address{p.pool.Address()},
	})
}

func (p *EventProcessor) projectLog(ctx context.Context, log ethtypes.Log) error {
	if len(log.Topics) == 0 {
		return nil
	}

	if _, known := p.pool.EventName(log.Topics[0]); !known {
		xcontext.Logger(ctx).Debugf("Skipping unknown event topic %s", log.Topics[0].Hex())
		return nil
	}

	parsed, err := p.pool.ParseLog(log)
	if err != nil {
		return err
	}

	ev, err := NormalizeLog(parsed)
	if err != nil {
		return err
	}

	return p.projector.Project(ctx, ev)
}
