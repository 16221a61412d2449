package blockchain

import (
	"context"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflehub/backend/contract/rafflepool"
	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/internal/repository"
	"github.com/rafflehub/backend/mocks"
	"github.com/rafflehub/backend/pkg/testutil"
	"github.com/rafflehub/backend/pkg/xcontext"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type cancelRecorder struct {
	raffleIDs []string
}

func (r *cancelRecorder) OnRaffleCancelled(ctx context.Context, raffleID string) error {
	r.raffleIDs = append(r.raffleIDs, raffleID)
	return nil
}

type processorTestEnv struct {
	client    *mocks.EthClient
	processor *EventProcessor
	projector *Projector
	cursors   repository.EventCursorRepository
	cancels   *cancelRecorder
}

func newProcessorTestEnv(t *testing.T, ctx context.Context) *processorTestEnv {
	pool, err := rafflepool.NewRafflePool(
		ethcommon.HexToAddress(xcontext.Configs(ctx).Chain.ContractAddress))
	require.NoError(t, err)

	projector := NewProjector(
		repository.NewChainEventRepository(),
		repository.NewChainTransactionRepository(),
		repository.NewRaffleRepository(),
		repository.NewBoxPurchaseRepository(),
		repository.NewRaffleWinnerRepository(),
		repository.NewCreditRepository(),
		repository.NewUserRepository(),
		&testutil.MockPublisher{},
	)

	cancels := &cancelRecorder{}
	projector.SetCancelHandler(cancels)

	client := &mocks.EthClient{}
	cursors := repository.NewEventCursorRepository()

	return &processorTestEnv{
		client:    client,
		processor: NewEventProcessor(client, pool, projector, cursors),
		projector: projector,
		cursors:   cursors,
		cancels:   cancels,
	}
}

// contractLog encodes a raw log the way the pool contract emits it: topic
// zero is the event id, indexed arguments follow as topics, the rest is
// ABI-packed data.
func contractLog(
	t *testing.T, ctx context.Context, name string, block uint64, index uint,
	indexed []ethcommon.Hash, nonIndexed ...any,
) ethtypes.Log {
	parsed, err := rafflepool.PoolABI()
	require.NoError(t, err)

	event, ok := parsed.Events[name]
	require.True(t, ok)

	data, err := event.Inputs.NonIndexed().Pack(nonIndexed...)
	require.NoError(t, err)

	return ethtypes.Log{
		Address:     ethcommon.HexToAddress(xcontext.Configs(ctx).Chain.ContractAddress),
		Topics:      append([]ethcommon.Hash{event.ID}, indexed...),
		Data:        data,
		BlockNumber: block,
		TxHash:      ethcommon.BigToHash(big.NewInt(int64(block*1000) + int64(index))),
		Index:       index,
	}
}

func Test_EventProcessor_BackfillAdvancesCursor(t *testing.T) {
	ctx := testutil.MockContext()
	env := newProcessorTestEnv(t, ctx)

	raffle, err := testutil.SampleRaffle(ctx, nil)
	require.NoError(t, err)

	fullLog := contractLog(t, ctx, rafflepool.EventRaffleFull, 5, 0,
		[]ethcommon.Hash{ethcommon.BigToHash(big.NewInt(raffle.ChainID.Int64))})

	// Other contracts on the same address filter would surface here too; an
	// unknown topic is skipped without breaking the pass.
	unknownLog := ethtypes.Log{
		Topics:      []ethcommon.Hash{ethcommon.BytesToHash([]byte("unrelated-event"))},
		BlockNumber: 6,
	}

	env.client.On("BlockNumber", mock.Anything).Return(uint64(90), nil)
	env.client.On("FilterLogs", mock.Anything, mock.Anything).
		Return([]ethtypes.Log{fullLog, unknownLog}, nil)

	require.NoError(t, env.processor.backfillOnce(ctx))

	cursor, err := env.cursors.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(90), cursor.LastProcessedBlock)

	updated, err := repository.NewRaffleRepository().GetByID(ctx, raffle.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RaffleStatusFull, updated.Status)
}

func Test_EventProcessor_BackfillHoldsCursorOnFailedProjection(t *testing.T) {
	ctx := testutil.MockContext()
	env := newProcessorTestEnv(t, ctx)

	raffle, err := testutil.SampleRaffle(ctx, nil)
	require.NoError(t, err)

	// A purchase from a wallet without a local user cannot be projected yet.
	strangerWallet := ethcommon.HexToAddress("0x00000000000000000000000000000000deadbeef")
	purchaseLog := contractLog(t, ctx, rafflepool.EventParticipationPurchased, 10, 0,
		[]ethcommon.Hash{
			ethcommon.BigToHash(big.NewInt(raffle.ChainID.Int64)),
			ethcommon.BytesToHash(strangerWallet.Bytes()),
		},
		big.NewInt(1), []*big.Int{big.NewInt(1)}, big.NewInt(10))

	fullLog := contractLog(t, ctx, rafflepool.EventRaffleFull, 15, 0,
		[]ethcommon.Hash{ethcommon.BigToHash(big.NewInt(raffle.ChainID.Int64))})

	env.client.On("BlockNumber", mock.Anything).Return(uint64(90), nil)
	env.client.On("FilterLogs", mock.Anything, mock.Anything).
		Return([]ethtypes.Log{purchaseLog, fullLog}, nil)

	require.NoError(t, env.processor.backfillOnce(ctx))

	// The cursor stops below the failed block while later events of the chunk
	// are still applied.
	cursor, err := env.cursors.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(9), cursor.LastProcessedBlock)

	updated, err := repository.NewRaffleRepository().GetByID(ctx, raffle.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RaffleStatusFull, updated.Status)

	// The next pass re-scans from the held position and, with the purchase
	// still unprojectable, holds it there again.
	require.NoError(t, env.processor.backfillOnce(ctx))

	cursor, err = env.cursors.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(9), cursor.LastProcessedBlock)
}

func Test_EventProcessor_CancelledBlockTriggersRefundHook(t *testing.T) {
	ctx := testutil.MockContext()
	env := newProcessorTestEnv(t, ctx)

	raffle, err := testutil.SampleRaffle(ctx, nil)
	require.NoError(t, err)

	cancelLog := contractLog(t, ctx, rafflepool.EventRaffleCancelled, 50, 0,
		[]ethcommon.Hash{ethcommon.BigToHash(big.NewInt(raffle.ChainID.Int64))},
		"seller request")

	env.client.On("FilterLogs", mock.Anything, mock.Anything).
		Return([]ethtypes.Log{cancelLog}, nil)

	env.processor.processBlock(ctx, 50)

	updated, err := repository.NewRaffleRepository().GetByID(ctx, raffle.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RaffleStatusCancelled, updated.Status)
	require.Equal(t, []string{raffle.ID}, env.cancels.raffleIDs)

	// The live path and the backfill path can observe the same log; the second
	// observation is a no-op and must not refund twice.
	env.processor.processBlock(ctx, 50)
	require.Len(t, env.cancels.raffleIDs, 1)
}

func Test_EventProcessor_EventLogKeepsOrderedHistory(t *testing.T) {
	ctx := testutil.MockContext()
	env := newProcessorTestEnv(t, ctx)

	raffle, err := testutil.SampleRaffle(ctx, nil)
	require.NoError(t, err)
	other, err := testutil.SampleRaffle(ctx, nil)
	require.NoError(t, err)

	// Handed over out of order; the stored log must come back sorted by
	// (block, log index).
	logs := []ethtypes.Log{
		contractLog(t, ctx, rafflepool.EventRaffleCancelled, 8, 0,
			[]ethcommon.Hash{ethcommon.BigToHash(big.NewInt(raffle.ChainID.Int64))},
			"seller request"),
		contractLog(t, ctx, rafflepool.EventRaffleFull, 7, 1,
			[]ethcommon.Hash{ethcommon.BigToHash(big.NewInt(raffle.ChainID.Int64))}),
		contractLog(t, ctx, rafflepool.EventRaffleFull, 7, 0,
			[]ethcommon.Hash{ethcommon.BigToHash(big.NewInt(other.ChainID.Int64))}),
	}

	env.client.On("BlockNumber", mock.Anything).Return(uint64(90), nil)
	env.client.On("FilterLogs", mock.Anything, mock.Anything).Return(logs, nil)

	require.NoError(t, env.processor.backfillOnce(ctx))

	chainEventRepo := repository.NewChainEventRepository()
	history, err := chainEventRepo.GetAllOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, other.ChainID.Int64, history[0].RaffleID)
	require.Equal(t, rafflepool.EventRaffleFull, history[1].EventType)
	require.Equal(t, rafflepool.EventRaffleCancelled, history[2].EventType)

	perRaffle, err := chainEventRepo.GetByRaffleID(ctx, raffle.ChainID.Int64)
	require.NoError(t, err)
	require.Len(t, perRaffle, 2)
	require.Equal(t, rafflepool.EventRaffleFull, perRaffle[0].EventType)
	require.Equal(t, rafflepool.EventRaffleCancelled, perRaffle[1].EventType)

	// Both ingestion paths can observe the same logs again; replay leaves the
	// stored history untouched.
	env.processor.processBlock(ctx, 7)
	env.processor.processBlock(ctx, 8)

	history, err = chainEventRepo.GetAllOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
}

func Test_EventProcessor_EventForUnknownRaffleIsSkipped(t *testing.T) {
	ctx := testutil.MockContext()
	env := newProcessorTestEnv(t, ctx)

	fullLog := contractLog(t, ctx, rafflepool.EventRaffleFull, 60, 0,
		[]ethcommon.Hash{ethcommon.BigToHash(big.NewInt(424242))})

	env.client.On("BlockNumber", mock.Anything).Return(uint64(60), nil)
	env.client.On("FilterLogs", mock.Anything, mock.Anything).
		Return([]ethtypes.Log{fullLog}, nil)

	require.NoError(t, env.processor.backfillOnce(ctx))

	cursor, err := env.cursors.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(60), cursor.LastProcessedBlock)
}
