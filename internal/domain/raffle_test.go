package domain

import (
	"context"
	"database/sql"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rafflehub/backend/contract/rafflepool"
	"github.com/rafflehub/backend/internal/domain/blockchain"
	"github.com/rafflehub/backend/internal/domain/blockchain/eth"
	"github.com/rafflehub/backend/internal/domain/blockchain/types"
	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/internal/model"
	"github.com/rafflehub/backend/internal/repository"
	"github.com/rafflehub/backend/mocks"
	"github.com/rafflehub/backend/pkg/errorx"
	"github.com/rafflehub/backend/pkg/ethutil"
	"github.com/rafflehub/backend/pkg/testutil"
	"github.com/rafflehub/backend/pkg/xcontext"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type chainTestEnv struct {
	client     *mocks.EthClient
	dispatcher *mocks.Dispatcher

	chainTxRepo repository.ChainTransactionRepository
	creditRepo  repository.CreditRepository

	txManager    *blockchain.TxManager
	projector    *blockchain.Projector
	creditDomain CreditDomain
	raffleDomain *raffleDomain
}

// newChainTestEnv wires the coordinator against a mocked node: nonces come
// from the mocked client, every dispatch succeeds unless the test overrides
// it, and tracking writes go to a no-op redis.
func newChainTestEnv(t *testing.T, ctx context.Context) *chainTestEnv {
	cfg := xcontext.Configs(ctx).Chain

	privateKey, err := ethutil.ParsePrivateKey(cfg.SignerKey)
	require.NoError(t, err)

	pool, err := rafflepool.NewRafflePool(ethcommon.HexToAddress(cfg.ContractAddress))
	require.NoError(t, err)

	client := &mocks.EthClient{}
	client.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(0), nil).Maybe()
	client.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1_000_000_000), nil).Maybe()
	client.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(80_000), nil).Maybe()

	dispatcher := &mocks.Dispatcher{}

	txUpdateCh := make(chan *types.TrackUpdate, 16)
	monitor := eth.NewTxMonitor(client, &testutil.MockRedisClient{}, txUpdateCh)
	nonces := eth.NewNonceManager(client, ethutil.PrivateKeyAddress(privateKey), cfg.NonceStaleAfter)

	chainTxRepo := repository.NewChainTransactionRepository()
	creditRepo := repository.NewCreditRepository()

	txManager := blockchain.NewTxManager(ctx, chainTxRepo, client, dispatcher, monitor,
		nonces, privateKey, txUpdateCh)

	creditDomain := NewCreditDomain(creditRepo)
	raffleDomain := NewRaffleDomain(
		repository.NewRaffleRepository(),
		repository.NewBoxPurchaseRepository(),
		repository.NewRaffleWinnerRepository(),
		repository.NewItemRepository(),
		repository.NewUserRepository(),
		creditDomain,
		txManager,
		pool,
	)
	txManager.Register(raffleDomain)

	projector := blockchain.NewProjector(
		repository.NewChainEventRepository(),
		chainTxRepo,
		repository.NewRaffleRepository(),
		repository.NewBoxPurchaseRepository(),
		repository.NewRaffleWinnerRepository(),
		creditRepo,
		repository.NewUserRepository(),
		&testutil.MockPublisher{},
	)
	projector.SetCancelHandler(raffleDomain)

	return &chainTestEnv{
		client:       client,
		dispatcher:   dispatcher,
		chainTxRepo:  chainTxRepo,
		creditRepo:   creditRepo,
		txManager:    txManager,
		projector:    projector,
		creditDomain: creditDomain,
		raffleDomain: raffleDomain,
	}
}

func (e *chainTestEnv) dispatchSucceeds() {
	e.dispatcher.On("Dispatch", mock.Anything, mock.Anything).
		Return(&types.DispatchedTxResult{Success: true})
}

func (e *chainTestEnv) txHashOf(t *testing.T, ctx context.Context, localTxID string) string {
	record, err := e.chainTxRepo.GetByID(ctx, localTxID)
	require.NoError(t, err)
	require.True(t, record.Hash.Valid)
	return record.Hash.String
}

func (e *chainTestEnv) fund(t *testing.T, ctx context.Context, userID string, amount int64) {
	_, _, err := e.creditDomain.IssueLot(ctx, LotIssue{
		UserID: userID,
		Amount: decimal.NewFromInt(amount),
		Source: entity.CreditSourceDeposit,
		Kind:   entity.CreditKindGeneral,
	})
	require.NoError(t, err)
}

func (e *chainTestEnv) available(t *testing.T, ctx context.Context, userID string) decimal.Decimal {
	available, err := e.creditDomain.Available(ctx, userID, sql.NullString{})
	require.NoError(t, err)
	return available
}

func Test_raffleDomain_CreateAndOpen(t *testing.T) {
	ctx := testutil.MockContext()
	env := newChainTestEnv(t, ctx)
	env.dispatchSucceeds()

	seller, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	item, err := testutil.SampleItem(ctx, &entity.Item{OwnerID: seller.ID})
	require.NoError(t, err)

	resp, err := env.raffleDomain.Create(ctx, &model.CreateRaffleRequest{
		SellerID:     seller.ID,
		ItemID:       item.ID,
		TotalBoxes:   4,
		BoxPrice:     "10",
		TotalWinners: 1,
		GridRows:     2,
		GridCols:     2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.LocalTxID)

	raffleRepo := repository.NewRaffleRepository()
	raffle, err := raffleRepo.GetByID(ctx, resp.RaffleID)
	require.NoError(t, err)
	require.Equal(t, entity.RaffleStatusSubmitting, raffle.Status)
	require.False(t, raffle.ChainID.Valid)

	// The RaffleCreated event comes back with our submission's hash; the
	// projection binds the contract id and opens the raffle.
	created := &types.RaffleCreatedEvent{
		EventBase: types.EventBase{
			Type:          rafflepool.EventRaffleCreated,
			TxHash:        env.txHashOf(t, ctx, resp.LocalTxID),
			BlockNumber:   10,
			LogIndex:      0,
			ChainRaffleID: 777,
		},
		Creator:      seller.WalletAddress,
		TotalBoxes:   4,
		TotalWinners: 1,
	}
	require.NoError(t, env.projector.Project(ctx, created))

	raffle, err = raffleRepo.GetByID(ctx, resp.RaffleID)
	require.NoError(t, err)
	require.Equal(t, entity.RaffleStatusOpen, raffle.Status)
	require.Equal(t, int64(777), raffle.ChainID.Int64)

	// Replaying the event is a no-op.
	require.NoError(t, env.projector.Project(ctx, created))
	raffle, err = raffleRepo.GetByID(ctx, resp.RaffleID)
	require.NoError(t, err)
	require.Equal(t, entity.RaffleStatusOpen, raffle.Status)
}

func Test_raffleDomain_CreateSpedUpStillOpens(t *testing.T) {
	ctx := testutil.MockContext()
	env := newChainTestEnv(t, ctx)
	env.dispatchSucceeds()

	seller, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	item, err := testutil.SampleItem(ctx, &entity.Item{OwnerID: seller.ID})
	require.NoError(t, err)

	resp, err := env.raffleDomain.Create(ctx, &model.CreateRaffleRequest{
		SellerID:     seller.ID,
		ItemID:       item.ID,
		TotalBoxes:   4,
		BoxPrice:     "10",
		TotalWinners: 1,
		GridRows:     2,
		GridCols:     2,
	})
	require.NoError(t, err)

	replacementID, err := env.txManager.SpeedUp(ctx, resp.LocalTxID, big.NewInt(2_000_000_000))
	require.NoError(t, err)

	// The creation mines under the replacement's hash; the projection still has
	// to find the raffle bound to the original submission.
	created := &types.RaffleCreatedEvent{
		EventBase: types.EventBase{
			Type:          rafflepool.EventRaffleCreated,
			TxHash:        env.txHashOf(t, ctx, replacementID),
			BlockNumber:   12,
			LogIndex:      0,
			ChainRaffleID: 778,
		},
		Creator:      seller.WalletAddress,
		TotalBoxes:   4,
		TotalWinners: 1,
	}
	require.NoError(t, env.projector.Project(ctx, created))

	raffle, err := repository.NewRaffleRepository().GetByID(ctx, resp.RaffleID)
	require.NoError(t, err)
	require.Equal(t, entity.RaffleStatusOpen, raffle.Status)
	require.Equal(t, int64(778), raffle.ChainID.Int64)
}

func Test_raffleDomain_CreateValidation(t *testing.T) {
	ctx := testutil.MockContext()
	env := newChainTestEnv(t, ctx)

	seller, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	item, err := testutil.SampleItem(ctx, &entity.Item{OwnerID: seller.ID})
	require.NoError(t, err)

	valid := model.CreateRaffleRequest{
		SellerID:     seller.ID,
		ItemID:       item.ID,
		TotalBoxes:   4,
		BoxPrice:     "10",
		TotalWinners: 1,
		GridRows:     2,
		GridCols:     2,
	}

	badCases := []func(r model.CreateRaffleRequest) model.CreateRaffleRequest{
		func(r model.CreateRaffleRequest) model.CreateRaffleRequest { r.TotalBoxes = 0; return r },
		func(r model.CreateRaffleRequest) model.CreateRaffleRequest { r.TotalWinners = 0; return r },
		func(r model.CreateRaffleRequest) model.CreateRaffleRequest { r.TotalWinners = 5; return r },
		func(r model.CreateRaffleRequest) model.CreateRaffleRequest { r.BoxPrice = "0"; return r },
		func(r model.CreateRaffleRequest) model.CreateRaffleRequest { r.BoxPrice = "abc"; return r },
		func(r model.CreateRaffleRequest) model.CreateRaffleRequest { r.GridRows = 1; return r },
	}
	for _, mutate := range badCases {
		req := mutate(valid)
		_, err := env.raffleDomain.Create(ctx, &req)
		require.Error(t, err)
		require.Equal(t, errorx.BadRequest, err.(errorx.Error).Code)
	}

	// Only the item owner can raffle the item.
	stranger, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	req := valid
	req.SellerID = stranger.ID
	_, err = env.raffleDomain.Create(ctx, &req)
	require.Error(t, err)
	require.Equal(t, errorx.PermissionDenied, err.(errorx.Error).Code)

	// One active raffle per item.
	env.dispatchSucceeds()
	_, err = env.raffleDomain.Create(ctx, &valid)
	require.NoError(t, err)
	_, err = env.raffleDomain.Create(ctx, &valid)
	require.Error(t, err)
	require.Equal(t, errorx.AlreadyExists, err.(errorx.Error).Code)
}

func Test_raffleDomain_CreateDispatchRejected(t *testing.T) {
	ctx := testutil.MockContext()
	env := newChainTestEnv(t, ctx)
	env.dispatcher.On("Dispatch", mock.Anything, mock.Anything).
		Return(&types.DispatchedTxResult{Success: false, Err: types.ErrReverted})

	seller, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	item, err := testutil.SampleItem(ctx, &entity.Item{OwnerID: seller.ID})
	require.NoError(t, err)

	resp, err := env.raffleDomain.Create(ctx, &model.CreateRaffleRequest{
		SellerID:     seller.ID,
		ItemID:       item.ID,
		TotalBoxes:   4,
		BoxPrice:     "10",
		TotalWinners: 1,
		GridRows:     2,
		GridCols:     2,
	})
	require.Error(t, err)
	require.Equal(t, errorx.OperationFailed, err.(errorx.Error).Code)
	require.Nil(t, resp)

	// The draft was cancelled, so the item is free for another attempt.
	raffle, err := repository.NewRaffleRepository().GetActiveByItemID(ctx, item.ID)
	require.Error(t, err)
	require.Nil(t, raffle)
}

func Test_raffleDomain_PurchaseFlow(t *testing.T) {
	ctx := testutil.MockContext()
	env := newChainTestEnv(t, ctx)
	env.dispatchSucceeds()

	raffle, err := testutil.SampleRaffle(ctx, &entity.Raffle{
		TotalBoxes: 4, BoxPrice: decimal.NewFromInt(10),
		GridRows: 2, GridCols: 2, MaxBoxesPerUser: 3,
	})
	require.NoError(t, err)

	buyer, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	env.fund(t, ctx, buyer.ID, 100)

	resp, err := env.raffleDomain.PurchaseBoxes(ctx, &model.PurchaseBoxesRequest{
		UserID:     buyer.ID,
		RaffleID:   raffle.ID,
		BoxNumbers: []int{1, 2},
	})
	require.NoError(t, err)
	require.Equal(t, "20", resp.TotalPrice)

	// Credits were debited up front.
	require.True(t, env.available(t, ctx, buyer.ID).Equal(decimal.NewFromInt(80)))

	// The confirmed purchase comes back as an event and materializes the
	// boxes.
	purchased := &types.ParticipationPurchasedEvent{
		EventBase: types.EventBase{
			Type:          rafflepool.EventParticipationPurchased,
			TxHash:        env.txHashOf(t, ctx, resp.LocalTxID),
			BlockNumber:   11,
			LogIndex:      0,
			ChainRaffleID: raffle.ChainID.Int64,
		},
		Participant:    buyer.WalletAddress,
		BoxesPurchased: []int{1, 2},
	}
	require.NoError(t, env.projector.Project(ctx, purchased))
	require.NoError(t, env.projector.Project(ctx, purchased)) // replay

	purchases, err := repository.NewBoxPurchaseRepository().GetByRaffleID(ctx, raffle.ID)
	require.NoError(t, err)
	require.Len(t, purchases, 2)

	updated, err := repository.NewRaffleRepository().GetByID(ctx, raffle.ID)
	require.NoError(t, err)
	require.Equal(t, 2, updated.BoxesSold)
	require.Equal(t, entity.RaffleStatusOpen, updated.Status)

	// Sold boxes cannot be bought again.
	_, err = env.raffleDomain.PurchaseBoxes(ctx, &model.PurchaseBoxesRequest{
		UserID: buyer.ID, RaffleID: raffle.ID, BoxNumbers: []int{2, 3},
	})
	require.Error(t, err)
	require.Equal(t, errorx.AlreadyExists, err.(errorx.Error).Code)

	// The per-user cap counts already-owned boxes.
	_, err = env.raffleDomain.PurchaseBoxes(ctx, &model.PurchaseBoxesRequest{
		UserID: buyer.ID, RaffleID: raffle.ID, BoxNumbers: []int{3, 4},
	})
	require.Error(t, err)
	require.Equal(t, errorx.BadRequest, err.(errorx.Error).Code)

	// A short balance rejects before anything is reserved.
	poor, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	env.fund(t, ctx, poor.ID, 5)
	_, err = env.raffleDomain.PurchaseBoxes(ctx, &model.PurchaseBoxesRequest{
		UserID: poor.ID, RaffleID: raffle.ID, BoxNumbers: []int{3},
	})
	require.Error(t, err)
	require.Equal(t, errorx.InsufficientCredits, err.(errorx.Error).Code)
	require.True(t, env.available(t, ctx, poor.ID).Equal(decimal.NewFromInt(5)))
}

func Test_raffleDomain_PurchaseRevertCompensation(t *testing.T) {
	ctx := testutil.MockContext()
	env := newChainTestEnv(t, ctx)
	env.dispatchSucceeds()

	raffle, err := testutil.SampleRaffle(ctx, nil)
	require.NoError(t, err)

	buyer, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	env.fund(t, ctx, buyer.ID, 50)

	resp, err := env.raffleDomain.PurchaseBoxes(ctx, &model.PurchaseBoxesRequest{
		UserID: buyer.ID, RaffleID: raffle.ID, BoxNumbers: []int{1, 2, 3},
	})
	require.NoError(t, err)
	require.True(t, env.available(t, ctx, buyer.ID).Equal(decimal.NewFromInt(20)))

	// The transaction dies on chain; the debit is returned as a refund lot.
	record, err := env.chainTxRepo.GetByID(ctx, resp.LocalTxID)
	require.NoError(t, err)
	env.raffleDomain.OnTransactionTerminal(ctx, record, entity.ChainTransactionStateFailed)
	require.True(t, env.available(t, ctx, buyer.ID).Equal(decimal.NewFromInt(50)))

	// Seeing the same terminal state twice does not double refund.
	env.raffleDomain.OnTransactionTerminal(ctx, record, entity.ChainTransactionStateFailed)
	require.True(t, env.available(t, ctx, buyer.ID).Equal(decimal.NewFromInt(50)))
}

func Test_raffleDomain_CancelRefundsPurchases(t *testing.T) {
	ctx := testutil.MockContext()
	env := newChainTestEnv(t, ctx)
	env.dispatchSucceeds()

	seller, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	raffle, err := testutil.SampleRaffle(ctx, &entity.Raffle{SellerID: seller.ID})
	require.NoError(t, err)

	buyer, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	_, err = testutil.SampleBoxPurchase(ctx, &entity.BoxPurchase{
		RaffleID: raffle.ID, BuyerID: buyer.ID, BoxNumber: 1,
		PricePaid: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	// Only the seller can cancel.
	_, err = env.raffleDomain.Cancel(ctx, &model.CancelRaffleRequest{
		ActorID: buyer.ID, RaffleID: raffle.ID, Reason: "nope",
	})
	require.Error(t, err)
	require.Equal(t, errorx.PermissionDenied, err.(errorx.Error).Code)

	resp, err := env.raffleDomain.Cancel(ctx, &model.CancelRaffleRequest{
		ActorID: seller.ID, RaffleID: raffle.ID, Reason: "seller request",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.LocalTxID)

	cancelled := &types.RaffleCancelledEvent{
		EventBase: types.EventBase{
			Type:          rafflepool.EventRaffleCancelled,
			TxHash:        env.txHashOf(t, ctx, resp.LocalTxID),
			BlockNumber:   20,
			LogIndex:      0,
			ChainRaffleID: raffle.ChainID.Int64,
		},
		Reason: "seller request",
	}
	require.NoError(t, env.projector.Project(ctx, cancelled))

	updated, err := repository.NewRaffleRepository().GetByID(ctx, raffle.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RaffleStatusCancelled, updated.Status)
	require.Equal(t, "seller request", updated.CancelReason)

	// The buyer got the box price back as credit.
	require.True(t, env.available(t, ctx, buyer.ID).Equal(decimal.NewFromInt(10)))

	// Replaying the cancellation does not double refund.
	require.NoError(t, env.projector.Project(ctx, cancelled))
	require.True(t, env.available(t, ctx, buyer.ID).Equal(decimal.NewFromInt(10)))
}

func Test_raffleDomain_CancelPermissionsAndStatuses(t *testing.T) {
	ctx := testutil.MockContext()
	env := newChainTestEnv(t, ctx)
	env.dispatchSucceeds()

	seller, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	raffle, err := testutil.SampleRaffle(ctx, &entity.Raffle{SellerID: seller.ID})
	require.NoError(t, err)

	// An admin who is not the seller can cancel.
	admin, err := testutil.SampleUser(ctx, &entity.User{Role: entity.UserRoleAdmin})
	require.NoError(t, err)

	resp, err := env.raffleDomain.Cancel(ctx, &model.CancelRaffleRequest{
		ActorID: admin.ID, RaffleID: raffle.ID, Reason: "fraudulent listing",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.LocalTxID)

	// A raffle whose creation is still in flight cannot be cancelled through
	// the api; a dead creation cancels it through the terminal hook instead.
	submitting, err := testutil.SampleRaffle(ctx, &entity.Raffle{
		SellerID: seller.ID, Status: entity.RaffleStatusSubmitting,
	})
	require.NoError(t, err)

	_, err = env.raffleDomain.Cancel(ctx, &model.CancelRaffleRequest{
		ActorID: seller.ID, RaffleID: submitting.ID, Reason: "changed my mind",
	})
	require.Error(t, err)
	require.Equal(t, errorx.BadRequest, err.(errorx.Error).Code)
}

func Test_raffleDomain_DrawAndComplete(t *testing.T) {
	ctx := testutil.MockContext()
	env := newChainTestEnv(t, ctx)
	env.dispatchSucceeds()

	seller, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	raffle, err := testutil.SampleRaffle(ctx, &entity.Raffle{
		SellerID: seller.ID, TotalBoxes: 2, GridRows: 1, GridCols: 2,
	})
	require.NoError(t, err)

	winner, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	env.fund(t, ctx, winner.ID, 100)

	resp, err := env.raffleDomain.PurchaseBoxes(ctx, &model.PurchaseBoxesRequest{
		UserID: winner.ID, RaffleID: raffle.ID, BoxNumbers: []int{1, 2},
	})
	require.NoError(t, err)

	chainRaffleID := raffle.ChainID.Int64
	base := func(eventType string, block uint64) types.EventBase {
		return types.EventBase{
			Type:          eventType,
			TxHash:        env.txHashOf(t, ctx, resp.LocalTxID),
			BlockNumber:   block,
			LogIndex:      0,
			ChainRaffleID: chainRaffleID,
		}
	}

	require.NoError(t, env.projector.Project(ctx, &types.ParticipationPurchasedEvent{
		EventBase:      base(rafflepool.EventParticipationPurchased, 30),
		Participant:    winner.WalletAddress,
		BoxesPurchased: []int{1, 2},
	}))

	// Selling the last box moves the raffle to full.
	raffleRepo := repository.NewRaffleRepository()
	updated, err := raffleRepo.GetByID(ctx, raffle.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RaffleStatusFull, updated.Status)

	require.NoError(t, env.projector.Project(ctx, &types.RandomnessRequestedEvent{
		EventBase: base(rafflepool.EventRandomnessRequested, 31),
		RequestID: big.NewInt(1),
	}))
	updated, err = raffleRepo.GetByID(ctx, raffle.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RaffleStatusDrawing, updated.Status)

	require.NoError(t, env.projector.Project(ctx, &types.RaffleCompletedEvent{
		EventBase:  base(rafflepool.EventRaffleCompleted, 32),
		Winners:    []string{winner.WalletAddress},
		RandomSeed: big.NewInt(123456),
	}))

	view, err := env.raffleDomain.Get(ctx, &model.GetRaffleRequest{RaffleID: raffle.ID})
	require.NoError(t, err)
	require.Equal(t, string(entity.RaffleStatusCompleted), view.Raffle.Status)
	require.Len(t, view.Raffle.Winners, 1)
	require.Equal(t, winner.ID, view.Raffle.Winners[0].UserID)
	require.NotNil(t, view.Raffle.CompletedAt)

	// Completed raffles cannot be cancelled.
	_, err = env.raffleDomain.Cancel(ctx, &model.CancelRaffleRequest{
		ActorID: seller.ID, RaffleID: raffle.ID, Reason: "too late",
	})
	require.Error(t, err)
	require.Equal(t, errorx.BadRequest, err.(errorx.Error).Code)
}

func Test_raffleDomain_TxStatus(t *testing.T) {
	ctx := testutil.MockContext()
	env := newChainTestEnv(t, ctx)
	env.dispatchSucceeds()

	raffle, err := testutil.SampleRaffle(ctx, nil)
	require.NoError(t, err)
	buyer, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)
	env.fund(t, ctx, buyer.ID, 100)

	resp, err := env.raffleDomain.PurchaseBoxes(ctx, &model.PurchaseBoxesRequest{
		UserID: buyer.ID, RaffleID: raffle.ID, BoxNumbers: []int{1},
	})
	require.NoError(t, err)

	env.client.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, nil)

	status, err := env.raffleDomain.TxStatus(ctx, &model.TxStatusRequest{LocalTxID: resp.LocalTxID})
	require.NoError(t, err)
	require.Equal(t, string(entity.ChainTransactionStateSubmitted), status.State)
	require.NotEmpty(t, status.Hash)
	require.Equal(t, 1, status.Attempts)
}
