package domain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rafflehub/backend/contract/rafflepool"
	"github.com/rafflehub/backend/internal/domain/blockchain"
	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/internal/model"
	"github.com/rafflehub/backend/internal/repository"
	"github.com/rafflehub/backend/pkg/crypto"
	"github.com/rafflehub/backend/pkg/errorx"
	"github.com/rafflehub/backend/pkg/xcontext"
	"github.com/rafflehub/backend/pkg/xsync"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RaffleDomain coordinates the raffle lifecycle between the local database
// and the pool contract. Every state-changing call follows the same shape:
// validate locally, reserve local state, submit the contract call, and let
// the event projection confirm the transition.
type RaffleDomain interface {
	Create(ctx context.Context, req *model.CreateRaffleRequest) (*model.CreateRaffleResponse, error)
	PurchaseBoxes(ctx context.Context, req *model.PurchaseBoxesRequest) (*model.PurchaseBoxesResponse, error)
	Cancel(ctx context.Context, req *model.CancelRaffleRequest) (*model.CancelRaffleResponse, error)
	ClaimRefund(ctx context.Context, req *model.ClaimRefundRequest) (*model.ClaimRefundResponse, error)
	RequestDraw(ctx context.Context, req *model.RequestDrawRequest) (*model.RequestDrawResponse, error)
	Get(ctx context.Context, req *model.GetRaffleRequest) (*model.GetRaffleResponse, error)
	TxStatus(ctx context.Context, req *model.TxStatusRequest) (*model.TxStatusResponse, error)
}

type raffleDomain struct {
	raffleRepo      repository.RaffleRepository
	boxPurchaseRepo repository.BoxPurchaseRepository
	winnerRepo      repository.RaffleWinnerRepository
	itemRepo        repository.ItemRepository
	userRepo        repository.UserRepository

	creditDomain CreditDomain
	txManager    *blockchain.TxManager
	pool         *rafflepool.RafflePool

	raffleLocks *xsync.KeyedMutex
}

func NewRaffleDomain(
	raffleRepo repository.RaffleRepository,
	boxPurchaseRepo repository.BoxPurchaseRepository,
	winnerRepo repository.RaffleWinnerRepository,
	itemRepo repository.ItemRepository,
	userRepo repository.UserRepository,
	creditDomain CreditDomain,
	txManager *blockchain.TxManager,
	pool *rafflepool.RafflePool,
) *raffleDomain {
	return &raffleDomain{
		raffleRepo:      raffleRepo,
		boxPurchaseRepo: boxPurchaseRepo,
		winnerRepo:      winnerRepo,
		itemRepo:        itemRepo,
		userRepo:        userRepo,
		creditDomain:    creditDomain,
		txManager:       txManager,
		pool:            pool,
		raffleLocks:     xsync.NewKeyedMutex(),
	}
}

func (d *raffleDomain) Create(ctx context.Context, req *model.CreateRaffleRequest) (*model.CreateRaffleResponse, error) {
	if req.TotalBoxes <= 0 {
		return nil, errorx.New(errorx.BadRequest, "Total boxes must be positive")
	}

	if req.TotalWinners <= 0 || req.TotalWinners > req.TotalBoxes {
		return nil, errorx.New(errorx.BadRequest, "Invalid number of winners")
	}

	boxPrice, err := decimal.NewFromString(req.BoxPrice)
	if err != nil || !boxPrice.IsPositive() {
		return nil, errorx.New(errorx.BadRequest, "Invalid box price")
	}

	if req.GridRows <= 0 || req.GridCols <= 0 || req.GridRows*req.GridCols < req.TotalBoxes {
		return nil, errorx.New(errorx.BadRequest, "Grid is too small for total boxes")
	}

	seller, err := d.userRepo.GetByID(ctx, req.SellerID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get seller %s: %v", req.SellerID, err)
		return nil, errorx.New(errorx.NotFound, "Not found seller")
	}

	item, err := d.itemRepo.GetByID(ctx, req.ItemID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get item %s: %v", req.ItemID, err)
		return nil, errorx.New(errorx.NotFound, "Not found item")
	}

	if item.OwnerID != seller.ID {
		return nil, errorx.New(errorx.PermissionDenied, "Only the item owner can raffle it")
	}

	_, err = d.raffleRepo.GetActiveByItemID(ctx, item.ID)
	if err == nil {
		return nil, errorx.New(errorx.AlreadyExists, "Item already has an active raffle")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		xcontext.Logger(ctx).Errorf("Cannot check active raffle of item %s: %v", item.ID, err)
		return nil, errorx.Unknown
	}

	raffle := &entity.Raffle{
		Base:            entity.Base{ID: uuid.NewString()},
		SellerID:        seller.ID,
		ItemID:          item.ID,
		TotalBoxes:      req.TotalBoxes,
		BoxPrice:        boxPrice,
		TotalWinners:    req.TotalWinners,
		GridRows:        req.GridRows,
		GridCols:        req.GridCols,
		MaxBoxesPerUser: req.MaxBoxesPerUser,
		Status:          entity.RaffleStatusDraft,
	}
	if err := d.raffleRepo.Create(ctx, raffle); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create raffle: %v", err)
		return nil, errorx.Unknown
	}

	data, err := d.pool.PackCreateRaffle(rafflepool.CreateRaffleParams{
		Seller:          ethcommon.HexToAddress(seller.WalletAddress),
		ItemToken:       ethcommon.Address{},
		ItemTokenID:     big.NewInt(0),
		TotalBoxes:      big.NewInt(int64(req.TotalBoxes)),
		BoxPrice:        toWei(boxPrice),
		TotalWinners:    big.NewInt(int64(req.TotalWinners)),
		MaxBoxesPerUser: big.NewInt(int64(req.MaxBoxesPerUser)),
		GridRows:        big.NewInt(int64(req.GridRows)),
		GridCols:        big.NewInt(int64(req.GridCols)),
		StartTime:       big.NewInt(0),
		EndTime:         big.NewInt(0),
		PaymentToken:    ethcommon.Address{},
		MetadataHash:    crypto.Digest([]byte(item.ID)),
		AutoDrawOnFull:  true,
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot pack createRaffle of %s: %v", raffle.ID, err)
		return nil, errorx.Unknown
	}

	localTxID, err := d.txManager.Submit(ctx, blockchain.SubmitRequest{
		To:   d.pool.Address(),
		Data: data,
		Meta: entity.Map{"kind": "create_raffle", "raffle_id": raffle.ID},
	})
	if localTxID != "" {
		if txErr := d.raffleRepo.SetCreateTx(ctx, raffle.ID, localTxID); txErr != nil {
			xcontext.Logger(ctx).Errorf("Cannot bind create tx of raffle %s: %v", raffle.ID, txErr)
		}
	}

	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot submit createRaffle of %s: %v", raffle.ID, err)
		if cancelErr := d.raffleRepo.SetCancelled(ctx, raffle.ID, "submission failed"); cancelErr != nil {
			xcontext.Logger(ctx).Errorf("Cannot cancel raffle %s: %v", raffle.ID, cancelErr)
		}
		return nil, errorx.New(errorx.OperationFailed, "Cannot submit raffle creation")
	}

	err = d.raffleRepo.UpdateStatus(ctx, raffle.ID,
		[]entity.RaffleStatusType{entity.RaffleStatusDraft}, entity.RaffleStatusSubmitting)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot move raffle %s to submitting: %v", raffle.ID, err)
		return nil, errorx.Unknown
	}

	return &model.CreateRaffleResponse{RaffleID: raffle.ID, LocalTxID: localTxID}, nil
}

// PurchaseBoxes reserves boxes, debits the buyer's credits, and submits the
// purchase on chain. If the submission cannot even be dispatched the debit is
// compensated immediately; a later on-chain revert is compensated through
// OnTransactionTerminal.
func (d *raffleDomain) PurchaseBoxes(ctx context.Context, req *model.PurchaseBoxesRequest) (*model.PurchaseBoxesResponse, error) {
	if len(req.BoxNumbers) == 0 {
		return nil, errorx.New(errorx.BadRequest, "No boxes requested")
	}

	seen := map[int]bool{}
	for _, n := range req.BoxNumbers {
		if seen[n] {
			return nil, errorx.New(errorx.BadRequest, "Duplicated box number %d", n)
		}
		seen[n] = true
	}

	d.raffleLocks.Lock(req.RaffleID)
	defer d.raffleLocks.Unlock(req.RaffleID)

	raffle, err := d.raffleRepo.GetByID(ctx, req.RaffleID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get raffle %s: %v", req.RaffleID, err)
		return nil, errorx.New(errorx.NotFound, "Not found raffle")
	}

	if raffle.Status != entity.RaffleStatusOpen {
		return nil, errorx.New(errorx.BadRequest, "Raffle is not open for purchase")
	}

	if !raffle.ChainID.Valid {
		xcontext.Logger(ctx).Errorf("Open raffle %s has no chain id", raffle.ID)
		return nil, errorx.Unknown
	}

	for _, n := range req.BoxNumbers {
		if n < 1 || n > raffle.TotalBoxes {
			return nil, errorx.New(errorx.BadRequest, "Box number %d is out of range", n)
		}
	}

	taken, err := d.boxPurchaseRepo.GetBoxNumbers(ctx, raffle.ID, req.BoxNumbers)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot check boxes of raffle %s: %v", raffle.ID, err)
		return nil, errorx.Unknown
	}
	if len(taken) > 0 {
		return nil, errorx.New(errorx.AlreadyExists, "Box %d is already sold", taken[0].BoxNumber)
	}

	if raffle.MaxBoxesPerUser > 0 {
		owned, err := d.boxPurchaseRepo.CountByRaffleAndBuyer(ctx, raffle.ID, req.UserID)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot count boxes of buyer %s: %v", req.UserID, err)
			return nil, errorx.Unknown
		}

		if int(owned)+len(req.BoxNumbers) > raffle.MaxBoxesPerUser {
			return nil, errorx.New(errorx.BadRequest,
				"Cannot hold more than %d boxes in this raffle", raffle.MaxBoxesPerUser)
		}
	}

	total := raffle.BoxPrice.Mul(decimal.NewFromInt(int64(len(req.BoxNumbers))))
	_, err = d.creditDomain.RedeemLots(ctx, req.UserID, total,
		sql.NullString{Valid: true, String: raffle.ItemID},
		fmt.Sprintf("purchase raffle_id=%s", raffle.ID))
	if err != nil {
		return nil, err
	}

	boxes := make([]*big.Int, 0, len(req.BoxNumbers))
	for _, n := range req.BoxNumbers {
		boxes = append(boxes, big.NewInt(int64(n)))
	}

	data, err := d.pool.PackPurchaseParticipation(big.NewInt(raffle.ChainID.Int64), boxes, nil)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot pack purchase of raffle %s: %v", raffle.ID, err)
		d.compensatePurchase(ctx, req.UserID, total, raffle.ID, "pack:"+uuid.NewString())
		return nil, errorx.Unknown
	}

	localTxID, err := d.txManager.Submit(ctx, blockchain.SubmitRequest{
		To:    d.pool.Address(),
		Data:  data,
		Value: toWei(total),
		Meta: entity.Map{
			"kind":      "purchase",
			"user_id":   req.UserID,
			"raffle_id": raffle.ID,
			"amount":    total.String(),
		},
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot submit purchase of raffle %s: %v", raffle.ID, err)
		d.compensatePurchase(ctx, req.UserID, total, raffle.ID, "revert:"+localTxID)
		return nil, errorx.New(errorx.OperationFailed, "Cannot submit purchase")
	}

	return &model.PurchaseBoxesResponse{
		LocalTxID:  localTxID,
		TotalPrice: total.String(),
	}, nil
}

func (d *raffleDomain) Cancel(ctx context.Context, req *model.CancelRaffleRequest) (*model.CancelRaffleResponse, error) {
	raffle, err := d.raffleRepo.GetByID(ctx, req.RaffleID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get raffle %s: %v", req.RaffleID, err)
		return nil, errorx.New(errorx.NotFound, "Not found raffle")
	}

	actor, err := d.userRepo.GetByID(ctx, req.ActorID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get actor %s: %v", req.ActorID, err)
		return nil, errorx.New(errorx.NotFound, "Not found actor")
	}

	if raffle.SellerID != actor.ID && actor.Role != entity.UserRoleAdmin {
		return nil, errorx.New(errorx.PermissionDenied, "Only the seller or an admin can cancel this raffle")
	}

	switch raffle.Status {
	case entity.RaffleStatusDraft, entity.RaffleStatusOpen, entity.RaffleStatusFull:
	default:
		return nil, errorx.New(errorx.BadRequest, "Raffle in status %s cannot be cancelled", raffle.Status)
	}

	// Without a contract-side raffle there is nothing to cancel on chain.
	if !raffle.ChainID.Valid {
		if err := d.raffleRepo.SetCancelled(ctx, raffle.ID, req.Reason); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot cancel raffle %s: %v", raffle.ID, err)
			return nil, errorx.Unknown
		}

		return &model.CancelRaffleResponse{}, nil
	}

	data, err := d.pool.PackCancelRaffle(big.NewInt(raffle.ChainID.Int64), req.Reason)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot pack cancelRaffle of %s: %v", raffle.ID, err)
		return nil, errorx.Unknown
	}

	localTxID, err := d.txManager.Submit(ctx, blockchain.SubmitRequest{
		To:   d.pool.Address(),
		Data: data,
		Meta: entity.Map{"kind": "cancel", "raffle_id": raffle.ID},
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot submit cancelRaffle of %s: %v", raffle.ID, err)
		return nil, errorx.New(errorx.OperationFailed, "Cannot submit cancellation")
	}

	return &model.CancelRaffleResponse{LocalTxID: localTxID}, nil
}

func (d *raffleDomain) ClaimRefund(ctx context.Context, req *model.ClaimRefundRequest) (*model.ClaimRefundResponse, error) {
	raffle, err := d.raffleRepo.GetByID(ctx, req.RaffleID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get raffle %s: %v", req.RaffleID, err)
		return nil, errorx.New(errorx.NotFound, "Not found raffle")
	}

	if raffle.Status != entity.RaffleStatusCancelled {
		return nil, errorx.New(errorx.BadRequest, "Raffle is not cancelled")
	}

	if !raffle.ChainID.Valid {
		return nil, errorx.New(errorx.BadRequest, "Raffle was never created on chain")
	}

	owned, err := d.boxPurchaseRepo.CountByRaffleAndBuyer(ctx, raffle.ID, req.UserID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot count boxes of buyer %s: %v", req.UserID, err)
		return nil, errorx.Unknown
	}

	if owned == 0 {
		return nil, errorx.New(errorx.BadRequest, "No purchase to refund")
	}

	data, err := d.pool.PackClaimRefund(big.NewInt(raffle.ChainID.Int64))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot pack claimRefund of %s: %v", raffle.ID, err)
		return nil, errorx.Unknown
	}

	localTxID, err := d.txManager.Submit(ctx, blockchain.SubmitRequest{
		To:   d.pool.Address(),
		Data: data,
		Meta: entity.Map{"kind": "claim_refund", "raffle_id": raffle.ID, "user_id": req.UserID},
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot submit claimRefund of %s: %v", raffle.ID, err)
		return nil, errorx.New(errorx.OperationFailed, "Cannot submit refund claim")
	}

	return &model.ClaimRefundResponse{LocalTxID: localTxID}, nil
}

func (d *raffleDomain) RequestDraw(ctx context.Context, req *model.RequestDrawRequest) (*model.RequestDrawResponse, error) {
	raffle, err := d.raffleRepo.GetByID(ctx, req.RaffleID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get raffle %s: %v", req.RaffleID, err)
		return nil, errorx.New(errorx.NotFound, "Not found raffle")
	}

	if raffle.SellerID != req.ActorID {
		return nil, errorx.New(errorx.PermissionDenied, "Only the seller can request the draw")
	}

	if raffle.Status != entity.RaffleStatusFull {
		return nil, errorx.New(errorx.BadRequest, "Raffle is not full yet")
	}

	if !raffle.ChainID.Valid {
		xcontext.Logger(ctx).Errorf("Full raffle %s has no chain id", raffle.ID)
		return nil, errorx.Unknown
	}

	data, err := d.pool.PackRequestRandomWinner(big.NewInt(raffle.ChainID.Int64))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot pack requestRandomWinner of %s: %v", raffle.ID, err)
		return nil, errorx.Unknown
	}

	localTxID, err := d.txManager.Submit(ctx, blockchain.SubmitRequest{
		To:   d.pool.Address(),
		Data: data,
		Meta: entity.Map{"kind": "request_draw", "raffle_id": raffle.ID},
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot submit requestRandomWinner of %s: %v", raffle.ID, err)
		return nil, errorx.New(errorx.OperationFailed, "Cannot submit draw request")
	}

	return &model.RequestDrawResponse{LocalTxID: localTxID}, nil
}

func (d *raffleDomain) Get(ctx context.Context, req *model.GetRaffleRequest) (*model.GetRaffleResponse, error) {
	raffle, err := d.raffleRepo.GetByID(ctx, req.RaffleID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get raffle %s: %v", req.RaffleID, err)
		return nil, errorx.New(errorx.NotFound, "Not found raffle")
	}

	view := model.RaffleView{
		ID:              raffle.ID,
		SellerID:        raffle.SellerID,
		ItemID:          raffle.ItemID,
		TotalBoxes:      raffle.TotalBoxes,
		BoxPrice:        raffle.BoxPrice.String(),
		TotalWinners:    raffle.TotalWinners,
		BoxesSold:       raffle.BoxesSold,
		GridRows:        raffle.GridRows,
		GridCols:        raffle.GridCols,
		MaxBoxesPerUser: raffle.MaxBoxesPerUser,
		Status:          string(raffle.Status),
		CancelReason:    raffle.CancelReason,
	}

	if raffle.ChainID.Valid {
		view.ChainID = raffle.ChainID.Int64
	}

	if raffle.CompletedAt.Valid {
		completedAt := raffle.CompletedAt.Time
		view.CompletedAt = &completedAt
	}

	if raffle.Status == entity.RaffleStatusCompleted {
		winners, err := d.winnerRepo.GetByRaffleID(ctx, raffle.ID)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot get winners of raffle %s: %v", raffle.ID, err)
			return nil, errorx.Unknown
		}

		for i := range winners {
			view.Winners = append(view.Winners, model.RaffleWinnerView{
				UserID:   winners[i].UserID,
				Position: winners[i].Position,
			})
		}
	}

	return &model.GetRaffleResponse{Raffle: view}, nil
}

func (d *raffleDomain) TxStatus(ctx context.Context, req *model.TxStatusRequest) (*model.TxStatusResponse, error) {
	record, confirmations, err := d.txManager.Status(ctx, req.LocalTxID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get status of tx %s: %v", req.LocalTxID, err)
		return nil, errorx.New(errorx.NotFound, "Not found transaction")
	}

	resp := &model.TxStatusResponse{
		LocalTxID:     record.ID,
		State:         string(record.State),
		Attempts:      record.Attempts,
		Confirmations: confirmations,
	}
	if record.Hash.Valid {
		resp.Hash = record.Hash.String
	}

	return resp, nil
}

// OnRaffleCancelled refunds every purchase of the raffle as credit lots. The
// projector calls it inside the cancellation transaction; refunded_for plus
// the idempotent issuance keep replays from double paying.
func (d *raffleDomain) OnRaffleCancelled(ctx context.Context, raffleID string) error {
	purchases, err := d.boxPurchaseRepo.GetByRaffleID(ctx, raffleID)
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(xcontext.Configs(ctx).Credit.RefundExpiryOrDefault())
	for i := range purchases {
		if purchases[i].RefundedFor.Valid {
			continue
		}

		_, entryID, err := d.creditDomain.IssueLot(ctx, LotIssue{
			UserID:         purchases[i].BuyerID,
			Amount:         purchases[i].PricePaid,
			Source:         entity.CreditSourceRefund,
			Kind:           entity.CreditKindGeneral,
			ExpiresAt:      sql.NullTime{Valid: true, Time: expiresAt},
			Reason:         fmt.Sprintf("cancelled raffle_id=%s purchase=%s", raffleID, purchases[i].ID),
			IdempotencyKey: "cancel-refund:" + purchases[i].ID,
		})
		if err != nil {
			return err
		}

		err = d.boxPurchaseRepo.MarkRefunded(ctx, purchases[i].ID, entryID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	return nil
}

// OnTransactionTerminal compensates transactions that died without a mined
// receipt. A failed or dropped purchase returns the debited credits; a failed
// creation cancels the raffle that was waiting for it.
func (d *raffleDomain) OnTransactionTerminal(
	ctx context.Context, tx *entity.ChainTransaction, state entity.ChainTransactionStateType,
) {
	if state != entity.ChainTransactionStateFailed && state != entity.ChainTransactionStateDropped {
		return
	}

	meta := txMeta(tx)
	if meta == nil {
		return
	}

	kind, _ := meta["kind"].(string)
	switch kind {
	case "purchase":
		userID, _ := meta["user_id"].(string)
		raffleID, _ := meta["raffle_id"].(string)
		amountStr, _ := meta["amount"].(string)
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Invalid amount %q in tx %s meta: %v", amountStr, tx.ID, err)
			return
		}

		d.compensatePurchase(ctx, userID, amount, raffleID, "revert:"+tx.ID)

	case "create_raffle":
		raffleID, _ := meta["raffle_id"].(string)
		raffle, err := d.raffleRepo.GetByID(ctx, raffleID)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot get raffle %s of dead tx %s: %v", raffleID, tx.ID, err)
			return
		}

		if raffle.Status != entity.RaffleStatusSubmitting && raffle.Status != entity.RaffleStatusDraft {
			return
		}

		if err := d.raffleRepo.SetCancelled(ctx, raffleID, "submission failed"); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot cancel raffle %s after dead tx %s: %v", raffleID, tx.ID, err)
		}
	}
}

func (d *raffleDomain) compensatePurchase(
	ctx context.Context, userID string, amount decimal.Decimal, raffleID, idempotencyKey string,
) {
	_, _, err := d.creditDomain.IssueLot(ctx, LotIssue{
		UserID: userID,
		Amount: amount,
		Source: entity.CreditSourceRefund,
		Kind:   entity.CreditKindGeneral,
		ExpiresAt: sql.NullTime{
			Valid: true,
			Time:  time.Now().Add(xcontext.Configs(ctx).Credit.RefundExpiryOrDefault()),
		},
		Reason:         fmt.Sprintf("reverted purchase raffle_id=%s", raffleID),
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf(
			"Cannot refund %s credits to user %s for raffle %s: %v", amount, userID, raffleID, err)
	}
}

// txMeta reads the submission meta back from the raw payload. Depending on
// whether the record did a database round trip the map value is either an
// entity.Map or a plain decoded map.
func txMeta(tx *entity.ChainTransaction) entity.Map {
	if tx.Raw == nil {
		return nil
	}

	switch v := tx.Raw["meta"].(type) {
	case entity.Map:
		return v
	case map[string]any:
		return v
	}

	return nil
}

func toWei(amount decimal.Decimal) *big.Int {
	return amount.Mul(decimal.New(1, 18)).BigInt()
}
