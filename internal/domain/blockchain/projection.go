package blockchain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rafflehub/backend/contract/rafflepool"
	"github.com/rafflehub/backend/internal/domain/blockchain/types"
	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/internal/repository"
	"github.com/rafflehub/backend/pkg/pubsub"
	"github.com/rafflehub/backend/pkg/xcontext"
)

// CancelHandler reacts to an observed RaffleCancelled event. The raffle
// coordinator implements it to issue refunds; it runs inside the projection's
// database transaction.
type CancelHandler interface {
	OnRaffleCancelled(ctx context.Context, raffleID string) error
}

// Projector maps one contract event to its relational effect under an
// idempotency key. All projections live here to keep the at-most-once
// guarantees auditable in one place.
type Projector struct {
	chainEventRepo  repository.ChainEventRepository
	chainTxRepo     repository.ChainTransactionRepository
	raffleRepo      repository.RaffleRepository
	boxPurchaseRepo repository.BoxPurchaseRepository
	winnerRepo      repository.RaffleWinnerRepository
	creditRepo      repository.CreditRepository
	userRepo        repository.UserRepository

	publisher     pubsub.Publisher
	cancelHandler CancelHandler
}

func NewProjector(
	chainEventRepo repository.ChainEventRepository,
	chainTxRepo repository.ChainTransactionRepository,
	raffleRepo repository.RaffleRepository,
	boxPurchaseRepo repository.BoxPurchaseRepository,
	winnerRepo repository.RaffleWinnerRepository,
	creditRepo repository.CreditRepository,
	userRepo repository.UserRepository,
	publisher pubsub.Publisher,
) *Projector {
	return &Projector{
		chainEventRepo:  chainEventRepo,
		chainTxRepo:     chainTxRepo,
		raffleRepo:      raffleRepo,
		boxPurchaseRepo: boxPurchaseRepo,
		winnerRepo:      winnerRepo,
		creditRepo:      creditRepo,
		userRepo:        userRepo,
		publisher:       publisher,
	}
}

// SetCancelHandler wires the coordinator's refund-on-cancel hook. Set once
// during startup, before the processor runs.
func (p *Projector) SetCancelHandler(handler CancelHandler) {
	p.cancelHandler = handler
}

// Project applies one event in a single database transaction. Re-applying an
// already-stored event is a no-op.
func (p *Projector) Project(ctx context.Context, ev types.ContractEvent) error {
	base := ev.Base()

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	inserted, err := p.chainEventRepo.InsertIgnore(ctx, &entity.ChainEvent{
		TxHash:      base.TxHash,
		EventType:   base.Type,
		RaffleID:    base.ChainRaffleID,
		BlockNumber: base.BlockNumber,
		LogIndex:    base.LogIndex,
		Payload:     eventPayload(ev),
	})
	if err != nil {
		return err
	}

	if !inserted {
		xcontext.Logger(ctx).Debugf("Event %s/%s/%d already applied",
			base.TxHash, base.Type, base.ChainRaffleID)
		xcontext.WithCommitDBTransaction(ctx)
		return nil
	}

	if err := p.apply(ctx, ev); err != nil {
		return err
	}

	xcontext.WithCommitDBTransaction(ctx)
	p.publish(ctx, ev)
	return nil
}

func (p *Projector) apply(ctx context.Context, ev types.ContractEvent) error {
	switch e := ev.(type) {
	case *types.RaffleCreatedEvent:
		return p.applyRaffleCreated(ctx, e)
	case *types.ParticipationPurchasedEvent:
		return p.applyParticipationPurchased(ctx, e)
	case *types.RaffleFullEvent:
		return p.applyRaffleFull(ctx, e)
	case *types.RandomnessRequestedEvent:
		return p.applyRandomnessRequested(ctx, e)
	case *types.RandomnessFulfilledEvent:
		// Carries the seed only; completion is driven by RaffleCompleted.
		return nil
	case *types.RaffleCompletedEvent:
		return p.applyRaffleCompleted(ctx, e)
	case *types.RaffleCancelledEvent:
		return p.applyRaffleCancelled(ctx, e)
	case *types.RefundIssuedEvent:
		return p.applyRefundIssued(ctx, e)
	}

	return fmt.Errorf("unhandled event type %s", ev.Base().Type)
}

// applyRaffleCreated binds the contract raffle id to the local raffle that
// submitted the create call, matched through the submission's tx hash.
func (p *Projector) applyRaffleCreated(ctx context.Context, ev *types.RaffleCreatedEvent) error {
	localTx, err := p.chainTxRepo.GetByHash(ctx, ev.TxHash)
	if err != nil {
		// Not our submission. Raffles created outside this backend are not
		// tracked locally.
		xcontext.Logger(ctx).Warnf("RaffleCreated %d from unknown tx %s", ev.ChainRaffleID, ev.TxHash)
		return nil
	}

	// A sped-up creation mines under the replacement's hash while the raffle
	// still points at the original submission, so walk the replacement chain
	// back before resolving.
	createTx := localTx
	for createTx.ReplacesID.Valid {
		replaced, err := p.chainTxRepo.GetByID(ctx, createTx.ReplacesID.String)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot resolve replaced tx %s: %v",
				createTx.ReplacesID.String, err)
			return err
		}
		createTx = replaced
	}

	raffle, err := p.raffleRepo.GetByCreateTxID(ctx, createTx.ID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("No local raffle for create tx %s: %v", createTx.ID, err)
		return err
	}

	if err := p.raffleRepo.BindChainID(ctx, raffle.ID, ev.ChainRaffleID); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot bind chain id %d to raffle %s: %v",
			ev.ChainRaffleID, raffle.ID, err)
		return err
	}

	err = p.raffleRepo.UpdateStatus(ctx, raffle.ID,
		[]entity.RaffleStatusType{entity.RaffleStatusSubmitting}, entity.RaffleStatusOpen)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot open raffle %s: %v", raffle.ID, err)
		return err
	}

	return nil
}

func (p *Projector) applyParticipationPurchased(ctx context.Context, ev *types.ParticipationPurchasedEvent) error {
	raffle, err := p.raffleRepo.GetByChainID(ctx, ev.ChainRaffleID)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Purchase event for unknown raffle %d", ev.ChainRaffleID)
		return nil
	}

	buyer, err := p.userRepo.GetByWalletAddress(ctx, ev.Participant)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Purchase from unknown wallet %s on raffle %s",
			ev.Participant, raffle.ID)
		return err
	}

	var localTxID string
	if localTx, err := p.chainTxRepo.GetByHash(ctx, ev.TxHash); err == nil {
		localTxID = localTx.ID
	}

	for _, boxNumber := range ev.BoxesPurchased {
		err := p.boxPurchaseRepo.Create(ctx, &entity.BoxPurchase{
			Base:        entity.Base{ID: uuid.NewString()},
			RaffleID:    raffle.ID,
			BoxNumber:   boxNumber,
			BuyerID:     buyer.ID,
			PricePaid:   raffle.BoxPrice,
			LocalTxID:   localTxID,
			ChainTxHash: ev.TxHash,
		})
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot insert purchase of box %d on raffle %s: %v",
				boxNumber, raffle.ID, err)
			return err
		}
	}

	if err := p.raffleRepo.CheckAndSellBoxes(ctx, raffle.ID, len(ev.BoxesPurchased)); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot count %d sold boxes on raffle %s: %v",
			len(ev.BoxesPurchased), raffle.ID, err)
		return err
	}

	if raffle.BoxesSold+len(ev.BoxesPurchased) >= raffle.TotalBoxes {
		err := p.raffleRepo.UpdateStatus(ctx, raffle.ID,
			[]entity.RaffleStatusType{entity.RaffleStatusOpen}, entity.RaffleStatusFull)
		if err != nil {
			// Already moved past open, nothing to do.
			xcontext.Logger(ctx).Debugf("Raffle %s not transitioned to full: %v", raffle.ID, err)
		}
	}

	return nil
}

func (p *Projector) applyRaffleFull(ctx context.Context, ev *types.RaffleFullEvent) error {
	raffle, err := p.raffleRepo.GetByChainID(ctx, ev.ChainRaffleID)
	if err != nil {
		xcontext.Logger(ctx).Warnf("RaffleFull event for unknown raffle %d", ev.ChainRaffleID)
		return nil
	}

	err = p.raffleRepo.UpdateStatus(ctx, raffle.ID,
		[]entity.RaffleStatusType{entity.RaffleStatusOpen}, entity.RaffleStatusFull)
	if err != nil {
		xcontext.Logger(ctx).Debugf("Raffle %s already full: %v", raffle.ID, err)
	}

	return nil
}

func (p *Projector) applyRandomnessRequested(ctx context.Context, ev *types.RandomnessRequestedEvent) error {
	raffle, err := p.raffleRepo.GetByChainID(ctx, ev.ChainRaffleID)
	if err != nil {
		xcontext.Logger(ctx).Warnf("RandomnessRequested event for unknown raffle %d", ev.ChainRaffleID)
		return nil
	}

	err = p.raffleRepo.UpdateStatus(ctx, raffle.ID,
		[]entity.RaffleStatusType{entity.RaffleStatusFull}, entity.RaffleStatusDrawing)
	if err != nil {
		xcontext.Logger(ctx).Debugf("Raffle %s already drawing: %v", raffle.ID, err)
	}

	return nil
}

func (p *Projector) applyRaffleCompleted(ctx context.Context, ev *types.RaffleCompletedEvent) error {
	raffle, err := p.raffleRepo.GetByChainID(ctx, ev.ChainRaffleID)
	if err != nil {
		xcontext.Logger(ctx).Warnf("RaffleCompleted event for unknown raffle %d", ev.ChainRaffleID)
		return nil
	}

	seed := ""
	if ev.RandomSeed != nil {
		seed = fmt.Sprintf("0x%x", ev.RandomSeed)
	}

	for position, wallet := range ev.Winners {
		winner, err := p.userRepo.GetByWalletAddress(ctx, wallet)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Winner wallet %s of raffle %s has no local user",
				wallet, raffle.ID)
			return err
		}

		err = p.winnerRepo.Create(ctx, &entity.RaffleWinner{
			Base:       entity.Base{ID: uuid.NewString()},
			RaffleID:   raffle.ID,
			UserID:     winner.ID,
			Position:   position,
			RandomSeed: seed,
			WonAt:      time.Now(),
		})
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot insert winner %s of raffle %s: %v",
				winner.ID, raffle.ID, err)
			return err
		}
	}

	if err := p.raffleRepo.SetCompleted(ctx, raffle.ID, time.Now()); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot complete raffle %s: %v", raffle.ID, err)
		return err
	}

	return nil
}

func (p *Projector) applyRaffleCancelled(ctx context.Context, ev *types.RaffleCancelledEvent) error {
	raffle, err := p.raffleRepo.GetByChainID(ctx, ev.ChainRaffleID)
	if err != nil {
		xcontext.Logger(ctx).Warnf("RaffleCancelled event for unknown raffle %d", ev.ChainRaffleID)
		return nil
	}

	if err := p.raffleRepo.SetCancelled(ctx, raffle.ID, ev.Reason); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot cancel raffle %s: %v", raffle.ID, err)
		return err
	}

	if p.cancelHandler != nil {
		if err := p.cancelHandler.OnRaffleCancelled(ctx, raffle.ID); err != nil {
			xcontext.Logger(ctx).Errorf("Refund-on-cancel failed for raffle %s: %v", raffle.ID, err)
			return err
		}
	}

	return nil
}

// applyRefundIssued reconciles the on-chain refund against the ledger. The
// coordinator already issued the compensation; a missing local record is an
// inconsistency worth an alert, never a reason to double-issue.
func (p *Projector) applyRefundIssued(ctx context.Context, ev *types.RefundIssuedEvent) error {
	raffle, err := p.raffleRepo.GetByChainID(ctx, ev.ChainRaffleID)
	if err != nil {
		xcontext.Logger(ctx).Warnf("RefundIssued event for unknown raffle %d", ev.ChainRaffleID)
		return nil
	}

	user, err := p.userRepo.GetByWalletAddress(ctx, ev.Participant)
	if err != nil {
		xcontext.Logger(ctx).Errorf("RefundIssued for unknown wallet %s on raffle %s",
			ev.Participant, raffle.ID)
		return nil
	}

	entries, err := p.creditRepo.GetEntriesByUserID(ctx, user.ID)
	if err != nil {
		return err
	}

	marker := fmt.Sprintf("raffle_id=%s", raffle.ID)
	for i := range entries {
		if entries[i].Type == entity.CreditEntryIssue && strings.Contains(entries[i].Reason, marker) {
			return nil
		}
	}

	xcontext.Logger(ctx).Errorf(
		"On-chain refund of raffle %s for user %s has no matching ledger entry", raffle.ID, user.ID)
	return nil
}

func (p *Projector) publish(ctx context.Context, ev types.ContractEvent) {
	if p.publisher == nil {
		return
	}

	base := ev.Base()
	topic := xcontext.Configs(ctx).Chain.EventTopic
	if topic == "" {
		return
	}

	msg, err := json.Marshal(map[string]any{
		"type":      base.Type,
		"tx_hash":   base.TxHash,
		"block":     base.BlockNumber,
		"log_index": base.LogIndex,
		"raffle_id": base.ChainRaffleID,
		"payload":   eventPayload(ev),
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot marshal event for publication: %v", err)
		return
	}

	err = p.publisher.Publish(ctx, topic, &pubsub.Pack{Key: []byte(base.TxHash), Msg: msg})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot publish event %s/%s: %v", base.TxHash, base.Type, err)
	}
}

func eventPayload(ev types.ContractEvent) entity.Map {
	b, err := json.Marshal(ev)
	if err != nil {
		return entity.Map{}
	}

	var m entity.Map
	if err := json.Unmarshal(b, &m); err != nil {
		return entity.Map{}
	}

	return m
}

// NormalizeLog converts a parsed contract log into the processor's event sum
// type.
func NormalizeLog(parsed any) (types.ContractEvent, error) {
	switch e := parsed.(type) {
	case *rafflepool.RaffleCreated:
		return &types.RaffleCreatedEvent{
			EventBase:    baseOf(rafflepool.EventRaffleCreated, e.RaffleId.Int64(), e.Raw),
			Creator:      e.Creator.Hex(),
			TotalBoxes:   int(e.TotalBoxes.Int64()),
			BoxPrice:     e.BoxPrice,
			TotalWinners: int(e.TotalWinners.Int64()),
		}, nil

	case *rafflepool.ParticipationPurchased:
		boxes := make([]int, 0, len(e.BoxesPurchased))
		for _, b := range e.BoxesPurchased {
			boxes = append(boxes, int(b.Int64()))
		}

		return &types.ParticipationPurchasedEvent{
			EventBase:       baseOf(rafflepool.EventParticipationPurchased, e.RaffleId.Int64(), e.Raw),
			Participant:     e.Participant.Hex(),
			ParticipationID: e.ParticipationId.Int64(),
			BoxesPurchased:  boxes,
			TotalCost:       e.TotalCost,
		}, nil

	case *rafflepool.RaffleFull:
		return &types.RaffleFullEvent{
			EventBase: baseOf(rafflepool.EventRaffleFull, e.RaffleId.Int64(), e.Raw),
		}, nil

	case *rafflepool.RandomnessRequested:
		return &types.RandomnessRequestedEvent{
			EventBase: baseOf(rafflepool.EventRandomnessRequested, e.RaffleId.Int64(), e.Raw),
			RequestID: e.RequestId,
		}, nil

	case *rafflepool.RandomnessFulfilled:
		return &types.RandomnessFulfilledEvent{
			EventBase:  baseOf(rafflepool.EventRandomnessFulfilled, e.RaffleId.Int64(), e.Raw),
			RandomSeed: e.RandomSeed,
		}, nil

	case *rafflepool.RaffleCompleted:
		winners := make([]string, 0, len(e.Winners))
		for _, w := range e.Winners {
			winners = append(winners, w.Hex())
		}

		return &types.RaffleCompletedEvent{
			EventBase:  baseOf(rafflepool.EventRaffleCompleted, e.RaffleId.Int64(), e.Raw),
			Winners:    winners,
			RandomSeed: e.RandomSeed,
		}, nil

	case *rafflepool.RaffleCancelled:
		return &types.RaffleCancelledEvent{
			EventBase: baseOf(rafflepool.EventRaffleCancelled, e.RaffleId.Int64(), e.Raw),
			Reason:    e.Reason,
		}, nil

	case *rafflepool.RefundIssued:
		return &types.RefundIssuedEvent{
			EventBase:   baseOf(rafflepool.EventRefundIssued, e.RaffleId.Int64(), e.Raw),
			Participant: e.Participant.Hex(),
			Amount:      e.Amount,
		}, nil
	}

	return nil, fmt.Errorf("unsupported parsed event %T", parsed)
}

func baseOf(eventType string, chainRaffleID int64, raw ethtypes.Log) types.EventBase {
	return types.EventBase{
		Type:          eventType,
		TxHash:        raw.TxHash.Hex(),
		BlockNumber:   raw.BlockNumber,
		LogIndex:      raw.Index,
		ChainRaffleID: chainRaffleID,
	}
}
