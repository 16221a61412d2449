package domain

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/internal/model"
	"github.com/rafflehub/backend/internal/repository"
	"github.com/rafflehub/backend/pkg/enum"
	"github.com/rafflehub/backend/pkg/errorx"
	"github.com/rafflehub/backend/pkg/pubsub"
	"github.com/rafflehub/backend/pkg/xcontext"
	"github.com/rafflehub/backend/pkg/xsync"
	"github.com/shopspring/decimal"
)

// CreditDomain is the append-only credit-lot ledger. Redemption consumes live
// lots in FIFO expiry order; item-scoped lots only pay for their own item.
type CreditDomain interface {
	Issue(ctx context.Context, req *model.IssueCreditRequest) (*model.IssueCreditResponse, error)
	Redeem(ctx context.Context, req *model.RedeemCreditRequest) (*model.RedeemCreditResponse, error)
	Balance(ctx context.Context, req *model.CreditBalanceRequest) (*model.CreditBalanceResponse, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	HandleDepositEvent(ctx context.Context, topic string, pack *pubsub.Pack, tt time.Time)

	// Typed entry points used by the raffle coordinator.
	IssueLot(ctx context.Context, issue LotIssue) (lotID, entryID string, err error)
	RedeemLots(ctx context.Context, userID string, amount decimal.Decimal, itemID sql.NullString, reason string) (*model.RedeemCreditResponse, error)
	Available(ctx context.Context, userID string, itemID sql.NullString) (decimal.Decimal, error)
}

// LotIssue describes one issuance. A non-empty IdempotencyKey makes the
// issuance at-most-once: re-issuing with the same key returns the original
// lot without creating anything.
type LotIssue struct {
	UserID         string
	Amount         decimal.Decimal
	Source         entity.CreditSourceType
	Kind           entity.CreditKindType
	ItemID         sql.NullString
	ExpiresAt      sql.NullTime
	Reason         string
	IdempotencyKey string
}

type creditDomain struct {
	creditRepo repository.CreditRepository
	userLocks  *xsync.KeyedMutex
}

func NewCreditDomain(creditRepo repository.CreditRepository) *creditDomain {
	return &creditDomain{
		creditRepo: creditRepo,
		userLocks:  xsync.NewKeyedMutex(),
	}
}

func (d *creditDomain) Issue(ctx context.Context, req *model.IssueCreditRequest) (*model.IssueCreditResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, errorx.New(errorx.BadRequest, "Invalid amount")
	}

	source, err := enum.ToEnum[entity.CreditSourceType](req.Source)
	if err != nil {
		return nil, errorx.New(errorx.BadRequest, "Invalid credit source")
	}

	kind, err := enum.ToEnum[entity.CreditKindType](req.Kind)
	if err != nil {
		return nil, errorx.New(errorx.BadRequest, "Invalid credit kind")
	}

	itemID := sql.NullString{}
	if kind == entity.CreditKindItemScoped {
		if req.ItemID == "" {
			return nil, errorx.New(errorx.BadRequest, "Item-scoped credit needs an item")
		}
		itemID = sql.NullString{Valid: true, String: req.ItemID}
	}

	expiresAt := sql.NullTime{}
	if req.ExpiresAt != nil {
		expiresAt = sql.NullTime{Valid: true, Time: *req.ExpiresAt}
	}

	lotID, _, err := d.IssueLot(ctx, LotIssue{
		UserID:    req.UserID,
		Amount:    amount,
		Source:    source,
		Kind:      kind,
		ItemID:    itemID,
		ExpiresAt: expiresAt,
		Reason:    req.Reason,
	})
	if err != nil {
		return nil, err
	}

	return &model.IssueCreditResponse{LotID: lotID}, nil
}

func (d *creditDomain) IssueLot(ctx context.Context, issue LotIssue) (string, string, error) {
	if !issue.Amount.IsPositive() {
		return "", "", errorx.New(errorx.BadRequest, "Invalid amount")
	}

	if issue.IdempotencyKey != "" {
		entry, err := d.creditRepo.GetEntryByKey(ctx, issue.IdempotencyKey)
		if err == nil {
			xcontext.Logger(ctx).Infof("Issuance %s already applied, lot %s",
				issue.IdempotencyKey, entry.LotID)
			return entry.LotID, entry.ID, nil
		}
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	lot := &entity.CreditLot{
		Base:      entity.Base{ID: uuid.NewString()},
		UserID:    issue.UserID,
		Amount:    issue.Amount,
		Remaining: issue.Amount,
		Source:    issue.Source,
		Kind:      issue.Kind,
		ItemID:    issue.ItemID,
		ExpiresAt: issue.ExpiresAt,
	}
	if err := d.creditRepo.CreateLot(ctx, lot); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create credit lot: %v", err)
		return "", "", errorx.Unknown
	}

	idempotencyKey := sql.NullString{}
	if issue.IdempotencyKey != "" {
		idempotencyKey = sql.NullString{Valid: true, String: issue.IdempotencyKey}
	}

	entry := &entity.CreditEntry{
		Base:           entity.Base{ID: uuid.NewString()},
		LotID:          lot.ID,
		UserID:         issue.UserID,
		Delta:          issue.Amount,
		Type:           entity.CreditEntryIssue,
		Reason:         issue.Reason,
		IdempotencyKey: idempotencyKey,
	}
	if err := d.creditRepo.CreateEntry(ctx, entry); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create issue entry: %v", err)
		return "", "", errorx.Unknown
	}

	xcontext.WithCommitDBTransaction(ctx)
	return lot.ID, entry.ID, nil
}

// HandleDepositEvent consumes finalized deposits from the payments topic and
// issues the matching General lot. Kafka redelivers on rebalance, so the
// issuance is keyed by the deposit id.
func (d *creditDomain) HandleDepositEvent(ctx context.Context, topic string, pack *pubsub.Pack, tt time.Time) {
	var ev model.DepositEvent
	if err := json.Unmarshal(pack.Msg, &ev); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot unmarshal deposit event: %v", err)
		return
	}

	if ev.DepositID == "" || ev.UserID == "" {
		xcontext.Logger(ctx).Errorf("Malformed deposit event on %s: %s", topic, string(pack.Msg))
		return
	}

	amount, err := decimal.NewFromString(ev.Amount)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Invalid amount in deposit %s: %v", ev.DepositID, err)
		return
	}

	expiresAt := sql.NullTime{}
	if expiry := xcontext.Configs(ctx).Credit.DepositExpiry; expiry > 0 {
		expiresAt = sql.NullTime{Valid: true, Time: tt.Add(expiry)}
	}

	_, _, err = d.IssueLot(ctx, LotIssue{
		UserID:         ev.UserID,
		Amount:         amount,
		Source:         entity.CreditSourceDeposit,
		Kind:           entity.CreditKindGeneral,
		ExpiresAt:      expiresAt,
		Reason:         fmt.Sprintf("deposit %s", ev.DepositID),
		IdempotencyKey: "deposit:" + ev.DepositID,
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot issue credits of deposit %s: %v", ev.DepositID, err)
	}
}

func (d *creditDomain) Redeem(ctx context.Context, req *model.RedeemCreditRequest) (*model.RedeemCreditResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, errorx.New(errorx.BadRequest, "Invalid amount")
	}

	itemID := sql.NullString{}
	if req.ItemID != "" {
		itemID = sql.NullString{Valid: true, String: req.ItemID}
	}

	return d.RedeemLots(ctx, req.UserID, amount, itemID, req.Reason)
}

// RedeemLots debits live lots in FIFO order until amount is covered. Nothing
// changes when the eligible balance is short. Redemptions of one user
// serialize on an in-process lock.
func (d *creditDomain) RedeemLots(
	ctx context.Context, userID string, amount decimal.Decimal, itemID sql.NullString, reason string,
) (*model.RedeemCreditResponse, error) {
	if !amount.IsPositive() {
		return nil, errorx.New(errorx.BadRequest, "Invalid amount")
	}

	d.userLocks.Lock(userID)
	defer d.userLocks.Unlock(userID)

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	lots, err := d.creditRepo.GetLiveLots(ctx, userID, itemID, time.Now())
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot load live lots of user %s: %v", userID, err)
		return nil, errorx.Unknown
	}

	total := decimal.Zero
	for i := range lots {
		total = total.Add(lots[i].Remaining)
	}

	if total.LessThan(amount) {
		return nil, errorx.New(errorx.InsufficientCredits, "Not enough credits")
	}

	remaining := amount
	touched := []string{}
	for i := range lots {
		if !remaining.IsPositive() {
			break
		}

		take := decimal.Min(lots[i].Remaining, remaining)
		if err := d.creditRepo.CheckAndRedeemLot(ctx, lots[i].ID, take); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot redeem %s from lot %s: %v", take, lots[i].ID, err)
			return nil, errorx.Unknown
		}

		entry := &entity.CreditEntry{
			Base:   entity.Base{ID: uuid.NewString()},
			LotID:  lots[i].ID,
			UserID: userID,
			Delta:  take.Neg(),
			Type:   entity.CreditEntryRedeem,
			Reason: reason,
		}
		if err := d.creditRepo.CreateEntry(ctx, entry); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot create redeem entry: %v", err)
			return nil, errorx.Unknown
		}

		touched = append(touched, lots[i].ID)
		remaining = remaining.Sub(take)
	}

	xcontext.WithCommitDBTransaction(ctx)
	return &model.RedeemCreditResponse{
		LotsTouched:   touched,
		TotalRedeemed: amount.String(),
	}, nil
}

func (d *creditDomain) Balance(ctx context.Context, req *model.CreditBalanceRequest) (*model.CreditBalanceResponse, error) {
	itemID := sql.NullString{}
	if req.ItemID != "" {
		itemID = sql.NullString{Valid: true, String: req.ItemID}
	}

	available, err := d.Available(ctx, req.UserID, itemID)
	if err != nil {
		return nil, err
	}

	return &model.CreditBalanceResponse{Available: available.String()}, nil
}

func (d *creditDomain) Available(
	ctx context.Context, userID string, itemID sql.NullString,
) (decimal.Decimal, error) {
	lots, err := d.creditRepo.GetLiveLots(ctx, userID, itemID, time.Now())
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot load live lots of user %s: %v", userID, err)
		return decimal.Zero, errorx.Unknown
	}

	total := decimal.Zero
	for i := range lots {
		total = total.Add(lots[i].Remaining)
	}

	return total, nil
}

// ExpireDue zeroes every live lot whose expiry has passed and writes the
// matching expire entry. Expired amounts stay visible in the ledger history.
func (d *creditDomain) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := d.creditRepo.GetDueLots(ctx, now)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot load due lots: %v", err)
		return 0, errorx.Unknown
	}

	count := 0
	for i := range due {
		if err := d.expireLot(ctx, &due[i], now); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot expire lot %s: %v", due[i].ID, err)
			continue
		}
		count++
	}

	return count, nil
}

func (d *creditDomain) expireLot(ctx context.Context, lot *entity.CreditLot, now time.Time) error {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	if err := d.creditRepo.CheckAndExpireLot(ctx, lot.ID, lot.Remaining, now); err != nil {
		// Raced with a redemption since the snapshot; the next sweep sees the
		// fresh balance.
		return err
	}

	entry := &entity.CreditEntry{
		Base:   entity.Base{ID: uuid.NewString()},
		LotID:  lot.ID,
		UserID: lot.UserID,
		Delta:  lot.Remaining.Neg(),
		Type:   entity.CreditEntryExpire,
		Reason: "expired",
	}
	if err := d.creditRepo.CreateEntry(ctx, entry); err != nil {
		return err
	}

	xcontext.WithCommitDBTransaction(ctx)
	return nil
}
