package domain

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/internal/model"
	"github.com/rafflehub/backend/internal/repository"
	"github.com/rafflehub/backend/pkg/errorx"
	"github.com/rafflehub/backend/pkg/pubsub"
	"github.com/rafflehub/backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func Test_creditDomain_IssueAndBalance(t *testing.T) {
	ctx := testutil.MockContext()
	user, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)

	creditDomain := NewCreditDomain(repository.NewCreditRepository())

	resp, err := creditDomain.Issue(ctx, &model.IssueCreditRequest{
		UserID: user.ID,
		Amount: "100",
		Source: "deposit",
		Kind:   "general",
		Reason: "deposit tx",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.LotID)

	balance, err := creditDomain.Balance(ctx, &model.CreditBalanceRequest{UserID: user.ID})
	require.NoError(t, err)
	require.Equal(t, "100", balance.Available)

	// Invalid amounts are rejected before anything is written.
	_, err = creditDomain.Issue(ctx, &model.IssueCreditRequest{
		UserID: user.ID, Amount: "-5", Source: "deposit", Kind: "general",
	})
	require.Error(t, err)
	require.Equal(t, errorx.BadRequest, err.(errorx.Error).Code)
}

func Test_creditDomain_RedeemFIFO(t *testing.T) {
	ctx := testutil.MockContext()
	user, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)

	creditRepo := repository.NewCreditRepository()
	creditDomain := NewCreditDomain(creditRepo)

	// Three lots: expiring soon, expiring later, never expiring. Redemption
	// must drain them in that order.
	soon := time.Now().Add(time.Hour)
	later := time.Now().Add(24 * time.Hour)

	soonLot, _, err := creditDomain.IssueLot(ctx, LotIssue{
		UserID: user.ID, Amount: decimal.NewFromInt(10),
		Source: entity.CreditSourceDeposit, Kind: entity.CreditKindGeneral,
		ExpiresAt: sql.NullTime{Valid: true, Time: soon},
	})
	require.NoError(t, err)

	laterLot, _, err := creditDomain.IssueLot(ctx, LotIssue{
		UserID: user.ID, Amount: decimal.NewFromInt(10),
		Source: entity.CreditSourceDeposit, Kind: entity.CreditKindGeneral,
		ExpiresAt: sql.NullTime{Valid: true, Time: later},
	})
	require.NoError(t, err)

	foreverLot, _, err := creditDomain.IssueLot(ctx, LotIssue{
		UserID: user.ID, Amount: decimal.NewFromInt(10),
		Source: entity.CreditSourceDeposit, Kind: entity.CreditKindGeneral,
	})
	require.NoError(t, err)

	resp, err := creditDomain.RedeemLots(ctx, user.ID,
		decimal.NewFromInt(15), sql.NullString{}, "purchase")
	require.NoError(t, err)
	require.Equal(t, []string{soonLot, laterLot}, resp.LotsTouched)

	remaining := func(lotID string) decimal.Decimal {
		lot, err := creditRepo.GetLotByID(ctx, lotID)
		require.NoError(t, err)
		return lot.Remaining
	}

	require.True(t, remaining(soonLot).IsZero())
	require.True(t, remaining(laterLot).Equal(decimal.NewFromInt(5)))
	require.True(t, remaining(foreverLot).Equal(decimal.NewFromInt(10)))
}

func Test_creditDomain_RedeemInsufficientChangesNothing(t *testing.T) {
	ctx := testutil.MockContext()
	user, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)

	creditRepo := repository.NewCreditRepository()
	creditDomain := NewCreditDomain(creditRepo)

	lotID, _, err := creditDomain.IssueLot(ctx, LotIssue{
		UserID: user.ID, Amount: decimal.NewFromInt(10),
		Source: entity.CreditSourceDeposit, Kind: entity.CreditKindGeneral,
	})
	require.NoError(t, err)

	_, err = creditDomain.RedeemLots(ctx, user.ID,
		decimal.NewFromInt(11), sql.NullString{}, "purchase")
	require.Error(t, err)
	require.Equal(t, errorx.InsufficientCredits, err.(errorx.Error).Code)

	lot, err := creditRepo.GetLotByID(ctx, lotID)
	require.NoError(t, err)
	require.True(t, lot.Remaining.Equal(decimal.NewFromInt(10)))

	entries, err := creditRepo.GetEntriesByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1) // only the issuance
}

func Test_creditDomain_ItemScopedEligibility(t *testing.T) {
	ctx := testutil.MockContext()
	user, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)

	creditDomain := NewCreditDomain(repository.NewCreditRepository())

	_, _, err = creditDomain.IssueLot(ctx, LotIssue{
		UserID: user.ID, Amount: decimal.NewFromInt(10),
		Source: entity.CreditSourceRaffleLoss, Kind: entity.CreditKindItemScoped,
		ItemID: sql.NullString{Valid: true, String: "item-1"},
	})
	require.NoError(t, err)

	// An unscoped redemption cannot see the item-scoped lot.
	_, err = creditDomain.RedeemLots(ctx, user.ID,
		decimal.NewFromInt(5), sql.NullString{}, "purchase")
	require.Error(t, err)
	require.Equal(t, errorx.InsufficientCredits, err.(errorx.Error).Code)

	// Neither can a redemption scoped to a different item.
	_, err = creditDomain.RedeemLots(ctx, user.ID,
		decimal.NewFromInt(5), sql.NullString{Valid: true, String: "item-2"}, "purchase")
	require.Error(t, err)

	// The matching scope can.
	_, err = creditDomain.RedeemLots(ctx, user.ID,
		decimal.NewFromInt(5), sql.NullString{Valid: true, String: "item-1"}, "purchase")
	require.NoError(t, err)
}

func Test_creditDomain_IdempotentIssuance(t *testing.T) {
	ctx := testutil.MockContext()
	user, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)

	creditDomain := NewCreditDomain(repository.NewCreditRepository())

	issue := LotIssue{
		UserID: user.ID, Amount: decimal.NewFromInt(30),
		Source: entity.CreditSourceRefund, Kind: entity.CreditKindGeneral,
		IdempotencyKey: "revert:tx-1",
	}

	first, _, err := creditDomain.IssueLot(ctx, issue)
	require.NoError(t, err)

	second, _, err := creditDomain.IssueLot(ctx, issue)
	require.NoError(t, err)
	require.Equal(t, first, second)

	available, err := creditDomain.Available(ctx, user.ID, sql.NullString{})
	require.NoError(t, err)
	require.True(t, available.Equal(decimal.NewFromInt(30)))
}

func Test_creditDomain_HandleDepositEvent(t *testing.T) {
	ctx := testutil.MockContext()
	user, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)

	creditDomain := NewCreditDomain(repository.NewCreditRepository())

	msg, err := json.Marshal(model.DepositEvent{
		DepositID: "dep-1", UserID: user.ID, Amount: "25",
	})
	require.NoError(t, err)

	pack := &pubsub.Pack{Key: []byte(user.ID), Msg: msg}
	creditDomain.HandleDepositEvent(ctx, "credit-deposits", pack, time.Now())

	available, err := creditDomain.Available(ctx, user.ID, sql.NullString{})
	require.NoError(t, err)
	require.True(t, available.Equal(decimal.NewFromInt(25)))

	// Kafka redelivers on rebalance; the deposit id keys the issuance.
	creditDomain.HandleDepositEvent(ctx, "credit-deposits", pack, time.Now())

	available, err = creditDomain.Available(ctx, user.ID, sql.NullString{})
	require.NoError(t, err)
	require.True(t, available.Equal(decimal.NewFromInt(25)))
}

func Test_creditDomain_ExpireRacedByRedemption(t *testing.T) {
	ctx := testutil.MockContext()
	user, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)

	creditRepo := repository.NewCreditRepository()
	creditDomain := NewCreditDomain(creditRepo)

	lotID, _, err := creditDomain.IssueLot(ctx, LotIssue{
		UserID: user.ID, Amount: decimal.NewFromInt(10),
		Source: entity.CreditSourceBonus, Kind: entity.CreditKindGeneral,
		ExpiresAt: sql.NullTime{Valid: true, Time: time.Now().Add(time.Minute)},
	})
	require.NoError(t, err)

	deadline := time.Now().Add(time.Hour)
	due, err := creditRepo.GetDueLots(ctx, deadline)
	require.NoError(t, err)
	require.Len(t, due, 1)

	// A redemption lands between the sweep's snapshot and the zeroing. The
	// stale snapshot must not expire anything, or the ledger would record more
	// than the lot held.
	_, err = creditDomain.RedeemLots(ctx, user.ID,
		decimal.NewFromInt(4), sql.NullString{}, "purchase")
	require.NoError(t, err)

	require.Error(t, creditDomain.expireLot(ctx, &due[0], deadline))

	// The next sweep expires the fresh balance.
	count, err := creditDomain.ExpireDue(ctx, deadline)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	lot, err := creditRepo.GetLotByID(ctx, lotID)
	require.NoError(t, err)
	require.True(t, lot.Remaining.IsZero())

	// Conservation: issued minus redeemed minus expired equals what remains.
	entries, err := creditRepo.GetEntriesByUserID(ctx, user.ID)
	require.NoError(t, err)

	total := decimal.Zero
	for i := range entries {
		total = total.Add(entries[i].Delta)
	}
	require.True(t, total.IsZero())
}

func Test_creditDomain_ExpireDue(t *testing.T) {
	ctx := testutil.MockContext()
	user, err := testutil.SampleUser(ctx, nil)
	require.NoError(t, err)

	creditRepo := repository.NewCreditRepository()
	creditDomain := NewCreditDomain(creditRepo)

	expiredLot, _, err := creditDomain.IssueLot(ctx, LotIssue{
		UserID: user.ID, Amount: decimal.NewFromInt(10),
		Source: entity.CreditSourceBonus, Kind: entity.CreditKindGeneral,
		ExpiresAt: sql.NullTime{Valid: true, Time: time.Now().Add(time.Minute)},
	})
	require.NoError(t, err)

	_, _, err = creditDomain.IssueLot(ctx, LotIssue{
		UserID: user.ID, Amount: decimal.NewFromInt(10),
		Source: entity.CreditSourceDeposit, Kind: entity.CreditKindGeneral,
	})
	require.NoError(t, err)

	count, err := creditDomain.ExpireDue(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, count)

	lot, err := creditRepo.GetLotByID(ctx, expiredLot)
	require.NoError(t, err)
	require.True(t, lot.Remaining.IsZero())

	// The expired amount stays visible in the ledger history.
	entries, err := creditRepo.GetEntriesByUserID(ctx, user.ID)
	require.NoError(t, err)

	total := decimal.Zero
	for i := range entries {
		total = total.Add(entries[i].Delta)
	}
	require.True(t, total.Equal(decimal.NewFromInt(10)))

	// A second sweep finds nothing.
	count, err = creditDomain.ExpireDue(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
