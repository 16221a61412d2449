package testutil

import (
	"context"
	"database/sql"
	"reflect"
	"sync/atomic"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/internal/repository"
	"github.com/shopspring/decimal"
)

// nextChainID hands out unique contract-side raffle ids across samples; the
// column is unique.
var nextChainID int64 = 1000

// SampleUser creates a user with randomized fields, overwritten by the
// non-zero fields of init. It returns the created user.
func SampleUser(ctx context.Context, init *entity.User) (entity.User, error) {
	sample := &entity.User{
		Base:          entity.Base{ID: uuid.NewString()},
		Name:          uuid.NewString(),
		WalletAddress: ethcommon.BytesToAddress([]byte(uuid.NewString())).Hex(),
	}

	if init != nil {
		overwriteFields(sample, *init)
	}

	if err := repository.NewUserRepository().Create(ctx, sample); err != nil {
		return *sample, err
	}

	return *sample, nil
}

// SampleItem creates an item, along with an owner when init does not name
// one.
func SampleItem(ctx context.Context, init *entity.Item) (entity.Item, error) {
	sample := &entity.Item{
		Base: entity.Base{ID: uuid.NewString()},
		Name: uuid.NewString(),
	}

	if init != nil {
		overwriteFields(sample, *init)
	}

	if sample.OwnerID == "" {
		owner, err := SampleUser(ctx, nil)
		if err != nil {
			return *sample, err
		}
		sample.OwnerID = owner.ID
	}

	if err := repository.NewItemRepository().Create(ctx, sample); err != nil {
		return *sample, err
	}

	return *sample, nil
}

// SampleRaffle creates an open raffle already bound to a contract-side id,
// along with its seller and item when init does not name them.
func SampleRaffle(ctx context.Context, init *entity.Raffle) (entity.Raffle, error) {
	sample := &entity.Raffle{
		Base:         entity.Base{ID: uuid.NewString()},
		ChainID:      sql.NullInt64{Valid: true, Int64: atomic.AddInt64(&nextChainID, 1)},
		TotalBoxes:   9,
		BoxPrice:     decimal.NewFromInt(10),
		TotalWinners: 1,
		GridRows:     3,
		GridCols:     3,
		Status:       entity.RaffleStatusOpen,
	}

	if init != nil {
		overwriteFields(sample, *init)
	}

	if sample.SellerID == "" {
		seller, err := SampleUser(ctx, nil)
		if err != nil {
			return *sample, err
		}
		sample.SellerID = seller.ID
	}

	if sample.ItemID == "" {
		item, err := SampleItem(ctx, &entity.Item{OwnerID: sample.SellerID})
		if err != nil {
			return *sample, err
		}
		sample.ItemID = item.ID
	}

	if err := repository.NewRaffleRepository().Create(ctx, sample); err != nil {
		return *sample, err
	}

	return *sample, nil
}

// SampleBoxPurchase creates one sold box of the given raffle.
func SampleBoxPurchase(ctx context.Context, init *entity.BoxPurchase) (entity.BoxPurchase, error) {
	sample := &entity.BoxPurchase{
		Base:      entity.Base{ID: uuid.NewString()},
		BoxNumber: 1,
		PricePaid: decimal.NewFromInt(10),
	}

	if init != nil {
		overwriteFields(sample, *init)
	}

	if sample.BuyerID == "" {
		buyer, err := SampleUser(ctx, nil)
		if err != nil {
			return *sample, err
		}
		sample.BuyerID = buyer.ID
	}

	if sample.RaffleID == "" {
		raffle, err := SampleRaffle(ctx, nil)
		if err != nil {
			return *sample, err
		}
		sample.RaffleID = raffle.ID
	}

	if err := repository.NewBoxPurchaseRepository().Create(ctx, sample); err != nil {
		return *sample, err
	}

	return *sample, nil
}

func overwriteFields[T any](origin *T, overwrite T) {
	originValue := reflect.ValueOf(origin).Elem()
	overwriteValue := reflect.ValueOf(overwrite)

	for i := 0; i < overwriteValue.NumField(); i++ {
		overwriteField := overwriteValue.Field(i)
		if overwriteField.Interface() != reflect.Zero(overwriteField.Type()).Interface() {
			originValue.Field(i).Set(overwriteField)
		}
	}
}
