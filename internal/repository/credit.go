package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/pkg/xcontext"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreditRepository interface {
	CreateLot(ctx context.Context, lot *entity.CreditLot) error
	CreateEntry(ctx context.Context, entry *entity.CreditEntry) error
	GetLotByID(ctx context.Context, id string) (*entity.CreditLot, error)

	// GetLiveLots returns the redeemable lots of a user for the given scope in
	// FIFO order: soonest expiry first, lots without expiry last, ties broken
	// by creation time.
	GetLiveLots(ctx context.Context, userID string, itemID sql.NullString, now time.Time) ([]entity.CreditLot, error)

	CheckAndRedeemLot(ctx context.Context, lotID string, amount decimal.Decimal) error
	GetDueLots(ctx context.Context, now time.Time) ([]entity.CreditLot, error)
	CheckAndExpireLot(ctx context.Context, lotID string, remaining decimal.Decimal, now time.Time) error

	GetEntriesByUserID(ctx context.Context, userID string) ([]entity.CreditEntry, error)
	GetEntryByKey(ctx context.Context, key string) (*entity.CreditEntry, error)
}

type creditRepository struct{}

func NewCreditRepository() *creditRepository {
	return &creditRepository{}
}

func (r *creditRepository) CreateLot(ctx context.Context, lot *entity.CreditLot) error {
	return xcontext.DB(ctx).Create(lot).Error
}

func (r *creditRepository) CreateEntry(ctx context.Context, entry *entity.CreditEntry) error {
	return xcontext.DB(ctx).Create(entry).Error
}

func (r *creditRepository) GetLotByID(ctx context.Context, id string) (*entity.CreditLot, error) {
	var result entity.CreditLot
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *creditRepository) GetLiveLots(
	ctx context.Context, userID string, itemID sql.NullString, now time.Time,
) ([]entity.CreditLot, error) {
	tx := xcontext.DB(ctx).
		Where("user_id=? AND remaining > 0", userID).
		Where("expires_at IS NULL OR expires_at > ?", now)

	if itemID.Valid {
		tx = tx.Where("kind=? OR (kind=? AND item_id=?)",
			entity.CreditKindGeneral, entity.CreditKindItemScoped, itemID.String)
	} else {
		tx = tx.Where("kind=?", entity.CreditKindGeneral)
	}

	var result []entity.CreditLot
	err := tx.Order("expires_at IS NULL, expires_at ASC, created_at ASC").Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CheckAndRedeemLot decreases the remaining balance of a lot. It fails with
// ErrRecordNotFound if the lot no longer holds the requested amount, which
// makes concurrent redeemers serialize instead of double-spending.
func (r *creditRepository) CheckAndRedeemLot(
	ctx context.Context, lotID string, amount decimal.Decimal,
) error {
	tx := xcontext.DB(ctx).Model(&entity.CreditLot{}).
		Where("id=? AND remaining >= ?", lotID, amount).
		Update("remaining", gorm.Expr("remaining-?", amount))
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *creditRepository) GetDueLots(ctx context.Context, now time.Time) ([]entity.CreditLot, error) {
	var result []entity.CreditLot
	err := xcontext.DB(ctx).
		Find(&result, "remaining > 0 AND expires_at IS NOT NULL AND expires_at <= ?", now).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CheckAndExpireLot zeroes a due lot only if it still holds the remaining
// balance the caller observed. A redemption that landed in between fails the
// guard, so the recorded expire amount always matches what was zeroed.
func (r *creditRepository) CheckAndExpireLot(
	ctx context.Context, lotID string, remaining decimal.Decimal, now time.Time,
) error {
	tx := xcontext.DB(ctx).Model(&entity.CreditLot{}).
		Where("id=? AND remaining=? AND expires_at IS NOT NULL AND expires_at <= ?",
			lotID, remaining, now).
		Update("remaining", decimal.Zero)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *creditRepository) GetEntriesByUserID(ctx context.Context, userID string) ([]entity.CreditEntry, error) {
	var result []entity.CreditEntry
	err := xcontext.DB(ctx).
		Where("user_id=?", userID).
		Order("created_at ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *creditRepository) GetEntryByKey(ctx context.Context, key string) (*entity.CreditEntry, error) {
	var result entity.CreditEntry
	if err := xcontext.DB(ctx).Take(&result, "idempotency_key=?", key).Error; err != nil {
		return nil, err
	}

	return &result, nil
}
