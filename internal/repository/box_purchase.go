package repository

import (
	"context"
	"database/sql"

	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type BoxPurchaseRepository interface {
	Create(ctx context.Context, purchase *entity.BoxPurchase) error
	GetByRaffleID(ctx context.Context, raffleID string) ([]entity.BoxPurchase, error)
	GetBoxNumbers(ctx context.Context, raffleID string, numbers []int) ([]entity.BoxPurchase, error)
	CountByRaffleAndBuyer(ctx context.Context, raffleID, buyerID string) (int64, error)
	MarkRefunded(ctx context.Context, purchaseID, entryID string) error
}

type boxPurchaseRepository struct{}

func NewBoxPurchaseRepository() *boxPurchaseRepository {
	return &boxPurchaseRepository{}
}

func (r *boxPurchaseRepository) Create(ctx context.Context, purchase *entity.BoxPurchase) error {
	return xcontext.DB(ctx).Create(purchase).Error
}

func (r *boxPurchaseRepository) GetByRaffleID(ctx context.Context, raffleID string) ([]entity.BoxPurchase, error) {
	var result []entity.BoxPurchase
	err := xcontext.DB(ctx).
		Where("raffle_id=?", raffleID).
		Order("box_number ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *boxPurchaseRepository) GetBoxNumbers(
	ctx context.Context, raffleID string, numbers []int,
) ([]entity.BoxPurchase, error) {
	var result []entity.BoxPurchase
	err := xcontext.DB(ctx).
		Find(&result, "raffle_id=? AND box_number IN (?)", raffleID, numbers).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *boxPurchaseRepository) CountByRaffleAndBuyer(
	ctx context.Context, raffleID, buyerID string,
) (int64, error) {
	var count int64
	err := xcontext.DB(ctx).Model(&entity.BoxPurchase{}).
		Where("raffle_id=? AND buyer_id=?", raffleID, buyerID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// MarkRefunded records the credit entry that refunded this purchase. It only
// succeeds once per purchase.
func (r *boxPurchaseRepository) MarkRefunded(ctx context.Context, purchaseID, entryID string) error {
	tx := xcontext.DB(ctx).Model(&entity.BoxPurchase{}).
		Where("id=? AND refunded_for IS NULL", purchaseID).
		Update("refunded_for", sql.NullString{Valid: true, String: entryID})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
