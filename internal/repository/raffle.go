package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type RaffleRepository interface {
	Create(ctx context.Context, raffle *entity.Raffle) error
	GetByID(ctx context.Context, id string) (*entity.Raffle, error)
	GetByChainID(ctx context.Context, chainID int64) (*entity.Raffle, error)
	GetByCreateTxID(ctx context.Context, txID string) (*entity.Raffle, error)
	GetActiveByItemID(ctx context.Context, itemID string) (*entity.Raffle, error)

	UpdateStatus(ctx context.Context, id string, from []entity.RaffleStatusType, to entity.RaffleStatusType) error
	BindChainID(ctx context.Context, id string, chainID int64) error
	SetCreateTx(ctx context.Context, id string, txID string) error
	SetCancelled(ctx context.Context, id string, reason string) error
	SetCompleted(ctx context.Context, id string, completedAt time.Time) error
	CheckAndSellBoxes(ctx context.Context, id string, count int) error
}

type raffleRepository struct{}

func NewRaffleRepository() *raffleRepository {
	return &raffleRepository{}
}

func (r *raffleRepository) Create(ctx context.Context, raffle *entity.Raffle) error {
	return xcontext.DB(ctx).Create(raffle).Error
}

func (r *raffleRepository) GetByID(ctx context.Context, id string) (*entity.Raffle, error) {
	var result entity.Raffle
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *raffleRepository) GetByChainID(ctx context.Context, chainID int64) (*entity.Raffle, error) {
	var result entity.Raffle
	if err := xcontext.DB(ctx).Take(&result, "chain_id=?", chainID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *raffleRepository) GetByCreateTxID(ctx context.Context, txID string) (*entity.Raffle, error) {
	var result entity.Raffle
	if err := xcontext.DB(ctx).Take(&result, "create_tx_id=?", txID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *raffleRepository) GetActiveByItemID(ctx context.Context, itemID string) (*entity.Raffle, error) {
	var result entity.Raffle
	err := xcontext.DB(ctx).
		Where("item_id=? AND status NOT IN (?)", itemID,
			[]entity.RaffleStatusType{entity.RaffleStatusCompleted, entity.RaffleStatusCancelled}).
		Take(&result).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// UpdateStatus moves the raffle to a new status only if its current status is
// one of the expected ones. A stale expectation returns ErrRecordNotFound.
func (r *raffleRepository) UpdateStatus(
	ctx context.Context, id string, from []entity.RaffleStatusType, to entity.RaffleStatusType,
) error {
	tx := xcontext.DB(ctx).Model(&entity.Raffle{}).
		Where("id=? AND status IN (?)", id, from).
		Update("status", to)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// BindChainID assigns the contract raffle id exactly once.
func (r *raffleRepository) BindChainID(ctx context.Context, id string, chainID int64) error {
	tx := xcontext.DB(ctx).Model(&entity.Raffle{}).
		Where("id=? AND chain_id IS NULL", id).
		Update("chain_id", chainID)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *raffleRepository) SetCreateTx(ctx context.Context, id string, txID string) error {
	return xcontext.DB(ctx).Model(&entity.Raffle{}).
		Where("id=?", id).
		Update("create_tx_id", sql.NullString{Valid: true, String: txID}).Error
}

func (r *raffleRepository) SetCancelled(ctx context.Context, id string, reason string) error {
	tx := xcontext.DB(ctx).Model(&entity.Raffle{}).
		Where("id=? AND status NOT IN (?)", id,
			[]entity.RaffleStatusType{entity.RaffleStatusCompleted, entity.RaffleStatusCancelled}).
		Updates(map[string]any{
			"status":        entity.RaffleStatusCancelled,
			"cancel_reason": reason,
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *raffleRepository) SetCompleted(ctx context.Context, id string, completedAt time.Time) error {
	tx := xcontext.DB(ctx).Model(&entity.Raffle{}).
		Where("id=? AND status=?", id, entity.RaffleStatusDrawing).
		Updates(map[string]any{
			"status":       entity.RaffleStatusCompleted,
			"completed_at": sql.NullTime{Valid: true, Time: completedAt},
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// CheckAndSellBoxes increases boxes_sold if the raffle still has room for
// count more boxes.
func (r *raffleRepository) CheckAndSellBoxes(ctx context.Context, id string, count int) error {
	tx := xcontext.DB(ctx).Model(&entity.Raffle{}).
		Where("id=? AND boxes_sold + ? <= total_boxes", id, count).
		Update("boxes_sold", gorm.Expr("boxes_sold+?", count))
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
