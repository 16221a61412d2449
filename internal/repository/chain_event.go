package repository

import (
	"context"
	"errors"

	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/pkg/xcontext"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChainEventRepository interface {
	// InsertIgnore stores the event unless one with the same idempotency key
	// already exists. It reports whether the row was actually inserted.
	InsertIgnore(ctx context.Context, event *entity.ChainEvent) (bool, error)
	GetAllOrdered(ctx context.Context) ([]entity.ChainEvent, error)
	GetByRaffleID(ctx context.Context, raffleID int64) ([]entity.ChainEvent, error)
}

type chainEventRepository struct{}

func NewChainEventRepository() *chainEventRepository {
	return &chainEventRepository{}
}

func (r *chainEventRepository) InsertIgnore(ctx context.Context, event *entity.ChainEvent) (bool, error) {
	tx := xcontext.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected > 0, nil
}

func (r *chainEventRepository) GetAllOrdered(ctx context.Context) ([]entity.ChainEvent, error) {
	var result []entity.ChainEvent
	err := xcontext.DB(ctx).
		Order("block_number ASC, log_index ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *chainEventRepository) GetByRaffleID(ctx context.Context, raffleID int64) ([]entity.ChainEvent, error) {
	var result []entity.ChainEvent
	err := xcontext.DB(ctx).
		Where("raffle_id=?", raffleID).
		Order("block_number ASC, log_index ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

type EventCursorRepository interface {
	Get(ctx context.Context) (*entity.EventCursor, error)
	// Advance moves the cursor forward. Moving it backwards is refused.
	Advance(ctx context.Context, to uint64) error
}

type eventCursorRepository struct{}

func NewEventCursorRepository() *eventCursorRepository {
	return &eventCursorRepository{}
}

func (r *eventCursorRepository) Get(ctx context.Context) (*entity.EventCursor, error) {
	var result entity.EventCursor
	err := xcontext.DB(ctx).Take(&result, "id=?", 1).Error
	if err == nil {
		return &result, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	result = entity.EventCursor{ID: 1, LastProcessedBlock: 0}
	if err := xcontext.DB(ctx).Create(&result).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *eventCursorRepository) Advance(ctx context.Context, to uint64) error {
	tx := xcontext.DB(ctx).Model(&entity.EventCursor{}).
		Where("id=? AND last_processed_block <= ?", 1, to).
		Update("last_processed_block", to)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
