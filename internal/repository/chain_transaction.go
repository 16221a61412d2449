package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type ChainTransactionRepository interface {
	Create(ctx context.Context, tx *entity.ChainTransaction) error
	GetByID(ctx context.Context, id string) (*entity.ChainTransaction, error)
	GetByHash(ctx context.Context, hash string) (*entity.ChainTransaction, error)
	GetReplacementOf(ctx context.Context, id string) (*entity.ChainTransaction, error)
	GetByStates(ctx context.Context, states ...entity.ChainTransactionStateType) ([]entity.ChainTransaction, error)

	UpdateState(ctx context.Context, id string, from []entity.ChainTransactionStateType, to entity.ChainTransactionStateType) error
	SetSubmitted(ctx context.Context, id, hash string, nonce uint64, attempts int, attemptAt time.Time) error
	SetAttempts(ctx context.Context, id string, attempts int, attemptAt time.Time) error
}

type chainTransactionRepository struct{}

func NewChainTransactionRepository() *chainTransactionRepository {
	return &chainTransactionRepository{}
}

func (r *chainTransactionRepository) Create(ctx context.Context, tx *entity.ChainTransaction) error {
	return xcontext.DB(ctx).Create(tx).Error
}

func (r *chainTransactionRepository) GetByID(ctx context.Context, id string) (*entity.ChainTransaction, error) {
	var result entity.ChainTransaction
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *chainTransactionRepository) GetByHash(ctx context.Context, hash string) (*entity.ChainTransaction, error) {
	var result entity.ChainTransaction
	if err := xcontext.DB(ctx).Take(&result, "hash=?", hash).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

// GetReplacementOf returns the most recent transaction that speeds up the
// given one.
func (r *chainTransactionRepository) GetReplacementOf(
	ctx context.Context, id string,
) (*entity.ChainTransaction, error) {
	var result entity.ChainTransaction
	err := xcontext.DB(ctx).
		Where("replaces_id=?", id).
		Order("created_at DESC").
		Take(&result).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *chainTransactionRepository) GetByStates(
	ctx context.Context, states ...entity.ChainTransactionStateType,
) ([]entity.ChainTransaction, error) {
	var result []entity.ChainTransaction
	err := xcontext.DB(ctx).
		Where("state IN (?)", states).
		Order("created_at ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateState performs a guarded state transition. A transition from a state
// not listed in from returns ErrRecordNotFound.
func (r *chainTransactionRepository) UpdateState(
	ctx context.Context, id string,
	from []entity.ChainTransactionStateType, to entity.ChainTransactionStateType,
) error {
	tx := xcontext.DB(ctx).Model(&entity.ChainTransaction{}).
		Where("id=? AND state IN (?)", id, from).
		Update("state", to)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *chainTransactionRepository) SetSubmitted(
	ctx context.Context, id, hash string, nonce uint64, attempts int, attemptAt time.Time,
) error {
	return xcontext.DB(ctx).Model(&entity.ChainTransaction{}).
		Where("id=?", id).
		Updates(map[string]any{
			"state":           entity.ChainTransactionStateSubmitted,
			"hash":            sql.NullString{Valid: true, String: hash},
			"nonce":           sql.NullInt64{Valid: true, Int64: int64(nonce)},
			"attempts":        attempts,
			"last_attempt_at": sql.NullTime{Valid: true, Time: attemptAt},
		}).Error
}

func (r *chainTransactionRepository) SetAttempts(
	ctx context.Context, id string, attempts int, attemptAt time.Time,
) error {
	return xcontext.DB(ctx).Model(&entity.ChainTransaction{}).
		Where("id=?", id).
		Updates(map[string]any{
			"attempts":        attempts,
			"last_attempt_at": sql.NullTime{Valid: true, Time: attemptAt},
		}).Error
}
