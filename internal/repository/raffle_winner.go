package repository

import (
	"context"

	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/pkg/xcontext"
)

type RaffleWinnerRepository interface {
	Create(ctx context.Context, winner *entity.RaffleWinner) error
	GetByRaffleID(ctx context.Context, raffleID string) ([]entity.RaffleWinner, error)
}

type raffleWinnerRepository struct{}

func NewRaffleWinnerRepository() *raffleWinnerRepository {
	return &raffleWinnerRepository{}
}

func (r *raffleWinnerRepository) Create(ctx context.Context, winner *entity.RaffleWinner) error {
	return xcontext.DB(ctx).Create(winner).Error
}

func (r *raffleWinnerRepository) GetByRaffleID(ctx context.Context, raffleID string) ([]entity.RaffleWinner, error) {
	var result []entity.RaffleWinner
	err := xcontext.DB(ctx).
		Where("raffle_id=?", raffleID).
		Order("position ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}
