package repository

import (
	"context"

	"github.com/rafflehub/backend/internal/entity"
	"github.com/rafflehub/backend/pkg/xcontext"
)

type ItemRepository interface {
	Create(ctx context.Context, item *entity.Item) error
	GetByID(ctx context.Context, id string) (*entity.Item, error)
}

type itemRepository struct{}

func NewItemRepository() *itemRepository {
	return &itemRepository{}
}

func (r *itemRepository) Create(ctx context.Context, item *entity.Item) error {
	return xcontext.DB(ctx).Create(item).Error
}

func (r *itemRepository) GetByID(ctx context.Context, id string) (*entity.Item, error) {
	var result entity.Item
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}
