package repository

import (
	"context"

	"pasarmarket/internal/domain/entity"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

type OrderMutation func(order *entity.Order) error

type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	Mutate(ctx context.Context, id string, fn OrderMutation) (*entity.Order, error)
	// ListByUserID lists orders where the user is buyer, seller, or either when role is empty.
	ListByUserID(ctx context.Context, userID, role string, limit, offset int) ([]*entity.Order, int64, error)
}
