package repository

import (
	"context"

	"pasarmarket/internal/domain/entity"
)

type ReviewRepository interface {
	// Create fails with a DUPLICATE_REVIEW error when the order already has a review.
	Create(ctx context.Context, review *entity.Review) error
	GetByOrderID(ctx context.Context, orderID string) (*entity.Review, error)
}
