package usecase

import (
	"context"
	"strings"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/pkg/clock"
	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/logger"
)

const maxReviewComment = 2000

type ReviewUseCase struct {
	reviewRepo repository.ReviewRepository
	orderRepo  repository.OrderRepository
	escrowRepo repository.EscrowRepository
	clock      clock.Clock
	storage    StoragePolicy
}

func NewReviewUseCase(
	reviewRepo repository.ReviewRepository,
	orderRepo repository.OrderRepository,
	escrowRepo repository.EscrowRepository,
	clk clock.Clock,
	storage StoragePolicy,
) *ReviewUseCase {
	return &ReviewUseCase{
		reviewRepo: reviewRepo,
		orderRepo:  orderRepo,
		escrowRepo: escrowRepo,
		clock:      clk,
		storage:    storage,
	}
}

type SubmitReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// SubmitReview accepts one review per order, and only once escrow has settled.
func (uc *ReviewUseCase) SubmitReview(ctx context.Context, orderID, reviewerID string, input SubmitReviewInput) (*entity.Review, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, errors.InvalidArgument("Rating must be between 1 and 5", nil)
	}
	comment := strings.TrimSpace(input.Comment)
	if len(comment) > maxReviewComment {
		return nil, errors.InvalidArgument("Comment is too long", nil)
	}

	var order *entity.Order
	var session *entity.EscrowSession
	err := uc.storage.run(ctx, "load order for review", func(ctx context.Context) error {
		var err error
		if order, err = uc.orderRepo.GetByID(ctx, orderID); err != nil {
			return err
		}
		session, err = uc.escrowRepo.GetByOrderID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !order.IsParty(reviewerID) {
		return nil, errors.PermissionDenied("Only the buyer or seller can review this order")
	}
	if session.State != entity.EscrowStateSettled {
		return nil, errors.InvalidState("Orders can be reviewed once escrow has settled")
	}

	targetID := order.SellerID
	if reviewerID == order.SellerID {
		targetID = order.BuyerID
	}

	review := &entity.Review{
		OrderID:    orderID,
		ListingID:  order.ListingID,
		ReviewerID: reviewerID,
		TargetID:   targetID,
		Rating:     input.Rating,
		Comment:    comment,
		CreatedAt:  uc.clock.Now(),
	}

	err = uc.storage.run(ctx, "create review", func(ctx context.Context) error {
		return uc.reviewRepo.Create(ctx, review)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Review for order %s submitted by %s (rating %d)", orderID, reviewerID, input.Rating)
	return review, nil
}

func (uc *ReviewUseCase) GetReview(ctx context.Context, orderID string) (*entity.Review, error) {
	var review *entity.Review
	err := uc.storage.run(ctx, "get review", func(ctx context.Context) error {
		var err error
		review, err = uc.reviewRepo.GetByOrderID(ctx, orderID)
		return err
	})
	return review, err
}
