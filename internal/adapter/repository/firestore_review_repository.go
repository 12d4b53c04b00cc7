package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/pkg/errors"
)

type reviewDoc struct {
	OrderID    string    `firestore:"orderId"`
	ListingID  string    `firestore:"listingId"`
	ReviewerID string    `firestore:"reviewerId"`
	TargetID   string    `firestore:"targetId"`
	Rating     int       `firestore:"rating"`
	Comment    string    `firestore:"comment"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

type firestoreReviewRepository struct {
	client *firestore.Client
}

func NewFirestoreReviewRepository(client *firestore.Client) repository.ReviewRepository {
	return &firestoreReviewRepository{
		client: client,
	}
}

// Create keys the document by order id; Firestore's create-if-absent gives one review per order.
func (r *firestoreReviewRepository) Create(ctx context.Context, review *entity.Review) error {
	doc := &reviewDoc{
		OrderID:    review.OrderID,
		ListingID:  review.ListingID,
		ReviewerID: review.ReviewerID,
		TargetID:   review.TargetID,
		Rating:     review.Rating,
		Comment:    review.Comment,
		CreatedAt:  review.CreatedAt,
	}

	_, err := r.client.Collection(reviewsCollection).Doc(review.OrderID).Create(ctx, doc)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.DuplicateReview("Order has already been reviewed")
		}
		return mapError(err, "Review")
	}
	return nil
}

func (r *firestoreReviewRepository) GetByOrderID(ctx context.Context, orderID string) (*entity.Review, error) {
	snap, err := r.client.Collection(reviewsCollection).Doc(orderID).Get(ctx)
	if err != nil {
		return nil, mapError(err, "Review")
	}

	var doc reviewDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Internal("Failed to parse review data", err)
	}
	return &entity.Review{
		OrderID:    doc.OrderID,
		ListingID:  doc.ListingID,
		ReviewerID: doc.ReviewerID,
		TargetID:   doc.TargetID,
		Rating:     doc.Rating,
		Comment:    doc.Comment,
		CreatedAt:  doc.CreatedAt,
	}, nil
}
