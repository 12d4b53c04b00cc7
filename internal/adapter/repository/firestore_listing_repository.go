package repository

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"pasarmarket/internal/domain/entity"
	"pasarmarket/internal/domain/repository"
	"pasarmarket/pkg/errors"
)

type listingDoc struct {
	ID                string         `firestore:"id"`
	SellerID          string         `firestore:"sellerId"`
	Title             string         `firestore:"title"`
	Description       string         `firestore:"description"`
	CategoryID        string         `firestore:"categoryId"`
	Price             string         `firestore:"price"`
	AvailableQuantity int            `firestore:"availableQuantity"`
	ReservedQuantity  int            `firestore:"reservedQuantity"`
	Holds             map[string]int `firestore:"holds"`
	Status            string         `firestore:"status"`
	RelistedFrom      string         `firestore:"relistedFrom"`
	Version           int64          `firestore:"version"`
	CreatedAt         time.Time      `firestore:"createdAt"`
	UpdatedAt         time.Time      `firestore:"updatedAt"`
}

func toListingDoc(l *entity.Listing) *listingDoc {
	return &listingDoc{
		ID:                l.ID,
		SellerID:          l.SellerID,
		Title:             l.Title,
		Description:       l.Description,
		CategoryID:        l.CategoryID,
		Price:             money(l.Price),
		AvailableQuantity: l.AvailableQuantity,
		ReservedQuantity:  l.ReservedQuantity,
		Holds:             l.Holds,
		Status:            string(l.Status),
		RelistedFrom:      l.RelistedFrom,
		Version:           l.Version,
		CreatedAt:         l.CreatedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

func (d *listingDoc) toEntity() (*entity.Listing, error) {
	price, err := parseMoney(d.Price)
	if err != nil {
		return nil, err
	}
	return &entity.Listing{
		ID:                d.ID,
		SellerID:          d.SellerID,
		Title:             d.Title,
		Description:       d.Description,
		CategoryID:        d.CategoryID,
		Price:             price,
		AvailableQuantity: d.AvailableQuantity,
		ReservedQuantity:  d.ReservedQuantity,
		Holds:             d.Holds,
		Status:            entity.ListingStatus(d.Status),
		RelistedFrom:      d.RelistedFrom,
		Version:           d.Version,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}, nil
}

func decodeListing(snap *firestore.DocumentSnapshot) (*entity.Listing, error) {
	var doc listingDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Internal("Failed to parse listing data", err)
	}
	l, err := doc.toEntity()
	if err != nil {
		return nil, errors.Internal("Failed to parse listing price", err)
	}
	return l, nil
}

type firestoreListingRepository struct {
	client *firestore.Client
}

func NewFirestoreListingRepository(client *firestore.Client) repository.ListingRepository {
	return &firestoreListingRepository{
		client: client,
	}
}

func (r *firestoreListingRepository) Create(ctx context.Context, listing *entity.Listing) error {
	_, err := r.client.Collection(listingsCollection).Doc(listing.ID).Create(ctx, toListingDoc(listing))
	return mapError(err, "Listing")
}

func (r *firestoreListingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	snap, err := r.client.Collection(listingsCollection).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapError(err, "Listing")
	}
	return decodeListing(snap)
}

// List pushes equality filters to Firestore and applies price and keyword
// filters in process, since prices are stored as decimal strings.
func (r *firestoreListingRepository) List(ctx context.Context, filter repository.ListingFilter, limit, offset int) ([]*entity.Listing, int64, error) {
	query := r.client.Collection(listingsCollection).Query
	if filter.SellerID != "" {
		query = query.Where("sellerId", "==", filter.SellerID)
	}
	if filter.CategoryID != "" {
		query = query.Where("categoryId", "==", filter.CategoryID)
	}
	if filter.Status != "" {
		query = query.Where("status", "==", string(filter.Status))
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var matched []*entity.Listing
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, 0, mapError(err, "Listing")
		}
		l, err := decodeListing(snap)
		if err != nil {
			return nil, 0, err
		}
		if filter.Matches(l) {
			matched = append(matched, l)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start, end := paginate(len(matched), limit, offset)
	return matched[start:end], int64(len(matched)), nil
}

func (r *firestoreListingRepository) Mutate(ctx context.Context, id string, fn repository.ListingMutation) (*entity.Listing, error) {
	ref := r.client.Collection(listingsCollection).Doc(id)
	var result *entity.Listing

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		listing, err := decodeListing(snap)
		if err != nil {
			return err
		}

		if err := fn(listing); err != nil {
			if stderrors.Is(err, repository.ErrSkipWrite) {
				result = listing
				return nil
			}
			return err
		}

		listing.Version++
		result = listing
		return tx.Set(ref, toListingDoc(listing))
	})
	if err != nil {
		return nil, mapError(err, "Listing")
	}
	return result, nil
}
