package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pasarmarket/pkg/errors"
)

const (
	listingsCollection     = "listings"
	ordersCollection       = "orders"
	escrowCollection       = "escrow_sessions"
	escrowEventsCollection = "events"
	ledgerCollection       = "ledger_entries"
	walletsCollection      = "wallets"
	withdrawalsCollection  = "withdrawals"
	reviewsCollection      = "reviews"
)

// mapError turns a Firestore/gRPC failure into an AppError. AppErrors raised
// inside a transaction callback pass through untouched.
func mapError(err error, resource string) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.StorageUnavailable("Storage timed out on "+resource, err)
	}

	switch status.Code(err) {
	case codes.NotFound:
		return errors.NotFound(resource, err)
	case codes.AlreadyExists:
		return errors.AlreadyExists(resource, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.ResourceExhausted:
		return errors.StorageUnavailable("Storage unavailable for "+resource, err)
	default:
		return errors.Internal("Storage failure on "+resource, err)
	}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func money(d decimal.Decimal) string {
	return d.String()
}

// parseMoney tolerates empty strings so newly added fields read as zero.
func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func mustMoney(s string, firstErr *error) decimal.Decimal {
	d, err := parseMoney(s)
	if err != nil && *firstErr == nil {
		*firstErr = err
	}
	return d
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeVal(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func paginate(total, limit, offset int) (start, end int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		return total, total
	}
	end = total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}
