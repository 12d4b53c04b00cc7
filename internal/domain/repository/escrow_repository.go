package repository

import (
	"context"
	"time"

	"pasarmarket/internal/domain/entity"
)

type EscrowMutation func(session *entity.EscrowSession) error

type EscrowRepository interface {
	Create(ctx context.Context, session *entity.EscrowSession) error
	GetByOrderID(ctx context.Context, orderID string) (*entity.EscrowSession, error)
	// Mutate is the only way to change state. The callback sees the stored
	// record inside the same atomic unit as the write, so a transition that
	// checks the prior state is a conditional write.
	Mutate(ctx context.Context, orderID string, fn EscrowMutation) (*entity.EscrowSession, error)

	// ListAutoConfirmDue returns seller-confirmed sessions whose buyer deadline is at or before now.
	ListAutoConfirmDue(ctx context.Context, now time.Time, limit int) ([]*entity.EscrowSession, error)
	// ListUnposted returns settled sessions whose ledger postings have not been recorded yet.
	ListUnposted(ctx context.Context, limit int) ([]*entity.EscrowSession, error)

	AppendEvent(ctx context.Context, event *entity.EscrowEvent) error
	ListEvents(ctx context.Context, orderID string) ([]*entity.EscrowEvent, error)
}
