package service

import (
	"context"

	"pasarmarket/internal/domain/entity"
)

// AuditArchive keeps a durable copy of integrity reports outside the primary store.
type AuditArchive interface {
	ArchiveReconcileReport(ctx context.Context, report *entity.ReconcileReport) error
}
