/**
 * @description
 * This file defines the interfaces for the data access layer of the
 * portfolio-service. The application layer depends on these interfaces, not on
 * the PostgreSQL or Redis implementations, so tests can substitute stubs.
 */
package store

import (
	"context"
	"time"

	"github.com/transfa/portfolio-service/internal/domain"
)

// LinkedAccountRepository reads linked account records.
type LinkedAccountRepository interface {
	ListLinkedAccountsByUserID(ctx context.Context, userID string) ([]domain.LinkedAccount, error)
	FindLinkedAccountByID(ctx context.Context, linkedAccountID string) (*domain.LinkedAccount, error)
}

// TransferRepository reads transfer records where an account is the sender or the receiver.
type TransferRepository interface {
	ListTransferRecordsByAccountID(ctx context.Context, linkedAccountID string) ([]domain.TransferRecord, error)
}

// InstitutionCache caches institution metadata resolved from the provider.
type InstitutionCache interface {
	GetCachedInstitution(ctx context.Context, institutionID string) (*domain.InstitutionMetadata, error)
	CacheInstitution(ctx context.Context, institution domain.InstitutionMetadata, ttl time.Duration) error
	ClearExpiredInstitutions(ctx context.Context) (int64, error)
}

// CursorCheckpointStore records the last sync cursor per linked account.
type CursorCheckpointStore interface {
	SaveCursor(ctx context.Context, linkedAccountID, cursor string) error
	GetCursor(ctx context.Context, linkedAccountID string) (string, error)
}
