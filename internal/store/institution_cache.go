/**
 * @description
 * This file implements the institution metadata cache. Resolved institutions are
 * stored as JSON with an expiry so repeated account loads do not hit the ledger
 * provider for the same institution.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5/pgxpool: The PostgreSQL driver.
 */
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transfa/portfolio-service/internal/domain"
)

// ErrInstitutionCacheMiss is returned when no valid cache entry exists.
var ErrInstitutionCacheMiss = errors.New("institution cache miss")

// PostgresInstitutionCache is the PostgreSQL implementation of InstitutionCache.
type PostgresInstitutionCache struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresInstitutionCache creates a new instance of PostgresInstitutionCache.
func NewPostgresInstitutionCache(db *pgxpool.Pool, logger *slog.Logger) *PostgresInstitutionCache {
	return &PostgresInstitutionCache{db: db, logger: logger.With("component", "institution_cache")}
}

// CacheInstitution stores institution metadata until now+ttl.
func (c *PostgresInstitutionCache) CacheInstitution(ctx context.Context, institution domain.InstitutionMetadata, ttl time.Duration) error {
	if institution.ID == "" || institution.IsUnknown() {
		return nil
	}

	data, err := json.Marshal(institution)
	if err != nil {
		return fmt.Errorf("failed to marshal institution: %w", err)
	}

	query := `
		INSERT INTO cached_institutions (institution_id, institution_data, cached_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (institution_id) DO UPDATE
		SET institution_data = EXCLUDED.institution_data,
		    cached_at = EXCLUDED.cached_at,
		    expires_at = EXCLUDED.expires_at
	`
	now := time.Now().UTC()
	if _, err := c.db.Exec(ctx, query, institution.ID, data, now, now.Add(ttl)); err != nil {
		return fmt.Errorf("failed to cache institution: %w", err)
	}
	return nil
}

// GetCachedInstitution retrieves unexpired institution metadata.
func (c *PostgresInstitutionCache) GetCachedInstitution(ctx context.Context, institutionID string) (*domain.InstitutionMetadata, error) {
	query := `
		SELECT institution_data
		FROM cached_institutions
		WHERE institution_id = $1 AND expires_at > NOW()
	`
	var data []byte
	if err := c.db.QueryRow(ctx, query, institutionID).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInstitutionCacheMiss
		}
		return nil, fmt.Errorf("failed to get cached institution: %w", err)
	}

	var institution domain.InstitutionMetadata
	if err := json.Unmarshal(data, &institution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached institution: %w", err)
	}
	return &institution, nil
}

// ClearExpiredInstitutions removes expired cache entries.
func (c *PostgresInstitutionCache) ClearExpiredInstitutions(ctx context.Context) (int64, error) {
	result, err := c.db.Exec(ctx, `DELETE FROM cached_institutions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired institutions: %w", err)
	}

	rowsAffected := result.RowsAffected()
	if rowsAffected > 0 {
		c.logger.InfoContext(ctx, "cleared expired institution cache entries", "count", rowsAffected)
	}
	return rowsAffected, nil
}
