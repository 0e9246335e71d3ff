/**
 * @description
 * PostgreSQL implementation of LinkedAccountRepository. Access credentials are
 * stored sealed and opened on read; a credential that cannot be opened is
 * returned empty so the caller treats the account as missing its credential.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5/pgxpool: The PostgreSQL driver.
 * - pkg/credential: Opens sealed access credentials.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transfa/portfolio-service/internal/domain"
	"github.com/transfa/portfolio-service/pkg/credential"
)

// PostgresLinkedAccountRepository is the PostgreSQL implementation of LinkedAccountRepository.
type PostgresLinkedAccountRepository struct {
	db     *pgxpool.Pool
	sealer *credential.Sealer
	logger *slog.Logger
}

// NewPostgresLinkedAccountRepository creates a new instance of PostgresLinkedAccountRepository.
func NewPostgresLinkedAccountRepository(db *pgxpool.Pool, sealer *credential.Sealer, logger *slog.Logger) *PostgresLinkedAccountRepository {
	return &PostgresLinkedAccountRepository{
		db:     db,
		sealer: sealer,
		logger: logger.With("component", "linked_account_repository"),
	}
}

const linkedAccountColumns = `id, user_id, access_token, institution_id, shareable_id, created_at, updated_at`

// ListLinkedAccountsByUserID returns the user's linked accounts in creation order.
func (r *PostgresLinkedAccountRepository) ListLinkedAccountsByUserID(ctx context.Context, userID string) ([]domain.LinkedAccount, error) {
	query := `
        SELECT ` + linkedAccountColumns + `
        FROM linked_accounts
        WHERE user_id = $1
        ORDER BY created_at ASC, id ASC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query linked accounts: %v", domain.ErrLinkedAccountsUnavailable, err)
	}
	defer rows.Close()

	var accounts []domain.LinkedAccount
	for rows.Next() {
		account, err := r.scan(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan linked account row: %v", domain.ErrLinkedAccountsUnavailable, err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLinkedAccountsUnavailable, err)
	}

	return accounts, nil
}

// FindLinkedAccountByID retrieves a single linked account.
func (r *PostgresLinkedAccountRepository) FindLinkedAccountByID(ctx context.Context, linkedAccountID string) (*domain.LinkedAccount, error) {
	if _, err := uuid.Parse(linkedAccountID); err != nil {
		return nil, domain.ErrLinkedAccountNotFound
	}

	query := `SELECT ` + linkedAccountColumns + ` FROM linked_accounts WHERE id = $1`
	account, err := r.scan(ctx, r.db.QueryRow(ctx, query, linkedAccountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLinkedAccountNotFound
		}
		return nil, fmt.Errorf("%w: failed to find linked account: %v", domain.ErrLinkedAccountsUnavailable, err)
	}
	return account, nil
}

func (r *PostgresLinkedAccountRepository) scan(ctx context.Context, row pgx.Row) (*domain.LinkedAccount, error) {
	var (
		account       domain.LinkedAccount
		storedToken   *string
		institutionID *string
		shareableID   *string
	)
	if err := row.Scan(
		&account.ID,
		&account.UserID,
		&storedToken,
		&institutionID,
		&shareableID,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if institutionID != nil {
		account.InstitutionID = *institutionID
	}
	if shareableID != nil {
		account.ShareableID = *shareableID
	}
	if storedToken != nil {
		token, err := r.sealer.Open(*storedToken)
		if err != nil {
			r.logger.WarnContext(ctx, "could not open stored access credential", "linked_account_id", account.ID, "error", err)
		} else {
			account.AccessToken = token
		}
	}
	return &account, nil
}
