package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/transfa/portfolio-service/internal/domain"
)

// PostgresTransferRepository reads transfer records persisted by the transfer flow.
type PostgresTransferRepository struct {
	db *pgxpool.Pool
}

// NewPostgresTransferRepository creates a new instance of PostgresTransferRepository.
func NewPostgresTransferRepository(db *pgxpool.Pool) *PostgresTransferRepository {
	return &PostgresTransferRepository{db: db}
}

const transferSelect = `
    SELECT id, COALESCE(name, ''), sender_account_id, receiver_account_id, amount::text,
           COALESCE(category, ''), COALESCE(channel, ''), created_at
    FROM transfer_records
`

// ListTransferRecordsByAccountID returns both legs for an account: the records it
// sent followed by the records it received. A record on both legs is returned once.
func (r *PostgresTransferRepository) ListTransferRecordsByAccountID(ctx context.Context, linkedAccountID string) ([]domain.TransferRecord, error) {
	sent, err := r.query(ctx, transferSelect+` WHERE sender_account_id = $1 ORDER BY created_at DESC, id ASC`, linkedAccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: sender leg: %v", domain.ErrTransferStoreUnavailable, err)
	}
	received, err := r.query(ctx, transferSelect+` WHERE receiver_account_id = $1 ORDER BY created_at DESC, id ASC`, linkedAccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: receiver leg: %v", domain.ErrTransferStoreUnavailable, err)
	}
	return mergeTransferLegs(sent, received), nil
}

func (r *PostgresTransferRepository) query(ctx context.Context, query string, accountID string) ([]domain.TransferRecord, error) {
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TransferRecord
	for rows.Next() {
		record, err := scanTransferRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanTransferRecord(row pgx.Row) (domain.TransferRecord, error) {
	var (
		record domain.TransferRecord
		amount string
	)
	if err := row.Scan(
		&record.ID,
		&record.Name,
		&record.SenderAccountID,
		&record.ReceiverAccountID,
		&amount,
		&record.Category,
		&record.Channel,
		&record.CreatedAt,
	); err != nil {
		return record, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return record, fmt.Errorf("invalid amount %q on transfer %s: %w", amount, record.ID, err)
	}
	record.Amount = parsed
	return record, nil
}

// mergeTransferLegs concatenates the sender and receiver legs, keeping the first
// occurrence of each record id.
func mergeTransferLegs(sent, received []domain.TransferRecord) []domain.TransferRecord {
	merged := make([]domain.TransferRecord, 0, len(sent)+len(received))
	seen := make(map[string]struct{}, len(sent)+len(received))
	for _, leg := range [][]domain.TransferRecord{sent, received} {
		for _, record := range leg {
			if _, dup := seen[record.ID]; dup {
				continue
			}
			seen[record.ID] = struct{}{}
			merged = append(merged, record)
		}
	}
	return merged
}
