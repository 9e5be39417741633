package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pushrelay/dispatch-service/internal/domain"
)

// DeliveryLog implements domain.DeliveryRecorder using PostgreSQL. It is an
// audit trail of terminal outcomes; the dispatch core itself keeps no state
// between batches.
type DeliveryLog struct {
	db *DB
}

// NewDeliveryLog creates a new DeliveryLog
func NewDeliveryLog(db *DB) *DeliveryLog {
	return &DeliveryLog{db: db}
}

// Record persists the outcomes of one batch in a single transaction.
func (l *DeliveryLog) Record(ctx context.Context, batchID uuid.UUID, outcomes []domain.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := l.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO delivery_log (
			id, batch_id, idx, recipient, status, message_id, reason,
			attempts, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	now := time.Now().UTC()
	for _, outcome := range outcomes {
		_, err = tx.Exec(ctx, query,
			uuid.New(), batchID, outcome.Index, outcome.Recipient,
			string(outcome.Status), outcome.MessageID, outcome.Reason,
			outcome.Attempts, now,
		)
		if err != nil {
			return fmt.Errorf("failed to record outcome: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByBatchID retrieves all recorded outcomes for a batch, in input order.
func (l *DeliveryLog) GetByBatchID(ctx context.Context, batchID uuid.UUID) ([]domain.Outcome, error) {
	query := `
		SELECT idx, recipient, status, message_id, reason, attempts
		FROM delivery_log
		WHERE batch_id = $1
		ORDER BY idx
	`

	rows, err := l.db.Pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery log: %w", err)
	}
	defer rows.Close()

	var outcomes []domain.Outcome
	for rows.Next() {
		var outcome domain.Outcome
		var status string
		if err := rows.Scan(
			&outcome.Index, &outcome.Recipient, &status,
			&outcome.MessageID, &outcome.Reason, &outcome.Attempts,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcome.Status = domain.OutcomeStatus(status)
		outcomes = append(outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read delivery log: %w", err)
	}

	if len(outcomes) == 0 {
		return nil, domain.ErrNotFound
	}

	return outcomes, nil
}
