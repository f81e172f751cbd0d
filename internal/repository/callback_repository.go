package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/craftlearn/academy-billing-api/internal/models"
)

// CallbackRepository persists raw gateway callback payloads for operator replay.
type CallbackRepository struct {
	db *sqlx.DB
}

// NewCallbackRepository constructs the repository.
func NewCallbackRepository(db *sqlx.DB) *CallbackRepository {
	return &CallbackRepository{db: db}
}

// Create records one received callback.
func (r *CallbackRepository) Create(ctx context.Context, record *models.GatewayCallbackRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = time.Now().UTC()
	}
	const query = `INSERT INTO gateway_callbacks (id, reference, status, payload, received_at)
        VALUES (:id, :reference, :status, :payload, :received_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create gateway callback record: %w", err)
	}
	return nil
}

// ListByReference returns the callbacks recorded for one reference, oldest first.
func (r *CallbackRepository) ListByReference(ctx context.Context, reference string) ([]models.GatewayCallbackRecord, error) {
	const query = `SELECT id, reference, status, payload, received_at FROM gateway_callbacks WHERE reference = $1 ORDER BY received_at ASC`
	var records []models.GatewayCallbackRecord
	if err := r.db.SelectContext(ctx, &records, query, reference); err != nil {
		return nil, fmt.Errorf("list gateway callbacks: %w", err)
	}
	return records, nil
}
