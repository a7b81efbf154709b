package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nordstift/foundation-console/internal/application/port"
	"github.com/nordstift/foundation-console/internal/domain/workflow"
	"github.com/nordstift/foundation-console/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// SignatureRepository implements port.SignatureRepository
type SignatureRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSignatureRepository creates a new signature repository
func NewSignatureRepository(db *sql.DB, logger *zap.Logger) port.SignatureRepository {
	return &SignatureRepository{
		db:     db,
		logger: logger,
	}
}

// Append records a collected signature
func (r *SignatureRepository) Append(ctx context.Context, record *workflow.SignatureRecord) error {
	query := `
		INSERT INTO signatures (
			instance_id, step_index, signer_id, method, signed_at
		) VALUES (?, ?, ?, ?, ?)
	`

	res, err := r.getExecutor(ctx).ExecContext(ctx, query,
		record.InstanceID,
		record.StepIndex,
		record.SignerID,
		record.Method,
		record.SignedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append signature",
			zap.Int64("instance_id", record.InstanceID),
			zap.String("signer_id", record.SignerID),
			zap.Error(err))
		return fmt.Errorf("failed to append signature: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByInstanceID retrieves all signatures collected for an instance
func (r *SignatureRepository) GetByInstanceID(ctx context.Context, instanceID int64) ([]workflow.SignatureRecord, error) {
	query := `
		SELECT id, instance_id, step_index, signer_id, method, signed_at
		FROM signatures
		WHERE instance_id = ?
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to list signatures", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}
	defer rows.Close()

	var records []workflow.SignatureRecord
	for rows.Next() {
		var record workflow.SignatureRecord
		err := rows.Scan(
			&record.ID,
			&record.InstanceID,
			&record.StepIndex,
			&record.SignerID,
			&record.Method,
			&record.SignedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *SignatureRepository) getExecutor(ctx context.Context) executor {
	if tx, ok := sqlite.ExtractTx(ctx); ok {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.SignatureRepository = (*SignatureRepository)(nil)
