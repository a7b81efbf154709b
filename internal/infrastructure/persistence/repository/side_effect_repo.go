package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nordstift/foundation-console/internal/application/port"
	"github.com/nordstift/foundation-console/internal/domain/workflow"
	"github.com/nordstift/foundation-console/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// SideEffectRepository implements port.SideEffectRepository. Records
// are unique per (instance_id, step_index), which is what makes
// retries idempotent at the storage level.
type SideEffectRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSideEffectRepository creates a new side effect repository
func NewSideEffectRepository(db *sql.DB, logger *zap.Logger) port.SideEffectRepository {
	return &SideEffectRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts or replaces the record for (instance_id, step_index)
func (r *SideEffectRepository) Upsert(ctx context.Context, record *workflow.SideEffectRecord) error {
	docs, err := json.Marshal(record.DocumentIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal document ids: %w", err)
	}

	query := `
		INSERT INTO side_effects (
			instance_id, step_index, kind, status, attempts, error, document_ids
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id, step_index) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			error = excluded.error,
			document_ids = excluded.document_ids,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		record.InstanceID,
		record.StepIndex,
		string(record.Kind),
		string(record.Status),
		record.Attempts,
		record.Error,
		string(docs),
	)
	if err != nil {
		r.logger.Error("Failed to upsert side effect",
			zap.Int64("instance_id", record.InstanceID),
			zap.Int("step_index", record.StepIndex),
			zap.Error(err))
		return fmt.Errorf("failed to upsert side effect: %w", err)
	}

	return nil
}

// Get retrieves the record for (instance_id, step_index), or nil if
// none was ever fired
func (r *SideEffectRepository) Get(ctx context.Context, instanceID int64, stepIndex int) (*workflow.SideEffectRecord, error) {
	query := selectSideEffects + ` WHERE instance_id = ? AND step_index = ?`

	row := r.getExecutor(ctx).QueryRowContext(ctx, query, instanceID, stepIndex)
	record, err := scanSideEffect(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get side effect",
			zap.Int64("instance_id", instanceID),
			zap.Int("step_index", stepIndex),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get side effect: %w", err)
	}

	return record, nil
}

// GetByInstanceID retrieves all side effect records for an instance
func (r *SideEffectRepository) GetByInstanceID(ctx context.Context, instanceID int64) ([]workflow.SideEffectRecord, error) {
	query := selectSideEffects + ` WHERE instance_id = ? ORDER BY step_index`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to list side effects", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list side effects: %w", err)
	}
	defer rows.Close()

	return collectSideEffects(rows)
}

// GetPending retrieves up to limit PENDING records, oldest first, for
// the worker to pick up
func (r *SideEffectRepository) GetPending(ctx context.Context, limit int) ([]workflow.SideEffectRecord, error) {
	query := selectSideEffects + ` WHERE status = ? ORDER BY updated_at LIMIT ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, string(workflow.SideEffectPending), limit)
	if err != nil {
		r.logger.Error("Failed to list pending side effects", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending side effects: %w", err)
	}
	defer rows.Close()

	return collectSideEffects(rows)
}

// MarkDone records a successful completion with the produced documents
func (r *SideEffectRepository) MarkDone(ctx context.Context, instanceID int64, stepIndex int, documentIDs []string) error {
	docs, err := json.Marshal(documentIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal document ids: %w", err)
	}

	query := `
		UPDATE side_effects
		SET status = ?, error = '', document_ids = ?, updated_at = CURRENT_TIMESTAMP
		WHERE instance_id = ? AND step_index = ?
	`

	_, err = r.getExecutor(ctx).ExecContext(ctx, query,
		string(workflow.SideEffectDone), string(docs), instanceID, stepIndex)
	if err != nil {
		r.logger.Error("Failed to mark side effect done",
			zap.Int64("instance_id", instanceID),
			zap.Int("step_index", stepIndex),
			zap.Error(err))
		return fmt.Errorf("failed to mark side effect done: %w", err)
	}

	return nil
}

// MarkFailed records a failed attempt with the error message
func (r *SideEffectRepository) MarkFailed(ctx context.Context, instanceID int64, stepIndex int, errMsg string) error {
	query := `
		UPDATE side_effects
		SET status = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE instance_id = ? AND step_index = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		string(workflow.SideEffectFailed), errMsg, instanceID, stepIndex)
	if err != nil {
		r.logger.Error("Failed to mark side effect failed",
			zap.Int64("instance_id", instanceID),
			zap.Int("step_index", stepIndex),
			zap.Error(err))
		return fmt.Errorf("failed to mark side effect failed: %w", err)
	}

	return nil
}

const selectSideEffects = `
	SELECT id, instance_id, step_index, kind, status, attempts, error,
		document_ids, created_at, updated_at
	FROM side_effects`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSideEffect(row rowScanner) (*workflow.SideEffectRecord, error) {
	var record workflow.SideEffectRecord
	var kind, status, docs string

	err := row.Scan(
		&record.ID,
		&record.InstanceID,
		&record.StepIndex,
		&kind,
		&status,
		&record.Attempts,
		&record.Error,
		&docs,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Kind = workflow.SideEffectKind(kind)
	record.Status = workflow.SideEffectStatus(status)
	if err := json.Unmarshal([]byte(docs), &record.DocumentIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document ids: %w", err)
	}

	return &record, nil
}

func collectSideEffects(rows *sql.Rows) ([]workflow.SideEffectRecord, error) {
	var records []workflow.SideEffectRecord
	for rows.Next() {
		record, err := scanSideEffect(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan side effect: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *SideEffectRepository) getExecutor(ctx context.Context) executor {
	if tx, ok := sqlite.ExtractTx(ctx); ok {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.SideEffectRepository = (*SideEffectRepository)(nil)
