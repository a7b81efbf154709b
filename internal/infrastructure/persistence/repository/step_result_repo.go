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

// StepResultRepository implements port.StepResultRepository. The
// table is append-only; results are never updated or deleted.
type StepResultRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStepResultRepository creates a new step result repository
func NewStepResultRepository(db *sql.DB, logger *zap.Logger) port.StepResultRepository {
	return &StepResultRepository{
		db:     db,
		logger: logger,
	}
}

// Append records a step result for an instance
func (r *StepResultRepository) Append(ctx context.Context, instanceID int64, result *workflow.StepResult) error {
	reasons, err := json.Marshal(result.Reasons)
	if err != nil {
		return fmt.Errorf("failed to marshal reasons: %w", err)
	}

	query := `
		INSERT INTO step_results (
			instance_id, step_index, outcome, reasons, decided_by, decided_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := r.getExecutor(ctx).ExecContext(ctx, query,
		instanceID,
		result.StepIndex,
		string(result.Outcome),
		string(reasons),
		result.DecidedBy,
		result.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append step result",
			zap.Int64("instance_id", instanceID),
			zap.Int("step_index", result.StepIndex),
			zap.Error(err))
		return fmt.Errorf("failed to append step result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	result.ID = id
	return nil
}

// GetByInstanceID retrieves all step results for an instance in
// insertion order
func (r *StepResultRepository) GetByInstanceID(ctx context.Context, instanceID int64) ([]workflow.StepResult, error) {
	query := `
		SELECT id, step_index, outcome, reasons, decided_by, decided_at
		FROM step_results
		WHERE instance_id = ?
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, instanceID)
	if err != nil {
		r.logger.Error("Failed to get step results", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get step results: %w", err)
	}
	defer rows.Close()

	var results []workflow.StepResult
	for rows.Next() {
		var result workflow.StepResult
		var outcome, reasons string

		err := rows.Scan(
			&result.ID,
			&result.StepIndex,
			&outcome,
			&reasons,
			&result.DecidedBy,
			&result.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step result: %w", err)
		}

		result.Outcome = workflow.Outcome(outcome)
		if err := json.Unmarshal([]byte(reasons), &result.Reasons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reasons: %w", err)
		}

		results = append(results, result)
	}

	return results, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *StepResultRepository) getExecutor(ctx context.Context) executor {
	if tx, ok := sqlite.ExtractTx(ctx); ok {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.StepResultRepository = (*StepResultRepository)(nil)
