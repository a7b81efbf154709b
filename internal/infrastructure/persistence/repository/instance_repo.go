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

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *workflow.Instance) error {
	data, err := json.Marshal(instance.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal instance data: %w", err)
	}

	query := `
		INSERT INTO workflow_instances (
			kind, current_step, version, status, data
		) VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		instance.Kind.String(),
		instance.CurrentStep,
		instance.Version,
		instance.Status.String(),
		string(data),
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	instance.ID = id
	return nil
}

// GetByID retrieves a workflow instance by ID
func (r *InstanceRepository) GetByID(ctx context.Context, id int64) (*workflow.Instance, error) {
	query := `
		SELECT id, kind, current_step, version, status, data,
			created_at, updated_at
		FROM workflow_instances
		WHERE id = ?
	`

	var instance workflow.Instance
	var kind, status, data string

	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&instance.ID,
		&kind,
		&instance.CurrentStep,
		&instance.Version,
		&status,
		&data,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, workflow.ErrInstanceNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	instance.Kind = workflow.Kind(kind)
	instance.Status = workflow.Status(status)
	if err := json.Unmarshal([]byte(data), &instance.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance data: %w", err)
	}

	return &instance, nil
}

// Save persists the instance under the optimistic version guard. The
// UPDATE only matches the version the caller loaded; a miss means a
// concurrent writer got there first and is reported as stale.
func (r *InstanceRepository) Save(ctx context.Context, instance *workflow.Instance) error {
	data, err := json.Marshal(instance.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal instance data: %w", err)
	}

	query := `
		UPDATE workflow_instances
		SET current_step = ?, version = version + 1, status = ?, data = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		instance.CurrentStep,
		instance.Status.String(),
		string(data),
		instance.ID,
		instance.Version,
	)
	if err != nil {
		r.logger.Error("Failed to save instance", zap.Int64("id", instance.ID), zap.Error(err))
		return fmt.Errorf("failed to save instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var actual int64
		row := r.getExecutor(ctx).QueryRowContext(ctx,
			`SELECT version FROM workflow_instances WHERE id = ?`, instance.ID)
		if err := row.Scan(&actual); err == sql.ErrNoRows {
			return workflow.ErrInstanceNotFound
		} else if err != nil {
			return fmt.Errorf("failed to read instance version: %w", err)
		}
		return &workflow.StaleInstanceError{
			InstanceID: instance.ID,
			Expected:   instance.Version,
			Actual:     actual,
		}
	}

	instance.Version++
	return nil
}

// List retrieves workflow instances with pagination
func (r *InstanceRepository) List(ctx context.Context, limit, offset int) ([]*workflow.Instance, error) {
	query := `
		SELECT id, kind, current_step, version, status, data,
			created_at, updated_at
		FROM workflow_instances
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*workflow.Instance
	for rows.Next() {
		var instance workflow.Instance
		var kind, status, data string

		err := rows.Scan(
			&instance.ID,
			&kind,
			&instance.CurrentStep,
			&instance.Version,
			&status,
			&data,
			&instance.CreatedAt,
			&instance.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}

		instance.Kind = workflow.Kind(kind)
		instance.Status = workflow.Status(status)
		if err := json.Unmarshal([]byte(data), &instance.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal instance data: %w", err)
		}

		instances = append(instances, &instance)
	}

	return instances, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *InstanceRepository) getExecutor(ctx context.Context) executor {
	if tx, ok := sqlite.ExtractTx(ctx); ok {
		return tx
	}
	return r.db
}

// executor interface covers both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
