package port

import (
	"context"

	"github.com/nordstift/foundation-console/internal/domain/workflow"
)

// InstanceRepository defines persistence operations for workflow
// instances. Save carries the optimistic concurrency guard: it must
// fail with workflow.StaleInstanceError when the stored version no
// longer matches the version the instance was loaded at.
type InstanceRepository interface {
	// Create persists a new instance and assigns its ID.
	Create(ctx context.Context, instance *workflow.Instance) error

	// GetByID retrieves an instance row (history and side effects
	// are loaded from their own repositories). Returns
	// workflow.ErrInstanceNotFound when no row exists.
	GetByID(ctx context.Context, id int64) (*workflow.Instance, error)

	// Save persists status, step pointer and data, guarded by the
	// version the instance was loaded at, and bumps the version.
	Save(ctx context.Context, instance *workflow.Instance) error

	// List retrieves a page of instances ordered by creation time.
	List(ctx context.Context, limit, offset int) ([]*workflow.Instance, error)
}

// StepResultRepository defines persistence operations for the
// append-only audit trail. Results are never updated or deleted.
type StepResultRepository interface {
	Append(ctx context.Context, instanceID int64, result *workflow.StepResult) error
	GetByInstanceID(ctx context.Context, instanceID int64) ([]workflow.StepResult, error)
}

// SideEffectRepository defines persistence operations for side-effect
// markers. One record exists per (instance, step); Upsert keeps that
// key unique so retries cannot duplicate the action.
type SideEffectRepository interface {
	Upsert(ctx context.Context, record *workflow.SideEffectRecord) error
	Get(ctx context.Context, instanceID int64, stepIndex int) (*workflow.SideEffectRecord, error)
	GetByInstanceID(ctx context.Context, instanceID int64) ([]workflow.SideEffectRecord, error)
	GetPending(ctx context.Context, limit int) ([]workflow.SideEffectRecord, error)
	MarkDone(ctx context.Context, instanceID int64, stepIndex int, documentIDs []string) error
	MarkFailed(ctx context.Context, instanceID int64, stepIndex int, errMsg string) error
}

// SignatureRepository defines persistence operations for digital
// signature records. Append-only: records are immutable once written.
type SignatureRepository interface {
	Append(ctx context.Context, record *workflow.SignatureRecord) error
	GetByInstanceID(ctx context.Context, instanceID int64) ([]workflow.SignatureRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
