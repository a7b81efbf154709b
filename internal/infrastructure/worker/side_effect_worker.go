package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nordstift/foundation-console/internal/application/dispatcher"
	"github.com/nordstift/foundation-console/internal/application/port"
	"github.com/nordstift/foundation-console/internal/domain/event"
	"github.com/nordstift/foundation-console/internal/domain/workflow"
)

// SideEffectWorker drains PENDING side-effect records and runs the
// document generator for each. The engine only writes the marker;
// this worker is the one place the external action actually happens,
// so a crash between the two never duplicates a document run.
type SideEffectWorker struct {
	sideEffects port.SideEffectRepository
	instances   port.InstanceRepository
	generator   port.DocumentGenerator
	dispatcher  dispatcher.Dispatcher
	logger      *zap.Logger

	pollInterval time.Duration
	batchSize    int

	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewSideEffectWorker creates a new side effect worker. Zero values
// for pollInterval and batchSize fall back to 5s and 20.
func NewSideEffectWorker(
	sideEffects port.SideEffectRepository,
	instances port.InstanceRepository,
	generator port.DocumentGenerator,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
	pollInterval time.Duration,
	batchSize int,
) *SideEffectWorker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &SideEffectWorker{
		sideEffects:  sideEffects,
		instances:    instances,
		generator:    generator,
		dispatcher:   d,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Start starts the side effect worker
func (w *SideEffectWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("side effect worker is already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true

	w.logger.Info("SideEffectWorker started",
		zap.Duration("poll_interval", w.pollInterval),
		zap.Int("batch_size", w.batchSize))

	go w.pollLoop()

	return nil
}

// Stop stops the side effect worker
func (w *SideEffectWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return nil
	}

	w.isRunning = false
	if w.cancel != nil {
		w.cancel()
	}

	w.logger.Info("SideEffectWorker stopped")
	return nil
}

// Name returns the worker name for identification
func (w *SideEffectWorker) Name() string {
	return "SideEffectWorker"
}

// pollLoop runs the main polling loop
func (w *SideEffectWorker) pollLoop() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Drain immediately on start so restarts pick up what the
	// previous process left pending.
	w.processPending()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("Poll loop context cancelled")
			return

		case <-ticker.C:
			w.processPending()
		}
	}
}

// processPending runs one batch of pending side effects
func (w *SideEffectWorker) processPending() {
	ctx, cancel := context.WithTimeout(w.ctx, 30*time.Second)
	defer cancel()

	records, err := w.sideEffects.GetPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("Failed to list pending side effects", zap.Error(err))
		return
	}

	for _, record := range records {
		w.process(ctx, record)
	}
}

// process executes one side effect and records the outcome
func (w *SideEffectWorker) process(ctx context.Context, record workflow.SideEffectRecord) {
	instance, err := w.instances.GetByID(ctx, record.InstanceID)
	if err != nil {
		w.logger.Error("Failed to load instance for side effect",
			zap.Int64("instance_id", record.InstanceID),
			zap.Int("step_index", record.StepIndex),
			zap.Error(err))
		return
	}

	documentIDs, err := w.generator.Generate(ctx, record.Kind, instance)
	if err != nil {
		w.logger.Warn("Side effect failed",
			zap.Int64("instance_id", record.InstanceID),
			zap.Int("step_index", record.StepIndex),
			zap.String("kind", string(record.Kind)),
			zap.Error(err))

		if markErr := w.sideEffects.MarkFailed(ctx, record.InstanceID, record.StepIndex, err.Error()); markErr != nil {
			w.logger.Error("Failed to mark side effect failed", zap.Error(markErr))
			return
		}
		w.emit(ctx, event.NewEvent(event.TypeSideEffectFailed, record.InstanceID, map[string]interface{}{
			"step_index": record.StepIndex,
			"kind":       string(record.Kind),
			"error":      err.Error(),
		}))
		return
	}

	if err := w.sideEffects.MarkDone(ctx, record.InstanceID, record.StepIndex, documentIDs); err != nil {
		w.logger.Error("Failed to mark side effect done",
			zap.Int64("instance_id", record.InstanceID),
			zap.Int("step_index", record.StepIndex),
			zap.Error(err))
		return
	}

	w.logger.Info("Side effect completed",
		zap.Int64("instance_id", record.InstanceID),
		zap.Int("step_index", record.StepIndex),
		zap.String("kind", string(record.Kind)),
		zap.Int("documents", len(documentIDs)))

	w.emit(ctx, event.NewEvent(event.TypeSideEffectCompleted, record.InstanceID, map[string]interface{}{
		"step_index":   record.StepIndex,
		"kind":         string(record.Kind),
		"document_ids": documentIDs,
	}))
}

func (w *SideEffectWorker) emit(ctx context.Context, evt *event.Event) {
	if w.dispatcher != nil {
		w.dispatcher.DispatchAsync(ctx, evt)
	}
}

// Verify interface compliance
var _ Worker = (*SideEffectWorker)(nil)
