package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker defines the interface for background workers
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// WorkerManager owns the lifecycle of the background workers. Startup
// is all or nothing: a worker that fails to start stops the ones
// already running, since the console cannot operate with its
// side-effect processing half up.
type WorkerManager struct {
	workers []Worker
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewWorkerManager creates a new worker manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{logger: logger}
}

// Register adds a worker to be managed
func (m *WorkerManager) Register(worker Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, worker)
	m.logger.Info("Worker registered", zap.String("worker_name", worker.Name()))
}

// StartAll starts every registered worker, stopping started ones if
// any fails.
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("workers already running")
	}

	ctx, m.cancel = context.WithCancel(ctx)

	var started []Worker
	for _, worker := range m.workers {
		if err := worker.Start(ctx); err != nil {
			m.cancel()
			for _, w := range started {
				if stopErr := w.Stop(); stopErr != nil {
					m.logger.Error("Failed to stop worker during rollback",
						zap.String("worker_name", w.Name()),
						zap.Error(stopErr))
				}
			}
			return fmt.Errorf("failed to start worker %s: %w", worker.Name(), err)
		}
		started = append(started, worker)
		m.logger.Info("Worker started", zap.String("worker_name", worker.Name()))
	}

	m.running = true
	return nil
}

// StopAll gracefully stops all workers
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	m.cancel()

	var failed int
	for _, worker := range m.workers {
		if err := worker.Stop(); err != nil {
			m.logger.Error("Failed to stop worker",
				zap.String("worker_name", worker.Name()),
				zap.Error(err))
			failed++
			continue
		}
		m.logger.Info("Worker stopped", zap.String("worker_name", worker.Name()))
	}

	if failed > 0 {
		return fmt.Errorf("failed to stop %d worker(s)", failed)
	}
	return nil
}
