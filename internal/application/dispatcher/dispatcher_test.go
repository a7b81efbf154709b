package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nordstift/foundation-console/internal/domain/event"
)

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Info(string, ...interface{}) {}

func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}

func TestDispatcher_SubscriberReceivesMatchingEvent(t *testing.T) {
	d := NewDispatcher()

	var received atomic.Value
	d.Subscribe(event.TypeStepPassed, "audit_log", func(_ context.Context, evt *event.Event) error {
		received.Store(evt)
		return nil
	})

	evt := event.NewEvent(event.TypeStepPassed, 7, map[string]interface{}{"step_index": 2})
	d.DispatchAsync(context.Background(), evt)

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, ok := received.Load().(*event.Event)
	if !ok {
		t.Fatal("subscriber never received the event")
	}
	if got.InstanceID != 7 {
		t.Errorf("InstanceID = %d, want 7", got.InstanceID)
	}
	if got.Payload["step_index"] != 2 {
		t.Errorf("payload step_index = %v, want 2", got.Payload["step_index"])
	}
}

func TestDispatcher_OnlyMatchingTypeDelivered(t *testing.T) {
	d := NewDispatcher()

	var blockedCalls, passedCalls atomic.Int32
	d.Subscribe(event.TypeStepBlocked, "on_blocked", func(context.Context, *event.Event) error {
		blockedCalls.Add(1)
		return nil
	})
	d.Subscribe(event.TypeStepPassed, "on_passed", func(context.Context, *event.Event) error {
		passedCalls.Add(1)
		return nil
	})

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeStepPassed, 1, nil))
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if blockedCalls.Load() != 0 {
		t.Errorf("blocked handler ran %d time(s), want 0", blockedCalls.Load())
	}
	if passedCalls.Load() != 1 {
		t.Errorf("passed handler ran %d time(s), want 1", passedCalls.Load())
	}
}

func TestDispatcher_AllSubscribersOfTypeRun(t *testing.T) {
	d := NewDispatcher()

	var calls atomic.Int32
	for _, name := range []string{"audit_log", "metrics"} {
		d.Subscribe(event.TypeWorkflowCompleted, name, func(context.Context, *event.Event) error {
			calls.Add(1)
			return nil
		})
	}

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeWorkflowCompleted, 1, nil))
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if calls.Load() != 2 {
		t.Errorf("subscribers ran %d time(s), want 2", calls.Load())
	}
}

func TestDispatcher_FailingSubscriberDoesNotStopOthers(t *testing.T) {
	logger := &recordingLogger{}
	d := NewDispatcher(WithLogger(logger))

	var healthyRan atomic.Bool
	d.Subscribe(event.TypeSideEffectFailed, "broken", func(context.Context, *event.Event) error {
		return errors.New("subscriber failure")
	})
	d.Subscribe(event.TypeSideEffectFailed, "healthy", func(context.Context, *event.Event) error {
		healthyRan.Store(true)
		return nil
	})

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeSideEffectFailed, 1, nil))
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !healthyRan.Load() {
		t.Error("healthy subscriber did not run after another failed")
	}
	if logger.errorCount() != 1 {
		t.Errorf("logged %d error(s), want 1", logger.errorCount())
	}
}

func TestDispatcher_PanickingSubscriberIsRecovered(t *testing.T) {
	logger := &recordingLogger{}
	d := NewDispatcher(WithLogger(logger))

	d.Subscribe(event.TypeSignatureRecorded, "panicky", func(context.Context, *event.Event) error {
		panic("subscriber panic")
	})

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeSignatureRecorded, 1, nil))
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if logger.errorCount() != 1 {
		t.Errorf("logged %d error(s), want 1", logger.errorCount())
	}
}

func TestDispatcher_CloseWaitsForInFlightHandlers(t *testing.T) {
	d := NewDispatcher()

	var finished atomic.Bool
	d.Subscribe(event.TypeWorkflowStarted, "slow", func(context.Context, *event.Event) error {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeWorkflowStarted, 1, nil))
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !finished.Load() {
		t.Error("Close returned before the in-flight handler finished")
	}
}

func TestDispatcher_DispatchAfterCloseIsDropped(t *testing.T) {
	d := NewDispatcher()

	var calls atomic.Int32
	d.Subscribe(event.TypeWorkflowRejected, "audit_log", func(context.Context, *event.Event) error {
		calls.Add(1)
		return nil
	})

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeWorkflowRejected, 1, nil))
	time.Sleep(20 * time.Millisecond)

	if calls.Load() != 0 {
		t.Errorf("handler ran %d time(s) after Close, want 0", calls.Load())
	}
}

func TestDispatcher_CloseTwiceFails(t *testing.T) {
	d := NewDispatcher()

	if err := d.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := d.Close(); err == nil {
		t.Fatal("second Close() succeeded, want error")
	}
}
