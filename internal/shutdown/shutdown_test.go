package shutdown

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// mockShutdownable is a test implementation of Shutdownable
type mockShutdownable struct {
	name        string
	closeCalled bool
	closeErr    error
	closeDelay  time.Duration
	order       *[]string
}

func (m *mockShutdownable) Close() error {
	if m.closeDelay > 0 {
		time.Sleep(m.closeDelay)
	}
	m.closeCalled = true
	if m.order != nil {
		*m.order = append(*m.order, m.name)
	}
	return m.closeErr
}

func newTestCoordinator() *Coordinator {
	return New(5*time.Second, zerolog.Nop())
}

func TestShutdown(t *testing.T) {
	c := newTestCoordinator()
	comp := &mockShutdownable{}
	hookCalled := false

	c.Register("postgres", comp, PriorityDatabase)
	c.RegisterHook("flush", func(ctx context.Context) error {
		hookCalled = true
		return nil
	}, PriorityHistory)

	if err := c.Shutdown(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if !comp.closeCalled {
		t.Error("expected component Close() to be called")
	}
	if !hookCalled {
		t.Error("expected hook to be called")
	}
}

func TestShutdownOnce(t *testing.T) {
	c := newTestCoordinator()
	callCount := 0

	c.RegisterHook("count", func(ctx context.Context) error {
		callCount++
		return nil
	}, PriorityHistory)

	c.Shutdown()
	c.Shutdown()
	c.Shutdown()

	if callCount != 1 {
		t.Errorf("expected hook to be called once, got %d times", callCount)
	}
}

func TestShutdownPriority(t *testing.T) {
	c := newTestCoordinator()
	var order []string

	c.Register("postgres", &mockShutdownable{name: "postgres", order: &order}, PriorityDatabase)
	c.Register("storage", &mockShutdownable{name: "storage", order: &order}, PriorityStorage)
	c.Register("history", &mockShutdownable{name: "history", order: &order}, PriorityHistory)
	c.RegisterHook("hook", func(ctx context.Context) error {
		order = append(order, "hook")
		return nil
	}, PriorityDatabase)

	if err := c.Shutdown(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"hook", "history", "storage", "postgres"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestShutdownWithError(t *testing.T) {
	c := newTestCoordinator()
	expectedErr := errors.New("component error")
	failing := &mockShutdownable{closeErr: expectedErr}
	after := &mockShutdownable{}

	c.Register("failing", failing, PriorityStorage)
	c.Register("after", after, PriorityDatabase)

	err := c.Shutdown()
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error '%v', got '%v'", expectedErr, err)
	}
	if !after.closeCalled {
		t.Error("later components must still be closed after a failure")
	}
}

func TestShutdownTimeout(t *testing.T) {
	c := New(100*time.Millisecond, zerolog.Nop())

	slowComp := &mockShutdownable{closeDelay: 300 * time.Millisecond}
	secondComp := &mockShutdownable{}
	c.Register("slow", slowComp, PriorityStorage)
	c.Register("second", secondComp, PriorityDatabase)

	err := c.Shutdown()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if secondComp.closeCalled {
		t.Error("expected second component to be skipped after timeout")
	}
}

func TestSignalContext(t *testing.T) {
	c := newTestCoordinator()

	ctx, cancel := c.SignalContext(context.Background())
	defer cancel()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("failed to signal self: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled by SIGTERM")
	}
}

func TestSignalContext_ParentCancel(t *testing.T) {
	c := newTestCoordinator()
	parent, cancelParent := context.WithCancel(context.Background())

	ctx, cancel := c.SignalContext(parent)
	defer cancel()
	cancelParent()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context did not follow its parent")
	}
}
