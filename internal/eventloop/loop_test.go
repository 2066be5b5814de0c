package eventloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestManualFiresInDueOrder(t *testing.T) {
	m := NewManual()
	var order []string

	m.AfterFunc(30*time.Millisecond, func() { order = append(order, "c") })
	m.AfterFunc(10*time.Millisecond, func() { order = append(order, "a") })
	m.AfterFunc(10*time.Millisecond, func() { order = append(order, "b") })

	m.Advance(20 * time.Millisecond)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("Expected [a b] after 20ms, got %v", order)
	}

	m.Advance(10 * time.Millisecond)
	if len(order) != 3 || order[2] != "c" {
		t.Fatalf("Expected c to fire at 30ms, got %v", order)
	}
	if m.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", m.Pending())
	}
}

func TestManualStoppedTimerNeverFires(t *testing.T) {
	m := NewManual()
	fired := false

	timer := m.AfterFunc(5*time.Millisecond, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("Expected first Stop to report true")
	}
	if timer.Stop() {
		t.Error("Expected second Stop to report false")
	}

	m.Advance(time.Second)
	if fired {
		t.Error("Stopped timer fired")
	}
}

func TestManualTimerScheduledFromCallback(t *testing.T) {
	m := NewManual()
	var at []time.Duration
	start := m.Now()

	var tick func()
	tick = func() {
		at = append(at, m.Now().Sub(start))
		if len(at) < 3 {
			m.AfterFunc(16*time.Millisecond, tick)
		}
	}
	m.AfterFunc(16*time.Millisecond, tick)

	m.Advance(100 * time.Millisecond)
	want := []time.Duration{16 * time.Millisecond, 32 * time.Millisecond, 48 * time.Millisecond}
	if len(at) != len(want) {
		t.Fatalf("Expected %d ticks, got %v", len(want), at)
	}
	for i := range want {
		if at[i] != want[i] {
			t.Errorf("Tick %d: expected %v, got %v", i, want[i], at[i])
		}
	}
	if got := m.Now().Sub(start); got != 100*time.Millisecond {
		t.Errorf("Expected clock at 100ms, got %v", got)
	}
}

func TestManualPostRunsOnFlush(t *testing.T) {
	m := NewManual()
	ran := 0
	m.Post(func() {
		ran++
		m.Post(func() { ran++ })
	})
	if ran != 0 {
		t.Fatal("Post ran synchronously")
	}
	m.Flush()
	if ran != 2 {
		t.Errorf("Expected nested posts to run, got %d", ran)
	}
}

func TestLoopDoAndAfterFunc(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var counter int32
	if err := l.Do(ctx, func() { atomic.AddInt32(&counter, 1) }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if atomic.LoadInt32(&counter) != 1 {
		t.Fatalf("Expected counter 1, got %d", counter)
	}

	fired := make(chan struct{})
	if err := l.Do(ctx, func() {
		l.AfterFunc(5*time.Millisecond, func() { close(fired) })
	}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Timer did not fire")
	}
}

func TestLoopStopFromLoopPreventsCallback(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var fired int32
	if err := l.Do(ctx, func() {
		timer := l.AfterFunc(time.Millisecond, func() { atomic.StoreInt32(&fired, 1) })
		time.Sleep(5 * time.Millisecond)
		timer.Stop()
	}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	// Let the already-posted callback drain through the loop.
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("Timer stopped on the loop still fired")
	}
}

func TestLoopClosed(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if l.Post(func() {}) {
		t.Error("Expected Post to fail after Run returned")
	}
	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
