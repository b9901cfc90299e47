package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// countingSweeper records sweeps and evicts one flight per call.
type countingSweeper struct {
	mu     sync.Mutex
	sweeps int
	left   int
}

func (s *countingSweeper) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweeps++
	if s.left == 0 {
		return 0
	}
	s.left--
	return 1
}

func (s *countingSweeper) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left
}

func (s *countingSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps
}

func TestWatcherSweepsPeriodically(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	flights := &countingSweeper{left: 2}
	w := NewWatcher(flights, log, WithWatchInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(110 * time.Millisecond)
	cancel()
	<-done

	if flights.count() < 3 {
		t.Fatalf("expected several sweeps, got %d", flights.count())
	}
	if flights.Len() != 0 {
		t.Fatalf("expected all flights evicted, %d left", flights.Len())
	}
}

func TestSupervisorStartsWatcher(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	flights := &countingSweeper{}
	sup := New(&mockQueue{}, &mockBusy{}, log,
		WithTickInterval(time.Hour),
		WithWatcher(flights, WithWatchInterval(20*time.Millisecond)),
	)

	sup.Start(context.Background())
	time.Sleep(70 * time.Millisecond)
	sup.Stop()

	if flights.count() == 0 {
		t.Fatal("expected the watcher to run")
	}
}
