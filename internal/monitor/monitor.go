// Package monitor turns the stream of polled flight snapshots into
// announcement jobs.
//
// The Monitor keeps the last known snapshot per flight ident and compares
// every new snapshot against it. Status transitions map to calls:
//
//	-> Processing  first call now, second call after a delay
//	-> Boarding    boarding call
//	-> LastCall    last call
//	-> Arrived     arrival announcement, at most once per ident
//
// Departed, Cancelled and Unknown emit nothing. Terminal flights are
// forgotten once the retention window has passed.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
	"github.com/hammamikhairi/gatecaller/internal/metrics"
	"github.com/hammamikhairi/gatecaller/internal/resolver"
)

// Option configures the Monitor.
type Option func(*Monitor)

// WithSecondCallDelay sets how long after the first call the second call is
// due.
func WithSecondCallDelay(d time.Duration) Option {
	return func(m *Monitor) {
		m.secondCallDelay = d
	}
}

// WithRetention sets how long a terminal flight is remembered.
func WithRetention(d time.Duration) Option {
	return func(m *Monitor) {
		m.retention = d
	}
}

// WithClock overrides time.Now for eviction bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithMetrics instruments the monitor.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

// tracked is the per-ident state.
type tracked struct {
	snap       domain.FlightSnapshot
	arrived    bool      // arrival announcement accepted
	terminalAt time.Time // zero while the flight is active
	second     *time.Timer
	gen        uint64 // bumped each time a second call is armed
}

// Monitor owns the snapshot table. Safe for concurrent use.
type Monitor struct {
	queue           domain.Enqueuer
	log             *logger.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
	secondCallDelay time.Duration
	retention       time.Duration

	mu      sync.Mutex
	flights map[string]*tracked
	stopped bool
}

// New creates a Monitor that emits into queue.
func New(queue domain.Enqueuer, log *logger.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		queue:           queue,
		log:             log,
		now:             time.Now,
		secondCallDelay: 5 * time.Minute,
		retention:       30 * time.Minute,
		flights:         make(map[string]*tracked),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.Nop()
	}
	return m
}

// Validate checks that a snapshot carries what the resolver needs to name
// the flight.
func Validate(snap domain.FlightSnapshot) error {
	if snap.Ident == "" {
		return fmt.Errorf("%w: missing ident", domain.ErrMalformedSnapshot)
	}
	if snap.Direction == domain.Arrival && snap.Origin == "" {
		return fmt.Errorf("%w: arrival %s has no origin", domain.ErrMalformedSnapshot, snap.Ident)
	}
	if snap.Direction == domain.Departure && snap.Destination == "" {
		return fmt.Errorf("%w: departure %s has no destination", domain.ErrMalformedSnapshot, snap.Ident)
	}
	return nil
}

// Ingest records a snapshot and enqueues the announcements its status
// transition calls for. It returns the jobs the queue accepted. A malformed
// snapshot is rejected with ErrMalformedSnapshot and leaves all state
// untouched.
func (m *Monitor) Ingest(ctx context.Context, snap domain.FlightSnapshot) ([]domain.AnnouncementJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := Validate(snap); err != nil {
		m.metrics.SnapshotsIngested.WithLabelValues("malformed").Inc()
		return nil, err
	}

	now := m.now()
	if snap.ObservedAt.IsZero() {
		snap.ObservedAt = now
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, domain.ErrQueueClosed
	}
	m.sweepLocked(now)
	m.metrics.SnapshotsIngested.WithLabelValues(snap.Status.String()).Inc()

	t, seen := m.flights[snap.Ident]
	if !seen {
		t = &tracked{}
		m.flights[snap.Ident] = t
		m.metrics.TrackedFlights.Set(float64(len(m.flights)))
		m.log.Debug("monitor: tracking %s (%s, %s)", snap.Ident, snap.Direction, snap.Status)
	}
	changed := !seen || t.snap.Status != snap.Status
	t.snap = snap

	if snap.Status.Terminal() {
		if t.terminalAt.IsZero() {
			t.terminalAt = now
		}
	} else {
		t.terminalAt = time.Time{}
	}

	if !changed {
		return nil, nil
	}
	if seen {
		m.log.Info("monitor: %s %s (%s)", snap.Ident, snap.Status, snap.Place())
	}

	var accepted []domain.AnnouncementJob
	switch snap.Status {
	case domain.StatusProcessing:
		if job, ok := m.emitLocked(snap, domain.CallFirst); ok {
			accepted = append(accepted, job)
		}
		m.scheduleSecondLocked(t, now)
	case domain.StatusBoarding:
		if job, ok := m.emitLocked(snap, domain.CallBoarding); ok {
			accepted = append(accepted, job)
		}
	case domain.StatusLastCall:
		if job, ok := m.emitLocked(snap, domain.CallLast); ok {
			accepted = append(accepted, job)
		}
	case domain.StatusArrived:
		if t.arrived {
			m.log.Debug("monitor: arrival of %s already announced", snap.Ident)
			break
		}
		if job, ok := m.emitLocked(snap, domain.CallArrival); ok {
			t.arrived = true
			accepted = append(accepted, job)
		}
	}
	return accepted, nil
}

// emitLocked resolves and enqueues one call. Unresolvable assets and
// rejected jobs are logged and dropped.
func (m *Monitor) emitLocked(snap domain.FlightSnapshot, call domain.CallType) (domain.AnnouncementJob, bool) {
	job, err := resolver.Job(snap, call)
	if err != nil {
		m.log.Warn("monitor: dropping %s for %s: %v", call, snap.Ident, err)
		return domain.AnnouncementJob{}, false
	}
	return m.enqueue(job)
}

func (m *Monitor) enqueue(job domain.AnnouncementJob) (domain.AnnouncementJob, bool) {
	if err := m.queue.Enqueue(job); err != nil {
		if errors.Is(err, domain.ErrDuplicateJob) {
			m.log.Debug("monitor: %v", err)
		} else {
			m.log.Error("monitor: enqueue %s: %v", job.Key, err)
		}
		return domain.AnnouncementJob{}, false
	}
	return job, true
}

// scheduleSecondLocked arms the second call. Re-entering Processing
// replaces any earlier timer for the same flight.
func (m *Monitor) scheduleSecondLocked(t *tracked, now time.Time) {
	if t.second != nil {
		t.second.Stop()
	}
	t.gen++
	ident, gen := t.snap.Ident, t.gen
	due := now.Add(m.secondCallDelay)
	t.second = time.AfterFunc(m.secondCallDelay, func() {
		m.fireSecond(ident, gen, due)
	})
	m.log.Debug("monitor: second call for %s due at %s", ident, due.Format("15:04:05"))
}

// fireSecond enqueues the second call only if the flight is still in
// Processing. Otherwise the call is stale and silently discarded.
func (m *Monitor) fireSecond(ident string, gen uint64, due time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.flights[ident]
	if m.stopped || !ok || t.gen != gen || t.second == nil {
		return
	}
	t.second = nil

	if t.snap.Status != domain.StatusProcessing {
		m.log.Debug("monitor: second call for %s discarded (now %s)", ident, t.snap.Status)
		return
	}

	job, err := resolver.Job(t.snap, domain.CallSecond)
	if err != nil {
		m.log.Warn("monitor: dropping second call for %s: %v", ident, err)
		return
	}
	job.NotBefore = due
	m.enqueue(job)
}

// Sweep forgets terminal flights older than the retention window and
// returns how many were evicted.
func (m *Monitor) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(now)
}

func (m *Monitor) sweepLocked(now time.Time) int {
	evicted := 0
	for ident, t := range m.flights {
		if t.terminalAt.IsZero() || now.Sub(t.terminalAt) < m.retention {
			continue
		}
		if t.second != nil {
			t.second.Stop()
		}
		delete(m.flights, ident)
		evicted++
	}
	if evicted > 0 {
		m.metrics.TrackedFlights.Set(float64(len(m.flights)))
		m.log.Debug("monitor: evicted %d terminal flights", evicted)
	}
	return evicted
}

// Snapshot returns the last known snapshot of a flight.
func (m *Monitor) Snapshot(ident string) (domain.FlightSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.flights[ident]
	if !ok {
		return domain.FlightSnapshot{}, false
	}
	return t.snap, true
}

// Len returns the number of tracked flights.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flights)
}

// Stop cancels every pending second call. Ingest fails afterwards.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	for _, t := range m.flights {
		if t.second != nil {
			t.second.Stop()
			t.second = nil
		}
	}
	m.log.Info("flight monitor stopped")
}
