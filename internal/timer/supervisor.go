// Package timer implements the background supervisor that emits the
// clock-driven announcements: baggage reminders on the half hour and the
// optional periodic security notice.
package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/gate"
	"github.com/hammamikhairi/gatecaller/internal/logger"
	"github.com/hammamikhairi/gatecaller/internal/resolver"
)

// InFlightChecker reports whether a boarding-process call holds the
// device. The playback queue implements it.
type InFlightChecker interface {
	DepartureInFlight() bool
}

// Option configures the supervisor.
type Option func(*Supervisor)

// WithTickInterval sets how often the supervisor looks at the clock. It
// must be well under a minute or tick minutes can be missed.
func WithTickInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		s.tickInterval = d
	}
}

// WithSecurityInterval enables the periodic security announcement.
// Zero disables it.
func WithSecurityInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		s.securityInterval = d
	}
}

// WithClock overrides time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		s.now = now
	}
}

// WithWatcher runs a Watcher over flights alongside the supervisor.
func WithWatcher(flights Sweeper, opts ...WatcherOption) Option {
	return func(s *Supervisor) {
		s.watcherFlights = flights
		s.watcherOpts = opts
	}
}

// Supervisor runs in the background and enqueues non-flight announcements.
// A tick that is skipped is never made up later.
type Supervisor struct {
	queue            domain.Enqueuer
	busy             InFlightChecker
	log              *logger.Logger
	tickInterval     time.Duration
	securityInterval time.Duration
	now              func() time.Time

	watcherFlights Sweeper
	watcherOpts    []WatcherOption
	watcher        *Watcher

	lastBaggage  time.Time // tick minute last evaluated
	lastSecurity time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New creates a supervisor with the given dependencies and options.
func New(queue domain.Enqueuer, busy InFlightChecker, log *logger.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		queue:        queue,
		busy:         busy,
		log:          log,
		tickInterval: 15 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background supervisor loop. Non-blocking.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("timer supervisor already running")
		return
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.lastSecurity = s.now()

	go s.loop(childCtx)

	if s.watcherFlights != nil {
		s.watcher = NewWatcher(s.watcherFlights, s.log, s.watcherOpts...)
		go s.watcher.Run(childCtx)
	}

	s.log.Info("timer supervisor started (tick=%s, security=%s)", s.tickInterval, s.securityInterval)
}

// Stop gracefully shuts down the supervisor.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.running = false
	s.log.Info("timer supervisor stopped")
}

// loop is the main tick loop.
func (s *Supervisor) loop(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(s.now())
		}
	}
}

// Tick runs one cycle at now. It returns the jobs it enqueued.
func (s *Supervisor) Tick(now time.Time) []domain.AnnouncementJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AnnouncementJob
	if job, ok := s.baggageLocked(now); ok {
		out = append(out, job)
	}
	if job, ok := s.securityLocked(now); ok {
		out = append(out, job)
	}
	return out
}

// baggageLocked evaluates the baggage reminder once per tick minute.
func (s *Supervisor) baggageLocked(now time.Time) (domain.AnnouncementJob, bool) {
	if !gate.IsTick(now) {
		return domain.AnnouncementJob{}, false
	}
	minute := now.Truncate(time.Minute)
	if minute.Equal(s.lastBaggage) {
		return domain.AnnouncementJob{}, false
	}
	s.lastBaggage = minute

	if !gate.IsPermitted(domain.CallBaggage, now) {
		s.log.Debug("supervisor: baggage outside %s window at %s", gate.SeasonOf(now), now.Format("15:04"))
		return domain.AnnouncementJob{}, false
	}
	if s.busy != nil && s.busy.DepartureInFlight() {
		s.log.Info("supervisor: baggage skipped at %s, departure call playing", now.Format("15:04"))
		return domain.AnnouncementJob{}, false
	}
	return s.enqueueClass(domain.CallBaggage)
}

func (s *Supervisor) securityLocked(now time.Time) (domain.AnnouncementJob, bool) {
	if s.securityInterval <= 0 || now.Sub(s.lastSecurity) < s.securityInterval {
		return domain.AnnouncementJob{}, false
	}
	s.lastSecurity = now
	return s.enqueueClass(domain.CallSecurity)
}

func (s *Supervisor) enqueueClass(call domain.CallType) (domain.AnnouncementJob, bool) {
	job, err := resolver.ClassJob(call)
	if err != nil {
		s.log.Error("supervisor: %v", err)
		return domain.AnnouncementJob{}, false
	}
	if err := s.queue.Enqueue(job); err != nil {
		if errors.Is(err, domain.ErrDuplicateJob) {
			s.log.Debug("supervisor: %s already queued", call)
		} else {
			s.log.Error("supervisor: enqueue %s: %v", call, err)
		}
		return domain.AnnouncementJob{}, false
	}
	s.log.Debug("supervisor: enqueued %s", call)
	return job, true
}
