// Package playback serializes announcements onto the single audio device.
//
// Jobs go through one pipeline: queue -> load asset -> play -> log. Only one
// job plays at a time. Higher priority jobs are played first; equal
// priorities keep enqueue order. A job whose dedup key is already pending or
// playing is rejected.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hammamikhairi/gatecaller/internal/domain"
	"github.com/hammamikhairi/gatecaller/internal/logger"
	"github.com/hammamikhairi/gatecaller/internal/metrics"
)

// Compile-time interface check.
var _ domain.Enqueuer = (*Queue)(nil)

// Option configures the Queue.
type Option func(*Queue)

// WithClock overrides time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// WithMetrics instruments the queue.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// Entry is a pending job plus its ordering data.
type Entry struct {
	Job        domain.AnnouncementJob
	EnqueuedAt time.Time
	seq        uint64
}

// before reports whether e plays before o: priority descending, then
// enqueue order ascending.
func (e *Entry) before(o *Entry) bool {
	if e.Job.Priority != o.Job.Priority {
		return e.Job.Priority > o.Job.Priority
	}
	return e.seq < o.seq
}

// Queue owns every pending and in-flight job and the playback lock.
type Queue struct {
	device  domain.AudioDevice
	assets  domain.AssetStore
	plays   domain.PlaybackLogger
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu       sync.Mutex
	pending  []*Entry
	keys     map[string]struct{} // pending + in flight
	inFlight *domain.AnnouncementJob
	seq      uint64
	closed   bool
	wake     *time.Timer // re-signal for jobs not yet due
	notify   chan struct{}
}

// NewQueue creates a playback queue bound to a device, an asset store, and
// a playback logger.
func NewQueue(device domain.AudioDevice, assets domain.AssetStore, plays domain.PlaybackLogger, log *logger.Logger, opts ...Option) *Queue {
	q := &Queue{
		device: device,
		assets: assets,
		plays:  plays,
		log:    log,
		now:    time.Now,
		keys:   make(map[string]struct{}),
		notify: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.metrics == nil {
		q.metrics = metrics.Nop()
	}
	return q
}

// Enqueue adds a job. Non-blocking. Returns an error wrapping
// ErrDuplicateJob when a job with the same dedup key is pending or playing;
// the queue is left untouched in that case.
func (q *Queue) Enqueue(job domain.AnnouncementJob) error {
	if job.Key == "" {
		job.Key = domain.DedupKey(job.CallType, job.FlightIdent)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domain.ErrQueueClosed
	}
	if _, dup := q.keys[job.Key]; dup {
		q.mu.Unlock()
		q.metrics.JobsRejected.WithLabelValues(job.CallType.String()).Inc()
		q.log.Debug("queue: rejected duplicate %s", job.Key)
		return fmt.Errorf("%w: %s", domain.ErrDuplicateJob, job.Key)
	}
	q.seq++
	q.pending = append(q.pending, &Entry{Job: job, EnqueuedAt: q.now(), seq: q.seq})
	q.keys[job.Key] = struct{}{}
	qLen := len(q.pending)
	q.mu.Unlock()

	q.metrics.JobsEnqueued.WithLabelValues(job.CallType.String()).Inc()
	q.metrics.QueueDepth.Set(float64(qLen))
	q.log.Debug("queue: accepted %s (priority=%d, queue_len=%d)", job.Key, job.Priority, qLen)

	q.signal()
	return nil
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default: // already signaled
	}
}

// Len returns the number of pending jobs, not counting the one playing.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Pending returns the pending jobs in play order.
func (q *Queue) Pending() []domain.AnnouncementJob {
	q.mu.Lock()
	entries := make([]*Entry, len(q.pending))
	copy(entries, q.pending)
	q.mu.Unlock()

	// Insertion sort; the queue never holds more than a handful of jobs.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].before(entries[j-1]); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	out := make([]domain.AnnouncementJob, len(entries))
	for i, e := range entries {
		out[i] = e.Job
	}
	return out
}

// InFlight returns the job currently holding the device, if any.
func (q *Queue) InFlight() (domain.AnnouncementJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == nil {
		return domain.AnnouncementJob{}, false
	}
	return *q.inFlight, true
}

// DepartureInFlight reports whether a boarding-process call is playing.
func (q *Queue) DepartureInFlight() bool {
	job, ok := q.InFlight()
	return ok && job.CallType.Departure()
}

// Run is the single consumer. It blocks until ctx is cancelled (returning
// nil) or the audio device becomes permanently unavailable (returning an
// error wrapping ErrDeviceUnavailable). Only one Run may be active.
func (q *Queue) Run(ctx context.Context) error {
	q.signal() // pick up anything queued before Run
	for {
		select {
		case <-ctx.Done():
			q.log.Info("playback queue stopped")
			return nil
		case <-q.notify:
			if err := q.drain(ctx); err != nil {
				q.close()
				return err
			}
		}
	}
}

func (q *Queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	if q.wake != nil {
		q.wake.Stop()
	}
}

// drain plays every due job, highest priority first.
func (q *Queue) drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		entry, ok := q.dequeue()
		if !ok {
			return nil
		}
		if err := q.play(ctx, entry); err != nil {
			return err
		}
	}
}

// dequeue removes the best due entry and marks it in flight. When only
// future entries remain it arms a timer to wake the consumer.
func (q *Queue) dequeue() (*Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	best := -1
	var earliest time.Time
	for i, e := range q.pending {
		if e.Job.NotBefore.After(now) {
			if earliest.IsZero() || e.Job.NotBefore.Before(earliest) {
				earliest = e.Job.NotBefore
			}
			continue
		}
		if best < 0 || e.before(q.pending[best]) {
			best = i
		}
	}

	if best < 0 {
		if !earliest.IsZero() {
			q.armWakeLocked(earliest.Sub(now))
		}
		return nil, false
	}

	entry := q.pending[best]
	q.pending = append(q.pending[:best], q.pending[best+1:]...)
	job := entry.Job
	q.inFlight = &job
	q.metrics.QueueDepth.Set(float64(len(q.pending)))
	return entry, true
}

// armWakeLocked must be called with q.mu held.
func (q *Queue) armWakeLocked(d time.Duration) {
	if q.wake != nil {
		q.wake.Stop()
	}
	q.wake = time.AfterFunc(d, q.signal)
}

// finish releases the device and the job's dedup key.
func (q *Queue) finish(job domain.AnnouncementJob) {
	q.mu.Lock()
	q.inFlight = nil
	delete(q.keys, job.Key)
	q.mu.Unlock()
}

// play runs one attempt and logs it exactly once. Per-job failures are
// swallowed; only a device loss is returned.
func (q *Queue) play(ctx context.Context, entry *Entry) error {
	job := entry.Job
	waited := q.now().Sub(entry.EnqueuedAt).Round(time.Millisecond)
	q.log.Debug("queue: playing %s (priority=%d, waited=%s, asset=%s)", job.Key, job.Priority, waited, job.Asset.Name())

	rec := domain.RecordFor(job, q.now())
	err := q.attempt(ctx, job)
	rec.EndedAt = q.now()
	if err != nil {
		rec.Failure = err.Error()
	}

	// The attempt is logged even if ctx was cancelled mid-play.
	if lerr := q.plays.Record(context.WithoutCancel(ctx), rec); lerr != nil {
		q.log.Error("queue: logging playback of %s: %v", job.Key, lerr)
	}
	q.finish(job)

	status := "ok"
	if err != nil {
		status = "failed"
	}
	q.metrics.Playbacks.WithLabelValues(job.CallType.String(), status).Inc()
	q.metrics.PlaybackDuration.Observe(rec.EndedAt.Sub(rec.StartedAt).Seconds())

	switch {
	case err == nil:
		q.log.Info("played %s (%s)", job.Key, job.Asset.Name())
		return nil
	case errors.Is(err, domain.ErrDeviceUnavailable):
		return err
	default:
		// Not retried: a stale announcement is worse than a skipped one.
		q.log.Error("queue: %s failed: %v", job.Key, err)
		return nil
	}
}

func (q *Queue) attempt(ctx context.Context, job domain.AnnouncementJob) error {
	audio := job.Asset.Audio
	if !job.Asset.Inline() {
		data, err := q.assets.Read(ctx, job.Asset.Path)
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", domain.ErrPlaybackFailure, job.Asset.Path, err)
		}
		audio = data
	}
	if err := q.device.Play(ctx, audio); err != nil {
		if errors.Is(err, domain.ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrPlaybackFailure, err)
	}
	return nil
}
