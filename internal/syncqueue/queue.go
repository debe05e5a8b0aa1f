// Package syncqueue retries offline sales that failed for transient reasons.
// Jobs back off exponentially and land on a dead-letter list once they run
// out of attempts or fail permanently; nothing is dropped silently.
package syncqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/logger"
	"warungpos/backend/internal/metrics"
)

var ErrQueueFull = errors.New("sync queue full")

type Config struct {
	Capacity     int
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Capacity:     1000,
		MaxAttempts:  5,
		BaseBackoff:  500 * time.Millisecond,
		MaxBackoff:   time.Minute,
		PollInterval: time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity < 1 {
		c.Capacity = d.Capacity
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = d.BaseBackoff
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}

// Backoff returns the wait before the next try after the given number of
// failed attempts: base*2^(attempt-1), capped at MaxBackoff.
func (c Config) Backoff(attempt int) time.Duration {
	c = c.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	wait := c.BaseBackoff
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return wait
}

type Job struct {
	StoreID       string             `json:"store_id"`
	OfflineID     string             `json:"offline_id"`
	Sale          domain.SaleRequest `json:"sale"`
	Actor         domain.Actor       `json:"-"`
	Attempts      int                `json:"attempts"`
	LastError     string             `json:"last_error,omitempty"`
	EnqueuedAt    time.Time          `json:"enqueued_at"`
	NextAttemptAt time.Time          `json:"next_attempt_at"`
}

func (j Job) key() string {
	return j.StoreID + "|" + j.OfflineID
}

type DeadLetter struct {
	Job    Job       `json:"job"`
	Reason string    `json:"reason"`
	DeadAt time.Time `json:"dead_at"`
}

// Handler replays one job. Returning an error wrapped with Permanent moves
// the job straight to the dead-letter list.
type Handler func(ctx context.Context, job Job) error

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

type Queue struct {
	cfg Config
	now func() time.Time
	log *logger.Logger

	mu       sync.Mutex
	pending  []Job
	inflight map[string]struct{}
	dead     []DeadLetter
}

func New(cfg Config, now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}
	return &Queue{
		cfg:      cfg.withDefaults(),
		now:      now,
		log:      logger.Default().WithComponent("syncqueue"),
		inflight: make(map[string]struct{}),
	}
}

func (q *Queue) Config() Config {
	return q.cfg
}

// Enqueue schedules a job that has already failed job.Attempts times.
// A job whose store and offline id are already waiting is ignored.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inflight[job.key()]; ok {
		return nil
	}
	for _, p := range q.pending {
		if p.key() == job.key() {
			return nil
		}
	}
	if len(q.pending)+len(q.inflight) >= q.cfg.Capacity {
		return ErrQueueFull
	}

	now := q.now()
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = now
	}
	if job.NextAttemptAt.IsZero() {
		job.NextAttemptAt = now.Add(q.cfg.Backoff(job.Attempts))
	}
	q.pending = append(q.pending, job)
	metrics.SyncQueueDepth.Set(float64(len(q.pending)))
	return nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.inflight)
}

// DeadLetters returns the dead-lettered jobs accepted by keep, oldest first.
// A nil keep returns all of them.
func (q *Queue) DeadLetters(keep func(storeID string) bool) []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]DeadLetter, 0, len(q.dead))
	for _, d := range q.dead {
		if keep == nil || keep(d.Job.StoreID) {
			out = append(out, d)
		}
	}
	return out
}

func (q *Queue) takeDue(now time.Time) []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	due := make([]Job, 0, len(q.pending))
	rest := q.pending[:0]
	for _, job := range q.pending {
		if job.NextAttemptAt.After(now) {
			rest = append(rest, job)
			continue
		}
		q.inflight[job.key()] = struct{}{}
		due = append(due, job)
	}
	q.pending = rest
	metrics.SyncQueueDepth.Set(float64(len(q.pending)))
	return due
}

func (q *Queue) settle(job Job, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, job.key())

	now := q.now()
	switch {
	case err == nil:
		metrics.SyncReplaysTotal.WithLabelValues("accepted").Inc()
	case IsPermanent(err) || job.Attempts >= q.cfg.MaxAttempts:
		q.dead = append(q.dead, DeadLetter{Job: job, Reason: err.Error(), DeadAt: now})
		metrics.SyncReplaysTotal.WithLabelValues("dead_letter").Inc()
		metrics.SyncDeadLetters.Set(float64(len(q.dead)))
		q.log.Warnw("offline sale moved to dead letters", "store_id", job.StoreID, "offline_id", job.OfflineID, "attempts", job.Attempts, "error", err)
	default:
		job.NextAttemptAt = now.Add(q.cfg.Backoff(job.Attempts))
		q.pending = append(q.pending, job)
		metrics.SyncReplaysTotal.WithLabelValues("retry").Inc()
		metrics.SyncQueueDepth.Set(float64(len(q.pending)))
	}
}

// ProcessDue runs handle once for every job whose backoff has elapsed and
// returns how many jobs were attempted.
func (q *Queue) ProcessDue(ctx context.Context, handle Handler) int {
	due := q.takeDue(q.now())
	for i, job := range due {
		if ctx.Err() != nil {
			// Put the untried jobs back without spending an attempt.
			for _, j := range due[i:] {
				q.requeue(j)
			}
			return i
		}
		job.Attempts++
		err := handle(ctx, job)
		if err != nil {
			job.LastError = err.Error()
		}
		q.settle(job, err)
	}
	return len(due)
}

func (q *Queue) requeue(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, job.key())
	q.pending = append(q.pending, job)
	metrics.SyncQueueDepth.Set(float64(len(q.pending)))
}

// Run polls for due jobs until ctx is cancelled.
func (q *Queue) Run(ctx context.Context, handle Handler) {
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	q.log.Infow("sync replay worker started", "poll_interval", q.cfg.PollInterval.String(), "max_attempts", q.cfg.MaxAttempts)
	for {
		select {
		case <-ctx.Done():
			q.log.Infow("sync replay worker stopped", "pending", q.Len())
			return
		case <-ticker.C:
			q.ProcessDue(ctx, handle)
		}
	}
}
