// Package scheduler keeps one cron timer armed per scheduled notification type.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/common/logger"
	"courier-notifier/internal/common/metrics"
	"courier-notifier/internal/models"
	"courier-notifier/internal/notification/notifier"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/pool"
)

// Parser accepts six-field, seconds-first expressions such as "0 0 18 * * ?".
var Parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type ScheduleSource interface {
	GetActiveSchedule(ctx context.Context, t models.NotificationType) (string, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, t models.NotificationType) (notifier.RunSummary, error)
	HasRule(t models.NotificationType) bool
	ScheduledTypes() []models.NotificationType
}

// Timers is the part of *cron.Cron the scheduler drives.
type Timers interface {
	Schedule(schedule cron.Schedule, cmd cron.Job) cron.EntryID
	Remove(id cron.EntryID)
	Start()
	Stop() context.Context
}

// ScheduledNotification describes a live timer.
type ScheduledNotification struct {
	Type       models.NotificationType `json:"type"`
	Expression string                  `json:"expression"`
	Next       time.Time               `json:"next"`
}

type Options struct {
	PoolSize int
	Location *time.Location
}

type entry struct {
	id         cron.EntryID
	expression string
	schedule   cron.Schedule
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
}

// runKey identifies the runs started by one timer generation.
type runKey struct {
	t   models.NotificationType
	gen uint64
}

type Scheduler struct {
	schedules  ScheduleSource
	dispatcher Dispatcher
	timers     Timers
	location   *time.Location
	pool       *pool.Pool
	logger     logger.Logger

	mu         sync.Mutex
	entries    map[models.NotificationType]*entry
	inflight   map[runKey]bool
	generation uint64
	runCtx     context.Context
	cancelRuns context.CancelFunc
	stopped    bool
}

func New(schedules ScheduleSource, dispatcher Dispatcher, opts Options, log logger.Logger) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return newWithTimers(schedules, dispatcher, cron.New(cron.WithLocation(opts.Location)), opts, log)
}

func newWithTimers(schedules ScheduleSource, dispatcher Dispatcher, timers Timers, opts Options, log logger.Logger) *Scheduler {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		schedules:  schedules,
		dispatcher: dispatcher,
		timers:     timers,
		location:   opts.Location,
		pool:       pool.New().WithMaxGoroutines(opts.PoolSize),
		logger:     logger.ForComponent(log, "scheduler"),
		entries:    make(map[models.NotificationType]*entry),
		inflight:   make(map[runKey]bool),
		runCtx:     runCtx,
		cancelRuns: cancel,
	}
}

// Start arms every type that has a dispatch rule and starts the timers.
// Any arming failure aborts start.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, t := range s.dispatcher.ScheduledTypes() {
		if _, err := s.Rearm(ctx, t); err != nil {
			return err
		}
	}
	s.timers.Start()
	s.logger.Info("scheduler started", map[string]interface{}{"armed": len(s.Armed())})
	return nil
}

// Rearm cancels the timer of t, reloads its schedule and arms a new timer.
// A run started by the cancelled timer stops before its next candidate.
// When the schedule is missing or invalid the error is returned and t is
// left unarmed.
func (s *Scheduler) Rearm(ctx context.Context, t models.NotificationType) (*ScheduledNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dispatcher.HasRule(t) {
		metrics.SchedulerRearms.WithLabelValues(string(t), "unsupported").Inc()
		return nil, errors.NewUnsupportedNotificationTypeError(string(t))
	}

	s.cancelLocked(t)

	expression, err := s.schedules.GetActiveSchedule(ctx, t)
	if err != nil {
		s.rearmFailed(t, err)
		return nil, err
	}
	schedule, err := Parser.Parse(expression)
	if err != nil {
		err = errors.NewScheduleInvalidError(string(t), expression, err)
		s.rearmFailed(t, err)
		return nil, err
	}

	s.generation++
	gen := s.generation
	runCtx, cancel := context.WithCancel(s.runCtx)
	id := s.timers.Schedule(schedule, cron.FuncJob(func() { s.fire(t, gen) }))
	s.entries[t] = &entry{id: id, expression: expression, schedule: schedule, generation: gen, ctx: runCtx, cancel: cancel}

	metrics.SchedulerRearms.WithLabelValues(string(t), "armed").Inc()
	metrics.ArmedSchedules.Set(float64(len(s.entries)))

	next := schedule.Next(time.Now().In(s.location))
	s.logger.Info("notification schedule armed", map[string]interface{}{
		"notificationType": string(t),
		"expression":       expression,
		"next":             next,
	})
	return &ScheduledNotification{Type: t, Expression: expression, Next: next}, nil
}

// Armed returns the live timers ordered by type.
func (s *Scheduler) Armed() []ScheduledNotification {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().In(s.location)
	out := make([]ScheduledNotification, 0, len(s.entries))
	for t, e := range s.entries {
		out = append(out, ScheduledNotification{Type: t, Expression: e.expression, Next: e.schedule.Next(now)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Stop cancels every timer and waits for running dispatches. When ctx ends
// first, running dispatches are cancelled and ctx.Err() is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	for t, e := range s.entries {
		s.timers.Remove(e.id)
		delete(s.entries, t)
	}
	metrics.ArmedSchedules.Set(0)
	s.mu.Unlock()

	cronDone := s.timers.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelRuns()
		return nil
	case <-ctx.Done():
		s.cancelRuns()
		return ctx.Err()
	}
}

func (s *Scheduler) cancelLocked(t models.NotificationType) {
	e, ok := s.entries[t]
	if !ok {
		return
	}
	s.timers.Remove(e.id)
	e.cancel()
	delete(s.entries, t)
	metrics.ArmedSchedules.Set(float64(len(s.entries)))
}

func (s *Scheduler) rearmFailed(t models.NotificationType, err error) {
	metrics.SchedulerRearms.WithLabelValues(string(t), "failed").Inc()
	s.logger.Error("notification schedule not armed", map[string]interface{}{
		"notificationType": string(t),
		"error":            err,
	})
}

// current reports whether gen is still the live timer of t.
func (s *Scheduler) current(t models.NotificationType, gen uint64) bool {
	e, ok := s.entries[t]
	return ok && !s.stopped && e.generation == gen
}

// fire runs on the timer goroutine and hands the rule run to the pool.
// Overlapping firings of the same generation are skipped.
func (s *Scheduler) fire(t models.NotificationType, gen uint64) {
	key := runKey{t: t, gen: gen}

	s.mu.Lock()
	if !s.current(t, gen) {
		s.mu.Unlock()
		return
	}
	if s.inflight[key] {
		s.mu.Unlock()
		s.logger.Warn("previous run still in progress, skipping firing", map[string]interface{}{
			"notificationType": string(t),
		})
		return
	}
	s.inflight[key] = true
	ctx := s.entries[t].ctx
	s.mu.Unlock()

	s.pool.Go(func() {
		defer func() {
			s.mu.Lock()
			delete(s.inflight, key)
			s.mu.Unlock()
		}()

		s.mu.Lock()
		live := s.current(t, gen)
		s.mu.Unlock()
		if !live {
			return
		}

		summary, err := s.dispatcher.Dispatch(ctx, t)
		if err != nil {
			s.logger.Error("scheduled dispatch failed", map[string]interface{}{
				"notificationType": string(t),
				"error":            err,
			})
			return
		}
		if summary.Cancelled {
			s.logger.Info("scheduled dispatch cancelled", map[string]interface{}{
				"notificationType": string(t),
			})
		}
	})
}
