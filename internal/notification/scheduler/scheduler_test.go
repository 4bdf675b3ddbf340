package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"courier-notifier/internal/common/errors"
	"courier-notifier/internal/common/logger"
	"courier-notifier/internal/models"
	"courier-notifier/internal/notification/notifier"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSchedules struct {
	mu        sync.Mutex
	schedules map[models.NotificationType]string
}

func (f *fakeSchedules) set(t models.NotificationType, expr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules[t] = expr
}

func (f *fakeSchedules) GetActiveSchedule(_ context.Context, t models.NotificationType) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	expr, ok := f.schedules[t]
	if !ok {
		return "", errors.NewScheduleNotFoundError(string(t))
	}
	return expr, nil
}

type fakeDispatcher struct {
	types []models.NotificationType
	calls sync.Map
	total atomic.Int32
}

func (f *fakeDispatcher) Dispatch(_ context.Context, t models.NotificationType) (notifier.RunSummary, error) {
	v, _ := f.calls.LoadOrStore(t, new(atomic.Int32))
	v.(*atomic.Int32).Add(1)
	f.total.Add(1)
	return notifier.RunSummary{Type: t}, nil
}

func (f *fakeDispatcher) count(t models.NotificationType) int32 {
	v, ok := f.calls.Load(t)
	if !ok {
		return 0
	}
	return v.(*atomic.Int32).Load()
}

func (f *fakeDispatcher) HasRule(t models.NotificationType) bool {
	for _, known := range f.types {
		if known == t {
			return true
		}
	}
	return false
}

func (f *fakeDispatcher) ScheduledTypes() []models.NotificationType { return f.types }

// blockingDispatcher hands each run's context to the test and holds the run
// until release is closed.
type blockingDispatcher struct {
	fakeDispatcher
	started chan context.Context
	release chan struct{}
}

func (b *blockingDispatcher) Dispatch(ctx context.Context, t models.NotificationType) (notifier.RunSummary, error) {
	b.started <- ctx
	<-b.release
	return notifier.RunSummary{Type: t, Cancelled: ctx.Err() != nil}, nil
}

// fakeTimers lets a test run any job, including one already removed.
type fakeTimers struct {
	mu      sync.Mutex
	nextID  cron.EntryID
	jobs    map[cron.EntryID]cron.Job
	started bool
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{jobs: make(map[cron.EntryID]cron.Job)}
}

func (f *fakeTimers) Schedule(_ cron.Schedule, cmd cron.Job) cron.EntryID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.jobs[f.nextID] = cmd
	return f.nextID
}

func (f *fakeTimers) Remove(id cron.EntryID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, id)
}

func (f *fakeTimers) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
}

func (f *fakeTimers) Stop() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func (f *fakeTimers) live() []cron.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]cron.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out
}

func setup(t *testing.T, types ...models.NotificationType) (*Scheduler, *fakeSchedules, *fakeDispatcher, *fakeTimers) {
	t.Helper()
	schedules := &fakeSchedules{schedules: map[models.NotificationType]string{}}
	dispatcher := &fakeDispatcher{types: types}
	timers := newFakeTimers()
	s := newWithTimers(schedules, dispatcher, timers, Options{PoolSize: 2}, logger.NewTestLogger(t))
	return s, schedules, dispatcher, timers
}

func stop(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

// ==========================
// Tests
// ==========================

func TestRearm_TwiceLeavesOneTimer(t *testing.T) {
	s, schedules, dispatcher, timers := setup(t, models.NotificationUnpaidOrder)
	schedules.set(models.NotificationUnpaidOrder, "0 0 18 * * ?")

	_, err := s.Rearm(context.Background(), models.NotificationUnpaidOrder)
	require.NoError(t, err)
	first := timers.live()
	require.Len(t, first, 1)

	schedules.set(models.NotificationUnpaidOrder, "0 30 9 * * MON-FRI")
	armed, err := s.Rearm(context.Background(), models.NotificationUnpaidOrder)
	require.NoError(t, err)
	assert.Equal(t, "0 30 9 * * MON-FRI", armed.Expression)
	assert.True(t, armed.Next.Weekday() >= time.Monday && armed.Next.Weekday() <= time.Friday)

	second := timers.live()
	require.Len(t, second, 1, "exactly one live timer per type")

	// The first timer fires after it was replaced, as if cancellation raced the trigger.
	first[0].Run()
	second[0].Run()
	stop(t, s)

	assert.Equal(t, int32(1), dispatcher.count(models.NotificationUnpaidOrder), "only the live timer dispatches")
	require.Len(t, s.Armed(), 0, "stop cancels every timer")
}

func TestRearm_CancelsRunOfReplacedTimer(t *testing.T) {
	schedules := &fakeSchedules{schedules: map[models.NotificationType]string{
		models.NotificationUnpaidOrder: "0 0 18 * * ?",
	}}
	dispatcher := &blockingDispatcher{
		fakeDispatcher: fakeDispatcher{types: []models.NotificationType{models.NotificationUnpaidOrder}},
		started:        make(chan context.Context, 2),
		release:        make(chan struct{}),
	}
	timers := newFakeTimers()
	s := newWithTimers(schedules, dispatcher, timers, Options{PoolSize: 2}, logger.NewTestLogger(t))

	_, err := s.Rearm(context.Background(), models.NotificationUnpaidOrder)
	require.NoError(t, err)
	timers.live()[0].Run()

	var oldRun context.Context
	select {
	case oldRun = <-dispatcher.started:
	case <-time.After(2 * time.Second):
		t.Fatal("old timer run did not start")
	}
	require.NoError(t, oldRun.Err())

	schedules.set(models.NotificationUnpaidOrder, "0 30 9 * * MON-FRI")
	_, err = s.Rearm(context.Background(), models.NotificationUnpaidOrder)
	require.NoError(t, err)
	assert.ErrorIs(t, oldRun.Err(), context.Canceled, "the replaced timer's run is cancelled")

	live := timers.live()
	require.Len(t, live, 1)
	live[0].Run()

	var newRun context.Context
	select {
	case newRun = <-dispatcher.started:
	case <-time.After(2 * time.Second):
		t.Fatal("new timer firing was skipped while the old run was blocked")
	}
	assert.NoError(t, newRun.Err())

	close(dispatcher.release)
	stop(t, s)
}

func TestRearm_InvalidExpressionLeavesNothingArmed(t *testing.T) {
	s, schedules, dispatcher, timers := setup(t, models.NotificationUnpaidPackage)
	schedules.set(models.NotificationUnpaidPackage, "0 0 12 * * *")

	_, err := s.Rearm(context.Background(), models.NotificationUnpaidPackage)
	require.NoError(t, err)
	old := timers.live()

	schedules.set(models.NotificationUnpaidPackage, "every day at noon")
	_, err = s.Rearm(context.Background(), models.NotificationUnpaidPackage)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeScheduleInvalid, errors.CodeOf(err))
	assert.True(t, errors.IsConfigurationError(err))
	assert.False(t, errors.IsRetryable(err))

	assert.Empty(t, timers.live())
	assert.Empty(t, s.Armed())

	old[0].Run()
	stop(t, s)
	assert.Zero(t, dispatcher.total.Load(), "the previous timer stays cancelled")
}

func TestRearm_MissingScheduleAndUnknownType(t *testing.T) {
	s, _, _, _ := setup(t, models.NotificationUnpaidOrder)

	_, err := s.Rearm(context.Background(), models.NotificationUnpaidOrder)
	assert.Equal(t, errors.ErrCodeScheduleNotFound, errors.CodeOf(err))

	_, err = s.Rearm(context.Background(), models.NotificationOrderIsPaid)
	assert.Equal(t, errors.ErrCodeUnsupportedNotificationType, errors.CodeOf(err))
}

func TestStart_ArmsEveryScheduledType(t *testing.T) {
	s, schedules, _, timers := setup(t, models.NotificationLetsStayConnected, models.NotificationUnpaidOrder)
	schedules.set(models.NotificationUnpaidOrder, "0 0 18 * * ?")
	schedules.set(models.NotificationLetsStayConnected, "@weekly")

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, timers.started)

	armed := s.Armed()
	require.Len(t, armed, 2)
	assert.Equal(t, models.NotificationLetsStayConnected, armed[0].Type)
	assert.Equal(t, "@weekly", armed[0].Expression)
	assert.Equal(t, models.NotificationUnpaidOrder, armed[1].Type)
	stop(t, s)
}

func TestStart_AbortsOnMissingSchedule(t *testing.T) {
	s, schedules, _, timers := setup(t, models.NotificationLetsStayConnected, models.NotificationUnpaidOrder)
	schedules.set(models.NotificationUnpaidOrder, "0 0 18 * * ?")

	err := s.Start(context.Background())
	assert.True(t, errors.IsConfigurationError(err))
	assert.False(t, timers.started)
}

func TestFire_RunsOnRealCron(t *testing.T) {
	schedules := &fakeSchedules{schedules: map[models.NotificationType]string{
		models.NotificationCourierItineraryFormed: "* * * * * *",
	}}
	dispatcher := &fakeDispatcher{types: []models.NotificationType{models.NotificationCourierItineraryFormed}}
	s := New(schedules, dispatcher, Options{PoolSize: 1}, logger.NewNoOpLogger())

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return dispatcher.count(models.NotificationCourierItineraryFormed) > 0
	}, 3*time.Second, 50*time.Millisecond)
	stop(t, s)
}

func TestParser_AcceptsSecondsFirstExpressions(t *testing.T) {
	for _, expr := range []string{"0 0 18 * * ?", "0 */15 * * * *", "0 0 9 ? * MON", "@daily"} {
		_, err := Parser.Parse(expr)
		assert.NoError(t, err, expr)
	}
	for _, expr := range []string{"0 18 * * *", "", "61 * * * * *"} {
		_, err := Parser.Parse(expr)
		assert.Error(t, err, expr)
	}
}
