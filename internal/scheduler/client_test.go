package scheduler

import (
	"context"
	"testing"
	"time"

	"raccordement_backend/internal/notification/outbox"
	"raccordement_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type testSchedulerConfig struct {
	url string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.url }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return "" }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(testSchedulerConfig{url: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatalf("expected error without redis url")
	}
}

func TestEnqueueUniqueSwallowsDuplicates(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := client.EnqueueUnique(ctx, NewPeriodicTask(TaskTasksOverdue), time.Minute); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	pending, err := mr.List("asynq:{default}:pending")
	if err != nil {
		t.Fatalf("read pending list: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending task, got %d", len(pending))
	}
}

func TestDispatcherSchedulesClaimedRecords(t *testing.T) {
	client, mr := newTestClient(t)
	claimer := &fakeClaimer{records: []outbox.Record{
		{ID: uuid.New(), RunAt: time.Now().Add(time.Hour)},
		{ID: uuid.New(), RunAt: time.Now().Add(2 * time.Hour)},
	}}
	d := NewNotificationOutboxDispatcher(client, claimer, logger.Discard())

	if n := d.dispatch(context.Background()); n != 2 {
		t.Fatalf("expected 2 enqueued, got %d", n)
	}
	if len(claimer.reset) != 0 {
		t.Fatalf("no record should be reset, got %v", claimer.reset)
	}
	scheduled, err := mr.ZMembers("asynq:{default}:scheduled")
	if err != nil {
		t.Fatalf("read scheduled set: %v", err)
	}
	if len(scheduled) != 2 {
		t.Fatalf("expected 2 scheduled tasks, got %d", len(scheduled))
	}
}

func TestDispatcherResetsRecordsWhenRedisIsDown(t *testing.T) {
	client, mr := newTestClient(t)
	mr.Close()
	id := uuid.New()
	claimer := &fakeClaimer{records: []outbox.Record{{ID: id, RunAt: time.Now()}}}
	d := NewNotificationOutboxDispatcher(client, claimer, logger.Discard())

	if n := d.dispatch(context.Background()); n != 0 {
		t.Fatalf("expected nothing enqueued, got %d", n)
	}
	if len(claimer.reset) != 1 || claimer.reset[0] != id {
		t.Fatalf("expected record to be reset to pending, got %v", claimer.reset)
	}
}

type recordingEnqueuer struct {
	types []string
}

func (r *recordingEnqueuer) EnqueueUnique(_ context.Context, task *asynq.Task, _ time.Duration) error {
	r.types = append(r.types, task.Type())
	return nil
}

func TestPeriodicRegistersDefaultSchedule(t *testing.T) {
	rec := &recordingEnqueuer{}
	p, err := NewPeriodic(rec, DefaultPeriodicJobs, logger.Discard())
	if err != nil {
		t.Fatalf("new periodic: %v", err)
	}
	if p.Entries() != len(DefaultPeriodicJobs) {
		t.Fatalf("expected %d entries, got %d", len(DefaultPeriodicJobs), p.Entries())
	}

	p.fire(context.Background(), DefaultPeriodicJobs[0])
	if len(rec.types) != 1 || rec.types[0] != TaskPaymentsReconcile {
		t.Fatalf("unexpected enqueued types %v", rec.types)
	}
}

func TestPeriodicRejectsInvalidSpec(t *testing.T) {
	_, err := NewPeriodic(&recordingEnqueuer{}, []PeriodicJob{{Spec: "every tuesday", TaskType: TaskActivityPurge}}, logger.Discard())
	if err == nil {
		t.Fatalf("expected invalid cron spec to fail")
	}
}
