package scheduler

import (
	"context"
	"fmt"
	"time"

	"raccordement_backend/internal/events"
	"raccordement_backend/platform/config"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/metrics"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	reconcileOlderThan = 30 * time.Minute
	reconcileBatch     = 50
	outboxStaleAfter   = 10 * time.Minute
	outboxKeepFor      = 30 * 24 * time.Hour
)

type PaymentReconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type AbandonedLeads interface {
	MarkAbandoned(ctx context.Context, after time.Duration) (int, error)
}

type OverdueTasks interface {
	NotifyOverdue(ctx context.Context) (int, error)
}

type ActivityPurger interface {
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

type OutboxMaintainer interface {
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
	PurgeSucceeded(ctx context.Context, cutoff time.Time) (int, error)
}

// Jobs groups the services the periodic tasks call. Nil members turn the
// matching task into a no-op.
type Jobs struct {
	Payments          PaymentReconciler
	Leads             AbandonedLeads
	Tasks             OverdueTasks
	Activity          ActivityPurger
	Outbox            OutboxMaintainer
	ActivityRetention time.Duration
	LeadAbandonAfter  time.Duration
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	jobs   Jobs
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, jobs Jobs, bus events.Bus, log *logger.Logger) (*Worker, error) {
	opt, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(jobs, bus, log)
	w.server = server
	return w, nil
}

func newWorker(jobs Jobs, bus events.Bus, log *logger.Logger) *Worker {
	w := &Worker{mux: asynq.NewServeMux(), jobs: jobs, bus: bus, log: log}
	w.mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)
	w.mux.HandleFunc(TaskOutboxMaintenance, observed(TaskOutboxMaintenance, w.handleOutboxMaintenance))
	w.mux.HandleFunc(TaskPaymentsReconcile, observed(TaskPaymentsReconcile, w.handlePaymentsReconcile))
	w.mux.HandleFunc(TaskLeadsAbandoned, observed(TaskLeadsAbandoned, w.handleLeadsAbandoned))
	w.mux.HandleFunc(TaskTasksOverdue, observed(TaskTasksOverdue, w.handleTasksOverdue))
	w.mux.HandleFunc(TaskActivityPurge, observed(TaskActivityPurge, w.handleActivityPurge))
	return w
}

func observed(name string, fn func(context.Context, *asynq.Task) error) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		start := time.Now()
		err := fn(ctx, task)
		metrics.ObserveJob(name, start, err)
		return err
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	return w.bus.PublishSync(ctx, events.NotificationOutboxDue{
		BaseEvent: events.NewBaseEvent(),
		OutboxID:  outboxID,
	})
}

func (w *Worker) handleOutboxMaintenance(ctx context.Context, _ *asynq.Task) error {
	if w.jobs.Outbox == nil {
		return nil
	}
	requeued, err := w.jobs.Outbox.RequeueStale(ctx, outboxStaleAfter)
	if err != nil {
		return err
	}
	purged, err := w.jobs.Outbox.PurgeSucceeded(ctx, time.Now().UTC().Add(-outboxKeepFor))
	if err != nil {
		return err
	}
	if requeued > 0 || purged > 0 {
		w.log.Info("outbox maintenance", "requeued", requeued, "purged", purged)
	}
	return nil
}

func (w *Worker) handlePaymentsReconcile(ctx context.Context, _ *asynq.Task) error {
	if w.jobs.Payments == nil {
		return nil
	}
	n, err := w.jobs.Payments.ReconcilePending(ctx, reconcileOlderThan, reconcileBatch)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("pending payments reconciled", "count", n)
	}
	return nil
}

func (w *Worker) handleLeadsAbandoned(ctx context.Context, _ *asynq.Task) error {
	if w.jobs.Leads == nil || w.jobs.LeadAbandonAfter <= 0 {
		return nil
	}
	n, err := w.jobs.Leads.MarkAbandoned(ctx, w.jobs.LeadAbandonAfter)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("leads marked abandoned", "count", n)
	}
	return nil
}

func (w *Worker) handleTasksOverdue(ctx context.Context, _ *asynq.Task) error {
	if w.jobs.Tasks == nil {
		return nil
	}
	n, err := w.jobs.Tasks.NotifyOverdue(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("overdue tasks notified", "count", n)
	}
	return nil
}

func (w *Worker) handleActivityPurge(ctx context.Context, _ *asynq.Task) error {
	if w.jobs.Activity == nil || w.jobs.ActivityRetention <= 0 {
		return nil
	}
	n, err := w.jobs.Activity.Purge(ctx, w.jobs.ActivityRetention)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("activity log purged", "count", n)
	}
	return nil
}
