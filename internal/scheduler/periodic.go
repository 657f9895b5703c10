package scheduler

import (
	"context"
	"time"

	"raccordement_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

// PeriodicJob enqueues TaskType on Spec, a standard five-field cron
// expression evaluated in Europe/Paris.
type PeriodicJob struct {
	Spec     string
	TaskType string
	Unique   time.Duration
}

// DefaultPeriodicJobs is the maintenance schedule of the scheduler process.
var DefaultPeriodicJobs = []PeriodicJob{
	{Spec: "*/10 * * * *", TaskType: TaskPaymentsReconcile, Unique: 9 * time.Minute},
	{Spec: "*/15 * * * *", TaskType: TaskLeadsAbandoned, Unique: 14 * time.Minute},
	{Spec: "*/5 * * * *", TaskType: TaskTasksOverdue, Unique: 4 * time.Minute},
	{Spec: "*/5 * * * *", TaskType: TaskOutboxMaintenance, Unique: 4 * time.Minute},
	{Spec: "30 3 * * *", TaskType: TaskActivityPurge, Unique: time.Hour},
}

type enqueuer interface {
	EnqueueUnique(ctx context.Context, task *asynq.Task, ttl time.Duration) error
}

// Periodic fires the cron schedule. Work runs in the asynq worker so that
// several scheduler replicas enqueue each run once.
type Periodic struct {
	cron   *cron.Cron
	client enqueuer
	log    *logger.Logger
}

func NewPeriodic(client enqueuer, jobs []PeriodicJob, log *logger.Logger) (*Periodic, error) {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		loc = time.UTC
	}
	p := &Periodic{
		cron:   cron.New(cron.WithLocation(loc)),
		client: client,
		log:    log,
	}
	for _, job := range jobs {
		job := job
		if _, err := p.cron.AddFunc(job.Spec, func() { p.fire(context.Background(), job) }); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Periodic) fire(ctx context.Context, job PeriodicJob) {
	if err := p.client.EnqueueUnique(ctx, NewPeriodicTask(job.TaskType), job.Unique); err != nil {
		p.log.Warn("periodic enqueue failed", "task", job.TaskType, "error", err)
		return
	}
	p.log.Debug("periodic task enqueued", "task", job.TaskType)
}

// Run blocks until ctx is done, then waits for running callbacks.
func (p *Periodic) Run(ctx context.Context) {
	p.cron.Start()
	<-ctx.Done()
	<-p.cron.Stop().Done()
}

// Entries reports how many jobs are scheduled.
func (p *Periodic) Entries() int {
	return len(p.cron.Entries())
}
