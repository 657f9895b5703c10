package scheduler

import (
	"context"
	"time"

	"raccordement_backend/internal/notification/outbox"
	"raccordement_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	dispatchInterval = 2 * time.Second
	dispatchBatch    = 50
)

// OutboxClaimer hands out due outbox records.
type OutboxClaimer interface {
	ClaimPending(ctx context.Context, limit int) ([]outbox.Record, error)
	MarkPending(ctx context.Context, id uuid.UUID) error
}

// NotificationOutboxDispatcher turns due outbox records into asynq tasks.
type NotificationOutboxDispatcher struct {
	client *Client
	repo   OutboxClaimer
	log    *logger.Logger
}

func NewNotificationOutboxDispatcher(client *Client, repo OutboxClaimer, log *logger.Logger) *NotificationOutboxDispatcher {
	return &NotificationOutboxDispatcher{client: client, repo: repo, log: log}
}

func (d *NotificationOutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		d.dispatch(ctx)
	}
}

func (d *NotificationOutboxDispatcher) dispatch(ctx context.Context) int {
	records, err := d.repo.ClaimPending(ctx, dispatchBatch)
	if err != nil {
		d.log.Warn("outbox claim failed", "error", err)
		return 0
	}

	enqueued := 0
	for _, rec := range records {
		task, err := NewNotificationOutboxDueTask(NotificationOutboxDuePayload{OutboxID: rec.ID.String()})
		if err == nil {
			err = d.client.EnqueueAt(ctx, task, rec.RunAt)
		}
		if err != nil {
			d.log.Warn("outbox enqueue failed", "outboxId", rec.ID, "error", err)
			_ = d.repo.MarkPending(ctx, rec.ID)
			continue
		}
		enqueued++
	}
	return enqueued
}
