package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskNotificationOutboxDue = "notification.outbox.due"
	TaskOutboxMaintenance     = "notification.outbox.maintenance"
	TaskPaymentsReconcile     = "payments.reconcile"
	TaskLeadsAbandoned        = "leads.abandoned"
	TaskTasksOverdue          = "tasks.overdue"
	TaskActivityPurge         = "activity.purge"
)

type NotificationOutboxDuePayload struct {
	OutboxID string `json:"outboxId"`
}

func NewNotificationOutboxDueTask(payload NotificationOutboxDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationOutboxDue, data, asynq.MaxRetry(0)), nil
}

func ParseNotificationOutboxDuePayload(task *asynq.Task) (NotificationOutboxDuePayload, error) {
	var payload NotificationOutboxDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NotificationOutboxDuePayload{}, err
	}
	return payload, nil
}

// NewPeriodicTask builds a payload-less maintenance task.
func NewPeriodicTask(taskType string) *asynq.Task {
	return asynq.NewTask(taskType, nil)
}
