/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package faxline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jerry-enebeli/faxline/config"
	redis_db "github.com/jerry-enebeli/faxline/internal/redis-db"
	"github.com/sirupsen/logrus"
)

// Task types handled by the worker mux.
const (
	TypeDispatch = "fax:dispatch"
	TypeWebhook  = "fax:webhook"
)

// dispatchMaxRetry bounds how often asynq re-delivers a dispatch task that
// found the job locked or hit an infrastructure error.
const dispatchMaxRetry = 5

// Queue represents the durable task queue for dispatches, retries and webhooks.
type Queue struct {
	Client        *asynq.Client
	Inspector     *asynq.Inspector
	dispatchQueue string
	webhookQueue  string
}

// DispatchPayload identifies the job a dispatch task sends.
type DispatchPayload struct {
	JobID   string `json:"job_id"`
	Attempt int    `json:"attempt"`
}

// NewQueue connects a client and inspector to the configured Redis.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	opt, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %w", err)
	}
	return &Queue{
		Client:        asynq.NewClient(opt),
		Inspector:     asynq.NewInspector(opt),
		dispatchQueue: conf.Queue.DispatchQueue,
		webhookQueue:  conf.Queue.WebhookQueue,
	}, nil
}

// DispatchTaskID is the idempotency key of the first send of a job.
func DispatchTaskID(jobID string) string {
	return jobID + ":dispatch"
}

// RetryTaskID is the idempotency key of retry attempt n of a job.
func RetryTaskID(jobID string, attempt int) string {
	return fmt.Sprintf("%s:retry:%d", jobID, attempt)
}

// EnqueueDispatch queues the first send of a job. A zero or past runAt
// makes the task ready immediately.
func (q *Queue) EnqueueDispatch(ctx context.Context, jobID string, runAt time.Time) error {
	_, err := q.enqueueDispatch(ctx, DispatchTaskID(jobID), DispatchPayload{JobID: jobID}, dispatchRunAt(runAt)...)
	return err
}

// EnqueueRetry hands a failed job back to the pipeline after delay. The task
// survives process restarts.
func (q *Queue) EnqueueRetry(ctx context.Context, jobID string, attempt int, delay time.Duration) error {
	_, err := q.enqueueDispatch(ctx, RetryTaskID(jobID, attempt), DispatchPayload{JobID: jobID, Attempt: attempt}, asynq.ProcessIn(delay))
	return err
}

// RequeueDispatch recreates the first-send task of a waiting job. It reports
// false when the task is still pending, scheduled or running.
func (q *Queue) RequeueDispatch(ctx context.Context, jobID string) (bool, error) {
	return q.enqueueDispatch(ctx, DispatchTaskID(jobID), DispatchPayload{JobID: jobID})
}

// RequeueRetry is RequeueDispatch for retry attempt n of a job.
func (q *Queue) RequeueRetry(ctx context.Context, jobID string, attempt int) (bool, error) {
	return q.enqueueDispatch(ctx, RetryTaskID(jobID, attempt), DispatchPayload{JobID: jobID, Attempt: attempt})
}

func dispatchRunAt(runAt time.Time) []asynq.Option {
	if runAt.After(time.Now()) {
		return []asynq.Option{asynq.ProcessAt(runAt)}
	}
	return nil
}

// enqueueDispatch adds a dispatch task under taskID and reports whether a new
// task was written. A live task with the same id is left alone. An archived
// one has exhausted its deliveries and is replaced.
func (q *Queue) enqueueDispatch(ctx context.Context, taskID string, payload DispatchPayload, extra ...asynq.Option) (bool, error) {
	ctx, span := tracer.Start(ctx, "Adding Dispatch To Redis Queue")
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	opts := append([]asynq.Option{
		asynq.TaskID(taskID),
		asynq.Queue(q.dispatchQueue),
		asynq.MaxRetry(dispatchMaxRetry),
	}, extra...)

	info, err := q.Client.EnqueueContext(ctx, asynq.NewTask(TypeDispatch, data), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		replaced, rerr := q.dropSpentTask(taskID)
		if rerr != nil {
			span.RecordError(rerr)
			return false, rerr
		}
		if !replaced {
			logrus.WithFields(logrus.Fields{"job_id": payload.JobID, "task_id": taskID}).Debug("dispatch task already live")
			return false, nil
		}
		info, err = q.Client.EnqueueContext(ctx, asynq.NewTask(TypeDispatch, data), opts...)
	}
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	logrus.WithFields(logrus.Fields{
		"job_id":  payload.JobID,
		"attempt": payload.Attempt,
		"task_id": info.ID,
		"state":   info.State.String(),
	}).Info("dispatch task enqueued")
	return true, nil
}

// dropSpentTask deletes taskID when asynq kept it only as a record of a
// finished or exhausted run. It reports whether the id is free again.
func (q *Queue) dropSpentTask(taskID string) (bool, error) {
	info, err := q.Inspector.GetTaskInfo(q.dispatchQueue, taskID)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if info.State != asynq.TaskStateArchived && info.State != asynq.TaskStateCompleted {
		return false, nil
	}
	logrus.WithFields(logrus.Fields{"task_id": taskID, "state": info.State.String(), "last_err": info.LastErr}).Warn("replacing spent dispatch task")
	if err := q.Inspector.DeleteTask(q.dispatchQueue, taskID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, err
	}
	return true, nil
}

// CancelPending removes a job's waiting dispatch task. A task that already
// ran or never existed is not an error.
func (q *Queue) CancelPending(jobID string) error {
	err := q.Inspector.DeleteTask(q.dispatchQueue, DispatchTaskID(jobID))
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return err
}

// GetTaskInfo looks up a pending dispatch or retry task.
func (q *Queue) GetTaskInfo(taskID string) (*asynq.TaskInfo, error) {
	return q.Inspector.GetTaskInfo(q.dispatchQueue, taskID)
}

// EnqueueWebhook queues an outbound event. It is a no-op when no webhook URL
// is configured.
func (q *Queue) EnqueueWebhook(ctx context.Context, hook NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	payload, err := json.Marshal(hook)
	if err != nil {
		return err
	}
	_, err = q.Client.EnqueueContext(ctx, asynq.NewTask(TypeWebhook, payload), asynq.Queue(q.webhookQueue))
	return err
}

func (q *Queue) Close() error {
	if err := q.Inspector.Close(); err != nil {
		return err
	}
	return q.Client.Close()
}
