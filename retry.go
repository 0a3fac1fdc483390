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
	"github.com/jerry-enebeli/faxline/internal/apierror"
	"github.com/jerry-enebeli/faxline/internal/notification"
	"github.com/jerry-enebeli/faxline/model"
	"github.com/sirupsen/logrus"
)

// RetryResult describes a scheduled retry attempt.
type RetryResult struct {
	JobID      string        `json:"job_id"`
	NewAttempt int           `json:"new_attempt"`
	RunAt      time.Time     `json:"run_at"`
	Delay      time.Duration `json:"delay"`
}

// Retry schedules the next attempt of a failed job after its backoff delay.
func (f *Faxline) Retry(ctx context.Context, jobID string) (*RetryResult, error) {
	ctx, span := tracer.Start(ctx, "Retry")
	defer span.End()

	locker, err := f.waitLock(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer f.unlock(ctx, locker)

	job, err := f.datasource.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status.IsTerminal() {
		return nil, apierror.NewAPIError(apierror.ErrAlreadyTerminal, fmt.Sprintf("Fax job '%s' is already %s", job.ID, job.Status), nil)
	}
	if !job.Status.IsFailure() {
		return nil, apierror.NewAPIError(apierror.ErrNotRetryable, fmt.Sprintf("Fax job '%s' is %s and has not failed", job.ID, job.Status), nil)
	}
	if job.RetriesExhausted() {
		if err := f.markPermanentFailure(ctx, job); err != nil {
			return nil, err
		}
		return nil, apierror.NewAPIError(apierror.ErrPermanentFailure, fmt.Sprintf("Fax job '%s' has used all %d retries", job.ID, job.MaxRetries), nil)
	}

	return f.scheduleRetry(ctx, job)
}

// scheduleRetry must run under the job lock.
func (f *Faxline) scheduleRetry(ctx context.Context, job *model.FaxJob) (*RetryResult, error) {
	delay := f.backoffFor(job.RetryCount)
	runAt := f.now().Add(delay)

	err := f.transition(ctx, job, model.StatusRetrying, "retry_scheduled", func(j *model.FaxJob) {
		j.RetryCount++
		j.ScheduledFor = &runAt
		j.Priority = model.PriorityHigh
	})
	if err != nil {
		return nil, err
	}

	if err := f.queue.EnqueueRetry(ctx, job.ID, job.RetryCount, delay); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to schedule retry", err)
	}

	logrus.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"attempt": job.RetryCount,
		"delay":   delay.String(),
		"run_at":  runAt.Format(time.RFC3339),
	}).Info("fax retry scheduled")
	f.publishJob(ctx, job)

	return &RetryResult{JobID: job.ID, NewAttempt: job.RetryCount, RunAt: runAt, Delay: delay}, nil
}

// recordFailure writes the failure snapshot first and only then decides
// between a retry and PERMANENT_FAILURE. It must run under the job lock.
func (f *Faxline) recordFailure(ctx context.Context, job *model.FaxJob, status model.Status, jobErr *model.JobError, retryable bool) error {
	err := f.transition(ctx, job, status, "failed", func(j *model.FaxJob) {
		j.LastError = jobErr
	})
	if err != nil {
		return err
	}
	f.invalidateStats(ctx, job.DestinationNumber)
	f.publishJob(ctx, job)

	if job.RetriesExhausted() {
		return f.markPermanentFailure(ctx, job)
	}
	if !job.AutoRetry || !retryable {
		return nil
	}
	_, err = f.scheduleRetry(ctx, job)
	return err
}

func (f *Faxline) markPermanentFailure(ctx context.Context, job *model.FaxJob) error {
	if err := f.transition(ctx, job, model.StatusPermanentFailure, "retries_exhausted", nil); err != nil {
		return err
	}

	reason := "retries exhausted"
	if job.LastError != nil {
		reason = job.LastError.Message
	}
	notification.NotifyPermanentFailure(job.ID, job.DestinationName, reason)
	f.publishJob(ctx, job)
	return nil
}

// Cancel stops a job that has not been handed to the carrier yet.
func (f *Faxline) Cancel(ctx context.Context, jobID string) (*model.FaxJob, error) {
	ctx, span := tracer.Start(ctx, "Cancel")
	defer span.End()

	locker, err := f.waitLock(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer f.unlock(ctx, locker)

	job, err := f.datasource.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, apierror.NewAPIError(apierror.ErrAlreadyTerminal, fmt.Sprintf("Fax job '%s' is already %s", job.ID, job.Status), nil)
	}
	if !job.Status.IsCancellable() {
		return nil, apierror.NewAPIError(apierror.ErrNotCancellable, fmt.Sprintf("Fax job '%s' is %s and can no longer be cancelled", job.ID, job.Status), nil)
	}

	if err := f.transition(ctx, job, model.StatusCancelled, "cancelled", nil); err != nil {
		return nil, err
	}
	if err := f.queue.CancelPending(job.ID); err != nil {
		// the worker skips cancelled jobs, so a leftover task is harmless
		logrus.WithError(err).WithField("job_id", job.ID).Warn("failed to remove pending dispatch task")
	}

	logrus.WithField("job_id", job.ID).Info("fax job cancelled")
	f.publishJob(ctx, job)
	return job, nil
}

// Resubmit creates a new job from a terminal job that was not delivered.
// The new job records its lineage in OriginalJobID and metadata.
func (f *Faxline) Resubmit(ctx context.Context, jobID string) (*SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "Resubmit")
	defer span.End()

	job, err := f.datasource.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status == model.StatusDelivered {
		return nil, apierror.NewAPIError(apierror.ErrAlreadyTerminal, fmt.Sprintf("Fax job '%s' was already delivered", job.ID), nil)
	}
	if !job.Status.IsTerminal() {
		return nil, apierror.NewAPIError(apierror.ErrNotRetryable, fmt.Sprintf("Fax job '%s' is still %s", job.ID, job.Status), nil)
	}

	metaData := make(map[string]interface{}, len(job.MetaData)+3)
	for k, v := range job.MetaData {
		metaData[k] = v
	}
	metaData["is_retry"] = true
	metaData["original_job_id"] = job.ID
	metaData["retry_attempt"] = retryAttempt(job.MetaData) + 1

	autoRetry := job.AutoRetry
	req := model.SubmitRequest{
		DestinationNumber: job.DestinationNumber,
		DestinationName:   job.DestinationName,
		DestinationKey:    deref(job.DestinationKey),
		DocumentRef:       job.DocumentRef,
		ClientRef:         deref(job.ClientRef),
		RelatedCaseRef:    deref(job.RelatedCaseRef),
		Type:              job.Type,
		Priority:          job.Priority,
		PageCount:         job.PageCount,
		AutoRetry:         &autoRetry,
		MetaData:          metaData,
	}
	return f.submit(ctx, req, &job.ID)
}

// retryAttempt reads the lineage counter, which is a float64 after a JSON
// round trip through the store.
func retryAttempt(metaData map[string]interface{}) int {
	switch v := metaData["retry_attempt"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// ProcessDispatchTask is the worker handler for TypeDispatch tasks.
func (f *Faxline) ProcessDispatchTask(ctx context.Context, t *asynq.Task) error {
	var payload DispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.Error(err)
		return fmt.Errorf("invalid dispatch payload: %v: %w", err, asynq.SkipRetry)
	}

	_, err := f.Dispatch(ctx, payload.JobID)
	switch {
	case err == nil, isSendFailure(err):
		// carrier failures are recorded on the job and retried by the engine
		return nil
	case apierror.Is(err, apierror.ErrNotFound):
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case apierror.Is(err, apierror.ErrDispatchInFlight):
		logrus.WithField("job_id", payload.JobID).Info("dispatch in flight, task will be retried")
		return err
	default:
		var apiErr apierror.APIError
		if errors.As(err, &apiErr) {
			logrus.WithFields(logrus.Fields{"job_id": payload.JobID, "code": apiErr.Code}).Error(apiErr.Message)
		}
		return err
	}
}
