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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jerry-enebeli/faxline/cost"
	"github.com/jerry-enebeli/faxline/internal/apierror"
	redlock "github.com/jerry-enebeli/faxline/internal/lock"
	"github.com/jerry-enebeli/faxline/model"
	"github.com/jerry-enebeli/faxline/predictor"
	"github.com/jerry-enebeli/faxline/transport"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
)

// Page sizes for job listings.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SubmitResult is returned even when the inline send fails, so callers keep
// the prediction, schedule and cost computed before the failure.
type SubmitResult struct {
	JobID               string               `json:"job_id"`
	Status              model.Status         `json:"status"`
	PredictedSuccess    float64              `json:"predicted_success"`
	Prediction          predictor.Prediction `json:"prediction"`
	RecommendedSendTime string               `json:"recommended_send_time"`
	ScheduleReason      string               `json:"schedule_reason"`
	CostEstimate        cost.Estimate        `json:"cost_estimate"`
	ProviderID          *string              `json:"provider_id,omitempty"`
	Error               *model.JobError      `json:"error,omitempty"`
	Job                 *model.FaxJob        `json:"job"`
}

// Submit validates req, creates the job and either sends it right away or
// queues it for the scheduled time.
func (f *Faxline) Submit(ctx context.Context, req model.SubmitRequest) (*SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "Submit")
	defer span.End()

	return f.submit(ctx, req, nil)
}

func (f *Faxline) submit(ctx context.Context, req model.SubmitRequest, originalJobID *string) (*SubmitResult, error) {
	if err := req.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrValidation, err.Error(), nil)
	}

	destination, err := f.resolveDestination(req)
	if err != nil {
		return nil, err
	}

	now := f.now()
	job := f.newJob(req, destination)
	job.OriginalJobID = originalJobID
	job.CreatedAt, job.UpdatedAt = now, now

	prediction := f.predict(ctx, *job, destination)
	job.SuccessProbability = prediction.Probability

	decision := f.scheduler.ScheduleAt(*job, destination, now)
	if decision.Now {
		job.Status = model.StatusQueued
	} else {
		when := decision.When
		job.Status = model.StatusScheduled
		job.ScheduledFor = &when
	}

	if err := f.datasource.CreateJob(ctx, job, model.NewHistoryRecord(*job, nil, "submitted", now)); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"destination": job.DestinationName,
		"status":      job.Status,
		"probability": fmt.Sprintf("%.2f", prediction.Probability),
	}).Info("fax job submitted")

	result := &SubmitResult{
		JobID:               job.ID,
		Status:              job.Status,
		PredictedSuccess:    prediction.Probability,
		Prediction:          prediction,
		RecommendedSendTime: decision.RecommendedTime(),
		ScheduleReason:      decision.Reason,
		CostEstimate:        job.CostEstimate,
		Job:                 job,
	}
	f.publishJob(ctx, job)

	if !decision.Now {
		if err := f.queue.EnqueueDispatch(ctx, job.ID, decision.When); err != nil {
			// the recovery processor re-enqueues overdue scheduled jobs
			logrus.WithError(err).WithField("job_id", job.ID).Error("failed to enqueue scheduled dispatch")
		}
		return result, nil
	}

	sent, err := f.Dispatch(ctx, job.ID)
	if sent != nil {
		result.Job = sent
		result.Status = sent.Status
		result.ProviderID = sent.ProviderID
		result.Error = sent.LastError
	}
	if err != nil && !isSendFailure(err) {
		f.handOffInlineDispatch(ctx, job.ID, sent, err, now)
	}
	return result, nil
}

// handOffInlineDispatch queues the first send of a job whose inline dispatch
// broke on infrastructure. A job already moved to RETRYING belongs to its
// retry task, or to the recovery pass when that task could not be written.
func (f *Faxline) handOffInlineDispatch(ctx context.Context, jobID string, sent *model.FaxJob, err error, now time.Time) {
	if sent != nil && sent.Status == model.StatusRetrying {
		logrus.WithError(err).WithField("job_id", jobID).Warn("inline dispatch failed after retry was recorded, leaving job to recovery")
		return
	}
	logrus.WithError(err).WithField("job_id", jobID).Warn("inline dispatch failed, handing job to the queue")
	if qErr := f.queue.EnqueueDispatch(ctx, jobID, now); qErr != nil {
		logrus.WithError(qErr).WithField("job_id", jobID).Error("failed to enqueue dispatch")
	}
}

// isSendFailure reports whether err is a carrier failure that was already
// recorded on the job.
func isSendFailure(err error) bool {
	return apierror.Is(err, apierror.ErrTransport) || apierror.Is(err, apierror.ErrRateLimited)
}

func (f *Faxline) resolveDestination(req model.SubmitRequest) (*model.Destination, error) {
	if req.DestinationKey != "" {
		d, err := f.registry.Get(req.DestinationKey)
		if err != nil {
			return nil, err
		}
		return &d, nil
	}
	d, err := f.registry.FindByNumber(req.DestinationNumber)
	if err != nil {
		// raw numbers outside the catalog are allowed
		return nil, nil
	}
	return &d, nil
}

func (f *Faxline) newJob(req model.SubmitRequest, destination *model.Destination) *model.FaxJob {
	job := &model.FaxJob{
		ID:             model.GenerateUUIDWithSuffix("fax"),
		DocumentRef:    req.DocumentRef,
		ClientRef:      optional(req.ClientRef),
		RelatedCaseRef: optional(req.RelatedCaseRef),
		Type:           req.Type,
		Priority:       req.Priority,
		PageCount:      req.PageCount,
		MaxRetries:     f.settings.maxRetries,
		AutoRetry:      req.AutoRetry == nil || *req.AutoRetry,
		CostEstimate:   f.calculator.Estimate(req.PageCount, 1),
		MetaData:       req.MetaData,
	}

	if destination != nil {
		job.DestinationNumber = destination.Number
		job.DestinationName = destination.Name
		job.DestinationKey = ptr.String(destination.Key)
		if job.Type == "" {
			job.Type = destination.Category
		}
	} else {
		job.DestinationNumber = model.NormalizeE164(req.DestinationNumber)
		job.DestinationName = job.DestinationNumber
	}
	if req.DestinationName != "" {
		job.DestinationName = req.DestinationName
	}
	if job.Type == "" {
		job.Type = model.TypeGeneral
	}
	if job.Priority == "" {
		job.Priority = model.PriorityNormal
	}
	return job
}

// Dispatch moves a waiting job to SENDING and hands it to the carrier. Only
// one dispatch per job may run; a concurrent call gets DISPATCH_IN_FLIGHT.
// A carrier failure is recorded on the returned job before the error is
// returned.
func (f *Faxline) Dispatch(ctx context.Context, jobID string) (*model.FaxJob, error) {
	ctx, span := tracer.Start(ctx, "Dispatch")
	defer span.End()

	locker := redlock.NewJobLocker(f.redis, jobID)
	if err := locker.Lock(ctx, f.settings.lockTTL); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			return nil, apierror.NewAPIError(apierror.ErrDispatchInFlight, fmt.Sprintf("Fax job '%s' is already being processed", jobID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to acquire job lock", err)
	}
	defer f.unlock(ctx, locker)

	job, err := f.datasource.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case model.StatusScheduled, model.StatusRetrying:
		if err := f.transition(ctx, job, model.StatusQueued, "queued", nil); err != nil {
			return job, err
		}
	case model.StatusQueued:
	default:
		logrus.WithFields(logrus.Fields{"job_id": job.ID, "status": job.Status}).Info("skipping dispatch, job is not waiting to be sent")
		return job, nil
	}

	return f.send(ctx, job)
}

func (f *Faxline) send(ctx context.Context, job *model.FaxJob) (*model.FaxJob, error) {
	if err := f.transition(ctx, job, model.StatusSending, "sending", nil); err != nil {
		return job, err
	}

	providerID, sendErr := f.transport.Send(ctx, job.DestinationNumber, job.DocumentRef)
	if sendErr != nil {
		return job, f.handleSendError(ctx, job, sendErr)
	}

	previous := job.Status
	job.ProviderID = ptr.String(providerID)
	job.Touch(f.now())
	if err := f.datasource.UpdateJob(ctx, job, model.NewHistoryRecord(*job, &previous, "accepted", job.UpdatedAt)); err != nil {
		return job, err
	}

	logrus.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"provider_id": providerID,
		"attempt":     job.RetryCount,
	}).Info("fax accepted by carrier")
	return job, nil
}

func (f *Faxline) handleSendError(ctx context.Context, job *model.FaxJob, sendErr error) error {
	code, retryable, apiCode := "TRANSPORT", true, apierror.ErrTransport
	if terr, ok := transport.AsError(sendErr); ok {
		code, retryable = terr.Code(), terr.Retryable || terr.RateLimited
		if terr.RateLimited {
			apiCode = apierror.ErrRateLimited
		}
	}

	logrus.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"code":      code,
		"retryable": retryable,
	}).WithError(sendErr).Warn("carrier rejected fax")

	jobErr := &model.JobError{Code: code, Message: sendErr.Error(), At: f.now()}
	if err := f.recordFailure(ctx, job, model.StatusFailed, jobErr, retryable); err != nil {
		return err
	}
	return apierror.NewAPIError(apiCode, sendErr.Error(), nil)
}

// outcomes maps carrier receipt statuses to job statuses.
var outcomes = map[string]model.Status{
	"delivered":         model.StatusDelivered,
	"busy":              model.StatusBusy,
	"no_answer":         model.StatusNoAnswer,
	"failed":            model.StatusFailed,
	"line_disconnected": model.StatusFailed,
	"rejected":          model.StatusFailed,
	"technical_failure": model.StatusFailed,
}

// ReportOutcome applies a carrier delivery receipt. Receipts for jobs that
// are no longer SENDING are ignored so replays are harmless.
func (f *Faxline) ReportOutcome(ctx context.Context, providerID, outcome, reason string) (*model.FaxJob, error) {
	ctx, span := tracer.Start(ctx, "ReportOutcome")
	defer span.End()

	status, ok := outcomes[strings.ToLower(strings.TrimSpace(outcome))]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrValidation, fmt.Sprintf("unknown delivery outcome '%s'", outcome), nil)
	}

	found, err := f.datasource.GetJobByProviderID(ctx, providerID)
	if err != nil {
		return nil, err
	}

	locker, err := f.waitLock(ctx, found.ID)
	if err != nil {
		return nil, err
	}
	defer f.unlock(ctx, locker)

	job, err := f.datasource.GetJob(ctx, found.ID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.StatusSending {
		logrus.WithFields(logrus.Fields{"job_id": job.ID, "status": job.Status, "outcome": outcome}).Info("ignoring receipt for job that is not sending")
		return job, nil
	}

	if status == model.StatusDelivered {
		if err := f.transition(ctx, job, model.StatusDelivered, "delivered", nil); err != nil {
			return job, err
		}
		f.invalidateStats(ctx, job.DestinationNumber)
		f.publishJob(ctx, job)
		logrus.WithField("job_id", job.ID).Info("fax delivered")
		return job, nil
	}

	if reason == "" {
		reason = outcome
	}
	jobErr := &model.JobError{Code: strings.ToUpper(outcome), Message: reason, At: f.now()}
	if err := f.recordFailure(ctx, job, status, jobErr, true); err != nil {
		return job, err
	}
	return job, nil
}

func (f *Faxline) GetJob(ctx context.Context, id string) (*model.FaxJob, error) {
	ctx, span := tracer.Start(ctx, "GetJob")
	defer span.End()
	return f.datasource.GetJob(ctx, id)
}

// ListJobs returns the newest jobs in scope, newest first. An empty scope
// lists every client's faxes.
func (f *Faxline) ListJobs(ctx context.Context, scope model.ScopeFilter, limit int) ([]*model.FaxJob, error) {
	ctx, span := tracer.Start(ctx, "ListJobs")
	defer span.End()

	if limit < 0 || limit > maxListLimit {
		return nil, apierror.NewAPIError(apierror.ErrValidation, fmt.Sprintf("limit must be between 1 and %d", maxListLimit), nil)
	}
	if limit == 0 {
		limit = defaultListLimit
	}

	// without compound filtering the store ignores the type, so read a full
	// page and narrow it here
	narrow := scope.Type != "" && !f.datasource.SupportsCompoundFilter()
	fetch := limit
	if narrow {
		fetch = maxListLimit
	}

	jobs, err := f.datasource.ListJobs(ctx, scope, fetch)
	if err != nil {
		return nil, err
	}
	if narrow {
		filtered := jobs[:0]
		for _, job := range jobs {
			if scope.MatchJob(*job) {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (f *Faxline) GetJobHistory(ctx context.Context, id string) ([]model.HistoryRecord, error) {
	ctx, span := tracer.Start(ctx, "GetJobHistory")
	defer span.End()

	if _, err := f.datasource.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return f.datasource.GetJobHistory(ctx, id)
}

// transition moves job to status along a legal edge and persists the new
// snapshot with its history record. mutate runs after the status change.
// On error job is left unchanged.
func (f *Faxline) transition(ctx context.Context, job *model.FaxJob, to model.Status, event string, mutate func(*model.FaxJob)) error {
	if !model.CanTransition(job.Status, to) {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Fax job '%s' cannot move from %s to %s", job.ID, job.Status, to), nil)
	}

	next := *job
	previous := job.Status
	next.Status = to
	if to != model.StatusScheduled && to != model.StatusRetrying {
		next.ScheduledFor = nil
	}
	if mutate != nil {
		mutate(&next)
	}
	next.Touch(f.now())

	if err := f.datasource.UpdateJob(ctx, &next, model.NewHistoryRecord(next, &previous, event, next.UpdatedAt)); err != nil {
		return err
	}
	*job = next
	return nil
}

func (f *Faxline) waitLock(ctx context.Context, jobID string) (*redlock.Locker, error) {
	locker := redlock.NewJobLocker(f.redis, jobID)
	if err := locker.WaitLock(ctx, f.settings.lockTTL, f.settings.lockWait); err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			return nil, apierror.NewAPIError(apierror.ErrDispatchInFlight, fmt.Sprintf("Fax job '%s' is busy, try again shortly", jobID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to acquire job lock", err)
	}
	return locker, nil
}

func (f *Faxline) unlock(ctx context.Context, locker *redlock.Locker) {
	if err := locker.Unlock(context.WithoutCancel(ctx)); err != nil {
		logrus.WithError(err).WithField("key", locker.Key()).Warn("failed to release job lock")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return ptr.String(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
