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
	"sync"
	"sync/atomic"
	"time"

	"github.com/jerry-enebeli/faxline/model"
	"github.com/sirupsen/logrus"
)

// minRecoveryThreshold keeps a manual trigger from racing receipts that are
// still in flight.
const minRecoveryThreshold = 2 * time.Minute

// overdueGrace is how long past its send time a waiting job may sit before
// its dispatch task is assumed lost.
const overdueGrace = 5 * time.Minute

// errNothingToRecover marks a job that needed no repair by the time a
// recovery worker reached it.
var errNothingToRecover = errors.New("nothing to recover")

// StuckJobRecoveryProcessor periodically repairs jobs whose dispatch was
// interrupted: sends that never got a receipt and waiting jobs whose task
// disappeared from Redis.
type StuckJobRecoveryProcessor struct {
	faxline        *Faxline
	batchSize      int
	maxWorkers     int
	pollInterval   time.Duration
	stuckThreshold time.Duration
	stopCh         chan struct{}
	wg             sync.WaitGroup
	running        bool
	mu             sync.Mutex
}

func NewStuckJobRecoveryProcessor(f *Faxline) *StuckJobRecoveryProcessor {
	pollInterval := f.settings.recoveryInterval
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	stuckThreshold := f.settings.stuckSending
	if stuckThreshold < minRecoveryThreshold {
		stuckThreshold = minRecoveryThreshold
	}

	return &StuckJobRecoveryProcessor{
		faxline:        f,
		batchSize:      500,
		maxWorkers:     5,
		pollInterval:   pollInterval,
		stuckThreshold: stuckThreshold,
		stopCh:         make(chan struct{}),
	}
}

func (p *StuckJobRecoveryProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()

	logrus.Info("Stuck job recovery processor started")
}

func (p *StuckJobRecoveryProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logrus.Info("Stuck job recovery processor stopped")
}

func (p *StuckJobRecoveryProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *StuckJobRecoveryProcessor) run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Stuck job recovery processor context cancelled")
			return
		case <-p.stopCh:
			logrus.Info("Stuck job recovery processor stop signal received")
			return
		case <-ticker.C:
			p.recoverWithThreshold(ctx, p.stuckThreshold)
		}
	}
}

// RecoverStuckJobs runs one recovery pass immediately and returns the number
// of jobs it touched. It backs the manual trigger endpoint.
func (f *Faxline) RecoverStuckJobs(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold < minRecoveryThreshold {
		threshold = minRecoveryThreshold
	}
	return NewStuckJobRecoveryProcessor(f).recoverWithThreshold(ctx, threshold), nil
}

func (p *StuckJobRecoveryProcessor) recoverWithThreshold(ctx context.Context, threshold time.Duration) int {
	now := p.faxline.now()
	recovered := 0

	sending, err := p.faxline.datasource.GetJobsByStatus(ctx, []model.Status{model.StatusSending}, now.Add(-threshold), p.batchSize)
	if err != nil {
		logrus.Errorf("failed to get stuck sending jobs: %v", err)
	} else {
		recovered += p.each(ctx, sending, p.failStuckSend)
	}

	waiting, err := p.faxline.datasource.GetJobsByStatus(ctx,
		[]model.Status{model.StatusScheduled, model.StatusQueued, model.StatusRetrying}, now.Add(-overdueGrace), p.batchSize)
	if err != nil {
		logrus.Errorf("failed to get overdue waiting jobs: %v", err)
	} else {
		overdue := waiting[:0]
		for _, job := range waiting {
			if job.ScheduledFor == nil || job.ScheduledFor.Before(now.Add(-overdueGrace)) {
				overdue = append(overdue, job)
			}
		}
		recovered += p.each(ctx, overdue, p.requeue)
	}

	return recovered
}

func (p *StuckJobRecoveryProcessor) each(ctx context.Context, jobs []*model.FaxJob, fn func(context.Context, *model.FaxJob) error) int {
	if len(jobs) == 0 {
		return 0
	}
	logrus.Infof("Processing %d stuck fax jobs with %d workers", len(jobs), p.maxWorkers)

	var done int64
	sem := make(chan struct{}, p.maxWorkers)
	var batchWg sync.WaitGroup
	for _, job := range jobs {
		sem <- struct{}{}
		batchWg.Add(1)
		go func(j *model.FaxJob) {
			defer batchWg.Done()
			defer func() { <-sem }()
			switch err := fn(ctx, j); {
			case err == nil:
				atomic.AddInt64(&done, 1)
			case errors.Is(err, errNothingToRecover):
				logrus.Debugf("fax job %s needs no recovery", j.ID)
			default:
				logrus.Errorf("failed to recover fax job %s: %v", j.ID, err)
			}
		}(job)
	}
	batchWg.Wait()
	return int(done)
}

// failStuckSend records a send that never produced a receipt as a retryable
// failure.
func (p *StuckJobRecoveryProcessor) failStuckSend(ctx context.Context, stuck *model.FaxJob) error {
	f := p.faxline
	locker, err := f.waitLock(ctx, stuck.ID)
	if err != nil {
		return err
	}
	defer f.unlock(ctx, locker)

	job, err := f.datasource.GetJob(ctx, stuck.ID)
	if err != nil {
		return err
	}
	if job.Status != model.StatusSending {
		return errNothingToRecover
	}

	logrus.WithFields(logrus.Fields{"job_id": job.ID, "since": job.UpdatedAt.Format(time.RFC3339)}).Warn("no delivery receipt, marking send as failed")
	jobErr := &model.JobError{Code: "NO_RECEIPT", Message: "no delivery receipt received from carrier", At: f.now()}
	return f.recordFailure(ctx, job, model.StatusFailed, jobErr, true)
}

// requeue recreates the dispatch task of a waiting job. A task that is still
// live leaves the job uncounted. An archived one is replaced.
func (p *StuckJobRecoveryProcessor) requeue(ctx context.Context, job *model.FaxJob) error {
	var (
		added bool
		err   error
	)
	if job.Status == model.StatusRetrying {
		added, err = p.faxline.queue.RequeueRetry(ctx, job.ID, job.RetryCount)
	} else {
		added, err = p.faxline.queue.RequeueDispatch(ctx, job.ID)
	}
	if err != nil {
		return err
	}
	if !added {
		return errNothingToRecover
	}
	logrus.WithFields(logrus.Fields{"job_id": job.ID, "status": job.Status}).Warn("re-queued overdue fax job")
	return nil
}
