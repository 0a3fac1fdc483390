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
	"fmt"
	"time"

	"github.com/jerry-enebeli/faxline/cost"
	"github.com/jerry-enebeli/faxline/internal/apierror"
	"github.com/jerry-enebeli/faxline/model"
	"github.com/sirupsen/logrus"
)

type DestinationResult struct {
	DestinationKey      string          `json:"destination_key"`
	DestinationName     string          `json:"destination_name,omitempty"`
	JobID               string          `json:"job_id,omitempty"`
	Status              model.Status    `json:"status,omitempty"`
	Success             bool            `json:"success"`
	Scheduled           bool            `json:"scheduled"`
	RecommendedSendTime string          `json:"recommended_send_time,omitempty"`
	PredictedSuccess    float64         `json:"predicted_success,omitempty"`
	Error               *model.JobError `json:"error,omitempty"`
}

type BroadcastResult struct {
	Results        []DestinationResult `json:"results"`
	Successful     []DestinationResult `json:"successful"`
	Failed         []DestinationResult `json:"failed"`
	AggregateCost  cost.Estimate       `json:"aggregate_cost"`
	SuccessRate    string              `json:"success_rate"`
	Recommendation string              `json:"recommendation"`
}

// BroadcastToAll sends one document to every destination key, one at a time.
// After each send it waits the configured politeness interval before starting
// the next one. Unknown keys become failed results and do not stop the
// broadcast.
func (f *Faxline) BroadcastToAll(ctx context.Context, req model.BroadcastRequest) (*BroadcastResult, error) {
	ctx, span := tracer.Start(ctx, "BroadcastToAll")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrValidation, err.Error(), nil)
	}

	result := &BroadcastResult{
		Results:    make([]DestinationResult, 0, len(req.DestinationKeys)),
		Successful: []DestinationResult{},
		Failed:     []DestinationResult{},
	}
	sent := 0
	for _, key := range req.DestinationKeys {
		destination, err := f.registry.Get(key)
		if err != nil {
			result.add(DestinationResult{
				DestinationKey: key,
				Error:          &model.JobError{Code: string(apierror.ErrNotFound), Message: err.Error(), At: f.now()},
			})
			continue
		}

		if sent > 0 {
			if err := pause(ctx, f.settings.broadcastInterval); err != nil {
				f.summarize(result, req)
				return result, err
			}
		}
		sent++

		submitted, err := f.submit(ctx, model.SubmitRequest{
			DestinationKey: destination.Key,
			DocumentRef:    req.DocumentRef,
			ClientRef:      req.ClientRef,
			RelatedCaseRef: req.RelatedCaseRef,
			Type:           destination.Category,
			Priority:       model.PriorityHigh,
			PageCount:      req.PageCount,
		}, nil)
		result.add(f.destinationResult(destination, submitted, err))
	}

	f.summarize(result, req)
	logrus.WithFields(logrus.Fields{
		"destinations": len(req.DestinationKeys),
		"successful":   len(result.Successful),
		"failed":       len(result.Failed),
	}).Info("broadcast completed")
	f.publish(ctx, "broadcast.completed", result)
	return result, nil
}

// pause blocks for d or until ctx ends.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *Faxline) destinationResult(destination model.Destination, submitted *SubmitResult, err error) DestinationResult {
	entry := DestinationResult{DestinationKey: destination.Key, DestinationName: destination.Name}
	if err != nil {
		code := string(apierror.CodeOf(err))
		if code == "" {
			code = string(apierror.ErrInternalServer)
		}
		entry.Error = &model.JobError{Code: code, Message: err.Error(), At: f.now()}
		return entry
	}

	entry.JobID = submitted.JobID
	entry.Status = submitted.Status
	entry.RecommendedSendTime = submitted.RecommendedSendTime
	entry.PredictedSuccess = submitted.PredictedSuccess
	// waiting in the queue counts as accepted for later
	entry.Scheduled = submitted.Status == model.StatusScheduled || submitted.Status == model.StatusQueued
	entry.Success = entry.Scheduled || (submitted.Status == model.StatusSending && submitted.ProviderID != nil)
	if !entry.Success {
		entry.Error = submitted.Error
	}
	return entry
}

func (r *BroadcastResult) add(entry DestinationResult) {
	r.Results = append(r.Results, entry)
	if entry.Success {
		r.Successful = append(r.Successful, entry)
	} else {
		r.Failed = append(r.Failed, entry)
	}
}

func (f *Faxline) summarize(r *BroadcastResult, req model.BroadcastRequest) {
	r.AggregateCost = f.calculator.Estimate(req.PageCount, len(req.DestinationKeys))
	if len(r.Results) > 0 {
		r.SuccessRate = fmt.Sprintf("%.1f%%", float64(len(r.Successful))/float64(len(r.Results))*100)
	} else {
		r.SuccessRate = "0.0%"
	}
	if len(r.Failed) == 0 {
		r.Recommendation = "All destinations received successfully. Monitor for responses."
	} else {
		r.Recommendation = fmt.Sprintf("%d destination(s) failed. Review failed sends and retry if needed.", len(r.Failed))
	}
}
