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

	"github.com/hibiken/asynq"
	"github.com/jerry-enebeli/faxline/config"
	"github.com/jerry-enebeli/faxline/internal/request"
	"github.com/jerry-enebeli/faxline/model"
	"github.com/sirupsen/logrus"
)

// NewWebhook represents the structure of a webhook notification.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// getEventFromStatus maps a job status to its outbound event name.
func getEventFromStatus(status model.Status) string {
	switch status {
	case model.StatusScheduled:
		return "fax.scheduled"
	case model.StatusQueued:
		return "fax.queued"
	case model.StatusSending:
		return "fax.sending"
	case model.StatusDelivered:
		return "fax.delivered"
	case model.StatusFailed, model.StatusBusy, model.StatusNoAnswer:
		return "fax.failed"
	case model.StatusRetrying:
		return "fax.retrying"
	case model.StatusCancelled:
		return "fax.cancelled"
	case model.StatusPermanentFailure:
		return "fax.permanent_failure"
	default:
		return "fax.unknown"
	}
}

// publishJob emits the event for the job's current status. Delivery problems
// are logged and never fail the transition that produced the event.
func (f *Faxline) publishJob(ctx context.Context, job *model.FaxJob) {
	f.publish(ctx, getEventFromStatus(job.Status), *job)
}

func (f *Faxline) publish(ctx context.Context, event string, payload interface{}) {
	if err := f.queue.EnqueueWebhook(ctx, NewWebhook{Event: event, Payload: payload}); err != nil {
		logrus.WithError(err).WithField("event", event).Error("failed to enqueue webhook")
	}
}

func (f *Faxline) systemWebhookSender(event string, payload interface{}) error {
	return f.queue.EnqueueWebhook(context.Background(), NewWebhook{Event: event, Payload: payload})
}

// ProcessWebhook delivers a queued event to the configured endpoint. An error
// hands the task back to asynq for another attempt.
func ProcessWebhook(ctx context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logrus.Errorf("Error unmarshaling task payload: %v", err)
		return err
	}

	_, err = request.PostJSON(ctx, conf.Notification.Webhook.Url, conf.Notification.Webhook.Headers, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", payload.Event).Warn("webhook delivery failed")
		return err
	}
	logrus.WithField("event", payload.Event).Info("webhook delivered")
	return nil
}
