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

package notification

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jerry-enebeli/faxline/config"
	"github.com/jerry-enebeli/faxline/internal/request"
	"github.com/sirupsen/logrus"
)

// WebhookSender lets the engine forward system errors as outbound events
// without this package importing the engine.
type WebhookSender func(event string, payload interface{}) error

var webhookSender WebhookSender

func RegisterWebhookSender(sender WebhookSender) {
	webhookSender = sender
}

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

func buildSlackMessage(title string, fields map[string]string, at time.Time) slackMessage {
	msg := slackMessage{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: title, Emoji: true}},
	}}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type:   "section",
			Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%s", k, fields[k])}},
		})
	}
	msg.Blocks = append(msg.Blocks, slackBlock{
		Type:   "section",
		Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Time:*\n%s", at.Format(time.RFC822))}},
	})
	return msg
}

// SlackNotification posts a message to the configured Slack webhook.
func SlackNotification(title string, fields map[string]string) {
	conf, err := config.Fetch()
	if err != nil {
		logrus.Error(err)
		return
	}
	if conf.Notification.Slack.WebhookUrl == "" {
		return
	}

	_, err = request.PostJSON(context.Background(), conf.Notification.Slack.WebhookUrl, nil, buildSlackMessage(title, fields, time.Now()))
	if err != nil {
		logrus.WithError(err).Error("failed to send slack notification")
	}
}

// NotifyError logs systemError and reports it to Slack and the event webhook
// when they are configured. It does not block.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)
		SlackNotification("Error From Faxline 🐞", map[string]string{"Error": systemError.Error()})

		if webhookSender != nil {
			if err := webhookSender("system.error", map[string]string{"error": systemError.Error()}); err != nil {
				logrus.WithError(err).Error("failed to send system error webhook")
			}
		}
	}(systemError)
}

// NotifyPermanentFailure alerts operators that a job exhausted its retries
// and needs manual intervention.
func NotifyPermanentFailure(jobID, destination, reason string) {
	go func() {
		logrus.WithFields(logrus.Fields{
			"job_id":      jobID,
			"destination": destination,
			"reason":      reason,
		}).Warn("fax job permanently failed")
		SlackNotification("Fax Permanently Failed 📠", map[string]string{
			"Job":         jobID,
			"Destination": destination,
			"Reason":      reason,
		})
	}()
}
