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
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/jerry-enebeli/faxline/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterWebhookSender_CalledCorrectly(t *testing.T) {
	webhookSender = nil

	var capturedEvent string
	var capturedPayload interface{}
	RegisterWebhookSender(func(event string, payload interface{}) error {
		capturedEvent = event
		capturedPayload = payload
		return nil
	})

	testPayload := map[string]string{"key": "value"}
	err := webhookSender("test.event", testPayload)

	assert.NoError(t, err)
	assert.Equal(t, "test.event", capturedEvent)
	assert.Equal(t, testPayload, capturedPayload)
}

func TestRegisterWebhookSender_ReplacesPrevious(t *testing.T) {
	webhookSender = nil

	callCount := 0
	RegisterWebhookSender(func(event string, payload interface{}) error {
		callCount = 1
		return nil
	})
	RegisterWebhookSender(func(event string, payload interface{}) error {
		callCount = 2
		return nil
	})

	_ = webhookSender("test.event", nil)
	assert.Equal(t, 2, callCount)
}

func TestBuildSlackMessage(t *testing.T) {
	at := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)
	msg := buildSlackMessage("Fax Permanently Failed", map[string]string{
		"Reason": `carrier said "busy"`,
		"Job":    "fax_1",
	}, at)

	require.Len(t, msg.Blocks, 4)
	assert.Equal(t, "header", msg.Blocks[0].Type)
	assert.Equal(t, "*Job:*\nfax_1", msg.Blocks[1].Fields[0].Text)
	assert.Equal(t, "*Reason:*\ncarrier said \"busy\"", msg.Blocks[2].Fields[0].Text)

	// quotes in error text must survive encoding
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))
}

func TestNotifyError_SendsSlackAndWebhook(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(&config.Configuration{
		Notification: config.Notification{Slack: config.SlackWebhook{WebhookUrl: "https://hooks.slack.example.com/x"}},
	})

	var wg sync.WaitGroup
	wg.Add(2)
	httpmock.RegisterResponder("POST", "https://hooks.slack.example.com/x", func(req *http.Request) (*http.Response, error) {
		defer wg.Done()
		return httpmock.NewStringResponse(200, "ok"), nil
	})

	var event string
	RegisterWebhookSender(func(e string, payload interface{}) error {
		defer wg.Done()
		event = e
		return errors.New("queue down")
	})
	defer RegisterWebhookSender(nil)

	NotifyError(errors.New("database unavailable"))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}
	assert.Equal(t, "system.error", event)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}
