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

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jerry-enebeli/faxline/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("faxline.transport")

type sendRequest struct {
	To       string `json:"to"`
	MediaURL string `json:"media_url"`
}

type sendResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HTTPClient posts send requests to the carrier's REST endpoint.
type HTTPClient struct {
	url     string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

func NewHTTPClient(cfg config.TransportConfig) *HTTPClient {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		url:     cfg.Url,
		apiKey:  cfg.ApiKey,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// Send performs exactly one attempt bounded by the configured timeout.
// Retries belong to the retry manager.
func (c *HTTPClient) Send(ctx context.Context, number, documentRef string) (string, error) {
	ctx, span := tracer.Start(ctx, "Send")
	defer span.End()
	span.SetAttributes(attribute.String("fax.to", number))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(sendRequest{To: number, MediaURL: documentRef})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal send request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(body))
	if err != nil {
		return "", newError(errors.Wrap(err, "failed to create send request"), 0, false)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return "", NewRetryableError(ctx.Err(), fmt.Sprintf("fax carrier timed out after %s", c.timeout))
		}
		return "", NewRetryableError(err, "fax carrier unreachable")
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close response body")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewRetryableError(err, "failed to read carrier response")
	}

	var parsed sendResponse
	// error bodies are not always JSON
	_ = json.Unmarshal(raw, &parsed)

	logrus.WithFields(logrus.Fields{
		"to":          number,
		"status_code": resp.StatusCode,
	}).Debug("Fax carrier responded")

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", NewRateLimitError("fax carrier rate limit exceeded")
	case resp.StatusCode >= 500:
		return "", newError(errors.Errorf("fax carrier error: status %d", resp.StatusCode), resp.StatusCode, true)
	case resp.StatusCode >= 400:
		msg := parsed.Error
		if msg == "" {
			msg = parsed.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("fax carrier rejected the request: status %d", resp.StatusCode)
		}
		return "", NewRejectedError(resp.StatusCode, msg)
	}

	if parsed.Data.ID == "" {
		return "", newError(errors.New("fax carrier response did not include an id"), resp.StatusCode, true)
	}
	span.SetAttributes(attribute.String("fax.provider_id", parsed.Data.ID))
	return parsed.Data.ID, nil
}
