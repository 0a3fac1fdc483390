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

// Package transport hands documents to the fax carrier.
package transport

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Client sends one document to one number and returns the carrier's id for
// the send. Implementations must be safe for concurrent use; callers make sure
// a given job is never sent twice at once.
type Client interface {
	Send(ctx context.Context, number, documentRef string) (providerID string, err error)
}

// ClientFunc adapts a plain function to Client.
type ClientFunc func(ctx context.Context, number, documentRef string) (string, error)

func (f ClientFunc) Send(ctx context.Context, number, documentRef string) (string, error) {
	return f(ctx, number, documentRef)
}

// Error is returned for every failed send. RateLimited errors are a kind of
// transport error and follow the same retry path.
type Error struct {
	StatusCode  int
	Retryable   bool
	RateLimited bool
	cause       error
}

func (e *Error) Error() string {
	return e.cause.Error()
}

// Cause satisfies pkg/errors.
func (e *Error) Cause() error { return e.cause }

func (e *Error) Unwrap() error { return e.cause }

// Code is the short label stored on the job's last error.
func (e *Error) Code() string {
	switch {
	case e.RateLimited:
		return "RATE_LIMITED"
	case e.StatusCode > 0:
		return fmt.Sprintf("HTTP_%d", e.StatusCode)
	default:
		return "TRANSPORT"
	}
}

func newError(cause error, status int, retryable bool) *Error {
	return &Error{StatusCode: status, Retryable: retryable, cause: cause}
}

// NewRetryableError wraps err as a retryable transport failure.
func NewRetryableError(err error, message string) *Error {
	return newError(errors.Wrap(err, message), 0, true)
}

// NewRateLimitError reports that the carrier throttled the request.
func NewRateLimitError(message string) *Error {
	e := newError(errors.New(message), 429, true)
	e.RateLimited = true
	return e
}

// NewRejectedError reports a request the carrier refused outright. It is
// never retried automatically.
func NewRejectedError(status int, message string) *Error {
	return newError(errors.New(message), status, false)
}

// AsError extracts a transport error from err's chain.
func AsError(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
