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
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	model2 "github.com/jerry-enebeli/faxline/api/model"
	"github.com/jerry-enebeli/faxline/model"
	"github.com/sirupsen/logrus"
)

// SubmitFax creates a fax job and either sends it or schedules it.
// A failed inline send still answers 201: the result carries the job's error
// and the retry state the engine recorded for it.
//
// Responses:
// - 400 Bad Request: If the body does not bind or fails validation.
// - 404 Not Found: If destination_key names no registry entry.
// - 201 Created: With the submit result.
func (a Api) SubmitFax(c *gin.Context) {
	var req model.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	resp, err := a.faxline.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListFaxes returns the newest fax jobs, newest first, optionally for one
// client_ref and/or destination type. limit defaults to 50.
//
// Responses:
// - 400 Bad Request: If the query does not bind or is out of range.
// - 200 OK: With the job snapshots.
func (a Api) ListFaxes(c *gin.Context) {
	var query model2.ListFaxesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}
	if err := query.ValidateListFaxesQuery(); err != nil {
		invalidInput(c, err)
		return
	}

	jobs, err := a.faxline.ListJobs(c.Request.Context(), query.ToScope(), query.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// GetFax returns the current snapshot of a job.
func (a Api) GetFax(c *gin.Context) {
	job, err := a.faxline.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetFaxHistory returns every history record of a job, oldest first.
func (a Api) GetFaxHistory(c *gin.Context) {
	history, err := a.faxline.GetJobHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// RetryFax schedules the next attempt of a failed job.
//
// Responses:
// - 404 Not Found: If the job does not exist.
// - 409 Conflict: If the job is terminal or not in a retryable state.
// - 202 Accepted: With the attempt number and when it runs.
func (a Api) RetryFax(c *gin.Context) {
	resp, err := a.faxline.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

func (a Api) CancelFax(c *gin.Context) {
	job, err := a.faxline.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ResubmitFax creates a new job from a failed or cancelled one.
func (a Api) ResubmitFax(c *gin.Context) {
	resp, err := a.faxline.Resubmit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
