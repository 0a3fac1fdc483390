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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jerry-enebeli/faxline/internal/apierror"
	"github.com/jerry-enebeli/faxline/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("faxline.database")

const jobColumns = `job_id, destination_number, destination_name, destination_key, document_ref, client_ref, related_case_ref, type, priority, page_count, status, retry_count, max_retries, auto_retry, scheduled_for, cost_estimate, success_probability, provider_id, last_error, original_job_id, meta_data, created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func jobArgs(job *model.FaxJob) ([]interface{}, error) {
	costJSON, err := json.Marshal(job.CostEstimate)
	if err != nil {
		return nil, err
	}
	lastError, err := nullableJSON(job.LastError)
	if err != nil {
		return nil, err
	}
	metaData, err := nullableJSON(job.MetaData)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		job.ID, job.DestinationNumber, job.DestinationName, nullableString(job.DestinationKey), job.DocumentRef,
		nullableString(job.ClientRef), nullableString(job.RelatedCaseRef), string(job.Type), string(job.Priority),
		job.PageCount, string(job.Status), job.RetryCount, job.MaxRetries, job.AutoRetry, nullableTime(job.ScheduledFor),
		costJSON, job.SuccessProbability, nullableString(job.ProviderID), lastError, nullableString(job.OriginalJobID),
		metaData, job.CreatedAt.UTC(), job.UpdatedAt.UTC(),
	}, nil
}

func scanJob(row rowScanner) (*model.FaxJob, error) {
	job := &model.FaxJob{}
	var (
		destinationKey, clientRef, relatedCaseRef, providerID, originalJobID sql.NullString
		scheduledFor                                                          sql.NullTime
		costJSON, lastErrorJSON, metaDataJSON                                 []byte
		jobType, priority, status                                             string
	)
	err := row.Scan(
		&job.ID, &job.DestinationNumber, &job.DestinationName, &destinationKey, &job.DocumentRef,
		&clientRef, &relatedCaseRef, &jobType, &priority,
		&job.PageCount, &status, &job.RetryCount, &job.MaxRetries, &job.AutoRetry, &scheduledFor,
		&costJSON, &job.SuccessProbability, &providerID, &lastErrorJSON, &originalJobID,
		&metaDataJSON, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Type = model.Type(jobType)
	job.Priority = model.Priority(priority)
	job.Status = model.Status(status)
	job.DestinationKey = stringPtr(destinationKey)
	job.ClientRef = stringPtr(clientRef)
	job.RelatedCaseRef = stringPtr(relatedCaseRef)
	job.ProviderID = stringPtr(providerID)
	job.OriginalJobID = stringPtr(originalJobID)
	job.ScheduledFor = timePtr(scheduledFor)

	if err := json.Unmarshal(costJSON, &job.CostEstimate); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cost estimate: %w", err)
	}
	if len(lastErrorJSON) > 0 {
		job.LastError = &model.JobError{}
		if err := json.Unmarshal(lastErrorJSON, job.LastError); err != nil {
			return nil, fmt.Errorf("failed to unmarshal last error: %w", err)
		}
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &job.MetaData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return job, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// CreateJob inserts a new job together with its first history record.
func (d Datasource) CreateJob(ctx context.Context, job *model.FaxJob, rec model.HistoryRecord) error {
	ctx, span := tracer.Start(ctx, "CreateJob")
	defer span.End()

	args, err := jobArgs(job)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to encode fax job", err)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO faxline.fax_jobs(`+jobColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
	`, args...)
	if err != nil {
		span.RecordError(err)
		if isUniqueViolation(err) {
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Fax job '%s' already exists", job.ID), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create fax job", err)
	}

	if err := insertHistory(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit fax job", err)
	}
	return nil
}

// UpdateJob overwrites the current snapshot and appends rec in one transaction.
func (d Datasource) UpdateJob(ctx context.Context, job *model.FaxJob, rec model.HistoryRecord) error {
	ctx, span := tracer.Start(ctx, "UpdateJob")
	defer span.End()

	args, err := jobArgs(job)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to encode fax job", err)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE faxline.fax_jobs SET
			destination_number = $2, destination_name = $3, destination_key = $4, document_ref = $5,
			client_ref = $6, related_case_ref = $7, type = $8, priority = $9,
			page_count = $10, status = $11, retry_count = $12, max_retries = $13, auto_retry = $14, scheduled_for = $15,
			cost_estimate = $16, success_probability = $17, provider_id = $18, last_error = $19, original_job_id = $20,
			meta_data = $21, created_at = $22, updated_at = $23
		WHERE job_id = $1
	`, args...)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update fax job", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Fax job with ID '%s' not found", job.ID), nil)
	}

	if err := insertHistory(ctx, tx, rec); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit fax job update", err)
	}
	return nil
}

func (d Datasource) GetJob(ctx context.Context, id string) (*model.FaxJob, error) {
	ctx, span := tracer.Start(ctx, "GetJob")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM faxline.fax_jobs WHERE job_id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Fax job with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve fax job", err)
	}
	return job, nil
}

// GetJobByProviderID matches a carrier receipt back to its job.
func (d Datasource) GetJobByProviderID(ctx context.Context, providerID string) (*model.FaxJob, error) {
	ctx, span := tracer.Start(ctx, "GetJobByProviderID")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM faxline.fax_jobs WHERE provider_id = $1`, providerID)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("No fax job for provider id '%s'", providerID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve fax job", err)
	}
	return job, nil
}

// ListJobs returns the newest jobs matching scope, newest first. Without
// compound filtering only the client ref is applied and the caller filters
// by type.
func (d Datasource) ListJobs(ctx context.Context, scope model.ScopeFilter, limit int) ([]*model.FaxJob, error) {
	ctx, span := tracer.Start(ctx, "ListJobs")
	defer span.End()

	if !d.compoundFilter {
		return d.queryJobs(ctx, `
			SELECT `+jobColumns+`
			FROM faxline.fax_jobs
			WHERE ($1 = '' OR client_ref = $1)
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, scope.ClientRef, limit)
	}

	return d.queryJobs(ctx, `
		SELECT `+jobColumns+`
		FROM faxline.fax_jobs
		WHERE ($1 = '' OR client_ref = $1)
			AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, scope.ClientRef, string(scope.Type), limit)
}

// GetJobsByStatus lists jobs in one of statuses whose last change is older
// than updatedBefore, oldest first.
func (d Datasource) GetJobsByStatus(ctx context.Context, statuses []model.Status, updatedBefore time.Time, limit int) ([]*model.FaxJob, error) {
	ctx, span := tracer.Start(ctx, "GetJobsByStatus")
	defer span.End()

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	return d.queryJobs(ctx, `
		SELECT `+jobColumns+`
		FROM faxline.fax_jobs
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`, pq.Array(names), updatedBefore.UTC(), limit)
}

func (d Datasource) queryJobs(ctx context.Context, query string, args ...interface{}) ([]*model.FaxJob, error) {
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list fax jobs", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := []*model.FaxJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan fax job", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list fax jobs", err)
	}
	return jobs, nil
}
