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
	"encoding/json"
	"fmt"
	"time"

	"github.com/jerry-enebeli/faxline/internal/apierror"
	"github.com/jerry-enebeli/faxline/model"
)

const historyColumns = `record_id, job_id, event, previous_status, recorded_at, snapshot`

func insertHistory(ctx context.Context, ex execer, rec model.HistoryRecord) error {
	snapshot, err := json.Marshal(rec.Job)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to encode history snapshot", err)
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO faxline.fax_history(record_id, job_id, destination_number, client_ref, type, status, previous_status, event, snapshot, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, rec.RecordID, rec.JobID, rec.Job.DestinationNumber, nullableString(rec.Job.ClientRef), string(rec.Job.Type),
		string(rec.Job.Status), nullableStatus(rec.PreviousStatus), rec.Event, snapshot, rec.RecordedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("History record '%s' already exists", rec.RecordID), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to append history record", err)
	}
	return nil
}

func scanHistory(row rowScanner) (model.HistoryRecord, error) {
	var (
		rec      model.HistoryRecord
		previous *string
		snapshot []byte
	)
	if err := row.Scan(&rec.RecordID, &rec.JobID, &rec.Event, &previous, &rec.RecordedAt, &snapshot); err != nil {
		return rec, err
	}
	if previous != nil {
		status := model.Status(*previous)
		rec.PreviousStatus = &status
	}
	if err := json.Unmarshal(snapshot, &rec.Job); err != nil {
		return rec, fmt.Errorf("failed to unmarshal history snapshot: %w", err)
	}
	return rec, nil
}

func (d Datasource) queryHistory(ctx context.Context, query string, args ...interface{}) ([]model.HistoryRecord, error) {
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to query history", err)
	}
	defer func() { _ = rows.Close() }()

	records := []model.HistoryRecord{}
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan history record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to query history", err)
	}
	return records, nil
}

// Append writes a record outside of a job update, e.g. a notification failure note.
func (d Datasource) Append(ctx context.Context, rec model.HistoryRecord) error {
	ctx, span := tracer.Start(ctx, "AppendHistory")
	defer span.End()
	return insertHistory(ctx, d.Conn, rec)
}

func (d Datasource) GetJobHistory(ctx context.Context, jobID string) ([]model.HistoryRecord, error) {
	ctx, span := tracer.Start(ctx, "GetJobHistory")
	defer span.End()

	return d.queryHistory(ctx, `
		SELECT `+historyColumns+`
		FROM faxline.fax_history
		WHERE job_id = $1
		ORDER BY recorded_at ASC, id ASC
	`, jobID)
}

// QueryByDestination returns the newest records sent to number.
func (d Datasource) QueryByDestination(ctx context.Context, number string, limit int) ([]model.HistoryRecord, error) {
	ctx, span := tracer.Start(ctx, "QueryByDestination")
	defer span.End()

	return d.queryHistory(ctx, `
		SELECT `+historyColumns+`
		FROM faxline.fax_history
		WHERE destination_number = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`, number, limit)
}

func (d Datasource) QueryByWindow(ctx context.Context, start, end time.Time, scope model.ScopeFilter) ([]model.HistoryRecord, error) {
	ctx, span := tracer.Start(ctx, "QueryByWindow")
	defer span.End()

	if !d.compoundFilter {
		return d.queryHistory(ctx, `
			SELECT `+historyColumns+`
			FROM faxline.fax_history
			WHERE recorded_at >= $1 AND recorded_at <= $2
			ORDER BY recorded_at DESC
		`, start.UTC(), end.UTC())
	}

	return d.queryHistory(ctx, `
		SELECT `+historyColumns+`
		FROM faxline.fax_history
		WHERE recorded_at >= $1 AND recorded_at <= $2
			AND ($3 = '' OR client_ref = $3)
			AND ($4 = '' OR type = $4)
		ORDER BY recorded_at DESC
	`, start.UTC(), end.UTC(), scope.ClientRef, string(scope.Type))
}

func (d Datasource) SupportsCompoundFilter() bool {
	return d.compoundFilter
}
