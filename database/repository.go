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
	"time"

	"github.com/jerry-enebeli/faxline/model"
)

// IDataSource is everything the engine persists.
type IDataSource interface {
	jobStore
	HistoryStore
}

// jobStore keeps the current snapshot of every job. Writes always carry the
// history record for the transition so both land in one database transaction.
type jobStore interface {
	CreateJob(ctx context.Context, job *model.FaxJob, rec model.HistoryRecord) error
	UpdateJob(ctx context.Context, job *model.FaxJob, rec model.HistoryRecord) error
	GetJob(ctx context.Context, id string) (*model.FaxJob, error)
	GetJobByProviderID(ctx context.Context, providerID string) (*model.FaxJob, error)
	GetJobsByStatus(ctx context.Context, statuses []model.Status, updatedBefore time.Time, limit int) ([]*model.FaxJob, error)
	// ListJobs returns at most limit jobs, newest first. It applies the type
	// in scope only when SupportsCompoundFilter is true.
	ListJobs(ctx context.Context, scope model.ScopeFilter, limit int) ([]*model.FaxJob, error)
}

// HistoryStore is the append-only audit trail. Records are never updated.
type HistoryStore interface {
	Append(ctx context.Context, rec model.HistoryRecord) error
	GetJobHistory(ctx context.Context, jobID string) ([]model.HistoryRecord, error)
	QueryByDestination(ctx context.Context, number string, limit int) ([]model.HistoryRecord, error)
	// QueryByWindow returns records in [start, end]. When SupportsCompoundFilter
	// is false the scope is not applied and the caller must filter.
	QueryByWindow(ctx context.Context, start, end time.Time, scope model.ScopeFilter) ([]model.HistoryRecord, error)
	SupportsCompoundFilter() bool
}
