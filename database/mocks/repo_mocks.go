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
package mocks

import (
	"context"
	"time"

	"github.com/jerry-enebeli/faxline/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Job methods

func (m *MockDataSource) CreateJob(ctx context.Context, job *model.FaxJob, rec model.HistoryRecord) error {
	args := m.Called(ctx, job, rec)
	return args.Error(0)
}

func (m *MockDataSource) UpdateJob(ctx context.Context, job *model.FaxJob, rec model.HistoryRecord) error {
	args := m.Called(ctx, job, rec)
	return args.Error(0)
}

func (m *MockDataSource) GetJob(ctx context.Context, id string) (*model.FaxJob, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*model.FaxJob)
	return job, args.Error(1)
}

func (m *MockDataSource) GetJobByProviderID(ctx context.Context, providerID string) (*model.FaxJob, error) {
	args := m.Called(ctx, providerID)
	job, _ := args.Get(0).(*model.FaxJob)
	return job, args.Error(1)
}

func (m *MockDataSource) GetJobsByStatus(ctx context.Context, statuses []model.Status, updatedBefore time.Time, limit int) ([]*model.FaxJob, error) {
	args := m.Called(ctx, statuses, updatedBefore, limit)
	jobs, _ := args.Get(0).([]*model.FaxJob)
	return jobs, args.Error(1)
}

func (m *MockDataSource) ListJobs(ctx context.Context, scope model.ScopeFilter, limit int) ([]*model.FaxJob, error) {
	args := m.Called(ctx, scope, limit)
	jobs, _ := args.Get(0).([]*model.FaxJob)
	return jobs, args.Error(1)
}

// History methods

func (m *MockDataSource) Append(ctx context.Context, rec model.HistoryRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockDataSource) GetJobHistory(ctx context.Context, jobID string) ([]model.HistoryRecord, error) {
	args := m.Called(ctx, jobID)
	records, _ := args.Get(0).([]model.HistoryRecord)
	return records, args.Error(1)
}

func (m *MockDataSource) QueryByDestination(ctx context.Context, number string, limit int) ([]model.HistoryRecord, error) {
	args := m.Called(ctx, number, limit)
	records, _ := args.Get(0).([]model.HistoryRecord)
	return records, args.Error(1)
}

func (m *MockDataSource) QueryByWindow(ctx context.Context, start, end time.Time, scope model.ScopeFilter) ([]model.HistoryRecord, error) {
	args := m.Called(ctx, start, end, scope)
	records, _ := args.Get(0).([]model.HistoryRecord)
	return records, args.Error(1)
}

func (m *MockDataSource) SupportsCompoundFilter() bool {
	args := m.Called()
	return args.Bool(0)
}
