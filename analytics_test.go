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
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jerry-enebeli/faxline/internal/apierror"
	"github.com/jerry-enebeli/faxline/model"
	"github.com/jerry-enebeli/faxline/transport"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedAnalytics leaves two delivered Equifax faxes, one failed TransUnion fax
// and one scheduled collections fax behind.
func seedAnalytics(t *testing.T, e *testEngine) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		r, err := e.Submit(ctx, model.SubmitRequest{DestinationKey: "EQUIFAX", DocumentRef: testDocument, ClientRef: "client_a", PageCount: 3})
		require.NoError(t, err)
		_, err = e.ReportOutcome(ctx, *r.ProviderID, "delivered", "")
		require.NoError(t, err)
	}

	_, err := e.Submit(ctx, model.SubmitRequest{
		DestinationKey: "TRANSUNION",
		DocumentRef:    testDocument,
		ClientRef:      "client_b",
		PageCount:      1,
		AutoRetry:      noAutoRetry(),
	})
	require.NoError(t, err)

	when := wednesdayMorning.Add(48 * time.Hour)
	scheduled := model.FaxJob{
		ID:                model.GenerateUUIDWithSuffix("fax"),
		DestinationNumber: "+13125550100",
		DestinationName:   "Midwest Recovery",
		DocumentRef:       testDocument,
		Type:              model.TypeCollections,
		Priority:          model.PriorityNormal,
		PageCount:         1,
		Status:            model.StatusScheduled,
		MaxRetries:        3,
		ScheduledFor:      &when,
		CostEstimate:      e.Calculator().Estimate(1, 1),
		CreatedAt:         e.clock.Now(),
	}
	scheduled.UpdatedAt = scheduled.CreatedAt
	require.NoError(t, e.store.CreateJob(ctx, &scheduled, model.NewHistoryRecord(scheduled, nil, "submitted", scheduled.CreatedAt)))
}

func TestGetAnalytics(t *testing.T) {
	carrier := &fakeCarrier{failing: map[string]error{
		"+16105464771": transport.NewRejectedError(422, "number not reachable"),
	}}
	e := setupFaxline(t, wednesdayMorning, carrier)
	seedAnalytics(t, e)

	report, err := e.GetAnalytics(context.Background(), 0, model.ScopeFilter{})
	require.NoError(t, err)

	assert.Equal(t, "Last 30 days", report.Period)
	assert.Equal(t, AnalyticsSummary{
		Total:       4,
		Delivered:   2,
		Failed:      1,
		Queued:      1,
		SuccessRate: 66.7,
	}, report.Summary)
	assert.Equal(t, "NeedsImprovement", report.Performance)
	assert.Equal(t, "Review failed faxes and consider retrying during business hours", report.Recommendation)
	assert.Equal(t, "Active", report.Trend)

	assert.Equal(t, 3, report.ByType[model.TypeBureau])
	assert.Equal(t, 1, report.ByType[model.TypeCollections])
	assert.Equal(t, 0, report.ByType[model.TypeCreditor])
	assert.Contains(t, report.ByType, model.TypeGeneral)

	require.Len(t, report.TopDestinations, 3)
	assert.Equal(t, DestinationVolume{Name: "Equifax", Number: "+14048858052", Count: 2}, report.TopDestinations[0])

	// 3-page sends cost 0.095 each, the others 0.065
	assert.True(t, decimal.RequireFromString("0.32").Equal(report.Costs.TotalCost), "got %s", report.Costs.TotalCost)
	assert.True(t, decimal.RequireFromString("0.08").Equal(report.Costs.AverageCostPerFax), "got %s", report.Costs.AverageCostPerFax)
	assert.True(t, report.Costs.TotalSavings.IsPositive())
}

func TestGetAnalytics_Scoped(t *testing.T) {
	carrier := &fakeCarrier{failing: map[string]error{
		"+16105464771": transport.NewRejectedError(422, "number not reachable"),
	}}
	e := setupFaxline(t, wednesdayMorning, carrier)
	seedAnalytics(t, e)

	for _, compound := range []bool{true, false} {
		t.Run(fmt.Sprintf("compound=%v", compound), func(t *testing.T) {
			e.store.compound = compound

			report, err := e.GetAnalytics(context.Background(), 7, model.ScopeFilter{ClientRef: "client_a"})
			require.NoError(t, err)
			assert.Equal(t, "Last 7 days", report.Period)
			assert.Equal(t, 2, report.Summary.Total)
			assert.Equal(t, 100.0, report.Summary.SuccessRate)
			assert.Equal(t, "Excellent", report.Performance)
			assert.Equal(t, "Performance is strong. Continue current practices.", report.Recommendation)

			report, err = e.GetAnalytics(context.Background(), 7, model.ScopeFilter{Type: model.TypeCollections})
			require.NoError(t, err)
			assert.Equal(t, 1, report.Summary.Total)
			assert.Equal(t, 0.0, report.Summary.SuccessRate)
		})
	}
}

func TestGetAnalytics_Empty(t *testing.T) {
	e := setupFaxline(t, wednesdayMorning, &fakeCarrier{})

	report, err := e.GetAnalytics(context.Background(), 0, model.ScopeFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Summary.Total)
	assert.Equal(t, "No recent activity", report.Trend)
	assert.Empty(t, report.TopDestinations)
	assert.True(t, report.Costs.AverageCostPerFax.IsZero())

	_, err = e.GetAnalytics(context.Background(), -1, model.ScopeFilter{})
	assert.True(t, apierror.Is(err, apierror.ErrValidation))
}

func TestClientSavings(t *testing.T) {
	carrier := &fakeCarrier{failing: map[string]error{
		"+16105464771": transport.NewRejectedError(422, "number not reachable"),
	}}
	e := setupFaxline(t, wednesdayMorning, carrier)
	seedAnalytics(t, e)

	report, err := e.ClientSavings(context.Background(), "client_a")
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalFaxes)
	assert.Equal(t, 6, report.TotalPages)
	assert.Equal(t, 3, report.AveragePages)
	assert.Equal(t, 2, report.Estimate.JobCount)
	assert.True(t, strings.HasPrefix(report.Message, "Saved $"), report.Message)
	assert.True(t, strings.HasSuffix(report.Message, "across 2 faxes!"), report.Message)

	// failed sends do not count
	report, err = e.ClientSavings(context.Background(), "client_b")
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalFaxes)
	assert.Equal(t, "No faxes sent yet", report.Message)
	assert.Equal(t, 3, report.Estimate.PageCount)
	assert.Equal(t, 0, report.Estimate.JobCount)

	_, err = e.ClientSavings(context.Background(), "")
	assert.True(t, apierror.Is(err, apierror.ErrValidation))
}
