package model

import (
	"testing"
	"time"

	"github.com/jerry-enebeli/faxline/model"
	"github.com/stretchr/testify/assert"
)

func TestValidateAnalyticsQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   AnalyticsQuery
		wantErr bool
	}{
		{name: "Defaults", query: AnalyticsQuery{}},
		{name: "Scoped", query: AnalyticsQuery{WindowDays: 7, ClientRef: "client_1", Type: "bureau"}},
		{name: "Negative window", query: AnalyticsQuery{WindowDays: -1}, wantErr: true},
		{name: "Window too large", query: AnalyticsQuery{WindowDays: 400}, wantErr: true},
		{name: "Unknown type", query: AnalyticsQuery{Type: "spam"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.ValidateAnalyticsQuery()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnalyticsQuery_ToScope(t *testing.T) {
	q := AnalyticsQuery{ClientRef: "client_1", Type: "creditor"}
	assert.Equal(t, model.ScopeFilter{ClientRef: "client_1", Type: model.TypeCreditor}, q.ToScope())
}

func TestValidateListFaxesQuery(t *testing.T) {
	q := ListFaxesQuery{ClientRef: "client_1", Type: "collections", Limit: 100}
	assert.NoError(t, q.ValidateListFaxesQuery())
	assert.Equal(t, model.ScopeFilter{ClientRef: "client_1", Type: model.TypeCollections}, q.ToScope())

	assert.NoError(t, (&ListFaxesQuery{}).ValidateListFaxesQuery())
	assert.Error(t, (&ListFaxesQuery{Limit: 501}).ValidateListFaxesQuery())
	assert.Error(t, (&ListFaxesQuery{Limit: -1}).ValidateListFaxesQuery())
	assert.Error(t, (&ListFaxesQuery{Type: "spam"}).ValidateListFaxesQuery())
}

func TestValidateCostEstimateQuery(t *testing.T) {
	q := CostEstimateQuery{Pages: 3}
	assert.NoError(t, q.ValidateCostEstimateQuery())
	assert.Equal(t, 1, q.Count)

	q = CostEstimateQuery{}
	assert.Error(t, q.ValidateCostEstimateQuery())

	q = CostEstimateQuery{Pages: 1, Count: -4}
	assert.Error(t, q.ValidateCostEstimateQuery())
}

func TestValidateCarrierReceipt(t *testing.T) {
	r := CarrierReceipt{ProviderID: "prov_1", Status: "delivered"}
	assert.NoError(t, r.ValidateCarrierReceipt())

	r = CarrierReceipt{Status: "delivered"}
	assert.Error(t, r.ValidateCarrierReceipt())
}

func TestRecoverQuery_Threshold(t *testing.T) {
	assert.Equal(t, time.Hour, (&RecoverQuery{}).Threshold())
	assert.Equal(t, 90*time.Minute, (&RecoverQuery{ThresholdMinutes: 90}).Threshold())
}
