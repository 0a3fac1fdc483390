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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/jerry-enebeli/faxline"
	"github.com/jerry-enebeli/faxline/config"
	"github.com/jerry-enebeli/faxline/database/mocks"
	"github.com/jerry-enebeli/faxline/internal/apierror"
	"github.com/jerry-enebeli/faxline/model"
	transportmocks "github.com/jerry-enebeli/faxline/transport/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testDocument = "https://docs.example.com/disputes/letter.pdf"

type TestRequest struct {
	Payload  io.Reader
	Router   *gin.Engine
	Response interface{}
	Method   string
	Route    string
	Header   map[string]string
}

func SetUpTestRequest(s TestRequest) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(s.Method, s.Route, s.Payload)
	for key, value := range s.Header {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)

	if s.Response == nil {
		return resp, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(s.Response); err != nil {
		return nil, err
	}
	return resp, nil
}

func testConfig(redisAddr string) *config.Configuration {
	return &config.Configuration{
		DataSource: config.DataSourceConfig{Dns: "postgres://localhost:5432/faxline"},
		Redis:      config.RedisConfig{Dns: redisAddr},
	}
}

func setupRouter(t *testing.T) (*gin.Engine, *mocks.MockDataSource, *transportmocks.MockClient, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	require.NoError(t, config.MockConfigWithDefaults(testConfig(mr.Addr())))

	ds := &mocks.MockDataSource{}
	ds.On("SupportsCompoundFilter").Return(true).Maybe()
	client := &transportmocks.MockClient{}

	f, err := faxline.NewFaxline(ds, faxline.WithTransport(client))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Queue().Close() })

	return NewAPI(f).Router(), ds, client, mr
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func notFound(id string) error {
	return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Fax job with ID '%s' not found", id), nil)
}

func TestHealth(t *testing.T) {
	router, _, _, _ := setupRouter(t)

	var response string
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/", Response: &response})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "server running...", response)
}

func TestSubmitFax(t *testing.T) {
	router, ds, client, _ := setupRouter(t)

	stored := &model.FaxJob{}
	ds.On("QueryByDestination", mock.Anything, "+14048858052", mock.Anything).Return([]model.HistoryRecord(nil), nil).Maybe()
	ds.On("CreateJob", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		*stored = *args.Get(1).(*model.FaxJob)
	}).Return(nil)
	ds.On("GetJob", mock.Anything, mock.Anything).Return(stored, nil).Maybe()
	ds.On("UpdateJob", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	client.On("Send", mock.Anything, "+14048858052", testDocument).Return("prov_"+gofakeit.UUID(), nil).Maybe()

	tests := []struct {
		name         string
		payload      interface{}
		expectedCode int
	}{
		{
			name: "Valid submit",
			payload: model.SubmitRequest{
				DestinationKey: "EQUIFAX",
				DocumentRef:    testDocument,
				ClientRef:      gofakeit.Username(),
				PageCount:      2,
			},
			expectedCode: http.StatusCreated,
		},
		{
			name:         "Missing document",
			payload:      model.SubmitRequest{DestinationKey: "EQUIFAX", PageCount: 1},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "Unknown destination",
			payload:      model.SubmitRequest{DestinationKey: "NOT_A_BUREAU", DocumentRef: testDocument, PageCount: 1},
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "Malformed body",
			payload:      "not an object",
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var response map[string]interface{}
			resp, err := SetUpTestRequest(TestRequest{
				Router:   router,
				Method:   http.MethodPost,
				Route:    "/faxes",
				Payload:  jsonBody(t, tt.payload),
				Response: &response,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, resp.Code)
			if tt.expectedCode == http.StatusCreated {
				assert.NotEmpty(t, response["job_id"])
				assert.Contains(t, []interface{}{string(model.StatusSending), string(model.StatusScheduled)}, response["status"])
			}
		})
	}
}

func TestGetFax(t *testing.T) {
	router, ds, _, _ := setupRouter(t)

	job := &model.FaxJob{
		ID:                model.GenerateUUIDWithSuffix("fax"),
		DestinationNumber: "+14048858052",
		DestinationName:   "Equifax",
		DocumentRef:       testDocument,
		PageCount:         2,
		Status:            model.StatusDelivered,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	ds.On("GetJob", mock.Anything, job.ID).Return(job, nil)
	ds.On("GetJob", mock.Anything, "missing").Return(nil, notFound("missing"))
	ds.On("GetJobHistory", mock.Anything, job.ID).Return([]model.HistoryRecord{
		model.NewHistoryRecord(*job, nil, "submitted", job.CreatedAt),
	}, nil)

	var response model.FaxJob
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/faxes/" + job.ID, Response: &response})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, job.ID, response.ID)
	assert.Equal(t, model.StatusDelivered, response.Status)

	var history []model.HistoryRecord
	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/faxes/" + job.ID + "/history", Response: &history})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, history, 1)
	assert.Equal(t, "submitted", history[0].Event)

	var errResponse map[string]interface{}
	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/faxes/missing", Response: &errResponse})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, string(apierror.ErrNotFound), errResponse["code"])
}

func TestListFaxes(t *testing.T) {
	router, ds, _, _ := setupRouter(t)

	clientRef := "client_a"
	job := &model.FaxJob{
		ID:                model.GenerateUUIDWithSuffix("fax"),
		DestinationNumber: "+14048858052",
		DestinationName:   "Equifax",
		ClientRef:         &clientRef,
		Type:              model.TypeBureau,
		Status:            model.StatusDelivered,
		CreatedAt:         time.Now(),
	}
	ds.On("ListJobs", mock.Anything, model.ScopeFilter{ClientRef: clientRef}, 20).Return([]*model.FaxJob{job}, nil)
	ds.On("ListJobs", mock.Anything, model.ScopeFilter{}, 50).Return([]*model.FaxJob{}, nil)

	var jobs []model.FaxJob
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/faxes?client_ref=client_a&limit=20", Response: &jobs})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)

	jobs = nil
	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/faxes", Response: &jobs})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, jobs)

	for _, route := range []string{"/faxes?limit=501", "/faxes?limit=-1", "/faxes?type=pharmacy", "/faxes?limit=abc"} {
		var errResponse map[string]interface{}
		resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: route, Response: &errResponse})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.Code, route)
	}
	ds.AssertExpectations(t)
}

func TestRetryAndCancelRejections(t *testing.T) {
	router, ds, _, _ := setupRouter(t)

	delivered := &model.FaxJob{ID: model.GenerateUUIDWithSuffix("fax"), Status: model.StatusDelivered}
	sending := &model.FaxJob{ID: model.GenerateUUIDWithSuffix("fax"), Status: model.StatusSending, Priority: model.PriorityUrgent}
	ds.On("GetJob", mock.Anything, delivered.ID).Return(delivered, nil)
	ds.On("GetJob", mock.Anything, sending.ID).Return(sending, nil)
	ds.On("GetJob", mock.Anything, "missing").Return(nil, notFound("missing"))

	tests := []struct {
		name         string
		route        string
		expectedCode int
		expectedErr  apierror.ErrorCode
	}{
		{"Retry delivered job", "/faxes/" + delivered.ID + "/retry", http.StatusConflict, apierror.ErrAlreadyTerminal},
		{"Retry sending job", "/faxes/" + sending.ID + "/retry", http.StatusConflict, apierror.ErrNotRetryable},
		{"Retry missing job", "/faxes/missing/retry", http.StatusNotFound, apierror.ErrNotFound},
		{"Cancel delivered job", "/faxes/" + delivered.ID + "/cancel", http.StatusConflict, apierror.ErrAlreadyTerminal},
		{"Cancel sending job", "/faxes/" + sending.ID + "/cancel", http.StatusConflict, apierror.ErrNotCancellable},
		{"Resubmit delivered job", "/faxes/" + delivered.ID + "/resubmit", http.StatusConflict, apierror.ErrAlreadyTerminal},
		{"Resubmit sending job", "/faxes/" + sending.ID + "/resubmit", http.StatusConflict, apierror.ErrNotRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var response map[string]interface{}
			resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodPost, Route: tt.route, Response: &response})
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, resp.Code)
			assert.Equal(t, string(tt.expectedErr), response["code"])
		})
	}
}

func TestBroadcastValidation(t *testing.T) {
	router, _, _, _ := setupRouter(t)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Method:   http.MethodPost,
		Route:    "/broadcasts",
		Payload:  jsonBody(t, model.BroadcastRequest{DocumentRef: testDocument, PageCount: 1}),
		Response: &response,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, string(apierror.ErrValidation), response["code"])
}

func TestGetAnalytics(t *testing.T) {
	router, ds, _, _ := setupRouter(t)
	ds.On("QueryByWindow", mock.Anything, mock.Anything, mock.Anything, model.ScopeFilter{ClientRef: "client_a", Type: model.TypeBureau}).
		Return([]model.HistoryRecord(nil), nil)

	var report faxline.AnalyticsReport
	resp, err := SetUpTestRequest(TestRequest{
		Router:   router,
		Method:   http.MethodGet,
		Route:    "/analytics?window_days=7&client_ref=client_a&type=bureau",
		Response: &report,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 0, report.Summary.Total)
	assert.Equal(t, "client_a", report.Scope.ClientRef)

	for _, route := range []string{"/analytics?window_days=400", "/analytics?type=pharmacy", "/analytics?window_days=abc"} {
		var errResponse map[string]interface{}
		resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: route, Response: &errResponse})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.Code, route)
	}
}

func TestDestinations(t *testing.T) {
	router, _, _, _ := setupRouter(t)

	var all []model.Destination
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/destinations", Response: &all})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NotEmpty(t, all)

	var bureaus []model.Destination
	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/destinations?category=bureau", Response: &bureaus})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	for _, d := range bureaus {
		assert.Equal(t, model.TypeBureau, d.Category)
	}

	var equifax model.Destination
	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/destinations/equifax", Response: &equifax})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "+14048858052", equifax.Number)

	var missing map[string]interface{}
	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/destinations/EQUIFAZ", Response: &missing})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, missing["error"], "EQUIFAX")

	var matches []map[string]interface{}
	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/destinations/search?q=experian", Response: &matches})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	require.NotEmpty(t, matches)
	assert.Equal(t, "EXPERIAN", matches[0]["key"])

	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/destinations/search?q=x", Response: &missing})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestEstimateCost(t *testing.T) {
	router, _, _, _ := setupRouter(t)

	var estimate map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/cost-estimate?pages=3", Response: &estimate})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, float64(1), estimate["job_count"])
	assert.Equal(t, "3.27", estimate["legacy_per_unit"])
	assert.Equal(t, "0.095", estimate["carrier_per_unit"])

	resp, err = SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: "/cost-estimate?pages=0", Response: &estimate})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCarrierReceipt(t *testing.T) {
	router, ds, _, _ := setupRouter(t)
	ds.On("GetJobByProviderID", mock.Anything, "prov_unknown").
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "No fax job for provider id 'prov_unknown'", nil))

	tests := []struct {
		name         string
		payload      interface{}
		expectedCode int
	}{
		{"Missing provider id", map[string]string{"status": "delivered"}, http.StatusBadRequest},
		{"Unknown outcome", map[string]string{"provider_id": "prov_unknown", "status": "teleported"}, http.StatusBadRequest},
		{"Unknown provider id", map[string]string{"provider_id": "prov_unknown", "status": "delivered"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var response map[string]interface{}
			resp, err := SetUpTestRequest(TestRequest{
				Router:   router,
				Method:   http.MethodPost,
				Route:    "/webhooks/transport",
				Payload:  jsonBody(t, tt.payload),
				Response: &response,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}

func TestRecoverStuckJobs(t *testing.T) {
	router, ds, _, _ := setupRouter(t)
	ds.On("GetJobsByStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]*model.FaxJob(nil), nil)

	var response map[string]interface{}
	resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodPost, Route: "/admin/recover-stuck?threshold_minutes=10", Response: &response})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, float64(0), response["recovered"])
	assert.Equal(t, "10m0s", response["threshold"])
	ds.AssertNumberOfCalls(t, "GetJobsByStatus", 2)
}

func TestSecureRoutes(t *testing.T) {
	router, _, _, mr := setupRouter(t)

	secure := testConfig(mr.Addr())
	secure.Server.Secure = true
	secure.Server.SecretKey = "master-" + gofakeit.LetterN(12)
	secure.Server.ApiKeys = []config.ApiKeyConfig{{Name: "reports", Key: "reports-key", Scopes: []string{"analytics:read", "destinations:read"}}}
	require.NoError(t, config.MockConfigWithDefaults(secure))

	tests := []struct {
		name         string
		key          string
		route        string
		expectedCode int
	}{
		{"No key", "", "/destinations", http.StatusUnauthorized},
		{"Master key", secure.Server.SecretKey, "/destinations", http.StatusOK},
		{"Scoped key in scope", "reports-key", "/destinations/EQUIFAX", http.StatusOK},
		{"Scoped key out of scope", "reports-key", "/cost-estimate?pages=1", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := map[string]string{}
			if tt.key != "" {
				header["X-Faxline-Key"] = tt.key
			}
			var response interface{}
			resp, err := SetUpTestRequest(TestRequest{Router: router, Method: http.MethodGet, Route: tt.route, Header: header, Response: &response})
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}
