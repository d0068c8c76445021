package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-yield/internal/services"
	"github.com/miradorstack/mirador-yield/internal/utils"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	g := &Gateway{logger: utils.NewLogger("error", false), svc: services.NewDiagnosticsService(nil, nil)}
	return g.Router(prometheus.NewRegistry())
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGatewayInvoke(t *testing.T) {
	h := newTestRouter(t)
	rec := post(t, h, "/v1/operations/yieldMetrics", `{"total_units": 100, "defective_units": 5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.InDelta(t, 0.95, body["yield_rate"], 1e-12)
}

func TestGatewayErrorStatuses(t *testing.T) {
	h := newTestRouter(t)
	cases := []struct {
		path, body string
		status     int
		kind       string
	}{
		{"/v1/operations/yieldMetrics", `{"total_units": 1, "defective_units": 2}`, http.StatusBadRequest, "InvalidInput"},
		{"/v1/operations/spcLimits", `{"data_points": [4]}`, http.StatusUnprocessableEntity, "InsufficientData"},
		{"/v1/operations/sessionHistory", `{"session_id": "missing"}`, http.StatusNotFound, "NotFound"},
		{"/v1/operations/doesNotExist", `{}`, http.StatusNotFound, "NotFound"},
	}
	for _, tc := range cases {
		rec := post(t, h, tc.path, tc.body)
		assert.Equal(t, tc.status, rec.Code, tc.path)

		var obj services.ErrorObject
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &obj))
		assert.Equal(t, tc.kind, obj.Error, tc.path)
		assert.NotEmpty(t, obj.Message, tc.path)
	}
}

func TestGatewayConcludedRCAIsConflict(t *testing.T) {
	h := newTestRouter(t)
	rec := post(t, h, "/v1/operations/rcaAdvance", `{"session_id": "c1", "problem_statement": "Voids", "answer": "flux", "conclude": true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, h, "/v1/operations/rcaAdvance", `{"session_id": "c1", "problem_statement": "Voids", "answer": "again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGatewayListsOperationsAndHealth(t *testing.T) {
	h := newTestRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/operations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Operations []operationInfo `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Len(t, listing.Operations, 14)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 14, health.Operations)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPStatusDefault(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(assert.AnError))
}
