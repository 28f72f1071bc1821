package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parcel-leads/internal/metrics"
	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/pipeline"
	"github.com/sells-group/parcel-leads/internal/snapshot"
	"github.com/sells-group/parcel-leads/internal/store"
)

type fakeRunner struct {
	calls []model.Area
	err   error
}

func (f *fakeRunner) run(_ context.Context, area model.Area) (*snapshot.Snapshot, error) {
	f.calls = append(f.calls, area)
	if f.err != nil {
		return nil, f.err
	}
	area.Borough = "1"
	if area.Name == "" {
		area.Name = area.Code
	}
	return testSnapshot(area, 2), nil
}

func newTestRouter(t *testing.T, runner *fakeRunner, st store.Store) http.Handler {
	t.Helper()
	return buildRouter(runner.run, st, prometheus.NewRegistry())
}

func doRequest(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t, &fakeRunner{}, nil)

	w := doRequest(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Run(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestRouter(t, runner, nil)

	w := doRequest(h, http.MethodPost, "/runs", `{"borough":"MN","area_code":"10001","area_name":"Chelsea"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	snap, err := snapshot.Unmarshal(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "10001", snap.AreaCode)
	assert.Equal(t, "Chelsea", snap.AreaName)
	assert.Len(t, snap.Leads, 2)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, model.Area{Borough: "MN", Code: "10001", Name: "Chelsea"}, runner.calls[0])
	assert.Empty(t, w.Header().Get("X-Snapshot-Id"))
}

func TestRouter_RunErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "malformed body", body: `{"borough":`, status: http.StatusBadRequest},
		{name: "invalid area", body: `{"borough":"XX","area_code":"1"}`, err: eris.Wrap(pipeline.ErrInvalidInput, "unknown borough"), status: http.StatusBadRequest},
		{name: "run failure", body: `{"borough":"1","area_code":"10001"}`, err: eris.New("boom"), status: http.StatusInternalServerError},
		{name: "save without store", body: `{"borough":"1","area_code":"10001","save":true}`, status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, &fakeRunner{err: tt.err}, nil)
			w := doRequest(h, http.MethodPost, "/runs", tt.body)
			assert.Equal(t, tt.status, w.Code)

			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRouter_RunSaveThenLatest(t *testing.T) {
	st := newTestStore(t)
	h := newTestRouter(t, &fakeRunner{}, st)

	w := doRequest(h, http.MethodPost, "/runs", `{"borough":"1","area_code":"10001","save":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Snapshot-Id"))

	w = doRequest(h, http.MethodGet, "/snapshots/latest?borough=1&area_code=10001", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap, err := snapshot.Unmarshal(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "10001", snap.AreaCode)
	assert.Len(t, snap.Leads, 2)
}

func TestRouter_Latest(t *testing.T) {
	st := newTestStore(t)
	h := newTestRouter(t, &fakeRunner{}, st)

	w := doRequest(h, http.MethodGet, "/snapshots/latest?borough=1&area_code=99999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(h, http.MethodGet, "/snapshots/latest?borough=1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ListSnapshots(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	for _, code := range []string{"10001", "10002", "10001"} {
		_, err := st.SaveSnapshot(ctx, testSnapshot(model.Area{Borough: "1", Code: code, Name: code}, 1))
		require.NoError(t, err)
	}
	h := newTestRouter(t, &fakeRunner{}, st)

	w := doRequest(h, http.MethodGet, "/snapshots?area_code=10001", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var recs []store.Record
	require.NoError(t, json.NewDecoder(w.Body).Decode(&recs))
	assert.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "10001", r.AreaCode)
		assert.Nil(t, r.Snapshot)
	}

	w = doRequest(h, http.MethodGet, "/snapshots?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&recs))
	assert.Len(t, recs, 1)

	w = doRequest(h, http.MethodGet, "/snapshots?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_SnapshotsWithoutStore(t *testing.T) {
	h := newTestRouter(t, &fakeRunner{}, nil)

	w := doRequest(h, http.MethodGet, "/snapshots", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(h, http.MethodGet, "/snapshots/latest?borough=1&area_code=10001", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveRun("ok", 3)

	h := buildRouter((&fakeRunner{}).run, nil, reg)
	w := doRequest(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "parcel_leads_runs_total")
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := newTestRouter(t, &fakeRunner{}, nil)

	r := httptest.NewRequest(http.MethodOptions, "/runs", bytes.NewReader(nil))
	r.Header.Set("Origin", "https://example.org")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
