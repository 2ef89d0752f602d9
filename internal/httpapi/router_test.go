package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/taskgraph/internal/graph"
	"github.com/haasonsaas/taskgraph/internal/observability"
)

func newTestGraph() *graph.Graph {
	g := graph.New(nil, nil)
	id := g.CreateTask("summarize the report", []string{"search"})
	_ = g.SetStatus(id, graph.StatusCompleted)
	_ = g.SetResult(id, "done")
	return g
}

func TestHealthzReturnsOK(t *testing.T) {
	r := Router(newTestGraph(), nil, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListTasksReturnsAllTasks(t *testing.T) {
	r := Router(newTestGraph(), nil, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var views []TaskView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "summarize the report", views[0].Prompt)
	assert.Equal(t, "COMPLETED", views[0].Status)
}

func TestGetTaskReturnsSingleTask(t *testing.T) {
	g := newTestGraph()
	r := Router(g, nil, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/1", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var view TaskView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, int64(1), view.ID)
	assert.Equal(t, "done", view.Result)
}

func TestGetTaskReturns404ForUnknownID(t *testing.T) {
	r := Router(newTestGraph(), nil, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/999", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTaskRejectsNonNumericID(t *testing.T) {
	r := Router(newTestGraph(), nil, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/abc", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpointExposesRegisteredSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	metrics.TasksCreated.Inc()

	r := Router(newTestGraph(), metrics, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
