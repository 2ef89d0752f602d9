// Package httpapi exposes a read-only introspection surface over a running
// Agent's Graph, using chi for route registration and JSON responses. It
// carries only four endpoints: this is not a general-purpose agent server,
// it never mutates the Graph.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/taskgraph/internal/graph"
	"github.com/haasonsaas/taskgraph/internal/observability"
)

// TaskView is the JSON projection of one Graph task, merging its immutable
// Task fields with its mutable TaskDesc fields.
type TaskView struct {
	ID           int64     `json:"id"`
	Prompt       string    `json:"prompt"`
	Tools        []string  `json:"tools,omitempty"`
	Result       string    `json:"result,omitempty"`
	Status       string    `json:"status"`
	ParentID     *int64    `json:"parent_id,omitempty"`
	Dependencies []int64   `json:"dependencies,omitempty"`
	StartTime    time.Time `json:"start_time,omitempty"`
	EndTime      time.Time `json:"end_time,omitempty"`
}

// Router builds the chi.Mux serving the introspection API.
func Router(g *graph.Graph, metrics *observability.Metrics, logger *observability.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	if metrics != nil {
		r.Use(metricsMiddleware(metrics))
	}

	r.Get("/healthz", handleHealthz)
	r.Get("/v1/tasks", handleListTasks(g))
	r.Get("/v1/tasks/{id}", handleGetTask(g))
	if metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	}

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleListTasks(g *graph.Graph) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		descs := g.Snapshot()
		views := make([]TaskView, 0, len(descs))
		for _, desc := range descs {
			view, ok := taskView(g, desc.ID)
			if ok {
				views = append(views, view)
			}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGetTask(g *graph.Graph) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idParam := chi.URLParam(r, "id")
		id, err := strconv.ParseInt(idParam, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid task id"})
			return
		}
		view, ok := taskView(g, id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func taskView(g *graph.Graph, id int64) (TaskView, bool) {
	task, ok := g.Task(id)
	if !ok {
		return TaskView{}, false
	}
	desc, ok := g.Desc(id)
	if !ok {
		return TaskView{}, false
	}

	view := TaskView{
		ID:           task.ID,
		Prompt:       task.Prompt,
		Tools:        task.Tools,
		Result:       task.Result,
		Status:       desc.Status.String(),
		Dependencies: desc.Dependencies,
		StartTime:    desc.StartTime,
		EndTime:      desc.EndTime,
	}
	if desc.HasParent {
		parentID := desc.ParentID
		view.ParentID = &parentID
	}
	return view, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
