// This file implements an in-memory event timeline for replaying a single
// task's think->call-tool->observe history during debugging. It tracks
// task/tool/model events only; it has no notion of chat sessions, edge
// daemons, or approval workflows.
package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// EventType categorizes timeline events.
type EventType string

const (
	EventTypeTaskStart   EventType = "task.start"
	EventTypeTaskEnd     EventType = "task.end"
	EventTypeTaskError   EventType = "task.error"
	EventTypeToolStart   EventType = "tool.start"
	EventTypeToolEnd     EventType = "tool.end"
	EventTypeToolError   EventType = "tool.error"
	EventTypeModelRequest  EventType = "model.request"
	EventTypeModelResponse EventType = "model.response"
	EventTypeModelError    EventType = "model.error"
)

// Event represents a single point in a task's execution timeline.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TaskID    int64          `json:"task_id"`
	Name      string         `json:"name,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Duration  time.Duration  `json:"duration_ns,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// EventStore stores and retrieves task timeline events.
type EventStore interface {
	Record(event *Event) error
	GetByTaskID(taskID int64) ([]*Event, error)
	Get(id string) (*Event, error)
	Delete(olderThan time.Duration) (int, error)
}

// MemoryEventStore is an in-memory, size-bounded EventStore.
type MemoryEventStore struct {
	mu      sync.RWMutex
	events  map[string]*Event
	byTask  map[int64][]string
	maxSize int
}

// NewMemoryEventStore creates a store that evicts its oldest 10% of events
// once maxSize is reached.
func NewMemoryEventStore(maxSize int) *MemoryEventStore {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &MemoryEventStore{
		events:  make(map[string]*Event),
		byTask:  make(map[int64][]string),
		maxSize: maxSize,
	}
}

func (s *MemoryEventStore) Record(event *Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}
	if event.ID == "" {
		event.ID = generateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) >= s.maxSize {
		s.evictOldest()
	}

	s.events[event.ID] = event
	s.byTask[event.TaskID] = append(s.byTask[event.TaskID], event.ID)

	return nil
}

func (s *MemoryEventStore) GetByTaskID(taskID int64) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byTask[taskID]
	events := make([]*Event, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.events[id]; ok {
			events = append(events, e)
		}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events, nil
}

func (s *MemoryEventStore) Get(id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("event not found: %s", id)
	}
	return e, nil
}

func (s *MemoryEventStore) Delete(olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	deleted := 0

	for id, e := range s.events {
		if e.Timestamp.Before(cutoff) {
			delete(s.events, id)
			deleted++
		}
	}

	for taskID, ids := range s.byTask {
		var remaining []string
		for _, id := range ids {
			if _, ok := s.events[id]; ok {
				remaining = append(remaining, id)
			}
		}
		if len(remaining) == 0 {
			delete(s.byTask, taskID)
		} else {
			s.byTask[taskID] = remaining
		}
	}

	return deleted, nil
}

func (s *MemoryEventStore) evictOldest() {
	toRemove := s.maxSize / 10
	if toRemove < 1 {
		toRemove = 1
	}

	events := make([]*Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	for i := 0; i < toRemove && i < len(events); i++ {
		delete(s.events, events[i].ID)
	}
}

// EventRecorder records task timeline events and mirrors them to a Logger.
type EventRecorder struct {
	store  EventStore
	logger *Logger
}

// NewEventRecorder creates a recorder writing into store and logger.
func NewEventRecorder(store EventStore, logger *Logger) *EventRecorder {
	return &EventRecorder{store: store, logger: logger}
}

func (r *EventRecorder) record(ctx context.Context, taskID int64, eventType EventType, name string, data map[string]any, recErr error) error {
	if data == nil {
		data = make(map[string]any)
	}
	event := &Event{
		ID:     generateEventID(),
		Type:   eventType,
		TaskID: taskID,
		Name:   name,
		Data:   data,
	}
	if recErr != nil {
		event.Error = recErr.Error()
		r.logger.Error(ctx, "task event recorded", "event_type", string(eventType), "task_id", taskID, "error", recErr)
	} else {
		r.logger.Debug(ctx, "task event recorded", "event_type", string(eventType), "task_id", taskID)
	}
	return r.store.Record(event)
}

// RecordTaskStart records a task entering the Running status.
func (r *EventRecorder) RecordTaskStart(ctx context.Context, taskID int64, description string) error {
	return r.record(ctx, taskID, EventTypeTaskStart, description, nil, nil)
}

// RecordTaskEnd records a task reaching a terminal status.
func (r *EventRecorder) RecordTaskEnd(ctx context.Context, taskID int64, duration time.Duration, err error) error {
	data := map[string]any{"duration_ms": duration.Milliseconds()}
	if err != nil {
		return r.record(ctx, taskID, EventTypeTaskError, "task failed", data, err)
	}
	return r.record(ctx, taskID, EventTypeTaskEnd, "task completed", data, nil)
}

// RecordToolCall records one tool dispatch within a task's runner loop.
func (r *EventRecorder) RecordToolCall(ctx context.Context, taskID int64, toolName string, args json.RawMessage, duration time.Duration, err error) error {
	data := map[string]any{
		"tool_name":   toolName,
		"duration_ms": duration.Milliseconds(),
		"arguments":   string(args),
	}
	if err != nil {
		return r.record(ctx, taskID, EventTypeToolError, toolName, data, err)
	}
	return r.record(ctx, taskID, EventTypeToolEnd, toolName, data, nil)
}

// RecordModelCall records one Model.Complete round trip within a task.
func (r *EventRecorder) RecordModelCall(ctx context.Context, taskID int64, provider, model string, duration time.Duration, err error) error {
	data := map[string]any{
		"provider":    provider,
		"model":       model,
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		return r.record(ctx, taskID, EventTypeModelError, provider, data, err)
	}
	return r.record(ctx, taskID, EventTypeModelResponse, provider, data, nil)
}

// Timeline is a display-ready rendering of one task's event history.
type Timeline struct {
	TaskID    int64            `json:"task_id"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Duration  time.Duration    `json:"duration"`
	Events    []*Event         `json:"events"`
	Summary   *TimelineSummary `json:"summary"`
}

// TimelineSummary aggregates counts across a Timeline's events.
type TimelineSummary struct {
	TotalEvents int `json:"total_events"`
	ErrorCount  int `json:"error_count"`
	ToolCalls   int `json:"tool_calls"`
	ModelCalls  int `json:"model_calls"`
}

// BuildTimeline assembles a Timeline from a task's events, sorted by time.
func BuildTimeline(taskID int64, events []*Event) *Timeline {
	if len(events) == 0 {
		return &Timeline{TaskID: taskID, Summary: &TimelineSummary{}}
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	timeline := &Timeline{
		TaskID:    taskID,
		Events:    events,
		StartTime: events[0].Timestamp,
		EndTime:   events[len(events)-1].Timestamp,
		Duration:  events[len(events)-1].Timestamp.Sub(events[0].Timestamp),
		Summary:   &TimelineSummary{TotalEvents: len(events)},
	}

	for _, e := range events {
		if e.Error != "" {
			timeline.Summary.ErrorCount++
		}
		switch e.Type {
		case EventTypeToolStart:
			timeline.Summary.ToolCalls++
		case EventTypeModelRequest:
			timeline.Summary.ModelCalls++
		}
	}

	return timeline
}

// FormatTimeline renders a Timeline as indented plain text, for CLI output.
func FormatTimeline(timeline *Timeline) string {
	if timeline == nil || len(timeline.Events) == 0 {
		return "no events recorded"
	}

	result := fmt.Sprintf("=== Task %d ===\n", timeline.TaskID)
	result += fmt.Sprintf("duration: %v, events: %d, errors: %d\n\n",
		timeline.Duration, timeline.Summary.TotalEvents, timeline.Summary.ErrorCount)

	for i, e := range timeline.Events {
		prefix := "├─"
		if i == len(timeline.Events)-1 {
			prefix = "└─"
		}
		result += fmt.Sprintf("%s [%s] %s: %s\n", prefix, e.Timestamp.Format("15:04:05.000"), e.Type, e.Name)
		if e.Error != "" {
			result += fmt.Sprintf("   error: %s\n", e.Error)
		}
	}

	return result
}

var (
	eventIDCounter int64
	eventIDMu      sync.Mutex
)

func generateEventID() string {
	eventIDMu.Lock()
	defer eventIDMu.Unlock()
	eventIDCounter++
	return fmt.Sprintf("evt_%d", eventIDCounter)
}
