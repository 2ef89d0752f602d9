package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder() (*EventRecorder, *MemoryEventStore) {
	store := NewMemoryEventStore(100)
	logger := NewLogger(LogConfig{Output: &bytes.Buffer{}})
	return NewEventRecorder(store, logger), store
}

func TestEventRecorderRecordsTaskLifecycle(t *testing.T) {
	rec, store := newTestRecorder()
	ctx := context.Background()

	require.NoError(t, rec.RecordTaskStart(ctx, 1, "fetch data"))
	require.NoError(t, rec.RecordToolCall(ctx, 1, "http_get", json.RawMessage(`{"url":"x"}`), 5*time.Millisecond, nil))
	require.NoError(t, rec.RecordTaskEnd(ctx, 1, 10*time.Millisecond, nil))

	events, err := store.GetByTaskID(1)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventTypeTaskStart, events[0].Type)
	assert.Equal(t, EventTypeToolEnd, events[1].Type)
	assert.Equal(t, EventTypeTaskEnd, events[2].Type)
}

func TestEventRecorderRecordsTaskFailure(t *testing.T) {
	rec, store := newTestRecorder()
	ctx := context.Background()

	require.NoError(t, rec.RecordTaskEnd(ctx, 2, time.Second, errors.New("boom")))

	events, err := store.GetByTaskID(2)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeTaskError, events[0].Type)
	assert.Equal(t, "boom", events[0].Error)
}

func TestMemoryEventStoreEvictsOldestOnOverflow(t *testing.T) {
	store := NewMemoryEventStore(10)
	for i := 0; i < 15; i++ {
		require.NoError(t, store.Record(&Event{TaskID: int64(i), Timestamp: time.Now().Add(time.Duration(i) * time.Millisecond)}))
	}
	// with a cap of 10 each of the last 5 records evicts the single oldest
	// event, so exactly 10 remain
	count := 0
	for i := 0; i < 15; i++ {
		events, _ := store.GetByTaskID(int64(i))
		count += len(events)
	}
	assert.Equal(t, 10, count)
}

func TestBuildTimelineSummarizesEvents(t *testing.T) {
	now := time.Now()
	events := []*Event{
		{Type: EventTypeTaskStart, Timestamp: now},
		{Type: EventTypeToolStart, Timestamp: now.Add(time.Millisecond)},
		{Type: EventTypeModelRequest, Timestamp: now.Add(2 * time.Millisecond)},
		{Type: EventTypeTaskEnd, Timestamp: now.Add(3 * time.Millisecond)},
	}
	timeline := BuildTimeline(5, events)
	assert.Equal(t, int64(5), timeline.TaskID)
	assert.Equal(t, 4, timeline.Summary.TotalEvents)
	assert.Equal(t, 1, timeline.Summary.ToolCalls)
	assert.Equal(t, 1, timeline.Summary.ModelCalls)
}

func TestFormatTimelineHandlesEmpty(t *testing.T) {
	assert.Equal(t, "no events recorded", FormatTimeline(&Timeline{}))
}
