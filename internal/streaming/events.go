// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package streaming provides progress event management for real-time
// pipeline updates over Server-Sent Events
package streaming

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents different types of progress events
type EventType string

const (
	// EventTypeProgress represents a progress update event
	EventTypeProgress EventType = "progress"
	// EventTypeError represents an error event
	EventTypeError EventType = "error"
	// EventTypeComplete represents a completion event
	EventTypeComplete EventType = "complete"
)

// StageType represents the pipeline step an event belongs to
type StageType string

const (
	StageValidate StageType = "validate"
	StageAnalyze  StageType = "analyze"
	StageKeywords StageType = "keywords"
	StageEnhance  StageType = "enhance"
	StageScore    StageType = "score"
	// StageTool marks a model-invoked lookup
	StageTool     StageType = "tool"
	StageComplete StageType = "complete"
)

// subscriberBuffer bounds how far a slow SSE client may lag before events
// are dropped for it
const subscriberBuffer = 64

// Event represents a streaming progress event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Stage     StageType              `json:"stage"`
	Message   string                 `json:"message"`
	Progress  int                    `json:"progress"` // 0-100
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Final reports whether the event ends an operation
func (e Event) Final() bool {
	return e.Type == EventTypeComplete || e.Type == EventTypeError
}

// ToSSEMessage converts an event to Server-Sent Events format
func (e Event) ToSSEMessage() string {
	data, _ := json.Marshal(e)
	return "id: " + e.ID + "\nevent: " + string(e.Type) + "\ndata: " + string(data) + "\n\n"
}

// ProgressCallback is called synchronously for every emitted event
type ProgressCallback func(event Event)

// EventStream manages a stream of progress events
type EventStream struct {
	ID        string
	CreatedAt time.Time

	callbacks   []ProgressCallback
	subscribers map[int]chan Event
	nextSub     int
	events      []Event
	mutex       sync.RWMutex
	closed      bool
}

// NewEventStream creates a new event stream
func NewEventStream(streamID string) *EventStream {
	return &EventStream{
		ID:          streamID,
		CreatedAt:   time.Now(),
		subscribers: make(map[int]chan Event),
	}
}

// AddCallback adds a progress callback to the stream
func (es *EventStream) AddCallback(callback ProgressCallback) {
	es.mutex.Lock()
	defer es.mutex.Unlock()

	if !es.closed {
		es.callbacks = append(es.callbacks, callback)
	}
}

// Subscribe returns the events emitted so far and a channel carrying the
// ones that follow. The channel is closed when the stream closes or cancel
// is called.
func (es *EventStream) Subscribe() ([]Event, <-chan Event, func()) {
	es.mutex.Lock()
	defer es.mutex.Unlock()

	past := make([]Event, len(es.events))
	copy(past, es.events)

	ch := make(chan Event, subscriberBuffer)
	if es.closed {
		close(ch)
		return past, ch, func() {}
	}

	id := es.nextSub
	es.nextSub++
	es.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			es.mutex.Lock()
			defer es.mutex.Unlock()
			if sub, ok := es.subscribers[id]; ok {
				delete(es.subscribers, id)
				close(sub)
			}
		})
	}
	return past, ch, cancel
}

// EmitEvent records an event and notifies callbacks and subscribers
func (es *EventStream) EmitEvent(eventType EventType, stage StageType, message string, progress int, data map[string]interface{}) {
	es.emit(Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Stage:     stage,
		Message:   message,
		Progress:  progress,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// EmitProgress is a convenience method for emitting progress events
func (es *EventStream) EmitProgress(stage StageType, message string, progress int, data map[string]interface{}) {
	es.EmitEvent(EventTypeProgress, stage, message, progress, data)
}

// EmitError emits an error event. message is shown to users; err is kept
// out of the event.
func (es *EventStream) EmitError(stage StageType, message string, data map[string]interface{}) {
	es.emit(Event{
		ID:        uuid.New().String(),
		Type:      EventTypeError,
		Stage:     stage,
		Message:   message,
		Progress:  100,
		Timestamp: time.Now(),
		Data:      data,
		Error:     message,
	})
}

// EmitComplete emits a completion event
func (es *EventStream) EmitComplete(message string, data map[string]interface{}) {
	es.EmitEvent(EventTypeComplete, StageComplete, message, 100, data)
}

// emit is a no-op on a nil stream so callers need not check FromContext
func (es *EventStream) emit(event Event) {
	if es == nil {
		return
	}
	es.mutex.Lock()
	if es.closed {
		es.mutex.Unlock()
		return
	}
	es.events = append(es.events, event)
	for _, sub := range es.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
	callbacks := make([]ProgressCallback, len(es.callbacks))
	copy(callbacks, es.callbacks)
	es.mutex.Unlock()

	for _, callback := range callbacks {
		callback(event)
	}
}

// Close closes the event stream and all subscriber channels
func (es *EventStream) Close() {
	es.mutex.Lock()
	defer es.mutex.Unlock()

	if es.closed {
		return
	}
	es.closed = true
	es.callbacks = nil
	for id, sub := range es.subscribers {
		close(sub)
		delete(es.subscribers, id)
	}
}

// GetEvents returns all events in the stream
func (es *EventStream) GetEvents() []Event {
	es.mutex.RLock()
	defer es.mutex.RUnlock()

	events := make([]Event, len(es.events))
	copy(events, es.events)
	return events
}

// StreamManager manages one event stream per session
type StreamManager struct {
	streams map[string]*EventStream
	mutex   sync.RWMutex
}

// NewStreamManager creates a new stream manager
func NewStreamManager() *StreamManager {
	return &StreamManager{
		streams: make(map[string]*EventStream),
	}
}

// CreateStream starts a fresh stream for streamID, closing any previous one
func (sm *StreamManager) CreateStream(streamID string) *EventStream {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if old, exists := sm.streams[streamID]; exists {
		old.Close()
	}
	stream := NewEventStream(streamID)
	sm.streams[streamID] = stream
	return stream
}

// GetStream retrieves an existing event stream
func (sm *StreamManager) GetStream(streamID string) (*EventStream, bool) {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	stream, exists := sm.streams[streamID]
	return stream, exists
}

// CloseStream closes and removes an event stream
func (sm *StreamManager) CloseStream(streamID string) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if stream, exists := sm.streams[streamID]; exists {
		stream.Close()
		delete(sm.streams, streamID)
	}
}

// Count returns the number of open streams
func (sm *StreamManager) Count() int {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return len(sm.streams)
}

// CleanupOldStreams removes streams created before maxAge ago
func (sm *StreamManager) CleanupOldStreams(maxAge time.Duration) int {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for streamID, stream := range sm.streams {
		if stream.CreatedAt.Before(cutoff) {
			stream.Close()
			delete(sm.streams, streamID)
			removed++
		}
	}
	return removed
}

// RunCleanup removes old streams every interval until ctx is done
func (sm *StreamManager) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupOldStreams(maxAge)
		}
	}
}

type streamKey struct{}

// WithStream attaches stream to ctx so stages deep in a call can report
// progress
func WithStream(ctx context.Context, stream *EventStream) context.Context {
	return context.WithValue(ctx, streamKey{}, stream)
}

// FromContext returns the stream attached to ctx, or nil
func FromContext(ctx context.Context) *EventStream {
	stream, _ := ctx.Value(streamKey{}).(*EventStream)
	return stream
}
