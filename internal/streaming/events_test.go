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

package streaming

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewEventStream(t *testing.T) {
	stream := NewEventStream("test-stream")

	if stream.ID != "test-stream" {
		t.Errorf("Expected stream ID 'test-stream', got '%s'", stream.ID)
	}
	if stream.closed {
		t.Error("Expected stream to be open initially")
	}
	if len(stream.GetEvents()) != 0 {
		t.Error("Expected no events initially")
	}
}

func TestEventStream_Callback(t *testing.T) {
	stream := NewEventStream("test-stream")
	var received []Event
	stream.AddCallback(func(event Event) {
		received = append(received, event)
	})

	stream.EmitProgress(StageAnalyze, "Analyzing idea", 30, map[string]interface{}{"key": "value"})
	stream.EmitProgress(StageKeywords, "Extracting keywords", 50, nil)

	if len(received) != 2 {
		t.Fatalf("Expected 2 callback events, got %d", len(received))
	}
	if received[0].Stage != StageAnalyze || received[1].Stage != StageKeywords {
		t.Errorf("Callbacks out of order: %+v", received)
	}
	if received[0].Data["key"] != "value" {
		t.Error("Expected data to be preserved")
	}
	if received[0].ID == "" || received[0].ID == received[1].ID {
		t.Error("Expected unique event IDs")
	}
	if received[0].Timestamp.IsZero() {
		t.Error("Expected event to have a timestamp")
	}
}

func TestEventStream_EmitErrorAndComplete(t *testing.T) {
	stream := NewEventStream("test-stream")

	stream.EmitError(StageEnhance, "Failed to enhance the analysis", nil)
	stream.EmitComplete("Done", map[string]interface{}{"status": "ready"})

	events := stream.GetEvents()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventTypeError || events[0].Error != "Failed to enhance the analysis" {
		t.Errorf("Unexpected error event: %+v", events[0])
	}
	if !events[0].Final() || !events[1].Final() {
		t.Error("Expected error and complete events to be final")
	}
	if events[1].Stage != StageComplete || events[1].Progress != 100 {
		t.Errorf("Unexpected complete event: %+v", events[1])
	}
}

func TestEventStream_Subscribe(t *testing.T) {
	stream := NewEventStream("test-stream")
	stream.EmitProgress(StageValidate, "Validating", 10, nil)

	past, ch, cancel := stream.Subscribe()
	defer cancel()

	if len(past) != 1 || past[0].Stage != StageValidate {
		t.Fatalf("Expected replay of earlier event, got %+v", past)
	}

	stream.EmitProgress(StageAnalyze, "Analyzing", 30, nil)

	select {
	case event := <-ch:
		if event.Stage != StageAnalyze {
			t.Errorf("Expected analyze event, got %s", event.Stage)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}

	stream.Close()
	if _, ok := <-ch; ok {
		t.Error("Expected channel to be closed after stream close")
	}

	// cancel after close must not panic
	cancel()
}

func TestEventStream_SubscribeClosed(t *testing.T) {
	stream := NewEventStream("test-stream")
	stream.EmitComplete("Done", nil)
	stream.Close()

	past, ch, cancel := stream.Subscribe()
	defer cancel()
	if len(past) != 1 {
		t.Errorf("Expected 1 past event, got %d", len(past))
	}
	if _, ok := <-ch; ok {
		t.Error("Expected closed channel")
	}
}

func TestEventStream_Close(t *testing.T) {
	stream := NewEventStream("test-stream")
	called := false
	stream.AddCallback(func(Event) { called = true })

	stream.Close()
	stream.EmitProgress(StageAnalyze, "ignored", 10, nil)

	if called {
		t.Error("Expected no callbacks after close")
	}
	if len(stream.GetEvents()) != 0 {
		t.Error("Expected no events recorded after close")
	}
	stream.Close()
}

func TestNilStreamIsNoop(t *testing.T) {
	var stream *EventStream
	stream.EmitProgress(StageAnalyze, "nothing", 10, nil)
	stream.EmitError(StageAnalyze, "nothing", nil)
	stream.EmitComplete("nothing", nil)
}

func TestEvent_ToSSEMessage(t *testing.T) {
	event := Event{
		ID:        "evt-1",
		Type:      EventTypeProgress,
		Stage:     StageTool,
		Message:   "Calling getNews",
		Progress:  60,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	msg := event.ToSSEMessage()
	if !strings.HasPrefix(msg, "id: evt-1\nevent: progress\ndata: ") {
		t.Errorf("Unexpected SSE framing: %q", msg)
	}
	if !strings.HasSuffix(msg, "\n\n") {
		t.Error("Expected SSE message to end with a blank line")
	}

	payload := strings.TrimSuffix(strings.SplitN(msg, "data: ", 2)[1], "\n\n")
	var decoded Event
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("Failed to decode SSE payload: %v", err)
	}
	if decoded.Stage != StageTool || decoded.Message != "Calling getNews" {
		t.Errorf("Unexpected decoded event: %+v", decoded)
	}
}

func TestStreamManager(t *testing.T) {
	manager := NewStreamManager()

	first := manager.CreateStream("session-1")
	_, ch, _ := first.Subscribe()

	second := manager.CreateStream("session-1")
	if first == second {
		t.Fatal("Expected a fresh stream")
	}
	if _, ok := <-ch; ok {
		t.Error("Expected previous stream subscribers to be closed")
	}

	got, exists := manager.GetStream("session-1")
	if !exists || got != second {
		t.Error("Expected to retrieve the latest stream")
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 stream, got %d", manager.Count())
	}

	manager.CloseStream("session-1")
	if _, exists := manager.GetStream("session-1"); exists {
		t.Error("Expected stream to be removed")
	}
}

func TestStreamManager_CleanupOldStreams(t *testing.T) {
	manager := NewStreamManager()
	old := manager.CreateStream("old")
	old.CreatedAt = time.Now().Add(-time.Hour)
	manager.CreateStream("new")

	if removed := manager.CleanupOldStreams(30 * time.Minute); removed != 1 {
		t.Errorf("Expected 1 stream removed, got %d", removed)
	}
	if _, exists := manager.GetStream("old"); exists {
		t.Error("Expected old stream to be removed")
	}
	if _, exists := manager.GetStream("new"); !exists {
		t.Error("Expected new stream to remain")
	}
}

func TestStreamManager_RunCleanupStops(t *testing.T) {
	manager := NewStreamManager()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.RunCleanup(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not stop")
	}
}

func TestContextStream(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("Expected nil stream on bare context")
	}
	stream := NewEventStream("ctx")
	if FromContext(WithStream(context.Background(), stream)) != stream {
		t.Error("Expected stream from context")
	}
}

func TestConcurrentEventEmission(t *testing.T) {
	stream := NewEventStream("test-stream")
	_, ch, cancel := stream.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stream.EmitProgress(StageTool, "tool", i, nil)
		}(i)
	}
	wg.Wait()

	if len(stream.GetEvents()) != 10 {
		t.Errorf("Expected 10 events, got %d", len(stream.GetEvents()))
	}
	if len(ch) != 10 {
		t.Errorf("Expected 10 buffered subscriber events, got %d", len(ch))
	}
}
