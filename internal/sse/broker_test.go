package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// eventType extracts the event: line of a frame.
func eventType(frame []byte) string {
	for _, line := range strings.Split(string(frame), "\n") {
		if strings.HasPrefix(line, "event: ") {
			return strings.TrimPrefix(line, "event: ")
		}
	}
	return ""
}

// drain collects the event types buffered in ch after the broker loop has
// had time to deliver.
func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var types []string
	for {
		select {
		case msg := <-ch:
			types = append(types, eventType(msg))
		default:
			return types
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishMapEvent(KindCreated, "yard")

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: 1\n") {
			t.Errorf("missing sequence id in %q", s)
		}
		if eventType(msg) != "map.created" {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `data: {"mapId":"yard"}`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishMapEvent_CatalogThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// First event should trigger catalog.updated.
	b.PublishMapEvent(KindCreated, "a")
	// Second event immediately should NOT trigger another catalog.updated.
	b.PublishMapEvent(KindUpdated, "b")

	catalogCount, mapCount := 0, 0
	for _, typ := range drain(ch) {
		if typ == "catalog.updated" {
			catalogCount++
		} else {
			mapCount++
		}
	}

	if mapCount != 2 {
		t.Errorf("map events = %d, want 2", mapCount)
	}
	if catalogCount != 1 {
		t.Errorf("catalog events = %d, want 1 (throttled)", catalogCount)
	}
}

func TestSessionEventsDoNotTouchCatalog(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishMapEvent(KindOpened, "yard")
	b.PublishMapEvent(KindChanged, "yard")
	b.PublishMapEvent(KindClosed, "yard")

	want := []string{"map.opened", "map.changed", "map.closed"}
	if got := drain(ch); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestMapFilter(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	yard := b.Subscribe("yard")
	defer b.Unsubscribe(yard)
	all := b.Subscribe("")
	defer b.Unsubscribe(all)

	b.PublishMapEvent(KindChanged, "dock")
	b.PublishMapEvent(KindChanged, "yard")
	time.Sleep(10 * time.Millisecond)
	b.PublishMapEvent(KindSaved, "dock")

	// The yard client still sees catalog.updated triggered by the dock save.
	if got := strings.Join(drain(yard), ","); got != "map.changed,catalog.updated" {
		t.Errorf("filtered client got %s", got)
	}
	if got := strings.Join(drain(all), ","); got != "map.changed,map.changed,map.saved,catalog.updated" {
		t.Errorf("unfiltered client got %s", got)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?map=x", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishMapEvent(KindChanged, "x")
	b.PublishMapEvent(KindChanged, "other")
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: map.changed") || !strings.Contains(body, `"mapId":"x"`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if strings.Contains(body, `"mapId":"other"`) {
		t.Errorf("handler leaked an event for another map: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandlerHeartbeat(t *testing.T) {
	b := NewBroker(time.Second, WithHeartbeat(20*time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(w.Body.String(), ": keep-alive\n\n") {
		t.Errorf("no heartbeat in %q", w.Body.String())
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Fill buffer and then some more should not block.
	for i := 0; i < clientBuffer+6; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "map.changed", Data: map[string]string{"mapId": "x"}})
	b.PublishMapEvent(KindChanged, "x")
}
