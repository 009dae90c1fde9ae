package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// drain collects every message that arrives on ch within d.
func drain(ch <-chan []byte, d time.Duration) []string {
	var out []string
	deadline := time.After(d)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		case <-deadline:
			return out
		}
	}
}

func countType(msgs []string, typ string) int {
	n := 0
	for _, m := range msgs {
		if strings.Contains(m, "event: "+typ+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishAssignsIncreasingIDs(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "schema.updated", Data: map[string]int64{"term_id": 7}})
	b.Publish(Event{Type: "schema.updated", Data: map[string]int64{"term_id": 8}})

	msgs := drain(ch, 100*time.Millisecond)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if !strings.HasPrefix(msgs[0], "id: 1\nevent: schema.updated\n") || !strings.Contains(msgs[0], `"term_id":7`) {
		t.Errorf("first message = %q", msgs[0])
	}
	if !strings.HasPrefix(msgs[1], "id: 2\n") {
		t.Errorf("second message = %q", msgs[1])
	}
}

func TestPublishSchemaEvent_CoalescesList(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Leading edge: sent at once.
	b.PublishSchemaEvent(KindUpdated, 1)
	// Inside the window: batched for the trailing edge.
	b.PublishSchemaEvent(KindOrphaned, 3)
	b.PublishSchemaEvent(KindDeleted, 2)
	// Unknown kinds are dropped entirely.
	b.PublishSchemaEvent("renamed", 9)

	early := drain(ch, 50*time.Millisecond)
	if got := countType(early, "schema.updated") + countType(early, "schema.orphaned") + countType(early, "schema.deleted"); got != 3 {
		t.Fatalf("schema events = %d, want 3: %q", got, early)
	}
	if countType(early, EventDocTypesChanged) != 1 {
		t.Fatalf("leading doctypes.changed missing: %q", early)
	}
	for _, m := range early {
		if strings.Contains(m, EventDocTypesChanged) && !strings.Contains(m, `"term_ids":[1]`) {
			t.Errorf("leading batch = %q", m)
		}
		if strings.Contains(m, `"term_id":9`) {
			t.Errorf("unknown kind was published: %q", m)
		}
	}

	late := drain(ch, 400*time.Millisecond)
	if countType(late, EventDocTypesChanged) != 1 {
		t.Fatalf("trailing doctypes.changed = %q", late)
	}
	if !strings.Contains(late[0], `"term_ids":[2,3]`) {
		t.Errorf("trailing batch = %q, want sorted ids 2,3", late[0])
	}
}

// syncRecorder guards the body so the test can read it while the handler
// goroutine writes.
type syncRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *syncRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100*time.Millisecond, WithHeartbeat(30*time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

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

	b.Publish(Event{Type: "schema.deleted", Data: map[string]int64{"term_id": 4}})
	time.Sleep(80 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.HasPrefix(body, "retry: 100\n\n") {
		t.Errorf("missing retry hint: %q", body)
	}
	if !strings.Contains(body, "event: schema.deleted") {
		t.Errorf("handler output missing event: %q", body)
	}
	if !strings.Contains(body, ": ping\n\n") {
		t.Errorf("handler output missing heartbeat: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(Event{Type: "test", Data: map[string]int{"i": i}})
	}
	// Reaching here means the loop never blocked on the full client.
	time.Sleep(50 * time.Millisecond)
	if n := len(drain(ch, 50*time.Millisecond)); n != clientBuffer {
		t.Errorf("buffered = %d, want %d", n, clientBuffer)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
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
	b.Publish(Event{Type: "schema.updated", Data: map[string]int64{"term_id": 1}})
	b.PublishSchemaEvent(KindUpdated, 1)
}
