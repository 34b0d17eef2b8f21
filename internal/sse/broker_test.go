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

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("a@x.com")
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

	b.Publish(Event{Type: RecordsChanged, Data: map[string]string{"habit": "h1"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: records.changed") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"habit":"h1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestNotify_Audience(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	alice := b.Subscribe("a@x.com")
	bob := b.Subscribe("b@x.com")
	anon := b.Subscribe("")
	defer b.Unsubscribe(alice)
	defer b.Unsubscribe(bob)
	defer b.Unsubscribe(anon)

	b.Notify(RecordsChanged, " A@x.com")

	count := func(msgs []string, kind string) int {
		n := 0
		for _, m := range msgs {
			if strings.Contains(m, "event: "+kind) {
				n++
			}
		}
		return n
	}
	a, bb, an := drain(alice), drain(bob), drain(anon)
	if count(a, RecordsChanged) != 1 || count(an, RecordsChanged) != 1 {
		t.Errorf("alice/anon missed the change: %q / %q", a, an)
	}
	if count(bb, RecordsChanged) != 0 {
		t.Errorf("bob got alice's change: %q", bb)
	}
	if count(bb, LeaderboardUpdated) != 1 {
		t.Errorf("leaderboard hint should reach everyone: %q", bb)
	}
}

func TestNotify_LeaderboardThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Notify(RecordsChanged, "a@x.com")
	b.Notify(FriendsChanged, "a@x.com", "b@x.com")

	boards, changes := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, LeaderboardUpdated) {
			boards++
		} else {
			changes++
		}
	}
	if changes != 2 {
		t.Errorf("change events = %d, want 2", changes)
	}
	if boards != 1 {
		t.Errorf("leaderboard events = %d, want 1 (throttled)", boards)
	}
}

// flushRecorder guards the body so the test can read it while the handler
// still runs.
type flushRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (f *flushRecorder) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Write(p)
}

func (f *flushRecorder) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ResponseRecorder.Body.String()
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?email=b@x.com", nil)
	req = req.WithContext(ctx)
	w := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Notify(RecordsChanged, "a@x.com")
	b.Notify(FriendsChanged, "b@x.com")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if strings.Contains(body, "event: records.changed") {
		t.Errorf("stream for b got a's change: %q", body)
	}
	if !strings.Contains(body, "event: friends.changed") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
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

	b.Publish(Event{Type: RecordsChanged})
	b.Notify(RecordsChanged, "a@x.com")
}
