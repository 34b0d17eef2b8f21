// Package sse streams change notifications to browser clients so they know
// when to refetch. Events carry which users are affected; the payload never
// includes record data.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"
)

// Event kinds.
const (
	RecordsChanged     = "records.changed"
	FriendsChanged     = "friends.changed"
	LeaderboardUpdated = "leaderboard.updated"
)

// Event is one broadcast. An event with no Emails goes to every client;
// otherwise only to clients watching one of them and to anonymous clients.
type Event struct {
	Type   string   `json:"type"`
	Emails []string `json:"emails,omitempty"`
	Data   any      `json:"data"`
}

type client struct {
	ch    chan []byte
	email string
}

// Broker fans events out to connected clients.
//
// A single event loop owns the client set and the leaderboard throttle
// timestamp; public methods talk to it over channels.
type Broker struct {
	boardMin time.Duration
	identify func(*http.Request) string

	subscribeCh   chan client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithIdentify sets how ServeHTTP learns which user a stream belongs to.
func WithIdentify(fn func(*http.Request) string) Option {
	return func(b *Broker) { b.identify = fn }
}

// NewBroker creates a broker. Leaderboard refresh hints are sent at most once
// per boardThrottle.
func NewBroker(boardThrottle time.Duration, opts ...Option) *Broker {
	if boardThrottle <= 0 {
		boardThrottle = 2 * time.Second
	}

	b := &Broker{
		boardMin:      boardThrottle,
		identify:      defaultIdentify,
		subscribeCh:   make(chan client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}

	go b.run()
	return b
}

// EventSource cannot set headers, so the query string is tried first.
func defaultIdentify(r *http.Request) string {
	if e := r.URL.Query().Get("email"); e != "" {
		return strings.ToLower(strings.TrimSpace(e))
	}
	return strings.ToLower(strings.TrimSpace(r.Header.Get("X-User-Email")))
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var lastBoard time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, email := range clients {
			if len(event.Emails) > 0 && email != "" && !slices.Contains(event.Emails, email) {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case c := <-b.subscribeCh:
			clients[c.ch] = c.email

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case event := <-b.changeCh:
			broadcast(event)

			now := time.Now()
			if now.Sub(lastBoard) >= b.boardMin {
				lastBoard = now
				broadcast(Event{Type: LeaderboardUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the event loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client watching email ("" watches everything).
func (b *Broker) Subscribe(email string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- client{ch: ch, email: email}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event as is.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// Notify announces that data owned by emails changed. It is followed by a
// throttled leaderboard.updated hint to everyone.
func (b *Broker) Notify(kind string, emails ...string) {
	if b.closed.Load() {
		return
	}
	emails = slices.Clone(emails)
	for i, e := range emails {
		emails[i] = strings.ToLower(strings.TrimSpace(e))
	}
	event := Event{Type: kind, Emails: emails, Data: map[string][]string{"emails": emails}}
	select {
	case b.changeCh <- event:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(b.identify(r))
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
