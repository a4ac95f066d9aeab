// Package sse implements a Server-Sent Events broker for map change notifications.
package sse

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast. An event with a MapID reaches
// only clients watching that map or watching everything.
type Event struct {
	Type  string `json:"type"`
	Data  any    `json:"data"`
	MapID string `json:"-"`
}

// Map event kinds. Session kinds come from the workspace, catalog kinds from
// the storage watcher.
const (
	KindOpened  = "opened"
	KindChanged = "changed"
	KindSaved   = "saved"
	KindClosed  = "closed"
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// touchesCatalog reports whether an event of kind alters the stored map set.
func touchesCatalog(kind string) bool {
	switch kind {
	case KindSaved, KindCreated, KindUpdated, KindDeleted:
		return true
	}
	return false
}

const (
	clientBuffer     = 64
	defaultHeartbeat = 25 * time.Second
)

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat sets how often idle streams receive a keep-alive comment.
// Zero disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

type subscription struct {
	ch    chan []byte
	mapID string // empty: every map
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients, event sequence, catalog throttle timestamp). Public methods
// communicate with this loop through channels, so no mutexes are required.
type Broker struct {
	catalogMin time.Duration
	heartbeat  time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given catalog.updated throttle
// interval.
func NewBroker(catalogThrottle time.Duration, opts ...Option) *Broker {
	if catalogThrottle <= 0 {
		catalogThrottle = 2 * time.Second
	}

	b := &Broker{
		catalogMin:    catalogThrottle,
		heartbeat:     defaultHeartbeat,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

// frame renders event in wire format.
func frame(seq uint64, event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(payload)+len(event.Type)+32)
	buf = append(buf, "id: "...)
	buf = strconv.AppendUint(buf, seq, 10)
	buf = append(buf, "\nevent: "...)
	buf = append(buf, event.Type...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, payload...)
	return append(buf, "\n\n"...), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	var (
		seq         uint64
		lastCatalog time.Time
	)

	broadcast := func(event Event) {
		seq++
		raw, err := frame(seq, event)
		if err != nil {
			return
		}
		for ch, filter := range clients {
			if filter != "" && event.MapID != "" && filter != event.MapID {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
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

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.mapID

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

			kind, isMap := mapKind(event.Type)
			if !isMap || !touchesCatalog(kind) {
				continue
			}
			now := time.Now()
			if now.Sub(lastCatalog) >= b.catalogMin {
				lastCatalog = now
				broadcast(Event{Type: "catalog.updated", Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

func mapKind(eventType string) (string, bool) {
	const prefix = "map."
	if len(eventType) <= len(prefix) || eventType[:len(prefix)] != prefix {
		return "", false
	}
	return eventType[len(prefix):], true
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel. A non-empty mapID
// limits map events to that map; catalog events are always delivered.
func (b *Broker) Subscribe(mapID string) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, mapID: mapID}:
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

// Publish sends an event to all interested clients. Events typed map.<kind>
// for kinds that change the set of stored maps are followed by a throttled
// catalog.updated event.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishMapEvent publishes map.<kind> for mapID.
func (b *Broker) PublishMapEvent(kind, mapID string) {
	b.Publish(Event{Type: "map." + kind, Data: map[string]string{"mapId": mapID}, MapID: mapID})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The optional map
// query parameter restricts map events to one map.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("map"))
	defer b.Unsubscribe(ch)

	var tick <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		tick = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
