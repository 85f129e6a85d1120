// Package sse implements the realtime event broker and its Server-Sent Events
// and WebSocket endpoints.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// EventToast carries a transient user notification.
const EventToast = "toast"

// EventLibrary is the throttled "something in the stored library changed" event.
const EventLibrary = "library.updated"

type encoding int

const (
	encodingSSE encoding = iota
	encodingJSON
)

type subscription struct {
	ch  chan []byte
	enc encoding
}

type changeReq struct {
	collection string
	kind       string
	key        string
}

// Broker manages realtime client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + library throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	libraryMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan changeReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new broker with the given library.updated throttle interval.
func NewBroker(libraryThrottle time.Duration) *Broker {
	if libraryThrottle <= 0 {
		libraryThrottle = 2 * time.Second
	}

	b := &Broker{
		libraryMin:    libraryThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan changeReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func encode(event Event, enc encoding) ([]byte, error) {
	if enc == encodingJSON {
		return json.Marshal(event)
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]encoding)
	var lastLibrary time.Time

	broadcast := func(event Event) {
		var frames [2][]byte
		for ch, enc := range clients {
			if frames[enc] == nil {
				raw, err := encode(event, enc)
				if err != nil {
					return
				}
				frames[enc] = raw
			}
			select {
			case ch <- frames[enc]:
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
			clients[sub.ch] = sub.enc

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.changeCh:
			broadcast(Event{
				Type: req.collection + "." + req.kind,
				Data: map[string]string{"key": req.key},
			})

			now := time.Now()
			if now.Sub(lastLibrary) >= b.libraryMin {
				lastLibrary = now
				broadcast(Event{Type: EventLibrary, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

func (b *Broker) subscribe(enc encoding) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, enc: enc}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Subscribe adds a new client receiving SSE frames and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.subscribe(encodingSSE)
}

// SubscribeJSON adds a new client receiving one JSON object per event.
func (b *Broker) SubscribeJSON() chan []byte {
	return b.subscribe(encodingJSON)
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// Toast publishes a transient user notification.
func (b *Broker) Toast(msg string) {
	b.Publish(Event{Type: EventToast, Data: map[string]string{"message": msg}})
}

// PublishChange publishes a stored-collection change as "<collection>.<kind>"
// followed by a throttled library.updated event.
func (b *Broker) PublishChange(collection, kind, key string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- changeReq{collection: collection, kind: kind, key: key}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
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

	ch := b.Subscribe()
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
