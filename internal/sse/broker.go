// Package sse implements a Server-Sent Events broker that streams ingestion
// events to the owning user's connections.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// EventGraphUpdated follows note events, throttled per owner.
const EventGraphUpdated = "graph.updated"

// keepAlive is the interval of comment frames on idle streams.
const keepAlive = 25 * time.Second

// Event represents an SSE event for one owner.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type ownedEvent struct {
	owner string
	event Event
	graph bool
}

type subscription struct {
	owner string
	ch    chan []byte
}

type countReq struct {
	owner string // empty counts every client
	resp  chan int
}

// Broker manages SSE client connections and delivers events to the
// connections of the event's owner only.
// The client set and the per-owner throttle state belong to the run
// goroutine; public methods reach it over channels.
type Broker struct {
	graphMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan ownedEvent
	countReqCh    chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given graph throttle interval.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}

	b := &Broker{
		graphMin:      graphThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan ownedEvent, 256),
		countReqCh:    make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastGraph := make(map[string]time.Time)

	send := func(owner string, event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, o := range clients {
			if o != owner {
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
			clients[sub.ch] = sub.owner

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case oe := <-b.publishCh:
			send(oe.owner, oe.event)
			if !oe.graph {
				continue
			}
			now := time.Now()
			if now.Sub(lastGraph[oe.owner]) >= b.graphMin {
				lastGraph[oe.owner] = now
				send(oe.owner, Event{Type: EventGraphUpdated, Data: map[string]string{}})
			}

		case req := <-b.countReqCh:
			n := 0
			for _, o := range clients {
				if req.owner == "" || o == req.owner {
					n++
				}
			}
			req.resp <- n
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

// Subscribe adds a client for ownerID and returns its channel.
func (b *Broker) Subscribe(ownerID string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{owner: ownerID, ch: ch}:
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

// ClientCount returns the number of connected clients of ownerID, or of
// every owner when ownerID is empty.
func (b *Broker) ClientCount(ownerID string) int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- countReq{owner: ownerID, resp: resp}:
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

// Publish sends an event to the clients of ownerID.
func (b *Broker) Publish(ownerID string, event Event) {
	b.publish(ownedEvent{owner: ownerID, event: event})
}

// PublishNoteEvent publishes a note event followed by a throttled
// graph.updated for the same owner.
func (b *Broker) PublishNoteEvent(ownerID, kind string, data any) {
	b.publish(ownedEvent{owner: ownerID, event: Event{Type: kind, Data: data}, graph: true})
}

func (b *Broker) publish(oe ownedEvent) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- oe:
	case <-b.stopped:
	}
}

// Stream serves an event stream of ownerID's events until the request
// context ends or the broker closes. Idle streams get a comment frame every
// keepAlive so proxies keep the connection open.
func (b *Broker) Stream(w http.ResponseWriter, r *http.Request, ownerID string) {
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

	ch := b.Subscribe(ownerID)
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
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
