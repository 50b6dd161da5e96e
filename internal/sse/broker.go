// Package sse streams registry change notifications to preview clients as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Event types.
const (
	EventRegistryUpdated = "registry.updated"
	EventLatestChanged   = "release.latest"
)

// DefaultKeepAlive is how often an idle stream receives a comment line.
const DefaultKeepAlive = 25 * time.Second

const clientBuffer = 64

// Event is one message for every subscriber.
type Event struct {
	Type string
	Data any
}

// RegistryChange summarizes the registry after a reload.
type RegistryChange struct {
	Releases int    `json:"releases"`
	Latest   string `json:"latest"`
}

// LatestChange is the payload of release.latest.
type LatestChange struct {
	Previous string `json:"previous"`
	Latest   string `json:"latest"`
}

// Broker fans events out to subscribed clients. Each client has a bounded
// buffer; a client that falls behind misses frames instead of stalling the
// publisher. Frames carry increasing ids.
type Broker struct {
	// KeepAlive overrides DefaultKeepAlive when positive.
	KeepAlive time.Duration

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	closed  bool
	seq     uint64
	latest  string
	seen    bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{clients: make(map[chan []byte]struct{})}
}

// Subscribe registers a client. The returned channel is closed by
// Unsubscribe or Close; after Close it is returned already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client. Later calls are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.clients {
		close(ch)
	}
	clear(b.clients)
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send(event)
}

// PublishRegistryChange broadcasts registry.updated, plus release.latest
// when the most recent active version differs from the previous change.
func (b *Broker) PublishRegistryChange(change RegistryChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send(Event{Type: EventRegistryUpdated, Data: change})
	if b.seen && change.Latest != b.latest {
		b.send(Event{Type: EventLatestChanged, Data: LatestChange{Previous: b.latest, Latest: change.Latest}})
	}
	b.latest, b.seen = change.Latest, true
}

// send encodes and fans out one frame. Callers hold mu.
func (b *Broker) send(event Event) {
	if b.closed {
		return
	}
	payload, err := json.Marshal(event.Data)
	if err != nil {
		slog.Warn("sse: encode event", slog.String("type", event.Type), slog.String("error", err.Error()))
		return
	}
	b.seq++
	frame := fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", b.seq, event.Type, payload)
	for ch := range b.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (b *Broker) keepAlive() time.Duration {
	if b.KeepAlive > 0 {
		return b.KeepAlive
	}
	return DefaultKeepAlive
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.keepAlive())
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
