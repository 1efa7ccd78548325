package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/etnz/valuation"
)

// Message is an editor event as sent to the SSE clients.
type Message struct {
	Kind      string `json:"kind"`
	CanUndo   bool   `json:"can_undo"`
	CanRedo   bool   `json:"can_redo"`
	Path      string `json:"path,omitempty"`
	Source    string `json:"source,omitempty"`
	RequestID uint64 `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewMessage returns the message of the editor event e.
func NewMessage(e valuation.Event) Message {
	m := Message{
		Kind:      e.Kind.String(),
		CanUndo:   e.CanUndo,
		CanRedo:   e.CanRedo,
		Source:    string(e.Source),
		RequestID: e.Ticket.RequestID,
	}
	if len(e.Path) > 0 {
		m.Path = e.Path.String()
	}
	if e.Err != nil {
		m.Error = e.Err.Error()
	}
	return m
}

// Broker fans out editor events to SSE clients.
//
// A single internal loop owns the clients. Public methods talk to it through
// channels. A client too slow to drain its buffer misses events: it can always
// reload the state.
type Broker struct {
	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Message
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker.
func NewBroker() *Broker {
	b := &Broker{
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Message, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	broadcast := func(m Message) {
		payload, err := json.Marshal(m)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", m.Kind, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
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

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case m := <-b.publishCh:
			broadcast(m)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
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

// Publish sends m to all connected clients.
func (b *Broker) Publish(m Message) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- m:
	case <-b.stopped:
	}
}

// Forward publishes every event of e until the returned function is called.
func (b *Broker) Forward(e *valuation.Editor) (cancel func()) {
	return e.Subscribe(func(ev valuation.Event) { b.Publish(NewMessage(ev)) })
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
