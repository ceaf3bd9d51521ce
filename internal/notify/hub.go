package notify

import (
	"context"
	"log/slog"
	"sync"
)

// sinkQueueSize bounds the events waiting for one sink. Further events are
// dropped until the sink catches up.
const sinkQueueSize = 128

// Sink forwards events outside the process. Delivery errors are logged by the hub.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

type sinkWorker struct {
	sink  Sink
	queue chan Event
}

// Hub is a fire-and-forget fan-out to the observers connected right now.
// Nothing is persisted or replayed; a slow observer loses events instead of
// blocking the publisher. Sinks are served by their own goroutines, so
// Publish never waits on them.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]chan Event
	buffer  int
	workers []*sinkWorker
	closed  bool
	wg      sync.WaitGroup
}

func NewHub(buffer int, sinks ...Sink) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	h := &Hub{
		subs:   make(map[string]chan Event),
		buffer: buffer,
	}
	for _, s := range sinks {
		w := &sinkWorker{sink: s, queue: make(chan Event, sinkQueueSize)}
		h.workers = append(h.workers, w)
		h.wg.Add(1)
		go h.serve(w)
	}
	return h
}

// Subscribe registers an observer. Subscribing an id twice returns the existing channel.
func (h *Hub) Subscribe(id string) <-chan Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		return ch
	}
	ch := make(chan Event, h.buffer)
	h.subs[id] = ch
	return ch
}

// Unsubscribe removes the observer and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish validates the event and hands it to every observer and sink
// without blocking. The caller's context is not passed on to sinks.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("observer buffer full, event dropped", "observer", id, "event", ev.Kind)
		}
	}

	if h.closed {
		return nil
	}
	for _, w := range h.workers {
		select {
		case w.queue <- ev:
		default:
			slog.Warn("sink queue full, event dropped", "event", ev.Kind)
		}
	}

	return nil
}

// Len reports how many observers are connected.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close stops accepting sink deliveries and returns once every queued event
// has been handed to its sink. Observer channels stay open.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for _, w := range h.workers {
		close(w.queue)
	}
	h.mu.Unlock()

	h.wg.Wait()
}

func (h *Hub) serve(w *sinkWorker) {
	defer h.wg.Done()

	for ev := range w.queue {
		if err := w.sink.Deliver(context.Background(), ev); err != nil {
			slog.Error("event sink delivery failed", "event", ev.Kind, "error", err)
		}
	}
}
