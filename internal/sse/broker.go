// Package sse streams application events to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// DefaultHeartbeat is used when NewBroker is given a non-positive interval.
const DefaultHeartbeat = 15 * time.Second

const (
	streamBuffer  = 64
	publishBuffer = 256
)

// heartbeatFrame is an SSE comment; clients ignore it but it keeps idle
// proxies from dropping the connection.
var heartbeatFrame = []byte(": ping\n\n")

// Event is a typed message. Data is sent as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker fans events out to subscribed streams.
//
// Every delivered frame carries an id one greater than the previous frame,
// so ids are gap free and follow Publish order. An event whose data does
// not encode is skipped without taking an id. A stream whose buffer is
// full misses that frame and the drop is counted.
//
// The subscriber set and the id counter belong to the loop goroutine; the
// exported methods reach it over channels.
type Broker struct {
	heartbeat time.Duration

	join   chan chan []byte
	leave  chan (<-chan []byte)
	events chan Event
	counts chan chan int

	dropped atomic.Uint64

	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// NewBroker starts a broker that writes a heartbeat comment to every
// stream once per interval while at least one stream is open.
func NewBroker(heartbeat time.Duration) *Broker {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	b := &Broker{
		heartbeat: heartbeat,
		join:      make(chan chan []byte),
		leave:     make(chan (<-chan []byte)),
		events:    make(chan Event, publishBuffer),
		counts:    make(chan chan int),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go b.loop()
	return b
}

// frame renders one event in the text/event-stream wire format.
func frame(id uint64, ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("sse: encode %s: %w", ev.Type, err)
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", id, ev.Type, payload), nil
}

func (b *Broker) loop() {
	defer close(b.done)

	streams := make(map[<-chan []byte]chan []byte)
	var lastID uint64

	tick := time.NewTicker(b.heartbeat)
	defer tick.Stop()

	fanout := func(raw []byte) {
		for _, ch := range streams {
			select {
			case ch <- raw:
			default:
				b.dropped.Add(1)
			}
		}
	}

	for {
		select {
		case <-b.quit:
			for _, ch := range streams {
				close(ch)
			}
			return

		case ch := <-b.join:
			streams[ch] = ch

		case key := <-b.leave:
			if ch, ok := streams[key]; ok {
				delete(streams, key)
				close(ch)
			}

		case ev := <-b.events:
			raw, err := frame(lastID+1, ev)
			if err != nil {
				continue
			}
			lastID++
			fanout(raw)

		case <-tick.C:
			if len(streams) > 0 {
				fanout(heartbeatFrame)
			}

		case resp := <-b.counts:
			resp <- len(streams)
		}
	}
}

// Close stops the loop and closes every open stream. It is idempotent.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe opens a stream. On a closed broker the stream is already closed.
func (b *Broker) Subscribe() <-chan []byte {
	ch := make(chan []byte, streamBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.done:
		close(ch)
	}
	return ch
}

// Unsubscribe closes a stream returned by Subscribe.
func (b *Broker) Unsubscribe(ch <-chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.done:
	}
}

// ClientCount reports the number of open streams.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.counts <- resp:
	case <-b.done:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.done:
		return 0
	}
}

// Dropped reports how many frames were discarded because a stream's buffer
// was full.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// Publish queues ev for every open stream. After Close it does nothing.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// ServeHTTP streams events to one client until the request context ends
// or the broker closes.
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
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := b.Subscribe()
	defer b.Unsubscribe(stream)

	for {
		select {
		case <-r.Context().Done():
			return
		case raw, ok := <-stream:
			if !ok {
				return
			}
			if _, err := w.Write(raw); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
