package feed

import (
	"context"
	"net/http"
	"sync"

	"github.com/donovanhide/eventsource"

	"storyboard/internal/infra"
)

const defaultBuffer = 32

type subscriber struct {
	ch   chan Change
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub is the in-process fan-out point. Every subscriber has a bounded
// buffer; a subscriber that falls behind is dropped and its channel closed,
// so the client must reconnect and re-read state.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*subscriber]struct{}
	buffer int
	sse    *eventsource.Server
	closed bool
	logger infra.Logger
}

func NewHub(buffer int, logger infra.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		rooms:  map[string]map[*subscriber]struct{}{},
		buffer: buffer,
		sse:    eventsource.NewServer(),
		logger: logger.With().Str("component", "feed").Logger(),
	}
}

// Subscribe registers interest in channel. The returned cancel func is safe
// to call more than once.
func (h *Hub) Subscribe(channel string) (<-chan Change, func()) {
	sub := &subscriber{ch: make(chan Change, h.buffer)}
	h.mu.Lock()
	if _, ok := h.rooms[channel]; !ok {
		h.rooms[channel] = map[*subscriber]struct{}{}
	}
	h.rooms[channel][sub] = struct{}{}
	n := len(h.rooms[channel])
	h.mu.Unlock()
	h.logger.Debug().Str("channel", channel).Int("subscribers", n).Msg("feed subscribe")

	return sub.ch, func() { h.remove(channel, sub) }
}

func (h *Hub) remove(channel string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[channel]
	if !ok {
		return
	}
	if _, ok := subs[sub]; ok {
		delete(subs, sub)
		sub.close()
	}
	if len(subs) == 0 {
		delete(h.rooms, channel)
	}
}

// Publish delivers c to local subscribers and SSE clients of every channel
// it belongs to.
func (h *Hub) Publish(ctx context.Context, c Change) error {
	channels := c.Channels()
	ev, err := newChangeEvent(c)
	if err != nil {
		return err
	}
	var slow []*subscriber
	var slowRooms []string

	// Close waits for the SSE send, which blocks forever once the server stops.
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return nil
	}
	for _, channel := range channels {
		for sub := range h.rooms[channel] {
			select {
			case sub.ch <- c:
			default:
				slow = append(slow, sub)
				slowRooms = append(slowRooms, channel)
			}
		}
	}
	h.sse.Publish(channels, ev)
	h.mu.RUnlock()

	for i, sub := range slow {
		h.logger.Warn().Str("channel", slowRooms[i]).Msg("feed subscriber too slow; dropping")
		h.remove(slowRooms[i], sub)
	}
	return nil
}

// Subscribers reports the number of local subscribers on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[channel])
}

// Close stops the SSE server and closes every local subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.sse.Close()
	for channel, subs := range h.rooms {
		for sub := range subs {
			sub.close()
		}
		delete(h.rooms, channel)
	}
}

var _ Publisher = (*Hub)(nil)

// SSEHandler streams channel to the client as server-sent events.
func (h *Hub) SSEHandler(channel string) http.HandlerFunc {
	return h.sse.Handler(channel)
}
