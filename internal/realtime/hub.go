package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/glowsync/glowsync-backend/internal/metrics"
)

const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventSendMessage    = "send-message"
	EventTyping         = "typing"
	EventReceiveMessage = "receive-message"
	EventUserTyping     = "user-typing"
	EventError          = "error"
)

var (
	ErrHubClosed     = errors.New("realtime hub is closed")
	ErrNotRoomMember = errors.New("not a participant of this room")
	ErrNotRegistered = errors.New("connection is not registered")
)

// Frame is the envelope of every realtime message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type TypingPayload struct {
	UserName string `json:"userName"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type Stats struct {
	Connections int
	Rooms       int
}

// Hub keeps room membership for connected clients and fans out relays. All
// state is owned by the Run goroutine; callers hand it closures through ops.
// Relays never block on a slow client: its buffer overflows and the frame is
// dropped.
type Hub struct {
	ops     chan func()
	done    chan struct{}
	metrics metrics.Recorder

	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
}

func NewHub(rec metrics.Recorder) *Hub {
	return &Hub{
		ops:     make(chan func()),
		done:    make(chan struct{}),
		metrics: rec,
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// Run processes hub operations until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case op := <-h.ops:
			op()
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			h.publishGauges()
			return
		}
	}
}

func (h *Hub) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case h.ops <- func() { fn(); close(finished) }:
		<-finished
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) Register(c *Client) error {
	return h.do(func() {
		h.clients[c] = struct{}{}
		h.publishGauges()
	})
}

// Join adds c to room. Joining twice is a no-op; only the two participants of a
// room may join it.
func (h *Hub) Join(c *Client, room string) error {
	if _, _, err := ParseRoomID(room); err != nil {
		return err
	}
	if !roomIncludes(room, c.IdentityID()) {
		return ErrNotRoomMember
	}

	var err error
	if doErr := h.do(func() {
		if _, ok := h.clients[c]; !ok {
			err = ErrNotRegistered
			return
		}
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
		c.rooms[room] = struct{}{}
		h.publishGauges()
	}); doErr != nil {
		return doErr
	}
	return err
}

func (h *Hub) Leave(c *Client, room string) error {
	return h.do(func() {
		h.leave(c, room)
		h.publishGauges()
	})
}

// RelayMessage sends payload to every other connection in room and returns how
// many accepted it. Nobody listening is not an error.
func (h *Hub) RelayMessage(from *Client, room string, payload json.RawMessage) (int, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return h.relay(from, room, EventReceiveMessage, payload)
}

// RelayTyping fans out a typing signal. There is no stop signal; receivers
// expire the indicator themselves.
func (h *Hub) RelayTyping(from *Client, room, userName string) (int, error) {
	data, err := json.Marshal(TypingPayload{UserName: userName})
	if err != nil {
		return 0, err
	}
	return h.relay(from, room, EventUserTyping, data)
}

func (h *Hub) relay(from *Client, room, event string, data json.RawMessage) (int, error) {
	if !roomIncludes(room, from.IdentityID()) {
		return 0, ErrNotRoomMember
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return 0, err
	}

	delivered := 0
	if err := h.do(func() {
		for c := range h.rooms[room] {
			if c == from {
				continue
			}
			if c.enqueue(frame) {
				delivered++
			} else {
				h.metrics.RecordDrop(event)
				slog.Warn("realtime frame dropped, client buffer full",
					"identity_id", c.IdentityID().String(), "room_id", room, "action", event)
			}
		}
	}); err != nil {
		return 0, err
	}

	h.metrics.RecordRelay(event, delivered)
	return delivered, nil
}

// Notify queues an error frame for c alone.
func (h *Hub) Notify(c *Client, message string) {
	data, err := json.Marshal(ErrorPayload{Message: message})
	if err != nil {
		return
	}
	frame, err := json.Marshal(Frame{Event: EventError, Data: data})
	if err != nil {
		return
	}
	_ = h.do(func() {
		if _, ok := h.clients[c]; ok && !c.enqueue(frame) {
			h.metrics.RecordDrop(EventError)
		}
	})
}

// Disconnect removes c from every room and closes its outbound queue.
func (h *Hub) Disconnect(c *Client) {
	_ = h.do(func() {
		h.drop(c)
		h.publishGauges()
	})
}

func (h *Hub) Stats() (Stats, error) {
	var s Stats
	err := h.do(func() {
		s = Stats{Connections: len(h.clients), Rooms: len(h.rooms)}
	})
	return s, err
}

// Members returns how many connections are in room.
func (h *Hub) Members(room string) int {
	n := 0
	_ = h.do(func() { n = len(h.rooms[room]) })
	return n
}

func (h *Hub) leave(c *Client, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	for room := range c.rooms {
		h.leave(c, room)
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) publishGauges() {
	h.metrics.SetConnections(len(h.clients))
	h.metrics.SetRooms(len(h.rooms))
}
