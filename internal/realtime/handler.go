package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/glowsync/glowsync-backend/internal/dto"
	"github.com/glowsync/glowsync-backend/internal/metrics"
	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const identityLocal = "realtime_identity"

type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

type IdentityFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Identity, error)
}

type Options struct {
	SendBuffer      int
	EventsPerSecond rate.Limit
	Burst           int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingInterval    time.Duration
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:      64,
		EventsPerSecond: 20,
		Burst:           40,
		MaxMessageSize:  64 * 1024,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		PingInterval:    50 * time.Second,
	}
}

// Handler authenticates the websocket handshake and pumps frames between a
// connection and the hub.
type Handler struct {
	hub        *Hub
	tokens     TokenVerifier
	identities IdentityFinder
	metrics    metrics.Recorder
	opts       Options
}

func NewHandler(hub *Hub, tokens TokenVerifier, identities IdentityFinder, rec metrics.Recorder, opts Options) *Handler {
	return &Handler{
		hub:        hub,
		tokens:     tokens,
		identities: identities,
		metrics:    rec,
		opts:       opts,
	}
}

// Upgrade gates the handshake: the session credential may come from the token
// query parameter, a bearer header or the token cookie.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := credential(c)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	id, err := h.tokens.Verify(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized: invalid or expired token",
		})
	}
	identity, err := h.identities.FindByID(c.UserContext(), id)
	if err != nil || !identity.IsActive {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	c.Locals(identityLocal, identity.ID)
	return c.Next()
}

func credential(c *fiber.Ctx) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	if auth := c.Get(fiber.HeaderAuthorization); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return c.Cookies("token")
}

// Serve runs one connection until either side closes it.
func (h *Handler) Serve(conn *websocket.Conn) {
	id, ok := conn.Locals(identityLocal).(uuid.UUID)
	if !ok {
		_ = conn.Close()
		return
	}

	client := NewClient(id, h.opts.SendBuffer, h.opts.EventsPerSecond, h.opts.Burst)
	if err := h.hub.Register(client); err != nil {
		_ = conn.Close()
		return
	}
	slog.Debug("realtime client connected", "identity_id", id.String())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(conn, client)
	}()

	h.readPump(conn, client)
	h.hub.Disconnect(client)
	<-writerDone
	slog.Debug("realtime client disconnected", "identity_id", id.String())
}

func (h *Handler) readPump(conn *websocket.Conn, client *Client) {
	conn.SetReadLimit(h.opts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("realtime read failed", "identity_id", client.IdentityID().String(), "error", err)
			}
			return
		}
		h.Dispatch(client, raw)
	}
}

func (h *Handler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type sendMessagePayload struct {
	RoomID  string          `json:"roomId"`
	Message json.RawMessage `json:"message"`
}

type typingPayload struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

// Dispatch handles one inbound frame. Failures are reported to the sender as an
// error frame; the connection stays open.
func (h *Handler) Dispatch(client *Client, raw []byte) {
	if !client.Allow() {
		h.metrics.RecordDrop("rate_limited")
		return
	}

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		h.hub.Notify(client, "malformed frame")
		return
	}

	var err error
	switch frame.Event {
	case EventJoinRoom:
		var room string
		if room, err = decodeRoom(frame.Data); err == nil {
			err = h.hub.Join(client, room)
		}
	case EventLeaveRoom:
		var room string
		if room, err = decodeRoom(frame.Data); err == nil {
			err = h.hub.Leave(client, room)
		}
	case EventSendMessage:
		var p sendMessagePayload
		if err = json.Unmarshal(frame.Data, &p); err == nil {
			_, err = h.hub.RelayMessage(client, p.RoomID, p.Message)
		}
	case EventTyping:
		var p typingPayload
		if err = json.Unmarshal(frame.Data, &p); err == nil {
			_, err = h.hub.RelayTyping(client, p.RoomID, strings.TrimSpace(p.UserName))
		}
	default:
		h.hub.Notify(client, "unknown event: "+frame.Event)
		return
	}

	if err != nil {
		h.hub.Notify(client, eventError(frame.Event, err))
	}
}

// decodeRoom accepts a bare room id string or {"roomId": ...}.
func decodeRoom(data json.RawMessage) (string, error) {
	var room string
	if err := json.Unmarshal(data, &room); err == nil {
		return room, nil
	}
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return "", ErrInvalidRoom
	}
	return p.RoomID, nil
}

func eventError(event string, err error) string {
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntax), errors.As(err, &typeErr):
		return event + ": malformed payload"
	default:
		return event + ": " + err.Error()
	}
}
