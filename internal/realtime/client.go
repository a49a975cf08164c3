package realtime

import (
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Client is one realtime connection of an authenticated identity. The hub owns
// rooms and closes send on disconnect.
type Client struct {
	identityID uuid.UUID
	send       chan []byte
	limiter    *rate.Limiter
	rooms      map[string]struct{}
}

// NewClient creates a client with an outbound buffer of size frames and an inbound
// limit of perSecond events with the given burst.
func NewClient(identityID uuid.UUID, buffer int, perSecond rate.Limit, burst int) *Client {
	return &Client{
		identityID: identityID,
		send:       make(chan []byte, buffer),
		limiter:    rate.NewLimiter(perSecond, burst),
		rooms:      make(map[string]struct{}),
	}
}

func (c *Client) IdentityID() uuid.UUID {
	return c.identityID
}

// Outbound yields encoded frames until the hub disconnects the client.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Allow reports whether another inbound event fits the rate limit.
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}
