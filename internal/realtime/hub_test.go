package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/glowsync/glowsync-backend/internal/metrics"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(metrics.Nop{})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func connect(t *testing.T, hub *Hub, id uuid.UUID, buffer int) *Client {
	t.Helper()
	c := NewClient(id, buffer, rate.Inf, 1)
	require.NoError(t, hub.Register(c))
	return c
}

func readFrame(t *testing.T, c *Client) Frame {
	t.Helper()
	select {
	case raw, ok := <-c.Outbound():
		require.True(t, ok, "outbound closed")
		var f Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return Frame{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Outbound():
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func TestRoomID(t *testing.T) {
	a := uuid.MustParse("6f1c0b1e-0000-4000-8000-000000000001")
	b := uuid.MustParse("0a1c0b1e-0000-4000-8000-000000000002")

	room := RoomID(a, b)
	assert.Equal(t, RoomID(b, a), room)
	assert.Equal(t, b.String()+"-"+a.String(), room)

	x, y, err := ParseRoomID(room)
	require.NoError(t, err)
	assert.Equal(t, b, x)
	assert.Equal(t, a, y)

	for _, bad := range []string{"", "abc", a.String() + "-" + b.String(), a.String() + "-" + a.String(), room + "x"} {
		_, _, err := ParseRoomID(bad)
		assert.ErrorIs(t, err, ErrInvalidRoom, bad)
	}
}

func TestHub_RelayMessageToOtherMembers(t *testing.T) {
	hub := startHub(t)
	x, y := uuid.New(), uuid.New()
	room := RoomID(x, y)

	cx := connect(t, hub, x, 8)
	cy := connect(t, hub, y, 8)
	cy2 := connect(t, hub, y, 8)
	require.NoError(t, hub.Join(cx, room))
	require.NoError(t, hub.Join(cy, room))
	require.NoError(t, hub.Join(cy, room))
	require.NoError(t, hub.Join(cy2, room))
	assert.Equal(t, 3, hub.Members(room))

	payload := json.RawMessage(`{"content":"hi","senderId":"` + x.String() + `"}`)
	n, err := hub.RelayMessage(cx, room, payload)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, c := range []*Client{cy, cy2} {
		f := readFrame(t, c)
		assert.Equal(t, EventReceiveMessage, f.Event)
		assert.JSONEq(t, string(payload), string(f.Data))
	}
	assertNoFrame(t, cx)
}

func TestHub_RelayWithNobodyListening(t *testing.T) {
	hub := startHub(t)
	x, y := uuid.New(), uuid.New()
	room := RoomID(x, y)

	cx := connect(t, hub, x, 8)
	require.NoError(t, hub.Join(cx, room))

	n, err := hub.RelayMessage(cx, room, json.RawMessage(`{"content":"anyone?"}`))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHub_RelayTyping(t *testing.T) {
	hub := startHub(t)
	x, y := uuid.New(), uuid.New()
	room := RoomID(x, y)

	cx := connect(t, hub, x, 8)
	cy := connect(t, hub, y, 8)
	require.NoError(t, hub.Join(cy, room))

	n, err := hub.RelayTyping(cx, room, "Xavier")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f := readFrame(t, cy)
	assert.Equal(t, EventUserTyping, f.Event)
	assert.JSONEq(t, `{"userName":"Xavier"}`, string(f.Data))
}

func TestHub_RejectsForeignRooms(t *testing.T) {
	hub := startHub(t)
	x, y, z := uuid.New(), uuid.New(), uuid.New()
	room := RoomID(x, y)

	cz := connect(t, hub, z, 8)
	assert.ErrorIs(t, hub.Join(cz, room), ErrNotRoomMember)
	assert.ErrorIs(t, hub.Join(cz, "not-a-room"), ErrInvalidRoom)

	_, err := hub.RelayMessage(cz, room, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNotRoomMember)

	unregistered := NewClient(x, 1, rate.Inf, 1)
	assert.ErrorIs(t, hub.Join(unregistered, room), ErrNotRegistered)
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub := startHub(t)
	x, y := uuid.New(), uuid.New()
	room := RoomID(x, y)

	cx := connect(t, hub, x, 8)
	cy := connect(t, hub, y, 1)
	require.NoError(t, hub.Join(cy, room))

	n, err := hub.RelayTyping(cx, room, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = hub.RelayTyping(cx, room, "x")
	require.NoError(t, err)
	assert.Zero(t, n, "slow client drops instead of blocking the hub")

	readFrame(t, cy)
}

func TestHub_DisconnectLeavesAllRooms(t *testing.T) {
	hub := startHub(t)
	x, y, z := uuid.New(), uuid.New(), uuid.New()

	cx := connect(t, hub, x, 8)
	require.NoError(t, hub.Join(cx, RoomID(x, y)))
	require.NoError(t, hub.Join(cx, RoomID(x, z)))

	stats, err := hub.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Connections: 1, Rooms: 2}, stats)

	hub.Disconnect(cx)
	hub.Disconnect(cx)

	_, ok := <-cx.Outbound()
	assert.False(t, ok, "outbound closed on disconnect")

	stats, err = hub.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	// Reconnecting does not restore membership.
	again := connect(t, hub, x, 8)
	cy := connect(t, hub, y, 8)
	n, err := hub.RelayMessage(cy, RoomID(x, y), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Zero(t, n)
	assertNoFrame(t, again)
}

func TestHub_LeaveRoom(t *testing.T) {
	hub := startHub(t)
	x, y := uuid.New(), uuid.New()
	room := RoomID(x, y)

	cx := connect(t, hub, x, 8)
	cy := connect(t, hub, y, 8)
	require.NoError(t, hub.Join(cy, room))
	require.NoError(t, hub.Leave(cy, room))

	n, err := hub.RelayMessage(cx, room, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHub_ClosedHub(t *testing.T) {
	hub := NewHub(metrics.Nop{})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := connect(t, hub, uuid.New(), 1)
	cancel()
	<-stopped

	_, ok := <-c.Outbound()
	assert.False(t, ok)
	assert.ErrorIs(t, hub.Register(NewClient(uuid.New(), 1, rate.Inf, 1)), ErrHubClosed)
	_, err := hub.Stats()
	assert.ErrorIs(t, err, ErrHubClosed)
}
