package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	name    string
	payload any
}

type fakeConn struct {
	id      string
	mu      sync.Mutex
	events  []event
	closed  bool
	blockCh chan struct{}
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(name string, payload any) error {
	if c.blockCh != nil {
		<-c.blockCh
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event{name: name, payload: payload})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() []event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event(nil), c.events...)
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(zerolog.Nop(), 8)
	t.Cleanup(h.Close)
	return h
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestJoinIsIdempotent(t *testing.T) {
	h := newTestHub(t)
	a, b := newFakeConn("a"), newFakeConn("b")
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))

	require.NoError(t, h.Join("b", "room-1"))
	require.NoError(t, h.Join("b", "room-1"))

	assert.Equal(t, []string{"b"}, h.Members("room-1"))
	assert.Equal(t, []string{"room-1"}, h.Rooms("b"))

	n := h.Broadcast("room-1", "receive_message", "hi", "a")
	assert.Equal(t, 1, n)

	eventually(t, func() bool { return len(b.received()) == 1 })
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, b.received(), 1, "joining twice must not duplicate delivery")
}

func TestJoinUnknownConnection(t *testing.T) {
	h := newTestHub(t)
	assert.ErrorIs(t, h.Join("ghost", "room-1"), ErrUnknownConnection)
}

func TestRegisterDuplicate(t *testing.T) {
	h := newTestHub(t)
	require.NoError(t, h.Register(newFakeConn("a")))
	assert.ErrorIs(t, h.Register(newFakeConn("a")), ErrDuplicateConnection)
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := newTestHub(t)
	sender, peer := newFakeConn("sender"), newFakeConn("peer")
	require.NoError(t, h.Register(sender))
	require.NoError(t, h.Register(peer))
	require.NoError(t, h.Join("sender", "r"))
	require.NoError(t, h.Join("peer", "r"))

	n := h.Broadcast("r", "receive_message", map[string]string{"text": "Hello"}, "sender")
	assert.Equal(t, 1, n)

	eventually(t, func() bool { return len(peer.received()) == 1 })
	got := peer.received()[0]
	assert.Equal(t, "receive_message", got.name)
	assert.Equal(t, map[string]string{"text": "Hello"}, got.payload)
	assert.Empty(t, sender.received())
}

func TestBroadcastOnlyReachesRoomMembers(t *testing.T) {
	h := newTestHub(t)
	in, out := newFakeConn("in"), newFakeConn("out")
	require.NoError(t, h.Register(in))
	require.NoError(t, h.Register(out))
	require.NoError(t, h.Join("in", "r1"))
	require.NoError(t, h.Join("out", "r2"))

	assert.Equal(t, 1, h.Broadcast("r1", "receive_message", "x", ""))
	assert.Equal(t, 0, h.Broadcast("empty-room", "receive_message", "x", ""))

	eventually(t, func() bool { return len(in.received()) == 1 })
	assert.Empty(t, out.received())
}

func TestConnectionInManyRooms(t *testing.T) {
	h := newTestHub(t)
	c := newFakeConn("c")
	require.NoError(t, h.Register(c))
	require.NoError(t, h.Join("c", "r2"))
	require.NoError(t, h.Join("c", "r1"))

	assert.Equal(t, []string{"r1", "r2"}, h.Rooms("c"))

	h.Broadcast("r1", "receive_message", 1, "")
	h.Broadcast("r2", "receive_message", 2, "")
	eventually(t, func() bool { return len(c.received()) == 2 })
}

func TestLeaveRemovesFromAllRooms(t *testing.T) {
	h := newTestHub(t)
	c := newFakeConn("c")
	require.NoError(t, h.Register(c))
	require.NoError(t, h.Join("c", "r1"))
	require.NoError(t, h.Join("c", "r2"))

	h.Leave("c")

	assert.Empty(t, h.Members("r1"))
	assert.Empty(t, h.Members("r2"))
	assert.Nil(t, h.Rooms("c"))
	assert.Equal(t, 0, h.Broadcast("r1", "receive_message", "x", ""))
	assert.ErrorIs(t, h.Join("c", "r1"), ErrUnknownConnection)

	// unknown connection is a no-op
	h.Leave("c")
}

func TestFullOutboxDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(zerolog.Nop(), 1)
	slow := newFakeConn("slow")
	slow.blockCh = make(chan struct{})
	require.NoError(t, h.Register(slow))
	require.NoError(t, h.Join("slow", "r"))

	done := make(chan int)
	go func() {
		total := 0
		for i := 0; i < 10; i++ {
			total += h.Broadcast("r", "receive_message", i, "")
		}
		done <- total
	}()

	select {
	case total := <-done:
		// one event is held by the blocked pump, one fits the outbox
		assert.LessOrEqual(t, total, 2)
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow connection")
	}

	close(slow.blockCh)
	h.Close()
}

func TestConcurrentJoinLeaveBroadcast(t *testing.T) {
	h := newTestHub(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			c := newFakeConn(id)
			if err := h.Register(c); err != nil {
				t.Error(err)
				return
			}
			room := fmt.Sprintf("room-%d", i%5)
			for j := 0; j < 20; j++ {
				_ = h.Join(id, room)
				h.Broadcast(room, "receive_message", j, id)
			}
			if i%2 == 0 {
				h.Leave(id)
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < 5; i++ {
		total += len(h.Members(fmt.Sprintf("room-%d", i)))
	}
	assert.Equal(t, 25, total)
}

func TestCloseClosesConnections(t *testing.T) {
	h := NewHub(zerolog.Nop(), 4)
	a, b := newFakeConn("a"), newFakeConn("b")
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))
	require.NoError(t, h.Join("a", "r"))

	h.Close()

	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Empty(t, h.Members("r"))
	assert.ErrorIs(t, h.Register(newFakeConn("c")), ErrHubClosed)
}

type recordingRelay struct {
	mu    sync.Mutex
	rooms []string
}

func (r *recordingRelay) Publish(room, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, room)
	return nil
}

func TestBroadcastPublishesToRelay(t *testing.T) {
	h := newTestHub(t)
	relay := &recordingRelay{}
	h.SetRelay(relay)

	h.Broadcast("r", "receive_message", "x", "")
	assert.Equal(t, []string{"r"}, relay.rooms)
}

func TestRelayHandleSkipsOwnOrigin(t *testing.T) {
	h := newTestHub(t)
	c := newFakeConn("c")
	require.NoError(t, h.Register(c))
	require.NoError(t, h.Join("c", "r"))

	relay := &NATSRelay{instance: "self", logger: zerolog.Nop()}

	own, err := json.Marshal(envelope{Origin: "self", Room: "r", Event: "receive_message", Payload: json.RawMessage(`{"text":"echo"}`)})
	require.NoError(t, err)
	relay.handle(own, h)

	remote, err := json.Marshal(envelope{Origin: "other", Room: "r", Event: "receive_message", Payload: json.RawMessage(`{"text":"remote"}`)})
	require.NoError(t, err)
	relay.handle(remote, h)

	relay.handle([]byte("not json"), h)

	eventually(t, func() bool { return len(c.received()) == 1 })
	got := c.received()[0]
	assert.Equal(t, "receive_message", got.name)
	assert.JSONEq(t, `{"text":"remote"}`, string(got.payload.(json.RawMessage)))
}
