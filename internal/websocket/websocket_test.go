package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHubDeliver(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c1 := &Client{ID: "conn-1", Send: make(chan OutgoingMessage, 1), Hub: hub}
	c2 := &Client{ID: "conn-2", Send: make(chan OutgoingMessage, 1), Hub: hub}

	hub.register <- c1
	hub.register <- c2
	time.Sleep(10 * time.Millisecond)

	msg := OutgoingMessage{
		Event: EventMatched,
		Data:  map[string]interface{}{"partnerConnectionId": "conn-2"},
	}

	assert.True(t, hub.Deliver("conn-1", msg))

	received := <-c1.Send
	assert.Equal(t, EventMatched, received.Event)

	// conn-2 got nothing
	select {
	case <-c2.Send:
		assert.Fail(t, "conn-2 should NOT receive anything")
	default:
		// success
	}
}

func TestHubDeliverUnknownConnection(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	assert.False(t, hub.Deliver("nobody", OutgoingMessage{Event: EventWaiting}))
}

func TestHubDeliverFullBufferDrops(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := &Client{ID: "conn-1", Send: make(chan OutgoingMessage, 1), Hub: hub}
	hub.register <- c
	time.Sleep(10 * time.Millisecond)

	// fills the buffer, then the drop path; both report delivered
	assert.True(t, hub.Deliver("conn-1", OutgoingMessage{Event: "first"}))
	assert.True(t, hub.Deliver("conn-1", OutgoingMessage{Event: "second"}))

	assert.Equal(t, "first", (<-c.Send).Event)
	select {
	case m := <-c.Send:
		t.Fatalf("second message should have been dropped, got %s", m.Event)
	default:
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()

	var mu sync.Mutex
	var closedIDs []string
	hub.OnClosed = func(connID string) {
		mu.Lock()
		closedIDs = append(closedIDs, connID)
		mu.Unlock()
	}

	go hub.Run()

	c := &Client{ID: "conn-1", Send: make(chan OutgoingMessage, 1), Hub: hub}

	hub.register <- c
	time.Sleep(10 * time.Millisecond)

	_, ok := hub.ClientByID("conn-1")
	assert.True(t, ok, "client should be registered")

	// both pumps funnel into unregister; OnClosed must fire once
	hub.unregister <- c
	hub.unregister <- c
	time.Sleep(10 * time.Millisecond)

	_, ok = hub.ClientByID("conn-1")
	assert.False(t, ok, "client should be removed after unregister")

	mu.Lock()
	assert.Equal(t, []string{"conn-1"}, closedIDs)
	mu.Unlock()
}

func TestHubIncomingDispatch(t *testing.T) {
	hub := NewHub()

	got := make(chan IncomingMessage, 1)
	hub.OnIncoming = func(msg IncomingMessage) { got <- msg }

	go hub.Run()

	hub.incoming <- IncomingMessage{From: "conn-1", Event: EventAnnounce, Data: map[string]interface{}{"externalId": "alice"}}

	select {
	case msg := <-got:
		assert.Equal(t, "conn-1", msg.From)
		assert.Equal(t, EventAnnounce, msg.Event)
	case <-time.After(time.Second):
		t.Fatal("incoming message was not dispatched")
	}
}

func BenchmarkHubDeliver(b *testing.B) {
	hub := NewHub()
	go hub.Run()

	c := &Client{ID: "conn-1", Send: make(chan OutgoingMessage, 1024), Hub: hub}
	go func() {
		for range c.Send {
		}
	}()
	hub.register <- c
	time.Sleep(10 * time.Millisecond)

	msg := OutgoingMessage{Event: EventIceCandidate, Data: map[string]interface{}{"candidate": "..."}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.Deliver("conn-1", msg)
	}
}
