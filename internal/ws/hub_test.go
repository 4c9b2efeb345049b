package ws

import (
	"bytes"
	"sync"
	"testing"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.rooms == nil {
		t.Error("NewHub() rooms map is nil")
	}
}

func TestHub_Subscribers_EmptyRoom(t *testing.T) {
	hub := NewHub()
	if n := hub.Subscribers(1); n != 0 {
		t.Errorf("Subscribers() for empty room = %d, want 0", n)
	}
}

func TestHub_DeliverToAllSubscribers(t *testing.T) {
	hub := NewHub()
	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = testClient()
		hub.Subscribe(1, clients[i])
	}

	payload := []byte(`{"type":"receive_message","message":{"content":"hello"}}`)
	hub.Deliver(1, payload)

	for i, c := range clients {
		select {
		case got := <-c.send:
			// every subscriber receives the identical bytes
			if !bytes.Equal(got, payload) {
				t.Errorf("client %d received %s, want %s", i, got, payload)
			}
		default:
			t.Errorf("client %d did not receive delivery", i)
		}
	}
}

func TestHub_DeliverOnlyToSubscribedRoom(t *testing.T) {
	hub := NewHub()
	inRoom := testClient()
	otherRoom := testClient()
	hub.Subscribe(1, inRoom)
	hub.Subscribe(2, otherRoom)

	hub.Deliver(1, []byte("x"))

	if len(inRoom.send) != 1 {
		t.Error("subscriber of room 1 should receive the payload")
	}
	if len(otherRoom.send) != 0 {
		t.Error("subscriber of room 2 must not receive room 1 traffic")
	}
}

func TestHub_MembershipNotRequired(t *testing.T) {
	// Delivery is governed by subscription alone; the hub never consults
	// the persisted member list.
	hub := NewHub()
	c := testClient()
	hub.Subscribe(42, c)

	hub.Deliver(42, []byte("y"))

	if len(c.send) != 1 {
		t.Error("subscribed client should receive delivery regardless of membership")
	}
}

func TestHub_UnsubscribeAll(t *testing.T) {
	hub := NewHub()
	c := testClient()
	other := testClient()
	hub.Subscribe(1, c)
	hub.Subscribe(2, c)
	hub.Subscribe(1, other)

	hub.UnsubscribeAll(c)

	hub.Deliver(1, []byte("a"))
	hub.Deliver(2, []byte("b"))
	if len(c.send) != 0 {
		t.Error("unsubscribed client must not receive deliveries")
	}
	if len(other.send) != 1 {
		t.Error("tearing down one session must not affect other subscribers")
	}
	if n := hub.Subscribers(2); n != 0 {
		t.Errorf("Subscribers(2) = %d, want 0 after cleanup", n)
	}
}

func TestHub_SlowConsumerDropped(t *testing.T) {
	hub := NewHub()
	slow := &Client{send: make(chan []byte, 1)}
	hub.Subscribe(1, slow)

	hub.Deliver(1, []byte("first"))
	hub.Deliver(1, []byte("second")) // buffer full, dropped without blocking

	if len(slow.send) != 1 {
		t.Errorf("send buffer = %d payloads, want 1", len(slow.send))
	}
	if got := <-slow.send; string(got) != "first" {
		t.Errorf("delivered payload = %s, want first", got)
	}
}

func TestHub_ConcurrentSubscribeDeliver(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Subscribe(1, testClient())
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Deliver(1, []byte("z"))
		}()
	}
	wg.Wait()

	if n := hub.Subscribers(1); n != 10 {
		t.Errorf("Subscribers(1) = %d, want 10", n)
	}
}
