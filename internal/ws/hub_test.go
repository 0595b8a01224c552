package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/campusbites/api/internal/enum"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, canID string) *Client {
	return &Client{
		hub:   hub,
		canID: canID,
		send:  make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	canID := "CAN-AAAAAAAA"
	client := mockClient(hub, canID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[canID] == nil {
		t.Fatal("canteen room not created")
	}
	if !hub.rooms[canID][client] {
		t.Fatal("client not registered in canteen room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	canID := "CAN-AAAAAAAA"
	client := mockClient(hub, canID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[canID] != nil {
		t.Fatal("canteen room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleCanteen(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	canteen1 := "CAN-AAAAAAAA"
	canteen2 := "CAN-BBBBBBBB"

	client1 := mockClient(hub, canteen1)
	client2 := mockClient(hub, canteen2)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"orderId":"ORD-1-AAAA"}`)
	event := Event{
		Type:    enum.EventNewOrder,
		Payload: testPayload,
	}
	hub.BroadcastToCanteen(canteen1, event)

	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != enum.EventNewOrder {
			t.Errorf("expected type %q, got %q", enum.EventNewOrder, received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload %s, got %s", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for different canteen")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsInSameCanteen(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	canID := "CAN-AAAAAAAA"
	client1 := mockClient(hub, canID)
	client2 := mockClient(hub, canID)
	client3 := mockClient(hub, canID)

	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"status":"Ready"}`)
	event := Event{
		Type:    enum.EventOrderUpdated,
		Payload: testPayload,
	}
	hub.BroadcastToCanteen(canID, event)

	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != enum.EventOrderUpdated {
				t.Errorf("client%d: expected type %q, got %q", i+1, enum.EventOrderUpdated, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestHubMultipleCanteensIsolation(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	canteens := []string{"CAN-AAAAAAAA", "CAN-BBBBBBBB", "CAN-CCCCCCCC"}

	// Create 2 clients per canteen
	clients := map[string][]*Client{}
	for _, canID := range canteens {
		clients[canID] = []*Client{mockClient(hub, canID), mockClient(hub, canID)}
	}

	for _, clientList := range clients {
		for _, client := range clientList {
			hub.register <- client
		}
	}
	time.Sleep(10 * time.Millisecond)

	target := canteens[1]
	event := Event{
		Type:    enum.EventNewOrder,
		Payload: json.RawMessage(`{"canID":"` + target + `"}`),
	}
	hub.BroadcastToCanteen(target, event)

	for canID, clientList := range clients {
		for i, client := range clientList {
			select {
			case msg := <-client.send:
				if canID != target {
					t.Fatalf("canteen %s client %d should not receive message", canID, i)
				}
				var received Event
				if err := json.Unmarshal(msg, &received); err != nil {
					t.Fatalf("unmarshal error: %v", err)
				}
				if received.Type != enum.EventNewOrder {
					t.Errorf("wrong event type: %s", received.Type)
				}
			case <-time.After(50 * time.Millisecond):
				if canID == target {
					t.Fatalf("target canteen client %d should have received message", i)
				}
				// Expected for other canteens
			}
		}
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	canID := "CAN-AAAAAAAA"
	client1 := mockClient(hub, canID)
	client2 := mockClient(hub, canID)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[canID]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[canID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[canID]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[canID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[canID] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestBroadcastToNonExistentCanteen(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client1 := mockClient(hub, "CAN-AAAAAAAA")
	hub.register <- client1
	time.Sleep(10 * time.Millisecond)

	event := Event{
		Type:    enum.EventNewOrder,
		Payload: json.RawMessage(`{"test":"data"}`),
	}
	hub.BroadcastToCanteen("CAN-ZZZZZZZZ", event)

	select {
	case <-client1.send:
		t.Fatal("client should not receive message for different canteen")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}
