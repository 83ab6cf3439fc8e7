package main

import (
	"encoding/json"
	"testing"
	"time"
)

func newTestClient(hub *Hub, sid string) *Client {
	c := &Client{hub: hub, send: make(chan []byte, 8), sid: sid, transport: TransportWS}
	hub.registerClient(c)
	return c
}

func drainMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case b := <-c.send:
		var msg Message
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatalf("failed to unmarshal sent message: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message on %s", c.sid)
		return Message{}
	}
}

func errorPayload(t *testing.T, msg Message) (code, message string) {
	t.Helper()
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload.Code, payload.Message
}

// drainAll discards every message currently queued for c, including the
// room_state broadcasts a join fans out to other participants, so later
// assertions in a test only see messages produced by the action under test.
func drainAll(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func joinRoom(t *testing.T, hub *Hub, c *Client, rid string, others ...*Client) {
	t.Helper()
	hub.handleJoin(c, Message{V: 1, Type: "join", RID: rid})
	joined := drainMessage(t, c)
	if joined.Type != "joined" {
		t.Fatalf("expected joined, got %s (payload=%s)", joined.Type, string(joined.Payload))
	}
	drainAll(c)
	for _, other := range others {
		drainAll(other)
	}
}

func TestHandleRelayRejectsWhenNotInRoom(t *testing.T) {
	hub := newHub()
	c := newTestClient(hub, "S-1")

	hub.handleRelay(c, Message{V: 1, Type: "offer", Payload: json.RawMessage(`{}`)})

	msg := drainMessage(t, c)
	if msg.Type != "error" {
		t.Fatalf("expected error, got %s", msg.Type)
	}
	if code, _ := errorPayload(t, msg); code != "NOT_IN_ROOM" {
		t.Fatalf("expected NOT_IN_ROOM, got %s", code)
	}
}

func TestHandleRelayRejectsUnknownTarget(t *testing.T) {
	t.Setenv("ROOM_ID_SECRET", "test-secret")
	rid, err := generateRoomID()
	if err != nil {
		t.Fatalf("generateRoomID: %v", err)
	}

	hub := newHub()
	a := newTestClient(hub, "S-A")
	b := newTestClient(hub, "S-B")
	joinRoom(t, hub, a, rid)
	joinRoom(t, hub, b, rid, a)

	hub.handleRelay(a, Message{V: 1, Type: "offer", RID: rid, To: "C-does-not-exist", Payload: json.RawMessage(`{"sdp":"x"}`)})

	msg := drainMessage(t, a)
	if msg.Type != "error" {
		t.Fatalf("expected error, got %s", msg.Type)
	}
	if code, _ := errorPayload(t, msg); code != "BAD_REQUEST" {
		t.Fatalf("expected BAD_REQUEST, got %s", code)
	}

	select {
	case leaked := <-b.send:
		t.Fatalf("did not expect a relayed message to reach b: %s", string(leaked))
	default:
	}
}

func TestHandleRelayDeliversToNamedTarget(t *testing.T) {
	t.Setenv("ROOM_ID_SECRET", "test-secret")
	rid, err := generateRoomID()
	if err != nil {
		t.Fatalf("generateRoomID: %v", err)
	}

	hub := newHub()
	a := newTestClient(hub, "S-A")
	b := newTestClient(hub, "S-B")
	joinRoom(t, hub, a, rid)
	joinRoom(t, hub, b, rid, a)

	hub.handleRelay(a, Message{V: 1, Type: "offer", RID: rid, To: b.cid, Payload: json.RawMessage(`{"sdp":"x"}`)})

	relayed := drainMessage(t, b)
	if relayed.Type != "offer" {
		t.Fatalf("expected offer, got %s", relayed.Type)
	}

	var payload struct {
		From string `json:"from"`
		SDP  string `json:"sdp"`
	}
	if err := json.Unmarshal(relayed.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.From != a.cid {
		t.Fatalf("expected from=%s, got %s", a.cid, payload.From)
	}
	if payload.SDP != "x" {
		t.Fatalf("expected original payload to survive relay, got %q", payload.SDP)
	}
}

func TestHandleJoinRejectsThirdParticipantWhenFull(t *testing.T) {
	t.Setenv("ROOM_ID_SECRET", "test-secret")
	rid, err := generateRoomID()
	if err != nil {
		t.Fatalf("generateRoomID: %v", err)
	}

	hub := newHub()
	a := newTestClient(hub, "S-A")
	b := newTestClient(hub, "S-B")
	c := newTestClient(hub, "S-C")
	joinRoom(t, hub, a, rid)
	joinRoom(t, hub, b, rid, a)

	hub.handleJoin(c, Message{V: 1, Type: "join", RID: rid})
	msg := drainMessage(t, c)
	if msg.Type != "error" {
		t.Fatalf("expected error, got %s", msg.Type)
	}
	if code, _ := errorPayload(t, msg); code != "ROOM_FULL" {
		t.Fatalf("expected ROOM_FULL, got %s", code)
	}
}
