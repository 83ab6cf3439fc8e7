package main

import (
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"serenada/server/internal/stats"
)

const (
	wsPingPeriod  = 12 * time.Second
	wsPongTimeout = 2 * wsPingPeriod // two missed ping intervals
	wsWriteWait   = 5 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     isOriginAllowed,
}

func handleWS(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats.IncConnectionAttempt("ws")

		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			stats.IncConnectionFailure("ws")
			log.Printf("[WS] upgrade failed: %v", err)
			return
		}

		ip := getClientIP(r)
		client := &Client{
			hub:       hub,
			send:      make(chan []byte, 256),
			sid:       generateID("S-"),
			ip:        ip,
			transport: TransportWS,
		}
		hub.registerClient(client)
		hub.markSeen(client)
		stats.AddActiveWSClients(1)
		stats.IncConnectionSuccess("ws")

		log.Printf("[WS] Client %s connected", client.sid)

		done := make(chan struct{})
		go client.writeWS(conn, done)
		client.readWS(conn, done)
	}
}

func (c *Client) readWS(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		close(done)
		_ = conn.Close()
		c.hub.disconnectClient(c)
	}()

	conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			reason := "ws_closed"
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] read error for %s: %v", c.sid, err)
				reason = "ws_error"
			}
			stats.IncDisconnect(reason)
			return
		}
		c.hub.markSeen(c)
		c.hub.handleMessage(c, message)
	}
}

func (c *Client) writeWS(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case message, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if c.hub.secondsSinceSeen(c) > wsPongTimeout.Seconds() {
				log.Printf("[WS] %s missed %d consecutive ping intervals, forcing close", c.sid, 2)
				stats.IncDisconnect("pong_timeout")
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "pong_timeout"))
				return
			}
			c.sendMessage(Message{V: 1, Type: "ping"})
		}
	}
}

func (h *Hub) markSeen(c *Client) {
	atomic.StoreInt64(&c.lastSeen, time.Now().UnixNano())
}

func (h *Hub) secondsSinceSeen(c *Client) float64 {
	last := atomic.LoadInt64(&c.lastSeen)
	if last == 0 {
		return 0
	}
	return time.Since(time.Unix(0, last)).Seconds()
}
