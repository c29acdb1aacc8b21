// Package feed broadcasts fills to websocket subscribers as the matching
// loop produces them.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"njord/internal/pair"
)

const (
	sendChanSize  = 256
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = 54 * time.Second
	maxClientRead = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FillEvent is the JSON shape of one fill on the feed.
type FillEvent struct {
	OrderKey string `json:"order_key"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// Hub fans fills out to every connected websocket client. It implements
// pair.Reporter, so the matching loop never blocks on a slow subscriber:
// a client whose buffer is full gets dropped.
type Hub struct {
	clients map[*client]struct{}
	lock    sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// ReportFill broadcasts one fill to every subscriber.
func (h *Hub) ReportFill(fill pair.Fill) {
	payload, err := json.Marshal(FillEvent{
		OrderKey: fill.OrderKey.String(),
		Side:     fill.Side.String(),
		Price:    fill.Price.String(),
		Quantity: fill.Quantity.String(),
	})
	if err != nil {
		log.Error().Err(err).Msg("unable to marshal fill")
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow subscriber; cut it loose rather than stall the feed.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendChanSize)}
	h.lock.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.lock.Unlock()

	log.Info().
		Str("address", conn.RemoteAddr().String()).
		Int("subscribers", n).
		Msg("feed subscriber connected")

	go c.writePump()
	go c.readPump()
}

// Run serves the feed endpoint until the context is cancelled.
func (h *Hub) Run(ctx context.Context, address string) error {
	mux := http.NewServeMux()
	mux.Handle("/feed", h)

	srv := &http.Server{Addr: address, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("feed shutdown error")
		}
	}()

	log.Info().Str("address", address).Msg("feed running")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) drop() {
	c.hub.lock.Lock()
	if _, ok := c.hub.clients[c]; ok {
		delete(c.hub.clients, c)
		close(c.send)
	}
	c.hub.lock.Unlock()
	_ = c.conn.Close()
}

// readPump discards client frames and keeps the pong deadline fresh. The
// feed is one-way; we only read to notice disconnects.
func (c *client) readPump() {
	defer c.drop()

	c.conn.SetReadLimit(maxClientRead)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Info().Err(err).Msg("feed subscriber read error")
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
