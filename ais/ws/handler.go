// Package ws streams tracker events to websocket clients as JSON.
package ws

import (
	"net/http"
	"sync"
	"time"

	"aistrack/ais/log"
	"aistrack/ais/tracker"
	"aistrack/gogroup"

	"github.com/armon/go-metrics"
	"github.com/gorilla/websocket"
	"github.com/pborman/uuid"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Messages queued per client before it is dropped as too slow
	sendBuffer = 256
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
)

// Handler is a tracker subscriber fanning events out to websocket clients.
type Handler struct {
	ctxt         gogroup.GoGroup
	clients      map[*Client]bool
	clientsMutex sync.RWMutex
}

func NewHandler(ctxt gogroup.GoGroup) *Handler {
	return &Handler{
		ctxt:    ctxt,
		clients: make(map[*Client]bool),
	}
}

// OnEvent implements tracker.Subscriber.
func (h *Handler) OnEvent(e tracker.Event) {
	payload, err := Marshal(e)
	if err != nil {
		log.Error("Unable to marshal %v: %v", e.Name(), err)
		return
	}
	h.Publish(payload)
}

// Publish sends payload to every client. Clients whose queue is full are
// disconnected rather than allowed to hold up the others. The read lock is
// held while sending so remove cannot close a queue in use.
func (h *Handler) Publish(payload []byte) {
	var slow []*Client
	h.clientsMutex.RLock()
	for client := range h.clients {
		select {
		case client.Send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.clientsMutex.RUnlock()

	for _, client := range slow {
		log.Warn("websocket client %v too slow, dropping", client.ID)
		metrics.IncrCounter([]string{"ws", "dropped"}, 1)
		h.remove(client)
	}
}

// Clients is the number of connected clients.
func (h *Handler) Clients() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

func (h *Handler) add(client *Client) {
	h.clientsMutex.Lock()
	h.clients[client] = true
	h.clientsMutex.Unlock()
	metrics.SetGauge([]string{"ws", "clients"}, float32(h.Clients()))
}

// remove closes the client queue once, however many times it is called.
func (h *Handler) remove(client *Client) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.Send)
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		log.Warn("websocket upgrade from %v: %v", r.RemoteAddr, err)
		return
	}
	client := &Client{
		ID:   uuid.New(),
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
	}
	log.Info("websocket client %v connected from %v", client.ID, r.RemoteAddr)
	h.add(client)

	ctxt := h.ctxt.Child(client.ID)
	ctxt.ErrCallback(func(err error) {
		log.Debug("websocket client %v: %v", client.ID, err)
	})
	ctxt.Go(func(g gogroup.GoGroup) error {
		defer h.remove(client)
		return client.run(g)
	})
}

type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// readData is needed to determine the status of ws
func (client *Client) readData(ctx gogroup.GoGroup) error {
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		if _, _, err := client.Conn.NextReader(); err != nil {
			ctx.Cancel(nil)
			return nil
		}
	}
}

func (client *Client) run(ctxt gogroup.GoGroup) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
		client.Conn.Close()
		log.Info("websocket client %v disconnected", client.ID)
	}()
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	ctxt.Go(client.readData)

	for {
		select {
		case payload, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				return nil
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return err
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return err
			}
		case <-ctxt.Done():
			return nil
		}
	}
}
