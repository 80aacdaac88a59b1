package websocket

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"

	"gift-platform/internal/logger"
)

const sendBuffer = 256

// Client is one overlay connection. A creator may have several open at once.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	CreatorID int64
}

func NewClient(hub *Hub, conn *websocket.Conn, creatorID int64) *Client {
	return &Client{Hub: hub, Conn: conn, Send: make(chan []byte, sendBuffer), CreatorID: creatorID}
}

// Event is the frame pushed to overlays.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type message struct {
	creatorID int64
	data      []byte
}

type Hub struct {
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, sendBuffer),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run owns the client registry until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					close(client.Send)
				}
			}
			h.clients = make(map[int64]map[*Client]struct{})
			return

		case client := <-h.register:
			set, ok := h.clients[client.CreatorID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.CreatorID] = set
			}
			set[client] = struct{}{}
			h.log.Infow("websocket client registered", "creator_id", client.CreatorID, "connections", len(set))

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			for client := range h.clients[msg.creatorID] {
				select {
				case client.Send <- msg.data:
				default:
					h.log.Warnw("websocket client too slow, dropping", "creator_id", client.CreatorID)
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.CreatorID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(h.clients, client.CreatorID)
	}
	h.log.Infow("websocket client unregistered", "creator_id", client.CreatorID)
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish pushes an event to every overlay of creatorID. It never blocks; a
// full broadcast buffer drops the event.
func (h *Hub) Publish(creatorID int64, kind string, payload any) {
	data, err := json.Marshal(Event{Type: kind, Payload: payload})
	if err != nil {
		h.log.Errorw("failed to marshal websocket event", "type", kind, "error", err)
		return
	}
	select {
	case h.broadcast <- message{creatorID: creatorID, data: data}:
	default:
		h.log.Warnw("websocket broadcast buffer full, dropping event", "creator_id", creatorID, "type", kind)
	}
}
