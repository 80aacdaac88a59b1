package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gift-platform/internal/logger"
	"gift-platform/internal/models"
	"gift-platform/internal/store"
	ws "gift-platform/internal/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WidgetTokens interface {
	CreatorByWidgetToken(ctx context.Context, token string) (*models.Creator, error)
}

type WebSocketHandler struct {
	Creators WidgetTokens
	Hub      *ws.Hub
	Log      *logger.Logger
}

func NewWebSocketHandler(creators WidgetTokens, hub *ws.Hub, log *logger.Logger) *WebSocketHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WebSocketHandler{Creators: creators, Hub: hub, Log: log}
}

// ServerWs attaches an overlay to its creator's alert stream.
func (h *WebSocketHandler) ServerWs(c *gin.Context) {
	creator, err := h.Creators.CreatorByWidgetToken(c.Request.Context(), c.Param("secretToken"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token", "code": "INVALID_TOKEN"})
		return
	}
	if err != nil {
		h.Log.Errorw("widget token lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error", "code": "PERSISTENCE"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warnw("failed to upgrade websocket", "error", err)
		return
	}

	client := ws.NewClient(h.Hub, conn, creator.ID)
	h.Hub.Register(client)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *WebSocketHandler) writePump(client *ws.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) readPump(client *ws.Client) {
	defer func() {
		client.Hub.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Log.Infow("websocket read error", "creator_id", client.CreatorID, "error", err)
			}
			break
		}
	}
}
