package widget

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	model "github.com/foodloop/assistant/internal/model/chat"
	"github.com/foodloop/assistant/internal/middleware"
	chatService "github.com/foodloop/assistant/internal/service/chat"
	"github.com/foodloop/assistant/pkg/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocketHandler lets a widget chat over a single websocket.
type WebSocketHandler struct {
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the websocket handler.
func NewWebSocketHandler(chatSvc *chatService.Service) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func newOutgoing(typ string, data interface{}) outgoingMessage {
	return outgoingMessage{Type: typ, Data: data, Timestamp: time.Now().Unix()}
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	profileID := middleware.ProfileID(r.Context())
	wd, err := h.chatSvc.Widget(r.Context(), profileID)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// the request context is not tied to a hijacked connection's lifetime
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshot, updates, unsubscribe := wd.Log().Subscribe(32)
	defer unsubscribe()

	out := make(chan outgoingMessage, 32)
	out <- newOutgoing("snapshot", map[string]any{"open": wd.IsOpen(), "messages": snapshot})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(ctx, conn, updates, out)
		// unblock the read loop when writing stopped first
		conn.Close()
	}()

	log.Info().Str("profile_id", profileID).Msg("websocket connected")

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("profile_id", profileID).Msg("websocket read error")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleMessage(ctx, wd, msg, out)
	}

	cancel()
	<-done
	log.Info().Str("profile_id", profileID).Msg("websocket closed")
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, wd *chatService.Widget, msg inboundMessage, out chan<- outgoingMessage) {
	reply := func(m outgoingMessage) {
		select {
		case out <- m:
		case <-ctx.Done():
		}
	}

	switch msg.Type {
	case "text", "":
		// sends are not serialized and outlive the connection; replies land
		// in completion order
		go func() {
			if _, ok := wd.Send(context.WithoutCancel(ctx), msg.Text); !ok {
				reply(newOutgoing("ignored", map[string]string{"reason": "empty message"}))
			}
		}()
	case "toggle":
		reply(newOutgoing("visibility", map[string]bool{"open": wd.Toggle()}))
	case "draft":
		wd.SetDraft(msg.Text)
	default:
		reply(newOutgoing("error", map[string]string{"message": "unsupported message type: " + msg.Type}))
	}
}

// writeLoop is the only goroutine writing to conn.
func (h *WebSocketHandler) writeLoop(ctx context.Context, conn *websocket.Conn, updates <-chan model.Message, out <-chan outgoingMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(m outgoingMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(m); err != nil {
			log.Warn().Err(err).Msg("websocket write failed")
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-out:
			if !write(m) {
				return
			}
		case msg, open := <-updates:
			if !open {
				return
			}
			if !write(newOutgoing("message", msg)) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
