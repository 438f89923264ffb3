package widget

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	model "github.com/foodloop/assistant/internal/model/chat"
	"github.com/foodloop/assistant/internal/middleware"
	chatService "github.com/foodloop/assistant/internal/service/chat"
	"github.com/foodloop/assistant/pkg/utils"
)

const heartbeatInterval = 15 * time.Second

// Handler serves the chat widget of the calling client profile.
type Handler struct {
	chatSvc *chatService.Service
	ws      *WebSocketHandler
}

// New creates the widget handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		ws:      NewWebSocketHandler(chatSvc),
	}
}

// RegisterRoutes mounts the widget routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/widget", func(r chi.Router) {
		r.Get("/", h.handleGetWidget)
		r.Post("/toggle", h.handleToggle)
		r.Put("/draft", h.handleSetDraft)
		r.Post("/messages", h.handleSendMessage)
		r.Get("/stream", h.handleStream)
		r.Get("/ws", h.ws.handleWebSocket)
	})
}

type widgetView struct {
	Open     bool            `json:"open"`
	Draft    string          `json:"draft"`
	Messages []model.Message `json:"messages,omitempty"`
}

type outcomeView struct {
	Request  int64         `json:"request"`
	User     model.Message `json:"user"`
	Reply    model.Message `json:"reply"`
	Answered bool          `json:"answered"`
}

func newOutcomeView(out chatService.Outcome) outcomeView {
	return outcomeView{Request: out.Request, User: out.User, Reply: out.Reply, Answered: out.Answered()}
}

func (h *Handler) widget(w http.ResponseWriter, r *http.Request) (*chatService.Widget, bool) {
	wd, err := h.chatSvc.Widget(r.Context(), middleware.ProfileID(r.Context()))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chatService.ErrProfileRequired) {
			status = http.StatusBadRequest
		}
		utils.RespondError(w, status, err.Error())
		return nil, false
	}
	return wd, true
}

func (h *Handler) handleGetWidget(w http.ResponseWriter, r *http.Request) {
	// reading never creates a widget; an unknown profile sees the closed default
	wd, err := h.chatSvc.Lookup(middleware.ProfileID(r.Context()))
	if errors.Is(err, chatService.ErrWidgetNotFound) {
		utils.RespondJSON(w, http.StatusOK, widgetView{})
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	view := widgetView{Open: wd.IsOpen(), Draft: wd.Draft()}
	// the transcript is only rendered while the panel is open
	if view.Open {
		view.Messages = wd.Log().Messages()
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.widget(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"open": wd.Toggle()})
}

func (h *Handler) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wd, ok := h.widget(w, r)
	if !ok {
		return
	}
	wd.SetDraft(payload.Text)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text *string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wd, ok := h.widget(w, r)
	if !ok {
		return
	}

	// a disconnecting client does not cancel the exchange; the reply still
	// lands in the transcript
	ctx := context.WithoutCancel(r.Context())

	var (
		out  chatService.Outcome
		sent bool
	)
	if payload.Text != nil {
		out, sent = wd.Send(ctx, *payload.Text)
	} else {
		out, sent = wd.Submit(ctx)
	}
	if !sent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, newOutcomeView(out))
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	wd, ok := h.widget(w, r)
	if !ok {
		return
	}

	snapshot, updates, cancel := wd.Log().Subscribe(32)
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	profileID := middleware.ProfileID(ctx)
	log.Debug().Str("profile_id", profileID).Msg("opening transcript stream")

	if err := utils.SendSSEEvent(w, flusher, "snapshot", snapshot); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("profile_id", profileID).Msg("closing transcript stream")
			return
		case msg, open := <-updates:
			if !open {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, "message", msg); err != nil {
				return
			}
		case t := <-ticker.C:
			if err := utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"time": t.UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}
	}
}
