package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"club-ratings/live"
	"club-ratings/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the club frontend origin once it is deployed.
		return true
	},
}

type WebSocketHandler struct {
	hub            *live.Hub
	sessionService services.SessionService
}

func NewWebSocketHandler(hub *live.Hub, sessionService services.SessionService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		sessionService: sessionService,
	}
}

// ServeWs upgrades the connection and subscribes the client to one session's
// room at /ws/sessions/{sessionID}. Clients receive result, recalculation
// and deletion events for that session; the stream is listen-only.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	id, err := getIDFromURL(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if _, err := h.sessionService.GetByID(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error to the client.
		slog.Error("websocket upgrade failed",
			slog.String("session", sessionID),
			slog.Any("error", err))
		return
	}

	client := &live.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: sessionID,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
