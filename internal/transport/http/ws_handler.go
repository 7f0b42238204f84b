package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// WSHandler pushes status snapshots to joined players over a websocket, so
// push clients observe every phase transition without polling. Players still
// answer over the REST routes; the socket is outbound-only.
type WSHandler struct {
	service  *app.SessionService
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type statusMessage struct {
	Type    string        `json:"type"`
	Payload domain.Status `json:"payload"`
}

// ServeWS subscribes the player to the session's phase transitions and
// streams snapshots until the session ends or the client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	updates, cancel, err := h.service.Subscribe(playerID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()
	defer cancel()

	// Reader only watches for the client going away; inbound payloads are
	// ignored.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(statusMessage{Type: "status", Payload: st}); err != nil {
				h.log.WithError(err).Debug("ws write failed")
				return
			}
			if st.Phase == domain.PhaseEnded {
				return
			}
		case <-closed:
			return
		}
	}
}
