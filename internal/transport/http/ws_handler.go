package http

import (
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"quizz-service/internal/app"
)

// WSHandler streams the live progress of a sending over a websocket.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS subscribes to a sending before upgrading, so unknown sendings get a
// plain HTTP error. The first message is the current progress.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("sending")
	if token == "" {
		http.Error(w, "missing sending", http.StatusBadRequest)
		return
	}

	updates, cancel, err := h.service.SubscribeProgress(r.Context(), token)
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			glog.Errorf("subscribe progress %s: %v", token, err)
			msg = "internal error"
		}
		http.Error(w, msg, status)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Clients never send anything useful; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[app.ProgressUpdate]{Type: "progress", Payload: update}); err != nil {
				glog.V(1).Infof("ws write error: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}
