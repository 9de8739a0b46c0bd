// Package ws upgrades client connections and runs the per-player
// websocket session loop.
package ws

import (
	"log"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"emberhold/server"
)

type HandlerConfig struct {
	Logger *log.Logger
}

type Handler struct {
	hub      *server.Hub
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	playerID := r.URL.Query().Get("id")
	if playerID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", playerID, err)
		return
	}

	h.serve(playerID, conn)
}
