// Package net assembles the HTTP surface: join, websocket upgrade,
// health, and diagnostics.
package net

import (
	"encoding/json"
	"log"
	nethttp "net/http"

	"emberhold/server"
	"emberhold/server/internal/net/ws"
)

type HTTPHandlerConfig struct {
	Logger *log.Logger
}

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		data, err := json.Marshal(hub.Diagnostics())
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		join, err := hub.Join()
		if err != nil {
			logger.Printf("join failed: %v", err)
			httpError(w, "join failed", nethttp.StatusInternalServerError)
			return
		}
		data, err := json.Marshal(join)
		if err != nil {
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	wsHandler := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger})
	mux.HandleFunc("/ws", wsHandler.Handle)

	return mux
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
