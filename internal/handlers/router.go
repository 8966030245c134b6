package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the three transport surfaces: channel REST, the
// websocket endpoint, and the long-poll fallback.
func NewRouter(channels *ChannelHandlers, ws *WebSocketHandlers, polling *PollingHandlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/channels", func(r chi.Router) {
		r.Post("/", channels.CreateChannel)
		r.Get("/", channels.ListChannels)
		r.Get("/{channelID}", channels.GetChannel)
		r.Post("/{channelID}/members", channels.AddMembers)
		r.Delete("/{channelID}/members/{memberID}", channels.RemoveMember)
	})

	r.Get("/ws", ws.HandleWebSocket)

	r.Route("/poll", func(r chi.Router) {
		r.Post("/", polling.OpenSession)
		r.Get("/{sessionID}", polling.Events)
		r.Post("/{sessionID}/send", polling.Send)
		r.Delete("/{sessionID}", polling.CloseSession)
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
