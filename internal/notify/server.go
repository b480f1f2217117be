package notify

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	// Origin checks happen at the gateway.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes the live-viewer WebSocket endpoint and pumps Redis
// signals into the hub so every instance fans out, not just the one that
// committed the mutation.
type Server struct {
	hub *Hub
	rdb *redis.Client
	ctx context.Context
}

func NewServer(hub *Hub, rdb *redis.Client, ctx context.Context) *Server {
	return &Server{hub: hub, rdb: rdb, ctx: ctx}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/ws", s.handleWS)

	return r
}

// RunRedisSubscriber routes every per-setlist channel into its room.
func (s *Server) RunRedisSubscriber() {
	sub := s.rdb.PSubscribe(s.ctx, ChannelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for msg := range ch {
		key := strings.TrimPrefix(msg.Channel, ChannelPrefix)
		s.hub.Broadcast(key, []byte(msg.Payload))
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	setlistID := r.URL.Query().Get("setlist")
	if setlistID == "" {
		http.Error(w, "missing setlist query parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("setlist-service: ws upgrade: %v", err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		key:  setlistID,
		send: make(chan []byte, 256),
	}
	s.hub.register <- client

	welcome := map[string]any{
		"type":      "welcome",
		"setlistId": setlistID,
		"now":       time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.Marshal(welcome); err == nil {
		client.send <- b
	}

	go client.writePump()
	go client.readPump()
}
