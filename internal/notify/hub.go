package notify

// Hub owns the live viewer connections, grouped into rooms keyed by
// setlist id. A viewer only receives signals for the setlist it watches.
type Hub struct {
	rooms map[string]map[*Client]bool

	broadcast  chan roomMessage
	register   chan *Client
	unregister chan *Client
}

type roomMessage struct {
	key  string
	data []byte
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan roomMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			room := h.rooms[client.key]
			if room == nil {
				room = make(map[*Client]bool)
				h.rooms[client.key] = room
			}
			room[client] = true

		case client := <-h.unregister:
			if room, ok := h.rooms[client.key]; ok && room[client] {
				h.drop(client)
			}

		case msg := <-h.broadcast:
			for client := range h.rooms[msg.key] {
				select {
				case client.send <- msg.data:
				default:
					// Slow consumer: drop it rather than stall the room.
					h.drop(client)
				}
			}
		}
	}
}

// Broadcast fans data out to every viewer of key.
func (h *Hub) Broadcast(key string, data []byte) {
	h.broadcast <- roomMessage{key: key, data: data}
}

func (h *Hub) drop(client *Client) {
	room := h.rooms[client.key]
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.key)
	}
	close(client.send)
	_ = client.conn.Close()
}
