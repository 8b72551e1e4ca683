package websocket

import "github.com/rs/zerolog/log"

// Hub maintains the set of active session clients and broadcasts messages to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Messages for every connected client.
	Broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	stop chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte, 16),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		stop:       make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			log.Info().Int("total_clients", len(h.clients)).Msg("Session client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				log.Info().Int("total_clients", len(h.clients)).Msg("Session client disconnected")
			}
		case message := <-h.Broadcast:
			for client := range h.clients {
				if !client.Deliver(message) {
					// Slow consumer, drop it.
					client.closeSend()
					delete(h.clients, client)
				}
			}
		case <-h.stop:
			for client := range h.clients {
				client.closeSend()
				delete(h.clients, client)
			}
			return
		}
	}
}

// Publish queues message for every client without blocking the caller.
// The message is dropped when the broadcast queue is full.
func (h *Hub) Publish(message []byte) {
	select {
	case h.Broadcast <- message:
	default:
		log.Warn().Msg("Broadcast queue full, dropping message")
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	close(h.stop)
}

// Add registers client unless the hub has stopped.
func (h *Hub) Add(client *Client) {
	select {
	case h.Register <- client:
	case <-h.stop:
		client.closeSend()
	}
}

// Remove unregisters client unless the hub has stopped.
func (h *Hub) Remove(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.stop:
	}
}
