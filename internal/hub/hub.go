package hub

import (
	"encoding/json"
	"sync"

	"github.com/weiawesome/wes-io-collab/internal/config"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
)

// Hub owns every local WebSocket connection and the room membership of
// each. Room broadcasts and direct replies share one queue, so frames
// reach a given client in the order they were enqueued.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[string]*Client // roomID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	outbound   chan *RoomMessage
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// RoomMessage is a frame queued for delivery. With Target set it goes to
// that client only; otherwise to every client in RoomID except Exclude.
type RoomMessage struct {
	RoomID  string
	Target  string
	Message []byte
	Exclude string // Client ID to exclude from broadcast
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan *RoomMessage, 256),
		done:       make(chan struct{}),
		config:     cfg,
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	l := pkglog.L()
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l.Debug().Str(pkglog.FieldConnID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for roomID, roomClients := range h.rooms {
					delete(roomClients, client.ID)
					if len(roomClients) == 0 {
						delete(h.rooms, roomID)
					}
				}
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			l.Debug().Str(pkglog.FieldConnID, client.ID).Msg("client unregistered")

		case msg := <-h.outbound:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg *RoomMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.Target != "" {
		if client, ok := h.clients[msg.Target]; ok {
			h.push(client, msg.Message)
		}
		return
	}

	for clientID, client := range h.rooms[msg.RoomID] {
		if clientID == msg.Exclude {
			continue
		}
		h.push(client, msg.Message)
	}
}

func (h *Hub) push(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		// Client's send buffer is full
		go h.removeClient(client)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
	}
	h.rooms = make(map[string]map[string]*Client)
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) removeClient(client *Client) {
	l := pkglog.L()
	l.Warn().Str(pkglog.FieldConnID, client.ID).Msg("send buffer full, dropping client")
	h.Unregister(client)
}

func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][client.ID] = client
}

func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if roomClients, ok := h.rooms[roomID]; ok {
		delete(roomClients, client.ID)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// BroadcastToRoom sends a message to all local clients in a room.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	h.BroadcastRawToRoom(roomID, data, exclude)
	return nil
}

// BroadcastRawToRoom sends an already encoded frame to all local clients
// in a room.
func (h *Hub) BroadcastRawToRoom(roomID string, data []byte, exclude string) {
	h.enqueue(&RoomMessage{
		RoomID:  roomID,
		Message: data,
		Exclude: exclude,
	})
}

// SendToClient queues a message for one client behind any frames already
// queued for it.
func (h *Hub) SendToClient(clientID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	h.enqueue(&RoomMessage{Target: clientID, Message: data})
	return nil
}

func (h *Hub) enqueue(msg *RoomMessage) {
	select {
	case h.outbound <- msg:
	case <-h.done:
	}
}

// RoomClientCount returns the number of local connections joined to roomID.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[roomID])
}

// HasParticipant reports whether another local connection than exclude is
// joined to roomID as participantID.
func (h *Hub) HasParticipant(roomID, participantID, exclude string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for clientID, client := range h.rooms[roomID] {
		if clientID == exclude {
			continue
		}
		if pid, _, ok := client.Session.Binding(); ok && pid == participantID {
			return true
		}
	}
	return false
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
