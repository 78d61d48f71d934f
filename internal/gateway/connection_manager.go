package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager tracks every authenticated client connection and the
// rooms each one is subscribed to. It is the broadcast channel: events
// fanned out here reach the full client population of this server.
type ConnectionManager struct {
	connections map[*Connection]bool
	rooms       map[string]map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcastMessage

	// handler receives validated-at-the-socket inbound frames.
	handler InboundHandler
}

// InboundHandler processes a raw frame read from a client connection.
type InboundHandler func(conn *Connection, raw []byte)

// Connection represents one authenticated WebSocket client.
type Connection struct {
	ID       string
	UserID   int64
	Username string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type broadcastMessage struct {
	room   string // empty means every connected client
	event  ServerEvent
	except *Connection
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Restricted per-deployment via Service's CORS settings.
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		rooms:       make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// SetInboundHandler wires the frame handler. Must be called before any
// connection is attached.
func (cm *ConnectionManager) SetInboundHandler(h InboundHandler) {
	cm.handler = h
}

// Start begins processing broadcast messages.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Upgrade performs the WebSocket handshake. Authentication happens after
// the upgrade so the error event can reach the client on the socket.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade connection: %w", err)
	}
	return ws, nil
}

// Attach registers an authenticated socket, joins the user's private room,
// and starts the read/write pumps.
func (cm *ConnectionManager) Attach(ws *websocket.Conn, userID int64, username string) *Connection {
	conn := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Username:    username,
		Conn:        ws,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.mu.Lock()
	cm.connections[conn] = true
	cm.joinRoomLocked(conn, username)
	cm.mu.Unlock()

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID).
		Str("username", username).
		Msg("WebSocket connection established")

	return conn
}

// JoinRoom subscribes a connection to a room.
func (cm *ConnectionManager) JoinRoom(conn *Connection, room string) {
	cm.mu.Lock()
	cm.joinRoomLocked(conn, room)
	cm.mu.Unlock()

	log.Debug().
		Str("connection_id", conn.ID).
		Str("username", conn.Username).
		Str("room", room).
		Msg("connection joined room")
}

func (cm *ConnectionManager) joinRoomLocked(conn *Connection, room string) {
	if cm.rooms[room] == nil {
		cm.rooms[room] = make(map[*Connection]bool)
	}
	cm.rooms[room][conn] = true
}

// unregister removes a connection from the client set and all its rooms.
func (cm *ConnectionManager) unregister(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn]; !exists {
		return
	}
	delete(cm.connections, conn)
	close(conn.Send)

	for room, members := range cm.rooms {
		if members[conn] {
			delete(members, conn)
			if len(members) == 0 {
				delete(cm.rooms, room)
			}
		}
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("username", conn.Username).
		Msg("connection unregistered")
}

// SendEvent queues an event for a single connection.
func (cm *ConnectionManager) SendEvent(conn *Connection, event ServerEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event")
		return
	}

	select {
	case conn.Send <- data:
	default:
		log.Warn().
			Str("connection_id", conn.ID).
			Str("username", conn.Username).
			Msg("connection send buffer full, closing connection")
		cm.unregister(conn)
		conn.Conn.Close()
	}
}

// CloseWithError emits a human-readable error event and then terminates
// the connection. The queued frame drains before the close handshake, so
// the client always sees the reason, never a silent drop.
func (cm *ConnectionManager) CloseWithError(conn *Connection, msg string) {
	cm.SendEvent(conn, ErrorEvent(msg))
	cm.unregister(conn)
}

// BroadcastToRoom fans an event out to every room subscriber except the
// originating connection.
func (cm *ConnectionManager) BroadcastToRoom(room string, event ServerEvent, except *Connection) {
	select {
	case cm.broadcastCh <- broadcastMessage{room: room, event: event, except: except}:
	default:
		log.Warn().Str("room", room).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastActionComplete fans the zero-payload completion event out to
// every connected client.
func (cm *ConnectionManager) BroadcastActionComplete() {
	select {
	case cm.broadcastCh <- broadcastMessage{event: ActionCompleteEvent()}:
	default:
		log.Warn().Msg("broadcast channel full, dropping actionComplete")
	}
}

func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	cm.mu.RLock()
	var targets []*Connection
	if message.room == "" {
		for conn := range cm.connections {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.rooms[message.room] {
			if conn == message.except {
				continue
			}
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	data, err := json.Marshal(message.event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			log.Warn().
				Str("connection_id", conn.ID).
				Str("username", conn.Username).
				Msg("connection send buffer full, closing connection")
			cm.unregister(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event", message.event.Event).
		Str("room", message.room).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// Stats returns counts of active connections and rooms.
func (cm *ConnectionManager) Stats() (connections, rooms int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections), len(cm.rooms)
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.Manager.handler != nil {
			c.Manager.handler(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
