// Package signal carries the negotiation protocol between browser clients
// and the orchestrator over WebSocket. Each connection is bound to one
// participant id; disconnect evicts the participant.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/openmeet/sfu/internal/sfu"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	SFU *sfu.SFU

	mu    sync.RWMutex
	rooms map[sfu.RoomID]map[string]*Conn
}

func NewController(s *sfu.SFU) *Controller {
	return &Controller{
		SFU:   s,
		rooms: make(map[sfu.RoomID]map[string]*Conn),
	}
}

// Conn is one signaling connection. Writes go through a bounded send
// channel; a full channel drops the frame rather than blocking a pump.
type Conn struct {
	conn *websocket.Conn
	send chan []byte

	participantID string

	mu     sync.RWMutex
	closed bool
	joined bool
	roomID sfu.RoomID
}

func (c *Conn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *Conn) room() (sfu.RoomID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID, c.joined
}

func (c *Conn) setRoom(roomID sfu.RoomID) {
	c.mu.Lock()
	c.roomID = roomID
	c.joined = true
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and starts the read/write pumps. The
// participant id comes from the client token middleware.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	participantID := c.GetString("client_token")
	log.Info().Str("module", "signal").Str("participant", participantID).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &Conn{
		conn:          ws,
		send:          make(chan []byte, 32),
		participantID: participantID,
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, conn, cancel)
}

func (ctl *Controller) register(roomID sfu.RoomID, conn *Conn) {
	ctl.mu.Lock()
	peers, ok := ctl.rooms[roomID]
	if !ok {
		peers = make(map[string]*Conn)
		ctl.rooms[roomID] = peers
	}
	peers[conn.participantID] = conn
	ctl.mu.Unlock()
}

func (ctl *Controller) unregister(roomID sfu.RoomID, participantID string) {
	ctl.mu.Lock()
	if peers, ok := ctl.rooms[roomID]; ok {
		delete(peers, participantID)
		if len(peers) == 0 {
			delete(ctl.rooms, roomID)
		}
	}
	ctl.mu.Unlock()
}

// broadcastRoom sends v to every signaling connection in the room except
// the originating participant.
func (ctl *Controller) broadcastRoom(roomID sfu.RoomID, from string, v any) {
	ctl.mu.RLock()
	conns := make([]*Conn, 0, len(ctl.rooms[roomID]))
	for id, conn := range ctl.rooms[roomID] {
		if id == from {
			continue
		}
		conns = append(conns, conn)
	}
	ctl.mu.RUnlock()
	for _, conn := range conns {
		ctl.sendJSON(conn, v)
	}
}
