package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/relay/internal/app/orch"
	"github.com/dkeye/relay/internal/config"
	"github.com/dkeye/relay/internal/core"
	"github.com/dkeye/relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Settings bounds a single signaling connection.
type Settings struct {
	ReadLimit  int64
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
	SendBuffer int
}

func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		ReadLimit:  cfg.ReadLimit,
		WriteWait:  cfg.WriteWait,
		PongWait:   cfg.PongWait,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	}
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	Settings Settings
}

func NewSignalWSController(o *orch.Orchestrator, s Settings) *SignalWSController {
	return &SignalWSController{Orch: o, Settings: s}
}

// WsSignalConn is the outbound side of one WebSocket. Frames are queued and
// written by writePump; TrySend never blocks.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func NewWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Close is idempotent. It also unblocks the reader, which then leaves the room.
func (c *WsSignalConn) Close() {
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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	roomID := domain.RoomID(c.Param("room"))
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing room"})
		return
	}
	log.Info().Str("module", "signal").Str("room", string(roomID)).Str("visitor", c.GetString("visitor")).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	ctl.serve(ctx, roomID, NewWsSignalConn(ws, ctl.Settings.SendBuffer))
}

// serve runs one connection from admission to removal. The peer is removed
// exactly once, whichever side ends the connection.
func (ctl *SignalWSController) serve(ctx context.Context, roomID domain.RoomID, c *WsSignalConn) {
	id, err := ctl.Orch.Join(roomID, c)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", string(roomID)).Msg("join failed")
		c.Close()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg conc.WaitGroup
	defer func() {
		ctl.Orch.Leave(roomID, id)
		cancel()
		c.Close()
		wg.Wait()
		log.Info().Str("module", "signal").Str("room", string(roomID)).Str("client", string(id)).Msg("connection done")
	}()

	wg.Go(func() { ctl.writePump(ctx, id, c) })
	ctl.readPump(ctx, roomID, id, c)
}
