package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *Conn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump reads frames and dispatches them. On exit the participant is
// removed from its room so nothing leaks on disconnect.
func (ctl *Controller) readPump(ctx context.Context, c *Conn, cancel context.CancelFunc) {
	defer func() {
		log.Info().Str("module", "signal").Str("participant", c.participantID).Msg("readPump closing")
		ctl.leave(c)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleFrame(ctx, c, data)
		}
	}
}

func (ctl *Controller) sendJSON(c *Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal reply")
		return
	}
	if err := c.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("participant", c.participantID).Msg("send failed")
	}
}

func (ctl *Controller) sendError(c *Conn, msg string) {
	ctl.sendJSON(c, errorReply{Type: "error", Message: msg})
}
