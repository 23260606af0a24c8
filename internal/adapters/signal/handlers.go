package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/openmeet/sfu/internal/sfu"
)

func (ctl *Controller) handleFrame(ctx context.Context, c *Conn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json frame")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(ctx, c, data)
	case "capabilities":
		ctl.handleCapabilities(c, data)
	case "connect-transport":
		ctl.handleConnectTransport(c, data)
	case "produce":
		ctl.handleProduce(ctx, c, data)
	case "consume":
		ctl.handleConsume(ctx, c, data)
	case "resume-consumer":
		ctl.handleResumeConsumer(c, data)
	case "close-producers":
		ctl.handleCloseProducers(c, data)
	case "leave":
		ctl.leave(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) handleJoin(ctx context.Context, c *Conn, data []byte) {
	var msg joinMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ctl.sendError(c, "bad join message")
		return
	}
	roomID := sfu.RoomID(msg.RoomID)

	ctl.SFU.CreateRoom(roomID)
	participant, err := ctl.SFU.AddParticipant(ctx, c.participantID, roomID, msg.AppData)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("participant", c.participantID).Msg("add participant")
		ctl.sendError(c, "could not join room")
		return
	}

	c.setRoom(roomID)
	ctl.register(roomID, c)

	ctl.sendJSON(c, joinedReply{
		Type:            "joined",
		RTPCapabilities: ctl.SFU.GetRTPCapabilities(roomID),
		SendTransportID: participant.SendTransportID(),
		RecvTransportID: participant.RecvTransportID(),
	})
}

func (ctl *Controller) handleCapabilities(c *Conn, data []byte) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	var msg capabilitiesMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ctl.sendError(c, "bad capabilities message")
		return
	}
	ctl.SFU.SetRTPCapabilities(c.participantID, roomID, msg.RTPCapabilities)
}

func (ctl *Controller) handleConnectTransport(c *Conn, data []byte) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	var msg connectTransportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ctl.sendError(c, "bad connect-transport message")
		return
	}
	err := ctl.SFU.ConnectTransport(c.participantID, roomID, sfu.ConnectTransportOptions{
		Direction:      msg.Direction,
		DTLSParameters: msg.DTLSParameters,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("participant", c.participantID).Msg("connect transport")
		ctl.sendError(c, "connect transport failed")
	}
}

func (ctl *Controller) handleProduce(ctx context.Context, c *Conn, data []byte) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	var msg produceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ctl.sendError(c, "bad produce message")
		return
	}
	producer, err := ctl.SFU.Produce(ctx, c.participantID, roomID, msg.RTPParameters, sfu.ProducerAppData{Source: msg.Source})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("participant", c.participantID).Msg("produce")
		ctl.sendError(c, "produce failed")
		return
	}
	if producer == nil {
		return
	}
	ctl.sendJSON(c, producedReply{Type: "produced", ID: producer.ID(), CorrelationKey: msg.CorrelationKey})
}

func (ctl *Controller) handleConsume(ctx context.Context, c *Conn, data []byte) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	var msg consumeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ctl.sendError(c, "bad consume message")
		return
	}
	consumers, err := ctl.SFU.Consume(ctx, c.participantID, roomID, sfu.ConsumeOptions{
		SourceFilter:       msg.SourceFilter,
		OtherParticipantID: msg.OtherParticipantID,
	}, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("participant", c.participantID).Msg("consume")
		ctl.sendError(c, "consume failed")
		return
	}

	items := make([]consumerItem, 0, len(consumers))
	for _, consumer := range consumers {
		items = append(items, consumerItem{
			ID:            consumer.ID(),
			ProducerID:    consumer.ProducerID(),
			Kind:          consumer.Kind().String(),
			RTPParameters: consumer.RTPParameters(),
			Source:        consumer.Source(),
			ParticipantID: consumer.ParticipantID(),
		})
	}
	ctl.sendJSON(c, consumedReply{Type: "consumed", Consumers: items})
}

func (ctl *Controller) handleResumeConsumer(c *Conn, data []byte) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	var msg resumeConsumerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ctl.sendError(c, "bad resume-consumer message")
		return
	}
	if err := ctl.SFU.ResumeConsumer(c.participantID, roomID, msg.ConsumerID); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("participant", c.participantID).Msg("resume consumer")
	}
}

// handleCloseProducers closes the named producers and notifies the rest of
// the room so clients can drop their local consumers.
func (ctl *Controller) handleCloseProducers(c *Conn, data []byte) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	var msg closeProducersMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		ctl.sendError(c, "bad close-producers message")
		return
	}
	closed := ctl.SFU.CloseProducers(c.participantID, roomID, msg.ProducerIDs)
	if len(closed) == 0 {
		return
	}
	ctl.broadcastRoom(roomID, c.participantID, producersClosedBroadcast{
		Type:          "producers-closed",
		ParticipantID: c.participantID,
		Producers:     closed,
	})
}

func (ctl *Controller) leave(c *Conn) {
	roomID, ok := c.room()
	if !ok {
		return
	}
	ctl.SFU.RemoveParticipant(c.participantID, roomID)
	ctl.unregister(roomID, c.participantID)
	c.mu.Lock()
	c.joined = false
	c.mu.Unlock()
}
