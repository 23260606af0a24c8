package sfu

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/openmeet/sfu/internal/engine"
)

// Options carries the engine settings the orchestrator passes through on
// resource acquisition.
type Options struct {
	TransportOptions engine.TransportOptions
}

// SFU is the server-side orchestration facade. Unknown rooms, participants,
// producers and consumers make every operation a silent no-op; only real
// engine faults surface as errors.
type SFU struct {
	pool    *WorkerPool
	options Options

	mu    sync.RWMutex
	rooms map[RoomID]*Room
}

func New(pool *WorkerPool, options Options) *SFU {
	return &SFU{
		pool:    pool,
		options: options,
		rooms:   make(map[RoomID]*Room),
	}
}

// CreateRoom allocates a room bound to the next pooled router. Calling it
// again with an existing id changes nothing.
func (s *SFU) CreateRoom(roomID RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; ok {
		return
	}
	s.rooms[roomID] = newRoom(roomID, s.pool.NextRouter())
	log.Info().Str("module", "sfu").Int("room", int(roomID)).Msg("room created")
}

// AddParticipant acquires a send+receive transport pair from the room's
// router, then registers the participant. If either acquisition fails no
// participant is registered. Returns nil for unknown rooms.
func (s *SFU) AddParticipant(ctx context.Context, id string, roomID RoomID, appData map[string]any) (*Participant, error) {
	room, ok := s.room(roomID)
	if !ok {
		return nil, nil
	}

	send, err := room.router.CreateTransport(ctx, s.options.TransportOptions)
	if err != nil {
		return nil, err
	}
	recv, err := room.router.CreateTransport(ctx, s.options.TransportOptions)
	if err != nil {
		send.Close()
		return nil, err
	}

	participant := newParticipant(id, roomID, send, recv, appData)
	room.addParticipant(participant)
	return participant, nil
}

// RemoveParticipant closes the participant (producers, consumers, both
// transports) and cascades producer closes to the rest of the room.
func (s *SFU) RemoveParticipant(id string, roomID RoomID) {
	room, ok := s.room(roomID)
	if !ok {
		return
	}
	participant, ok := room.removeParticipant(id)
	if !ok {
		return
	}
	closedProducers := participant.close()
	room.cascadeProducerClose(closedProducers)
}

func (s *SFU) ConnectTransport(participantID string, roomID RoomID, options ConnectTransportOptions) error {
	participant, ok := s.participant(participantID, roomID)
	if !ok {
		return nil
	}
	return participant.ConnectTransport(options.Direction, options.DTLSParameters)
}

// Produce creates a producer on the participant's send transport. Returns
// nil for unknown rooms or participants.
func (s *SFU) Produce(ctx context.Context, participantID string, roomID RoomID, rtpParameters webrtc.RTPParameters, appData ProducerAppData) (*Producer, error) {
	participant, ok := s.participant(participantID, roomID)
	if !ok {
		return nil, nil
	}
	return participant.Produce(ctx, rtpParameters, appData)
}

// Consume creates paused consumers for every matching, consumable producer
// of the other participant. Returns nil for unknown rooms or participants.
func (s *SFU) Consume(ctx context.Context, participantID string, roomID RoomID, options ConsumeOptions, appData map[string]any) ([]*Consumer, error) {
	room, ok := s.room(roomID)
	if !ok {
		return nil, nil
	}
	participant, ok := room.Participant(participantID)
	if !ok {
		return nil, nil
	}
	other, ok := room.Participant(options.OtherParticipantID)
	if !ok {
		return nil, nil
	}
	return participant.Consume(ctx, room.router, options.SourceFilter, other, appData)
}

func (s *SFU) ResumeConsumer(participantID string, roomID RoomID, consumerID string) error {
	participant, ok := s.participant(participantID, roomID)
	if !ok {
		return nil
	}
	return participant.ResumeConsumer(consumerID)
}

// SetRTPCapabilities stores the capability set a participant negotiated on
// its client session.
func (s *SFU) SetRTPCapabilities(participantID string, roomID RoomID, caps webrtc.RTPCapabilities) {
	participant, ok := s.participant(participantID, roomID)
	if !ok {
		return
	}
	participant.SetRTPCapabilities(caps)
}

// CloseProducers closes the named producers of one participant and cascades
// to every consumer in the room observing them.
func (s *SFU) CloseProducers(participantID string, roomID RoomID, producerIDs []string) []ProducerCloseResult {
	room, ok := s.room(roomID)
	if !ok {
		return nil
	}
	participant, ok := room.Participant(participantID)
	if !ok {
		return nil
	}
	closed := participant.CloseProducers(producerIDs)
	ids := make([]string, 0, len(closed))
	for _, result := range closed {
		ids = append(ids, result.ID)
	}
	room.cascadeProducerClose(ids)
	return closed
}

// CloseConsumers closes only the named consumers owned by the participant.
func (s *SFU) CloseConsumers(participantID string, roomID RoomID, consumerIDs []string) []string {
	participant, ok := s.participant(participantID, roomID)
	if !ok {
		return nil
	}
	return participant.CloseConsumers(consumerIDs)
}

// CloseConsumersByCallback closes every consumer in the room matching the
// predicate, across all participants.
func (s *SFU) CloseConsumersByCallback(roomID RoomID, match func(*Consumer) bool) {
	room, ok := s.room(roomID)
	if !ok {
		return
	}
	for _, participant := range room.Participants() {
		participant.closeConsumersBy(match)
	}
}

// DeleteRooms force-closes every participant in each named room, then drops
// the room. Unknown ids are ignored.
func (s *SFU) DeleteRooms(roomIDs ...RoomID) {
	for _, roomID := range roomIDs {
		s.mu.Lock()
		room, ok := s.rooms[roomID]
		if ok {
			delete(s.rooms, roomID)
		}
		s.mu.Unlock()
		if !ok {
			continue
		}
		for _, participant := range room.Participants() {
			room.removeParticipant(participant.id)
			participant.close()
		}
		log.Info().Str("module", "sfu").Int("room", int(roomID)).Msg("room deleted")
	}
}

func (s *SFU) GetParticipant(participantID string, roomID RoomID) *Participant {
	participant, ok := s.participant(participantID, roomID)
	if !ok {
		return nil
	}
	return participant
}

func (s *SFU) GetParticipants(roomID RoomID) []*Participant {
	room, ok := s.room(roomID)
	if !ok {
		return nil
	}
	return room.Participants()
}

func (s *SFU) GetParticipantsByAppData(roomID RoomID, match func(appData map[string]any) bool) []*Participant {
	room, ok := s.room(roomID)
	if !ok {
		return nil
	}
	var out []*Participant
	for _, participant := range room.Participants() {
		if match(participant.appData) {
			out = append(out, participant)
		}
	}
	return out
}

func (s *SFU) GetRTPCapabilities(roomID RoomID) *webrtc.RTPCapabilities {
	room, ok := s.room(roomID)
	if !ok {
		return nil
	}
	caps := room.router.RTPCapabilities()
	return &caps
}

func (s *SFU) room(roomID RoomID) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *SFU) participant(participantID string, roomID RoomID) (*Participant, bool) {
	room, ok := s.room(roomID)
	if !ok {
		return nil, false
	}
	return room.Participant(participantID)
}
