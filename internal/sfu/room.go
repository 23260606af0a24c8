package sfu

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/openmeet/sfu/internal/engine"
)

// Room is one isolated routing domain: a fixed router plus the participants
// joined to it. Every participant of a room shares the same router.
type Room struct {
	id     RoomID
	router engine.Router

	mu           sync.RWMutex
	participants map[string]*Participant
}

func newRoom(id RoomID, router engine.Router) *Room {
	return &Room{
		id:           id,
		router:       router,
		participants: make(map[string]*Participant),
	}
}

func (r *Room) ID() RoomID            { return r.id }
func (r *Room) Router() engine.Router { return r.router }

func (r *Room) Participant(id string) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	return p, ok
}

func (r *Room) Participants() []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	return out
}

func (r *Room) addParticipant(p *Participant) {
	r.mu.Lock()
	r.participants[p.id] = p
	r.mu.Unlock()
	log.Info().Str("module", "sfu.room").Int("room", int(r.id)).Str("participant", p.id).Msg("participant added")
}

func (r *Room) removeParticipant(id string) (*Participant, bool) {
	r.mu.Lock()
	p, ok := r.participants[id]
	if ok {
		delete(r.participants, id)
	}
	r.mu.Unlock()
	if ok {
		log.Info().Str("module", "sfu.room").Int("room", int(r.id)).Str("participant", id).Msg("participant removed")
	}
	return p, ok
}

// cascadeProducerClose closes every consumer in the room observing one of
// the given producers. This is what keeps consumers from dangling after
// their source producer disappears.
func (r *Room) cascadeProducerClose(producerIDs []string) {
	if len(producerIDs) == 0 {
		return
	}
	closedSet := make(map[string]struct{}, len(producerIDs))
	for _, id := range producerIDs {
		closedSet[id] = struct{}{}
	}
	for _, participant := range r.Participants() {
		closed := participant.closeConsumersBy(func(c *Consumer) bool {
			_, ok := closedSet[c.ProducerID()]
			return ok
		})
		if len(closed) > 0 {
			log.Debug().
				Str("module", "sfu.room").
				Int("room", int(r.id)).
				Str("participant", participant.id).
				Int("consumers", len(closed)).
				Msg("cascade closed consumers")
		}
	}
}
