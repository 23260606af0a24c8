package sfu

import (
	"context"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/openmeet/sfu/internal/engine"
)

// Producer wraps one outbound track handle together with its source tag.
type Producer struct {
	handle engine.Producer
	source TrackSource
}

func (p *Producer) ID() string                          { return p.handle.ID() }
func (p *Producer) Source() TrackSource                 { return p.source }
func (p *Producer) Kind() webrtc.RTPCodecType           { return p.handle.Kind() }
func (p *Producer) RTPParameters() webrtc.RTPParameters { return p.handle.RTPParameters() }

// Consumer wraps one inbound track handle, tagged with the originating
// source and participant. It observes a producer but never owns it.
type Consumer struct {
	handle        engine.Consumer
	source        TrackSource
	participantID string
}

func (c *Consumer) ID() string                          { return c.handle.ID() }
func (c *Consumer) ProducerID() string                  { return c.handle.ProducerID() }
func (c *Consumer) Kind() webrtc.RTPCodecType           { return c.handle.Kind() }
func (c *Consumer) RTPParameters() webrtc.RTPParameters { return c.handle.RTPParameters() }
func (c *Consumer) Source() TrackSource                 { return c.source }
func (c *Consumer) ParticipantID() string               { return c.participantID }
func (c *Consumer) Paused() bool                        { return c.handle.Paused() }

// Participant is one joined room member: a send/receive transport pair plus
// the producers and consumers registered on them. All map mutation goes
// through the methods below.
type Participant struct {
	id     string
	roomID RoomID
	send   engine.Transport
	recv   engine.Transport

	mu              sync.RWMutex
	producers       map[string]*Producer
	consumers       map[string]*Consumer
	rtpCapabilities *webrtc.RTPCapabilities
	appData         map[string]any
}

func newParticipant(id string, roomID RoomID, send, recv engine.Transport, appData map[string]any) *Participant {
	return &Participant{
		id:        id,
		roomID:    roomID,
		send:      send,
		recv:      recv,
		producers: make(map[string]*Producer),
		consumers: make(map[string]*Consumer),
		appData:   appData,
	}
}

func (p *Participant) ID() string     { return p.id }
func (p *Participant) RoomID() RoomID { return p.roomID }

func (p *Participant) AppData() map[string]any { return p.appData }

func (p *Participant) SendTransportID() string { return p.send.ID() }
func (p *Participant) RecvTransportID() string { return p.recv.ID() }

func (p *Participant) RTPCapabilities() *webrtc.RTPCapabilities {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rtpCapabilities
}

// SetRTPCapabilities stores the capability set the participant negotiated
// client-side. Consume checks compatibility against it.
func (p *Participant) SetRTPCapabilities(caps webrtc.RTPCapabilities) {
	p.mu.Lock()
	p.rtpCapabilities = &caps
	p.mu.Unlock()
}

// ConnectTransport routes DTLS parameters to the send or receive transport.
// Unknown directions are a no-op.
func (p *Participant) ConnectTransport(direction TransportDirection, dtlsParameters webrtc.DTLSParameters) error {
	switch direction {
	case DirectionSend:
		return p.send.Connect(dtlsParameters)
	case DirectionRecv:
		return p.recv.Connect(dtlsParameters)
	default:
		return nil
	}
}

// Produce creates a producer on the send transport. The engine kind is
// derived from the source tag.
func (p *Participant) Produce(ctx context.Context, rtpParameters webrtc.RTPParameters, appData ProducerAppData) (*Producer, error) {
	handle, err := p.send.Produce(ctx, engine.ProduceOptions{
		Kind:          appData.Source.Kind(),
		RTPParameters: rtpParameters,
		AppData:       map[string]any{"source": string(appData.Source)},
	})
	if err != nil {
		return nil, err
	}
	producer := &Producer{handle: handle, source: appData.Source}
	p.mu.Lock()
	p.producers[producer.ID()] = producer
	p.mu.Unlock()
	return producer, nil
}

// Consume creates one paused consumer per producer of other whose source
// contains sourceFilter and which the router reports consumable with this
// participant's negotiated capabilities. Incompatible producers are logged
// and skipped.
func (p *Participant) Consume(ctx context.Context, router engine.Router, sourceFilter string, other *Participant, appData map[string]any) ([]*Consumer, error) {
	var caps webrtc.RTPCapabilities
	if negotiated := p.RTPCapabilities(); negotiated != nil {
		caps = *negotiated
	}

	producers := other.producersBySource(sourceFilter)
	consumers := make([]*Consumer, 0, len(producers))
	for _, producer := range producers {
		if !router.CanConsume(producer.ID(), caps) {
			log.Info().
				Str("module", "sfu").
				Str("producer", producer.ID()).
				Str("participant", p.id).
				Msg("producer cannot be consumed by participant")
			continue
		}

		engineAppData := make(map[string]any, len(appData)+2)
		for k, v := range appData {
			engineAppData[k] = v
		}
		engineAppData["source"] = string(producer.Source())
		engineAppData["participantID"] = other.id
		handle, err := p.recv.Consume(ctx, engine.ConsumeOptions{
			ProducerID:      producer.ID(),
			RTPCapabilities: caps,
			Paused:          true,
			AppData:         engineAppData,
		})
		if err != nil {
			return consumers, err
		}

		consumer := &Consumer{handle: handle, source: producer.Source(), participantID: other.id}
		p.mu.Lock()
		p.consumers[consumer.ID()] = consumer
		p.mu.Unlock()
		consumers = append(consumers, consumer)
	}
	return consumers, nil
}

// ResumeConsumer transitions one consumer out of the paused state. Unknown
// ids are a no-op.
func (p *Participant) ResumeConsumer(consumerID string) error {
	p.mu.RLock()
	consumer, ok := p.consumers[consumerID]
	p.mu.RUnlock()
	if !ok {
		return nil
	}
	return consumer.handle.Resume()
}

// CloseProducers closes the given producers. Unknown ids are ignored. The
// caller is responsible for cascading the close to observing consumers.
func (p *Participant) CloseProducers(producerIDs []string) []ProducerCloseResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	closed := make([]ProducerCloseResult, 0, len(producerIDs))
	for _, id := range producerIDs {
		producer, ok := p.producers[id]
		if !ok {
			continue
		}
		producer.handle.Close()
		delete(p.producers, id)
		closed = append(closed, ProducerCloseResult{ID: id, Source: producer.source})
	}
	return closed
}

// CloseConsumers closes the given consumers. Unknown ids are ignored.
func (p *Participant) CloseConsumers(consumerIDs []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	closed := make([]string, 0, len(consumerIDs))
	for _, id := range consumerIDs {
		consumer, ok := p.consumers[id]
		if !ok {
			continue
		}
		consumer.handle.Close()
		delete(p.consumers, id)
		closed = append(closed, id)
	}
	return closed
}

// closeConsumersBy closes and deregisters every consumer matching the
// predicate.
func (p *Participant) closeConsumersBy(match func(*Consumer) bool) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var closed []string
	for id, consumer := range p.consumers {
		if !match(consumer) {
			continue
		}
		consumer.handle.Close()
		closed = append(closed, id)
	}
	for _, id := range closed {
		delete(p.consumers, id)
	}
	return closed
}

// close tears everything down: producers, consumers, both transports.
// Closing twice is safe; the second call finds empty maps. Returns the ids
// of closed producers so the room can cascade.
func (p *Participant) close() []string {
	p.mu.Lock()
	producerIDs := make([]string, 0, len(p.producers))
	for id, producer := range p.producers {
		producer.handle.Close()
		producerIDs = append(producerIDs, id)
	}
	for _, consumer := range p.consumers {
		consumer.handle.Close()
	}
	p.producers = make(map[string]*Producer)
	p.consumers = make(map[string]*Consumer)
	p.mu.Unlock()

	p.send.Close()
	p.recv.Close()
	return producerIDs
}

func (p *Participant) producersBySource(sourceFilter string) []*Producer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Producer, 0, len(p.producers))
	for _, producer := range p.producers {
		if !strings.Contains(string(producer.source), sourceFilter) {
			continue
		}
		out = append(out, producer)
	}
	return out
}

// Producers returns a snapshot of the participant's producers.
func (p *Participant) Producers() []*Producer {
	return p.producersBySource("")
}

// Consumers returns a snapshot of the participant's consumers.
func (p *Participant) Consumers() []*Consumer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Consumer, 0, len(p.consumers))
	for _, consumer := range p.consumers {
		out = append(out, consumer)
	}
	return out
}
