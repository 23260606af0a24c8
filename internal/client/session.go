package client

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/openmeet/sfu/internal/sfu"
)

var (
	ErrNoSendTransport = errors.New("send transport must be set up to produce")
	ErrNoRecvTransport = errors.New("receive transport must be set up to consume")
)

// SessionOptions configures Init. Transport descriptors are optional; a
// session without a send transport can still consume and vice versa.
type SessionOptions struct {
	RouterRTPCapabilities webrtc.RTPCapabilities
	SendTransport         *TransportOptions
	RecvTransport         *TransportOptions
	// CodecMap maps a track source to a preferred mime type, matched
	// case-insensitively against the device capabilities on produce.
	CodecMap map[sfu.TrackSource]string
}

// ConnectRequest is emitted once per transport, the first time it needs
// DTLS parameters. The signaling layer must relay it to the server.
type ConnectRequest struct {
	Direction      sfu.TransportDirection `json:"direction"`
	DTLSParameters webrtc.DTLSParameters  `json:"dtlsParameters"`
}

// ProduceRequest is emitted once per local produce. The signaling layer
// must answer via ResolveProduceEvent with the matching correlation key.
type ProduceRequest struct {
	RTPParameters  webrtc.RTPParameters `json:"rtpParameters"`
	CorrelationKey string               `json:"correlationKey"`
	Source         sfu.TrackSource      `json:"source"`
}

// pending produce callbacks are single-use: deleted on first resolution.
type produceCallback struct {
	accept func(producerID string) error
	fail   func(error)
}

// Session mirrors one participant's client-side negotiation state. The
// OnConnect/OnProduce hooks are the outbound half of the signaling boundary;
// ResolveProduceEvent is the inbound completion entry point.
type Session struct {
	device Device

	mu             sync.Mutex
	send           Transport
	recv           Transport
	producers      map[string]Producer
	consumers      map[string]Consumer
	pendingProduce map[string]produceCallback
	codecMap       map[sfu.TrackSource]string

	onConnect func(ConnectRequest)
	onProduce func(ProduceRequest)
}

func NewSession(device Device) *Session {
	return &Session{
		device:         device,
		producers:      make(map[string]Producer),
		consumers:      make(map[string]Consumer),
		pendingProduce: make(map[string]produceCallback),
	}
}

// OnConnect registers the outbound connect handler. Set it before Init.
func (s *Session) OnConnect(fn func(ConnectRequest)) { s.onConnect = fn }

// OnProduce registers the outbound produce handler. Set it before Init.
func (s *Session) OnProduce(fn func(ProduceRequest)) { s.onProduce = fn }

// Init loads the device with the router capabilities, creates whichever
// transports were provisioned and returns the negotiated capability set for
// the caller to relay to the server.
func (s *Session) Init(options SessionOptions) (webrtc.RTPCapabilities, error) {
	if options.CodecMap != nil {
		s.codecMap = options.CodecMap
	}

	if err := s.device.Load(options.RouterRTPCapabilities); err != nil {
		return webrtc.RTPCapabilities{}, err
	}

	if options.SendTransport != nil {
		transport, err := s.device.CreateSendTransport(*options.SendTransport)
		if err != nil {
			return webrtc.RTPCapabilities{}, err
		}
		s.bindConnect(sfu.DirectionSend, transport)
		s.bindProduce(transport)
		s.mu.Lock()
		s.send = transport
		s.mu.Unlock()
	}

	if options.RecvTransport != nil {
		transport, err := s.device.CreateRecvTransport(*options.RecvTransport)
		if err != nil {
			return webrtc.RTPCapabilities{}, err
		}
		s.bindConnect(sfu.DirectionRecv, transport)
		s.mu.Lock()
		s.recv = transport
		s.mu.Unlock()
	}

	return s.device.RTPCapabilities(), nil
}

// Produce publishes a local track. If a codec preference is configured for
// the track source it is pinned by exact mime-type match, otherwise the
// engine default applies.
func (s *Session) Produce(track webrtc.TrackLocal, appData sfu.ProducerAppData) (Producer, error) {
	s.mu.Lock()
	send := s.send
	s.mu.Unlock()
	if send == nil {
		return nil, ErrNoSendTransport
	}

	options := ProduceOptions{Track: track, AppData: appData}
	if codec := s.preferredCodec(appData.Source); codec != nil {
		options.Codec = codec
	}

	producer, err := send.Produce(options)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.producers[producer.ID()] = producer
	s.mu.Unlock()
	return producer, nil
}

// Consume constructs a consumer directly from server-supplied parameters.
func (s *Session) Consume(options ConsumeOptions) (Consumer, error) {
	s.mu.Lock()
	recv := s.recv
	s.mu.Unlock()
	if recv == nil {
		return nil, ErrNoRecvTransport
	}

	consumer, err := recv.Consume(options)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.consumers[consumer.ID()] = consumer
	s.mu.Unlock()
	return consumer, nil
}

// ResolveProduceEvent completes the produce negotiation identified by the
// correlation key with the server-issued producer id. The pending entry is
// single-use; an unknown key is a protocol violation by the caller.
func (s *Session) ResolveProduceEvent(correlationKey, producerID string) error {
	s.mu.Lock()
	callback, ok := s.pendingProduce[correlationKey]
	if ok {
		delete(s.pendingProduce, correlationKey)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no produce callback for correlation key %q", correlationKey)
	}

	if err := callback.accept(producerID); err != nil {
		callback.fail(err)
		return err
	}
	return nil
}

// CloseProducers closes every local producer matching the predicate and
// returns the closed ids.
func (s *Session) CloseProducers(match func(Producer) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var closed []string
	for id, producer := range s.producers {
		if !match(producer) {
			continue
		}
		producer.Close()
		closed = append(closed, id)
	}
	for _, id := range closed {
		delete(s.producers, id)
	}
	return closed
}

// CloseConsumers closes every local consumer matching the predicate and
// returns the closed ids.
func (s *Session) CloseConsumers(match func(Consumer) bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var closed []string
	for id, consumer := range s.consumers {
		if !match(consumer) {
			continue
		}
		consumer.Close()
		closed = append(closed, id)
	}
	for _, id := range closed {
		delete(s.consumers, id)
	}
	return closed
}

// Close tears down consumers, producers and both transports. In-flight
// produce negotiations are abandoned, not rejected.
func (s *Session) Close() {
	s.mu.Lock()
	consumers := s.consumers
	producers := s.producers
	send, recv := s.send, s.recv
	s.consumers = make(map[string]Consumer)
	s.producers = make(map[string]Producer)
	s.pendingProduce = make(map[string]produceCallback)
	s.send, s.recv = nil, nil
	s.mu.Unlock()

	for _, consumer := range consumers {
		consumer.Close()
	}
	for _, producer := range producers {
		producer.Close()
	}
	if send != nil {
		send.Close()
	}
	if recv != nil {
		recv.Close()
	}
}

func (s *Session) bindConnect(direction sfu.TransportDirection, transport Transport) {
	transport.OnConnect(func(dtlsParameters webrtc.DTLSParameters) error {
		if s.onConnect != nil {
			s.onConnect(ConnectRequest{Direction: direction, DTLSParameters: dtlsParameters})
		}
		return nil
	})
}

func (s *Session) bindProduce(transport Transport) {
	transport.OnProduce(func(req TransportProduceRequest, accept func(string) error, fail func(error)) {
		key := uuid.NewString()
		s.mu.Lock()
		s.pendingProduce[key] = produceCallback{accept: accept, fail: fail}
		s.mu.Unlock()

		log.Debug().Str("module", "client").Str("key", key).Str("source", string(req.AppData.Source)).Msg("produce negotiation pending")
		if s.onProduce != nil {
			s.onProduce(ProduceRequest{
				RTPParameters:  req.RTPParameters,
				CorrelationKey: key,
				Source:         req.AppData.Source,
			})
		}
	})
}

func (s *Session) preferredCodec(source sfu.TrackSource) *webrtc.RTPCodecCapability {
	mime, ok := s.codecMap[source]
	if !ok {
		return nil
	}
	for _, codec := range s.device.RTPCapabilities().Codecs {
		if strings.EqualFold(codec.MimeType, mime) {
			c := codec
			return &c
		}
	}
	return nil
}
