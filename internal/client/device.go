// Package client is the browser-side half of the negotiation protocol: it
// drives local transport setup and produce handshakes against an external
// signaling channel, without touching the server orchestrator directly.
package client

import (
	"github.com/pion/webrtc/v4"

	"github.com/openmeet/sfu/internal/sfu"
)

// Device is the client-side media engine boundary. It loads the
// server-advertised router capabilities and creates local transports.
type Device interface {
	Load(routerRTPCapabilities webrtc.RTPCapabilities) error
	RTPCapabilities() webrtc.RTPCapabilities
	CreateSendTransport(options TransportOptions) (Transport, error)
	CreateRecvTransport(options TransportOptions) (Transport, error)
}

// TransportOptions is the server-provisioned transport descriptor.
type TransportOptions struct {
	ID string `json:"id"`
}

// TransportProduceRequest is what a send transport hands to its produce hook
// before the engine can finish creating the local producer.
type TransportProduceRequest struct {
	Kind          webrtc.RTPCodecType
	RTPParameters webrtc.RTPParameters
	AppData       sfu.ProducerAppData
}

// Transport is one local send or receive transport handle.
//
// OnConnect registers the hook invoked the first time the transport needs
// DTLS parameters; a returned error fails the connect. OnProduce registers
// the hook invoked per local produce; the engine suspends the produce until
// accept is called with the server-issued producer id, or fail aborts it.
// Accept reports an error if the transport can no longer take the producer.
type Transport interface {
	ID() string
	OnConnect(hook func(dtlsParameters webrtc.DTLSParameters) error)
	OnProduce(hook func(req TransportProduceRequest, accept func(producerID string) error, fail func(error)))
	Produce(options ProduceOptions) (Producer, error)
	Consume(options ConsumeOptions) (Consumer, error)
	Close()
}

// ProduceOptions creates one local producer. Codec, when set, pins the
// codec instead of the engine default.
type ProduceOptions struct {
	Track   webrtc.TrackLocal
	Codec   *webrtc.RTPCodecCapability
	AppData sfu.ProducerAppData
}

// ConsumeOptions constructs a local consumer from server-supplied
// parameters.
type ConsumeOptions struct {
	ID            string               `json:"id"`
	ProducerID    string               `json:"producerID"`
	Kind          webrtc.RTPCodecType  `json:"kind"`
	RTPParameters webrtc.RTPParameters `json:"rtpParameters"`
	AppData       sfu.ConsumerAppData  `json:"appData"`
}

type Producer interface {
	ID() string
	AppData() sfu.ProducerAppData
	Close()
}

type Consumer interface {
	ID() string
	ProducerID() string
	AppData() sfu.ConsumerAppData
	Close()
}
