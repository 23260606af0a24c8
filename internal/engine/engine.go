// Package engine declares the media-engine capability surface the
// orchestration core consumes. The engine owns codec negotiation, ICE/DTLS
// and packet routing; the core only holds handles.
package engine

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// WorkerSettings configures one engine worker process.
type WorkerSettings struct {
	LogLevel string
}

// RouterOptions configures the routing domain a worker hosts.
// An empty MediaCodecs list means the engine's default codec set.
type RouterOptions struct {
	MediaCodecs []webrtc.RTPCodecCapability
}

// TransportOptions configures a send or receive transport.
type TransportOptions struct {
	ListenIP    string
	AnnouncedIP string
}

// ProduceOptions creates one outbound track on a send transport.
type ProduceOptions struct {
	Kind          webrtc.RTPCodecType
	RTPParameters webrtc.RTPParameters
	AppData       map[string]any
}

// ConsumeOptions creates one inbound track on a receive transport.
type ConsumeOptions struct {
	ProducerID      string
	RTPCapabilities webrtc.RTPCapabilities
	Paused          bool
	AppData         map[string]any
}

// Engine creates workers. One worker is expected per execution unit.
type Engine interface {
	CreateWorker(ctx context.Context, settings WorkerSettings) (Worker, error)
}

type Worker interface {
	PID() string
	CreateRouter(ctx context.Context, options RouterOptions) (Router, error)
	Close()
}

// Router is a routing domain handle. Read-only after creation.
type Router interface {
	ID() string
	RTPCapabilities() webrtc.RTPCapabilities
	// CanConsume reports whether a producer can be consumed with the given
	// receiver capabilities. Unknown producer ids report false.
	CanConsume(producerID string, rtpCapabilities webrtc.RTPCapabilities) bool
	CreateTransport(ctx context.Context, options TransportOptions) (Transport, error)
}

type Transport interface {
	ID() string
	Connect(dtlsParameters webrtc.DTLSParameters) error
	Produce(ctx context.Context, options ProduceOptions) (Producer, error)
	Consume(ctx context.Context, options ConsumeOptions) (Consumer, error)
	Close()
}

type Producer interface {
	ID() string
	Kind() webrtc.RTPCodecType
	RTPParameters() webrtc.RTPParameters
	AppData() map[string]any
	Close()
}

type Consumer interface {
	ID() string
	ProducerID() string
	Kind() webrtc.RTPCodecType
	RTPParameters() webrtc.RTPParameters
	AppData() map[string]any
	Paused() bool
	Resume() error
	Close()
}
