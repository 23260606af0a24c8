package pionmedia

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/openmeet/sfu/internal/engine"
)

type transport struct {
	id     string
	router *router

	mu        sync.Mutex
	closed    bool
	connected bool
	dtls      webrtc.DTLSParameters
	producers []*producer
	consumers []*consumer
}

func (t *transport) ID() string { return t.id }

func (t *transport) Connect(dtlsParameters webrtc.DTLSParameters) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	t.dtls = dtlsParameters
	t.connected = true
	return nil
}

func (t *transport) Produce(ctx context.Context, options engine.ProduceOptions) (engine.Producer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(options.RTPParameters.Codecs) == 0 {
		return nil, ErrNoCodecs
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}
	p := &producer{
		id:            uuid.NewString(),
		kind:          options.Kind,
		rtpParameters: options.RTPParameters,
		appData:       options.AppData,
		router:        t.router,
	}
	t.producers = append(t.producers, p)
	t.router.registerProducer(p)
	return p, nil
}

func (t *transport) Consume(ctx context.Context, options engine.ConsumeOptions) (engine.Consumer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, ok := t.router.producerByID(options.ProducerID)
	if !ok {
		return nil, ErrUnknownProducer
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}
	c := &consumer{
		id:            uuid.NewString(),
		producerID:    src.id,
		kind:          src.kind,
		rtpParameters: src.rtpParameters,
		appData:       options.AppData,
		paused:        options.Paused,
	}
	t.consumers = append(t.consumers, c)
	return c, nil
}

func (t *transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	producers := t.producers
	consumers := t.consumers
	t.producers = nil
	t.consumers = nil
	t.mu.Unlock()

	for _, p := range producers {
		p.Close()
	}
	for _, c := range consumers {
		c.Close()
	}
}

type producer struct {
	id            string
	kind          webrtc.RTPCodecType
	rtpParameters webrtc.RTPParameters
	appData       map[string]any
	router        *router

	mu     sync.Mutex
	closed bool
}

func (p *producer) ID() string                          { return p.id }
func (p *producer) Kind() webrtc.RTPCodecType           { return p.kind }
func (p *producer) RTPParameters() webrtc.RTPParameters { return p.rtpParameters }
func (p *producer) AppData() map[string]any             { return p.appData }

func (p *producer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.router.unregisterProducer(p.id)
}

type consumer struct {
	id            string
	producerID    string
	kind          webrtc.RTPCodecType
	rtpParameters webrtc.RTPParameters
	appData       map[string]any

	mu     sync.Mutex
	paused bool
	closed bool
}

func (c *consumer) ID() string                          { return c.id }
func (c *consumer) ProducerID() string                  { return c.producerID }
func (c *consumer) Kind() webrtc.RTPCodecType           { return c.kind }
func (c *consumer) RTPParameters() webrtc.RTPParameters { return c.rtpParameters }
func (c *consumer) AppData() map[string]any             { return c.appData }

func (c *consumer) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *consumer) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConsumerClosed
	}
	c.paused = false
	return nil
}

func (c *consumer) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
