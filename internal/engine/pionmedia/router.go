package pionmedia

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/openmeet/sfu/internal/engine"
)

// router is one routing domain. Producers register here so that consume
// requests on any transport of the same router can find them.
type router struct {
	id   string
	caps webrtc.RTPCapabilities

	mu        sync.RWMutex
	producers map[string]*producer
}

func newRouter(codecs []webrtc.RTPCodecCapability) *router {
	return &router{
		id:        uuid.NewString(),
		caps:      webrtc.RTPCapabilities{Codecs: codecs},
		producers: make(map[string]*producer),
	}
}

func (r *router) ID() string { return r.id }

func (r *router) RTPCapabilities() webrtc.RTPCapabilities { return r.caps }

func (r *router) CanConsume(producerID string, rtpCapabilities webrtc.RTPCapabilities) bool {
	r.mu.RLock()
	p, ok := r.producers[producerID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	for _, pc := range p.rtpParameters.Codecs {
		if matchCodec(pc.RTPCodecCapability, rtpCapabilities.Codecs) {
			return true
		}
	}
	return false
}

func (r *router) CreateTransport(ctx context.Context, options engine.TransportOptions) (engine.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &transport{id: uuid.NewString(), router: r}, nil
}

func (r *router) registerProducer(p *producer) {
	r.mu.Lock()
	r.producers[p.id] = p
	r.mu.Unlock()
}

func (r *router) unregisterProducer(id string) {
	r.mu.Lock()
	delete(r.producers, id)
	r.mu.Unlock()
}

func (r *router) producerByID(id string) (*producer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.producers[id]
	return p, ok
}

func matchCodec(c webrtc.RTPCodecCapability, against []webrtc.RTPCodecCapability) bool {
	for _, other := range against {
		if strings.EqualFold(c.MimeType, other.MimeType) && c.ClockRate == other.ClockRate {
			return true
		}
	}
	return false
}
