// Package pionmedia is an in-process implementation of the engine interfaces
// built on pion WebRTC data types. It performs codec negotiation, handle
// bookkeeping and consumability checks; packet routing is the concern of the
// embedding deployment, not of this package.
package pionmedia

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/openmeet/sfu/internal/engine"
)

var (
	ErrWorkerClosed    = errors.New("worker closed")
	ErrTransportClosed = errors.New("transport closed")
	ErrConsumerClosed  = errors.New("consumer closed")
	ErrUnknownProducer = errors.New("unknown producer")
	ErrNoCodecs        = errors.New("no codecs for produce")
)

// DefaultCodecs is used when RouterOptions carries no media codecs.
var DefaultCodecs = []webrtc.RTPCodecCapability{
	{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
	{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
}

// MediaEngine creates in-process workers.
type MediaEngine struct{}

func New() *MediaEngine { return &MediaEngine{} }

func (e *MediaEngine) CreateWorker(ctx context.Context, settings engine.WorkerSettings) (engine.Worker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &worker{pid: uuid.NewString()}
	log.Debug().Str("module", "pionmedia").Str("pid", w.pid).Msg("worker created")
	return w, nil
}

type worker struct {
	pid string

	mu     sync.Mutex
	closed bool
}

func (w *worker) PID() string { return w.pid }

func (w *worker) CreateRouter(ctx context.Context, options engine.RouterOptions) (engine.Router, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWorkerClosed
	}
	codecs := options.MediaCodecs
	if len(codecs) == 0 {
		codecs = DefaultCodecs
	}
	return newRouter(codecs), nil
}

func (w *worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
