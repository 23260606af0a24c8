package pionmedia_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/openmeet/sfu/internal/engine"
	"github.com/openmeet/sfu/internal/engine/pionmedia"
)

func newRouter(t *testing.T, options engine.RouterOptions) engine.Router {
	t.Helper()
	worker, err := pionmedia.New().CreateWorker(context.Background(), engine.WorkerSettings{})
	require.NoError(t, err)
	router, err := worker.CreateRouter(context.Background(), options)
	require.NoError(t, err)
	return router
}

func opusParams() webrtc.RTPParameters {
	return webrtc.RTPParameters{Codecs: []webrtc.RTPCodecParameters{{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		PayloadType:        111,
	}}}
}

func TestWorkerClose(t *testing.T) {
	worker, err := pionmedia.New().CreateWorker(context.Background(), engine.WorkerSettings{})
	require.NoError(t, err)

	// Router creation may race with Close from another goroutine.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = worker.CreateRouter(context.Background(), engine.RouterOptions{})
		}()
	}
	worker.Close()
	wg.Wait()

	_, err = worker.CreateRouter(context.Background(), engine.RouterOptions{})
	require.ErrorIs(t, err, pionmedia.ErrWorkerClosed)
}

func TestRouterDefaults(t *testing.T) {
	router := newRouter(t, engine.RouterOptions{})
	require.Equal(t, pionmedia.DefaultCodecs, router.RTPCapabilities().Codecs)
	require.NotEmpty(t, router.ID())
}

func TestProduceAndCanConsume(t *testing.T) {
	router := newRouter(t, engine.RouterOptions{})
	transport, err := router.CreateTransport(context.Background(), engine.TransportOptions{})
	require.NoError(t, err)

	producer, err := transport.Produce(context.Background(), engine.ProduceOptions{
		Kind:          webrtc.RTPCodecTypeAudio,
		RTPParameters: opusParams(),
	})
	require.NoError(t, err)

	opusCaps := webrtc.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
	}}
	vp8Caps := webrtc.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
	}}

	require.True(t, router.CanConsume(producer.ID(), opusCaps))
	require.False(t, router.CanConsume(producer.ID(), vp8Caps))
	require.False(t, router.CanConsume("unknown", opusCaps))

	// Mime-type matching ignores case.
	require.True(t, router.CanConsume(producer.ID(), webrtc.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: "AUDIO/OPUS", ClockRate: 48000, Channels: 2},
	}}))
}

func TestProduceValidation(t *testing.T) {
	router := newRouter(t, engine.RouterOptions{})
	transport, err := router.CreateTransport(context.Background(), engine.TransportOptions{})
	require.NoError(t, err)

	_, err = transport.Produce(context.Background(), engine.ProduceOptions{Kind: webrtc.RTPCodecTypeAudio})
	require.ErrorIs(t, err, pionmedia.ErrNoCodecs)
}

func TestConsumeLifecycle(t *testing.T) {
	router := newRouter(t, engine.RouterOptions{})
	sendTransport, err := router.CreateTransport(context.Background(), engine.TransportOptions{})
	require.NoError(t, err)
	recvTransport, err := router.CreateTransport(context.Background(), engine.TransportOptions{})
	require.NoError(t, err)

	producer, err := sendTransport.Produce(context.Background(), engine.ProduceOptions{
		Kind:          webrtc.RTPCodecTypeAudio,
		RTPParameters: opusParams(),
	})
	require.NoError(t, err)

	_, err = recvTransport.Consume(context.Background(), engine.ConsumeOptions{ProducerID: "unknown"})
	require.ErrorIs(t, err, pionmedia.ErrUnknownProducer)

	consumer, err := recvTransport.Consume(context.Background(), engine.ConsumeOptions{
		ProducerID: producer.ID(),
		Paused:     true,
	})
	require.NoError(t, err)
	require.Equal(t, producer.ID(), consumer.ProducerID())
	require.Equal(t, webrtc.RTPCodecTypeAudio, consumer.Kind())
	require.True(t, consumer.Paused())

	require.NoError(t, consumer.Resume())
	require.False(t, consumer.Paused())

	consumer.Close()
	require.ErrorIs(t, consumer.Resume(), pionmedia.ErrConsumerClosed)
}

func TestTransportCloseReleasesProducers(t *testing.T) {
	router := newRouter(t, engine.RouterOptions{})
	transport, err := router.CreateTransport(context.Background(), engine.TransportOptions{})
	require.NoError(t, err)

	producer, err := transport.Produce(context.Background(), engine.ProduceOptions{
		Kind:          webrtc.RTPCodecTypeAudio,
		RTPParameters: opusParams(),
	})
	require.NoError(t, err)

	transport.Close()

	caps := webrtc.RTPCapabilities{Codecs: pionmedia.DefaultCodecs}
	require.False(t, router.CanConsume(producer.ID(), caps))

	_, err = transport.Produce(context.Background(), engine.ProduceOptions{
		Kind:          webrtc.RTPCodecTypeAudio,
		RTPParameters: opusParams(),
	})
	require.ErrorIs(t, err, pionmedia.ErrTransportClosed)

	require.ErrorIs(t, transport.Connect(webrtc.DTLSParameters{}), pionmedia.ErrTransportClosed)
}
